package config

type ConstantType int

const (
	ConstantLeft ConstantType = iota
	ConstantRight
	ConstantFinger
	ConstantElbow
	ConstantArm
	ConstantWrist
	ConstantTwist
	ConstantKnee
	ConstantCenter
	ConstantRoot
	ConstantBaseMorph
	ConstantMorphLabel
	ConstantSphereExtension
	ConstantSphereAddExtension
	ConstantTextureSeparator
)

var defaultConstants = map[ConstantType]string{
	ConstantLeft:               "左",
	ConstantRight:              "右",
	ConstantFinger:             "指",
	ConstantElbow:              "ひじ",
	ConstantArm:                "腕",
	ConstantWrist:              "手首",
	ConstantTwist:              "捩",
	ConstantKnee:               "ひざ",
	ConstantCenter:             "センター",
	ConstantRoot:               "Root",
	ConstantBaseMorph:          "base",
	ConstantMorphLabel:         "表情",
	ConstantSphereExtension:    ".sph",
	ConstantSphereAddExtension: ".spa",
	ConstantTextureSeparator:   "*",
}
