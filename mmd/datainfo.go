package mmd

import (
	"github.com/mogaika/mmd_browser/config"
)

type Format int

const (
	FormatUnknown Format = iota
	FormatPMD
	FormatPMX
)

func (f Format) String() string {
	switch f {
	case FormatPMD:
		return "pmd"
	case FormatPMX:
		return "pmx"
	}
	return "unknown"
}

const (
	pmdSignature = "Pmd"
	pmxSignature = "PMX "
	pmdVersion   = float32(1.0)
	pmxVersion   = float32(2.0)
	pmxFlagsSize = 8
	maxUVCount   = 4
)

// Section is location of entity table inside file
type Section struct {
	Offset int
	Count  int
}

// DataInfo describes file layout gathered by preparse
type DataInfo struct {
	Format  Format
	Version float32

	Codec              config.Codec
	AdditionalUVSize   int
	VertexIndexSize    int
	TextureIndexSize   int
	MaterialIndexSize  int
	BoneIndexSize      int
	MorphIndexSize     int
	RigidBodyIndexSize int

	Name           []byte
	EnglishName    []byte
	Comment        []byte
	EnglishComment []byte

	Vertices      Section
	Indices       Section
	Textures      Section
	Materials     Section
	Bones         Section
	IKConstraints Section
	Morphs        Section
	Labels        Section

	// pmd only label sources
	MorphLabels       Section
	BoneCategoryNames Section
	BoneLabels        Section

	HasEnglish         bool
	EnglishNames       Section
	CustomToonTextures Section

	RigidBodies Section
	Joints      Section

	End int
}

// pmx index field sizes, in flag order
func (info *DataInfo) indexSizes() []*int {
	return []*int{
		&info.VertexIndexSize, &info.TextureIndexSize, &info.MaterialIndexSize,
		&info.BoneIndexSize, &info.MorphIndexSize, &info.RigidBodyIndexSize,
	}
}

func validIndexSize(size int) bool {
	return size == 1 || size == 2 || size == 4
}
