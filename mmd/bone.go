package mmd

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/mmd_browser/config"
)

// BoneType is pmd bone kind
type BoneType uint8

const (
	BoneRotate BoneType = iota
	BoneRotateAndMove
	BoneIKDestination
	BoneUnknown
	BoneUnderIK
	BoneUnderRotate
	BoneIKTarget
	BoneInvisible
	BoneTwist
	BoneFollowRotate
	maxBoneType
)

// BoneFlags are pmx bone flags, derived from type for pmd bones
type BoneFlags uint16

const (
	BoneFlagHasDestinationBone      BoneFlags = 0x0001
	BoneFlagRotatable               BoneFlags = 0x0002
	BoneFlagMovable                 BoneFlags = 0x0004
	BoneFlagVisible                 BoneFlags = 0x0008
	BoneFlagInteractive             BoneFlags = 0x0010
	BoneFlagHasIK                   BoneFlags = 0x0020
	BoneFlagHasLocalInherent        BoneFlags = 0x0080
	BoneFlagHasInherentRotation     BoneFlags = 0x0100
	BoneFlagHasInherentTranslation  BoneFlags = 0x0200
	BoneFlagHasFixedAxis            BoneFlags = 0x0400
	BoneFlagHasLocalAxes            BoneFlags = 0x0800
	BoneFlagTransformAfterPhysics   BoneFlags = 0x1000
	BoneFlagTransformExternalParent BoneFlags = 0x2000
)

const pmdBoneSize = 39

type Bone struct {
	Index       int
	Name        string
	EnglishName string
	Origin      mgl32.Vec3
	Parent      int

	// connected bone, pmd child bone
	Destination       int
	DestinationOffset mgl32.Vec3

	// pmd only
	Type   BoneType
	Target int

	// pmx only
	Flags               BoneFlags
	Layer               int32
	InherentParent      int
	InherentCoefficient float32
	FixedAxis           mgl32.Vec3
	LocalAxisX          mgl32.Vec3
	LocalAxisZ          mgl32.Vec3
	ExternalParentKey   int32
	IK                  *IKConstraint

	LocalTranslation mgl32.Vec3
	LocalRotation    mgl32.Quat

	morphTranslation    mgl32.Vec3
	morphRotation       mgl32.Quat
	inherentTranslation mgl32.Vec3
	inherentRotation    mgl32.Quat
	worldTransform      mgl32.Mat4
	skinningTransform   mgl32.Mat4
	simulated           bool
}

func NewBone() *Bone {
	b := &Bone{
		Parent:         -1,
		Destination:    -1,
		Target:         -1,
		InherentParent: -1,
		Flags:          BoneFlagRotatable | BoneFlagVisible | BoneFlagInteractive,
	}
	b.ResetPose()
	return b
}

func (b *Bone) ResetPose() {
	b.LocalTranslation = mgl32.Vec3{}
	b.LocalRotation = mgl32.QuatIdent()
	b.resetMorph()
	b.inherentTranslation = mgl32.Vec3{}
	b.inherentRotation = mgl32.QuatIdent()
	b.worldTransform = mgl32.Translate3D(b.Origin[0], b.Origin[1], b.Origin[2])
	b.skinningTransform = mgl32.Ident4()
}

func (b *Bone) resetMorph() {
	b.morphTranslation = mgl32.Vec3{}
	b.morphRotation = mgl32.QuatIdent()
}

func (b *Bone) SetLocalTranslation(v mgl32.Vec3) {
	b.LocalTranslation = v
}

func (b *Bone) SetLocalRotation(q mgl32.Quat) {
	b.LocalRotation = q.Normalize()
}

func (b *Bone) WorldTransform() mgl32.Mat4 {
	return b.worldTransform
}

// SkinningTransform maps bind pose coordinates to posed world coordinates
func (b *Bone) SkinningTransform() mgl32.Mat4 {
	return b.skinningTransform
}

func (b *Bone) WorldPosition() mgl32.Vec3 {
	return b.worldTransform.Col(3).Vec3()
}

func (b *Bone) WorldRotation() mgl32.Quat {
	return mgl32.Mat4ToQuat(b.worldTransform)
}

func (b *Bone) has(f BoneFlags) bool {
	return b.Flags&f != 0
}

func (b *Bone) IsRotatable() bool { return b.has(BoneFlagRotatable) }
func (b *Bone) IsMovable() bool { return b.has(BoneFlagMovable) }
func (b *Bone) IsVisible() bool { return b.has(BoneFlagVisible) }
func (b *Bone) IsInteractive() bool { return b.has(BoneFlagInteractive) }
func (b *Bone) HasIK() bool { return b.has(BoneFlagHasIK) }
func (b *Bone) HasInherentRotation() bool { return b.has(BoneFlagHasInherentRotation) }
func (b *Bone) HasInherentTranslation() bool { return b.has(BoneFlagHasInherentTranslation) }
func (b *Bone) HasFixedAxis() bool { return b.has(BoneFlagHasFixedAxis) }
func (b *Bone) HasLocalAxes() bool { return b.has(BoneFlagHasLocalAxes) }
func (b *Bone) IsTransformedAfterPhysics() bool { return b.has(BoneFlagTransformAfterPhysics) }

// IsSimulated reports bone is driven by dynamic rigid body
func (b *Bone) IsSimulated() bool {
	return b.simulated
}

// derivePMDFlags fills pmx style flags from pmd type and naming conventions.
// bones collection must be fully read and validated.
func (b *Bone) derivePMDFlags(bones []*Bone, enc config.Encoding) {
	f := BoneFlagRotatable | BoneFlagVisible | BoneFlagInteractive
	switch b.Type {
	case BoneRotateAndMove:
		f |= BoneFlagMovable
	case BoneIKDestination:
		f |= BoneFlagMovable | BoneFlagHasIK
	case BoneUnderIK, BoneIKTarget:
		f &^= BoneFlagInteractive
	case BoneInvisible:
		f &^= BoneFlagVisible | BoneFlagInteractive
	case BoneTwist:
		f |= BoneFlagHasFixedAxis
	case BoneUnderRotate:
		f &^= BoneFlagInteractive | BoneFlagVisible
	case BoneFollowRotate:
		f |= BoneFlagHasInherentRotation
		f &^= BoneFlagInteractive
	}
	if strings.Contains(b.Name, enc.Constant(config.ConstantTwist)) {
		f |= BoneFlagHasFixedAxis
	}
	for _, token := range []config.ConstantType{config.ConstantFinger, config.ConstantArm, config.ConstantElbow, config.ConstantWrist} {
		if strings.Contains(b.Name, enc.Constant(token)) {
			f |= BoneFlagHasLocalAxes
			break
		}
	}
	if b.Destination >= 0 && b.Destination < len(bones) {
		f |= BoneFlagHasDestinationBone
	}
	b.Flags = f

	var axis mgl32.Vec3
	if b.Destination >= 0 && b.Destination < len(bones) {
		axis = bones[b.Destination].Origin.Sub(b.Origin)
		if axis.Len() > 0 {
			axis = axis.Normalize()
		}
	}
	if b.HasFixedAxis() {
		b.FixedAxis = axis
	}
	if b.HasLocalAxes() {
		b.LocalAxisX = axis
		if z := axis.Cross(mgl32.Vec3{0, 1, 0}); z.Len() > 0 {
			b.LocalAxisZ = z.Normalize()
		}
	}
}

// pmd

func preparsePMDBones(r *reader, info *DataInfo) bool {
	count, ok := r.ReadU16()
	if !ok {
		return false
	}
	info.Bones = Section{Offset: r.Pos(), Count: int(count)}
	return r.SkipRecords(int(count), pmdBoneSize)
}

func (b *Bone) readPMD(r *reader) bool {
	var ok [6]bool
	var t uint8
	b.Name, ok[0] = r.readFixedText(20)
	b.Parent, ok[1] = r.readPMDIndex()
	b.Destination, ok[2] = r.readPMDIndex()
	t, ok[3] = r.ReadU8()
	b.Target, ok[4] = r.readPMDIndex()
	b.Origin, ok[5] = r.ReadVec3()
	for _, o := range ok {
		if !o {
			return false
		}
	}
	if BoneType(t) >= maxBoneType {
		return false
	}
	b.Type = BoneType(t)
	b.ResetPose()
	return true
}

func (b *Bone) writePMD(w *writer) {
	w.putFixedText(b.Name, 20)
	w.putPMDIndex(b.Parent)
	w.putPMDIndex(b.Destination)
	w.PutU8(uint8(b.Type))
	w.putPMDIndex(b.Target)
	w.PutVec3(b.Origin)
}

func (b *Bone) estimatePMD(l *layout) int {
	return pmdBoneSize
}

// pmx

func preparsePMXBones(r *reader, info *DataInfo) bool {
	count, ok := r.ReadI32()
	if !ok || count < 0 {
		return false
	}
	info.Bones = Section{Offset: r.Pos(), Count: int(count)}
	bs := info.BoneIndexSize
	for i := 0; i < int(count); i++ {
		if !r.SkipSizedText() || !r.SkipSizedText() || !r.Skip(12+bs+4) {
			return false
		}
		flags16, ok := r.ReadU16()
		if !ok {
			return false
		}
		flags := BoneFlags(flags16)
		skip := 12
		if flags&BoneFlagHasDestinationBone != 0 {
			skip = bs
		}
		if flags&(BoneFlagHasInherentRotation|BoneFlagHasInherentTranslation) != 0 {
			skip += bs + 4
		}
		if flags&BoneFlagHasFixedAxis != 0 {
			skip += 12
		}
		if flags&BoneFlagHasLocalAxes != 0 {
			skip += 24
		}
		if flags&BoneFlagTransformExternalParent != 0 {
			skip += 4
		}
		if !r.Skip(skip) {
			return false
		}
		if flags&BoneFlagHasIK != 0 {
			if !r.Skip(bs + 8) {
				return false
			}
			links, ok := r.ReadI32()
			if !ok || links < 0 {
				return false
			}
			for j := 0; j < int(links); j++ {
				if !r.Skip(bs) {
					return false
				}
				hasLimit, ok := r.ReadU8()
				if !ok || (hasLimit != 0 && !r.Skip(24)) {
					return false
				}
			}
		}
	}
	return true
}

func (b *Bone) readPMX(r *reader) bool {
	var ok bool
	if b.Name, ok = r.readText(); !ok {
		return false
	}
	if b.EnglishName, ok = r.readText(); !ok {
		return false
	}
	if b.Origin, ok = r.ReadVec3(); !ok {
		return false
	}
	if b.Parent, ok = r.readBoneIndex(); !ok {
		return false
	}
	if b.Layer, ok = r.ReadI32(); !ok {
		return false
	}
	flags, ok := r.ReadU16()
	if !ok {
		return false
	}
	b.Flags = BoneFlags(flags)

	if b.has(BoneFlagHasDestinationBone) {
		if b.Destination, ok = r.readBoneIndex(); !ok {
			return false
		}
	} else {
		b.Destination = -1
		if b.DestinationOffset, ok = r.ReadVec3(); !ok {
			return false
		}
	}
	if b.has(BoneFlagHasInherentRotation | BoneFlagHasInherentTranslation) {
		if b.InherentParent, ok = r.readBoneIndex(); !ok {
			return false
		}
		if b.InherentCoefficient, ok = r.ReadF32(); !ok {
			return false
		}
	}
	if b.HasFixedAxis() {
		if b.FixedAxis, ok = r.ReadVec3(); !ok {
			return false
		}
	}
	if b.HasLocalAxes() {
		if b.LocalAxisX, ok = r.ReadVec3(); !ok {
			return false
		}
		if b.LocalAxisZ, ok = r.ReadVec3(); !ok {
			return false
		}
	}
	if b.has(BoneFlagTransformExternalParent) {
		if b.ExternalParentKey, ok = r.ReadI32(); !ok {
			return false
		}
	}
	if b.HasIK() {
		ik := &IKConstraint{Root: b.Index}
		if !ik.readPMX(r) {
			return false
		}
		b.IK = ik
	}
	b.ResetPose()
	return true
}

func (b *Bone) writePMX(w *writer) {
	w.putText(b.Name)
	w.putText(b.EnglishName)
	w.PutVec3(b.Origin)
	w.putBoneIndex(b.Parent)
	w.PutI32(b.Layer)
	w.PutU16(uint16(b.Flags))
	if b.has(BoneFlagHasDestinationBone) {
		w.putBoneIndex(b.Destination)
	} else {
		w.PutVec3(b.DestinationOffset)
	}
	if b.has(BoneFlagHasInherentRotation | BoneFlagHasInherentTranslation) {
		w.putBoneIndex(b.InherentParent)
		w.PutF32(b.InherentCoefficient)
	}
	if b.HasFixedAxis() {
		w.PutVec3(b.FixedAxis)
	}
	if b.HasLocalAxes() {
		w.PutVec3(b.LocalAxisX)
		w.PutVec3(b.LocalAxisZ)
	}
	if b.has(BoneFlagTransformExternalParent) {
		w.PutI32(b.ExternalParentKey)
	}
	if b.HasIK() {
		b.ikConstraint().writePMX(w)
	}
}

func (b *Bone) estimatePMX(l *layout) int {
	bs := l.info.BoneIndexSize
	size := l.textSize(b.Name) + l.textSize(b.EnglishName) + 12 + bs + 4 + 2
	if b.has(BoneFlagHasDestinationBone) {
		size += bs
	} else {
		size += 12
	}
	if b.has(BoneFlagHasInherentRotation | BoneFlagHasInherentTranslation) {
		size += bs + 4
	}
	if b.HasFixedAxis() {
		size += 12
	}
	if b.HasLocalAxes() {
		size += 24
	}
	if b.has(BoneFlagTransformExternalParent) {
		size += 4
	}
	if b.HasIK() {
		size += b.ikConstraint().estimatePMX(l)
	}
	return size
}

// ikConstraint never returns nil for pmx bones flagged with ik
func (b *Bone) ikConstraint() *IKConstraint {
	if b.IK == nil {
		b.IK = &IKConstraint{Root: b.Index, Effector: -1}
	}
	return b.IK
}
