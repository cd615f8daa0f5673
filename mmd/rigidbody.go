package mmd

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/mmd_browser/utils"
)

type RigidBodyShape uint8

const (
	ShapeSphere RigidBodyShape = iota
	ShapeBox
	ShapeCapsule
	maxRigidBodyShape
)

type RigidBodyType uint8

const (
	// follows bone
	RigidBodyKinematic RigidBodyType = iota
	// drives bone
	RigidBodyDynamic
	// drives bone rotation only
	RigidBodyAligned
	maxRigidBodyType
)

const (
	pmdRigidBodySize = 83
	// pmd bodies with this bone index are bound to center bone
	pmdCenterBoneIndex = 0xffff
	// pmd bodies of removed bones, out of range of any saved model
	pmdUnlinkedBoneIndex = 0xfffe
)

type RigidBody struct {
	Index          int
	Name           string
	EnglishName    string
	Bone           int
	CollisionGroup uint8
	CollisionMask  uint16
	Shape          RigidBodyShape
	Size           mgl32.Vec3
	Position       mgl32.Vec3
	Rotation       mgl32.Vec3
	Mass           float32
	LinearDamping  float32
	AngularDamping float32
	Restitution    float32
	Friction       float32
	Type           RigidBodyType

	// bone the body is linked to after validation, -1 for none
	boundBone int
	// body transform relative to bone bind pose
	offset         mgl32.Mat4
	worldTransform mgl32.Mat4
}

func NewRigidBody() *RigidBody {
	return &RigidBody{Bone: -1, boundBone: -1, offset: mgl32.Ident4(), worldTransform: mgl32.Ident4()}
}

func (rb *RigidBody) BoundBone() int {
	return rb.boundBone
}

func (rb *RigidBody) WorldTransform() mgl32.Mat4 {
	return rb.worldTransform
}

func (rb *RigidBody) IsDynamic() bool {
	return rb.Type == RigidBodyDynamic || rb.Type == RigidBodyAligned
}

// bind computes body placement relative to bone. pmd stores position relative to bone origin.
func (rb *RigidBody) bind(format Format, bones []*Bone) {
	var boneOrigin mgl32.Vec3
	if rb.boundBone >= 0 {
		boneOrigin = bones[rb.boundBone].Origin
	}
	position := rb.Position
	if format == FormatPMD {
		position = position.Add(boneOrigin)
	}
	world := mgl32.Translate3D(position[0], position[1], position[2]).Mul4(utils.FromEulerZYX(rb.Rotation).Mat4())
	rb.offset = mgl32.Translate3D(-boneOrigin[0], -boneOrigin[1], -boneOrigin[2]).Mul4(world)
	rb.worldTransform = world
}

// pmd

func preparsePMDRigidBodies(r *reader, info *DataInfo) bool {
	count, ok := r.ReadU32()
	if !ok {
		return false
	}
	info.RigidBodies = Section{Offset: r.Pos(), Count: int(count)}
	return r.SkipRecords(int(count), pmdRigidBodySize)
}

func (rb *RigidBody) readPMD(r *reader) bool {
	var ok [15]bool
	var bone uint16
	var shape, kind uint8
	rb.Name, ok[0] = r.readFixedText(20)
	bone, ok[1] = r.ReadU16()
	rb.CollisionGroup, ok[2] = r.ReadU8()
	rb.CollisionMask, ok[3] = r.ReadU16()
	shape, ok[4] = r.ReadU8()
	rb.Size, ok[5] = r.ReadVec3()
	rb.Position, ok[6] = r.ReadVec3()
	rb.Rotation, ok[7] = r.ReadVec3()
	rb.Mass, ok[8] = r.ReadF32()
	rb.LinearDamping, ok[9] = r.ReadF32()
	rb.AngularDamping, ok[10] = r.ReadF32()
	rb.Restitution, ok[11] = r.ReadF32()
	rb.Friction, ok[12] = r.ReadF32()
	kind, ok[13] = r.ReadU8()
	ok[14] = RigidBodyShape(shape) < maxRigidBodyShape && RigidBodyType(kind) < maxRigidBodyType
	for _, o := range ok {
		if !o {
			return false
		}
	}
	// raw value is kept so center bone binding survives save
	rb.Bone = int(bone)
	rb.Shape = RigidBodyShape(shape)
	rb.Type = RigidBodyType(kind)
	return true
}

func (rb *RigidBody) writePMD(w *writer) {
	w.putFixedText(rb.Name, 20)
	w.PutU16(uint16(rb.Bone))
	rb.writeParams(w)
}

func (rb *RigidBody) writeParams(w *writer) {
	w.PutU8(rb.CollisionGroup)
	w.PutU16(rb.CollisionMask)
	w.PutU8(uint8(rb.Shape))
	w.PutVec3(rb.Size)
	w.PutVec3(rb.Position)
	w.PutVec3(rb.Rotation)
	w.PutF32(rb.Mass)
	w.PutF32(rb.LinearDamping)
	w.PutF32(rb.AngularDamping)
	w.PutF32(rb.Restitution)
	w.PutF32(rb.Friction)
	w.PutU8(uint8(rb.Type))
}

func (rb *RigidBody) estimatePMD(l *layout) int {
	return pmdRigidBodySize
}

// pmx

const pmxRigidBodyParamsSize = 1 + 2 + 1 + 36 + 20 + 1

func preparsePMXRigidBodies(r *reader, info *DataInfo) bool {
	count, ok := r.ReadI32()
	if !ok || count < 0 {
		return false
	}
	info.RigidBodies = Section{Offset: r.Pos(), Count: int(count)}
	for i := 0; i < int(count); i++ {
		if !r.SkipSizedText() || !r.SkipSizedText() || !r.Skip(info.BoneIndexSize+pmxRigidBodyParamsSize) {
			return false
		}
	}
	return true
}

func (rb *RigidBody) readPMX(r *reader) bool {
	var ok [16]bool
	var shape, kind uint8
	rb.Name, ok[0] = r.readText()
	rb.EnglishName, ok[1] = r.readText()
	rb.Bone, ok[2] = r.readBoneIndex()
	rb.CollisionGroup, ok[3] = r.ReadU8()
	rb.CollisionMask, ok[4] = r.ReadU16()
	shape, ok[5] = r.ReadU8()
	rb.Size, ok[6] = r.ReadVec3()
	rb.Position, ok[7] = r.ReadVec3()
	rb.Rotation, ok[8] = r.ReadVec3()
	rb.Mass, ok[9] = r.ReadF32()
	rb.LinearDamping, ok[10] = r.ReadF32()
	rb.AngularDamping, ok[11] = r.ReadF32()
	rb.Restitution, ok[12] = r.ReadF32()
	rb.Friction, ok[13] = r.ReadF32()
	kind, ok[14] = r.ReadU8()
	ok[15] = RigidBodyShape(shape) < maxRigidBodyShape && RigidBodyType(kind) < maxRigidBodyType
	for _, o := range ok {
		if !o {
			return false
		}
	}
	rb.Shape = RigidBodyShape(shape)
	rb.Type = RigidBodyType(kind)
	return true
}

func (rb *RigidBody) writePMX(w *writer) {
	w.putText(rb.Name)
	w.putText(rb.EnglishName)
	w.putBoneIndex(rb.Bone)
	rb.writeParams(w)
}

func (rb *RigidBody) estimatePMX(l *layout) int {
	return l.textSize(rb.Name) + l.textSize(rb.EnglishName) + l.info.BoneIndexSize + pmxRigidBodyParamsSize
}
