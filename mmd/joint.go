package mmd

import (
	"github.com/go-gl/mathgl/mgl32"
)

const (
	pmdJointSize       = 124
	pmxJointParamsSize = 96
	JointSpring6DOF    = 0
)

// Joint constrains two rigid bodies
type Joint struct {
	Index             int
	Name              string
	EnglishName       string
	Type              uint8
	RigidBodyA        int
	RigidBodyB        int
	Position          mgl32.Vec3
	Rotation          mgl32.Vec3
	PositionLower     mgl32.Vec3
	PositionUpper     mgl32.Vec3
	RotationLower     mgl32.Vec3
	RotationUpper     mgl32.Vec3
	PositionStiffness mgl32.Vec3
	RotationStiffness mgl32.Vec3
}

func (j *Joint) params() []*mgl32.Vec3 {
	return []*mgl32.Vec3{
		&j.Position, &j.Rotation, &j.PositionLower, &j.PositionUpper,
		&j.RotationLower, &j.RotationUpper, &j.PositionStiffness, &j.RotationStiffness,
	}
}

func (j *Joint) readParams(r *reader) bool {
	for _, p := range j.params() {
		v, ok := r.ReadVec3()
		if !ok {
			return false
		}
		*p = v
	}
	return true
}

func (j *Joint) writeParams(w *writer) {
	for _, p := range j.params() {
		w.PutVec3(*p)
	}
}

func (j *Joint) validate(bodyCount int) bool {
	return j.RigidBodyA >= 0 && j.RigidBodyA < bodyCount && j.RigidBodyB >= 0 && j.RigidBodyB < bodyCount
}

// pmd

func preparsePMDJoints(r *reader, info *DataInfo) bool {
	count, ok := r.ReadU32()
	if !ok {
		return false
	}
	info.Joints = Section{Offset: r.Pos(), Count: int(count)}
	return r.SkipRecords(int(count), pmdJointSize)
}

func (j *Joint) readPMD(r *reader) bool {
	var ok [3]bool
	var a, b int32
	j.Name, ok[0] = r.readFixedText(20)
	a, ok[1] = r.ReadI32()
	b, ok[2] = r.ReadI32()
	for _, o := range ok {
		if !o {
			return false
		}
	}
	j.RigidBodyA, j.RigidBodyB = int(a), int(b)
	j.Type = JointSpring6DOF
	return j.readParams(r)
}

func (j *Joint) writePMD(w *writer) {
	w.putFixedText(j.Name, 20)
	w.PutI32(int32(j.RigidBodyA))
	w.PutI32(int32(j.RigidBodyB))
	j.writeParams(w)
}

func (j *Joint) estimatePMD(l *layout) int {
	return pmdJointSize
}

// pmx

func preparsePMXJoints(r *reader, info *DataInfo) bool {
	count, ok := r.ReadI32()
	if !ok || count < 0 {
		return false
	}
	info.Joints = Section{Offset: r.Pos(), Count: int(count)}
	for i := 0; i < int(count); i++ {
		if !r.SkipSizedText() || !r.SkipSizedText() || !r.Skip(1+2*info.RigidBodyIndexSize+pmxJointParamsSize) {
			return false
		}
	}
	return true
}

func (j *Joint) readPMX(r *reader) bool {
	var ok [5]bool
	j.Name, ok[0] = r.readText()
	j.EnglishName, ok[1] = r.readText()
	j.Type, ok[2] = r.ReadU8()
	j.RigidBodyA, ok[3] = r.readRigidBodyIndex()
	j.RigidBodyB, ok[4] = r.readRigidBodyIndex()
	for _, o := range ok {
		if !o {
			return false
		}
	}
	return j.readParams(r)
}

func (j *Joint) writePMX(w *writer) {
	w.putText(j.Name)
	w.putText(j.EnglishName)
	w.PutU8(j.Type)
	w.putRigidBodyIndex(j.RigidBodyA)
	w.putRigidBodyIndex(j.RigidBodyB)
	j.writeParams(w)
}

func (j *Joint) estimatePMX(l *layout) int {
	return l.textSize(j.Name) + l.textSize(j.EnglishName) + 1 + 2*l.info.RigidBodyIndexSize + pmxJointParamsSize
}
