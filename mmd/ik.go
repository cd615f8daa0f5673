package mmd

import (
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/mmd_browser/config"
	"github.com/mogaika/mmd_browser/utils"
)

const (
	ikMinRotationSum = 0.002
	ikMinRotation    = 0.00001
	ikMinDistance    = 0.0001

	// iterations beyond this make single update unbounded
	maxIKIterations = 4096
)

type IKJoint struct {
	Bone          int
	HasAngleLimit bool
	LowerLimit    mgl32.Vec3
	UpperLimit    mgl32.Vec3

	axisXAligned bool
}

// IKConstraint pulls effector bone to root bone position by rotating joints.
// Joints are ordered from effector side to root side.
type IKConstraint struct {
	Root       int
	Effector   int
	Joints     []IKJoint
	Iterations int
	AngleLimit float32
}

func (c *IKConstraint) validate(boneCount int) bool {
	if c.Iterations < 0 || c.Iterations > maxIKIterations {
		return false
	}
	if c.Root < 0 || c.Root >= boneCount || c.Effector < 0 || c.Effector >= boneCount {
		return false
	}
	for _, j := range c.Joints {
		if j.Bone < 0 || j.Bone >= boneCount {
			return false
		}
	}
	return true
}

// pmd detects knee joints by name, pmx by x only angle limits
func (c *IKConstraint) detectAxisXAlignment(format Format, bones []*Bone, enc config.Encoding) {
	knee := enc.Constant(config.ConstantKnee)
	for i := range c.Joints {
		j := &c.Joints[i]
		switch format {
		case FormatPMD:
			j.axisXAligned = strings.Contains(bones[j.Bone].Name, knee)
		case FormatPMX:
			j.axisXAligned = j.HasAngleLimit &&
				j.LowerLimit[1] == 0 && j.UpperLimit[1] == 0 &&
				j.LowerLimit[2] == 0 && j.UpperLimit[2] == 0 &&
				(j.LowerLimit[0] != 0 || j.UpperLimit[0] != 0)
		}
	}
}

// pmd

func preparsePMDIKConstraints(r *reader, info *DataInfo) bool {
	count, ok := r.ReadU16()
	if !ok {
		return false
	}
	info.IKConstraints = Section{Offset: r.Pos(), Count: int(count)}
	for i := 0; i < int(count); i++ {
		if !r.Skip(4) {
			return false
		}
		links, ok := r.ReadU8()
		if !ok || !r.Skip(6) || !r.SkipRecords(int(links), 2) {
			return false
		}
	}
	return true
}

func (c *IKConstraint) readPMD(r *reader) bool {
	var ok [5]bool
	var links uint8
	var iterations uint16
	c.Root, ok[0] = r.readPMDIndex()
	c.Effector, ok[1] = r.readPMDIndex()
	links, ok[2] = r.ReadU8()
	iterations, ok[3] = r.ReadU16()
	c.AngleLimit, ok[4] = r.ReadF32()
	for _, o := range ok {
		if !o {
			return false
		}
	}
	c.Iterations = int(iterations)
	c.Joints = make([]IKJoint, links)
	for i := range c.Joints {
		var o bool
		if c.Joints[i].Bone, o = r.readPMDIndex(); !o {
			return false
		}
	}
	return true
}

func (c *IKConstraint) writePMD(w *writer) {
	w.putPMDIndex(c.Root)
	w.putPMDIndex(c.Effector)
	w.PutU8(uint8(len(c.Joints)))
	w.PutU16(uint16(c.Iterations))
	w.PutF32(c.AngleLimit)
	for _, j := range c.Joints {
		w.putPMDIndex(j.Bone)
	}
}

func (c *IKConstraint) estimatePMD(l *layout) int {
	return 11 + 2*len(c.Joints)
}

// pmx, stored inside root bone record

func (c *IKConstraint) readPMX(r *reader) bool {
	var ok bool
	if c.Effector, ok = r.readBoneIndex(); !ok {
		return false
	}
	iterations, ok := r.ReadI32()
	if !ok || iterations < 0 {
		return false
	}
	c.Iterations = int(iterations)
	if c.AngleLimit, ok = r.ReadF32(); !ok {
		return false
	}
	links, ok := r.ReadI32()
	if !ok || links < 0 || int(links) > r.Rest() {
		return false
	}
	c.Joints = make([]IKJoint, links)
	for i := range c.Joints {
		j := &c.Joints[i]
		if j.Bone, ok = r.readBoneIndex(); !ok {
			return false
		}
		hasLimit, ok := r.ReadU8()
		if !ok {
			return false
		}
		j.HasAngleLimit = hasLimit != 0
		if j.HasAngleLimit {
			if j.LowerLimit, ok = r.ReadVec3(); !ok {
				return false
			}
			if j.UpperLimit, ok = r.ReadVec3(); !ok {
				return false
			}
		}
	}
	return true
}

func (c *IKConstraint) writePMX(w *writer) {
	w.putBoneIndex(c.Effector)
	w.PutI32(int32(c.Iterations))
	w.PutF32(c.AngleLimit)
	w.PutI32(int32(len(c.Joints)))
	for _, j := range c.Joints {
		w.putBoneIndex(j.Bone)
		w.PutU8(boolByte(j.HasAngleLimit))
		if j.HasAngleLimit {
			w.PutVec3(j.LowerLimit)
			w.PutVec3(j.UpperLimit)
		}
	}
}

func (c *IKConstraint) estimatePMX(l *layout) int {
	size := l.info.BoneIndexSize + 12
	for _, j := range c.Joints {
		size += l.info.BoneIndexSize + 1
		if j.HasAngleLimit {
			size += 24
		}
	}
	return size
}

// solver

// ikFrame returns transform joint local directions are measured in.
// pmd measures in joint space, pmx in joint space before own rotation.
func (m *Model) ikFrame(bone *Bone) mgl32.Mat4 {
	if m.format == FormatPMX {
		return bone.worldTransform.Mul4(bone.LocalRotation.Mul(bone.morphRotation).Inverse().Mat4())
	}
	return bone.worldTransform
}

// SolveIK runs ccd solver of single constraint over current pose.
// Chain and effector get fresh skinning transforms, other descendants wait for PerformUpdate.
func (m *Model) SolveIK(c *IKConstraint) {
	if !c.validate(len(m.Bones)) {
		return
	}
	root := m.Bones[c.Root]
	effector := m.Bones[c.Effector]
	effectorRotation := effector.LocalRotation
	rootPosition := root.WorldPosition()

	for i := 0; i < c.Iterations; i++ {
		for j := range c.Joints {
			joint := &c.Joints[j]
			bone := m.Bones[joint.Bone]

			inverse := m.ikFrame(bone).Inv()
			localRoot := utils.TransformCoord(inverse, rootPosition)
			localEffector := utils.TransformCoord(inverse, effector.WorldPosition())
			if localRoot.Len() < ikMinDistance || localEffector.Len() < ikMinDistance {
				continue
			}
			localRoot = localRoot.Normalize()
			localEffector = localEffector.Normalize()

			dot := localRoot.Dot(localEffector)
			if utils.FuzzyZero(dot) {
				continue
			}
			limit := c.AngleLimit * float32(j+1) * 2
			angle := utils.Clamp(float32(math.Acos(float64(utils.Clamp(dot, -1, 1)))), -limit, limit)
			if utils.FuzzyZero(angle) {
				continue
			}
			axis := localEffector.Cross(localRoot)
			if axis.Len() < utils.FuzzyEpsilon {
				continue
			}
			axis = axis.Normalize()

			if joint.axisXAligned {
				if !m.rotateAxisXAligned(bone, joint, i, angle, axis, limit) {
					continue
				}
			} else {
				q := mgl32.QuatRotate(angle, axis)
				if m.format == FormatPMX {
					bone.LocalRotation = q.Mul(bone.LocalRotation)
					if joint.HasAngleLimit {
						bone.LocalRotation = clampEuler(bone.LocalRotation, joint.LowerLimit, joint.UpperLimit)
					}
				} else {
					bone.LocalRotation = bone.LocalRotation.Mul(q)
				}
			}
			bone.LocalRotation = bone.LocalRotation.Normalize()

			for k := j; k >= 0; k-- {
				m.performTransform(m.Bones[c.Joints[k].Bone])
			}
			m.performTransform(effector)
		}
	}

	effector.LocalRotation = effectorRotation
	m.performTransform(effector)
	for _, joint := range c.Joints {
		m.Bones[joint.Bone].updateSkinningTransform()
	}
	effector.updateSkinningTransform()
}

// rotateAxisXAligned handles knee like joints, returns false when joint is left untouched
func (m *Model) rotateAxisXAligned(bone *Bone, joint *IKJoint, iteration int, angle float32, axis mgl32.Vec3, limit float32) bool {
	lower, upper := float32(-math.Pi), float32(math.Pi)
	if m.format == FormatPMX {
		lower, upper = joint.LowerLimit[0], joint.UpperLimit[0]
	}

	current := utils.EulerZYX(bone.LocalRotation.Mat4().Mat3())[0]

	if iteration == 0 {
		x := utils.Abs(angle)
		if upper <= 0 && lower < 0 {
			x = -x
		}
		bone.LocalRotation = mgl32.QuatRotate(utils.Clamp(x, lower, upper), mgl32.Vec3{1, 0, 0})
		return true
	}

	x := utils.EulerZYX(mgl32.QuatRotate(angle, axis).Mat4().Mat3())[0]
	if m.format == FormatPMX {
		x = utils.Clamp(current+x, lower, upper) - current
	} else {
		if x+current > math.Pi {
			x = math.Pi - current
		}
		if x+current < ikMinRotationSum {
			x = ikMinRotationSum - current
		}
	}
	x = utils.Clamp(x, -limit, limit)
	if utils.Abs(x) < ikMinRotation {
		return false
	}
	bone.LocalRotation = mgl32.QuatRotate(current+x, mgl32.Vec3{1, 0, 0})
	return true
}

func clampEuler(q mgl32.Quat, lower, upper mgl32.Vec3) mgl32.Quat {
	e := utils.EulerZYX(q.Mat4().Mat3())
	for i := range e {
		lo, hi := lower[i], upper[i]
		if lo > hi {
			lo, hi = hi, lo
		}
		e[i] = utils.Clamp(e[i], lo, hi)
	}
	return utils.FromEulerZYX(e)
}
