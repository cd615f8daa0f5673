package mmd

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/mmd_browser/utils"
)

// followRotateScale converts pmd follow rotate target field into coefficient
const followRotateScale = 0.01

// topologicalOrder returns bones with every parent placed before its children.
// Relative order of input is kept where possible.
func (m *Model) topologicalOrder(bones []*Bone) []*Bone {
	included := make(map[*Bone]bool, len(bones))
	for _, b := range bones {
		included[b] = true
	}
	visited := make(map[*Bone]bool, len(bones))
	order := make([]*Bone, 0, len(bones))

	var visit func(b *Bone, depth int)
	visit = func(b *Bone, depth int) {
		if visited[b] || depth > len(m.Bones) {
			return
		}
		visited[b] = true
		if parent := m.ParentBone(b); parent != nil && included[parent] {
			visit(parent, depth+1)
		}
		order = append(order, b)
	}
	for _, b := range bones {
		visit(b, 0)
	}
	return order
}

func (m *Model) sortedByLayer(filter func(b *Bone) bool) []*Bone {
	list := make([]*Bone, 0, len(m.Bones))
	for _, b := range m.Bones {
		if filter(b) {
			list = append(list, b)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Layer < list[j].Layer
	})
	return list
}

func (m *Model) hasSimulatedAncestor(b *Bone) bool {
	for p, steps := m.ParentBone(b), 0; p != nil && steps <= len(m.Bones); steps++ {
		if p.simulated {
			return true
		}
		p = m.ParentBone(p)
	}
	return false
}

func (m *Model) rebuildOrders() {
	switch m.format {
	case FormatPMX:
		m.beforePhysics = m.topologicalOrder(m.sortedByLayer(func(b *Bone) bool { return !b.IsTransformedAfterPhysics() }))
		m.afterPhysics = m.topologicalOrder(m.sortedByLayer(func(b *Bone) bool { return b.IsTransformedAfterPhysics() }))
	default:
		m.beforePhysics = m.topologicalOrder(m.Bones)
		after := make([]*Bone, 0)
		for _, b := range m.beforePhysics {
			if !b.simulated && m.hasSimulatedAncestor(b) {
				after = append(after, b)
			}
		}
		m.afterPhysics = after
	}
}

func (m *Model) projectFixedAxis(b *Bone, q mgl32.Quat) mgl32.Quat {
	axis := b.FixedAxis
	if axis.Len() < utils.FuzzyEpsilon {
		return q
	}
	axis = axis.Normalize()
	projected := mgl32.Quat{W: q.W, V: axis.Mul(q.V.Dot(axis))}
	if projected.Len() < utils.FuzzyEpsilon {
		return mgl32.QuatIdent()
	}
	return projected.Normalize()
}

// performTransform recomputes world transform of bone from its parent
func (m *Model) performTransform(b *Bone) {
	rotation := b.LocalRotation.Mul(b.morphRotation)
	translation := b.LocalTranslation.Add(b.morphTranslation)

	switch m.format {
	case FormatPMD:
		switch b.Type {
		case BoneUnderRotate:
			// target local rotation, not world one
			if target := m.Bone(b.Target); target != nil {
				rotation = target.LocalRotation.Mul(rotation)
			}
		case BoneFollowRotate:
			coef := float32(b.Target) * followRotateScale
			rotation = mgl32.QuatSlerp(mgl32.QuatIdent(), rotation, coef)
		}
	case FormatPMX:
		if b.HasFixedAxis() {
			rotation = m.projectFixedAxis(b, rotation)
		}
		if parent := m.Bone(b.InherentParent); parent != nil {
			if b.HasInherentRotation() {
				parentRotation := parent.LocalRotation.Mul(parent.morphRotation)
				if parent.HasInherentRotation() {
					parentRotation = parent.inherentRotation
				}
				inherent := mgl32.QuatSlerp(mgl32.QuatIdent(), parentRotation, b.InherentCoefficient)
				rotation = inherent.Mul(rotation)
			}
			if b.HasInherentTranslation() {
				parentTranslation := parent.LocalTranslation.Add(parent.morphTranslation)
				if parent.HasInherentTranslation() {
					parentTranslation = parent.inherentTranslation
				}
				translation = translation.Add(parentTranslation.Mul(b.InherentCoefficient))
			}
		}
	}
	b.inherentRotation = rotation
	b.inherentTranslation = translation

	offset := b.Origin
	parentWorld := mgl32.Ident4()
	if parent := m.ParentBone(b); parent != nil {
		offset = offset.Sub(parent.Origin)
		parentWorld = parent.worldTransform
	}
	offset = offset.Add(translation)

	b.worldTransform = parentWorld.
		Mul4(mgl32.Translate3D(offset[0], offset[1], offset[2])).
		Mul4(rotation.Normalize().Mat4())
}

// PerformTransform recomputes world and skinning transforms of single bone.
// Parent world transform must be current.
func (m *Model) PerformTransform(b *Bone) {
	m.performTransform(b)
	b.updateSkinningTransform()
}

func (b *Bone) updateSkinningTransform() {
	o := b.Origin
	b.skinningTransform = b.worldTransform.Mul4(mgl32.Translate3D(-o[0], -o[1], -o[2]))
}

// PerformUpdate resolves pose of whole model.
// Stages run strictly one after another.
func (m *Model) PerformUpdate(timeStep float32) {
	utils.ParallelFor(len(m.Vertices), m.workers, func(i int) {
		m.Vertices[i].ResetMorphs()
	})
	m.resetMorphTargets()
	m.applyMorphs()

	for _, b := range m.beforePhysics {
		m.performTransform(b)
	}
	for _, c := range m.IKConstraints {
		m.SolveIK(c)
	}
	// descendants of ik chains follow solved joints
	if len(m.IKConstraints) > 0 {
		for _, b := range m.beforePhysics {
			m.performTransform(b)
		}
	}

	physics := m.world != nil && m.physicsEnabled
	if physics {
		m.syncKinematicBodies()
		m.world.StepSimulation(timeStep)
		m.syncSimulatedBones()
	}
	for _, b := range m.afterPhysics {
		if physics && b.simulated {
			continue
		}
		m.performTransform(b)
	}

	utils.ParallelFor(len(m.Bones), m.workers, func(i int) {
		m.Bones[i].updateSkinningTransform()
	})
	utils.ParallelFor(len(m.RigidBodies), m.workers, func(i int) {
		m.updateRigidBody(m.RigidBodies[i], physics)
	})
}
