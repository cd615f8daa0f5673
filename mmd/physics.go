package mmd

import (
	"github.com/go-gl/mathgl/mgl32"
)

// World is rigid body simulation the model attaches to.
// Model never calls World concurrently.
type World interface {
	AddRigidBody(body *RigidBody)
	RemoveRigidBody(body *RigidBody)
	AddJoint(joint *Joint)
	RemoveJoint(joint *Joint)
	SetKinematic(body *RigidBody, kinematic bool)
	SetWorldTransform(body *RigidBody, transform mgl32.Mat4)
	WorldTransform(body *RigidBody) mgl32.Mat4
	StepSimulation(timeStep float32)
}

func (m *Model) World() World {
	return m.world
}

// JoinWorld registers bodies and joints, detaching from previous world first
func (m *Model) JoinWorld(world World) {
	if m.world != nil {
		m.LeaveWorld()
	}
	if world == nil {
		return
	}
	m.world = world
	for _, rb := range m.RigidBodies {
		world.AddRigidBody(rb)
		world.SetKinematic(rb, !(m.physicsEnabled && rb.IsDynamic()))
		world.SetWorldTransform(rb, rb.worldTransform)
	}
	for _, j := range m.Joints {
		world.AddJoint(j)
	}
}

func (m *Model) LeaveWorld() {
	if m.world == nil {
		return
	}
	for _, j := range m.Joints {
		m.world.RemoveJoint(j)
	}
	for _, rb := range m.RigidBodies {
		m.world.RemoveRigidBody(rb)
	}
	m.world = nil
}

func (m *Model) IsPhysicsEnabled() bool {
	return m.physicsEnabled
}

// SetPhysicsEnabled switches dynamic bodies between simulation and bone following
func (m *Model) SetPhysicsEnabled(enabled bool) {
	m.physicsEnabled = enabled
	if m.world == nil {
		return
	}
	for _, rb := range m.RigidBodies {
		m.world.SetKinematic(rb, !(enabled && rb.IsDynamic()))
	}
}

func (m *Model) boneFollowTransform(rb *RigidBody) mgl32.Mat4 {
	if b := m.Bone(rb.boundBone); b != nil {
		return b.worldTransform.Mul4(rb.offset)
	}
	return rb.worldTransform
}

func (m *Model) syncKinematicBodies() {
	for _, rb := range m.RigidBodies {
		if !rb.IsDynamic() {
			m.world.SetWorldTransform(rb, m.boneFollowTransform(rb))
		}
	}
}

// syncSimulatedBones writes simulated body placement back into bones
func (m *Model) syncSimulatedBones() {
	for _, rb := range m.RigidBodies {
		b := m.Bone(rb.boundBone)
		if !rb.IsDynamic() || b == nil {
			continue
		}
		rb.worldTransform = m.world.WorldTransform(rb)
		world := rb.worldTransform.Mul4(rb.offset.Inv())
		if rb.Type == RigidBodyAligned {
			position := b.WorldPosition()
			world.SetCol(3, position.Vec4(1))
		}
		b.worldTransform = world
	}
}

// updateRigidBody refreshes cached body transform, safe to run in parallel
func (m *Model) updateRigidBody(rb *RigidBody, physics bool) {
	if physics && rb.IsDynamic() {
		return
	}
	rb.worldTransform = m.boneFollowTransform(rb)
}
