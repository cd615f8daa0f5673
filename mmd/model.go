package mmd

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/mmd_browser/config"
	"github.com/mogaika/mmd_browser/utils"
)

type State int

const (
	StateUnloaded State = iota
	StatePreparsed
	StateLinked
	StateReady
)

type ObjectType int

const (
	ObjectVertex ObjectType = iota
	ObjectIndex
	ObjectTexture
	ObjectMaterial
	ObjectBone
	ObjectIKConstraint
	ObjectMorph
	ObjectLabel
	ObjectRigidBody
	ObjectJoint
)

const pmdToonTextureCount = 10

type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

type Model struct {
	format           Format
	Version          float32
	Codec            config.Codec
	AdditionalUVSize int

	Name           string
	EnglishName    string
	Comment        string
	EnglishComment string

	Vertices      []*Vertex
	Indices       []int
	Textures      []string
	Materials     []*Material
	Bones         []*Bone
	IKConstraints []*IKConstraint
	Morphs        []*Morph
	Labels        []*Label
	RigidBodies   []*RigidBody
	Joints        []*Joint

	// pmd only
	HasEnglish         bool
	CustomToonTextures [pmdToonTextureCount]string

	bonesByName   map[string]*Bone
	morphsByName  map[string]*Morph
	beforePhysics []*Bone
	afterPhysics  []*Bone

	opacity       float32
	scaleFactor   float32
	edgeWidth     float32
	worldPosition mgl32.Vec3
	worldRotation mgl32.Quat
	aabb          AABB

	lastError ErrorType
	state     State

	enc            config.Encoding
	rawText        map[string][]byte
	rawCodec       config.Codec
	world          World
	physicsEnabled bool
	workers        int
	names          utils.RandomNameGenerator
}

// NewModel creates empty model, nil encoding means default one
func NewModel(enc config.Encoding) *Model {
	if enc == nil {
		enc = config.DefaultEncoding()
	}
	m := &Model{
		enc:           enc,
		workers:       1,
		Codec:         config.CodecUTF16,
		Version:       pmxVersion,
		format:        FormatPMX,
		opacity:       1,
		scaleFactor:   1,
		edgeWidth:     1,
		worldRotation: mgl32.QuatIdent(),
		bonesByName:   make(map[string]*Bone),
		morphsByName:  make(map[string]*Morph),
	}
	return m
}

// emptyCopy keeps runtime settings, drops data
func (m *Model) emptyCopy() *Model {
	next := NewModel(m.enc)
	next.workers = m.workers
	next.physicsEnabled = m.physicsEnabled
	next.opacity = m.opacity
	next.scaleFactor = m.scaleFactor
	next.edgeWidth = m.edgeWidth
	next.worldPosition = m.worldPosition
	next.worldRotation = m.worldRotation
	return next
}

func (m *Model) Format() Format { return m.format }

func (m *Model) State() State { return m.state }

// Error returns code of most recent failure
func (m *Model) Error() ErrorType { return m.lastError }

func (m *Model) Encoding() config.Encoding { return m.enc }

func (m *Model) AABB() AABB { return m.aabb }

func (m *Model) Opacity() float32 { return m.opacity }

func (m *Model) SetOpacity(v float32) { m.opacity = utils.Clamp(v, 0, 1) }

func (m *Model) ScaleFactor() float32 { return m.scaleFactor }

func (m *Model) SetScaleFactor(v float32) { m.scaleFactor = v }

func (m *Model) EdgeWidth() float32 { return m.edgeWidth }

func (m *Model) SetEdgeWidth(v float32) { m.edgeWidth = v }

func (m *Model) WorldPosition() mgl32.Vec3 { return m.worldPosition }

func (m *Model) SetWorldPosition(v mgl32.Vec3) { m.worldPosition = v }

func (m *Model) WorldRotation() mgl32.Quat { return m.worldRotation }

func (m *Model) SetWorldRotation(q mgl32.Quat) { m.worldRotation = q.Normalize() }

// WorldTransform places model into scene
func (m *Model) WorldTransform() mgl32.Mat4 {
	p := m.worldPosition
	return mgl32.Translate3D(p[0], p[1], p[2]).
		Mul4(m.worldRotation.Mat4()).
		Mul4(mgl32.Scale3D(m.scaleFactor, m.scaleFactor, m.scaleFactor))
}

// SetParallel sets amount of workers for bulk per frame operations
func (m *Model) SetParallel(workers int) {
	if workers < 1 {
		workers = 1
	}
	m.workers = workers
}

func (m *Model) Count(t ObjectType) int {
	switch t {
	case ObjectVertex:
		return len(m.Vertices)
	case ObjectIndex:
		return len(m.Indices)
	case ObjectTexture:
		return len(m.Textures)
	case ObjectMaterial:
		return len(m.Materials)
	case ObjectBone:
		return len(m.Bones)
	case ObjectIKConstraint:
		return len(m.IKConstraints)
	case ObjectMorph:
		return len(m.Morphs)
	case ObjectLabel:
		return len(m.Labels)
	case ObjectRigidBody:
		return len(m.RigidBodies)
	case ObjectJoint:
		return len(m.Joints)
	}
	return 0
}

func (m *Model) FindBone(name string) *Bone {
	return m.bonesByName[name]
}

func (m *Model) FindMorph(name string) *Morph {
	return m.morphsByName[name]
}

func (m *Model) Bone(i int) *Bone {
	if i < 0 || i >= len(m.Bones) {
		return nil
	}
	return m.Bones[i]
}

func (m *Model) Morph(i int) *Morph {
	if i < 0 || i >= len(m.Morphs) {
		return nil
	}
	return m.Morphs[i]
}

func (m *Model) Material(i int) *Material {
	if i < 0 || i >= len(m.Materials) {
		return nil
	}
	return m.Materials[i]
}

func (m *Model) RigidBody(i int) *RigidBody {
	if i < 0 || i >= len(m.RigidBodies) {
		return nil
	}
	return m.RigidBodies[i]
}

func (m *Model) ParentBone(b *Bone) *Bone {
	return m.Bone(b.Parent)
}

func (m *Model) BeforePhysicsBones() []*Bone {
	return m.beforePhysics
}

func (m *Model) AfterPhysicsBones() []*Bone {
	return m.afterPhysics
}

// HasBoneLoopChain reports whether making parent the parent of bone creates cycle
func (m *Model) HasBoneLoopChain(bone, parent *Bone) bool {
	if bone == nil || parent == nil {
		return false
	}
	for p, steps := parent, 0; p != nil; steps++ {
		if p == bone || steps > len(m.Bones) {
			return true
		}
		p = m.Bone(p.Parent)
	}
	return false
}

func (m *Model) SetParent(bone, parent *Bone) error {
	if parent == nil {
		bone.Parent = -1
	} else {
		if m.HasBoneLoopChain(bone, parent) {
			return errors.Errorf("Bone %q can't be parented to %q: loop chain", bone.Name, parent.Name)
		}
		bone.Parent = parent.Index
	}
	m.rebuildOrders()
	return nil
}

func (m *Model) rebuildNames() {
	m.bonesByName = make(map[string]*Bone, len(m.Bones))
	for _, b := range m.Bones {
		m.names.Reserve(b.Name)
		if _, exists := m.bonesByName[b.Name]; !exists {
			m.bonesByName[b.Name] = b
		}
	}
	m.morphsByName = make(map[string]*Morph, len(m.Morphs))
	for _, morph := range m.Morphs {
		m.names.Reserve(morph.Name)
		if _, exists := m.morphsByName[morph.Name]; !exists {
			m.morphsByName[morph.Name] = morph
		}
	}
}

func (m *Model) uniqueName(used func(string) bool) string {
	for {
		if name := m.names.RandomName(); !used(name) {
			return name
		}
	}
}

// AddBone appends bone, bones without name get generated one
func (m *Model) AddBone(b *Bone) error {
	if b.Name == "" {
		b.Name = m.uniqueName(func(s string) bool { return m.bonesByName[s] != nil })
	}
	if b.Parent >= len(m.Bones) || b.Parent < -1 {
		return errors.Errorf("Bone %q parent %d out of range", b.Name, b.Parent)
	}
	b.Index = len(m.Bones)
	m.Bones = append(m.Bones, b)
	m.rebuildNames()
	m.rebuildOrders()
	return nil
}

func (m *Model) RemoveBone(b *Bone) {
	removed := b.Index
	if m.Bone(removed) != b {
		return
	}
	m.Bones = append(m.Bones[:removed], m.Bones[removed+1:]...)
	for i, bone := range m.Bones {
		bone.Index = i
	}
	m.remapBoneReferences(func(i int) int {
		switch {
		case i == removed:
			return -1
		case i > removed:
			return i - 1
		}
		return i
	})
	m.rebuildNames()
	m.rebuildOrders()
}

func (m *Model) remapBoneReferences(remap func(int) int) {
	for _, b := range m.Bones {
		b.Parent = remap(b.Parent)
		b.Destination = remap(b.Destination)
		if b.Type != BoneFollowRotate {
			b.Target = remap(b.Target)
		}
		b.InherentParent = remap(b.InherentParent)
	}
	for _, v := range m.Vertices {
		for i := range v.Bones {
			v.Bones[i] = remap(v.Bones[i])
		}
	}
	iks := m.IKConstraints[:0]
	for _, c := range m.IKConstraints {
		c.Root, c.Effector = remap(c.Root), remap(c.Effector)
		joints := c.Joints[:0]
		for _, j := range c.Joints {
			if j.Bone = remap(j.Bone); j.Bone >= 0 {
				joints = append(joints, j)
			}
		}
		c.Joints = joints
		if c.Root >= 0 && c.Effector >= 0 {
			iks = append(iks, c)
		} else if root := m.Bone(c.Root); root != nil {
			root.IK = nil
			root.Flags &^= BoneFlagHasIK
		}
	}
	m.IKConstraints = iks
	for _, morph := range m.Morphs {
		bones := morph.Bones[:0]
		for _, bm := range morph.Bones {
			if bm.Bone = remap(bm.Bone); bm.Bone >= 0 {
				bones = append(bones, bm)
			}
		}
		morph.Bones = bones
	}
	for _, l := range m.Labels {
		elements := l.Elements[:0]
		for _, e := range l.Elements {
			if e.Kind == LabelBone {
				if e.Index = remap(e.Index); e.Index < 0 {
					continue
				}
			}
			elements = append(elements, e)
		}
		l.Elements = elements
	}
	for _, rb := range m.RigidBodies {
		rb.boundBone = remap(rb.boundBone)
		if m.format != FormatPMD {
			rb.Bone = remap(rb.Bone)
			continue
		}
		if rb.Bone == pmdCenterBoneIndex || rb.Bone == pmdUnlinkedBoneIndex {
			continue
		}
		if rb.Bone = remap(rb.Bone); rb.Bone < 0 {
			rb.Bone = pmdUnlinkedBoneIndex
		}
	}
}

// AddMorph appends morph, its references must point to existing objects
func (m *Model) AddMorph(morph *Morph) error {
	if morph.Name == "" {
		morph.Name = m.uniqueName(func(s string) bool { return m.morphsByName[s] != nil })
	}
	morph.Index = len(m.Morphs)
	m.Morphs = append(m.Morphs, morph)
	if err := m.linkMorphs(); err != nil {
		m.Morphs = m.Morphs[:morph.Index]
		return err
	}
	m.rebuildNames()
	return nil
}

func (m *Model) RemoveMorph(morph *Morph) {
	removed := morph.Index
	if m.Morph(removed) != morph {
		return
	}
	m.Morphs = append(m.Morphs[:removed], m.Morphs[removed+1:]...)
	remap := func(i int) int {
		switch {
		case i == removed:
			return -1
		case i > removed:
			return i - 1
		}
		return i
	}
	for i, mo := range m.Morphs {
		mo.Index = i
		mo.Groups = remapGroupMorphs(mo.Groups, remap)
		mo.Flips = remapGroupMorphs(mo.Flips, remap)
	}
	for _, l := range m.Labels {
		elements := l.Elements[:0]
		for _, e := range l.Elements {
			if e.Kind == LabelMorph {
				if e.Index = remap(e.Index); e.Index < 0 {
					continue
				}
			}
			elements = append(elements, e)
		}
		l.Elements = elements
	}
	m.rebuildNames()
}

func remapGroupMorphs(list []GroupMorph, remap func(int) int) []GroupMorph {
	out := list[:0]
	for _, g := range list {
		if g.Morph = remap(g.Morph); g.Morph >= 0 {
			out = append(out, g)
		}
	}
	return out
}

// ResetMotionState drops pose and morph weights and recomputes bind pose
func (m *Model) ResetMotionState() {
	for _, b := range m.Bones {
		b.ResetPose()
	}
	for _, morph := range m.Morphs {
		morph.SetWeight(0)
	}
	m.PerformUpdate(0)
}
