package mmd

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func testBone(index int, name string, origin mgl32.Vec3, parent int) *Bone {
	b := NewBone()
	b.Index = index
	b.Name = name
	b.Origin = origin
	b.Parent = parent
	b.ResetPose()
	return b
}

func testVertex(index int, origin mgl32.Vec3, bone int) *Vertex {
	v := NewVertex()
	v.Index = index
	v.Origin = origin
	v.Normal = mgl32.Vec3{0, 0, 1}
	v.Bones[0] = bone
	return v
}

// linkTestModel finishes hand built model the same way load does
func linkTestModel(t *testing.T, m *Model) *Model {
	t.Helper()
	if err := m.link(); err != nil {
		t.Fatal(err)
	}
	m.state = StateReady
	m.PerformUpdate(0)
	return m
}

// newFeatureModel builds pmx model touching every entity kind
func newFeatureModel(t *testing.T) *Model {
	t.Helper()
	m := NewModel(nil)
	m.Name = "feature"
	m.EnglishName = "feature en"
	m.Comment = "comment"
	m.AdditionalUVSize = 1

	m.Bones = []*Bone{
		testBone(0, "root", mgl32.Vec3{0, 0, 0}, -1),
		testBone(1, "hip", mgl32.Vec3{0, 1, 0}, 0),
		testBone(2, "knee", mgl32.Vec3{0, 2, 0}, 1),
		testBone(3, "ankle", mgl32.Vec3{0, 3, 0}, 2),
		testBone(4, "ik", mgl32.Vec3{0, 3, 0}, 0),
		testBone(5, "follower", mgl32.Vec3{1, 0, 0}, 0),
	}
	m.Bones[1].Flags |= BoneFlagHasDestinationBone
	m.Bones[1].Destination = 2
	m.Bones[2].Flags |= BoneFlagHasFixedAxis
	m.Bones[2].FixedAxis = mgl32.Vec3{1, 0, 0}
	m.Bones[3].Flags |= BoneFlagHasLocalAxes
	m.Bones[3].LocalAxisX = mgl32.Vec3{1, 0, 0}
	m.Bones[3].LocalAxisZ = mgl32.Vec3{0, 0, 1}
	m.Bones[4].Flags |= BoneFlagHasIK | BoneFlagMovable
	m.Bones[4].IK = &IKConstraint{
		Root:       4,
		Effector:   3,
		Iterations: 10,
		AngleLimit: 0.5,
		Joints: []IKJoint{
			{Bone: 2, HasAngleLimit: true, LowerLimit: mgl32.Vec3{-3, 0, 0}, UpperLimit: mgl32.Vec3{-0.01, 0, 0}},
			{Bone: 1},
		},
	}
	m.IKConstraints = []*IKConstraint{m.Bones[4].IK}
	m.Bones[5].Flags |= BoneFlagHasInherentRotation | BoneFlagTransformAfterPhysics | BoneFlagTransformExternalParent
	m.Bones[5].InherentParent = 1
	m.Bones[5].InherentCoefficient = 0.5
	m.Bones[5].ExternalParentKey = 7
	m.Bones[5].Layer = 1

	m.Vertices = []*Vertex{
		testVertex(0, mgl32.Vec3{0, 0, 0}, 0),
		testVertex(1, mgl32.Vec3{0, 1.5, 0}, 1),
		testVertex(2, mgl32.Vec3{0, 2.5, 0}, 2),
		testVertex(3, mgl32.Vec3{1, 1, 0}, 1),
	}
	m.Vertices[1].Type = SkinningBDEF2
	m.Vertices[1].Bones[1] = 2
	m.Vertices[1].Weights = [4]float32{0.25, 0.75, 0, 0}
	m.Vertices[2].Type = SkinningSDEF
	m.Vertices[2].Bones[1] = 3
	m.Vertices[2].Weights = [4]float32{0.5, 0.5, 0, 0}
	m.Vertices[2].SdefC = mgl32.Vec3{0, 2.5, 0}
	m.Vertices[2].SdefR0 = mgl32.Vec3{0, 2, 0}
	m.Vertices[2].SdefR1 = mgl32.Vec3{0, 3, 0}
	m.Vertices[3].Type = SkinningBDEF4
	m.Vertices[3].Bones = [4]int{0, 1, 2, 5}
	m.Vertices[3].Weights = [4]float32{0.25, 0.25, 0.25, 0.25}
	m.Vertices[3].UVs[0] = mgl32.Vec4{1, 2, 3, 4}
	m.Indices = []int{0, 1, 2, 1, 2, 3}

	m.Textures = []string{"body.png", "env.spa"}
	mat := NewMaterial()
	mat.Name = "body"
	mat.Diffuse = NewColor(mgl32.Vec4{1, 0.5, 0.5, 1})
	mat.Flags = MaterialFlagCullingDisabled | MaterialFlagEdge
	mat.MainTextureIndex = 0
	mat.SphereTextureIndex = 1
	mat.SphereMode = SphereMode(2)
	mat.SharedToon = true
	mat.ToonTextureIndex = 3
	mat.UserData = "memo"
	mat.IndexRange.Count = 6
	m.Materials = []*Material{mat}

	m.Morphs = []*Morph{
		{Name: "smile", Category: MorphCategoryLip, Kind: MorphVertex,
			Vertices: []VertexMorph{{Vertex: 1, Position: mgl32.Vec3{0, 0, 1}}}},
		{Name: "shift", Category: MorphCategoryOther, Kind: MorphTexCoord,
			UVs: []UVMorph{{Vertex: 2, Offset: mgl32.Vec4{0.5, 0, 0, 0}}}},
		{Name: "bend", Category: MorphCategoryOther, Kind: MorphBone,
			Bones: []BoneMorph{{Bone: 1, Translation: mgl32.Vec3{0, 0, 1}, Rotation: mgl32.QuatIdent()}}},
		{Name: "dark", Category: MorphCategoryOther, Kind: MorphMaterial,
			Materials: []MaterialMorph{{Material: -1, Operation: MaterialMorphMultiply,
				Diffuse: mgl32.Vec4{0.5, 0.5, 0.5, 1}, Specular: mgl32.Vec3{1, 1, 1}, Shininess: 1,
				Ambient: mgl32.Vec3{1, 1, 1}, EdgeColor: mgl32.Vec4{1, 1, 1, 1}, EdgeSize: 1,
				Texture: mgl32.Vec4{1, 1, 1, 1}, Sphere: mgl32.Vec4{1, 1, 1, 1}, Toon: mgl32.Vec4{1, 1, 1, 1}}}},
		{Name: "all", Category: MorphCategoryOther, Kind: MorphGroup,
			Groups: []GroupMorph{{Morph: 0, Weight: 1}, {Morph: 2, Weight: 0.5}}},
		{Name: "pick", Category: MorphCategoryOther, Kind: MorphFlip,
			Flips: []GroupMorph{{Morph: 0, Weight: 1}, {Morph: 1, Weight: 1}}},
		{Name: "push", Category: MorphCategoryOther, Kind: MorphImpulse,
			Impulses: []ImpulseMorph{{RigidBody: 0, Local: true, Velocity: mgl32.Vec3{0, 1, 0}}}},
	}
	for i, morph := range m.Morphs {
		morph.Index = i
	}

	m.Labels = []*Label{
		{Index: 0, Name: "Root", Special: true, Elements: []LabelElement{{Kind: LabelBone, Index: 0}}},
		{Index: 1, Name: "exp", Elements: []LabelElement{{Kind: LabelMorph, Index: 0}, {Kind: LabelMorph, Index: 4}}},
		{Index: 2, Name: "legs", Elements: []LabelElement{{Kind: LabelBone, Index: 1}, {Kind: LabelBone, Index: 4}}},
	}

	head := NewRigidBody()
	head.Index = 0
	head.Name = "hair"
	head.Bone = 3
	head.Shape = ShapeCapsule
	head.Size = mgl32.Vec3{0.1, 0.5, 0}
	head.Position = mgl32.Vec3{0, 3, 0}
	head.Mass = 1
	head.Type = RigidBodyDynamic
	anchor := NewRigidBody()
	anchor.Index = 1
	anchor.Name = "anchor"
	anchor.Bone = 2
	anchor.Position = mgl32.Vec3{0, 2, 0}
	m.RigidBodies = []*RigidBody{head, anchor}
	m.Joints = []*Joint{{Index: 0, Name: "hair joint", RigidBodyA: 1, RigidBodyB: 0,
		Position: mgl32.Vec3{0, 2.5, 0}, RotationUpper: mgl32.Vec3{0.5, 0.5, 0.5}}}

	return linkTestModel(t, m)
}

func TestFeatureModelLinks(t *testing.T) {
	m := newFeatureModel(t)
	if m.FindBone("knee") != m.Bones[2] || m.FindMorph("all") != m.Morphs[4] {
		t.Errorf("name lookup failed")
	}
	if m.Vertices[3].Material != 0 {
		t.Errorf("vertex material %d", m.Vertices[3].Material)
	}
	if mat := m.Materials[0]; mat.MainTexture != "body.png" || mat.SphereTexture != "env.spa" || mat.ToonTexture != "toon04.bmp" {
		t.Errorf("textures %q %q %q", mat.MainTexture, mat.SphereTexture, mat.ToonTexture)
	}
	if !m.Bones[3].IsSimulated() || m.Bones[2].IsSimulated() {
		t.Errorf("simulated flags wrong")
	}
	if !m.IKConstraints[0].Joints[0].axisXAligned || m.IKConstraints[0].Joints[1].axisXAligned {
		t.Errorf("axis alignment not detected")
	}
	after := m.AfterPhysicsBones()
	if len(after) != 1 || after[0] != m.Bones[5] {
		t.Errorf("after physics bones %v", after)
	}
	if len(m.BeforePhysicsBones()) != 5 {
		t.Errorf("before physics bones %d", len(m.BeforePhysicsBones()))
	}
}

func TestHasBoneLoopChain(t *testing.T) {
	m := NewModel(nil)
	m.Bones = []*Bone{
		testBone(0, "a", mgl32.Vec3{}, 2),
		testBone(1, "b", mgl32.Vec3{}, 0),
		testBone(2, "c", mgl32.Vec3{}, 1),
		testBone(3, "d", mgl32.Vec3{}, -1),
		testBone(4, "e", mgl32.Vec3{}, 3),
	}
	if !m.HasBoneLoopChain(m.Bones[0], m.Bones[2]) {
		t.Errorf("3 bone cycle not detected")
	}
	if m.HasBoneLoopChain(m.Bones[4], m.Bones[3]) {
		t.Errorf("valid chain reported as loop")
	}
	if !m.HasBoneLoopChain(m.Bones[3], m.Bones[4]) {
		t.Errorf("parenting to own child not detected")
	}
	if err := m.link(); ErrorTypeOf(err) != InvalidBonesError {
		t.Errorf("link error %v", err)
	}
}

func TestSetParent(t *testing.T) {
	m := NewModel(nil)
	m.Bones = []*Bone{
		testBone(0, "a", mgl32.Vec3{}, -1),
		testBone(1, "b", mgl32.Vec3{0, 1, 0}, 0),
		testBone(2, "c", mgl32.Vec3{0, 2, 0}, 1),
	}
	linkTestModel(t, m)

	if err := m.SetParent(m.Bones[0], m.Bones[2]); err == nil {
		t.Errorf("loop parenting accepted")
	}
	if m.Bones[0].Parent != -1 {
		t.Errorf("failed SetParent changed parent")
	}
	if err := m.SetParent(m.Bones[2], m.Bones[0]); err != nil {
		t.Fatal(err)
	}
	order := m.BeforePhysicsBones()
	if len(order) != 3 || order[0] != m.Bones[0] {
		t.Errorf("order after reparent %v", order)
	}
}

func TestAddRemoveBone(t *testing.T) {
	m := newFeatureModel(t)
	b := NewBone()
	b.Parent = 3
	if err := m.AddBone(b); err != nil {
		t.Fatal(err)
	}
	if b.Name == "" || m.FindBone(b.Name) != b || b.Index != 6 {
		t.Errorf("added bone %q index %d", b.Name, b.Index)
	}
	if err := m.AddBone(&Bone{Name: "bad", Parent: 40}); err == nil {
		t.Errorf("bone with missing parent accepted")
	}

	m.RemoveBone(m.Bones[1])
	if len(m.Bones) != 6 || m.FindBone("hip") != nil {
		t.Fatalf("bone not removed")
	}
	if knee := m.FindBone("knee"); knee.Index != 1 || knee.Parent != -1 {
		t.Errorf("knee index %d parent %d", knee.Index, knee.Parent)
	}
	if ik := m.FindBone("ik").IK; len(ik.Joints) != 1 || ik.Joints[0].Bone != 1 || ik.Effector != 2 {
		t.Errorf("ik not remapped %+v", ik)
	}
	if len(m.Morphs[2].Bones) != 0 {
		t.Errorf("bone morph entry of removed bone kept")
	}
	if v := m.Vertices[1]; v.Bones[0] != -1 || v.Bones[1] != 1 {
		t.Errorf("vertex bones %v", v.Bones)
	}

	data, err := m.Save()
	if err != nil {
		t.Fatal(err)
	}
	if err := NewModel(nil).Load(data); err != nil {
		t.Errorf("model after bone removal does not load: %v", err)
	}
}

func TestGeneratedNamesAreReserved(t *testing.T) {
	m := newFeatureModel(t)
	for _, b := range m.Bones {
		if _, ok := m.names[b.Name]; !ok {
			t.Errorf("bone name %q not reserved", b.Name)
		}
	}
	for _, morph := range m.Morphs {
		if _, ok := m.names[morph.Name]; !ok {
			t.Errorf("morph name %q not reserved", morph.Name)
		}
	}

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		morph := NewMorph(MorphVertex)
		if err := m.AddMorph(morph); err != nil {
			t.Fatal(err)
		}
		if seen[morph.Name] || m.FindMorph(morph.Name) != morph {
			t.Errorf("generated morph name %q collides", morph.Name)
		}
		seen[morph.Name] = true
	}
}

func TestAddRemoveMorph(t *testing.T) {
	m := newFeatureModel(t)
	bad := NewMorph(MorphBone)
	bad.Bones = []BoneMorph{{Bone: 99, Rotation: mgl32.QuatIdent()}}
	if err := m.AddMorph(bad); err == nil {
		t.Errorf("morph with missing bone accepted")
	}
	if len(m.Morphs) != 7 {
		t.Errorf("failed AddMorph kept morph")
	}

	good := NewMorph(MorphGroup)
	good.Groups = []GroupMorph{{Morph: 6, Weight: 1}}
	if err := m.AddMorph(good); err != nil {
		t.Fatal(err)
	}
	if good.Name == "" || m.FindMorph(good.Name) != good {
		t.Errorf("added morph not found by name %q", good.Name)
	}

	m.RemoveMorph(m.Morphs[0])
	if m.FindMorph("smile") != nil || len(m.Morphs) != 7 {
		t.Fatalf("morph not removed")
	}
	all := m.FindMorph("all")
	if len(all.Groups) != 1 || all.Groups[0].Morph != 1 {
		t.Errorf("group morph not remapped %+v", all.Groups)
	}
	if good.Groups[0].Morph != 5 {
		t.Errorf("added group morph not remapped %+v", good.Groups)
	}
	if exp := m.Labels[1]; len(exp.Elements) != 1 || exp.Elements[0].Index != 3 {
		t.Errorf("label elements %+v", exp.Elements)
	}
}
