package mmd

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/mmd_browser/utils"
)

// scenarioPMX is minimal utf8 model with one vertex, one bone and one empty material
func scenarioPMX() []byte {
	w := utils.NewWriter(0)
	w.Write([]byte("PMX "))
	w.PutF32(2.0)
	w.PutU8(8)
	// codec, additional uvs, vertex, texture, material, bone, morph, rigid body index sizes
	w.Write([]byte{1, 0, 1, 1, 1, 1, 1, 1})
	for _, s := range []string{"model", "", "", ""} {
		w.PutSizedText([]byte(s))
	}

	w.PutI32(1)
	w.PutVec3(mgl32.Vec3{})
	w.PutVec3(mgl32.Vec3{0, 1, 0})
	w.PutVec2(mgl32.Vec2{})
	w.PutU8(uint8(SkinningBDEF1))
	w.PutI8(0)
	w.PutF32(1)

	w.PutI32(0) // indices
	w.PutI32(0) // textures

	w.PutI32(1)
	w.PutSizedText([]byte("mat"))
	w.PutSizedText(nil)
	w.PutVec4(mgl32.Vec4{1, 1, 1, 1})
	w.PutVec3(mgl32.Vec3{})
	w.PutF32(5)
	w.PutVec3(mgl32.Vec3{0.5, 0.5, 0.5})
	w.PutU8(0)
	w.PutVec4(mgl32.Vec4{0, 0, 0, 1})
	w.PutF32(1)
	w.PutI8(-1)
	w.PutI8(-1)
	w.PutU8(0) // sphere mode
	w.PutU8(1) // shared toon
	w.PutU8(0)
	w.PutSizedText(nil)
	w.PutI32(0)

	w.PutI32(1)
	w.PutSizedText([]byte("root"))
	w.PutSizedText(nil)
	w.PutVec3(mgl32.Vec3{})
	w.PutI8(-1)
	w.PutI32(0)
	w.PutU16(uint16(BoneFlagRotatable | BoneFlagVisible | BoneFlagInteractive))
	w.PutVec3(mgl32.Vec3{0, 1, 0})

	w.PutI32(0) // morphs
	w.PutI32(0) // labels
	w.PutI32(0) // rigid bodies
	w.PutI32(0) // joints
	return w.Bytes()
}

func TestLoadScenario(t *testing.T) {
	data := scenarioPMX()
	m := NewModel(nil)
	if err := m.Load(data); err != nil {
		t.Fatal(err)
	}
	if m.Format() != FormatPMX || m.State() != StateReady {
		t.Errorf("format %v state %v", m.Format(), m.State())
	}
	if m.Count(ObjectVertex) != 1 || m.Count(ObjectBone) != 1 || m.Count(ObjectMaterial) != 1 {
		t.Errorf("counts: %d vertices %d bones %d materials",
			m.Count(ObjectVertex), m.Count(ObjectBone), m.Count(ObjectMaterial))
	}
	if m.Name != "model" {
		t.Errorf("name %q", m.Name)
	}
	root := m.FindBone("root")
	if root == nil || root != m.Bones[0] {
		t.Fatalf("FindBone(root)=%v", root)
	}
	if mat := m.Materials[0]; mat.ToonTexture != "toon01.bmp" || mat.Shininess.Result != 5 {
		t.Errorf("material %+v", mat)
	}
	if size := m.EstimateSize(); size != len(data) {
		t.Errorf("EstimateSize()=%d; expected %d", size, len(data))
	}
	saved, err := m.Save()
	if err != nil {
		t.Fatal(err)
	}
	if string(saved) != string(data) {
		t.Errorf("saved bytes differ from source")
	}
}

func TestPreparseErrors(t *testing.T) {
	data := scenarioPMX()
	info, err := Preparse(data)
	if err != nil {
		t.Fatal(err)
	}
	patch := func(offset int, b ...byte) []byte {
		out := append([]byte(nil), data...)
		copy(out[offset:], b)
		return out
	}

	for _, test := range []struct {
		name string
		in   []byte
		err  ErrorType
	}{
		{"short", data[:3], InvalidHeaderError},
		{"signature", patch(0, 'X', 'Y', 'Z', 'W'), InvalidSignatureError},
		{"version", patch(4, 0, 0, 0x40, 0x40), InvalidVersionError},
		{"flag size", patch(8, 7), InvalidFlagSizeError},
		{"codec", patch(9, 2), InvalidFlagsError},
		{"uv count", patch(10, 5), InvalidFlagsError},
		{"index size", patch(11, 3), InvalidFlagsError},
		{"name", data[:20], InvalidNameSizeError},
		{"english name", data[:28], InvalidEnglishNameSizeError},
		{"comment", data[:32], InvalidCommentSizeError},
		{"english comment", data[:36], InvalidEnglishCommentSizeError},
		{"vertices", data[:40], InvalidVerticesError},
		{"vertex record", data[:info.Vertices.Offset+1], InvalidVerticesError},
		{"indices", data[:info.Indices.Offset-2], InvalidIndicesError},
		{"textures", data[:info.Textures.Offset-2], InvalidTexturesError},
		{"materials", data[:info.Materials.Offset-2], InvalidMaterialsError},
		{"material record", data[:info.Materials.Offset+1], InvalidMaterialsError},
		{"bones", data[:info.Bones.Offset-2], InvalidBonesError},
		{"bone record", data[:info.Bones.Offset+1], InvalidBonesError},
		{"morphs", data[:info.Morphs.Offset-2], InvalidMorphsError},
		{"labels", data[:info.Labels.Offset-2], InvalidLabelsError},
		{"rigid bodies", data[:len(data)-6], InvalidRigidBodiesError},
		{"joints", data[:len(data)-2], InvalidJointsError},
	} {
		_, err := Preparse(test.in)
		if got := ErrorTypeOf(err); got != test.err {
			t.Errorf("%s: error %v; expected %v (%v)", test.name, got, test.err, err)
		}
	}
}

func TestLoadKeepsModelOnFailure(t *testing.T) {
	m := NewModel(nil)
	if err := m.Load(scenarioPMX()); err != nil {
		t.Fatal(err)
	}

	for _, test := range []struct {
		name   string
		modify func(*Model)
		err    ErrorType
	}{
		{"vertex bone", func(b *Model) { b.Vertices[0].Bones[0] = 7 }, InvalidVerticesError},
		{"index", func(b *Model) { b.Indices = []int{0, 0, 5} }, InvalidIndicesError},
		{"material range", func(b *Model) { b.Materials[0].IndexRange.Count = 3 }, InvalidMaterialsError},
		{"texture", func(b *Model) { b.Materials[0].MainTextureIndex = 4 }, InvalidMaterialsError},
		{"bone parent", func(b *Model) { b.Bones[0].Parent = 3 }, InvalidBonesError},
		{"bone self parent", func(b *Model) { b.Bones[0].Parent = 0 }, InvalidBonesError},
		{"label", func(b *Model) {
			b.Labels = []*Label{{Name: "frame", Elements: []LabelElement{{Kind: LabelMorph, Index: 2}}}}
		}, InvalidLabelsError},
	} {
		broken := NewModel(nil)
		if err := broken.Load(scenarioPMX()); err != nil {
			t.Fatal(err)
		}
		test.modify(broken)
		data, err := broken.Save()
		if err != nil {
			t.Fatalf("%s: %v", test.name, err)
		}

		err = m.Load(data)
		if got := ErrorTypeOf(err); got != test.err {
			t.Errorf("%s: error %v; expected %v", test.name, got, test.err)
		}
		if m.Error() != test.err {
			t.Errorf("%s: model error %v", test.name, m.Error())
		}
		if m.State() != StateReady || m.FindBone("root") == nil || len(m.Indices) != 0 {
			t.Errorf("%s: model changed by failed load", test.name)
		}
	}
}

func TestRigidBodyMissingBoneIsUnbound(t *testing.T) {
	m := NewModel(nil)
	if err := m.Load(scenarioPMX()); err != nil {
		t.Fatal(err)
	}
	rb := NewRigidBody()
	rb.Name = "body"
	rb.Bone = 9
	m.RigidBodies = []*RigidBody{rb}
	data, err := m.Save()
	if err != nil {
		t.Fatal(err)
	}

	loaded := NewModel(nil)
	if err := loaded.Load(data); err != nil {
		t.Fatal(err)
	}
	if got := loaded.RigidBodies[0]; got.BoundBone() != -1 || got.Bone != 9 {
		t.Errorf("bound bone %d raw %d", got.BoundBone(), got.Bone)
	}
}

func TestDetectFormat(t *testing.T) {
	for _, test := range []struct {
		in     string
		format Format
	}{
		{"PMX \x00", FormatPMX},
		{"Pmd\x00\x00", FormatPMD},
		{"PMX", FormatUnknown},
		{"", FormatUnknown},
	} {
		if f := DetectFormat([]byte(test.in)); f != test.format {
			t.Errorf("DetectFormat(%q)=%v; expected %v", test.in, f, test.format)
		}
	}
}

func TestLoadRejectsIKIterations(t *testing.T) {
	pmx := newFeatureModel(t)
	pmx.Bones[4].IK.Iterations = math.MaxInt32
	pmd := newPMDModel(t)
	pmd.IKConstraints[0].Iterations = math.MaxUint16

	for _, test := range []struct {
		name  string
		model *Model
		err   ErrorType
	}{
		{"pmx", pmx, InvalidBonesError},
		{"pmd", pmd, InvalidIKConstraintsError},
	} {
		data, err := test.model.Save()
		if err != nil {
			t.Fatalf("%s: %v", test.name, err)
		}
		if err := NewModel(nil).Load(data); ErrorTypeOf(err) != test.err {
			t.Errorf("%s: error %v; expected %v", test.name, err, test.err)
		}
	}
}
