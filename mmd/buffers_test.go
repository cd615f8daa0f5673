package mmd

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
)

func TestIndexTypeForCount(t *testing.T) {
	for _, test := range []struct {
		vertices int
		t        IndexType
	}{
		{0, IndexType8},
		{255, IndexType8},
		{256, IndexType16},
		{65535, IndexType16},
		{65536, IndexType32},
	} {
		if got := IndexTypeForCount(test.vertices); got != test.t {
			t.Errorf("IndexTypeForCount(%d)=%v; expected %v", test.vertices, got, test.t)
		}
	}
}

func TestIndexBuffer(t *testing.T) {
	m := newFeatureModel(t)
	b := m.NewIndexBuffer()
	if b.Type != IndexType8 || b.Count() != 6 || len(b.Bytes()) != 6 {
		t.Fatalf("index buffer type %v count %d size %d", b.Type, b.Count(), len(b.Bytes()))
	}
	for i, idx := range m.Indices {
		if b.Index(i) != idx {
			t.Errorf("index %d: %d; expected %d", i, b.Index(i), idx)
		}
	}
}

func TestDynamicVertexBuffer(t *testing.T) {
	m := newFeatureModel(t)
	m.IKConstraints = nil
	b := m.NewDynamicVertexBuffer()
	if b.StrideSize() != 44+16 {
		t.Errorf("stride size %d", b.StrideSize())
	}
	if offset, ok := b.StrideOffset(StrideUVA1); !ok || offset != 44 {
		t.Errorf("uva1 offset %d %v", offset, ok)
	}
	if _, ok := b.StrideOffset(StrideBoneWeight); ok {
		t.Errorf("dynamic buffer has bone weights")
	}

	m.FindBone("root").SetLocalTranslation(mgl32.Vec3{0, 0, 2})
	m.PerformUpdate(0)
	box := b.Update()
	if box != m.AABB() {
		t.Errorf("model aabb not updated")
	}
	if !box.Min.ApproxEqualThreshold(mgl32.Vec3{0, 0, 2}, 1e-5) || !box.Max.ApproxEqualThreshold(mgl32.Vec3{1, 2.5, 2}, 1e-5) {
		t.Errorf("aabb %+v", box)
	}

	data := b.Bytes()
	z := math.Float32frombits(binary.LittleEndian.Uint32(data[8:]))
	if z != 2 {
		t.Errorf("first vertex z %v", z)
	}
	uva := math.Float32frombits(binary.LittleEndian.Uint32(data[3*b.StrideSize()+44+12:]))
	if uva != 4 {
		t.Errorf("uva1.w of vertex 3 is %v", uva)
	}
}

func TestMatrixBuffer(t *testing.T) {
	m := newFeatureModel(t)
	b := m.NewMatrixBuffer()
	b.Update()
	if len(b.Bytes()) != len(m.Bones)*64 {
		t.Fatalf("matrix buffer size %d", len(b.Bytes()))
	}
	// bind pose writes identity
	one := math.Float32frombits(binary.LittleEndian.Uint32(b.Bytes()[64+20:]))
	if one != 1 {
		t.Errorf("matrix element %v", one)
	}
}

func TestExportGLTF(t *testing.T) {
	m := newFeatureModel(t)
	doc, err := m.ExportGLTF()
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Meshes) != 1 || len(doc.Meshes[0].Primitives) != 1 || len(doc.Materials) != 1 {
		t.Errorf("meshes %d materials %d", len(doc.Meshes), len(doc.Materials))
	}
	if len(doc.Nodes) != 1+len(m.Bones) {
		t.Errorf("nodes %d", len(doc.Nodes))
	}
	// mesh node and skeleton root bones
	if roots := doc.Scenes[0].Nodes; len(roots) != 2 {
		t.Errorf("scene roots %v", roots)
	}
	if !doc.Materials[0].DoubleSided {
		t.Errorf("culling disabled material exported single sided")
	}

	var buf bytes.Buffer
	if err := gltf.NewEncoder(&buf).Encode(doc); err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Errorf("empty document")
	}

	if _, err := NewModel(nil).ExportGLTF(); err == nil {
		t.Errorf("empty model exported")
	}
}
