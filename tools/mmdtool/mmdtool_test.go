package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/mmd_browser/config"
	"github.com/mogaika/mmd_browser/mmd"
)

func writeTestModel(t *testing.T) string {
	t.Helper()
	m := mmd.NewModel(nil)
	m.Name = "stick"
	root := mmd.NewBone()
	root.Name = "root"
	tip := mmd.NewBone()
	tip.Name = "tip"
	tip.Parent = 0
	tip.Origin = mgl32.Vec3{0, 1, 0}
	for _, b := range []*mmd.Bone{root, tip} {
		if err := m.AddBone(b); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 3; i++ {
		v := mmd.NewVertex()
		v.Index = i
		v.Origin = mgl32.Vec3{float32(i), 1, 0}
		v.Bones[0] = 1
		m.Vertices = append(m.Vertices, v)
	}
	m.Indices = []int{0, 1, 2}
	mat := mmd.NewMaterial()
	mat.Name = "wood"
	mat.IndexRange.Count = 3
	m.Materials = []*mmd.Material{mat}

	data, err := m.Save()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "stick.pmx")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseVec3(t *testing.T) {
	for _, test := range []struct {
		in  string
		out mgl32.Vec3
		ok  bool
	}{
		{"1,2,3", mgl32.Vec3{1, 2, 3}, true},
		{" 0.5, -1 ,90", mgl32.Vec3{0.5, -1, 90}, true},
		{"1,2", mgl32.Vec3{}, false},
		{"a,b,c", mgl32.Vec3{}, false},
	} {
		v, err := parseVec3(test.in)
		if (err == nil) != test.ok || (test.ok && v != test.out) {
			t.Errorf("parseVec3(%q) = %v, %v", test.in, v, err)
		}
	}
}

func TestRunDumpAndPose(t *testing.T) {
	in := writeTestModel(t)
	var out bytes.Buffer
	if err := run([]string{"-in", in, "-bone", "root", "-move", "0,0,1", "-dump", "bones"}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `"tip"`) || !strings.Contains(out.String(), "[0 1 1]") {
		t.Errorf("bones dump:\n%s", out.String())
	}

	out.Reset()
	if err := run([]string{"-in", in, "-dump", "info"}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "vertices:") || !strings.Contains(out.String(), `"stick"`) {
		t.Errorf("info dump:\n%s", out.String())
	}

	if err := run([]string{"-in", in, "-bone", "nose", "-rotate", "0,0,0"}, &out); err == nil {
		t.Errorf("unknown bone accepted")
	}
	if err := run([]string{"-in", in, "-dump", "everything"}, &out); err == nil {
		t.Errorf("unknown dump section accepted")
	}
	if err := run([]string{}, &out); err == nil {
		t.Errorf("missing -in accepted")
	}
}

func TestRunSaveAndExport(t *testing.T) {
	in := writeTestModel(t)
	dir := t.TempDir()
	saved := filepath.Join(dir, "saved.pmx")
	glb := filepath.Join(dir, "stick.glb")

	var out bytes.Buffer
	if err := run([]string{"-in", in, "-save", saved, "-codec", "utf-8", "-gltf", glb}, &out); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(saved)
	if err != nil {
		t.Fatal(err)
	}
	m := mmd.NewModel(nil)
	if err := m.Load(data); err != nil {
		t.Fatal(err)
	}
	if m.Codec != config.CodecUTF8 || m.Name != "stick" || len(m.Bones) != 2 {
		t.Errorf("saved model codec %v name %q bones %d", m.Codec, m.Name, len(m.Bones))
	}

	header, err := os.ReadFile(glb)
	if err != nil {
		t.Fatal(err)
	}
	if len(header) < 4 || string(header[:4]) != "glTF" {
		t.Errorf("gltf export is not binary gltf")
	}
}
