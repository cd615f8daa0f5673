package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mogaika/mmd_browser/config"
	"github.com/mogaika/mmd_browser/mmd"
	"github.com/mogaika/mmd_browser/status"
)

func testModelData(t *testing.T, name string, textures ...string) []byte {
	t.Helper()
	m := mmd.NewModel(nil)
	m.Name = name

	center := mmd.NewBone()
	center.Name = "center"
	arm := mmd.NewBone()
	arm.Name = "arm"
	arm.Parent = 0
	arm.Origin = mgl32.Vec3{0, 1, 0}
	for _, b := range []*mmd.Bone{center, arm} {
		if err := m.AddBone(b); err != nil {
			t.Fatal(err)
		}
	}

	for i, p := range []mgl32.Vec3{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}} {
		v := mmd.NewVertex()
		v.Index = i
		v.Origin = p
		v.Normal = mgl32.Vec3{0, 0, 1}
		v.Bones[0] = min(i, 1)
		m.Vertices = append(m.Vertices, v)
	}
	m.Indices = []int{0, 1, 2}

	mat := mmd.NewMaterial()
	mat.Name = "skin"
	mat.IndexRange.Count = 3
	m.Materials = []*mmd.Material{mat}
	m.Textures = textures
	if len(textures) > 0 {
		mat.MainTextureIndex = 0
	}

	grow := mmd.NewMorph(mmd.MorphVertex)
	grow.Name = "grow"
	grow.Vertices = []mmd.VertexMorph{{Vertex: 2, Position: mgl32.Vec3{1, 0, 0}}}
	if err := m.AddMorph(grow); err != nil {
		t.Fatal(err)
	}

	data, err := m.Save()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func testSettings(dir string) config.Settings {
	s := config.DefaultSettings()
	s.LibraryDir = dir
	s.ParallelWorkers = 2
	return s
}

func TestLibraryScanAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cube.pmx")
	if err := os.WriteFile(path, testModelData(t, "cube"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0644); err != nil {
		t.Fatal(err)
	}

	lib := NewLibrary(testSettings(dir), nil, nil)
	if err := lib.Scan(); err != nil {
		t.Fatal(err)
	}
	list := lib.List()
	if len(list) != 1 || list[0].Name() != "cube.pmx" || list[0].LoadErr != nil {
		t.Fatalf("library list %+v", list)
	}
	id := list[0].ID

	// broken file keeps previous model
	if err := os.WriteFile(path, []byte("PMX broken"), 0644); err != nil {
		t.Fatal(err)
	}
	e := lib.Reload(path)
	if e.ID != id || e.LoadErr == nil {
		t.Errorf("reload of broken file: id %v err %v", e.ID, e.LoadErr)
	}
	if e.Model.State() != mmd.StateReady || e.Model.Name != "cube" {
		t.Errorf("previous model lost: %v %q", e.Model.State(), e.Model.Name)
	}
	if last := lib.Status().Last(); last == nil || last.Type != status.ERROR || last.Model != "cube.pmx" {
		t.Errorf("status %+v", last)
	}

	lib.handleFileEvent(fsnotify.Event{Name: path, Op: fsnotify.Remove})
	if _, ok := lib.Get(id); ok {
		t.Errorf("removed file still in library")
	}
	lib.handleFileEvent(fsnotify.Event{Name: filepath.Join(dir, "notes.txt"), Op: fsnotify.Write})
	if len(lib.List()) != 0 {
		t.Errorf("non model file loaded")
	}
}

func TestWatchContext(t *testing.T) {
	lib := NewLibrary(testSettings(t.TempDir()), nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := lib.Watch(ctx); err != nil {
		t.Fatal(err)
	}
	missing := NewLibrary(testSettings(filepath.Join(t.TempDir(), "missing")), nil, nil)
	if err := missing.Watch(ctx); err == nil {
		t.Errorf("watching missing directory")
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *Library, uuid.UUID) {
	t.Helper()
	lib := NewLibrary(testSettings(""), nil, nil)
	e, err := lib.Add("cube.pmx", testModelData(t, "cube"))
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(NewServer(lib.settings, lib).Router(""))
	t.Cleanup(srv.Close)
	return srv, lib, e.ID
}

func getJson(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode
}

func TestServerModelViews(t *testing.T) {
	srv, _, id := newTestServer(t)

	var list []EntryView
	if code := getJson(t, srv.URL+"/json/models", &list); code != http.StatusOK || len(list) != 1 {
		t.Fatalf("list %d %+v", code, list)
	}
	if list[0].ID != id.String() || list[0].Format != "pmx" || list[0].Title != "cube" || list[0].Vertices != 3 {
		t.Errorf("entry view %+v", list[0])
	}

	var view ModelView
	if code := getJson(t, srv.URL+"/json/models/"+id.String(), &view); code != http.StatusOK {
		t.Fatalf("model view status %d", code)
	}
	if len(view.Bones) != 2 || view.Bones[1].Parent != 0 || len(view.Materials) != 1 || len(view.Morphs) != 1 {
		t.Errorf("model view %+v", view)
	}
	if view.Morphs[0].Kind != "vertex" || view.Materials[0].Indices != 3 {
		t.Errorf("morph %+v material %+v", view.Morphs[0], view.Materials[0])
	}

	var jerr struct {
		Error string `json:"error"`
	}
	if code := getJson(t, srv.URL+"/json/models/"+uuid.New().String(), &jerr); code != http.StatusNotFound || jerr.Error == "" {
		t.Errorf("unknown model: %d %q", code, jerr.Error)
	}
	if code := getJson(t, srv.URL+"/json/models/nope", &jerr); code != http.StatusBadRequest {
		t.Errorf("invalid id: %d", code)
	}
}

func postPose(t *testing.T, url string, req interface{}) (*http.Response, []byte) {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func TestServerPose(t *testing.T) {
	srv, lib, id := newTestServer(t)
	url := srv.URL + "/action/models/" + id.String() + "/pose"

	move := mgl32.Vec3{0, 0, 2}
	resp, data := postPose(t, url, &PoseRequest{
		Bones:  []BonePose{{Name: "center", Translation: &move}},
		Morphs: map[string]float32{"grow": 1},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pose status %d: %s", resp.StatusCode, data)
	}
	var pose PoseView
	if err := json.Unmarshal(data, &pose); err != nil {
		t.Fatal(err)
	}
	if !pose.Bones[1].Position.ApproxEqualThreshold(mgl32.Vec3{0, 1, 2}, 1e-5) {
		t.Errorf("arm position %v", pose.Bones[1].Position)
	}
	if !pose.AABB.Max.ApproxEqualThreshold(mgl32.Vec3{2, 1, 2}, 1e-5) {
		t.Errorf("aabb %+v", pose.AABB)
	}

	e, _ := lib.Get(id)
	if w := e.Model.FindMorph("grow").Weight(); w != 1 {
		t.Errorf("morph weight %v", w)
	}

	turn := mgl32.Vec3{30, 0, 45}
	resp, data = postPose(t, url, &PoseRequest{Bones: []BonePose{{Name: "arm", Rotation: &turn}}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rotate status %d: %s", resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, &pose); err != nil {
		t.Fatal(err)
	}
	if !pose.Bones[1].Rotation.ApproxEqualThreshold(turn, 1e-3) {
		t.Errorf("arm rotation %v; expected %v", pose.Bones[1].Rotation, turn)
	}

	resp, _ = postPose(t, url, &PoseRequest{Reset: true})
	if resp.StatusCode != http.StatusOK || e.Model.FindMorph("grow").Weight() != 0 {
		t.Errorf("reset failed")
	}

	resp, data = postPose(t, url, &PoseRequest{Bones: []BonePose{{Name: "tail"}}})
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(string(data), "tail") {
		t.Errorf("unknown bone: %d %s", resp.StatusCode, data)
	}
}

func TestServerDumps(t *testing.T) {
	srv, _, id := newTestServer(t)
	base := srv.URL + "/dump/models/" + id.String()

	get := func(url string) (*http.Response, []byte) {
		resp, err := http.Get(url)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatal(err)
		}
		return resp, data
	}

	resp, data := get(base)
	if !strings.Contains(resp.Header.Get("Content-Disposition"), "cube.pmx") {
		t.Errorf("disposition %q", resp.Header.Get("Content-Disposition"))
	}
	m := mmd.NewModel(nil)
	if err := m.Load(data); err != nil || m.Name != "cube" {
		t.Errorf("dumped model reload: %v", err)
	}

	_, data = get(base + "/gltf")
	if len(data) < 12 || string(data[:4]) != "glTF" {
		t.Errorf("gltf dump is not binary gltf")
	}

	for _, test := range []struct {
		buffer string
		size   int
	}{
		{"index", 3},
		{"static", 3 * 40},
		{"matrix", 2 * 64},
	} {
		resp, data := get(base + "/buffer/" + test.buffer)
		if resp.StatusCode != http.StatusOK || len(data) != test.size {
			t.Errorf("buffer %s: status %d size %d", test.buffer, resp.StatusCode, len(data))
		}
	}
	if resp, _ := get(base + "/buffer/unknown"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown buffer status %d", resp.StatusCode)
	}
}

func upload(t *testing.T, url string, name string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("data", name)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()

	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestServerUpload(t *testing.T) {
	srv, lib, _ := newTestServer(t)

	resp := upload(t, srv.URL+"/upload/models", "second.pmx", testModelData(t, "second"))
	defer resp.Body.Close()
	var view EntryView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || view.Name != "second.pmx" || view.Title != "second" {
		t.Errorf("upload %d %+v", resp.StatusCode, view)
	}
	if len(lib.List()) != 2 {
		t.Errorf("library size %d", len(lib.List()))
	}

	bad := upload(t, srv.URL+"/upload/models", "bad.pmx", []byte("garbage"))
	bad.Body.Close()
	if bad.StatusCode != http.StatusUnprocessableEntity || len(lib.List()) != 2 {
		t.Errorf("bad upload status %d", bad.StatusCode)
	}
}

func TestServerStatusWebsocket(t *testing.T) {
	srv, lib, _ := newTestServer(t)
	lib.Status().Info("cube.pmx", "hello %d", 1)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/status", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var msg status.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Message != "hello 1" || msg.Model != "cube.pmx" || msg.Type != status.INFO {
		t.Errorf("status message %+v", msg)
	}
}
