package web

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/mogaika/mmd_browser/mmd"
	"github.com/mogaika/mmd_browser/utils"
	"github.com/mogaika/mmd_browser/utils/gltfutils"
	"github.com/mogaika/mmd_browser/webutils"
)

// BonePose sets local transform of bone found by name.
// Rotation is euler angles in degrees.
type BonePose struct {
	Name        string      `json:"name"`
	Translation *mgl32.Vec3 `json:"translation,omitempty"`
	Rotation    *mgl32.Vec3 `json:"rotation,omitempty"`
}

type PoseRequest struct {
	Reset   bool               `json:"reset"`
	Physics *bool              `json:"physics,omitempty"`
	Bones   []BonePose         `json:"bones"`
	Morphs  map[string]float32 `json:"morphs"`
	Steps   int                `json:"steps"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024 * 16,
}

// entry resolves {id} route variable, writing error when not found
func (s *Server) entry(w http.ResponseWriter, r *http.Request) (*Entry, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		webutils.WriteErrorStatus(w, http.StatusBadRequest, errors.Wrapf(err, "Invalid model id"))
		return nil, false
	}
	e, ok := s.library.Get(id)
	if !ok {
		webutils.WriteErrorStatus(w, http.StatusNotFound, errors.Errorf("Model %v not found", id))
		return nil, false
	}
	return e, true
}

// ready returns entry locked when its model is usable
func (s *Server) ready(w http.ResponseWriter, r *http.Request) (*Entry, bool) {
	e, ok := s.entry(w, r)
	if !ok {
		return nil, false
	}
	e.Lock()
	if e.Model.State() != mmd.StateReady {
		err := e.LoadErr
		e.Unlock()
		if err == nil {
			err = errors.New("model is not loaded")
		}
		webutils.WriteErrorStatus(w, http.StatusConflict, errors.Wrapf(err, "Model %q unavailable", e.Name()))
		return nil, false
	}
	return e, true
}

func (s *Server) HandlerModels(w http.ResponseWriter, r *http.Request) {
	entries := s.library.List()
	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		e.Lock()
		views = append(views, newEntryView(e))
		e.Unlock()
	}
	webutils.WriteJson(w, views)
}

func (s *Server) HandlerModel(w http.ResponseWriter, r *http.Request) {
	e, ok := s.ready(w, r)
	if !ok {
		return
	}
	defer e.Unlock()
	webutils.WriteJson(w, newModelView(e))
}

func (s *Server) HandlerPose(w http.ResponseWriter, r *http.Request) {
	var req PoseRequest
	if err := webutils.ReadJson(r, &req); err != nil {
		webutils.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	e, ok := s.ready(w, r)
	if !ok {
		return
	}
	defer e.Unlock()

	m := e.Model
	if err := applyPose(m, &req); err != nil {
		webutils.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	steps := utils.Clamp(req.Steps, 1, 600)
	for i := 0; i < steps; i++ {
		m.PerformUpdate(s.settings.TimeStep)
	}
	box := m.NewDynamicVertexBuffer().Update()
	webutils.WriteJson(w, &PoseView{Bones: newBoneViews(m), AABB: box})
}

func applyPose(m *mmd.Model, req *PoseRequest) error {
	if req.Reset {
		m.ResetMotionState()
	}
	if req.Physics != nil {
		m.SetPhysicsEnabled(*req.Physics)
	}
	for _, p := range req.Bones {
		b := m.FindBone(p.Name)
		if b == nil {
			return errors.Errorf("Bone %q not found", p.Name)
		}
		if p.Translation != nil {
			b.SetLocalTranslation(*p.Translation)
		}
		if p.Rotation != nil {
			b.SetLocalRotation(utils.FromEulerZYX(utils.DegreeToRadiansV3(*p.Rotation)))
		}
	}
	for name, weight := range req.Morphs {
		morph := m.FindMorph(name)
		if morph == nil {
			return errors.Errorf("Morph %q not found", name)
		}
		morph.SetWeight(weight)
	}
	return nil
}

func (s *Server) HandlerDumpModel(w http.ResponseWriter, r *http.Request) {
	e, ok := s.ready(w, r)
	if !ok {
		return
	}
	defer e.Unlock()

	data, err := e.Model.Save()
	if err != nil {
		webutils.WriteError(w, errors.Wrapf(err, "Failed to save %q", e.Name()))
		return
	}
	webutils.WriteFile(w, bytes.NewReader(data), dumpName(e, "."+strings.ToLower(e.Model.Format().String())))
}

func (s *Server) HandlerDumpGLTF(w http.ResponseWriter, r *http.Request) {
	e, ok := s.ready(w, r)
	if !ok {
		return
	}
	defer e.Unlock()

	doc, err := e.Model.ExportGLTF()
	if err != nil {
		webutils.WriteError(w, errors.Wrapf(err, "Failed to export %q", e.Name()))
		return
	}
	var buf bytes.Buffer
	if err := gltfutils.ExportBinary(&buf, doc); err != nil {
		webutils.WriteError(w, errors.Wrapf(err, "Failed to encode %q", e.Name()))
		return
	}
	webutils.WriteFile(w, &buf, dumpName(e, ".glb"))
}

// HandlerDumpBuffer writes raw render buffer of current pose
func (s *Server) HandlerDumpBuffer(w http.ResponseWriter, r *http.Request) {
	e, ok := s.ready(w, r)
	if !ok {
		return
	}
	defer e.Unlock()

	m := e.Model
	kind := mux.Vars(r)["buffer"]
	var data []byte
	switch kind {
	case "index":
		data = m.NewIndexBuffer().Bytes()
	case "static":
		data = m.NewStaticVertexBuffer().Bytes()
	case "dynamic":
		b := m.NewDynamicVertexBuffer()
		b.Update()
		data = b.Bytes()
	case "matrix":
		b := m.NewMatrixBuffer()
		b.Update()
		data = b.Bytes()
	default:
		webutils.WriteErrorStatus(w, http.StatusBadRequest, errors.Errorf("Unknown buffer %q", kind))
		return
	}
	webutils.WriteFile(w, bytes.NewReader(data), dumpName(e, fmt.Sprintf(".%s.bin", kind)))
}

// HandlerDumpTexture writes webp preview of material texture slot
func (s *Server) HandlerDumpTexture(w http.ResponseWriter, r *http.Request) {
	e, ok := s.ready(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["material"])
	mat := e.Model.Material(index)
	if err != nil || mat == nil {
		e.Unlock()
		webutils.WriteErrorStatus(w, http.StatusNotFound, errors.Errorf("Material %q not found", vars["material"]))
		return
	}
	var name string
	switch vars["slot"] {
	case "main":
		name = mat.MainTexture
	case "sphere":
		name = mat.SphereTexture
	case "toon":
		name = mat.ToonTexture
	}
	if name == "" {
		e.Unlock()
		webutils.WriteErrorStatus(w, http.StatusNotFound, errors.Errorf("Material %d has no %q texture", index, vars["slot"]))
		return
	}
	path, err := textureFile(e, name)
	e.Unlock()
	if err != nil {
		webutils.WriteErrorStatus(w, http.StatusNotFound, err)
		return
	}

	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	data, err := TextureWebp(path, size)
	if err != nil {
		webutils.WriteErrorStatus(w, http.StatusNotFound, err)
		return
	}
	w.Header().Set("Content-Type", "image/webp")
	webutils.WriteResult(w, data)
}

func dumpName(e *Entry, ext string) string {
	name := e.Name()
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}

func (s *Server) HandlerUploadModel(w http.ResponseWriter, r *http.Request) {
	data, name, err := webutils.ReadFormFile(r, "data")
	if err != nil {
		webutils.WriteErrorStatus(w, http.StatusBadRequest, errors.Wrapf(err, "File stream getting error"))
		return
	}
	if name == "" {
		name = "upload"
	}
	e, err := s.library.Add(name, data)
	if err != nil {
		webutils.WriteErrorStatus(w, http.StatusUnprocessableEntity, err)
		return
	}
	e.Lock()
	defer e.Unlock()
	webutils.WriteJson(w, newEntryView(e))
}

func (s *Server) HandlerStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.Logger("web").Warnf("Websocket upgrade failed: %v", err)
		return
	}
	s.library.Status().Serve(conn)
}
