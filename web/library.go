package web

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mogaika/mmd_browser/config"
	"github.com/mogaika/mmd_browser/mmd"
	"github.com/mogaika/mmd_browser/status"
	"github.com/mogaika/mmd_browser/utils"
)

// Entry is one model of library. Model access must hold the entry lock.
type Entry struct {
	sync.Mutex
	ID       uuid.UUID
	Path     string
	name     string
	Model    *mmd.Model
	LoadErr  error
	LoadedAt time.Time
}

// Name is file name of model, fixed at registration
func (e *Entry) Name() string {
	return e.name
}

// Library keeps loaded models found in directory and uploaded ones
type Library struct {
	dir      string
	settings config.Settings
	enc      config.Encoding
	status   *status.Hub

	lock    sync.RWMutex
	entries map[uuid.UUID]*Entry
	byPath  map[string]uuid.UUID
}

func NewLibrary(settings config.Settings, enc config.Encoding, hub *status.Hub) *Library {
	if enc == nil {
		enc = config.DefaultEncoding()
	}
	if hub == nil {
		hub = status.NewHub()
	}
	return &Library{
		dir:      settings.LibraryDir,
		settings: settings,
		enc:      enc,
		status:   hub,
		entries:  make(map[uuid.UUID]*Entry),
		byPath:   make(map[string]uuid.UUID),
	}
}

func (l *Library) Dir() string { return l.dir }

func (l *Library) Status() *status.Hub { return l.status }

func IsModelFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pmx", ".pmd":
		return true
	}
	return false
}

func (l *Library) newModel() *mmd.Model {
	m := mmd.NewModel(l.enc)
	m.SetParallel(l.settings.ParallelWorkers)
	m.SetPhysicsEnabled(l.settings.Physics)
	return m
}

// Scan loads every model file of library directory
func (l *Library) Scan() error {
	if l.dir == "" {
		return nil
	}
	files, err := os.ReadDir(l.dir)
	if err != nil {
		return errors.Wrapf(err, "Failed to list library %q", l.dir)
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		if !f.IsDir() && IsModelFile(f.Name()) {
			paths = append(paths, filepath.Join(l.dir, f.Name()))
		}
	}
	for i, path := range paths {
		l.status.Progress(filepath.Base(path), float32(i)/float32(len(paths)), "Loading %q", path)
		l.Reload(path)
	}
	l.status.Info("", "Library %q scanned: %d models", l.dir, len(paths))
	return nil
}

// Reload (re)reads model file. Broken file keeps previously loaded model.
func (l *Library) Reload(path string) *Entry {
	l.lock.Lock()
	id, exists := l.byPath[path]
	if !exists {
		id = uuid.New()
		l.byPath[path] = id
		l.entries[id] = &Entry{ID: id, Path: path, name: filepath.Base(path), Model: l.newModel()}
	}
	e := l.entries[id]
	l.lock.Unlock()

	e.Lock()
	defer e.Unlock()

	data, err := os.ReadFile(path)
	if err == nil {
		err = e.Model.Load(data)
	}
	e.LoadErr = err
	if err != nil {
		l.status.Error(e.Name(), "Failed to load %q: %v", path, err)
		return e
	}
	e.LoadedAt = time.Now()
	l.status.Info(e.Name(), "Loaded %v model %q", e.Model.Format(), e.Model.Name)
	return e
}

// Forget drops model of removed file
func (l *Library) Forget(path string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if id, ok := l.byPath[path]; ok {
		delete(l.byPath, path)
		delete(l.entries, id)
		utils.Logger("web").Infof("Model %q removed from library", path)
	}
}

// Add registers model from memory, only successfully parsed data is kept
func (l *Library) Add(name string, data []byte) (*Entry, error) {
	m := l.newModel()
	if err := m.Load(data); err != nil {
		l.status.Error(name, "Failed to load upload %q: %v", name, err)
		return nil, err
	}
	e := &Entry{ID: uuid.New(), name: name, Model: m, LoadedAt: time.Now()}

	l.lock.Lock()
	l.entries[e.ID] = e
	l.lock.Unlock()

	l.status.Info(name, "Uploaded %v model %q", m.Format(), m.Name)
	return e, nil
}

func (l *Library) Get(id uuid.UUID) (*Entry, bool) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	e, ok := l.entries[id]
	return e, ok
}

// List returns entries sorted by name
func (l *Library) List() []*Entry {
	l.lock.RLock()
	list := make([]*Entry, 0, len(l.entries))
	for _, e := range l.entries {
		list = append(list, e)
	}
	l.lock.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].Name() == list[j].Name() {
			return list[i].ID.String() < list[j].ID.String()
		}
		return list[i].Name() < list[j].Name()
	})
	return list
}
