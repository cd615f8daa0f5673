package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSettings(t *testing.T) {
	dir := t.TempDir()

	for _, test := range []struct {
		name    string
		content string
		addr    string
		workers int
		physics bool
	}{
		{"a.yaml", "addr: \":9000\"\nparallel_workers: 3\nphysics: true\n", ":9000", 3, true},
		{"b.yml", "library_dir: models\n", ":8000", DefaultSettings().ParallelWorkers, false},
		{"c.toml", "addr = \":7000\"\nparallel_workers = 1\n", ":7000", 1, false},
	} {
		path := filepath.Join(dir, test.name)
		if err := os.WriteFile(path, []byte(test.content), 0666); err != nil {
			t.Fatal(err)
		}
		s, err := LoadSettings(path)
		if err != nil {
			t.Fatalf("%s: %v", test.name, err)
		}
		if s.Addr != test.addr || s.ParallelWorkers != test.workers || s.Physics != test.physics {
			t.Errorf("%s: unexpected settings %+v", test.name, s)
		}
	}
}

func TestLoadSettingsErrors(t *testing.T) {
	dir := t.TempDir()

	for _, test := range []struct {
		name    string
		content string
	}{
		{"unknown.ini", "addr=1"},
		{"bad.yaml", "parallel_workers: -1\n"},
		{"codec.yaml", "save_codec: shift-jis\n"},
		{"broken.toml", "addr = \n"},
	} {
		path := filepath.Join(dir, test.name)
		if err := os.WriteFile(path, []byte(test.content), 0666); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadSettings(path); err == nil {
			t.Errorf("%s: expected error", test.name)
		}
	}
}
