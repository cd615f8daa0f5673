package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	Addr            string  `yaml:"addr" toml:"addr" json:"addr"`
	LibraryDir      string  `yaml:"library_dir" toml:"library_dir" json:"library_dir"`
	Watch           bool    `yaml:"watch" toml:"watch" json:"watch"`
	ParallelWorkers int     `yaml:"parallel_workers" toml:"parallel_workers" json:"parallel_workers"`
	Physics         bool    `yaml:"physics" toml:"physics" json:"physics"`
	TimeStep        float32 `yaml:"time_step" toml:"time_step" json:"time_step"`
	LogLevel        string  `yaml:"log_level" toml:"log_level" json:"log_level"`
	SaveCodec       string  `yaml:"save_codec" toml:"save_codec" json:"save_codec"`
}

func DefaultSettings() Settings {
	return Settings{
		Addr:            ":8000",
		LibraryDir:      ".",
		Watch:           false,
		ParallelWorkers: runtime.NumCPU(),
		Physics:         false,
		TimeStep:        1.0 / 60.0,
		LogLevel:        "info",
		SaveCodec:       CodecUTF16.String(),
	}
}

// LoadSettings reads yaml or toml file (by extension) over defaults
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		return s, errors.Wrapf(err, "Failed to read settings %q", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &s)
	case ".toml":
		err = toml.Unmarshal(data, &s)
	default:
		return s, errors.Errorf("Unknown settings format %q", path)
	}
	if err != nil {
		return s, errors.Wrapf(err, "Failed to parse settings %q", path)
	}

	return s, s.Validate()
}

func (s *Settings) Validate() error {
	if s.ParallelWorkers < 0 {
		return errors.Errorf("parallel_workers must not be negative: %d", s.ParallelWorkers)
	}
	if s.TimeStep <= 0 {
		return errors.Errorf("time_step must be positive: %v", s.TimeStep)
	}
	codec, err := ParseCodec(s.SaveCodec)
	if err != nil {
		return err
	}
	if codec == CodecShiftJIS {
		return errors.Errorf("save_codec %q is not allowed for pmx", s.SaveCodec)
	}
	return nil
}

func (s *Settings) Codec() Codec {
	codec, err := ParseCodec(s.SaveCodec)
	if err != nil {
		return CodecUTF16
	}
	return codec
}
