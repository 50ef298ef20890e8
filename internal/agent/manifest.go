package agent

import (
	"fmt"
	"io/fs"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the manifest file name inside an agent's template FS.
const ManifestFile = "agent.yaml"

// Default generation parameters.
const (
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7
)

// Manifest declares an agent: its templates and generation parameters.
type Manifest struct {
	Name        string `yaml:"name" validate:"required"`
	Description string `yaml:"description"`

	Templates struct {
		System string `yaml:"system" validate:"required"`
		User   string `yaml:"user" validate:"required"`
	} `yaml:"templates"`

	Generation Generation `yaml:"generation"`
}

// Generation holds the parameters sent with every generation call.
type Generation struct {
	MaxTokens   int      `yaml:"max_tokens" validate:"gte=0"`
	Temperature *float64 `yaml:"temperature" validate:"omitempty,gte=0,lte=2"`

	// Stream collects the answer through the streaming API. The caller
	// still receives one complete output.
	Stream bool `yaml:"stream"`
}

// temperature returns the configured temperature or the default.
func (g Generation) temperature() float64 {
	if g.Temperature == nil {
		return DefaultTemperature
	}
	return *g.Temperature
}

func (g Generation) maxTokens() int {
	if g.MaxTokens == 0 {
		return DefaultMaxTokens
	}
	return g.MaxTokens
}

// LoadManifest reads and validates ManifestFile from fsys.
func LoadManifest(fsys fs.FS) (Manifest, error) {
	var m Manifest

	data, err := fs.ReadFile(fsys, ManifestFile)
	if err != nil {
		return m, fmt.Errorf("read manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse manifest: %w", err)
	}
	if err := validator.New().Struct(m); err != nil {
		return m, fmt.Errorf("invalid manifest: %w", err)
	}
	return m, nil
}
