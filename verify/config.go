package verify

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gnoverse/impact/internal"
	"github.com/gnoverse/impact/internal/interpolation"
	"github.com/gnoverse/impact/internal/solver"
)

// DefaultConfigFile is the configuration file looked up when none is given.
const DefaultConfigFile = ".impact.yaml"

// Config represents the verifier configuration file.
type Config struct {
	Name          string               `yaml:"name"`
	Solver        solver.Config        `yaml:"solver"`
	Interpolation interpolation.Config `yaml:"interpolation"`
	Engine        EngineConfig         `yaml:"engine"`
	Cache         CacheConfig          `yaml:"cache"`
}

// EngineConfig bounds the unwinding.
type EngineConfig struct {
	// MaxVertices stops a run once the tree would grow past it. Zero
	// means unbounded.
	MaxVertices int `yaml:"max_vertices"`
}

// CacheConfig locates the verdict cache. An empty Dir disables it.
type CacheConfig struct {
	Dir    string        `yaml:"dir"`
	MaxAge time.Duration `yaml:"max_age"`
}

// DefaultConfig returns the configuration written by `impact init`.
func DefaultConfig() Config {
	return Config{
		Name:          "impact",
		Solver:        solver.DefaultConfig(),
		Interpolation: interpolation.DefaultConfig(),
		Cache: CacheConfig{
			Dir:    ".impact-cache",
			MaxAge: 24 * time.Hour,
		},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Options("").Validate(); err != nil {
		return err
	}
	if c.Cache.MaxAge < 0 {
		return fmt.Errorf("cache: negative max age %s", c.Cache.MaxAge)
	}
	return nil
}

// Options converts c into engine options.
func (c Config) Options(funcName string) internal.Options {
	return internal.Options{
		Solver:        c.Solver,
		Interpolation: c.Interpolation,
		MaxVertices:   c.Engine.MaxVertices,
		FuncName:      funcName,
	}
}

// LoadConfig reads the configuration file at path. Fields missing from the
// file keep their defaults, and a missing file yields DefaultConfig.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	if path == "" {
		path = DefaultConfigFile
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return config, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return config, fmt.Errorf("error parsing %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("invalid configuration %s: %w", path, err)
	}
	return config, nil
}

// WriteConfig writes config to path in YAML.
func WriteConfig(path string, config Config) error {
	d, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(path, d, 0o644)
}
