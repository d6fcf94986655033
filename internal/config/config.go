package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/dreamffi/internal/dm"
)

// FileNames are the config file names Load looks for, in order.
var FileNames = []string{"dreamffi.yml", "dreamffi.yaml"}

// ProjectConfig holds project-level settings loaded from dreamffi.yml.
type ProjectConfig struct {
	// Defines are extra macros applied before parsing.
	Defines map[string]string `yaml:"defines,omitempty"`
	// Include lists files pushed before the environment, relative to Dir.
	Include   []string `yaml:"include,omitempty"`
	Workers   int      `yaml:"workers,omitempty"`
	LogLevel  string   `yaml:"logLevel,omitempty"`
	GraphPath string   `yaml:"graphPath,omitempty"`

	// Dir is the directory the config was loaded from.
	Dir string `yaml:"-"`
}

// Load attempts to read dreamffi.yml or dreamffi.yaml from the given
// directory. Returns a zero-value config (not an error) if no config file
// exists.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range FileNames {
		cfg, err := LoadFile(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return cfg, err
	}
	return &ProjectConfig{Dir: dir}, nil
}

// LoadFile reads the config at path.
func LoadFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := ProjectConfig{Dir: filepath.Dir(path)}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("parse %s: workers must not be negative", path)
	}
	if cfg.LogLevel != "" {
		if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return &cfg, nil
}

// ForEnvironment loads the config that sits next to env.
func ForEnvironment(env string) (*ProjectConfig, error) {
	return Load(filepath.Dir(env))
}

// Options converts the config into front-end options.
func (c *ProjectConfig) Options(log *zerolog.Logger) dm.Options {
	return dm.Options{Defines: c.Defines, Workers: c.Workers, Logger: log}
}

// FileList returns the ordered parse list for env: configured includes,
// then extra, then env last.
func (c *ProjectConfig) FileList(env string, extra ...string) []string {
	files := make([]string, 0, len(c.Include)+len(extra)+1)
	for _, inc := range c.Include {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(c.Dir, filepath.FromSlash(inc))
		}
		files = append(files, inc)
	}
	files = append(files, extra...)
	return append(files, env)
}

// ResolveGraphPath returns GraphPath made absolute against Dir, or fallback
// when unset.
func (c *ProjectConfig) ResolveGraphPath(fallback string) string {
	switch {
	case c.GraphPath == "":
		return fallback
	case filepath.IsAbs(c.GraphPath):
		return c.GraphPath
	default:
		return filepath.Join(c.Dir, filepath.FromSlash(c.GraphPath))
	}
}

// Opener parses environments with the defines and workers of the config
// next to each environment. It satisfies session.Opener. An invalid config
// is logged and ignored so hosts still get a parse.
type Opener struct {
	Log *zerolog.Logger
}

// Open parses files, reading the config beside the last entry.
func (o Opener) Open(ctx context.Context, files []string) (*dm.Outcome, error) {
	opts := dm.Options{Logger: o.Log}
	if len(files) > 0 {
		cfg, err := ForEnvironment(files[len(files)-1])
		switch {
		case err != nil && o.Log != nil:
			o.Log.Warn().Err(err).Str("environment", files[len(files)-1]).Msg("ignoring invalid config")
		case err == nil:
			opts = cfg.Options(o.Log)
		}
	}
	return dm.Open(ctx, files, opts)
}
