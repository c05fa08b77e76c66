// Package config loads the YAML settings file.
//
// A missing file yields the defaults, and any section left empty in the
// file is filled from the defaults. No mirror endpoints are shipped; they
// must be configured before anything can be fetched.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ZebulonRouseFrantzich/manifold/internal/archive"
	"github.com/ZebulonRouseFrantzich/manifold/internal/logging"
	"github.com/ZebulonRouseFrantzich/manifold/internal/mirror"
)

// Layout places the managed directories under the install root. Relative
// paths are joined to the root; absolute paths are used as they are.
type Layout struct {
	ScriptDir        string `yaml:"script_dir"`
	RevisionCacheDir string `yaml:"revision_cache_dir"`
	StatsDir         string `yaml:"stats_dir"`
	StatsPrefix      string `yaml:"stats_prefix"`
}

// Mirrors holds the endpoint templates. Templates may use {id} and
// {extension}.
type Mirrors struct {
	Templates  []string `yaml:"templates"`
	NameLookup string   `yaml:"name_lookup"`
	Alternate  string   `yaml:"alternate"`
}

// Endpoints converts the section into resolver endpoints.
func (m Mirrors) Endpoints() mirror.Endpoints {
	return mirror.Endpoints{
		Templates:  append([]string(nil), m.Templates...),
		NameLookup: m.NameLookup,
		Alternate:  m.Alternate,
	}
}

// Timeouts bounds network calls.
type Timeouts struct {
	Metadata time.Duration `yaml:"metadata"`
	Download time.Duration `yaml:"download"`
}

// Metrics controls Prometheus collection.
type Metrics struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Config is the complete settings file.
type Config struct {
	// InstallRoot is the client installation directory. Empty means detect.
	InstallRoot      string         `yaml:"install_root"`
	Layout           Layout         `yaml:"layout"`
	Mirrors          Mirrors        `yaml:"mirrors"`
	CredentialFile   string         `yaml:"credential_file"`
	CredentialPrefix string         `yaml:"credential_prefix"`
	StateDir         string         `yaml:"state_dir"`
	Timeouts         Timeouts       `yaml:"timeouts"`
	Archive          archive.Limits `yaml:"archive"`
	Log              logging.Config `yaml:"log"`
	Metrics          Metrics        `yaml:"metrics"`
}

// ValidationError reports an unusable setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Message)
}

// Default returns the built-in settings.
func Default() *Config {
	stateDir := defaultStateDir()
	return &Config{
		Layout: Layout{
			ScriptDir:        filepath.Join("config", "stplug-in"),
			RevisionCacheDir: filepath.Join("config", "depotcache"),
			StatsDir:         filepath.Join("appcache", "stats"),
			StatsPrefix:      "UserGameStatsSchema",
		},
		CredentialFile: filepath.Join(stateDir, "credential"),
		StateDir:       stateDir,
		Timeouts: Timeouts{
			Metadata: 10 * time.Second,
			Download: 30 * time.Second,
		},
		Archive: archive.DefaultLimits(),
		Log:     logging.DefaultConfig(),
		Metrics: Metrics{Namespace: "manifold"},
	}
}

// DefaultPath returns the settings file location under the user config dir.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".manifold", "config.yaml")
	}
	return filepath.Join(dir, "manifold", "config.yaml")
}

func defaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".manifold"
	}
	return filepath.Join(dir, "manifold")
}

// Load reads the settings file at path. An empty path or a missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML settings and fills empty fields from the defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.fillDefaults(Default())
	return &cfg, nil
}

func (c *Config) fillDefaults(def *Config) {
	if c.Layout.ScriptDir == "" {
		c.Layout.ScriptDir = def.Layout.ScriptDir
	}
	if c.Layout.RevisionCacheDir == "" {
		c.Layout.RevisionCacheDir = def.Layout.RevisionCacheDir
	}
	if c.Layout.StatsDir == "" {
		c.Layout.StatsDir = def.Layout.StatsDir
	}
	if c.Layout.StatsPrefix == "" {
		c.Layout.StatsPrefix = def.Layout.StatsPrefix
	}
	if c.StateDir == "" {
		c.StateDir = def.StateDir
	}
	if c.CredentialFile == "" {
		c.CredentialFile = filepath.Join(c.StateDir, "credential")
	}
	if c.Timeouts.Metadata == 0 {
		c.Timeouts.Metadata = def.Timeouts.Metadata
	}
	if c.Timeouts.Download == 0 {
		c.Timeouts.Download = def.Timeouts.Download
	}
	if c.Archive.MaxArchiveSize == 0 {
		c.Archive.MaxArchiveSize = def.Archive.MaxArchiveSize
	}
	if c.Archive.MaxEntries == 0 {
		c.Archive.MaxEntries = def.Archive.MaxEntries
	}
	if c.Archive.MaxEntrySize == 0 {
		c.Archive.MaxEntrySize = def.Archive.MaxEntrySize
	}
	if c.Archive.MaxTotalSize == 0 {
		c.Archive.MaxTotalSize = def.Archive.MaxTotalSize
	}
	if c.Archive.MaxRatio == 0 {
		c.Archive.MaxRatio = def.Archive.MaxRatio
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
	if c.Log.OutputPath == "" {
		c.Log.OutputPath = def.Log.OutputPath
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = def.Metrics.Namespace
	}
}

// Validate checks the settings for values that cannot work.
func (c *Config) Validate() error {
	for i, tmpl := range c.Mirrors.Templates {
		if !strings.Contains(tmpl, mirror.PlaceholderID) {
			return &ValidationError{Field: fmt.Sprintf("mirrors.templates[%d]", i), Message: "must contain " + mirror.PlaceholderID}
		}
		if err := checkURL(tmpl); err != nil {
			return &ValidationError{Field: fmt.Sprintf("mirrors.templates[%d]", i), Message: err.Error()}
		}
	}
	for field, tmpl := range map[string]string{"mirrors.name_lookup": c.Mirrors.NameLookup, "mirrors.alternate": c.Mirrors.Alternate} {
		if tmpl == "" {
			continue
		}
		if !strings.Contains(tmpl, mirror.PlaceholderID) {
			return &ValidationError{Field: field, Message: "must contain " + mirror.PlaceholderID}
		}
		if err := checkURL(tmpl); err != nil {
			return &ValidationError{Field: field, Message: err.Error()}
		}
	}

	if c.Timeouts.Metadata < 0 || c.Timeouts.Download < 0 {
		return &ValidationError{Field: "timeouts", Message: "must not be negative"}
	}
	if c.Archive.MaxArchiveSize <= 0 || c.Archive.MaxEntries <= 0 || c.Archive.MaxEntrySize <= 0 ||
		c.Archive.MaxTotalSize <= 0 || c.Archive.MaxRatio <= 0 {
		return &ValidationError{Field: "archive", Message: "limits must be positive"}
	}
	for field, dir := range map[string]string{
		"layout.script_dir":         c.Layout.ScriptDir,
		"layout.revision_cache_dir": c.Layout.RevisionCacheDir,
		"layout.stats_dir":          c.Layout.StatsDir,
	} {
		if !filepath.IsAbs(dir) && strings.HasPrefix(filepath.Clean(dir), "..") {
			return &ValidationError{Field: field, Message: "must stay inside the install root"}
		}
	}
	return nil
}

func checkURL(tmpl string) error {
	if !strings.HasPrefix(tmpl, "https://") && !strings.HasPrefix(tmpl, "http://") {
		return fmt.Errorf("must use http:// or https://")
	}
	return nil
}

// Resolve joins a layout directory to the install root.
func (c *Config) Resolve(root, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}
