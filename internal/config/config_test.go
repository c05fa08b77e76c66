package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZebulonRouseFrantzich/manifold/internal/archive"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	def := Default()
	if cfg.Layout != def.Layout {
		t.Errorf("Layout = %+v, want %+v", cfg.Layout, def.Layout)
	}
	if len(cfg.Mirrors.Templates) != 0 {
		t.Errorf("default templates = %v, want none", cfg.Mirrors.Templates)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults fail validation: %v", err)
	}
}

func TestParseFillsDefaults(t *testing.T) {
	data := `
install_root: /opt/client
layout:
  script_dir: plugins
mirrors:
  templates:
    - https://mirror.test/{id}/{id}{extension}
  alternate: https://alt.test/api/file/{id}
timeouts:
  download: 45s
log:
  level: debug
  format: json
`
	cfg, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if cfg.InstallRoot != "/opt/client" {
		t.Errorf("InstallRoot = %q", cfg.InstallRoot)
	}
	if cfg.Layout.ScriptDir != "plugins" {
		t.Errorf("ScriptDir = %q", cfg.Layout.ScriptDir)
	}
	if cfg.Layout.StatsPrefix != "UserGameStatsSchema" {
		t.Errorf("StatsPrefix not defaulted: %q", cfg.Layout.StatsPrefix)
	}
	if cfg.Timeouts.Download != 45*time.Second {
		t.Errorf("Download timeout = %v", cfg.Timeouts.Download)
	}
	if cfg.Timeouts.Metadata != 10*time.Second {
		t.Errorf("Metadata timeout not defaulted: %v", cfg.Timeouts.Metadata)
	}
	if cfg.Archive.MaxEntries != 1000 {
		t.Errorf("archive limits not defaulted: %+v", cfg.Archive)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.CredentialFile != filepath.Join(cfg.StateDir, "credential") {
		t.Errorf("CredentialFile = %q", cfg.CredentialFile)
	}

	ep := cfg.Mirrors.Endpoints()
	if len(ep.Templates) != 1 || ep.Alternate != "https://alt.test/api/file/{id}" {
		t.Errorf("Endpoints() = %+v", ep)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("state_dir: /var/lib/manifold\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.CredentialFile != filepath.Join("/var/lib/manifold", "credential") {
		t.Errorf("CredentialFile = %q", cfg.CredentialFile)
	}
}

func TestParseFillsPartialSections(t *testing.T) {
	data := `
archive:
  max_entries: 50
log:
  level: debug
`
	cfg, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	want := archive.DefaultLimits()
	want.MaxEntries = 50
	if cfg.Archive != want {
		t.Errorf("Archive = %+v, want %+v", cfg.Archive, want)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "console" || cfg.Log.OutputPath != "stderr" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestParseInvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("layout: [unclosed")); err == nil {
		t.Error("Parse() accepted invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "template_without_id",
			mutate:    func(c *Config) { c.Mirrors.Templates = []string{"https://m.test/file.lua"} },
			wantField: "mirrors.templates[0]",
		},
		{
			name:      "template_bad_scheme",
			mutate:    func(c *Config) { c.Mirrors.Templates = []string{"ftp://m.test/{id}"} },
			wantField: "mirrors.templates[0]",
		},
		{
			name:      "alternate_without_id",
			mutate:    func(c *Config) { c.Mirrors.Alternate = "https://alt.test/" },
			wantField: "mirrors.alternate",
		},
		{
			name:      "negative_timeout",
			mutate:    func(c *Config) { c.Timeouts.Metadata = -time.Second },
			wantField: "timeouts",
		},
		{
			name:      "zero_limit",
			mutate:    func(c *Config) { c.Archive.MaxEntries = 0 },
			wantField: "archive",
		},
		{
			name:      "escaping_layout",
			mutate:    func(c *Config) { c.Layout.StatsDir = "../elsewhere" },
			wantField: "layout.stats_dir",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", vErr.Field, tt.wantField)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	cfg := Default()
	root := filepath.Join(string(filepath.Separator), "opt", "client")
	if got := cfg.Resolve(root, cfg.Layout.ScriptDir); got != filepath.Join(root, "config", "stplug-in") {
		t.Errorf("Resolve(relative) = %q", got)
	}
	abs := filepath.Join(string(filepath.Separator), "srv", "scripts")
	if got := cfg.Resolve(root, abs); got != abs {
		t.Errorf("Resolve(absolute) = %q", got)
	}
}
