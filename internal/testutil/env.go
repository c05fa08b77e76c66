// Package testutil provides utilities for testing manifold in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Env is an isolated install root and settings location.
type Env struct {
	Home       string
	Root       string
	StateDir   string
	ConfigPath string
}

// ScriptDir is the default script directory under Root.
func (e *Env) ScriptDir() string {
	return filepath.Join(e.Root, "config", "stplug-in")
}

// SetupTestEnv creates isolated directories for one test and points HOME,
// XDG_CONFIG_HOME and MANIFOLD_CONFIG at them, so a test can never find
// the real client installation or the user's settings.
//
// Cleanup is handled by t.TempDir.
func SetupTestEnv(t *testing.T) *Env {
	t.Helper()

	tmpDir := t.TempDir()
	env := &Env{
		Home:       filepath.Join(tmpDir, "home"),
		Root:       filepath.Join(tmpDir, "client"),
		StateDir:   filepath.Join(tmpDir, "state"),
		ConfigPath: filepath.Join(tmpDir, "config", "manifold.yaml"),
	}

	t.Setenv("HOME", env.Home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(env.Home, ".config"))
	t.Setenv("MANIFOLD_CONFIG", env.ConfigPath)

	dirs := []string{
		env.Home,
		env.StateDir,
		filepath.Dir(env.ConfigPath),
		env.ScriptDir(),
		filepath.Join(env.Root, "config", "depotcache"),
		filepath.Join(env.Root, "appcache", "stats"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}
	return env
}

// WriteConfig writes a settings file that pins the install root and state
// directory to the test environment, followed by extra YAML.
func (e *Env) WriteConfig(t *testing.T, extra string) {
	t.Helper()
	data := "install_root: " + e.Root + "\nstate_dir: " + e.StateDir + "\n" + extra
	if err := os.WriteFile(e.ConfigPath, []byte(data), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}
