package testutil_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZebulonRouseFrantzich/manifold/internal/config"
	"github.com/ZebulonRouseFrantzich/manifold/internal/testutil"
)

func TestSetupTestEnv(t *testing.T) {
	env := testutil.SetupTestEnv(t)

	if got := os.Getenv("HOME"); got != env.Home {
		t.Errorf("HOME = %q, want %q", got, env.Home)
	}
	if got := os.Getenv("MANIFOLD_CONFIG"); got != env.ConfigPath {
		t.Errorf("MANIFOLD_CONFIG = %q, want %q", got, env.ConfigPath)
	}

	for _, dir := range []string{env.Home, env.StateDir, env.ScriptDir(), filepath.Dir(env.ConfigPath)} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("directory %s does not exist", dir)
		}
		if !filepath.IsAbs(dir) {
			t.Errorf("path %s is not absolute", dir)
		}
	}

	if !strings.HasPrefix(config.DefaultPath(), env.Home) {
		t.Errorf("DefaultPath() = %q escapes the test home", config.DefaultPath())
	}
}

func TestSetupTestEnv_Isolation(t *testing.T) {
	env1 := testutil.SetupTestEnv(t)

	t.Run("subtest", func(t *testing.T) {
		env2 := testutil.SetupTestEnv(t)
		if env1.Root == env2.Root {
			t.Error("expected different temp directories for different test contexts")
		}
	})
}

func TestWriteConfig(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	env.WriteConfig(t, "log:\n  level: debug\n")

	cfg, err := config.Load(env.ConfigPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.InstallRoot != env.Root || cfg.StateDir != env.StateDir {
		t.Errorf("config = root %q state %q", cfg.InstallRoot, cfg.StateDir)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}
