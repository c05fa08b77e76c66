package platform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ErrNotFound means no install root was configured and none of the
// conventional locations exist.
var ErrNotFound = errors.New("install root not found")

// Locator finds the client installation directory.
type Locator struct {
	// Root, when set, is returned as is.
	Root string
	// Detector picks the candidate list. Nil uses runtime.GOOS.
	Detector Detector
	// Home overrides the user home directory.
	Home string
	// Env overrides os.Getenv for Windows program-files lookups.
	Env func(string) string
}

// LocateInstallRoot returns the configured root, or the first conventional
// location for the host OS that is an existing directory.
func (l *Locator) LocateInstallRoot(ctx context.Context) (string, error) {
	if l.Root != "" {
		return filepath.Clean(l.Root), nil
	}

	goos := runtime.GOOS
	if l.Detector != nil {
		info, err := l.Detector.Detect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "", err
			}
		} else {
			goos = info.OS
		}
	}

	candidates := l.Candidates(goos)
	for _, dir := range candidates {
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%w (searched %d locations for %s)", ErrNotFound, len(candidates), goos)
}

// Candidates lists the conventional install locations for goos, most
// likely first.
func (l *Locator) Candidates(goos string) []string {
	home := l.Home
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	getenv := l.Env
	if getenv == nil {
		getenv = os.Getenv
	}

	var out []string
	switch goos {
	case "windows":
		for _, v := range []string{"ProgramFiles(x86)", "ProgramFiles"} {
			if base := getenv(v); base != "" {
				out = append(out, filepath.Join(base, "Steam"))
			}
		}
		out = append(out, `C:\Program Files (x86)\Steam`)
	case "darwin":
		if home != "" {
			out = append(out, filepath.Join(home, "Library", "Application Support", "Steam"))
		}
	default:
		if home != "" {
			out = append(out,
				filepath.Join(home, ".steam", "steam"),
				filepath.Join(home, ".local", "share", "Steam"),
				filepath.Join(home, ".var", "app", "com.valvesoftware.Steam", ".local", "share", "Steam"),
				filepath.Join(home, "snap", "steam", "common", ".local", "share", "Steam"),
			)
		}
	}
	return dedupe(out)
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := paths[:0]
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
