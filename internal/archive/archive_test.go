package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

type zipEntry struct {
	name string
	body string
}

func buildZip(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", e.name, err)
		}
		if _, err := w.Write([]byte(e.body)); err != nil {
			t.Fatalf("write zip entry %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func testDestinations(t *testing.T) Destinations {
	t.Helper()
	root := t.TempDir()
	return Destinations{
		ScriptDir:        filepath.Join(root, "config", "stplug-in"),
		RevisionCacheDir: filepath.Join(root, "depotcache"),
		StatsDir:         filepath.Join(root, "config", "StatsExport"),
	}
}

func TestExtractRouting(t *testing.T) {
	dest := testDestinations(t)
	data := buildZip(t,
		zipEntry{"100/100.lua", "addappid(100)\naddappid(101,0,\"K\")\n"},
		zipEntry{"100/101_5555.manifest", "rev"},
		zipEntry{"UserGameStatsSchema_100.bin", "stats"},
		zipEntry{"usergamestatsschema_101.BIN", "stats2"},
		zipEntry{"other_100.bin", "ignored"},
		zipEntry{"100.json", `{"appid":100}`},
		zipEntry{"readme.txt", "ignored"},
		zipEntry{"nested/", ""},
	)

	ex := NewExtractor("UserGameStatsSchema", DefaultLimits(), nil)
	res := ex.Extract(data, dest)
	if !res.Success {
		t.Fatalf("Extract() failed: %s", res.Error)
	}

	want := []string{
		filepath.Join(dest.ScriptDir, "100.lua"),
		filepath.Join(dest.RevisionCacheDir, "101_5555.manifest"),
		filepath.Join(dest.StatsDir, "UserGameStatsSchema_100.bin"),
		filepath.Join(dest.StatsDir, "usergamestatsschema_101.BIN"),
		filepath.Join(dest.ScriptDir, "100.json"),
	}
	got := append([]string(nil), res.InstalledPaths...)
	sort.Strings(got)
	sort.Strings(want)
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("InstalledPaths =\n%v\nwant\n%v", got, want)
	}

	if res.MainScript != "addappid(100)\naddappid(101,0,\"K\")\n" {
		t.Errorf("MainScript = %q", res.MainScript)
	}
	for _, skipped := range []string{
		filepath.Join(dest.StatsDir, "other_100.bin"),
		filepath.Join(dest.ScriptDir, "readme.txt"),
	} {
		if _, err := os.Stat(skipped); !os.IsNotExist(err) {
			t.Errorf("%s should not be written", skipped)
		}
	}
}

func TestExtractWithoutScript(t *testing.T) {
	dest := testDestinations(t)
	data := buildZip(t,
		zipEntry{"101_1.manifest", "rev"},
		zipEntry{"100.json", "{}"},
	)

	res := NewExtractor("UserGameStatsSchema", DefaultLimits(), nil).Extract(data, dest)
	if res.Success {
		t.Fatal("Extract() succeeded without a script")
	}
	if res.Error == "" || !errors.Is(res.Cause, ErrNoScripts) {
		t.Errorf("Error = %q, Cause = %v; want ErrNoScripts", res.Error, res.Cause)
	}
	if len(res.InstalledPaths) != 0 {
		t.Errorf("InstalledPaths = %v, want none", res.InstalledPaths)
	}
	if _, err := os.Stat(filepath.Join(dest.RevisionCacheDir, "101_1.manifest")); !os.IsNotExist(err) {
		t.Error("revision file written for an archive without a script")
	}
}

func TestExtractMergesUserEntries(t *testing.T) {
	dest := testDestinations(t)
	target := filepath.Join(dest.ScriptDir, "100.lua")
	if err := os.MkdirAll(dest.ScriptDir, 0755); err != nil {
		t.Fatal(err)
	}
	existing := "addappid(100)\naddappid(101)\naddtoken(101,\"OLD\")\naddappid(200) -- Soundtrack\naddtoken(200,\"T200\")\n"
	if err := os.WriteFile(target, []byte(existing), 0644); err != nil {
		t.Fatal(err)
	}

	data := buildZip(t, zipEntry{"100.lua", "addappid(100,0,\"K\")\naddappid(101,0,\"K1\")\n"})
	ex := NewExtractor("", DefaultLimits(), nil)

	for i := 0; i < 2; i++ {
		res := ex.Extract(data, dest)
		if !res.Success {
			t.Fatalf("Extract() #%d failed: %s", i+1, res.Error)
		}
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	want := "addappid(100,0,\"K\")\naddappid(101,0,\"K1\")\naddappid(200) -- Soundtrack\naddtoken(200,\"T200\")\n"
	if string(got) != want {
		t.Errorf("merged script =\n%q\nwant\n%q", got, want)
	}
	if n := strings.Count(string(got), "addappid(200)"); n != 1 {
		t.Errorf("user entry appears %d times, want 1", n)
	}
	if n := strings.Count(string(got), "addtoken(200"); n != 1 {
		t.Errorf("user token appears %d times, want 1", n)
	}
}

func TestExtractCorruptArchiveWritesNothing(t *testing.T) {
	dest := testDestinations(t)
	res := NewExtractor("", DefaultLimits(), nil).Extract([]byte("PK\x03\x04 definitely not a zip"), dest)
	if res.Success || res.Error == "" {
		t.Fatalf("Extract() = %+v, want failure", res)
	}
	if !errors.Is(res.Cause, ErrMalformedArchive) {
		t.Errorf("Cause = %v, want ErrMalformedArchive", res.Cause)
	}
	if _, err := os.Stat(dest.ScriptDir); !os.IsNotExist(err) {
		t.Error("script dir created for a corrupt archive")
	}
}

func TestExtractEnforcesEntrySize(t *testing.T) {
	dest := testDestinations(t)
	data := buildZip(t, zipEntry{"100.lua", strings.Repeat("-- x\n", 100)})

	limits := DefaultLimits()
	limits.MaxEntrySize = 64
	res := NewExtractor("", limits, nil).Extract(data, dest)
	if res.Success {
		t.Fatal("Extract() accepted an oversized entry")
	}
}

func TestValidate(t *testing.T) {
	small := buildZip(t, zipEntry{"100.lua", "addappid(100)\n"})

	tests := []struct {
		name    string
		data    []byte
		limits  func(*Limits)
		wantErr bool
	}{
		{name: "ok", data: small},
		{name: "not_a_zip", data: []byte("<html></html>"), wantErr: true},
		{name: "traversal", data: buildZip(t, zipEntry{"../evil.lua", "x"}), wantErr: true},
		{name: "absolute", data: buildZip(t, zipEntry{"/etc/evil.lua", "x"}), wantErr: true},
		{name: "backslash_absolute", data: buildZip(t, zipEntry{`\evil.lua`, "x"}), wantErr: true},
		{name: "drive_letter", data: buildZip(t, zipEntry{"C:/evil.lua", "x"}), wantErr: true},
		{
			name:    "archive_size",
			data:    small,
			limits:  func(l *Limits) { l.MaxArchiveSize = 10 },
			wantErr: true,
		},
		{
			name:    "entry_count",
			data:    buildZip(t, zipEntry{"a.lua", "x"}, zipEntry{"b.lua", "y"}),
			limits:  func(l *Limits) { l.MaxEntries = 1 },
			wantErr: true,
		},
		{
			name:    "entry_size",
			data:    buildZip(t, zipEntry{"a.lua", strings.Repeat("x", 200)}),
			limits:  func(l *Limits) { l.MaxEntrySize = 100 },
			wantErr: true,
		},
		{
			name:    "total_size",
			data:    buildZip(t, zipEntry{"a.lua", strings.Repeat("x", 60)}, zipEntry{"b.lua", strings.Repeat("y", 60)}),
			limits:  func(l *Limits) { l.MaxTotalSize = 100 },
			wantErr: true,
		},
		{
			name:    "ratio",
			data:    buildZip(t, zipEntry{"bomb.lua", strings.Repeat("0", 1<<20)}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limits := DefaultLimits()
			if tt.limits != nil {
				tt.limits(&limits)
			}
			err := Validate(tt.data, limits)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedArchive) {
					t.Errorf("Validate() error = %v, want ErrMalformedArchive", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestIsArchive(t *testing.T) {
	zipped := buildZip(t, zipEntry{"a.lua", "x"})
	tests := []struct {
		name        string
		data        []byte
		contentType string
		want        bool
	}{
		{name: "magic", data: zipped, contentType: "application/octet-stream", want: true},
		{name: "content_type", data: []byte("??"), contentType: "application/zip", want: true},
		{name: "text", data: []byte("addappid(1)"), contentType: "text/plain; charset=utf-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsArchive(tt.data, tt.contentType); got != tt.want {
				t.Errorf("IsArchive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFindScript(t *testing.T) {
	data := buildZip(t,
		zipEntry{"other.lua", "addappid(1)\n"},
		zipEntry{"pack/200.lua", "addappid(200,0,\"K\")\n"},
	)

	got, ok, err := FindScript(data, "200")
	if err != nil || !ok {
		t.Fatalf("FindScript(200) = %v, %v", ok, err)
	}
	if got != "addappid(200,0,\"K\")\n" {
		t.Errorf("FindScript(200) = %q", got)
	}

	got, ok, _ = FindScript(data, "999")
	if !ok || got != "addappid(1)\n" {
		t.Errorf("FindScript(999) fallback = %q, %v", got, ok)
	}

	if _, ok, _ := FindScript(buildZip(t, zipEntry{"a.json", "{}"}), "1"); ok {
		t.Error("FindScript found a script in an archive without one")
	}
}
