package service

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestRemoveAll(t *testing.T) {
	f := newFixture(t, nil, "")
	scripts := filepath.Join(f.root, "config", "stplug-in")
	revisions := filepath.Join(f.root, "config", "depotcache")
	stats := filepath.Join(f.root, "appcache", "stats")

	writeFile(t, filepath.Join(scripts, "100.lua"), "addappid(100)\naddappid(101,0,\"K\")\naddtoken(200,\"T\")\n")
	writeFile(t, filepath.Join(scripts, "100.json"), "{}")
	writeFile(t, filepath.Join(scripts, "999.lua"), "addappid(999)\n")
	writeFile(t, filepath.Join(revisions, "101_111.manifest"), "r")
	writeFile(t, filepath.Join(revisions, "200_222.manifest"), "r")
	writeFile(t, filepath.Join(revisions, "1010_333.manifest"), "r")
	writeFile(t, filepath.Join(stats, "UserGameStatsSchema_100.bin"), "s")
	writeFile(t, filepath.Join(stats, "usergamestatsschema_101_extra.bin"), "s")
	writeFile(t, filepath.Join(stats, "UserGameStatsSchema_999.bin"), "s")

	res, err := f.svc.RemoveAll(context.Background(), RemoveRequest{ID: "100"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Code != CodeRemoveDone {
		t.Fatalf("RemoveAll() = %+v", res.Result)
	}

	wantDeleted := []string{
		filepath.Join(scripts, "100.lua"),
		filepath.Join(scripts, "100.json"),
		filepath.Join(revisions, "101_111.manifest"),
		filepath.Join(revisions, "200_222.manifest"),
		filepath.Join(stats, "UserGameStatsSchema_100.bin"),
		filepath.Join(stats, "usergamestatsschema_101_extra.bin"),
	}
	got := append([]string(nil), res.DeletedPaths...)
	sort.Strings(got)
	sort.Strings(wantDeleted)
	if len(got) != len(wantDeleted) {
		t.Fatalf("DeletedPaths = %v, want %v", got, wantDeleted)
	}
	for i := range got {
		if got[i] != wantDeleted[i] {
			t.Errorf("DeletedPaths[%d] = %s, want %s", i, got[i], wantDeleted[i])
		}
	}

	for _, kept := range []string{
		filepath.Join(scripts, "999.lua"),
		filepath.Join(revisions, "1010_333.manifest"),
		filepath.Join(stats, "UserGameStatsSchema_999.bin"),
	} {
		if _, err := os.Stat(kept); err != nil {
			t.Errorf("unrelated file removed: %s", kept)
		}
	}
	if f.svc.IsInstalled("100") {
		t.Error("IsInstalled() = true after RemoveAll")
	}
}

func TestRemoveAllNothingInstalled(t *testing.T) {
	f := newFixture(t, nil, "")
	res, err := f.svc.RemoveAll(context.Background(), RemoveRequest{ID: "100"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Code != CodeRemoveNothing {
		t.Errorf("RemoveAll() = %+v", res.Result)
	}
}

func TestRemoveAllWithoutScriptStillCleansByID(t *testing.T) {
	f := newFixture(t, nil, "")
	rev := filepath.Join(f.root, "config", "depotcache", "100_1.manifest")
	writeFile(t, rev, "r")

	res, err := f.svc.RemoveAll(context.Background(), RemoveRequest{ID: "100"})
	if err != nil || !res.Success {
		t.Fatalf("RemoveAll() = %+v, %v", res, err)
	}
	if _, err := os.Stat(rev); !os.IsNotExist(err) {
		t.Error("revision file for the primary id was kept")
	}
}

func TestHasIDPrefix(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"10_5.manifest", true},
		{"10.bin", true},
		{"100_5.manifest", false},
		{"1_5.manifest", false},
		{"10", true},
	}
	for _, tt := range tests {
		if got := hasIDPrefix(tt.name, []string{"10"}); got != tt.want {
			t.Errorf("hasIDPrefix(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
