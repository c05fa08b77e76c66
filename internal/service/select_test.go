package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/ZebulonRouseFrantzich/manifold/internal/mirror"
)

func TestInstallSelected(t *testing.T) {
	f := newFixture(t, publicRoutes(), "")
	ctx := context.Background()

	// Selecting installs the base on demand.
	res, err := f.svc.InstallSelected(ctx, InstallSelectedRequest{ID: "100", Selected: []string{"201", "200", "201", "100"}})
	if err != nil {
		t.Fatalf("InstallSelected() error: %v", err)
	}
	if !res.Success || res.Code != CodeInstallChangesApplied {
		t.Fatalf("InstallSelected() = %+v", res.Result)
	}
	if !reflect.DeepEqual(res.InstalledIDs, []string{"201", "200"}) || len(res.FailedIDs) != 0 {
		t.Errorf("InstalledIDs = %v, FailedIDs = %v", res.InstalledIDs, res.FailedIDs)
	}

	want := "-- Example Game\n" +
		"addappid(100,0,\"WK\")\n" +
		"addappid(101,0,\"K101\")\n" +
		"addappid(201) -- Bonus\n" +
		"addappid(200,0,\"K200\") -- Soundtrack\n"
	first := readFile(t, f.svc.scriptPath("100"))
	if first != want {
		t.Errorf("script =\n%s\nwant\n%s", first, want)
	}

	if _, err := f.svc.InstallSelected(ctx, InstallSelectedRequest{ID: "100", Selected: []string{"201", "200"}}); err != nil {
		t.Fatal(err)
	}
	if second := readFile(t, f.svc.scriptPath("100")); second != first {
		t.Errorf("repeat selection changed the file:\n%s\nwas\n%s", second, first)
	}
}

func TestInstallSelectedEmptyClearsOptional(t *testing.T) {
	f := newFixture(t, publicRoutes(), "")
	writeFile(t, f.svc.scriptPath("100"),
		"-- header\naddappid(100,0,\"WK\")\naddappid(101)\naddappid(300) -- Mine\naddtoken(300,\"T\")\nprint(\"keep\")\n")

	res, err := f.svc.InstallSelected(context.Background(), InstallSelectedRequest{ID: "100"})
	if err != nil || !res.Success {
		t.Fatalf("InstallSelected() = %+v, %v", res, err)
	}
	want := "-- header\naddappid(100,0,\"WK\")\nprint(\"keep\")\n"
	if got := readFile(t, f.svc.scriptPath("100")); got != want {
		t.Errorf("script = %q, want %q", got, want)
	}
}

func TestInstallSelectedPrimaryOnlyKeepsOptional(t *testing.T) {
	f := newFixture(t, publicRoutes(), "")
	existing := "addappid(100,0,\"WK\")\naddappid(300) -- Mine\naddappid(301) -- Other\n"
	writeFile(t, f.svc.scriptPath("100"), existing)

	res, err := f.svc.InstallSelected(context.Background(), InstallSelectedRequest{ID: "100", Selected: []string{"100", " 100 "}})
	if err != nil || !res.Success {
		t.Fatalf("InstallSelected() = %+v, %v", res, err)
	}
	if len(res.InstalledIDs) != 0 {
		t.Errorf("InstalledIDs = %v, want none", res.InstalledIDs)
	}
	if got := readFile(t, f.svc.scriptPath("100")); got != existing {
		t.Errorf("script = %q, want unchanged %q", got, existing)
	}
}

func TestInstallSelectedKeepsSecondary(t *testing.T) {
	f := newFixture(t, publicRoutes(), "")
	existing := "addappid(100)\naddappid(500,1,\"K\") -- Old\naddappid(501,2) -- Other\n"
	writeFile(t, f.svc.scriptPath("100"), existing)

	if _, err := f.svc.InstallSelected(context.Background(), InstallSelectedRequest{ID: "100", Selected: []string{"500", "501"}}); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, f.svc.scriptPath("100")); got != existing {
		t.Errorf("script = %q, want %q", got, existing)
	}
}

func TestInstallSelectedKeepsExistingToken(t *testing.T) {
	f := newFixture(t, publicRoutes(), "")
	writeFile(t, f.svc.scriptPath("100"), "addappid(100)\naddappid(500,0,\"OLDKEY\") -- Old\naddtoken(500,\"OLDTOKEN\")\n")

	if _, err := f.svc.InstallSelected(context.Background(), InstallSelectedRequest{ID: "100", Selected: []string{"500"}}); err != nil {
		t.Fatal(err)
	}
	want := "addappid(100)\naddappid(500,0,\"OLDKEY\") -- Old\naddtoken(500,\"OLDTOKEN\")\n"
	if got := readFile(t, f.svc.scriptPath("100")); got != want {
		t.Errorf("script = %q, want %q", got, want)
	}
}

func TestInstallSelectedAlternate(t *testing.T) {
	f := newFixture(t, map[string]route{
		"/alt/300": {body: "addappid(300)\n", token: "tok"},
		"/alt/301": {body: "addappid(301,0,\"K301\")\naddtoken(301,\"T301\")\n", token: "tok"},
	}, "tok")

	res, err := f.svc.InstallSelected(context.Background(), InstallSelectedRequest{
		ID:       "300",
		Selected: []string{"301", "302"},
		Mirror:   mirror.Alternate,
	})
	if err != nil || !res.Success {
		t.Fatalf("InstallSelected() = %+v, %v", res, err)
	}
	want := "addappid(300)\n" +
		"addappid(301,0,\"K301\") -- Entry 301\n" +
		"addtoken(301,\"T301\")\n" +
		"addappid(302) -- Entry 302\n"
	if got := readFile(t, f.svc.scriptPath("300")); got != want {
		t.Errorf("script =\n%s\nwant\n%s", got, want)
	}
}

func TestInstallSelectedInvalid(t *testing.T) {
	f := newFixture(t, publicRoutes(), "")
	res, err := f.svc.InstallSelected(context.Background(), InstallSelectedRequest{ID: "100", Selected: []string{"200", "2x0"}})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("error = %v, want ErrInvalidRequest", err)
	}
	if res.Code != CodeInvalidID || res.Params["id"] != "2x0" {
		t.Errorf("InstallSelected() = %+v", res.Result)
	}
	if f.svc.IsInstalled("100") {
		t.Error("invalid request installed the base")
	}
}

func TestInstallSelectedBaseUnavailable(t *testing.T) {
	f := newFixture(t, nil, "")
	res, err := f.svc.InstallSelected(context.Background(), InstallSelectedRequest{ID: "100", Selected: []string{"200"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Code != CodeNotPublished {
		t.Errorf("InstallSelected() = %+v", res.Result)
	}
	if !reflect.DeepEqual(res.FailedIDs, []string{"200"}) {
		t.Errorf("FailedIDs = %v", res.FailedIDs)
	}
}
