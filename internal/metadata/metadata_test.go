package metadata

import (
	"errors"
	"reflect"
	"testing"
)

const sampleSidecar = `{
  "appid": 100,
  "name": "Example Game",
  "workshopKey": "  WK  ",
  "depot": {
    "101": {"decryptionkey": " ABC ", "manifests": {"public": "777", "beta": {"gid": 778}}},
    "102": {"key": "DEF"},
    "103": {"decryptionkey": "   "},
    "104": "not-an-object"
  },
  "dlc": {
    "300": {"name": "Soundtrack", "hasDepot": false},
    "200": {"name": "Expansion", "hasDepot": true},
    "abc": {"name": "ignored"}
  }
}`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(sampleSidecar))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if doc.AppID() != "100" {
		t.Errorf("AppID() = %q", doc.AppID())
	}
	if doc.Name() != "Example Game" {
		t.Errorf("Name() = %q", doc.Name())
	}
	if k, ok := doc.PrimaryKey(); !ok || k != "WK" {
		t.Errorf("PrimaryKey() = %q, %v", k, ok)
	}

	want := []Advertised{
		{ID: "200", Name: "Expansion", HasDepot: true},
		{ID: "300", Name: "Soundtrack"},
	}
	if got := doc.Advertised(); !reflect.DeepEqual(got, want) {
		t.Errorf("Advertised() = %+v, want %+v", got, want)
	}

	wantBranches := map[string]string{"public": "777", "beta": "778"}
	if got := doc.Branches("101"); !reflect.DeepEqual(got, wantBranches) {
		t.Errorf("Branches(101) = %v, want %v", got, wantBranches)
	}
	if got := doc.Branches("102"); got != nil {
		t.Errorf("Branches(102) = %v, want nil", got)
	}
}

func TestLookupKey(t *testing.T) {
	doc, err := Parse([]byte(sampleSidecar))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	tests := []struct {
		id     string
		want   string
		wantOK bool
	}{
		{id: "101", want: "ABC", wantOK: true},
		{id: " 101 ", want: "ABC", wantOK: true},
		{id: "0101", want: "ABC", wantOK: true},
		{id: "102", want: "DEF", wantOK: true},
		{id: "103"},
		{id: "104"},
		{id: "999"},
		{id: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, ok := doc.LookupKey(tt.id)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("LookupKey(%q) = %q, %v; want %q, %v", tt.id, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseAlternateShapes(t *testing.T) {
	data := `{
	  "appid": "55",
	  "workshop_key": "W",
	  "depot": [{"id": 56, "key": "K56"}, {"id": "57", "decryptionkey": "K57"}, {"key": "orphan"}],
	  "dlc": [60, "58", {"id": 59, "name": "Bonus", "hasDepot": "true"}, 58]
	}`

	doc, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if doc.AppID() != "55" || doc.WorkshopKey() != "W" {
		t.Errorf("AppID/WorkshopKey = %q/%q", doc.AppID(), doc.WorkshopKey())
	}
	if k, _ := doc.LookupKey("56"); k != "K56" {
		t.Errorf("LookupKey(56) = %q", k)
	}
	if k, _ := doc.LookupKey("57"); k != "K57" {
		t.Errorf("LookupKey(57) = %q", k)
	}
	if got, want := doc.DepotIDs(), []string{"56", "57"}; !reflect.DeepEqual(got, want) {
		t.Errorf("DepotIDs() = %v, want %v", got, want)
	}

	want := []Advertised{
		{ID: "58"},
		{ID: "59", Name: "Bonus", HasDepot: true},
		{ID: "60"},
	}
	if got := doc.Advertised(); !reflect.DeepEqual(got, want) {
		t.Errorf("Advertised() = %+v, want %+v", got, want)
	}
}

func TestParseMalformed(t *testing.T) {
	inputs := map[string]string{
		"html":      "<html><body>Not Found</body></html>",
		"array":     `[1, 2, 3]`,
		"null":      `null`,
		"truncated": `{"appid": 1, "depot": {`,
		"empty":     ``,
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(in))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Parse() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestEmptyObject(t *testing.T) {
	doc, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if _, ok := doc.PrimaryKey(); ok {
		t.Error("PrimaryKey() reported a key for an empty sidecar")
	}
	if len(doc.Advertised()) != 0 {
		t.Error("Advertised() not empty")
	}
}
