// Package metadata decodes the JSON sidecar published next to a title's
// script. The sidecar maps sub-entry ids to decryption keys and revision
// branches, and advertises the optional entries a title offers.
package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ZebulonRouseFrantzich/manifold/internal/ident"
)

// ErrMalformed is returned when the sidecar is not a JSON object.
var ErrMalformed = errors.New("malformed metadata")

// Depot is the per-id record of a sidecar.
type Depot struct {
	Key      string
	Branches map[string]string
}

// Advertised is an optional entry listed by the sidecar.
type Advertised struct {
	ID       string
	Name     string
	HasDepot bool
}

// Document is a parsed sidecar. It is immutable once returned by Parse.
type Document struct {
	appID       string
	name        string
	workshopKey string
	depots      map[string]Depot
	advertised  []Advertised
}

var workshopKeyFields = []string{"workshopKey", "workshopkey", "workshop_key"}

var depotKeyFields = []string{"decryptionkey", "key"}

// Parse decodes a sidecar. Only a body that is not a JSON object fails;
// unexpected shapes inside the object are skipped.
func Parse(data []byte) (*Document, error) {
	var top map[string]json.RawMessage
	if err := decode(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if top == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}

	doc := &Document{depots: make(map[string]Depot)}
	doc.appID, _ = idValue(top["appid"])
	doc.name = stringValue(top["name"])
	for _, f := range workshopKeyFields {
		if k := stringValue(top[f]); k != "" {
			doc.workshopKey = k
			break
		}
	}

	doc.parseDepots(top["depot"])
	doc.parseAdvertised(top["dlc"])
	return doc, nil
}

func (d *Document) parseDepots(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}

	var byID map[string]json.RawMessage
	if err := decode(raw, &byID); err == nil {
		for id, rec := range byID {
			var fields map[string]json.RawMessage
			if decode(rec, &fields) != nil {
				continue
			}
			d.depots[strings.TrimSpace(id)] = depotFrom(fields)
		}
		return
	}

	var list []map[string]json.RawMessage
	if decode(raw, &list) != nil {
		return
	}
	for _, fields := range list {
		id, ok := idValue(fields["id"])
		if !ok {
			continue
		}
		d.depots[id] = depotFrom(fields)
	}
}

func depotFrom(fields map[string]json.RawMessage) Depot {
	var dep Depot
	for _, f := range depotKeyFields {
		if k := stringValue(fields[f]); k != "" {
			dep.Key = k
			break
		}
	}

	var branches map[string]json.RawMessage
	if decode(fields["manifests"], &branches) == nil && len(branches) > 0 {
		dep.Branches = make(map[string]string, len(branches))
		for name, rev := range branches {
			if v, ok := idValue(rev); ok {
				dep.Branches[name] = v
				continue
			}
			// Some sidecars wrap the revision: {"gid": "..."}.
			var wrapped map[string]json.RawMessage
			if decode(rev, &wrapped) == nil {
				if v, ok := idValue(wrapped["gid"]); ok {
					dep.Branches[name] = v
				}
			}
		}
	}
	return dep
}

func (d *Document) parseAdvertised(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	seen := make(map[string]bool)
	add := func(a Advertised) {
		if !ident.Valid(a.ID) || seen[a.ID] {
			return
		}
		seen[a.ID] = true
		d.advertised = append(d.advertised, a)
	}

	var byID map[string]json.RawMessage
	if decode(raw, &byID) == nil {
		for id, rec := range byID {
			a := Advertised{ID: strings.TrimSpace(id)}
			var fields map[string]json.RawMessage
			if decode(rec, &fields) == nil {
				a.Name = stringValue(fields["name"])
				a.HasDepot = boolValue(fields["hasDepot"])
			}
			add(a)
		}
	} else {
		var list []json.RawMessage
		if decode(raw, &list) != nil {
			return
		}
		for _, item := range list {
			if id, ok := idValue(item); ok {
				add(Advertised{ID: id})
				continue
			}
			var fields map[string]json.RawMessage
			if decode(item, &fields) != nil {
				continue
			}
			id, ok := idValue(fields["id"])
			if !ok {
				continue
			}
			add(Advertised{ID: id, Name: stringValue(fields["name"]), HasDepot: boolValue(fields["hasDepot"])})
		}
	}

	sort.Slice(d.advertised, func(i, j int) bool {
		return lessID(d.advertised[i].ID, d.advertised[j].ID)
	})
}

// AppID returns the sidecar's own id, if present.
func (d *Document) AppID() string { return d.appID }

// Name returns the title's display name, if present.
func (d *Document) Name() string { return d.name }

// WorkshopKey returns the title's own key, if present.
func (d *Document) WorkshopKey() string { return d.workshopKey }

// PrimaryKey implements script.KeySource.
func (d *Document) PrimaryKey() (string, bool) {
	return d.workshopKey, d.workshopKey != ""
}

// LookupKey returns the decryption key for id. The id is tried as written
// and then in canonical numeric form. Blank keys count as absent.
func (d *Document) LookupKey(id string) (string, bool) {
	dep, ok := d.depot(id)
	if !ok || dep.Key == "" {
		return "", false
	}
	return dep.Key, true
}

// Branches returns the branch name to revision mapping for id.
func (d *Document) Branches(id string) map[string]string {
	dep, ok := d.depot(id)
	if !ok || len(dep.Branches) == 0 {
		return nil
	}
	out := make(map[string]string, len(dep.Branches))
	for k, v := range dep.Branches {
		out[k] = v
	}
	return out
}

// DepotIDs returns every id that has a depot record, in numeric order.
func (d *Document) DepotIDs() []string {
	out := make([]string, 0, len(d.depots))
	for id := range d.depots {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i], out[j]) })
	return out
}

// Advertised returns the optional entries listed by the sidecar, ordered by id.
func (d *Document) Advertised() []Advertised {
	out := make([]Advertised, len(d.advertised))
	copy(out, d.advertised)
	return out
}

func (d *Document) depot(id string) (Depot, bool) {
	id = strings.TrimSpace(id)
	if dep, ok := d.depots[id]; ok {
		return dep, true
	}
	if canon, ok := canonical(id); ok && canon != id {
		dep, ok := d.depots[canon]
		return dep, ok
	}
	return Depot{}, false
}

func canonical(id string) (string, bool) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatUint(n, 10), true
}

func lessID(a, b string) bool {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	if errA == nil && errB == nil && na != nb {
		return na < nb
	}
	return a < b
}

func decode(data []byte, v any) error {
	if len(data) == 0 {
		return errors.New("empty")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// idValue accepts an id encoded as a JSON string or an integer.
func idValue(raw json.RawMessage) (string, bool) {
	var v any
	if decode(raw, &v) != nil {
		return "", false
	}
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case json.Number:
		s = t.String()
	default:
		return "", false
	}
	if !ident.Valid(s) {
		return "", false
	}
	return s, true
}

func stringValue(raw json.RawMessage) string {
	var v any
	if decode(raw, &v) != nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	}
	return ""
}

func boolValue(raw json.RawMessage) bool {
	var v any
	if decode(raw, &v) != nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case json.Number:
		return t.String() != "0"
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(t))
		return b
	}
	return false
}
