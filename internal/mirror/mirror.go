// Package mirror turns identifiers into candidate download locations.
package mirror

import (
	"fmt"
	"strings"
)

// Class names a source category with its own trust and content shape.
type Class string

const (
	// Public is the set of unauthenticated community mirrors.
	Public Class = "public"
	// Alternate is the authenticated alternate source.
	Alternate Class = "alternate"
)

// String returns the string representation of the class.
func (c Class) String() string {
	return string(c)
}

// ParseClass maps user input to a Class. Empty input means Public.
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(Public):
		return Public, nil
	case string(Alternate):
		return Alternate, nil
	default:
		return "", fmt.Errorf("unknown mirror class: %q", s)
	}
}

// Kind is the document kind requested from a mirror.
type Kind string

const (
	// KindScript is the declarative script document.
	KindScript Kind = "script"
	// KindMetadata is the JSON metadata sidecar.
	KindMetadata Kind = "metadata"
)

// Extension returns the file extension for the kind, dot included.
func (k Kind) Extension() string {
	switch k {
	case KindScript:
		return ".lua"
	case KindMetadata:
		return ".json"
	default:
		return ""
	}
}

// Template placeholders.
const (
	PlaceholderID        = "{id}"
	PlaceholderExtension = "{extension}"
)

// Endpoints holds the configured URL templates.
type Endpoints struct {
	// Templates are tried in order for public script and metadata documents.
	Templates []string
	// NameLookup returns the display name of a title.
	NameLookup string
	// Alternate serves archives or scripts for the authenticated source.
	Alternate string
}

// Resolver expands endpoint templates. It performs no I/O.
type Resolver struct {
	endpoints Endpoints
}

// NewResolver creates a resolver over endpoints. Blank templates are dropped.
func NewResolver(endpoints Endpoints) *Resolver {
	templates := make([]string, 0, len(endpoints.Templates))
	for _, tmpl := range endpoints.Templates {
		if tmpl = strings.TrimSpace(tmpl); tmpl != "" {
			templates = append(templates, tmpl)
		}
	}
	endpoints.Templates = templates
	return &Resolver{endpoints: endpoints}
}

// Resolve returns the ordered candidate URLs for a public document. An empty
// result means the document is unavailable.
func (r *Resolver) Resolve(kind Kind, id string) []string {
	urls := make([]string, 0, len(r.endpoints.Templates))
	for _, tmpl := range r.endpoints.Templates {
		urls = append(urls, expand(tmpl, id, kind.Extension()))
	}
	return urls
}

// NameURL returns the display-name lookup URL, or "" when not configured.
func (r *Resolver) NameURL(id string) string {
	if r.endpoints.NameLookup == "" {
		return ""
	}
	return expand(r.endpoints.NameLookup, id, "")
}

// AlternateURL returns the authenticated source URL, or "" when not configured.
func (r *Resolver) AlternateURL(id string) string {
	if r.endpoints.Alternate == "" {
		return ""
	}
	return expand(r.endpoints.Alternate, id, "")
}

// HasAlternate reports whether the authenticated source is configured.
func (r *Resolver) HasAlternate() bool {
	return r.endpoints.Alternate != ""
}

func expand(tmpl, id, ext string) string {
	out := strings.ReplaceAll(tmpl, PlaceholderID, id)
	return strings.ReplaceAll(out, PlaceholderExtension, ext)
}
