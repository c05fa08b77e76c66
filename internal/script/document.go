// Package script parses and rewrites the per-title script documents consumed
// by the content-unlock runtime.
//
// A document is an ordered list of lines. Directive lines (entries, tokens
// and revision pins) are tokenized into typed values; every other line is
// kept verbatim. Transformations never mutate a document in place, they
// return a new one.
//
// Parsed lines keep their original text until a transformation replaces
// them, so serialize(parse(x)) only changes what was edited and the round
// trip is a fixed point:
//
//	doc := script.Parse(text)
//	doc = doc.InjectKeys("100", meta)
//	out := doc.String()
package script

import (
	"strconv"
	"strings"

	"github.com/ZebulonRouseFrantzich/manifold/internal/ident"
)

const utf8BOM = "\uFEFF"

// Document is an ordered sequence of script lines.
type Document struct {
	lines []Line
}

// Parse splits text into lines and classifies each one. It never fails:
// unrecognized lines become Opaque.
func Parse(text string) *Document {
	text = strings.TrimPrefix(text, utf8BOM)
	if text == "" {
		return &Document{}
	}

	raw := strings.Split(text, "\n")
	lines := make([]Line, 0, len(raw))
	for _, r := range raw {
		lines = append(lines, classify(strings.TrimSuffix(r, "\r")))
	}
	return &Document{lines: lines}
}

func classify(raw string) Line {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "":
		return Blank{Raw: raw}
	case strings.HasPrefix(trimmed, commentMarker):
		return Comment{Raw: raw}
	}

	c, err := tokenizeCall(trimmed)
	if err != nil {
		return Opaque{Raw: raw}
	}

	switch c.keyword {
	case KeywordEntry:
		if e, ok := entryFromCall(c); ok {
			e.raw = raw
			return e
		}
	case KeywordToken:
		if len(c.args) == 2 && validID(c.args[0]) && c.args[1].kind == argString {
			return Token{ID: c.args[0].value, Value: c.args[1].value, Comment: c.comment, raw: raw}
		}
	case KeywordPin:
		if len(c.args) == 2 && validID(c.args[0]) {
			return Pin{ID: c.args[0].value, ManifestID: c.args[1].value, Comment: c.comment, raw: raw}
		}
	}
	return Opaque{Raw: raw}
}

func entryFromCall(c call) (Entry, bool) {
	if len(c.args) == 0 || len(c.args) > 3 || !validID(c.args[0]) {
		return Entry{}, false
	}
	e := Entry{ID: c.args[0].value, Comment: c.comment}

	rest := c.args[1:]
	if len(rest) > 0 && rest[0].kind == argNumber {
		n, err := strconv.Atoi(rest[0].value)
		if err != nil {
			return Entry{}, false
		}
		e.Secondary = n
		rest = rest[1:]
	}
	if len(rest) > 0 {
		if rest[0].kind != argString {
			return Entry{}, false
		}
		e.Key = strings.TrimSpace(rest[0].value)
		rest = rest[1:]
	}
	if len(rest) > 0 {
		return Entry{}, false
	}
	return e, true
}

func validID(a arg) bool {
	return ident.Valid(a.value) && a.value == strings.TrimSpace(a.value)
}

// String serializes the document: lines joined by a single newline, trailing
// blank lines removed, and exactly one trailing newline unless empty.
func (d *Document) String() string {
	end := len(d.lines)
	for end > 0 {
		if _, blank := d.lines[end-1].(Blank); !blank {
			break
		}
		end--
	}
	if end == 0 {
		return ""
	}

	var b strings.Builder
	for i := 0; i < end; i++ {
		b.WriteString(d.lines[i].Text())
		b.WriteByte('\n')
	}
	return b.String()
}

// Lines returns a copy of the document's lines.
func (d *Document) Lines() []Line {
	out := make([]Line, len(d.lines))
	copy(out, d.lines)
	return out
}

// Len returns the number of lines.
func (d *Document) Len() int { return len(d.lines) }

// Entries returns the entry directives in document order.
func (d *Document) Entries() []Entry {
	var out []Entry
	for _, l := range d.lines {
		if e, ok := l.(Entry); ok {
			out = append(out, e)
		}
	}
	return out
}

// Entry returns the first entry directive for id.
func (d *Document) Entry(id string) (Entry, bool) {
	id = strings.TrimSpace(id)
	for _, l := range d.lines {
		if e, ok := l.(Entry); ok && e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// HasEntry reports whether an entry directive exists for id.
func (d *Document) HasEntry(id string) bool {
	_, ok := d.Entry(id)
	return ok
}

// Token returns the first token value for id.
func (d *Document) Token(id string) (string, bool) {
	id = strings.TrimSpace(id)
	for _, l := range d.lines {
		if t, ok := l.(Token); ok && t.ID == id {
			return t.Value, true
		}
	}
	return "", false
}

// Pins returns the revision pin directives in document order.
func (d *Document) Pins() []Pin {
	var out []Pin
	for _, l := range d.lines {
		if p, ok := l.(Pin); ok {
			out = append(out, p)
		}
	}
	return out
}

// AssociatedIDs returns every id referenced by any directive, in order of
// first appearance.
func (d *Document) AssociatedIDs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range d.lines {
		id := lineID(l)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// UserEntries returns entries that were added by a user selection: those
// whose id differs from primaryID and that carry a trailing comment.
func (d *Document) UserEntries(primaryID string) []Entry {
	var out []Entry
	for _, e := range d.Entries() {
		if e.ID != primaryID && e.Comment != "" {
			out = append(out, e)
		}
	}
	return out
}

// IsEmpty reports whether the document has no directives.
func (d *Document) IsEmpty() bool {
	for _, l := range d.lines {
		if lineID(l) != "" {
			return false
		}
	}
	return true
}

// Tokens returns the token directives in document order.
func (d *Document) Tokens() []Token {
	var out []Token
	for _, l := range d.lines {
		if t, ok := l.(Token); ok {
			out = append(out, t)
		}
	}
	return out
}

// LooksLikeScript reports whether text contains at least one directive.
func LooksLikeScript(text string) bool {
	return !Parse(text).IsEmpty()
}
