package script

import (
	"strconv"
	"strings"
)

// Directive keywords understood by the content-unlock runtime.
const (
	KeywordEntry = "addappid"
	KeywordToken = "addtoken"
	KeywordPin   = "setManifestid"
)

// commentMarker starts a Lua line comment.
const commentMarker = "--"

// Line is one line of a script document. The concrete types are Entry,
// Token, Pin, Comment, Blank and Opaque.
type Line interface {
	// Text renders the line without a trailing newline.
	Text() string
	isLine()
}

// Entry registers an entry id, optionally with its decryption key.
type Entry struct {
	ID        string
	Secondary int
	Key       string
	// Comment is the trailing comment, used as a display name.
	Comment string

	raw string
}

// HasKey reports whether the directive carries a decryption key.
func (e Entry) HasKey() bool { return e.Key != "" }

// Text renders the entry. Parsed entries keep their original text.
func (e Entry) Text() string {
	if e.raw != "" {
		return e.raw
	}
	var b strings.Builder
	b.WriteString(KeywordEntry)
	b.WriteByte('(')
	b.WriteString(e.ID)
	switch {
	case e.Key != "":
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(e.Secondary))
		b.WriteByte(',')
		b.WriteString(quote(e.Key))
	case e.Secondary != 0:
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(e.Secondary))
	}
	b.WriteByte(')')
	writeComment(&b, e.Comment)
	return b.String()
}

func (Entry) isLine() {}

// Token attaches an auth token to an entry id.
type Token struct {
	ID      string
	Value   string
	Comment string

	raw string
}

// Text renders the token directive.
func (t Token) Text() string {
	if t.raw != "" {
		return t.raw
	}
	var b strings.Builder
	b.WriteString(KeywordToken)
	b.WriteByte('(')
	b.WriteString(t.ID)
	b.WriteByte(',')
	b.WriteString(quote(t.Value))
	b.WriteByte(')')
	writeComment(&b, t.Comment)
	return b.String()
}

func (Token) isLine() {}

// Pin fixes an entry to a specific content revision.
type Pin struct {
	ID         string
	ManifestID string
	Comment    string

	raw string
}

// Text renders the pin directive.
func (p Pin) Text() string {
	if p.raw != "" {
		return p.raw
	}
	var b strings.Builder
	b.WriteString(KeywordPin)
	b.WriteByte('(')
	b.WriteString(p.ID)
	b.WriteByte(',')
	b.WriteString(quote(p.ManifestID))
	b.WriteByte(')')
	writeComment(&b, p.Comment)
	return b.String()
}

func (Pin) isLine() {}

// Comment is a line that is only a comment.
type Comment struct{ Raw string }

// Text returns the comment line verbatim.
func (c Comment) Text() string { return c.Raw }

func (Comment) isLine() {}

// Blank is an empty or whitespace-only line.
type Blank struct{ Raw string }

// Text returns the blank line verbatim.
func (b Blank) Text() string { return b.Raw }

func (Blank) isLine() {}

// Opaque is any line that is not a recognized directive.
type Opaque struct{ Raw string }

// Text returns the line verbatim.
func (o Opaque) Text() string { return o.Raw }

func (Opaque) isLine() {}

// lineID returns the id a directive refers to, or "" for passthrough lines.
func lineID(l Line) string {
	switch v := l.(type) {
	case Entry:
		return v.ID
	case Token:
		return v.ID
	case Pin:
		return v.ID
	default:
		return ""
	}
}

func writeComment(b *strings.Builder, comment string) {
	comment = sanitizeComment(comment)
	if comment == "" {
		return
	}
	b.WriteByte(' ')
	b.WriteString(commentMarker)
	b.WriteByte(' ')
	b.WriteString(comment)
}

// sanitizeComment keeps a display name on a single line.
func sanitizeComment(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
