package script

import "strings"

// KeySource supplies decryption keys during normalization.
type KeySource interface {
	// LookupKey returns the key for an entry id.
	LookupKey(id string) (string, bool)
	// PrimaryKey returns the key used for the document's own id.
	PrimaryKey() (string, bool)
}

// Selection is one optional entry to append.
type Selection struct {
	ID        string
	Secondary int
	Name      string
	Key       string
	Token     string
}

// InjectKeys normalizes a freshly downloaded document. Entries without a
// key get one from keys when available (the primary id uses the primary
// key), secondary values are preserved, and revision pins are dropped.
func (d *Document) InjectKeys(primaryID string, keys KeySource) *Document {
	primaryID = strings.TrimSpace(primaryID)
	out := make([]Line, 0, len(d.lines))

	for _, l := range d.lines {
		switch v := l.(type) {
		case Pin:
			continue
		case Entry:
			if !v.HasKey() && keys != nil {
				var key string
				var ok bool
				if v.ID == primaryID {
					key, ok = keys.PrimaryKey()
				} else {
					key, ok = keys.LookupKey(v.ID)
				}
				if key = strings.TrimSpace(key); ok && key != "" {
					v.Key = key
					v.raw = ""
				}
			}
			out = append(out, v)
		default:
			out = append(out, l)
		}
	}
	return &Document{lines: out}
}

// RemoveEntries deletes the entry directives for ids, along with any token
// directives for the same ids. The primary entry is never removed.
func (d *Document) RemoveEntries(ids []string, primaryID string) *Document {
	remove := make(map[string]bool, len(ids))
	for _, id := range ids {
		remove[strings.TrimSpace(id)] = true
	}
	primaryID = strings.TrimSpace(primaryID)
	return d.removeWhere(primaryID, func(id string) bool { return remove[id] })
}

// RemoveAllOptional deletes every non-primary entry directive and the token
// directives of the removed ids.
func (d *Document) RemoveAllOptional(primaryID string) *Document {
	primaryID = strings.TrimSpace(primaryID)
	return d.removeWhere(primaryID, func(string) bool { return true })
}

func (d *Document) removeWhere(primaryID string, match func(id string) bool) *Document {
	removed := make(map[string]bool)
	for _, l := range d.lines {
		if e, ok := l.(Entry); ok && e.ID != primaryID && match(e.ID) {
			removed[e.ID] = true
		}
	}

	out := make([]Line, 0, len(d.lines))
	for _, l := range d.lines {
		switch v := l.(type) {
		case Entry:
			if removed[v.ID] {
				continue
			}
		case Token:
			if removed[v.ID] {
				continue
			}
		}
		out = append(out, l)
	}
	return &Document{lines: out}
}

// Append adds one entry directive per selection, in order, each followed by
// a token directive when the selection carries a token. Trailing blank lines
// are dropped first so the new directives follow the last content line.
func (d *Document) Append(selections []Selection) *Document {
	end := len(d.lines)
	for end > 0 {
		if _, blank := d.lines[end-1].(Blank); !blank {
			break
		}
		end--
	}

	out := make([]Line, 0, end+2*len(selections))
	out = append(out, d.lines[:end]...)
	for _, sel := range selections {
		id := strings.TrimSpace(sel.ID)
		out = append(out, Entry{ID: id, Secondary: sel.Secondary, Key: strings.TrimSpace(sel.Key), Comment: sanitizeComment(sel.Name)})
		if tok := strings.TrimSpace(sel.Token); tok != "" {
			out = append(out, Token{ID: id, Value: tok})
		}
	}
	return &Document{lines: out}
}

// AppendEntries adds existing entry directives that are not yet present,
// preserving their original text. Each carried entry is followed by the
// directives in tokens for the same id, unless the document already has a
// token for it. Used to carry user selections across a replacement of the
// document.
func (d *Document) AppendEntries(entries []Entry, tokens []Token) *Document {
	present := make(map[string]bool)
	for _, e := range d.Entries() {
		present[e.ID] = true
	}
	hasToken := make(map[string]bool)
	for _, t := range d.Tokens() {
		hasToken[t.ID] = true
	}

	end := len(d.lines)
	for end > 0 {
		if _, blank := d.lines[end-1].(Blank); !blank {
			break
		}
		end--
	}

	out := make([]Line, 0, end+len(entries)+len(tokens))
	out = append(out, d.lines[:end]...)
	for _, e := range entries {
		if present[e.ID] {
			continue
		}
		present[e.ID] = true
		out = append(out, e)
		if hasToken[e.ID] {
			continue
		}
		for _, t := range tokens {
			if t.ID == e.ID {
				out = append(out, t)
			}
		}
	}
	return &Document{lines: out}
}
