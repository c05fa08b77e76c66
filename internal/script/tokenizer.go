package script

import (
	"errors"
	"strings"
)

type argKind int

const (
	argNumber argKind = iota
	argString
)

type arg struct {
	kind  argKind
	value string
}

// call is a tokenized directive: keyword(args...) -- comment
type call struct {
	keyword string
	args    []arg
	comment string
}

var errNotDirective = errors.New("not a directive")

// tokenizeCall reads a single call statement from a trimmed line. Anything
// beyond an optional semicolon and a trailing comment fails the tokenization.
func tokenizeCall(s string) (call, error) {
	t := &tokenizer{src: s}

	keyword := t.ident()
	if keyword == "" {
		return call{}, errNotDirective
	}
	t.skipSpace()
	if !t.consume('(') {
		return call{}, errNotDirective
	}

	var args []arg
	t.skipSpace()
	if !t.consume(')') {
		for {
			t.skipSpace()
			a, err := t.arg()
			if err != nil {
				return call{}, err
			}
			args = append(args, a)
			t.skipSpace()
			if t.consume(',') {
				continue
			}
			if t.consume(')') {
				break
			}
			return call{}, errNotDirective
		}
	}

	t.skipSpace()
	t.consume(';')
	t.skipSpace()

	var comment string
	if rest := t.src[t.pos:]; rest != "" {
		if !strings.HasPrefix(rest, commentMarker) {
			return call{}, errNotDirective
		}
		comment = strings.TrimSpace(rest[len(commentMarker):])
	}

	return call{keyword: keyword, args: args, comment: comment}, nil
}

type tokenizer struct {
	src string
	pos int
}

func (t *tokenizer) peek() (byte, bool) {
	if t.pos >= len(t.src) {
		return 0, false
	}
	return t.src[t.pos], true
}

func (t *tokenizer) consume(c byte) bool {
	if b, ok := t.peek(); ok && b == c {
		t.pos++
		return true
	}
	return false
}

func (t *tokenizer) skipSpace() {
	for t.pos < len(t.src) && (t.src[t.pos] == ' ' || t.src[t.pos] == '\t') {
		t.pos++
	}
}

func (t *tokenizer) ident() string {
	start := t.pos
	for t.pos < len(t.src) {
		c := t.src[t.pos]
		isLetter := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isDigit := c >= '0' && c <= '9'
		if !isLetter && !(isDigit && t.pos > start) {
			break
		}
		t.pos++
	}
	return t.src[start:t.pos]
}

func (t *tokenizer) arg() (arg, error) {
	c, ok := t.peek()
	if !ok {
		return arg{}, errNotDirective
	}
	switch {
	case c >= '0' && c <= '9':
		start := t.pos
		for t.pos < len(t.src) && t.src[t.pos] >= '0' && t.src[t.pos] <= '9' {
			t.pos++
		}
		return arg{kind: argNumber, value: t.src[start:t.pos]}, nil
	case c == '"' || c == '\'':
		s, err := t.quoted(c)
		if err != nil {
			return arg{}, err
		}
		return arg{kind: argString, value: s}, nil
	default:
		return arg{}, errNotDirective
	}
}

func (t *tokenizer) quoted(delim byte) (string, error) {
	t.pos++ // opening delimiter
	var b strings.Builder
	for t.pos < len(t.src) {
		c := t.src[t.pos]
		t.pos++
		switch c {
		case delim:
			return b.String(), nil
		case '\\':
			if t.pos >= len(t.src) {
				return "", errNotDirective
			}
			esc := t.src[t.pos]
			t.pos++
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case '\\', '"', '\'':
				b.WriteByte(esc)
			default:
				return "", errNotDirective
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", errNotDirective
}
