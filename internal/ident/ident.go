// Package ident validates and extracts the numeric identifiers used to
// address titles and their optional entries.
package ident

import (
	"strings"
)

// storePathMarker precedes the id in store page URLs such as
// https://store.example.com/app/730/.
const storePathMarker = "/app/"

// Valid reports whether id, after trimming, is a non-empty run of ASCII digits.
func Valid(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}

// Normalize trims id and returns it if valid.
func Normalize(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if !Valid(id) {
		return "", false
	}
	return id, true
}

// Extract pulls an identifier out of free-form input. It accepts a bare id,
// a store page URL, or a label of the form "100 - Example Game".
func Extract(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", false
	}

	if idx := strings.Index(input, storePathMarker); idx >= 0 {
		if id := leadingDigits(input[idx+len(storePathMarker):]); id != "" {
			return id, true
		}
	}

	id := leadingDigits(input)
	if id == "" {
		return "", false
	}
	// "100abc" is not an id; "100 - Name" and "100/" are.
	rest := input[len(id):]
	if rest != "" && isWordByte(rest[0]) {
		return "", false
	}
	return id, true
}

func leadingDigits(s string) string {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return s[:end]
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
