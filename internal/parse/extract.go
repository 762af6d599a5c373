// Package parse turns free-form model output into normalized result records.
package parse

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
)

// ErrNoJSON is returned when no usable JSON value is found in the text.
var ErrNoJSON = eris.New("parse: no json value found")

// ExtractJSON returns the first balanced JSON object or array in raw that
// parses and can carry records (an object, or an array of objects).
// Markdown fences and surrounding prose are skipped. Trailing commas before a
// closing bracket are removed before the candidate is checked.
func ExtractJSON(raw string) (string, error) {
	for start := 0; start < len(raw); start++ {
		if raw[start] != '{' && raw[start] != '[' {
			continue
		}
		end, ok := matchClose(raw, start)
		if !ok {
			continue
		}
		candidate := stripTrailingCommas(raw[start : end+1])
		if gjson.Valid(candidate) && recordShaped(candidate) {
			return candidate, nil
		}
	}
	return "", ErrNoJSON
}

// matchClose scans forward from the opener at start, tracking nesting and
// string state, and returns the index of the matching closer.
func matchClose(s string, start int) (int, bool) {
	var (
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// stripTrailingCommas drops commas that directly precede a closing bracket,
// ignoring string contents.
func stripTrailingCommas(s string) string {
	var (
		b        strings.Builder
		inString bool
		escaped  bool
	)
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func recordShaped(candidate string) bool {
	v := gjson.Parse(candidate)
	if v.IsObject() {
		return true
	}
	if !v.IsArray() {
		return false
	}
	for _, el := range v.Array() {
		if !el.IsObject() {
			return false
		}
	}
	return true
}
