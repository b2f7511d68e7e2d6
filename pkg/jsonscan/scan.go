// Package jsonscan locates JSON objects embedded in free-form model output.
package jsonscan

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoObject is returned when the text contains no complete JSON object.
var ErrNoObject = errors.New("no JSON object found")

// FirstObject returns the first balanced top-level JSON object in text.
// Braces inside string literals, including escaped quotes, are not counted.
// A candidate that is balanced but not valid JSON is skipped and scanning
// resumes after its opening brace.
func FirstObject(text string) (string, error) {
	text = StripCodeFences(text)
	for start := strings.IndexByte(text, '{'); start >= 0; {
		end, ok := matchBrace(text, start)
		if !ok {
			return "", ErrNoObject
		}
		candidate := text[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", ErrNoObject
}

// DecodeFirstObject finds the first JSON object in text and decodes it into out.
func DecodeFirstObject(text string, out any) error {
	obj, err := FirstObject(text)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(obj), out)
}

// matchBrace returns the index of the brace closing the one at open.
func matchBrace(text string, open int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(text); i++ {
		c := text[i]
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
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// StripCodeFences removes a surrounding markdown code fence, if present.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	}
	return s
}
