package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSON pulls the first valid JSON object out of raw model output.
// Tried in order: the whole string, a fenced code block, then a balanced
// brace scan over the text (models often wrap JSON in prose).
func ExtractJSON(s string) ([]byte, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") && json.Valid([]byte(s)) {
		return []byte(s), true
	}

	if m := fenceRe.FindStringSubmatch(s); m != nil {
		if json.Valid([]byte(m[1])) {
			return []byte(m[1]), true
		}
	}

	depth, start := 0, -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				cand := s[start : i+1]
				if json.Valid([]byte(cand)) {
					return []byte(cand), true
				}
				start = -1
			}
		}
	}
	return nil, false
}
