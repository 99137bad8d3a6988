package ai

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when model output holds neither a JSON document nor
// a brace-delimited substring that parses as one.
var ErrNoJSON = errors.New("model output contains no parsable json object")

// ExtractJSON recovers the JSON object from raw model output. A fenced code
// block wrapper is stripped first; if the remainder still does not parse,
// the span from the first '{' to the last '}' is tried.
func ExtractJSON(output string) ([]byte, error) {
	s := stripFence(strings.TrimSpace(output))
	if s != "" && json.Valid([]byte(s)) {
		return []byte(s), nil
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		sub := s[start : end+1]
		if json.Valid([]byte(sub)) {
			return []byte(sub), nil
		}
	}
	return nil, ErrNoJSON
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	// drop the opening marker and its language tag
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
