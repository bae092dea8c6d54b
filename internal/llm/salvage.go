package llm

import (
	"encoding/json"
	"strings"
)

// SalvageJSON parses text as JSON, and when that fails retries on the
// substring between the first '{' and the last '}'. Model output often wraps
// JSON in markdown fences or prose.
func SalvageJSON(text string, out any) bool {
	if json.Unmarshal([]byte(text), out) == nil {
		return true
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(text[start:end+1]), out) == nil
}
