package jsonx

import (
	"strings"

	"github.com/bytedance/sonic"
)

// Marshal serializes v with sonic.
func Marshal(v interface{}) ([]byte, error) {
	return sonic.Marshal(v)
}

// MarshalString serializes v and returns the string form, empty on error.
func MarshalString(v interface{}) string {
	s, err := sonic.MarshalString(v)
	if err != nil {
		return ""
	}
	return s
}

// Unmarshal deserializes data into v with sonic.
func Unmarshal(data []byte, v interface{}) error {
	return sonic.Unmarshal(data, v)
}

// StripCodeFence removes a surrounding markdown code fence (``` or ```json)
// from LLM output. Content without a fence is returned trimmed but otherwise
// untouched.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		// Drop the language tag line (e.g. "json").
		first := strings.TrimSpace(s[:idx])
		if first == "" || isLanguageTag(first) {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// DecodeStrict strips a code fence and parses the remainder as strict JSON.
// No repairs are attempted: any deviation surfaces as the parse error.
func DecodeStrict(raw string, v interface{}) error {
	return sonic.UnmarshalString(StripCodeFence(raw), v)
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return len(s) <= 16
}
