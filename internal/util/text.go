package util

import (
	"bytes"
	"strings"
)

// SanitizePostgresText drops invalid UTF-8 and NUL bytes, which text and
// jsonb columns reject.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

var escapedNUL = []byte(`\u0000`)

// SanitizeJSONB removes escaped NUL characters from encoded JSON. jsonb
// refuses \u0000 even though it is valid JSON. An escaped backslash followed
// by "u0000" is left alone.
func SanitizeJSONB(data []byte) []byte {
	if !bytes.Contains(data, escapedNUL) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+1 < len(data) {
			if bytes.HasPrefix(data[i:], escapedNUL) {
				i += len(escapedNUL) - 1
				continue
			}
			out = append(out, data[i], data[i+1])
			i++
			continue
		}
		out = append(out, data[i])
	}
	return out
}
