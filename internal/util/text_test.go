package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizePostgresText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain utf8",
			input: "hello world",
			want:  "hello world",
		},
		{
			name:  "contains null byte",
			input: "hel\x00lo",
			want:  "hello",
		},
		{
			name:  "contains invalid utf8",
			input: string([]byte{'a', 0xff, 'b'}),
			want:  "ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, SanitizePostgresText(tt.input))
		})
	}
}

func TestSanitizeJSONB(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "untouched",
			input: `{"author":"alice"}`,
			want:  `{"author":"alice"}`,
		},
		{
			name:  "escaped nul",
			input: `{"author":"al\u0000ice"}`,
			want:  `{"author":"alice"}`,
		},
		{
			name:  "escaped backslash before u0000",
			input: `{"author":"a\\u0000b"}`,
			want:  `{"author":"a\\u0000b"}`,
		},
		{
			name:  "mixed",
			input: `{"a":"\\u0000\u0000"}`,
			want:  `{"a":"\\u0000"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, string(SanitizeJSONB([]byte(tt.input))))
		})
	}
}
