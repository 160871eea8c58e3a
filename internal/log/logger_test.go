package log

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		env   string
		level string
		want  zerolog.Level
	}{
		{"development", "", zerolog.DebugLevel},
		{"production", "", zerolog.InfoLevel},
		{"production", "debug", zerolog.DebugLevel},
		{"development", "WARN", zerolog.WarnLevel},
		{"production", "error", zerolog.ErrorLevel},
		{"production", "bogus", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.env, tc.level); got != tc.want {
			t.Fatalf("parseLevel(%q, %q) = %s, want %s", tc.env, tc.level, got, tc.want)
		}
	}
}
