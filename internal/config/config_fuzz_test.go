package config

import (
	"strings"
	"testing"
)

func FuzzEnvOrDefault(f *testing.F) {
	f.Add("", "fallback")
	f.Add("value", "fallback")
	f.Add("  spaced  ", "fallback")
	f.Add("\t\n", "fallback")

	f.Fuzz(func(t *testing.T, value, fallback string) {
		if strings.ContainsRune(value, 0) {
			t.Skip("environment values cannot contain NUL")
		}

		const key = "NUDGZ_TEST_ENV_OR_DEFAULT"
		t.Setenv(key, value)

		got := envOrDefault(key, fallback)
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			if got != fallback {
				t.Errorf("envOrDefault(%q, %q) = %q, want fallback", value, fallback, got)
			}
		} else if got != trimmed {
			t.Errorf("envOrDefault(%q, %q) = %q, want %q", value, fallback, got, trimmed)
		}
	})
}
