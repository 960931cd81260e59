package config

import "testing"

func TestLoad_RequiredDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail when DATABASE_URL is empty")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("AUTH_RATE_LIMIT", "")
	t.Setenv("MAX_JSON_BODY_SIZE", "")
	t.Setenv("PREVIEW_SAMPLE_SIZE", "")
	t.Setenv("REPEAT_UNTIL_COMPLETED", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.AuthRateLimit != 10 {
		t.Errorf("AuthRateLimit = %d, want 10", cfg.AuthRateLimit)
	}
	if cfg.MaxJSONBodySize != 1<<20 {
		t.Errorf("MaxJSONBodySize = %d, want %d", cfg.MaxJSONBodySize, 1<<20)
	}
	if cfg.PreviewSampleSize != 1000 {
		t.Errorf("PreviewSampleSize = %d, want 1000", cfg.PreviewSampleSize)
	}
	if cfg.RepeatUntilCompleted {
		t.Error("RepeatUntilCompleted = true, want false")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("AUTH_RATE_LIMIT", "25")
	t.Setenv("MAX_JSON_BODY_SIZE", "2048")
	t.Setenv("PREVIEW_SAMPLE_SIZE", "50")
	t.Setenv("REPEAT_UNTIL_COMPLETED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q, want :9999", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.AuthRateLimit != 25 {
		t.Errorf("AuthRateLimit = %d, want 25", cfg.AuthRateLimit)
	}
	if cfg.MaxJSONBodySize != 2048 {
		t.Errorf("MaxJSONBodySize = %d, want 2048", cfg.MaxJSONBodySize)
	}
	if cfg.PreviewSampleSize != 50 {
		t.Errorf("PreviewSampleSize = %d, want 50", cfg.PreviewSampleSize)
	}
	if !cfg.RepeatUntilCompleted {
		t.Error("RepeatUntilCompleted = false, want true")
	}
}

func TestLoad_AuthRateLimit_Invalid(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	for _, value := range []string{"not-a-number", "0", "-5"} {
		t.Setenv("AUTH_RATE_LIMIT", value)
		if _, err := Load(); err == nil {
			t.Fatalf("Load() should fail for AUTH_RATE_LIMIT=%q", value)
		}
	}
}

func TestLoad_MaxJSONBodySize_Invalid(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	for _, value := range []string{"not-a-number", "0", "-1"} {
		t.Setenv("MAX_JSON_BODY_SIZE", value)
		if _, err := Load(); err == nil {
			t.Fatalf("Load() should fail for MAX_JSON_BODY_SIZE=%q", value)
		}
	}
}

func TestLoad_PreviewSampleSize_Invalid(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	for _, value := range []string{"ten", "0", "-1"} {
		t.Setenv("PREVIEW_SAMPLE_SIZE", value)
		if _, err := Load(); err == nil {
			t.Fatalf("Load() should fail for PREVIEW_SAMPLE_SIZE=%q", value)
		}
	}
}

func TestLoad_RepeatUntilCompleted_Invalid(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("REPEAT_UNTIL_COMPLETED", "maybe")
	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail for invalid REPEAT_UNTIL_COMPLETED")
	}
}
