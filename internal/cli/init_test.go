package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
)

func TestLoadAndValidateConfig(t *testing.T) {
	t.Setenv("PASSBOOK_DB_PATH", filepath.Join(t.TempDir(), "passbook.db"))
	t.Setenv("PASSBOOK_API_URL", "https://passbook.example.com")

	cfg, err := LoadAndValidateConfig()
	if err != nil {
		t.Fatalf("LoadAndValidateConfig() error = %v", err)
	}
	if cfg.APIURL != "https://passbook.example.com" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}

	t.Setenv("PASSBOOK_API_URL", "ftp://nope")
	if _, err := LoadAndValidateConfig(); err == nil {
		t.Error("expected an error for a non-http API URL")
	}
}

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger("debug")
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level should be enabled")
	}
	if logger.Component() != "" {
		t.Errorf("root logger component = %q, want empty", logger.Component())
	}
}
