package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `port: "8080"
logLevel: debug
databaseURL: postgres://localhost/epicshelf
redisAddr: localhost:6379
minioEndpoint: localhost:9000
minioAccessKey: key
minioSecretKey: secret
minioBucket: books
sessionSecret: hush
settingsDir: /tmp/settings
maxUploadBytes: 1048576
saveIntervalMS: 5000
sessionTTLHours: 24
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.DatabaseURL != "postgres://localhost/epicshelf" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.MaxUploadBytes != 1048576 {
		t.Fatalf("maxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if got := cfg.SaveInterval(); got != 5*time.Second {
		t.Fatalf("save interval = %v", got)
	}
	if got := cfg.SessionTTL(); got != 24*time.Hour {
		t.Fatalf("session ttl = %v", got)
	}
}

func TestLoadDefaultsForDurations(t *testing.T) {
	content := strings.NewReplacer(
		"saveIntervalMS: 5000\n", "",
		"sessionTTLHours: 24\n", "",
	).Replace(validYAML)
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.SaveInterval(); got != 0 {
		t.Fatalf("unset save interval = %v, want 0", got)
	}
	if got := cfg.SessionTTL(); got != 7*24*time.Hour {
		t.Fatalf("default session ttl = %v", got)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://override/db")
	t.Setenv("EPICSHELF_SESSION_SECRET", "env-secret")
	t.Setenv("EPICSHELF_MAX_UPLOAD_BYTES", "2097152")
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://override/db" {
		t.Fatalf("databaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.SessionSecret != "env-secret" {
		t.Fatalf("sessionSecret = %q", cfg.SessionSecret)
	}
	if cfg.MaxUploadBytes != 2097152 {
		t.Fatalf("maxUploadBytes = %d", cfg.MaxUploadBytes)
	}
}

func TestValidationErrors(t *testing.T) {
	for _, field := range []string{
		`port: "8080"`,
		"databaseURL: postgres://localhost/epicshelf",
		"minioEndpoint: localhost:9000",
		"sessionSecret: hush",
		"settingsDir: /tmp/settings",
	} {
		content := strings.Replace(validYAML, field+"\n", "", 1)
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Fatalf("expected validation error when %q is missing", field)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
