package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openra-mobius/mobius-content/internal/platform"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mobius-content.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
manifest: mods/cnc/content.yaml
log_level: debug
download_retries: 5
mirror:
  s3_region: eu-west-1
  b2_account: acct
  b2_key: secret
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Manifest != "mods/cnc/content.yaml" {
		t.Fatalf("Manifest = %q", cfg.Manifest)
	}
	if cfg.LogLevel != "debug" || cfg.Retries != 5 {
		t.Fatalf("LogLevel = %q, Retries = %d", cfg.LogLevel, cfg.Retries)
	}
	if cfg.Mirror.S3Region != "eu-west-1" || cfg.Mirror.B2Account != "acct" || cfg.Mirror.B2Key != "secret" {
		t.Fatalf("Mirror = %+v", cfg.Mirror)
	}
	// Untouched keys keep their defaults.
	if cfg.HTTPTimeout != 300 || !cfg.Mirror.GCSAnonymous {
		t.Fatalf("defaults lost: timeout=%d gcsAnonymous=%v", cfg.HTTPTimeout, cfg.Mirror.GCSAnonymous)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "log_level: info\n")
	t.Setenv("MOBIUS_LOG_LEVEL", "warn")
	t.Setenv("MOBIUS_MIRROR_S3_ENDPOINT", "http://127.0.0.1:9000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.Mirror.S3Endpoint != "http://127.0.0.1:9000" {
		t.Fatalf("S3Endpoint = %q", cfg.Mirror.S3Endpoint)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadMalformedFileFails(t *testing.T) {
	path := writeConfig(t, "log_level: [unterminated\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSettingsPath(t *testing.T) {
	paths := platform.Paths{OS: platform.Other, HomeDir: "/home/player", SupportDir: "/support"}

	cfg := Default()
	if got := cfg.SettingsPath(paths); got != filepath.Join("/support", "content-settings.yaml") {
		t.Fatalf("default SettingsPath = %q", got)
	}

	cfg.SettingsFile = "^SupportDir|mine.yaml"
	if got := cfg.SettingsPath(paths); got != filepath.Join("/support", "mine.yaml") {
		t.Fatalf("SettingsPath = %q", got)
	}
}

func TestValidateTieredDefaultsAreClean(t *testing.T) {
	result := Default().ValidateTiered()
	if result.HasFatals() || len(result.Warnings) != 0 {
		t.Fatalf("defaults should validate cleanly: fatals=%v warnings=%v", result.Fatals, result.Warnings)
	}
}

func TestValidateTieredFatals(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty manifest", func(c *Config) { c.Manifest = " " }, "manifest path"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			result := cfg.ValidateTiered()
			if !result.HasFatals() {
				t.Fatal("expected a fatal")
			}
			if !strings.Contains(result.Fatals[0].Error(), tc.want) {
				t.Fatalf("fatal = %v, want mention of %q", result.Fatals[0], tc.want)
			}
		})
	}
}

func TestValidateTieredClampingIsWarning(t *testing.T) {
	cfg := Default()
	cfg.HTTPTimeout = 1
	cfg.Retries = 99
	cfg.MinFreeMB = -5

	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped values should be warnings, not fatals: %v", result.Fatals)
	}
	if len(result.Warnings) != 3 {
		t.Fatalf("warnings = %v, want 3", result.Warnings)
	}
	if cfg.HTTPTimeout != 5 || cfg.Retries != 10 || cfg.MinFreeMB != 0 {
		t.Fatalf("clamped values: timeout=%d retries=%d minFree=%d", cfg.HTTPTimeout, cfg.Retries, cfg.MinFreeMB)
	}
}

func TestValidateTieredB2PairWarning(t *testing.T) {
	cfg := Default()
	cfg.Mirror.B2Account = "acct"
	result := cfg.ValidateTiered()
	if result.HasFatals() || len(result.Warnings) != 1 {
		t.Fatalf("expected one warning, got fatals=%v warnings=%v", result.Fatals, result.Warnings)
	}
}

func TestLoadMirrorCredentials(t *testing.T) {
	path := writeConfig(t, `
mirror:
  s3_access_key: AKIDEXAMPLE
  gcs_credentials_file: /etc/mobius/gcs.json
  azure_endpoint: http://127.0.0.1:10000/devstoreaccount1
`)
	t.Setenv("MOBIUS_MIRROR_S3_SECRET_KEY", "wJalrXUtnFEMI")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	m := cfg.Mirror
	if m.S3AccessKey != "AKIDEXAMPLE" || m.S3SecretKey != "wJalrXUtnFEMI" {
		t.Fatalf("s3 keys = %q/%q", m.S3AccessKey, m.S3SecretKey)
	}
	if m.GCSCredentialsFile != "/etc/mobius/gcs.json" || m.AzureEndpoint != "http://127.0.0.1:10000/devstoreaccount1" {
		t.Fatalf("Mirror = %+v", m)
	}
}

func TestValidateTieredS3PairWarning(t *testing.T) {
	cfg := Default()
	cfg.Mirror.S3SecretKey = "secret"
	result := cfg.ValidateTiered()
	if result.HasFatals() || len(result.Warnings) != 1 {
		t.Fatalf("expected one warning, got fatals=%v warnings=%v", result.Fatals, result.Warnings)
	}
	if !strings.Contains(result.Warnings[0].Error(), "s3_access_key") {
		t.Fatalf("warning = %v", result.Warnings[0])
	}
}
