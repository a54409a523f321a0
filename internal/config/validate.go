package config

import (
	"errors"
	"fmt"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult separates errors that must stop startup from values that
// were clamped to a safe range.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r ValidationResult) HasFatals() bool { return len(r.Fatals) > 0 }

// ValidateTiered checks the config. Out-of-range numbers are clamped and
// reported as warnings for the caller to log once logging is configured;
// values nothing can recover from are fatal.
func (c *Config) ValidateTiered() ValidationResult {
	var r ValidationResult

	if strings.TrimSpace(c.Manifest) == "" {
		r.Fatals = append(r.Fatals, errors.New("manifest path must not be empty"))
	}
	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		r.Fatals = append(r.Fatals, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		r.Fatals = append(r.Fatals, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	c.HTTPTimeout = clamp(&r, "http_timeout_seconds", c.HTTPTimeout, 5, 3600)
	c.Retries = clamp(&r, "download_retries", c.Retries, 0, 10)
	c.MinFreeMB = clamp(&r, "min_free_space_mb", c.MinFreeMB, 0, 1<<20)
	c.LogMaxSizeMB = clamp(&r, "log_max_size_mb", c.LogMaxSizeMB, 1, 1024)
	c.LogMaxBackups = clamp(&r, "log_max_backups", c.LogMaxBackups, 0, 100)

	if (c.Mirror.S3AccessKey == "") != (c.Mirror.S3SecretKey == "") {
		r.Warnings = append(r.Warnings, errors.New("mirror.s3_access_key and mirror.s3_secret_key must be set together; s3 mirrors will be read anonymously"))
	}
	if (c.Mirror.B2Account == "") != (c.Mirror.B2Key == "") {
		r.Warnings = append(r.Warnings, errors.New("mirror.b2_account and mirror.b2_key must be set together; b2 mirrors will fail"))
	}
	return r
}

func clamp(r *ValidationResult, key string, v, lo, hi int) int {
	switch {
	case v < lo:
		r.Warnings = append(r.Warnings, fmt.Errorf("%s %d is below minimum %d, clamping", key, v, lo))
		return lo
	case v > hi:
		r.Warnings = append(r.Warnings, fmt.Errorf("%s %d exceeds maximum %d, clamping", key, v, hi))
		return hi
	}
	return v
}
