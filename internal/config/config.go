package config

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/openra-mobius/mobius-content/internal/platform"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. MOBIUS_LOG_LEVEL or
// MOBIUS_MIRROR_S3_REGION.
const EnvPrefix = "MOBIUS"

type Config struct {
	Manifest      string       `mapstructure:"manifest"`
	SettingsFile  string       `mapstructure:"settings_file"`
	SupportDir    string       `mapstructure:"support_dir"`
	LogLevel      string       `mapstructure:"log_level"`
	LogFormat     string       `mapstructure:"log_format"`
	LogFile       string       `mapstructure:"log_file"`
	LogMaxSizeMB  int          `mapstructure:"log_max_size_mb"`
	LogMaxBackups int          `mapstructure:"log_max_backups"`
	// HTTPTimeout bounds the wait for a mirror's response headers only.
	HTTPTimeout   int          `mapstructure:"http_timeout_seconds"`
	Retries       int          `mapstructure:"download_retries"`
	MinFreeMB     int          `mapstructure:"min_free_space_mb"`
	Mirror        MirrorConfig `mapstructure:"mirror"`
}

// MirrorConfig holds credentials and endpoints for non-HTTP mirrors.
// S3 and GCS are anonymous unless credentials are given.
type MirrorConfig struct {
	S3Region           string `mapstructure:"s3_region"`
	S3Endpoint         string `mapstructure:"s3_endpoint"`
	S3AccessKey        string `mapstructure:"s3_access_key"`
	S3SecretKey        string `mapstructure:"s3_secret_key"`
	GCSAnonymous       bool   `mapstructure:"gcs_anonymous"`
	GCSCredentialsFile string `mapstructure:"gcs_credentials_file"`
	AzureEndpoint      string `mapstructure:"azure_endpoint"`
	B2Account          string `mapstructure:"b2_account"`
	B2Key              string `mapstructure:"b2_key"`
}

func Default() *Config {
	return &Config{
		Manifest:      "content.yaml",
		LogLevel:      "info",
		LogFormat:     "text",
		LogMaxSizeMB:  10,
		LogMaxBackups: 3,
		HTTPTimeout:   300,
		Retries:       3,
		MinFreeMB:     100,
		Mirror: MirrorConfig{
			S3Region:     "us-east-1",
			GCSAnonymous: true,
		},
	}
}

// Load reads cfgFile, or mobius-content.yaml from the support directory or
// the working directory, and applies MOBIUS_* environment overrides. A
// missing default config file is not an error.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()
	v := viper.New()
	setDefaults(v, cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("mobius-content")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so environment overrides apply even when
// the config file omits them.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("manifest", cfg.Manifest)
	v.SetDefault("settings_file", cfg.SettingsFile)
	v.SetDefault("support_dir", cfg.SupportDir)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("log_max_size_mb", cfg.LogMaxSizeMB)
	v.SetDefault("log_max_backups", cfg.LogMaxBackups)
	v.SetDefault("http_timeout_seconds", cfg.HTTPTimeout)
	v.SetDefault("download_retries", cfg.Retries)
	v.SetDefault("min_free_space_mb", cfg.MinFreeMB)
	v.SetDefault("mirror.s3_region", cfg.Mirror.S3Region)
	v.SetDefault("mirror.s3_endpoint", cfg.Mirror.S3Endpoint)
	v.SetDefault("mirror.s3_access_key", cfg.Mirror.S3AccessKey)
	v.SetDefault("mirror.s3_secret_key", cfg.Mirror.S3SecretKey)
	v.SetDefault("mirror.gcs_anonymous", cfg.Mirror.GCSAnonymous)
	v.SetDefault("mirror.gcs_credentials_file", cfg.Mirror.GCSCredentialsFile)
	v.SetDefault("mirror.azure_endpoint", cfg.Mirror.AzureEndpoint)
	v.SetDefault("mirror.b2_account", cfg.Mirror.B2Account)
	v.SetDefault("mirror.b2_key", cfg.Mirror.B2Key)
}

// Paths returns the platform roots with support_dir applied.
func (c *Config) Paths() platform.Paths {
	return platform.Default(c.SupportDir)
}

// SettingsPath is the persisted selection file, by default inside the
// support directory.
func (c *Config) SettingsPath(paths platform.Paths) string {
	if c.SettingsFile != "" {
		return paths.ResolvePath(c.SettingsFile)
	}
	return filepath.Join(paths.SupportDir, "content-settings.yaml")
}

func configDir() string {
	return platform.Default("").SupportDir
}
