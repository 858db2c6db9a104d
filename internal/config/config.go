// Package config loads coopquality settings from defaults, an optional YAML
// file, a .env file and COOPQUALITY_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"coopquality/internal/alerting"
	"coopquality/internal/blob"
	"coopquality/internal/core"
	"coopquality/internal/quality"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// COOPQUALITY_STORAGE_DRIVER or COOPQUALITY_QUALITY_APPROVAL_PERCENT.
const EnvPrefix = "COOPQUALITY"

// Config is the full runtime configuration.
type Config struct {
	Quality QualityConfig `mapstructure:"quality"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
	Storage StorageConfig `mapstructure:"storage"`
	Blob    BlobConfig    `mapstructure:"blob"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Log     LogConfig     `mapstructure:"log"`
}

// QualityConfig holds evaluation thresholds. Percentages are kept as strings
// so they parse straight into decimals.
type QualityConfig struct {
	ApprovalPercent    string `mapstructure:"approval_percent"`
	ConditionalPercent string `mapstructure:"conditional_percent"`
	WeightedThreshold  string `mapstructure:"weighted_threshold"`
	CriterionPassScore string `mapstructure:"criterion_pass_score"`
	ZeroOptimalPolicy  string `mapstructure:"zero_optimal_policy"`
	ToleranceBasis     string `mapstructure:"tolerance_basis"`
}

// AlertsConfig holds the certification warning window.
type AlertsConfig struct {
	ExpiryWarningDays int `mapstructure:"expiry_warning_days"`
}

// StorageConfig selects the persistent store.
type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// BlobConfig selects the evidence store.
type BlobConfig struct {
	Driver string   `mapstructure:"driver"`
	FSRoot string   `mapstructure:"fs_root"`
	S3     S3Config `mapstructure:"s3"`
}

// S3Config configures the S3 evidence bucket.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	PathStyle       bool   `mapstructure:"path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"quality.approval_percent":     "90",
	"quality.conditional_percent":  "70",
	"quality.weighted_threshold":   "70",
	"quality.criterion_pass_score": "60",
	"quality.zero_optimal_policy":  string(quality.ZeroOptimalAsAbsent),
	"quality.tolerance_basis":      string(quality.ToleranceOfOptimal),
	"alerts.expiry_warning_days":   30,
	"storage.driver":               string(core.StorageSQLite),
	"storage.sqlite_path":          "coopquality.db",
	"storage.postgres_dsn":         "",
	"blob.driver":                  string(blob.DriverFilesystem),
	"blob.fs_root":                 "./evidence",
	"blob.s3.bucket":               "",
	"blob.s3.region":               "us-east-1",
	"blob.s3.endpoint":             "",
	"blob.s3.path_style":           false,
	"blob.s3.access_key_id":        "",
	"blob.s3.secret_access_key":    "",
	"blob.s3.session_token":        "",
	"http.addr":                    ":8080",
	"log.level":                    "info",
	"log.format":                   "text",
}

// Options controls where Load looks for input.
type Options struct {
	// File is an explicit config file. When empty, coopquality.yaml is looked
	// up in the working directory and skipped when absent.
	File string
	// EnvFile is a dotenv file; ".env" when empty. A missing file is ignored.
	EnvFile string
}

// Load builds and validates the configuration.
func Load(opts Options) (Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", opts.File, err)
		}
	} else {
		v.SetConfigName("coopquality")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section that has constraints.
func (c Config) Validate() error {
	q, err := c.QualityEngineConfig()
	if err != nil {
		return err
	}
	if err := q.Validate(); err != nil {
		return err
	}
	if err := c.AlertConfig().Validate(); err != nil {
		return err
	}
	switch core.StorageDriver(c.Storage.Driver) {
	case core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("config: storage.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}
	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("config: blob.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("config: unknown blob.driver %q", c.Blob.Driver)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log.format %q", c.Log.Format)
	}
	return nil
}

// QualityEngineConfig converts the quality section into engine thresholds.
func (c Config) QualityEngineConfig() (quality.Config, error) {
	out := quality.Config{
		ZeroOptimal:    quality.ZeroOptimalPolicy(c.Quality.ZeroOptimalPolicy),
		ToleranceBasis: quality.ToleranceBasis(c.Quality.ToleranceBasis),
	}
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"approval_percent", c.Quality.ApprovalPercent, &out.ApprovalPercent},
		{"conditional_percent", c.Quality.ConditionalPercent, &out.ConditionalPercent},
		{"weighted_threshold", c.Quality.WeightedThreshold, &out.WeightedThreshold},
		{"criterion_pass_score", c.Quality.CriterionPassScore, &out.CriterionPassScore},
	} {
		d, err := decimal.NewFromString(strings.TrimSpace(f.raw))
		if err != nil {
			return quality.Config{}, fmt.Errorf("config: quality.%s: %w", f.name, err)
		}
		*f.dst = d
	}
	return out, nil
}

// AlertConfig returns the alerting settings.
func (c Config) AlertConfig() alerting.Config {
	return alerting.Config{ExpiryWarningDays: c.Alerts.ExpiryWarningDays}
}

// PersistenceConfig returns the persistent store selection.
func (c Config) PersistenceConfig() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// EvidenceConfig returns the evidence store selection.
func (c Config) EvidenceConfig() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.Blob.Driver),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Region:          c.Blob.S3.Region,
			Bucket:          c.Blob.S3.Bucket,
			Endpoint:        c.Blob.S3.Endpoint,
			AccessKeyID:     c.Blob.S3.AccessKeyID,
			SecretAccessKey: c.Blob.S3.SecretAccessKey,
			SessionToken:    c.Blob.S3.SessionToken,
			PathStyle:       c.Blob.S3.PathStyle,
		},
	}
}
