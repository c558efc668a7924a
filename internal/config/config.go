// Package config loads and validates fetcher configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/wigle-openroaming/internal/wigle"
)

// Storage backends accepted by storage.backend.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendGCS    = "gcs"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	WiGLE   WiGLEConfig   `mapstructure:"wigle"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// WiGLEConfig controls the search client and the pagination loop.
type WiGLEConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	RequestDelay     time.Duration `mapstructure:"request_delay"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	MaxRetries       int           `mapstructure:"max_retries"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRedirects     int           `mapstructure:"max_redirects"`
	DefaultAfterDate string        `mapstructure:"default_after_date"`
	RCOIsMinimum     int           `mapstructure:"rcois_minimum"`
	OrgCodes         []string      `mapstructure:"org_codes"`
	UserAgent        string        `mapstructure:"user_agent"`
}

// OutputConfig controls where CSV files are written.
type OutputConfig struct {
	Dir        string `mapstructure:"dir"`
	EscapeChar string `mapstructure:"escape_char"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// StorageConfig selects where finished CSV files are archived.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	LocalDir    string `mapstructure:"local_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// DBConfig controls access to the run history database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for run notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig points at an optional Prometheus textfile.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WIGLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("wigle.base_url", "https://api.wigle.net/api/v2/network/search")
	v.SetDefault("wigle.request_delay", 5*time.Second)
	v.SetDefault("wigle.retry_delay", 5*time.Second)
	v.SetDefault("wigle.max_retries", 3)
	v.SetDefault("wigle.timeout", 60*time.Second)
	v.SetDefault("wigle.max_redirects", 10)
	v.SetDefault("wigle.default_after_date", wigle.DefaultAfterDate)
	v.SetDefault("wigle.rcois_minimum", 1)
	v.SetDefault("wigle.org_codes", wigle.DefaultOrgCodes)
	v.SetDefault("wigle.user_agent", "wigle-fetch/1.0")
	v.SetDefault("output.dir", "tests")
	v.SetDefault("output.escape_char", `\`)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("storage.backend", BackendNone)
	v.SetDefault("storage.local_dir", "")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "runs")
	v.SetDefault("storage.content_type", "text/csv")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "wigle_runs")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("metrics.textfile", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.WiGLE.BaseURL == "" {
		return fmt.Errorf("wigle.base_url must be set")
	}
	if c.WiGLE.MaxRetries <= 0 {
		return fmt.Errorf("wigle.max_retries must be > 0")
	}
	if c.WiGLE.MaxRedirects <= 0 {
		return fmt.Errorf("wigle.max_redirects must be > 0")
	}
	if c.WiGLE.RequestDelay < 0 || c.WiGLE.RetryDelay < 0 {
		return fmt.Errorf("wigle delays must be >= 0")
	}
	if c.WiGLE.Timeout <= 0 {
		return fmt.Errorf("wigle.timeout must be > 0")
	}
	if err := wigle.ValidateAfterDate(c.WiGLE.DefaultAfterDate); err != nil {
		return fmt.Errorf("wigle.default_after_date: %w", err)
	}
	if _, err := wigle.NewOrgFilter(c.WiGLE.OrgCodes); err != nil {
		return fmt.Errorf("wigle.org_codes: %w", err)
	}
	if len([]rune(c.Output.EscapeChar)) > 1 {
		return fmt.Errorf("output.escape_char must be at most one character")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir must be set")
	}
	switch c.Storage.Backend {
	case "", BackendNone, BackendMemory:
	case BackendLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set when storage.backend is local")
		}
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when storage.backend is gcs")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" && c.Storage.Backend != BackendMemory {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}
