// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every knob the harvester reads. It is constructed once
// at startup and passed by value into component constructors; nothing
// reads viper after Load returns.
type Config struct {
	Source     SourceConfig     `mapstructure:"source"`
	Harvest    HarvestConfig    `mapstructure:"harvest"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Selectors  SelectorConfig   `mapstructure:"selectors"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Server     ServerConfig     `mapstructure:"server"`
	Publish    PublishConfig    `mapstructure:"publish"`
	Upload     UploadConfig     `mapstructure:"upload"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// SourceConfig locates the listing site and its per-category paths.
type SourceConfig struct {
	BaseURL       string            `mapstructure:"base_url"`
	CategoryPaths map[string]string `mapstructure:"category_paths"`
}

// HarvestConfig governs the per-category page-harvest protocol.
type HarvestConfig struct {
	Workers           int `mapstructure:"workers"`
	DefaultPageCount  int `mapstructure:"default_page_count"`
	MaxPages          int `mapstructure:"max_pages"`
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds"`
}

// HTTPConfig configures fetch timeout and transient-status retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
	UserAgent        string `mapstructure:"user_agent"`
}

// SelectorConfig carries the page-layout selectors consumed by the
// extractor. The defaults match the known listing layout.
type SelectorConfig struct {
	RowClass          string `mapstructure:"row_class"`
	MaleAnchorClass   string `mapstructure:"male_anchor_class"`
	FemaleAnchorClass string `mapstructure:"female_anchor_class"`
	SecondaryClass    string `mapstructure:"secondary_class"`
	PaginationStyle   string `mapstructure:"pagination_style_contains"`
}

// StorageConfig sets the artifact directory and the tabular schema.
type StorageConfig struct {
	OutputDir string       `mapstructure:"output_dir"`
	Table     SchemaConfig `mapstructure:"table"`
}

// SchemaConfig is the configuration-driven tabular schema. An invalid or
// empty schema falls back to a hard-coded default at sink construction.
type SchemaConfig struct {
	Name    string         `mapstructure:"name"`
	Columns []ColumnConfig `mapstructure:"columns"`
	Indexes []IndexConfig  `mapstructure:"indexes"`
}

// ColumnConfig is one column of the configured schema.
type ColumnConfig struct {
	Name       string `mapstructure:"name"`
	Definition string `mapstructure:"definition"`
}

// IndexConfig is one secondary index of the configured schema.
type IndexConfig struct {
	Name   string `mapstructure:"name"`
	Column string `mapstructure:"column"`
}

// CheckpointConfig controls the optional periodic checkpoint cadence.
// Zero disables the ticker; the final save always happens.
type CheckpointConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

// ServerConfig controls the optional status HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// PublishConfig holds metadata for run-completion notifications. Empty
// topic disables publishing to Pub/Sub.
type PublishConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// UploadConfig names the bucket receiving finished artifacts. Empty
// bucket disables upload.
type UploadConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NAMEHARVEST")
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.base_url", "https://muslimnames.com")
	v.SetDefault("source.category_paths", map[string]string{
		"male":   "/boy-names",
		"female": "/girl-names",
	})
	v.SetDefault("harvest.workers", 16)
	v.SetDefault("harvest.default_page_count", 10)
	v.SetDefault("harvest.max_pages", 0)
	v.SetDefault("harvest.retry_delay_seconds", 2)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("http.user_agent", "nameharvest/1.0 (+https://github.com/takiuddin/nameharvest)")
	v.SetDefault("selectors.row_class", "name_row")
	v.SetDefault("selectors.male_anchor_class", "name_boys")
	v.SetDefault("selectors.female_anchor_class", "name_girls")
	v.SetDefault("selectors.secondary_class", "name_arabic")
	v.SetDefault("selectors.pagination_style_contains", "text-align:center")
	v.SetDefault("storage.output_dir", "data")
	v.SetDefault("checkpoint.interval_seconds", 0)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url must be set")
	}
	if len(c.Source.CategoryPaths) == 0 {
		return fmt.Errorf("source.category_paths must not be empty")
	}
	if c.Harvest.Workers <= 0 {
		return fmt.Errorf("harvest.workers must be > 0")
	}
	if c.Harvest.DefaultPageCount <= 0 {
		return fmt.Errorf("harvest.default_page_count must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the status server is enabled")
	}
	return nil
}

// Timeout converts the HTTP timeout config into a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RetryDelay converts the retry-pass delay config into a duration.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Harvest.RetryDelaySeconds) * time.Second
}

// CheckpointInterval converts the checkpoint cadence into a duration.
func (c Config) CheckpointInterval() time.Duration {
	return time.Duration(c.Checkpoint.IntervalSeconds) * time.Second
}
