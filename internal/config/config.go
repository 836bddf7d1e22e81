// Package config provides configuration loading for gencon.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GENCON_"

// Config represents the complete gencon configuration.
type Config struct {
	Log         LogConfig         `yaml:"log"`
	Autosave    AutosaveConfig    `yaml:"autosave"`
	Pause       PauseConfig       `yaml:"pause"`
	History     HistoryConfig     `yaml:"history"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Blob        BlobConfig        `yaml:"blob"`
	SaveState   SaveStateConfig   `yaml:"save_state"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Mode is development or production.
	Mode string `yaml:"mode"`
}

// AutosaveConfig configures background saving.
type AutosaveConfig struct {
	// Throttle is the longest unsaved changes may wait.
	Throttle time.Duration `yaml:"throttle"`
	// Debounce is the quiet period after the last change before saving.
	Debounce time.Duration `yaml:"debounce"`
}

// PauseConfig configures the pause safety valve.
type PauseConfig struct {
	// SafetyTimeout force-resumes a store left paused; 0 disables it.
	SafetyTimeout time.Duration `yaml:"safety_timeout"`
}

// HistoryConfig configures state checks.
type HistoryConfig struct {
	// Freeze is shallow or deep.
	Freeze string `yaml:"freeze"`
	// InstanceCacheSize bounds how many saved rollups are remembered.
	InstanceCacheSize int `yaml:"instance_cache_size"`
}

// PersistenceConfig selects the rollup store.
type PersistenceConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// S3Config configures the s3 blob backend.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       bool   `yaml:"path_style"`
}

// BlobConfig selects where sequence bytes are stored.
type BlobConfig struct {
	Driver string   `yaml:"driver"`
	Root   string   `yaml:"root"`
	S3     S3Config `yaml:"s3"`
	// Strict restricts sequences to the IUPAC alphabet.
	Strict bool `yaml:"strict"`
}

// SaveStateConfig selects the save status tracker.
type SaveStateConfig struct {
	Driver   string `yaml:"driver"`
	RedisURL string `yaml:"redis_url"`
	Prefix   string `yaml:"prefix"`
}

// MetricsConfig configures operation metrics.
type MetricsConfig struct {
	// Namespace prefixes prometheus metric names; empty uses expvar only.
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Log:         LogConfig{Mode: "production"},
		Autosave:    AutosaveConfig{Throttle: 20 * time.Second, Debounce: 3 * time.Second},
		Pause:       PauseConfig{SafetyTimeout: time.Second},
		History:     HistoryConfig{Freeze: "shallow", InstanceCacheSize: 256},
		Persistence: PersistenceConfig{Driver: "sqlite", Path: "gencon.db"},
		Blob:        BlobConfig{Driver: "fs", Root: "sequences"},
		SaveState:   SaveStateConfig{Driver: "memory", Prefix: "gencon:save:"},
		Metrics:     MetricsConfig{Namespace: "gencon"},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Log.Mode {
	case "development", "production":
	default:
		return fmt.Errorf("log.mode must be development or production, got %q", c.Log.Mode)
	}
	if c.Autosave.Throttle <= 0 || c.Autosave.Debounce <= 0 {
		return fmt.Errorf("autosave.throttle and autosave.debounce must be positive")
	}
	if c.Autosave.Debounce > c.Autosave.Throttle {
		return fmt.Errorf("autosave.debounce must not exceed autosave.throttle")
	}
	if c.Pause.SafetyTimeout < 0 {
		return fmt.Errorf("pause.safety_timeout must not be negative")
	}
	switch c.History.Freeze {
	case "shallow", "deep":
	default:
		return fmt.Errorf("history.freeze must be shallow or deep, got %q", c.History.Freeze)
	}
	if c.History.InstanceCacheSize < 1 {
		return fmt.Errorf("history.instance_cache_size must be positive")
	}
	switch c.Persistence.Driver {
	case "memory":
	case "sqlite":
		if c.Persistence.Path == "" {
			return fmt.Errorf("persistence.path is required for sqlite")
		}
	case "postgres":
		if c.Persistence.DSN == "" {
			return fmt.Errorf("persistence.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown persistence.driver %q", c.Persistence.Driver)
	}
	switch c.Blob.Driver {
	case "memory":
	case "fs":
		if c.Blob.Root == "" {
			return fmt.Errorf("blob.root is required for fs")
		}
	case "s3":
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("blob.s3.bucket is required for s3")
		}
	default:
		return fmt.Errorf("unknown blob.driver %q", c.Blob.Driver)
	}
	switch c.SaveState.Driver {
	case "memory":
	case "redis":
		if c.SaveState.RedisURL == "" {
			return fmt.Errorf("save_state.redis_url is required for redis")
		}
	default:
		return fmt.Errorf("unknown save_state.driver %q", c.SaveState.Driver)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Log.Mode != "" {
		c.Log.Mode = other.Log.Mode
	}

	if other.Autosave.Throttle != 0 {
		c.Autosave.Throttle = other.Autosave.Throttle
	}
	if other.Autosave.Debounce != 0 {
		c.Autosave.Debounce = other.Autosave.Debounce
	}
	if other.Pause.SafetyTimeout != 0 {
		c.Pause.SafetyTimeout = other.Pause.SafetyTimeout
	}

	if other.History.Freeze != "" {
		c.History.Freeze = other.History.Freeze
	}
	if other.History.InstanceCacheSize != 0 {
		c.History.InstanceCacheSize = other.History.InstanceCacheSize
	}

	if other.Persistence.Driver != "" {
		c.Persistence.Driver = other.Persistence.Driver
	}
	if other.Persistence.Path != "" {
		c.Persistence.Path = other.Persistence.Path
	}
	if other.Persistence.DSN != "" {
		c.Persistence.DSN = other.Persistence.DSN
	}

	if other.Blob.Driver != "" {
		c.Blob.Driver = other.Blob.Driver
	}
	if other.Blob.Root != "" {
		c.Blob.Root = other.Blob.Root
	}
	if other.Blob.S3 != (S3Config{}) {
		c.Blob.S3 = other.Blob.S3
	}
	if other.Blob.Strict {
		c.Blob.Strict = true
	}

	if other.SaveState.Driver != "" {
		c.SaveState.Driver = other.SaveState.Driver
	}
	if other.SaveState.RedisURL != "" {
		c.SaveState.RedisURL = other.SaveState.RedisURL
	}
	if other.SaveState.Prefix != "" {
		c.SaveState.Prefix = other.SaveState.Prefix
	}

	if other.Metrics.Namespace != "" {
		c.Metrics.Namespace = other.Metrics.Namespace
	}
}

// ApplyEnv overrides fields from GENCON_ environment variables read through
// lookup, normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"LOG_MODE":             &c.Log.Mode,
		"HISTORY_FREEZE":       &c.History.Freeze,
		"STORAGE_DRIVER":       &c.Persistence.Driver,
		"SQLITE_PATH":          &c.Persistence.Path,
		"POSTGRES_DSN":         &c.Persistence.DSN,
		"BLOB_DRIVER":          &c.Blob.Driver,
		"BLOB_ROOT":            &c.Blob.Root,
		"S3_BUCKET":            &c.Blob.S3.Bucket,
		"S3_REGION":            &c.Blob.S3.Region,
		"S3_ENDPOINT":          &c.Blob.S3.Endpoint,
		"S3_ACCESS_KEY_ID":     &c.Blob.S3.AccessKeyID,
		"S3_SECRET_ACCESS_KEY": &c.Blob.S3.SecretAccessKey,
		"SAVESTATE_DRIVER":     &c.SaveState.Driver,
		"REDIS_URL":            &c.SaveState.RedisURL,
		"SAVESTATE_PREFIX":     &c.SaveState.Prefix,
		"METRICS_NAMESPACE":    &c.Metrics.Namespace,
	}
	for name, field := range strs {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*field = v
		}
	}

	durations := map[string]*time.Duration{
		"AUTOSAVE_THROTTLE":    &c.Autosave.Throttle,
		"AUTOSAVE_DEBOUNCE":    &c.Autosave.Debounce,
		"PAUSE_SAFETY_TIMEOUT": &c.Pause.SafetyTimeout,
	}
	for name, field := range durations {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*field = d
	}

	bools := map[string]*bool{
		"S3_PATH_STYLE": &c.Blob.S3.PathStyle,
		"BLOB_STRICT":   &c.Blob.Strict,
	}
	for name, field := range bools {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*field = b
	}

	if v, ok := lookup(EnvPrefix + "INSTANCE_CACHE_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sINSTANCE_CACHE_SIZE: %w", EnvPrefix, err)
		}
		c.History.InstanceCacheSize = n
	}
	return nil
}

// Load layers the defaults, the file at path when non-empty, and the
// environment, then validates the result.
func Load(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		fromFile, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		config = fromFile
	}
	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
