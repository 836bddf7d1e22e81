package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Autosave.Throttle != 20*time.Second {
		t.Errorf("expected throttle 20s, got %s", cfg.Autosave.Throttle)
	}
	if cfg.Autosave.Debounce != 3*time.Second {
		t.Errorf("expected debounce 3s, got %s", cfg.Autosave.Debounce)
	}
	if cfg.Pause.SafetyTimeout != time.Second {
		t.Errorf("expected safety timeout 1s, got %s", cfg.Pause.SafetyTimeout)
	}
	if cfg.Persistence.Driver != "sqlite" {
		t.Errorf("expected sqlite persistence, got %s", cfg.Persistence.Driver)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to validate, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(c *Config) {}, wantErr: false},
		{name: "unknown log mode", modify: func(c *Config) { c.Log.Mode = "verbose" }, wantErr: true},
		{name: "zero throttle", modify: func(c *Config) { c.Autosave.Throttle = 0 }, wantErr: true},
		{name: "debounce above throttle", modify: func(c *Config) { c.Autosave.Debounce = time.Minute }, wantErr: true},
		{name: "negative safety timeout", modify: func(c *Config) { c.Pause.SafetyTimeout = -time.Second }, wantErr: true},
		{name: "disabled safety timeout", modify: func(c *Config) { c.Pause.SafetyTimeout = 0 }, wantErr: false},
		{name: "unknown freeze", modify: func(c *Config) { c.History.Freeze = "frozen" }, wantErr: true},
		{name: "empty instance cache", modify: func(c *Config) { c.History.InstanceCacheSize = 0 }, wantErr: true},
		{name: "postgres without dsn", modify: func(c *Config) { c.Persistence.Driver = "postgres" }, wantErr: true},
		{name: "sqlite without path", modify: func(c *Config) { c.Persistence.Path = "" }, wantErr: true},
		{name: "memory persistence", modify: func(c *Config) { c.Persistence.Driver = "memory" }, wantErr: false},
		{name: "s3 without bucket", modify: func(c *Config) { c.Blob.Driver = "s3" }, wantErr: true},
		{name: "unknown blob driver", modify: func(c *Config) { c.Blob.Driver = "gcs" }, wantErr: true},
		{name: "redis without url", modify: func(c *Config) { c.SaveState.Driver = "redis" }, wantErr: true},
		{name: "unknown save state driver", modify: func(c *Config) { c.SaveState.Driver = "etcd" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "gencon.yaml")

	content := `
autosave:
  throttle: 30s
  debounce: 2s
persistence:
  driver: postgres
  dsn: "postgres://localhost/gencon"
blob:
  driver: s3
  s3:
    bucket: sequences
    region: eu-west-1
    path_style: true
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Autosave.Throttle != 30*time.Second || cfg.Autosave.Debounce != 2*time.Second {
		t.Errorf("unexpected autosave config %+v", cfg.Autosave)
	}
	if cfg.Persistence.Driver != "postgres" || cfg.Persistence.DSN != "postgres://localhost/gencon" {
		t.Errorf("unexpected persistence config %+v", cfg.Persistence)
	}
	if cfg.Blob.S3.Bucket != "sequences" || !cfg.Blob.S3.PathStyle {
		t.Errorf("unexpected s3 config %+v", cfg.Blob.S3)
	}
	// unspecified fields keep their defaults
	if cfg.Log.Mode != "production" {
		t.Errorf("expected default log mode, got %s", cfg.Log.Mode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected loaded config to validate, got %v", err)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("autosave: [unclosed"), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestSaveToFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "gencon.yaml")

	cfg := DefaultConfig()
	cfg.History.Freeze = "deep"
	cfg.Autosave.Throttle = time.Minute
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.History.Freeze != "deep" || loaded.Autosave.Throttle != time.Minute {
		t.Errorf("round trip lost fields: %+v", loaded)
	}
}

func TestMerge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Merge(nil)

	cfg.Merge(&Config{
		Autosave:  AutosaveConfig{Debounce: time.Second},
		SaveState: SaveStateConfig{Driver: "redis", RedisURL: "redis://localhost:6379"},
		Blob:      BlobConfig{Strict: true},
	})
	if cfg.Autosave.Debounce != time.Second {
		t.Errorf("expected merged debounce, got %s", cfg.Autosave.Debounce)
	}
	if cfg.Autosave.Throttle != 20*time.Second {
		t.Errorf("expected throttle preserved, got %s", cfg.Autosave.Throttle)
	}
	if cfg.SaveState.Driver != "redis" || cfg.SaveState.Prefix != "gencon:save:" {
		t.Errorf("unexpected save state %+v", cfg.SaveState)
	}
	if !cfg.Blob.Strict || cfg.Blob.Driver != "fs" {
		t.Errorf("unexpected blob config %+v", cfg.Blob)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"GENCON_STORAGE_DRIVER":      "memory",
		"GENCON_AUTOSAVE_DEBOUNCE":   "500ms",
		"GENCON_S3_PATH_STYLE":       "true",
		"GENCON_INSTANCE_CACHE_SIZE": "32",
		"GENCON_LOG_MODE":            "",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.Persistence.Driver != "memory" {
		t.Errorf("expected memory driver, got %s", cfg.Persistence.Driver)
	}
	if cfg.Autosave.Debounce != 500*time.Millisecond {
		t.Errorf("expected 500ms debounce, got %s", cfg.Autosave.Debounce)
	}
	if !cfg.Blob.S3.PathStyle {
		t.Error("expected path style from env")
	}
	if cfg.History.InstanceCacheSize != 32 {
		t.Errorf("expected cache size 32, got %d", cfg.History.InstanceCacheSize)
	}
	if cfg.Log.Mode != "production" {
		t.Errorf("expected empty override ignored, got %s", cfg.Log.Mode)
	}

	env["GENCON_AUTOSAVE_THROTTLE"] = "soon"
	if err := DefaultConfig().ApplyEnv(lookup); err == nil {
		t.Error("expected error for malformed duration")
	}
}

func TestLoadLayersEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gencon.yaml")
	if err := os.WriteFile(path, []byte("persistence:\n  driver: memory\n"), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("GENCON_LOG_MODE", "development")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Persistence.Driver != "memory" || cfg.Log.Mode != "development" {
		t.Errorf("unexpected config %+v", cfg)
	}

	t.Setenv("GENCON_HISTORY_FREEZE", "glacial")
	if _, err := Load(path); err == nil {
		t.Error("expected validation error")
	}
}
