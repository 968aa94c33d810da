package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/forPelevin/blockcut/internal/domain/blocks"
	"github.com/forPelevin/blockcut/internal/domain/shorts"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Split.MinBlockDuration != 1200 || cfg.Dedup.OverlapThreshold != 80 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	p := filepath.Join(t.TempDir(), "blockcut.yaml")
	body := `
split:
  overlap_seconds: 0
  strategy: capped
  max_blocks: 4
dedup:
  strategy: zones
  resort: false
watch:
  max_concurrent: 0
`
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Split.OverlapSeconds != 0 || cfg.Split.MinBlockDuration != 1200 {
		t.Fatalf("unexpected split section: %+v", cfg.Split)
	}
	if cfg.Watch.MaxConcurrent != 2 {
		t.Fatalf("zero max_concurrent should fall back to the default, got %d", cfg.Watch.MaxConcurrent)
	}
	sc, err := cfg.SplitConfig()
	if err != nil {
		t.Fatalf("split config: %v", err)
	}
	if sc.Strategy != blocks.StrategyCapped || sc.MaxBlocks != 4 {
		t.Fatalf("unexpected split config: %+v", sc)
	}
	opts, err := cfg.DedupOptions()
	if err != nil {
		t.Fatalf("dedup options: %v", err)
	}
	if opts.Strategy != shorts.StrategyZones || opts.Resort {
		t.Fatalf("unexpected dedup options: %+v", opts)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "blockcut.yaml")
	if err := os.WriteFile(p, []byte("split: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unmarshal error")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"BLOCKCUT_LOG_LEVEL": "debug",
		"BLOCKCUT_ADDR":      " :9000 ",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) string { return env[k] })
	if cfg.Logging.Level != "debug" || cfg.Server.Addr != ":9000" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.Storage.Database != Default().Storage.Database {
		t.Fatalf("unset env must keep the configured value")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"capped without max", func(c *Config) { c.Split.Strategy = "capped" }, blocks.ErrInvalidConfig},
		{"unknown split strategy", func(c *Config) { c.Split.Strategy = "random" }, blocks.ErrInvalidConfig},
		{"unknown dedup frame", func(c *Config) { c.Dedup.Frame = "diagonal" }, shorts.ErrInvalidOptions},
		{"threshold out of range", func(c *Config) { c.Dedup.OverlapThreshold = 150 }, shorts.ErrInvalidOptions},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }, nil},
		{"no concurrency", func(c *Config) { c.Watch.MaxConcurrent = -1 }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
