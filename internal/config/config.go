package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/forPelevin/blockcut/internal/domain/blocks"
	"github.com/forPelevin/blockcut/internal/domain/shorts"
	"github.com/forPelevin/blockcut/internal/logger"
)

// DefaultPath is where the CLI looks for a config file when --config is unset.
const DefaultPath = "blockcut.yaml"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Split     SplitConfig     `yaml:"split"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Storage   StorageConfig   `yaml:"storage"`
	Watch     WatchConfig     `yaml:"watch"`
	Templates TemplatesConfig `yaml:"templates"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	BodyLimitMB int    `yaml:"body_limit_mb"`
}

type SplitConfig struct {
	MinBlockDuration float64 `yaml:"min_block_duration"`
	OverlapSeconds   float64 `yaml:"overlap_seconds"`
	MinVideoForSplit float64 `yaml:"min_video_for_split"`
	Strategy         string  `yaml:"strategy"`
	MaxBlocks        int     `yaml:"max_blocks"`
}

type DedupConfig struct {
	Strategy         string  `yaml:"strategy"`
	Frame            string  `yaml:"frame"`
	OverlapThreshold float64 `yaml:"overlap_threshold"`
	Resort           *bool   `yaml:"resort,omitempty"`
}

// ResortValue returns the effective resort flag applying the default.
func (d DedupConfig) ResortValue() bool {
	if d.Resort == nil {
		return true
	}
	return *d.Resort
}

type StorageConfig struct {
	// Database is the sqlite file for run history. Empty disables recording.
	Database string `yaml:"database"`
}

type WatchConfig struct {
	Inbox         string `yaml:"inbox"`
	Outbox        string `yaml:"outbox"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

type TemplatesConfig struct {
	// CatalogFile replaces the built-in catalog when set.
	CatalogFile string `yaml:"catalog_file"`
	// Seed makes template selection reproducible; 0 seeds from the clock.
	Seed int64 `yaml:"seed"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Default() Config {
	split := blocks.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Addr:        ":8080",
			BodyLimitMB: 32,
		},
		Split: SplitConfig{
			MinBlockDuration: split.MinBlockDuration,
			OverlapSeconds:   split.OverlapSeconds,
			MinVideoForSplit: split.MinVideoForSplit,
			Strategy:         string(split.Strategy),
		},
		Dedup: DedupConfig{
			Strategy:         string(shorts.StrategyOverlap),
			OverlapThreshold: shorts.DefaultOverlapThreshold,
		},
		Watch: WatchConfig{
			Inbox:         "data/inbox",
			Outbox:        "data/outbox",
			MaxConcurrent: 2,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML configuration from disk if it exists, otherwise returns
// the default configuration.
func Load(path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills zero values the YAML left behind.
func (c *Config) ApplyDefaults() {
	d := Default()
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.BodyLimitMB == 0 {
		c.Server.BodyLimitMB = d.Server.BodyLimitMB
	}
	if c.Split.MinBlockDuration == 0 {
		c.Split.MinBlockDuration = d.Split.MinBlockDuration
	}
	if c.Split.MinVideoForSplit == 0 {
		c.Split.MinVideoForSplit = d.Split.MinVideoForSplit
	}
	if c.Split.Strategy == "" {
		c.Split.Strategy = d.Split.Strategy
	}
	if c.Dedup.Strategy == "" {
		c.Dedup.Strategy = d.Dedup.Strategy
	}
	if c.Dedup.OverlapThreshold == 0 {
		c.Dedup.OverlapThreshold = d.Dedup.OverlapThreshold
	}
	if c.Watch.MaxConcurrent == 0 {
		c.Watch.MaxConcurrent = d.Watch.MaxConcurrent
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
}

// ApplyEnv overrides fields from BLOCKCUT_* variables. getenv is os.Getenv in
// production.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv("BLOCKCUT_LOG_LEVEL")); v != "" {
		c.Logging.Level = v
	}
	if v := strings.TrimSpace(getenv("BLOCKCUT_ADDR")); v != "" {
		c.Server.Addr = v
	}
	if v := strings.TrimSpace(getenv("BLOCKCUT_DB")); v != "" {
		c.Storage.Database = v
	}
}

func (c Config) Validate() error {
	if _, err := c.SplitConfig(); err != nil {
		return fmt.Errorf("config: split: %w", err)
	}
	if _, err := c.DedupOptions(); err != nil {
		return fmt.Errorf("config: dedup: %w", err)
	}
	if c.Server.BodyLimitMB <= 0 {
		return errors.New("config: server.body_limit_mb must be > 0")
	}
	if c.Watch.MaxConcurrent <= 0 {
		return errors.New("config: watch.max_concurrent must be > 0")
	}
	if !logger.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("config: logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

// SplitConfig converts the split section into segmenter settings.
func (c Config) SplitConfig() (blocks.Config, error) {
	s, err := blocks.ParseStrategy(c.Split.Strategy)
	if err != nil {
		return blocks.Config{}, err
	}
	bc := blocks.Config{
		MinBlockDuration: c.Split.MinBlockDuration,
		OverlapSeconds:   c.Split.OverlapSeconds,
		MinVideoForSplit: c.Split.MinVideoForSplit,
		Strategy:         s,
		MaxBlocks:        c.Split.MaxBlocks,
	}
	if err := bc.Validate(); err != nil {
		return blocks.Config{}, err
	}
	return bc, nil
}

// DedupOptions converts the dedup section into reassembler options.
func (c Config) DedupOptions() (shorts.Options, error) {
	s, err := shorts.ParseStrategy(c.Dedup.Strategy)
	if err != nil {
		return shorts.Options{}, err
	}
	var f shorts.Frame
	if c.Dedup.Frame != "" {
		if f, err = shorts.ParseFrame(c.Dedup.Frame); err != nil {
			return shorts.Options{}, err
		}
	}
	o := shorts.Options{
		Strategy:  s,
		Frame:     f,
		Threshold: c.Dedup.OverlapThreshold,
		Resort:    c.Dedup.ResortValue(),
	}
	if err := o.Validate(); err != nil {
		return shorts.Options{}, err
	}
	return o, nil
}
