package blocks

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig marks split settings that cannot produce coherent blocks.
var ErrInvalidConfig = errors.New("invalid split config")

type Strategy string

const (
	// StrategyUncapped sizes blocks by MinBlockDuration alone.
	StrategyUncapped Strategy = "uncapped"
	// StrategyCapped counts overlap into the block size and never exceeds MaxBlocks.
	StrategyCapped Strategy = "capped"
)

const (
	DefaultMinBlockDuration = 1200
	DefaultOverlapSeconds   = 180
	DefaultMinVideoForSplit = 1800
)

type Config struct {
	MinBlockDuration float64
	OverlapSeconds   float64
	MinVideoForSplit float64
	Strategy         Strategy
	MaxBlocks        int
}

func DefaultConfig() Config {
	return Config{
		MinBlockDuration: DefaultMinBlockDuration,
		OverlapSeconds:   DefaultOverlapSeconds,
		MinVideoForSplit: DefaultMinVideoForSplit,
		Strategy:         StrategyUncapped,
	}
}

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyUncapped:
		return StrategyUncapped, nil
	case StrategyCapped:
		return StrategyCapped, nil
	}
	return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, s)
}

func (c Config) Validate() error {
	if c.MinBlockDuration <= 0 {
		return fmt.Errorf("%w: min_block_duration must be > 0", ErrInvalidConfig)
	}
	if c.OverlapSeconds < 0 {
		return fmt.Errorf("%w: overlap_seconds must be >= 0", ErrInvalidConfig)
	}
	if c.MinVideoForSplit < 0 {
		return fmt.Errorf("%w: min_video_for_split must be >= 0", ErrInvalidConfig)
	}
	switch c.Strategy {
	case StrategyUncapped:
	case StrategyCapped:
		if c.MaxBlocks < 1 {
			return fmt.Errorf("%w: max_blocks must be >= 1 for the capped strategy", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, c.Strategy)
	}
	return nil
}

// WithClientMeta applies per-transcript overrides. Zero and missing values keep
// the base setting.
func (c Config) WithClientMeta(meta map[string]any) (Config, error) {
	if v, ok := positive(meta, "min_block_duration"); ok {
		c.MinBlockDuration = v
	}
	if v, ok := positive(meta, "overlap_seconds"); ok {
		c.OverlapSeconds = v
	}
	if v, ok := positive(meta, "min_video_for_split"); ok {
		c.MinVideoForSplit = v
	}
	if v, ok := positive(meta, "max_blocks"); ok {
		c.MaxBlocks = int(v)
		if _, set := meta["split_strategy"]; !set {
			c.Strategy = StrategyCapped
		}
	}
	if s, ok := meta["split_strategy"].(string); ok {
		st, err := ParseStrategy(s)
		if err != nil {
			return c, err
		}
		c.Strategy = st
	}
	return c, nil
}

func positive(meta map[string]any, key string) (float64, bool) {
	v, ok := meta[key]
	if !ok {
		return 0, false
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, false
	}
	return f, f > 0
}
