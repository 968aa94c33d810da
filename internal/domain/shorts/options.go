package shorts

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidOptions = errors.New("invalid reassemble options")

type Strategy string

const (
	// StrategyOverlap clusters shorts whose overlap exceeds the threshold and
	// keeps the most viral one of each cluster.
	StrategyOverlap Strategy = "overlap"
	// StrategyZones trusts each block only inside its main zone and drops
	// exact start/end repeats.
	StrategyZones Strategy = "zones"
)

// Frame declares which time axis short start/end values are reported on.
type Frame string

const (
	FrameAbsolute      Frame = "absolute"
	FrameBlockRelative Frame = "block_relative"
)

const DefaultOverlapThreshold = 80.0

type Options struct {
	Strategy Strategy
	// Frame defaults to absolute for overlap and block_relative for zones.
	Frame     Frame
	Threshold float64
	// Resort orders overlap output by the kept shorts' own start times.
	Resort bool
}

func DefaultOptions() Options {
	return Options{Strategy: StrategyOverlap, Threshold: DefaultOverlapThreshold, Resort: true}
}

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyOverlap:
		return StrategyOverlap, nil
	case StrategyZones:
		return StrategyZones, nil
	}
	return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidOptions, s)
}

// ParseFrame returns "" for an empty string so the strategy default applies.
func ParseFrame(s string) (Frame, error) {
	switch Frame(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case FrameAbsolute:
		return FrameAbsolute, nil
	case FrameBlockRelative, "relative":
		return FrameBlockRelative, nil
	}
	return "", fmt.Errorf("%w: unknown frame %q", ErrInvalidOptions, s)
}

func (o Options) Validate() error {
	if _, err := ParseStrategy(string(o.Strategy)); err != nil {
		return err
	}
	if _, err := ParseFrame(string(o.Frame)); err != nil {
		return err
	}
	if o.Threshold <= 0 || o.Threshold > 100 {
		return fmt.Errorf("%w: threshold must be within (0, 100]", ErrInvalidOptions)
	}
	return nil
}

// normalized fills the zero value's gaps so Reassemble never fails on options.
func (o Options) normalized() Options {
	if s, err := ParseStrategy(string(o.Strategy)); err == nil {
		o.Strategy = s
	} else {
		o.Strategy = StrategyOverlap
	}
	if f, err := ParseFrame(string(o.Frame)); err == nil && f != "" {
		o.Frame = f
	} else if o.Strategy == StrategyZones {
		o.Frame = FrameBlockRelative
	} else {
		o.Frame = FrameAbsolute
	}
	if o.Threshold <= 0 || o.Threshold > 100 {
		o.Threshold = DefaultOverlapThreshold
	}
	return o
}
