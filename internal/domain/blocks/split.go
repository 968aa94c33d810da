package blocks

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/forPelevin/blockcut/internal/types"
)

// Plan is the block layout chosen for one video duration.
type Plan struct {
	NumBlocks int
	BlockSize float64
	Overlap   float64
	Reason    string
}

// Result holds either the blocks of a split transcript or, when the video is
// processed whole, the original transcript with no block fields.
type Result struct {
	Blocks []types.Block
	Whole  *types.Transcript
	Plan   Plan
}

// Split reports whether the transcript was cut into blocks.
func (r Result) Split() bool { return r.Whole == nil }

// MarshalJSON emits the item list the workflow host loops over.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Whole != nil {
		return json.Marshal([]types.Transcript{*r.Whole})
	}
	if r.Blocks == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Blocks)
}

// PlanBlocks decides how many blocks a video of the given duration needs.
func PlanBlocks(videoDuration float64, cfg Config) (Plan, error) {
	if err := cfg.Validate(); err != nil {
		return Plan{}, err
	}
	mins := math.Round(videoDuration / 60)
	if videoDuration < cfg.MinVideoForSplit || videoDuration <= 0 {
		return Plan{
			NumBlocks: 1,
			BlockSize: videoDuration,
			Reason:    fmt.Sprintf("video %.0f min processed whole (shorter than %.0f min)", mins, math.Round(cfg.MinVideoForSplit/60)),
		}, nil
	}

	var n int
	switch cfg.Strategy {
	case StrategyCapped:
		n = int(math.Ceil(videoDuration / (cfg.MinBlockDuration + cfg.OverlapSeconds)))
		if n > cfg.MaxBlocks {
			n = cfg.MaxBlocks
		}
	default:
		n = int(math.Ceil(videoDuration / cfg.MinBlockDuration))
	}
	if n <= 1 {
		return Plan{
			NumBlocks: 1,
			BlockSize: videoDuration,
			Reason:    fmt.Sprintf("video %.0f min fits in one block", mins),
		}, nil
	}

	size := videoDuration / float64(n)
	if cfg.OverlapSeconds >= size {
		return Plan{}, fmt.Errorf("%w: overlap_seconds %.0f must be smaller than block size %.1f", ErrInvalidConfig, cfg.OverlapSeconds, size)
	}
	return Plan{
		NumBlocks: n,
		BlockSize: size,
		Overlap:   cfg.OverlapSeconds,
		Reason:    fmt.Sprintf("video %.0f min -> %d blocks of ~%.0f min", mins, n, math.Round(size/60)),
	}, nil
}

// Split cuts a transcript into overlapping blocks. The input is never mutated.
func Split(tr types.Transcript, cfg Config) (Result, error) {
	plan, err := PlanBlocks(tr.VideoDuration, cfg)
	if err != nil {
		return Result{}, err
	}
	src := ResolveSourceURL(tr)

	if plan.NumBlocks == 1 {
		whole := tr
		whole.SourceVideoURL = src
		return Result{Whole: &whole, Plan: plan}, nil
	}

	d := tr.VideoDuration
	out := make([]types.Block, 0, plan.NumBlocks)
	for i := 0; i < plan.NumBlocks; i++ {
		first := i == 0
		last := i == plan.NumBlocks-1

		zoneStart := math.Round(float64(i) * plan.BlockSize)
		zoneEnd := math.Round(float64(i+1) * plan.BlockSize)
		if last {
			zoneEnd = math.Round(d)
		}

		blockStart := 0.0
		if !first {
			blockStart = math.Round(math.Max(0, zoneStart-plan.Overlap))
		}
		blockEnd := math.Round(d)
		if !last {
			blockEnd = math.Round(math.Min(d, zoneEnd+plan.Overlap))
		}

		words := wordsInRange(tr.Words, blockStart, blockEnd)

		out = append(out, types.Block{
			SourceVideoURL: src,
			BlockID:        i + 1,
			TotalBlocks:    plan.NumBlocks,
			BlockStart:     blockStart,
			BlockEnd:       blockEnd,
			MainZoneStart:  zoneStart,
			MainZoneEnd:    zoneEnd,
			Text:           joinWords(words),
			Words:          words,
			VideoDuration:  d,
			Duration:       tr.Duration,
			DurationMS:     tr.DurationMS,
			Language:       tr.Language,
			ClientMeta:     cloneMeta(tr.ClientMeta),
		})
	}
	return Result{Blocks: out, Plan: plan}, nil
}

// ResolveSourceURL prefers the top-level url, then client_meta.source.videoUrl.
func ResolveSourceURL(tr types.Transcript) string {
	if tr.SourceVideoURL != "" {
		return tr.SourceVideoURL
	}
	src, ok := tr.ClientMeta["source"].(map[string]any)
	if !ok {
		return ""
	}
	u, _ := src["videoUrl"].(string)
	return u
}

func wordsInRange(words []types.Word, start, end float64) []types.Word {
	out := make([]types.Word, 0)
	for _, w := range words {
		if w.Start >= start && w.Start < end {
			out = append(out, w)
		}
	}
	return out
}

func joinWords(words []types.Word) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

func cloneMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
