package types

import (
	"bytes"
	"encoding/json"
	"time"
)

// Transcript is the full-video input handed over by the transcription step.
type Transcript struct {
	SourceVideoURL string         `json:"source_video_url,omitempty"`
	Text           string         `json:"text_llm"`
	Words          []Word         `json:"words_llm"`
	VideoDuration  float64        `json:"video_duration"`
	Duration       string         `json:"duration,omitempty"`
	DurationMS     float64        `json:"duration_ms,omitempty"`
	Language       string         `json:"language,omitempty"`
	ClientMeta     map[string]any `json:"client_meta,omitempty"`
	// Extra keeps fields not modelled here so a whole-video passthrough is
	// written back verbatim.
	Extra map[string]json.RawMessage `json:"-"`
}

type Word struct {
	Text  string  `json:"w"`
	Start float64 `json:"s"`
	End   float64 `json:"e"`
}

// Block is one overlapping slice of a transcript sent to the agent on its own.
type Block struct {
	SourceVideoURL string         `json:"source_video_url,omitempty"`
	BlockID        int            `json:"block_id"`
	TotalBlocks    int            `json:"total_blocks"`
	BlockStart     float64        `json:"block_start"`
	BlockEnd       float64        `json:"block_end"`
	MainZoneStart  float64        `json:"main_zone_start"`
	MainZoneEnd    float64        `json:"main_zone_end"`
	Text           string         `json:"text_llm"`
	Words          []Word         `json:"words_llm"`
	VideoDuration  float64        `json:"video_duration"`
	Duration       string         `json:"duration,omitempty"`
	DurationMS     float64        `json:"duration_ms,omitempty"`
	Language       string         `json:"language,omitempty"`
	ClientMeta     map[string]any `json:"client_meta"`
}

// Metadata returns the block description the agent echoes back with its shorts.
func (b Block) Metadata() BlockMetadata {
	zs, ze := b.MainZoneStart, b.MainZoneEnd
	return BlockMetadata{
		BlockID:       b.BlockID,
		TotalBlocks:   b.TotalBlocks,
		BlockStart:    b.BlockStart,
		BlockEnd:      b.BlockEnd,
		MainZoneStart: &zs,
		MainZoneEnd:   &ze,
	}
}

type Subtitle struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Short is a clip candidate produced by the agent for one block.
type Short struct {
	Start          float64        `json:"start"`
	End            float64        `json:"end"`
	Title          string         `json:"title"`
	Subtitles      []Subtitle     `json:"subtitles,omitempty"`
	ClientMeta     map[string]any `json:"client_meta,omitempty"`
	BlockID        int            `json:"block_id,omitempty"`
	SourceVideoURL string         `json:"source_video_url,omitempty"`
	OriginalStart  *float64       `json:"original_start,omitempty"`
	OriginalEnd    *float64       `json:"original_end,omitempty"`
	// Extra keeps agent fields not modelled here.
	Extra map[string]json.RawMessage `json:"-"`
}

// ViralityScore reads client_meta.virality_score, 0 when absent or not numeric.
func (s Short) ViralityScore() float64 {
	v, ok := s.ClientMeta["virality_score"]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

type BlockMetadata struct {
	BlockID       int      `json:"block_id,omitempty"`
	TotalBlocks   int      `json:"total_blocks,omitempty"`
	BlockStart    float64  `json:"block_start"`
	BlockEnd      float64  `json:"block_end,omitempty"`
	MainZoneStart *float64 `json:"main_zone_start,omitempty"`
	MainZoneEnd   *float64 `json:"main_zone_end,omitempty"`
}

// BlockResult is the agent output for one block. It decodes from either an
// envelope object ({"shorts": [...], "block_metadata": {...}}) or a bare
// array of shorts. Decoding degrades instead of failing: shorts that do not
// decode are dropped and counted in Malformed, and unusable metadata is
// treated as missing.
type BlockResult struct {
	SourceVideoURL string         `json:"source_video_url,omitempty"`
	Shorts         []Short        `json:"shorts"`
	BlockMetadata  *BlockMetadata `json:"block_metadata,omitempty"`
	Malformed      int            `json:"-"`
}

func (r *BlockResult) UnmarshalJSON(b []byte) error {
	t := bytes.TrimSpace(b)
	*r = BlockResult{}
	switch {
	case len(t) == 0 || bytes.Equal(t, []byte("null")):
		return nil
	case t[0] == '[':
		r.Shorts, r.Malformed = decodeShorts(t)
		return nil
	case t[0] != '{':
		r.Malformed = 1
		return nil
	}

	var env struct {
		SourceVideoURL json.RawMessage `json:"source_video_url"`
		Shorts         json.RawMessage `json:"shorts"`
		BlockMetadata  json.RawMessage `json:"block_metadata"`
	}
	if err := json.Unmarshal(t, &env); err != nil {
		return err
	}
	_ = json.Unmarshal(env.SourceVideoURL, &r.SourceVideoURL)
	if isPresent(env.Shorts) {
		r.Shorts, r.Malformed = decodeShorts(env.Shorts)
	}
	if isPresent(env.BlockMetadata) {
		var m BlockMetadata
		if json.Unmarshal(env.BlockMetadata, &m) == nil {
			r.BlockMetadata = &m
		}
	}
	return nil
}

// decodeShorts decodes a JSON array one short at a time. A value that is not
// an array counts as one malformed entry.
func decodeShorts(b []byte) ([]Short, int) {
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, 1
	}
	out := make([]Short, 0, len(items))
	bad := 0
	for _, it := range items {
		var s Short
		if !isPresent(it) || bytes.TrimSpace(it)[0] != '{' || json.Unmarshal(it, &s) != nil {
			bad++
			continue
		}
		out = append(out, s)
	}
	return out, bad
}

func isPresent(b json.RawMessage) bool {
	t := bytes.TrimSpace(b)
	return len(t) > 0 && !bytes.Equal(t, []byte("null"))
}

// BlockID returns the source block id, 1 when metadata is missing.
func (r BlockResult) BlockID() int {
	if r.BlockMetadata == nil || r.BlockMetadata.BlockID <= 0 {
		return 1
	}
	return r.BlockMetadata.BlockID
}

type MergeResult struct {
	SourceVideoURL string  `json:"source_video_url,omitempty"`
	Shorts         []Short `json:"shorts"`
	Stats          Stats   `json:"stats"`
}

type Stats struct {
	RunID             string   `json:"run_id,omitempty"`
	Strategy          string   `json:"strategy,omitempty"`
	TotalBefore       int      `json:"total_before"`
	TotalAfter        int      `json:"total_after"`
	DuplicatesRemoved int      `json:"duplicates_removed"`
	OutOfZone         int      `json:"out_of_zone,omitempty"`
	BlocksProcessed   int      `json:"blocks_processed"`
	Malformed         int      `json:"malformed,omitempty"`
	OverlapThreshold  *float64 `json:"overlap_threshold,omitempty"`
}

// Run is one recorded segment or reassemble invocation.
type Run struct {
	ID                string    `json:"id"`
	Kind              string    `json:"kind"`
	SourceVideoURL    string    `json:"source_video_url,omitempty"`
	Strategy          string    `json:"strategy,omitempty"`
	TotalBefore       int       `json:"total_before"`
	TotalAfter        int       `json:"total_after"`
	DuplicatesRemoved int       `json:"duplicates_removed"`
	BlocksProcessed   int       `json:"blocks_processed"`
	CreatedAt         time.Time `json:"created_at"`
}

const (
	RunKindSegment    = "segment"
	RunKindReassemble = "reassemble"
)
