package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/forPelevin/blockcut/internal/domain/aiparse"
	"github.com/forPelevin/blockcut/internal/domain/blocks"
	"github.com/forPelevin/blockcut/internal/domain/shorts"
	"github.com/forPelevin/blockcut/internal/ports"
	"github.com/forPelevin/blockcut/internal/types"
)

type Deps struct {
	// Runs is optional; nil skips run recording.
	Runs  ports.RunStore
	Clock func() time.Time
	NewID func() string
	Logf  func(format string, args ...any)
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.Logf == nil {
		d.Logf = func(string, ...any) {}
	}
	return Usecase{d: d}
}

type SegmentInput struct {
	Transcript types.Transcript
	// Config is the base split policy; the transcript's client_meta may
	// override it.
	Config blocks.Config
}

type SegmentResult struct {
	RunID  string
	Blocks blocks.Result
}

func (u Usecase) Segment(ctx context.Context, in SegmentInput) (SegmentResult, error) {
	cfg, err := in.Config.WithClientMeta(in.Transcript.ClientMeta)
	if err != nil {
		return SegmentResult{}, err
	}
	res, err := blocks.Split(in.Transcript, cfg)
	if err != nil {
		return SegmentResult{}, fmt.Errorf("segment: %w", err)
	}
	u.d.Logf("split: %s", res.Plan.Reason)

	id := u.d.NewID()
	n := len(res.Blocks)
	if !res.Split() {
		n = 1
	}
	u.record(ctx, types.Run{
		ID:              id,
		Kind:            types.RunKindSegment,
		SourceVideoURL:  blocks.ResolveSourceURL(in.Transcript),
		Strategy:        string(cfg.Strategy),
		TotalBefore:     len(in.Transcript.Words),
		BlocksProcessed: n,
	})
	return SegmentResult{RunID: id, Blocks: res}, nil
}

func (u Usecase) Reassemble(ctx context.Context, results []types.BlockResult, opts shorts.Options) (types.MergeResult, error) {
	if err := opts.Validate(); err != nil {
		return types.MergeResult{}, err
	}
	res := shorts.Reassemble(results, opts)
	res.Stats.RunID = u.d.NewID()
	u.d.Logf("reassemble (%s): %d shorts from %d blocks, %d duplicates removed, %d outside main zones",
		res.Stats.Strategy, res.Stats.TotalAfter, res.Stats.BlocksProcessed, res.Stats.DuplicatesRemoved, res.Stats.OutOfZone)

	u.record(ctx, types.Run{
		ID:                res.Stats.RunID,
		Kind:              types.RunKindReassemble,
		SourceVideoURL:    res.SourceVideoURL,
		Strategy:          res.Stats.Strategy,
		TotalBefore:       res.Stats.TotalBefore,
		TotalAfter:        res.Stats.TotalAfter,
		DuplicatesRemoved: res.Stats.DuplicatesRemoved,
		BlocksProcessed:   res.Stats.BlocksProcessed,
	})
	return res, nil
}

// Parse never fails; a malformed response comes back as Result.Failure.
func (u Usecase) Parse(raw string) aiparse.Result {
	res := aiparse.Parse(raw)
	switch {
	case res.Failure != nil:
		u.d.Logf("parse failed: %s (raw: %q)", res.Failure.Error, aiparse.Preview(raw, 120))
	case len(res.Warnings) > 0:
		for _, w := range res.Warnings {
			u.d.Logf("parse warning: %s", w)
		}
	default:
		u.d.Logf("parsed %s via %s", res.Kind, res.Method)
	}
	return res
}

// ParseForBlock parses the agent response for one block. When it holds shorts
// the output is a block result carrying the block's metadata, ready for the
// zones merge; anything else is handed back as Parse would.
func (u Usecase) ParseForBlock(raw string, block types.Block) (aiparse.Result, any) {
	res := u.Parse(raw)
	if !res.OK() || res.Kind == aiparse.KindOther {
		return res, res.Output()
	}
	meta := block.Metadata()
	br, err := res.BlockResult(&meta)
	if err != nil {
		u.d.Logf("parse block %d: %v", block.BlockID, err)
		return res, res.Output()
	}
	if br.SourceVideoURL == "" {
		br.SourceVideoURL = block.SourceVideoURL
	}
	if br.Malformed > 0 {
		u.d.Logf("parse block %d: dropped %d malformed shorts", block.BlockID, br.Malformed)
	}
	return res, br
}

func (u Usecase) Recent(ctx context.Context, limit int) ([]types.Run, error) {
	if u.d.Runs == nil {
		return []types.Run{}, nil
	}
	return u.d.Runs.Recent(ctx, limit)
}

// record stores run stats; failures are logged, never returned.
func (u Usecase) record(ctx context.Context, r types.Run) {
	if u.d.Runs == nil {
		return
	}
	r.CreatedAt = u.d.Clock().UTC()
	if err := u.d.Runs.Record(ctx, r); err != nil {
		u.d.Logf("record run %s: %v", r.ID, err)
	}
}
