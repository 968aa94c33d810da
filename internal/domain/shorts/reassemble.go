package shorts

import (
	"math"
	"sort"

	"github.com/forPelevin/blockcut/internal/types"
)

// Reassemble merges per-block agent results into one ordered, deduplicated
// list. Results may arrive in any order. Malformed or partial input degrades
// to fewer shorts, never to an error.
func Reassemble(results []types.BlockResult, opts Options) types.MergeResult {
	opts = opts.normalized()

	src, malformed := "", 0
	for _, r := range results {
		if src == "" {
			src = r.SourceVideoURL
		}
		malformed += r.Malformed
	}

	var (
		out       []types.Short
		before    int
		outOfZone int
	)
	switch opts.Strategy {
	case StrategyZones:
		var all []types.Short
		all, before, outOfZone = collectInZone(results, opts.Frame, src)
		out = DedupExact(all)
	default:
		all := collect(results, opts.Frame, src)
		before = len(all)
		out = DedupOverlap(all, opts.Threshold, opts.Resort)
	}
	if out == nil {
		out = []types.Short{}
	}

	stats := types.Stats{
		Strategy:          string(opts.Strategy),
		TotalBefore:       before,
		TotalAfter:        len(out),
		DuplicatesRemoved: before - outOfZone - len(out),
		OutOfZone:         outOfZone,
		BlocksProcessed:   len(results),
		Malformed:         malformed,
	}
	if opts.Strategy == StrategyOverlap {
		th := opts.Threshold
		stats.OverlapThreshold = &th
	}
	return types.MergeResult{SourceVideoURL: src, Shorts: out, Stats: stats}
}

// collect flattens every block's shorts into absolute time, tagged with the
// source block id.
func collect(results []types.BlockResult, frame Frame, src string) []types.Short {
	var all []types.Short
	for _, r := range results {
		offset := blockOffset(r, frame)
		for _, s := range r.Shorts {
			all = append(all, tag(s, r, offset, frame, src))
		}
	}
	return all
}

// collectInZone groups results by block id, translates them and keeps only
// shorts starting inside their block's main zone.
func collectInZone(results []types.BlockResult, frame Frame, src string) (kept []types.Short, total, dropped int) {
	ordered := make([]types.BlockResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].BlockID() < ordered[j].BlockID()
	})

	for _, r := range ordered {
		offset := blockOffset(r, frame)
		lo, hi := mainZone(r)
		for _, s := range r.Shorts {
			total++
			t := tag(s, r, offset, frame, src)
			if t.Start < lo || t.Start >= hi {
				dropped++
				continue
			}
			kept = append(kept, t)
		}
	}
	sortByStart(kept)
	return kept, total, dropped
}

// DedupOverlap sweeps shorts in start order and collapses every group whose
// overlap with the group's first member exceeds threshold (percent) into the
// member with the highest virality score. Ties keep the earliest member.
func DedupOverlap(in []types.Short, threshold float64, resort bool) []types.Short {
	all := make([]types.Short, len(in))
	copy(all, in)
	sortByStart(all)

	claimed := make([]bool, len(all))
	var out []types.Short
	for i := range all {
		if claimed[i] {
			continue
		}
		cur := all[i]
		best := cur
		bestScore := cur.ViralityScore()
		claimed[i] = true

		for j := i + 1; j < len(all); j++ {
			if claimed[j] {
				continue
			}
			cand := all[j]
			if Percent(cur.Start, cur.End, cand.Start, cand.End) <= threshold {
				continue
			}
			claimed[j] = true
			if sc := cand.ViralityScore(); sc > bestScore {
				best, bestScore = cand, sc
			}
		}
		out = append(out, best)
	}
	if resort {
		sortByStart(out)
	}
	return out
}

// DedupExact drops shorts whose start and end match an earlier one to two
// decimals. Input is expected in start order and the order is kept.
func DedupExact(in []types.Short) []types.Short {
	type key struct{ start, end int64 }
	seen := make(map[key]struct{}, len(in))
	var out []types.Short
	for _, s := range in {
		k := key{start: centis(s.Start), end: centis(s.End)}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}

// tag stamps a short with its block and moves it to absolute time. A short
// coming back from an earlier merge keeps its original times, and its block id
// when the result carries no metadata of its own.
func tag(s types.Short, r types.BlockResult, offset float64, frame Frame, src string) types.Short {
	if s.BlockID <= 0 || hasBlockID(r) {
		s.BlockID = r.BlockID()
	}
	if s.SourceVideoURL == "" {
		s.SourceVideoURL = src
	}
	if frame != FrameBlockRelative {
		return s
	}
	if s.OriginalStart == nil {
		origStart := s.Start
		s.OriginalStart = &origStart
	}
	if s.OriginalEnd == nil {
		origEnd := s.End
		s.OriginalEnd = &origEnd
	}
	s.Start += offset
	s.End += offset
	if len(s.Subtitles) > 0 {
		subs := make([]types.Subtitle, len(s.Subtitles))
		for i, sub := range s.Subtitles {
			sub.Start += offset
			sub.End += offset
			subs[i] = sub
		}
		s.Subtitles = subs
	}
	return s
}

func hasBlockID(r types.BlockResult) bool {
	return r.BlockMetadata != nil && r.BlockMetadata.BlockID > 0
}

func blockOffset(r types.BlockResult, frame Frame) float64 {
	if frame != FrameBlockRelative || r.BlockMetadata == nil {
		return 0
	}
	return r.BlockMetadata.BlockStart
}

func mainZone(r types.BlockResult) (float64, float64) {
	lo, hi := math.Inf(-1), math.Inf(1)
	if m := r.BlockMetadata; m != nil {
		if m.MainZoneStart != nil {
			lo = *m.MainZoneStart
		}
		if m.MainZoneEnd != nil {
			hi = *m.MainZoneEnd
		}
	}
	return lo, hi
}

func sortByStart(s []types.Short) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Start < s[j].Start })
}

func centis(v float64) int64 { return int64(math.Round(v * 100)) }
