package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/forPelevin/blockcut/internal/domain/blocks"
	"github.com/forPelevin/blockcut/internal/domain/shorts"
	"github.com/forPelevin/blockcut/internal/domain/subtitles"
	"github.com/forPelevin/blockcut/internal/domain/templates"
	"github.com/forPelevin/blockcut/internal/ports"
	"github.com/forPelevin/blockcut/internal/types"
	"github.com/forPelevin/blockcut/internal/usecase"
)

type Op string

const (
	OpSegment    Op = "segment"
	OpReassemble Op = "reassemble"
	OpParse      Op = "parse"
	OpPreview    Op = "preview"
)

type Config struct {
	Op Op
	// Inputs holds one transcript (segment), one raw agent response (parse),
	// one merge result (preview) or any number of block result files
	// (reassemble).
	Inputs []string
	// OutDir receives a per-run directory. Empty writes the JSON result to
	// Stdout instead.
	OutDir string
	Stdout io.Writer
	Logf   func(format string, args ...any)

	Split blocks.Config
	Dedup shorts.Options
	Runs  ports.RunStore

	Catalog  *templates.Catalog
	Template templates.Filter
	Rand     *rand.Rand
	// ClipLocal renders preview times relative to each short's start.
	ClipLocal bool

	// Blocks points parse at the segment output the agent worked from. When
	// set, the parsed shorts come back as a block result carrying the
	// metadata of block BlockID, ready for a zones reassemble.
	Blocks  string
	BlockID int
}

func (c Config) Validate() error {
	switch c.Op {
	case OpSegment, OpParse, OpPreview:
		if len(c.Inputs) != 1 {
			return fmt.Errorf("%s takes exactly one input, got %d", c.Op, len(c.Inputs))
		}
	case OpReassemble:
		if len(c.Inputs) == 0 {
			return errors.New("reassemble needs at least one input")
		}
	default:
		return fmt.Errorf("unknown op %q", c.Op)
	}
	for _, in := range c.Inputs {
		if in == "" {
			return errors.New("input is empty")
		}
		if _, err := os.Stat(in); err != nil {
			return fmt.Errorf("stat input: %w", err)
		}
	}
	switch c.Op {
	case OpSegment:
		if err := c.Split.Validate(); err != nil {
			return err
		}
	case OpReassemble:
		if err := c.Dedup.Validate(); err != nil {
			return err
		}
	case OpParse:
		if c.Blocks != "" {
			if c.BlockID <= 0 {
				return fmt.Errorf("block id must be positive, got %d", c.BlockID)
			}
			if _, err := os.Stat(c.Blocks); err != nil {
				return fmt.Errorf("stat blocks: %w", err)
			}
		}
	case OpPreview:
		if c.Catalog == nil {
			return errors.New("preview needs a template catalog")
		}
		if c.OutDir == "" {
			return errors.New("preview needs an output directory")
		}
	}
	if c.OutDir == "" && c.Stdout == nil {
		return errors.New("no output: set an output directory or stdout")
	}
	return nil
}

// Output reports where the run wrote its files. RunDir is empty when the
// result went to stdout.
type Output struct {
	RunDir string
	Files  []string
	RunID  string
}

func Run(ctx context.Context, cfg Config) (Output, error) {
	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	uc := usecase.New(usecase.Deps{
		Runs: cfg.Runs,
		Logf: logf,
	})

	var (
		name   string
		result any
		runID  string
	)
	switch cfg.Op {
	case OpSegment:
		tr, err := readTranscript(cfg.Inputs[0])
		if err != nil {
			return Output{}, err
		}
		res, err := uc.Segment(ctx, usecase.SegmentInput{Transcript: tr, Config: cfg.Split})
		if err != nil {
			return Output{}, err
		}
		name, result, runID = "blocks.json", res.Blocks, res.RunID

	case OpReassemble:
		var all []types.BlockResult
		for _, in := range cfg.Inputs {
			rs, err := readBlockResults(in)
			if err != nil {
				return Output{}, err
			}
			logf("loaded %d block results from %s", len(rs), in)
			all = append(all, rs...)
		}
		res, err := uc.Reassemble(ctx, all, cfg.Dedup)
		if err != nil {
			return Output{}, err
		}
		name, result, runID = "shorts.json", res, res.Stats.RunID

	case OpParse:
		raw, err := os.ReadFile(cfg.Inputs[0])
		if err != nil {
			return Output{}, fmt.Errorf("read input: %w", err)
		}
		if cfg.Blocks == "" {
			name, result = "parsed.json", uc.Parse(string(raw)).Output()
			break
		}
		block, err := readBlock(cfg.Blocks, cfg.BlockID)
		if err != nil {
			return Output{}, err
		}
		_, out := uc.ParseForBlock(string(raw), block)
		name, result = "parsed.json", out

	case OpPreview:
		return preview(cfg, logf)
	}

	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return Output{}, fmt.Errorf("marshal %s: %w", name, err)
	}
	b = append(b, '\n')

	if cfg.OutDir == "" {
		if _, err := cfg.Stdout.Write(b); err != nil {
			return Output{}, fmt.Errorf("write stdout: %w", err)
		}
		return Output{RunID: runID}, nil
	}

	runOutDir := buildRunOutDir(cfg.OutDir, cfg.Inputs[0], time.Now().UTC())
	if err := os.MkdirAll(runOutDir, 0o755); err != nil {
		return Output{}, err
	}
	logf("output run dir: %s", runOutDir)
	p := filepath.Join(runOutDir, name)
	if err := os.WriteFile(p, b, 0o644); err != nil {
		return Output{}, err
	}
	logf("%s written: %s", cfg.Op, p)
	return Output{RunDir: runOutDir, Files: []string{p}, RunID: runID}, nil
}

func preview(cfg Config, logf func(string, ...any)) (Output, error) {
	b, err := os.ReadFile(cfg.Inputs[0])
	if err != nil {
		return Output{}, fmt.Errorf("read input: %w", err)
	}
	var merged types.MergeResult
	if err := json.Unmarshal(b, &merged); err != nil {
		return Output{}, fmt.Errorf("decode shorts: %w", err)
	}
	if len(merged.Shorts) == 0 {
		return Output{}, errors.New("input has no shorts to preview")
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	sel, err := cfg.Catalog.Select(rng, cfg.Template)
	if err != nil {
		return Output{}, err
	}
	logf("template: %s (%s, %d candidates)", sel.Key, sel.Template.Name, sel.Available)

	runOutDir := buildRunOutDir(cfg.OutDir, cfg.Inputs[0], time.Now().UTC())
	subsDir := filepath.Join(runOutDir, "subtitles")
	if err := os.MkdirAll(subsDir, 0o755); err != nil {
		return Output{}, err
	}
	out := Output{RunDir: runOutDir}
	for i, s := range merged.Shorts {
		ass, err := subtitles.Render(s, sel.Template, cfg.ClipLocal)
		if err != nil {
			logf("skip short %d: %v", i+1, err)
			continue
		}
		p := filepath.Join(subsDir, fmt.Sprintf("%03d.ass", i+1))
		if err := os.WriteFile(p, []byte(ass), 0o644); err != nil {
			return Output{}, err
		}
		out.Files = append(out.Files, p)
	}
	logf("preview written (%d subtitle files): %s", len(out.Files), subsDir)
	return out, nil
}

func readTranscript(path string) (types.Transcript, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("read input: %w", err)
	}
	return types.DecodeTranscript(b)
}

func readBlockResults(path string) ([]types.BlockResult, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	rs, err := types.DecodeBlockResults(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// readBlock loads the segment output (a list, or a lone block) and picks the
// block with the given id.
func readBlock(path string, id int) (types.Block, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return types.Block{}, fmt.Errorf("read blocks: %w", err)
	}
	var list []types.Block
	if strings.HasPrefix(strings.TrimSpace(string(b)), "{") {
		var one types.Block
		if err := json.Unmarshal(b, &one); err != nil {
			return types.Block{}, fmt.Errorf("decode blocks: %w", err)
		}
		list = append(list, one)
	} else if err := json.Unmarshal(b, &list); err != nil {
		return types.Block{}, fmt.Errorf("decode blocks: %w", err)
	}
	for _, blk := range list {
		if blk.BlockID == id {
			return blk, nil
		}
	}
	return types.Block{}, fmt.Errorf("%s: no block with id %d", path, id)
}

func buildRunOutDir(outRoot, input string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", input, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}
