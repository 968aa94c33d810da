package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forPelevin/blockcut/internal/domain/blocks"
	"github.com/forPelevin/blockcut/internal/types"
	"github.com/forPelevin/blockcut/internal/usecase"
)

const outputSuffix = ".blocks.json"

// SegmentHandler splits each inbox transcript and writes
// <outbox>/<name>.blocks.json. The output appears atomically.
func SegmentHandler(uc usecase.Usecase, cfg blocks.Config, outbox string) EventHandler {
	return func(ctx context.Context, path string) error {
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read transcript: %w", err)
		}
		tr, err := types.DecodeTranscript(b)
		if err != nil {
			return err
		}
		res, err := uc.Segment(ctx, usecase.SegmentInput{Transcript: tr, Config: cfg})
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(res.Blocks, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal blocks: %w", err)
		}
		return writeAtomic(OutputPath(outbox, path), out)
	}
}

// OutputPath names the blocks file for an inbox transcript.
func OutputPath(outbox, input string) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(outbox, name+outputSuffix)
}

func writeAtomic(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".blocks-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
