package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forPelevin/blockcut/internal/domain/templates"
	"github.com/forPelevin/blockcut/internal/logger"
	"github.com/forPelevin/blockcut/internal/pipeline"
	"github.com/forPelevin/blockcut/internal/server"
	"github.com/forPelevin/blockcut/internal/usecase"
	"github.com/forPelevin/blockcut/internal/watcher"
)

func newSegmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segment <transcript.json>",
		Short: "Split a transcript into overlapping blocks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			if f.Changed("strategy") {
				a.cfg.Split.Strategy, _ = f.GetString("strategy")
			}
			if f.Changed("max-blocks") {
				a.cfg.Split.MaxBlocks, _ = f.GetInt("max-blocks")
			}
			if f.Changed("min-block") {
				a.cfg.Split.MinBlockDuration, _ = f.GetFloat64("min-block")
			}
			if f.Changed("overlap") {
				a.cfg.Split.OverlapSeconds, _ = f.GetFloat64("overlap")
			}
			if f.Changed("min-split") {
				a.cfg.Split.MinVideoForSplit, _ = f.GetFloat64("min-split")
			}
			split, err := a.cfg.SplitConfig()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return runPipeline(cmd, a, pipeline.Config{
				Op:     pipeline.OpSegment,
				Inputs: args,
				Split:  split,
			})
		},
	}
	addOutFlag(cmd)
	cmd.Flags().String("strategy", "", "Split strategy: uncapped or capped")
	cmd.Flags().Int("max-blocks", 0, "Block cap for the capped strategy")
	cmd.Flags().Float64("min-block", 0, "Minimum block duration in seconds")
	cmd.Flags().Float64("overlap", 0, "Overlap between neighbouring blocks in seconds")
	cmd.Flags().Float64("min-split", 0, "Videos shorter than this many seconds stay whole")
	return cmd
}

func newReassembleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reassemble <results.json>...",
		Short: "Merge per-block shorts into one deduplicated list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			if f.Changed("strategy") {
				s, _ := f.GetString("strategy")
				if !strings.EqualFold(s, a.cfg.Dedup.Strategy) {
					a.cfg.Dedup.Frame = ""
				}
				a.cfg.Dedup.Strategy = s
			}
			if f.Changed("frame") {
				a.cfg.Dedup.Frame, _ = f.GetString("frame")
			}
			if f.Changed("threshold") {
				a.cfg.Dedup.OverlapThreshold, _ = f.GetFloat64("threshold")
			}
			if f.Changed("no-resort") {
				noResort, _ := f.GetBool("no-resort")
				resort := !noResort
				a.cfg.Dedup.Resort = &resort
			}
			opts, err := a.cfg.DedupOptions()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return runPipeline(cmd, a, pipeline.Config{
				Op:     pipeline.OpReassemble,
				Inputs: args,
				Dedup:  opts,
			})
		},
	}
	addOutFlag(cmd)
	cmd.Flags().String("strategy", "", "Dedup strategy: overlap or zones")
	cmd.Flags().String("frame", "", "Time frame of short start/end: absolute or block_relative")
	cmd.Flags().Float64("threshold", 0, "Overlap percent in (0, 100] above which shorts count as duplicates")
	cmd.Flags().Bool("no-resort", false, "Keep overlap output in sweep order")
	return cmd
}

func newParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <agent-output>",
		Short: "Extract JSON from a raw agent response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			blocksPath, _ := cmd.Flags().GetString("blocks")
			blockID, _ := cmd.Flags().GetInt("block-id")
			return runPipeline(cmd, a, pipeline.Config{
				Op:      pipeline.OpParse,
				Inputs:  args,
				Blocks:  blocksPath,
				BlockID: blockID,
			})
		},
	}
	addOutFlag(cmd)
	cmd.Flags().String("blocks", "", "Segment output the agent worked from; attaches block metadata to the parsed shorts")
	cmd.Flags().Int("block-id", 1, "Block within --blocks the response belongs to")
	return cmd
}

func newPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <shorts.json>",
		Short: "Render ASS subtitle previews for merged shorts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			absolute, _ := cmd.Flags().GetBool("absolute")
			return runPipeline(cmd, a, pipeline.Config{
				Op:        pipeline.OpPreview,
				Inputs:    args,
				Catalog:   cat,
				Template:  templateFilter(cmd),
				Rand:      a.rng(),
				ClipLocal: !absolute,
			})
		},
	}
	cmd.Flags().String("out", "out", "Output directory")
	addTemplateFlags(cmd)
	cmd.Flags().Bool("absolute", false, "Keep source video times instead of clip-local times")
	return cmd
}

func newTemplateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Pick a visual template, or list the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			if list, _ := cmd.Flags().GetBool("list"); list {
				printCatalog(cmd, cat)
				return nil
			}
			sel, err := cat.Select(a.rng(), templateFilter(cmd))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sel)
		},
	}
	addTemplateFlags(cmd)
	cmd.Flags().Bool("list", false, "List templates instead of selecting one")
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the segment, reassemble and parse steps over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
			}
			split, err := a.cfg.SplitConfig()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			dedup, err := a.cfg.DedupOptions()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			runs, closeRuns, err := a.openRuns()
			if err != nil {
				return err
			}
			defer closeRuns()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(server.Deps{
				Usecase:     usecase.New(usecase.Deps{Runs: runs, Logf: logger.Logf(a.log)}),
				Split:       split,
				Dedup:       dedup,
				Catalog:     cat,
				Rand:        a.rng(),
				Log:         a.log,
				BodyLimitMB: a.cfg.Server.BodyLimitMB,
				AccessLog:   a.cfg.Logging.Level == "debug",
			})
			return srv.Listen(ctx, a.cfg.Server.Addr)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (overrides config and BLOCKCUT_ADDR)")
	return cmd
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Segment transcripts dropped into an inbox directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			if f.Changed("inbox") {
				a.cfg.Watch.Inbox, _ = f.GetString("inbox")
			}
			if f.Changed("outbox") {
				a.cfg.Watch.Outbox, _ = f.GetString("outbox")
			}
			if f.Changed("concurrency") {
				a.cfg.Watch.MaxConcurrent, _ = f.GetInt("concurrency")
			}
			split, err := a.cfg.SplitConfig()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if err := os.MkdirAll(a.cfg.Watch.Inbox, 0o755); err != nil {
				return err
			}
			runs, closeRuns, err := a.openRuns()
			if err != nil {
				return err
			}
			defer closeRuns()

			uc := usecase.New(usecase.Deps{Runs: runs, Logf: logger.Logf(a.log)})
			w, err := watcher.New(a.cfg.Watch.Inbox, watcher.SegmentHandler(uc, split, a.cfg.Watch.Outbox), a.log, a.cfg.Watch.MaxConcurrent)
			if err != nil {
				return err
			}
			defer w.Stop()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := w.Start(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("inbox", "", "Directory to watch for transcripts")
	cmd.Flags().String("outbox", "", "Directory for <name>.blocks.json files")
	cmd.Flags().Int("concurrency", 0, "Transcripts processed at once")
	return cmd
}

func addOutFlag(cmd *cobra.Command) {
	cmd.Flags().String("out", "", "Output directory (default: print JSON to stdout)")
}

func addTemplateFlags(cmd *cobra.Command) {
	cmd.Flags().String("key", "", "Template key; wins over --category")
	cmd.Flags().String("category", "", "Template category, e.g. CLASSIC")
	cmd.Flags().String("genre", "", "Preferred genre among the matching templates")
}

func templateFilter(cmd *cobra.Command) templates.Filter {
	key, _ := cmd.Flags().GetString("key")
	category, _ := cmd.Flags().GetString("category")
	genre, _ := cmd.Flags().GetString("genre")
	return templates.Filter{Key: key, Category: category, Genre: genre}
}

func runPipeline(cmd *cobra.Command, a *app, cfg pipeline.Config) error {
	outDir, _ := cmd.Flags().GetString("out")
	if outDir != "" {
		abs, err := filepath.Abs(outDir)
		if err != nil {
			return err
		}
		outDir = abs
	}
	cfg.OutDir = outDir
	cfg.Stdout = cmd.OutOrStdout()
	cfg.Logf = logger.Logf(a.log)

	runs, closeRuns, err := a.openRuns()
	if err != nil {
		return err
	}
	defer closeRuns()
	cfg.Runs = runs

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	out, err := pipeline.Run(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	if out.RunDir == "" {
		return nil
	}
	rows := []kv{{"run", out.RunID}, {"dir", out.RunDir}}
	for _, f := range out.Files {
		rows = append(rows, kv{"file", f})
	}
	printSummary(cmd.OutOrStdout(), fmt.Sprintf("%s done", cfg.Op), rows)
	return nil
}

func printCatalog(cmd *cobra.Command, cat *templates.Catalog) {
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, headStyle.Render(fmt.Sprintf("%d templates (catalog v%d)", cat.Len(), cat.Version())))
	for _, k := range cat.Keys() {
		t, _ := cat.Get(k)
		fmt.Fprintf(w, "  %s %s %s\n",
			keyStyle.Width(24).Render(k),
			valueStyle.Render(t.Name),
			tagStyle.Render("["+t.Category+"] "+strings.Join(t.BestFor, ", ")))
	}
}
