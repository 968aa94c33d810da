package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/forPelevin/blockcut/internal/config"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "blockcut",
		Short:        "Split long transcripts into blocks and merge the shorts found in them",
		SilenceUsage: true,
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.PersistentFlags().String("config", config.DefaultPath, "Config file (YAML); defaults apply when missing")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newSegmentCmd(),
		newReassembleCmd(),
		newParseCmd(),
		newTemplateCmd(),
		newPreviewCmd(),
		newServeCmd(),
		newWatchCmd(),
	)
	return root
}
