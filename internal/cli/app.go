package cli

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/blockcut/internal/config"
	"github.com/forPelevin/blockcut/internal/domain/templates"
	"github.com/forPelevin/blockcut/internal/logger"
	"github.com/forPelevin/blockcut/internal/ports"
	"github.com/forPelevin/blockcut/internal/ports/adapters/sqlite"
)

// app is the per-command environment: config resolved from file, env and
// flags, in that order.
type app struct {
	cfg config.Config
	log logger.Logger
}

func loadApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.ApplyEnv(os.Getenv)
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: logger.NewWriter(cmd.ErrOrStderr(), cfg.Logging.Level)}, nil
}

// openRuns returns a nil store when no database is configured.
func (a *app) openRuns() (ports.RunStore, func(), error) {
	if a.cfg.Storage.Database == "" {
		return nil, func() {}, nil
	}
	st, err := sqlite.Open(a.cfg.Storage.Database)
	if err != nil {
		return nil, nil, err
	}
	return st, func() { _ = st.Close() }, nil
}

func (a *app) catalog() (*templates.Catalog, error) {
	if a.cfg.Templates.CatalogFile != "" {
		return templates.LoadFile(a.cfg.Templates.CatalogFile)
	}
	return templates.Builtin()
}

func (a *app) rng() *rand.Rand {
	seed := a.cfg.Templates.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
