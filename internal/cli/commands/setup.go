package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/sqlstage/internal/cli/output"
	"github.com/leapstack-labs/sqlstage/internal/config"
	"github.com/leapstack-labs/sqlstage/internal/stage"
	"github.com/leapstack-labs/sqlstage/pkg/adapter"
	"github.com/spf13/cobra"

	// Register every bundled adapter.
	_ "github.com/leapstack-labs/sqlstage/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/sqlstage/pkg/adapters/mysql"
	_ "github.com/leapstack-labs/sqlstage/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/sqlstage/pkg/adapters/sqlite"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Adapter  adapter.Adapter
	Cache    *stage.Cache
	Renderer *output.Renderer
}

// NewCommandContext connects to the configured target and creates an empty
// stage cache on top of it. The returned cleanup function closes the
// connection and must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.FromContext(ctx)
	logger := config.GetLogger(ctx)

	adp, err := connect(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = adp.Close()
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Adapter:  adp,
		Cache:    stage.New(adp, logger),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.OutputFormat),
	}, cleanup, nil
}

func connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (adapter.Adapter, error) {
	adapterCfg := cfg.Target.AdapterConfig()

	adp, err := adapter.NewAdapter(adapterCfg, logger)
	if err != nil {
		return nil, err
	}
	if err := adp.Connect(ctx, adapterCfg); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", adapterCfg.Type, err)
	}

	logger.Debug("connected", slog.String("type", adapterCfg.Type), slog.String("database", adapterCfg.Database))
	return adp, nil
}
