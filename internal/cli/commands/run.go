package commands

import (
	"context"
	"fmt"
	"maps"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/leapstack-labs/sqlstage/internal/pipeline"
	"github.com/spf13/cobra"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Show            string
	Watch           bool
	SeedConcurrency int
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run <pipeline.yaml>",
		Short: "Run the stages of a pipeline file",
		Long: `Load the seeds of a pipeline file, register its stages in order and
print the result of the last stage (or the one named by --show).

With --watch the file is re-applied on every change. Only the first changed
stage and the stages after it are executed again.`,
		Example: `  # Run a pipeline and print its last stage
  sqlstage run pipeline.yaml

  # Print an intermediate stage as CSV
  sqlstage run pipeline.yaml --show rider_date -o csv

  # Re-run incrementally while editing
  sqlstage run pipeline.yaml --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Show, "show", "", "Stage whose result is printed (default: last stage)")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-apply the pipeline when the file changes")
	cmd.Flags().IntVar(&opts.SeedConcurrency, "seed-concurrency", pipeline.DefaultSeedConcurrency, "Maximum number of seeds loaded at once")

	return cmd
}

func runPipeline(cmd *cobra.Command, path string, opts *RunOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, err := pipeline.Load(path)
	if err != nil {
		return err
	}

	a := &pipelineApplier{cc: cc, runner: pipeline.NewRunner(cc.Cache, cc.Logger), opts: opts}
	if err := a.apply(ctx, f); err != nil {
		if !opts.Watch {
			return err
		}
		cc.Renderer.Error(err.Error())
	}
	if !opts.Watch {
		return nil
	}

	cc.Renderer.Muted(fmt.Sprintf("watching %s (Ctrl+C to stop)", path))
	return pipeline.Watch(ctx, path, cc.Logger, func(next *pipeline.File) {
		if err := a.apply(ctx, next); err != nil {
			cc.Renderer.Error(err.Error())
		}
	})
}

// pipelineApplier applies successive versions of a pipeline file to one
// connection. seeds holds the seed set last loaded completely; it is nil
// until a load succeeds and after any load fails.
type pipelineApplier struct {
	cc     *CommandContext
	runner *pipeline.Runner
	opts   *RunOptions
	seeds  map[string]string
}

// apply loads f's seeds when they differ from the loaded set, applies its
// stages and renders the selected stage.
func (a *pipelineApplier) apply(ctx context.Context, f *pipeline.File) error {
	cc, runner, opts := a.cc, a.runner, a.opts
	start := time.Now()

	if len(f.Seeds) > 0 && (a.seeds == nil || !maps.Equal(f.Seeds, a.seeds)) {
		// Seed tables change underneath every stage, even on a partial load.
		runner.Reset()
		if err := pipeline.LoadSeeds(ctx, cc.Adapter, f.Seeds, opts.SeedConcurrency); err != nil {
			a.seeds = nil
			return fmt.Errorf("failed to load seeds: %w", err)
		}
		a.seeds = maps.Clone(f.Seeds)
		cc.Renderer.Success(fmt.Sprintf("loaded %d seed(s): %s", len(f.Seeds), strings.Join(slices.Sorted(maps.Keys(f.Seeds)), ", ")))
	}

	executed, err := runner.Apply(ctx, f.Stages)
	if err != nil {
		return err
	}
	cc.Renderer.Success(fmt.Sprintf("%d of %d stage(s) executed in %s", len(executed), len(f.Stages), time.Since(start).Round(time.Millisecond)))

	show := opts.Show
	if show == "" {
		names := f.Names()
		if len(names) == 0 {
			return nil
		}
		show = names[len(names)-1]
	}
	res, err := runner.Cache().Result(show)
	if err != nil {
		return err
	}
	return cc.Renderer.Result(res)
}
