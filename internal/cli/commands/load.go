package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlstage/internal/pipeline"
	"github.com/spf13/cobra"
)

// NewLoadCommand creates the load command.
func NewLoadCommand() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "load <table>=<csv>...",
		Short: "Load CSV files into tables",
		Long: `Replace tables in the target database with the contents of CSV files.

Each argument names a table and the file to load into it. Existing tables are
dropped first.`,
		Example: `  sqlstage load trips=data/trips.csv riders=data/riders.csv --database local.duckdb`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seeds, err := parseLoadArgs(args)
			if err != nil {
				return err
			}

			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := pipeline.LoadSeeds(cmd.Context(), cc.Adapter, seeds, concurrency); err != nil {
				return err
			}
			cc.Renderer.Success(fmt.Sprintf("loaded %d table(s)", len(seeds)))
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", pipeline.DefaultSeedConcurrency, "Maximum number of files loaded at once")
	return cmd
}

func parseLoadArgs(args []string) (map[string]string, error) {
	seeds := make(map[string]string, len(args))
	for _, arg := range args {
		table, path, ok := strings.Cut(arg, "=")
		table, path = strings.TrimSpace(table), strings.TrimSpace(path)
		if !ok || table == "" || path == "" {
			return nil, fmt.Errorf("invalid argument %q (want <table>=<csv>)", arg)
		}
		if _, dup := seeds[table]; dup {
			return nil, fmt.Errorf("table %q given twice", table)
		}
		seeds[table] = path
	}
	return seeds, nil
}
