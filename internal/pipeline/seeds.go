package pipeline

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"golang.org/x/sync/errgroup"
)

// CSVLoader bulk-loads a CSV file into a table.
type CSVLoader interface {
	LoadCSV(ctx context.Context, table, path string) error
}

// DefaultSeedConcurrency bounds concurrent seed loads when limit <= 0.
const DefaultSeedConcurrency = 4

// LoadSeeds loads every seed concurrently with at most limit loads in
// flight. The first failure cancels the remaining loads.
func LoadSeeds(ctx context.Context, loader CSVLoader, seeds map[string]string, limit int) error {
	if limit <= 0 {
		limit = DefaultSeedConcurrency
	}

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)

	for _, table := range slices.Sorted(maps.Keys(seeds)) {
		path := seeds[table]
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			if err := loader.LoadCSV(egctx, table, path); err != nil {
				return fmt.Errorf("seed %s: %w", table, err)
			}
			return nil
		})
	}
	return eg.Wait()
}
