package pipeline

import (
	"context"
	"log/slog"
	"slices"

	"github.com/leapstack-labs/sqlstage/internal/stage"
)

// Runner applies stage lists to a cache, re-executing only what changed
// since the previous Apply.
type Runner struct {
	cache   *stage.Cache
	logger  *slog.Logger
	applied []Stage
}

// NewRunner creates a runner that registers stages in cache.
func NewRunner(cache *stage.Cache, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{cache: cache, logger: logger}
}

// Cache returns the cache stages are registered in.
func (r *Runner) Cache() *stage.Cache {
	return r.cache
}

// Apply brings the cache in line with stages. Stages before the first one
// that differs from the previous Apply (and is still cached) are kept;
// everything from there on is dropped and registered again in order.
// It returns the names that were executed, which on error ends with the
// stage that failed.
func (r *Runner) Apply(ctx context.Context, stages []Stage) ([]string, error) {
	keep := r.commonPrefix(stages)
	cached := r.cache.Names()

	if keep < len(cached) {
		r.logger.Debug("dropping stages", slog.Any("stages", cached[keep:]))
		if err := r.cache.Drop(cached[keep]); err != nil {
			return nil, err
		}
	}
	r.applied = slices.Clone(stages[:keep])

	var executed []string
	for _, s := range stages[keep:] {
		executed = append(executed, s.Name)
		if err := r.cache.Register(ctx, s.Name, s.SQL, s.OrderBy...); err != nil {
			return executed, err
		}
		r.applied = append(r.applied, s)
	}

	r.logger.Info("pipeline applied",
		slog.Int("stages", len(stages)),
		slog.Int("reused", keep),
		slog.Int("executed", len(executed)))
	return executed, nil
}

// commonPrefix returns how many leading stages match both the previous
// Apply and the cache's current order.
func (r *Runner) commonPrefix(stages []Stage) int {
	cached := r.cache.Names()
	n := 0
	for n < len(stages) && n < len(r.applied) && n < len(cached) {
		if !stages[n].Equal(r.applied[n]) || cached[n] != stages[n].Name {
			break
		}
		n++
	}
	return n
}

// Reset forgets every applied stage and empties the cache, so the next
// Apply executes all stages.
func (r *Runner) Reset() {
	r.cache.Reset()
	r.applied = nil
}
