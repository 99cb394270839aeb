// Package stage implements the incremental query cache behind sqlstage.
//
// Stages are named SQL fragments registered in order. Registering a stage
// executes its fragment underneath a WITH clause that defines every earlier
// stage, and caches the result under the stage's name. Dependencies are
// positional: re-registering (or dropping) a stage evicts it and every stage
// registered after it.
package stage

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/leapstack-labs/sqlstage/pkg/adapter"
	"github.com/leapstack-labs/sqlstage/pkg/core"
)

// Executor is the store capability the cache runs statements against.
type Executor = adapter.Executor

// Cache is an ordered registry of stages and their cached results.
//
// The fragment map, the result map and the order list always hold the same
// set of names. All mutations happen under one write lock that is held
// across the store round trip, so a concurrent reader never observes a
// half-applied truncate or commit.
type Cache struct {
	mu        sync.RWMutex
	exec      Executor
	logger    *slog.Logger
	id        string
	fragments map[string]string
	results   map[string]*core.Result
	order     []string
}

// New creates an empty cache that executes stages with exec.
// If logger is nil, a discard logger is used.
func New(exec Executor, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	id := uuid.NewString()
	return &Cache{
		exec:      exec,
		logger:    logger.With(slog.String("cache_id", id)),
		id:        id,
		fragments: make(map[string]string),
		results:   make(map[string]*core.Result),
	}
}

// ID returns the unique identifier of this cache instance.
func (c *Cache) ID() string {
	return c.id
}

// ComposePrefix returns the WITH clause defining every registered stage as
// a named subquery, in registration order. It returns "" when no stage is
// registered.
func (c *Cache) ComposePrefix() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prefixLocked()
}

func (c *Cache) prefixLocked() string {
	if len(c.order) == 0 {
		return ""
	}
	defs := make([]string, len(c.order))
	for i, name := range c.order {
		defs[i] = fmt.Sprintf("%s AS (%s)", name, c.fragments[name])
	}
	return "WITH\n" + strings.Join(defs, ",\n")
}

// composeStatement appends fragment and the optional ORDER BY to prefix.
func composeStatement(prefix, fragment string, orderBy []string) string {
	stmt := prefix + "\n" + fragment
	if len(orderBy) > 0 {
		stmt += "\nORDER BY " + strings.Join(orderBy, ",")
	}
	return stmt
}

// Register executes fragment on top of the current prefix and caches the
// result under name.
//
// If name is already registered, it and every later stage are evicted
// before the statement is composed. The eviction is not undone when the new
// statement fails: the stage and its dependents stay absent until registered
// again.
func (c *Cache) Register(ctx context.Context, name, fragment string, orderBy ...string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyStageName
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := slices.Index(c.order, name); i >= 0 {
		c.truncateLocked(i)
	}

	stmt := composeStatement(c.prefixLocked(), fragment, orderBy)
	c.logger.Debug("executing stage", slog.String("stage", name), slog.String("sql", stmt))

	res, err := c.exec.Execute(ctx, stmt)
	if err != nil {
		c.logger.Warn("stage execution failed",
			slog.String("stage", name),
			slog.String("error", err.Error()),
			slog.String("sql", stmt))
		return &StageExecutionError{Stage: name, SQL: stmt, Err: err}
	}
	if res == nil {
		res = &core.Result{}
	}

	c.fragments[name] = fragment
	c.results[name] = res
	c.order = append(c.order, name)

	c.logger.Debug("stage cached",
		slog.String("stage", name),
		slog.Int("rows", res.Len()),
		slog.Int("position", len(c.order)-1))
	return nil
}

// Query executes fragment on top of the current prefix without registering
// it. The registry is never modified.
func (c *Cache) Query(ctx context.Context, fragment string, orderBy ...string) (*core.Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stmt := composeStatement(c.prefixLocked(), fragment, orderBy)
	c.logger.Debug("executing query", slog.String("sql", stmt))

	res, err := c.exec.Execute(ctx, stmt)
	if err != nil {
		c.logger.Warn("query failed", slog.String("error", err.Error()), slog.String("sql", stmt))
		return nil, &StageExecutionError{SQL: stmt, Err: err}
	}
	if res == nil {
		res = &core.Result{}
	}
	return res, nil
}

// Result returns the cached result for name. Callers must not modify it.
// A stage whose statement produced no result set has an empty result.
func (c *Cache) Result(name string) (*core.Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	res, ok := c.results[name]
	if !ok {
		return nil, c.unknownLocked(name)
	}
	return res, nil
}

// Fragment returns the SQL fragment registered under name.
func (c *Cache) Fragment(name string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	fragment, ok := c.fragments[name]
	if !ok {
		return "", c.unknownLocked(name)
	}
	return fragment, nil
}

// Names returns the registered stage names in registration order, or nil
// when the cache is empty.
func (c *Cache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.order)
}

// Len returns the number of cached stages.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Fragments returns a copy of the name → fragment map.
func (c *Cache) Fragments() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.fragments)
}

// Results returns a copy of the name → result map. The results themselves
// are shared with the cache and must not be modified.
func (c *Cache) Results() map[string]*core.Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.results)
}

// Drop evicts name and every stage registered after it.
func (c *Cache) Drop(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := slices.Index(c.order, name)
	if i < 0 {
		return c.unknownLocked(name)
	}
	c.truncateLocked(i)
	return nil
}

// Reset evicts every stage.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.truncateLocked(0)
}

// truncateLocked removes the stages at order index i through the end.
func (c *Cache) truncateLocked(i int) {
	evicted := c.order[i:]
	if len(evicted) == 0 {
		return
	}
	for _, name := range evicted {
		delete(c.fragments, name)
		delete(c.results, name)
	}
	c.logger.Debug("evicted stages", slog.Any("stages", slices.Clone(evicted)))
	if i == 0 {
		// An empty cache always has a nil order, as after New.
		c.order = nil
		return
	}
	c.order = slices.Clip(c.order[:i])
}

func (c *Cache) unknownLocked(name string) *UnknownStageError {
	return &UnknownStageError{Name: name, Available: slices.Clone(c.order)}
}
