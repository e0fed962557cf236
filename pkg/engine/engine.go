package engine

import (
	"context"
)

// Engine bundles the move generator with a result cache. It is safe for
// concurrent use; rollouts bypass the cache and run on their own workers.
type Engine struct {
	cache    *MoveCache
	defaults RolloutOptions
}

// EngineOptions configures the engine
type EngineOptions struct {
	CacheSize int            // Move cache size (0 = default, negative = disabled)
	Rollout   RolloutOptions // Defaults for fields left zero in rollout requests
}

// NewEngine creates a new engine with the given options
func NewEngine(opts EngineOptions) *Engine {
	e := &Engine{defaults: opts.Rollout}
	switch {
	case opts.CacheSize == 0:
		e.cache = NewMoveCache(DefaultCacheSize)
	case opts.CacheSize > 0:
		e.cache = NewMoveCache(opts.CacheSize)
	}
	if e.defaults.Trials <= 0 {
		e.defaults.Trials = DefaultTrials
	}
	return e
}

// LegalPositions returns side's legal resulting positions, consulting the
// cache.
func (e *Engine) LegalPositions(side Side, p Position, d Dice) []Position {
	work := p.view(side)

	var results []Position
	if e.cache != nil {
		if cached, ok := e.cache.Lookup(work, d); ok {
			results = cached
		} else {
			results = LegalPositions(work, d)
			e.cache.Store(work, d, results)
		}
	} else {
		results = LegalPositions(work, d)
	}

	if side == X {
		for i := range results {
			results[i] = results[i].Flip()
		}
	}
	return results
}

// Rollout runs a rollout, filling zero option fields from the engine's
// defaults.
func (e *Engine) Rollout(ctx context.Context, start Position, opts RolloutOptions, callback ProgressCallback) (*RolloutResult, error) {
	if opts.Trials <= 0 {
		opts.Trials = e.defaults.Trials
	}
	if opts.Workers <= 0 {
		opts.Workers = e.defaults.Workers
	}
	if opts.Seed == 0 {
		opts.Seed = e.defaults.Seed
	}
	return RolloutWithProgress(ctx, start, opts, callback)
}

// CacheStats reports cache counters; ok is false when caching is disabled.
func (e *Engine) CacheStats() (stats CacheStats, ok bool) {
	if e.cache == nil {
		return CacheStats{}, false
	}
	return e.cache.Stats(), true
}
