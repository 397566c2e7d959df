package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mylagoscommunity/cart-service/pkg/logger"
)

// EngineFactory builds the engine for a newly seen session.
type EngineFactory func(sessionID string) (*Engine, error)

type registryEntry struct {
	engine   *Engine
	lastSeen time.Time
}

// Registry keeps one engine per browser session and evicts idle ones.
type Registry struct {
	factory    EngineFactory
	idleTTL    time.Duration
	sweepEvery time.Duration
	logg       *logger.Logger
	now        func() time.Time
	onEvict    func(sessionID string)
	afterSweep func(ctx context.Context, now time.Time)

	mu      sync.Mutex
	engines map[string]*registryEntry
}

// RegistryParams configures a Registry.
type RegistryParams struct {
	Factory    EngineFactory
	IdleTTL    time.Duration
	SweepEvery time.Duration
	Logger     *logger.Logger

	// OnEvict runs for every session dropped by Sweep, outside the lock.
	OnEvict func(sessionID string)

	// AfterSweep runs on every Run tick once the sweep is done.
	AfterSweep func(ctx context.Context, now time.Time)
}

// NewRegistry validates params and builds an empty registry.
func NewRegistry(params RegistryParams) (*Registry, error) {
	if params.Factory == nil {
		return nil, fmt.Errorf("engine factory required")
	}
	if params.IdleTTL <= 0 {
		return nil, fmt.Errorf("idle ttl must be positive")
	}
	sweepEvery := params.SweepEvery
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Registry{
		factory:    params.Factory,
		idleTTL:    params.IdleTTL,
		sweepEvery: sweepEvery,
		logg:       logg,
		now:        time.Now,
		onEvict:    params.OnEvict,
		afterSweep: params.AfterSweep,
		engines:    map[string]*registryEntry{},
	}, nil
}

// Acquire returns the session's engine, mounting it on first sight and
// applying identity changes on later calls.
func (r *Registry) Acquire(ctx context.Context, sessionID string, identity Identity) (*Engine, error) {
	r.mu.Lock()
	entry, ok := r.engines[sessionID]
	if !ok {
		engine, err := r.factory(sessionID)
		if err != nil {
			r.mu.Unlock()
			return nil, fmt.Errorf("build cart engine: %w", err)
		}
		entry = &registryEntry{engine: engine}
		r.engines[sessionID] = entry
	}
	entry.lastSeen = r.now()
	engine := entry.engine
	r.mu.Unlock()

	if !ok {
		r.logg.Debug(r.logg.WithSessionID(ctx, sessionID), "cart.registry.engine_created")
	}
	// SetIdentity is a no-op when the identity is unchanged.
	engine.SetIdentity(ctx, identity)
	return engine, nil
}

// Len reports how many sessions are tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}

// Sweep drops engines idle for longer than the idle ttl and returns how
// many were evicted.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	var evicted []string
	for sessionID, entry := range r.engines {
		if now.Sub(entry.lastSeen) > r.idleTTL {
			delete(r.engines, sessionID)
			evicted = append(evicted, sessionID)
		}
	}
	r.mu.Unlock()

	if r.onEvict != nil {
		for _, sessionID := range evicted {
			r.onEvict(sessionID)
		}
	}
	return len(evicted)
}

// Run sweeps on a ticker until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if evicted := r.Sweep(now); evicted > 0 {
				r.logg.Debug(r.logg.WithField(ctx, "evicted", evicted), "cart.registry.swept")
			}
			if r.afterSweep != nil {
				r.afterSweep(ctx, now)
			}
		}
	}
}
