package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mylagoscommunity/cart-service/pkg/enums"
	"github.com/mylagoscommunity/cart-service/pkg/redis"
)

// MemoryMigrationGuard keeps migration states in process memory.
type MemoryMigrationGuard struct {
	mu     sync.Mutex
	states map[string]enums.MigrationState
}

// NewMemoryMigrationGuard builds an empty in-memory guard.
func NewMemoryMigrationGuard() *MemoryMigrationGuard {
	return &MemoryMigrationGuard{states: map[string]enums.MigrationState{}}
}

func (g *MemoryMigrationGuard) Begin(_ context.Context, sessionID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if state, ok := g.states[sessionID]; ok && state != enums.MigrationStateNotMigrated {
		return false, nil
	}
	g.states[sessionID] = enums.MigrationStateMigrating
	return true, nil
}

func (g *MemoryMigrationGuard) Complete(_ context.Context, sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.states[sessionID] = enums.MigrationStateMigrated
	return nil
}

func (g *MemoryMigrationGuard) State(_ context.Context, sessionID string) (enums.MigrationState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if state, ok := g.states[sessionID]; ok {
		return state, nil
	}
	return enums.MigrationStateNotMigrated, nil
}

// Forget drops the session's state. The registry calls it on eviction so the
// map does not outgrow the live sessions; a returning session starts over
// at not_migrated.
func (g *MemoryMigrationGuard) Forget(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.states, sessionID)
}

// migrationStore is the slice of the redis client the guard relies on.
type migrationStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	MigrationKey(sessionID string) string
}

// RedisMigrationGuard shares migration state across service instances.
// An absent key means not_migrated.
type RedisMigrationGuard struct {
	store migrationStore
	ttl   time.Duration
}

// NewRedisMigrationGuard wires a guard over the redis client.
func NewRedisMigrationGuard(store migrationStore, ttl time.Duration) (*RedisMigrationGuard, error) {
	if store == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisMigrationGuard{store: store, ttl: ttl}, nil
}

func (g *RedisMigrationGuard) Begin(ctx context.Context, sessionID string) (bool, error) {
	ok, err := g.store.SetNX(ctx, g.store.MigrationKey(sessionID), enums.MigrationStateMigrating.String(), g.ttl)
	if err != nil {
		return false, fmt.Errorf("begin migration: %w", err)
	}
	return ok, nil
}

func (g *RedisMigrationGuard) Complete(ctx context.Context, sessionID string) error {
	if err := g.store.Set(ctx, g.store.MigrationKey(sessionID), enums.MigrationStateMigrated.String(), g.ttl); err != nil {
		return fmt.Errorf("complete migration: %w", err)
	}
	return nil
}

func (g *RedisMigrationGuard) State(ctx context.Context, sessionID string) (enums.MigrationState, error) {
	raw, err := g.store.Get(ctx, g.store.MigrationKey(sessionID))
	if errors.Is(err, redis.Nil) {
		return enums.MigrationStateNotMigrated, nil
	}
	if err != nil {
		return "", fmt.Errorf("read migration state: %w", err)
	}
	state, err := enums.ParseMigrationState(raw)
	if err != nil {
		return "", err
	}
	return state, nil
}
