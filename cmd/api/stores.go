package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mylagoscommunity/cart-service/internal/cart"
	"github.com/mylagoscommunity/cart-service/pkg/config"
	"github.com/mylagoscommunity/cart-service/pkg/db"
	"github.com/mylagoscommunity/cart-service/pkg/logger"
	"github.com/mylagoscommunity/cart-service/pkg/redis"
)

func newGuestRepository(cfg *config.Config, redisClient *redis.Client, dbClient *db.Client) (cart.GuestCartRepository, error) {
	switch cfg.GuestStore.NormalizedDriver() {
	case config.GuestStoreRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis guest store requires %s", config.EnvRedisURL)
		}
		return cart.NewRedisGuestRepository(redisClient, cfg.GuestStore.TTL)
	case config.GuestStorePostgres, config.GuestStoreSQLite:
		if dbClient == nil {
			return nil, fmt.Errorf("sql guest store requires a database connection")
		}
		return cart.NewGormGuestRepository(dbClient.DB())
	case config.GuestStoreMemory:
		return cart.NewMemoryGuestRepository(), nil
	}
	return nil, fmt.Errorf("unsupported guest store %q", cfg.GuestStore.Driver)
}

// newMigrationGuard shares migration state through redis when available so
// every instance sees the same one-shot transition.
func newMigrationGuard(cfg *config.Config, redisClient *redis.Client) (cart.MigrationGuard, error) {
	if redisClient == nil {
		return cart.NewMemoryMigrationGuard(), nil
	}
	return cart.NewRedisMigrationGuard(redisClient, migrationStateTTL(cfg))
}

// migrationStateTTL keeps guard keys as long as the session they belong to.
func migrationStateTTL(cfg *config.Config) time.Duration {
	return cfg.Session.TTL
}

// evictionHook releases per-session guard state held in process memory.
// Redis keys expire on their own.
func evictionHook(guard cart.MigrationGuard) func(sessionID string) {
	if mem, ok := guard.(*cart.MemoryMigrationGuard); ok {
		return mem.Forget
	}
	return nil
}

type guestPruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// guestPruneHook expires sql guest carts older than the guest cart ttl.
// The other stores expire on their own or die with the process.
func guestPruneHook(cfg *config.Config, guestRepo cart.GuestCartRepository, logg *logger.Logger) func(ctx context.Context, now time.Time) {
	pruner, ok := guestRepo.(guestPruner)
	if !ok || cfg.GuestStore.TTL <= 0 {
		return nil
	}
	return func(ctx context.Context, now time.Time) {
		pruned, err := pruner.Prune(ctx, now.Add(-cfg.GuestStore.TTL))
		if err != nil {
			logg.Error(ctx, "failed to prune guest carts", err)
			return
		}
		if pruned > 0 {
			logg.Debug(logg.WithField(ctx, "rows", pruned), "cart.guest.pruned")
		}
	}
}
