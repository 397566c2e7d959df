package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/mylagoscommunity/cart-service/internal/repo"
	"github.com/mylagoscommunity/cart-service/pkg/db/models"
	"github.com/mylagoscommunity/cart-service/pkg/redis"
)

// MemoryGuestRepository keeps guest carts in process memory.
type MemoryGuestRepository struct {
	mu    sync.Mutex
	carts map[string][]GuestEntry
}

// NewMemoryGuestRepository builds an empty in-memory repository.
func NewMemoryGuestRepository() *MemoryGuestRepository {
	return &MemoryGuestRepository{carts: map[string][]GuestEntry{}}
}

func (r *MemoryGuestRepository) Load(_ context.Context, sessionID string) ([]GuestEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneEntries(r.carts[sessionID]), nil
}

func (r *MemoryGuestRepository) Save(_ context.Context, sessionID string, entries []GuestEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[sessionID] = cloneEntries(entries)
	return nil
}

func (r *MemoryGuestRepository) Clear(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, sessionID)
	return nil
}

func cloneEntries(entries []GuestEntry) []GuestEntry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]GuestEntry, len(entries))
	copy(out, entries)
	return out
}

// guestCartStore is the slice of the redis client the guest repository uses.
type guestCartStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	GuestCartKey(sessionID string) string
}

// RedisGuestRepository stores each guest cart as one JSON document.
type RedisGuestRepository struct {
	store guestCartStore
	ttl   time.Duration
}

// NewRedisGuestRepository wires the repository over the redis client. The
// ttl is refreshed on every save.
func NewRedisGuestRepository(store guestCartStore, ttl time.Duration) (*RedisGuestRepository, error) {
	if store == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisGuestRepository{store: store, ttl: ttl}, nil
}

func (r *RedisGuestRepository) Load(ctx context.Context, sessionID string) ([]GuestEntry, error) {
	raw, err := r.store.Get(ctx, r.store.GuestCartKey(sessionID))
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load guest cart: %w", err)
	}
	return decodeGuestEntries(raw), nil
}

func (r *RedisGuestRepository) Save(ctx context.Context, sessionID string, entries []GuestEntry) error {
	if entries == nil {
		entries = []GuestEntry{}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode guest cart: %w", err)
	}
	if err := r.store.Set(ctx, r.store.GuestCartKey(sessionID), string(payload), r.ttl); err != nil {
		return fmt.Errorf("save guest cart: %w", err)
	}
	return nil
}

func (r *RedisGuestRepository) Clear(ctx context.Context, sessionID string) error {
	if err := r.store.Del(ctx, r.store.GuestCartKey(sessionID)); err != nil {
		return fmt.Errorf("clear guest cart: %w", err)
	}
	return nil
}

// decodeGuestEntries treats anything that is not a JSON array of entries as
// an empty cart.
func decodeGuestEntries(raw string) []GuestEntry {
	if raw == "" {
		return nil
	}
	var entries []GuestEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil
	}
	return entries
}

// GormGuestRepository stores guest carts as one row per position.
type GormGuestRepository struct {
	repo.Base
}

// NewGormGuestRepository wires the repository over a GORM connection.
func NewGormGuestRepository(db *gorm.DB) (*GormGuestRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db required")
	}
	return &GormGuestRepository{Base: repo.NewBase(db)}, nil
}

func (r *GormGuestRepository) Load(ctx context.Context, sessionID string) ([]GuestEntry, error) {
	var rows []models.GuestCartEntry
	if err := r.DB(ctx).
		Where("session_id = ?", sessionID).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load guest cart: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	entries := make([]GuestEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, GuestEntry{
			ProductID: row.ProductID,
			Product:   productFromSnapshot(row.Product),
			Quantity:  row.Quantity,
		})
	}
	return entries, nil
}

// Save replaces every row of the session in one transaction so positions
// stay dense.
func (r *GormGuestRepository) Save(ctx context.Context, sessionID string, entries []GuestEntry) error {
	return r.InTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.GuestCartEntry{}).Error; err != nil {
			return fmt.Errorf("reset guest cart: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}
		rows := make([]models.GuestCartEntry, 0, len(entries))
		for i, entry := range entries {
			rows = append(rows, models.GuestCartEntry{
				SessionID: sessionID,
				Position:  i,
				ProductID: entry.ProductID,
				Product:   snapshotFromProduct(entry.Product),
				Quantity:  entry.Quantity,
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("save guest cart: %w", err)
		}
		return nil
	})
}

func (r *GormGuestRepository) Clear(ctx context.Context, sessionID string) error {
	if err := r.DB(ctx).
		Where("session_id = ?", sessionID).
		Delete(&models.GuestCartEntry{}).Error; err != nil {
		return fmt.Errorf("clear guest cart: %w", err)
	}
	return nil
}

// Prune deletes rows last written before cutoff and reports how many went.
// Save rewrites every row of a session, so a session expires as a whole.
func (r *GormGuestRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.DB(ctx).
		Where("updated_at < ?", cutoff).
		Delete(&models.GuestCartEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("prune guest carts: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func snapshotFromProduct(p Product) models.GuestProductSnapshot {
	return models.GuestProductSnapshot{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Image:    p.Image,
		Category: p.Category,
		Quantity: p.Quantity,
	}
}

func productFromSnapshot(s models.GuestProductSnapshot) Product {
	return Product{
		ID:       s.ID,
		Name:     s.Name,
		Price:    s.Price,
		Image:    s.Image,
		Category: s.Category,
		Quantity: s.Quantity,
	}
}
