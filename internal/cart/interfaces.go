package cart

import (
	"context"

	"github.com/mylagoscommunity/cart-service/pkg/enums"
)

// ProductCatalog resolves product snapshots by id.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
}

// RemoteCartStore persists cart lines for authenticated users.
type RemoteCartStore interface {
	ListCartItems(ctx context.Context, userID int64) ([]RemoteCartItem, error)
	AddCartItem(ctx context.Context, input AddCartItemInput) (RemoteCartItem, error)
	UpdateCartItem(ctx context.Context, lineID int64, quantity int) (RemoteCartItem, error)
	DeleteCartItem(ctx context.Context, lineID int64) error
}

// GuestCartRepository is the durable per-session guest cart. Load treats
// missing or malformed data as an empty cart.
type GuestCartRepository interface {
	Load(ctx context.Context, sessionID string) ([]GuestEntry, error)
	Save(ctx context.Context, sessionID string, entries []GuestEntry) error
	Clear(ctx context.Context, sessionID string) error
}

// MigrationGuard owns the per-session not_migrated -> migrating -> migrated
// state machine. Begin reports whether the caller won the transition out of
// not_migrated.
type MigrationGuard interface {
	Begin(ctx context.Context, sessionID string) (bool, error)
	Complete(ctx context.Context, sessionID string) error
	State(ctx context.Context, sessionID string) (enums.MigrationState, error)
}

// Recorder receives cart telemetry. Implementations must be nil-safe.
type Recorder interface {
	ObserveLoad(source enums.LineSource, seconds float64)
	IncLoadFallback()
	IncLineSkipped(reason string)
	IncRemoteFailure(op string)
	IncMigration(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveLoad(enums.LineSource, float64) {}
func (nopRecorder) IncLoadFallback() {}
func (nopRecorder) IncLineSkipped(string) {}
func (nopRecorder) IncRemoteFailure(string) {}
func (nopRecorder) IncMigration(string) {}
