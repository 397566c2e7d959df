package cart

import (
	"github.com/mylagoscommunity/cart-service/pkg/enums"
)

// Product is the catalog snapshot a cart line displays.
type Product struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Price    int64    `json:"price"`
	Image    []string `json:"image"`
	Category string   `json:"category"`
	Quantity int      `json:"quantity"`
}

// CartLine is one distinct product in the cart.
type CartLine struct {
	Ref      LineRef
	Product  Product
	Quantity int
}

// LineID renders the wire identifier of the line.
func (l CartLine) LineID() int64 {
	if l.Ref == nil {
		return 0
	}
	return l.Ref.LineID()
}

// Subtotal is price times quantity.
func (l CartLine) Subtotal() int64 {
	return l.Product.Price * int64(l.Quantity)
}

// GuestEntry is the persisted shape of a guest cart row.
type GuestEntry struct {
	ProductID int64   `json:"productId"`
	Product   Product `json:"product"`
	Quantity  int     `json:"quantity"`
}

// RemoteCartItem is a cart record owned by the remote store.
type RemoteCartItem struct {
	ID        int64 `json:"id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// AddCartItemInput is the payload of a remote add.
type AddCartItemInput struct {
	UserID    int64 `json:"user_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// Identity is the externally supplied authentication state of a session.
type Identity struct {
	UserID        int64
	Authenticated bool
}

// Guest is the unauthenticated identity.
func Guest() Identity {
	return Identity{}
}

// Authenticated builds an identity for the given remote user.
func Authenticated(userID int64) Identity {
	return Identity{UserID: userID, Authenticated: userID > 0}
}

// Snapshot is a consistent read of the cart.
type Snapshot struct {
	Lines          []CartLine
	IsLoading      bool
	CartCount      int
	Total          int64
	Identity       Identity
	MigrationState enums.MigrationState
}

// CartCount sums line quantities.
func CartCount(lines []CartLine) int {
	count := 0
	for _, line := range lines {
		count += line.Quantity
	}
	return count
}

// Total sums price * quantity across lines.
func Total(lines []CartLine) int64 {
	var total int64
	for _, line := range lines {
		total += line.Subtotal()
	}
	return total
}
