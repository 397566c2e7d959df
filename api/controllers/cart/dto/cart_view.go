package cartdto

import (
	"github.com/mylagoscommunity/cart-service/pkg/enums"
)

// CartProduct is the product snapshot rendered with each line.
type CartProduct struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Price    int64    `json:"price"`
	Image    []string `json:"image"`
	Category string   `json:"category"`
	Quantity int      `json:"quantity"`
}

// CartLine is one rendered cart line. Negative line ids address guest
// storage, positive ids address remote records.
type CartLine struct {
	LineID   int64            `json:"line_id"`
	Source   enums.LineSource `json:"source"`
	Product  CartProduct      `json:"product"`
	Quantity int              `json:"quantity"`
	Subtotal int64            `json:"subtotal"`
}

// CartView is the full cart payload returned by every cart endpoint.
type CartView struct {
	Lines          []CartLine           `json:"lines"`
	CartCount      int                  `json:"cart_count"`
	Total          int64                `json:"total"`
	TotalDisplay   string               `json:"total_display"`
	IsLoading      bool                 `json:"is_loading"`
	Authenticated  bool                 `json:"authenticated"`
	MigrationState enums.MigrationState `json:"migration_state"`
}
