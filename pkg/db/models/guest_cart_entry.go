package models

import "time"

// GuestProductSnapshot is the product copy stored alongside a guest cart row.
type GuestProductSnapshot struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Price    int64    `json:"price"`
	Image    []string `json:"image"`
	Category string   `json:"category"`
	Quantity int      `json:"quantity"`
}

// GuestCartEntry persists one position of a session's guest cart.
type GuestCartEntry struct {
	SessionID string               `gorm:"column:session_id;type:text;primaryKey;autoIncrement:false"`
	Position  int                  `gorm:"column:position;primaryKey;autoIncrement:false"`
	ProductID int64                `gorm:"column:product_id;not null"`
	Product   GuestProductSnapshot `gorm:"column:product;type:jsonb;serializer:json"`
	Quantity  int                  `gorm:"column:quantity;not null"`
	UpdatedAt time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name used by the migrations.
func (GuestCartEntry) TableName() string {
	return "guest_cart_entries"
}
