package cartdto

// AddItemRequest adds a product to the cart.
type AddItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"omitempty,gte=1,lte=999"`
}

// UpdateQuantityRequest sets a line quantity. Zero or negative removes the line.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}
