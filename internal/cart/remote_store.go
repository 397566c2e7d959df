package cart

import (
	"context"
	"fmt"

	"github.com/mylagoscommunity/cart-service/pkg/xano"
)

type xanoCartClient interface {
	ListCartItems(ctx context.Context, userID int64) ([]xano.CartItem, error)
	AddCartItem(ctx context.Context, req xano.AddCartItemRequest) (xano.CartItem, error)
	UpdateCartItem(ctx context.Context, id int64, quantity int) (xano.CartItem, error)
	DeleteCartItem(ctx context.Context, id int64) error
}

// XanoRemoteStore adapts the Xano cart endpoints to RemoteCartStore.
type XanoRemoteStore struct {
	client xanoCartClient
}

// NewXanoRemoteStore wraps the Xano client.
func NewXanoRemoteStore(client xanoCartClient) (*XanoRemoteStore, error) {
	if client == nil {
		return nil, fmt.Errorf("xano client required")
	}
	return &XanoRemoteStore{client: client}, nil
}

func (s *XanoRemoteStore) ListCartItems(ctx context.Context, userID int64) ([]RemoteCartItem, error) {
	items, err := s.client.ListCartItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]RemoteCartItem, 0, len(items))
	for _, item := range items {
		out = append(out, remoteItemFromXano(item))
	}
	return out, nil
}

func (s *XanoRemoteStore) AddCartItem(ctx context.Context, input AddCartItemInput) (RemoteCartItem, error) {
	item, err := s.client.AddCartItem(ctx, xano.AddCartItemRequest{
		UserID:    input.UserID,
		ProductID: input.ProductID,
		Quantity:  input.Quantity,
	})
	if err != nil {
		return RemoteCartItem{}, err
	}
	return remoteItemFromXano(item), nil
}

func (s *XanoRemoteStore) UpdateCartItem(ctx context.Context, lineID int64, quantity int) (RemoteCartItem, error) {
	item, err := s.client.UpdateCartItem(ctx, lineID, quantity)
	if err != nil {
		return RemoteCartItem{}, err
	}
	return remoteItemFromXano(item), nil
}

func (s *XanoRemoteStore) DeleteCartItem(ctx context.Context, lineID int64) error {
	return s.client.DeleteCartItem(ctx, lineID)
}

func remoteItemFromXano(item xano.CartItem) RemoteCartItem {
	return RemoteCartItem{
		ID:        item.ID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
	}
}
