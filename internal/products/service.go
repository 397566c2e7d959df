package products

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mylagoscommunity/cart-service/internal/cart"
	pkgerrors "github.com/mylagoscommunity/cart-service/pkg/errors"
	"github.com/mylagoscommunity/cart-service/pkg/pagination"
	"github.com/mylagoscommunity/cart-service/pkg/xano"
)

// Service exposes read access to the community catalog.
type Service interface {
	GetProduct(ctx context.Context, id int64) (cart.Product, error)
	ListProducts(ctx context.Context) ([]cart.Product, error)
	Browse(ctx context.Context, input BrowseInput) (*BrowseResult, error)
}

// BrowseInput filters and paginates the catalog listing.
type BrowseInput struct {
	Category   string
	Query      string
	Pagination pagination.Params
}

// BrowseResult is one page of catalog products.
type BrowseResult struct {
	Products   []cart.Product `json:"products"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type catalogClient interface {
	GetProduct(ctx context.Context, id int64) (xano.Product, error)
	ListProducts(ctx context.Context) ([]xano.Product, error)
}

type service struct {
	client catalogClient
}

// NewService wires the catalog over the Xano product endpoints.
func NewService(client catalogClient) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("catalog client required")
	}
	return &service{client: client}, nil
}

func (s *service) GetProduct(ctx context.Context, id int64) (cart.Product, error) {
	if id <= 0 {
		return cart.Product{}, pkgerrors.New(pkgerrors.CodeValidation, "product id must be positive")
	}
	product, err := s.client.GetProduct(ctx, id)
	if err != nil {
		return cart.Product{}, err
	}
	if product.ID <= 0 {
		return cart.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %d not found", id))
	}
	return toCartProduct(product), nil
}

func (s *service) ListProducts(ctx context.Context) ([]cart.Product, error) {
	products, err := s.client.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]cart.Product, 0, len(products))
	for _, p := range products {
		if p.ID <= 0 {
			continue
		}
		out = append(out, toCartProduct(p))
	}
	return out, nil
}

func (s *service) Browse(ctx context.Context, input BrowseInput) (*BrowseResult, error) {
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(input.Pagination.Limit)

	all, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	category := strings.TrimSpace(input.Category)
	query := strings.ToLower(strings.TrimSpace(input.Query))

	page := make([]cart.Product, 0, limit)
	hasMore := false
	for _, p := range all {
		if cursor != nil && p.ID <= cursor.AfterID {
			continue
		}
		if category != "" && !strings.EqualFold(strings.TrimSpace(p.Category), category) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(p.Name), query) {
			continue
		}
		if len(page) == limit {
			hasMore = true
			break
		}
		page = append(page, p)
	}

	result := &BrowseResult{Products: page}
	if hasMore {
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{AfterID: page[len(page)-1].ID})
	}
	return result, nil
}

func toCartProduct(p xano.Product) cart.Product {
	return cart.Product{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.PriceMinor(),
		Image:    []string(p.Image),
		Category: p.Category,
		Quantity: p.Quantity,
	}
}
