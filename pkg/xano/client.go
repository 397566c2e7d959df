package xano

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/mylagoscommunity/cart-service/pkg/errors"
)

const (
	defaultTimeout        = 10 * time.Second
	responseBodyReadLimit = 1024
)

var errBaseURLRequired = errors.New("xano base url is required")

// Client talks to the Xano product and cart endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewClient builds a Xano client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type tokenKey struct{}

// WithToken stores the caller's bearer token for outgoing requests.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the bearer token stored by WithToken.
func TokenFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Product is the catalog record served by Xano.
type Product struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Price    float64   `json:"price"`
	Image    ImageList `json:"image"`
	Category string    `json:"category"`
	Quantity int       `json:"quantity"`
}

// PriceMinor returns the price rounded to a whole amount.
func (p Product) PriceMinor() int64 {
	return int64(math.Round(p.Price))
}

// ImageList decodes either a list of URLs or a list of {url} objects.
type ImageList []string

func (l *ImageList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*l = nil
		return nil
	}
	if trimmed[0] == '"' {
		var single string
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return err
		}
		*l = ImageList{single}
		return nil
	}
	if trimmed[0] == '{' {
		trimmed = append(append([]byte{'['}, trimmed...), ']')
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	out := make(ImageList, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s != "" {
				out = append(out, s)
			}
			continue
		}
		var obj struct {
			URL  string `json:"url"`
			Path string `json:"path"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return fmt.Errorf("decode image entry: %w", err)
		}
		switch {
		case obj.URL != "":
			out = append(out, obj.URL)
		case obj.Path != "":
			out = append(out, obj.Path)
		}
	}
	*l = out
	return nil
}

// CartItem is a remote cart record.
type CartItem struct {
	ID        int64 `json:"id"`
	UserID    int64 `json:"user_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// AddCartItemRequest is the payload of POST /cart.
type AddCartItemRequest struct {
	UserID    int64 `json:"user_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// GetProduct fetches one product by id.
func (c *Client) GetProduct(ctx context.Context, id int64) (Product, error) {
	var product Product
	if err := c.do(ctx, http.MethodGet, "product/"+strconv.FormatInt(id, 10), nil, nil, &product); err != nil {
		return Product{}, err
	}
	return product, nil
}

// ListProducts fetches the full catalog.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := c.do(ctx, http.MethodGet, "product", nil, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// ListCartItems fetches every cart record of a user.
func (c *Client) ListCartItems(ctx context.Context, userID int64) ([]CartItem, error) {
	query := url.Values{"user_id": []string{strconv.FormatInt(userID, 10)}}
	var items []CartItem
	if err := c.do(ctx, http.MethodGet, "cart", query, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// AddCartItem creates a cart record.
func (c *Client) AddCartItem(ctx context.Context, req AddCartItemRequest) (CartItem, error) {
	var item CartItem
	if err := c.do(ctx, http.MethodPost, "cart", nil, req, &item); err != nil {
		return CartItem{}, err
	}
	return item, nil
}

// UpdateCartItem sets the quantity of a cart record.
func (c *Client) UpdateCartItem(ctx context.Context, id int64, quantity int) (CartItem, error) {
	payload := map[string]int{"quantity": quantity}
	var item CartItem
	if err := c.do(ctx, http.MethodPatch, "cart/"+strconv.FormatInt(id, 10), nil, payload, &item); err != nil {
		return CartItem{}, err
	}
	return item, nil
}

// DeleteCartItem removes a cart record.
func (c *Client) DeleteCartItem(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "cart/"+strconv.FormatInt(id, 10), nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "xano client not configured")
	}

	target := c.buildURL(path)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal xano request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build xano request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute xano request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		cause := fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
		return pkgerrors.Wrap(codeForStatus(resp.StatusCode), cause, "xano request failed")
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode xano response")
	}
	return nil
}

func codeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.CodeUnauthorized
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	}
	return pkgerrors.CodeDependency
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
