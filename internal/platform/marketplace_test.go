package platform

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agerrors "github.com/felixgeelhaar/agriconnect/internal/errors"
)

type marketRequest struct {
	method string
	uri    string
	auth   string
	body   map[string]interface{}
}

func newMarketServer(t *testing.T, status int, response string) (*httptest.Server, *[]marketRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []marketRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &body)
		}
		mu.Lock()
		reqs = append(reqs, marketRequest{method: r.Method, uri: r.URL.RequestURI(), auth: r.Header.Get("Authorization"), body: body})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func TestMarketplaceRequests(t *testing.T) {
	tests := []struct {
		name   string
		call   func(*Client) (json.RawMessage, error)
		method string
		uri    string
		body   map[string]interface{}
	}{
		{
			name:   "products with filters",
			call:   func(c *Client) (json.RawMessage, error) { return c.Products(context.Background(), ProductQuery{CategoryID: 3, Search: "maize", Page: 2}) },
			method: http.MethodGet,
			uri:    "/ecommerce/products?category_id=3&page=2&search=maize",
		},
		{
			name:   "products unfiltered",
			call:   func(c *Client) (json.RawMessage, error) { return c.Products(context.Background(), ProductQuery{}) },
			method: http.MethodGet,
			uri:    "/ecommerce/products",
		},
		{
			name:   "cart",
			call:   func(c *Client) (json.RawMessage, error) { return c.Cart(context.Background()) },
			method: http.MethodGet,
			uri:    "/ecommerce/cart",
		},
		{
			name: "add to cart",
			call: func(c *Client) (json.RawMessage, error) {
				return c.AddToCart(context.Background(), CartItemRequest{ProductID: 11, Quantity: 2})
			},
			method: http.MethodPost,
			uri:    "/ecommerce/cart/items",
			body:   map[string]interface{}{"product_id": float64(11), "quantity": float64(2)},
		},
		{
			name: "place order",
			call: func(c *Client) (json.RawMessage, error) {
				return c.PlaceOrder(context.Background(), CheckoutRequest{ShippingAddress: "Nakuru", PaymentMethod: "mpesa"})
			},
			method: http.MethodPost,
			uri:    "/order/orders",
			body:   map[string]interface{}{"shipping_address": "Nakuru", "payment_method": "mpesa"},
		},
		{
			name:   "orders with status all",
			call:   func(c *Client) (json.RawMessage, error) { return c.Orders(context.Background(), OrderQuery{Status: "all"}) },
			method: http.MethodGet,
			uri:    "/order/orders",
		},
		{
			name:   "orders by status",
			call:   func(c *Client) (json.RawMessage, error) { return c.Orders(context.Background(), OrderQuery{Status: "pending"}) },
			method: http.MethodGet,
			uri:    "/order/orders?status=pending",
		},
		{
			name:   "cancel order",
			call:   func(c *Client) (json.RawMessage, error) { return c.CancelOrder(context.Background(), 42) },
			method: http.MethodDelete,
			uri:    "/order/orders/42",
		},
		{
			name:   "skill categories",
			call:   func(c *Client) (json.RawMessage, error) { return c.SkillCategories(context.Background()) },
			method: http.MethodGet,
			uri:    "/skill/categories",
		},
		{
			name:   "skills in category",
			call:   func(c *Client) (json.RawMessage, error) { return c.Skills(context.Background(), SkillQuery{CategoryID: 4}) },
			method: http.MethodGet,
			uri:    "/skill/skills?category_id=4",
		},
		{
			name:   "conversations",
			call:   func(c *Client) (json.RawMessage, error) { return c.Conversations(context.Background()) },
			method: http.MethodGet,
			uri:    "/message/conversations",
		},
		{
			name:   "messages",
			call:   func(c *Client) (json.RawMessage, error) { return c.Messages(context.Background(), 5) },
			method: http.MethodGet,
			uri:    "/message/conversations/5/messages",
		},
		{
			name: "send message",
			call: func(c *Client) (json.RawMessage, error) {
				return c.SendMessage(context.Background(), 5, MessageRequest{Content: "Is the maize dry?"})
			},
			method: http.MethodPost,
			uri:    "/message/conversations/5/messages",
			body:   map[string]interface{}{"content": "Is the maize dry?"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, reqs := newMarketServer(t, http.StatusOK, `{"ok": true}`)
			binding := &TokenBinding{}
			binding.Set("tok-m")
			c := NewClient(srv.URL, WithTokenSource(binding))

			doc, err := tt.call(c)
			require.NoError(t, err)
			assert.JSONEq(t, `{"ok": true}`, string(doc))

			require.Len(t, *reqs, 1)
			got := (*reqs)[0]
			assert.Equal(t, tt.method, got.method)
			assert.Equal(t, tt.uri, got.uri)
			assert.Equal(t, "Bearer tok-m", got.auth)
			if tt.body != nil {
				assert.Equal(t, tt.body, got.body)
			}
		})
	}
}

func TestMarketplaceValidationSkipsNetwork(t *testing.T) {
	srv, reqs := newMarketServer(t, http.StatusOK, `{}`)
	c := NewClient(srv.URL)
	ctx := context.Background()

	_, err := c.AddToCart(ctx, CartItemRequest{ProductID: 1})
	assert.True(t, agerrors.HasCode(err, agerrors.ErrCodeValidationFailed))

	_, err = c.AddToCart(ctx, CartItemRequest{Quantity: 1})
	assert.True(t, agerrors.HasCode(err, agerrors.ErrCodeValidationFailed))

	_, err = c.PlaceOrder(ctx, CheckoutRequest{})
	assert.True(t, agerrors.HasCode(err, agerrors.ErrCodeValidationFailed))

	_, err = c.SendMessage(ctx, 1, MessageRequest{})
	assert.True(t, agerrors.HasCode(err, agerrors.ErrCodeValidationFailed))

	assert.Empty(t, *reqs)
}

func TestMarketplaceBackendRejection(t *testing.T) {
	srv, _ := newMarketServer(t, http.StatusBadRequest, `{"error": "Cart is empty"}`)
	c := NewClient(srv.URL)

	_, err := c.PlaceOrder(context.Background(), CheckoutRequest{ShippingAddress: "Eldoret"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Cart is empty", apiErr.Message)
}
