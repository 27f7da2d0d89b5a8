package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"

	agerrors "github.com/felixgeelhaar/agriconnect/internal/errors"
)

// ProductQuery filters the product catalog. Zero values are omitted.
type ProductQuery struct {
	CategoryID int64
	Search     string
	Sort       string
	Page       int
	PerPage    int
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	setID(v, "category_id", q.CategoryID)
	setString(v, "search", q.Search)
	setString(v, "sort", q.Sort)
	setInt(v, "page", q.Page)
	setInt(v, "per_page", q.PerPage)
	return v
}

// OrderQuery filters the caller's orders. Status "all" is the same as none.
type OrderQuery struct {
	Status  string
	Search  string
	Page    int
	PerPage int
}

func (q OrderQuery) values() url.Values {
	v := url.Values{}
	if q.Status != "all" {
		setString(v, "status", q.Status)
	}
	setString(v, "search", q.Search)
	setInt(v, "page", q.Page)
	setInt(v, "per_page", q.PerPage)
	return v
}

// SkillQuery filters the skills library.
type SkillQuery struct {
	CategoryID int64
	Page       int
	PerPage    int
}

func (q SkillQuery) values() url.Values {
	v := url.Values{}
	setID(v, "category_id", q.CategoryID)
	setInt(v, "page", q.Page)
	setInt(v, "per_page", q.PerPage)
	return v
}

// CartItemRequest adds a product to the cart.
type CartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// Validate rejects a missing product or a non-positive quantity.
func (r CartItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProductID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.Quantity, validation.Required, validation.Min(1)),
	)
}

// CheckoutRequest places an order from the current cart.
type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
	BillingAddress  string `json:"billing_address,omitempty"`
	PaymentMethod   string `json:"payment_method,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// Validate requires a shipping address, as the backend does.
func (r CheckoutRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ShippingAddress, validation.Required),
	)
}

// MessageRequest is the body of a new message.
type MessageRequest struct {
	Content string `json:"content"`
}

// Validate rejects an empty message.
func (r MessageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.Required, validation.Length(1, 5000)),
	)
}

// Products lists the public catalog.
func (c *Client) Products(ctx context.Context, q ProductQuery) (json.RawMessage, error) {
	return c.document(ctx, http.MethodGet, withQuery("/ecommerce/products", q.values()), nil)
}

// Cart returns the caller's cart, creating an empty one server-side if needed.
func (c *Client) Cart(ctx context.Context) (json.RawMessage, error) {
	return c.document(ctx, http.MethodGet, "/ecommerce/cart", nil)
}

// AddToCart adds quantity of a product to the caller's cart.
func (c *Client) AddToCart(ctx context.Context, item CartItemRequest) (json.RawMessage, error) {
	if err := item.Validate(); err != nil {
		return nil, agerrors.NewValidationError(err)
	}
	return c.document(ctx, http.MethodPost, "/ecommerce/cart/items", item)
}

// PlaceOrder turns the caller's cart into an order.
func (c *Client) PlaceOrder(ctx context.Context, order CheckoutRequest) (json.RawMessage, error) {
	if err := order.Validate(); err != nil {
		return nil, agerrors.NewValidationError(err)
	}
	return c.document(ctx, http.MethodPost, "/order/orders", order)
}

// Orders lists the caller's orders; the backend scopes them to the token.
func (c *Client) Orders(ctx context.Context, q OrderQuery) (json.RawMessage, error) {
	return c.document(ctx, http.MethodGet, withQuery("/order/orders", q.values()), nil)
}

// CancelOrder cancels one of the caller's pending orders.
func (c *Client) CancelOrder(ctx context.Context, orderID int64) (json.RawMessage, error) {
	return c.document(ctx, http.MethodDelete, "/order/orders/"+strconv.FormatInt(orderID, 10), nil)
}

// SkillCategories lists the skills library categories.
func (c *Client) SkillCategories(ctx context.Context) (json.RawMessage, error) {
	return c.document(ctx, http.MethodGet, "/skill/categories", nil)
}

// Skills lists skills, optionally within one category.
func (c *Client) Skills(ctx context.Context, q SkillQuery) (json.RawMessage, error) {
	return c.document(ctx, http.MethodGet, withQuery("/skill/skills", q.values()), nil)
}

// Conversations lists the caller's conversations.
func (c *Client) Conversations(ctx context.Context) (json.RawMessage, error) {
	return c.document(ctx, http.MethodGet, "/message/conversations", nil)
}

// Messages lists the messages of one conversation.
func (c *Client) Messages(ctx context.Context, conversationID int64) (json.RawMessage, error) {
	return c.document(ctx, http.MethodGet, conversationPath(conversationID), nil)
}

// SendMessage posts a message into a conversation.
func (c *Client) SendMessage(ctx context.Context, conversationID int64, msg MessageRequest) (json.RawMessage, error) {
	if err := msg.Validate(); err != nil {
		return nil, agerrors.NewValidationError(err)
	}
	return c.document(ctx, http.MethodPost, conversationPath(conversationID), msg)
}

func conversationPath(id int64) string {
	return "/message/conversations/" + strconv.FormatInt(id, 10) + "/messages"
}

// document performs an authenticated JSON request and returns the body
// undecoded.
func (c *Client) document(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	var doc json.RawMessage
	if err := parseResponse(resp, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func withQuery(path string, v url.Values) string {
	if len(v) == 0 {
		return path
	}
	return path + "?" + v.Encode()
}

func setString(v url.Values, key, s string) {
	if s != "" {
		v.Set(key, s)
	}
}

func setInt(v url.Values, key string, n int) {
	if n > 0 {
		v.Set(key, strconv.Itoa(n))
	}
}

func setID(v url.Values, key string, id int64) {
	if id > 0 {
		v.Set(key, strconv.FormatInt(id, 10))
	}
}
