package console

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	agerrors "github.com/felixgeelhaar/agriconnect/internal/errors"
	"github.com/felixgeelhaar/agriconnect/internal/platform"
)

// ActionResponse answers the cart, checkout, cancel and message posts.
type ActionResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func queryInt(q url.Values, key string) int {
	n, _ := strconv.Atoi(q.Get(key))
	return n
}

func queryID(q url.Values, key string) int64 {
	n, _ := strconv.ParseInt(q.Get(key), 10, 64)
	return n
}

// pageData holds the documents of a page; failed fetches are reported under
// "error" and the rest still render.
type pageData map[string]interface{}

func (c *console) fetch(data pageData, page, key string, doc json.RawMessage, err error) {
	if err != nil {
		c.logger.WithError(err).Warn("page fetch failed", "page", page, "document", key)
		data["error"] = errorText(err)
		return
	}
	data[key] = doc
}

func (c *console) ecommercePage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := pageData{}

	products, err := c.cfg.Backend.Products(r.Context(), platform.ProductQuery{
		CategoryID: queryID(q, "category_id"),
		Search:     q.Get("search"),
		Sort:       q.Get("sort"),
		Page:       queryInt(q, "page"),
		PerPage:    queryInt(q, "per_page"),
	})
	c.fetch(data, "user-ecommerce", "products", products, err)

	cart, err := c.cfg.Backend.Cart(r.Context())
	c.fetch(data, "user-ecommerce", "cart", cart, err)

	c.render(w, "user-ecommerce", data)
}

func (c *console) ordersPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := pageData{}
	orders, err := c.cfg.Backend.Orders(r.Context(), platform.OrderQuery{
		Status:  q.Get("status"),
		Search:  q.Get("search"),
		Page:    queryInt(q, "page"),
		PerPage: queryInt(q, "per_page"),
	})
	c.fetch(data, "user-my-orders", "orders", orders, err)
	c.render(w, "user-my-orders", data)
}

func (c *console) skillsPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := pageData{}

	categories, err := c.cfg.Backend.SkillCategories(r.Context())
	c.fetch(data, "user-skills", "categories", categories, err)

	skills, err := c.cfg.Backend.Skills(r.Context(), platform.SkillQuery{
		CategoryID: queryID(q, "category_id"),
		Page:       queryInt(q, "page"),
		PerPage:    queryInt(q, "per_page"),
	})
	c.fetch(data, "user-skills", "skills", skills, err)

	c.render(w, "user-skills", data)
}

func (c *console) conversationsPage(w http.ResponseWriter, r *http.Request) {
	data := pageData{}
	conversations, err := c.cfg.Backend.Conversations(r.Context())
	c.fetch(data, "user-communicate", "conversations", conversations, err)
	c.render(w, "user-communicate", data)
}

func (c *console) conversationPage(w http.ResponseWriter, r *http.Request) {
	id, ok := c.pathID(w, r, "conversationID")
	if !ok {
		return
	}
	data := pageData{"conversation_id": id}
	messages, err := c.cfg.Backend.Messages(r.Context(), id)
	c.fetch(data, "user-conversation", "messages", messages, err)
	c.render(w, "user-conversation", data)
}

func (c *console) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var item platform.CartItemRequest
	err := decodeAction(w, r, &item, func(form url.Values) error {
		var err error
		if item.ProductID, err = strconv.ParseInt(form.Get("product_id"), 10, 64); err != nil {
			return agerrors.New(agerrors.ErrCodeValidationFailed, "product_id must be a number")
		}
		item.Quantity, _ = strconv.Atoi(form.Get("quantity"))
		return nil
	})
	if err != nil {
		c.actionFailed(w, err)
		return
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	doc, err := c.cfg.Backend.AddToCart(r.Context(), item)
	c.actionDone(w, http.StatusCreated, doc, err)
}

func (c *console) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var order platform.CheckoutRequest
	err := decodeAction(w, r, &order, func(form url.Values) error {
		order = platform.CheckoutRequest{
			ShippingAddress: form.Get("shipping_address"),
			BillingAddress:  form.Get("billing_address"),
			PaymentMethod:   form.Get("payment_method"),
			Notes:           form.Get("notes"),
		}
		return nil
	})
	if err != nil {
		c.actionFailed(w, err)
		return
	}
	doc, err := c.cfg.Backend.PlaceOrder(r.Context(), order)
	c.actionDone(w, http.StatusCreated, doc, err)
}

func (c *console) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := c.pathID(w, r, "orderID")
	if !ok {
		return
	}
	doc, err := c.cfg.Backend.CancelOrder(r.Context(), id)
	c.actionDone(w, http.StatusOK, doc, err)
}

func (c *console) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := c.pathID(w, r, "conversationID")
	if !ok {
		return
	}
	var msg platform.MessageRequest
	err := decodeAction(w, r, &msg, func(form url.Values) error {
		msg.Content = form.Get("content")
		return nil
	})
	if err != nil {
		c.actionFailed(w, err)
		return
	}
	doc, err := c.cfg.Backend.SendMessage(r.Context(), id, msg)
	c.actionDone(w, http.StatusCreated, doc, err)
}

// decodeAction reads a JSON body into target, or hands the parsed form to
// fromForm.
func decodeAction(w http.ResponseWriter, r *http.Request, target interface{}, fromForm func(url.Values) error) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(target); err != nil {
			return agerrors.Wrap(agerrors.ErrCodeValidationFailed, "malformed JSON body", err)
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return agerrors.Wrap(agerrors.ErrCodeValidationFailed, "malformed form body", err)
	}
	return fromForm(r.PostForm)
}

func (c *console) pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		c.actionFailed(w, agerrors.New(agerrors.ErrCodeValidationFailed, param+" must be a positive number"))
		return 0, false
	}
	return id, true
}

func (c *console) actionDone(w http.ResponseWriter, status int, doc json.RawMessage, err error) {
	if err != nil {
		c.actionFailed(w, err)
		return
	}
	writeJSON(w, status, ActionResponse{Success: true, Data: doc})
}

// actionFailed answers validation faults with 400, backend rejections with
// the backend's 4xx status and everything else with 502.
func (c *console) actionFailed(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	code := agerrors.CodeOf(err)

	var apiErr *platform.APIError
	switch {
	case stderrors.As(err, &apiErr):
		code = agerrors.ErrCodeAPIRequest
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			status = apiErr.StatusCode
		}
	case code.Family() == "VALIDATION":
		status = http.StatusBadRequest
	}

	c.recordError(string(code))
	writeJSON(w, status, ActionResponse{Error: errorText(err), Code: string(code)})
}
