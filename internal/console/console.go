// Package console serves the AgriConnect pages over HTTP for a single local
// session.
//
// Every page body is a JSON document {page, principal, data}. Protected page
// groups sit behind the route guard; unknown paths redirect home.
package console

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/felixgeelhaar/agriconnect/internal/guard"
	"github.com/felixgeelhaar/agriconnect/internal/log"
	"github.com/felixgeelhaar/agriconnect/internal/platform"
	"github.com/felixgeelhaar/agriconnect/internal/principal"
	"github.com/felixgeelhaar/agriconnect/internal/session"
	"github.com/felixgeelhaar/agriconnect/internal/telemetry"
)

// Controller is the session capability the console consumes.
type Controller interface {
	Snapshot() session.Session
	Login(ctx context.Context, username, password string) session.Result
	Register(ctx context.Context, reg session.Registration) session.Result
	Logout(ctx context.Context)
}

// Backend fetches the documents behind the protected pages.
type Backend interface {
	Dashboard(ctx context.Context, role principal.Role) (json.RawMessage, error)

	Products(ctx context.Context, q platform.ProductQuery) (json.RawMessage, error)
	Cart(ctx context.Context) (json.RawMessage, error)
	AddToCart(ctx context.Context, item platform.CartItemRequest) (json.RawMessage, error)
	PlaceOrder(ctx context.Context, order platform.CheckoutRequest) (json.RawMessage, error)
	Orders(ctx context.Context, q platform.OrderQuery) (json.RawMessage, error)
	CancelOrder(ctx context.Context, orderID int64) (json.RawMessage, error)
	SkillCategories(ctx context.Context) (json.RawMessage, error)
	Skills(ctx context.Context, q platform.SkillQuery) (json.RawMessage, error)
	Conversations(ctx context.Context) (json.RawMessage, error)
	Messages(ctx context.Context, conversationID int64) (json.RawMessage, error)
	SendMessage(ctx context.Context, conversationID int64, msg platform.MessageRequest) (json.RawMessage, error)
}

// ErrorRecorder counts failures by error code.
type ErrorRecorder interface {
	RecordError(code string)
}

// Config wires the console.
type Config struct {
	Session Controller
	Backend Backend

	// Metrics is served at /metrics when set.
	Metrics http.Handler
	Errors  ErrorRecorder
	Logger  *log.Logger
}

// UserPages are served to user principals; AdminPages to admins.
var (
	UserPages = []string{
		"dashboard", "agro-climate", "ecommerce", "my-market", "my-orders",
		"sacco", "skills", "my-store", "communicate", "profile",
	}
	AdminPages = []string{
		"dashboard", "manage-users", "manage-agro-climate", "manage-ecommerce",
		"manage-market", "manage-orders", "manage-sacco", "manage-skills", "manage-store",
	}
)

type console struct {
	cfg    Config
	logger *log.Logger
}

// New builds the console router.
func New(cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	c := &console{cfg: cfg, logger: cfg.Logger}

	r := chi.NewRouter()
	r.Use(telemetry.Middleware("console"))
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(c.accessLog)

	r.Get("/", c.page("home"))
	r.Get(guard.UserLoginPath, c.loginPage("user-login"))
	r.Post(guard.UserLoginPath, c.handleLogin(false))
	r.Get(guard.AdminLoginPath, c.loginPage("admin-login"))
	r.Post(guard.AdminLoginPath, c.handleLogin(true))
	r.Get("/register", c.page("register"))
	r.Post("/register", c.handleRegister)
	r.Post("/logout", c.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(guard.Middleware(cfg.Session, false))
		for _, name := range UserPages {
			r.Get("/user/"+name, c.userPage(name))
		}
		r.Get(guard.SupplierDashboardPath, c.dashboard("supplier-dashboard"))

		r.Post("/user/ecommerce/cart", c.handleAddToCart)
		r.Post("/user/ecommerce/checkout", c.handleCheckout)
		r.Post("/user/my-orders/{orderID}/cancel", c.handleCancelOrder)
		r.Get("/user/communicate/{conversationID}", c.conversationPage)
		r.Post("/user/communicate/{conversationID}", c.handleSendMessage)
	})

	r.Group(func(r chi.Router) {
		r.Use(guard.Middleware(cfg.Session, true))
		for _, name := range AdminPages {
			r.Get("/admin/"+name, c.adminPage(name))
		}
	})

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusFound)
	})

	return r
}

func (c *console) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		c.logger.DebugContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (c *console) recordError(code string) {
	if c.cfg.Errors != nil {
		c.cfg.Errors.RecordError(code)
	}
}
