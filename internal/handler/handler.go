// Package handler exposes the domain services over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/kart-commerce/internal/domain/auth"
	"github.com/xenking/kart-commerce/internal/domain/customer"
	"github.com/xenking/kart-commerce/internal/domain/order"
	"github.com/xenking/kart-commerce/internal/domain/product"
	"github.com/xenking/kart-commerce/internal/domain/stock"
	"github.com/xenking/kart-commerce/internal/storage/redisx"
	"github.com/xenking/kart-commerce/pkg/health"
	"github.com/xenking/kart-commerce/pkg/httpmiddleware"
)

// AuthService registers and authenticates customers.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error)
	Login(ctx context.Context, username, password string) (*auth.Session, error)
	Verify(token string) (*auth.Claims, error)
}

// ProductService manages the catalog.
type ProductService interface {
	Create(ctx context.Context, in product.Input) (*product.Product, error)
	Get(ctx context.Context, id int64) (*product.Product, error)
	List(ctx context.Context, f product.Filter) ([]product.Product, error)
	Update(ctx context.Context, id int64, in product.Input) (*product.Product, error)
	Delete(ctx context.Context, id int64) error
}

// StockService manages inventory records.
type StockService interface {
	Create(ctx context.Context, in stock.Input) (*stock.Record, error)
	Get(ctx context.Context, id int64) (*stock.Record, error)
	GetByProduct(ctx context.Context, productID int64) (*stock.Record, error)
	List(ctx context.Context) ([]stock.Record, error)
	Update(ctx context.Context, id int64, in stock.Input) (*stock.Record, error)
	Delete(ctx context.Context, id int64) error
}

// CustomerService manages customer accounts.
type CustomerService interface {
	Get(ctx context.Context, id int64) (*customer.Customer, error)
	List(ctx context.Context) ([]customer.Customer, error)
	Update(ctx context.Context, id int64, in customer.UpdateInput) (*customer.Customer, error)
	Delete(ctx context.Context, id int64) error
}

// OrderService places and manages orders.
type OrderService interface {
	CreateOrder(ctx context.Context, req order.CreateOrderRequest) (*order.Order, error)
	GetOrder(ctx context.Context, id int64) (*order.Order, error)
	ListOrders(ctx context.Context) ([]order.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID int64) ([]order.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status string) (*order.Order, error)
	DeleteOrder(ctx context.Context, id int64) error
}

// Idempotency deduplicates order creation by client key.
type Idempotency interface {
	Claim(ctx context.Context, req redisx.Request) (orderID int64, claimed bool, err error)
	Complete(ctx context.Context, req redisx.Request, orderID int64) error
	Release(ctx context.Context, req redisx.Request) error
}

// Deps are the handler's collaborators. Idempotency and Health are optional.
type Deps struct {
	Auth        AuthService
	Products    ProductService
	Stock       StockService
	Customers   CustomerService
	Orders      OrderService
	Idempotency Idempotency
	Health      *health.Health
}

// Handler serves the REST API.
type Handler struct {
	auth        AuthService
	products    ProductService
	stock       StockService
	customers   CustomerService
	orders      OrderService
	idempotency Idempotency
	health      *health.Health
	validate    *validator.Validate
}

// New creates a Handler.
func New(d Deps) *Handler {
	return &Handler{
		auth:        d.Auth,
		products:    d.Products,
		stock:       d.Stock,
		customers:   d.Customers,
		orders:      d.Orders,
		idempotency: d.Idempotency,
		health:      d.Health,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes builds the router. Everything under /api except /api/auth needs a
// bearer token; catalog writes, inventory, customer management and order
// administration also need the ADMIN role.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(httpmiddleware.LogRequests())
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	if h.health != nil {
		r.Get("/livez", h.health.LiveEndpoint)
		r.Get("/readyz", h.health.ReadyEndpoint)
	}

	admin := requireRole(customer.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.Route("/products", func(r chi.Router) {
				r.Get("/", h.listProducts)
				r.Get("/{id}", h.getProduct)
				r.With(admin).Post("/", h.createProduct)
				r.With(admin).Put("/{id}", h.updateProduct)
				r.With(admin).Delete("/{id}", h.deleteProduct)
			})

			r.Route("/inventory", func(r chi.Router) {
				r.Get("/product/{productID}", h.getStockByProduct)
				r.Group(func(r chi.Router) {
					r.Use(admin)
					r.Post("/", h.createStock)
					r.Get("/", h.listStock)
					r.Get("/{id}", h.getStock)
					r.Put("/{id}", h.updateStock)
					r.Delete("/{id}", h.deleteStock)
				})
			})

			r.Route("/customers", func(r chi.Router) {
				r.Use(admin)
				r.Get("/", h.listCustomers)
				r.Get("/{id}", h.getCustomer)
				r.Put("/{id}", h.updateCustomer)
				r.Delete("/{id}", h.deleteCustomer)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.createOrder)
				r.Get("/customer/{customerID}", h.listCustomerOrders)
				r.Get("/{id}", h.getOrder)
				r.With(admin).Get("/", h.listOrders)
				r.With(admin).Put("/{id}/status", h.updateOrderStatus)
				r.With(admin).Delete("/{id}", h.deleteOrder)
			})
		})
	})
	return r
}
