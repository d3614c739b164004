package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-commerce/internal/domain/auth"
	"github.com/xenking/kart-commerce/internal/domain/customer"
	"github.com/xenking/kart-commerce/internal/domain/order"
	"github.com/xenking/kart-commerce/internal/domain/product"
	"github.com/xenking/kart-commerce/internal/domain/stock"
	"github.com/xenking/kart-commerce/internal/storage/redisx"
	"github.com/xenking/kart-commerce/pkg/httpmiddleware"
)

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeList[T any](w http.ResponseWriter, items []T, encode func(e *jx.Encoder, v *T)) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range items {
				encode(e, &items[i])
			}
		})
	})
}

// writeErr maps a domain error to a status code and writes it. Unexpected
// errors are logged and reported without detail.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var (
		stockErr   *stock.InsufficientStockError
		qtyErr     *order.InvalidQuantityError
		pidErr     *order.InvalidProductIDError
		statusErr  *order.InvalidStatusError
		validErr   validator.ValidationErrors
		requestErr *badRequestError
	)
	switch {
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusConflict, func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("code", func(e *jx.Encoder) { e.Int(http.StatusConflict) })
				e.Field("message", func(e *jx.Encoder) { e.Str(stockErr.Error()) })
				e.Field("productId", func(e *jx.Encoder) { e.Int64(stockErr.ProductID) })
				e.Field("requested", func(e *jx.Encoder) { e.Int(stockErr.Requested) })
				e.Field("available", func(e *jx.Encoder) { e.Int(stockErr.Available) })
			})
		})
	case errors.Is(err, auth.ErrUnauthorized):
		httpmiddleware.WriteError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, customer.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, stock.ErrNotFound),
		errors.Is(err, order.ErrNotFound):
		httpmiddleware.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, product.ErrDuplicateSKU),
		errors.Is(err, product.ErrInUse),
		errors.Is(err, customer.ErrUsernameTaken),
		errors.Is(err, customer.ErrEmailTaken),
		errors.Is(err, stock.ErrAlreadyExists),
		errors.Is(err, redisx.ErrInProgress):
		httpmiddleware.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, redisx.ErrKeyReused):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &validErr):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, validationMessage(validErr))
	case errors.Is(err, order.ErrEmptyLines),
		errors.Is(err, product.ErrInvalidPrice),
		errors.Is(err, stock.ErrNegativeQuantity),
		errors.As(err, &qtyErr),
		errors.As(err, &pidErr),
		errors.As(err, &statusErr),
		errors.As(err, &requestErr):
		httpmiddleware.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		httpmiddleware.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

func money(e *jx.Encoder, d decimal.Decimal) {
	e.RawStr(d.StringFixed(2))
}

func timestamp(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeProduct(e *jx.Encoder, p *product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("sku", func(e *jx.Encoder) { e.Str(p.SKU) })
		e.Field("price", func(e *jx.Encoder) { money(e, p.Price) })
		e.Field("active", func(e *jx.Encoder) { e.Bool(p.Active) })
		e.Field("createdAt", func(e *jx.Encoder) { timestamp(e, p.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { timestamp(e, p.UpdatedAt) })
	})
}

func encodeStock(e *jx.Encoder, s *stock.Record) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(s.ID) })
		e.Field("productId", func(e *jx.Encoder) { e.Int64(s.ProductID) })
		e.Field("available", func(e *jx.Encoder) { e.Int(s.Available) })
		e.Field("reserved", func(e *jx.Encoder) { e.Int(s.Reserved) })
		e.Field("minimum", func(e *jx.Encoder) { e.Int(s.Minimum) })
		e.Field("total", func(e *jx.Encoder) { e.Int(s.Total()) })
		e.Field("lowStock", func(e *jx.Encoder) { e.Bool(s.IsLowStock()) })
		e.Field("createdAt", func(e *jx.Encoder) { timestamp(e, s.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { timestamp(e, s.UpdatedAt) })
	})
}

func encodeCustomer(e *jx.Encoder, c *customer.Customer) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
		e.Field("username", func(e *jx.Encoder) { e.Str(c.Username) })
		e.Field("email", func(e *jx.Encoder) { e.Str(c.Email) })
		e.Field("roles", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, role := range c.Roles {
					e.Str(string(role))
				}
			})
		})
		e.Field("createdAt", func(e *jx.Encoder) { timestamp(e, c.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { timestamp(e, c.UpdatedAt) })
	})
}

func encodeSession(e *jx.Encoder, s *auth.Session) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("token", func(e *jx.Encoder) { e.Str(s.Token) })
		e.Field("tokenType", func(e *jx.Encoder) { e.Str("Bearer") })
		e.Field("customer", func(e *jx.Encoder) { encodeCustomer(e, s.Customer) })
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
		e.Field("customerId", func(e *jx.Encoder) { e.Int64(o.CustomerID) })
		e.Field("customerName", func(e *jx.Encoder) { e.Str(o.CustomerName) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("subtotal", func(e *jx.Encoder) { money(e, o.Subtotal) })
		e.Field("discountTotal", func(e *jx.Encoder) { money(e, o.DiscountTotal) })
		e.Field("total", func(e *jx.Encoder) { money(e, o.Total) })
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range o.Lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Int64(l.ProductID) })
						e.Field("productName", func(e *jx.Encoder) { e.Str(l.ProductName) })
						e.Field("sku", func(e *jx.Encoder) { e.Str(l.ProductSKU) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
						e.Field("unitPrice", func(e *jx.Encoder) { money(e, l.UnitPrice) })
						e.Field("subtotal", func(e *jx.Encoder) { money(e, l.Subtotal) })
					})
				}
			})
		})
		e.Field("discounts", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, d := range o.Discounts {
					e.Obj(func(e *jx.Encoder) {
						e.Field("kind", func(e *jx.Encoder) { e.Str(string(d.Kind)) })
						e.Field("rate", func(e *jx.Encoder) { e.RawStr(d.Rate.String()) })
						e.Field("base", func(e *jx.Encoder) { money(e, d.Base) })
						e.Field("amount", func(e *jx.Encoder) { money(e, d.Amount) })
					})
				}
			})
		})
		e.Field("createdAt", func(e *jx.Encoder) { timestamp(e, o.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { timestamp(e, o.UpdatedAt) })
	})
}
