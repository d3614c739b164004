package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

// decode reads a JSON body into dst and validates its struct tags.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &badRequestError{msg: fmt.Sprintf("malformed request body: %v", err)}
	}
	return h.validate.Struct(dst)
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &badRequestError{msg: fmt.Sprintf("invalid %s %q", name, raw)}
	}
	return id, nil
}

func validationMessage(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: must satisfy %s", fe.Field(), fe.Tag()))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type productRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=2000"`
	Category    string          `json:"category" validate:"max=100"`
	SKU         string          `json:"sku" validate:"required,max=64"`
	Price       decimal.Decimal `json:"price"`
	Active      *bool           `json:"active"`
}

type stockRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Available int   `json:"available"`
	Reserved  int   `json:"reserved"`
	Minimum   int   `json:"minimum"`
}

type customerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"omitempty,min=6,max=72"`
}

type orderLineRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type orderRequest struct {
	CustomerID          int64              `json:"customerId" validate:"required,gt=0"`
	Items               []orderLineRequest `json:"items"`
	ApplyRandomDiscount bool               `json:"applyRandomDiscount"`
}

// fingerprint hashes the fields that decide what order gets created, so a
// reused Idempotency-Key can be told apart from a retry.
func (req *orderRequest) fingerprint() string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%d|%t", req.CustomerID, req.ApplyRandomDiscount)
	for _, it := range req.Items {
		_, _ = fmt.Fprintf(h, "|%d:%d", it.ProductID, it.Quantity)
	}
	return hex.EncodeToString(h.Sum(nil))
}
