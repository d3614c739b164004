package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-commerce/internal/domain/order"
	"github.com/xenking/kart-commerce/internal/storage/redisx"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 255
)

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req orderRequest
	if err := h.decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
	if len(key) > maxIdempotencyKeyLen {
		writeErr(w, r, &badRequestError{msg: "idempotency key too long"})
		return
	}
	var (
		idem    redisx.Request
		claimed bool
	)
	if claims, ok := ClaimsFromContext(ctx); ok && key != "" && h.idempotency != nil {
		idem = redisx.Request{CustomerID: claims.CustomerID, Key: key, Fingerprint: req.fingerprint()}
		existing, ok, err := h.idempotency.Claim(ctx, idem)
		switch {
		case err != nil && !errors.Is(err, redisx.ErrInProgress) && !errors.Is(err, redisx.ErrKeyReused):
			// The cache is an optimisation; the order still goes through.
			zctx.From(ctx).Warn("Idempotency claim failed", zap.Error(err))
		case err != nil:
			writeErr(w, r, err)
			return
		case !ok:
			o, err := h.orders.GetOrder(ctx, existing)
			if err != nil {
				writeErr(w, r, err)
				return
			}
			w.Header().Set(headerReplayed, "true")
			writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
			return
		default:
			claimed = true
		}
	}

	lines := make([]order.LineRequest, len(req.Items))
	for i, it := range req.Items {
		lines[i] = order.LineRequest{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	o, err := h.orders.CreateOrder(ctx, order.CreateOrderRequest{
		CustomerID:          req.CustomerID,
		Lines:               lines,
		ApplyRandomDiscount: req.ApplyRandomDiscount,
	})
	if err != nil {
		if claimed {
			if rerr := h.idempotency.Release(ctx, idem); rerr != nil {
				zctx.From(ctx).Warn("Idempotency release failed", zap.Error(rerr))
			}
		}
		writeErr(w, r, err)
		return
	}
	if claimed {
		if err := h.idempotency.Complete(ctx, idem, o.ID); err != nil {
			zctx.From(ctx).Warn("Idempotency complete failed", zap.Int64("order_id", o.ID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	items, err := h.orders.ListOrders(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeList(w, items, encodeOrder)
}

func (h *Handler) listCustomerOrders(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "customerID")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	items, err := h.orders.ListOrdersByCustomer(r.Context(), customerID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeList(w, items, encodeOrder)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	o, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// updateOrderStatus reads the new status from ?status=.
func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	o, err := h.orders.UpdateOrderStatus(r.Context(), id, r.URL.Query().Get("status"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := h.orders.DeleteOrder(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
