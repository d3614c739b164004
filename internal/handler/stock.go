package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-commerce/internal/domain/stock"
)

func (req stockRequest) input() stock.Input {
	return stock.Input{
		ProductID: req.ProductID,
		Available: req.Available,
		Reserved:  req.Reserved,
		Minimum:   req.Minimum,
	}
}

func (h *Handler) createStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := h.decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	rec, err := h.stock.Create(r.Context(), req.input())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeStock(e, rec) })
}

func (h *Handler) listStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.stock.List(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeList(w, items, encodeStock)
}

func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	rec, err := h.stock.Get(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeStock(e, rec) })
}

func (h *Handler) getStockByProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productID")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	rec, err := h.stock.GetByProduct(r.Context(), productID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeStock(e, rec) })
}

func (h *Handler) updateStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	var req stockRequest
	if err := h.decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	rec, err := h.stock.Update(r.Context(), id, req.input())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeStock(e, rec) })
}

func (h *Handler) deleteStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := h.stock.Delete(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
