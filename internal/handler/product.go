package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-commerce/internal/domain/product"
)

func (req productRequest) input() product.Input {
	return product.Input{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		SKU:         req.SKU,
		Price:       req.Price,
		Active:      req.Active,
	}
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := h.decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	p, err := h.products.Create(r.Context(), req.input())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeProduct(e, p) })
}

// listProducts supports ?category=<name>&active=true.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	activeOnly, _ := strconv.ParseBool(q.Get("active"))
	items, err := h.products.List(r.Context(), product.Filter{
		Name:       q.Get("name"),
		Category:   q.Get("category"),
		ActiveOnly: activeOnly,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeList(w, items, encodeProduct)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, p) })
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	var req productRequest
	if err := h.decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	p, err := h.products.Update(r.Context(), id, req.input())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, p) })
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := h.products.Delete(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
