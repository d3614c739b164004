package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-commerce/internal/domain/customer"
)

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	items, err := h.customers.List(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeList(w, items, encodeCustomer)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	c, err := h.customers.Get(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCustomer(e, c) })
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	var req customerRequest
	if err := h.decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	c, err := h.customers.Update(r.Context(), id, customer.UpdateInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCustomer(e, c) })
}

func (h *Handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := h.customers.Delete(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
