package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-commerce/internal/domain/auth"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	sess, err := h.auth.Register(r.Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeSession(e, sess) })
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	sess, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSession(e, sess) })
}
