package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/retail-billing/internal/httpx"
)

// Handler exposes cashier login over HTTP.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", h.login) // POST /api/v1/auth/login
		r.Group(func(r chi.Router) {
			r.Use(RequireCashier(h.service))
			r.Post("/logout", h.logout)           // POST /api/v1/auth/logout
			r.Get("/me", h.me)                    // GET  /api/v1/auth/me
			r.Post("/avatar", h.regenerateAvatar) // POST /api/v1/auth/avatar
		})
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := h.service.Login(r.Context(), req.Name)
	if errors.Is(err, ErrNameRequired) {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.Respond(w, http.StatusOK, sess)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context()); err != nil {
		httpx.Error(w, http.StatusUnauthorized, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Current(r.Context())
	if err != nil {
		httpx.Error(w, http.StatusUnauthorized, err.Error())
		return
	}
	httpx.Respond(w, http.StatusOK, c)
}

func (h *Handler) regenerateAvatar(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.RegenerateAvatar(r.Context())
	if err != nil {
		httpx.Error(w, http.StatusUnauthorized, err.Error())
		return
	}
	httpx.Respond(w, http.StatusAccepted, c)
}
