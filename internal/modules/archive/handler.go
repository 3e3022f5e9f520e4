package archive

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/retail-billing/internal/httpx"
	"github.com/georgemunganga/retail-billing/internal/modules/ledger"
)

// Handler exposes saved bills over HTTP.
type Handler struct {
	service Service
	policy  ledger.Policy
}

func NewHandler(service Service, policy ledger.Policy) *Handler {
	return &Handler{service: service, policy: policy}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/bills", func(r chi.Router) {
		r.Get("/", h.list)                // GET    /api/v1/bills
		r.Post("/", h.save)               // POST   /api/v1/bills
		r.Get("/{id}", h.get)             // GET    /api/v1/bills/{id}
		r.Post("/{id}/load", h.load)      // POST   /api/v1/bills/{id}/load
		r.Delete("/{id}", h.remove)       // DELETE /api/v1/bills/{id}
		r.Get("/{id}/receipt", h.receipt) // GET    /api/v1/bills/{id}/receipt
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	httpx.Respond(w, http.StatusOK, h.service.List(r.Context()))
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.Save(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, b)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid bill id")
		return
	}
	b, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, b)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid bill id")
		return
	}
	snap, err := h.service.Load(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, snap)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid bill id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) receipt(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid bill id")
		return
	}
	b, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(b.Receipt(h.policy).String()))
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNothingToSave):
		httpx.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrBillNotFound):
		httpx.Error(w, http.StatusNotFound, err.Error())
	default:
		// Store write failures; the bill and the archive are unchanged.
		httpx.Error(w, http.StatusServiceUnavailable, err.Error())
	}
}
