package ledger

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/retail-billing/internal/httpx"
	"github.com/georgemunganga/retail-billing/internal/modules/catalog"
)

// Handler exposes the in-progress bill over HTTP.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/bill", func(r chi.Router) {
		r.Get("/", h.current)                        // GET    /api/v1/bill
		r.Delete("/", h.clear)                       // DELETE /api/v1/bill
		r.Get("/receipt", h.receipt)                 // GET    /api/v1/bill/receipt
		r.Post("/fee/toggle", h.toggleFee)           // POST   /api/v1/bill/fee/toggle
		r.Post("/items", h.addItem)                  // POST   /api/v1/bill/items
		r.Patch("/items/{id}", h.editQuantity)       // PATCH  /api/v1/bill/items/{id}
		r.Delete("/items/{id}", h.removeItem)        // DELETE /api/v1/bill/items/{id}
		r.Post("/items/{id}/increment", h.increment) // POST   /api/v1/bill/items/{id}/increment
		r.Post("/items/{id}/decrement", h.decrement) // POST   /api/v1/bill/items/{id}/decrement
	})
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	httpx.Respond(w, http.StatusOK, h.service.Current(r.Context()))
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	httpx.Respond(w, http.StatusOK, h.service.Clear(r.Context()))
}

func (h *Handler) receipt(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Current(r.Context())
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(snap.Receipt(h.service.Policy()).String()))
}

func (h *Handler) toggleFee(w http.ResponseWriter, r *http.Request) {
	httpx.Respond(w, http.StatusOK, h.service.ToggleFee(r.Context()))
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := h.service.Add(r.Context(), req.ProductID)
	if err != nil {
		writeError(w, err, snap)
		return
	}
	httpx.Respond(w, http.StatusOK, snap)
}

func (h *Handler) editQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req EditQuantityRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := h.service.EditQuantity(r.Context(), int(id), req.Quantity)
	if err != nil {
		writeError(w, err, snap)
		return
	}
	httpx.Respond(w, http.StatusOK, snap)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid product id")
		return
	}
	httpx.Respond(w, http.StatusOK, h.service.Remove(r.Context(), int(id)))
}

func (h *Handler) increment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid product id")
		return
	}
	snap, err := h.service.Increment(r.Context(), int(id))
	if err != nil {
		writeError(w, err, snap)
		return
	}
	httpx.Respond(w, http.StatusOK, snap)
}

func (h *Handler) decrement(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid product id")
		return
	}
	snap, err := h.service.Decrement(r.Context(), int(id))
	if err != nil {
		writeError(w, err, snap)
		return
	}
	httpx.Respond(w, http.StatusOK, snap)
}

// writeError answers with the error and the unchanged bill, so the client can revert its fields.
func writeError(w http.ResponseWriter, err error, snap Snapshot) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, ErrItemNotInBill), errors.Is(err, catalog.ErrProductNotFound):
		code = http.StatusNotFound
	}
	httpx.Respond(w, code, map[string]interface{}{"error": err.Error(), "bill": snap})
}
