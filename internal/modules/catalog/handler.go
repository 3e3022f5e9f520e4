package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/retail-billing/internal/httpx"
)

// Handler exposes catalog HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

// RegisterRoutes mounts the catalog routes. Price and image edits go through requireCashier.
func (h *Handler) RegisterRoutes(r chi.Router, requireCashier func(http.Handler) http.Handler) {
	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/products", h.listProducts)     // GET   /api/v1/catalog/products?category=&q=
		r.Get("/categories", h.listCategories) // GET   /api/v1/catalog/categories
		r.Get("/products/{id}", h.getProduct)  // GET   /api/v1/catalog/products/{id}
		r.Group(func(r chi.Router) {
			r.Use(requireCashier)
			r.Patch("/products/{id}/price", h.updatePrice) // PATCH /api/v1/catalog/products/{id}/price
			r.Put("/products/{id}/image", h.setImage)      // PUT   /api/v1/catalog/products/{id}/image
		})
	})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	f := Filter{Category: r.URL.Query().Get("category"), Search: r.URL.Query().Get("q")}
	products, err := h.service.ListProducts(r.Context(), f)
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.Respond(w, http.StatusOK, products)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.service.Categories(r.Context())
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.Respond(w, http.StatusOK, cats)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid product id")
		return
	}
	p, err := h.service.GetProduct(r.Context(), int(id))
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, p)
}

func (h *Handler) updatePrice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req UpdatePriceRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.service.UpdatePrice(r.Context(), int(id), req.Price)
	if errors.Is(err, ErrInvalidPrice) {
		// The client reverts its field to the unchanged product.
		httpx.Respond(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":   err.Error(),
			"product": p,
		})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, p)
}

func (h *Handler) setImage(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req SetImageRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.service.SetImage(r.Context(), int(id), req.ImageURL)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, p)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound):
		httpx.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrImageRequired):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	default:
		httpx.Error(w, http.StatusInternalServerError, err.Error())
	}
}
