package assist

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/retail-billing/internal/httpx"
	"github.com/georgemunganga/retail-billing/internal/modules/catalog"
)

const maxUpload = 20 << 20

// Handler exposes the assist endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

// RegisterRoutes mounts the assist routes. Everything that calls the collaborator goes through requireCashier.
func (h *Handler) RegisterRoutes(r chi.Router, requireCashier func(http.Handler) http.Handler) {
	r.Route("/api/v1/assist", func(r chi.Router) {
		r.Get("/suggestions", h.suggestions)          // GET  /api/v1/assist/suggestions
		r.Get("/videos/{id}", h.video)                // GET  /api/v1/assist/videos/{id}
		r.Get("/videos/{id}/content", h.videoContent) // GET  /api/v1/assist/videos/{id}/content
		r.Group(func(r chi.Router) {
			r.Use(requireCashier)
			r.Post("/images/fill", h.fillImages)       // POST /api/v1/assist/images/fill
			r.Post("/products/{id}/edit", h.editImage) // POST /api/v1/assist/products/{id}/edit
			r.Post("/videos", h.startVideo)            // POST /api/v1/assist/videos
		})
	})
}

func (h *Handler) suggestions(w http.ResponseWriter, r *http.Request) {
	httpx.Respond(w, http.StatusOK, h.service.Suggestions())
}

func (h *Handler) fillImages(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.FillMissingImages(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, res)
}

func (h *Handler) editImage(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req EditImageRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	url, err := h.service.EditProductImage(r.Context(), int(id), req.Prompt)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, EditImageResponse{ProductID: int(id), ImageURL: url})
}

// startVideo takes a multipart form: image (file), prompt, aspect.
func (h *Handler) startVideo(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, ErrImageRequired)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUpload))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "could not read image")
		return
	}
	mime := header.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}

	job, err := h.service.StartVideo(r.Context(), VideoRequest{
		Prompt:      r.FormValue("prompt"),
		Image:       Image{Data: data, MIMEType: mime},
		AspectRatio: r.FormValue("aspect"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.Respond(w, http.StatusAccepted, job)
}

func (h *Handler) video(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Video(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, job)
}

func (h *Handler) videoContent(w http.ResponseWriter, r *http.Request) {
	rc, mime, err := h.service.OpenVideo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", mime)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, rc)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPromptRequired), errors.Is(err, ErrImageRequired), errors.Is(err, ErrInvalidAspect):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrProductNotFound), errors.Is(err, ErrJobNotFound):
		httpx.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNoSourceImage), errors.Is(err, ErrVideoNotReady):
		httpx.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidAPIKey):
		httpx.Error(w, http.StatusUnauthorized, InvalidAPIKeyMessage)
	case errors.Is(err, ErrAssistDisabled):
		httpx.Error(w, http.StatusServiceUnavailable, err.Error())
	default:
		httpx.Error(w, http.StatusBadGateway, "generation failed, please try again")
	}
}
