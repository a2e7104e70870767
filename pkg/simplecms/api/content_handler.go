// Package api exposes the content engine over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-cms/pkg/simplecms"
)

// ContentHandler serves content models and items.
type ContentHandler struct {
	service simplecms.Service
	logger  *slog.Logger
	write   []func(http.Handler) http.Handler
}

// HandlerOption configures a ContentHandler.
type HandlerOption func(*ContentHandler)

// WithWriteMiddleware guards every mutating route, for example with RequireJWT.
func WithWriteMiddleware(mw ...func(http.Handler) http.Handler) HandlerOption {
	return func(h *ContentHandler) {
		h.write = append(h.write, mw...)
	}
}

// WithHandlerLogger sets the logger used for unexpected errors.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *ContentHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewContentHandler creates a new content handler
func NewContentHandler(service simplecms.Service, opts ...HandlerOption) *ContentHandler {
	h := &ContentHandler{service: service, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the routes for models and items. The static /models
// prefix wins over a model slugged "models".
func (h *ContentHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/models", func(r chi.Router) {
		r.Get("/", h.ListModels)
		r.Get("/{slug}", h.GetModel)
		r.Group(func(r chi.Router) {
			r.Use(h.write...)
			r.Post("/", h.CreateModel)
			r.Put("/{slug}", h.UpdateModel)
			r.Delete("/{slug}", h.DeleteModel)
		})
	})

	r.Get("/{model}", h.ListItems)
	r.Get("/{model}/{slug}", h.GetItem)
	r.Group(func(r chi.Router) {
		r.Use(h.write...)
		r.Post("/{model}", h.CreateItem)
		r.Put("/{model}/{slug}", h.UpdateItem)
		r.Delete("/{model}/{slug}", h.DeleteItem)
	})

	return r
}

// Model endpoints

func (h *ContentHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.service.ListModels(r.Context())
	if err != nil {
		renderError(w, r, h.logger, err, "Failed to list content models")
		return
	}
	renderData(w, r, http.StatusOK, models, "")
}

func (h *ContentHandler) CreateModel(w http.ResponseWriter, r *http.Request) {
	var req simplecms.CreateModelRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderBadRequest(w, r, "Invalid JSON body")
		return
	}

	model, err := h.service.CreateModel(r.Context(), req)
	if err != nil {
		renderError(w, r, h.logger, err, "Failed to create content model")
		return
	}

	h.logger.InfoContext(r.Context(), "Content model created", "model", model.Slug, "model_id", model.ID)
	renderData(w, r, http.StatusCreated, model, "Content model created successfully")
}

func (h *ContentHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	model, err := h.service.GetModel(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		renderError(w, r, h.logger, err, "Content model not found")
		return
	}
	renderData(w, r, http.StatusOK, model, "")
}

func (h *ContentHandler) UpdateModel(w http.ResponseWriter, r *http.Request) {
	var req simplecms.UpdateModelRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderBadRequest(w, r, "Invalid JSON body")
		return
	}

	model, err := h.service.UpdateModel(r.Context(), chi.URLParam(r, "slug"), req)
	if err != nil {
		renderError(w, r, h.logger, err, "Failed to update content model")
		return
	}
	renderData(w, r, http.StatusOK, model, "Content model updated successfully")
}

func (h *ContentHandler) DeleteModel(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if err := h.service.DeleteModel(r.Context(), slug); err != nil {
		renderError(w, r, h.logger, err, "Failed to delete content model")
		return
	}

	h.logger.InfoContext(r.Context(), "Content model deleted", "model", slug)
	renderData(w, r, http.StatusOK, nil, "Content model deleted successfully")
}

// Item endpoints

func (h *ContentHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := simplecms.ListItemsRequest{
		Status:    q.Get("status"),
		Search:    q.Get("search"),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}

	var err error
	if req.Limit, err = intParam(q.Get("limit")); err != nil {
		renderBadRequest(w, r, "limit must be an integer")
		return
	}
	if req.Offset, err = intParam(q.Get("offset")); err != nil {
		renderBadRequest(w, r, "offset must be an integer")
		return
	}

	list, err := h.service.ListItems(r.Context(), chi.URLParam(r, "model"), req)
	if err != nil {
		renderError(w, r, h.logger, err, "Failed to list content items")
		return
	}
	renderData(w, r, http.StatusOK, list, "")
}

func (h *ContentHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req simplecms.CreateItemRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderBadRequest(w, r, "Invalid JSON body")
		return
	}
	req.AuthorID = AuthorFromRequest(r)

	item, err := h.service.CreateItem(r.Context(), chi.URLParam(r, "model"), req)
	if err != nil {
		renderError(w, r, h.logger, err, "Failed to create content item")
		return
	}

	h.logger.InfoContext(r.Context(), "Content item created", "model", item.ModelSlug, "item_id", item.ID, "slug", item.Slug)
	renderData(w, r, http.StatusCreated, item, "Content item created successfully")
}

func (h *ContentHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetItem(r.Context(), chi.URLParam(r, "model"), chi.URLParam(r, "slug"))
	if err != nil {
		renderError(w, r, h.logger, err, "Content item not found")
		return
	}
	renderData(w, r, http.StatusOK, item, "")
}

func (h *ContentHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req simplecms.UpdateItemRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderBadRequest(w, r, "Invalid JSON body")
		return
	}

	item, err := h.service.UpdateItem(r.Context(), chi.URLParam(r, "model"), chi.URLParam(r, "slug"), req)
	if err != nil {
		renderError(w, r, h.logger, err, "Failed to update content item")
		return
	}
	renderData(w, r, http.StatusOK, item, "Content item updated successfully")
}

func (h *ContentHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	modelSlug, slug := chi.URLParam(r, "model"), chi.URLParam(r, "slug")
	if err := h.service.DeleteItem(r.Context(), modelSlug, slug); err != nil {
		renderError(w, r, h.logger, err, "Failed to delete content item")
		return
	}

	h.logger.InfoContext(r.Context(), "Content item deleted", "model", modelSlug, "item", slug)
	renderData(w, r, http.StatusOK, nil, "Content item deleted successfully")
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
