package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/household-ledger/internal/dto"
	"github.com/GregMSThompson/household-ledger/internal/middleware"
	"github.com/GregMSThompson/household-ledger/internal/models"
	"github.com/GregMSThompson/household-ledger/internal/response"
)

type categoryService interface {
	List(ctx context.Context, uid, spaceID string) ([]*models.Category, error)
	Create(ctx context.Context, uid, spaceID string, in dto.CategoryCreate) (*models.Category, error)
	Update(ctx context.Context, uid, spaceID, categoryID string, in dto.CategoryUpdate) (*models.Category, error)
	Delete(ctx context.Context, uid, spaceID, categoryID string) error
}

type categoryHandlers struct {
	ResponseHandler response.ResponseHandler
	CategorySvc     categoryService
}

func NewCategoryHandlers(deps *Deps) *categoryHandlers {
	return &categoryHandlers{
		ResponseHandler: deps.ResponseHandler,
		CategorySvc:     deps.CategorySvc,
	}
}

func (h *categoryHandlers) CategoryRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{categoryID}", h.Update)
	r.Delete("/{categoryID}", h.Delete)
	return r
}

func (h *categoryHandlers) List(w http.ResponseWriter, r *http.Request) {
	cats, err := h.CategorySvc.List(r.Context(), middleware.UID(r.Context()), spaceID(r))
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, cats)
}

func (h *categoryHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CategoryCreate
	if err := decodeJSON(w, r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	cat, err := h.CategorySvc.Create(r.Context(), middleware.UID(r.Context()), spaceID(r), req)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusCreated, cat)
}

func (h *categoryHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.CategoryUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	cat, err := h.CategorySvc.Update(r.Context(), middleware.UID(r.Context()), spaceID(r), chi.URLParam(r, "categoryID"), req)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, cat)
}

func (h *categoryHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.CategorySvc.Delete(r.Context(), middleware.UID(r.Context()), spaceID(r), chi.URLParam(r, "categoryID")); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}
