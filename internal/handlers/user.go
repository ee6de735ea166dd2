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

type membershipService interface {
	EnsureUser(ctx context.Context, id models.Identity) (*models.User, error)
	MyDefaultSpace(ctx context.Context, id models.Identity) (dto.SpaceWithRole, error)
	ListMySpaces(ctx context.Context, uid string) ([]dto.SpaceWithRole, error)
	SetActiveSpace(ctx context.Context, uid, spaceID string) (dto.SpaceWithRole, error)
}

type userHandlers struct {
	ResponseHandler response.ResponseHandler
	MembershipSvc   membershipService
}

func NewUserHandlers(deps *Deps) *userHandlers {
	return &userHandlers{
		ResponseHandler: deps.ResponseHandler,
		MembershipSvc:   deps.MembershipSvc,
	}
}

func (h *userHandlers) UserRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Register)
	return r
}

// Register creates or refreshes the caller's profile from the
// authenticated identity.
func (h *userHandlers) Register(w http.ResponseWriter, r *http.Request) {
	user, err := h.MembershipSvc.EnsureUser(r.Context(), middleware.Identity(r.Context()))
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, user)
}
