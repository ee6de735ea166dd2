package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/household-ledger/internal/dto"
	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/middleware"
	"github.com/GregMSThompson/household-ledger/internal/models"
	"github.com/GregMSThompson/household-ledger/internal/response"
)

type inviteService interface {
	GenerateInviteLink(ctx context.Context, uid, spaceID string) (dto.InviteLink, error)
	RegenerateInviteToken(ctx context.Context, uid, spaceID string) (dto.InviteLink, error)
	JoinByToken(ctx context.Context, id models.Identity, token string) (dto.JoinResult, error)
	SetRole(ctx context.Context, actingUID, spaceID, targetUID string, role models.Role) error
	RemoveMember(ctx context.Context, actingUID, spaceID, targetUID string) error
	TransferOwnership(ctx context.Context, actingUID, spaceID, targetUID string) error
	ListMembers(ctx context.Context, uid, spaceID string) ([]dto.Member, error)
}

type spaceHandlers struct {
	ResponseHandler response.ResponseHandler
	MembershipSvc   membershipService
	InviteSvc       inviteService
}

func NewSpaceHandlers(deps *Deps) *spaceHandlers {
	return &spaceHandlers{
		ResponseHandler: deps.ResponseHandler,
		MembershipSvc:   deps.MembershipSvc,
		InviteSvc:       deps.InviteSvc,
	}
}

// SpaceRoutes serves the caller's own space selection.
func (h *spaceHandlers) SpaceRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListMySpaces)
	r.Get("/my", h.MySpace)
	r.Put("/active", h.SetActive)
	return r
}

// MemberRoutes is mounted under /spaces/{spaceID}/members.
func (h *spaceHandlers) MemberRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListMembers)
	r.Put("/{uid}/role", h.SetRole)
	r.Delete("/{uid}", h.RemoveMember)
	return r
}

// InviteRoutes is mounted under /spaces/{spaceID}/invite.
func (h *spaceHandlers) InviteRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.InviteLink)
	r.Post("/rotate", h.RotateInvite)
	return r
}

// JoinRoutes is mounted under /invites.
func (h *spaceHandlers) JoinRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{token}/join", h.Join)
	return r
}

func (h *spaceHandlers) MySpace(w http.ResponseWriter, r *http.Request) {
	sw, err := h.MembershipSvc.MyDefaultSpace(r.Context(), middleware.Identity(r.Context()))
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, sw)
}

func (h *spaceHandlers) ListMySpaces(w http.ResponseWriter, r *http.Request) {
	spaces, err := h.MembershipSvc.ListMySpaces(r.Context(), middleware.UID(r.Context()))
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, spaces)
}

func (h *spaceHandlers) SetActive(w http.ResponseWriter, r *http.Request) {
	var req dto.SetActiveSpaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	if req.SpaceID == "" {
		h.ResponseHandler.HandleError(w, r, errs.NewValidationError("spaceId is required"))
		return
	}

	sw, err := h.MembershipSvc.SetActiveSpace(r.Context(), middleware.UID(r.Context()), req.SpaceID)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, sw)
}

func (h *spaceHandlers) Join(w http.ResponseWriter, r *http.Request) {
	res, err := h.InviteSvc.JoinByToken(r.Context(), middleware.Identity(r.Context()), chi.URLParam(r, "token"))
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.AlreadyMember {
		status = http.StatusOK
	}
	h.ResponseHandler.WriteSuccess(w, r, status, res)
}

func (h *spaceHandlers) InviteLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.InviteSvc.GenerateInviteLink(r.Context(), middleware.UID(r.Context()), spaceID(r))
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, link)
}

func (h *spaceHandlers) RotateInvite(w http.ResponseWriter, r *http.Request) {
	link, err := h.InviteSvc.RegenerateInviteToken(r.Context(), middleware.UID(r.Context()), spaceID(r))
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, link)
}

func (h *spaceHandlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.InviteSvc.ListMembers(r.Context(), middleware.UID(r.Context()), spaceID(r))
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, members)
}

func (h *spaceHandlers) SetRole(w http.ResponseWriter, r *http.Request) {
	var req dto.SetRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	err := h.InviteSvc.SetRole(r.Context(), middleware.UID(r.Context()), spaceID(r), chi.URLParam(r, "uid"), req.Role)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}

func (h *spaceHandlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	err := h.InviteSvc.RemoveMember(r.Context(), middleware.UID(r.Context()), spaceID(r), chi.URLParam(r, "uid"))
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}

func (h *spaceHandlers) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferOwnershipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	if err := h.InviteSvc.TransferOwnership(r.Context(), middleware.UID(r.Context()), spaceID(r), req.UID); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}
