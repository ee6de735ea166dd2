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

type ledgerService interface {
	Add(ctx context.Context, uid, spaceID string, draft dto.TransactionDraft) ([]*models.Transaction, error)
	Update(ctx context.Context, uid, spaceID, transactionID string, patch dto.TransactionPatch) (*models.Transaction, error)
	Delete(ctx context.Context, uid, spaceID, transactionID string) error
	DeleteMany(ctx context.Context, uid, spaceID string, ids []string) (int, error)
	List(ctx context.Context, uid, spaceID string, f dto.TransactionFilter) ([]*models.Transaction, error)
	ClearSpace(ctx context.Context, uid, spaceID string) error
	Export(ctx context.Context, uid, spaceID string) (dto.ExportBundle, error)
}

type transactionHandlers struct {
	ResponseHandler response.ResponseHandler
	LedgerSvc       ledgerService
}

func NewTransactionHandlers(deps *Deps) *transactionHandlers {
	return &transactionHandlers{
		ResponseHandler: deps.ResponseHandler,
		LedgerSvc:       deps.LedgerSvc,
	}
}

func (h *transactionHandlers) TransactionRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Add)
	r.Post("/delete", h.DeleteMany) // must be before /{transactionID}
	r.Patch("/{transactionID}", h.Update)
	r.Delete("/{transactionID}", h.Delete)
	return r
}

func (h *transactionHandlers) Add(w http.ResponseWriter, r *http.Request) {
	var draft dto.TransactionDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	rows, err := h.LedgerSvc.Add(r.Context(), middleware.UID(r.Context()), spaceID(r), draft)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusCreated, rows)
}

func (h *transactionHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var patch dto.TransactionPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	tx, err := h.LedgerSvc.Update(r.Context(), middleware.UID(r.Context()), spaceID(r), chi.URLParam(r, "transactionID"), patch)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, tx)
}

func (h *transactionHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.LedgerSvc.Delete(r.Context(), middleware.UID(r.Context()), spaceID(r), chi.URLParam(r, "transactionID")); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}

func (h *transactionHandlers) DeleteMany(w http.ResponseWriter, r *http.Request) {
	var req dto.DeleteManyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	n, err := h.LedgerSvc.DeleteMany(r.Context(), middleware.UID(r.Context()), spaceID(r), req.IDs)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, map[string]int{"deleted": n})
}

func (h *transactionHandlers) List(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	txs, err := h.LedgerSvc.List(r.Context(), middleware.UID(r.Context()), spaceID(r), f)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, txs)
}

func (h *transactionHandlers) ClearSpace(w http.ResponseWriter, r *http.Request) {
	if err := h.LedgerSvc.ClearSpace(r.Context(), middleware.UID(r.Context()), spaceID(r)); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}

func (h *transactionHandlers) Export(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.LedgerSvc.Export(r.Context(), middleware.UID(r.Context()), spaceID(r))
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="ledger-export.json"`)
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, bundle)
}

// filterFromQuery reads from, to, category, type, status, addedBy, order
// and limit. Values are checked by the ledger.
func filterFromQuery(r *http.Request) (dto.TransactionFilter, error) {
	q := r.URL.Query()
	f := dto.TransactionFilter{
		Category: q.Get("category"),
		AddedBy:  q.Get("addedBy"),
		Order:    dto.SortOrder(q.Get("order")),
	}

	var err error
	if f.From, err = dateParam(r, "from"); err != nil {
		return f, err
	}
	if f.To, err = dateParam(r, "to"); err != nil {
		return f, err
	}
	if f.Limit, err = intParam(r, "limit"); err != nil {
		return f, err
	}
	if v := q.Get("type"); v != "" {
		t := models.TransactionType(v)
		f.Type = &t
	}
	if v := q.Get("status"); v != "" {
		s := models.TransactionStatus(v)
		f.Status = &s
	}
	return f, nil
}
