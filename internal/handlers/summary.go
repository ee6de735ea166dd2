package handlers

import (
	"context"
	"net/http"

	"cloud.google.com/go/civil"

	"github.com/GregMSThompson/household-ledger/internal/dto"
	"github.com/GregMSThompson/household-ledger/internal/middleware"
	"github.com/GregMSThompson/household-ledger/internal/models"
	"github.com/GregMSThompson/household-ledger/internal/response"
)

type aggregationService interface {
	Today() civil.Date
	Summarize(ctx context.Context, uid, spaceID string, month dto.Month) (dto.Summary, error)
	PendingConfirmations(ctx context.Context, uid, spaceID string) ([]*models.Transaction, error)
	BalanceAt(ctx context.Context, uid, spaceID string, date civil.Date) (dto.Balance, error)
	OnDate(ctx context.Context, uid, spaceID string, date civil.Date) ([]dto.CalendarEntry, error)
	Calendar(ctx context.Context, uid, spaceID string, month dto.Month) (dto.Calendar, error)
}

type summaryHandlers struct {
	ResponseHandler response.ResponseHandler
	AggregationSvc  aggregationService
}

func NewSummaryHandlers(deps *Deps) *summaryHandlers {
	return &summaryHandlers{
		ResponseHandler: deps.ResponseHandler,
		AggregationSvc:  deps.AggregationSvc,
	}
}

func (h *summaryHandlers) Summary(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r, h.AggregationSvc.Today())
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	summary, err := h.AggregationSvc.Summarize(r.Context(), middleware.UID(r.Context()), spaceID(r), month)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, summary)
}

func (h *summaryHandlers) Pending(w http.ResponseWriter, r *http.Request) {
	txs, err := h.AggregationSvc.PendingConfirmations(r.Context(), middleware.UID(r.Context()), spaceID(r))
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, txs)
}

func (h *summaryHandlers) Balance(w http.ResponseWriter, r *http.Request) {
	date, err := h.dateOrToday(r)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	bal, err := h.AggregationSvc.BalanceAt(r.Context(), middleware.UID(r.Context()), spaceID(r), date)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, bal)
}

func (h *summaryHandlers) Calendar(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r, h.AggregationSvc.Today())
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	cal, err := h.AggregationSvc.Calendar(r.Context(), middleware.UID(r.Context()), spaceID(r), month)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, cal)
}

func (h *summaryHandlers) OnDate(w http.ResponseWriter, r *http.Request) {
	date, err := h.dateOrToday(r)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	entries, err := h.AggregationSvc.OnDate(r.Context(), middleware.UID(r.Context()), spaceID(r), date)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, entries)
}

func (h *summaryHandlers) dateOrToday(r *http.Request) (civil.Date, error) {
	d, err := dateParam(r, "date")
	if err != nil {
		return civil.Date{}, err
	}
	if d == nil {
		return h.AggregationSvc.Today(), nil
	}
	return *d, nil
}
