package handlers

import (
	"log/slog"

	"github.com/GregMSThompson/household-ledger/internal/response"
)

type Deps struct {
	Log             *slog.Logger
	ResponseHandler response.ResponseHandler
	MembershipSvc   membershipService
	InviteSvc       inviteService
	CategorySvc     categoryService
	LedgerSvc       ledgerService
	AggregationSvc  aggregationService
	AssistantSvc    assistantService
}
