package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/GregMSThompson/household-ledger/internal/dto"
	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/events"
	"github.com/GregMSThompson/household-ledger/internal/models"
	"github.com/GregMSThompson/household-ledger/internal/recurrence"
	"github.com/GregMSThompson/household-ledger/pkg/logger"
)

const maxDeleteMany = 500

type transactionLister interface {
	// ListTransactions returns the space's transactions narrowed by the
	// filter's date range, type and status, in no particular order.
	ListTransactions(ctx context.Context, spaceID string, f dto.TransactionFilter) ([]*models.Transaction, error)
}

type ledgerStore interface {
	memberGetter
	transactionLister
	GetUser(ctx context.Context, uid string) (*models.User, error)
	GetSpace(ctx context.Context, spaceID string) (*models.Space, error)
	// CreateTransactions inserts every row or none and assigns Seq.
	CreateTransactions(ctx context.Context, txs []*models.Transaction) error
	GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, tx *models.Transaction) error
	// DeleteTransactions removes every listed row of the space or none.
	DeleteTransactions(ctx context.Context, spaceID string, ids []string) error
	ListCategories(ctx context.Context, spaceID string) ([]*models.Category, error)
	ClearSpace(ctx context.Context, spaceID string) error
}

type categoryResolver interface {
	Resolve(ctx context.Context, spaceID, name string, t models.TransactionType) (*models.Category, error)
}

type ledgerRecorder interface {
	TransactionsAdded(n int, recurring bool)
	TransactionsDeleted(n int)
}

type noopRecorder struct{}

func (noopRecorder) TransactionsAdded(int, bool) {}
func (noopRecorder) TransactionsDeleted(int)     {}

type ledgerService struct {
	store      ledgerStore
	categories categoryResolver
	publisher  eventPublisher
	metrics    ledgerRecorder
	clockNow   func() time.Time
}

func NewLedgerService(store ledgerStore, categories categoryResolver, publisher eventPublisher, metrics ledgerRecorder) *ledgerService {
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &ledgerService{
		store:      store,
		categories: categories,
		publisher:  publisher,
		metrics:    metrics,
		clockNow:   time.Now,
	}
}

// Add validates the draft and stores one row, or one row per date when the
// draft recurs. Every row is an independent NONE-recurrence transaction.
// The category is resolved in its own write before the rows are stored, so
// a failed insert can leave a newly created, unused category behind.
func (s *ledgerService) Add(ctx context.Context, uid, spaceID string, draft dto.TransactionDraft) ([]*models.Transaction, error) {
	log := logger.FromContext(ctx)

	if _, err := requireMember(ctx, s.store, uid, spaceID); err != nil {
		return nil, err
	}
	tpl, err := draft.Validate()
	if err != nil {
		return nil, err
	}

	authorName := ""
	if user, err := s.store.GetUser(ctx, uid); err == nil {
		authorName = user.Name
	} else if !isNotFound(err) {
		return nil, err
	}

	category, err := s.categories.Resolve(ctx, spaceID, tpl.Category, tpl.Type)
	if err != nil {
		return nil, err
	}

	dates := []civil.Date{tpl.Date}
	recurring := tpl.Recurrence != models.RecurrenceNone
	if recurring {
		dates = recurrence.Expand(tpl.Date, *tpl.RecurrenceEndDate, tpl.Recurrence)
	}

	now := s.clockNow()
	txs := make([]*models.Transaction, 0, len(dates))
	for _, d := range dates {
		txs = append(txs, &models.Transaction{
			TransactionID:    uuid.NewString(),
			SpaceID:          spaceID,
			Type:             tpl.Type,
			Amount:           tpl.Amount,
			Date:             d,
			CategoryID:       category.CategoryID,
			Category:         category.Name,
			Status:           tpl.Status,
			Recurrence:       models.RecurrenceNone,
			IncludeInBalance: tpl.IncludeInBalance,
			Description:      tpl.Description,
			AddedBy:          uid,
			AddedByName:      authorName,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}

	if err := s.store.CreateTransactions(ctx, txs); err != nil {
		log.Error("failed to store transactions", "space_id", spaceID, "count", len(txs), "error", err)
		return nil, err
	}

	s.metrics.TransactionsAdded(len(txs), recurring)
	publish(ctx, s.publisher, events.New(events.TransactionsAdded, spaceID, uid, transactionIDs(txs)...))
	log.Info("transactions added", "space_id", spaceID, "count", len(txs), "recurrence", tpl.Recurrence)
	return txs, nil
}

func (s *ledgerService) Update(ctx context.Context, uid, spaceID, transactionID string, patch dto.TransactionPatch) (*models.Transaction, error) {
	m, err := requireMember(ctx, s.store, uid, spaceID)
	if err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	tx, err := s.authorizeRow(ctx, m, spaceID, transactionID)
	if err != nil {
		return nil, err
	}

	patch.Apply(tx, s.clockNow())
	if patch.Category != nil || patch.Type != nil {
		name := tx.Category
		if patch.Category != nil {
			name = *patch.Category
		}
		category, err := s.categories.Resolve(ctx, spaceID, name, tx.Type)
		if err != nil {
			return nil, err
		}
		tx.CategoryID, tx.Category = category.CategoryID, category.Name
	}

	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, events.New(events.TransactionUpdated, spaceID, uid, tx.TransactionID))
	logger.FromContext(ctx).Info("transaction updated", "space_id", spaceID, "transaction_id", tx.TransactionID)
	return tx, nil
}

func (s *ledgerService) Delete(ctx context.Context, uid, spaceID, transactionID string) error {
	_, err := s.DeleteMany(ctx, uid, spaceID, []string{transactionID})
	return err
}

// DeleteMany checks every id before deleting anything, then removes them
// in one atomic write. It returns the number of distinct rows removed.
func (s *ledgerService) DeleteMany(ctx context.Context, uid, spaceID string, ids []string) (int, error) {
	m, err := requireMember(ctx, s.store, uid, spaceID)
	if err != nil {
		return 0, err
	}

	ids = uniqueIDs(ids)
	switch {
	case len(ids) == 0:
		return 0, errs.NewValidationError("ids are required")
	case len(ids) > maxDeleteMany:
		return 0, errs.NewValidationError("too many ids in one request")
	}

	for _, id := range ids {
		if _, err := s.authorizeRow(ctx, m, spaceID, id); err != nil {
			return 0, err
		}
	}
	if err := s.store.DeleteTransactions(ctx, spaceID, ids); err != nil {
		return 0, err
	}

	s.metrics.TransactionsDeleted(len(ids))
	publish(ctx, s.publisher, events.New(events.TransactionsDeleted, spaceID, uid, ids...))
	logger.FromContext(ctx).Info("transactions deleted", "space_id", spaceID, "count", len(ids))
	return len(ids), nil
}

// List returns the space's transactions matching f, ordered by date with
// insertion order breaking ties.
func (s *ledgerService) List(ctx context.Context, uid, spaceID string, f dto.TransactionFilter) ([]*models.Transaction, error) {
	if _, err := requireMember(ctx, s.store, uid, spaceID); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	txs, err := s.store.ListTransactions(ctx, spaceID, f)
	if err != nil {
		return nil, err
	}

	out := FilterTransactions(txs, f, uid)
	SortTransactions(out, f.Order)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// ClearSpace deletes every transaction and category of the space. The space
// and its memberships remain.
func (s *ledgerService) ClearSpace(ctx context.Context, uid, spaceID string) error {
	if _, err := requireRole(ctx, s.store, uid, spaceID, models.RoleOwner); err != nil {
		return err
	}
	if err := s.store.ClearSpace(ctx, spaceID); err != nil {
		return err
	}

	publish(ctx, s.publisher, events.New(events.SpaceCleared, spaceID, uid))
	logger.FromContext(ctx).Warn("space data cleared", "space_id", spaceID)
	return nil
}

func (s *ledgerService) Export(ctx context.Context, uid, spaceID string) (dto.ExportBundle, error) {
	if _, err := requireMember(ctx, s.store, uid, spaceID); err != nil {
		return dto.ExportBundle{}, err
	}

	out := dto.ExportBundle{ExportedAt: s.clockNow().UTC()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		space, err := s.store.GetSpace(gctx, spaceID)
		out.Space = space
		return err
	})
	g.Go(func() error {
		categories, err := s.store.ListCategories(gctx, spaceID)
		out.Categories = categories
		return err
	})
	g.Go(func() error {
		txs, err := s.store.ListTransactions(gctx, spaceID, dto.TransactionFilter{})
		SortTransactions(txs, dto.SortAsc)
		out.Transactions = txs
		return err
	})
	if err := g.Wait(); err != nil {
		return dto.ExportBundle{}, err
	}

	logger.FromContext(ctx).Info("space exported", "space_id", spaceID, "transactions", len(out.Transactions))
	return out, nil
}

// authorizeRow loads a transaction for mutation. A row in another space is
// Forbidden; member_own may only touch rows it added.
func (s *ledgerService) authorizeRow(ctx context.Context, m *models.Membership, spaceID, transactionID string) (*models.Transaction, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, errs.NewValidationError("transaction id is required")
	}
	tx, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.SpaceID != spaceID {
		return nil, errs.NewForbiddenError("transaction belongs to another space")
	}
	if m.Role == models.RoleMemberOwn && tx.AddedBy != m.UID {
		return nil, errs.NewForbiddenError("member_own may only change transactions they added")
	}
	return tx, nil
}

// FilterTransactions applies every filter field. callerUID resolves the
// self reference in AddedBy.
func FilterTransactions(txs []*models.Transaction, f dto.TransactionFilter, callerUID string) []*models.Transaction {
	category := strings.ToLower(strings.TrimSpace(f.Category))
	addedBy := strings.TrimSpace(f.AddedBy)
	self := dto.IsSelfReference(addedBy)
	addedByLower := strings.ToLower(addedBy)

	out := make([]*models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !f.InRange(tx.Date) {
			continue
		}
		if f.Type != nil && tx.Type != *f.Type {
			continue
		}
		if f.Status != nil && tx.Status != *f.Status {
			continue
		}
		if category != "" && !strings.Contains(strings.ToLower(tx.Category), category) {
			continue
		}
		if addedBy != "" {
			if self && tx.AddedBy != callerUID {
				continue
			}
			if !self && !strings.Contains(strings.ToLower(tx.AddedByName), addedByLower) {
				continue
			}
		}
		out = append(out, tx)
	}
	return out
}

// SortTransactions orders by (date, seq, id), reversed for SortDesc.
func SortTransactions(txs []*models.Transaction, order dto.SortOrder) {
	if order == dto.SortDesc {
		sort.SliceStable(txs, func(i, j int) bool { return models.Less(txs[j], txs[i]) })
		return
	}
	sort.SliceStable(txs, func(i, j int) bool { return models.Less(txs[i], txs[j]) })
}

func transactionIDs(txs []*models.Transaction) []string {
	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.TransactionID
	}
	return ids
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
