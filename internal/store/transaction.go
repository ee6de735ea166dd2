package store

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GregMSThompson/household-ledger/internal/dto"
	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/models"
	"github.com/GregMSThompson/household-ledger/pkg/logger"
)

// transactionDoc is the stored shape. Amount and dates are strings so
// values round-trip exactly and dates sort lexically.
type transactionDoc struct {
	TransactionID     string    `firestore:"transactionId"`
	SpaceID           string    `firestore:"spaceId"`
	Type              string    `firestore:"type"`
	Amount            string    `firestore:"amount"`
	Date              string    `firestore:"date"`
	CategoryID        string    `firestore:"categoryId,omitempty"`
	Category          string    `firestore:"category"`
	Status            string    `firestore:"status"`
	Recurrence        string    `firestore:"recurrence"`
	RecurrenceEndDate string    `firestore:"recurrenceEndDate,omitempty"`
	IncludeInBalance  bool      `firestore:"includeInBalance"`
	Description       string    `firestore:"description,omitempty"`
	AddedBy           string    `firestore:"addedBy"`
	AddedByName       string    `firestore:"addedByName,omitempty"`
	Seq               int64     `firestore:"seq"`
	CreatedAt         time.Time `firestore:"createdAt"`
	UpdatedAt         time.Time `firestore:"updatedAt"`
}

func toDoc(t *models.Transaction) transactionDoc {
	d := transactionDoc{
		TransactionID:    t.TransactionID,
		SpaceID:          t.SpaceID,
		Type:             string(t.Type),
		Amount:           t.Amount.String(),
		Date:             t.Date.String(),
		CategoryID:       t.CategoryID,
		Category:         t.Category,
		Status:           string(t.Status),
		Recurrence:       string(t.Recurrence),
		IncludeInBalance: t.IncludeInBalance,
		Description:      t.Description,
		AddedBy:          t.AddedBy,
		AddedByName:      t.AddedByName,
		Seq:              t.Seq,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
	if t.RecurrenceEndDate != nil {
		d.RecurrenceEndDate = t.RecurrenceEndDate.String()
	}
	return d
}

func (d transactionDoc) model() (*models.Transaction, error) {
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return nil, err
	}
	date, err := civil.ParseDate(d.Date)
	if err != nil {
		return nil, err
	}
	t := &models.Transaction{
		TransactionID:    d.TransactionID,
		SpaceID:          d.SpaceID,
		Type:             models.TransactionType(d.Type),
		Amount:           amount,
		Date:             date,
		CategoryID:       d.CategoryID,
		Category:         d.Category,
		Status:           models.TransactionStatus(d.Status),
		Recurrence:       models.Recurrence(d.Recurrence),
		IncludeInBalance: d.IncludeInBalance,
		Description:      d.Description,
		AddedBy:          d.AddedBy,
		AddedByName:      d.AddedByName,
		Seq:              d.Seq,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	if t.Recurrence == "" {
		t.Recurrence = models.RecurrenceNone
	}
	if d.RecurrenceEndDate != "" {
		end, err := civil.ParseDate(d.RecurrenceEndDate)
		if err != nil {
			return nil, err
		}
		t.RecurrenceEndDate = &end
	}
	return t, nil
}

type transactionStore struct {
	client *firestore.Client
}

func NewTransactionStore(client *firestore.Client) *transactionStore {
	return &transactionStore{client: client}
}

// CreateTransactions writes every row in one transaction. Seq comes from
// the wall clock, offset by position, so rows of one call stay in order.
func (s *transactionStore) CreateTransactions(ctx context.Context, txs []*models.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	base := time.Now().UnixNano()
	for i, t := range txs {
		t.Seq = base + int64(i)
	}

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, t := range txs {
			ref := transactionsCollection(s.client, t.SpaceID).Doc(t.TransactionID)
			if err := tx.Create(ref, toDoc(t)); err != nil {
				return err
			}
		}
		return nil
	})
	return txError(err, "space", "create", "failed to create transactions")
}

// GetTransaction looks a row up by id across spaces. Needs a
// collection-group index on transactions.transactionId.
func (s *transactionStore) GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	docs, err := s.client.CollectionGroup("transactions").
		Where("transactionId", "==", transactionID).
		Limit(1).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to get transaction", err)
	}
	if len(docs) == 0 {
		return nil, errs.NewNotFoundError("transaction not found")
	}
	return decodeTransaction(docs[0])
}

func (s *transactionStore) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	ref := transactionsCollection(s.client, t.SpaceID).Doc(t.TransactionID)
	if _, err := ref.Set(ctx, toDoc(t)); err != nil {
		return errs.NewDatabaseError("update", "failed to update transaction", err)
	}
	return nil
}

func (s *transactionStore) DeleteTransactions(ctx context.Context, spaceID string, ids []string) error {
	coll := transactionsCollection(s.client, spaceID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, id := range ids {
			if err := tx.Delete(coll.Doc(id)); err != nil {
				return err
			}
		}
		return nil
	})
	return txError(err, "transaction", "delete", "failed to delete transactions")
}

// ListTransactions pushes the date range down to Firestore; type and status
// are applied on the decoded rows so no composite index is needed.
func (s *transactionStore) ListTransactions(ctx context.Context, spaceID string, f dto.TransactionFilter) ([]*models.Transaction, error) {
	q := transactionsCollection(s.client, spaceID).Query
	if f.From != nil {
		q = q.Where("date", ">=", f.From.String())
	}
	if f.To != nil {
		q = q.Where("date", "<=", f.To.String())
	}

	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to list transactions", err)
	}

	out := make([]*models.Transaction, 0, len(docs))
	for _, d := range docs {
		t, err := decodeTransaction(d)
		if err != nil {
			return nil, err
		}
		if f.Type != nil && t.Type != *f.Type {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// ClearSpace deletes every transaction and category of the space.
func (s *transactionStore) ClearSpace(ctx context.Context, spaceID string) error {
	log := logger.FromContext(ctx)

	var refs []*firestore.DocumentRef
	for _, coll := range []*firestore.CollectionRef{
		transactionsCollection(s.client, spaceID),
		categoriesCollection(s.client, spaceID),
	} {
		docs, err := coll.Select().Documents(ctx).GetAll()
		if err != nil {
			return errs.NewDatabaseError("read", "failed to list space data", err)
		}
		for _, d := range docs {
			refs = append(refs, d.Ref)
		}
	}
	if len(refs) == 0 {
		return nil
	}

	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(refs))
	for _, ref := range refs {
		job, err := bw.Delete(ref)
		if err != nil {
			bw.End()
			return errs.NewDatabaseError("delete", "failed to schedule delete", err)
		}
		jobs = append(jobs, job)
	}

	// Flush and close the writer, then wait on each job for errors.
	bw.End()
	for _, job := range jobs {
		if _, err := job.Results(); err != nil && status.Code(err) != codes.NotFound {
			log.Error("failed to delete space document", "space_id", spaceID, "error", err)
			return errs.NewDatabaseError("delete", "failed to clear space", err)
		}
	}
	return nil
}

func decodeTransaction(d *firestore.DocumentSnapshot) (*models.Transaction, error) {
	var doc transactionDoc
	if err := d.DataTo(&doc); err != nil {
		return nil, errs.NewDatabaseError("read", "failed to parse transaction data", err)
	}
	t, err := doc.model()
	if err != nil {
		return nil, errs.NewDatabaseError("read", "invalid stored transaction", err)
	}
	return t, nil
}
