package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/GregMSThompson/household-ledger/internal/dto"
	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/models"
)

func emulatorStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "test-project")
	if err != nil {
		t.Fatalf("firestore client error: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return New(client), ctx
}

func TestTransactionsWithEmulator(t *testing.T) {
	s, ctx := emulatorStore(t)
	spaceID := uuid.NewString()
	now := time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)

	txs := []*models.Transaction{
		{
			TransactionID:    uuid.NewString(),
			SpaceID:          spaceID,
			Type:             models.Expense,
			Amount:           decimal.RequireFromString("3.10"),
			Date:             civil.Date{Year: 2025, Month: time.January, Day: 10},
			Category:         "Coffee",
			Status:           models.StatusActual,
			Recurrence:       models.RecurrenceNone,
			IncludeInBalance: true,
			AddedBy:          "u1",
			CreatedAt:        now,
			UpdatedAt:        now,
		},
		{
			TransactionID:    uuid.NewString(),
			SpaceID:          spaceID,
			Type:             models.Expense,
			Amount:           decimal.RequireFromString("12"),
			Date:             civil.Date{Year: 2025, Month: time.January, Day: 15},
			Category:         "Lunch",
			Status:           models.StatusPlanned,
			Recurrence:       models.RecurrenceNone,
			IncludeInBalance: true,
			AddedBy:          "u1",
			CreatedAt:        now,
			UpdatedAt:        now,
		},
	}
	if err := s.CreateTransactions(ctx, txs); err != nil {
		t.Fatalf("create error: %v", err)
	}
	if txs[1].Seq <= txs[0].Seq {
		t.Fatalf("seq should increase within a batch")
	}

	from := civil.Date{Year: 2025, Month: time.January, Day: 12}
	to := civil.Date{Year: 2025, Month: time.January, Day: 20}
	results, err := s.ListTransactions(ctx, spaceID, dto.TransactionFilter{From: &from, To: &to})
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(results) != 1 || results[0].TransactionID != txs[1].TransactionID {
		t.Fatalf("unexpected results: %+v", results)
	}

	got, err := s.GetTransaction(ctx, txs[0].TransactionID)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if !got.Amount.Equal(decimal.RequireFromString("3.10")) || got.Date != txs[0].Date {
		t.Fatalf("value did not round-trip: %+v", got)
	}

	if err := s.DeleteTransactions(ctx, spaceID, []string{txs[0].TransactionID}); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	_, err = s.GetTransaction(ctx, txs[0].TransactionID)
	var notFound *errs.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestCategoryRenameWithEmulator(t *testing.T) {
	s, ctx := emulatorStore(t)
	spaceID := uuid.NewString()

	food := &models.Category{CategoryID: uuid.NewString(), SpaceID: spaceID, Name: "Food", Type: models.Expense, CreatedAt: time.Now()}
	got, created, err := s.ResolveCategory(ctx, food)
	if err != nil || !created {
		t.Fatalf("resolve error: %v (created=%v)", err, created)
	}
	again, created, err := s.ResolveCategory(ctx, &models.Category{CategoryID: uuid.NewString(), SpaceID: spaceID, Name: "food", Type: models.Expense})
	if err != nil || created || again.CategoryID != got.CategoryID {
		t.Fatalf("expected existing category, got %+v (created=%v, err=%v)", again, created, err)
	}

	tx := &models.Transaction{
		TransactionID: uuid.NewString(),
		SpaceID:       spaceID,
		Type:          models.Expense,
		Amount:        decimal.NewFromInt(5),
		Date:          civil.Date{Year: 2025, Month: time.March, Day: 1},
		CategoryID:    food.CategoryID,
		Category:      "Food",
		Status:        models.StatusActual,
		Recurrence:    models.RecurrenceNone,
	}
	if err := s.CreateTransactions(ctx, []*models.Transaction{tx}); err != nil {
		t.Fatalf("create error: %v", err)
	}

	food.Name = "Groceries"
	if err := s.UpdateCategory(ctx, food, "Food"); err != nil {
		t.Fatalf("rename error: %v", err)
	}
	renamed, err := s.GetTransaction(ctx, tx.TransactionID)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if renamed.Category != "Groceries" {
		t.Fatalf("rename not applied: %q", renamed.Category)
	}
}

func TestMembershipWithEmulator(t *testing.T) {
	s, ctx := emulatorStore(t)
	uid := uuid.NewString()
	now := time.Now().UTC()

	if err := s.CreateUser(ctx, &models.User{UID: uid, Name: "Anna", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("create user error: %v", err)
	}
	var exists *errs.AlreadyExistsError
	if err := s.CreateUser(ctx, &models.User{UID: uid}); !errors.As(err, &exists) {
		t.Fatalf("expected AlreadyExistsError, got %v", err)
	}

	space := &models.Space{SpaceID: uuid.NewString(), Name: "Anna space", InviteToken: uuid.NewString(), CreatedAt: now}
	owner := &models.Membership{SpaceID: space.SpaceID, UID: uid, Role: models.RoleOwner, JoinedAt: now}
	created, err := s.CreateSpaceIfNoMembership(ctx, space, owner)
	if err != nil || !created {
		t.Fatalf("create space error: %v (created=%v)", err, created)
	}

	second := &models.Space{SpaceID: uuid.NewString(), Name: "again", InviteToken: uuid.NewString(), CreatedAt: now}
	created, err = s.CreateSpaceIfNoMembership(ctx, second, &models.Membership{SpaceID: second.SpaceID, UID: uid, Role: models.RoleOwner, JoinedAt: now})
	if err != nil || created {
		t.Fatalf("second space must not be created: %v (created=%v)", err, created)
	}

	user, err := s.GetUser(ctx, uid)
	if err != nil || user.ActiveSpaceID != space.SpaceID {
		t.Fatalf("active space not set: %+v (%v)", user, err)
	}

	found, err := s.GetSpaceByInviteToken(ctx, space.InviteToken)
	if err != nil || found.SpaceID != space.SpaceID {
		t.Fatalf("token lookup failed: %+v (%v)", found, err)
	}

	guest := uuid.NewString()
	err = s.UpdateMembers(ctx, space.SpaceID, func(members []*models.Membership) ([]*models.Membership, []string, error) {
		if len(members) != 1 {
			return nil, nil, errs.NewConflictError("unexpected member count")
		}
		return []*models.Membership{{SpaceID: space.SpaceID, UID: guest, Role: models.RoleMemberFull, JoinedAt: now}}, nil, nil
	})
	if err != nil {
		t.Fatalf("update members error: %v", err)
	}

	err = s.UpdateMembers(ctx, space.SpaceID, func(members []*models.Membership) ([]*models.Membership, []string, error) {
		return nil, nil, errs.NewConflictError("stop")
	})
	var conflict *errs.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("typed error should pass through, got %v", err)
	}

	members, err := s.ListMembers(ctx, space.SpaceID)
	if err != nil || len(members) != 2 {
		t.Fatalf("expected 2 members, got %d (%v)", len(members), err)
	}
}
