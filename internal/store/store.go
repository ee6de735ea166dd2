package store

import (
	"errors"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GregMSThompson/household-ledger/internal/errs"
)

// Store is the Firestore backend. Layout:
//
//	users/{uid}
//	users/{uid}/ai_sessions/{sessionId}/messages/{id}
//	spaces/{spaceId}
//	spaces/{spaceId}/members/{uid}
//	spaces/{spaceId}/categories/{categoryId}
//	spaces/{spaceId}/transactions/{transactionId}
//
// Transactions carry the category name, so a rename rewrites them.
type Store struct {
	*userStore
	*spaceStore
	*categoryStore
	*transactionStore
	*transcriptStore
}

func New(client *firestore.Client) *Store {
	return &Store{
		userStore:        NewUserStore(client),
		spaceStore:       NewSpaceStore(client),
		categoryStore:    NewCategoryStore(client),
		transactionStore: NewTransactionStore(client),
		transcriptStore:  NewTranscriptStore(client),
	}
}

func spaceDoc(client *firestore.Client, spaceID string) *firestore.DocumentRef {
	return client.Collection("spaces").Doc(spaceID)
}

func membersCollection(client *firestore.Client, spaceID string) *firestore.CollectionRef {
	return spaceDoc(client, spaceID).Collection("members")
}

func categoriesCollection(client *firestore.Client, spaceID string) *firestore.CollectionRef {
	return spaceDoc(client, spaceID).Collection("categories")
}

func transactionsCollection(client *firestore.Client, spaceID string) *firestore.CollectionRef {
	return spaceDoc(client, spaceID).Collection("transactions")
}

// txError maps the result of RunTransaction. Typed errors raised inside the
// transaction function pass through untouched.
func txError(err error, what, op, message string) error {
	if err == nil {
		return nil
	}
	if isTyped(err) {
		return err
	}
	if status.Code(err) == codes.NotFound {
		return errs.NewNotFoundError(what + " not found")
	}
	return errs.NewDatabaseError(op, message, err)
}

func isTyped(err error) bool {
	var (
		notFound   *errs.NotFoundError
		forbidden  *errs.ForbiddenError
		conflict   *errs.ConflictError
		validation *errs.ValidationError
		exists     *errs.AlreadyExistsError
	)
	return errors.As(err, &notFound) || errors.As(err, &forbidden) || errors.As(err, &conflict) ||
		errors.As(err, &validation) || errors.As(err, &exists)
}
