// Package events describes ledger changes published for downstream
// consumers such as the notification worker.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TransactionsAdded    Type = "transactions.added"
	TransactionUpdated   Type = "transaction.updated"
	TransactionsDeleted  Type = "transactions.deleted"
	SpaceCleared         Type = "space.cleared"
	CategoryRenamed      Type = "category.renamed"
	MemberJoined         Type = "member.joined"
	MemberRemoved        Type = "member.removed"
	MemberRoleChanged    Type = "member.role_changed"
	OwnershipTransferred Type = "space.ownership_transferred"
)

type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	SpaceID    string    `json:"spaceId"`
	ActorUID   string    `json:"actorUid"`
	SubjectIDs []string  `json:"subjectIds,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

func New(t Type, spaceID, actorUID string, subjects ...string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		SpaceID:    spaceID,
		ActorUID:   actorUID,
		SubjectIDs: subjects,
		OccurredAt: time.Now().UTC(),
	}
}

// Noop drops every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
