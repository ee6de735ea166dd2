package services

import (
	"context"
	"errors"

	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/events"
	"github.com/GregMSThompson/household-ledger/internal/models"
	"github.com/GregMSThompson/household-ledger/pkg/logger"
)

type memberGetter interface {
	GetMembership(ctx context.Context, spaceID, uid string) (*models.Membership, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// requireRole resolves the caller's membership in spaceID and checks it
// grants at least min. A missing membership is reported as Forbidden so a
// caller cannot learn which spaces exist.
func requireRole(ctx context.Context, store memberGetter, uid, spaceID string, min models.Role) (*models.Membership, error) {
	if spaceID == "" {
		return nil, errs.NewValidationError("spaceId is required")
	}
	m, err := store.GetMembership(ctx, spaceID, uid)
	if err != nil {
		var nf *errs.NotFoundError
		if errors.As(err, &nf) {
			return nil, errs.NewForbiddenError("not a member of this space")
		}
		return nil, err
	}
	if !m.Role.AtLeast(min) {
		return nil, errs.NewForbiddenError("role " + string(m.Role) + " cannot perform this action")
	}
	return m, nil
}

func requireMember(ctx context.Context, store memberGetter, uid, spaceID string) (*models.Membership, error) {
	return requireRole(ctx, store, uid, spaceID, models.RoleMemberOwn)
}

// publish sends ev and only logs failures; a lost notification never
// fails a committed change.
func publish(ctx context.Context, p eventPublisher, ev events.Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		logger.FromContext(ctx).Warn("event publish failed", "event_type", ev.Type, "space_id", ev.SpaceID, "error", err)
	}
}

func isNotFound(err error) bool {
	var nf *errs.NotFoundError
	return errors.As(err, &nf)
}

func isAlreadyExists(err error) bool {
	var ae *errs.AlreadyExistsError
	return errors.As(err, &ae)
}
