package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/GregMSThompson/household-ledger/internal/dto"
	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/models"
	"github.com/GregMSThompson/household-ledger/pkg/logger"
)

type userStore interface {
	GetUser(ctx context.Context, uid string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUserProfile(ctx context.Context, uid, name, avatar string, at time.Time) error
	SetActiveSpace(ctx context.Context, uid, spaceID string) error
}

type membershipStore interface {
	userStore
	memberGetter
	GetSpace(ctx context.Context, spaceID string) (*models.Space, error)
	ListMembershipsByUser(ctx context.Context, uid string) ([]*models.Membership, error)
	// CreateSpaceIfNoMembership creates space, the owner membership and the
	// user's active-space pointer in one atomic step, unless the user
	// already holds any membership, in which case it reports false.
	CreateSpaceIfNoMembership(ctx context.Context, space *models.Space, owner *models.Membership) (bool, error)
}

type membershipService struct {
	store    membershipStore
	group    singleflight.Group
	clockNow func() time.Time
}

func NewMembershipService(store membershipStore) *membershipService {
	return &membershipService{
		store:    store,
		clockNow: time.Now,
	}
}

// ResolveMembership returns the caller's membership in spaceID, or a
// NotFoundError when there is none.
func (s *membershipService) ResolveMembership(ctx context.Context, uid, spaceID string) (*models.Membership, error) {
	return s.store.GetMembership(ctx, spaceID, uid)
}

// EnsureUser creates the user on first sight and keeps the display name and
// avatar in step with the identity provider afterwards.
func (s *membershipService) EnsureUser(ctx context.Context, id models.Identity) (*models.User, error) {
	log := logger.FromContext(ctx)
	now := s.clockNow()

	user, err := s.store.GetUser(ctx, id.UID)
	switch {
	case err == nil:
		if user.Name != id.DisplayName() || user.Avatar != id.Avatar {
			if err := s.store.UpdateUserProfile(ctx, id.UID, id.DisplayName(), id.Avatar, now); err != nil {
				return nil, err
			}
			user.Name, user.Avatar, user.UpdatedAt = id.DisplayName(), id.Avatar, now
		}
		return user, nil
	case !isNotFound(err):
		return nil, err
	}

	user = &models.User{
		UID:       id.UID,
		Name:      id.DisplayName(),
		Avatar:    id.Avatar,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if isAlreadyExists(err) {
			return s.store.GetUser(ctx, id.UID)
		}
		log.Error("failed to create user", "error", err)
		return nil, err
	}
	log.Info("user created")
	return user, nil
}

// MyDefaultSpace returns the caller's active space, creating a personal
// space on first access. Concurrent calls for one user in this process
// share a single resolution; across processes the store's atomic
// create-if-absent keeps a second space from appearing.
func (s *membershipService) MyDefaultSpace(ctx context.Context, id models.Identity) (dto.SpaceWithRole, error) {
	v, err, _ := s.group.Do(id.UID, func() (any, error) {
		return s.myDefaultSpace(ctx, id)
	})
	if err != nil {
		return dto.SpaceWithRole{}, err
	}
	return v.(dto.SpaceWithRole), nil
}

func (s *membershipService) myDefaultSpace(ctx context.Context, id models.Identity) (dto.SpaceWithRole, error) {
	log := logger.FromContext(ctx)

	user, err := s.EnsureUser(ctx, id)
	if err != nil {
		return dto.SpaceWithRole{}, err
	}

	if user.ActiveSpaceID != "" {
		m, err := s.store.GetMembership(ctx, user.ActiveSpaceID, id.UID)
		switch {
		case err == nil:
			return s.withSpace(ctx, m)
		case !isNotFound(err):
			return dto.SpaceWithRole{}, err
		}
		log.Info("active space no longer available", "space_id", user.ActiveSpaceID)
	}

	// Two passes: if a concurrent request creates the space between our
	// read and our write, the second pass picks it up.
	for attempt := 0; attempt < 2; attempt++ {
		memberships, err := s.store.ListMembershipsByUser(ctx, id.UID)
		if err != nil {
			return dto.SpaceWithRole{}, err
		}
		if len(memberships) > 0 {
			m := pickDefaultMembership(memberships)
			if err := s.store.SetActiveSpace(ctx, id.UID, m.SpaceID); err != nil {
				return dto.SpaceWithRole{}, err
			}
			return s.withSpace(ctx, m)
		}

		now := s.clockNow()
		space := &models.Space{
			SpaceID:     uuid.NewString(),
			Name:        personalSpaceName(id),
			InviteToken: newInviteToken(),
			CreatedAt:   now,
		}
		owner := &models.Membership{
			SpaceID:  space.SpaceID,
			UID:      id.UID,
			Role:     models.RoleOwner,
			JoinedAt: now,
		}
		created, err := s.store.CreateSpaceIfNoMembership(ctx, space, owner)
		if err != nil {
			return dto.SpaceWithRole{}, err
		}
		if created {
			log.Info("personal space created", "space_id", space.SpaceID)
			return dto.SpaceWithRole{Space: space, Role: owner.Role}, nil
		}
	}

	return dto.SpaceWithRole{}, errs.NewConflictError("space resolution did not settle, retry the request")
}

// SetActiveSpace makes spaceID the caller's default space.
func (s *membershipService) SetActiveSpace(ctx context.Context, uid, spaceID string) (dto.SpaceWithRole, error) {
	m, err := requireMember(ctx, s.store, uid, spaceID)
	if err != nil {
		return dto.SpaceWithRole{}, err
	}
	if err := s.store.SetActiveSpace(ctx, uid, spaceID); err != nil {
		return dto.SpaceWithRole{}, err
	}
	logger.FromContext(ctx).Info("active space selected", "space_id", spaceID)
	return s.withSpace(ctx, m)
}

func (s *membershipService) ListMySpaces(ctx context.Context, uid string) ([]dto.SpaceWithRole, error) {
	memberships, err := s.store.ListMembershipsByUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	sortMemberships(memberships)

	out := make([]dto.SpaceWithRole, 0, len(memberships))
	for _, m := range memberships {
		sw, err := s.withSpace(ctx, m)
		if err != nil {
			return nil, err
		}
		out = append(out, sw)
	}
	return out, nil
}

func (s *membershipService) withSpace(ctx context.Context, m *models.Membership) (dto.SpaceWithRole, error) {
	space, err := s.store.GetSpace(ctx, m.SpaceID)
	if err != nil {
		return dto.SpaceWithRole{}, err
	}
	return dto.SpaceWithRole{Space: space, Role: m.Role}, nil
}

// pickDefaultMembership prefers a space the user joined over one they own,
// so a shared household budget wins over an untouched personal space.
func pickDefaultMembership(ms []*models.Membership) *models.Membership {
	sorted := append([]*models.Membership(nil), ms...)
	sortMemberships(sorted)
	for _, m := range sorted {
		if m.Role != models.RoleOwner {
			return m
		}
	}
	return sorted[0]
}

func sortMemberships(ms []*models.Membership) {
	sort.SliceStable(ms, func(i, j int) bool {
		if !ms[i].JoinedAt.Equal(ms[j].JoinedAt) {
			return ms[i].JoinedAt.Before(ms[j].JoinedAt)
		}
		return ms[i].SpaceID < ms[j].SpaceID
	})
}

func personalSpaceName(id models.Identity) string {
	name := strings.TrimSpace(id.FirstName)
	if name == "" {
		name = strings.TrimSpace(id.DisplayName())
	}
	if name == "" {
		return "My space"
	}
	return fmt.Sprintf("%s space", name)
}

func newInviteToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
