package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/GregMSThompson/household-ledger/internal/dto"
	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/events"
	"github.com/GregMSThompson/household-ledger/internal/models"
	"github.com/GregMSThompson/household-ledger/pkg/logger"
)

type inviteStore interface {
	memberGetter
	GetUser(ctx context.Context, uid string) (*models.User, error)
	GetUsers(ctx context.Context, uids []string) (map[string]*models.User, error)
	SetActiveSpace(ctx context.Context, uid, spaceID string) error
	GetSpace(ctx context.Context, spaceID string) (*models.Space, error)
	GetSpaceByInviteToken(ctx context.Context, token string) (*models.Space, error)
	SetInviteToken(ctx context.Context, spaceID, token string) error
	ListMembers(ctx context.Context, spaceID string) ([]*models.Membership, error)
	UpdateMembers(ctx context.Context, spaceID string, fn models.MemberMutation) error
}

type profileEnsurer interface {
	EnsureUser(ctx context.Context, id models.Identity) (*models.User, error)
}

type inviteService struct {
	store     inviteStore
	profiles  profileEnsurer
	publisher eventPublisher
	baseURL   string
	clockNow  func() time.Time
}

func NewInviteService(store inviteStore, profiles profileEnsurer, publisher eventPublisher, baseURL string) *inviteService {
	return &inviteService{
		store:     store,
		profiles:  profiles,
		publisher: publisher,
		baseURL:   baseURL,
		clockNow:  time.Now,
	}
}

// GenerateInviteLink returns the space's stable invite URL. It never
// changes the token.
func (s *inviteService) GenerateInviteLink(ctx context.Context, uid, spaceID string) (dto.InviteLink, error) {
	if _, err := requireRole(ctx, s.store, uid, spaceID, models.RoleMemberFull); err != nil {
		return dto.InviteLink{}, err
	}
	space, err := s.store.GetSpace(ctx, spaceID)
	if err != nil {
		return dto.InviteLink{}, err
	}
	return s.link(space.InviteToken), nil
}

// RegenerateInviteToken rotates the token so previously shared links stop
// working.
func (s *inviteService) RegenerateInviteToken(ctx context.Context, uid, spaceID string) (dto.InviteLink, error) {
	if _, err := requireRole(ctx, s.store, uid, spaceID, models.RoleOwner); err != nil {
		return dto.InviteLink{}, err
	}
	token := newInviteToken()
	if err := s.store.SetInviteToken(ctx, spaceID, token); err != nil {
		return dto.InviteLink{}, err
	}
	logger.FromContext(ctx).Info("invite token rotated", "space_id", spaceID)
	return s.link(token), nil
}

// JoinByToken adds the caller to the invited space. Joining twice is not an
// error: the existing membership comes back with AlreadyMember set. The
// first member of an empty space becomes its owner.
func (s *inviteService) JoinByToken(ctx context.Context, id models.Identity, token string) (dto.JoinResult, error) {
	log := logger.FromContext(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		return dto.JoinResult{}, errs.NewValidationError("invite token is required")
	}
	if _, err := s.profiles.EnsureUser(ctx, id); err != nil {
		return dto.JoinResult{}, err
	}

	space, err := s.store.GetSpaceByInviteToken(ctx, token)
	if err != nil {
		if isNotFound(err) {
			return dto.JoinResult{}, errs.NewNotFoundError("invite link is invalid or was rotated")
		}
		return dto.JoinResult{}, err
	}

	var role models.Role
	var already bool
	err = s.store.UpdateMembers(ctx, space.SpaceID, func(members []*models.Membership) ([]*models.Membership, []string, error) {
		if m := findMember(members, id.UID); m != nil {
			role, already = m.Role, true
			return nil, nil, nil
		}
		role, already = models.RoleMemberFull, false
		if len(members) == 0 {
			role = models.RoleOwner
		}
		return []*models.Membership{{
			SpaceID:  space.SpaceID,
			UID:      id.UID,
			Role:     role,
			JoinedAt: s.clockNow(),
		}}, nil, nil
	})
	if err != nil {
		return dto.JoinResult{}, err
	}

	if err := s.store.SetActiveSpace(ctx, id.UID, space.SpaceID); err != nil {
		return dto.JoinResult{}, err
	}

	if !already {
		publish(ctx, s.publisher, events.New(events.MemberJoined, space.SpaceID, id.UID, id.UID))
		log.Info("member joined", "space_id", space.SpaceID, "role", role)
	}
	return dto.JoinResult{Space: space, Role: role, AlreadyMember: already}, nil
}

// SetRole changes another member's role. Only the owner may call it, and
// only member_full and member_own can be assigned.
func (s *inviteService) SetRole(ctx context.Context, actingUID, spaceID, targetUID string, role models.Role) error {
	if role != models.RoleMemberFull && role != models.RoleMemberOwn {
		return errs.NewValidationError("role must be member_full or member_own")
	}
	if _, err := requireMember(ctx, s.store, actingUID, spaceID); err != nil {
		return err
	}

	err := s.store.UpdateMembers(ctx, spaceID, func(members []*models.Membership) ([]*models.Membership, []string, error) {
		if err := requireOwnerIn(members, actingUID, "only the owner can change roles"); err != nil {
			return nil, nil, err
		}
		if targetUID == actingUID {
			return nil, nil, errs.NewConflictError("the owner's role cannot be changed; transfer ownership instead")
		}
		target := findMember(members, targetUID)
		if target == nil {
			return nil, nil, errs.NewNotFoundError("member not found")
		}
		if target.Role == role {
			return nil, nil, nil
		}
		updated := *target
		updated.Role = role
		return []*models.Membership{&updated}, nil, nil
	})
	if err != nil {
		return err
	}

	publish(ctx, s.publisher, events.New(events.MemberRoleChanged, spaceID, actingUID, targetUID))
	logger.FromContext(ctx).Info("member role changed", "space_id", spaceID, "target_uid", targetUID, "role", role)
	return nil
}

// RemoveMember removes targetUID from the space. Members may always leave;
// the owner may leave only as the last member; removing someone else needs
// the owner. The member count is read in the same transaction as the
// delete.
func (s *inviteService) RemoveMember(ctx context.Context, actingUID, spaceID, targetUID string) error {
	if _, err := requireMember(ctx, s.store, actingUID, spaceID); err != nil {
		return err
	}

	err := s.store.UpdateMembers(ctx, spaceID, func(members []*models.Membership) ([]*models.Membership, []string, error) {
		acting := findMember(members, actingUID)
		if acting == nil {
			return nil, nil, errs.NewForbiddenError("not a member of this space")
		}
		if targetUID == actingUID {
			if acting.Role == models.RoleOwner && len(members) > 1 {
				return nil, nil, errs.NewConflictError("the owner cannot leave while other members remain; transfer ownership first")
			}
			return nil, []string{actingUID}, nil
		}
		if acting.Role != models.RoleOwner {
			return nil, nil, errs.NewForbiddenError("only the owner can remove members")
		}
		if findMember(members, targetUID) == nil {
			return nil, nil, errs.NewNotFoundError("member not found")
		}
		return nil, []string{targetUID}, nil
	})
	if err != nil {
		return err
	}

	if user, err := s.store.GetUser(ctx, targetUID); err == nil && user.ActiveSpaceID == spaceID {
		if err := s.store.SetActiveSpace(ctx, targetUID, ""); err != nil {
			return err
		}
	}

	publish(ctx, s.publisher, events.New(events.MemberRemoved, spaceID, actingUID, targetUID))
	logger.FromContext(ctx).Info("member removed", "space_id", spaceID, "target_uid", targetUID)
	return nil
}

// TransferOwnership makes targetUID the owner and demotes the caller to
// member_full in one write.
func (s *inviteService) TransferOwnership(ctx context.Context, actingUID, spaceID, targetUID string) error {
	if _, err := requireMember(ctx, s.store, actingUID, spaceID); err != nil {
		return err
	}
	if targetUID == "" || targetUID == actingUID {
		return errs.NewValidationError("ownership must be transferred to another member")
	}

	err := s.store.UpdateMembers(ctx, spaceID, func(members []*models.Membership) ([]*models.Membership, []string, error) {
		if err := requireOwnerIn(members, actingUID, "only the owner can transfer ownership"); err != nil {
			return nil, nil, err
		}
		target := findMember(members, targetUID)
		if target == nil {
			return nil, nil, errs.NewNotFoundError("member not found")
		}
		prev := *findMember(members, actingUID)
		prev.Role = models.RoleMemberFull
		next := *target
		next.Role = models.RoleOwner
		return []*models.Membership{&prev, &next}, nil, nil
	})
	if err != nil {
		return err
	}

	publish(ctx, s.publisher, events.New(events.OwnershipTransferred, spaceID, actingUID, targetUID))
	logger.FromContext(ctx).Info("ownership transferred", "space_id", spaceID, "target_uid", targetUID)
	return nil
}

// ListMembers returns members with their profile, owner first.
func (s *inviteService) ListMembers(ctx context.Context, uid, spaceID string) ([]dto.Member, error) {
	if _, err := requireMember(ctx, s.store, uid, spaceID); err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	uids := make([]string, len(members))
	for i, m := range members {
		uids[i] = m.UID
	}
	users, err := s.store.GetUsers(ctx, uids)
	if err != nil {
		return nil, err
	}

	out := make([]dto.Member, 0, len(members))
	for _, m := range members {
		member := dto.Member{UID: m.UID, Role: m.Role, JoinedAt: m.JoinedAt}
		if u, ok := users[m.UID]; ok {
			member.Name, member.Avatar = u.Name, u.Avatar
		}
		out = append(out, member)
	}
	sort.SliceStable(out, func(i, j int) bool {
		oi, oj := out[i].Role == models.RoleOwner, out[j].Role == models.RoleOwner
		if oi != oj {
			return oi
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (s *inviteService) link(token string) dto.InviteLink {
	return dto.InviteLink{Token: token, URL: s.baseURL + token}
}

func findMember(members []*models.Membership, uid string) *models.Membership {
	for _, m := range members {
		if m.UID == uid {
			return m
		}
	}
	return nil
}

func requireOwnerIn(members []*models.Membership, uid, message string) error {
	m := findMember(members, uid)
	if m == nil {
		return errs.NewForbiddenError("not a member of this space")
	}
	if m.Role != models.RoleOwner {
		return errs.NewForbiddenError(message)
	}
	return nil
}
