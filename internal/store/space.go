package store

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/models"
)

type spaceStore struct {
	client *firestore.Client
}

func NewSpaceStore(client *firestore.Client) *spaceStore {
	return &spaceStore{client: client}
}

func (s *spaceStore) GetSpace(ctx context.Context, spaceID string) (*models.Space, error) {
	doc, err := spaceDoc(s.client, spaceID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errs.NewNotFoundError("space not found")
		}
		return nil, errs.NewDatabaseError("read", "failed to get space", err)
	}
	var space models.Space
	if err := doc.DataTo(&space); err != nil {
		return nil, errs.NewDatabaseError("read", "failed to parse space data", err)
	}
	return &space, nil
}

func (s *spaceStore) GetSpaceByInviteToken(ctx context.Context, token string) (*models.Space, error) {
	docs, err := s.client.Collection("spaces").Where("inviteToken", "==", token).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to look up invite token", err)
	}
	if len(docs) == 0 {
		return nil, errs.NewNotFoundError("space not found")
	}
	var space models.Space
	if err := docs[0].DataTo(&space); err != nil {
		return nil, errs.NewDatabaseError("read", "failed to parse space data", err)
	}
	return &space, nil
}

func (s *spaceStore) SetInviteToken(ctx context.Context, spaceID, token string) error {
	_, err := spaceDoc(s.client, spaceID).Update(ctx, []firestore.Update{{Path: "inviteToken", Value: token}})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errs.NewNotFoundError("space not found")
		}
		return errs.NewDatabaseError("update", "failed to set invite token", err)
	}
	return nil
}

func (s *spaceStore) GetMembership(ctx context.Context, spaceID, uid string) (*models.Membership, error) {
	doc, err := membersCollection(s.client, spaceID).Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errs.NewNotFoundError("membership not found")
		}
		return nil, errs.NewDatabaseError("read", "failed to get membership", err)
	}
	var m models.Membership
	if err := doc.DataTo(&m); err != nil {
		return nil, errs.NewDatabaseError("read", "failed to parse membership data", err)
	}
	return &m, nil
}

// ListMembershipsByUser needs a collection-group index on members.uid.
func (s *spaceStore) ListMembershipsByUser(ctx context.Context, uid string) ([]*models.Membership, error) {
	docs, err := s.client.CollectionGroup("members").Where("uid", "==", uid).Documents(ctx).GetAll()
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to list memberships", err)
	}
	return decodeMemberships(docs)
}

func (s *spaceStore) ListMembers(ctx context.Context, spaceID string) ([]*models.Membership, error) {
	docs, err := membersCollection(s.client, spaceID).Documents(ctx).GetAll()
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to list members", err)
	}
	return decodeMemberships(docs)
}

// UpdateMembers reads the member set and applies fn's changes in one
// transaction.
func (s *spaceStore) UpdateMembers(ctx context.Context, spaceID string, fn models.MemberMutation) error {
	members := membersCollection(s.client, spaceID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(spaceDoc(s.client, spaceID)); err != nil {
			return err
		}
		docs, err := tx.Documents(members).GetAll()
		if err != nil {
			return err
		}
		current, err := decodeMemberships(docs)
		if err != nil {
			return err
		}

		upsert, remove, err := fn(current)
		if err != nil {
			return err
		}
		for _, m := range upsert {
			if err := tx.Set(members.Doc(m.UID), m); err != nil {
				return err
			}
		}
		for _, uid := range remove {
			if err := tx.Delete(members.Doc(uid)); err != nil {
				return err
			}
		}
		return nil
	})
	return txError(err, "space", "update", "failed to update members")
}

// CreateSpaceIfNoMembership creates the space, its owner and the owner's
// active-space pointer unless the owner already belongs to any space.
func (s *spaceStore) CreateSpaceIfNoMembership(ctx context.Context, space *models.Space, owner *models.Membership) (bool, error) {
	var created bool
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		created = false
		existing, err := tx.Documents(s.client.CollectionGroup("members").Where("uid", "==", owner.UID).Limit(1)).GetAll()
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return nil
		}

		if err := tx.Create(spaceDoc(s.client, space.SpaceID), space); err != nil {
			return err
		}
		if err := tx.Create(membersCollection(s.client, space.SpaceID).Doc(owner.UID), owner); err != nil {
			return err
		}
		user := s.client.Collection("users").Doc(owner.UID)
		if err := tx.Set(user, map[string]any{"activeSpaceId": space.SpaceID}, firestore.MergeAll); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, txError(err, "space", "create", "failed to create space")
	}
	return created, nil
}

func decodeMemberships(docs []*firestore.DocumentSnapshot) ([]*models.Membership, error) {
	out := make([]*models.Membership, 0, len(docs))
	for _, d := range docs {
		var m models.Membership
		if err := d.DataTo(&m); err != nil {
			return nil, errs.NewDatabaseError("read", "failed to parse membership data", err)
		}
		out = append(out, &m)
	}
	return out, nil
}
