package store

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/models"
)

type userStore struct {
	client     *firestore.Client
	collection *firestore.CollectionRef
}

func NewUserStore(client *firestore.Client) *userStore {
	return &userStore{
		client:     client,
		collection: client.Collection("users"),
	}
}

func (us *userStore) CreateUser(ctx context.Context, user *models.User) error {
	if _, err := us.collection.Doc(user.UID).Create(ctx, user); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errs.NewAlreadyExistsError("user already exists")
		}
		return errs.NewDatabaseError("create", "failed to create user", err)
	}
	return nil
}

func (us *userStore) UpdateUserProfile(ctx context.Context, uid, name, avatar string, at time.Time) error {
	return us.update(ctx, uid, []firestore.Update{
		{Path: "name", Value: name},
		{Path: "avatar", Value: avatar},
		{Path: "updatedAt", Value: at},
	})
}

// SetActiveSpace records the user's selected space. An empty spaceID clears
// the selection.
func (us *userStore) SetActiveSpace(ctx context.Context, uid, spaceID string) error {
	return us.update(ctx, uid, []firestore.Update{
		{Path: "activeSpaceId", Value: spaceID},
		{Path: "updatedAt", Value: time.Now()},
	})
}

func (us *userStore) update(ctx context.Context, uid string, updates []firestore.Update) error {
	if _, err := us.collection.Doc(uid).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return errs.NewNotFoundError("user not found")
		}
		return errs.NewDatabaseError("update", "failed to update user", err)
	}
	return nil
}

func (us *userStore) GetUser(ctx context.Context, uid string) (*models.User, error) {
	var user models.User

	doc, err := us.collection.Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errs.NewNotFoundError("user not found")
		}
		return nil, errs.NewDatabaseError("read", "failed to get user", err)
	}
	if err := doc.DataTo(&user); err != nil {
		return nil, errs.NewDatabaseError("read", "failed to parse user data", err)
	}

	return &user, nil
}

// GetUsers returns the users that exist among uids, keyed by uid.
func (us *userStore) GetUsers(ctx context.Context, uids []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User, len(uids))
	if len(uids) == 0 {
		return out, nil
	}

	refs := make([]*firestore.DocumentRef, len(uids))
	for i, uid := range uids {
		refs[i] = us.collection.Doc(uid)
	}
	snaps, err := us.client.GetAll(ctx, refs)
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to get users", err)
	}
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		var user models.User
		if err := snap.DataTo(&user); err != nil {
			return nil, errs.NewDatabaseError("read", "failed to parse user data", err)
		}
		out[user.UID] = &user
	}
	return out, nil
}
