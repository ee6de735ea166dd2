package store

import (
	"context"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/models"
)

type categoryStore struct {
	client *firestore.Client
}

func NewCategoryStore(client *firestore.Client) *categoryStore {
	return &categoryStore{client: client}
}

func (s *categoryStore) ListCategories(ctx context.Context, spaceID string) ([]*models.Category, error) {
	docs, err := categoriesCollection(s.client, spaceID).OrderBy("createdAt", firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to list categories", err)
	}
	return decodeCategories(docs)
}

func (s *categoryStore) GetCategory(ctx context.Context, spaceID, categoryID string) (*models.Category, error) {
	doc, err := categoriesCollection(s.client, spaceID).Doc(categoryID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errs.NewNotFoundError("category not found")
		}
		return nil, errs.NewDatabaseError("read", "failed to get category", err)
	}
	var c models.Category
	if err := doc.DataTo(&c); err != nil {
		return nil, errs.NewDatabaseError("read", "failed to parse category data", err)
	}
	return &c, nil
}

func (s *categoryStore) CreateCategory(ctx context.Context, c *models.Category) error {
	if _, err := categoriesCollection(s.client, c.SpaceID).Doc(c.CategoryID).Create(ctx, c); err != nil {
		return errs.NewDatabaseError("create", "failed to create category", err)
	}
	return nil
}

// UpdateCategory saves c and, on a rename, moves every transaction whose
// category equals oldName to the new name in the same transaction.
func (s *categoryStore) UpdateCategory(ctx context.Context, c *models.Category, oldName string) error {
	ref := categoriesCollection(s.client, c.SpaceID).Doc(c.CategoryID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			return err
		}
		var renamed []*firestore.DocumentSnapshot
		if c.Name != oldName {
			q := transactionsCollection(s.client, c.SpaceID).Where("category", "==", oldName)
			docs, err := tx.Documents(q).GetAll()
			if err != nil {
				return err
			}
			renamed = docs
		}

		if err := tx.Set(ref, c); err != nil {
			return err
		}
		for _, d := range renamed {
			updates := []firestore.Update{{Path: "category", Value: c.Name}}
			// only rows of the category's own type are linked to it
			if typ, _ := d.Data()["type"].(string); typ == string(c.Type) {
				updates = append(updates, firestore.Update{Path: "categoryId", Value: c.CategoryID})
			}
			if err := tx.Update(d.Ref, updates); err != nil {
				return err
			}
		}
		return nil
	})
	return txError(err, "category", "update", "failed to update category")
}

func (s *categoryStore) DeleteCategory(ctx context.Context, spaceID, categoryID string) error {
	if _, err := categoriesCollection(s.client, spaceID).Doc(categoryID).Delete(ctx); err != nil {
		return errs.NewDatabaseError("delete", "failed to delete category", err)
	}
	return nil
}

// ResolveCategory returns the oldest category matching candidate's name and
// type, or creates candidate. Lookup and insert share one transaction.
func (s *categoryStore) ResolveCategory(ctx context.Context, candidate *models.Category) (*models.Category, bool, error) {
	coll := categoriesCollection(s.client, candidate.SpaceID)
	var (
		resolved *models.Category
		created  bool
	)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		resolved, created = nil, false
		docs, err := tx.Documents(coll.Where("type", "==", string(candidate.Type))).GetAll()
		if err != nil {
			return err
		}
		existing, err := decodeCategories(docs)
		if err != nil {
			return err
		}
		sort.SliceStable(existing, func(i, j int) bool { return existing[i].CreatedAt.Before(existing[j].CreatedAt) })

		if match := models.MatchCategory(existing, candidate.Name, candidate.Type); match != nil {
			resolved = match
			return nil
		}
		if err := tx.Create(coll.Doc(candidate.CategoryID), candidate); err != nil {
			return err
		}
		resolved, created = candidate, true
		return nil
	})
	if err != nil {
		return nil, false, txError(err, "category", "create", "failed to resolve category")
	}
	return resolved, created, nil
}

func decodeCategories(docs []*firestore.DocumentSnapshot) ([]*models.Category, error) {
	out := make([]*models.Category, 0, len(docs))
	for _, d := range docs {
		var c models.Category
		if err := d.DataTo(&c); err != nil {
			return nil, errs.NewDatabaseError("read", "failed to parse category data", err)
		}
		out = append(out, &c)
	}
	return out, nil
}
