package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GregMSThompson/household-ledger/internal/dto"
	"github.com/GregMSThompson/household-ledger/internal/events"
	"github.com/GregMSThompson/household-ledger/internal/models"
	"github.com/GregMSThompson/household-ledger/pkg/logger"
)

type categoryStore interface {
	memberGetter
	ListCategories(ctx context.Context, spaceID string) ([]*models.Category, error)
	GetCategory(ctx context.Context, spaceID, categoryID string) (*models.Category, error)
	CreateCategory(ctx context.Context, c *models.Category) error
	// UpdateCategory persists c. When the name changed, stores that keep
	// the category name on transactions rewrite rows whose stored name
	// equals oldName exactly, in the same write.
	UpdateCategory(ctx context.Context, c *models.Category, oldName string) error
	DeleteCategory(ctx context.Context, spaceID, categoryID string) error
	// ResolveCategory returns the category matching candidate by
	// models.CategoryKey, creating candidate when none exists. The lookup
	// and insert happen atomically.
	ResolveCategory(ctx context.Context, candidate *models.Category) (*models.Category, bool, error)
}

type categoryService struct {
	store     categoryStore
	publisher eventPublisher
	clockNow  func() time.Time
}

func NewCategoryService(store categoryStore, publisher eventPublisher) *categoryService {
	return &categoryService{
		store:     store,
		publisher: publisher,
		clockNow:  time.Now,
	}
}

func (s *categoryService) List(ctx context.Context, uid, spaceID string) ([]*models.Category, error) {
	if _, err := requireMember(ctx, s.store, uid, spaceID); err != nil {
		return nil, err
	}
	return s.store.ListCategories(ctx, spaceID)
}

// Create always inserts, even when a category with the same name and type
// exists. Only the implicit path through Resolve deduplicates.
func (s *categoryService) Create(ctx context.Context, uid, spaceID string, in dto.CategoryCreate) (*models.Category, error) {
	if _, err := requireMember(ctx, s.store, uid, spaceID); err != nil {
		return nil, err
	}
	in, err := in.Normalize()
	if err != nil {
		return nil, err
	}

	c := &models.Category{
		CategoryID: uuid.NewString(),
		SpaceID:    spaceID,
		Name:       in.Name,
		Type:       *in.Type,
		Color:      in.Color,
		Icon:       in.Icon,
		CreatedAt:  s.clockNow(),
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("category created", "space_id", spaceID, "category_id", c.CategoryID)
	return c, nil
}

// Update renames or recolors a category. A rename is visible on every
// transaction that used the old name.
func (s *categoryService) Update(ctx context.Context, uid, spaceID, categoryID string, in dto.CategoryUpdate) (*models.Category, error) {
	if _, err := requireRole(ctx, s.store, uid, spaceID, models.RoleMemberFull); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	c, err := s.store.GetCategory(ctx, spaceID, categoryID)
	if err != nil {
		return nil, err
	}
	oldName := c.Name
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Color != nil {
		c.Color = strings.TrimSpace(*in.Color)
	}
	if in.Icon != nil {
		c.Icon = strings.TrimSpace(*in.Icon)
	}

	if err := s.store.UpdateCategory(ctx, c, oldName); err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	if c.Name != oldName {
		log.Info("category renamed", "space_id", spaceID, "category_id", categoryID)
		publish(ctx, s.publisher, events.New(events.CategoryRenamed, spaceID, uid, categoryID))
	} else {
		log.Info("category updated", "space_id", spaceID, "category_id", categoryID)
	}
	return c, nil
}

// Delete removes the category. Transactions keep the last name they showed.
func (s *categoryService) Delete(ctx context.Context, uid, spaceID, categoryID string) error {
	if _, err := requireRole(ctx, s.store, uid, spaceID, models.RoleMemberFull); err != nil {
		return err
	}
	if _, err := s.store.GetCategory(ctx, spaceID, categoryID); err != nil {
		return err
	}
	if err := s.store.DeleteCategory(ctx, spaceID, categoryID); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("category deleted", "space_id", spaceID, "category_id", categoryID)
	return nil
}

// Resolve maps a free-text category onto an existing one of the same type,
// ignoring case, or creates it. Callers must already have checked access.
func (s *categoryService) Resolve(ctx context.Context, spaceID, name string, t models.TransactionType) (*models.Category, error) {
	candidate := &models.Category{
		CategoryID: uuid.NewString(),
		SpaceID:    spaceID,
		Name:       strings.TrimSpace(name),
		Type:       t,
		Color:      models.DefaultCategoryColor,
		CreatedAt:  s.clockNow(),
	}
	c, created, err := s.store.ResolveCategory(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if created {
		logger.FromContext(ctx).Info("category auto-created", "space_id", spaceID, "category_id", c.CategoryID)
	}
	return c, nil
}
