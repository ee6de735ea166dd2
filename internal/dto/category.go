package dto

import (
	"regexp"
	"strings"

	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/models"
	"github.com/GregMSThompson/household-ledger/pkg/helpers"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type CategoryCreate struct {
	Name  string                  `json:"name"`
	Type  *models.TransactionType `json:"type"`
	Color string                  `json:"color"`
	Icon  string                  `json:"icon"`
}

// Normalize trims input and fills defaults: EXPENSE and the default color.
func (c CategoryCreate) Normalize() (CategoryCreate, error) {
	out := CategoryCreate{
		Name:  strings.TrimSpace(c.Name),
		Type:  helpers.Ptr(helpers.ValueOr(c.Type, models.Expense)),
		Color: strings.TrimSpace(c.Color),
		Icon:  strings.TrimSpace(c.Icon),
	}
	if out.Color == "" {
		out.Color = models.DefaultCategoryColor
	}

	var problems []string
	if out.Name == "" {
		problems = append(problems, "name is required")
	}
	if !out.Type.Valid() {
		problems = append(problems, "type must be INCOME or EXPENSE")
	}
	if !hexColor.MatchString(out.Color) {
		problems = append(problems, "color must be #RRGGBB")
	}
	if len(problems) > 0 {
		return CategoryCreate{}, errs.NewValidationErrors(problems)
	}
	return out, nil
}

type CategoryUpdate struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
	Icon  *string `json:"icon"`
}

func (c CategoryUpdate) Validate() error {
	var problems []string
	if c.Name == nil && c.Color == nil && c.Icon == nil {
		problems = append(problems, "update has no fields")
	}
	if c.Name != nil && strings.TrimSpace(*c.Name) == "" {
		problems = append(problems, "name cannot be empty")
	}
	if c.Color != nil && !hexColor.MatchString(strings.TrimSpace(*c.Color)) {
		problems = append(problems, "color must be #RRGGBB")
	}
	if len(problems) > 0 {
		return errs.NewValidationErrors(problems)
	}
	return nil
}
