package models

import (
	"strings"
	"time"
)

const DefaultCategoryColor = "#3B82F6"

type Category struct {
	CategoryID string          `firestore:"categoryId" json:"categoryId"`
	SpaceID    string          `firestore:"spaceId" json:"spaceId"`
	Name       string          `firestore:"name" json:"name"`
	Type       TransactionType `firestore:"type" json:"type"`
	Color      string          `firestore:"color" json:"color"`
	Icon       string          `firestore:"icon,omitempty" json:"icon,omitempty"`
	CreatedAt  time.Time       `firestore:"createdAt" json:"createdAt"`
}

// CategoryKey is the effective identity used when matching a free-text
// category against existing ones: case-insensitive name within a type.
func CategoryKey(name string, t TransactionType) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + string(t)
}

func (c *Category) Key() string {
	return CategoryKey(c.Name, c.Type)
}

// MatchCategory returns the first category sharing the effective identity
// of (name, t), or nil.
func MatchCategory(existing []*Category, name string, t TransactionType) *Category {
	key := CategoryKey(name, t)
	for _, c := range existing {
		if c.Key() == key {
			return c
		}
	}
	return nil
}
