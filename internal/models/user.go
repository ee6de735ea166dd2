package models

import (
	"time"
)

type User struct {
	UID           string    `firestore:"uid" json:"uid"`
	Name          string    `firestore:"name" json:"name"`
	Avatar        string    `firestore:"avatar,omitempty" json:"avatar,omitempty"`
	ActiveSpaceID string    `firestore:"activeSpaceId,omitempty" json:"activeSpaceId,omitempty"`
	CreatedAt     time.Time `firestore:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt" json:"updatedAt"`
}

// Identity is the authenticated caller as resolved by the auth middleware.
type Identity struct {
	UID       string
	FirstName string
	LastName  string
	Avatar    string
}

func (i Identity) DisplayName() string {
	switch {
	case i.FirstName != "" && i.LastName != "":
		return i.FirstName + " " + i.LastName
	case i.FirstName != "":
		return i.FirstName
	default:
		return i.LastName
	}
}
