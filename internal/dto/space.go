package dto

import (
	"time"

	"github.com/GregMSThompson/household-ledger/internal/models"
)

type SpaceWithRole struct {
	Space *models.Space `json:"space"`
	Role  models.Role   `json:"role"`
}

type JoinResult struct {
	Space         *models.Space `json:"space"`
	Role          models.Role   `json:"role"`
	AlreadyMember bool          `json:"alreadyMember"`
}

type InviteLink struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

type Member struct {
	UID      string      `json:"uid"`
	Name     string      `json:"name"`
	Avatar   string      `json:"avatar,omitempty"`
	Role     models.Role `json:"role"`
	JoinedAt time.Time   `json:"joinedAt"`
}

type SetActiveSpaceRequest struct {
	SpaceID string `json:"spaceId"`
}

type SetRoleRequest struct {
	Role models.Role `json:"role"`
}

type TransferOwnershipRequest struct {
	UID string `json:"uid"`
}

type ExportBundle struct {
	Space        *models.Space         `json:"space"`
	ExportedAt   time.Time             `json:"exportedAt"`
	Categories   []*models.Category    `json:"categories"`
	Transactions []*models.Transaction `json:"transactions"`
}
