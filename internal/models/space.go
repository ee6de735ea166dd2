package models

import "time"

type Role string

const (
	RoleOwner      Role = "owner"
	RoleMemberFull Role = "member_full"
	RoleMemberOwn  Role = "member_own"
)

func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleMemberFull || r == RoleMemberOwn
}

// rank orders roles by mutation scope.
func (r Role) rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleMemberFull:
		return 2
	case RoleMemberOwn:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r grants at least the scope of min.
func (r Role) AtLeast(min Role) bool {
	return r.rank() >= min.rank() && r.rank() > 0
}

type Space struct {
	SpaceID     string    `firestore:"spaceId" json:"spaceId"`
	Name        string    `firestore:"name" json:"name"`
	InviteToken string    `firestore:"inviteToken" json:"-"`
	CreatedAt   time.Time `firestore:"createdAt" json:"createdAt"`
}

type Membership struct {
	SpaceID  string    `firestore:"spaceId" json:"spaceId"`
	UID      string    `firestore:"uid" json:"uid"`
	Role     Role      `firestore:"role" json:"role"`
	JoinedAt time.Time `firestore:"joinedAt" json:"joinedAt"`
}

// MemberMutation inspects the current members of a space and returns the
// memberships to write and the uids to remove. It runs inside the store's
// transaction, so it sees the member set as of the write and may run more
// than once if the store retries.
type MemberMutation func(members []*Membership) (upsert []*Membership, remove []string, err error)
