package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/models"
	"github.com/GregMSThompson/household-ledger/pkg/helpers"
)

func newMembershipFixture() (*memStore, *membershipService) {
	store := newMemStore()
	svc := NewMembershipService(store)
	svc.clockNow = func() time.Time { return fixedNow }
	return store, svc
}

func TestMyDefaultSpaceCreatesPersonalSpaceOnce(t *testing.T) {
	store, svc := newMembershipFixture()
	ctx := helpers.TestCtx()
	id := models.Identity{UID: "u1", FirstName: "Anna", LastName: "K"}

	first, err := svc.MyDefaultSpace(ctx, id)
	if err != nil {
		t.Fatalf("MyDefaultSpace: %v", err)
	}
	if first.Role != models.RoleOwner || first.Space.Name != "Anna space" || first.Space.InviteToken == "" {
		t.Fatalf("unexpected personal space: %+v %+v", first, first.Space)
	}

	second, err := svc.MyDefaultSpace(ctx, id)
	if err != nil {
		t.Fatalf("MyDefaultSpace: %v", err)
	}
	if second.Space.SpaceID != first.Space.SpaceID {
		t.Fatalf("second call returned another space: %s vs %s", second.Space.SpaceID, first.Space.SpaceID)
	}
	if store.createSpaceCalls != 1 || len(store.spaces) != 1 {
		t.Fatalf("expected one space creation, got %d calls and %d spaces", store.createSpaceCalls, len(store.spaces))
	}
	if user := store.users["u1"]; user.ActiveSpaceID != first.Space.SpaceID || user.Name != "Anna K" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestMyDefaultSpaceConcurrentCallsShareOneSpace(t *testing.T) {
	store, svc := newMembershipFixture()
	id := models.Identity{UID: "u1", FirstName: "Anna"}

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sw, err := svc.MyDefaultSpace(helpers.TestCtx(), id)
			if err != nil {
				t.Errorf("MyDefaultSpace: %v", err)
				return
			}
			ids[i] = sw.Space.SpaceID
		}(i)
	}
	wg.Wait()

	for _, got := range ids {
		if got != ids[0] {
			t.Fatalf("calls resolved different spaces: %v", ids)
		}
	}
	if len(store.spaces) != 1 {
		t.Fatalf("expected one space, got %d", len(store.spaces))
	}
}

func TestMyDefaultSpacePrefersJoinedSpace(t *testing.T) {
	store, svc := newMembershipFixture()
	store.seedSpace("personal", map[string]models.Role{"u1": models.RoleOwner})
	store.seedSpace("household", map[string]models.Role{"a-owner": models.RoleOwner, "u1": models.RoleMemberFull})

	got, err := svc.MyDefaultSpace(helpers.TestCtx(), models.Identity{UID: "u1", FirstName: "Anna"})
	if err != nil {
		t.Fatalf("MyDefaultSpace: %v", err)
	}
	if got.Space.SpaceID != "household" || got.Role != models.RoleMemberFull {
		t.Fatalf("expected the joined space, got %s (%s)", got.Space.SpaceID, got.Role)
	}
	if store.users["u1"].ActiveSpaceID != "household" {
		t.Fatalf("active space not recorded")
	}
	if store.createSpaceCalls != 0 {
		t.Fatalf("no space should be created")
	}
}

func TestMyDefaultSpaceHonoursActiveSelection(t *testing.T) {
	store, svc := newMembershipFixture()
	ctx := helpers.TestCtx()
	store.seedSpace("personal", map[string]models.Role{"u1": models.RoleOwner})
	store.seedSpace("household", map[string]models.Role{"a-owner": models.RoleOwner, "u1": models.RoleMemberFull})

	if _, err := svc.SetActiveSpace(ctx, "u1", "personal"); err != nil {
		t.Fatalf("SetActiveSpace: %v", err)
	}
	got, err := svc.MyDefaultSpace(ctx, models.Identity{UID: "u1", FirstName: "Anna"})
	if err != nil {
		t.Fatalf("MyDefaultSpace: %v", err)
	}
	if got.Space.SpaceID != "personal" {
		t.Fatalf("explicit selection ignored, got %s", got.Space.SpaceID)
	}

	// Losing the membership falls back to the remaining spaces.
	delete(store.members["personal"], "u1")
	got, err = svc.MyDefaultSpace(ctx, models.Identity{UID: "u1", FirstName: "Anna"})
	if err != nil {
		t.Fatalf("MyDefaultSpace: %v", err)
	}
	if got.Space.SpaceID != "household" {
		t.Fatalf("expected fallback to household, got %s", got.Space.SpaceID)
	}
}

func TestSetActiveSpaceRequiresMembership(t *testing.T) {
	store, svc := newMembershipFixture()
	store.seedSpace("household", map[string]models.Role{"a-owner": models.RoleOwner})
	store.users["u1"] = &models.User{UID: "u1"}

	_, err := svc.SetActiveSpace(helpers.TestCtx(), "u1", "household")
	var forbidden *errs.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
	if store.users["u1"].ActiveSpaceID != "" {
		t.Fatalf("active space must not change")
	}
}

func TestEnsureUserSyncsProfile(t *testing.T) {
	store, svc := newMembershipFixture()
	ctx := helpers.TestCtx()

	if _, err := svc.EnsureUser(ctx, models.Identity{UID: "u1", FirstName: "Anna"}); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	user, err := svc.EnsureUser(ctx, models.Identity{UID: "u1", FirstName: "Anna", LastName: "K", Avatar: "https://a/p.jpg"})
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if user.Name != "Anna K" || store.users["u1"].Avatar != "https://a/p.jpg" {
		t.Fatalf("profile not updated: %+v", store.users["u1"])
	}
}

func TestListMySpacesOrdersByJoinTime(t *testing.T) {
	store, svc := newMembershipFixture()
	store.seedSpace("b", map[string]models.Role{"u1": models.RoleOwner})
	store.seedSpace("a", map[string]models.Role{"u1": models.RoleMemberOwn})
	store.members["a"]["u1"].JoinedAt = fixedNow

	got, err := svc.ListMySpaces(helpers.TestCtx(), "u1")
	if err != nil {
		t.Fatalf("ListMySpaces: %v", err)
	}
	if len(got) != 2 || got[0].Space.SpaceID != "b" || got[1].Role != models.RoleMemberOwn {
		t.Fatalf("unexpected spaces: %+v", got)
	}
}
