package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/GregMSThompson/household-ledger/internal/dto"
	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/events"
	"github.com/GregMSThompson/household-ledger/internal/models"
)

var _ Store = (*memStore)(nil)

// memStore is an in-memory store satisfying every service's store
// interface. Categories are name-based on transactions, like Firestore.
type memStore struct {
	mu           sync.Mutex
	seq          int64
	users        map[string]*models.User
	spaces       map[string]*models.Space
	members      map[string]map[string]*models.Membership
	categories   map[string]*models.Category
	transactions map[string]*models.Transaction
	messages     map[string][]models.AIMessage

	createSpaceCalls int
	createTxErr      error
}

func newMemStore() *memStore {
	return &memStore{
		users:        map[string]*models.User{},
		spaces:       map[string]*models.Space{},
		members:      map[string]map[string]*models.Membership{},
		categories:   map[string]*models.Category{},
		transactions: map[string]*models.Transaction{},
		messages:     map[string][]models.AIMessage{},
	}
}

// seedSpace creates a space with the given uid -> role members.
func (s *memStore) seedSpace(spaceID string, roles map[string]models.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spaces[spaceID] = &models.Space{SpaceID: spaceID, Name: spaceID, InviteToken: "tok-" + spaceID}
	s.members[spaceID] = map[string]*models.Membership{}
	joined := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	uids := make([]string, 0, len(roles))
	for uid := range roles {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	for i, uid := range uids {
		s.members[spaceID][uid] = &models.Membership{
			SpaceID:  spaceID,
			UID:      uid,
			Role:     roles[uid],
			JoinedAt: joined.Add(time.Duration(i) * time.Hour),
		}
		if _, ok := s.users[uid]; !ok {
			s.users[uid] = &models.User{UID: uid, Name: "user " + uid}
		}
	}
}

func (s *memStore) GetUser(ctx context.Context, uid string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[uid]
	if !ok {
		return nil, errs.NewNotFoundError("user not found")
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) GetUsers(ctx context.Context, uids []string) (map[string]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]*models.User{}
	for _, uid := range uids {
		if u, ok := s.users[uid]; ok {
			cp := *u
			out[uid] = &cp
		}
	}
	return out, nil
}

func (s *memStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.UID]; ok {
		return errs.NewAlreadyExistsError("user exists")
	}
	cp := *user
	s.users[user.UID] = &cp
	return nil
}

func (s *memStore) UpdateUserProfile(ctx context.Context, uid, name, avatar string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[uid]
	if !ok {
		return errs.NewNotFoundError("user not found")
	}
	u.Name, u.Avatar, u.UpdatedAt = name, avatar, at
	return nil
}

func (s *memStore) SetActiveSpace(ctx context.Context, uid, spaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[uid]
	if !ok {
		return errs.NewNotFoundError("user not found")
	}
	u.ActiveSpaceID = spaceID
	return nil
}

func (s *memStore) GetSpace(ctx context.Context, spaceID string) (*models.Space, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.spaces[spaceID]
	if !ok {
		return nil, errs.NewNotFoundError("space not found")
	}
	cp := *sp
	return &cp, nil
}

func (s *memStore) GetSpaceByInviteToken(ctx context.Context, token string) (*models.Space, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sp := range s.spaces {
		if sp.InviteToken == token {
			cp := *sp
			return &cp, nil
		}
	}
	return nil, errs.NewNotFoundError("space not found")
}

func (s *memStore) SetInviteToken(ctx context.Context, spaceID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.spaces[spaceID]
	if !ok {
		return errs.NewNotFoundError("space not found")
	}
	sp.InviteToken = token
	return nil
}

func (s *memStore) GetMembership(ctx context.Context, spaceID, uid string) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[spaceID][uid]
	if !ok {
		return nil, errs.NewNotFoundError("membership not found")
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) ListMembershipsByUser(ctx context.Context, uid string) ([]*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Membership
	for _, ms := range s.members {
		if m, ok := ms[uid]; ok {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) ListMembers(ctx context.Context, spaceID string) ([]*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listMembersLocked(spaceID), nil
}

func (s *memStore) listMembersLocked(spaceID string) []*models.Membership {
	out := make([]*models.Membership, 0, len(s.members[spaceID]))
	for _, m := range s.members[spaceID] {
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

func (s *memStore) UpdateMembers(ctx context.Context, spaceID string, fn models.MemberMutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.spaces[spaceID]; !ok {
		return errs.NewNotFoundError("space not found")
	}
	upsert, remove, err := fn(s.listMembersLocked(spaceID))
	if err != nil {
		return err
	}
	if s.members[spaceID] == nil {
		s.members[spaceID] = map[string]*models.Membership{}
	}
	for _, m := range upsert {
		cp := *m
		s.members[spaceID][m.UID] = &cp
	}
	for _, uid := range remove {
		delete(s.members[spaceID], uid)
	}
	return nil
}

func (s *memStore) CreateSpaceIfNoMembership(ctx context.Context, space *models.Space, owner *models.Membership) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createSpaceCalls++
	for _, ms := range s.members {
		if _, ok := ms[owner.UID]; ok {
			return false, nil
		}
	}
	sp := *space
	m := *owner
	s.spaces[space.SpaceID] = &sp
	s.members[space.SpaceID] = map[string]*models.Membership{owner.UID: &m}
	if u, ok := s.users[owner.UID]; ok {
		u.ActiveSpaceID = space.SpaceID
	}
	return true, nil
}

func (s *memStore) ListCategories(ctx context.Context, spaceID string) ([]*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCategoriesLocked(spaceID), nil
}

func (s *memStore) listCategoriesLocked(spaceID string) []*models.Category {
	var out []*models.Category
	for _, c := range s.categories {
		if c.SpaceID == spaceID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (s *memStore) GetCategory(ctx context.Context, spaceID, categoryID string) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[categoryID]
	if !ok || c.SpaceID != spaceID {
		return nil, errs.NewNotFoundError("category not found")
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) CreateCategory(ctx context.Context, c *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.categories[c.CategoryID] = &cp
	return nil
}

func (s *memStore) UpdateCategory(ctx context.Context, c *models.Category, oldName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.categories[c.CategoryID] = &cp
	if c.Name != oldName {
		for _, tx := range s.transactions {
			if tx.SpaceID == c.SpaceID && tx.Category == oldName {
				tx.Category = c.Name
			}
		}
	}
	return nil
}

func (s *memStore) DeleteCategory(ctx context.Context, spaceID, categoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.categories, categoryID)
	return nil
}

func (s *memStore) ResolveCategory(ctx context.Context, candidate *models.Category) (*models.Category, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := models.MatchCategory(s.listCategoriesLocked(candidate.SpaceID), candidate.Name, candidate.Type); c != nil {
		return c, false, nil
	}
	cp := *candidate
	s.categories[candidate.CategoryID] = &cp
	return candidate, true, nil
}

func (s *memStore) CreateTransactions(ctx context.Context, txs []*models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createTxErr != nil {
		return s.createTxErr
	}
	for _, tx := range txs {
		s.seq++
		tx.Seq = s.seq
		cp := *tx
		s.transactions[tx.TransactionID] = &cp
	}
	return nil
}

func (s *memStore) GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[transactionID]
	if !ok {
		return nil, errs.NewNotFoundError("transaction not found")
	}
	cp := *tx
	return &cp, nil
}

func (s *memStore) UpdateTransaction(ctx context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[tx.TransactionID]; !ok {
		return errs.NewNotFoundError("transaction not found")
	}
	cp := *tx
	s.transactions[tx.TransactionID] = &cp
	return nil
}

func (s *memStore) DeleteTransactions(ctx context.Context, spaceID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.transactions, id)
	}
	return nil
}

func (s *memStore) ListTransactions(ctx context.Context, spaceID string, f dto.TransactionFilter) ([]*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Transaction
	for _, tx := range s.transactions {
		if tx.SpaceID != spaceID || !f.InRange(tx.Date) {
			continue
		}
		if f.Type != nil && tx.Type != *f.Type {
			continue
		}
		if f.Status != nil && tx.Status != *f.Status {
			continue
		}
		cp := *tx
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) ClearSpace(ctx context.Context, spaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, tx := range s.transactions {
		if tx.SpaceID == spaceID {
			delete(s.transactions, id)
		}
	}
	for id, c := range s.categories {
		if c.SpaceID == spaceID {
			delete(s.categories, id)
		}
	}
	return nil
}

func (s *memStore) SaveMessage(ctx context.Context, uid, sessionID string, msg models.AIMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := uid + "/" + sessionID
	s.messages[key] = append(s.messages[key], msg)
	return nil
}

func (s *memStore) ListMessages(ctx context.Context, uid, sessionID string, limit int) ([]models.AIMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[uid+"/"+sessionID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]models.AIMessage(nil), msgs...), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}
