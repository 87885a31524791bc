package workflow

import (
	"context"
	"sync"

	"github.com/MediaMash/buildly-core/internal/permission"
)

// InMemory implements Store with in-process concurrency safety. Used by
// tests and local development; production runs on the Postgres store.
type InMemory struct {
	mu        sync.RWMutex
	orgs      map[string]*Organization
	users     map[string]*CoreUser
	groups    map[string]*CoreGroup
	level1s   map[string]*WorkflowLevel1
	level2s   map[string]*WorkflowLevel2
	members   map[string]map[string]bool // userID -> groupID set
	userOrder []string
	grpOrder  []string
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		orgs:    make(map[string]*Organization),
		users:   make(map[string]*CoreUser),
		groups:  make(map[string]*CoreGroup),
		level1s: make(map[string]*WorkflowLevel1),
		level2s: make(map[string]*WorkflowLevel2),
		members: make(map[string]map[string]bool),
	}
}

func (s *InMemory) Organizations(ctx context.Context) OrganizationStore { return (*memOrgs)(s) }
func (s *InMemory) Users(ctx context.Context) UserStore                 { return (*memUsers)(s) }
func (s *InMemory) Groups(ctx context.Context) GroupStore               { return (*memGroups)(s) }
func (s *InMemory) Level1s(ctx context.Context) Level1Store             { return (*memLevel1s)(s) }
func (s *InMemory) Level2s(ctx context.Context) Level2Store             { return (*memLevel2s)(s) }

type memOrgs InMemory

func (s *memOrgs) Create(ctx context.Context, org *Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[org.ID]; ok {
		return ErrConflict
	}
	for _, existing := range s.orgs {
		if existing.Name == org.Name {
			return ErrConflict
		}
	}
	cp := *org
	s.orgs[org.ID] = &cp
	return nil
}

func (s *memOrgs) Find(ctx context.Context, id string) (*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *org
	return &cp, nil
}

func (s *memOrgs) FindByUUID(ctx context.Context, uuid string) (*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, org := range s.orgs {
		if org.UUID == uuid {
			cp := *org
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memOrgs) FindByName(ctx context.Context, name string) (*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, org := range s.orgs {
		if org.Name == name {
			cp := *org
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memOrgs) List(ctx context.Context) ([]*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Organization, 0, len(s.orgs))
	for _, org := range s.orgs {
		cp := *org
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memOrgs) Update(ctx context.Context, id string, upd OrganizationUpdate) (*Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Name != nil {
		org.Name = *upd.Name
	}
	if upd.Description != nil {
		org.Description = *upd.Description
	}
	if upd.Level1Label != nil {
		org.Level1Label = *upd.Level1Label
	}
	if upd.Level2Label != nil {
		org.Level2Label = *upd.Level2Label
	}
	if upd.Level3Label != nil {
		org.Level3Label = *upd.Level3Label
	}
	if upd.Level4Label != nil {
		org.Level4Label = *upd.Level4Label
	}
	cp := *org
	return &cp, nil
}

type memUsers InMemory

func (s *memUsers) Create(ctx context.Context, u *CoreUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return ErrConflict
	}
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return ErrConflict
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	s.userOrder = append(s.userOrder, u.ID)
	return nil
}

func (s *memUsers) Find(ctx context.Context, id string) (*CoreUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUsers) FindByEmail(ctx context.Context, email string) (*CoreUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.userOrder {
		if u := s.users[id]; u != nil && u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memUsers) ListActiveByEmail(ctx context.Context, email string) ([]*CoreUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*CoreUser
	for _, id := range s.userOrder {
		if u := s.users[id]; u != nil && u.Email == email && u.Status == UserStatusActive {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memUsers) ListByOrg(ctx context.Context, orgID string) ([]*CoreUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*CoreUser
	for _, id := range s.userOrder {
		if u := s.users[id]; u != nil && u.OrganizationID == orgID {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memUsers) RegisteredEmails(ctx context.Context, emails []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(emails))
	for _, email := range emails {
		for _, u := range s.users {
			if u.Email == email {
				out[email] = true
				break
			}
		}
	}
	return out, nil
}

func (s *memUsers) Update(ctx context.Context, id string, upd UserUpdate) (*CoreUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.Status != nil {
		u.Status = *upd.Status
	}
	if upd.LastLogin != nil {
		u.LastLogin = *upd.LastLogin
	}
	cp := *u
	return &cp, nil
}

func (s *memUsers) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

type memGroups InMemory

func (s *memGroups) Create(ctx context.Context, g *CoreGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[g.ID]; ok {
		return ErrConflict
	}
	for _, existing := range s.groups {
		if existing.OrganizationID == g.OrganizationID && existing.Name == g.Name {
			return ErrConflict
		}
	}
	cp := *g
	s.groups[g.ID] = &cp
	s.grpOrder = append(s.grpOrder, g.ID)
	return nil
}

func (s *memGroups) Find(ctx context.Context, id string) (*CoreGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (s *memGroups) ListByOrg(ctx context.Context, orgID string) ([]*CoreGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*CoreGroup
	for _, id := range s.grpOrder {
		if g := s.groups[id]; g != nil && g.OrganizationID == orgID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memGroups) ListForUser(ctx context.Context, userID string) ([]*CoreGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	memberships := s.members[userID]
	var out []*CoreGroup
	for _, id := range s.grpOrder {
		if memberships[id] {
			cp := *s.groups[id]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memGroups) FindOrgAdmin(ctx context.Context, orgID string) (*CoreGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.groups {
		if g.OrganizationID == orgID && g.Name == RoleOrgAdmin && g.Scope == ScopeOrganization {
			cp := *g
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memGroups) AttachUser(ctx context.Context, userID, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[groupID]; !ok {
		return ErrNotFound
	}
	if s.members[userID] == nil {
		s.members[userID] = make(map[string]bool)
	}
	s.members[userID][groupID] = true
	return nil
}

func (s *memGroups) DetachUser(ctx context.Context, userID, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members[userID], groupID)
	return nil
}

func (s *memGroups) Update(ctx context.Context, id string, upd GroupUpdate) (*CoreGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Name != nil {
		g.Name = *upd.Name
	}
	if upd.Permissions != nil {
		g.Permissions = permission.Clamp(*upd.Permissions)
	}
	cp := *g
	return &cp, nil
}

func (s *memGroups) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return ErrNotFound
	}
	delete(s.groups, id)
	for userID := range s.members {
		delete(s.members[userID], id)
	}
	return nil
}

type memLevel1s InMemory

func (s *memLevel1s) Create(ctx context.Context, wl1 *WorkflowLevel1) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.level1s[wl1.ID]; ok {
		return ErrConflict
	}
	if _, ok := s.orgs[wl1.OrganizationID]; !ok {
		return ErrNotFound
	}
	cp := *wl1
	s.level1s[wl1.ID] = &cp
	return nil
}

func (s *memLevel1s) Find(ctx context.Context, id string) (*WorkflowLevel1, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wl1, ok := s.level1s[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *wl1
	return &cp, nil
}

func (s *memLevel1s) ListByOrg(ctx context.Context, orgID string) ([]*WorkflowLevel1, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*WorkflowLevel1
	for _, wl1 := range s.level1s {
		if wl1.OrganizationID == orgID {
			cp := *wl1
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memLevel1s) Update(ctx context.Context, id string, upd Level1Update) (*WorkflowLevel1, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wl1, ok := s.level1s[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Name != nil {
		wl1.Name = *upd.Name
	}
	if upd.Description != nil {
		wl1.Description = *upd.Description
	}
	cp := *wl1
	return &cp, nil
}

func (s *memLevel1s) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.level1s[id]; !ok {
		return ErrNotFound
	}
	delete(s.level1s, id)
	return nil
}

type memLevel2s InMemory

func (s *memLevel2s) Create(ctx context.Context, wl2 *WorkflowLevel2) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.level2s[wl2.ID]; ok {
		return ErrConflict
	}
	if _, ok := s.level1s[wl2.WorkflowLevel1ID]; !ok {
		return ErrNotFound
	}
	cp := *wl2
	s.level2s[wl2.ID] = &cp
	return nil
}

func (s *memLevel2s) Find(ctx context.Context, id string) (*WorkflowLevel2, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wl2, ok := s.level2s[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *wl2
	return &cp, nil
}

func (s *memLevel2s) ListByLevel1(ctx context.Context, wl1ID string) ([]*WorkflowLevel2, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*WorkflowLevel2
	for _, wl2 := range s.level2s {
		if wl2.WorkflowLevel1ID == wl1ID {
			cp := *wl2
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memLevel2s) Update(ctx context.Context, id string, upd Level2Update) (*WorkflowLevel2, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wl2, ok := s.level2s[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Name != nil {
		wl2.Name = *upd.Name
	}
	if upd.Description != nil {
		wl2.Description = *upd.Description
	}
	if upd.Notes != nil {
		wl2.Notes = *upd.Notes
	}
	if upd.ParentID != nil {
		wl2.ParentID = *upd.ParentID
	}
	cp := *wl2
	return &cp, nil
}

func (s *memLevel2s) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.level2s[id]; !ok {
		return ErrNotFound
	}
	delete(s.level2s, id)
	return nil
}
