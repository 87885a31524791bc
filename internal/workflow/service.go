package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MediaMash/buildly-core/internal/ids"
	"github.com/MediaMash/buildly-core/internal/permission"
)

// Service validates and executes workflow-tree and group operations on
// top of a Store.
type Service struct {
	store Store
	now   func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("workflow store is required")
	}
	svc := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateOrganization creates a tenant with default level labels.
func (s *Service) CreateOrganization(ctx context.Context, name, description string) (*Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
	}
	now := s.now().UTC()
	org := &Organization{
		ID:          ids.New(),
		UUID:        uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Level1Label: DefaultLevel1Label,
		Level2Label: DefaultLevel2Label,
		Level3Label: DefaultLevel3Label,
		Level4Label: DefaultLevel4Label,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Organizations(ctx).Create(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// EnsureOrganization returns the organization with the given name,
// creating it when absent. The second result reports whether the
// organization was newly created.
func (s *Service) EnsureOrganization(ctx context.Context, name string) (*Organization, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
	}
	existing, err := s.store.Organizations(ctx).FindByName(ctx, name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	org, err := s.CreateOrganization(ctx, name, "")
	if err != nil {
		// Lost a race against a concurrent signup into the same new
		// organization; fall back to the winner's record.
		if errors.Is(err, ErrConflict) {
			winner, ferr := s.store.Organizations(ctx).FindByName(ctx, name)
			if ferr != nil {
				return nil, false, err
			}
			return winner, false, nil
		}
		return nil, false, err
	}
	return org, true, nil
}

// UpdateOrganization applies optional field changes.
func (s *Service) UpdateOrganization(ctx context.Context, id string, upd OrganizationUpdate) (*Organization, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		trimmed := strings.TrimSpace(*upd.Name)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
		}
		upd.Name = &trimmed
	}
	return s.store.Organizations(ctx).Update(ctx, id, upd)
}

// CreateGroup validates the scope invariant and creates a permission
// grant. Exactly one scope attachment is allowed and it never changes
// after creation.
func (s *Service) CreateGroup(ctx context.Context, g CoreGroup) (*CoreGroup, error) {
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" {
		return nil, fmt.Errorf("%w: group name is required", ErrInvalidInput)
	}
	if !g.Scope.Valid() {
		return nil, fmt.Errorf("%w: unsupported scope %q", ErrInvalidInput, g.Scope)
	}
	g.Permissions = permission.Clamp(int(g.Permissions))

	switch g.Scope {
	case ScopeGlobal:
		if g.OrganizationID != "" || g.WorkflowLevel1ID != "" || g.WorkflowLevel2ID != "" {
			return nil, fmt.Errorf("%w: global group carries no attachment", ErrInvalidInput)
		}
	case ScopeOrganization:
		if g.OrganizationID == "" {
			return nil, fmt.Errorf("%w: organization-scoped group requires organization_id", ErrInvalidInput)
		}
		if g.WorkflowLevel1ID != "" || g.WorkflowLevel2ID != "" {
			return nil, fmt.Errorf("%w: organization-scoped group carries no workflow attachment", ErrInvalidInput)
		}
	case ScopeWorkflowLevel1:
		if g.WorkflowLevel1ID == "" || g.WorkflowLevel2ID != "" {
			return nil, fmt.Errorf("%w: level-1 group requires exactly workflowlevel1_id", ErrInvalidInput)
		}
		wl1, err := s.store.Level1s(ctx).Find(ctx, g.WorkflowLevel1ID)
		if err != nil {
			return nil, err
		}
		g.OrganizationID = wl1.OrganizationID
	case ScopeWorkflowLevel2:
		if g.WorkflowLevel2ID == "" || g.WorkflowLevel1ID != "" {
			return nil, fmt.Errorf("%w: level-2 group requires exactly workflowlevel2_id", ErrInvalidInput)
		}
		org, err := s.OrganizationOfLevel2(ctx, g.WorkflowLevel2ID)
		if err != nil {
			return nil, err
		}
		g.OrganizationID = org.ID
	}

	now := s.now().UTC()
	g.ID = ids.New()
	g.UUID = uuid.NewString()
	g.CreatedAt = now
	g.UpdatedAt = now
	if err := s.store.Groups(ctx).Create(ctx, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// UpdateGroup renames a group or changes its mask. The scope attachment
// stays fixed.
func (s *Service) UpdateGroup(ctx context.Context, id string, upd GroupUpdate) (*CoreGroup, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: group_id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: group name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Permissions != nil {
		clamped := int(permission.Clamp(*upd.Permissions))
		upd.Permissions = &clamped
	}
	return s.store.Groups(ctx).Update(ctx, id, upd)
}

// AttachGroup adds a user to a group.
func (s *Service) AttachGroup(ctx context.Context, userID, groupID string) error {
	userID = strings.TrimSpace(userID)
	groupID = strings.TrimSpace(groupID)
	if userID == "" || groupID == "" {
		return fmt.Errorf("%w: user_id and group_id are required", ErrInvalidInput)
	}
	return s.store.Groups(ctx).AttachUser(ctx, userID, groupID)
}

// CreateLevel1 creates a top-tier workflow entity.
func (s *Service) CreateLevel1(ctx context.Context, orgID, name, description string) (*WorkflowLevel1, error) {
	orgID = strings.TrimSpace(orgID)
	name = strings.TrimSpace(name)
	if orgID == "" || name == "" {
		return nil, fmt.Errorf("%w: organization_id and name are required", ErrInvalidInput)
	}
	if _, err := s.store.Organizations(ctx).Find(ctx, orgID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	wl1 := &WorkflowLevel1{
		ID:             ids.New(),
		UUID:           uuid.NewString(),
		OrganizationID: orgID,
		Name:           name,
		Description:    strings.TrimSpace(description),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Level1s(ctx).Create(ctx, wl1); err != nil {
		return nil, err
	}
	return wl1, nil
}

// CreateLevel2 creates a second-tier workflow entity under a level-1
// parent, optionally nested under another level-2 entity.
func (s *Service) CreateLevel2(ctx context.Context, wl1ID, parentID, name string) (*WorkflowLevel2, error) {
	wl1ID = strings.TrimSpace(wl1ID)
	name = strings.TrimSpace(name)
	if wl1ID == "" || name == "" {
		return nil, fmt.Errorf("%w: workflowlevel1_id and name are required", ErrInvalidInput)
	}
	if _, err := s.store.Level1s(ctx).Find(ctx, wl1ID); err != nil {
		return nil, err
	}
	parentID = strings.TrimSpace(parentID)
	if parentID != "" {
		parent, err := s.store.Level2s(ctx).Find(ctx, parentID)
		if err != nil {
			return nil, err
		}
		if parent.WorkflowLevel1ID != wl1ID {
			return nil, fmt.Errorf("%w: parent belongs to a different workflowlevel1", ErrInvalidInput)
		}
	}
	now := s.now().UTC()
	wl2 := &WorkflowLevel2{
		ID:               ids.New(),
		UUID:             uuid.NewString(),
		WorkflowLevel1ID: wl1ID,
		ParentID:         parentID,
		Name:             name,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Level2s(ctx).Create(ctx, wl2); err != nil {
		return nil, err
	}
	return wl2, nil
}

// OrganizationOfLevel2 resolves the effective organization of a level-2
// entity through its level-1 parent. The value is derived on every call
// rather than stored on the record.
func (s *Service) OrganizationOfLevel2(ctx context.Context, wl2ID string) (*Organization, error) {
	wl2, err := s.store.Level2s(ctx).Find(ctx, wl2ID)
	if err != nil {
		return nil, err
	}
	wl1, err := s.store.Level1s(ctx).Find(ctx, wl2.WorkflowLevel1ID)
	if err != nil {
		return nil, err
	}
	return s.store.Organizations(ctx).Find(ctx, wl1.OrganizationID)
}

// ParentChain returns the level-2 ancestry of a level-2 entity, nearest
// parent first. The parent pointer is not enforced as a strict tree, so
// traversal stops as soon as a node repeats.
func (s *Service) ParentChain(ctx context.Context, wl2ID string) ([]*WorkflowLevel2, error) {
	seen := map[string]bool{wl2ID: true}
	var chain []*WorkflowLevel2
	current, err := s.store.Level2s(ctx).Find(ctx, wl2ID)
	if err != nil {
		return nil, err
	}
	for current.ParentID != "" {
		if seen[current.ParentID] {
			break
		}
		seen[current.ParentID] = true
		parent, err := s.store.Level2s(ctx).Find(ctx, current.ParentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				break
			}
			return nil, err
		}
		chain = append(chain, parent)
		current = parent
	}
	return chain, nil
}
