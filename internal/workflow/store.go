package workflow

import (
	"context"
	"time"
)

// Store describes persistence operations required by the workflow and
// identity subsystem.
type Store interface {
	Organizations(ctx context.Context) OrganizationStore
	Users(ctx context.Context) UserStore
	Groups(ctx context.Context) GroupStore
	Level1s(ctx context.Context) Level1Store
	Level2s(ctx context.Context) Level2Store
}

// OrganizationStore manages tenant records.
type OrganizationStore interface {
	Create(ctx context.Context, org *Organization) error
	Find(ctx context.Context, id string) (*Organization, error)
	FindByUUID(ctx context.Context, uuid string) (*Organization, error)
	FindByName(ctx context.Context, name string) (*Organization, error)
	List(ctx context.Context) ([]*Organization, error)
	Update(ctx context.Context, id string, upd OrganizationUpdate) (*Organization, error)
}

// UserStore manages identity records.
type UserStore interface {
	Create(ctx context.Context, u *CoreUser) error
	Find(ctx context.Context, id string) (*CoreUser, error)
	FindByEmail(ctx context.Context, email string) (*CoreUser, error)
	// ListActiveByEmail returns every active user sharing the address.
	// Normally at most one, but duplicates are tolerated.
	ListActiveByEmail(ctx context.Context, email string) ([]*CoreUser, error)
	ListByOrg(ctx context.Context, orgID string) ([]*CoreUser, error)
	// RegisteredEmails reports which of the given addresses already map
	// to a user record.
	RegisteredEmails(ctx context.Context, emails []string) (map[string]bool, error)
	Update(ctx context.Context, id string, upd UserUpdate) (*CoreUser, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// GroupStore manages permission grants and user membership. Membership
// is an explicit relation resolved on demand, never lazily traversed.
type GroupStore interface {
	Create(ctx context.Context, g *CoreGroup) error
	Find(ctx context.Context, id string) (*CoreGroup, error)
	ListByOrg(ctx context.Context, orgID string) ([]*CoreGroup, error)
	// ListForUser returns every group the user is a member of.
	ListForUser(ctx context.Context, userID string) ([]*CoreGroup, error)
	// FindOrgAdmin returns the bootstrap admin group of an organization.
	FindOrgAdmin(ctx context.Context, orgID string) (*CoreGroup, error)
	AttachUser(ctx context.Context, userID, groupID string) error
	DetachUser(ctx context.Context, userID, groupID string) error
	Update(ctx context.Context, id string, upd GroupUpdate) (*CoreGroup, error)
	Delete(ctx context.Context, id string) error
}

// Level1Store manages top-tier workflow entities.
type Level1Store interface {
	Create(ctx context.Context, wl1 *WorkflowLevel1) error
	Find(ctx context.Context, id string) (*WorkflowLevel1, error)
	ListByOrg(ctx context.Context, orgID string) ([]*WorkflowLevel1, error)
	Update(ctx context.Context, id string, upd Level1Update) (*WorkflowLevel1, error)
	Delete(ctx context.Context, id string) error
}

// Level2Store manages second-tier workflow entities.
type Level2Store interface {
	Create(ctx context.Context, wl2 *WorkflowLevel2) error
	Find(ctx context.Context, id string) (*WorkflowLevel2, error)
	ListByLevel1(ctx context.Context, wl1ID string) ([]*WorkflowLevel2, error)
	Update(ctx context.Context, id string, upd Level2Update) (*WorkflowLevel2, error)
	Delete(ctx context.Context, id string) error
}

// OrganizationUpdate carries optional field changes.
type OrganizationUpdate struct {
	Name        *string
	Description *string
	Level1Label *string
	Level2Label *string
	Level3Label *string
	Level4Label *string
}

// UserUpdate carries optional field changes. Password is a plaintext
// value hashed by the service before it reaches the store.
type UserUpdate struct {
	Email     *string
	FirstName *string
	LastName  *string
	Status    *string
	LastLogin *time.Time
}

// GroupUpdate carries optional field changes. Scope is deliberately
// absent: a group's scope is fixed at creation.
type GroupUpdate struct {
	Name        *string
	Permissions *int
}

// Level1Update carries optional field changes.
type Level1Update struct {
	Name        *string
	Description *string
}

// Level2Update carries optional field changes.
type Level2Update struct {
	Name        *string
	Description *string
	Notes       *string
	ParentID    *string
}
