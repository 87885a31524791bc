package workflow

import (
	"time"

	"github.com/MediaMash/buildly-core/internal/permission"
)

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// Default display labels for the four workflow tiers of a new organization.
const (
	DefaultLevel1Label = "Program"
	DefaultLevel2Label = "Project"
	DefaultLevel3Label = "Component"
	DefaultLevel4Label = "Activity"
)

// RoleOrgAdmin names the bootstrap group attached to the first user of a
// brand-new organization.
const RoleOrgAdmin = "OrgAdmin"

// Organization is the tenant boundary. Every user and workflow level
// belongs to exactly one organization.
type Organization struct {
	ID          string    `json:"id"`
	UUID        string    `json:"organization_uuid"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Level1Label string    `json:"level_1_label"`
	Level2Label string    `json:"level_2_label"`
	Level3Label string    `json:"level_3_label"`
	Level4Label string    `json:"level_4_label"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CoreUser is the identity record. OrganizationID is empty only while a
// signup is still being onboarded.
type CoreUser struct {
	ID             string    `json:"id"`
	UUID           string    `json:"core_user_uuid"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name,omitempty"`
	LastName       string    `json:"last_name,omitempty"`
	PasswordHash   string    `json:"-"`
	Status         string    `json:"status"`
	LastLogin      time.Time `json:"last_login,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Active reports whether the user may authenticate and receive reset
// notifications.
func (u *CoreUser) Active() bool {
	return u != nil && u.Status == UserStatusActive
}

// ScopeKind identifies the hierarchy node a permission grant applies to.
// A group carries exactly one scope.
type ScopeKind string

const (
	// ScopeGlobal grants apply to resources of any organization.
	ScopeGlobal ScopeKind = "global"
	// ScopeOrganization grants apply to every resource of the group's
	// organization.
	ScopeOrganization ScopeKind = "organization"
	// ScopeWorkflowLevel1 grants apply to one level-1 entity and every
	// level-2 entity underneath it.
	ScopeWorkflowLevel1 ScopeKind = "workflowlevel1"
	// ScopeWorkflowLevel2 grants apply to exactly one level-2 entity.
	ScopeWorkflowLevel2 ScopeKind = "workflowlevel2"
)

// Valid reports whether the kind is one of the four defined scopes.
func (k ScopeKind) Valid() bool {
	switch k {
	case ScopeGlobal, ScopeOrganization, ScopeWorkflowLevel1, ScopeWorkflowLevel2:
		return true
	}
	return false
}

// CoreGroup is a named permission grant: a CRUD mask attached to one
// scope. The scope is fixed at creation time.
type CoreGroup struct {
	ID               string          `json:"id"`
	UUID             string          `json:"uuid"`
	OrganizationID   string          `json:"organization_id,omitempty"`
	Name             string          `json:"name"`
	Permissions      permission.Mask `json:"permissions"`
	Scope            ScopeKind       `json:"scope"`
	WorkflowLevel1ID string          `json:"workflowlevel1_id,omitempty"`
	WorkflowLevel2ID string          `json:"workflowlevel2_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// WorkflowLevel1 is the top tier of the resource tree, scoped to an
// organization.
type WorkflowLevel1 struct {
	ID             string     `json:"id"`
	UUID           string     `json:"level1_uuid"`
	OrganizationID string     `json:"organization_id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// WorkflowLevel2 nests under a WorkflowLevel1 and optionally under
// another WorkflowLevel2. Its organization is always derived from the
// parent level-1 entity, never stored on the record itself.
type WorkflowLevel2 struct {
	ID               string    `json:"id"`
	UUID             string    `json:"level2_uuid"`
	WorkflowLevel1ID string    `json:"workflowlevel1_id"`
	ParentID         string    `json:"parent_workflowlevel2,omitempty"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	CreatedByID      string    `json:"created_by,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ResourceKind identifies the type of a target resource reference.
type ResourceKind string

const (
	ResourceOrganization   ResourceKind = "organization"
	ResourceWorkflowLevel1 ResourceKind = "workflowlevel1"
	ResourceWorkflowLevel2 ResourceKind = "workflowlevel2"
)

// Resource is a reference to an authorization target.
type Resource struct {
	Kind ResourceKind
	ID   string
}

// Organization-, level-1- and level-2-shaped resource references.
func OrgResource(id string) Resource {
	return Resource{Kind: ResourceOrganization, ID: id}
}

func Level1Resource(id string) Resource {
	return Resource{Kind: ResourceWorkflowLevel1, ID: id}
}

func Level2Resource(id string) Resource {
	return Resource{Kind: ResourceWorkflowLevel2, ID: id}
}
