package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MediaMash/buildly-core/internal/obs"
	"github.com/MediaMash/buildly-core/internal/permission"
)

// Resolver computes effective permission masks by matching a user's
// group memberships against the resource hierarchy. Membership is read
// once per resolution pass; there is no implicit lazy loading.
type Resolver struct {
	store Store
}

// NewResolver constructs a Resolver.
func NewResolver(store Store) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("workflow store is required")
	}
	return &Resolver{store: store}, nil
}

// Access is a snapshot of one user's grants, valid for the duration of
// a single request. Org-admin answers are cached on the snapshot so
// repeated checks within one pass do not recompute.
type Access struct {
	UserID   string
	Groups   []*CoreGroup
	orgAdmin map[string]bool
}

// AccessFor loads the user's group memberships with one observable
// store call and returns the snapshot. A user with no memberships gets
// an empty snapshot, not an error.
func (r *Resolver) AccessFor(ctx context.Context, userID string) (*Access, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	groups, err := r.store.Groups(ctx).ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Access{UserID: userID, Groups: groups, orgAdmin: make(map[string]bool)}, nil
}

// Resolve computes the effective mask for a target resource: the
// bitwise OR across every matching grant. Zero matching grants yield
// the empty mask.
func (r *Resolver) Resolve(ctx context.Context, userID string, res Resource) (permission.Mask, error) {
	access, err := r.AccessFor(ctx, userID)
	if err != nil {
		return permission.None, err
	}
	return r.ResolveWith(ctx, access, res)
}

// ResolveWith computes the effective mask using an existing snapshot.
func (r *Resolver) ResolveWith(ctx context.Context, access *Access, res Resource) (permission.Mask, error) {
	if res.ID == "" {
		return permission.None, fmt.Errorf("%w: resource id is required", ErrInvalidInput)
	}
	target, err := r.describe(ctx, res)
	if err != nil {
		return permission.None, err
	}
	mask := permission.None
	for _, g := range access.Groups {
		if matches(g, target) {
			mask |= g.Permissions
		}
	}
	obs.AuthorizationResolved(string(res.Kind))
	return mask, nil
}

// Require resolves the effective mask and fails with ErrNotAuthorized
// when any of the needed flags is missing.
func (r *Resolver) Require(ctx context.Context, userID string, res Resource, need permission.Mask) (*Access, error) {
	access, err := r.AccessFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	mask, err := r.ResolveWith(ctx, access, res)
	if err != nil {
		return nil, err
	}
	if !mask.Has(need) {
		return nil, ErrNotAuthorized
	}
	return access, nil
}

// IsOrgAdmin reports whether the snapshot carries the full mask at
// global or organization scope within the given organization. The
// answer is cached on the snapshot.
func (a *Access) IsOrgAdmin(orgID string) bool {
	if a == nil || orgID == "" {
		return false
	}
	if cached, ok := a.orgAdmin[orgID]; ok {
		return cached
	}
	admin := false
	for _, g := range a.Groups {
		if !g.Permissions.Has(permission.Full) {
			continue
		}
		if g.Scope == ScopeGlobal || (g.Scope == ScopeOrganization && g.OrganizationID == orgID) {
			admin = true
			break
		}
	}
	a.orgAdmin[orgID] = admin
	return admin
}

// target carries the resolved hierarchy coordinates of a resource.
type target struct {
	orgID string
	wl1ID string
	wl2ID string
}

func (r *Resolver) describe(ctx context.Context, res Resource) (target, error) {
	switch res.Kind {
	case ResourceOrganization:
		return target{orgID: res.ID}, nil
	case ResourceWorkflowLevel1:
		wl1, err := r.store.Level1s(ctx).Find(ctx, res.ID)
		if err != nil {
			return target{}, err
		}
		return target{orgID: wl1.OrganizationID, wl1ID: wl1.ID}, nil
	case ResourceWorkflowLevel2:
		wl2, err := r.store.Level2s(ctx).Find(ctx, res.ID)
		if err != nil {
			return target{}, err
		}
		wl1, err := r.store.Level1s(ctx).Find(ctx, wl2.WorkflowLevel1ID)
		if err != nil {
			return target{}, err
		}
		return target{orgID: wl1.OrganizationID, wl1ID: wl1.ID, wl2ID: wl2.ID}, nil
	default:
		return target{}, fmt.Errorf("%w: unsupported resource kind %q", ErrInvalidInput, res.Kind)
	}
}

// matches implements the scope containment rule: global grants match
// everything, organization grants match every resource of their
// organization, level-1 grants match the level-1 entity and its level-2
// subtree, level-2 grants match exactly their level-2 entity.
func matches(g *CoreGroup, t target) bool {
	switch g.Scope {
	case ScopeGlobal:
		return true
	case ScopeOrganization:
		return g.OrganizationID != "" && g.OrganizationID == t.orgID
	case ScopeWorkflowLevel1:
		return g.WorkflowLevel1ID != "" && g.WorkflowLevel1ID == t.wl1ID
	case ScopeWorkflowLevel2:
		return g.WorkflowLevel2ID != "" && g.WorkflowLevel2ID == t.wl2ID
	}
	return false
}

type accessContextKey struct{}

// ContextWithAccess attaches a resolved access snapshot to the context
// so downstream checks within the same request reuse it.
func ContextWithAccess(ctx context.Context, access *Access) context.Context {
	if access == nil {
		return ctx
	}
	return context.WithValue(ctx, accessContextKey{}, access)
}

// AccessFromContext extracts a previously attached snapshot.
func AccessFromContext(ctx context.Context) (*Access, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(accessContextKey{}).(*Access)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
