package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/MediaMash/buildly-core/internal/permission"
)

// fixture builds an org with one level-1 entity and one level-2 entity
// underneath it.
type fixture struct {
	store *InMemory
	svc   *Service
	res   *Resolver
	org   *Organization
	wl1   *WorkflowLevel1
	wl2   *WorkflowLevel2
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := NewInMemory()
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	res, err := NewResolver(store)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	ctx := context.Background()
	org, err := svc.CreateOrganization(ctx, "Acme", "")
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	wl1, err := svc.CreateLevel1(ctx, org.ID, "Field Ops", "")
	if err != nil {
		t.Fatalf("CreateLevel1: %v", err)
	}
	wl2, err := svc.CreateLevel2(ctx, wl1.ID, "", "Site Survey")
	if err != nil {
		t.Fatalf("CreateLevel2: %v", err)
	}
	return &fixture{store: store, svc: svc, res: res, org: org, wl1: wl1, wl2: wl2}
}

func (f *fixture) grant(t *testing.T, userID string, g CoreGroup) *CoreGroup {
	t.Helper()
	created, err := f.svc.CreateGroup(context.Background(), g)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if err := f.svc.AttachGroup(context.Background(), userID, created.ID); err != nil {
		t.Fatalf("AttachGroup: %v", err)
	}
	return created
}

func TestResolveUnionsMatchingGrants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.grant(t, "user-1", CoreGroup{
		Name: "Org Creators", OrganizationID: f.org.ID,
		Scope: ScopeOrganization, Permissions: permission.Create,
	})
	f.grant(t, "user-1", CoreGroup{
		Name: "Field Readers", WorkflowLevel1ID: f.wl1.ID,
		Scope: ScopeWorkflowLevel1, Permissions: permission.Read,
	})

	mask, err := f.res.Resolve(ctx, "user-1", Level1Resource(f.wl1.ID))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if mask != permission.Create|permission.Read {
		t.Fatalf("expected union mask %v, got %v", permission.Create|permission.Read, mask)
	}

	// The organization resource only matches the org-scoped grant.
	mask, err = f.res.Resolve(ctx, "user-1", OrgResource(f.org.ID))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if mask != permission.Create {
		t.Fatalf("expected %v, got %v", permission.Create, mask)
	}
}

func TestResolveEmptyGrantsIsZeroMask(t *testing.T) {
	f := newFixture(t)

	mask, err := f.res.Resolve(context.Background(), "nobody", OrgResource(f.org.ID))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if mask != permission.None {
		t.Fatalf("expected empty mask, got %v", mask)
	}
}

func TestLevel1GrantCoversLevel2Subtree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.grant(t, "user-1", CoreGroup{
		Name: "Field Editors", WorkflowLevel1ID: f.wl1.ID,
		Scope: ScopeWorkflowLevel1, Permissions: permission.Read | permission.Update,
	})

	mask, err := f.res.Resolve(ctx, "user-1", Level2Resource(f.wl2.ID))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if mask != permission.Read|permission.Update {
		t.Fatalf("expected subtree coverage, got %v", mask)
	}
}

func TestLevel2GrantMatchesExactly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.svc.CreateLevel2(ctx, f.wl1.ID, "", "Other Task")
	if err != nil {
		t.Fatalf("CreateLevel2: %v", err)
	}

	f.grant(t, "user-1", CoreGroup{
		Name: "Survey Readers", WorkflowLevel2ID: f.wl2.ID,
		Scope: ScopeWorkflowLevel2, Permissions: permission.Read,
	})

	mask, err := f.res.Resolve(ctx, "user-1", Level2Resource(f.wl2.ID))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if mask != permission.Read {
		t.Fatalf("expected read on granted entity, got %v", mask)
	}

	mask, err = f.res.Resolve(ctx, "user-1", Level2Resource(other.ID))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if mask != permission.None {
		t.Fatalf("level-2 grant must not leak to sibling, got %v", mask)
	}

	// Nor does it climb to the level-1 parent.
	mask, err = f.res.Resolve(ctx, "user-1", Level1Resource(f.wl1.ID))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if mask != permission.None {
		t.Fatalf("level-2 grant must not cover the parent, got %v", mask)
	}
}

func TestGlobalGrantCoversForeignOrg(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.grant(t, "user-1", CoreGroup{
		Name: "Superusers", Scope: ScopeGlobal, Permissions: permission.Full,
	})

	other, err := f.svc.CreateOrganization(ctx, "Globex", "")
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	mask, err := f.res.Resolve(ctx, "user-1", OrgResource(other.ID))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if mask != permission.Full {
		t.Fatalf("expected full mask, got %v", mask)
	}
}

func TestOrgScopedGrantStopsAtTenantBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.grant(t, "user-1", CoreGroup{
		Name: "Acme Staff", OrganizationID: f.org.ID,
		Scope: ScopeOrganization, Permissions: permission.Full,
	})

	other, err := f.svc.CreateOrganization(ctx, "Globex", "")
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	mask, err := f.res.Resolve(ctx, "user-1", OrgResource(other.ID))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if mask != permission.None {
		t.Fatalf("grant leaked across tenants: %v", mask)
	}
}

func TestRequire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.grant(t, "user-1", CoreGroup{
		Name: "Readers", OrganizationID: f.org.ID,
		Scope: ScopeOrganization, Permissions: permission.Read,
	})

	if _, err := f.res.Require(ctx, "user-1", OrgResource(f.org.ID), permission.Read); err != nil {
		t.Fatalf("Require(read): %v", err)
	}
	if _, err := f.res.Require(ctx, "user-1", OrgResource(f.org.ID), permission.Read|permission.Update); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestIsOrgAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.grant(t, "admin", CoreGroup{
		Name: RoleOrgAdmin, OrganizationID: f.org.ID,
		Scope: ScopeOrganization, Permissions: permission.OrgAdmin,
	})
	f.grant(t, "partial", CoreGroup{
		Name: "Editors", OrganizationID: f.org.ID,
		Scope: ScopeOrganization, Permissions: permission.Read | permission.Update,
	})

	access, err := f.res.AccessFor(ctx, "admin")
	if err != nil {
		t.Fatalf("AccessFor: %v", err)
	}
	if !access.IsOrgAdmin(f.org.ID) {
		t.Fatal("expected admin in own org")
	}
	if access.IsOrgAdmin("other-org") {
		t.Fatal("org-scoped admin must not cover foreign org")
	}

	partial, err := f.res.AccessFor(ctx, "partial")
	if err != nil {
		t.Fatalf("AccessFor: %v", err)
	}
	if partial.IsOrgAdmin(f.org.ID) {
		t.Fatal("partial mask must not count as admin")
	}
}

func TestIsOrgAdminCachesAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.grant(t, "admin", CoreGroup{
		Name: RoleOrgAdmin, OrganizationID: f.org.ID,
		Scope: ScopeOrganization, Permissions: permission.OrgAdmin,
	})

	access, err := f.res.AccessFor(ctx, "admin")
	if err != nil {
		t.Fatalf("AccessFor: %v", err)
	}
	if !access.IsOrgAdmin(f.org.ID) {
		t.Fatal("expected admin")
	}

	// Mutating the snapshot's groups does not change the cached answer.
	access.Groups = nil
	if !access.IsOrgAdmin(f.org.ID) {
		t.Fatal("expected cached admin answer")
	}
}

func TestResolveUnknownResource(t *testing.T) {
	f := newFixture(t)

	if _, err := f.res.Resolve(context.Background(), "user-1", Level1Resource("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.res.Resolve(context.Background(), "user-1", Resource{Kind: "bogus", ID: "x"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAccessContextRoundTrip(t *testing.T) {
	access := &Access{UserID: "user-1", orgAdmin: map[string]bool{}}
	ctx := ContextWithAccess(context.Background(), access)
	got, ok := AccessFromContext(ctx)
	if !ok || got.UserID != "user-1" {
		t.Fatalf("unexpected snapshot: %+v ok=%v", got, ok)
	}
	if _, ok := AccessFromContext(context.Background()); ok {
		t.Fatal("expected no snapshot on fresh context")
	}
}
