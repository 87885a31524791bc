package pg

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MediaMash/buildly-core/internal/notify"
	"github.com/MediaMash/buildly-core/internal/permission"
	"github.com/MediaMash/buildly-core/internal/workflow"
)

// mockConverter lets the mock driver accept []string args, which the pgx
// stdlib driver supports in production but sqlmock's default converter rejects.
type mockConverter struct{}

func (mockConverter) ConvertValue(v interface{}) (driver.Value, error) {
	if ss, ok := v.([]string); ok {
		return strings.Join(ss, ","), nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(mockConverter{}))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestOrgFindByName(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "uuid", "name", "description",
		"level_1_label", "level_2_label", "level_3_label", "level_4_label",
		"created_at", "updated_at"}).
		AddRow("org-1", "uuid-1", "Acme", "desc", "Program", "Project", "Component", "Activity", now, now)
	mock.ExpectQuery("from organizations where name=").
		WithArgs("Acme").WillReturnRows(rows)

	org, err := st.Organizations(context.Background()).FindByName(context.Background(), "Acme")
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if org.ID != "org-1" || org.Level1Label != "Program" {
		t.Fatalf("unexpected org: %+v", org)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOrgFindNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("from organizations where id=").
		WithArgs("missing").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := st.Organizations(context.Background()).Find(context.Background(), "missing")
	if !errors.Is(err, workflow.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOrgCreateUniqueViolation(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec("insert into organizations").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	err := st.Organizations(context.Background()).Create(context.Background(), &workflow.Organization{
		ID: "org-1", UUID: "uuid-1", Name: "Acme",
		Level1Label: "Program", Level2Label: "Project",
		Level3Label: "Component", Level4Label: "Activity",
		CreatedAt: now, UpdatedAt: now,
	})
	if !errors.Is(err, workflow.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestGroupCreateForeignKeyViolation(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec("insert into core_groups").
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	err := st.Groups(context.Background()).Create(context.Background(), &workflow.CoreGroup{
		ID: "grp-1", UUID: "uuid-1", OrganizationID: "nope", Name: "Viewers",
		Permissions: permission.Read, Scope: workflow.ScopeOrganization,
		CreatedAt: now, UpdatedAt: now,
	})
	if !errors.Is(err, workflow.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGroupListForUser(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "uuid", "organization_id", "name", "permissions", "scope",
		"workflowlevel1_id", "workflowlevel2_id", "created_at", "updated_at"}).
		AddRow("grp-1", "u1", "org-1", "OrgAdmin", 15, "organization", "", "", now, now).
		AddRow("grp-2", "u2", "org-1", "Editors", 6, "workflowlevel1", "wl1-1", "", now, now)
	mock.ExpectQuery("from core_groups g\\s+join core_group_members m").
		WithArgs("user-1").WillReturnRows(rows)

	groups, err := st.Groups(context.Background()).ListForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Permissions != permission.Full {
		t.Fatalf("unexpected mask: %v", groups[0].Permissions)
	}
	if groups[1].Scope != workflow.ScopeWorkflowLevel1 || groups[1].WorkflowLevel1ID != "wl1-1" {
		t.Fatalf("unexpected group: %+v", groups[1])
	}
}

func TestRegisteredEmails(t *testing.T) {
	st, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"email"}).AddRow("a@example.org")
	mock.ExpectQuery("select distinct email from core_users").
		WillReturnRows(rows)

	got, err := st.Users(context.Background()).RegisteredEmails(context.Background(),
		[]string{"a@example.org", "b@example.org"})
	if err != nil {
		t.Fatalf("RegisteredEmails: %v", err)
	}
	if !got["a@example.org"] || got["b@example.org"] {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestRegisteredEmailsEmptyInput(t *testing.T) {
	st, _ := newMockStore(t)

	got, err := st.Users(context.Background()).RegisteredEmails(context.Background(), nil)
	if err != nil {
		t.Fatalf("RegisteredEmails: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty map, got %v", got)
	}
}

func TestUpdatePasswordMissingUser(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("update core_users set password_hash").
		WithArgs("user-1", "hash").WillReturnResult(sqlmock.NewResult(0, 0))

	err := st.Users(context.Background()).UpdatePassword(context.Background(), "user-1", "hash")
	if !errors.Is(err, workflow.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTemplateFindFallsBackToNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("from email_templates").
		WithArgs("org-1", 2).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := st.Templates().Find(context.Background(), "org-1", notify.TemplateInvite)
	if !errors.Is(err, notify.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}
