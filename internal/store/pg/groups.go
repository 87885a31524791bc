package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/MediaMash/buildly-core/internal/permission"
	"github.com/MediaMash/buildly-core/internal/workflow"
)

type groupStore struct {
	db *sql.DB
}

const groupColumns = `id, uuid, coalesce(organization_id,''), name, permissions, scope,
	coalesce(workflowlevel1_id,''), coalesce(workflowlevel2_id,''), created_at, updated_at`

func scanGroup(row interface{ Scan(...any) error }) (*workflow.CoreGroup, error) {
	var (
		g    workflow.CoreGroup
		mask int
	)
	err := row.Scan(&g.ID, &g.UUID, &g.OrganizationID, &g.Name, &mask, &g.Scope,
		&g.WorkflowLevel1ID, &g.WorkflowLevel2ID, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, workflow.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	g.Permissions = permission.Clamp(mask)
	return &g, nil
}

func (s *groupStore) Create(ctx context.Context, g *workflow.CoreGroup) error {
	_, err := s.db.ExecContext(ctx, `
		insert into core_groups(id, uuid, organization_id, name, permissions, scope,
			workflowlevel1_id, workflowlevel2_id, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, g.ID, g.UUID, nullIfEmpty(g.OrganizationID), g.Name, int(g.Permissions), string(g.Scope),
		nullIfEmpty(g.WorkflowLevel1ID), nullIfEmpty(g.WorkflowLevel2ID), g.CreatedAt, g.UpdatedAt)
	return mapWriteError(err)
}

func (s *groupStore) Find(ctx context.Context, id string) (*workflow.CoreGroup, error) {
	return scanGroup(s.db.QueryRowContext(ctx,
		`select `+groupColumns+` from core_groups where id=$1`, id))
}

func (s *groupStore) ListByOrg(ctx context.Context, orgID string) ([]*workflow.CoreGroup, error) {
	return s.list(ctx,
		`select `+groupColumns+` from core_groups where organization_id=$1 order by created_at`, orgID)
}

func (s *groupStore) ListForUser(ctx context.Context, userID string) ([]*workflow.CoreGroup, error) {
	return s.list(ctx, `
		select g.id, g.uuid, coalesce(g.organization_id,''), g.name, g.permissions, g.scope,
			coalesce(g.workflowlevel1_id,''), coalesce(g.workflowlevel2_id,''), g.created_at, g.updated_at
		from core_groups g
		join core_group_members m on m.group_id = g.id
		where m.user_id = $1
		order by g.created_at
	`, userID)
}

func (s *groupStore) FindOrgAdmin(ctx context.Context, orgID string) (*workflow.CoreGroup, error) {
	return scanGroup(s.db.QueryRowContext(ctx,
		`select `+groupColumns+` from core_groups where organization_id=$1 and name=$2 and scope=$3`,
		orgID, workflow.RoleOrgAdmin, string(workflow.ScopeOrganization)))
}

func (s *groupStore) AttachUser(ctx context.Context, userID, groupID string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into core_group_members(user_id, group_id)
		values ($1,$2)
		on conflict (user_id, group_id) do nothing
	`, userID, groupID)
	return mapWriteError(err)
}

func (s *groupStore) DetachUser(ctx context.Context, userID, groupID string) error {
	_, err := s.db.ExecContext(ctx,
		`delete from core_group_members where user_id=$1 and group_id=$2`,
		userID, groupID)
	return err
}

func (s *groupStore) Update(ctx context.Context, id string, upd workflow.GroupUpdate) (*workflow.CoreGroup, error) {
	g, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		g.Name = *upd.Name
	}
	if upd.Permissions != nil {
		g.Permissions = permission.Clamp(*upd.Permissions)
	}
	res, err := s.db.ExecContext(ctx,
		`update core_groups set name=$2, permissions=$3, updated_at=now() where id=$1`,
		id, g.Name, int(g.Permissions))
	if err != nil {
		return nil, mapWriteError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, workflow.ErrNotFound
	}
	return g, nil
}

func (s *groupStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from core_groups where id=$1`, id)
	if err != nil {
		return mapWriteError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return workflow.ErrNotFound
	}
	return nil
}

func (s *groupStore) list(ctx context.Context, query string, args ...any) ([]*workflow.CoreGroup, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*workflow.CoreGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
