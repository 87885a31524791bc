package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/MediaMash/buildly-core/internal/workflow"
)

type level1Store struct {
	db *sql.DB
}

const level1Columns = `id, uuid, organization_id, name, coalesce(description,''),
	start_date, end_date, created_at, updated_at`

func scanLevel1(row interface{ Scan(...any) error }) (*workflow.WorkflowLevel1, error) {
	var (
		wl1        workflow.WorkflowLevel1
		start, end sql.NullTime
	)
	err := row.Scan(&wl1.ID, &wl1.UUID, &wl1.OrganizationID, &wl1.Name, &wl1.Description,
		&start, &end, &wl1.CreatedAt, &wl1.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, workflow.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if start.Valid {
		wl1.StartDate = &start.Time
	}
	if end.Valid {
		wl1.EndDate = &end.Time
	}
	return &wl1, nil
}

func (s *level1Store) Create(ctx context.Context, wl1 *workflow.WorkflowLevel1) error {
	var start, end sql.NullTime
	if wl1.StartDate != nil {
		start = sql.NullTime{Time: *wl1.StartDate, Valid: true}
	}
	if wl1.EndDate != nil {
		end = sql.NullTime{Time: *wl1.EndDate, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		insert into workflow_level1(id, uuid, organization_id, name, description,
			start_date, end_date, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, wl1.ID, wl1.UUID, wl1.OrganizationID, wl1.Name, nullIfEmpty(wl1.Description),
		start, end, wl1.CreatedAt, wl1.UpdatedAt)
	return mapWriteError(err)
}

func (s *level1Store) Find(ctx context.Context, id string) (*workflow.WorkflowLevel1, error) {
	return scanLevel1(s.db.QueryRowContext(ctx,
		`select `+level1Columns+` from workflow_level1 where id=$1`, id))
}

func (s *level1Store) ListByOrg(ctx context.Context, orgID string) ([]*workflow.WorkflowLevel1, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+level1Columns+` from workflow_level1 where organization_id=$1 order by created_at`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*workflow.WorkflowLevel1
	for rows.Next() {
		wl1, err := scanLevel1(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, wl1)
	}
	return out, rows.Err()
}

func (s *level1Store) Update(ctx context.Context, id string, upd workflow.Level1Update) (*workflow.WorkflowLevel1, error) {
	wl1, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		wl1.Name = *upd.Name
	}
	if upd.Description != nil {
		wl1.Description = *upd.Description
	}
	res, err := s.db.ExecContext(ctx,
		`update workflow_level1 set name=$2, description=$3, updated_at=now() where id=$1`,
		id, wl1.Name, nullIfEmpty(wl1.Description))
	if err != nil {
		return nil, mapWriteError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, workflow.ErrNotFound
	}
	return wl1, nil
}

func (s *level1Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from workflow_level1 where id=$1`, id)
	if err != nil {
		return mapWriteError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return workflow.ErrNotFound
	}
	return nil
}

type level2Store struct {
	db *sql.DB
}

const level2Columns = `id, uuid, workflowlevel1_id, coalesce(parent_id,''), name,
	coalesce(description,''), coalesce(notes,''), coalesce(created_by,''),
	created_at, updated_at`

func scanLevel2(row interface{ Scan(...any) error }) (*workflow.WorkflowLevel2, error) {
	var wl2 workflow.WorkflowLevel2
	err := row.Scan(&wl2.ID, &wl2.UUID, &wl2.WorkflowLevel1ID, &wl2.ParentID, &wl2.Name,
		&wl2.Description, &wl2.Notes, &wl2.CreatedByID, &wl2.CreatedAt, &wl2.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, workflow.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wl2, nil
}

func (s *level2Store) Create(ctx context.Context, wl2 *workflow.WorkflowLevel2) error {
	_, err := s.db.ExecContext(ctx, `
		insert into workflow_level2(id, uuid, workflowlevel1_id, parent_id, name,
			description, notes, created_by, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, wl2.ID, wl2.UUID, wl2.WorkflowLevel1ID, nullIfEmpty(wl2.ParentID), wl2.Name,
		nullIfEmpty(wl2.Description), nullIfEmpty(wl2.Notes), nullIfEmpty(wl2.CreatedByID),
		wl2.CreatedAt, wl2.UpdatedAt)
	return mapWriteError(err)
}

func (s *level2Store) Find(ctx context.Context, id string) (*workflow.WorkflowLevel2, error) {
	return scanLevel2(s.db.QueryRowContext(ctx,
		`select `+level2Columns+` from workflow_level2 where id=$1`, id))
}

func (s *level2Store) ListByLevel1(ctx context.Context, wl1ID string) ([]*workflow.WorkflowLevel2, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+level2Columns+` from workflow_level2 where workflowlevel1_id=$1 order by created_at`, wl1ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*workflow.WorkflowLevel2
	for rows.Next() {
		wl2, err := scanLevel2(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, wl2)
	}
	return out, rows.Err()
}

func (s *level2Store) Update(ctx context.Context, id string, upd workflow.Level2Update) (*workflow.WorkflowLevel2, error) {
	wl2, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
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
	res, err := s.db.ExecContext(ctx, `
		update workflow_level2
		set name=$2, description=$3, notes=$4, parent_id=$5, updated_at=now()
		where id=$1
	`, id, wl2.Name, nullIfEmpty(wl2.Description), nullIfEmpty(wl2.Notes), nullIfEmpty(wl2.ParentID))
	if err != nil {
		return nil, mapWriteError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, workflow.ErrNotFound
	}
	return wl2, nil
}

func (s *level2Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from workflow_level2 where id=$1`, id)
	if err != nil {
		return mapWriteError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return workflow.ErrNotFound
	}
	return nil
}
