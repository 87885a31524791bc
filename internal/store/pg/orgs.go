package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/MediaMash/buildly-core/internal/workflow"
)

type orgStore struct {
	db *sql.DB
}

const orgColumns = `id, uuid, name, coalesce(description,''),
	level_1_label, level_2_label, level_3_label, level_4_label,
	created_at, updated_at`

func scanOrg(row interface{ Scan(...any) error }) (*workflow.Organization, error) {
	var org workflow.Organization
	err := row.Scan(&org.ID, &org.UUID, &org.Name, &org.Description,
		&org.Level1Label, &org.Level2Label, &org.Level3Label, &org.Level4Label,
		&org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, workflow.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (s *orgStore) Create(ctx context.Context, org *workflow.Organization) error {
	_, err := s.db.ExecContext(ctx, `
		insert into organizations(id, uuid, name, description,
			level_1_label, level_2_label, level_3_label, level_4_label,
			created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, org.ID, org.UUID, org.Name, nullIfEmpty(org.Description),
		org.Level1Label, org.Level2Label, org.Level3Label, org.Level4Label,
		org.CreatedAt, org.UpdatedAt)
	return mapWriteError(err)
}

func (s *orgStore) Find(ctx context.Context, id string) (*workflow.Organization, error) {
	return scanOrg(s.db.QueryRowContext(ctx,
		`select `+orgColumns+` from organizations where id=$1`, id))
}

func (s *orgStore) FindByUUID(ctx context.Context, uuid string) (*workflow.Organization, error) {
	return scanOrg(s.db.QueryRowContext(ctx,
		`select `+orgColumns+` from organizations where uuid=$1`, uuid))
}

func (s *orgStore) FindByName(ctx context.Context, name string) (*workflow.Organization, error) {
	return scanOrg(s.db.QueryRowContext(ctx,
		`select `+orgColumns+` from organizations where name=$1`, name))
}

func (s *orgStore) List(ctx context.Context) ([]*workflow.Organization, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+orgColumns+` from organizations order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*workflow.Organization
	for rows.Next() {
		org, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, org)
	}
	return out, rows.Err()
}

func (s *orgStore) Update(ctx context.Context, id string, upd workflow.OrganizationUpdate) (*workflow.Organization, error) {
	org, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
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
	res, err := s.db.ExecContext(ctx, `
		update organizations
		set name=$2, description=$3,
			level_1_label=$4, level_2_label=$5, level_3_label=$6, level_4_label=$7,
			updated_at=now()
		where id=$1
	`, id, org.Name, nullIfEmpty(org.Description),
		org.Level1Label, org.Level2Label, org.Level3Label, org.Level4Label)
	if err != nil {
		return nil, mapWriteError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, workflow.ErrNotFound
	}
	return org, nil
}
