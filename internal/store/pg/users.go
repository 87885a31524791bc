package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/MediaMash/buildly-core/internal/workflow"
)

type userStore struct {
	db *sql.DB
}

const userColumns = `id, uuid, coalesce(organization_id,''), username, email,
	coalesce(first_name,''), coalesce(last_name,''), password_hash, status,
	last_login, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*workflow.CoreUser, error) {
	var (
		u         workflow.CoreUser
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.UUID, &u.OrganizationID, &u.Username, &u.Email,
		&u.FirstName, &u.LastName, &u.PasswordHash, &u.Status,
		&lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, workflow.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		u.LastLogin = lastLogin.Time
	}
	return &u, nil
}

func (s *userStore) Create(ctx context.Context, u *workflow.CoreUser) error {
	_, err := s.db.ExecContext(ctx, `
		insert into core_users(id, uuid, organization_id, username, email,
			first_name, last_name, password_hash, status,
			last_login, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, u.ID, u.UUID, nullIfEmpty(u.OrganizationID), u.Username, u.Email,
		nullIfEmpty(u.FirstName), nullIfEmpty(u.LastName), u.PasswordHash, u.Status,
		nullTime(u.LastLogin), u.CreatedAt, u.UpdatedAt)
	return mapWriteError(err)
}

func (s *userStore) Find(ctx context.Context, id string) (*workflow.CoreUser, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from core_users where id=$1`, id))
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*workflow.CoreUser, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from core_users where email=$1 order by created_at limit 1`, email))
}

func (s *userStore) ListActiveByEmail(ctx context.Context, email string) ([]*workflow.CoreUser, error) {
	return s.list(ctx,
		`select `+userColumns+` from core_users where email=$1 and status=$2 order by created_at`,
		email, workflow.UserStatusActive)
}

func (s *userStore) ListByOrg(ctx context.Context, orgID string) ([]*workflow.CoreUser, error) {
	return s.list(ctx,
		`select `+userColumns+` from core_users where organization_id=$1 order by created_at`, orgID)
}

func (s *userStore) RegisteredEmails(ctx context.Context, emails []string) (map[string]bool, error) {
	out := make(map[string]bool, len(emails))
	if len(emails) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`select distinct email from core_users where email = any($1)`, emails)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		out[email] = true
	}
	return out, rows.Err()
}

func (s *userStore) Update(ctx context.Context, id string, upd workflow.UserUpdate) (*workflow.CoreUser, error) {
	u, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
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
	res, err := s.db.ExecContext(ctx, `
		update core_users
		set email=$2, first_name=$3, last_name=$4, status=$5, last_login=$6, updated_at=now()
		where id=$1
	`, id, u.Email, nullIfEmpty(u.FirstName), nullIfEmpty(u.LastName), u.Status, nullTime(u.LastLogin))
	if err != nil {
		return nil, mapWriteError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, workflow.ErrNotFound
	}
	return u, nil
}

func (s *userStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update core_users set password_hash=$2, updated_at=now() where id=$1`,
		id, passwordHash)
	if err != nil {
		return mapWriteError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return workflow.ErrNotFound
	}
	return nil
}

func (s *userStore) list(ctx context.Context, query string, args ...any) ([]*workflow.CoreUser, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*workflow.CoreUser
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
