package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/MediaMash/buildly-core/internal/notify"
)

// TemplateStore implements notify.TemplateStore on the email_templates
// table.
type TemplateStore struct {
	db *sql.DB
}

var _ notify.TemplateStore = (*TemplateStore)(nil)

func (s *Store) Templates() *TemplateStore { return &TemplateStore{db: s.db} }

func (s *TemplateStore) Find(ctx context.Context, orgID string, typ notify.TemplateType) (*notify.EmailTemplate, error) {
	var tpl notify.EmailTemplate
	err := s.db.QueryRowContext(ctx, `
		select id, organization_id, type, subject, body, created_at, updated_at
		from email_templates
		where organization_id=$1 and type=$2
	`, orgID, int(typ)).Scan(&tpl.ID, &tpl.OrganizationID, &tpl.Type, &tpl.Subject,
		&tpl.Body, &tpl.CreatedAt, &tpl.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notify.ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (s *TemplateStore) Upsert(ctx context.Context, tpl *notify.EmailTemplate) error {
	_, err := s.db.ExecContext(ctx, `
		insert into email_templates(id, organization_id, type, subject, body, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7)
		on conflict (organization_id, type) do update
		set subject = excluded.subject, body = excluded.body, updated_at = excluded.updated_at
	`, tpl.ID, tpl.OrganizationID, int(tpl.Type), tpl.Subject, tpl.Body,
		tpl.CreatedAt, tpl.UpdatedAt)
	return mapWriteError(err)
}
