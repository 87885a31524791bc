// Package notify delivers templated e-mail notifications. Messages are
// handed off as jobs to an external delivery worker; this package never
// talks SMTP itself.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// TemplateType selects the per-organization template record for a flow.
type TemplateType int

const (
	TemplateResetPassword TemplateType = 1
	TemplateInvite        TemplateType = 2
	TemplateEventInvite   TemplateType = 3
)

// EmailTemplate is an organization-specific message template. Body is
// text/template source.
type EmailTemplate struct {
	ID             string       `json:"id"`
	OrganizationID string       `json:"organization_id"`
	Type           TemplateType `json:"type"`
	Subject        string       `json:"subject"`
	Body           string       `json:"template"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// ErrTemplateNotFound is returned by TemplateStore lookups with no match.
var ErrTemplateNotFound = errors.New("notify: template not found")

// TemplateStore reads and writes organization template records.
type TemplateStore interface {
	Find(ctx context.Context, orgID string, typ TemplateType) (*EmailTemplate, error)
	Upsert(ctx context.Context, tpl *EmailTemplate) error
}

// Message is one outbound notification.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Notifier hands a message off for delivery and reports how many
// notifications were dispatched (0 or 1 per call).
type Notifier interface {
	Send(ctx context.Context, msg Message) (int, error)
}

// Renderer resolves the template for an organization and renders
// messages from it. Lookup order: the organization's own record, then
// the designated default organization's record, then the built-in
// fallback.
type Renderer struct {
	store        TemplateStore
	defaultOrgID string
}

// NewRenderer constructs a Renderer. store may be nil, in which case
// only built-in templates are used.
func NewRenderer(store TemplateStore, defaultOrgID string) *Renderer {
	return &Renderer{store: store, defaultOrgID: strings.TrimSpace(defaultOrgID)}
}

// Render produces the subject and body for a flow, resolving the
// organization-specific template with global fallback.
func (r *Renderer) Render(ctx context.Context, orgID string, typ TemplateType, data map[string]any) (subject, body string, err error) {
	tpl := r.resolve(ctx, orgID, typ)
	if tpl == nil {
		return "", "", fmt.Errorf("notify: no template for type %d", typ)
	}
	parsed, err := template.New("email").Parse(tpl.Body)
	if err != nil {
		return "", "", fmt.Errorf("parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := parsed.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render template: %w", err)
	}
	return tpl.Subject, buf.String(), nil
}

func (r *Renderer) resolve(ctx context.Context, orgID string, typ TemplateType) *EmailTemplate {
	if r.store != nil {
		if orgID != "" {
			if tpl, err := r.store.Find(ctx, orgID, typ); err == nil && tpl.Body != "" {
				return tpl
			}
		}
		if r.defaultOrgID != "" && r.defaultOrgID != orgID {
			if tpl, err := r.store.Find(ctx, r.defaultOrgID, typ); err == nil && tpl.Body != "" {
				return tpl
			}
		}
	}
	if tpl, ok := builtinTemplates[typ]; ok {
		return &tpl
	}
	return nil
}

// Built-in fallback templates, used when no organization record exists.
var builtinTemplates = map[TemplateType]EmailTemplate{
	TemplateResetPassword: {
		Type:    TemplateResetPassword,
		Subject: "Reset your password",
		Body: "Hi{{if .Name}} {{.Name}}{{end}},\n\n" +
			"Someone requested a password reset for your account.\n" +
			"Follow this link to choose a new password:\n\n{{.PasswordResetLink}}\n\n" +
			"If you did not request this, you can ignore this message.\n",
	},
	TemplateInvite: {
		Type:    TemplateInvite,
		Subject: "Application Access",
		Body: "Hello,\n\n" +
			"{{if .OrgAdminName}}{{.OrgAdminName}} has invited you{{else}}You have been invited{{end}}" +
			"{{if .OrganizationName}} to join {{.OrganizationName}}{{end}}.\n" +
			"Use this link to register:\n\n{{.InvitationLink}}\n",
	},
	TemplateEventInvite: {
		Type:    TemplateEventInvite,
		Subject: "Event invitation",
		Body: "Hello,\n\n" +
			"Welcome to event {{.EventName}}{{if .OrganizationName}} at {{.OrganizationName}}{{end}}.\n" +
			"Join here:\n\n{{.EventLink}}\n",
	},
}
