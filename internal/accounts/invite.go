package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MediaMash/buildly-core/internal/audit"
	"github.com/MediaMash/buildly-core/internal/notify"
	"github.com/MediaMash/buildly-core/internal/obs"
	"github.com/MediaMash/buildly-core/internal/tokens"
	"github.com/MediaMash/buildly-core/internal/workflow"
)

// MaxInviteBatch bounds one invitation request.
const MaxInviteBatch = 10

// Invite mints an invitation token per address and dispatches the
// notifications. Addresses that already map to a user are skipped.
// Only organization admins may invite; the returned slice holds the
// redemption links for the invitations actually sent.
func (s *Service) Invite(ctx context.Context, actorID string, emails []string) ([]string, error) {
	emails = normalizeEmails(emails)
	if len(emails) == 0 {
		return nil, fmt.Errorf("%w: at least one email is required", workflow.ErrInvalidInput)
	}
	if len(emails) > MaxInviteBatch {
		return nil, fmt.Errorf("%w: at most %d emails per invitation", workflow.ErrInvalidInput, MaxInviteBatch)
	}

	actor, err := s.store.Users(ctx).Find(ctx, actorID)
	if err != nil {
		return nil, err
	}
	access, err := s.resolver.AccessFor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !access.IsOrgAdmin(actor.OrganizationID) {
		return nil, workflow.ErrNotAuthorized
	}
	org, err := s.store.Organizations(ctx).Find(ctx, actor.OrganizationID)
	if err != nil {
		return nil, err
	}

	registered, err := s.store.Users(ctx).RegisteredEmails(ctx, emails)
	if err != nil {
		return nil, err
	}

	var links []string
	dispatched := 0
	for _, email := range emails {
		if registered[email] {
			continue
		}
		token, err := s.signer.MintInvitation(email, org.UUID)
		if err != nil {
			return nil, err
		}
		obs.TokenIssued(tokens.PurposeInvite)
		link := s.links.Registration(token)
		links = append(links, link)
		dispatched += s.dispatch(ctx, "invite", email, org.ID, notify.TemplateInvite, map[string]any{
			"InvitationLink":   link,
			"OrgAdminName":     strings.TrimSpace(actor.FirstName + " " + actor.LastName),
			"OrganizationName": org.Name,
		})
	}
	obs.NotificationDispatched("invite", dispatched)
	_ = audit.LogEvent(ctx, "coreuser.invite", map[string]any{
		"org_uuid":   org.UUID,
		"requested":  len(emails),
		"dispatched": dispatched,
	})
	return links, nil
}

// InvitationCheck is the decoded information behind a valid invite
// token.
type InvitationCheck struct {
	Email        string                 `json:"email"`
	Organization *workflow.Organization `json:"organization,omitempty"`
}

// CheckInvitation validates an invitation token. An address that
// already registered means the invite was redeemed, reported as
// ErrAlreadyUsed.
func (s *Service) CheckInvitation(ctx context.Context, raw string) (*InvitationCheck, error) {
	claims, err := s.signer.Validate(raw, tokens.PurposeInvite)
	if err != nil {
		obs.TokenValidated(tokens.PurposeInvite, outcomeOf(err))
		return nil, err
	}
	registered, err := s.store.Users(ctx).RegisteredEmails(ctx, []string{claims.Email})
	if err != nil {
		return nil, err
	}
	if registered[claims.Email] {
		obs.TokenValidated(tokens.PurposeInvite, "used")
		return nil, tokens.ErrAlreadyUsed
	}
	obs.TokenValidated(tokens.PurposeInvite, "valid")

	check := &InvitationCheck{Email: claims.Email}
	if claims.OrganizationUUID != "" {
		org, err := s.store.Organizations(ctx).FindByUUID(ctx, claims.OrganizationUUID)
		if err != nil && !errors.Is(err, workflow.ErrNotFound) {
			return nil, err
		}
		check.Organization = org
	}
	return check, nil
}

// EventInviteInput is the event invitation payload.
type EventInviteInput struct {
	RoomUUID         string
	EventUUID        string
	EventName        string
	OrganizationName string
	Emails           []string
}

// InviteEvent dispatches event invitations. Registered recipients get a
// login link, unregistered ones a registration link; both carry a
// purpose-tagged token binding room and event identifiers.
func (s *Service) InviteEvent(ctx context.Context, in EventInviteInput) ([]string, error) {
	in.Emails = normalizeEmails(in.Emails)
	if len(in.Emails) == 0 || len(in.Emails) > MaxInviteBatch {
		return nil, fmt.Errorf("%w: between 1 and %d emails are required", workflow.ErrInvalidInput, MaxInviteBatch)
	}
	if in.RoomUUID == "" || in.EventUUID == "" {
		return nil, fmt.Errorf("%w: room_uuid and event_uuid are required", workflow.ErrInvalidInput)
	}

	var links []string
	dispatched := 0
	for _, email := range in.Emails {
		orgName := in.OrganizationName
		orgID := ""
		registered := false
		user, err := s.store.Users(ctx).FindByEmail(ctx, email)
		switch {
		case err == nil:
			registered = true
			orgID = user.OrganizationID
			if orgID != "" {
				if org, ferr := s.store.Organizations(ctx).Find(ctx, orgID); ferr == nil {
					orgName = org.Name
				}
			}
		case errors.Is(err, workflow.ErrNotFound):
			// Unregistered recipient keeps the caller-provided name.
		default:
			return nil, err
		}

		token, err := s.signer.MintEventInvitation(email, orgName, in.RoomUUID, in.EventUUID)
		if err != nil {
			return nil, err
		}
		obs.TokenIssued(tokens.PurposeEventInvite)

		var link string
		if registered {
			link = s.links.EventLogin(token)
		} else {
			link = s.links.EventRegistration(token)
		}
		links = append(links, link)
		dispatched += s.dispatch(ctx, "event-invite", email, orgID, notify.TemplateEventInvite, map[string]any{
			"EventLink":        link,
			"EventName":        in.EventName,
			"EventUUID":        in.EventUUID,
			"RoomUUID":         in.RoomUUID,
			"OrganizationName": orgName,
		})
	}
	obs.NotificationDispatched("event-invite", dispatched)
	_ = audit.LogEvent(ctx, "coreuser.invite_event", map[string]any{
		"event_uuid": in.EventUUID,
		"room_uuid":  in.RoomUUID,
		"dispatched": dispatched,
	})
	return links, nil
}

// CheckEventInvitation validates an event invitation token and returns
// its claim set.
func (s *Service) CheckEventInvitation(ctx context.Context, raw string) (*tokens.Claims, error) {
	claims, err := s.signer.Validate(raw, tokens.PurposeEventInvite)
	obs.TokenValidated(tokens.PurposeEventInvite, outcomeOf(err))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// dispatch renders and sends one notification, returning the dispatch
// count. Delivery failures are logged, not propagated: one bad address
// must not abort a fan-out.
func (s *Service) dispatch(ctx context.Context, flow, email, orgID string, typ notify.TemplateType, data map[string]any) int {
	if s.notifier == nil {
		return 0
	}
	subject, body, err := s.renderer.Render(ctx, orgID, typ, data)
	if err != nil {
		obs.LogEvent("error", "render notification", map[string]any{"flow": flow, "err": err.Error()})
		return 0
	}
	n, err := s.notifier.Send(ctx, notify.Message{To: email, Subject: subject, Body: body})
	if err != nil {
		obs.LogEvent("error", "dispatch notification", map[string]any{"flow": flow, "err": err.Error()})
		return 0
	}
	return n
}

func normalizeEmails(emails []string) []string {
	seen := make(map[string]bool, len(emails))
	var out []string
	for _, e := range emails {
		e = strings.TrimSpace(strings.ToLower(e))
		if e == "" || !strings.Contains(e, "@") || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
