// Package accounts implements the core-user lifecycle: registration
// with invitation redemption, invitation fan-out, event invitations and
// the password-reset flow.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/MediaMash/buildly-core/internal/audit"
	"github.com/MediaMash/buildly-core/internal/ids"
	"github.com/MediaMash/buildly-core/internal/notify"
	"github.com/MediaMash/buildly-core/internal/obs"
	"github.com/MediaMash/buildly-core/internal/permission"
	"github.com/MediaMash/buildly-core/internal/tokens"
	"github.com/MediaMash/buildly-core/internal/workflow"
)

// ErrRateLimited indicates too many reset requests for one address.
var ErrRateLimited = errors.New("accounts: too many reset requests")

// Links builds the frontend URLs embedded in notifications.
type Links struct {
	FrontendURL           string
	RegistrationPath      string
	ResetConfirmPath      string
	EventLoginPath        string
	EventRegistrationPath string
}

func (l Links) join(path, query string) string {
	base := strings.TrimRight(l.FrontendURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if query == "" {
		return base + path
	}
	return base + path + "?" + query
}

// Registration builds the invite redemption link.
func (l Links) Registration(token string) string {
	return l.join(l.RegistrationPath, "token="+url.QueryEscape(token))
}

// ResetConfirm builds the password-reset confirmation link.
func (l Links) ResetConfirm(uid, token string) string {
	return l.join(strings.TrimRight(l.ResetConfirmPath, "/")+"/"+uid+"/"+token+"/", "")
}

// EventLogin builds the event link for an already-registered user.
func (l Links) EventLogin(token string) string {
	return l.join(l.EventLoginPath, "token="+url.QueryEscape(token))
}

// EventRegistration builds the event link for an unregistered user.
func (l Links) EventRegistration(token string) string {
	return l.join(l.EventRegistrationPath, "token="+url.QueryEscape(token))
}

// Service provides the user lifecycle operations on top of the
// workflow store, the token signer and the notifier.
type Service struct {
	store    workflow.Store
	wf       *workflow.Service
	resolver *workflow.Resolver
	signer   *tokens.Signer
	notifier notify.Notifier
	renderer *notify.Renderer
	links    Links
	limiter  *keyedLimiter
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithNotifier sets the notification sink. Without one, fan-out
// operations still mint tokens but dispatch nothing.
func WithNotifier(n notify.Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithRenderer sets the template renderer.
func WithRenderer(r *notify.Renderer) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.renderer = r
		}
	}
}

// WithLinks sets the frontend link builder.
func WithLinks(l Links) ServiceOption {
	return func(s *Service) { s.links = l }
}

// WithResetRate overrides the per-address reset request budget.
func WithResetRate(limit rate.Limit, burst int) ServiceOption {
	return func(s *Service) {
		if burst > 0 {
			s.limiter = newKeyedLimiter(limit, burst)
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(store workflow.Store, signer *tokens.Signer, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("workflow store is required")
	}
	if signer == nil {
		return nil, errors.New("token signer is required")
	}
	wf, err := workflow.NewService(store)
	if err != nil {
		return nil, err
	}
	resolver, err := workflow.NewResolver(store)
	if err != nil {
		return nil, err
	}
	svc := &Service{
		store:    store,
		wf:       wf,
		resolver: resolver,
		signer:   signer,
		renderer: notify.NewRenderer(nil, ""),
		links: Links{
			FrontendURL:           "http://localhost:3000",
			RegistrationPath:      "/register",
			ResetConfirmPath:      "/reset-password-confirm",
			EventLoginPath:        "/event/login",
			EventRegistrationPath: "/event/register",
		},
		// One immediate request plus one per five minutes per address.
		limiter: newKeyedLimiter(rate.Every(5*time.Minute), 3),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Workflow exposes the underlying workflow service for group and level
// administration.
func (s *Service) Workflow() *workflow.Service { return s.wf }

// Resolver exposes the authorization resolver.
func (s *Service) Resolver() *workflow.Resolver { return s.resolver }

// RegisterInput is the signup payload.
type RegisterInput struct {
	Username         string
	Email            string
	Password         string
	FirstName        string
	LastName         string
	OrganizationName string
	InvitationToken  string
	GroupIDs         []string
}

// Register creates a core user. With an invitation token the signup is
// placed into the inviting organization; otherwise the named
// organization is fetched or created, and the first user of a
// brand-new organization receives the bootstrap org-admin group.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*workflow.CoreUser, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Username == "" {
		return nil, fmt.Errorf("%w: username is required", workflow.ErrInvalidInput)
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", workflow.ErrInvalidInput)
	}
	if len(in.Password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", workflow.ErrInvalidInput, MinPasswordLength)
	}

	var org *workflow.Organization
	var newOrg bool

	if in.InvitationToken != "" {
		claims, err := s.signer.Validate(in.InvitationToken, tokens.PurposeInvite)
		if err != nil {
			obs.TokenValidated(tokens.PurposeInvite, outcomeOf(err))
			return nil, err
		}
		if claims.Email != in.Email {
			obs.TokenValidated(tokens.PurposeInvite, "invalid")
			return nil, tokens.ErrInvalid
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
		if claims.OrganizationUUID != "" {
			org, err = s.store.Organizations(ctx).FindByUUID(ctx, claims.OrganizationUUID)
			if err != nil {
				return nil, err
			}
		}
	}

	if org == nil {
		var err error
		org, newOrg, err = s.wf.EnsureOrganization(ctx, in.OrganizationName)
		if err != nil {
			return nil, err
		}
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	user := &workflow.CoreUser{
		ID:             ids.New(),
		UUID:           uuid.NewString(),
		OrganizationID: org.ID,
		Username:       in.Username,
		Email:          in.Email,
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		PasswordHash:   hash,
		Status:         workflow.UserStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Users(ctx).Create(ctx, user); err != nil {
		return nil, err
	}

	if newOrg {
		if err := s.bootstrapOrgAdmin(ctx, org, user); err != nil {
			return nil, err
		}
	}
	for _, groupID := range in.GroupIDs {
		if err := s.wf.AttachGroup(ctx, user.ID, groupID); err != nil {
			return nil, err
		}
	}

	_ = audit.LogEvent(ctx, "coreuser.register", map[string]any{
		"user_uuid": user.UUID,
		"org_uuid":  org.UUID,
		"new_org":   newOrg,
		"invited":   in.InvitationToken != "",
	})
	return user, nil
}

// bootstrapOrgAdmin attaches the full-mask organization-scoped admin
// group to the first user of a new organization, creating the group if
// a concurrent signup has not done so already. Two simultaneous first
// signups can still both end up admin; resolving that needs a
// serializable transaction at the storage layer.
func (s *Service) bootstrapOrgAdmin(ctx context.Context, org *workflow.Organization, user *workflow.CoreUser) error {
	groups := s.store.Groups(ctx)
	admin, err := groups.FindOrgAdmin(ctx, org.ID)
	if errors.Is(err, workflow.ErrNotFound) {
		admin, err = s.wf.CreateGroup(ctx, workflow.CoreGroup{
			OrganizationID: org.ID,
			Name:           workflow.RoleOrgAdmin,
			Permissions:    permission.OrgAdmin,
			Scope:          workflow.ScopeOrganization,
		})
		if errors.Is(err, workflow.ErrConflict) {
			admin, err = groups.FindOrgAdmin(ctx, org.ID)
		}
	}
	if err != nil {
		return err
	}
	return groups.AttachUser(ctx, user.ID, admin.ID)
}

// ProfileUpdate carries optional profile changes. A password change
// rotates the reset-token nonce as a side effect.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Password  *string
}

// UpdateProfile applies profile changes to a user.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*workflow.CoreUser, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", workflow.ErrInvalidInput)
	}
	users := s.store.Users(ctx)
	if upd.FirstName != nil || upd.LastName != nil {
		if _, err := users.Update(ctx, userID, workflow.UserUpdate{
			FirstName: upd.FirstName,
			LastName:  upd.LastName,
		}); err != nil {
			return nil, err
		}
	}
	if upd.Password != nil {
		if len(*upd.Password) < MinPasswordLength {
			return nil, fmt.Errorf("%w: password must be at least %d characters", workflow.ErrInvalidInput, MinPasswordLength)
		}
		hash, err := HashPassword(*upd.Password)
		if err != nil {
			return nil, err
		}
		if err := users.UpdatePassword(ctx, userID, hash); err != nil {
			return nil, err
		}
	}
	return users.Find(ctx, userID)
}

// outcomeOf maps a token error to its metrics label.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, tokens.ErrExpired):
		return "expired"
	case errors.Is(err, tokens.ErrAlreadyUsed):
		return "used"
	default:
		return "invalid"
	}
}
