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

// RequestPasswordReset mints an independent reset token for every
// active user sharing the address and dispatches one notification per
// token. The dispatch count is returned; zero does not distinguish "no
// such user" from "delivery failed", which keeps account enumeration
// coarse without fully hiding it.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (int, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return 0, fmt.Errorf("%w: valid email is required", workflow.ErrInvalidInput)
	}
	if !s.limiter.Allow(email) {
		return 0, ErrRateLimited
	}

	users, err := s.store.Users(ctx).ListActiveByEmail(ctx, email)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, user := range users {
		uid, token, err := s.signer.MintReset(user.ID, user.PasswordHash, user.LastLogin)
		if err != nil {
			return count, err
		}
		obs.TokenIssued(tokens.PurposeReset)
		count += s.dispatch(ctx, "reset", email, user.OrganizationID, notify.TemplateResetPassword, map[string]any{
			"PasswordResetLink": s.links.ResetConfirm(uid, token),
			"Name":              strings.TrimSpace(user.FirstName + " " + user.LastName),
		})
	}
	obs.NotificationDispatched("reset", count)
	_ = audit.LogEvent(ctx, "coreuser.reset_password", map[string]any{
		"dispatched": count,
	})
	return count, nil
}

// resolveResetUser decodes the uid and checks the token against the
// user's current credential state. A uid pointing at no user and a
// stale nonce both collapse to ErrInvalid.
func (s *Service) resolveResetUser(ctx context.Context, uid, token string) (*workflow.CoreUser, error) {
	userID, err := tokens.DecodeUID(uid)
	if err != nil {
		obs.TokenValidated(tokens.PurposeReset, "invalid")
		return nil, tokens.ErrInvalid
	}
	user, err := s.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			obs.TokenValidated(tokens.PurposeReset, "invalid")
			return nil, tokens.ErrInvalid
		}
		return nil, err
	}
	if err := s.signer.CheckReset(user.ID, user.PasswordHash, user.LastLogin, token); err != nil {
		obs.TokenValidated(tokens.PurposeReset, outcomeOf(err))
		return nil, err
	}
	obs.TokenValidated(tokens.PurposeReset, "valid")
	return user, nil
}

// CheckPasswordReset reports whether the uid/token pair is currently
// redeemable.
func (s *Service) CheckPasswordReset(ctx context.Context, uid, token string) error {
	_, err := s.resolveResetUser(ctx, uid, token)
	return err
}

// ConfirmPasswordReset validates the token and sets the new password.
// Storing the new hash rotates the nonce, so the token cannot be
// replayed afterwards.
func (s *Service) ConfirmPasswordReset(ctx context.Context, uid, token, password, passwordConfirm string) error {
	user, err := s.resolveResetUser(ctx, uid, token)
	if err != nil {
		return err
	}
	if password != passwordConfirm {
		return fmt.Errorf("%w: the two password fields do not match", workflow.ErrInvalidInput)
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", workflow.ErrInvalidInput, MinPasswordLength)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.store.Users(ctx).UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, "coreuser.reset_password_confirm", map[string]any{
		"user_uuid": user.UUID,
	})
	return nil
}
