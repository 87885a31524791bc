package accounts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/MediaMash/buildly-core/internal/tokens"
	"github.com/MediaMash/buildly-core/internal/workflow"
)

// resetCredentials pulls uid and token out of the confirmation link
// built by Links.ResetConfirm: .../<path>/<uid>/<token>/.
func resetCredentials(t *testing.T, body string) (uid, token string) {
	t.Helper()
	start := strings.Index(body, "http")
	if start < 0 {
		t.Fatalf("body carries no link: %q", body)
	}
	link := strings.Fields(body[start:])[0]
	parts := strings.Split(strings.Trim(link, "/"), "/")
	if len(parts) < 2 {
		t.Fatalf("unexpected link shape: %q", link)
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}

func TestRequestPasswordResetFanOut(t *testing.T) {
	svc, store, sink := newTestService(t)
	ctx := context.Background()

	user := registerUser(t, svc, "founder", "founder@acme.org", "Acme")

	// A second active record sharing the address, as happens after a
	// historical duplicate signup.
	dup := *mustFindUser(t, store, user.ID)
	dup.ID = "dup-" + user.ID
	dup.UUID = "dup-" + user.UUID
	dup.Username = "founder2"
	if err := store.Users(ctx).Create(ctx, &dup); err != nil {
		t.Fatalf("Create duplicate: %v", err)
	}

	count, err := svc.RequestPasswordReset(ctx, "Founder@Acme.org")
	if err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 dispatches, got %d", count)
	}
	if len(sink.sent()) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(sink.sent()))
	}
}

func TestRequestPasswordResetUnknownAddress(t *testing.T) {
	svc, _, sink := newTestService(t)

	count, err := svc.RequestPasswordReset(context.Background(), "nobody@example.org")
	if err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if count != 0 || len(sink.sent()) != 0 {
		t.Fatalf("expected zero dispatches, got count=%d msgs=%d", count, len(sink.sent()))
	}
}

func TestRequestPasswordResetSkipsDisabledUsers(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	user := registerUser(t, svc, "founder", "founder@acme.org", "Acme")
	disabled := workflow.UserStatusDisabled
	if _, err := store.Users(ctx).Update(ctx, user.ID, workflow.UserUpdate{Status: &disabled}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	count, err := svc.RequestPasswordReset(ctx, "founder@acme.org")
	if err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if count != 0 {
		t.Fatalf("disabled user must not receive resets, got %d", count)
	}
}

func TestRequestPasswordResetRateLimit(t *testing.T) {
	svc, _, _ := newTestService(t, WithResetRate(rate.Every(time.Hour), 1))
	ctx := context.Background()

	registerUser(t, svc, "founder", "founder@acme.org", "Acme")

	if _, err := svc.RequestPasswordReset(ctx, "founder@acme.org"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := svc.RequestPasswordReset(ctx, "founder@acme.org"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	// A different address has its own budget.
	if _, err := svc.RequestPasswordReset(ctx, "other@acme.org"); err != nil {
		t.Fatalf("unrelated address throttled: %v", err)
	}
}

func TestConfirmPasswordReset(t *testing.T) {
	svc, store, sink := newTestService(t)
	ctx := context.Background()

	user := registerUser(t, svc, "founder", "founder@acme.org", "Acme")
	oldHash := mustFindUser(t, store, user.ID).PasswordHash

	if _, err := svc.RequestPasswordReset(ctx, "founder@acme.org"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	uid, token := resetCredentials(t, sink.sent()[0].Body)

	if err := svc.CheckPasswordReset(ctx, uid, token); err != nil {
		t.Fatalf("CheckPasswordReset: %v", err)
	}

	if err := svc.ConfirmPasswordReset(ctx, uid, token, "brand-new-pass", "different"); !errors.Is(err, workflow.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for mismatch, got %v", err)
	}
	if err := svc.ConfirmPasswordReset(ctx, uid, token, "tiny", "tiny"); !errors.Is(err, workflow.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for short password, got %v", err)
	}

	if err := svc.ConfirmPasswordReset(ctx, uid, token, "brand-new-pass", "brand-new-pass"); err != nil {
		t.Fatalf("ConfirmPasswordReset: %v", err)
	}
	if mustFindUser(t, store, user.ID).PasswordHash == oldHash {
		t.Fatal("password hash must change")
	}

	// The stored hash changed, so the nonce no longer matches.
	if err := svc.CheckPasswordReset(ctx, uid, token); !errors.Is(err, tokens.ErrInvalid) {
		t.Fatalf("expected ErrInvalid after confirmation, got %v", err)
	}
}

func TestCheckPasswordResetRejectsBadUID(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.CheckPasswordReset(ctx, "%%%", "1-abc"); !errors.Is(err, tokens.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for malformed uid, got %v", err)
	}
	if err := svc.CheckPasswordReset(ctx, tokens.EncodeUID("ghost"), "1-abc"); !errors.Is(err, tokens.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for unknown user, got %v", err)
	}
}
