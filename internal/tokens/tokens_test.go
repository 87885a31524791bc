package tokens

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestSigner(t *testing.T, opts ...SignerOption) *Signer {
	t.Helper()
	s, err := NewSigner("test-secret", opts...)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	return s
}

func TestNewSignerRequiresSecret(t *testing.T) {
	if _, err := NewSigner("   "); err == nil {
		t.Fatal("expected error for blank secret")
	}
}

func TestInvitationRoundTrip(t *testing.T) {
	s := newTestSigner(t)

	token, err := s.MintInvitation("Person@Example.ORG", "org-uuid-1")
	if err != nil {
		t.Fatalf("MintInvitation: %v", err)
	}

	claims, err := s.Validate(token, PurposeInvite)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Email != "person@example.org" {
		t.Fatalf("email not normalized: %q", claims.Email)
	}
	if claims.OrganizationUUID != "org-uuid-1" {
		t.Fatalf("unexpected org uuid: %q", claims.OrganizationUUID)
	}
	if claims.ID == "" {
		t.Fatal("expected a token id")
	}
}

func TestEventInvitationCarriesRoomAndEvent(t *testing.T) {
	s := newTestSigner(t)

	token, err := s.MintEventInvitation("guest@example.org", "Acme", "room-1", "event-1")
	if err != nil {
		t.Fatalf("MintEventInvitation: %v", err)
	}

	claims, err := s.Validate(token, PurposeEventInvite)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.RoomUUID != "room-1" || claims.EventUUID != "event-1" {
		t.Fatalf("room/event not preserved: %+v", claims)
	}
	if claims.OrganizationName != "Acme" {
		t.Fatalf("organization name not preserved: %q", claims.OrganizationName)
	}
}

func TestValidateRejectsWrongPurpose(t *testing.T) {
	s := newTestSigner(t)

	token, err := s.MintInvitation("person@example.org", "org-uuid-1")
	if err != nil {
		t.Fatalf("MintInvitation: %v", err)
	}
	if _, err := s.Validate(token, PurposeEventInvite); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestValidateExpired(t *testing.T) {
	issued := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	clock := issued
	s := newTestSigner(t, WithClock(func() time.Time { return clock }))

	token, err := s.MintInvitation("person@example.org", "org-uuid-1")
	if err != nil {
		t.Fatalf("MintInvitation: %v", err)
	}

	clock = issued.Add(23 * time.Hour)
	if _, err := s.Validate(token, PurposeInvite); err != nil {
		t.Fatalf("token should still be valid: %v", err)
	}

	clock = issued.Add(25 * time.Hour)
	if _, err := s.Validate(token, PurposeInvite); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestValidateRejectsTampering(t *testing.T) {
	s := newTestSigner(t)

	token, err := s.MintInvitation("person@example.org", "org-uuid-1")
	if err != nil {
		t.Fatalf("MintInvitation: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", token)
	}
	tampered := parts[0] + ".eyJlbWFpbCI6ImV2aWxAZXhhbXBsZS5vcmcifQ." + parts[2]
	if _, err := s.Validate(tampered, PurposeInvite); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	s := newTestSigner(t)
	other, err := NewSigner("other-secret")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	token, err := other.MintInvitation("person@example.org", "org-uuid-1")
	if err != nil {
		t.Fatalf("MintInvitation: %v", err)
	}
	if _, err := s.Validate(token, PurposeInvite); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	s := newTestSigner(t)
	for _, raw := range []string{"", "   ", "not-a-token", "a.b.c"} {
		if _, err := s.Validate(raw, PurposeInvite); !errors.Is(err, ErrInvalid) {
			t.Fatalf("Validate(%q): expected ErrInvalid, got %v", raw, err)
		}
	}
}
