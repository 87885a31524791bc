package tokens

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Reset tokens are not JWTs: they pair an opaque uid (the encoded user
// identifier) with a timestamped nonce derived from the user's current
// password hash and last-login instant. Changing either value rotates
// the nonce and invalidates every outstanding reset token for that
// user, which is the single-use property.

// EncodeUID encodes a user identifier for embedding in a reset link.
func EncodeUID(userID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(userID))
}

// DecodeUID reverses EncodeUID. Any malformed input is ErrInvalid.
func DecodeUID(uid string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(uid))
	if err != nil || len(raw) == 0 {
		return "", ErrInvalid
	}
	return string(raw), nil
}

// MintReset issues the uid and reset token for a user.
func (s *Signer) MintReset(userID, passwordHash string, lastLogin time.Time) (uid, token string, err error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", "", fmt.Errorf("user id is required")
	}
	ts := s.now().UTC().Unix()
	nonce := s.resetNonce(userID, passwordHash, lastLogin, ts)
	return EncodeUID(userID), strconv.FormatInt(ts, 36) + "-" + nonce, nil
}

// CheckReset recomputes the nonce from the user's current credential
// state and compares it against the token. A stale nonce means the
// password already changed, so the token counts as consumed.
func (s *Signer) CheckReset(userID, passwordHash string, lastLogin time.Time, token string) error {
	parts := strings.SplitN(strings.TrimSpace(token), "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ErrInvalid
	}
	ts, err := strconv.ParseInt(parts[0], 36, 64)
	if err != nil || ts <= 0 {
		return ErrInvalid
	}
	now := s.now().UTC()
	issued := time.Unix(ts, 0).UTC()
	if issued.After(now.Add(time.Minute)) {
		return ErrInvalid
	}
	if now.Sub(issued) > s.resetTTL {
		return ErrExpired
	}
	expected := s.resetNonce(userID, passwordHash, lastLogin, ts)
	if !hmac.Equal([]byte(expected), []byte(parts[1])) {
		return ErrInvalid
	}
	return nil
}

func (s *Signer) resetNonce(userID, passwordHash string, lastLogin time.Time, ts int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "reset:%s:%s:%d:%d", userID, passwordHash, lastLogin.UTC().Unix(), ts)
	sum := mac.Sum(nil)
	// Truncated to keep the link short; 16 bytes of HMAC output is
	// ample for a bearer nonce.
	return hex.EncodeToString(sum[:16])
}
