package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultTokenTTL is the lifetime of issued tokens.
const DefaultTokenTTL = 24 * time.Hour

// ErrInvalidToken is returned when a token cannot be decoded or its
// signature does not verify.
var ErrInvalidToken = errors.New("invalid token")

// ErrTokenExpired is returned for a well-formed token past its expiry.
var ErrTokenExpired = errors.New("token expired")

// tokenClaims is the signed token payload.
type tokenClaims struct {
	UserID    string `json:"uid"`
	ExpiresAt int64  `json:"exp"`
}

// TokenSigner issues and verifies HMAC-SHA256 signed bearer tokens
// in base64url "payload.signature" form.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenSigner creates a signer with the given secret. A zero ttl
// uses DefaultTokenTTL.
func NewTokenSigner(secret []byte, ttl time.Duration) *TokenSigner {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenSigner{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
	}
}

// Sign returns a token for the user, expiring after the signer's TTL.
func (s *TokenSigner) Sign(userID string, now time.Time) string {
	data, _ := json.Marshal(tokenClaims{
		UserID:    userID,
		ExpiresAt: now.Add(s.ttl).Unix(),
	})
	return base64.RawURLEncoding.EncodeToString(data) + "." +
		base64.RawURLEncoding.EncodeToString(s.sign(data))
}

// Verify checks the signature and expiry and returns the user ID.
func (s *TokenSigner) Verify(token string, now time.Time) (string, error) {
	payload, sigStr, ok := strings.Cut(token, ".")
	if !ok {
		return "", fmt.Errorf("%w: missing signature", ErrInvalidToken)
	}

	data, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: invalid payload: %v", ErrInvalidToken, err)
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigStr)
	if err != nil {
		return "", fmt.Errorf(
			"%w: invalid signature encoding: %v", ErrInvalidToken, err,
		)
	}

	if !hmac.Equal(sig, s.sign(data)) {
		return "", fmt.Errorf("%w: signature mismatch", ErrInvalidToken)
	}

	var claims tokenClaims
	if err := json.Unmarshal(data, &claims); err != nil {
		return "", fmt.Errorf("%w: invalid json: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if now.Unix() >= claims.ExpiresAt {
		return "", ErrTokenExpired
	}
	return claims.UserID, nil
}

func (s *TokenSigner) sign(data []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(data)
	return mac.Sum(nil)
}
