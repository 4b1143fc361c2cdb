package lendguard

import (
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the access token claims the console reads for UI gating.
// They are decoded without verifying the signature and are never a trust
// boundary: the backend re-checks authorization on every call.
type TokenClaims struct {
	ExpiresAt time.Time
	// Subject is the sub claim, or userId when sub is absent.
	Subject string
	Email   string
	Role    string
}

// Expired reports whether the token expired at or before now. A token
// without an exp claim counts as expired.
func (c TokenClaims) Expired(now time.Time) bool {
	return c.ExpiresAt.IsZero() || !now.Before(c.ExpiresAt)
}

// DecodeClaims reads the claims of token without verifying its signature.
func DecodeClaims(token string) (TokenClaims, error) {
	claims := jwt.MapClaims{}

	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenClaims{}, fmt.Errorf("lendguard: decode token: %w", err)
	}

	var out TokenClaims

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}

	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}

	if out.Subject == "" {
		out.Subject, _ = claims["userId"].(string)
	}

	out.Email, _ = claims["email"].(string)
	out.Role, _ = claims["role"].(string)

	return out, nil
}

// Claims decodes the claims of the active access token.
func (s *CredentialStore) Claims() (TokenClaims, error) {
	cred, ok := s.Get()
	if !ok {
		return TokenClaims{}, ErrNotAuthenticated
	}

	return DecodeClaims(cred.AccessToken)
}

// Authenticated reports whether a credential is stored and its access token
// has not expired at now.
func (s *CredentialStore) Authenticated(now time.Time) bool {
	claims, err := s.Claims()
	if err != nil {
		return false
	}

	return !claims.Expired(now)
}

// Role returns the role claim of the active access token.
func (s *CredentialStore) Role() (string, bool) {
	claims, err := s.Claims()
	if err != nil || claims.Role == "" {
		return "", false
	}

	return claims.Role, true
}

// UserID returns the subject claim of the active access token.
func (s *CredentialStore) UserID() (string, bool) {
	claims, err := s.Claims()
	if err != nil || claims.Subject == "" {
		return "", false
	}

	return claims.Subject, true
}
