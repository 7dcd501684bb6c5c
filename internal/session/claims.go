package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the subset of access-token claims the client inspects.
// The token is opaque to the client's authorization path; claims are only
// decoded, never verified, for display and debug logging.
type AccessClaims struct {
	Subject   string
	ExpiresAt time.Time
}

// Claims decodes the record's access token without signature verification.
// Verification is the server's job; the client has no key material.
func (r *Record) Claims() (*AccessClaims, error) {
	if r == nil || r.AccessToken == "" {
		return nil, fmt.Errorf("no access token")
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(r.AccessToken, claims); err != nil {
		return nil, fmt.Errorf("failed to decode access token: %w", err)
	}

	out := &AccessClaims{}
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}

	return out, nil
}
