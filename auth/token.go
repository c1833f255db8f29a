package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultClockSkew tolerated on exp and iat.
const DefaultClockSkew = 5 * time.Minute

// Claims read from an access token.
type Claims struct {
	jwt.RegisteredClaims
	TenantID          string `json:"tid,omitempty"`
	ObjectID          string `json:"oid,omitempty"`
	Email             string `json:"email,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Name              string `json:"name,omitempty"`
}

// UserID prefers the directory object id over the subject.
func (c *Claims) UserID() string {
	if c.ObjectID != "" {
		return c.ObjectID
	}
	return c.Subject
}

func (c *Claims) user() User {
	email := c.Email
	if email == "" {
		email = c.PreferredUsername
	}
	return User{ID: c.UserID(), TenantID: c.TenantID, Email: email, Name: c.Name}
}

// ValidateToken checks the structure and time claims of token without
// verifying its signature; the signature is the resource server's concern.
// exp, iat and aud are required. When expectedTenant is set the tid claim
// must match it.
func ValidateToken(token, expectedTenant string) (*Claims, bool) {
	return validateAt(token, expectedTenant, time.Now(), DefaultClockSkew)
}

func validateAt(token, expectedTenant string, now time.Time, skew time.Duration) (claims *Claims, ok bool) {
	defer func() {
		if recover() != nil {
			claims, ok = nil, false
		}
	}()

	if token == "" || strings.Count(token, ".") != 2 {
		return nil, false
	}

	claims = &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil || len(claims.Audience) == 0 {
		return nil, false
	}
	if claims.ExpiresAt.Time.Before(now.Add(-skew)) {
		return nil, false
	}
	if claims.IssuedAt.Time.After(now.Add(skew)) {
		return nil, false
	}
	if expectedTenant != "" && claims.TenantID != expectedTenant {
		return nil, false
	}
	return claims, true
}
