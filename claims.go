package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims represents structured JWT claims
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() Role
	Remember() bool
	HasRole(role Role) bool
	IsAdmin() bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims. Remember is
// baked into the token so a refreshed session keeps the persistence
// duration the user originally chose.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID        string `json:"uid,omitempty"`
	UserRole   string `json:"role,omitempty"`
	RememberMe bool   `json:"rmb,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Role returns the global role
func (c *JWTClaims) Role() Role {
	return Role(c.UserRole)
}

// Remember reports whether the session requested extended persistence
func (c *JWTClaims) Remember() bool {
	return c.RememberMe
}

// HasRole checks if the user has a specific role
func (c *JWTClaims) HasRole(role Role) bool {
	return c.Role() == role
}

// IsAdmin checks for the admin role
func (c *JWTClaims) IsAdmin() bool {
	return c.HasRole(RoleAdmin)
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
