package auth

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model. An empty PasswordHash marks an unregistered
// shell created by a verification code request; registration completion
// replaces it with a real digest.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role          Role       `bun:"user_role,notnull" json:"user_role,omitempty"`
	Name          string     `bun:"name" json:"name,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash" json:"-"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// IsRegistered reports whether registration has completed for this user.
// A shell created by a code request has an empty digest, which is a
// different condition from a mismatched digest.
func (u *User) IsRegistered() bool {
	return u != nil && u.PasswordHash != ""
}

// NormalizeEmail lowercases and trims an email address. All storage and
// lookups go through this so case variants resolve to the same account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// VerificationCodeTTL is how long a code stays redeemable.
const VerificationCodeTTL = 15 * time.Minute

// VerificationCode is a single use, time limited registration credential.
// At most one unconsumed code exists per email; issuing a new one
// replaces the previous record.
type VerificationCode struct {
	bun.BaseModel `bun:"table:verification_codes,alias:vcode"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	Code          string     `bun:"code,notnull" json:"code,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// IsExpired uses an exclusive boundary: a code at exactly ExpiresAt is
// already expired.
func (c *VerificationCode) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// NewVerificationCode creates a fresh 6 digit code for the given user.
func NewVerificationCode(user *User, now time.Time) *VerificationCode {
	return &VerificationCode{
		ID:        uuid.New(),
		UserID:    user.ID,
		Email:     user.Email,
		Code:      generateNumericCode(),
		ExpiresAt: now.Add(VerificationCodeTTL),
	}
}

// generateNumericCode returns a 6 digit string in [100000, 999999].
func generateNumericCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		// crypto/rand failing means the platform is broken; there is no
		// reasonable recovery path for issuing credentials.
		panic(err)
	}
	return big.NewInt(0).Add(n, big.NewInt(100000)).String()
}
