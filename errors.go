package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrInvalidCredentials is returned for unknown emails, unregistered user
// shells, and digest mismatches alike; callers must not be able to tell
// which factor failed.
var ErrInvalidCredentials = goerrors.New("Invalid credentials", goerrors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS").
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidVerificationCode covers absent, mismatched, expired, and
// already consumed codes.
var ErrInvalidVerificationCode = goerrors.New("Invalid verification code", goerrors.CategoryValidation).
	WithTextCode("INVALID_VERIFICATION_CODE").
	WithCode(goerrors.CodeBadRequest)

// ErrAlreadyRegistered guards registration completion against double
// submission: the user shell already carries a password digest.
var ErrAlreadyRegistered = goerrors.New("Email already registered", goerrors.CategoryConflict).
	WithTextCode("ALREADY_REGISTERED").
	WithCode(goerrors.CodeConflict)

// ErrDeliveryFailed is returned when the verification email could not be
// sent. The stored code remains valid so the user can retry.
var ErrDeliveryFailed = goerrors.New("failed to deliver verification email", goerrors.CategoryOperation).
	WithTextCode("DELIVERY_FAILED").
	WithCode(goerrors.CodeInternal)

// ErrMissingSigningKey signals a deployment defect; fatal, never retried.
var ErrMissingSigningKey = goerrors.New("signing key is not configured", goerrors.CategoryInternal).
	WithTextCode("MISSING_SIGNING_KEY").
	WithCode(goerrors.CodeInternal)

// ErrTokenExpired is the canonical expired token error
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode("TOKEN_EXPIRED").
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is the canonical malformed token error
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(goerrors.CodeUnauthorized)

// ErrMismatchedHashAndPassword is the bcrypt comparison failure
var ErrMismatchedHashAndPassword = goerrors.New("mismatched hash and password", goerrors.CategoryAuth).
	WithTextCode("MISMATCHED_PASSWORD").
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString rejects empty required values
var ErrNoEmptyString = goerrors.New("value should not be an empty string", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest)

// ErrUnableToFindSession is the error when our request has no cookie
var ErrUnableToFindSession = goerrors.New("unable to find session", goerrors.CategoryAuth).
	WithTextCode("SESSION_NOT_FOUND").
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToDecodeSession unable to decode JWT from session cookie
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithTextCode("SESSION_DECODE").
	WithCode(goerrors.CodeUnauthorized)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
