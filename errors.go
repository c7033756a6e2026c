package auth

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeNoActiveSession      = "NO_ACTIVE_SESSION"
	TextCodeSessionCorrupted     = "SESSION_CORRUPTED"
	TextCodeInvalidRole          = "INVALID_ROLE"
	TextCodeInvalidProfile       = "INVALID_PROFILE"
	TextCodeInvalidPhoneNumber   = "INVALID_PHONE_NUMBER"
	TextCodeIdentityMissing      = "IDENTITY_MISSING"
	TextCodeUserNotFound         = "USER_NOT_FOUND"
	TextCodeVerificationMissing  = "VERIFICATION_MISSING"
	TextCodeVerifierUnconfigured = "PHONE_VERIFIER_UNCONFIGURED"
)

// ErrNoActiveSession is returned by mutations when no session is cached.
var ErrNoActiveSession = goerrors.New("no active session", goerrors.CategoryAuth).
	WithTextCode(TextCodeNoActiveSession).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionCorrupted marks a cached record that could not be decoded.
var ErrSessionCorrupted = goerrors.New("cached session is corrupted", goerrors.CategoryBadInput).
	WithTextCode(TextCodeSessionCorrupted).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidRole is returned for roles a user cannot pick.
var ErrInvalidRole = goerrors.New("user has an unknown or invalid role", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidRole).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidProfile is returned when a profile patch fails validation.
var ErrInvalidProfile = goerrors.New("profile update is invalid", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidProfile).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidPhoneNumber is returned for numbers that cannot be normalized.
var ErrInvalidPhoneNumber = goerrors.New("phone number is invalid", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidPhoneNumber).
	WithCode(goerrors.CodeBadRequest)

// ErrIdentityMissing is returned when an operation needs a remote identity.
var ErrIdentityMissing = goerrors.New("identity provider has no active identity", goerrors.CategoryAuth).
	WithTextCode(TextCodeIdentityMissing).
	WithCode(goerrors.CodeUnauthorized)

// ErrUserNotFound is returned when the document store has no record.
var ErrUserNotFound = goerrors.New("user record not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrVerificationMissing is returned when confirming without a pending verification.
var ErrVerificationMissing = goerrors.New("no pending phone verification", goerrors.CategoryBadInput).
	WithTextCode(TextCodeVerificationMissing).
	WithCode(goerrors.CodeBadRequest)

// ErrVerifierUnconfigured is returned by phone sign-in without a PhoneVerifier.
var ErrVerifierUnconfigured = goerrors.New("phone verifier is not configured", goerrors.CategoryInternal).
	WithTextCode(TextCodeVerifierUnconfigured).
	WithCode(goerrors.CodeInternal)

// errorMessage extracts a message suitable for AuthStateResult.Error.
func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		return richErr.Message
	}
	return err.Error()
}
