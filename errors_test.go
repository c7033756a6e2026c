package auth_test

import (
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/jayanthbabu123/water-delivery-app-sub000"
)

func requireTextCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr), "expected a go-errors error, got %T", err)
	assert.Equal(t, code, richErr.TextCode)
}

func TestStructuredErrorProperties(t *testing.T) {
	tests := []struct {
		name     string
		err      *goerrors.Error
		category any
		code     string
	}{
		{"ErrNoActiveSession", auth.ErrNoActiveSession, goerrors.CategoryAuth, auth.TextCodeNoActiveSession},
		{"ErrSessionCorrupted", auth.ErrSessionCorrupted, goerrors.CategoryBadInput, auth.TextCodeSessionCorrupted},
		{"ErrInvalidRole", auth.ErrInvalidRole, goerrors.CategoryValidation, auth.TextCodeInvalidRole},
		{"ErrInvalidProfile", auth.ErrInvalidProfile, goerrors.CategoryValidation, auth.TextCodeInvalidProfile},
		{"ErrInvalidPhoneNumber", auth.ErrInvalidPhoneNumber, goerrors.CategoryValidation, auth.TextCodeInvalidPhoneNumber},
		{"ErrIdentityMissing", auth.ErrIdentityMissing, goerrors.CategoryAuth, auth.TextCodeIdentityMissing},
		{"ErrUserNotFound", auth.ErrUserNotFound, goerrors.CategoryNotFound, auth.TextCodeUserNotFound},
		{"ErrVerificationMissing", auth.ErrVerificationMissing, goerrors.CategoryBadInput, auth.TextCodeVerificationMissing},
		{"ErrVerifierUnconfigured", auth.ErrVerifierUnconfigured, goerrors.CategoryInternal, auth.TextCodeVerifierUnconfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.category, tt.err.Category)
			assert.Equal(t, tt.code, tt.err.TextCode)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestErrorMetadataDoesNotLeakIntoSentinels(t *testing.T) {
	_, err := auth.NormalizePhoneNumber("12", "IN")
	requireTextCode(t, err, auth.TextCodeInvalidPhoneNumber)

	assert.Empty(t, auth.ErrInvalidPhoneNumber.Metadata)
}
