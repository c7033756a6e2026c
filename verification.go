package auth

import (
	"time"

	"github.com/google/uuid"
)

// PendingVerificationTTL bounds how long a sent code can be confirmed.
var PendingVerificationTTL = 10 * time.Minute

// PendingVerification is the caller owned handle of an in-flight one-time
// code. It is returned by StartPhoneSignIn and handed back to
// ConfirmPhoneSignIn.
type PendingVerification struct {
	ID             string    `json:"id"`
	VerificationID string    `json:"verificationId"`
	PhoneNumber    string    `json:"phoneNumber"`
	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

func newPendingVerification(verificationID, phone string, now time.Time) PendingVerification {
	return PendingVerification{
		ID:             uuid.NewString(),
		VerificationID: verificationID,
		PhoneNumber:    phone,
		CreatedAt:      now.UTC(),
		ExpiresAt:      now.Add(PendingVerificationTTL).UTC(),
	}
}

// Expired reports whether the code can no longer be confirmed at now.
func (p PendingVerification) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}
