package auth

import (
	"encoding/json"
	"net/url"
)

// LogoutReason tells the login screen why the session ended.
type LogoutReason string

const (
	ReasonUserSignOut    LogoutReason = "signed_out"
	ReasonSessionExpired LogoutReason = "session_expired"
	ReasonInactivity     LogoutReason = "inactivity_timeout"
	ReasonSessionDesync  LogoutReason = "session_desync"
	ReasonSessionInvalid LogoutReason = "session_invalid"
	ReasonCorrupted      LogoutReason = "session_corrupted"
	ReasonRemoteFailure  LogoutReason = "remote_failure"
	ReasonNoSession      LogoutReason = "no_session"
)

// AuthStateResult is what screens read to decide navigation.
type AuthStateResult struct {
	IsAuthenticated bool         `json:"isAuthenticated"`
	AuthState       AuthState    `json:"authState"`
	UserData        *UserRecord  `json:"userData"`
	UserRole        string       `json:"userRole"`
	RedirectTo      string       `json:"redirectTo"`
	Initialized     bool         `json:"initialized,omitempty"`
	Reason          LogoutReason `json:"reason,omitempty"`
	Error           string       `json:"error,omitempty"`
}

// MarshalJSON writes an empty UserRole as null.
func (r AuthStateResult) MarshalJSON() ([]byte, error) {
	type plain AuthStateResult
	out := struct {
		plain
		UserRole *string `json:"userRole"`
	}{plain: plain(r)}
	if r.UserRole != "" {
		out.UserRole = &r.UserRole
	}
	return json.Marshal(out)
}

// HasSession reports whether a session is cached, whatever its onboarding
// state.
func (r AuthStateResult) HasSession() bool {
	return r.UserData != nil && r.AuthState != StateUnauthenticated
}

// ValidationResult is returned by ValidateSession.
type ValidationResult struct {
	IsValid bool         `json:"isValid"`
	Reason  LogoutReason `json:"reason,omitempty"`
}

// LogoutEvent is delivered when the monitor forces a sign-out.
type LogoutEvent struct {
	Reason     LogoutReason
	RedirectTo string
}

// LoginRedirect builds the login route carrying a reason code.
func LoginRedirect(reason LogoutReason) string {
	if reason == "" {
		return RouteLogin
	}
	return RouteLogin + "?" + url.Values{"reason": {string(reason)}}.Encode()
}

func unauthenticatedResult(reason LogoutReason, err error) AuthStateResult {
	return AuthStateResult{
		IsAuthenticated: false,
		AuthState:       StateUnauthenticated,
		RedirectTo:      RouteLogin,
		Reason:          reason,
		Error:           errorMessage(err),
	}
}

func resultFrom(record *UserRecord, role string, eval Evaluation) AuthStateResult {
	return normalizeResult(AuthStateResult{
		IsAuthenticated: eval.State == StateAuthenticated,
		AuthState:       eval.State,
		UserData:        record,
		UserRole:        role,
		RedirectTo:      eval.RedirectTo,
	})
}

// normalizeResult enforces the contract: a known state and a non empty
// redirect.
func normalizeResult(r AuthStateResult) AuthStateResult {
	if r.AuthState == "" {
		r.AuthState = StateUnauthenticated
	}
	if r.AuthState == StateUnauthenticated {
		r.IsAuthenticated = false
		r.UserData = nil
		r.UserRole = ""
	}
	if r.RedirectTo == "" {
		r.RedirectTo = RouteLogin
	}
	return r
}
