package idtoken

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"

	auth "github.com/jayanthbabu123/water-delivery-app-sub000"
)

// DefaultValidMethods are the asymmetric algorithms a JWKS verifier accepts.
// HMAC keys need WithValidMethods.
var DefaultValidMethods = []string{"RS256", "ES256"}

// Option configures a Provider.
type Option func(*Provider)

// WithIssuer requires the iss claim to match.
func WithIssuer(issuer string) Option {
	return func(p *Provider) {
		p.issuer = issuer
	}
}

// WithAudience requires the aud claim to contain audience.
func WithAudience(audience string) Option {
	return func(p *Provider) {
		p.audience = audience
	}
}

// WithValidMethods restricts the accepted signing algorithms.
func WithValidMethods(methods ...string) Option {
	return func(p *Provider) {
		if len(methods) > 0 {
			p.methods = methods
		}
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithRevoker registers a remote sign-out hook, called before the token is
// dropped.
func WithRevoker(revoke func(ctx context.Context, subject string) error) Option {
	return func(p *Provider) {
		p.revoke = revoke
	}
}

// WithLogger sets the provider logger.
func WithLogger(logger auth.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

var (
	ErrTokenInvalid = goerrors.New("identity token is invalid", goerrors.CategoryAuth).
			WithTextCode("ID_TOKEN_INVALID").
			WithCode(goerrors.CodeUnauthorized)

	ErrTokenExpired = goerrors.New("identity token has expired", goerrors.CategoryAuth).
			WithTextCode("ID_TOKEN_EXPIRED").
			WithCode(goerrors.CodeUnauthorized)

	ErrSubjectMissing = goerrors.New("identity token has no subject", goerrors.CategoryAuth).
				WithTextCode("ID_TOKEN_SUBJECT_MISSING").
				WithCode(goerrors.CodeUnauthorized)
)
