package idtoken

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"

	auth "github.com/jayanthbabu123/water-delivery-app-sub000"
)

// Claims are the ID token claims the provider reads.
type Claims struct {
	PhoneNumber string `json:"phone_number,omitempty"`
	jwt.RegisteredClaims
}

type identity struct {
	id    string
	phone string
}

func (i identity) ID() string          { return i.id }
func (i identity) PhoneNumber() string { return i.phone }

// Provider implements auth.IdentityProvider over the ID token issued by the
// hosted phone authentication service. It holds at most one token; an
// expired token reads as signed out.
type Provider struct {
	keyfunc  jwt.Keyfunc
	issuer   string
	audience string
	methods  []string
	now      func() time.Time
	revoke   func(ctx context.Context, subject string) error
	logger   auth.Logger

	mu     sync.RWMutex
	raw    string
	claims *Claims
}

var _ auth.IdentityProvider = (*Provider)(nil)

// NewProvider creates a provider that verifies tokens with kf.
func NewProvider(kf jwt.Keyfunc, opts ...Option) *Provider {
	p := &Provider{
		keyfunc: kf,
		methods: DefaultValidMethods,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.logger == nil {
		_, p.logger = auth.ResolveLogger("auth.idtoken", nil, nil)
	}
	return p
}

// NewJWKSProvider creates a provider that fetches verification keys from a
// JWKS endpoint and refreshes them in the background. Call the returned stop
// function to end the refresh goroutine.
func NewJWKSProvider(jwksURL string, opts ...Option) (*Provider, func(), error) {
	p := NewProvider(nil, opts...)

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			p.logger.Error("jwks background refresh failed", "url", jwksURL, "error", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load jwks").
			WithMetadata(map[string]any{"url": jwksURL})
	}

	p.keyfunc = jwks.Keyfunc
	return p, jwks.EndBackground, nil
}

// SetToken verifies raw and makes it the current identity.
func (p *Provider) SetToken(raw string) (auth.Identity, error) {
	claims, err := p.parse(raw)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.raw = raw
	p.claims = claims
	p.mu.Unlock()

	return identityFrom(claims), nil
}

// Token returns the current raw token, if any.
func (p *Provider) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.raw
}

// CurrentIdentity implements auth.IdentityProvider.
func (p *Provider) CurrentIdentity(ctx context.Context) (auth.Identity, error) {
	p.mu.RLock()
	claims := p.claims
	p.mu.RUnlock()

	if claims == nil {
		return nil, nil
	}

	if exp := claims.ExpiresAt; exp != nil && !p.now().Before(exp.Time) {
		p.logger.Info("identity token expired, dropping", "sub", claims.Subject)
		p.drop()
		return nil, nil
	}

	return identityFrom(claims), nil
}

// SignOut implements auth.IdentityProvider. The local token is dropped even
// when the revoker fails.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.RLock()
	subject := ""
	if p.claims != nil {
		subject = p.claims.Subject
	}
	p.mu.RUnlock()

	var err error
	if p.revoke != nil && subject != "" {
		err = p.revoke(ctx, subject)
	}
	p.drop()

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "remote sign out failed").
			WithMetadata(map[string]any{"sub": subject})
	}
	return nil
}

func (p *Provider) drop() {
	p.mu.Lock()
	p.raw = ""
	p.claims = nil
	p.mu.Unlock()
}

func (p *Provider) parse(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || p.keyfunc == nil {
		return nil, ErrTokenInvalid
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods(p.methods),
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(p.issuer))
	}
	if p.audience != "" {
		parserOptions = append(parserOptions, jwt.WithAudience(p.audience))
	}

	token, err := jwt.ParseWithClaims(raw, &Claims{}, p.keyfunc, parserOptions...)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrTokenInvalid.Category, ErrTokenInvalid.Message).
			WithTextCode(ErrTokenInvalid.TextCode)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrSubjectMissing
	}
	return claims, nil
}

func identityFrom(claims *Claims) auth.Identity {
	return identity{id: claims.Subject, phone: claims.PhoneNumber}
}
