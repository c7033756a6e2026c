package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// DefaultSessionTTL is the absolute session lifetime measured from the last
// successful session establishment.
const DefaultSessionTTL = 24 * time.Hour

// AuthService reconciles the identity provider session with the locally
// cached profile workflow and answers where a user should be routed.
//
// Every operation that touches the session cache runs behind a single mutex,
// so reads and writes of the cache are serialized even on a multi threaded
// host.
type AuthService struct {
	identities   IdentityProvider
	users        DocumentStore
	store        *SessionStore
	verifier     PhoneVerifier
	now          func() time.Time
	ttl          time.Duration
	region       string
	logger       Logger
	provider     LoggerProvider
	activitySink ActivitySink

	mu sync.Mutex

	subsMu      sync.Mutex
	subscribers map[uint64]func(LogoutReason)
	nextSubID   uint64
}

var (
	_ SessionAuthority = (*AuthService)(nil)
	_ SignOutNotifier  = (*AuthService)(nil)
)

// AuthServiceOption customizes AuthService construction.
type AuthServiceOption func(*AuthService)

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) AuthServiceOption {
	return func(s *AuthService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSessionTTL overrides the absolute session lifetime.
func WithSessionTTL(ttl time.Duration) AuthServiceOption {
	return func(s *AuthService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithPhoneRegion sets the region used to parse numbers without a country code.
func WithPhoneRegion(region string) AuthServiceOption {
	return func(s *AuthService) {
		if region = strings.TrimSpace(region); region != "" {
			s.region = region
		}
	}
}

// WithPhoneVerifier enables StartPhoneSignIn and ConfirmPhoneSignIn.
func WithPhoneVerifier(verifier PhoneVerifier) AuthServiceOption {
	return func(s *AuthService) {
		s.verifier = verifier
	}
}

// WithActivitySink sets the ActivitySink used to publish session events.
func WithActivitySink(sink ActivitySink) AuthServiceOption {
	return func(s *AuthService) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

// WithLogger overrides the service logger.
func WithLogger(logger Logger) AuthServiceOption {
	return func(s *AuthService) {
		if logger != nil {
			s.provider, s.logger = ResolveLogger("auth.service", nil, logger)
		}
	}
}

// WithLoggerProvider overrides the logger provider used by the service and
// its session store.
func WithLoggerProvider(provider LoggerProvider) AuthServiceOption {
	return func(s *AuthService) {
		s.provider, s.logger = ResolveLogger("auth.service", provider, s.logger)
	}
}

// NewAuthService wires the service over its collaborators.
func NewAuthService(identities IdentityProvider, users DocumentStore, kv KeyValueStore, opts ...AuthServiceOption) *AuthService {
	provider, logger := ResolveLogger("auth.service", nil, nil)
	s := &AuthService{
		identities:   identities,
		users:        users,
		now:          time.Now,
		ttl:          DefaultSessionTTL,
		region:       DefaultPhoneRegion,
		logger:       logger,
		provider:     provider,
		activitySink: noopActivitySink{},
		subscribers:  map[uint64]func(LogoutReason){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	_, storeLogger := ResolveLogger("auth.session_store", s.provider, s.logger)
	s.store = NewSessionStore(kv,
		WithSessionStoreClock(func() time.Time { return s.now() }),
		WithSessionStoreLogger(storeLogger),
	)

	return s
}

// SessionStore exposes the underlying session cache.
func (s *AuthService) SessionStore() *SessionStore {
	return s.store
}

// InitializeAuth reconciles the cache with the identity provider and returns
// the routing answer. It is called once per process start and never fails:
// internal errors degrade to an unauthenticated result.
func (s *AuthService) InitializeAuth(ctx context.Context) AuthStateResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reconcile(ctx); err != nil {
		s.logger.Error("initialize auth reconciliation failed", "error", err)
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventRemoteFailure,
			Reason:    ReasonRemoteFailure,
			Metadata:  map[string]any{"operation": "initialize", "error": err.Error()},
		})
		res := unauthenticatedResult(ReasonRemoteFailure, err)
		res.Initialized = true
		return res
	}

	res, _ := s.currentState(ctx)
	res.Initialized = true
	return res
}

// GetAuthState returns the current routing answer. Sessions older than the
// absolute TTL are cleared before the evaluator runs.
func (s *AuthService) GetAuthState(ctx context.Context) AuthStateResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, _ := s.currentState(ctx)
	return res
}

// CompleteAuthentication is called once the identity provider confirmed the
// phone sign-in. The user is looked up by phone, since the identity id can be
// freshly minted, and created with onboarding defaults when missing.
func (s *AuthService) CompleteAuthentication(ctx context.Context, phone string, identity Identity) AuthStateResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if identity == nil || strings.TrimSpace(identity.ID()) == "" {
		return unauthenticatedResult(ReasonNoSession, ErrIdentityMissing)
	}

	if strings.TrimSpace(phone) == "" {
		phone = identity.PhoneNumber()
	}

	normalized, err := NormalizePhoneNumber(phone, s.region)
	if err != nil {
		s.logger.Warn("complete authentication rejected phone number", "phone", phone, "error", err)
		return unauthenticatedResult(ReasonNoSession, err)
	}

	record, err := s.users.FindUserByPhone(ctx, normalized)
	if err != nil {
		return s.remoteFailure(ctx, "find_user_by_phone", err)
	}

	if record == nil {
		if record, err = s.users.CreateUser(ctx, identity.ID(), normalized); err != nil {
			return s.remoteFailure(ctx, "create_user", err)
		}
		if record == nil {
			record = NewUserRecord(identity.ID(), normalized)
		}
		s.logger.Info("created user record", "user_id", record.UserID)
	}

	record.MarkLoggedIn(s.now())
	s.persistRemote(ctx, record)

	if err := s.store.Write(ctx, record, identity); err != nil {
		s.logger.Error("complete authentication failed to write session", "error", err)
		return unauthenticatedResult(ReasonRemoteFailure, err)
	}

	if err := s.store.ClearPending(ctx); err != nil {
		s.logger.Warn("failed to clear pending verification", "error", err)
	}

	res, _ := s.currentState(ctx)
	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSessionEstablished,
		UserID:    record.UserID,
		State:     res.AuthState,
	})
	return res
}

// UpdateUserRole records the role a user picked.
func (s *AuthService) UpdateUserRole(ctx context.Context, role string) error {
	parsed, err := validateRole(role)
	if err != nil {
		return err
	}
	return s.mutate(ctx, "role", func(r *UserRecord) error {
		r.Role = parsed
		return nil
	})
}

// UpdateCommunitySelection records the community a user picked.
func (s *AuthService) UpdateCommunitySelection(ctx context.Context, communityID string) error {
	id, err := validateCommunity(communityID)
	if err != nil {
		return err
	}
	return s.mutate(ctx, "community", func(r *UserRecord) error {
		r.EnsureProfile().CommunityID = id
		return nil
	})
}

// UpdateProfileCompletion applies a profile patch.
func (s *AuthService) UpdateProfileCompletion(ctx context.Context, patch ProfilePatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	return s.mutate(ctx, "profile", func(r *UserRecord) error {
		patch.Apply(r.EnsureProfile())
		return nil
	})
}

// ValidateSession re-derives the auth state and confirms the identity
// provider still reports the cached identity. A cached session the provider
// does not know about is cleared.
func (s *AuthService) ValidateSession(ctx context.Context) ValidationResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, snap := s.currentState(ctx)
	if !res.HasSession() {
		reason := res.Reason
		if reason == "" {
			reason = ReasonNoSession
		}
		return ValidationResult{IsValid: false, Reason: reason}
	}

	identity, err := s.identities.CurrentIdentity(ctx)
	if err != nil {
		s.logger.Error("validate session identity lookup failed", "error", err)
		return ValidationResult{IsValid: false, Reason: ReasonRemoteFailure}
	}

	if identity == nil || identity.ID() != snap.Token {
		s.logger.Warn("session desync detected, clearing", "token", snap.Token)
		s.clearLocked(ctx, snap, ActivityEventSessionDesync, ReasonSessionDesync)
		return ValidationResult{IsValid: false, Reason: ReasonSessionDesync}
	}

	return ValidationResult{IsValid: true}
}

// SignOut signs out of the identity provider and clears the local session.
// The local clear happens even when the remote call fails.
func (s *AuthService) SignOut(ctx context.Context, reason LogoutReason) error {
	if reason == "" {
		reason = ReasonUserSignOut
	}

	s.mu.Lock()
	var userID string
	if snap, err := s.store.Read(ctx); err == nil && snap.Record != nil {
		userID = snap.Record.UserID
	}

	if err := s.identities.SignOut(ctx); err != nil {
		s.logger.Warn("remote sign out failed, clearing local session anyway", "error", err)
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventRemoteFailure,
			UserID:    userID,
			Reason:    reason,
			Metadata:  map[string]any{"operation": "sign_out", "error": err.Error()},
		})
	}

	clearErr := s.store.Clear(ctx)
	s.mu.Unlock()

	if clearErr != nil {
		s.logger.Error("failed to clear local session", "error", clearErr)
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSignOut,
		UserID:    userID,
		Reason:    reason,
	})
	s.notifySignOut(reason)

	return clearErr
}

// ClearSession drops the local session without contacting the identity
// provider. Subscribers are not notified.
func (s *AuthService) ClearSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var userID string
	if snap, err := s.store.Read(ctx); err == nil && snap.Record != nil {
		userID = snap.Record.UserID
	}
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSessionCleared,
		UserID:    userID,
	})
	return nil
}

// RefreshUserData reloads the cached record from the document store.
func (s *AuthService) RefreshUserData(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.store.Read(ctx)
	if err != nil {
		return err
	}
	if !snap.Active() {
		return ErrNoActiveSession
	}

	id := snap.Record.UserID
	if id == "" {
		id = snap.Token
	}

	fresh, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to refresh user data")
	}
	if fresh == nil {
		return ErrUserNotFound.Clone().WithMetadata(map[string]any{"user_id": id})
	}

	_, writable := s.users.(UserWriter)

	_, err = s.store.Patch(ctx, func(r *UserRecord) error {
		next := fresh.Clone()
		if !writable {
			// choices made on this device were never persisted remotely
			next.keepLocal(r)
		}
		*r = *next
		return nil
	})
	return err
}

// StartPhoneSignIn sends a one-time code and returns the handle the caller
// must pass to ConfirmPhoneSignIn. The handle is also stored so a restarted
// process can resume it.
func (s *AuthService) StartPhoneSignIn(ctx context.Context, phone string) (PendingVerification, error) {
	if s.verifier == nil {
		return PendingVerification{}, ErrVerifierUnconfigured
	}

	normalized, err := NormalizePhoneNumber(phone, s.region)
	if err != nil {
		return PendingVerification{}, err
	}

	verificationID, err := s.verifier.SendCode(ctx, normalized)
	if err != nil {
		return PendingVerification{}, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send verification code")
	}

	pending := newPendingVerification(verificationID, normalized, s.now())

	s.mu.Lock()
	if err := s.store.SavePending(ctx, pending); err != nil {
		s.logger.Warn("failed to persist pending verification", "error", err)
	}
	s.mu.Unlock()

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventVerificationSent,
		Metadata:  map[string]any{"phone": normalized},
	})

	return pending, nil
}

// ResumePendingVerification returns the stored pending verification, if any.
func (s *AuthService) ResumePendingVerification(ctx context.Context) (*PendingVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.LoadPending(ctx)
}

// ConfirmPhoneSignIn confirms the code for pending and completes
// authentication.
func (s *AuthService) ConfirmPhoneSignIn(ctx context.Context, pending PendingVerification, code string) AuthStateResult {
	if s.verifier == nil {
		return unauthenticatedResult(ReasonNoSession, ErrVerifierUnconfigured)
	}

	if strings.TrimSpace(pending.VerificationID) == "" {
		return unauthenticatedResult(ReasonNoSession, ErrVerificationMissing)
	}

	if pending.Expired(s.now()) {
		return unauthenticatedResult(ReasonNoSession, ErrVerificationMissing.Clone().WithMetadata(map[string]any{
			"expired_at": pending.ExpiresAt,
		}))
	}

	identity, err := s.verifier.ConfirmCode(ctx, pending.VerificationID, code)
	if err != nil {
		s.logger.Warn("verification code rejected", "error", err)
		return unauthenticatedResult(ReasonNoSession, err)
	}

	return s.CompleteAuthentication(ctx, pending.PhoneNumber, identity)
}

// OnSignOut registers fn to run after every SignOut.
func (s *AuthService) OnSignOut(fn func(reason LogoutReason)) (cancel func()) {
	if fn == nil {
		return func() {}
	}

	s.subsMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subscribers, id)
		s.subsMu.Unlock()
	}
}

func (s *AuthService) notifySignOut(reason LogoutReason) {
	s.subsMu.Lock()
	subs := make([]func(LogoutReason), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range subs {
		fn(reason)
	}
}

// reconcile aligns the cache with the identity provider. Caller holds mu.
func (s *AuthService) reconcile(ctx context.Context) error {
	identity, err := s.identities.CurrentIdentity(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to query identity provider")
	}

	snap, err := s.store.Read(ctx)
	if err != nil {
		return err
	}

	if identity == nil || strings.TrimSpace(identity.ID()) == "" {
		if snap.Active() {
			s.logger.Info("identity provider has no user, clearing cached session")
			s.clearLocked(ctx, snap, ActivityEventSessionDesync, ReasonSessionDesync)
		}
		return nil
	}

	if snap.Active() && snap.Token == identity.ID() {
		return nil
	}

	record, err := s.users.GetUserByID(ctx, identity.ID())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to fetch user record")
	}

	if record == nil {
		s.logger.Warn("identity has no user record, sign-in must be completed", "identity", identity.ID())
		if snap.Active() {
			s.clearLocked(ctx, snap, ActivityEventSessionDesync, ReasonSessionDesync)
		}
		return nil
	}

	record.MarkLoggedIn(s.now())
	s.persistRemote(ctx, record)

	if err := s.store.Write(ctx, record, identity); err != nil {
		return err
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSessionReconciled,
		UserID:    record.UserID,
	})
	return nil
}

// currentState reads the cache, applies the absolute expiry and evaluates.
// Caller holds mu.
func (s *AuthService) currentState(ctx context.Context) (AuthStateResult, Snapshot) {
	snap, err := s.store.Read(ctx)
	if err != nil {
		s.logger.Error("failed to read session cache", "error", err)
		return unauthenticatedResult(ReasonRemoteFailure, err), Snapshot{}
	}

	if snap.Corrupted {
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventSessionCorrupted,
			Reason:    ReasonCorrupted,
		})
		return unauthenticatedResult(ReasonCorrupted, nil), Snapshot{}
	}

	if !snap.Active() {
		return unauthenticatedResult("", nil), snap
	}

	if s.expired(snap) {
		s.logger.Info("session expired, clearing", "login_at", snap.LoginTimestamp)
		s.clearLocked(ctx, snap, ActivityEventSessionExpired, ReasonSessionExpired)
		return unauthenticatedResult(ReasonSessionExpired, nil), Snapshot{}
	}

	return resultFrom(snap.Record, snap.Role, snap.Evaluate()), snap
}

func (s *AuthService) expired(snap Snapshot) bool {
	if snap.LoginTimestamp == nil {
		return true
	}
	return s.now().Sub(*snap.LoginTimestamp) > s.ttl
}

func (s *AuthService) mutate(ctx context.Context, field string, fn func(*UserRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.store.Read(ctx)
	if err != nil {
		return err
	}
	if !snap.Active() {
		return ErrNoActiveSession
	}
	if s.expired(snap) {
		s.clearLocked(ctx, snap, ActivityEventSessionExpired, ReasonSessionExpired)
		return ErrNoActiveSession.Clone().WithMetadata(map[string]any{"reason": ReasonSessionExpired})
	}

	if writer, ok := s.users.(UserWriter); ok {
		next := snap.Record.Clone()
		if err := fn(next); err != nil {
			return err
		}
		if err := writer.UpdateUser(ctx, next); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to update user record").
				WithMetadata(map[string]any{"field": field})
		}
	}

	updated, err := s.store.Patch(ctx, fn)
	if err != nil {
		return err
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSessionUpdated,
		UserID:    updated.UserID,
		State:     Evaluate(updated, updated.Role, updated.CommunityID()).State,
		Metadata:  map[string]any{"field": field},
	})
	return nil
}

func (s *AuthService) clearLocked(ctx context.Context, snap Snapshot, event ActivityEventType, reason LogoutReason) {
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Error("failed to clear session", "error", err)
	}
	var userID string
	if snap.Record != nil {
		userID = snap.Record.UserID
	}
	s.recordActivity(ctx, ActivityEvent{
		EventType: event,
		UserID:    userID,
		Reason:    reason,
	})
}

func (s *AuthService) persistRemote(ctx context.Context, record *UserRecord) {
	writer, ok := s.users.(UserWriter)
	if !ok {
		return
	}
	if err := writer.UpdateUser(ctx, record); err != nil {
		s.logger.Warn("failed to persist last login", "user_id", record.UserID, "error", err)
	}
}

func (s *AuthService) remoteFailure(ctx context.Context, operation string, err error) AuthStateResult {
	s.logger.Error("document store call failed", "operation", operation, "error", err)
	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventRemoteFailure,
		Reason:    ReasonRemoteFailure,
		Metadata:  map[string]any{"operation": operation, "error": err.Error()},
	})
	return unauthenticatedResult(ReasonRemoteFailure, err)
}

func (s *AuthService) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	sink := normalizeActivitySink(s.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("auth service activity sink error", "error", err)
	}
}
