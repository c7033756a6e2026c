package auth

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Session cache keys.
const (
	KeyToken               = "auth.token"
	KeyUserRecord          = "auth.user"
	KeyRole                = "auth.role"
	KeySelectedCommunity   = "auth.selected_community"
	KeyLoginTimestamp      = "auth.login_timestamp"
	KeyAuthState           = "auth.state"
	KeyPendingVerification = "auth.pending_verification"
	KeyBackgroundAt        = "auth.background_at"
)

var sessionKeys = []string{
	KeyToken,
	KeyUserRecord,
	KeyRole,
	KeySelectedCommunity,
	KeyLoginTimestamp,
	KeyAuthState,
}

var ancillaryKeys = []string{
	KeyPendingVerification,
	KeyBackgroundAt,
}

// Snapshot is the decoded content of the session cache.
type Snapshot struct {
	Token             string
	Record            *UserRecord
	Role              string
	SelectedCommunity string
	LoginTimestamp    *time.Time
	AuthState         AuthState
	// Corrupted is set when the cache was found unreadable and cleared.
	Corrupted bool
}

// Active reports whether the snapshot carries a session. The token is the
// only authoritative signal.
func (s Snapshot) Active() bool {
	return s.Token != ""
}

// Evaluate runs the evaluator over the snapshot.
func (s Snapshot) Evaluate() Evaluation {
	if !s.Active() {
		return Evaluate(nil, "", "")
	}
	return Evaluate(s.Record, s.Role, s.SelectedCommunity)
}

// SessionStore owns the schema of the session cache on top of a
// KeyValueStore.
type SessionStore struct {
	kv     KeyValueStore
	now    func() time.Time
	logger Logger
}

// SessionStoreOption customizes a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithSessionStoreClock injects a custom clock (useful for tests).
func WithSessionStoreClock(clock func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSessionStoreLogger overrides the logger.
func WithSessionStoreLogger(logger Logger) SessionStoreOption {
	return func(s *SessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSessionStore returns a SessionStore over kv.
func NewSessionStore(kv KeyValueStore, opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		kv:     kv,
		now:    time.Now,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Write establishes a session for record under identity. The previous
// session keys are removed first and the new fields go out in one batch, so
// a failure at either step never leaves a token next to stale fields.
func (s *SessionStore) Write(ctx context.Context, record *UserRecord, identity Identity) error {
	if record == nil {
		return goerrors.New("cannot write a nil user record", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}
	if identity == nil || strings.TrimSpace(identity.ID()) == "" {
		return ErrIdentityMissing
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode user record")
	}

	entries := map[string]string{
		KeyToken:          identity.ID(),
		KeyUserRecord:     string(payload),
		KeyLoginTimestamp: strconv.FormatInt(s.now().UnixMilli(), 10),
	}

	role := strings.TrimSpace(record.Role)
	if role != "" {
		entries[KeyRole] = role
	}

	community := record.CommunityID()
	if community != "" {
		entries[KeySelectedCommunity] = community
	}

	entries[KeyAuthState] = string(Evaluate(record, role, community).State)

	if err := s.kv.MultiRemove(ctx, sessionKeys); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove previous session")
	}

	if err := s.kv.MultiSet(ctx, entries); err != nil {
		// a store without atomic batches may have applied part of it
		if clearErr := s.kv.MultiRemove(ctx, sessionKeys); clearErr != nil {
			s.logger.Error("failed to clear partial session write", "error", clearErr)
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write session")
	}

	return nil
}

// Read loads the session cache. An undecodable record or timestamp clears
// the cache and yields an empty snapshot flagged Corrupted; it is not an
// error. Errors are only returned when the store itself fails.
func (s *SessionStore) Read(ctx context.Context) (Snapshot, error) {
	values, err := s.kv.MultiGet(ctx, sessionKeys)
	if err != nil {
		return Snapshot{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read session")
	}

	snap := Snapshot{
		Token:             strings.TrimSpace(values[KeyToken]),
		Role:              strings.TrimSpace(values[KeyRole]),
		SelectedCommunity: strings.TrimSpace(values[KeySelectedCommunity]),
		AuthState:         AuthState(values[KeyAuthState]),
	}

	if raw := strings.TrimSpace(values[KeyUserRecord]); raw != "" {
		record := &UserRecord{}
		if err := json.Unmarshal([]byte(raw), record); err != nil {
			return s.heal(ctx, err)
		}
		if strings.TrimSpace(record.UserID) == "" {
			return s.heal(ctx, ErrSessionCorrupted)
		}
		snap.Record = record
	}

	if raw := strings.TrimSpace(values[KeyLoginTimestamp]); raw != "" {
		millis, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return s.heal(ctx, err)
		}
		ts := time.UnixMilli(millis)
		snap.LoginTimestamp = &ts
	}

	if !snap.Active() {
		return Snapshot{}, nil
	}

	// a token without its record or timestamp is a half written session
	if snap.Record == nil || snap.LoginTimestamp == nil {
		return s.heal(ctx, ErrSessionCorrupted)
	}

	return snap, nil
}

func (s *SessionStore) heal(ctx context.Context, cause error) (Snapshot, error) {
	s.logger.Warn("session cache corrupted, clearing", "error", cause)
	if err := s.Clear(ctx); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Corrupted: true}, nil
}

// Clear removes every session and ancillary key in one batch. Missing keys
// are fine, so Clear is idempotent.
func (s *SessionStore) Clear(ctx context.Context) error {
	keys := make([]string, 0, len(sessionKeys)+len(ancillaryKeys))
	keys = append(keys, sessionKeys...)
	keys = append(keys, ancillaryKeys...)
	if err := s.kv.MultiRemove(ctx, keys); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear session")
	}
	return nil
}

// Patch applies mutate to a copy of the cached record and writes back the
// record plus only the denormalized fields that changed. It is the single
// place the record and its denormalized copies are synchronized.
func (s *SessionStore) Patch(ctx context.Context, mutate func(*UserRecord) error) (*UserRecord, error) {
	snap, err := s.Read(ctx)
	if err != nil {
		return nil, err
	}
	if !snap.Active() {
		return nil, ErrNoActiveSession
	}

	next := snap.Record.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(next)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode user record")
	}

	entries := map[string]string{KeyUserRecord: string(payload)}
	var removed []string

	role := strings.TrimSpace(next.Role)
	if role != snap.Role {
		if role == "" {
			removed = append(removed, KeyRole)
		} else {
			entries[KeyRole] = role
		}
	}

	community := next.CommunityID()
	if community != snap.SelectedCommunity {
		if community == "" {
			removed = append(removed, KeySelectedCommunity)
		} else {
			entries[KeySelectedCommunity] = community
		}
	}

	state := Evaluate(next, role, community).State
	if state != snap.AuthState {
		entries[KeyAuthState] = string(state)
	}

	if err := s.kv.MultiSet(ctx, entries); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to patch session")
	}
	if len(removed) > 0 {
		if err := s.kv.MultiRemove(ctx, removed); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to patch session")
		}
	}

	return next, nil
}

// SavePending stores the identifier of an in-flight phone verification.
func (s *SessionStore) SavePending(ctx context.Context, pending PendingVerification) error {
	payload, err := json.Marshal(pending)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode pending verification")
	}
	if err := s.kv.Set(ctx, KeyPendingVerification, string(payload)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store pending verification")
	}
	return nil
}

// LoadPending returns the stored pending verification, if any.
func (s *SessionStore) LoadPending(ctx context.Context) (*PendingVerification, error) {
	raw, ok, err := s.kv.Get(ctx, KeyPendingVerification)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load pending verification")
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	pending := &PendingVerification{}
	if err := json.Unmarshal([]byte(raw), pending); err != nil {
		s.logger.Warn("pending verification corrupted, dropping", "error", err)
		_ = s.ClearPending(ctx)
		return nil, nil
	}
	return pending, nil
}

// ClearPending drops the stored pending verification.
func (s *SessionStore) ClearPending(ctx context.Context) error {
	if err := s.kv.MultiRemove(ctx, []string{KeyPendingVerification}); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear pending verification")
	}
	return nil
}
