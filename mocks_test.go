package auth_test

import (
	"context"
	"errors"
	"sync"

	"github.com/stretchr/testify/mock"

	auth "github.com/jayanthbabu123/water-delivery-app-sub000"
)

// testIdentity implements auth.Identity
type testIdentity struct {
	id    string
	phone string
}

func (i testIdentity) ID() string          { return i.id }
func (i testIdentity) PhoneNumber() string { return i.phone }

// MockIdentityProvider implements auth.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) CurrentIdentity(ctx context.Context) (auth.Identity, error) {
	args := m.Called(ctx)
	if identity, ok := args.Get(0).(auth.Identity); ok {
		return identity, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityProvider) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockDocumentStore implements auth.DocumentStore
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) GetUserByID(ctx context.Context, id string) (*auth.UserRecord, error) {
	args := m.Called(ctx, id)
	if record, ok := args.Get(0).(*auth.UserRecord); ok {
		return record, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDocumentStore) CreateUser(ctx context.Context, id, phone string) (*auth.UserRecord, error) {
	args := m.Called(ctx, id, phone)
	if record, ok := args.Get(0).(*auth.UserRecord); ok {
		return record, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDocumentStore) FindUserByPhone(ctx context.Context, phone string) (*auth.UserRecord, error) {
	args := m.Called(ctx, phone)
	if record, ok := args.Get(0).(*auth.UserRecord); ok {
		return record, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockWritableDocumentStore also implements auth.UserWriter
type MockWritableDocumentStore struct {
	MockDocumentStore
}

func (m *MockWritableDocumentStore) UpdateUser(ctx context.Context, record *auth.UserRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockPhoneVerifier implements auth.PhoneVerifier
type MockPhoneVerifier struct {
	mock.Mock
}

func (m *MockPhoneVerifier) SendCode(ctx context.Context, phone string) (string, error) {
	args := m.Called(ctx, phone)
	return args.String(0), args.Error(1)
}

func (m *MockPhoneVerifier) ConfirmCode(ctx context.Context, verificationID, code string) (auth.Identity, error) {
	args := m.Called(ctx, verificationID, code)
	if identity, ok := args.Get(0).(auth.Identity); ok {
		return identity, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockAuthority implements auth.SessionAuthority
type MockAuthority struct {
	mock.Mock
}

func (m *MockAuthority) GetAuthState(ctx context.Context) auth.AuthStateResult {
	args := m.Called(ctx)
	return args.Get(0).(auth.AuthStateResult)
}

func (m *MockAuthority) ValidateSession(ctx context.Context) auth.ValidationResult {
	args := m.Called(ctx)
	return args.Get(0).(auth.ValidationResult)
}

func (m *MockAuthority) SignOut(ctx context.Context, reason auth.LogoutReason) error {
	args := m.Called(ctx, reason)
	return args.Error(0)
}

func (m *MockAuthority) RefreshUserData(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// notifyingAuthority adds auth.SignOutNotifier to MockAuthority
type notifyingAuthority struct {
	*MockAuthority

	mu  sync.Mutex
	fns []func(auth.LogoutReason)
}

func (n *notifyingAuthority) OnSignOut(fn func(auth.LogoutReason)) func() {
	n.mu.Lock()
	n.fns = append(n.fns, fn)
	n.mu.Unlock()
	return func() {}
}

func (n *notifyingAuthority) announce(reason auth.LogoutReason) {
	n.mu.Lock()
	fns := append([]func(auth.LogoutReason){}, n.fns...)
	n.mu.Unlock()
	for _, fn := range fns {
		fn(reason)
	}
}

// failingKV fails every call
type failingKV struct {
	err error
}

func (f failingKV) Get(context.Context, string) (string, bool, error) { return "", false, f.err }
func (f failingKV) Set(context.Context, string, string) error         { return f.err }
func (f failingKV) MultiGet(context.Context, []string) (map[string]string, error) {
	return nil, f.err
}
func (f failingKV) MultiSet(context.Context, map[string]string) error { return f.err }
func (f failingKV) MultiRemove(context.Context, []string) error       { return f.err }

// flakyKV fails the next n calls of one batch operation
type flakyKV struct {
	auth.KeyValueStore
	mu   sync.Mutex
	op   string
	left int
}

func (f *flakyKV) failOn(op string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.op = op
	f.left = n
}

func (f *flakyKV) fail(op string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.op != op || f.left == 0 {
		return false
	}
	f.left--
	return true
}

func (f *flakyKV) MultiSet(ctx context.Context, entries map[string]string) error {
	if f.fail("MultiSet") {
		return errFlaky
	}
	return f.KeyValueStore.MultiSet(ctx, entries)
}

func (f *flakyKV) MultiRemove(ctx context.Context, keys []string) error {
	if f.fail("MultiRemove") {
		return errFlaky
	}
	return f.KeyValueStore.MultiRemove(ctx, keys)
}

var errFlaky = errors.New("kv unavailable")

// eventRecorder collects activity events
type eventRecorder struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *eventRecorder) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) types() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}
