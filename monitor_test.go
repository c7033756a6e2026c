package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/jayanthbabu123/water-delivery-app-sub000"
	"github.com/jayanthbabu123/water-delivery-app-sub000/kvstore"
)

var (
	signedIn  = auth.AuthStateResult{IsAuthenticated: true, AuthState: auth.StateAuthenticated, RedirectTo: auth.RouteCustomerHome}
	signedOff = auth.AuthStateResult{AuthState: auth.StateUnauthenticated, RedirectTo: auth.RouteLogin}
)

type logoutSink chan auth.LogoutEvent

func (s logoutSink) handle(ev auth.LogoutEvent) {
	select {
	case s <- ev:
	default:
	}
}

func (s logoutSink) wait(t *testing.T) auth.LogoutEvent {
	t.Helper()
	select {
	case ev := <-s:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for logout event")
		return auth.LogoutEvent{}
	}
}

func newFakeMonitor(t *testing.T, authority auth.SessionAuthority, opts ...auth.MonitorOption) (*auth.ActivityMonitor, *clockwork.FakeClock, logoutSink) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	logouts := make(logoutSink, 4)
	base := []auth.MonitorOption{
		auth.WithMonitorClock(clock),
		auth.WithMonitorLogger(auth.NoopLogger()),
		auth.WithLogoutHandler(logouts.handle),
		auth.WithAuthPollInterval(24 * time.Hour),
		auth.WithValidationInterval(24 * time.Hour),
	}
	m := auth.NewActivityMonitor(authority, append(base, opts...)...)
	t.Cleanup(m.Stop)
	return m, clock, logouts
}

func blockUntil(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n))
}

func TestActivityMonitor_InactivityTimeoutFiresOnce(t *testing.T) {
	authority := &MockAuthority{}
	authority.On("GetAuthState", mock.Anything).Return(signedIn)
	authority.On("SignOut", mock.Anything, auth.ReasonInactivity).Return(nil).Once()

	logouts := make(logoutSink, 4)
	m := auth.NewActivityMonitor(authority,
		auth.WithInactivityTimeout(100*time.Millisecond),
		auth.WithMonitorLogger(auth.NoopLogger()),
		auth.WithLogoutHandler(logouts.handle),
	)
	defer m.Stop()

	m.Start(context.Background())
	assert.Equal(t, auth.MonitorArmed, m.State())

	time.Sleep(150 * time.Millisecond)
	time.Sleep(500 * time.Millisecond)

	authority.AssertNumberOfCalls(t, "SignOut", 1)
	assert.Equal(t, auth.MonitorLoggedOut, m.State())

	ev := logouts.wait(t)
	assert.Equal(t, auth.ReasonInactivity, ev.Reason)
	assert.Equal(t, "/login?reason=inactivity_timeout", ev.RedirectTo)
	assert.Len(t, logouts, 0)
}

func TestActivityMonitor_StartUnauthenticatedStaysIdle(t *testing.T) {
	authority := &MockAuthority{}
	authority.On("GetAuthState", mock.Anything).Return(signedOff).Once()
	authority.On("GetAuthState", mock.Anything).Return(signedIn)

	m, clock, _ := newFakeMonitor(t, authority, auth.WithAuthPollInterval(time.Minute))

	m.Start(context.Background())
	assert.Equal(t, auth.MonitorIdle, m.State())

	// idle only polls
	blockUntil(t, clock, 1)
	clock.Advance(time.Minute)

	assert.Eventually(t, func() bool { return m.State() == auth.MonitorArmed }, time.Second, 5*time.Millisecond)
	authority.AssertNotCalled(t, "SignOut", mock.Anything, mock.Anything)
}

func TestActivityMonitor_RecordActivityResetsWindow(t *testing.T) {
	authority := &MockAuthority{}
	authority.On("GetAuthState", mock.Anything).Return(signedIn)
	authority.On("SignOut", mock.Anything, auth.ReasonInactivity).Return(nil).Once()

	m, clock, logouts := newFakeMonitor(t, authority)
	m.Start(context.Background())
	blockUntil(t, clock, 3)

	clock.Advance(20 * time.Minute)
	m.RecordActivity()
	assert.Equal(t, clock.Now(), m.LastActivityAt())

	clock.Advance(20 * time.Minute)
	assert.Equal(t, auth.MonitorArmed, m.State())
	authority.AssertNotCalled(t, "SignOut", mock.Anything, mock.Anything)

	clock.Advance(11 * time.Minute)
	ev := logouts.wait(t)
	assert.Equal(t, auth.ReasonInactivity, ev.Reason)
	assert.Equal(t, auth.MonitorLoggedOut, m.State())
	authority.AssertNumberOfCalls(t, "SignOut", 1)
}

func TestActivityMonitor_PollSignsOutWhenSessionEnds(t *testing.T) {
	authority := &MockAuthority{}
	authority.On("GetAuthState", mock.Anything).Return(signedIn).Once()
	authority.On("GetAuthState", mock.Anything).Return(signedOff)
	authority.On("SignOut", mock.Anything, auth.ReasonSessionExpired).Return(nil).Once()

	m, clock, logouts := newFakeMonitor(t, authority, auth.WithAuthPollInterval(2*time.Minute))
	m.Start(context.Background())
	blockUntil(t, clock, 3)

	clock.Advance(2 * time.Minute)

	ev := logouts.wait(t)
	assert.Equal(t, auth.ReasonSessionExpired, ev.Reason)
	assert.Equal(t, "/login?reason=session_expired", ev.RedirectTo)
	assert.Equal(t, auth.MonitorLoggedOut, m.State())
}

func TestActivityMonitor_FailedValidationSignsOut(t *testing.T) {
	authority := &MockAuthority{}
	authority.On("GetAuthState", mock.Anything).Return(signedIn)
	authority.On("ValidateSession", mock.Anything).Return(auth.ValidationResult{IsValid: false, Reason: auth.ReasonSessionDesync})
	authority.On("SignOut", mock.Anything, auth.ReasonSessionDesync).Return(nil).Once()

	m, clock, logouts := newFakeMonitor(t, authority, auth.WithValidationInterval(10*time.Minute))
	m.Start(context.Background())
	blockUntil(t, clock, 3)

	clock.Advance(10 * time.Minute)

	ev := logouts.wait(t)
	assert.Equal(t, auth.ReasonSessionDesync, ev.Reason)
	assert.Equal(t, auth.MonitorLoggedOut, m.State())
}

func TestActivityMonitor_BackgroundSuspendsTimers(t *testing.T) {
	authority := &MockAuthority{}
	authority.On("GetAuthState", mock.Anything).Return(signedIn)

	kv := kvstore.NewMemoryStore()
	m, clock, _ := newFakeMonitor(t, authority, auth.WithMonitorStore(kv))
	ctx := context.Background()
	m.Start(ctx)
	blockUntil(t, clock, 3)

	m.AppStateChanged(ctx, auth.AppStateBackground)
	assert.Equal(t, auth.MonitorBackgrounded, m.State())

	raw, ok, err := kv.Get(ctx, auth.KeyBackgroundAt)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, raw)

	clock.Advance(2 * auth.DefaultInactivityTimeout)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, auth.MonitorBackgrounded, m.State())
	authority.AssertNotCalled(t, "SignOut", mock.Anything, mock.Anything)

	// inactive is not a background transition
	m.AppStateChanged(ctx, auth.AppStateInactive)
	assert.Equal(t, auth.MonitorBackgrounded, m.State())
}

func TestActivityMonitor_ResumeAfterTimeoutSignsOut(t *testing.T) {
	authority := &MockAuthority{}
	authority.On("GetAuthState", mock.Anything).Return(signedIn)
	authority.On("ValidateSession", mock.Anything).Return(auth.ValidationResult{IsValid: true})
	authority.On("SignOut", mock.Anything, auth.ReasonInactivity).Return(nil).Once()

	kv := kvstore.NewMemoryStore()
	m, clock, logouts := newFakeMonitor(t, authority, auth.WithMonitorStore(kv))
	ctx := context.Background()
	m.Start(ctx)

	m.AppStateChanged(ctx, auth.AppStateBackground)
	clock.Advance(auth.DefaultInactivityTimeout + time.Minute)
	m.AppStateChanged(ctx, auth.AppStateActive)

	ev := logouts.wait(t)
	assert.Equal(t, auth.ReasonInactivity, ev.Reason)
	assert.Equal(t, auth.MonitorLoggedOut, m.State())

	_, ok, err := kv.Get(ctx, auth.KeyBackgroundAt)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestActivityMonitor_ResumeRefreshesAfterThreshold(t *testing.T) {
	refreshed := make(chan struct{})

	authority := &MockAuthority{}
	authority.On("GetAuthState", mock.Anything).Return(signedIn)
	authority.On("ValidateSession", mock.Anything).Return(auth.ValidationResult{IsValid: true})
	authority.On("RefreshUserData", mock.Anything).Return(nil).Once().Run(func(mock.Arguments) {
		close(refreshed)
	})

	m, clock, _ := newFakeMonitor(t, authority)
	ctx := context.Background()
	m.Start(ctx)

	m.AppStateChanged(ctx, auth.AppStateBackground)
	clock.Advance(6 * time.Minute)
	m.AppStateChanged(ctx, auth.AppStateActive)

	select {
	case <-refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a profile refresh after a long background")
	}

	assert.Equal(t, auth.MonitorArmed, m.State())
	assert.Equal(t, clock.Now(), m.LastActivityAt())
	authority.AssertNotCalled(t, "SignOut", mock.Anything, mock.Anything)
}

func TestActivityMonitor_ShortResumeSkipsRefresh(t *testing.T) {
	authority := &MockAuthority{}
	authority.On("GetAuthState", mock.Anything).Return(signedIn)
	authority.On("ValidateSession", mock.Anything).Return(auth.ValidationResult{IsValid: true})

	m, clock, _ := newFakeMonitor(t, authority)
	ctx := context.Background()
	m.Start(ctx)

	m.AppStateChanged(ctx, auth.AppStateBackground)
	clock.Advance(time.Minute)
	m.AppStateChanged(ctx, auth.AppStateActive)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, auth.MonitorArmed, m.State())
	authority.AssertNotCalled(t, "RefreshUserData", mock.Anything)
	authority.AssertNumberOfCalls(t, "ValidateSession", 1)
}

func TestActivityMonitor_ResumeWithInvalidSession(t *testing.T) {
	authority := &MockAuthority{}
	authority.On("GetAuthState", mock.Anything).Return(signedIn)
	authority.On("ValidateSession", mock.Anything).Return(auth.ValidationResult{IsValid: false})
	authority.On("SignOut", mock.Anything, auth.ReasonSessionInvalid).Return(nil).Once()

	m, _, logouts := newFakeMonitor(t, authority)
	ctx := context.Background()
	m.Start(ctx)

	m.AppStateChanged(ctx, auth.AppStateBackground)
	m.AppStateChanged(ctx, auth.AppStateActive)

	assert.Equal(t, auth.ReasonSessionInvalid, logouts.wait(t).Reason)
}

func TestActivityMonitor_ExternalSignOut(t *testing.T) {
	authority := &notifyingAuthority{MockAuthority: &MockAuthority{}}
	authority.On("GetAuthState", mock.Anything).Return(signedIn)

	m, clock, logouts := newFakeMonitor(t, authority)
	m.Start(context.Background())
	assert.Equal(t, auth.MonitorArmed, m.State())

	authority.announce(auth.ReasonUserSignOut)
	assert.Equal(t, auth.MonitorLoggedOut, m.State())

	clock.Advance(2 * auth.DefaultInactivityTimeout)
	time.Sleep(20 * time.Millisecond)

	authority.AssertNotCalled(t, "SignOut", mock.Anything, mock.Anything)
	assert.Len(t, logouts, 0)

	// a fresh start after sign in arms again
	m.Start(context.Background())
	assert.Equal(t, auth.MonitorArmed, m.State())
}

func TestActivityMonitor_StopCancelsTimers(t *testing.T) {
	authority := &MockAuthority{}
	authority.On("GetAuthState", mock.Anything).Return(signedIn)

	m, clock, _ := newFakeMonitor(t, authority)
	m.Start(context.Background())
	m.Stop()
	assert.Equal(t, auth.MonitorIdle, m.State())

	clock.Advance(2 * auth.DefaultInactivityTimeout)
	time.Sleep(20 * time.Millisecond)
	authority.AssertNotCalled(t, "SignOut", mock.Anything, mock.Anything)
}

func TestActivityMonitor_WithAuthService(t *testing.T) {
	f := newFixture(t)
	f.seed(t, authenticatedRecord("u1", auth.RoleCustomer))
	f.identities.On("SignOut", mock.Anything).Return(nil).Once()

	m, clock, logouts := newFakeMonitor(t, f.svc)
	m.Start(context.Background())
	assert.Equal(t, auth.MonitorArmed, m.State())
	blockUntil(t, clock, 3)

	clock.Advance(auth.DefaultInactivityTimeout + time.Second)

	ev := logouts.wait(t)
	assert.Equal(t, auth.ReasonInactivity, ev.Reason)
	assert.Equal(t, 0, f.kv.Len())
	assert.False(t, f.svc.GetAuthState(context.Background()).IsAuthenticated)
	assert.Equal(t, auth.MonitorLoggedOut, m.State())
}
