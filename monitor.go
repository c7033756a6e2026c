package auth

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Monitor defaults.
const (
	DefaultInactivityTimeout  = 30 * time.Minute
	DefaultAuthPollInterval   = 2 * time.Minute
	DefaultValidationInterval = 10 * time.Minute
	DefaultRefreshThreshold   = 5 * time.Minute
)

// MonitorState is the lifecycle state of the ActivityMonitor.
type MonitorState string

const (
	MonitorIdle         MonitorState = "idle"
	MonitorArmed        MonitorState = "armed"
	MonitorBackgrounded MonitorState = "backgrounded"
	MonitorLoggedOut    MonitorState = "logged_out"
)

// AppState is the host application's foreground state.
type AppState string

const (
	AppStateActive     AppState = "active"
	AppStateInactive   AppState = "inactive"
	AppStateBackground AppState = "background"
)

// timerSlot owns one timer. Every cancel bumps seq, so a callback that
// captured an older seq is inert even if it already started running.
type timerSlot struct {
	timer clockwork.Timer
	seq   uint64
}

func (t *timerSlot) arm(clock clockwork.Clock, d time.Duration, fire func(seq uint64)) {
	t.cancel()
	seq := t.seq
	t.timer = clock.AfterFunc(d, func() { fire(seq) })
}

func (t *timerSlot) cancel() {
	t.seq++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *timerSlot) live(seq uint64) bool {
	return t.seq == seq
}

// ActivityMonitor enforces the inactivity timeout, independent of the
// absolute session expiry, and re-validates the session when the app comes
// back to the foreground.
type ActivityMonitor struct {
	authority          SessionAuthority
	clock              clockwork.Clock
	store              KeyValueStore
	logger             Logger
	onLogout           func(LogoutEvent)
	timeout            time.Duration
	pollInterval       time.Duration
	validationInterval time.Duration
	refreshThreshold   time.Duration

	mu             sync.Mutex
	ctx            context.Context
	running        bool
	state          MonitorState
	background     bool
	epoch          uint64
	lastActivityAt time.Time
	backgroundAt   time.Time
	inactivity     timerSlot
	poll           timerSlot
	validation     timerSlot
	unsubscribe    func()
}

// MonitorOption customizes the ActivityMonitor.
type MonitorOption func(*ActivityMonitor)

// WithInactivityTimeout overrides the inactivity window.
func WithInactivityTimeout(d time.Duration) MonitorOption {
	return func(m *ActivityMonitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithAuthPollInterval overrides how often the auth state is polled.
func WithAuthPollInterval(d time.Duration) MonitorOption {
	return func(m *ActivityMonitor) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithValidationInterval overrides how often an armed session is validated.
func WithValidationInterval(d time.Duration) MonitorOption {
	return func(m *ActivityMonitor) {
		if d > 0 {
			m.validationInterval = d
		}
	}
}

// WithRefreshThreshold sets the background duration after which a resume
// triggers a profile refresh.
func WithRefreshThreshold(d time.Duration) MonitorOption {
	return func(m *ActivityMonitor) {
		if d > 0 {
			m.refreshThreshold = d
		}
	}
}

// WithMonitorClock injects a clock (useful for tests).
func WithMonitorClock(clock clockwork.Clock) MonitorOption {
	return func(m *ActivityMonitor) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithMonitorStore persists the background entry time so it survives a
// process restart.
func WithMonitorStore(store KeyValueStore) MonitorOption {
	return func(m *ActivityMonitor) {
		m.store = store
	}
}

// WithLogoutHandler is called after the monitor forced a sign-out, with the
// login route carrying the reason.
func WithLogoutHandler(fn func(LogoutEvent)) MonitorOption {
	return func(m *ActivityMonitor) {
		m.onLogout = fn
	}
}

// WithMonitorLogger overrides the logger.
func WithMonitorLogger(logger Logger) MonitorOption {
	return func(m *ActivityMonitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewActivityMonitor returns an idle monitor. Call Start to begin polling.
func NewActivityMonitor(authority SessionAuthority, opts ...MonitorOption) *ActivityMonitor {
	m := &ActivityMonitor{
		authority:          authority,
		clock:              clockwork.NewRealClock(),
		logger:             defLogger{},
		timeout:            DefaultInactivityTimeout,
		pollInterval:       DefaultAuthPollInterval,
		validationInterval: DefaultValidationInterval,
		refreshThreshold:   DefaultRefreshThreshold,
		state:              MonitorIdle,
		ctx:                context.Background(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// State returns the monitor state.
func (m *ActivityMonitor) State() MonitorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == MonitorArmed && m.background {
		return MonitorBackgrounded
	}
	return m.state
}

// LastActivityAt returns the last recorded interaction.
func (m *ActivityMonitor) LastActivityAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivityAt
}

// Start begins auth polling and arms the inactivity timer when the session
// is authenticated. Starting a logged out monitor resets it to idle, which is
// how a fresh InitializeAuth brings it back.
func (m *ActivityMonitor) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	if m.running && m.state != MonitorLoggedOut {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.ctx = ctx
	m.background = false
	m.transitionLocked(MonitorIdle)
	if m.unsubscribe == nil {
		if notifier, ok := m.authority.(SignOutNotifier); ok {
			m.unsubscribe = notifier.OnSignOut(m.handleSignOut)
		}
	}
	m.mu.Unlock()

	m.checkAuth()
}

// Stop cancels every timer. The monitor can be started again.
func (m *ActivityMonitor) Stop() {
	m.mu.Lock()
	m.running = false
	m.transitionLocked(MonitorIdle)
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// RecordActivity notes a user interaction and restarts the inactivity window.
func (m *ActivityMonitor) RecordActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastActivityAt = m.clock.Now()
	if m.running && m.state == MonitorArmed && !m.background {
		m.inactivity.arm(m.clock, m.timeout, m.onInactivity)
	}
}

// AppStateChanged handles foreground/background transitions.
func (m *ActivityMonitor) AppStateChanged(ctx context.Context, next AppState) {
	switch next {
	case AppStateBackground:
		m.enterBackground(ctx)
	case AppStateActive:
		m.resume(ctx)
	}
}

func (m *ActivityMonitor) enterBackground(ctx context.Context) {
	m.mu.Lock()
	if !m.running || m.background || m.state == MonitorLoggedOut {
		m.mu.Unlock()
		return
	}
	m.background = true
	m.backgroundAt = m.clock.Now()
	at := m.backgroundAt
	m.epoch++
	m.inactivity.cancel()
	m.poll.cancel()
	m.validation.cancel()
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Set(ctx, KeyBackgroundAt, strconv.FormatInt(at.UnixMilli(), 10)); err != nil {
			m.logger.Warn("failed to persist background timestamp", "error", err)
		}
	}
}

func (m *ActivityMonitor) resume(ctx context.Context) {
	m.mu.Lock()
	if !m.running || !m.background {
		m.mu.Unlock()
		return
	}
	m.background = false
	m.epoch++
	epoch := m.epoch
	wasArmed := m.state == MonitorArmed
	backgroundAt := m.backgroundAt
	m.backgroundAt = time.Time{}
	m.mu.Unlock()

	if backgroundAt.IsZero() {
		backgroundAt = m.loadBackgroundAt(ctx)
	}
	m.forgetBackgroundAt(ctx)

	if !wasArmed {
		m.checkAuth()
		return
	}

	validation := m.authority.ValidateSession(ctx)

	m.mu.Lock()
	if m.epoch != epoch || m.state != MonitorArmed {
		m.mu.Unlock()
		return
	}

	if !validation.IsValid {
		m.transitionLocked(MonitorLoggedOut)
		m.mu.Unlock()
		m.forceLogout(ctx, reasonOr(validation.Reason, ReasonSessionInvalid))
		return
	}

	var elapsed time.Duration
	if !backgroundAt.IsZero() {
		elapsed = m.clock.Since(backgroundAt)
	}

	if elapsed > m.timeout {
		m.transitionLocked(MonitorLoggedOut)
		m.mu.Unlock()
		m.forceLogout(ctx, ReasonInactivity)
		return
	}

	m.lastActivityAt = m.clock.Now()
	m.scheduleLocked()
	m.mu.Unlock()

	if elapsed > m.refreshThreshold {
		go func() {
			if err := m.authority.RefreshUserData(ctx); err != nil {
				m.logger.Debug("profile refresh after resume failed", "error", err)
			}
		}()
	}
}

// checkAuth polls the auth state and switches the monitor on or off.
func (m *ActivityMonitor) checkAuth() {
	m.mu.Lock()
	if !m.running || m.background || m.state == MonitorLoggedOut {
		m.mu.Unlock()
		return
	}
	ctx := m.ctx
	epoch := m.epoch
	m.mu.Unlock()

	res := m.authority.GetAuthState(ctx)

	m.mu.Lock()
	if m.epoch != epoch || !m.running || m.background {
		m.mu.Unlock()
		return
	}

	switch {
	case res.IsAuthenticated && m.state == MonitorIdle:
		m.lastActivityAt = m.clock.Now()
		m.transitionLocked(MonitorArmed)
	case !res.IsAuthenticated && m.state == MonitorArmed:
		m.transitionLocked(MonitorLoggedOut)
		m.mu.Unlock()
		m.forceLogout(ctx, reasonOr(res.Reason, ReasonSessionExpired))
		return
	}

	m.poll.arm(m.clock, m.pollInterval, m.onPoll)
	m.mu.Unlock()
}

func (m *ActivityMonitor) onPoll(seq uint64) {
	m.mu.Lock()
	if !m.poll.live(seq) {
		m.mu.Unlock()
		return
	}
	m.poll.timer = nil
	m.mu.Unlock()

	m.checkAuth()
}

func (m *ActivityMonitor) onInactivity(seq uint64) {
	m.mu.Lock()
	if !m.inactivity.live(seq) || m.state != MonitorArmed || m.background {
		m.mu.Unlock()
		return
	}
	m.transitionLocked(MonitorLoggedOut)
	ctx := m.ctx
	m.mu.Unlock()

	m.logger.Info("inactivity timeout reached, signing out")
	m.forceLogout(ctx, ReasonInactivity)
}

func (m *ActivityMonitor) onValidation(seq uint64) {
	m.mu.Lock()
	if !m.validation.live(seq) || m.state != MonitorArmed || m.background {
		m.mu.Unlock()
		return
	}
	m.validation.timer = nil
	ctx := m.ctx
	epoch := m.epoch
	m.mu.Unlock()

	res := m.authority.ValidateSession(ctx)

	m.mu.Lock()
	if m.epoch != epoch || m.state != MonitorArmed {
		m.mu.Unlock()
		return
	}
	if !res.IsValid {
		m.transitionLocked(MonitorLoggedOut)
		m.mu.Unlock()
		m.forceLogout(ctx, reasonOr(res.Reason, ReasonSessionInvalid))
		return
	}
	m.validation.arm(m.clock, m.validationInterval, m.onValidation)
	m.mu.Unlock()
}

// handleSignOut runs when the session was signed out elsewhere.
func (m *ActivityMonitor) handleSignOut(reason LogoutReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || m.state == MonitorLoggedOut {
		return
	}
	m.logger.Debug("session signed out, stopping monitor timers", "reason", reason)
	m.transitionLocked(MonitorLoggedOut)
}

func (m *ActivityMonitor) forceLogout(ctx context.Context, reason LogoutReason) {
	if err := m.authority.SignOut(ctx, reason); err != nil {
		m.logger.Warn("forced sign out failed", "reason", reason, "error", err)
	}
	if m.onLogout != nil {
		m.onLogout(LogoutEvent{Reason: reason, RedirectTo: LoginRedirect(reason)})
	}
}

// transitionLocked moves to next and invalidates every timer armed in the
// previous state. Caller holds mu.
func (m *ActivityMonitor) transitionLocked(next MonitorState) {
	m.epoch++
	m.state = next
	m.scheduleLocked()
}

// scheduleLocked arms the timers the current state needs. Caller holds mu.
func (m *ActivityMonitor) scheduleLocked() {
	m.inactivity.cancel()
	m.validation.cancel()
	m.poll.cancel()

	if !m.running || m.background {
		return
	}

	switch m.state {
	case MonitorArmed:
		m.inactivity.arm(m.clock, m.timeout, m.onInactivity)
		m.validation.arm(m.clock, m.validationInterval, m.onValidation)
		m.poll.arm(m.clock, m.pollInterval, m.onPoll)
	case MonitorIdle:
		m.poll.arm(m.clock, m.pollInterval, m.onPoll)
	}
}

func (m *ActivityMonitor) loadBackgroundAt(ctx context.Context) time.Time {
	if m.store == nil {
		return time.Time{}
	}
	raw, ok, err := m.store.Get(ctx, KeyBackgroundAt)
	if err != nil || !ok {
		return time.Time{}
	}
	millis, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(millis)
}

func (m *ActivityMonitor) forgetBackgroundAt(ctx context.Context) {
	if m.store == nil {
		return
	}
	if err := m.store.MultiRemove(ctx, []string{KeyBackgroundAt}); err != nil {
		m.logger.Warn("failed to clear background timestamp", "error", err)
	}
}

func reasonOr(reason, fallback LogoutReason) LogoutReason {
	if reason == "" {
		return fallback
	}
	return reason
}
