package authstate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/authstate/session"
)

const defaultConfirmTimeout = 10 * time.Second

// Manager holds the authoritative view of one execution context's session:
// one request on the server, the whole process lifetime on a client.
//
// Every method is safe for concurrent use. Backend calls run outside the lock
// and the last write wins; a validation whose session was replaced while it
// was in flight is discarded.
type Manager struct {
	backend Backend
	store   session.Store

	execCtx        ExecutionContext
	bearer         string
	now            func() time.Time
	logger         *slog.Logger
	defaultTTL     time.Duration
	rememberTTL    time.Duration
	confirmTimeout time.Duration

	mu        sync.Mutex
	state     State
	token     string
	user      *session.User
	expiresAt time.Time
	tentative bool
	epoch     uint64
	lastErr   error

	initOnce    sync.Once
	ready       chan struct{}
	confirmOnce sync.Once
	confirmed   chan struct{}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithExecutionContext selects OneShot (default) or Persistent reconciliation.
func WithExecutionContext(c ExecutionContext) ManagerOption {
	return func(m *Manager) { m.execCtx = c }
}

// WithBearerToken supplies the request's Authorization credential. It takes
// precedence over the store's token in a OneShot Initialize.
func WithBearerToken(token string) ManagerOption {
	return func(m *Manager) { m.bearer = token }
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTTLs sets the lifetimes assumed when the backend gives no hint: def for
// a plain login, remember for remember-me logins and Refresh.
func WithTTLs(def, remember time.Duration) ManagerOption {
	return func(m *Manager) {
		if def > 0 {
			m.defaultTTL = def
		}
		if remember > 0 {
			m.rememberTTL = remember
		}
	}
}

// WithConfirmTimeout bounds the background confirmation of a Persistent
// Initialize.
func WithConfirmTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.confirmTimeout = d
		}
	}
}

// NewManager returns a Manager in StateUnknown. store may be nil, in which
// case nothing is persisted.
func NewManager(backend Backend, store session.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		backend:        backend,
		store:          store,
		now:            time.Now,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		defaultTTL:     time.Hour,
		rememberTTL:    7 * 24 * time.Hour,
		confirmTimeout: defaultConfirmTimeout,
		ready:          make(chan struct{}),
		confirmed:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Login authenticates creds against the backend. On success the whole session
// is replaced at once and written to the store. On any failure the session is
// cleared and the reason returned.
func (m *Manager) Login(ctx context.Context, creds Credentials) (session.User, error) {
	resp, err := m.backend.Authenticate(ctx, creds)
	if err == nil && (resp.Token == "" || resp.User == nil) {
		err = fmt.Errorf("%w: login response carried no token or user", ErrTokenInvalid)
	}
	if err != nil {
		m.fail(ctx, err)
		return session.User{}, err
	}

	hint := resp.ExpiresIn
	if hint <= 0 {
		hint = creds.RequestedDuration
	}
	if hint <= 0 {
		hint = m.defaultTTL
		if creds.RememberMe {
			hint = m.rememberTTL
		}
	}

	user := resp.User.Clone()
	m.mu.Lock()
	m.epoch++
	m.state = StateAuthenticated
	m.tentative = false
	m.token = resp.Token
	m.user = user
	m.expiresAt = m.now().Add(hint)
	m.lastErr = nil
	rec := m.recordLocked()
	m.mu.Unlock()

	if err := m.persist(ctx, rec); err != nil {
		err = fmt.Errorf("persist session: %w", err)
		m.fail(ctx, err)
		return session.User{}, err
	}
	if creds.RememberUsername {
		if err := m.RememberUsername(ctx, user.Username); err != nil {
			m.logger.Warn("remember username failed", "error", err)
		}
	}
	return *user.Clone(), nil
}

// Logout notifies the backend when a token is held, then clears. The
// notification is best effort; only store failures are returned.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	token := m.token
	m.mu.Unlock()

	if token != "" && m.backend != nil {
		if err := m.backend.Logout(ctx, token); err != nil {
			m.logger.Info("logout notification failed", "error", err)
		}
	}
	return m.Clear(ctx)
}

// Refresh replaces the token and expiry of the current user. d <= 0 means the
// remember-me lifetime. Without a user it fails with ErrNotLoggedIn and
// changes nothing.
func (m *Manager) Refresh(ctx context.Context, newToken string, d time.Duration) error {
	m.mu.Lock()
	if m.user == nil {
		m.mu.Unlock()
		return ErrNotLoggedIn
	}
	if newToken == "" {
		m.mu.Unlock()
		return fmt.Errorf("%w: empty token", ErrTokenInvalid)
	}
	if d <= 0 {
		d = m.rememberTTL
	}
	m.epoch++
	m.token = newToken
	m.expiresAt = m.now().Add(d)
	rec := m.recordLocked()
	m.mu.Unlock()

	m.logIfErr("session write-through failed", m.persist(ctx, rec))
	return nil
}

// UpdateProfile sends patch to the backend and merges the confirmed profile
// into the current user. Token and expiry are untouched.
func (m *Manager) UpdateProfile(ctx context.Context, patch session.Patch) (session.User, error) {
	if !m.IsAuthenticated() {
		return session.User{}, ErrNotLoggedIn
	}
	m.mu.Lock()
	token, epoch := m.token, m.epoch
	m.mu.Unlock()

	confirmed, err := m.backend.UpdateProfile(ctx, token, patch)
	if err != nil {
		if sessionEnding(err) {
			m.fail(ctx, err)
		}
		return session.User{}, err
	}

	m.mu.Lock()
	if m.epoch != epoch || m.user == nil {
		m.mu.Unlock()
		return confirmed, nil
	}
	merged := m.user.Merge(confirmed)
	if patch.Avatar != nil {
		merged.Avatar = confirmed.Avatar
	}
	m.user = &merged
	rec := m.recordLocked()
	m.mu.Unlock()

	m.logIfErr("session write-through failed", m.persist(ctx, rec))
	return *merged.Clone(), nil
}

// IsExpired reports whether no expiry is set or it has passed.
func (m *Manager) IsExpired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiredLocked()
}

// Clear resets the session in memory and in the store, and forgets the
// remembered username. The Manager ends up StateUnauthenticated.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.resetLocked(nil)
	m.mu.Unlock()
	return m.clearStore(ctx)
}

// Validate checks token, or the current token when empty, with the backend.
// On success the session is repopulated from the backend's answer; on any
// failure, or when the current token has already expired, it is cleared.
func (m *Manager) Validate(ctx context.Context, token string) bool {
	m.mu.Lock()
	explicit := token != ""
	if !explicit {
		token = m.token
	}
	if token == "" || (!explicit && m.expiredLocked()) {
		err := ErrNotLoggedIn
		if token != "" {
			err = ErrTokenExpired
		}
		m.resetLocked(err)
		m.mu.Unlock()
		m.logIfErr("clear session", m.clearStore(ctx))
		return false
	}
	epoch := m.epoch
	m.mu.Unlock()

	resp, err := m.backend.Validate(ctx, token)
	if err == nil && !m.now().Before(resp.ExpiresAt) {
		err = ErrTokenExpired
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return m.IsAuthenticated()
	}
	if err != nil {
		m.resetLocked(err)
		m.mu.Unlock()
		m.logIfErr("clear session", m.clearStore(ctx))
		return false
	}

	m.epoch++
	m.state = StateAuthenticated
	m.tentative = false
	m.token = token
	m.user = resp.User.Clone()
	m.expiresAt = resp.ExpiresAt
	m.lastErr = nil
	rec := m.recordLocked()
	m.mu.Unlock()

	m.logIfErr("session write-through failed", m.persist(ctx, rec))
	return true
}

// IsAuthenticated reports whether the session holds an unexpired token.
// Detecting expiry clears the session.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	if m.state != StateAuthenticated {
		m.mu.Unlock()
		return false
	}
	if !m.expiredLocked() {
		m.mu.Unlock()
		return true
	}
	m.resetLocked(ErrTokenExpired)
	m.mu.Unlock()
	m.logIfErr("clear expired session", m.clearStore(context.Background()))
	return false
}

// State returns the current state, applying lazy expiry first.
func (m *Manager) State() State {
	m.IsAuthenticated()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Tentative reports whether the authenticated state was restored from the
// store and is still awaiting backend confirmation.
func (m *Manager) Tentative() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateAuthenticated && m.tentative
}

// CurrentUser returns a copy of the authenticated user, or nil.
func (m *Manager) CurrentUser() *session.User {
	if !m.IsAuthenticated() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user.Clone()
}

// CurrentRoles returns the authenticated user's roles, or nil.
func (m *Manager) CurrentRoles() session.RoleSet {
	u := m.CurrentUser()
	if u == nil {
		return nil
	}
	return u.Roles
}

// HasRole reports whether the authenticated user carries role.
func (m *Manager) HasRole(role string) bool {
	return m.CurrentRoles().Has(role)
}

// Token returns the held token, expired or not.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *Manager) ExpiresAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiresAt
}

// Snapshot returns a copy of the whole session.
func (m *Manager) Snapshot() Session {
	m.mu.Lock()
	expired := m.state == StateAuthenticated && m.expiredLocked()
	if expired {
		m.resetLocked(ErrTokenExpired)
	}
	snap := Session{
		Token:         m.token,
		User:          m.user.Clone(),
		ExpiresAt:     m.expiresAt,
		Authenticated: m.state == StateAuthenticated,
	}
	m.mu.Unlock()

	if expired {
		m.logIfErr("clear expired session", m.clearStore(context.Background()))
	}
	return snap
}

// LastError returns the reason for the most recent clear caused by a failure.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// RememberUsername stores username for pre-filling the next login form.
func (m *Manager) RememberUsername(ctx context.Context, username string) error {
	if m.store == nil {
		return nil
	}
	return m.store.RememberUsername(ctx, username)
}

func (m *Manager) RememberedUsername(ctx context.Context) (string, error) {
	if m.store == nil {
		return "", nil
	}
	return m.store.RememberedUsername(ctx)
}

func (m *Manager) fail(ctx context.Context, err error) {
	m.mu.Lock()
	m.resetLocked(err)
	m.mu.Unlock()
	m.logIfErr("clear session", m.clearStore(ctx))
}

// resetLocked empties the session and invalidates in-flight validations.
func (m *Manager) resetLocked(cause error) {
	m.epoch++
	m.state = StateUnauthenticated
	m.tentative = false
	m.token = ""
	m.user = nil
	m.expiresAt = time.Time{}
	m.lastErr = cause
}

func (m *Manager) expiredLocked() bool {
	return m.token == "" || m.expiresAt.IsZero() || !m.now().Before(m.expiresAt)
}

func (m *Manager) recordLocked() session.Record {
	return session.Record{Token: m.token, User: m.user.Clone(), ExpiresAt: m.expiresAt}
}

func (m *Manager) persist(ctx context.Context, rec session.Record) error {
	if m.store == nil {
		return nil
	}
	return m.store.Save(ctx, rec)
}

func (m *Manager) clearStore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	return errors.Join(m.store.Clear(ctx), m.store.ForgetUsername(ctx))
}

func (m *Manager) logIfErr(msg string, err error) {
	if err != nil {
		m.logger.Warn(msg, "error", err)
	}
}

// sessionEnding reports errors after which the held token is worthless.
func sessionEnding(err error) bool {
	return errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrUserNotFound)
}
