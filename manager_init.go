package authstate

import (
	"context"
	"errors"

	"github.com/MrEthical07/authstate/session"
)

// Initialize reconciles the Manager with its execution context and blocks
// until the state is settled. It runs once; concurrent and later callers wait
// for, and then share, that run. A Manager that already left StateUnknown
// (for example through Login) is left as is.
//
// OneShot: the bearer token, else the stored token, is validated with the
// backend. Persistent: the stored record is trusted tentatively when unexpired
// and confirmed in the background; see Confirmed.
func (m *Manager) Initialize(ctx context.Context) {
	m.initOnce.Do(func() {
		defer close(m.ready)
		m.initialize(ctx)
	})
}

// Ready is closed once Initialize has settled the state.
func (m *Manager) Ready() <-chan struct{} { return m.ready }

// Confirmed is closed once no background confirmation is pending.
func (m *Manager) Confirmed() <-chan struct{} { return m.confirmed }

func (m *Manager) initialize(ctx context.Context) {
	m.mu.Lock()
	settled := m.state != StateUnknown
	m.mu.Unlock()
	if settled {
		m.markConfirmed()
		return
	}

	switch m.execCtx {
	case Persistent:
		m.initializePersistent(ctx)
	default:
		m.initializeOneShot(ctx)
	}
}

func (m *Manager) initializeOneShot(ctx context.Context) {
	defer m.markConfirmed()

	if m.bearer != "" {
		m.Validate(ctx, m.bearer)
		return
	}

	rec, err := m.load(ctx)
	switch {
	case err != nil:
		m.fail(ctx, err)
	case rec.IsZero():
		m.settleUnauthenticated()
	case !rec.Usable(m.now()):
		m.fail(ctx, ErrTokenExpired)
	default:
		m.Validate(ctx, rec.Token)
	}
}

func (m *Manager) initializePersistent(ctx context.Context) {
	rec, err := m.load(ctx)
	if err != nil {
		m.fail(ctx, err)
		m.markConfirmed()
		return
	}
	if rec.IsZero() {
		m.settleUnauthenticated()
		m.markConfirmed()
		return
	}
	if !rec.Usable(m.now()) || rec.User == nil {
		m.fail(ctx, ErrTokenExpired)
		m.markConfirmed()
		return
	}

	m.mu.Lock()
	if m.state != StateUnknown {
		m.mu.Unlock()
		m.markConfirmed()
		return
	}
	m.epoch++
	m.state = StateAuthenticated
	m.tentative = true
	m.token = rec.Token
	m.user = rec.User.Clone()
	m.expiresAt = rec.ExpiresAt
	m.mu.Unlock()

	confirmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.confirmTimeout)
	go func() {
		defer cancel()
		defer m.markConfirmed()
		if !m.Validate(confirmCtx, "") {
			m.logger.Info("restored session rejected", "error", m.LastError())
		}
	}()
}

func (m *Manager) load(ctx context.Context) (session.Record, error) {
	if m.store == nil {
		return session.Record{}, nil
	}
	rec, err := m.store.Load(ctx)
	if err != nil && errors.Is(err, session.ErrCorruptRecord) {
		m.logger.Warn("discarding corrupt session record", "error", err)
	}
	return rec, err
}

func (m *Manager) settleUnauthenticated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateUnknown {
		m.state = StateUnauthenticated
	}
}

func (m *Manager) markConfirmed() {
	m.confirmOnce.Do(func() { close(m.confirmed) })
}
