package authstate

import (
	"time"

	"github.com/MrEthical07/authstate/session"
)

// State is the Manager's authentication state.
type State int

const (
	// StateUnknown holds until Initialize settles or a login succeeds.
	StateUnknown State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// ExecutionContext selects how Initialize reconciles a Manager.
type ExecutionContext int

const (
	// OneShot is a single server request: the credential comes from the
	// request and is always re-validated.
	OneShot ExecutionContext = iota
	// Persistent is a long-lived client: the record is hydrated from the store,
	// trusted tentatively and confirmed in the background.
	Persistent
)

func (c ExecutionContext) String() string {
	if c == Persistent {
		return "persistent"
	}
	return "one-shot"
}

// Session is a point-in-time copy of a Manager's session.
type Session struct {
	Token         string
	User          *session.User
	ExpiresAt     time.Time
	Authenticated bool
}

// Record returns the durable, redacted form of s.
func (s Session) Record() session.Record {
	return session.Record{Token: s.Token, User: s.User.Clone(), ExpiresAt: s.ExpiresAt}
}
