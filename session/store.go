package session

import (
	"context"
	"errors"
	"time"
)

// DefaultRetention is the fixed ceiling on how long a durable record is kept,
// independent of the token's own expiry.
const DefaultRetention = 7 * 24 * time.Hour

// ErrStoreUnavailable wraps backend failures (Redis, filesystem).
var ErrStoreUnavailable = errors.New("session store unavailable")

// Store persists the redacted session record of one execution context,
// together with the remembered-username convenience value.
//
// A missing record loads as the zero Record with a nil error. A record that
// cannot be decoded loads as the zero Record with ErrCorruptRecord.
type Store interface {
	Load(ctx context.Context) (Record, error)
	Save(ctx context.Context, r Record) error
	Clear(ctx context.Context) error

	RememberUsername(ctx context.Context, username string) error
	RememberedUsername(ctx context.Context) (string, error)
	ForgetUsername(ctx context.Context) error
}

func normalizeRetention(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultRetention
	}
	return d
}
