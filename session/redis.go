package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps records server-side, one per browser id. The cookie then
// carries only an opaque browser id instead of the record itself.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisStore returns a store writing keys under prefix.
func NewRedisStore(rdb redis.UniversalClient, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "as"
	}
	return &RedisStore{redis: rdb, prefix: prefix, retention: normalizeRetention(retention)}
}

// Browser returns the Store view of a single browser.
func (s *RedisStore) Browser(browserID string) *BrowserStore {
	return &BrowserStore{parent: s, browserID: browserID}
}

// Ping reports Redis round-trip latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *RedisStore) recordKey(browserID string) string {
	return s.prefix + ":rec:" + browserID
}

func (s *RedisStore) usernameKey(browserID string) string {
	return s.prefix + ":user:" + browserID
}

// BrowserStore is a RedisStore bound to one browser id.
type BrowserStore struct {
	parent    *RedisStore
	browserID string
}

func (b *BrowserStore) Load(ctx context.Context) (Record, error) {
	data, err := b.parent.redis.Get(ctx, b.parent.recordKey(b.browserID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, nil
		}
		return Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return Decode(data)
}

func (b *BrowserStore) Save(ctx context.Context, r Record) error {
	data, err := Encode(r)
	if err != nil {
		return err
	}
	if err := b.parent.redis.Set(ctx, b.parent.recordKey(b.browserID), data, b.parent.retention).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (b *BrowserStore) Clear(ctx context.Context) error {
	if err := b.parent.redis.Del(ctx, b.parent.recordKey(b.browserID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (b *BrowserStore) RememberUsername(ctx context.Context, username string) error {
	if err := b.parent.redis.Set(ctx, b.parent.usernameKey(b.browserID), username, b.parent.retention).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (b *BrowserStore) RememberedUsername(ctx context.Context) (string, error) {
	name, err := b.parent.redis.Get(ctx, b.parent.usernameKey(b.browserID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return name, nil
}

func (b *BrowserStore) ForgetUsername(ctx context.Context) error {
	if err := b.parent.redis.Del(ctx, b.parent.usernameKey(b.browserID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// BrowserID returns the browser id cookie of the request, issuing a new one on
// the response when the request has none or an unparsable one.
func BrowserID(w http.ResponseWriter, r *http.Request, cfg CookieConfig) string {
	cfg = cfg.withDefaults()
	name := cfg.Name + "-browser"
	if c, err := r.Cookie(name); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    id,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		MaxAge:   int(cfg.Retention / time.Second),
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: cfg.SameSite,
	})
	return id
}
