package session

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"sync"
	"time"
)

// CookieConfig controls the cookies written by CookieStore.
type CookieConfig struct {
	Name         string
	UsernameName string
	Path         string
	Domain       string
	Retention    time.Duration
	Secure       bool
	HTTPOnly     bool
	SameSite     http.SameSite
}

// DefaultCookieConfig returns the auth-data cookie settings: seven-day
// retention, lax same-site, not secure until production enables it.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Name:         "auth-data",
		UsernameName: "remembered-username",
		Path:         "/",
		Retention:    DefaultRetention,
		SameSite:     http.SameSiteLaxMode,
	}
}

func (c CookieConfig) withDefaults() CookieConfig {
	d := DefaultCookieConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.UsernameName == "" {
		c.UsernameName = d.UsernameName
	}
	if c.Path == "" {
		c.Path = d.Path
	}
	if c.SameSite == 0 {
		c.SameSite = d.SameSite
	}
	c.Retention = normalizeRetention(c.Retention)
	return c
}

// CookieStore persists the record in a cookie of a single HTTP exchange. It
// reads the request cookie and writes Set-Cookie headers on the response.
// Reads after a write observe the written value.
type CookieStore struct {
	w   http.ResponseWriter
	r   *http.Request
	cfg CookieConfig

	mu      sync.Mutex
	written bool
	pending Record
}

// NewCookieStore binds a store to one request/response pair.
func NewCookieStore(w http.ResponseWriter, r *http.Request, cfg CookieConfig) *CookieStore {
	return &CookieStore{w: w, r: r, cfg: cfg.withDefaults()}
}

func (s *CookieStore) Load(context.Context) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.written {
		return cloneRecord(s.pending), nil
	}
	c, err := s.r.Cookie(s.cfg.Name)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return Record{}, nil
		}
		return Record{}, err
	}
	if c.Value == "" {
		return Record{}, nil
	}
	return DecodeString(c.Value)
}

func (s *CookieStore) Save(_ context.Context, r Record) error {
	value, err := EncodeString(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	http.SetCookie(s.w, s.cookie(s.cfg.Name, value, int(s.cfg.Retention/time.Second)))
	s.written = true
	s.pending = cloneRecord(r)
	return nil
}

func (s *CookieStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	http.SetCookie(s.w, s.cookie(s.cfg.Name, "", -1))
	s.written = true
	s.pending = Record{}
	return nil
}

func (s *CookieStore) RememberUsername(_ context.Context, username string) error {
	value := base64.RawURLEncoding.EncodeToString([]byte(username))
	http.SetCookie(s.w, s.cookie(s.cfg.UsernameName, value, int(s.cfg.Retention/time.Second)))
	return nil
}

func (s *CookieStore) RememberedUsername(context.Context) (string, error) {
	c, err := s.r.Cookie(s.cfg.UsernameName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", nil
		}
		return "", err
	}
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return "", nil
	}
	return string(raw), nil
}

func (s *CookieStore) ForgetUsername(context.Context) error {
	http.SetCookie(s.w, s.cookie(s.cfg.UsernameName, "", -1))
	return nil
}

func (s *CookieStore) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     s.cfg.Path,
		Domain:   s.cfg.Domain,
		MaxAge:   maxAge,
		Secure:   s.cfg.Secure,
		HttpOnly: s.cfg.HTTPOnly,
		SameSite: s.cfg.SameSite,
	}
}
