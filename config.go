package authstate

import (
	"errors"
	"time"

	"github.com/MrEthical07/authstate/session"
)

// Config is the Engine configuration. Build clones it; later mutation of the
// caller's copy has no effect.
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	Password PasswordConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// JWTConfig selects the token signature scheme.
type JWTConfig struct {
	// SigningMethod is "hs256" (shared secret in PrivateKey) or "ed25519".
	SigningMethod string
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

// SessionConfig holds token lifetimes and the durable cookie settings.
type SessionConfig struct {
	// DefaultTTL is used when a login requests nothing specific.
	DefaultTTL time.Duration
	// RememberTTL is used for remember-me logins and as the refresh default.
	RememberTTL time.Duration
	// MaxTTL caps any requested lifetime.
	MaxTTL time.Duration
	// Retention is the durable record ceiling, independent of token expiry.
	Retention time.Duration
	// RedisPrefix namespaces Redis keys (session records and login throttle).
	RedisPrefix string
	Cookie      session.CookieConfig
}

// PasswordConfig holds argon2id parameters.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityConfig controls production hardening and login throttling.
type SecurityConfig struct {
	// ProductionMode marks durable cookies Secure.
	ProductionMode bool
	// EnableLoginThrottle requires a Redis client.
	EnableLoginThrottle   bool
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

// AuditConfig controls asynchronous audit dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a configuration with every field but the signing key
// set: one-hour tokens, seven-day remember-me and retention, lax cookies.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: "hs256",
			Issuer:        "authstate",
		},
		Session: SessionConfig{
			DefaultTTL:  time.Hour,
			RememberTTL: 7 * 24 * time.Hour,
			MaxTTL:      7 * 24 * time.Hour,
			Retention:   session.DefaultRetention,
			RedisPrefix: "as",
			Cookie:      session.DefaultCookieConfig(),
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Security: SecurityConfig{
			EnableLoginThrottle:   false,
			EnableIPThrottle:      true,
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// CookieConfig returns the effective durable cookie settings: the configured
// cookie with retention applied and Secure forced on in production.
func (c *Config) CookieConfig() session.CookieConfig {
	cc := c.Session.Cookie
	cc.Retention = c.Session.Retention
	if c.Security.ProductionMode {
		cc.Secure = true
	}
	return cc
}

// Validate reports the first inconsistency in c.
func (c *Config) Validate() error {
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey to issue tokens")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}

	if c.Session.DefaultTTL <= 0 {
		return errors.New("Session DefaultTTL must be > 0")
	}
	if c.Session.RememberTTL <= 0 {
		return errors.New("Session RememberTTL must be > 0")
	}
	if c.Session.MaxTTL < c.Session.DefaultTTL || c.Session.MaxTTL < c.Session.RememberTTL {
		return errors.New("Session MaxTTL must cover DefaultTTL and RememberTTL")
	}
	if c.Session.Retention <= 0 {
		return errors.New("Session Retention must be > 0")
	}
	if c.Session.Cookie.Name == "" {
		return errors.New("Session Cookie Name must be set")
	}

	if c.Password.Memory < 8*1024 || c.Password.Time < 1 || c.Password.Parallelism < 1 {
		return errors.New("Password cost parameters below minimum")
	}
	if c.Password.SaltLength < 16 || c.Password.KeyLength < 16 {
		return errors.New("Password salt and key length must be >= 16")
	}

	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("Security MaxLoginAttempts must be > 0")
		}
		if c.Security.LoginCooldownDuration <= 0 {
			return errors.New("Security LoginCooldownDuration must be > 0")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}
