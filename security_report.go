package authstate

import (
	"net/http"
	"time"
)

// SecurityReport summarizes the effective security posture of an Engine.
type SecurityReport struct {
	ProductionMode    bool
	SigningAlgorithm  string
	DefaultTTL        time.Duration
	RememberTTL       time.Duration
	MaxTTL            time.Duration
	Retention         time.Duration
	SecureCookies     bool
	CookieSameSite    string
	Argon2            PasswordConfigReport
	LoginThrottle     bool
	IPThrottle        bool
	AuditEnabled      bool
	LatencyHistograms bool
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityReport returns the posture of the built configuration.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	return e.config.SecurityReport()
}

// SecurityReport returns the posture c would produce once built.
func (c Config) SecurityReport() SecurityReport {
	cookie := c.CookieConfig()
	return SecurityReport{
		ProductionMode:   c.Security.ProductionMode,
		SigningAlgorithm: c.JWT.SigningMethod,
		DefaultTTL:       c.Session.DefaultTTL,
		RememberTTL:      c.Session.RememberTTL,
		MaxTTL:           c.Session.MaxTTL,
		Retention:        c.Session.Retention,
		SecureCookies:    cookie.Secure,
		CookieSameSite:   sameSiteName(cookie.SameSite),
		Argon2: PasswordConfigReport{
			Memory:      c.Password.Memory,
			Time:        c.Password.Time,
			Parallelism: c.Password.Parallelism,
			SaltLength:  c.Password.SaltLength,
			KeyLength:   c.Password.KeyLength,
		},
		LoginThrottle:     c.Security.EnableLoginThrottle,
		IPThrottle:        c.Security.EnableLoginThrottle && c.Security.EnableIPThrottle,
		AuditEnabled:      c.Audit.Enabled,
		LatencyHistograms: c.Metrics.Enabled && c.Metrics.EnableLatencyHistograms,
	}
}

// LintWarning is a configuration that validates but is probably unwanted.
type LintWarning struct {
	Code    string
	Message string
}

// LintWarnings is the result of Config.Lint.
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Code
	}
	return out
}

// Lint reports valid but risky settings. It never fails a build.
func (c Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code, msg string) { ws = append(ws, LintWarning{Code: code, Message: msg}) }

	if !c.Security.ProductionMode {
		add("not_production", "ProductionMode is off; durable cookies are not marked Secure")
	}
	if !c.Security.EnableLoginThrottle {
		add("login_throttle_disabled", "failed logins are not rate limited")
	}
	if c.JWT.Leeway > time.Minute {
		add("leeway_large", "JWT leeway above one minute extends every token")
	}
	if c.Session.DefaultTTL > 24*time.Hour {
		add("default_ttl_long", "default sessions outlive a day")
	}
	if c.Session.Retention < c.Session.RememberTTL {
		add("retention_shorter_than_remember", "stored records are dropped before remember-me tokens expire")
	}
	if c.Session.Cookie.SameSite == http.SameSiteNoneMode {
		add("cookie_samesite_none", "durable cookies are sent on cross-site requests")
	}
	if c.Audit.Enabled && c.Audit.DropIfFull {
		add("audit_may_drop", "audit events are dropped when the buffer is full")
	}
	return ws
}

func sameSiteName(s http.SameSite) string {
	switch s {
	case http.SameSiteStrictMode:
		return "strict"
	case http.SameSiteNoneMode:
		return "none"
	default:
		return "lax"
	}
}
