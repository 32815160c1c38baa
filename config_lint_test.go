package authstate

import (
	"net/http"
	"slices"
	"testing"
	"time"
)

func TestLintDefaultConfig(t *testing.T) {
	codes := defaultConfig().Lint().Codes()

	for _, want := range []string{"not_production", "login_throttle_disabled"} {
		if !slices.Contains(codes, want) {
			t.Errorf("expected %q in %v", want, codes)
		}
	}
	for _, unwanted := range []string{"leeway_large", "default_ttl_long", "retention_shorter_than_remember", "cookie_samesite_none"} {
		if slices.Contains(codes, unwanted) {
			t.Errorf("default config should not produce %q", unwanted)
		}
	}
}

func TestLintHardenedConfigIsQuiet(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.ProductionMode = true
	cfg.Security.EnableLoginThrottle = true
	if ws := cfg.Lint(); len(ws) != 0 {
		t.Fatalf("expected no warnings, got %v", ws.Codes())
	}
}

func TestLintFindings(t *testing.T) {
	cases := []struct {
		code   string
		mutate func(*Config)
	}{
		{"leeway_large", func(c *Config) { c.JWT.Leeway = 90 * time.Second }},
		{"default_ttl_long", func(c *Config) { c.Session.DefaultTTL = 48 * time.Hour }},
		{"retention_shorter_than_remember", func(c *Config) { c.Session.Retention = time.Hour }},
		{"cookie_samesite_none", func(c *Config) { c.Session.Cookie.SameSite = http.SameSiteNoneMode }},
		{"audit_may_drop", func(c *Config) { c.Audit.Enabled = true }},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(&cfg)
			if codes := cfg.Lint().Codes(); !slices.Contains(codes, tc.code) {
				t.Fatalf("expected %q in %v", tc.code, codes)
			}
		})
	}
}

func TestSecurityReport(t *testing.T) {
	cfg := defaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Security.ProductionMode = true
	cfg.Security.EnableLoginThrottle = true
	cfg.Metrics.EnableLatencyHistograms = true

	r := cfg.SecurityReport()
	if !r.ProductionMode || !r.SecureCookies {
		t.Fatal("production mode must force secure cookies")
	}
	if r.SigningAlgorithm != "hs256" || r.CookieSameSite != "lax" {
		t.Fatalf("unexpected report %+v", r)
	}
	if !r.LoginThrottle || !r.IPThrottle || !r.LatencyHistograms {
		t.Fatalf("expected throttles and histograms on: %+v", r)
	}
	if r.Argon2.Memory != cfg.Password.Memory || r.RememberTTL != 7*24*time.Hour {
		t.Fatalf("unexpected report %+v", r)
	}

	var nilEngine *Engine
	if got := nilEngine.SecurityReport(); got.SigningAlgorithm != "" {
		t.Fatal("nil engine must report zero value")
	}
}
