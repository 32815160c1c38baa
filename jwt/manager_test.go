package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newHSManager(t *testing.T, now func() time.Time) *Manager {
	t.Helper()
	m, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: testSecret, Issuer: "authstate", Now: now})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	m := newHSManager(t, nil)

	token, exp, err := m.Issue("42", "alice", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if until := time.Until(exp); until < 59*time.Minute || until > time.Hour {
		t.Fatalf("unexpected expiry %v", exp)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "42" || claims.Username != "alice" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if !claims.ExpiresAt.Equal(exp) {
		t.Fatalf("expected exp %v, got %v", exp, claims.ExpiresAt)
	}
	if claims.TokenID == "" {
		t.Fatal("expected jti to be set")
	}
}

func TestVerifyExpiredIsTyped(t *testing.T) {
	issuedAt := time.Now().Add(-2 * time.Hour)
	issuer := newHSManager(t, func() time.Time { return issuedAt })
	token, _, err := issuer.Issue("1", "bob", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	m := newHSManager(t, nil)
	_, err = m.Verify(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if errors.Is(err, ErrTokenInvalid) {
		t.Fatal("expired token must not also be reported as invalid")
	}
}

func TestVerifyRejections(t *testing.T) {
	m := newHSManager(t, nil)
	good, _, err := m.Issue("1", "bob", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other, err := NewManager(Config{PrivateKey: []byte(strings.Repeat("x", 32)), Issuer: "authstate"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	foreign, _, _ := other.Issue("1", "bob", time.Hour)

	noUsername := gjwt.NewWithClaims(gjwt.SigningMethodHS256, gjwt.RegisteredClaims{
		Subject:   "1",
		Issuer:    "authstate",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	missingClaim, _ := noUsername.SignedString(testSecret)

	noExp := gjwt.NewWithClaims(gjwt.SigningMethodHS256, tokenClaims{
		Username:         "bob",
		RegisteredClaims: gjwt.RegisteredClaims{Subject: "1", Issuer: "authstate"},
	})
	missingExp, _ := noExp.SignedString(testSecret)

	parts := strings.Split(good, ".")
	forged := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"2","username":"mallory","exp":4102444800}`))
	tampered := parts[0] + "." + forged + "." + parts[2]

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"none alg", "eyJhbGciOiJub25lIn0.eyJzdWIiOiIxIn0."},
		{"tampered payload", tampered},
		{"foreign key", foreign},
		{"missing username", missingClaim},
		{"missing exp", missingExp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(tt.token)
			if !errors.Is(err, ErrTokenInvalid) {
				t.Fatalf("expected ErrTokenInvalid, got %v", err)
			}
		})
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	ed, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	edToken, _, err := ed.Issue("1", "bob", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := ed.Verify(edToken); err != nil {
		t.Fatalf("expected ed25519 token to verify: %v", err)
	}

	hs := newHSManager(t, nil)
	if _, err := hs.Verify(edToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected algorithm mismatch to be invalid, got %v", err)
	}
}

func TestKeyIDRequiredWhenConfigured(t *testing.T) {
	m, err := NewManager(Config{PrivateKey: testSecret, KeyID: "k1"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	plain := newHSManager(t, nil)
	token, _, _ := plain.Issue("1", "bob", time.Minute)

	if _, err := m.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected missing kid to be rejected, got %v", err)
	}

	withKid, _, _ := m.Issue("1", "bob", time.Minute)
	if _, err := m.Verify(withKid); err != nil {
		t.Fatalf("expected kid token to verify: %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{PrivateKey: []byte("short")}); err == nil {
		t.Fatal("expected short secret to fail")
	}
	if _, err := NewManager(Config{SigningMethod: "rs512", PrivateKey: testSecret}); err == nil {
		t.Fatal("expected unsupported method to fail")
	}
	if _, err := NewManager(Config{PrivateKey: testSecret, Leeway: time.Hour}); err == nil {
		t.Fatal("expected leeway bound to fail")
	}
	if _, err := NewManager(Config{SigningMethod: MethodEd25519}); err == nil {
		t.Fatal("expected ed25519 without public key to fail")
	}
}

func TestIssueRejectsBadInput(t *testing.T) {
	m := newHSManager(t, nil)
	if _, _, err := m.Issue("1", "bob", 0); err == nil {
		t.Fatal("expected zero ttl to fail")
	}
	if _, _, err := m.Issue("", "bob", time.Minute); err == nil {
		t.Fatal("expected empty subject to fail")
	}
}
