package authstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/authstate/internal/audit"
	"github.com/MrEthical07/authstate/internal/flows"
	"github.com/MrEthical07/authstate/internal/rate"
	"github.com/MrEthical07/authstate/jwt"
	"github.com/MrEthical07/authstate/password"
	"github.com/MrEthical07/authstate/session"
)

// Engine is the server-side authority: it checks credentials, issues and
// verifies tokens and re-resolves users against the directory. It implements
// Backend for in-process Managers.
//
// An Engine is immutable after Build and safe for concurrent use.
type Engine struct {
	config       Config
	jwtManager   *jwt.Manager
	directory    UserDirectory
	passwordHash *password.Hasher
	rateLimiter  *rate.Limiter
	audit        *audit.Dispatcher
	metrics      *Metrics
	logger       *slog.Logger
	now          func() time.Time

	flows flows.Deps
}

var _ Backend = (*Engine)(nil)

// Close stops the audit dispatcher after draining queued events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports audit events dropped because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the Engine's counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// CookieConfig returns the durable cookie settings Managers built for this
// Engine should use.
func (e *Engine) CookieConfig() session.CookieConfig {
	return e.config.CookieConfig()
}

// HashPassword hashes a password for storage with the Engine's parameters.
func (e *Engine) HashPassword(plain string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	return e.passwordHash.Hash(plain)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Authenticate checks creds and issues a token. The lifetime is the requested
// duration, else the remember-me or default lifetime, capped at MaxTTL.
func (e *Engine) Authenticate(ctx context.Context, creds Credentials) (LoginResponse, error) {
	if e == nil || e.jwtManager == nil {
		return LoginResponse{}, ErrEngineNotReady
	}

	username := strings.TrimSpace(creds.Username)
	res := flows.RunLogin(ctx, flows.LoginRequest{
		Username:  username,
		Password:  creds.Password,
		IP:        ClientIPFromContext(ctx),
		Requested: creds.RequestedDuration,
		Remember:  creds.RememberMe,
	}, e.flows.Login)

	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", username, ErrLoginRateLimited, nil)
		return LoginResponse{}, ErrLoginRateLimited
	case flows.LoginFailureInvalidCredentials:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", username, ErrInvalidCredentials, nil)
		return LoginResponse{}, ErrInvalidCredentials
	default:
		e.logger.Warn("login failed on backend", "error", res.Err)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", username, res.Err, nil)
		return LoginResponse{}, fmt.Errorf("login: %w", res.Err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, res.User.ID, res.User.Username, nil, func() map[string]string {
		return map[string]string{"ttl": res.TTL.String()}
	})

	return LoginResponse{
		Token:     res.Token,
		User:      res.User.Clone(),
		ExpiresIn: res.TTL,
	}, nil
}

// Validate verifies token and re-resolves its user. Expired, invalid and
// vanished-user failures keep their distinct errors.
func (e *Engine) Validate(ctx context.Context, token string) (ValidateResponse, error) {
	if e == nil || e.jwtManager == nil {
		return ValidateResponse{}, ErrEngineNotReady
	}
	start := time.Now()
	res := flows.RunValidate(ctx, token, e.flows.Validate)
	if e.metrics != nil {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	if err := e.validateFailure(res.Failure, res.Err); err != nil {
		e.metricInc(MetricValidateFailure)
		e.emitAudit(ctx, auditEventValidateFailure, false, "", "", err, nil)
		return ValidateResponse{}, err
	}

	e.metricInc(MetricValidateSuccess)
	return ValidateResponse{User: res.User, ExpiresAt: res.ExpiresAt}, nil
}

// Logout checks that token is genuine and its user still exists. Tokens are
// stateless; the caller forgets them.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if e == nil || e.jwtManager == nil {
		return ErrEngineNotReady
	}
	res := flows.RunLogout(ctx, token, e.flows.Validate)
	if err := e.validateFailure(res.Failure, res.Err); err != nil {
		e.emitAudit(ctx, auditEventLogout, false, "", "", err, nil)
		return err
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, res.User.ID, res.User.Username, nil, nil)
	return nil
}

// UpdateProfile applies patch to the user that token names.
func (e *Engine) UpdateProfile(ctx context.Context, token string, patch session.Patch) (session.User, error) {
	if e == nil || e.jwtManager == nil {
		return session.User{}, ErrEngineNotReady
	}
	if patch.Username != nil && strings.TrimSpace(*patch.Username) == "" {
		return session.User{}, fmt.Errorf("%w: username must not be empty", ErrInvalidProfile)
	}

	res := flows.RunUpdateProfile(ctx, token, patch, e.flows.Profile)
	if err := e.validateFailure(res.Failure, res.Err); err != nil {
		e.metricInc(MetricProfileUpdateFailure)
		e.emitAudit(ctx, auditEventProfileUpdate, false, "", "", err, nil)
		return session.User{}, err
	}

	e.metricInc(MetricProfileUpdate)
	e.emitAudit(ctx, auditEventProfileUpdate, true, res.User.ID, res.User.Username, nil, func() map[string]string {
		m := map[string]string{}
		if patch.Username != nil {
			m["username"] = "changed"
		}
		if patch.Avatar != nil {
			m["avatar"] = "changed"
		}
		return m
	})
	return res.User, nil
}

func (e *Engine) validateFailure(kind flows.ValidateFailureKind, cause error) error {
	switch kind {
	case flows.ValidateFailureNone:
		return nil
	case flows.ValidateFailureExpired:
		e.metricInc(MetricTokenExpired)
		return ErrTokenExpired
	case flows.ValidateFailureInvalid:
		e.metricInc(MetricTokenInvalid)
		return fmt.Errorf("%w: %v", ErrTokenInvalid, cause)
	case flows.ValidateFailureUserNotFound:
		e.metricInc(MetricUserNotFound)
		return ErrUserNotFound
	default:
		e.logger.Warn("user directory unavailable", "error", cause)
		return fmt.Errorf("directory: %w", cause)
	}
}

func (e *Engine) resolveTTL(requested time.Duration, remember bool) time.Duration {
	ttl := e.config.Session.DefaultTTL
	if remember {
		ttl = e.config.Session.RememberTTL
	}
	if requested > 0 {
		ttl = requested
	}
	if ttl > e.config.Session.MaxTTL {
		ttl = e.config.Session.MaxTTL
	}
	return ttl
}

func (e *Engine) buildFlowDeps() {
	isNotFound := func(err error) bool { return errors.Is(err, ErrUserNotFound) }

	e.flows.Validate = flows.ValidateDeps{
		Verify:     e.jwtManager.Verify,
		LookupUser: e.directory.LookupActive,
		IsNotFound: isNotFound,
	}

	e.flows.Login = flows.LoginDeps{
		FindUser: func(ctx context.Context, username string) (session.User, string, error) {
			rec, err := e.directory.FindByUsername(ctx, username)
			if err != nil {
				return session.User{}, "", err
			}
			return rec.Profile, rec.PasswordHash, nil
		},
		IsNotFound:     isNotFound,
		VerifyPassword: e.passwordHash.Verify,
		DummyHash:      e.passwordHash.Dummy(),
		ResolveTTL:     e.resolveTTL,
		Issue:          e.jwtManager.Issue,
	}
	if e.rateLimiter != nil {
		e.flows.Login.CheckThrottle = e.rateLimiter.CheckLogin
		e.flows.Login.RecordFailure = e.rateLimiter.IncrementLogin
		e.flows.Login.ResetThrottle = e.rateLimiter.ResetLogin
		e.flows.Login.IsRateLimited = func(err error) bool { return errors.Is(err, rate.ErrRateLimited) }
	}

	e.flows.Profile = flows.ProfileDeps{
		Validate: e.flows.Validate,
		Update:   e.directory.UpdateProfile,
	}
}
