//go:build integration

package test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/directory"
	"github.com/MrEthical07/authstate/internal/logging"
	"github.com/MrEthical07/authstate/session"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stack is an Engine over SQLite and miniredis with Redis browser records.
type stack struct {
	mr      *miniredis.Miniredis
	rdb     *redis.Client
	dir     *directory.SQLDirectory
	engine  *authstate.Engine
	records *session.RedisStore
	clock   *clock
}

func newStack(t *testing.T, mutate func(*authstate.Config)) *stack {
	t.Helper()
	ctx := context.Background()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db, err := directory.Open(ctx, filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("open directory: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	dir := directory.New(db)

	cfg := authstate.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("integration-signing-key-0123456789")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Security.EnableLoginThrottle = true
	cfg.Security.MaxLoginAttempts = 3
	cfg.Security.LoginCooldownDuration = time.Minute
	if mutate != nil {
		mutate(&cfg)
	}

	clk := &clock{now: time.Now()}
	engine, err := authstate.New().
		WithConfig(cfg).
		WithDirectory(dir).
		WithRedis(rdb).
		WithClock(clk.Now).
		WithLogger(logging.Discard()).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	s := &stack{
		mr:      mr,
		rdb:     rdb,
		dir:     dir,
		engine:  engine,
		records: session.NewRedisStore(rdb, "it", time.Hour),
		clock:   clk,
	}
	s.addUser(t, "a", "p", "user1")
	s.addUser(t, "root", "root-p", "superadmin")
	return s
}

func (s *stack) addUser(t *testing.T, name, password string, roles ...string) session.User {
	t.Helper()
	hash, err := s.engine.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u, err := s.dir.CreateUser(context.Background(), name, hash, "", session.NewRoleSet(roles...))
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (s *stack) manager(browserID string, opts ...authstate.ManagerOption) *authstate.Manager {
	opts = append([]authstate.ManagerOption{
		authstate.WithClock(s.clock.Now),
		authstate.WithLogger(logging.Discard()),
	}, opts...)
	return authstate.NewManager(s.engine, s.records.Browser(browserID), opts...)
}
