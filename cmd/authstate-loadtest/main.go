// authstate-loadtest measures token validation and session hydration against
// Redis-backed browser records.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/directory"
	"github.com/MrEthical07/authstate/internal/logging"
	"github.com/MrEthical07/authstate/session"
)

type browser struct {
	id    string
	token string
}

func main() {
	var (
		browsers    = flag.Int("browsers", 500, "number of signed-in browsers to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "as-load", "browser record key prefix")
	)
	flag.Parse()

	if *browsers <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "browsers, concurrency, and ops must be > 0")
		os.Exit(2)
	}
	if err := run(*browsers, *concurrency, *ops, *redisAddr, *prefix); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(browsers, concurrency, ops int, addr, prefix string) error {
	ctx := context.Background()

	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer rdb.Close()

	tmp, err := os.MkdirTemp("", "authstate-loadtest")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)
	db, err := directory.Open(ctx, filepath.Join(tmp, "auth.db"))
	if err != nil {
		return err
	}
	defer db.Close()
	dir := directory.New(db)

	cfg := authstate.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("loadtest-signing-key-0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := authstate.New().
		WithConfig(cfg).
		WithDirectory(dir).
		WithRedis(rdb).
		WithLogger(logging.Discard()).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	hash, err := engine.HashPassword("load-password")
	if err != nil {
		return err
	}
	if _, err := dir.CreateUser(ctx, "load", hash, "", session.NewRoleSet("user1")); err != nil {
		return err
	}

	records := session.NewRedisStore(rdb, prefix, 0)
	seeded := make([]browser, browsers)
	fmt.Printf("signing in %d browsers...\n", browsers)
	startSeed := time.Now()
	for i := range seeded {
		resp, err := engine.Authenticate(ctx, authstate.Credentials{Username: "load", Password: "load-password"})
		if err != nil {
			return fmt.Errorf("login %d: %w", i, err)
		}
		b := browser{id: fmt.Sprintf("browser-%d", i), token: resp.Token}
		rec := session.Record{Token: resp.Token, User: resp.User, ExpiresAt: time.Now().Add(resp.ExpiresIn)}
		if err := records.Browser(b.id).Save(ctx, rec); err != nil {
			return fmt.Errorf("save browser %d: %w", i, err)
		}
		seeded[i] = b
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validate := runPhase(ops, concurrency, func(r *rand.Rand) error {
		_, err := engine.Validate(ctx, seeded[r.Intn(len(seeded))].token)
		return err
	})
	hydrate := runPhase(ops, concurrency, func(r *rand.Rand) error {
		b := seeded[r.Intn(len(seeded))]
		m := authstate.NewManager(engine, records.Browser(b.id), authstate.WithLogger(logging.Discard()))
		m.Initialize(ctx)
		if !m.IsAuthenticated() {
			return fmt.Errorf("browser %s not restored: %w", b.id, m.LastError())
		}
		return nil
	})

	fmt.Println("---- results ----")
	printStats("validate", validate)
	printStats("hydrate", hydrate)
	snap := engine.MetricsSnapshot()
	fmt.Printf("engine: validate_success=%d validate_failure=%d\n",
		snap.Counters[authstate.MetricValidateSuccess], snap.Counters[authstate.MetricValidateFailure])
	return nil
}

// runPhase spreads ops calls of fn over concurrency workers and records the
// latency of each call.
func runPhase(ops, concurrency int, fn func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    atomic.Int64
		failures  atomic.Int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			local := make([]time.Duration, 0, ops/concurrency+1)
			for cursor.Add(1) <= int64(ops) {
				t0 := time.Now()
				if err := fn(r); err != nil {
					failures.Add(1)
				}
				local = append(local, time.Since(t0))
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures.Load())
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	slices.Sort(samples)
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

// percentile expects sorted samples.
func percentile(samples []time.Duration, p int) time.Duration {
	switch {
	case len(samples) == 0:
		return 0
	case p <= 0:
		return samples[0]
	case p >= 100:
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name, s.ops, s.failures,
		s.total.Round(time.Millisecond), s.opsPerS,
		s.p50.Round(time.Microsecond), s.p95.Round(time.Microsecond), s.p99.Round(time.Microsecond))
}
