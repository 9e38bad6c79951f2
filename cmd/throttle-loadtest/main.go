// Command throttle-loadtest hammers the login throttle with concurrent
// failures and reports whether the lockout threshold held.
//
//	go run ./cmd/throttle-loadtest -store miniredis -burst 500
//	go run ./cmd/throttle-loadtest -store sqlite -dsn /tmp/attempts.db
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/marketAuth/sqlstore"
	"github.com/MrEthical07/marketAuth/throttle"
)

func main() {
	var (
		storeKind   = flag.String("store", "miniredis", "attempt store: memory, miniredis, redis, sqlite")
		redisAddr   = flag.String("redis-addr", "", "redis address for -store redis; REDIS_ADDR env is used when empty")
		dsn         = flag.String("dsn", ":memory:", "sqlite path for -store sqlite")
		preset      = flag.String("preset", "standard", "throttle preset: standard or quick")
		burst       = flag.Int("burst", 200, "concurrent failures fired at a single identity")
		identities  = flag.Int("identities", 1000, "identities used in the throughput phase")
		ops         = flag.Int("ops", 20000, "failures recorded in the throughput phase")
		concurrency = flag.Int("concurrency", 64, "workers")
	)
	flag.Parse()

	if *burst <= 0 || *identities <= 0 || *ops <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "burst, identities, ops, and concurrency must be > 0")
		os.Exit(2)
	}

	policy, ok := throttle.PolicyByName(*preset)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown preset %q\n", *preset)
		os.Exit(2)
	}

	ctx := context.Background()
	store, cleanup, err := openStore(ctx, *storeKind, *redisAddr, *dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	thr, err := throttle.New(store, policy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "throttle: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("policy: %d failures -> %s lockout\n", policy.Threshold, policy.LockoutDuration)

	ok = runBurst(ctx, thr, *burst, policy.Threshold)
	stats := runThroughput(ctx, thr, *identities, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("record_failure", stats)
	if !ok {
		os.Exit(1)
	}
}

func openStore(ctx context.Context, kind, redisAddr, dsn string) (throttle.Store, func(), error) {
	switch kind {
	case "memory":
		fmt.Println("using in-process memory store")
		return throttle.NewMemoryStore(), func() {}, nil

	case "miniredis", "redis":
		addr := redisAddr
		if addr == "" {
			addr = os.Getenv("REDIS_ADDR")
		}
		var mr *miniredis.Miniredis
		if kind == "miniredis" {
			var err error
			if mr, err = miniredis.Run(); err != nil {
				return nil, nil, err
			}
			addr = mr.Addr()
		}
		if addr == "" {
			return nil, nil, fmt.Errorf("-store redis needs -redis-addr or REDIS_ADDR")
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup := func() {
			_ = client.Close()
			if mr != nil {
				mr.Close()
			}
		}
		fmt.Printf("using %s at %s\n", kind, addr)
		return throttle.NewRedisStore(client, "loadtest:lat:"), cleanup, nil

	case "sqlite":
		db, err := sqlstore.Open(ctx, sqlstore.Config{Dialect: sqlstore.DialectSQLite, DSN: dsn})
		if err != nil {
			return nil, nil, err
		}
		if err := db.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		fmt.Printf("using sqlite at %s\n", dsn)
		return sqlstore.NewAttemptStore(db), func() { _ = db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store %q", kind)
	}
}

// runBurst fires burst simultaneous failures at one identity. Exactly
// threshold of them may count and exactly one may start the lockout.
func runBurst(ctx context.Context, thr *throttle.Throttle, burst, threshold int) bool {
	identity := fmt.Sprintf("burst-%d@loadtest.local", time.Now().UnixNano())

	var (
		wg       sync.WaitGroup
		counted  int64
		lockedAt int64
		failures int64
		start    = make(chan struct{})
	)
	for i := 0; i < burst; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := thr.RecordFailure(ctx, identity)
			if err != nil {
				atomic.AddInt64(&failures, 1)
				return
			}
			if res.Counted {
				atomic.AddInt64(&counted, 1)
			}
			if res.LockedNow {
				atomic.AddInt64(&lockedAt, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	decision, err := thr.CheckAllowed(ctx, identity)
	held := err == nil && !decision.Allowed && counted == int64(threshold) && lockedAt == 1 && failures == 0

	fmt.Printf("burst: fired=%d counted=%d lockouts=%d errors=%d locked=%t retry_after=%ds held=%t\n",
		burst, counted, lockedAt, failures, !decision.Allowed, decision.RetryAfterSeconds, held)
	return held
}

func runThroughput(ctx context.Context, thr *throttle.Throttle, identities, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					return
				}
				identity := fmt.Sprintf("user-%d@loadtest.local", r.Intn(identities))
				t0 := time.Now()
				_, err := thr.RecordFailure(ctx, identity)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      samples[(len(samples)-1)*50/100],
		p99:      samples[(len(samples)-1)*99/100],
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d errors=%d total=%s ops/sec=%.0f p50=%s p99=%s\n",
		name, s.ops, s.failures, s.total.Round(time.Millisecond), s.opsPerS,
		s.p50.Round(time.Microsecond), s.p99.Round(time.Microsecond))
}
