// Command authclient-loadtest drives bursts of concurrent requests through one Client while
// every access token is expired between rounds, and reports how many refresh calls each
// burst cost together with request latency percentiles.
//
// Without -base-url it runs against an in-process mock backend; with -store redis and no
// REDIS_ADDR it uses miniredis.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/proxyhub/authclient"
	"github.com/proxyhub/authclient/internal/mockapi"
	"github.com/proxyhub/authclient/metrics/export/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const mockAccessCode = "LOADTEST-CODE"

func main() {
	var (
		rounds       = flag.Int("rounds", 20, "number of expiry rounds")
		burst        = flag.Int("burst", 256, "requests per round")
		concurrency  = flag.Int("concurrency", 64, "in-flight requests")
		baseURL      = flag.String("base-url", "", "backend base URL; empty starts the mock backend")
		accessCode   = flag.String("access-code", "", "access code for -base-url (or AUTHCLIENT_ACCESS_CODE)")
		storeBackend = flag.String("store", "memory", "credential store: memory or redis")
		refreshDelay = flag.Duration("refresh-delay", 20*time.Millisecond, "mock backend refresh latency")
		showMetrics  = flag.Bool("metrics", false, "print client metrics in Prometheus format")
	)
	flag.Parse()

	if *rounds <= 0 || *burst <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "rounds, burst, and concurrency must be > 0")
		os.Exit(2)
	}
	_ = godotenv.Load()

	if err := run(config{
		rounds:       *rounds,
		burst:        *burst,
		concurrency:  *concurrency,
		baseURL:      *baseURL,
		accessCode:   *accessCode,
		storeBackend: *storeBackend,
		refreshDelay: *refreshDelay,
		showMetrics:  *showMetrics,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "loadtest: %v\n", err)
		os.Exit(1)
	}
}

type config struct {
	rounds       int
	burst        int
	concurrency  int
	baseURL      string
	accessCode   string
	storeBackend string
	refreshDelay time.Duration
	showMetrics  bool
}

func run(cfg config) error {
	ctx := context.Background()

	clientCfg, err := authclient.ConfigFromEnv("")
	if err != nil {
		return err
	}
	clientCfg.Metrics.EnableLatencyHistograms = true

	var api *mockapi.Server
	if cfg.baseURL == "" {
		api, err = mockapi.New(mockapi.Config{
			Secret:      []byte("loadtest-mock-secret-0123456789abcdef"),
			AccessCodes: map[string]string{mockAccessCode: "loadtest"},
		})
		if err != nil {
			return err
		}
		api.SetRefreshDelay(cfg.refreshDelay)
		srv := httptest.NewServer(api.Handler())
		defer srv.Close()
		cfg.baseURL = srv.URL
		cfg.accessCode = mockAccessCode
		fmt.Printf("using mock backend at %s\n", srv.URL)
	}
	if cfg.accessCode == "" {
		cfg.accessCode = os.Getenv("AUTHCLIENT_ACCESS_CODE")
	}
	clientCfg.Endpoints.BaseURL = cfg.baseURL

	builder := authclient.New()
	switch cfg.storeBackend {
	case "memory":
	case "redis":
		rdb, cleanup, err := redisClient()
		if err != nil {
			return err
		}
		defer cleanup()
		clientCfg.Store.Backend = authclient.StoreRedis
		builder.WithRedis(rdb)
	default:
		return fmt.Errorf("unknown store %q", cfg.storeBackend)
	}

	client, err := builder.WithConfig(clientCfg).Build()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Login(ctx, cfg.accessCode); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	var (
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, cfg.rounds*cfg.burst)
		failures  int
	)
	start := time.Now()
	for round := 0; round < cfg.rounds; round++ {
		if api != nil {
			api.ExpireAccessTokens()
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.concurrency)
		for i := 0; i < cfg.burst; i++ {
			g.Go(func() error {
				t0 := time.Now()
				_, err := client.Get(gctx, "/proxies")
				d := time.Since(t0)

				mu.Lock()
				latencies = append(latencies, d)
				if err != nil {
					failures++
				}
				mu.Unlock()

				if errors.Is(err, authclient.ErrSessionExpired) {
					return err
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}
	}
	total := time.Since(start)

	snap := client.MetricsSnapshot()
	fmt.Println("---- results ----")
	fmt.Printf("requests=%d failures=%d total=%s req/sec=%.0f\n",
		len(latencies), failures, total.Round(time.Millisecond), float64(len(latencies))/total.Seconds())
	fmt.Printf("refresh cycles=%d waiters=%d replays=%d stale=%d\n",
		snap.Counters[authclient.MetricRefreshCycleStarted],
		snap.Counters[authclient.MetricRefreshWaiterQueued],
		snap.Counters[authclient.MetricReplay],
		snap.Counters[authclient.MetricStaleTokenReplay],
	)
	if api != nil {
		fmt.Printf("backend refresh calls=%d over %d rounds\n", api.RefreshCalls(), cfg.rounds)
	}
	printPercentiles(latencies)

	if cfg.showMetrics {
		fmt.Println("---- metrics ----")
		fmt.Print(prometheus.New(client).Render())
	}
	return nil
}

func redisClient() (redis.UniversalClient, func(), error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr != "" {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return rdb, func() { _ = rdb.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return rdb, func() {
		_ = rdb.Close()
		mr.Close()
	}, nil
}

func printPercentiles(samples []time.Duration) {
	if len(samples) == 0 {
		return
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	fmt.Printf("latency p50=%s p95=%s p99=%s max=%s\n",
		percentile(samples, 50).Round(time.Microsecond),
		percentile(samples, 95).Round(time.Microsecond),
		percentile(samples, 99).Round(time.Microsecond),
		samples[len(samples)-1].Round(time.Microsecond),
	)
}

func percentile(sorted []time.Duration, p int) time.Duration {
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	return sorted[(len(sorted)-1)*p/100]
}
