package resolver

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config configures the resolver's budgets and cache.
type Config struct {
	Enabled        bool
	MaxURLs        int           // default 8
	PerURLTimeout  time.Duration // default 2s
	TotalStopwatch time.Duration // default 3s
	CacheTTL       time.Duration // default 24h
	CacheSize      int           // default 4096
}

// DefaultConfig returns the budgets named in the resolver contract.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		MaxURLs:        8,
		PerURLTimeout:  2 * time.Second,
		TotalStopwatch: 3 * time.Second,
		CacheTTL:       24 * time.Hour,
		CacheSize:      4096,
	}
}

// asyncContextKey marks a context as already running inside an async
// dispatch loop; ResolveCtx returns null for such contexts instead of
// blocking on a network hop.
type asyncContextKey struct{}

// WithAsyncContext marks ctx as already asynchronous, causing ResolveCtx
// to short-circuit to null.
func WithAsyncContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, asyncContextKey{}, true)
}

func isAsyncContext(ctx context.Context) bool {
	v, _ := ctx.Value(asyncContextKey{}).(bool)
	return v
}

// Resolver performs SSRF-guarded, budget-bounded redirect resolution.
type Resolver struct {
	cfg    Config
	client *http.Client
	cache  cacheBackend
	logger *zap.Logger
}

// New creates a Resolver backed by the default in-process TTL cache. If
// logger is nil a no-op logger is used.
func New(cfg Config, logger *zap.Logger) *Resolver {
	return newResolver(cfg, newTTLCache(cfg.CacheTTL, cfg.CacheSize), logger)
}

// NewWithRedisCache creates a Resolver whose url -> resolved_url_or_null
// cache is shared across every router replica behind redisClient, instead
// of being scoped to this process. keyPrefix namespaces the cache keys;
// pass "" to accept the default.
func NewWithRedisCache(cfg Config, redisClient *redis.Client, keyPrefix string, logger *zap.Logger) *Resolver {
	return newResolver(cfg, newRedisCache(redisClient, cfg.CacheTTL, keyPrefix), logger)
}

func newResolver(cfg Config, cache cacheBackend, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.PerURLTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		cache:  cache,
		logger: logger,
	}
}

// Resolve implements citations.Resolver. It is the synchronous façade and
// runs ResolveCtx with context.Background(), so it always performs the hop;
// the asynchronous short-circuit is reachable only through ResolveCtx.
func (r *Resolver) Resolve(raw string) (resolved string, truncated bool) {
	return r.ResolveCtx(context.Background(), raw)
}

// ResolveCtx resolves raw to its terminal URL, honoring the per-request
// budgets. truncated is true when the URL was not resolved because a
// budget was exhausted (max_urls, per-url timeout, or total stopwatch).
func (r *Resolver) ResolveCtx(ctx context.Context, raw string) (resolved string, truncated bool) {
	if !r.cfg.Enabled {
		return "", false
	}
	if isAsyncContext(ctx) {
		return "", false
	}

	if cached, ok := r.cache.get(raw); ok {
		return cached, false
	}

	if err := checkSSRF(raw); err != nil {
		return "", false
	}

	hopCtx, cancel := context.WithTimeout(ctx, r.cfg.PerURLTimeout)
	defer cancel()

	target, err := r.hop(hopCtx, raw)
	if err != nil {
		r.logger.Debug("resolver: hop failed", zap.String("url", raw), zap.Error(err))
		return "", hopCtx.Err() != nil
	}

	r.cache.set(raw, target)
	return target, false
}

// BatchResult is one entry of a ResolveBatch call.
type BatchResult struct {
	URL        string
	Resolved   string
	Truncated  bool
}

// ResolveBatch resolves up to cfg.MaxURLs candidates within the total
// stopwatch budget. Requests beyond MaxURLs, or still pending once the
// stopwatch expires, come back marked Truncated with no resolution.
func (r *Resolver) ResolveBatch(ctx context.Context, urls []string) []BatchResult {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.TotalStopwatch)
	defer cancel()

	out := make([]BatchResult, 0, len(urls))
	for i, u := range urls {
		if i >= r.cfg.MaxURLs {
			out = append(out, BatchResult{URL: u, Truncated: true})
			continue
		}
		if ctx.Err() != nil {
			out = append(out, BatchResult{URL: u, Truncated: true})
			continue
		}
		resolved, _ := r.ResolveCtx(ctx, u)
		out = append(out, BatchResult{URL: u, Resolved: resolved, Truncated: resolved == ""})
	}
	return out
}

func (r *Resolver) hop(ctx context.Context, raw string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, raw, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil || resp.StatusCode == http.StatusMethodNotAllowed {
		// HEAD refused: fall back to a 1-byte ranged GET.
		return r.rangedGet(ctx, raw)
	}
	defer resp.Body.Close()
	return r.followLocation(raw, resp)
}

func (r *Resolver) rangedGet(ctx context.Context, raw string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1))
		resp.Body.Close()
	}()
	return r.followLocation(raw, resp)
}

func (r *Resolver) followLocation(original string, resp *http.Response) (string, error) {
	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return original, nil
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return original, nil
	}
	if err := checkSSRF(loc); err != nil {
		return original, nil
	}
	return loc, nil
}
