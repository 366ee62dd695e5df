package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Logger is the narrow logging interface this package depends on, matching
// the shape of the rest of the codebase's Logger interfaces.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// FetchResult is the outcome of FetchPolicy.
type FetchResult struct {
	Success bool
	Policy  Policy
	Error   string
}

// Stats reports Fetcher cache/hit/miss counters for observability.
type Stats struct {
	Size   int
	Hits   int64
	Misses int64
}

// servicePolicy is the wire shape returned by GET /policies (spec §6).
// Unknown fields are ignored by encoding/json by default.
type servicePolicy struct {
	AllowedDomains  []string                      `json:"allowedDomains"`
	BlockedDomains  []string                      `json:"blockedDomains"`
	APIPathRules    map[string][]servicePathRule   `json:"apiPathRules"`
	AllowedPackages []string                      `json:"allowedPackages"`
	AllowedBinaries []string                      `json:"allowedBinaries"`
}

type servicePathRule struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Allow  bool   `json:"allow"`
}

// Fetcher resolves a caller token to a Policy, caching the result with a
// configured TTL and coalescing concurrent misses for the same token via
// single-flight so a stampede of requests for one caller produces one
// upstream call to the Policy Service.
type Fetcher struct {
	baseURL      string
	httpClient   *http.Client
	cache        Cache
	ttl          time.Duration
	logger       Logger
	group        singleflight.Group
	hits, misses int64
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	// BaseURL is the Policy Service's base URL, e.g. "https://policy.internal".
	BaseURL string

	// HTTPClient is used for the GET /policies call; defaults to a client
	// with a 5s timeout.
	HTTPClient *http.Client

	// Cache backs the TTL cache; defaults to a fresh MemCache.
	Cache Cache

	// TTL is the default cache lifetime, per spec default 60s.
	TTL time.Duration

	Logger Logger
}

// NewFetcher builds a Fetcher. The Policy Service is expected to accept an
// Authorization: Bearer <callerToken> header, attached per request via
// oauth2.Token.SetAuthHeader on a token holding the caller's own (the core treats
// caller tokens as opaque strings; it does not perform OAuth flows itself).
func NewFetcher(cfg FetcherConfig) *Fetcher {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	cache := cfg.Cache
	if cache == nil {
		cache = NewMemCache()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	return &Fetcher{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		cache:      cache,
		ttl:        ttl,
		logger:     logger,
	}
}

// FetchPolicy resolves callerToken to a Policy per spec §4.4: empty token
// short-circuits to DEFAULT_POLICY; a cache hit returns immediately; a miss
// or expiry fetches from the Policy Service, caching on success and falling
// back to DEFAULT_POLICY (uncached) on any transport/parse failure.
func (f *Fetcher) FetchPolicy(ctx context.Context, callerToken string) FetchResult {
	if callerToken == "" {
		return FetchResult{Success: false, Policy: Default, Error: "no token"}
	}

	if entry, ok, err := f.cache.Get(ctx, callerToken); err == nil && ok {
		atomic.AddInt64(&f.hits, 1)
		return FetchResult{Success: true, Policy: entry.Policy}
	}
	atomic.AddInt64(&f.misses, 1)

	v, err, _ := f.group.Do(callerToken, func() (any, error) {
		return f.fetchAndCache(ctx, callerToken)
	})
	if err != nil {
		f.logger.Warn("policy fetch failed", "error", err.Error())
		return FetchResult{Success: false, Policy: Default, Error: err.Error()}
	}
	return v.(FetchResult)
}

func (f *Fetcher) fetchAndCache(ctx context.Context, token string) (FetchResult, error) {
	url := f.baseURL + "/policies"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("build request: %w", err)
	}
	// Caller tokens are opaque strings (see ExecutionRequest.CallerToken);
	// oauth2.Token.SetAuthHeader gives us the standard "Bearer <token>"
	// attachment without hand-rolling header formatting.
	oauthTok := &oauth2.Token{AccessToken: token, TokenType: "Bearer"}
	oauthTok.SetAuthHeader(req)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("transport error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return FetchResult{}, fmt.Errorf("policy service status %d", resp.StatusCode)
	}

	var sp servicePolicy
	if err := json.NewDecoder(resp.Body).Decode(&sp); err != nil {
		return FetchResult{}, fmt.Errorf("decode response: %w", err)
	}

	pol := toInternalPolicy(sp)

	entry := CacheEntry{Token: token, Policy: pol, FetchedAt: time.Now(), TTL: f.ttl}
	if err := f.cache.Set(ctx, entry); err != nil {
		f.logger.Warn("policy cache write failed", "error", err.Error())
	}

	return FetchResult{Success: true, Policy: pol}, nil
}

// toInternalPolicy transforms the Policy Service wire shape to the internal
// Policy shape, upper-casing methods per the §3 ingest invariant.
func toInternalPolicy(sp servicePolicy) Policy {
	pol := Policy{
		AllowedDomains:  sp.AllowedDomains,
		BlockedDomains:  sp.BlockedDomains,
		AllowedPackages: sp.AllowedPackages,
		AllowedBinaries: sp.AllowedBinaries,
	}
	for domainPattern, rawRules := range sp.APIPathRules {
		rules := make([]PathRule, 0, len(rawRules))
		for _, rr := range rawRules {
			rules = append(rules, PathRule{
				Method:      strings.ToUpper(rr.Method),
				PathPattern: rr.Path,
				Allow:       rr.Allow,
			})
		}
		pol.APIPathRules = append(pol.APIPathRules, DomainRules{DomainPattern: domainPattern, Rules: rules})
	}
	return pol
}

// Invalidate removes one cached entry, or the whole cache when token is empty.
func (f *Fetcher) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return f.cache.Clear(ctx)
	}
	return f.cache.Delete(ctx, token)
}

// StatsSnapshot reports cache size and hit/miss counters.
func (f *Fetcher) StatsSnapshot(ctx context.Context) Stats {
	size, _ := f.cache.Len(ctx)
	return Stats{
		Size:   size,
		Hits:   atomic.LoadInt64(&f.hits),
		Misses: atomic.LoadInt64(&f.misses),
	}
}
