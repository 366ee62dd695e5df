// Package proxy is the Egress Proxy: the sole path a Sandbox's outbound
// traffic may take to the internet. It forwards plain HTTP, tunnels CONNECT
// (TLS) traffic without inspecting its contents, applies per-caller policy
// decisions at the domain/method/path granularity, and records one audit
// entry per attempted request in arrival order.
package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	executor "github.com/avb-is-me/codespace-executor"
	"github.com/avb-is-me/codespace-executor/policy"
)

// Logger is the narrow logging interface this package depends on.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Config configures a Proxy.
type Config struct {
	// Policy is the initial policy; nil means policy.Default (deny-all).
	Policy *policy.Policy

	// FilterSensitiveHeaders controls whether RequestHeaders recorded in
	// audit entries redact credential-bearing headers. The zero value is
	// "off"; the spec default of true is applied by the config package, not
	// here, so callers constructing a Proxy directly must set this
	// explicitly. The real upstream request is never affected by this flag
	// — filtering only touches what is recorded for audit.
	FilterSensitiveHeaders bool

	// CallerTokenHeaderPrefix additionally marks any header whose name
	// carries this prefix as sensitive for audit redaction, alongside the
	// fixed minimum set.
	CallerTokenHeaderPrefix string

	Logger Logger
}

// sensitiveHeaders is the minimum set of headers redacted from recorded
// audit entries when FilterSensitiveHeaders is enabled (§4.2).
var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"proxy-authorization": true,
}

// Proxy is the Egress Proxy. It is safe for concurrent use: SetPolicy swaps
// an atomic pointer so in-flight requests always observe the policy that
// was current at their arrival, never a policy that starts serving mid-flight.
type Proxy struct {
	mu     sync.Mutex
	server *http.Server
	ln     net.Listener

	policy                 atomic.Pointer[policy.Policy]
	filterSensitiveHeaders bool
	tokenPrefix            string

	onRequest  OnRequestHook
	onResponse OnResponseHook

	audit  *AuditLog
	logger Logger
}

// New creates a Proxy. Call Start to begin listening.
func New(cfg Config) *Proxy {
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	p := &Proxy{
		filterSensitiveHeaders: cfg.FilterSensitiveHeaders,
		tokenPrefix:            cfg.CallerTokenHeaderPrefix,
		audit:                  NewAuditLog(),
		logger:                 logger,
	}
	pol := policy.Default
	if cfg.Policy != nil {
		pol = *cfg.Policy
	}
	p.policy.Store(&pol)
	return p
}

// SetOnRequest installs the request hook. Must be called before Start.
func (p *Proxy) SetOnRequest(h OnRequestHook) { p.onRequest = h }

// SetOnResponse installs the response hook. Must be called before Start.
func (p *Proxy) SetOnResponse(h OnResponseHook) { p.onResponse = h }

// SetPolicy atomically swaps the active policy. Requests already in flight
// keep evaluating against whatever policy they read at arrival.
func (p *Proxy) SetPolicy(pol policy.Policy) {
	p.policy.Store(&pol)
}

func (p *Proxy) currentPolicy() policy.Policy {
	return *p.policy.Load()
}

// Endpoint is the host:port a Sandbox should be configured to route its
// egress through, returned by Start.
type Endpoint string

// Start begins listening on port (0 picks an ephemeral port) and returns the
// endpoint to configure sandboxes with. Start is idempotent: calling it
// again while already listening returns the existing endpoint.
func (p *Proxy) Start(port int) (Endpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ln != nil {
		return Endpoint(p.ln.Addr().String()), nil
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return "", fmt.Errorf("proxy: listen: %w", err)
	}
	p.ln = ln
	p.server = &http.Server{Handler: p}
	go func() {
		_ = p.server.Serve(ln)
	}()
	return Endpoint(ln.Addr().String()), nil
}

// Stop drains in-flight requests (bounded by ctx) and stops listening.
func (p *Proxy) Stop(ctx context.Context) error {
	p.mu.Lock()
	server := p.server
	p.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// AuditSnapshot returns a copy of every recorded AuditEntry in arrival order.
func (p *Proxy) AuditSnapshot() []executor.AuditEntry {
	return p.audit.Snapshot()
}

// ServeHTTP dispatches CONNECT tunnels separately from plain HTTP forwarding.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		p.handleConnect(w, r)
		return
	}
	p.handleHTTP(w, r)
}

func nowAuditEntry(method, url, hostname string, reqHeaders map[string]string) executor.AuditEntry {
	return executor.AuditEntry{
		Timestamp:      time.Now(),
		Method:         method,
		URL:            url,
		Hostname:       hostname,
		RequestHeaders: reqHeaders,
	}
}
