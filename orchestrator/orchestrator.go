// Package orchestrator implements the Two-Phase Orchestrator: it resolves
// policy, runs each declared credentialed phase-1 fetch in order through
// the Egress Proxy, sanitizes the results, then launches the credential-free
// phase-2 Sandbox with the sanitized values exposed as read-only callable
// stubs.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	executor "github.com/avb-is-me/codespace-executor"
	"github.com/avb-is-me/codespace-executor/policy"
	"github.com/avb-is-me/codespace-executor/proxy"
	"github.com/avb-is-me/codespace-executor/sandbox"
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

// PolicyFetcher is the narrow interface this package needs from
// policy.Fetcher, resolving a caller token to the Policy actually enforced
// on the per-execution Egress Proxy.
type PolicyFetcher interface {
	FetchPolicy(ctx context.Context, callerToken string) policy.FetchResult
}

// Config configures an Orchestrator.
type Config struct {
	// Runners maps an ExecutionMode to the Runner that executes it.
	Runners map[executor.ExecutionMode]sandbox.Runner

	// PolicyFetcher resolves policy for "isolated-proxied-policied"
	// executions. When nil, that mode enforces policy.Default for every
	// execution regardless of caller token.
	PolicyFetcher PolicyFetcher

	// ProxyPort is the port a per-execution Egress Proxy listens on when
	// the mode requires one; 0 picks an ephemeral port.
	ProxyPort int

	// SensitiveResponseHeaders are additionally dropped from a phase-1
	// fetch's result before it's exposed to phase-2, beyond the fixed
	// "authorization"/"cookie"/"set-cookie" minimum.
	SensitiveResponseHeaders []string

	Logger Logger
}

// Orchestrator implements executor.Orchestrator.
type Orchestrator struct {
	runners       map[executor.ExecutionMode]sandbox.Runner
	policyFetcher PolicyFetcher
	proxyPort     int
	sensitiveResp map[string]bool
	logger        Logger
}

func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	sensitive := map[string]bool{"authorization": true, "set-cookie": true}
	for _, h := range cfg.SensitiveResponseHeaders {
		sensitive[strings.ToLower(h)] = true
	}
	return &Orchestrator{
		runners:       cfg.Runners,
		policyFetcher: cfg.PolicyFetcher,
		proxyPort:     cfg.ProxyPort,
		sensitiveResp: sensitive,
		logger:        logger,
	}
}

// Run executes req under mode and returns the unified ExecutionData.
// policyHint is the coarse PolicyInfo the Runtime already resolved for
// logging/reporting; for "isolated-proxied-policied" this Orchestrator
// independently resolves the full Policy itself (via PolicyFetcher) to
// enforce on the proxy, and the returned ExecutionData.PolicyInfo reflects
// what was actually enforced.
func (o *Orchestrator) Run(ctx context.Context, req executor.ExecutionRequest, mode executor.ExecutionMode, policyHint executor.PolicyInfo) (executor.ExecutionData, error) {
	runner, ok := o.runners[mode]
	if !ok || runner == nil {
		return executor.ExecutionData{}, &executor.ExecutionError{Kind: executor.KindBackendUnavailable, Op: "orchestrator.run", Err: fmt.Errorf("no runner configured for mode %q", mode)}
	}
	if !runner.IsAvailable(ctx) {
		return executor.ExecutionData{}, &executor.ExecutionError{Kind: executor.KindBackendUnavailable, Op: "orchestrator.run", Err: sandbox.ErrBackendUnavailable}
	}

	egress, proxyEndpoint, policyInfo, cleanup, err := o.startEgressIfNeeded(ctx, mode, req.CallerToken, policyHint)
	if err != nil {
		return executor.ExecutionData{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	var networkLog []executor.AuditEntry

	phase1Env := copyEnv(req.HeaderEnv)
	namedResults := make(map[string]FetchOutcome, len(req.Phase1Fetches))
	for _, fs := range req.Phase1Fetches {
		outcome := o.runFetch(ctx, fs, phase1Env, namedResults, runner, mode, proxyEndpoint)
		namedResults[fs.Name] = outcome
		if egress != nil {
			networkLog = egress.AuditSnapshot()
		}
	}

	phase2Env := sanitizeEnv(req.HeaderEnv)
	payload := injectStubs(req.Payload, buildStubs(namedResults))

	start := time.Now()
	result, err := runner.Execute(ctx, payload, phase2Env, mode, sandbox.Limits{WallClockMs: req.TimeoutMs}, proxyEndpoint)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		// A wall-clock timeout is reported inside ExecutionData via the
		// runner's ExitCodeTimeout sentinel rather than as a failure.
		var execErr *executor.ExecutionError
		if !errors.As(err, &execErr) || execErr.Kind != executor.KindTimeout {
			return executor.ExecutionData{}, err
		}
	}

	if egress != nil {
		networkLog = egress.AuditSnapshot()
	}

	return executor.ExecutionData{
		Stdout:          result.Stdout,
		Stderr:          result.Stderr,
		ExitCode:        result.ExitCode,
		ExecutionTimeMs: elapsed,
		ExecutionMode:   mode,
		NetworkLog:      networkLog,
		PolicyInfo:      policyInfo,
	}, nil
}

// startEgressIfNeeded starts a per-execution Egress Proxy when mode requires
// one, resolving and enforcing policy when mode.UsesPolicy(). The returned
// cleanup func stops the proxy; callers must invoke it even on error paths
// where egress is non-nil.
func (o *Orchestrator) startEgressIfNeeded(ctx context.Context, mode executor.ExecutionMode, callerToken string, hint executor.PolicyInfo) (*proxy.Proxy, string, executor.PolicyInfo, func(), error) {
	if !mode.UsesProxy() {
		return nil, "", executor.PolicyInfo{Source: "default"}, nil, nil
	}

	pol := policy.Permissive
	policyInfo := executor.PolicyInfo{Source: "default"}

	if mode.UsesPolicy() {
		if o.policyFetcher == nil {
			pol = policy.Default
			o.logger.Warn("no policy fetcher configured, enforcing default deny-all policy")
		} else {
			res := o.policyFetcher.FetchPolicy(ctx, callerToken)
			pol = res.Policy
			policyInfo = executor.PolicyInfo{Token: callerToken}
			if res.Success {
				policyInfo.Source = "caller"
			} else {
				policyInfo.Source = "default"
				o.logger.Warn("policy fetch failed, enforcing default deny-all policy", "error", res.Error)
			}
		}
	} else {
		_ = hint
	}

	p := proxy.New(proxy.Config{Policy: &pol, FilterSensitiveHeaders: true})
	endpoint, err := p.Start(o.proxyPort)
	if err != nil {
		return nil, "", executor.PolicyInfo{}, nil, &executor.ExecutionError{Kind: executor.KindInternal, Op: "orchestrator.proxy_start", Err: err}
	}

	cleanup := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Stop(stopCtx)
	}
	return p, string(endpoint), policyInfo, cleanup, nil
}

func copyEnv(env map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}
