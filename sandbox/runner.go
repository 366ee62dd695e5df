package sandbox

import (
	"context"

	executor "github.com/avb-is-me/codespace-executor"
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

// Result is one completed Sandbox execution, prior to being folded into the
// unified ExecutionResult shape by the Result Shaper.
type Result struct {
	Stdout            string
	Stderr            string
	ExitCode          int
	ExecutionTimeMs   int64
	StdoutTruncated   bool
	StderrTruncated   bool
}

// Runner executes one payload inside a disposable, isolated context for the
// given mode. Every concrete Runner must guarantee that no resources survive
// past Execute returning, on any exit path — success, failure, or timeout.
type Runner interface {
	// IsAvailable reports whether this Runner's backend can currently
	// accept work, backing the BackendUnavailable failure policy.
	IsAvailable(ctx context.Context) bool

	// Execute runs payload with env injected into the execution
	// environment, under mode and limits, routed through proxyEndpoint
	// when mode requires network egress via the Egress Proxy.
	Execute(ctx context.Context, payload string, env map[string]string, mode executor.ExecutionMode, limits Limits, proxyEndpoint string) (Result, error)
}
