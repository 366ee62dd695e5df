package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	executor "github.com/avb-is-me/codespace-executor"
)

// outMarker is the stdout line prefix a direct-mode payload uses to return a
// structured value, mirroring the convention the wrapped-code pattern below
// relies on to separate program stdout from the returned value.
const outMarker = "__OUT__:"

// DirectConfig configures a DirectRunner.
type DirectConfig struct {
	// WorkRoot is the host directory each execution's scratch directory is
	// created under.
	WorkRoot string
	Logger   Logger
}

// DirectRunner executes a payload directly on the host with no container
// isolation (ExecutionMode "direct"). It exists for local development and
// trusted payloads only; it never routes through the Egress Proxy and never
// applies a policy. Per the isolation contract, every other execution mode
// is required to run inside a ContainerRunner instead.
type DirectRunner struct {
	workRoot string
	logger   Logger
}

func NewDirectRunner(cfg DirectConfig) *DirectRunner {
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	workRoot := cfg.WorkRoot
	if workRoot == "" {
		workRoot = os.TempDir()
	}
	return &DirectRunner{workRoot: workRoot, logger: logger}
}

// IsAvailable is always true: direct mode has no external backend to probe.
func (r *DirectRunner) IsAvailable(ctx context.Context) bool {
	return true
}

func (r *DirectRunner) Execute(ctx context.Context, payload string, env map[string]string, mode executor.ExecutionMode, limits Limits, proxyEndpoint string) (Result, error) {
	if mode != executor.ModeDirect {
		return Result{}, toExecutionError("direct.execute", fmt.Errorf("%w: DirectRunner only supports direct mode", ErrStartFailed))
	}

	sb, err := New(r.workRoot, mode, limits, proxyEndpoint, env)
	if err != nil {
		return Result{}, err
	}
	defer sb.Close()

	runCtx, cancel := sb.WithDeadline(ctx)
	defer cancel()

	start := time.Now()
	res, err := r.runSubprocess(runCtx, sb, payload, env)
	res.ExecutionTimeMs = time.Since(start).Milliseconds()
	return res, err
}

func (r *DirectRunner) runSubprocess(ctx context.Context, sb *Sandbox, payload string, env map[string]string) (Result, error) {
	mainFile := filepath.Join(sb.WorkDir, "main.go")
	modFile := filepath.Join(sb.WorkDir, "go.mod")

	if err := os.WriteFile(mainFile, []byte(wrapPayload(payload)), 0o600); err != nil {
		return Result{}, toExecutionError("direct.write", fmt.Errorf("%w: %v", ErrStartFailed, err))
	}
	if err := os.WriteFile(modFile, []byte("module sandboxpayload\n\ngo 1.24\n"), 0o600); err != nil {
		return Result{}, toExecutionError("direct.write", fmt.Errorf("%w: %v", ErrStartFailed, err))
	}

	stdout := newCappedBuffer()
	stderr := newCappedBuffer()

	cmd := exec.CommandContext(ctx, "go", "run", ".")
	cmd.Dir = sb.WorkDir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = buildProcessEnv(env)

	runErr := cmd.Run()

	exitCode := 0
	if runErr != nil {
		if ctx.Err() != nil {
			return Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: executor.ExitCodeTimeout}, toExecutionError("direct.run", ErrTimeout)
		}
		var exitErr *exec.ExitError
		if ok := asExitError(runErr, &exitErr); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return Result{}, toExecutionError("direct.run", fmt.Errorf("%w: %v", ErrStartFailed, runErr))
		}
	}

	return Result{
		Stdout:          stripOutMarker(stdout.String()),
		Stderr:          stderr.String(),
		ExitCode:        exitCode,
		StdoutTruncated: stdout.Truncated(),
		StderrTruncated: stderr.Truncated(),
	}, nil
}

// stripOutMarker removes the wrapPayload-internal marker line from stdout so
// the protocol used to smuggle a return value out of the payload never
// leaks into the audited output.
func stripOutMarker(stdout string) string {
	if _, ok := extractOutValue(stdout); !ok {
		return stdout
	}
	lines := strings.Split(stdout, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(line, outMarker) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

func buildProcessEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// wrapPayload wraps raw payload code in a runnable package main unless it
// already declares one, and arranges for any trailing __out value to be
// printed on a single marked stdout line so the caller can separate the
// returned value from the payload's own output.
func wrapPayload(payload string) string {
	if strings.Contains(payload, "package ") && strings.Contains(payload, "func main()") {
		return payload
	}
	return fmt.Sprintf(`package main

import (
	"encoding/json"
	"fmt"
)

func run() any {
%s
}

func main() {
	__out := run()
	b, _ := json.Marshal(__out)
	fmt.Printf("%s%%s\n", string(b))
}
`, payload, outMarker)
}

// extractOutValue scans stdout for the marker line produced by wrapPayload
// and decodes the JSON value that follows it.
func extractOutValue(stdout string) (any, bool) {
	for _, line := range strings.Split(stdout, "\n") {
		if strings.HasPrefix(line, outMarker) {
			var v any
			raw := strings.TrimPrefix(line, outMarker)
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				return raw, true
			}
			return v, true
		}
	}
	return nil, false
}
