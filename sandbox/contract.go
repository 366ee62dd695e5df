package sandbox

import (
	"context"
	"strings"
	"testing"
	"time"

	executor "github.com/avb-is-me/codespace-executor"
)

// RunnerContract names the behavior every Runner implementation must
// satisfy, independent of backend. Use RunRunnerContractTests to exercise
// a concrete Runner against it.
type RunnerContract struct {
	// New returns a fresh Runner for one subtest. Called once per subtest
	// so Runners with per-instance state don't leak across cases.
	New func(t *testing.T) Runner

	// Mode is the ExecutionMode this Runner is expected to support.
	Mode executor.ExecutionMode

	// EchoPayload is a payload the Runner can execute that writes a known
	// string to stdout and exits 0. Its shape is backend-specific (a shell
	// snippet for a container backend, Go source for DirectRunner).
	EchoPayload string
	EchoWant    string
}

// RunRunnerContractTests exercises the invariants every Runner must hold:
// IsAvailable is callable before any execution, a well-formed payload
// executes and returns its declared output, and Execute never panics on a
// canceled context.
func RunRunnerContractTests(t *testing.T, c RunnerContract) {
	t.Run("IsAvailable", func(t *testing.T) {
		r := c.New(t)
		_ = r.IsAvailable(context.Background())
	})

	t.Run("ExecutesEchoPayload", func(t *testing.T) {
		r := c.New(t)
		res, err := r.Execute(context.Background(), c.EchoPayload, nil, c.Mode, Limits{WallClockMs: 10000}, "")
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if res.ExitCode != 0 {
			t.Errorf("ExitCode = %d, want 0", res.ExitCode)
		}
		if !strings.Contains(res.Stdout, c.EchoWant) {
			t.Errorf("Stdout = %q, want it to contain %q", res.Stdout, c.EchoWant)
		}
	})

	t.Run("CanceledContextDoesNotPanic", func(t *testing.T) {
		r := c.New(t)
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		time.Sleep(time.Millisecond)
		_, _ = r.Execute(ctx, c.EchoPayload, nil, c.Mode, Limits{}, "")
	})
}
