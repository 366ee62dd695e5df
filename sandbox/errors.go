package sandbox

import (
	"errors"

	executor "github.com/avb-is-me/codespace-executor"
)

var (
	// ErrBackendUnavailable means the isolation backend's daemon could not
	// be reached. Per the failure policy, further attempts must be
	// inhibited until a health probe succeeds again.
	ErrBackendUnavailable = errors.New("sandbox: isolation backend unavailable")

	// ErrImagePullFailed is retried once with exponential backoff before
	// surfacing.
	ErrImagePullFailed = errors.New("sandbox: image pull failed")

	// ErrStartFailed is never retried.
	ErrStartFailed = errors.New("sandbox: container start failed")

	// ErrTimeout means the wall-clock limit was exceeded. DirectRunner's
	// process is killed outright by its context deadline, with no separate
	// terminate step or grace period; ContainerRunnerAdapter cancels the
	// context passed to ContainerRunner.Run and leaves stopping the
	// container to that backend.
	ErrTimeout = errors.New("sandbox: wall-clock limit exceeded")

	// ErrOutOfMemory is distinguished from a generic non-zero exit so
	// callers can report it distinctly.
	ErrOutOfMemory = errors.New("sandbox: memory limit exceeded")

	// ErrSecurityViolation means a ContainerSpec failed validation because
	// it would have weakened the isolation contract (privileged, host
	// networking, etc).
	ErrSecurityViolation = errors.New("sandbox: security constraint violated")

	// ErrImageNotHardened means the startup probe found the image carries
	// a shell, package manager, or network utility the isolation contract
	// forbids.
	ErrImageNotHardened = errors.New("sandbox: image fails hardening probe")
)

// toExecutionError maps a sandbox-internal error to the closed ErrorKind set
// the rest of the system reasons about.
func toExecutionError(op string, err error) *executor.ExecutionError {
	kind := executor.KindInternal
	switch {
	case errors.Is(err, ErrBackendUnavailable):
		kind = executor.KindBackendUnavailable
	case errors.Is(err, ErrImagePullFailed):
		kind = executor.KindImagePullFailed
	case errors.Is(err, ErrStartFailed), errors.Is(err, ErrSecurityViolation), errors.Is(err, ErrImageNotHardened):
		kind = executor.KindStartFailed
	case errors.Is(err, ErrTimeout):
		kind = executor.KindTimeout
	case errors.Is(err, ErrOutOfMemory):
		kind = executor.KindOutOfMemory
	}
	return &executor.ExecutionError{Kind: kind, Op: op, Err: err}
}
