package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	executor "github.com/avb-is-me/codespace-executor"
)

// ContainerConfig configures a ContainerRunnerAdapter.
type ContainerConfig struct {
	Image          string
	SeccompProfile string
	Client         ContainerRunner
	ImageResolver  ImageResolver
	HealthChecker  HealthChecker
	WorkRoot       string
	Logger         Logger
}

// ContainerRunnerAdapter is the Runner for every mode that requires
// isolation: "isolated", "isolated-proxied", and
// "isolated-proxied-policied". It never runs with NetworkMode "none" for
// the two proxied modes — instead it wires the Sandbox's ProxyEndpoint in
// as HTTP_PROXY/HTTPS_PROXY so all outbound traffic is forced through the
// Egress Proxy rather than given direct internet access.
type ContainerRunnerAdapter struct {
	image          string
	seccompProfile string
	client         ContainerRunner
	imageResolver  ImageResolver
	healthChecker  HealthChecker
	workRoot       string
	logger         Logger
}

func NewContainerRunnerAdapter(cfg ContainerConfig) *ContainerRunnerAdapter {
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	return &ContainerRunnerAdapter{
		image:          cfg.Image,
		seccompProfile: cfg.SeccompProfile,
		client:         cfg.Client,
		imageResolver:  cfg.ImageResolver,
		healthChecker:  cfg.HealthChecker,
		workRoot:       cfg.WorkRoot,
		logger:         logger,
	}
}

// IsAvailable probes the backend's health. Per the failure policy, a caller
// observing false here must not retry until a subsequent probe succeeds.
func (a *ContainerRunnerAdapter) IsAvailable(ctx context.Context) bool {
	if a.healthChecker == nil {
		return a.client != nil
	}
	return a.healthChecker.Ping(ctx) == nil
}

func (a *ContainerRunnerAdapter) Execute(ctx context.Context, payload string, env map[string]string, mode executor.ExecutionMode, limits Limits, proxyEndpoint string) (Result, error) {
	if a.client == nil {
		return Result{}, toExecutionError("isolated.execute", fmt.Errorf("%w: no container client configured", ErrBackendUnavailable))
	}
	if !a.IsAvailable(ctx) {
		return Result{}, toExecutionError("isolated.execute", ErrBackendUnavailable)
	}

	sb, err := New(a.workRoot, mode, limits, proxyEndpoint, env)
	if err != nil {
		return Result{}, err
	}
	defer sb.Close()

	image, err := a.resolveImage(ctx)
	if err != nil {
		return Result{}, err
	}
	if err := probeImage(ctx, a.client, image); err != nil {
		return Result{}, toExecutionError("isolated.probe", err)
	}

	spec, err := a.buildSpec(sb, image, payload, env, mode)
	if err != nil {
		return Result{}, toExecutionError("isolated.buildspec", err)
	}

	runCtx, cancel := sb.WithDeadline(ctx)
	defer cancel()

	start := time.Now()
	cr, err := a.runWithImagePullRetry(runCtx, spec)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		if runCtx.Err() != nil {
			return Result{ExitCode: executor.ExitCodeTimeout, ExecutionTimeMs: elapsed}, toExecutionError("isolated.run", ErrTimeout)
		}
		return Result{}, toExecutionError("isolated.run", fmt.Errorf("%w: %v", ErrStartFailed, err))
	}

	return Result{
		Stdout:          cr.Stdout,
		Stderr:          cr.Stderr,
		ExitCode:        cr.ExitCode,
		ExecutionTimeMs: elapsed,
	}, nil
}

// ProbeImage runs the hardening probe once against the configured image
// outside of any execution, so a misconfigured SANDBOX_IMAGE fails fast at
// startup rather than on the first caller's execution.
func (a *ContainerRunnerAdapter) ProbeImage(ctx context.Context) error {
	if a.client == nil {
		return fmt.Errorf("%w: no container client configured", ErrBackendUnavailable)
	}
	image, err := a.resolveImage(ctx)
	if err != nil {
		return err
	}
	return probeImage(ctx, a.client, image)
}

func (a *ContainerRunnerAdapter) resolveImage(ctx context.Context) (string, error) {
	if a.imageResolver == nil {
		return a.image, nil
	}
	resolved, err := a.imageResolver.Resolve(ctx, a.image)
	if err != nil {
		return "", toExecutionError("isolated.resolve", fmt.Errorf("%w: %v", ErrImagePullFailed, err))
	}
	return resolved, nil
}

// runWithImagePullRetry retries exactly once, with exponential backoff,
// when the underlying client reports an image-pull failure — the only
// retryable start failure per the failure policy. Every other failure is
// returned immediately via backoff.Permanent so it isn't retried.
func (a *ContainerRunnerAdapter) runWithImagePullRetry(ctx context.Context, spec ContainerSpec) (ContainerResult, error) {
	attempt := 0
	op := func() (ContainerResult, error) {
		cr, err := a.client.Run(ctx, spec)
		if err == nil {
			return cr, nil
		}
		attempt++
		if attempt > 1 || !errors.Is(err, ErrImagePullFailed) {
			return ContainerResult{}, backoff.Permanent(err)
		}
		a.logger.Warn("image pull failed, retrying once", "image", spec.Image)
		return ContainerResult{}, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	return backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxTries(2))
}

func (a *ContainerRunnerAdapter) buildSpec(sb *Sandbox, image, payload string, env map[string]string, mode executor.ExecutionMode) (ContainerSpec, error) {
	b := NewSpecBuilder(image).
		WithCommand("run", payload).
		WithWorkingDir("/work").
		WithEnvs(buildProcessEnv(env)).
		WithTimeout(sb.Deadline()).
		WithBindMount(sb.WorkDir, "/work", true).
		WithTmpfs("/tmp").
		WithResources(ResourceSpec{
			MemoryBytes: limitsOrDefault(sb.Limits.MemoryBytes, 256<<20),
			CPUQuota:    limitsOrDefault(sb.Limits.CPUShare, 100000),
		}).
		WithLabel("sandbox-id", sb.ID).
		WithLabel("execution-mode", string(mode))

	sec := SecuritySpec{
		User:           "nobody:nogroup",
		ReadOnlyRootfs: true,
		NetworkMode:    networkModeFor(mode),
		SeccompProfile: a.seccompProfile,
	}
	b.WithSecurity(sec)

	if mode == executor.ModeIsolatedProxied || mode == executor.ModeIsolatedProxiedPolicied {
		if sb.ProxyEndpoint != "" {
			b.WithEnv("HTTP_PROXY", sb.ProxyEndpoint).WithEnv("HTTPS_PROXY", sb.ProxyEndpoint)
		}
	}

	return b.Build()
}

func networkModeFor(mode executor.ExecutionMode) string {
	switch mode {
	case executor.ModeIsolated:
		return "none"
	case executor.ModeIsolatedProxied, executor.ModeIsolatedProxiedPolicied:
		return "bridge"
	default:
		return "none"
	}
}

func limitsOrDefault(v, def int64) int64 {
	if v > 0 {
		return v
	}
	return def
}
