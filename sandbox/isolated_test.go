package sandbox

import (
	"context"
	"errors"
	"fmt"
	"testing"

	executor "github.com/avb-is-me/codespace-executor"
)

type fakeRunner struct {
	runs      int
	failTimes int
	result    ContainerResult
	lastSpec  ContainerSpec
}

func (f *fakeRunner) Run(ctx context.Context, spec ContainerSpec) (ContainerResult, error) {
	if len(spec.Command) > 0 && spec.Command[0] == "which" {
		// Simulate a hardened image: none of the forbidden binaries exist.
		return ContainerResult{ExitCode: 1}, nil
	}
	f.runs++
	f.lastSpec = spec
	if f.runs <= f.failTimes {
		return ContainerResult{}, fmt.Errorf("%w: pull failed", ErrImagePullFailed)
	}
	return f.result, nil
}

type fakeHealth struct{ healthy bool }

func (h fakeHealth) Ping(ctx context.Context) error {
	if h.healthy {
		return nil
	}
	return errors.New("unreachable")
}

func newAdapter(t *testing.T, runner ContainerRunner) *ContainerRunnerAdapter {
	return NewContainerRunnerAdapter(ContainerConfig{
		Image:    "hardened/base:latest",
		Client:   runner,
		WorkRoot: t.TempDir(),
	})
}

func TestContainerRunnerAdapterUnavailableWithoutHealthChecker(t *testing.T) {
	a := NewContainerRunnerAdapter(ContainerConfig{WorkRoot: t.TempDir()})
	if a.IsAvailable(context.Background()) {
		t.Error("adapter with no client should be unavailable")
	}
}

func TestContainerRunnerAdapterHealthCheckGatesAvailability(t *testing.T) {
	a := NewContainerRunnerAdapter(ContainerConfig{
		Client:        &fakeRunner{},
		HealthChecker: fakeHealth{healthy: false},
		WorkRoot:      t.TempDir(),
	})
	if a.IsAvailable(context.Background()) {
		t.Error("expected unavailable when HealthChecker reports unhealthy")
	}
}

func TestContainerRunnerAdapterExecuteSuccess(t *testing.T) {
	// A probe run (res.ExitCode != 0, simulating `which` finding nothing)
	// then the real run both come from the same fakeRunner; the probe call
	// happens first and must not consume the configured result.
	runner := &fakeRunner{result: ContainerResult{ExitCode: 0, Stdout: "ok"}}
	a := newAdapter(t, runner)

	res, err := a.Execute(context.Background(), "print('hi')", nil, executor.ModeIsolated, Limits{WallClockMs: 5000}, "")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Stdout != "ok" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "ok")
	}
	if runner.lastSpec.Security.NetworkMode != "none" {
		t.Errorf("NetworkMode = %q, want %q for isolated mode", runner.lastSpec.Security.NetworkMode, "none")
	}
}

func TestContainerRunnerAdapterProxiedModeSetsNetworkAndProxyEnv(t *testing.T) {
	runner := &fakeRunner{result: ContainerResult{ExitCode: 0}}
	a := newAdapter(t, runner)

	_, err := a.Execute(context.Background(), "print('hi')", nil, executor.ModeIsolatedProxied, Limits{WallClockMs: 5000}, "http://127.0.0.1:9000")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if runner.lastSpec.Security.NetworkMode != "bridge" {
		t.Errorf("NetworkMode = %q, want %q for proxied mode", runner.lastSpec.Security.NetworkMode, "bridge")
	}
	found := false
	for _, e := range runner.lastSpec.Env {
		if e == "HTTP_PROXY=http://127.0.0.1:9000" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected HTTP_PROXY env var in spec, got %v", runner.lastSpec.Env)
	}
}

func TestContainerRunnerAdapterRetriesImagePullFailureOnce(t *testing.T) {
	runner := &fakeRunner{failTimes: 1, result: ContainerResult{ExitCode: 0, Stdout: "ok"}}
	a := newAdapter(t, runner)

	res, err := a.Execute(context.Background(), "print('hi')", nil, executor.ModeIsolated, Limits{WallClockMs: 5000}, "")
	if err != nil {
		t.Fatalf("Execute() should succeed after one retry, got error = %v", err)
	}
	if res.Stdout != "ok" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "ok")
	}
}

func TestContainerRunnerAdapterFailsWhenImageResolverFails(t *testing.T) {
	runner := &fakeRunner{result: ContainerResult{ExitCode: 0}}
	a := NewContainerRunnerAdapter(ContainerConfig{
		Client: runner,
		ImageResolver: resolverFunc(func(ctx context.Context, image string) (string, error) {
			return "", errors.New("registry down")
		}),
		WorkRoot: t.TempDir(),
	})
	_, err := a.Execute(context.Background(), "print('hi')", nil, executor.ModeIsolated, Limits{}, "")
	if err == nil {
		t.Error("expected an error when the image resolver fails")
	}
}

type resolverFunc func(ctx context.Context, image string) (string, error)

func (f resolverFunc) Resolve(ctx context.Context, image string) (string, error) { return f(ctx, image) }
