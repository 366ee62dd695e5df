package sandbox

import (
	"context"
	"fmt"
	"maps"
	"time"
)

// MountType distinguishes how a Mount is attached into the container.
type MountType string

const (
	MountTypeBind   MountType = "bind"
	MountTypeVolume MountType = "volume"
	MountTypeTmpfs  MountType = "tmpfs"
)

// Mount describes one filesystem mount into a container.
type Mount struct {
	Type     MountType
	Source   string
	Target   string
	ReadOnly bool
}

// Validate rejects Mounts that can never be satisfied: a target is always
// required, bind/volume mounts need a source, tmpfs mounts must not have one.
func (m Mount) Validate() error {
	if m.Target == "" {
		return fmt.Errorf("%w: mount target required", ErrSecurityViolation)
	}
	switch m.Type {
	case MountTypeBind, MountTypeVolume:
		if m.Source == "" {
			return fmt.Errorf("%w: mount %s requires a source", ErrSecurityViolation, m.Type)
		}
	case MountTypeTmpfs:
		// no source
	case "":
		return fmt.Errorf("%w: mount type required", ErrSecurityViolation)
	}
	return nil
}

// ResourceSpec bounds a container's CPU/memory/process/disk consumption.
type ResourceSpec struct {
	MemoryBytes int64
	CPUQuota    int64
	PidsLimit   int64
	DiskBytes   int64
}

func (r ResourceSpec) Validate() error {
	if r.MemoryBytes < 0 || r.CPUQuota < 0 || r.PidsLimit < 0 || r.DiskBytes < 0 {
		return fmt.Errorf("%w: resource limits must be non-negative", ErrSecurityViolation)
	}
	return nil
}

// SecuritySpec is the set of container-level security controls every
// isolated execution mode must pin down. Validate enforces the two controls
// the isolation contract treats as non-negotiable: no privileged containers,
// no host networking.
type SecuritySpec struct {
	User           string
	ReadOnlyRootfs bool
	NetworkMode    string
	SeccompProfile string
	Privileged     bool
}

func (s SecuritySpec) Validate() error {
	if s.Privileged {
		return fmt.Errorf("%w: privileged containers are never permitted", ErrSecurityViolation)
	}
	if s.NetworkMode == "host" {
		return fmt.Errorf("%w: host network mode is never permitted", ErrSecurityViolation)
	}
	return nil
}

// ContainerSpec is the backend-agnostic description of one container
// execution. No concrete container runtime SDK type appears anywhere in
// this package; ContainerRunner is the only seam a backend implements.
type ContainerSpec struct {
	Image      string
	Command    []string
	WorkingDir string
	Env        []string
	Mounts     []Mount
	Resources  ResourceSpec
	Security   SecuritySpec
	Timeout    time.Duration
	Labels     map[string]string
}

// Validate rejects a spec that violates the isolation contract before it
// ever reaches a ContainerRunner.
func (s ContainerSpec) Validate() error {
	if s.Image == "" {
		return fmt.Errorf("%w: image required", ErrSecurityViolation)
	}
	if err := s.Security.Validate(); err != nil {
		return err
	}
	if err := s.Resources.Validate(); err != nil {
		return err
	}
	for _, m := range s.Mounts {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ContainerResult is one completed container run.
type ContainerResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// ContainerRunner is the minimal seam a concrete isolation backend
// implements. The bigger the interface, the weaker the abstraction: no
// image pull, network plumbing, or lifecycle management belongs here — a
// backend owns all of that behind Run.
type ContainerRunner interface {
	Run(ctx context.Context, spec ContainerSpec) (ContainerResult, error)
}

// ImageResolver resolves a configured image name/tag to a concrete,
// content-addressed reference before a run, so a mutable tag can't change
// what actually executes between the startup probe and the run itself.
type ImageResolver interface {
	Resolve(ctx context.Context, image string) (string, error)
}

// HealthChecker reports whether the isolation backend's daemon is reachable,
// backing the BackendUnavailable failure policy (§4.1): once a health probe
// fails, further attempts are inhibited until a probe succeeds again.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// SpecBuilder constructs a ContainerSpec with validation, mirroring the
// fluent builder idiom used throughout this codebase's container tooling.
type SpecBuilder struct {
	spec ContainerSpec
}

func NewSpecBuilder(image string) *SpecBuilder {
	return &SpecBuilder{spec: ContainerSpec{Image: image}}
}

func (b *SpecBuilder) WithCommand(cmd ...string) *SpecBuilder {
	b.spec.Command = cmd
	return b
}

func (b *SpecBuilder) WithWorkingDir(dir string) *SpecBuilder {
	b.spec.WorkingDir = dir
	return b
}

func (b *SpecBuilder) WithEnv(key, value string) *SpecBuilder {
	b.spec.Env = append(b.spec.Env, key+"="+value)
	return b
}

func (b *SpecBuilder) WithEnvs(envs []string) *SpecBuilder {
	b.spec.Env = append(b.spec.Env, envs...)
	return b
}

func (b *SpecBuilder) WithMount(m Mount) *SpecBuilder {
	b.spec.Mounts = append(b.spec.Mounts, m)
	return b
}

func (b *SpecBuilder) WithBindMount(source, target string, readOnly bool) *SpecBuilder {
	return b.WithMount(Mount{Type: MountTypeBind, Source: source, Target: target, ReadOnly: readOnly})
}

func (b *SpecBuilder) WithTmpfs(target string) *SpecBuilder {
	return b.WithMount(Mount{Type: MountTypeTmpfs, Target: target})
}

func (b *SpecBuilder) WithResources(r ResourceSpec) *SpecBuilder {
	b.spec.Resources = r
	return b
}

func (b *SpecBuilder) WithSecurity(s SecuritySpec) *SpecBuilder {
	b.spec.Security = s
	return b
}

func (b *SpecBuilder) WithTimeout(d time.Duration) *SpecBuilder {
	b.spec.Timeout = d
	return b
}

func (b *SpecBuilder) WithLabel(key, value string) *SpecBuilder {
	if b.spec.Labels == nil {
		b.spec.Labels = make(map[string]string)
	}
	b.spec.Labels[key] = value
	return b
}

func (b *SpecBuilder) WithLabels(labels map[string]string) *SpecBuilder {
	if b.spec.Labels == nil {
		b.spec.Labels = make(map[string]string, len(labels))
	}
	maps.Copy(b.spec.Labels, labels)
	return b
}

func (b *SpecBuilder) Build() (ContainerSpec, error) {
	if err := b.spec.Validate(); err != nil {
		return ContainerSpec{}, err
	}
	return b.spec, nil
}
