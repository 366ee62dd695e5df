package sandbox

import "testing"

func TestSecuritySpecValidateRejectsPrivileged(t *testing.T) {
	s := SecuritySpec{Privileged: true}
	if err := s.Validate(); err == nil {
		t.Error("expected error for privileged security spec")
	}
}

func TestSecuritySpecValidateRejectsHostNetwork(t *testing.T) {
	s := SecuritySpec{NetworkMode: "host"}
	if err := s.Validate(); err == nil {
		t.Error("expected error for host network mode")
	}
}

func TestSecuritySpecValidateOK(t *testing.T) {
	s := SecuritySpec{NetworkMode: "none", ReadOnlyRootfs: true}
	if err := s.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestResourceSpecValidateRejectsNegative(t *testing.T) {
	r := ResourceSpec{MemoryBytes: -1}
	if err := r.Validate(); err == nil {
		t.Error("expected error for negative memory")
	}
}

func TestMountValidateRequiresTarget(t *testing.T) {
	m := Mount{Type: MountTypeTmpfs}
	if err := m.Validate(); err == nil {
		t.Error("expected error for missing target")
	}
}

func TestMountValidateBindRequiresSource(t *testing.T) {
	m := Mount{Type: MountTypeBind, Target: "/work"}
	if err := m.Validate(); err == nil {
		t.Error("expected error for bind mount without source")
	}
}

func TestMountValidateTmpfsNeedsNoSource(t *testing.T) {
	m := Mount{Type: MountTypeTmpfs, Target: "/tmp"}
	if err := m.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestContainerSpecValidateRequiresImage(t *testing.T) {
	s := ContainerSpec{}
	if err := s.Validate(); err == nil {
		t.Error("expected error for missing image")
	}
}

func TestSpecBuilderBuildsValidSpec(t *testing.T) {
	spec, err := NewSpecBuilder("alpine:3.19").
		WithCommand("echo", "hi").
		WithSecurity(SecuritySpec{NetworkMode: "none", ReadOnlyRootfs: true}).
		WithResources(ResourceSpec{MemoryBytes: 1 << 20}).
		WithLabel("k", "v").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if spec.Image != "alpine:3.19" || spec.Labels["k"] != "v" {
		t.Errorf("unexpected spec: %+v", spec)
	}
}

func TestSpecBuilderRejectsPrivileged(t *testing.T) {
	_, err := NewSpecBuilder("alpine:3.19").
		WithSecurity(SecuritySpec{Privileged: true}).
		Build()
	if err == nil {
		t.Error("expected Build() to reject a privileged security spec")
	}
}
