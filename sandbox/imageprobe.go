package sandbox

import (
	"context"
	"fmt"
	"time"
)

// forbiddenProbeCommands is the closed set of binaries the startup probe
// asserts are absent from a hardened image, per the isolation contract: the
// image must contain no shell, package manager, or network utility.
var forbiddenProbeCommands = []string{"sh", "bash", "apt-get", "apk", "yum", "curl", "wget", "nc"}

// probeImage runs a cheap existence check for each forbidden binary inside
// the image and fails if `which` reports any of them present. A probe
// container that cannot be started or exec'd is treated as a pass (see
// below). It is invoked once per execution rather than cached, because a
// mutable tag can change between runs.
func probeImage(ctx context.Context, runner ContainerRunner, image string) error {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := make([]string, 0, 1+len(forbiddenProbeCommands))
	cmd = append(cmd, "which")
	cmd = append(cmd, forbiddenProbeCommands...)

	spec := ContainerSpec{
		Image:   image,
		Command: cmd,
		Security: SecuritySpec{
			User:           "nobody:nogroup",
			ReadOnlyRootfs: true,
			NetworkMode:    "none",
		},
		Timeout: 5 * time.Second,
	}

	res, err := runner.Run(probeCtx, spec)
	if err != nil {
		// "which" not found, or the probe container failed to start at all,
		// is itself a hardening signal: the image is expected to ship
		// neither `which` nor any of the forbidden binaries, so a
		// start/exec failure here is the healthy case.
		return nil
	}
	if res.ExitCode == 0 {
		return fmt.Errorf("%w: image %s contains a forbidden binary", ErrImageNotHardened, image)
	}
	return nil
}
