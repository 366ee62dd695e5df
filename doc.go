// Package executor is the secure execution core: it runs untrusted,
// caller-supplied script payloads inside a disposable, isolated sandbox,
// mediates every outbound network request the payload attempts through a
// policy-enforcing egress proxy, and returns one normalized result shape
// regardless of which isolation mode ran.
//
// # Architecture
//
// The main types are:
//
//   - Runtime: routes an ExecutionRequest through policy resolution, the
//     two-phase credential-isolation protocol, and the Sandbox Runner, then
//     normalizes the outcome with the Unified Result Shaper.
//   - ExecutionRequest / ExecutionResult: the request/response shape crossing
//     the Execute boundary.
//   - ExecutionError: the closed set of error kinds that may surface with
//     success=false.
//
// Supporting subsystems live in sibling packages:
//
//   - sandbox: the Secure Executor (disposable isolated process per payload).
//   - proxy: the Policy-Enforcing Egress Proxy (the payload's only path out).
//   - policy: the pure policy-decision engine plus the fetch/cache layer.
//   - orchestrator: the two-phase credential-isolation protocol.
//   - config: environment/file configuration loading.
//
// # Execution modes
//
//   - direct: host process, unrestricted network. Operator opt-in only.
//   - isolated: disposable container, no network interface attached.
//   - isolated-proxied: disposable container, egress forced through the
//     local Egress Proxy.
//   - isolated-proxied-policied: as above, with per-caller policy hooks
//     active on the proxy.
//
// # Security properties
//
// Every non-direct mode runs through sandbox.ContainerRunnerAdapter, which:
//
//  1. Runs the payload as nobody:nogroup inside the container.
//  2. Enforces the wall-clock limit through a context deadline derived from
//     the caller's context, so cancellation propagates.
//  3. Uses a read-only root filesystem, mounts the sandbox working directory
//     read-only at /work, and provides a tmpfs at /tmp.
//  4. Attaches no network in "isolated" mode. The proxied modes use a bridge
//     network with HTTP_PROXY/HTTPS_PROXY pointing at the Egress Proxy; no
//     other egress filtering is applied to the container.
//  5. Rejects container specs that request privileged mode or host
//     networking.
//
// ContainerSpec carries no capability settings, so capabilities are left at
// the backend's defaults, and ExecutionData does not report which resource
// limits were enforced.
//
// Module interception of network calls inside the payload's own process is
// deliberately not implemented anywhere in this core: isolation is a
// network-namespace-and-image property, not a library property.
package executor
