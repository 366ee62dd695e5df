package executor

import (
	"strings"
	"time"
)

// ExecutionMode selects the Sandbox Runner's isolation level.
type ExecutionMode string

const (
	// ModeDirect runs the payload on the host process with a minimal
	// environment and unrestricted network. Operator opt-in only.
	ModeDirect ExecutionMode = "direct"

	// ModeIsolated runs the payload in a disposable container with no
	// network interface attached.
	ModeIsolated ExecutionMode = "isolated"

	// ModeIsolatedProxied runs the payload in a disposable container whose
	// egress is forced through the local Egress Proxy.
	ModeIsolatedProxied ExecutionMode = "isolated-proxied"

	// ModeIsolatedProxiedPolicied is ModeIsolatedProxied with per-caller
	// policy hooks active on the proxy.
	ModeIsolatedProxiedPolicied ExecutionMode = "isolated-proxied-policied"
)

// IsValid reports whether m is one of the four supported modes.
func (m ExecutionMode) IsValid() bool {
	switch m {
	case ModeDirect, ModeIsolated, ModeIsolatedProxied, ModeIsolatedProxiedPolicied:
		return true
	default:
		return false
	}
}

// UsesProxy reports whether this mode routes the sandbox's egress through
// the Egress Proxy.
func (m ExecutionMode) UsesProxy() bool {
	return m == ModeIsolatedProxied || m == ModeIsolatedProxiedPolicied
}

// UsesPolicy reports whether this mode evaluates per-caller policy on the
// proxy, as opposed to running it in pass-through mode.
func (m ExecutionMode) UsesPolicy() bool {
	return m == ModeIsolatedProxiedPolicied
}

// headerEnvPrefix is the reserved prefix ExecutionRequest.HeaderEnv keys
// must carry; it is also the prefix stripped from phase-2 environments
// during credential sanitization (see the orchestrator's sanitizeEnv).
const headerEnvPrefix = "HDR_"

// FetchSpec describes one phase-1 credentialed data fetch declared by the
// caller's payload.
type FetchSpec struct {
	// Name is the identifier phase-2 code invokes as name() to read the
	// sanitized result.
	Name string

	// Method is the HTTP verb for the fetch. Defaults to GET if empty.
	Method string

	// URL is the fetch target. No placeholder substitution is performed
	// here (substitution is restricted to Headers).
	URL string

	// Headers may contain ${env.NAME} placeholders resolved against the
	// credentialed phase-1 environment.
	Headers map[string]string

	// PassedVariables binds a named field of an earlier fetch's result into
	// this fetch's construction: map key is the placeholder name usable in
	// Headers as ${vars.KEY}, value is "<earlierFetchName>.<field>".
	PassedVariables map[string]string

	// ProjectFields optionally restricts the sanitized body to only these
	// top-level JSON fields. Empty means pass the whole body through.
	ProjectFields []string
}

// ExecutionRequest is the immutable record submitted by the caller. It is
// created once at the boundary and never mutated.
type ExecutionRequest struct {
	// Payload is the script text to execute.
	Payload string

	// Phase1Fetches declares the credentialed data fetches that must run,
	// in order, before the credential-free phase-2 payload.
	Phase1Fetches []FetchSpec

	// HeaderEnv holds caller-supplied environment overrides. Keys must
	// begin with headerEnvPrefix.
	HeaderEnv map[string]string

	// CallerToken is the opaque bearer credential used to resolve policy.
	// Optional; its absence resolves to DEFAULT_POLICY.
	CallerToken string

	// EncryptResponse requests that an outer transformation (out of core
	// scope; see ExecutionResult's consumer) encrypt the response envelope.
	EncryptResponse bool

	// TimeoutMs is the wall-clock budget handed to the Sandbox Runner as its
	// limit; zero selects the Sandbox's 30 s default. No upper ceiling is
	// applied to it.
	TimeoutMs int64
}

// Validate enforces ExecutionRequest's ingest-time invariants, returning a
// KindBadRequest ExecutionError on violation.
func (r ExecutionRequest) Validate() error {
	if r.Payload == "" {
		return &ExecutionError{Kind: KindBadRequest, Op: "validate", Err: errMissingPayload}
	}
	for k := range r.HeaderEnv {
		if !strings.HasPrefix(k, headerEnvPrefix) {
			return &ExecutionError{Kind: KindBadRequest, Op: "validate", Err: errBadHeaderEnvKey}
		}
	}
	seen := make(map[string]bool, len(r.Phase1Fetches))
	for _, f := range r.Phase1Fetches {
		if f.Name == "" || f.URL == "" {
			return &ExecutionError{Kind: KindBadRequest, Op: "validate", Err: errBadFetchSpec}
		}
		if seen[f.Name] {
			return &ExecutionError{Kind: KindBadRequest, Op: "validate", Err: errBadFetchSpec}
		}
		seen[f.Name] = true
	}
	if r.TimeoutMs < 0 {
		return &ExecutionError{Kind: KindBadRequest, Op: "validate", Err: errBadTimeout}
	}
	return nil
}

// PolicyInfo reports which policy governed a completed execution.
type PolicyInfo struct {
	// Source is "default" or "caller".
	Source string

	// Token is the caller token the policy was resolved for, empty when
	// Source is "default" with no token presented.
	Token string
}

// ExecutionData is the success-path payload of ExecutionResult.
type ExecutionData struct {
	Stdout          string
	Stderr          string
	ExitCode        int
	ExecutionTimeMs int64
	ExecutionMode   ExecutionMode
	NetworkLog      []AuditEntry
	PolicyInfo      PolicyInfo
}

// AuditEntry is one record per attempted outbound request made from inside
// a Sandbox. Ordering within a single execution's NetworkLog is the order
// the proxy accepted the requests.
type AuditEntry struct {
	Timestamp       time.Time
	Method          string
	URL             string
	Hostname        string
	RequestHeaders  map[string]string
	StatusCode      int
	ResponseHeaders map[string]string
	Blocked         bool
	Reason          string
	Error           string
}

// ExecutionResult is the normalized response every execution mode funnels
// through via the Unified Result Shaper.
type ExecutionResult struct {
	Success bool
	Data    *ExecutionData
	Error   *ResultError
}

// ResultError is the externally-visible error shape on a failed
// ExecutionResult.
type ResultError struct {
	Message string
	Kind    ErrorKind
}

// The ExitCode* constants are sentinel exit codes reserved for conditions
// other than a plain payload exit, per the Error Handling Design.
const (
	ExitCodeTimeout      = -1
	ExitCodeOutOfMemory  = -2
	ExitCodeInternalFail = -3
)
