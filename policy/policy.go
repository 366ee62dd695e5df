// Package policy implements the pure policy-decision engine and the
// fetch/cache layer that resolves a caller's bearer token to an effective
// Policy.
package policy

import "time"

// DomainRules binds a domain pattern to its ordered path-rule list. The
// position of a DomainRules entry in Policy.APIPathRules is its declaration
// order, used to break ties between equally specific domain patterns.
type DomainRules struct {
	DomainPattern string
	Rules         []PathRule
}

// PathRule is one ordered rule in a Policy's per-domain apiPathRules list.
type PathRule struct {
	// Method is an HTTP verb or "*" for any.
	Method string

	// PathPattern uses leading/trailing "*" glob semantics only.
	PathPattern string

	Allow bool
}

// Policy is the effective access policy for one caller.
type Policy struct {
	// AllowedDomains is a set of domain patterns (exact, or a leading
	// wildcard "*.example.com"). An empty set denies all.
	AllowedDomains []string

	// BlockedDomains is evaluated after AllowedDomains and overrides to deny.
	BlockedDomains []string

	// APIPathRules maps a domain pattern to an ordered rule list. Declared
	// as an ordered slice, not a plain map, so that "first declared wins"
	// is well-defined when two domain-pattern entries are equally specific
	// (see Decide's tie-break in engine.go).
	APIPathRules []DomainRules

	// AllowedPackages, AllowedBinaries are advisory lists enforced at the
	// image level by the Sandbox Runner, not by this engine.
	AllowedPackages []string
	AllowedBinaries []string
}

// Default is the process-wide DEFAULT_POLICY: deny-all, used whenever
// policy resolution fails or no token is presented. It is fixed: the
// policy.default_mode setting does not change it.
var Default = Policy{
	AllowedDomains: nil,
}

// Permissive is an allow-all policy. The orchestrator enforces it on the
// proxy for "isolated-proxied" executions, which carry no per-caller policy;
// no warning is logged when it is used.
var Permissive = Policy{
	AllowedDomains: []string{"*"},
}

// CacheEntry is one entry in the Policy Fetcher's cache.
type CacheEntry struct {
	Token     string
	Policy    Policy
	FetchedAt time.Time
	TTL       time.Duration
}

// Expired reports whether this entry is past its TTL as of now.
func (e CacheEntry) Expired(now time.Time) bool {
	return now.Sub(e.FetchedAt) >= e.TTL
}

// Decision is the outcome of evaluating one request against a Policy.
type Decision struct {
	Allowed bool
	Reason  string
}
