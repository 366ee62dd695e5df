package policy

import "strings"

// Decide is the pure function (policy, host, method, path) -> Decision.
// Evaluation order is normative (see the component design for the Policy
// Engine): domain allow, then domain block, then the most specific
// matching apiPathRules entry, walked in declaration order.
func Decide(p Policy, host, method, path string) Decision {
	host = strings.ToLower(host)
	method = strings.ToUpper(method)

	if !anyDomainMatches(p.AllowedDomains, host) {
		return Decision{Allowed: false, Reason: "domain not allowed"}
	}

	if anyDomainMatches(p.BlockedDomains, host) {
		return Decision{Allowed: false, Reason: "domain explicitly blocked"}
	}

	entryHost, rules, found := mostSpecificEntry(p.APIPathRules, host)
	if !found || len(rules) == 0 {
		return Decision{Allowed: true, Reason: "domain allowed, no path rules"}
	}

	for _, rule := range rules {
		if ruleMatches(rule, method, path) {
			reason := "path rule matched"
			if !rule.Allow {
				reason = "path rule denied: method " + method + " against pattern " + rule.PathPattern + " for domain " + entryHost
			}
			return Decision{Allowed: rule.Allow, Reason: reason}
		}
	}

	return Decision{Allowed: true, Reason: "no path rule matched"}
}

// DecideDomainOnly implements the CONNECT protocol's domain-only policy
// check (§4.2): a CONNECT tunnel carries no HTTP method or path, so only
// the allow/block domain steps apply, never apiPathRules.
func DecideDomainOnly(p Policy, host string) Decision {
	host = strings.ToLower(host)

	if !anyDomainMatches(p.AllowedDomains, host) {
		return Decision{Allowed: false, Reason: "domain not allowed"}
	}
	if anyDomainMatches(p.BlockedDomains, host) {
		return Decision{Allowed: false, Reason: "domain explicitly blocked"}
	}
	return Decision{Allowed: true, Reason: "domain allowed"}
}

func ruleMatches(rule PathRule, method, path string) bool {
	if rule.Method != "*" && !strings.EqualFold(rule.Method, method) {
		return false
	}
	return matchPath(rule.PathPattern, path)
}

// matchPath implements the spec's restricted glob: a literal path, a
// leading "*" (any prefix), a trailing "*" (any suffix), or "/*" (any
// path). No regex, no embedded wildcards. Case-sensitive.
func matchPath(pattern, path string) bool {
	if pattern == "/*" {
		return true
	}
	leading := strings.HasPrefix(pattern, "*")
	trailing := strings.HasSuffix(pattern, "*")
	switch {
	case leading && trailing && len(pattern) >= 2:
		mid := pattern[1 : len(pattern)-1]
		return strings.Contains(path, mid)
	case leading:
		suffix := pattern[1:]
		return strings.HasSuffix(path, suffix)
	case trailing:
		prefix := pattern[:len(pattern)-1]
		return strings.HasPrefix(path, prefix)
	default:
		return pattern == path
	}
}

// anyDomainMatches reports whether host matches any of the given domain
// patterns (exact or leading-wildcard).
func anyDomainMatches(patterns []string, host string) bool {
	for _, pat := range patterns {
		if domainMatches(pat, host) {
			return true
		}
	}
	return false
}

// domainMatches implements the spec's domain pattern semantics: exact
// match, or "*.X" matching any single-or-multi-label host ending in ".X"
// (but not X itself). Matching is case-insensitive; callers normalize case.
func domainMatches(pattern, host string) bool {
	pattern = strings.ToLower(pattern)
	if pattern == "*" {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[1:] // ".example.com"
		return strings.HasSuffix(host, suffix) && host != suffix[1:]
	}
	return pattern == host
}

// mostSpecificEntry finds the apiPathRules entry for host: an exact
// host-pattern match beats any wildcard match; among entries of equal
// specificity (all exact, or all wildcard), the first declared wins.
func mostSpecificEntry(rules []DomainRules, host string) (string, []PathRule, bool) {
	var bestPattern string
	var bestRules []PathRule
	bestExact := false
	found := false
	for _, entry := range rules {
		if !domainMatches(entry.DomainPattern, host) {
			continue
		}
		exact := !strings.HasPrefix(entry.DomainPattern, "*")
		if !found {
			bestPattern, bestRules, bestExact, found = entry.DomainPattern, entry.Rules, exact, true
			continue
		}
		if exact && !bestExact {
			bestPattern, bestRules, bestExact = entry.DomainPattern, entry.Rules, true
		}
		// Otherwise the earlier-declared entry of equal specificity stands.
	}
	return bestPattern, bestRules, found
}
