package policy

import "testing"

func TestDecideDomainEmptyDeniesAll(t *testing.T) {
	p := Policy{}
	d := Decide(p, "api.example.com", "GET", "/")
	if d.Allowed {
		t.Error("empty allowedDomains should deny all")
	}
}

func TestDecideWildcardSubsumption(t *testing.T) {
	p := Policy{AllowedDomains: []string{"*.x.y"}}

	cases := []struct {
		host string
		want bool
	}{
		{"a.x.y", true},
		{"a.b.x.y", true},
		{"x.y", false},
		{"notx.y", false},
	}
	for _, c := range cases {
		d := Decide(p, c.host, "GET", "/")
		if d.Allowed != c.want {
			t.Errorf("Decide(host=%q) = %v, want %v (%s)", c.host, d.Allowed, c.want, d.Reason)
		}
	}
}

func TestDecideBlockedDomainOverridesAllow(t *testing.T) {
	p := Policy{
		AllowedDomains: []string{"*.example.com"},
		BlockedDomains: []string{"bad.example.com"},
	}
	d := Decide(p, "bad.example.com", "GET", "/")
	if d.Allowed {
		t.Error("blocked domain should override allow")
	}

	d = Decide(p, "good.example.com", "GET", "/")
	if !d.Allowed {
		t.Error("non-blocked subdomain should remain allowed")
	}
}

func TestDecideNoPathRulesDefaultsAllow(t *testing.T) {
	p := Policy{AllowedDomains: []string{"api.stripe.com"}}
	d := Decide(p, "api.stripe.com", "GET", "/v1/products")
	if !d.Allowed {
		t.Errorf("domain allowed with no path rules should default allow, reason=%q", d.Reason)
	}
}

func TestDecideMethodRestriction(t *testing.T) {
	p := Policy{
		AllowedDomains: []string{"*.okta.com"},
		APIPathRules: []DomainRules{
			{DomainPattern: "*.okta.com", Rules: []PathRule{
				{Method: "GET", PathPattern: "/*", Allow: true},
				{Method: "DELETE", PathPattern: "/*", Allow: false},
			}},
		},
	}

	d := Decide(p, "dev-123.okta.com", "DELETE", "/api/v1/users/123")
	if d.Allowed {
		t.Error("DELETE should be blocked by the explicit deny rule")
	}

	d = Decide(p, "dev-123.okta.com", "GET", "/api/v1/users/123")
	if !d.Allowed {
		t.Error("GET should be allowed")
	}
}

func TestDecideFirstMatchWins(t *testing.T) {
	p := Policy{
		AllowedDomains: []string{"example.com"},
		APIPathRules: []DomainRules{
			{DomainPattern: "example.com", Rules: []PathRule{
				{Method: "*", PathPattern: "/admin*", Allow: false},
				{Method: "*", PathPattern: "/admin*", Allow: true},
			}},
		},
	}
	d := Decide(p, "example.com", "GET", "/admin/x")
	if d.Allowed {
		t.Error("first matching rule should win, not the later contradicting rule")
	}
}

func TestDecideExactBeatsWildcardHost(t *testing.T) {
	p := Policy{
		AllowedDomains: []string{"*.example.com"},
		APIPathRules: []DomainRules{
			{DomainPattern: "*.example.com", Rules: []PathRule{{Method: "*", PathPattern: "/*", Allow: false}}},
			{DomainPattern: "api.example.com", Rules: []PathRule{{Method: "*", PathPattern: "/*", Allow: true}}},
		},
	}
	d := Decide(p, "api.example.com", "GET", "/v1")
	if !d.Allowed {
		t.Error("exact host entry should beat the wildcard entry regardless of declaration order")
	}
}

func TestDecideEmptyRuleListEquivalentToNoEntry(t *testing.T) {
	p := Policy{
		AllowedDomains: []string{"example.com"},
		APIPathRules: []DomainRules{
			{DomainPattern: "example.com", Rules: nil},
		},
	}
	d := Decide(p, "example.com", "GET", "/anything")
	if !d.Allowed {
		t.Error("empty rule list should behave as if no entry existed")
	}
}

func TestDecideHostCaseInsensitiveMethodUppercased(t *testing.T) {
	p := Policy{
		AllowedDomains: []string{"API.Example.com"},
		APIPathRules: []DomainRules{
			{DomainPattern: "api.example.com", Rules: []PathRule{{Method: "GET", PathPattern: "/*", Allow: true}}},
		},
	}
	d := Decide(p, "API.EXAMPLE.COM", "get", "/x")
	if !d.Allowed {
		t.Errorf("host/method normalization should allow this request, reason=%q", d.Reason)
	}
}

func TestDecidePathPatternSemantics(t *testing.T) {
	cases := []struct {
		pattern, path string
		want          bool
	}{
		{"/*", "/anything", true},
		{"/v1/*", "/v1/products", true},
		{"/v1/*", "/v2/products", false},
		{"*/users", "/api/v1/users", true},
		{"*/users", "/api/v1/users/1", false},
		{"/exact", "/exact", true},
		{"/exact", "/exact/", false},
	}
	for _, c := range cases {
		if got := matchPath(c.pattern, c.path); got != c.want {
			t.Errorf("matchPath(%q, %q) = %v, want %v", c.pattern, c.path, got, c.want)
		}
	}
}

func TestDecideDomainOnlyIgnoresPathRules(t *testing.T) {
	p := Policy{
		AllowedDomains: []string{"api.example.com"},
		APIPathRules: []DomainRules{
			{DomainPattern: "api.example.com", Rules: []PathRule{{Method: "*", PathPattern: "/*", Allow: false}}},
		},
	}
	d := DecideDomainOnly(p, "api.example.com")
	if !d.Allowed {
		t.Error("DecideDomainOnly must not consult apiPathRules, only domain allow/block")
	}
}

func TestDecideDomainOnlyBlockedDomain(t *testing.T) {
	p := Policy{AllowedDomains: []string{"*.example.com"}, BlockedDomains: []string{"evil.example.com"}}
	if DecideDomainOnly(p, "evil.example.com").Allowed {
		t.Error("blocked domain must be denied even in domain-only mode")
	}
}

func TestDecideIdempotent(t *testing.T) {
	p := Policy{AllowedDomains: []string{"example.com"}}
	d1 := Decide(p, "example.com", "GET", "/")
	d2 := Decide(p, "example.com", "GET", "/")
	if d1 != d2 {
		t.Error("Decide is a pure function; repeated calls with identical input must agree")
	}
}
