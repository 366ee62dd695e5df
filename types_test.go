package executor

import "testing"

func TestExecutionModeIsValid(t *testing.T) {
	tests := []struct {
		mode  ExecutionMode
		valid bool
	}{
		{ModeDirect, true},
		{ModeIsolated, true},
		{ModeIsolatedProxied, true},
		{ModeIsolatedProxiedPolicied, true},
		{ExecutionMode("unknown"), false},
		{ExecutionMode(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			if got := tt.mode.IsValid(); got != tt.valid {
				t.Errorf("ExecutionMode(%q).IsValid() = %v, want %v", tt.mode, got, tt.valid)
			}
		})
	}
}

func TestExecutionModeUsesProxy(t *testing.T) {
	tests := []struct {
		mode  ExecutionMode
		proxy bool
	}{
		{ModeDirect, false},
		{ModeIsolated, false},
		{ModeIsolatedProxied, true},
		{ModeIsolatedProxiedPolicied, true},
	}

	for _, tt := range tests {
		if got := tt.mode.UsesProxy(); got != tt.proxy {
			t.Errorf("%s.UsesProxy() = %v, want %v", tt.mode, got, tt.proxy)
		}
	}
}

func TestExecutionModeUsesPolicy(t *testing.T) {
	if ModeIsolatedProxied.UsesPolicy() {
		t.Error("isolated-proxied should not use policy")
	}
	if !ModeIsolatedProxiedPolicied.UsesPolicy() {
		t.Error("isolated-proxied-policied should use policy")
	}
}

func TestExecutionRequestValidateRequiresPayload(t *testing.T) {
	req := ExecutionRequest{}
	if err := req.Validate(); err == nil {
		t.Error("Validate() with empty payload should error")
	}
}

func TestExecutionRequestValidateHeaderEnvPrefix(t *testing.T) {
	req := ExecutionRequest{
		Payload:   "print(1)",
		HeaderEnv: map[string]string{"TOKEN": "x"},
	}
	if err := req.Validate(); err == nil {
		t.Error("Validate() should reject HeaderEnv keys without the reserved prefix")
	}

	req.HeaderEnv = map[string]string{"HDR_TOKEN": "x"}
	if err := req.Validate(); err != nil {
		t.Errorf("Validate() with prefixed HeaderEnv key should pass, got %v", err)
	}
}

func TestExecutionRequestValidateFetchSpecs(t *testing.T) {
	req := ExecutionRequest{
		Payload:       "print(1)",
		Phase1Fetches: []FetchSpec{{Name: "", URL: "https://example.com"}},
	}
	if err := req.Validate(); err == nil {
		t.Error("Validate() should reject a fetch spec missing a name")
	}

	req.Phase1Fetches = []FetchSpec{
		{Name: "a", URL: "https://example.com"},
		{Name: "a", URL: "https://example.com/2"},
	}
	if err := req.Validate(); err == nil {
		t.Error("Validate() should reject duplicate fetch names")
	}
}

func TestExecutionRequestValidateOK(t *testing.T) {
	req := ExecutionRequest{
		Payload: "print(1)",
		Phase1Fetches: []FetchSpec{
			{Name: "profile", URL: "https://example.com/profile"},
		},
		HeaderEnv: map[string]string{"HDR_TOKEN": "abc"},
	}
	if err := req.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}
