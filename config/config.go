// Package config loads the executor's configuration surface (spec.md §6)
// from environment variables via viper, with an optional YAML file overlay.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	executor "github.com/avb-is-me/codespace-executor"
)

// Config holds the full externally-tunable configuration surface.
type Config struct {
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Proxy   ProxyConfig   `mapstructure:"proxy"`
	Policy  PolicyConfig  `mapstructure:"policy"`
	Server  ServerConfig  `mapstructure:"server"`
}

// SandboxConfig configures the Sandbox Runner.
type SandboxConfig struct {
	ExecutionMode executor.ExecutionMode `mapstructure:"execution_mode"`
	Image         string                 `mapstructure:"image"`
	MemoryBytes   int64                  `mapstructure:"memory_bytes"`
	CPUShare      int64                  `mapstructure:"cpu_share"`
	WallClockMs   int64                  `mapstructure:"wallclock_ms"`
	WorkRoot      string                 `mapstructure:"work_root"`
}

// ProxyConfig configures the Egress Proxy.
type ProxyConfig struct {
	Port                    int    `mapstructure:"port"`
	FilterSensitiveHeaders  bool   `mapstructure:"filter_sensitive_headers"`
	CallerTokenHeaderPrefix string `mapstructure:"caller_token_header_prefix"`
}

// PolicyConfig configures the Policy Fetcher and the ENABLE_POLICY /
// DEFAULT_POLICY_MODE gates described in spec.md §3 and §6. DefaultMode is
// only checked by Validate; policy.Default stays deny-all whatever its value.
type PolicyConfig struct {
	ServiceURL  string `mapstructure:"service_url"`
	CacheTTLMs  int64  `mapstructure:"cache_ttl_ms"`
	Enabled     bool   `mapstructure:"enabled"`
	DefaultMode string `mapstructure:"default_mode"`
	RedisAddr   string `mapstructure:"redis_addr"`
}

// ServerConfig configures the manual-testing HTTP surface in
// cmd/executor-server.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// CacheTTL returns Policy.CacheTTLMs as a time.Duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Policy.CacheTTLMs) * time.Millisecond
}

// Load reads configuration from an optional file and from EXEC_-prefixed
// environment variables, applying spec.md §6's documented defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("sandbox.execution_mode", string(executor.ModeIsolated))
	v.SetDefault("sandbox.memory_bytes", 512*1024*1024)
	v.SetDefault("sandbox.cpu_share", 1)
	v.SetDefault("sandbox.wallclock_ms", 30000)
	v.SetDefault("sandbox.work_root", "/var/lib/codespace-executor/sandboxes")

	v.SetDefault("proxy.port", 0)
	v.SetDefault("proxy.filter_sensitive_headers", true)
	v.SetDefault("proxy.caller_token_header_prefix", "HDR_")

	v.SetDefault("policy.cache_ttl_ms", 60000)
	v.SetDefault("policy.enabled", true)
	v.SetDefault("policy.default_mode", "deny-all")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/codespace-executor")
	}

	v.SetEnvPrefix("EXEC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate enforces the production-safety invariant on DEFAULT_POLICY_MODE
// and ENABLE_POLICY (spec.md §3's DEFAULT_POLICY invariant): callers should
// log a WARN via the returned warnings when either setting weakens
// enforcement, rather than fail startup outright — these are operator
// opt-ins, not bad requests.
func (c Config) Validate() []string {
	var warnings []string
	if !c.Policy.Enabled {
		warnings = append(warnings, "policy.enabled=false: isolated-proxied-policied executions enforce DEFAULT_POLICY regardless of caller token")
	}
	if strings.EqualFold(c.Policy.DefaultMode, "permissive") {
		warnings = append(warnings, "policy.default_mode=permissive is not applied: DEFAULT_POLICY remains deny-all")
	}
	if !c.Sandbox.ExecutionMode.IsValid() {
		warnings = append(warnings, "sandbox.execution_mode is not one of the four supported modes")
	}
	return warnings
}
