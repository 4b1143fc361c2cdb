package lendguard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

type (
	// Config holds the decoded client configuration. Embed it in your own
	// app config for JSON, YAML or mapstructure decoding, then call
	// [Config.BuildOptions] to obtain client options.
	Config struct {
		// Retry overrides the budget and backoff of retriable classes.
		// Optional. Keys: "rate_limited", "network_unreachable",
		// "server_fault_5xx".
		Retry map[string]RetryConfig `json:"retry,omitempty" yaml:"retry,omitempty" mapstructure:"retry"`
		// Cache enables the GET response cache. Optional.
		Cache *ResponseCacheConfig `json:"cache,omitempty" yaml:"cache,omitempty" mapstructure:"cache"`
		// Classifier extends the default failure signatures. Optional.
		Classifier *ClassifierConfig `json:"classifier,omitempty" yaml:"classifier,omitempty" mapstructure:"classifier"`
		// KeepAlive configures the backend pinger. Optional.
		KeepAlive *KeepAliveConfig `json:"keepalive,omitempty" yaml:"keepalive,omitempty" mapstructure:"keepalive"`
		// Timeout bounds a single attempt at the transport.
		// Optional, default "30s". Parsed via time.ParseDuration.
		Timeout *string `json:"timeout,omitempty" yaml:"timeout,omitempty" mapstructure:"timeout"`
		// SlowThreshold is the attempt duration logged as slow.
		// Optional, default "1s". "0s" disables the warning.
		SlowThreshold *string `json:"slow_threshold,omitempty" yaml:"slow_threshold,omitempty" mapstructure:"slow_threshold"`
		// MaxDelay caps every backoff delay. Optional.
		MaxDelay *string `json:"max_delay,omitempty" yaml:"max_delay,omitempty" mapstructure:"max_delay"`
		// BaseURL is the backend origin all paths are relative to.
		// Required. Example: "https://api.example.com/api".
		BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
		// LoginPath is the console's login boundary. Optional, default
		// "/login".
		LoginPath string `json:"login_path,omitempty" yaml:"login_path,omitempty" mapstructure:"login_path"`
	}

	// RetryConfig holds the budget of one retriable class.
	RetryConfig struct {
		// Backoff is the strategy name. Optional, default "exponential".
		// One of: "constant", "exponential", "linear", "exponential_jitter".
		Backoff *string `json:"backoff,omitempty" yaml:"backoff,omitempty" mapstructure:"backoff"`
		// BaseDelay is the strategy base. Optional, default "1s".
		BaseDelay *string `json:"base_delay,omitempty" yaml:"base_delay,omitempty" mapstructure:"base_delay"`
		// MaxRetries is the retry budget. Required.
		MaxRetries *int `json:"max_retries,omitempty" yaml:"max_retries,omitempty" mapstructure:"max_retries"`
	}

	// ResponseCacheConfig configures the GET response cache.
	ResponseCacheConfig struct {
		// TTL is parsed via time.ParseDuration. Optional, default "5m".
		TTL *string `json:"ttl,omitempty" yaml:"ttl,omitempty" mapstructure:"ttl"`
		// MaxSize is the entry bound. Optional, default 100.
		MaxSize *int `json:"max_size,omitempty" yaml:"max_size,omitempty" mapstructure:"max_size"`
	}

	// ClassifierConfig lists extra markers and signatures appended to the
	// defaults.
	ClassifierConfig struct {
		AuthMarkers            []string `json:"auth_markers,omitempty" yaml:"auth_markers,omitempty" mapstructure:"auth_markers"`
		ConnectivitySignatures []string `json:"connectivity_signatures,omitempty" yaml:"connectivity_signatures,omitempty" mapstructure:"connectivity_signatures"`
		DriverSignatures       []string `json:"driver_signatures,omitempty" yaml:"driver_signatures,omitempty" mapstructure:"driver_signatures"`
	}

	// KeepAliveConfig configures [KeepAlive]. Durations are parsed via
	// time.ParseDuration.
	KeepAliveConfig struct {
		Interval         *string `json:"interval,omitempty" yaml:"interval,omitempty" mapstructure:"interval"`
		MinInterval      *string `json:"min_interval,omitempty" yaml:"min_interval,omitempty" mapstructure:"min_interval"`
		RateLimitBackoff *string `json:"rate_limit_backoff,omitempty" yaml:"rate_limit_backoff,omitempty" mapstructure:"rate_limit_backoff"`
		Timeout          *string `json:"timeout,omitempty" yaml:"timeout,omitempty" mapstructure:"timeout"`
	}
)

// DefaultTimeout bounds a single attempt at the transport.
const DefaultTimeout = 30 * time.Second

// LoadConfig reads a configuration file. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON. The result is validated eagerly
// so errors surface at load time.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lendguard: read config: %w", err)
	}

	var cfg Config

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}

	if err != nil {
		return nil, fmt.Errorf("lendguard: parse config: %w", err)
	}

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("lendguard: %w", err)
	}

	return &cfg, nil
}

// Validate checks every field without building anything.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("base_url is required")
	}

	if _, err := c.TransportTimeout(); err != nil {
		return err
	}

	if _, err := c.BuildOptions(); err != nil {
		return err
	}

	if _, err := c.KeepAliveOptions(); err != nil {
		return err
	}

	return nil
}

// TransportTimeout returns the per-attempt timeout, [DefaultTimeout] when
// unset.
func (c *Config) TransportTimeout() (time.Duration, error) {
	return parseDurationOr(c.Timeout, DefaultTimeout, "timeout")
}

// CacheConfig returns the response cache settings and whether caching is
// enabled.
func (c *Config) CacheConfig() (CacheConfig, bool, error) {
	if c.Cache == nil {
		return CacheConfig{}, false, nil
	}

	cc := DefaultCacheConfig()

	ttl, err := parseDurationOr(c.Cache.TTL, cc.TTL, "cache.ttl")
	if err != nil {
		return CacheConfig{}, false, err
	}

	cc.TTL = ttl
	if c.Cache.MaxSize != nil {
		cc.MaxSize = *c.Cache.MaxSize
	}

	return cc, true, nil
}

// BuildOptions converts the policy-related fields into client options. The
// transport, store, cache and navigator are wired by the caller.
func (c *Config) BuildOptions() ([]Option, error) {
	var opts []Option

	if c.LoginPath != "" {
		opts = append(opts, WithLoginPath(c.LoginPath))
	}

	slow, err := parseDurationOr(c.SlowThreshold, DefaultSlowThreshold, "slow_threshold")
	if err != nil {
		return nil, err
	}

	opts = append(opts, WithSlowThreshold(slow))

	if c.Classifier != nil {
		cl := DefaultClassifier().with(
			c.Classifier.AuthMarkers,
			c.Classifier.ConnectivitySignatures,
			c.Classifier.DriverSignatures,
		)
		opts = append(opts, WithClassifier(cl))
	}

	policyOpts, err := c.retryOptions()
	if err != nil {
		return nil, err
	}

	if len(policyOpts) > 0 {
		opts = append(opts, WithRetryPolicy(NewRetryPolicy(policyOpts...)))
	}

	return opts, nil
}

func (c *Config) retryOptions() ([]RetryPolicyOption, error) {
	var opts []RetryPolicyOption

	if c.MaxDelay != nil {
		d, err := time.ParseDuration(*c.MaxDelay)
		if err != nil {
			return nil, fmt.Errorf("max_delay: %w", err)
		}

		opts = append(opts, WithMaxDelay(d))
	}

	for name, rc := range c.Retry {
		class, err := parseRetriableClass(name)
		if err != nil {
			return nil, fmt.Errorf("retry: %w", err)
		}

		if rc.MaxRetries == nil {
			return nil, fmt.Errorf("retry.%s.max_retries is required", name)
		}

		if *rc.MaxRetries < 0 {
			return nil, fmt.Errorf("retry.%s.max_retries must not be negative", name)
		}

		base, err := parseDurationOr(rc.BaseDelay, time.Second, "retry."+name+".base_delay")
		if err != nil {
			return nil, err
		}

		strategyName := "exponential"
		if rc.Backoff != nil {
			strategyName = *rc.Backoff
		}

		strategy, err := ParseBackoff(strategyName, base)
		if err != nil {
			return nil, fmt.Errorf("retry.%s: %w", name, err)
		}

		opts = append(opts, WithRule(class, *rc.MaxRetries, strategy))
	}

	return opts, nil
}

// KeepAliveOptions converts the keepalive section into pinger options.
func (c *Config) KeepAliveOptions() ([]KeepAliveOption, error) {
	if c.KeepAlive == nil {
		return nil, nil
	}

	var opts []KeepAliveOption

	fields := []struct {
		val  *string
		name string
		set  func(time.Duration) KeepAliveOption
	}{
		{c.KeepAlive.Interval, "keepalive.interval", PingInterval},
		{c.KeepAlive.MinInterval, "keepalive.min_interval", MinPingInterval},
		{c.KeepAlive.RateLimitBackoff, "keepalive.rate_limit_backoff", RateLimitBackoff},
		{c.KeepAlive.Timeout, "keepalive.timeout", PingTimeout},
	}

	for _, f := range fields {
		if f.val == nil {
			continue
		}

		d, err := time.ParseDuration(*f.val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}

		opts = append(opts, f.set(d))
	}

	return opts, nil
}

func parseRetriableClass(name string) (Classification, error) {
	for _, c := range []Classification{RateLimited, NetworkUnreachable, ServerFault5xx} {
		if c.String() == name {
			return c, nil
		}
	}

	return Unclassified, fmt.Errorf("unknown retriable class %q", name)
}

func parseDurationOr(s *string, def time.Duration, field string) (time.Duration, error) {
	if s == nil {
		return def, nil
	}

	d, err := time.ParseDuration(*s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}

	return d, nil
}
