// Package config loads the adapter's runtime configuration from an
// optional YAML file plus environment variables, following the same
// viper-based pattern across all ambient and domain settings.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every environment variable recognized in §6, plus the
// ambient observability/HTTP surface settings.
type Config struct {
	CacheType             string        `mapstructure:"cache_type"`
	CacheMaxSubscriptions int           `mapstructure:"cache_max_subscriptions"`
	CacheMaxAge           time.Duration `mapstructure:"cache_max_age"`

	WSSubscriptionTTL           time.Duration `mapstructure:"ws_subscription_ttl"`
	WSSubscriptionUnresponsiveTTL time.Duration `mapstructure:"ws_subscription_unresponsive_ttl"`

	BackgroundExecuteMSWS   int64 `mapstructure:"background_execute_ms_ws"`
	BackgroundExecuteMSHTTP int64 `mapstructure:"background_execute_ms_http"`

	MaxPayloadSizeLimit int64         `mapstructure:"max_payload_size_limit"`
	APITimeout          time.Duration `mapstructure:"api_timeout"`

	MetricsPort int    `mapstructure:"metrics_port"`
	EAHost      string `mapstructure:"ea_host"`
	BaseURL     string `mapstructure:"base_url"`

	ShutdownGraceMS int64 `mapstructure:"shutdown_grace_ms"`

	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`

	RedisAddress  string `mapstructure:"redis_address"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDatabase int    `mapstructure:"redis_database"`

	Logging   LoggingConfig   `mapstructure:"logging"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	JWTSecret string          `mapstructure:"jwt_secret"`
}

// LoggingConfig configures pkg/observability's StandardLogger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// TracingConfig configures pkg/observability's OTel tracer provider.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Endpoint    string `mapstructure:"endpoint"`
}

// Load reads configuration from EA_CONFIG_FILE (if set) and environment
// variables, binding each setting both as EA_<NAME> and as the bare name
// spec.md §6 uses (CACHE_TYPE, WS_SUBSCRIPTION_TTL, ...), then validates
// the bounds §6 specifies.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile := os.Getenv("EA_CONFIG_FILE"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: reading config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("EA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindBareEnvNames(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindBareEnvNames lets every spec.md §6 variable be set without the EA_
// prefix too, matching how external adapters in the wild are configured
// (CACHE_TYPE, not EA_CACHE_TYPE).
func bindBareEnvNames(v *viper.Viper) {
	pairs := map[string]string{
		"cache_type":                        "CACHE_TYPE",
		"cache_max_subscriptions":           "CACHE_MAX_SUBSCRIPTIONS",
		"cache_max_age":                     "CACHE_MAX_AGE",
		"ws_subscription_ttl":               "WS_SUBSCRIPTION_TTL",
		"ws_subscription_unresponsive_ttl":  "WS_SUBSCRIPTION_UNRESPONSIVE_TTL",
		"background_execute_ms_ws":          "BACKGROUND_EXECUTE_MS_WS",
		"background_execute_ms_http":        "BACKGROUND_EXECUTE_MS_HTTP",
		"max_payload_size_limit":            "MAX_PAYLOAD_SIZE_LIMIT",
		"api_timeout":                       "API_TIMEOUT",
		"metrics_port":                      "METRICS_PORT",
		"ea_host":                           "EA_HOST",
		"base_url":                          "BASE_URL",
	}
	for key, env := range pairs {
		_ = v.BindEnv(key, env)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache_type", "local")
	v.SetDefault("cache_max_subscriptions", 1000)
	v.SetDefault("cache_max_age", 30*time.Second)

	v.SetDefault("ws_subscription_ttl", 5*time.Minute)
	v.SetDefault("ws_subscription_unresponsive_ttl", 2*time.Minute)

	v.SetDefault("background_execute_ms_ws", 200)
	v.SetDefault("background_execute_ms_http", 1000)

	v.SetDefault("max_payload_size_limit", 1<<20) // 1 MiB
	v.SetDefault("api_timeout", 30*time.Second)

	v.SetDefault("metrics_port", 9090)
	v.SetDefault("ea_host", "0.0.0.0")
	v.SetDefault("base_url", "")

	v.SetDefault("shutdown_grace_ms", 5000)

	v.SetDefault("rate_limit_rps", 0.0)
	v.SetDefault("rate_limit_burst", 0)

	v.SetDefault("redis_address", "localhost:6379")
	v.SetDefault("redis_database", 0)

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("tracing.enabled", false)
}

// validate enforces §6's bounds: port range, URL parse, valid host.
// Every violation is collected and returned together as one aggregated
// error, rather than stopping at the first failing check, so a
// misconfigured deployment sees its full set of problems in one run.
func validate(cfg *Config) error {
	var errs []error

	if cfg.MetricsPort < 1 || cfg.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("config: METRICS_PORT %d out of range [1, 65535]", cfg.MetricsPort))
	}
	if cfg.CacheType != "local" && cfg.CacheType != "redis" && cfg.CacheType != "multilevel" {
		errs = append(errs, fmt.Errorf("config: CACHE_TYPE %q must be one of local, redis, multilevel", cfg.CacheType))
	}
	if cfg.CacheMaxSubscriptions <= 0 {
		errs = append(errs, fmt.Errorf("config: CACHE_MAX_SUBSCRIPTIONS must be positive, got %d", cfg.CacheMaxSubscriptions))
	}
	if cfg.BaseURL != "" {
		if _, err := url.Parse(cfg.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("config: BASE_URL does not parse: %w", err))
		}
	}
	if err := validateHost(cfg.EAHost); err != nil {
		errs = append(errs, fmt.Errorf("config: EA_HOST invalid: %w", err))
	}

	return errors.Join(errs...)
}

// validateHost accepts any valid IP literal or DNS name, including "0.0.0.0".
func validateHost(host string) error {
	if host == "" {
		return fmt.Errorf("host must not be empty")
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	if _, err := net.LookupHost(host); err == nil {
		return nil
	}
	// LookupHost requires network access; fall back to a syntactic check
	// so tests and offline startups aren't forced to resolve DNS.
	for _, label := range strings.Split(host, ".") {
		if label == "" {
			return fmt.Errorf("invalid DNS name %q", host)
		}
	}
	return nil
}
