package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type WorkersConfig struct {
	Count         int    `mapstructure:"count"`
	Respawn       bool   `mapstructure:"respawn"`
	WatchInterval string `mapstructure:"watch_interval"`
	ReplyTimeout  string `mapstructure:"reply_timeout"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CircuitBreakerConfig struct {
	Threshold    int    `mapstructure:"threshold"`
	ResetTimeout string `mapstructure:"reset_timeout"`
}

type UpstreamConfig struct {
	ID      string `mapstructure:"id"`
	Address string `mapstructure:"address"`
}

type RuleConfig struct {
	PathPrefix  string   `mapstructure:"path_prefix"`
	UpstreamIDs []string `mapstructure:"upstream_ids"`
}

type HeaderConfig struct {
	Key   string `mapstructure:"key"`
	Value string `mapstructure:"value"`
}

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Workers        WorkersConfig        `mapstructure:"workers"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Headers        []HeaderConfig       `mapstructure:"headers"`
	Upstreams      []UpstreamConfig     `mapstructure:"upstreams"`
	Rules          []RuleConfig         `mapstructure:"rules"`
}

func Load() (*Config, error) {
	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("workers.count", 4)
	viper.SetDefault("workers.respawn", false)
	viper.SetDefault("workers.watch_interval", "2s")
	viper.SetDefault("workers.reply_timeout", "10s")
	viper.SetDefault("logging.level", LogLevelInfo)
	viper.SetDefault("rate_limit.enabled", false)
	viper.SetDefault("rate_limit.requests_per_second", 100)
	viper.SetDefault("rate_limit.burst", 200)
	viper.SetDefault("circuit_breaker.threshold", 5)
	viper.SetDefault("circuit_breaker.reset_timeout", "30s")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Error("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Workers,
			validation.Required,
			validation.By(func(value interface{}) error {
				wc, ok := value.(WorkersConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a WorkersConfig")
				}
				return validation.ValidateStruct(&wc,
					validation.Field(&wc.Count,
						validation.Required,
						validation.Min(1),
					),
					validation.Field(&wc.WatchInterval,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&wc.ReplyTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.CircuitBreaker,
			validation.Required,
			validation.By(func(value interface{}) error {
				cb, ok := value.(CircuitBreakerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a CircuitBreakerConfig")
				}
				return validation.ValidateStruct(&cb,
					validation.Field(&cb.Threshold,
						validation.Required,
						validation.Min(1),
					),
					validation.Field(&cb.ResetTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Upstreams,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateUpstreamConfig)),
		),
		validation.Field(&c.Rules,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateRuleConfig)),
		),
	); err != nil {
		return err
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return validation.NewError("validation_invalid_rate", "requests_per_second must be positive")
		}
		if c.RateLimit.Burst < 1 {
			return validation.NewError("validation_invalid_burst", "burst must be at least 1")
		}
	}

	return c.validateReferences()
}

// validateReferences checks the cross-cutting constraints ozzo field rules
// cannot express: unique upstream IDs and rules that only reference defined
// upstreams. Catching dangling references here aborts startup instead of
// surfacing them per request.
func (c *Config) validateReferences() error {
	ids := make(map[string]bool, len(c.Upstreams))
	for _, u := range c.Upstreams {
		if ids[u.ID] {
			return fmt.Errorf("duplicate upstream id %q", u.ID)
		}
		ids[u.ID] = true
	}

	for _, r := range c.Rules {
		for _, id := range r.UpstreamIDs {
			if !ids[id] {
				return fmt.Errorf("rule %q references unknown upstream id %q", r.PathPrefix, id)
			}
		}
	}

	return nil
}

// WatchInterval returns the parsed worker watch interval. Validate has
// already checked the string parses.
func (c *Config) WatchInterval() time.Duration {
	d, _ := time.ParseDuration(c.Workers.WatchInterval)
	return d
}

// ReplyTimeout returns the parsed dispatcher reply timeout.
func (c *Config) ReplyTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Workers.ReplyTimeout)
	return d
}

// BreakerResetTimeout returns the parsed circuit breaker reset timeout.
func (c *Config) BreakerResetTimeout() time.Duration {
	d, _ := time.ParseDuration(c.CircuitBreaker.ResetTimeout)
	return d
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}

func validateUpstreamConfig(value interface{}) error {
	upstream, ok := value.(UpstreamConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be an UpstreamConfig")
	}

	if upstream.ID == "" {
		return validation.NewError("validation_empty_id", "upstream id cannot be empty")
	}

	if upstream.Address == "" {
		return validation.NewError("validation_empty_address", "upstream address cannot be empty")
	}

	parsedURL, err := url.Parse(upstream.Address)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}

func validateRuleConfig(value interface{}) error {
	rule, ok := value.(RuleConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a RuleConfig")
	}

	if rule.PathPrefix == "" {
		return validation.NewError("validation_empty_prefix", "path prefix cannot be empty")
	}

	if !strings.HasPrefix(rule.PathPrefix, "/") {
		return validation.NewError("validation_invalid_prefix", "path prefix must start with /")
	}

	if len(rule.UpstreamIDs) == 0 {
		return validation.NewError("validation_empty_upstreams", "rule must reference at least one upstream id")
	}

	return nil
}
