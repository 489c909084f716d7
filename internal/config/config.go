// Package config loads sagaflow settings from an optional YAML file,
// SAGAFLOW_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable override, e.g.
// SAGAFLOW_DEADLETTER_KIND.
const EnvPrefix = "SAGAFLOW"

// Dead-letter sink kinds.
const (
	SinkMemory = "memory"
	SinkFile   = "file"
	SinkRedis  = "redis"
)

type Config struct {
	Log        Log        `mapstructure:"log"`
	Saga       Saga       `mapstructure:"saga"`
	Simulation Simulation `mapstructure:"simulation"`
	DeadLetter DeadLetter `mapstructure:"deadletter"`
	Metrics    Metrics    `mapstructure:"metrics"`
}

type Log struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type Saga struct {
	Name  string   `mapstructure:"name"`
	Steps []string `mapstructure:"steps"`
}

type Simulation struct {
	Latency          time.Duration `mapstructure:"latency"`
	FailForward      []string      `mapstructure:"fail_forward"`
	FailCompensation []string      `mapstructure:"fail_compensation"`
}

type DeadLetter struct {
	Kind  string `mapstructure:"kind"`
	Dir   string `mapstructure:"dir"`
	Redis Redis  `mapstructure:"redis"`
}

type Redis struct {
	Addr string `mapstructure:"addr"`
	DB   int    `mapstructure:"db"`
	Key  string `mapstructure:"key"`
}

type Metrics struct {
	// Addr serves /metrics when non-empty.
	Addr string `mapstructure:"addr"`
}

// New returns a viper instance with defaults and environment binding set
// up. Callers may bind flags on it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("saga.name", "order_checkout")
	v.SetDefault("saga.steps", []string{
		"create_order",
		"reserve_inventory",
		"deduct_payment",
		"create_shipment",
		"send_notification",
	})

	v.SetDefault("simulation.latency", 0)
	v.SetDefault("simulation.fail_forward", []string{})
	v.SetDefault("simulation.fail_compensation", []string{})

	v.SetDefault("deadletter.kind", SinkMemory)
	v.SetDefault("deadletter.dir", "deadletters")
	v.SetDefault("deadletter.redis.addr", "localhost:6379")
	v.SetDefault("deadletter.redis.db", 0)
	v.SetDefault("deadletter.redis.key", "sagaflow:deadletters")

	v.SetDefault("metrics.addr", "")
}

// Load reads path (if non-empty) into v and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values Load cannot check by type alone.
func (c *Config) Validate() error {
	var errs []error

	if c.Saga.Name == "" {
		errs = append(errs, errors.New("saga.name must not be empty"))
	}
	if len(c.Saga.Steps) == 0 {
		errs = append(errs, errors.New("saga.steps must list at least one step"))
	}
	if c.Simulation.Latency < 0 {
		errs = append(errs, fmt.Errorf("simulation.latency must not be negative, got %s", c.Simulation.Latency))
	}

	switch c.DeadLetter.Kind {
	case SinkMemory:
	case SinkFile:
		if c.DeadLetter.Dir == "" {
			errs = append(errs, errors.New("deadletter.dir is required for the file sink"))
		}
	case SinkRedis:
		if c.DeadLetter.Redis.Addr == "" {
			errs = append(errs, errors.New("deadletter.redis.addr is required for the redis sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown deadletter.kind %q (want memory, file or redis)", c.DeadLetter.Kind))
	}

	return errors.Join(errs...)
}
