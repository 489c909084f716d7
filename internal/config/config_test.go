package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Development)
	assert.Equal(t, "order_checkout", cfg.Saga.Name)
	assert.Equal(t, []string{
		"create_order",
		"reserve_inventory",
		"deduct_payment",
		"create_shipment",
		"send_notification",
	}, cfg.Saga.Steps)
	assert.Zero(t, cfg.Simulation.Latency)
	assert.Empty(t, cfg.Simulation.FailForward)
	assert.Equal(t, SinkMemory, cfg.DeadLetter.Kind)
	assert.Equal(t, "localhost:6379", cfg.DeadLetter.Redis.Addr)
	assert.Equal(t, "sagaflow:deadletters", cfg.DeadLetter.Redis.Key)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sagaflow.yaml")
	content := `log:
  level: debug
  development: true
saga:
  name: short_checkout
  steps:
    - create_order
    - deduct_payment
simulation:
  latency: 25ms
  fail_forward:
    - deduct_payment
  fail_compensation:
    - create_order
deadletter:
  kind: file
  dir: /tmp/letters
metrics:
  addr: ":9090"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, "short_checkout", cfg.Saga.Name)
	assert.Equal(t, []string{"create_order", "deduct_payment"}, cfg.Saga.Steps)
	assert.Equal(t, 25*time.Millisecond, cfg.Simulation.Latency)
	assert.Equal(t, []string{"deduct_payment"}, cfg.Simulation.FailForward)
	assert.Equal(t, []string{"create_order"}, cfg.Simulation.FailCompensation)
	assert.Equal(t, SinkFile, cfg.DeadLetter.Kind)
	assert.Equal(t, "/tmp/letters", cfg.DeadLetter.Dir)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sagaflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("deadletter:\n  kind: file\n"), 0o644))

	t.Setenv("SAGAFLOW_DEADLETTER_KIND", "redis")
	t.Setenv("SAGAFLOW_DEADLETTER_REDIS_DB", "3")
	t.Setenv("SAGAFLOW_SIMULATION_LATENCY", "1s")

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, SinkRedis, cfg.DeadLetter.Kind)
	assert.Equal(t, 3, cfg.DeadLetter.Redis.DB)
	assert.Equal(t, time.Second, cfg.Simulation.Latency)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(New(), "")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "empty saga name",
			mutate:  func(c *Config) { c.Saga.Name = "" },
			wantErr: "saga.name must not be empty",
		},
		{
			name:    "no steps",
			mutate:  func(c *Config) { c.Saga.Steps = nil },
			wantErr: "saga.steps must list at least one step",
		},
		{
			name:    "negative latency",
			mutate:  func(c *Config) { c.Simulation.Latency = -time.Millisecond },
			wantErr: "simulation.latency must not be negative",
		},
		{
			name:    "unknown sink",
			mutate:  func(c *Config) { c.DeadLetter.Kind = "kafka" },
			wantErr: `unknown deadletter.kind "kafka"`,
		},
		{
			name: "file sink without dir",
			mutate: func(c *Config) {
				c.DeadLetter.Kind = SinkFile
				c.DeadLetter.Dir = ""
			},
			wantErr: "deadletter.dir is required",
		},
		{
			name: "redis sink without addr",
			mutate: func(c *Config) {
				c.DeadLetter.Kind = SinkRedis
				c.DeadLetter.Redis.Addr = ""
			},
			wantErr: "deadletter.redis.addr is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
