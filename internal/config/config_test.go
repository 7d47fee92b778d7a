package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 30*time.Second, cfg.Lifecycle.StepInterval)
	assert.Equal(t, time.Second, cfg.Lifecycle.ScanInterval)
	assert.Equal(t, 32, cfg.Broker.Shards)
	assert.Equal(t, 64, cfg.Broker.MaxRoomsPerConnection)
	assert.Equal(t, 64, cfg.Gateway.SendBuffer)
	assert.Equal(t, int64(4096), cfg.Gateway.MaxMessageSize)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 1024, cfg.Kafka.QueueSize)
	assert.Equal(t, 5*time.Second, cfg.Kafka.WriteTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LIFECYCLE_STEP_INTERVAL", "2s")
	t.Setenv("KAFKA_BROKERS", "localhost:9092")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Lifecycle.StepInterval)
	assert.Equal(t, "localhost:9092", cfg.Kafka.Brokers)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidStepInterval(t *testing.T) {
	t.Setenv("LIFECYCLE_STEP_INTERVAL", "0s")

	_, err := Load()

	assert.Error(t, err)
}

func TestValidate_PongWaitMustExceedPing(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Gateway.PongWait = cfg.Gateway.PingInterval

	assert.Error(t, cfg.Validate())
}
