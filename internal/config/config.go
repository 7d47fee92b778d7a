package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Broker    BrokerConfig    `yaml:"broker"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Kafka     KafkaConfig     `yaml:"kafka"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type AuthConfig struct {
	Secret string `yaml:"secret"`
}

type LifecycleConfig struct {
	StepInterval time.Duration `yaml:"stepInterval"`
	ScanInterval time.Duration `yaml:"scanInterval"`
}

type BrokerConfig struct {
	Shards                int `yaml:"shards"`
	MaxRooms              int `yaml:"maxRooms"`
	MaxRoomsPerConnection int `yaml:"maxRoomsPerConnection"`
}

type GatewayConfig struct {
	MaxConnections int           `yaml:"maxConnections"`
	SendBuffer     int           `yaml:"sendBuffer"`
	PingInterval   time.Duration `yaml:"pingInterval"`
	PongWait       time.Duration `yaml:"pongWait"`
	WriteWait      time.Duration `yaml:"writeWait"`
	MaxMessageSize int64         `yaml:"maxMessageSize"`
}

type KafkaConfig struct {
	Brokers      string        `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	QueueSize    int           `yaml:"queueSize"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// Load reads configuration from the environment, after loading an optional
// .env file from the working directory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", 5000)
	v.SetDefault("SERVER_READ_TIMEOUT", "10s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	v.SetDefault("SERVER_IDLE_TIMEOUT", "30s")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("AUTH_SECRET", "your-secret-key-here")
	v.SetDefault("LIFECYCLE_STEP_INTERVAL", "30s")
	v.SetDefault("LIFECYCLE_SCAN_INTERVAL", "1s")
	v.SetDefault("BROKER_SHARDS", 32)
	v.SetDefault("BROKER_MAX_ROOMS", 0)
	v.SetDefault("BROKER_MAX_ROOMS_PER_CONNECTION", 64)
	v.SetDefault("GATEWAY_MAX_CONNECTIONS", 10000)
	v.SetDefault("GATEWAY_SEND_BUFFER", 64)
	v.SetDefault("GATEWAY_PING_INTERVAL", "30s")
	v.SetDefault("GATEWAY_PONG_WAIT", "60s")
	v.SetDefault("GATEWAY_WRITE_WAIT", "10s")
	v.SetDefault("GATEWAY_MAX_MESSAGE_SIZE", 4096)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "order-status")
	v.SetDefault("KAFKA_QUEUE_SIZE", 1024)
	v.SetDefault("KAFKA_WRITE_TIMEOUT", "5s")

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetInt("SERVER_PORT"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:     v.GetDuration("SERVER_IDLE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		Auth: AuthConfig{
			Secret: v.GetString("AUTH_SECRET"),
		},
		Lifecycle: LifecycleConfig{
			StepInterval: v.GetDuration("LIFECYCLE_STEP_INTERVAL"),
			ScanInterval: v.GetDuration("LIFECYCLE_SCAN_INTERVAL"),
		},
		Broker: BrokerConfig{
			Shards:                v.GetInt("BROKER_SHARDS"),
			MaxRooms:              v.GetInt("BROKER_MAX_ROOMS"),
			MaxRoomsPerConnection: v.GetInt("BROKER_MAX_ROOMS_PER_CONNECTION"),
		},
		Gateway: GatewayConfig{
			MaxConnections: v.GetInt("GATEWAY_MAX_CONNECTIONS"),
			SendBuffer:     v.GetInt("GATEWAY_SEND_BUFFER"),
			PingInterval:   v.GetDuration("GATEWAY_PING_INTERVAL"),
			PongWait:       v.GetDuration("GATEWAY_PONG_WAIT"),
			WriteWait:      v.GetDuration("GATEWAY_WRITE_WAIT"),
			MaxMessageSize: v.GetInt64("GATEWAY_MAX_MESSAGE_SIZE"),
		},
		Kafka: KafkaConfig{
			Brokers:      v.GetString("KAFKA_BROKERS"),
			Topic:        v.GetString("KAFKA_TOPIC"),
			QueueSize:    v.GetInt("KAFKA_QUEUE_SIZE"),
			WriteTimeout: v.GetDuration("KAFKA_WRITE_TIMEOUT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server port must be positive, got %d", c.Server.Port)
	}
	if c.Auth.Secret == "" {
		return errors.New("auth secret is required")
	}
	if c.Lifecycle.StepInterval <= 0 {
		return fmt.Errorf("lifecycle step interval must be positive, got %s", c.Lifecycle.StepInterval)
	}
	if c.Gateway.PongWait <= c.Gateway.PingInterval {
		return fmt.Errorf("gateway pong wait (%s) must exceed ping interval (%s)", c.Gateway.PongWait, c.Gateway.PingInterval)
	}
	return nil
}
