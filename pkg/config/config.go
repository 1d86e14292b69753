// pkg/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	API     APIConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	Worker  WorkerConfig
	Log     LogConfig
	Metrics MetricsConfig
}

// APIConfig holds API-related configuration
type APIConfig struct {
	Port               string
	Version            string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	ShutdownTimeout    time.Duration
}

// RedisConfig holds Redis-related configuration
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// KafkaConfig holds Kafka-related configuration
type KafkaConfig struct {
	Brokers       string
	Topic         string
	ConsumerGroup string
}

// WorkerConfig holds settlement worker configuration
type WorkerConfig struct {
	// SettlementDelay is the duration of the simulated settlement step.
	// Tests inject zero here instead of waiting.
	SettlementDelay time.Duration
	// MaxInFlight bounds the number of jobs processed concurrently.
	MaxInFlight int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level       string
	Environment string
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Namespace string
}

// LoadOptions controls where configuration is read from
type LoadOptions struct {
	// ConfigFile is an optional path to a YAML configuration file.
	ConfigFile string
	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix string
}

// DefaultLoadOptions returns the default load options
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		EnvPrefix: "PAYSTREAM",
	}
}

// Load loads configuration from defaults and environment variables
func Load() (*Config, error) {
	return LoadWithOptions(DefaultLoadOptions())
}

// LoadWithOptions loads configuration from defaults, an optional config
// file, and environment variables, in increasing order of precedence.
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(opts.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
	}

	cfg := &Config{
		API: APIConfig{
			Port:               v.GetString("api.port"),
			Version:            v.GetString("api.version"),
			CORSAllowedOrigins: v.GetStringSlice("api.cors_allowed_origins"),
			RateLimitPerMinute: v.GetInt("api.rate_limit_per_minute"),
			ShutdownTimeout:    v.GetDuration("api.shutdown_timeout"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Kafka: KafkaConfig{
			Brokers:       v.GetString("kafka.brokers"),
			Topic:         v.GetString("kafka.topic"),
			ConsumerGroup: v.GetString("kafka.consumer_group"),
		},
		Worker: WorkerConfig{
			SettlementDelay: v.GetDuration("worker.settlement_delay"),
			MaxInFlight:     v.GetInt("worker.max_in_flight"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Environment: v.GetString("log.environment"),
		},
		Metrics: MetricsConfig{
			Namespace: v.GetString("metrics.namespace"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", "8080")
	v.SetDefault("api.version", "v1")
	v.SetDefault("api.cors_allowed_origins", []string{"*"})
	v.SetDefault("api.rate_limit_per_minute", 300)
	v.SetDefault("api.shutdown_timeout", 10*time.Second)

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "transaction_jobs")
	v.SetDefault("kafka.consumer_group", "paystream_settlement")

	// The simulated settlement step takes 30 seconds unless overridden.
	v.SetDefault("worker.settlement_delay", 30*time.Second)
	v.SetDefault("worker.max_in_flight", 4)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.environment", "development")

	v.SetDefault("metrics.namespace", "paystream")
}

func (c *Config) validate() error {
	if c.Worker.SettlementDelay < 0 {
		return fmt.Errorf("worker.settlement_delay must not be negative")
	}
	if c.Worker.MaxInFlight < 1 {
		return fmt.Errorf("worker.max_in_flight must be at least 1")
	}
	if c.API.Port == "" {
		return fmt.Errorf("api.port must not be empty")
	}
	return nil
}
