package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Broker   BrokerConfig   `mapstructure:"broker"   validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"    validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains the PostgreSQL connection settings. The database
// is a mandatory dependency: bootstrap failure aborts startup.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"              validate:"required"`
	ConnectAttempts int           `mapstructure:"connect_attempts" validate:"required,gte=1"`
	ConnectBackoff  time.Duration `mapstructure:"connect_backoff"  validate:"required"`
}

// BrokerConfig contains the RabbitMQ connection and topology settings.
type BrokerConfig struct {
	URL             string        `mapstructure:"url"              validate:"required"`
	Exchange        string        `mapstructure:"exchange"         validate:"required"`
	Queue           string        `mapstructure:"queue"            validate:"required"`
	RoutingKey      string        `mapstructure:"routing_key"      validate:"required"`
	ConnectAttempts int           `mapstructure:"connect_attempts" validate:"required,gte=1"`
	ConnectBackoff  time.Duration `mapstructure:"connect_backoff"  validate:"required"`
}

// RedisConfig contains the Redis connection and broadcast channel settings.
type RedisConfig struct {
	URL             string        `mapstructure:"url"              validate:"required"`
	Channel         string        `mapstructure:"channel"          validate:"required"`
	ConnectAttempts int           `mapstructure:"connect_attempts" validate:"required,gte=1"`
	ConnectBackoff  time.Duration `mapstructure:"connect_backoff"  validate:"required"`
}

// WorkerConfig contains the consumer process settings. Prefetch is the
// broker-enforced bound on unacknowledged deliveries in flight; WorkerCount
// is the size of the in-process pool draining them.
type WorkerConfig struct {
	Prefetch    int `mapstructure:"prefetch"     validate:"required,gte=1"`
	WorkerCount int `mapstructure:"worker_count" validate:"required,gte=1"`
}
