package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Admin         AdminConfig         `mapstructure:"admin"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Outbox        OutboxConfig        `mapstructure:"outbox"`
	Retry         RetryConfig         `mapstructure:"retry"`
	Stale         StaleConfig         `mapstructure:"stale"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type AdminConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RequiredAcks int           `mapstructure:"required_acks"`
}

type OutboxConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	BatchSize     int           `mapstructure:"batch_size"`
	ClaimTimeout  time.Duration `mapstructure:"claim_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Retention     time.Duration `mapstructure:"retention"`
}

type RetryConfig struct {
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	BatchSize         int           `mapstructure:"batch_size"`
	BaseDelay         time.Duration `mapstructure:"base_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	InProgressTimeout time.Duration `mapstructure:"in_progress_timeout"`
}

type StaleConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	PaymentTimeout  time.Duration `mapstructure:"payment_timeout"`
	FirstRetryDelay time.Duration `mapstructure:"first_retry_delay"`
	LockTTL         time.Duration `mapstructure:"lock_ttl"`
}

type GatewayConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	SecretKey   string        `mapstructure:"secret_key"`
	BillingKey  string        `mapstructure:"billing_key"`
	CustomerKey string        `mapstructure:"customer_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("RELAY")
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/payment-relay")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Admin.Port <= 0 || c.Admin.Port > 65535 {
		errs = append(errs, fmt.Errorf("admin.port must be between 1 and 65535, got %d", c.Admin.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, fmt.Errorf("kafka.brokers is required"))
	}
	if c.Outbox.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("outbox.poll_interval must be positive"))
	}
	if c.Outbox.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("outbox.batch_size must be positive"))
	}
	if c.Outbox.Retention <= 0 {
		errs = append(errs, fmt.Errorf("outbox.retention must be positive"))
	}
	if c.Retry.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("retry.poll_interval must be positive"))
	}
	if c.Retry.BaseDelay <= 0 {
		errs = append(errs, fmt.Errorf("retry.base_delay must be positive"))
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		errs = append(errs, fmt.Errorf("retry.max_delay must be >= retry.base_delay"))
	}
	if c.Stale.PaymentTimeout <= 0 {
		errs = append(errs, fmt.Errorf("stale.payment_timeout must be positive"))
	}
	if c.Stale.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("stale.lock_ttl must be positive"))
	}
	if c.Gateway.BaseURL == "" {
		errs = append(errs, fmt.Errorf("gateway.base_url is required"))
	}
	if c.Gateway.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("gateway.timeout must be positive"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Admin server defaults
	v.SetDefault("admin.port", 8081)
	v.SetDefault("admin.read_timeout", "15s")
	v.SetDefault("admin.write_timeout", "15s")
	v.SetDefault("admin.idle_timeout", "120s")
	v.SetDefault("admin.shutdown_timeout", "30s")
	v.SetDefault("admin.cors.allowed_origins", []string{"*"})
	v.SetDefault("admin.cors.allow_credentials", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "relay")
	v.SetDefault("database.database", "relay")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Kafka defaults
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.batch_timeout", "100ms")
	v.SetDefault("kafka.write_timeout", "5s")
	v.SetDefault("kafka.required_acks", 1)

	// Outbox publisher defaults
	v.SetDefault("outbox.poll_interval", "1s")
	v.SetDefault("outbox.batch_size", 10)
	v.SetDefault("outbox.claim_timeout", "1m")
	v.SetDefault("outbox.sweep_interval", "24h")
	v.SetDefault("outbox.retention", "168h")

	// Payment retry defaults
	v.SetDefault("retry.poll_interval", "60s")
	v.SetDefault("retry.batch_size", 50)
	v.SetDefault("retry.base_delay", "1m")
	v.SetDefault("retry.max_delay", "1h")
	v.SetDefault("retry.in_progress_timeout", "10m")

	// Stale-payment detector defaults
	v.SetDefault("stale.poll_interval", "300s")
	v.SetDefault("stale.payment_timeout", "30m")
	v.SetDefault("stale.first_retry_delay", "5m")
	v.SetDefault("stale.lock_ttl", "30s")

	// Gateway defaults
	v.SetDefault("gateway.base_url", "https://api.tosspayments.com")
	v.SetDefault("gateway.timeout", "10s")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", true)

	// Instance ID
	v.SetDefault("instance_id", "relay-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
