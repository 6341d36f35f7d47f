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

	assert.Equal(t, 8081, cfg.Admin.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, 10, cfg.Outbox.BatchSize)
	assert.Equal(t, 168*time.Hour, cfg.Outbox.Retention)
	assert.Equal(t, 60*time.Second, cfg.Retry.PollInterval)
	assert.Equal(t, time.Minute, cfg.Retry.BaseDelay)
	assert.Equal(t, time.Hour, cfg.Retry.MaxDelay)
	assert.Equal(t, 30*time.Minute, cfg.Stale.PaymentTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Stale.FirstRetryDelay)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
}

func TestValidate_InvalidAdminPort(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Admin.Port = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_MissingBrokers(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Kafka.Brokers = nil
	assert.Error(t, cfg.Validate())
}

func TestValidate_MaxDelayBelowBaseDelay(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Retry.BaseDelay = time.Hour
	cfg.Retry.MaxDelay = time.Minute
	assert.Error(t, cfg.Validate())
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Admin.Port = -1
	cfg.Database.Host = ""
	cfg.Gateway.BaseURL = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin.port")
	assert.Contains(t, err.Error(), "database.host")
	assert.Contains(t, err.Error(), "gateway.base_url")
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{
		Host: "db", Port: 5433, User: "relay", Password: "secret",
		Database: "payment_relay", SSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5433 user=relay password=secret dbname=payment_relay sslmode=disable", c.DatabaseDSN())
}

func TestRedisAddr(t *testing.T) {
	c := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", c.RedisAddr())
}
