package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  cargo_status_updates_topic_name: "cargo.status.updates"
  cargo_status_changed_topic_name: "cargo.status.changed"
redis:
  host: "localhost"
  port: 6379
auth:
  jwt_secret: "s3cret"
  token_ttl_seconds: 900
cargotrack:
  http_addr: ":8080"
  kafka_consumer_group: "cargo-api"
  public_cache_ttl_seconds: 300
  public_rate_limit_per_minute: 60
  worker_poll_interval_seconds: 30
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "cargo.status.updates", cfg.Kafka.CargoStatusUpdatesTopicName)
	require.Equal(t, "cargo.status.changed", cfg.Kafka.CargoStatusChangedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	require.Equal(t, ":8080", cfg.CargoTrack.HTTPAddr)
	require.Equal(t, 60, cfg.CargoTrack.PublicRateLimitPerMinute)
	require.Equal(t, 30, cfg.CargoTrack.WorkerPollIntervalSeconds)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestConfigHelpers(t *testing.T) {
	db := DatabaseConfig{Host: "h", Port: 5432, Username: "u", Password: "p", DBName: "d"}
	require.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", db.ConnString())

	db.SSLMode = "require"
	require.Equal(t, "postgres://u:p@h:5432/d?sslmode=require", db.ConnString())

	require.Equal(t, []string{"k:9092"}, KafkaConfig{Host: "k", Port: 9092}.Brokers())
	require.Equal(t, "r:6379", RedisConfig{Host: "r", Port: 6379}.Addr())
}
