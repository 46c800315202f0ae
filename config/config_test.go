package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

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
  order_status_changed_topic_name: "order.status_changed"
redis:
  host: "localhost"
  port: 6379
storefront:
  http_addr: ":8080"
  mode: "demo"
  history_cache_ttl_seconds: 30
  catalogue_base_url: "http://catalogue:8082"
watcher:
  service_token: "svc"
  active_min_seconds: 10
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "postgres://u:p@localhost:5432/db?sslmode=disable", cfg.Database.ConnString())
	require.Equal(t, "order.status_changed", cfg.Kafka.OrderStatusChangedTopicName)
	require.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers())
	require.Equal(t, "localhost:6379", cfg.Redis.Addr())
	require.Equal(t, ":8080", cfg.StoreFront.HTTPAddr)
	require.Equal(t, ModeDemo, cfg.StoreFront.Mode)
	require.Equal(t, 30*time.Second, Seconds(cfg.StoreFront.HistoryCacheTTLSeconds))
	require.Equal(t, "http://catalogue:8082", cfg.StoreFront.CatalogueBaseURL)
	require.Equal(t, "svc", cfg.Watcher.ServiceToken)
	require.Equal(t, 10, cfg.Watcher.ActiveMinSeconds)
}

func TestLoadConfig_UnknownMode(t *testing.T) {
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte("storefront:\n  mode: \"mock\"\n"), 0o600))

	_, err := LoadConfig(p)
	require.Error(t, err)
	require.Contains(t, err.Error(), "mock")
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	p := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(p, []byte("database: [1, 2"), 0o600))
	_, err = LoadConfig(p)
	require.Error(t, err)
}

func TestLoadConfig_SampleFile(t *testing.T) {
	cfg, err := LoadConfig("config.yaml")
	require.NoError(t, err)
	require.Equal(t, ModeLive, cfg.StoreFront.Mode)
	require.Equal(t, "http://auth-service:8081", cfg.StoreFront.AuthBaseURL)
	require.Equal(t, 0, cfg.StoreFront.HistoryCacheTTLSeconds)
	require.Equal(t, 120, cfg.Watcher.LeaseSeconds)
}
