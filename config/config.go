package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.yaml.in/yaml/v4"
)

const (
	ModeLive = "live"
	ModeDemo = "demo"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	StoreFront StoreFrontConfig `yaml:"storefront"`
	Watcher    WatcherConfig    `yaml:"watcher"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

type KafkaConfig struct {
	Host                        string `yaml:"host"`
	Port                        int    `yaml:"port"`
	OrderStatusChangedTopicName string `yaml:"order_status_changed_topic_name"`
}

func (k KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", k.Host, k.Port)}
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type StoreFrontConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	Mode               string `yaml:"mode"` // "live" | "demo"
	Currency           string `yaml:"currency"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	// При 0 кеш истории заказов выключен.
	HistoryCacheTTLSeconds int `yaml:"history_cache_ttl_seconds"`
	SessionTTLSeconds      int `yaml:"session_ttl_seconds"`
	ViewsIdleTTLSeconds    int `yaml:"views_idle_ttl_seconds"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	AuthBaseURL      string `yaml:"auth_base_url"`
	CatalogueBaseURL string `yaml:"catalogue_base_url"`
	OrdersBaseURL    string `yaml:"orders_base_url"`
	ReviewsBaseURL   string `yaml:"reviews_base_url"`

	AuthTimeoutSeconds      int `yaml:"auth_timeout_seconds"`
	CatalogueTimeoutSeconds int `yaml:"catalogue_timeout_seconds"`
	OrdersTimeoutSeconds    int `yaml:"orders_timeout_seconds"`
	ReviewsTimeoutSeconds   int `yaml:"reviews_timeout_seconds"`
}

type WatcherConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	// Токен сервисной учётки для чтения истории заказов любого пользователя.
	ServiceToken string `yaml:"service_token"`

	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	BatchSize           int `yaml:"batch_size"`
	Concurrency         int `yaml:"concurrency"`
	LeaseSeconds        int `yaml:"lease_seconds"`
	RateLimitPerMinute  int `yaml:"rate_limit_per_minute"`

	// Расписание (опционально). По умолчанию: активные 60..180s, без активных заказов 6h,
	// backoff 5/15/30/60 минут.
	ActiveMinSeconds int `yaml:"active_min_seconds"`
	ActiveMaxSeconds int `yaml:"active_max_seconds"`
	IdleSeconds      int `yaml:"idle_seconds"`
	Backoff1Seconds  int `yaml:"backoff_1_seconds"`
	Backoff2Seconds  int `yaml:"backoff_2_seconds"`
	Backoff3Seconds  int `yaml:"backoff_3_seconds"`
	Backoff4Seconds  int `yaml:"backoff_4_seconds"`
}

func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal YAML")
	}

	switch config.StoreFront.Mode {
	case "", ModeLive, ModeDemo:
	default:
		return nil, errors.Errorf("unknown storefront mode %q", config.StoreFront.Mode)
	}

	return &config, nil
}
