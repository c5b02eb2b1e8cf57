package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 进程级配置
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Database    DatabaseConfig    `mapstructure:"database"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Correios    CorreiosConfig    `mapstructure:"correios"`
	Postal      PostalConfig      `mapstructure:"postal"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Outbox      OutboxConfig      `mapstructure:"outbox"`
	Webhook     WebhookConfig     `mapstructure:"webhook"`
	Stripe      StripeConfig      `mapstructure:"stripe"`
	MercadoPago MercadoPagoConfig `mapstructure:"mercadopago"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type CorreiosConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type PostalConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Brokers     string `mapstructure:"brokers"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

type OutboxConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	BatchSize     int           `mapstructure:"batch_size"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

type WebhookConfig struct {
	Workers       int           `mapstructure:"workers"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

type StripeConfig struct {
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type MercadoPagoConfig struct {
	BaseURL string `mapstructure:"base_url"`

	// NotificationURL 对外可访问的回调地址，如 https://api.example.com/api/webhooks/mercadopago
	NotificationURL string `mapstructure:"notification_url"`
}

type MetricsConfig struct {
	Prefix string `mapstructure:"prefix"`
}

// IsProduction 是否生产环境
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("log.level", "info")

	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=storefront port=5432 sslmode=disable TimeZone=UTC")
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.max_idle_conns", 10)

	v.SetDefault("jwt.secret", "storefront-secret-key-change-in-production")
	v.SetDefault("jwt.issuer", "storefront")

	v.SetDefault("correios.base_url", "https://api.correios.com.br")
	v.SetDefault("correios.timeout", 10*time.Second)
	v.SetDefault("correios.token_ttl", 50*time.Minute)

	v.SetDefault("postal.base_url", "https://viacep.com.br")
	v.SetDefault("postal.timeout", 5*time.Second)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic_prefix", "storefront")

	v.SetDefault("outbox.interval", 5*time.Second)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.max_attempts", 10)
	v.SetDefault("outbox.retry_interval", 10*time.Second)

	v.SetDefault("webhook.workers", 4)
	v.SetDefault("webhook.max_attempts", 3)
	v.SetDefault("webhook.retry_interval", 30*time.Second)

	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("mercadopago.base_url", "https://api.mercadopago.com")
	v.SetDefault("mercadopago.notification_url", "")
	v.SetDefault("metrics.prefix", "storefront")
}

// Load 读取配置：默认值 < 配置文件 < 环境变量（STOREFRONT_ 前缀）
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
