package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jmehdipour/notifications-delivery/internal/model"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	Log           LogConfig           `mapstructure:"log"`
	AWS           AWSConfig           `mapstructure:"aws"`
	Queue         QueueConfig         `mapstructure:"queue"`
	Crypto        CryptoConfig        `mapstructure:"crypto"`
	NotifyAPI     NotifyAPIConfig     `mapstructure:"notify_api"`
	TemplateCache TemplateCacheConfig `mapstructure:"template_cache"`
	Email         EmailConfig         `mapstructure:"email"`
	SMS           SMSConfig           `mapstructure:"sms"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	MySQL         DatabaseConfig      `mapstructure:"mysql"`
	ClickHouse    DatabaseConfig      `mapstructure:"clickhouse"`
	Redis         RedisConfig         `mapstructure:"redis"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
}

// ---- Leaf structs ----

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"` // json | console
}

type AWSConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"` // localstack / elasticmq
}

type QueueConfig struct {
	NamePrefix        string        `mapstructure:"name_prefix"`
	MaxMessages       int           `mapstructure:"max_messages"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
	WaitTime          time.Duration `mapstructure:"wait_time"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	AttributeNames    []string      `mapstructure:"attribute_names"` // message attributes requested on receive
}

type CryptoConfig struct {
	SecretKey string `mapstructure:"secret_key"`
	Salt      string `mapstructure:"salt"`
}

type NotifyAPIConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	ClientID string        `mapstructure:"client_id"`
	Secret   string        `mapstructure:"secret"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type TemplateCacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

type EmailConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	ConfigurationSet string `mapstructure:"configuration_set"`
}

type SMSConfig struct {
	From               string           `mapstructure:"from"`
	MaxAttempts        int              `mapstructure:"max_attempts"`
	DefaultCountryCode string           `mapstructure:"default_country_code"`
	Providers          []ProviderConfig `mapstructure:"providers"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

const (
	ProviderKindHTTP      = "http"
	ProviderKindKavenegar = "kavenegar"
)

type ProviderConfig struct {
	Name       string        `mapstructure:"name"`
	Kind       string        `mapstructure:"kind"` // http | kavenegar
	Enabled    bool          `mapstructure:"enabled"`
	BaseURL    string        `mapstructure:"base_url"`
	SendPath   string        `mapstructure:"send_path"`
	StatusPath string        `mapstructure:"status_path"`
	APIKey     string        `mapstructure:"api_key"`
	Sender     string        `mapstructure:"sender"`
	TimeoutMs  int           `mapstructure:"timeout_ms"`
	Breaker    BreakerConfig `mapstructure:"breaker"`
}

type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type HTTPConfig struct {
	Addr       string   `mapstructure:"addr"`
	WorkerAddr string   `mapstructure:"worker_addr"` // health + metrics of the delivery worker
	APIKeys    []string `mapstructure:"api_keys"`
}

type RateLimitConfig struct {
	RPS int `mapstructure:"rps"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (DELIVERY_*).
// Nested keys map to env names with '.' replaced by '_', e.g. DELIVERY_CRYPTO_SECRET_KEY.
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	// env override (DELIVERY_*)
	v.SetEnvPrefix("DELIVERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values every command relies on.
func (c Config) Validate() error {
	var errs []error
	if c.Queue.MaxMessages < 1 || c.Queue.MaxMessages > 10 {
		errs = append(errs, fmt.Errorf("queue.max_messages must be in 1..10, got %d", c.Queue.MaxMessages))
	}
	if c.Queue.VisibilityTimeout < 0 {
		errs = append(errs, fmt.Errorf("queue.visibility_timeout must not be negative"))
	}
	if c.Queue.WaitTime < 0 || c.Queue.WaitTime > 20*time.Second {
		errs = append(errs, fmt.Errorf("queue.wait_time must be in 0..20s, got %s", c.Queue.WaitTime))
	}
	for _, name := range model.RequiredAttributes {
		if !slices.Contains(c.Queue.AttributeNames, name) && !slices.Contains(c.Queue.AttributeNames, "All") {
			errs = append(errs, fmt.Errorf("queue.attribute_names must include %q", name))
		}
	}
	for i, p := range c.SMS.Providers {
		if p.Kind != ProviderKindHTTP && p.Kind != ProviderKindKavenegar {
			errs = append(errs, fmt.Errorf("sms.providers[%d] %q: unknown kind %q", i, p.Name, p.Kind))
		}
	}
	return errors.Join(errs...)
}

// ValidateWorker checks what the delivery worker needs on top of Validate.
func (c Config) ValidateWorker() error {
	var errs []error
	if c.Crypto.SecretKey == "" || c.Crypto.Salt == "" {
		errs = append(errs, errors.New("crypto.secret_key and crypto.salt are required"))
	}
	if c.NotifyAPI.BaseURL == "" {
		errs = append(errs, errors.New("notify_api.base_url is required"))
	}
	if c.AWS.Region == "" {
		errs = append(errs, errors.New("aws.region is required"))
	}
	return errors.Join(errs...)
}
