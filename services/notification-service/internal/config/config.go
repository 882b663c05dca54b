// Package config loads the notification-service configuration.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"time"

	libconfig "github.com/md-rashed-zaman/clinicflow/libs/config"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/breaker"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/sms"
)

//go:embed defaults.yaml
var defaults []byte

const EnvPrefix = "NOTIFICATION"

type Config struct {
	Service       string                   `mapstructure:"service"`
	Log           libconfig.LogConfig      `mapstructure:"log"`
	HTTP          libconfig.HTTPConfig     `mapstructure:"http"`
	GRPC          libconfig.GRPCConfig     `mapstructure:"grpc"`
	Postgres      libconfig.PostgresConfig `mapstructure:"postgres"`
	Kafka         libconfig.KafkaConfig    `mapstructure:"kafka"`
	Otel          libconfig.OtelConfig     `mapstructure:"otel"`
	Consumer      ConsumerConfig           `mapstructure:"consumer"`
	Notifications NotificationsConfig      `mapstructure:"notifications"`
	SMTP          SMTPConfig               `mapstructure:"smtp"`
	SMS           sms.Config               `mapstructure:"sms"`
	Breaker       breaker.Config           `mapstructure:"breaker"`
}

type ConsumerConfig struct {
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	RetryMaxRetries int           `mapstructure:"retry_max_retries"`
	RestartDelay    time.Duration `mapstructure:"restart_delay"`
	DLTWriteTimeout time.Duration `mapstructure:"dlt_write_timeout"`
	DLTGroupID      string        `mapstructure:"dlt_group_id"`
}

type NotificationsConfig struct {
	MaxAttempts     int `mapstructure:"max_attempts"`
	LastErrorMaxLen int `mapstructure:"last_error_max_len"`
}

type SMTPConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	From     string        `mapstructure:"from"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Load reads defaults, then path (optional), then NOTIFICATION_* variables.
func Load(path string) (Config, error) {
	var cfg Config
	if err := libconfig.Load(defaults, path, EnvPrefix, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// lastErrorColumnLen is the width of notifications.last_error.
const lastErrorColumnLen = 500

func (c Config) Validate() error {
	var errs []error
	errs = append(errs,
		libconfig.RequireString("postgres.url", c.Postgres.URL),
		libconfig.RequireString("kafka.topic", c.Kafka.Topic),
		libconfig.RequireString("kafka.group_id", c.Kafka.GroupID),
		libconfig.RequireString("consumer.dlt_group_id", c.Consumer.DLTGroupID),
		libconfig.RequireString("smtp.host", c.SMTP.Host),
		libconfig.ValidateAddr("http.addr", c.HTTP.Addr),
		libconfig.ValidateAddr("grpc.addr", c.GRPC.Addr),
	)
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required"))
	}
	if c.Consumer.RetryBackoff < 0 {
		errs = append(errs, errors.New("consumer.retry_backoff must not be negative"))
	}
	if c.Consumer.RetryMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("consumer.retry_max_retries must not be negative (got %d)", c.Consumer.RetryMaxRetries))
	}
	if c.Notifications.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("notifications.max_attempts must be positive (got %d)", c.Notifications.MaxAttempts))
	}
	if c.Notifications.LastErrorMaxLen <= 0 || c.Notifications.LastErrorMaxLen > lastErrorColumnLen {
		errs = append(errs, fmt.Errorf("notifications.last_error_max_len must be in 1..%d (got %d)",
			lastErrorColumnLen, c.Notifications.LastErrorMaxLen))
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("smtp.port out of range (got %d)", c.SMTP.Port))
	}
	if c.SMS.Enabled && c.SMS.WebhookURL == "" {
		errs = append(errs, errors.New("sms.webhook_url is required when sms.enabled"))
	}
	return errors.Join(errs...)
}
