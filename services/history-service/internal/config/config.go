// Package config loads the history-service configuration.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"time"

	libconfig "github.com/md-rashed-zaman/clinicflow/libs/config"
	"github.com/robfig/cron/v3"
)

//go:embed defaults.yaml
var defaults []byte

const EnvPrefix = "HISTORY"

type Config struct {
	Service   string                    `mapstructure:"service"`
	Log       libconfig.LogConfig       `mapstructure:"log"`
	HTTP      libconfig.HTTPConfig      `mapstructure:"http"`
	GRPC      libconfig.GRPCConfig      `mapstructure:"grpc"`
	Postgres  libconfig.PostgresConfig  `mapstructure:"postgres"`
	Redis     libconfig.RedisConfig     `mapstructure:"redis"`
	Kafka     libconfig.KafkaConfig     `mapstructure:"kafka"`
	Otel      libconfig.OtelConfig      `mapstructure:"otel"`
	Auth      libconfig.AuthConfig      `mapstructure:"auth"`
	RateLimit libconfig.RateLimitConfig `mapstructure:"rate_limit"`
	Consumer  ConsumerConfig            `mapstructure:"consumer"`
	Ledger    LedgerConfig              `mapstructure:"ledger"`
}

type ConsumerConfig struct {
	RestartDelay time.Duration `mapstructure:"restart_delay"`
}

type LedgerConfig struct {
	Retention     time.Duration `mapstructure:"retention"`
	PruneSchedule string        `mapstructure:"prune_schedule"`
}

// Load reads defaults, then path (optional), then HISTORY_* variables.
func Load(path string) (Config, error) {
	var cfg Config
	if err := libconfig.Load(defaults, path, EnvPrefix, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	errs = append(errs,
		libconfig.RequireString("postgres.url", c.Postgres.URL),
		libconfig.RequireString("auth.jwt_secret", c.Auth.JWTSecret),
		libconfig.RequireString("kafka.topic", c.Kafka.Topic),
		libconfig.RequireString("kafka.group_id", c.Kafka.GroupID),
		libconfig.ValidateAddr("http.addr", c.HTTP.Addr),
		libconfig.ValidateAddr("grpc.addr", c.GRPC.Addr),
	)
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required"))
	}
	if c.Ledger.Retention <= 0 {
		errs = append(errs, errors.New("ledger.retention must be positive"))
	}
	if _, err := cron.ParseStandard(c.Ledger.PruneSchedule); err != nil {
		errs = append(errs, fmt.Errorf("ledger.prune_schedule: %w", err))
	}
	return errors.Join(errs...)
}
