// Package config loads the scheduler-service configuration.
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

const EnvPrefix = "SCHEDULER"

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
	Relay     RelayConfig               `mapstructure:"relay"`
	Reminders RemindersConfig           `mapstructure:"reminders"`
}

type RelayConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollDelay     time.Duration `mapstructure:"poll_delay"`
	InitialDelay  time.Duration `mapstructure:"initial_delay"`
	LockMinHold   time.Duration `mapstructure:"lock_min_hold"`
	LockMaxHold   time.Duration `mapstructure:"lock_max_hold"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	Retention     time.Duration `mapstructure:"retention"`
	PurgeSchedule string        `mapstructure:"purge_schedule"`
}

type RemindersConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Schedule    string        `mapstructure:"schedule"`
	Timezone    string        `mapstructure:"timezone"`
	LockMinHold time.Duration `mapstructure:"lock_min_hold"`
	LockMaxHold time.Duration `mapstructure:"lock_max_hold"`
}

// Load reads defaults, then path (optional), then SCHEDULER_* variables.
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
		libconfig.ValidateAddr("http.addr", c.HTTP.Addr),
		libconfig.ValidateAddr("grpc.addr", c.GRPC.Addr),
	)
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required"))
	}
	if c.Relay.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("relay.batch_size must be positive (got %d)", c.Relay.BatchSize))
	}
	if c.Relay.PollDelay <= 0 {
		errs = append(errs, errors.New("relay.poll_delay must be positive"))
	}
	if c.Relay.LockMaxHold <= 0 || c.Relay.LockMinHold > c.Relay.LockMaxHold {
		errs = append(errs, errors.New("relay.lock_max_hold must be positive and not below relay.lock_min_hold"))
	}
	if _, err := cron.ParseStandard(c.Relay.PurgeSchedule); err != nil {
		errs = append(errs, fmt.Errorf("relay.purge_schedule: %w", err))
	}
	if c.Reminders.Enabled {
		if _, err := cron.ParseStandard(c.Reminders.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("reminders.schedule: %w", err))
		}
		if _, err := time.LoadLocation(c.Reminders.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("reminders.timezone: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (c Config) ReminderLocation() *time.Location {
	loc, err := time.LoadLocation(c.Reminders.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
