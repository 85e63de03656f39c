// Package config loads service configuration from ORGAPI_* environment
// variables, with an optional .env file. A double underscore separates
// nesting levels: ORGAPI_MEMBERSHIP__FEE maps to membership.fee.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	pstrings "orgapi/pkg/platform/strings"
)

const envPrefix = "ORGAPI_"

type Config struct {
	Env        string           `koanf:"env" validate:"oneof=development test production"`
	Server     ServerConfig     `koanf:"server"`
	Log        LogConfig        `koanf:"log"`
	Membership MembershipConfig `koanf:"membership"`
	Retention  RetentionConfig  `koanf:"retention"`
	Database   DatabaseConfig   `koanf:"database"`
	Redis      RedisConfig      `koanf:"redis"`
	Kafka      KafkaConfig      `koanf:"kafka"`
	Email      EmailConfig      `koanf:"email"`
	Notify     NotifyConfig     `koanf:"notify"`
	Auth       AuthConfig       `koanf:"auth"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

type MembershipConfig struct {
	Fee                  int `koanf:"fee" validate:"gt=0"`
	DefaultRetentionDays int `koanf:"default_retention_days" validate:"gt=0,lte=36500"`
}

type RetentionConfig struct {
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"gt=0"`
	LockTTL       time.Duration `koanf:"lock_ttl" validate:"gt=0"`
	LockKey       string        `koanf:"lock_key"`
}

// DatabaseConfig selects the store. An empty URL keeps records in memory.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"gte=0"`
}

// RedisConfig enables the distributed sweep lock when URL is set.
type RedisConfig struct {
	URL          string        `koanf:"url"`
	PoolSize     int           `koanf:"pool_size" validate:"gte=0"`
	MinIdleConns int           `koanf:"min_idle_conns" validate:"gte=0"`
	DialTimeout  time.Duration `koanf:"dial_timeout" validate:"gte=0"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gte=0"`
}

// KafkaConfig enables lifecycle event publishing when Brokers is set.
type KafkaConfig struct {
	Brokers           []string `koanf:"brokers"`
	Topic             string   `koanf:"topic" validate:"required"`
	ClientID          string   `koanf:"client_id"`
	Partitions        int32    `koanf:"partitions" validate:"gt=0"`
	ReplicationFactor int16    `koanf:"replication_factor" validate:"gt=0"`
}

// EmailConfig enables Resend delivery when ResendAPIKey is set.
type EmailConfig struct {
	ResendAPIKey string   `koanf:"resend_api_key"`
	From         string   `koanf:"from" validate:"required_with=ResendAPIKey"`
	ReplyTo      string   `koanf:"reply_to" validate:"omitempty,email"`
	Organization string   `koanf:"organization"`
	Bcc          []string `koanf:"bcc" validate:"dive,email"`
}

type NotifyConfig struct {
	QueueSize        int           `koanf:"queue_size" validate:"gte=0"`
	SendTimeout      time.Duration `koanf:"send_timeout" validate:"gt=0"`
	BreakerFailures  int           `koanf:"breaker_failures" validate:"gt=0"`
	BreakerSuccesses int           `koanf:"breaker_successes" validate:"gt=0"`
}

type AuthConfig struct {
	JWTSigningKey string `koanf:"jwt_signing_key" validate:"required,min=16"`
	Issuer        string `koanf:"issuer"`
	Audience      string `koanf:"audience"`
}

// Default returns the configuration used for every key the environment
// does not set.
func Default() *Config {
	return &Config{
		Env: "development",
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Membership: MembershipConfig{
			Fee:                  300,
			DefaultRetentionDays: 365,
		},
		Retention: RetentionConfig{
			SweepInterval: time.Hour,
			LockTTL:       5 * time.Minute,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic:             "membership.events",
			ClientID:          "orgapi",
			Partitions:        3,
			ReplicationFactor: 1,
		},
		Email: EmailConfig{
			Organization: "Membership Office",
		},
		Notify: NotifyConfig{
			QueueSize:        256,
			SendTimeout:      10 * time.Second,
			BreakerFailures:  5,
			BreakerSuccesses: 2,
		},
		Auth: AuthConfig{
			Issuer:   "orgapi",
			Audience: "orgapi-admin",
		},
	}
}

// Load reads the environment over the defaults and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Kafka.Brokers = pstrings.DedupeAndTrim(splitList(cfg.Kafka.Brokers))
	cfg.Email.Bcc = pstrings.DedupeAndTrimLower(splitList(cfg.Email.Bcc))

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// splitList flattens comma separated entries; an env value arrives as a
// single element.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.Split(v, ",")...)
	}
	return out
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
