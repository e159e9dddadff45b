package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "github.com/md-rashed-zaman/shopsync/libs/config"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"projector-service"`
	Port        string `env:"PORT" envDefault:"8090"`

	Kafka   Kafka   `envPrefix:"KAFKA_"`
	Handler Handler `envPrefix:"HANDLER_"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"shopsync.db"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`

	RedisAddr          string `env:"REDIS_ADDR"`
	RedisChannelPrefix string `env:"REDIS_CHANNEL_PREFIX" envDefault:"projections"`
}

type Kafka struct {
	Brokers              string        `env:"BROKERS" envDefault:"localhost:9092"`
	ClientID             string        `env:"CLIENT_ID" envDefault:"projector-service"`
	GroupID              string        `env:"GROUP_ID" envDefault:"projector-service"`
	AutoOffsetReset      string        `env:"AUTO_OFFSET_RESET" envDefault:"earliest"`
	AutoCommitIntervalMS int           `env:"AUTO_COMMIT_INTERVAL_MS" envDefault:"5000"`
	PollTimeout          time.Duration `env:"POLL_TIMEOUT" envDefault:"1s"`
	Topics               []string      `env:"TOPICS" envSeparator:","`
	DLQTopic             string        `env:"DLQ_TOPIC"`
}

type Handler struct {
	MaxAttempts  int           `env:"MAX_ATTEMPTS" envDefault:"1"`
	RetryBackoff time.Duration `env:"RETRY_BACKOFF" envDefault:"200ms"`
}

func (k Kafka) CommitInterval() time.Duration {
	return time.Duration(k.AutoCommitIntervalMS) * time.Millisecond
}

func Load() (Config, error) {
	var cfg Config
	if err := libconfig.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// LoadFrom reads an explicit variable set instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	if err := libconfig.ParseEnvWith(&cfg, vars); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if err := libconfig.ValidPort(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT %w", err))
	}
	switch c.StoreDriver {
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be postgres or sqlite (got %q)", c.StoreDriver))
	}
	switch c.Kafka.AutoOffsetReset {
	case "earliest", "latest":
	default:
		errs = append(errs, fmt.Errorf("KAFKA_AUTO_OFFSET_RESET must be earliest or latest (got %q)", c.Kafka.AutoOffsetReset))
	}
	if c.Kafka.AutoCommitIntervalMS < 0 {
		errs = append(errs, errors.New("KAFKA_AUTO_COMMIT_INTERVAL_MS must not be negative"))
	}
	if c.Kafka.PollTimeout <= 0 {
		errs = append(errs, errors.New("KAFKA_POLL_TIMEOUT must be positive"))
	}
	if c.Handler.MaxAttempts < 1 {
		errs = append(errs, errors.New("HANDLER_MAX_ATTEMPTS must be at least 1"))
	}
	return errors.Join(errs...)
}
