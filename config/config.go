// Package config loads process configuration from the environment and an
// optional YAML file.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/redis/go-redis/v9"
)

const (
	QueueBackendSQS   = "sqs"
	QueueBackendAzure = "azure"

	EventStoreTables = "tables"
	EventStoreSQLite = "sqlite"

	CounterRedis    = "redis"
	CounterPostgres = "postgres"

	// sqsMaxMessages and sqsMaxWait are the ReceiveMessage limits of SQS.
	sqsMaxMessages = 10
	sqsMaxWait     = 20 * time.Second
)

type Config struct {
	Debug   bool    `yaml:"debug" env:"DEBUG" env-default:"false"`
	AWS     AWS     `yaml:"aws"`
	Queue   Queue   `yaml:"queue"`
	Storage Storage `yaml:"storage"`
	Counter Counter `yaml:"counter"`
	Report  Report  `yaml:"report"`
	HTTP    HTTP    `yaml:"http"`
	Metrics Metrics `yaml:"metrics"`
}

type AWS struct {
	Region          string `yaml:"region" env:"AWS_REGION" env-default:"us-east-1"`
	Endpoint        string `yaml:"endpoint" env:"LOCALSTACK_ENDPOINT"`
	AccessKeyID     string `yaml:"access_key_id" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
}

type Queue struct {
	Backend           string        `yaml:"backend" env:"QUEUE_BACKEND" env-default:"sqs"`
	Name              string        `yaml:"name" env:"SQS_QUEUE_NAME" env-default:"counter-increment-queue"`
	WaitTime          time.Duration `yaml:"wait_time" env:"QUEUE_WAIT_TIME" env-default:"20s"`
	MaxMessages       int           `yaml:"max_messages" env:"QUEUE_MAX_MESSAGES" env-default:"1"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout" env:"QUEUE_VISIBILITY_TIMEOUT" env-default:"30s"`
	ErrorBackoff      time.Duration `yaml:"error_backoff" env:"QUEUE_ERROR_BACKOFF" env-default:"5s"`
	PublishTimeout    time.Duration `yaml:"publish_timeout" env:"QUEUE_PUBLISH_TIMEOUT" env-default:"5s"`
}

type Storage struct {
	Backend          string `yaml:"backend" env:"EVENT_STORE_BACKEND" env-default:"tables"`
	ConnectionString string `yaml:"connection_string" env:"STORAGE_CONNECTION_STRING"`
	EventsTable      string `yaml:"events_table" env:"COUNTER_EVENTS_TABLE" env-default:"counterevents"`
	SQLitePath       string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"counter_events.db"`
}

type Counter struct {
	Backend               string `yaml:"backend" env:"COUNTER_BACKEND" env-default:"redis"`
	RedisConnectionString string `yaml:"redis_connection_string" env:"REDIS_CONNECTION_STRING" env-default:"localhost:6379"`
	PostgresURL           string `yaml:"postgres_url" env:"DATABASE_URL"`
	Key                   string `yaml:"key" env:"COUNTER_KEY" env-default:"counter:1"`
}

type Report struct {
	From     string        `yaml:"from" env:"SES_FROM_EMAIL"`
	To       string        `yaml:"to" env:"SES_TO_EMAIL"`
	Schedule string        `yaml:"schedule" env:"REPORT_SCHEDULE" env-default:"@hourly"`
	Window   time.Duration `yaml:"window" env:"REPORT_WINDOW" env-default:"1h"`
	LockTTL  time.Duration `yaml:"lock_ttl" env:"REPORT_LOCK_TTL" env-default:"10m"`
	// ClusterLock guards cycles with a Redis lease so that only one
	// processor replica reports per tick.
	ClusterLock bool `yaml:"cluster_lock" env:"REPORT_CLUSTER_LOCK" env-default:"false"`
}

type HTTP struct {
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

type Metrics struct {
	Addr string `yaml:"addr" env:"METRICS_ADDR" env-default:":9091"`
}

// Load reads the YAML file at path when one is given and lets environment
// variables override it. With an empty path only the environment is read.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown backends and queue settings outside the limits of
// the configured queue.
func (c *Config) Validate() error {
	var errs []error
	switch c.Queue.Backend {
	case QueueBackendSQS, QueueBackendAzure:
	default:
		errs = append(errs, fmt.Errorf("unknown QUEUE_BACKEND %q", c.Queue.Backend))
	}
	switch c.Storage.Backend {
	case EventStoreTables, EventStoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown EVENT_STORE_BACKEND %q", c.Storage.Backend))
	}
	switch c.Counter.Backend {
	case CounterRedis, CounterPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown COUNTER_BACKEND %q", c.Counter.Backend))
	}
	if strings.TrimSpace(c.Queue.Name) == "" {
		errs = append(errs, errors.New("SQS_QUEUE_NAME must not be empty"))
	}
	if c.Queue.MaxMessages < 1 || c.Queue.MaxMessages > sqsMaxMessages {
		errs = append(errs, fmt.Errorf("QUEUE_MAX_MESSAGES must be between 1 and %d", sqsMaxMessages))
	}
	if c.Queue.WaitTime < 0 || (c.Queue.Backend == QueueBackendSQS && c.Queue.WaitTime > sqsMaxWait) {
		errs = append(errs, fmt.Errorf("QUEUE_WAIT_TIME must be between 0 and %s", sqsMaxWait))
	}
	if c.Queue.ErrorBackoff <= 0 {
		errs = append(errs, errors.New("QUEUE_ERROR_BACKOFF must be greater than zero"))
	}
	if c.Queue.PublishTimeout <= 0 {
		errs = append(errs, errors.New("QUEUE_PUBLISH_TIMEOUT must be greater than zero"))
	}
	if c.Report.Window <= 0 {
		errs = append(errs, errors.New("REPORT_WINDOW must be greater than zero"))
	}
	return errors.Join(errs...)
}

// RedisOptions parses the counter's Redis connection string. Both redis://
// URLs and the "host:port,password=...,ssl=true" form are accepted.
func (c Counter) RedisOptions() (*redis.Options, error) {
	conn := strings.TrimSpace(c.RedisConnectionString)
	if conn == "" {
		return nil, errors.New("missing redis config")
	}
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts, nil
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(strings.TrimSpace(kv[1]), "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts, nil
}
