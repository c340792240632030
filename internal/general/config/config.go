package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// EnvConfigPath overrides the default config file location.
const EnvConfigPath = "HAILO_CONFIG"

// DefaultPath is used when EnvConfigPath is unset.
const DefaultPath = "config/config.yaml"

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	NotifierMemory   = "memory"
	NotifierRabbitMQ = "rabbitmq"
	NotifierRedis    = "redis"
)

type Config struct {
	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"database"`
	} `yaml:"database"`
	RabbitMQ struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"rabbitmq"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Services struct {
		RideServicePort int `yaml:"ride_service"`
	} `yaml:"services"`
	JWT struct {
		SecretKey string        `yaml:"secret_key"`
		TTL       time.Duration `yaml:"ttl"`
	} `yaml:"jwt"`
	Store struct {
		Driver string `yaml:"driver"`
	} `yaml:"store"`
	Notifier struct {
		Driver string `yaml:"driver"`
	} `yaml:"notifier"`
	Sync struct {
		PollInterval    time.Duration `yaml:"poll_interval"`
		StalenessWindow time.Duration `yaml:"staleness_window"`
		RetryAttempts   int           `yaml:"retry_attempts"`
		RetryBackoff    time.Duration `yaml:"retry_backoff"`
	} `yaml:"sync"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Path returns the config file location from the environment or DefaultPath.
func Path() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	return DefaultPath
}

// LoadFromFile loads config from a YAML file, applies environment overrides and defaults,
// and validates required fields.
func LoadFromFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := parseYAML(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}

	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}

	if cfg.Redis.URL == "" {
		cfg.Redis.URL = "redis://localhost:6379/0"
	}

	if cfg.Services.RideServicePort == 0 {
		cfg.Services.RideServicePort = 3000
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StorePostgres
	}
	if cfg.Notifier.Driver == "" {
		cfg.Notifier.Driver = NotifierRabbitMQ
	}

	if cfg.Sync.PollInterval == 0 {
		cfg.Sync.PollInterval = 10 * time.Second
	}
	if cfg.Sync.StalenessWindow == 0 {
		cfg.Sync.StalenessWindow = 3 * cfg.Sync.PollInterval
	}
	if cfg.Sync.RetryAttempts == 0 {
		cfg.Sync.RetryAttempts = 3
	}
	if cfg.Sync.RetryBackoff == 0 {
		cfg.Sync.RetryBackoff = 200 * time.Millisecond
	}

	if cfg.JWT.TTL == 0 {
		cfg.JWT.TTL = 24 * time.Hour
	}
	if cfg.JWT.SecretKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			key = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		cfg.JWT.SecretKey = base64.StdEncoding.EncodeToString(key)
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// validate checks required fields and basic ranges. Only the sections the selected
// drivers need are required.
func (c *Config) validate() error {
	var problems []string

	switch c.Store.Driver {
	case StorePostgres:
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			problems = append(problems, "database.port must be in 1..65535")
		}
		if c.Database.User == "" {
			problems = append(problems, "database.user is required")
		}
		if c.Database.Password == "" {
			problems = append(problems, "database.password is required")
		}
		if c.Database.Name == "" {
			problems = append(problems, "database.database is required")
		}
	case StoreMemory:
	default:
		problems = append(problems, fmt.Sprintf("store.driver must be %s or %s", StorePostgres, StoreMemory))
	}

	switch c.Notifier.Driver {
	case NotifierRabbitMQ:
		if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
			problems = append(problems, "rabbitmq.port must be in 1..65535")
		}
		if c.RabbitMQ.User == "" {
			problems = append(problems, "rabbitmq.user is required")
		}
		if c.RabbitMQ.Password == "" {
			problems = append(problems, "rabbitmq.password is required")
		}
	case NotifierRedis:
		if c.Redis.URL == "" {
			problems = append(problems, "redis.url is required")
		}
	case NotifierMemory:
	default:
		problems = append(problems, fmt.Sprintf("notifier.driver must be %s, %s or %s", NotifierRabbitMQ, NotifierRedis, NotifierMemory))
	}

	if c.Services.RideServicePort <= 0 || c.Services.RideServicePort > 65535 {
		problems = append(problems, "services.ride_service must be in 1..65535")
	}

	if c.Sync.PollInterval < 0 {
		problems = append(problems, "sync.poll_interval must be positive")
	}
	if c.Sync.StalenessWindow < c.Sync.PollInterval {
		problems = append(problems, "sync.staleness_window must not be shorter than sync.poll_interval")
	}
	if c.Sync.RetryAttempts < 1 {
		problems = append(problems, "sync.retry_attempts must be at least 1")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
