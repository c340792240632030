package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// parseYAML decodes r into cfg. Unknown keys are rejected so typos surface at startup.
func parseYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadDotEnv loads a .env file into the process environment when present. Variables that
// are already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// applyEnv overrides file values with environment variables.
func applyEnv(cfg *Config) error {
	var problems []string

	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s must be int", key))
				return
			}
			*dst = n
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s must be a duration", key))
				return
			}
			*dst = d
		}
	}

	setString("DB_HOST", &cfg.Database.Host)
	setInt("DB_PORT", &cfg.Database.Port)
	setString("DB_USER", &cfg.Database.User)
	setString("DB_PASSWORD", &cfg.Database.Password)
	setString("DB_NAME", &cfg.Database.Name)

	setString("RABBITMQ_HOST", &cfg.RabbitMQ.Host)
	setInt("RABBITMQ_PORT", &cfg.RabbitMQ.Port)
	setString("RABBITMQ_USER", &cfg.RabbitMQ.User)
	setString("RABBITMQ_PASSWORD", &cfg.RabbitMQ.Password)

	setString("REDIS_URL", &cfg.Redis.URL)
	setString("JWT_SECRET", &cfg.JWT.SecretKey)
	setString("STORE_DRIVER", &cfg.Store.Driver)
	setString("NOTIFIER_DRIVER", &cfg.Notifier.Driver)
	setDuration("POLL_INTERVAL", &cfg.Sync.PollInterval)
	setString("LOG_LEVEL", &cfg.Log.Level)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
