package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel string `yaml:"log_level"`

	Server struct {
		Port           string        `yaml:"port"`
		ReadTimeout    time.Duration `yaml:"read_timeout"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		IdleTimeout    time.Duration `yaml:"idle_timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"server"`

	Identity struct {
		Header string `yaml:"header"`
	} `yaml:"identity"`

	Store struct {
		Driver string `yaml:"driver"` // memory | postgres
	} `yaml:"store"`

	Cache struct {
		Driver        string        `yaml:"driver"` // memory | jetstream
		StateTTL      time.Duration `yaml:"state_ttl"`
		Bucket        string        `yaml:"bucket"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
	} `yaml:"cache"`

	Idempotency struct {
		Window time.Duration `yaml:"window"`
	} `yaml:"idempotency"`

	RateLimit struct {
		PerSecond     float64       `yaml:"per_second"`
		Burst         int           `yaml:"burst"`
		IdleTTL       time.Duration `yaml:"idle_ttl"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
	} `yaml:"rate_limit"`

	Timer struct {
		MaxDuration time.Duration `yaml:"max_duration"`
	} `yaml:"timer"`

	NATS struct {
		Enabled         bool   `yaml:"enabled"`
		URL             string `yaml:"url"`
		EventsStream    string `yaml:"events_stream"`
		EventsSubject   string `yaml:"events_subject"`
		PresenceSubject string `yaml:"presence_subject"`
	} `yaml:"nats"`
}

func defaultConfig() *Config {
	cfg := &Config{LogLevel: "info"}
	cfg.Server.Port = "8080"
	cfg.Server.ReadTimeout = 10 * time.Second
	cfg.Server.WriteTimeout = 10 * time.Second
	cfg.Server.IdleTimeout = 120 * time.Second
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Identity.Header = "X-Actor-ID"
	cfg.Store.Driver = "memory"
	cfg.Cache.Driver = "memory"
	cfg.Cache.StateTTL = 30 * time.Second
	cfg.Cache.Bucket = "TIMER_CACHE"
	cfg.Cache.SweepInterval = time.Minute
	cfg.Idempotency.Window = 15 * time.Second
	cfg.RateLimit.PerSecond = 1
	cfg.RateLimit.Burst = 5
	cfg.RateLimit.IdleTTL = 10 * time.Minute
	cfg.RateLimit.SweepInterval = time.Minute
	cfg.Timer.MaxDuration = 2 * time.Hour
	cfg.NATS.URL = "nats://localhost:4222"
	cfg.NATS.EventsStream = "TIMER_EVENTS"
	cfg.NATS.EventsSubject = "timer.events"
	cfg.NATS.PresenceSubject = "timer.presence"
	return cfg
}

// loadConfig reads the YAML file at path over the defaults. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	applyEnvOverrides(config)

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnvOverrides(c *Config) {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Identity.Header = getEnv("IDENTITY_HEADER", c.Identity.Header)
	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Cache.Driver = getEnv("CACHE_DRIVER", c.Cache.Driver)
	c.Cache.StateTTL = getEnvAsDuration("CACHE_STATE_TTL", c.Cache.StateTTL)
	c.Idempotency.Window = getEnvAsDuration("IDEMPOTENCY_WINDOW", c.Idempotency.Window)
	c.RateLimit.PerSecond = getEnvAsFloat("RATE_LIMIT_PER_SECOND", c.RateLimit.PerSecond)
	c.RateLimit.Burst = getEnvAsInt("RATE_LIMIT_BURST", c.RateLimit.Burst)
	c.Timer.MaxDuration = getEnvAsDuration("TIMER_MAX_DURATION", c.Timer.MaxDuration)
	c.NATS.Enabled = getEnvAsBool("NATS_ENABLED", c.NATS.Enabled)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Cache.Driver {
	case "memory":
	case "jetstream":
		if !c.NATS.Enabled {
			return fmt.Errorf("cache driver jetstream requires nats.enabled")
		}
	default:
		return fmt.Errorf("unknown cache driver %q", c.Cache.Driver)
	}
	if c.Timer.MaxDuration <= 0 {
		return fmt.Errorf("timer.max_duration must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
