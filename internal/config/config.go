package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
	"gopkg.in/yaml.v3"
)

const defaultPocketBasePort = "8090"

type Config struct {
	Server struct {
		Port          string `yaml:"port"`
		PublicHost    string `yaml:"public_host"`
		SessionSecret string `yaml:"session_secret"`
		SessionMaxAge string `yaml:"session_max_age"`
		SecureCookie  bool   `yaml:"secure_cookie"`
	} `yaml:"server"`
	PocketBase struct {
		URL             string `yaml:"url"`
		Timeout         string `yaml:"timeout"`
		UsersCollection string `yaml:"users_collection"`
		Breaker         struct {
			MaxFailures uint32 `yaml:"max_failures"`
			OpenTimeout string `yaml:"open_timeout"`
		} `yaml:"breaker"`
	} `yaml:"pocketbase"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL         string `yaml:"ttl"`
		ProgressTTL string `yaml:"progress_ttl"`
	} `yaml:"quiz"`
	Realtime struct {
		Debounce     string `yaml:"debounce"`
		RefreshEvery string `yaml:"refresh_every"`
	} `yaml:"realtime"`
	Monitor struct {
		Interval string `yaml:"interval"`
	} `yaml:"monitor"`
	Security struct {
		Preset string `yaml:"preset"`
	} `yaml:"security"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Tracing struct {
		Endpoint string `yaml:"endpoint"`
		Insecure bool   `yaml:"insecure"`
	} `yaml:"tracing"`
}

// overrides are read from the environment and win over the file when set.
type overrides struct {
	Port          string `env:"PORT"`
	PublicHost    string `env:"PUBLIC_HOST"`
	SessionSecret string `env:"SESSION_SECRET"`
	PocketBaseURL string `env:"POCKETBASE_URL"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	PostgresURL   string `env:"DATABASE_URL"`
	LogLevel      string `env:"LOG_LEVEL"`
	LogFormat     string `env:"LOG_FORMAT"`
	OTLPEndpoint  string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads YAML config from path. A missing path yields the defaults only;
// environment variables (and a .env file, when present) override the file.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	_ = godotenv.Load()
	var ov overrides
	if err := env.Load(&ov, nil); err != nil {
		return cfg, fmt.Errorf("load environment: %w", err)
	}
	cfg.applyOverrides(ov)
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyOverrides(ov overrides) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Server.Port, ov.Port)
	set(&c.Server.PublicHost, ov.PublicHost)
	set(&c.Server.SessionSecret, ov.SessionSecret)
	set(&c.PocketBase.URL, ov.PocketBaseURL)
	set(&c.Redis.Addr, ov.RedisAddr)
	set(&c.Redis.Password, ov.RedisPassword)
	set(&c.Postgres.URL, ov.PostgresURL)
	set(&c.Log.Level, ov.LogLevel)
	set(&c.Log.Format, ov.LogFormat)
	set(&c.Tracing.Endpoint, ov.OTLPEndpoint)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.PocketBase.UsersCollection == "" {
		c.PocketBase.UsersCollection = "users"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Security.Preset == "" {
		c.Security.Preset = "quiz"
	}
}

func (c *Config) validate() error {
	if len(c.Server.SessionSecret) > 0 && len(c.Server.SessionSecret) < 16 {
		return errors.New("server.session_secret must be at least 16 characters")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// PocketBaseURL returns the configured PocketBase URL or derives one from
// the public host the dashboards are served on.
func (c Config) PocketBaseURL() string {
	if c.PocketBase.URL != "" {
		return strings.TrimRight(c.PocketBase.URL, "/")
	}
	return DeriveAPIURL(c.Server.PublicHost)
}

// DeriveAPIURL maps a browser host to the PocketBase URL on the same
// machine. Loopback hosts use localhost; anything else keeps the host and
// switches to port 8090.
func DeriveAPIURL(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	switch host {
	case "", "localhost", "127.0.0.1":
		return "http://localhost:" + defaultPocketBasePort
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return "http://" + host + ":" + defaultPocketBasePort
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
