// Package config loads planwise settings from an optional YAML file, an
// optional .env file and PLANWISE_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
	BackendGoogle = "google"
)

type Config struct {
	Port      string `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	Timezone  string `yaml:"timezone"`
	Backend   string `yaml:"backend"`

	DBPath   string `yaml:"db_path"`
	MongoURI string `yaml:"mongo_uri"`
	MongoDB  string `yaml:"mongo_db"`
	RedisURL string `yaml:"redis_url"`

	JWTSecret    string        `yaml:"jwt_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	CookieSecure bool          `yaml:"cookie_secure"`

	// AllowedOrigins are host patterns accepted on websocket upgrades.
	AllowedOrigins []string `yaml:"allowed_origins"`

	OpenAIKey     string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIModel   string `yaml:"openai_model"`
}

func Default() *Config {
	return &Config{
		Port:          "8080",
		LogLevel:      "info",
		LogFormat:     "text",
		Timezone:      "UTC",
		Backend:       BackendSQLite,
		DBPath:        "planwise.db",
		MongoDB:       "planwise",
		TokenTTL:      7 * 24 * time.Hour,
		OpenAIBaseURL: "https://api.openai.com/v1",
		OpenAIModel:   "gpt-4o-mini",
	}
}

// Load reads .env (if present), then the YAML file named by
// PLANWISE_CONFIG (if set), then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("PLANWISE_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup("PLANWISE_" + key); ok && v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Port)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("TIMEZONE", &c.Timezone)
	str("BACKEND", &c.Backend)
	str("DB_PATH", &c.DBPath)
	str("MONGO_URI", &c.MongoURI)
	str("MONGO_DB", &c.MongoDB)
	str("REDIS_URL", &c.RedisURL)
	str("JWT_SECRET", &c.JWTSecret)
	str("OPENAI_API_KEY", &c.OpenAIKey)
	str("OPENAI_BASE_URL", &c.OpenAIBaseURL)
	str("OPENAI_MODEL", &c.OpenAIModel)

	if v, ok := lookup("PLANWISE_ALLOWED_ORIGINS"); ok && v != "" {
		c.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}
	if v, ok := lookup("PLANWISE_TOKEN_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PLANWISE_TOKEN_TTL: %w", err))
		} else {
			c.TokenTTL = d
		}
	}
	if v, ok := lookup("PLANWISE_COOKIE_SECURE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PLANWISE_COOKIE_SECURE: %w", err))
		} else {
			c.CookieSecure = b
		}
	}
	return errors.Join(errs...)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case BackendSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("db_path is required for the sqlite backend"))
		}
	case BackendMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("mongo_uri is required for the mongo backend"))
		}
	case BackendGoogle:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("jwt_secret must be at least 32 bytes"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl must be positive"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Location returns the configured display zone, UTC if it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PlannerEnabled reports whether an OpenAI key is configured.
func (c *Config) PlannerEnabled() bool {
	return c.OpenAIKey != ""
}
