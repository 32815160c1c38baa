package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/route"
)

// Config is the authstate-server configuration file.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Routes   RoutesConfig   `yaml:"routes"`
	Seed     SeedConfig     `yaml:"seed_admin"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig enables the login throttle and, with Sessions, server-side
// page sessions. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Sessions bool   `yaml:"sessions"`
}

type AuthConfig struct {
	JWTSecret   string         `yaml:"jwt_secret"`
	Issuer      string         `yaml:"issuer"`
	DefaultTTL  time.Duration  `yaml:"default_ttl"`
	RememberTTL time.Duration  `yaml:"remember_ttl"`
	MaxTTL      time.Duration  `yaml:"max_ttl"`
	Production  bool           `yaml:"production"`
	Audit       bool           `yaml:"audit"`
	Throttle    ThrottleConfig `yaml:"login_throttle"`
}

type ThrottleConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"max_attempts"`
	Cooldown    time.Duration `yaml:"cooldown"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls engine counters. Prometheus serves them at
// /metrics; OTel registers them on the global MeterProvider.
type MetricsConfig struct {
	Enabled    bool `yaml:"enabled"`
	Latency    bool `yaml:"latency"`
	Prometheus bool `yaml:"prometheus"`
	OTel       bool `yaml:"otel"`
}

// RoutesConfig is the page requirement table. Paths no rule covers need a
// session when DefaultAuth is set.
type RoutesConfig struct {
	DefaultAuth bool              `yaml:"default_auth"`
	Public      []string          `yaml:"public"`
	Rules       []route.Rule      `yaml:"rules"`
	Landing     map[string]string `yaml:"landing"`
}

// SeedConfig creates an administrator on an empty directory.
type SeedConfig struct {
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Roles    []string `yaml:"roles"`
}

// Load reads path over the defaults and applies AUTHSTATE_* overrides. An
// empty path uses defaults and the environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration, which lacks only a JWT secret.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{Path: "./data/authstate.db"},
		Auth: AuthConfig{
			Issuer:      "authstate",
			DefaultTTL:  time.Hour,
			RememberTTL: 7 * 24 * time.Hour,
			MaxTTL:      7 * 24 * time.Hour,
			Throttle: ThrottleConfig{
				MaxAttempts: 5,
				Cooldown:    15 * time.Minute,
			},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true, Prometheus: true},
		Routes: RoutesConfig{
			DefaultAuth: true,
			Public:      []string{"/login", "/register"},
			Rules:       route.DefaultRules(),
		},
	}
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("AUTHSTATE_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("AUTHSTATE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("AUTHSTATE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("AUTHSTATE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("AUTHSTATE_PRODUCTION"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("AUTHSTATE_PRODUCTION: %w", err)
		}
		cfg.Auth.Production = b
	}
	return nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, "auth.jwt_secret must be at least 32 characters (set AUTHSTATE_JWT_SECRET)")
	}
	if c.Auth.Throttle.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "auth.login_throttle requires redis.addr")
	}
	if c.Redis.Sessions && c.Redis.Addr == "" {
		errs = append(errs, "redis.sessions requires redis.addr")
	}
	for i, r := range c.Routes.Rules {
		if !strings.HasPrefix(r.Prefix, "/") {
			errs = append(errs, fmt.Sprintf("routes.rules[%d].prefix must start with /", i))
		}
	}
	if (c.Seed.Username == "") != (c.Seed.Password == "") {
		errs = append(errs, "seed_admin needs both username and password")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// EngineConfig translates the file into an Engine configuration.
func (c *Config) EngineConfig() authstate.Config {
	cfg := authstate.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(c.Auth.JWTSecret)
	cfg.JWT.Issuer = c.Auth.Issuer
	cfg.Session.DefaultTTL = c.Auth.DefaultTTL
	cfg.Session.RememberTTL = c.Auth.RememberTTL
	cfg.Session.MaxTTL = c.Auth.MaxTTL
	cfg.Security.ProductionMode = c.Auth.Production
	cfg.Security.EnableLoginThrottle = c.Auth.Throttle.Enabled
	cfg.Security.MaxLoginAttempts = c.Auth.Throttle.MaxAttempts
	cfg.Security.LoginCooldownDuration = c.Auth.Throttle.Cooldown
	cfg.Audit.Enabled = c.Auth.Audit
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Latency
	return cfg
}

// RouteTable builds the page requirement table.
func (c *Config) RouteTable() *route.Table {
	return route.NewTable(route.Requirement{RequiresAuth: c.Routes.DefaultAuth}, c.Routes.Rules...)
}

// Authorizer builds the page authorizer.
func (c *Config) Authorizer() *route.Authorizer {
	a := route.NewAuthorizer()
	if c.Routes.Public != nil {
		a.Public = append([]string(nil), c.Routes.Public...)
	}
	a.Landing = c.Routes.Landing
	return a
}
