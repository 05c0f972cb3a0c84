package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Cheertaboi/jewelry-storefront/pkg/db"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	Backend  BackendConfig
	Auth     AuthConfig
	Session  SessionConfig
	Postgres db.PostgresConfig
	Redis    RedisConfig
	Pricing  PricingConfig
	Checkout CheckoutConfig
	Log      LogConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	CORSAllowOrigins []string
}

// BackendConfig describes the external storefront API
type BackendConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables throttling
	Burst     int
	OffersTTL time.Duration
}

// AuthConfig controls how bearer tokens are read. With an empty JWTSecret
// a token's subject is only trusted once GET /users/me confirms it, and
// production refuses to start without a secret.
type AuthConfig struct {
	JWTSecret    string
	CookieSecure bool
}

// SessionConfig selects the session store
type SessionConfig struct {
	Driver string // memory, postgres
	TTL    time.Duration
}

// RedisConfig holds Redis connection settings for the order-submission guard
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// PricingConfig holds the tax rate and shipping fees
type PricingConfig struct {
	TaxRate      float64
	ExpressFee   float64
	NextDayFee   float64
	StandardDays int
	ExpressDays  int
	NextDayDays  int
}

// CheckoutConfig tunes order submission and payment polling
type CheckoutConfig struct {
	PollInterval      time.Duration
	PollMaxAttempts   int
	SubmitGuardTTL    time.Duration
	StockCheckWorkers int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// Load reads configuration. Priority, highest first:
// STOREFRONT_* environment variables, config.toml, built-in defaults.
func Load(paths ...string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	if len(paths) == 0 {
		paths = []string{".", "/etc/storefront"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:  v.GetDuration("http.shutdown_timeout"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
		},
		Backend: BackendConfig{
			BaseURL:   v.GetString("backend.base_url"),
			Timeout:   v.GetDuration("backend.timeout"),
			RateLimit: v.GetFloat64("backend.rate_limit"),
			Burst:     v.GetInt("backend.burst"),
			OffersTTL: v.GetDuration("backend.offers_ttl"),
		},
		Auth: AuthConfig{
			JWTSecret:    v.GetString("auth.jwt_secret"),
			CookieSecure: v.GetBool("auth.cookie_secure"),
		},
		Session: SessionConfig{
			Driver: v.GetString("session.driver"),
			TTL:    v.GetDuration("session.ttl"),
		},
		Postgres: db.PostgresConfig{
			Host:            v.GetString("postgres.host"),
			Port:            v.GetInt("postgres.port"),
			User:            v.GetString("postgres.user"),
			Password:        v.GetString("postgres.password"),
			DBName:          v.GetString("postgres.dbname"),
			SSLMode:         v.GetString("postgres.sslmode"),
			MaxOpenConns:    v.GetInt("postgres.max_open_conns"),
			MaxIdleConns:    v.GetInt("postgres.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("postgres.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Pricing: PricingConfig{
			TaxRate:      v.GetFloat64("pricing.tax_rate"),
			ExpressFee:   v.GetFloat64("pricing.express_fee"),
			NextDayFee:   v.GetFloat64("pricing.next_day_fee"),
			StandardDays: v.GetInt("pricing.standard_days"),
			ExpressDays:  v.GetInt("pricing.express_days"),
			NextDayDays:  v.GetInt("pricing.next_day_days"),
		},
		Checkout: CheckoutConfig{
			PollInterval:      v.GetDuration("checkout.poll_interval"),
			PollMaxAttempts:   v.GetInt("checkout.poll_max_attempts"),
			SubmitGuardTTL:    v.GetDuration("checkout.submit_guard_ttl"),
			StockCheckWorkers: v.GetInt("checkout.stock_check_workers"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "storefront")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 90*time.Second) // payment polling holds the response
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 15*time.Second)

	v.SetDefault("backend.base_url", "http://localhost:5000/api")
	v.SetDefault("backend.timeout", 15*time.Second)
	v.SetDefault("backend.rate_limit", 50.0)
	v.SetDefault("backend.burst", 20)
	v.SetDefault("backend.offers_ttl", 5*time.Minute)

	v.SetDefault("session.driver", "memory")
	v.SetDefault("session.ttl", 72*time.Hour)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.dbname", "storefront")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 20)
	v.SetDefault("postgres.max_idle_conns", 10)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("pricing.tax_rate", 0.03)
	v.SetDefault("pricing.express_fee", 150.0)
	v.SetDefault("pricing.next_day_fee", 250.0)
	v.SetDefault("pricing.standard_days", 7)
	v.SetDefault("pricing.express_days", 3)
	v.SetDefault("pricing.next_day_days", 1)

	v.SetDefault("checkout.poll_interval", 3*time.Second)
	v.SetDefault("checkout.poll_max_attempts", 20)
	v.SetDefault("checkout.submit_guard_ttl", 2*time.Minute)
	v.SetDefault("checkout.stock_check_workers", 4)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
}

func (c *Config) validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	switch c.Session.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("session.driver must be memory or postgres, got %q", c.Session.Driver)
	}
	if c.Pricing.TaxRate < 0 || c.Pricing.TaxRate >= 1 {
		return fmt.Errorf("pricing.tax_rate must be in [0, 1), got %f", c.Pricing.TaxRate)
	}
	if c.Pricing.ExpressFee < 0 || c.Pricing.NextDayFee < 0 {
		return fmt.Errorf("pricing shipping fees cannot be negative")
	}
	if c.Checkout.PollMaxAttempts <= 0 {
		return fmt.Errorf("checkout.poll_max_attempts must be positive")
	}
	if c.Checkout.PollInterval <= 0 {
		return fmt.Errorf("checkout.poll_interval must be positive")
	}
	if c.Postgres.MaxIdleConns > c.Postgres.MaxOpenConns {
		return fmt.Errorf("postgres.max_idle_conns (%d) cannot exceed postgres.max_open_conns (%d)",
			c.Postgres.MaxIdleConns, c.Postgres.MaxOpenConns)
	}

	if c.App.Env == "production" {
		if !c.Auth.CookieSecure {
			return fmt.Errorf("auth.cookie_secure must be true in production")
		}
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is required in production")
		}
		if c.Session.Driver == "postgres" && c.Postgres.SSLMode == "disable" {
			return fmt.Errorf("postgres.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("http.cors_allow_origins cannot be '*' in production")
			}
		}
	}
	return nil
}

// IsProduction reports whether the app runs with production safeguards
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
