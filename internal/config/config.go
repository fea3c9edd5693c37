package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"

	EventsMemory = "memory"
	EventsRedis  = "redis"

	SMSLog     = "log"
	SMSAuthKey = "authkey"
)

// Config is the full runtime configuration of the API.
type Config struct {
	AppEnv          string
	Port            string
	APIPrefix       string
	LogLevel        string
	ShutdownTimeout time.Duration

	StoreDriver  string
	DB           *DBConfig
	Mongo        MongoConfig
	RedisURL     string
	EventsDriver string

	JWT JWTConfig
	OTP OTPConfig
	SMS SMSConfig

	LegacyPublicExpenses bool
}

// JWTConfig holds the session token settings.
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Algorithm  string
}

// OTPConfig holds the one-time code settings.
type OTPConfig struct {
	TestMode      bool
	RatePerMinute int
}

// MongoConfig holds the MongoDB connection settings.
type MongoConfig struct {
	URI      string
	Database string
}

// SMSConfig selects and configures the SMS provider.
type SMSConfig struct {
	Provider    string
	APIKey      string
	Sender      string
	CountryCode string
	BaseURL     string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:       getEnv("APP_ENV", "development"),
		Port:         getEnv("SERVER_PORT", "8080"),
		APIPrefix:    getEnv("API_PREFIX", "/api"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		StoreDriver:  strings.ToLower(getEnv("STORE_DRIVER", StorePostgres)),
		RedisURL:     os.Getenv("REDIS_URL"),
		EventsDriver: strings.ToLower(getEnv("EVENTS_DRIVER", EventsMemory)),
		Mongo: MongoConfig{
			URI:      os.Getenv("MONGO_URI"),
			Database: getEnv("MONGO_DATABASE", "expense_tracker"),
		},
		JWT: JWTConfig{
			Secret:    os.Getenv("JWT_SECRET"),
			Algorithm: strings.ToUpper(getEnv("JWT_ALGORITHM", "HS256")),
		},
		SMS: SMSConfig{
			Provider:    strings.ToLower(getEnv("SMS_PROVIDER", SMSLog)),
			APIKey:      os.Getenv("AUTHKEY_API_KEY"),
			Sender:      getEnv("AUTHKEY_SENDER", "13616"),
			CountryCode: getEnv("AUTHKEY_COUNTRY_CODE", "+91"),
			BaseURL:     getEnv("AUTHKEY_URL", "https://console.authkey.io/request"),
		},
	}

	var err error
	if cfg.ShutdownTimeout, err = time.ParseDuration(getEnv("SHUTDOWN_TIMEOUT", "5s")); err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}
	if cfg.JWT.Expiration, err = ParseExpiration(getEnv("JWT_EXPIRE", "7d")); err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRE: %w", err)
	}
	if cfg.OTP.TestMode, err = getBool("OTP_TEST_MODE", false); err != nil {
		return nil, err
	}
	if cfg.LegacyPublicExpenses, err = getBool("LEGACY_PUBLIC_EXPENSES", false); err != nil {
		return nil, err
	}
	if cfg.OTP.RatePerMinute, err = strconv.Atoi(getEnv("OTP_RATE_LIMIT", "5")); err != nil {
		return nil, fmt.Errorf("invalid OTP_RATE_LIMIT: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.StoreDriver == StorePostgres {
		if cfg.DB, err = LoadDBConfig(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET not set in environment")
	}
	switch c.JWT.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported JWT_ALGORITHM %q", c.JWT.Algorithm)
	}
	switch c.StoreDriver {
	case StoreMemory, StorePostgres:
	case StoreMongo:
		if c.Mongo.URI == "" {
			return errors.New("MONGO_URI is required when STORE_DRIVER=mongo")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.EventsDriver {
	case EventsMemory:
	case EventsRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when EVENTS_DRIVER=redis")
		}
	default:
		return fmt.Errorf("unsupported EVENTS_DRIVER %q", c.EventsDriver)
	}
	switch c.SMS.Provider {
	case SMSLog:
		if c.AppEnv == "production" {
			return errors.New("SMS_PROVIDER=log is not allowed when APP_ENV=production")
		}
	case SMSAuthKey:
		if c.SMS.APIKey == "" {
			return errors.New("AUTHKEY_API_KEY is required when SMS_PROVIDER=authkey")
		}
	default:
		return fmt.Errorf("unsupported SMS_PROVIDER %q", c.SMS.Provider)
	}
	if c.OTP.RatePerMinute < 0 {
		return errors.New("OTP_RATE_LIMIT must not be negative")
	}
	return nil
}

// Address returns the listen address for the HTTP server.
func (c *Config) Address() string {
	return ":" + c.Port
}

// ParseExpiration accepts Go durations ("36h") and whole days ("7d").
func ParseExpiration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if days, ok := strings.CutSuffix(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("bad day count %q", v)
		}
		if n <= 0 {
			return 0, fmt.Errorf("expiration must be positive, got %q", v)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("expiration must be positive, got %q", v)
	}
	return d, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
