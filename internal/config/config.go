package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

type Config struct {
	DB       DBConfig
	API      APIConfig
	LogLevel string
}

type DBConfig struct {
	Driver            string
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	Charset           string
	SSLMode           string
	ConnectionTimeout time.Duration
}

type APIConfig struct {
	Host            string
	Port            int
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
}

// Addr returns the listen address for the HTTP server.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func defaults(v *viper.Viper) {
	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_CHARSET", "utf8mb4")
	v.SetDefault("DB_CONNECTION_TIMEOUT", "10")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("API_HOST", "0.0.0.0")
	v.SetDefault("API_PORT", "8000")
	v.SetDefault("API_MAX_BODY_BYTES", "10485760")
	v.SetDefault("API_SHUTDOWN_TIMEOUT", "15")
	v.SetDefault("LOG_LEVEL", "info")
}

// Load reads the configuration from the process environment. Callers that
// want a .env file honoured should load it with godotenv first.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	defaults(v)

	cfg := &Config{
		DB: DBConfig{
			Driver:   strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
			Host:     v.GetString("DB_HOST"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			Charset:  v.GetString("DB_CHARSET"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		API: APIConfig{
			Host: v.GetString("API_HOST"),
		},
		LogLevel: strings.ToLower(v.GetString("LOG_LEVEL")),
	}

	var err error
	if cfg.DB.Port, err = intVar(v, "DB_PORT"); err != nil {
		return nil, err
	}
	if cfg.API.Port, err = intVar(v, "API_PORT"); err != nil {
		return nil, err
	}

	timeout, err := intVar(v, "DB_CONNECTION_TIMEOUT")
	if err != nil {
		return nil, err
	}
	cfg.DB.ConnectionTimeout = time.Duration(timeout) * time.Second

	shutdown, err := intVar(v, "API_SHUTDOWN_TIMEOUT")
	if err != nil {
		return nil, err
	}
	cfg.API.ShutdownTimeout = time.Duration(shutdown) * time.Second

	maxBody, err := intVar(v, "API_MAX_BODY_BYTES")
	if err != nil {
		return nil, err
	}
	cfg.API.MaxBodyBytes = int64(maxBody)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every missing required variable at once.
func (c *Config) Validate() error {
	var missing []string
	switch c.DB.Driver {
	case DriverPostgres:
		if c.DB.Host == "" {
			missing = append(missing, "DB_HOST")
		}
		if c.DB.User == "" {
			missing = append(missing, "DB_USER")
		}
		if c.DB.Password == "" {
			missing = append(missing, "DB_PASSWORD")
		}
		if c.DB.Name == "" {
			missing = append(missing, "DB_NAME")
		}
	case DriverSQLite:
		if c.DB.Name == "" {
			missing = append(missing, "DB_NAME")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.DB.ConnectionTimeout <= 0 {
		return fmt.Errorf("DB_CONNECTION_TIMEOUT must be positive")
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("API_PORT out of range: %d", c.API.Port)
	}
	if c.API.MaxBodyBytes <= 0 {
		return fmt.Errorf("API_MAX_BODY_BYTES must be positive")
	}
	return nil
}

func intVar(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be an integer", key, raw)
	}
	return n, nil
}
