package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	GinMode string
	DB      DBConfig

	JWTSecret string
	JWTTTL    time.Duration

	JoinCodeLength   int
	JoinCodeAlphabet string
	JoinCodeAttempts int
	AllowRejoin      bool

	SessionIdleTimeout   time.Duration
	SessionSweepInterval time.Duration

	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string

	LogLevel  string
	LogFormat string
}

type DBConfig struct {
	Driver          string
	DSN             string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Load reads .env when present and builds the configuration from the
// environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func FromEnv() *Config {
	return &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),
		DB: DBConfig{
			Driver:          strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			DSN:             os.Getenv("DB_DSN"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            os.Getenv("DB_PORT"),
			User:            os.Getenv("DB_USER"),
			Password:        os.Getenv("DB_PASSWORD"),
			Name:            getEnv("DB_NAME", "table_ordering"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		JWTSecret:            os.Getenv("JWT_SECRET"),
		JWTTTL:               getEnvDuration("JWT_TTL", 24*time.Hour),
		JoinCodeLength:       getEnvInt("JOIN_CODE_LENGTH", 4),
		JoinCodeAlphabet:     getEnv("JOIN_CODE_ALPHABET", "0123456789"),
		JoinCodeAttempts:     getEnvInt("JOIN_CODE_ATTEMPTS", 5),
		AllowRejoin:          getEnvBool("ALLOW_REJOIN", true),
		SessionIdleTimeout:   getEnvDuration("SESSION_IDLE_TIMEOUT", 4*time.Hour),
		SessionSweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		RateLimitRPS:         getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:       getEnvInt("RATE_LIMIT_BURST", 40),
		CORSOrigins:          getEnvList("CORS_ORIGINS", []string{"*"}),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "text"),
	}
}

func (c *Config) IsRelease() bool {
	return c.GinMode == "release"
}

func (c *Config) Validate() error {
	var problems []string
	switch c.DB.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("DB_DRIVER %q is not one of mysql, postgres, sqlite", c.DB.Driver))
	}
	if c.JWTSecret == "" {
		if c.IsRelease() {
			problems = append(problems, "JWT_SECRET is required in release mode")
		} else {
			c.JWTSecret = "dev-secret-change-me"
		}
	}
	if c.JWTTTL <= 0 {
		problems = append(problems, "JWT_TTL must be positive")
	}
	if c.JoinCodeLength < 1 || c.JoinCodeLength > 16 {
		problems = append(problems, "JOIN_CODE_LENGTH must be between 1 and 16")
	}
	if len([]rune(c.JoinCodeAlphabet)) < 2 {
		problems = append(problems, "JOIN_CODE_ALPHABET needs at least 2 symbols")
	}
	if c.JoinCodeAttempts < 1 {
		problems = append(problems, "JOIN_CODE_ATTEMPTS must be positive")
	}
	if c.SessionSweepInterval <= 0 || c.SessionIdleTimeout <= 0 {
		problems = append(problems, "SESSION_SWEEP_INTERVAL and SESSION_IDLE_TIMEOUT must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		problems = append(problems, "RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// DataSource returns DB_DSN or builds a DSN for the configured driver.
func (d DBConfig) DataSource() string {
	if d.DSN != "" {
		return d.DSN
	}
	switch d.Driver {
	case "mysql":
		port := d.Port
		if port == "" {
			port = "3306"
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			d.User, d.Password, d.Host, port, d.Name)
	case "postgres":
		port := d.Port
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			d.Host, port, d.User, d.Password, d.Name)
	default:
		return d.Name + ".db"
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvFloat(key string, fallback float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
