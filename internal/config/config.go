// Package config загружает конфигурацию сервера из флагов и переменных окружения.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// envPrefix префикс переменных окружения, они переопределяют флаги
const envPrefix = "MAPKEEPER_"

// ErrMissingJWTSecret возвращается, если не задан секрет для подписи токенов
var ErrMissingJWTSecret = errors.New("jwt secret is required")

// Config конфигурация сервера
type Config struct {
	Addr            string        // адрес HTTP сервера
	DBPath          string        // путь к файлу SQLite
	JWTSecret       string        // секрет HMAC для access token
	LogLevel        string        // debug, info, warn или error
	AccessTokenTTL  time.Duration // время жизни access token
	ShutdownTimeout time.Duration // ожидание активных запросов при остановке
	AuthRateLimit   int           // запросов в минуту на register/login с одного IP
	UploadRateLimit int           // загрузок diff в минуту на пользователя
	ShowVersion     bool
}

// Load разбирает args (без имени программы), затем применяет переменные окружения.
// getenv подменяется в тестах.
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("mapkeeper-server", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", ":8080", "HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db", "mapkeeper.db", "Path to SQLite database")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "", "Secret for signing access tokens")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.DurationVar(&cfg.AccessTokenTTL, "token-ttl", 15*time.Minute, "Access token lifetime")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	fs.IntVar(&cfg.AuthRateLimit, "auth-rate-limit", 10, "Auth requests per minute per IP")
	fs.IntVar(&cfg.UploadRateLimit, "upload-rate-limit", 60, "Diff uploads per minute per user")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"ADDR":       &c.Addr,
		"DB":         &c.DBPath,
		"JWT_SECRET": &c.JWTSecret,
		"LOG_LEVEL":  &c.LogLevel,
	}
	for name, dst := range strs {
		if v := getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"TOKEN_TTL":        &c.AccessTokenTTL,
		"SHUTDOWN_TIMEOUT": &c.ShutdownTimeout,
	}
	for name, dst := range durations {
		v := getenv(envPrefix + name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", envPrefix, name, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"AUTH_RATE_LIMIT":   &c.AuthRateLimit,
		"UPLOAD_RATE_LIMIT": &c.UploadRateLimit,
	}
	for name, dst := range ints {
		v := getenv(envPrefix + name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", envPrefix, name, err)
		}
		*dst = n
	}

	return nil
}

// Validate проверяет конфигурацию перед запуском
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive, got %s", c.AccessTokenTTL)
	}
	if c.AuthRateLimit <= 0 || c.UploadRateLimit <= 0 {
		return errors.New("rate limits must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel переводит LogLevel в уровень slog
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// LoadFromOS читает os.Args и окружение процесса
func LoadFromOS() (*Config, error) {
	return Load(os.Args[1:], os.Getenv)
}
