// Package config loads application configuration from a YAML file and
// COURSEHUB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "COURSEHUB_"

// Storage drivers.
const (
	DriverJSONFile = "jsonfile"
	DriverPostgres = "postgres"
)

// Config is the application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	JWT       JWTConfig       `koanf:"jwt"`
	Password  PasswordConfig  `koanf:"password"`
	Storage   StorageConfig   `koanf:"storage"`
	Database  DatabaseConfig  `koanf:"database"`
	CORS      CORSConfig      `koanf:"cors"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

// ServerConfig configures the HTTP servers.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
	// PublicBaseURL, when set, prefixes course image paths instead of the
	// scheme and host of the incoming request.
	PublicBaseURL string `koanf:"public_base_url"`
	ImagesDir     string `koanf:"images_dir"`
	OpenAPIPath   string `koanf:"openapi_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// JWTConfig configures session tokens.
type JWTConfig struct {
	SecretKey     string        `koanf:"secret_key"`
	TokenDuration time.Duration `koanf:"token_duration"`
}

// PasswordConfig configures password hashing.
type PasswordConfig struct {
	BcryptCost int `koanf:"bcrypt_cost"`
}

// StorageConfig selects where users and courses live.
type StorageConfig struct {
	Driver      string `koanf:"driver"`
	UsersFile   string `koanf:"users_file"`
	CoursesFile string `koanf:"courses_file"`
}

// DatabaseConfig configures the PostgreSQL user store.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	MigrationsPath  string        `koanf:"migrations_path"`
}

// CORSConfig configures cross-origin requests.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// RateLimitConfig configures per-client throttling of signup and login.
// RPS of 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `koanf:"rps"`
	Burst int     `koanf:"burst"`
}

// Default returns the configuration used for keys absent from every source.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "3000",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			RequestTimeout:    60 * time.Second,
			ImagesDir:         "images",
			OpenAPIPath:       "api/openapi/openapi.yaml",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		JWT: JWTConfig{
			TokenDuration: time.Hour,
		},
		Password: PasswordConfig{
			BcryptCost: 10,
		},
		Storage: StorageConfig{
			Driver:      DriverJSONFile,
			UsersFile:   "data/users.json",
			CoursesFile: "data/courses.json",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
			MigrationsPath:  "migrations",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:4200"},
		},
		RateLimit: RateLimitConfig{
			RPS:   5,
			Burst: 10,
		},
	}
}

// sections lists top-level keys; env names are split on the longest match.
var sections = []string{"rate_limit", "server", "log", "jwt", "password", "storage", "database", "cors"}

// Load reads configuration from path (if not empty) and then from the
// environment. Environment variables win.
//
//	COURSEHUB_SERVER_PORT=8080          -> server.port
//	COURSEHUB_RATE_LIMIT_RPS=2          -> rate_limit.rps
//	COURSEHUB_CORS_ALLOWED_ORIGINS=a,b  -> cors.allowed_origins
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	// lists from a source replace the default instead of merging into it
	if k.Exists("cors.allowed_origins") {
		cfg.CORS.AllowedOrigins = nil
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv resolves the config file from COURSEHUB_CONFIG and loads it.
func LoadFromEnv() (*Config, error) {
	return Load(os.Getenv(EnvPrefix + "CONFIG"))
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range sections {
		if rest, ok := strings.CutPrefix(key, section+"_"); ok {
			return section + "." + rest
		}
	}
	return key
}

// Validate checks that the configuration can start the application.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.SecretKey == "" {
		errs = append(errs, errors.New("jwt.secret_key is required"))
	}
	if c.JWT.TokenDuration <= 0 {
		errs = append(errs, errors.New("jwt.token_duration must be positive"))
	}
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, text", c.Log.Format))
	}

	switch c.Storage.Driver {
	case DriverJSONFile:
		if c.Storage.UsersFile == "" {
			errs = append(errs, errors.New("storage.users_file is required for the jsonfile driver"))
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not one of %s, %s", c.Storage.Driver, DriverJSONFile, DriverPostgres))
	}

	if c.RateLimit.RPS < 0 {
		errs = append(errs, errors.New("rate_limit.rps must not be negative"))
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		errs = append(errs, errors.New("rate_limit.burst must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
