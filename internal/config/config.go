package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	IdentityModeSession = "session"
	IdentityModeDev     = "dev"

	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Env      string
	Database DatabaseConfig
	Server   ServerConfig
	JWT      JWTConfig
	Redis    RedisConfig
	AWS      AWSConfig
	Logging  LoggingConfig
	CORS     CORSConfig
	Identity IdentityConfig
	Store    StoreConfig
	Routes   RoutesConfig
	Notify   NotifyConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type ServerConfig struct {
	Port string
}

type JWTConfig struct {
	SigningKey string
	Issuer     string
	Expiry     time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	EndpointURL     string // set for localstack
	Bucket          string
	FromEmail       string
}

type LoggingConfig struct {
	Level      string
	Format     string
	Filename   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// IdentityConfig selects how callers are identified. Dev mode trusts an
// override role and must never run in production.
type IdentityConfig struct {
	Mode    string
	DevRole string
}

type StoreConfig struct {
	Driver  string
	Timeout time.Duration
}

// RoutesConfig holds the navigation targets attached to guard redirects.
type RoutesConfig struct {
	LoginPath    string
	FallbackPath string
}

// NotifyConfig controls in-app notices and background delivery. With Async
// off no task queue is used, so status emails and timeline archives are
// skipped. EmbeddedWorker runs the task worker inside the API process.
type NotifyConfig struct {
	TemplateDir    string
	InboxSize      int
	Async          bool
	EmbeddedWorker bool
}

func Load() *Config {
	return &Config{
		Env: getEnv("APP_ENV", "development"),
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			DBName:   getEnv("POSTGRES_DB", "postgres"),
			SSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		JWT: JWTConfig{
			SigningKey: getEnv("JWT_SIGNING_KEY", "default-signing-key-change-in-production"),
			Issuer:     getEnv("JWT_ISSUER", "reliefdesk"),
			Expiry:     getEnvDuration("JWT_EXPIRY", 24*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			EndpointURL:     getEnv("AWS_ENDPOINT_URL", ""),
			Bucket:          getEnv("AWS_S3_BUCKET", "reliefdesk-timelines"),
			FromEmail:       getEnv("AWS_SES_FROM", "no-reply@reliefdesk.org"),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "text"),
			Filename:   getEnv("LOG_FILE", "logs/reliefdesk.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 28),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		CORS: CORSConfig{
			AllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getEnvList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getEnvList("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type", "X-Dev-Role"}),
			ExposedHeaders:   getEnvList("CORS_EXPOSED_HEADERS", []string{"Link"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getEnvInt("CORS_MAX_AGE", 300),
		},
		Identity: IdentityConfig{
			Mode:    strings.ToLower(getEnv("IDENTITY_MODE", IdentityModeSession)),
			DevRole: getEnv("DEV_ROLE", ""),
		},
		Store: StoreConfig{
			Driver:  strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
			Timeout: getEnvDuration("STORE_TIMEOUT", 5*time.Second),
		},
		Routes: RoutesConfig{
			LoginPath:    getEnv("LOGIN_PATH", "/login"),
			FallbackPath: getEnv("FALLBACK_PATH", "/dashboard"),
		},
		Notify: NotifyConfig{
			TemplateDir:    getEnv("EMAIL_TEMPLATE_DIR", "templates/email"),
			InboxSize:      getEnvInt("INBOX_SIZE", 500),
			Async:          getEnvBool("NOTIFY_ASYNC", true),
			EmbeddedWorker: getEnvBool("WORKER_EMBEDDED", false),
		},
	}
}

// Validate rejects combinations that must not reach a running server.
func (c *Config) Validate() error {
	var errs []error

	switch c.Identity.Mode {
	case IdentityModeSession:
	case IdentityModeDev:
		if c.IsProduction() {
			errs = append(errs, errors.New("IDENTITY_MODE=dev is not allowed when APP_ENV=production"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown IDENTITY_MODE %q", c.Identity.Mode))
	}

	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}

	if c.Notify.InboxSize < 1 {
		errs = append(errs, fmt.Errorf("INBOX_SIZE must be positive, got %d", c.Notify.InboxSize))
	}

	if c.IsProduction() && c.JWT.SigningKey == "default-signing-key-change-in-production" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must be set in production"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// comma separated
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
