package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/taskcore/pkg/auth"
	"github.com/platinummonkey/taskcore/pkg/storage"
)

// FileEnv names the environment variable pointing at an optional YAML file.
const FileEnv = "TASKCORE_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       storage.Config      `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Mail          MailConfig          `yaml:"mail"`
	Observability ObservabilityConfig `yaml:"observability"`
	Janitor       JanitorConfig       `yaml:"janitor"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// AuthConfig holds session and credential settings.
type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	JWTIssuer  string        `yaml:"jwt_issuer"`
	AccessTTL  time.Duration `yaml:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
	BcryptCost int           `yaml:"bcrypt_cost"`

	// Per client IP, per minute, on register/login/refresh.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
	RateLimitBurst     int `yaml:"rate_limit_burst"`

	// An enabled ADMIN account created at startup when absent.
	SeedAdminEmail    string `yaml:"seed_admin_email"`
	SeedAdminPassword string `yaml:"seed_admin_password"`
}

// MailConfig holds verification mail settings. With Enabled false,
// verification links are logged instead of sent.
type MailConfig struct {
	Enabled       bool   `yaml:"enabled"`
	SMTPHost      string `yaml:"smtp_host"`
	SMTPPort      int    `yaml:"smtp_port"`
	SMTPUsername  string `yaml:"smtp_username"`
	SMTPPassword  string `yaml:"smtp_password"`
	From          string `yaml:"from"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel string `yaml:"log_level"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"` // Use insecure gRPC connection
}

// JanitorConfig schedules the dead token purge.
type JanitorConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Schedule  string        `yaml:"schedule"`
	Retention time.Duration `yaml:"retention"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Storage: storage.DefaultConfig(),
		Auth: AuthConfig{
			JWTIssuer:          "taskcore",
			AccessTTL:          15 * time.Minute,
			RefreshTTL:         7 * 24 * time.Hour,
			BcryptCost:         bcrypt.DefaultCost,
			RateLimitPerMinute: 20,
			RateLimitBurst:     5,
		},
		Mail: MailConfig{
			SMTPPort:      587,
			From:          "no-reply@taskcore.local",
			PublicBaseURL: "http://localhost:8080",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "taskcore",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
		Janitor: JanitorConfig{
			Schedule:  "@hourly",
			Retention: 24 * time.Hour,
		},
	}
}

// LoadConfig builds the configuration from defaults, the YAML file named by
// TASKCORE_CONFIG_FILE (if any) and TASKCORE_* environment variables, in
// that order of precedence, and validates the result.
func LoadConfig() (*Config, error) {
	return Load(os.Getenv(FileEnv))
}

// Load is LoadConfig with an explicit file path. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("TASKCORE_HOST", s.Host)
	s.Port = getEnv("TASKCORE_PORT", s.Port)
	s.HealthPort = getEnv("TASKCORE_HEALTH_PORT", s.HealthPort)
	s.ReadTimeout = getEnvDuration("TASKCORE_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("TASKCORE_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("TASKCORE_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("TASKCORE_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)

	st := &c.Storage
	st.Driver = getEnv("TASKCORE_DB_DRIVER", st.Driver)
	st.DSN = getEnv("TASKCORE_DB_DSN", st.DSN)
	st.MaxConns = getEnvInt("TASKCORE_DB_MAX_CONNS", st.MaxConns)
	st.MinConns = getEnvInt("TASKCORE_DB_MIN_CONNS", st.MinConns)
	st.Timeout = getEnvDuration("TASKCORE_DB_TIMEOUT", st.Timeout)
	st.RedisURL = getEnv("TASKCORE_REDIS_URL", st.RedisURL)
	st.RedisPassword = getEnv("TASKCORE_REDIS_PASSWORD", st.RedisPassword)
	st.RedisDB = getEnvInt("TASKCORE_REDIS_DB", st.RedisDB)
	st.RedisPoolSize = getEnvInt("TASKCORE_REDIS_POOL_SIZE", st.RedisPoolSize)
	st.RoleCacheSize = getEnvInt("TASKCORE_ROLE_CACHE_SIZE", st.RoleCacheSize)
	st.RoleCacheTTL = getEnvDuration("TASKCORE_ROLE_CACHE_TTL", st.RoleCacheTTL)

	a := &c.Auth
	a.JWTSecret = getEnv("TASKCORE_JWT_SECRET", a.JWTSecret)
	a.JWTIssuer = getEnv("TASKCORE_JWT_ISSUER", a.JWTIssuer)
	a.AccessTTL = getEnvDuration("TASKCORE_ACCESS_TTL", a.AccessTTL)
	a.RefreshTTL = getEnvDuration("TASKCORE_REFRESH_TTL", a.RefreshTTL)
	a.BcryptCost = getEnvInt("TASKCORE_BCRYPT_COST", a.BcryptCost)
	a.RateLimitPerMinute = getEnvInt("TASKCORE_RATE_LIMIT_PER_MINUTE", a.RateLimitPerMinute)
	a.RateLimitBurst = getEnvInt("TASKCORE_RATE_LIMIT_BURST", a.RateLimitBurst)
	a.SeedAdminEmail = getEnv("TASKCORE_SEED_ADMIN_EMAIL", a.SeedAdminEmail)
	a.SeedAdminPassword = getEnv("TASKCORE_SEED_ADMIN_PASSWORD", a.SeedAdminPassword)

	m := &c.Mail
	m.Enabled = getEnvBool("TASKCORE_MAIL_ENABLED", m.Enabled)
	m.SMTPHost = getEnv("TASKCORE_SMTP_HOST", m.SMTPHost)
	m.SMTPPort = getEnvInt("TASKCORE_SMTP_PORT", m.SMTPPort)
	m.SMTPUsername = getEnv("TASKCORE_SMTP_USERNAME", m.SMTPUsername)
	m.SMTPPassword = getEnv("TASKCORE_SMTP_PASSWORD", m.SMTPPassword)
	m.From = getEnv("TASKCORE_MAIL_FROM", m.From)
	m.PublicBaseURL = getEnv("TASKCORE_PUBLIC_BASE_URL", m.PublicBaseURL)

	o := &c.Observability
	o.LogLevel = getEnv("TASKCORE_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("TASKCORE_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("TASKCORE_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("TASKCORE_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("TASKCORE_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("TASKCORE_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("TASKCORE_OTEL_INSECURE", o.OTelInsecure)

	j := &c.Janitor
	j.Enabled = getEnvBool("TASKCORE_JANITOR_ENABLED", j.Enabled)
	j.Schedule = getEnv("TASKCORE_JANITOR_SCHEDULE", j.Schedule)
	j.Retention = getEnvDuration("TASKCORE_JANITOR_RETENTION", j.Retention)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Storage.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid storage driver: %s (must be postgres or sqlite3)", c.Storage.Driver)
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("storage DSN is required")
	}

	if len(c.Auth.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("JWT secret must be at least %d bytes", auth.MinSecretLength)
	}
	if c.Auth.AccessTTL <= 0 {
		return fmt.Errorf("access token TTL must be positive")
	}
	if c.Auth.RefreshTTL <= c.Auth.AccessTTL {
		return fmt.Errorf("refresh token TTL must exceed the access token TTL")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if (c.Auth.SeedAdminEmail == "") != (c.Auth.SeedAdminPassword == "") {
		return fmt.Errorf("seed admin email and password must be set together")
	}

	if c.Mail.Enabled {
		if c.Mail.SMTPHost == "" {
			return fmt.Errorf("SMTP host is required when mail is enabled")
		}
		if c.Mail.From == "" {
			return fmt.Errorf("mail from address is required when mail is enabled")
		}
	}
	if c.Mail.PublicBaseURL == "" {
		return fmt.Errorf("public base URL is required for verification links")
	}

	if _, err := logrus.ParseLevel(c.Observability.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Observability.LogLevel)
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	if c.Janitor.Enabled {
		if _, err := cron.ParseStandard(c.Janitor.Schedule); err != nil {
			return fmt.Errorf("invalid janitor schedule %q: %w", c.Janitor.Schedule, err)
		}
		if c.Janitor.Retention <= 0 {
			return fmt.Errorf("janitor retention must be positive")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
