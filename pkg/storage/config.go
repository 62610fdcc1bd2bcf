package storage

import "time"

// Config for the storage backend.
type Config struct {
	Driver string `yaml:"driver"` // "postgres" or "sqlite3"
	DSN    string `yaml:"dsn"`

	MaxConns    int           `yaml:"max_conns"`
	MinConns    int           `yaml:"min_conns"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxLifetime time.Duration `yaml:"max_lifetime"`
	MaxIdleTime time.Duration `yaml:"max_idle_time"`

	// Redis backs distributed rate limiting; optional.
	RedisURL        string `yaml:"redis_url"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisMaxRetries int    `yaml:"redis_max_retries"`
	RedisPoolSize   int    `yaml:"redis_pool_size"`

	// Role permission cache used by the RBAC resolver.
	RoleCacheSize int           `yaml:"role_cache_size"`
	RoleCacheTTL  time.Duration `yaml:"role_cache_ttl"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Driver:          "postgres",
		DSN:             "postgres://localhost/taskcore?sslmode=disable",
		MaxConns:        20,
		MinConns:        2,
		Timeout:         10 * time.Second,
		MaxLifetime:     time.Hour,
		MaxIdleTime:     10 * time.Minute,
		RedisMaxRetries: 3,
		RedisPoolSize:   10,
		RoleCacheSize:   256,
		RoleCacheTTL:    5 * time.Minute,
	}
}
