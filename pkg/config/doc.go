// Package config provides application configuration management from a YAML
// file and environment variables.
//
// # Overview
//
// Defaults are applied first, then the optional YAML file named by
// TASKCORE_CONFIG_FILE, then TASKCORE_* environment variables. The merged
// result is validated before use.
//
// # Configuration Structure
//
// Server settings:
//
//	TASKCORE_HOST="0.0.0.0"
//	TASKCORE_PORT="8080"
//	TASKCORE_HEALTH_PORT="9090"
//	TASKCORE_READ_TIMEOUT="15s"
//	TASKCORE_WRITE_TIMEOUT="15s"
//
// Storage settings:
//
//	TASKCORE_DB_DRIVER="postgres"  # postgres, sqlite3
//	TASKCORE_DB_DSN="postgres://localhost/taskcore?sslmode=disable"
//	TASKCORE_DB_MAX_CONNS="20"
//	TASKCORE_REDIS_URL="redis://localhost:6379"  # enables distributed rate limiting
//
// Auth settings:
//
//	TASKCORE_JWT_SECRET="at-least-32-bytes-of-secret-material"
//	TASKCORE_ACCESS_TTL="15m"
//	TASKCORE_REFRESH_TTL="168h"
//	TASKCORE_BCRYPT_COST="10"
//	TASKCORE_SEED_ADMIN_EMAIL="admin@example.com"
//	TASKCORE_SEED_ADMIN_PASSWORD="change-me-now"
//
// Mail settings:
//
//	TASKCORE_MAIL_ENABLED="true"
//	TASKCORE_SMTP_HOST="smtp.example.com"
//	TASKCORE_MAIL_FROM="no-reply@example.com"
//	TASKCORE_PUBLIC_BASE_URL="https://tasks.example.com"
//
// Observability settings:
//
//	TASKCORE_LOG_LEVEL="info"  # debug, info, warn, error
//	TASKCORE_METRICS_ENABLED="true"
//	TASKCORE_OTEL_ENABLED="true"
//	TASKCORE_OTEL_ENDPOINT="otel-collector:4317"
//
// Janitor settings:
//
//	TASKCORE_JANITOR_ENABLED="true"
//	TASKCORE_JANITOR_SCHEDULE="@hourly"
//	TASKCORE_JANITOR_RETENTION="24h"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Hot Reload
//
// Watch follows the YAML file and hands every valid reload to a callback.
// Only settings that are safe to change at runtime, such as the log level,
// should be applied from it.
package config
