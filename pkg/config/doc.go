// Package config loads spendwise configuration from defaults, an optional
// YAML file and environment variables.
//
// # Precedence
//
// Built-in defaults are overlaid by the YAML file named in
// SPENDWISE_CONFIG_FILE, which is in turn overlaid by SPENDWISE_* variables.
//
// Server settings:
//
//	SPENDWISE_ENV="production"  # development exposes error detail
//	SPENDWISE_PORT="3000"
//	SPENDWISE_HEALTH_PORT="9090"
//	SPENDWISE_CORS_ORIGINS="https://app.example.com"
//
// Database settings:
//
//	SPENDWISE_DATABASE_URL="postgres://localhost/spendwise?sslmode=disable"
//	SPENDWISE_DB_CONNECT_TIMEOUT="30s"
//	SPENDWISE_DB_STATEMENT_TIMEOUT="10s"
//
// Auth settings:
//
//	SPENDWISE_JWT_SECRET="..."  # generated per process when empty
//	SPENDWISE_TOKEN_TTL="168h"
//	SPENDWISE_BCRYPT_COST="10"
//	SPENDWISE_ATTEMPT_STORE="memory"  # memory, redis
//	SPENDWISE_REDIS_URL="redis://localhost:6379"
//
// Activity settings:
//
//	SPENDWISE_ACTIVITY_RETENTION_DAYS="90"
//	SPENDWISE_ACTIVITY_AUTO_PURGE="true"
//	SPENDWISE_ARCHIVE_BUCKET="spendwise-activity-archive"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	if cfg.GeneratedSecret {
//		logger.Warn("no JWT secret configured, tokens will not survive a restart")
//	}
package config
