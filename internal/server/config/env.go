package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// envFiles are loaded without overriding variables already set.
var envFiles = []string{".env", ".env.local"}

// parseEnv overlays Config with environment variables after loading any
// present .env files. Unparseable numeric values are ignored.
func parseEnv(c *Config) {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}

	str := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	str(&c.HTTPAddr, "HTTP_ADDR")
	str(&c.DatabaseDSN, "DATABASE_URL")
	str(&c.VaultSecret, "ENCRYPTION_SECRET")
	str(&c.JWTSecret, "JWT_SECRET")
	str(&c.PublicBaseURL, "PUBLIC_BASE_URL")
	str(&c.CronSecret, "CRON_SECRET")
	str(&c.CronSchedule, "CRON_SCHEDULE")
	str(&c.DataDir, "DATA_DIR")
	str(&c.MediaBackend, "MEDIA_BACKEND")
	str(&c.S3Bucket, "S3_BUCKET")
	str(&c.S3Region, "S3_REGION")
	str(&c.S3Endpoint, "S3_ENDPOINT")
	str(&c.S3AccessKey, "S3_ACCESS_KEY")
	str(&c.S3SecretKey, "S3_SECRET_KEY")
	str(&c.S3CacheDir, "S3_CACHE_DIR")
	str(&c.LockMode, "LOCK_MODE")
	str(&c.RedisAddr, "REDIS_ADDR")
	str(&c.RedisPassword, "REDIS_PASSWORD")
	str(&c.XClientID, "X_CLIENT_ID")
	str(&c.XClientSecret, "X_CLIENT_SECRET")
	str(&c.LogLevel, "LOG_LEVEL")
	str(&c.LogFormat, "LOG_FORMAT")

	if v, ok := os.LookupEnv("SELF_HOSTED"); ok {
		c.SelfHosted = v == "true"
	}
	if v, err := strconv.Atoi(os.Getenv("PUBLISH_CONCURRENCY")); err == nil {
		c.PublishConcurrency = v
	}
	if v, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		c.RedisDB = v
	}
	if v, err := time.ParseDuration(os.Getenv("LOCK_TTL")); err == nil {
		c.LockTTL = v
	}
	if v, err := time.ParseDuration(os.Getenv("ACCESS_TOKEN_TTL")); err == nil {
		c.AccessTokenTTL = v
	}
}
