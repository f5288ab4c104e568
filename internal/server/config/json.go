package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/crosspost/internal/flagx"
	"github.com/dmitrijs2005/crosspost/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Pointer fields
// distinguish "absent" from a zero value so a partial file only overrides
// what it names.
type JsonConfig struct {
	HTTPAddr       *string         `json:"http_addr"`
	DatabaseDSN    *string         `json:"database_dsn"`
	VaultSecret    *string         `json:"vault_secret"`
	JWTSecret      *string         `json:"jwt_secret"`
	AccessTokenTTL *timex.Duration `json:"access_token_ttl"`
	PublicBaseURL  *string         `json:"public_base_url"`
	SelfHosted     *bool           `json:"self_hosted"`

	CronSecret   *string `json:"cron_secret"`
	CronSchedule *string `json:"cron_schedule"`

	DataDir      *string `json:"data_dir"`
	MediaBackend *string `json:"media_backend"`
	S3Bucket     *string `json:"s3_bucket"`
	S3Region     *string `json:"s3_region"`
	S3Endpoint   *string `json:"s3_endpoint"`
	S3AccessKey  *string `json:"s3_access_key"`
	S3SecretKey  *string `json:"s3_secret_key"`
	S3CacheDir   *string `json:"s3_cache_dir"`

	PublishConcurrency *int            `json:"publish_concurrency"`
	LockMode           *string         `json:"lock_mode"`
	LockTTL            *timex.Duration `json:"lock_ttl"`
	RedisAddr          *string         `json:"redis_addr"`
	RedisPassword      *string         `json:"redis_password"`
	RedisDB            *int            `json:"redis_db"`

	XClientID     *string `json:"x_client_id"`
	XClientSecret *string `json:"x_client_secret"`

	LogLevel  *string `json:"log_level"`
	LogFormat *string `json:"log_format"`
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// parseJson loads the file named by -c or -config, if any, into config.
// An unreadable or malformed file panics, as a bad config must stop startup.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	set(&config.HTTPAddr, c.HTTPAddr)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.VaultSecret, c.VaultSecret)
	set(&config.JWTSecret, c.JWTSecret)
	if c.AccessTokenTTL != nil {
		config.AccessTokenTTL = c.AccessTokenTTL.Duration
	}
	set(&config.PublicBaseURL, c.PublicBaseURL)
	set(&config.SelfHosted, c.SelfHosted)
	set(&config.CronSecret, c.CronSecret)
	set(&config.CronSchedule, c.CronSchedule)
	set(&config.DataDir, c.DataDir)
	set(&config.MediaBackend, c.MediaBackend)
	set(&config.S3Bucket, c.S3Bucket)
	set(&config.S3Region, c.S3Region)
	set(&config.S3Endpoint, c.S3Endpoint)
	set(&config.S3AccessKey, c.S3AccessKey)
	set(&config.S3SecretKey, c.S3SecretKey)
	set(&config.S3CacheDir, c.S3CacheDir)
	set(&config.PublishConcurrency, c.PublishConcurrency)
	set(&config.LockMode, c.LockMode)
	if c.LockTTL != nil {
		config.LockTTL = c.LockTTL.Duration
	}
	set(&config.RedisAddr, c.RedisAddr)
	set(&config.RedisPassword, c.RedisPassword)
	set(&config.RedisDB, c.RedisDB)
	set(&config.XClientID, c.XClientID)
	set(&config.XClientSecret, c.XClientSecret)
	set(&config.LogLevel, c.LogLevel)
	set(&config.LogFormat, c.LogFormat)
}
