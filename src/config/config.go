package config

import (
	"strings"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

var Config SiteConfig

func init() {
	Config = Load()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SITE_ENV", string(Dev))
	v.SetDefault("SITE_ADDR", ":9001")
	v.SetDefault("SITE_PRIVATE_ADDR", ":9494")
	v.SetDefault("SITE_BASE_URL", "http://localhost:9001")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "pretty")

	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_LOG_LEVEL", "warn")
	v.SetDefault("POSTGRES_MIN_CONN", 2)
	v.SetDefault("POSTGRES_MAX_CONN", 10)

	v.SetDefault("EMAIL_FROM_NAME", "Lumina Goods")
	v.SetDefault("MS_GRAPH_BASE_URL", "https://graph.microsoft.com")

	v.SetDefault("MAILQUEUE_FETCH_LIMIT", 50)
	v.SetDefault("MAILQUEUE_BATCH_SIZE", 5)
	v.SetDefault("MAILQUEUE_BATCH_DELAY", time.Second)
	v.SetDefault("MAILQUEUE_POLL_INTERVAL", time.Duration(0))

	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 10)

	v.SetDefault("ARCHIVE_S3_REGION", "us-east-1")

	v.SetDefault("BRAND_NAME", "Lumina Goods")
	v.SetDefault("BRAND_COLOR", "#c2603a")
}

// Load reads configuration from the environment. Unknown or malformed values fall back to defaults.
func Load() SiteConfig {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return SiteConfig{
		Env:         Environment(strings.ToLower(v.GetString("SITE_ENV"))),
		Addr:        v.GetString("SITE_ADDR"),
		PrivateAddr: v.GetString("SITE_PRIVATE_ADDR"),
		BaseUrl:     strings.TrimRight(v.GetString("SITE_BASE_URL"), "/"),
		LogLevel:    parseLogLevel(v.GetString("LOG_LEVEL")),
		LogFormat:   v.GetString("LOG_FORMAT"),
		Postgres: PostgresConfig{
			URL:      v.GetString("DATABASE_URL"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			Hostname: v.GetString("POSTGRES_HOST"),
			Port:     v.GetInt("POSTGRES_PORT"),
			DbName:   v.GetString("POSTGRES_DB"),
			LogLevel: parseTraceLevel(v.GetString("POSTGRES_LOG_LEVEL")),
			MinConn:  v.GetInt32("POSTGRES_MIN_CONN"),
			MaxConn:  v.GetInt32("POSTGRES_MAX_CONN"),
		},
		Email: EmailConfig{
			TenantID:       v.GetString("MS_GRAPH_TENANT_ID"),
			ClientID:       v.GetString("MS_GRAPH_CLIENT_ID"),
			ClientSecret:   v.GetString("MS_GRAPH_CLIENT_SECRET"),
			SenderAddress:  v.GetString("MS_GRAPH_SENDER"),
			FromName:       v.GetString("EMAIL_FROM_NAME"),
			AdminAddress:   v.GetString("EMAIL_ADMIN_ADDRESS"),
			ForceToAddress: v.GetString("EMAIL_FORCE_TO"),
			GraphBaseURL:   strings.TrimRight(v.GetString("MS_GRAPH_BASE_URL"), "/"),
			TokenURL:       v.GetString("MS_GRAPH_TOKEN_URL"),
		},
		MailQueue: MailQueueConfig{
			FetchLimit:   v.GetInt("MAILQUEUE_FETCH_LIMIT"),
			BatchSize:    v.GetInt("MAILQUEUE_BATCH_SIZE"),
			BatchDelay:   v.GetDuration("MAILQUEUE_BATCH_DELAY"),
			PollInterval: v.GetDuration("MAILQUEUE_POLL_INTERVAL"),
		},
		Admin: AdminConfig{
			Token:     v.GetString("ADMIN_TOKEN"),
			DiagToken: v.GetString("ADMIN_DIAG_TOKEN"),
		},
		Redis: RedisConfig{
			Addr:           v.GetString("REDIS_ADDR"),
			Password:       v.GetString("REDIS_PASSWORD"),
			DB:             v.GetInt("REDIS_DB"),
			LimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		},
		Archive: ArchiveConfig{
			Bucket:    v.GetString("ARCHIVE_S3_BUCKET"),
			Region:    v.GetString("ARCHIVE_S3_REGION"),
			Endpoint:  v.GetString("ARCHIVE_S3_ENDPOINT"),
			AccessKey: v.GetString("ARCHIVE_S3_ACCESS_KEY"),
			SecretKey: v.GetString("ARCHIVE_S3_SECRET_KEY"),
		},
		Brand: BrandConfig{
			Name:  v.GetString("BRAND_NAME"),
			Color: v.GetString("BRAND_COLOR"),
		},
	}
}

func parseLogLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return level
}

func parseTraceLevel(s string) tracelog.LogLevel {
	level, err := tracelog.LogLevelFromString(strings.ToLower(s))
	if err != nil {
		return tracelog.LogLevelWarn
	}
	return level
}
