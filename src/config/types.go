package config

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

type Environment string

const (
	Live Environment = "live"
	Beta Environment = "beta"
	Dev  Environment = "dev"
)

type SiteConfig struct {
	Env         Environment
	Addr        string
	PrivateAddr string
	BaseUrl     string
	LogLevel    zerolog.Level
	LogFormat   string
	Postgres    PostgresConfig
	Email       EmailConfig
	MailQueue   MailQueueConfig
	Admin       AdminConfig
	Redis       RedisConfig
	Archive     ArchiveConfig
	Brand       BrandConfig
}

type PostgresConfig struct {
	URL      string
	User     string
	Password string
	Hostname string
	Port     int
	DbName   string
	LogLevel tracelog.LogLevel
	MinConn  int32
	MaxConn  int32
}

// DSN prefers a full connection URL when one is configured.
func (info PostgresConfig) DSN() string {
	if info.URL != "" {
		return info.URL
	}
	return fmt.Sprintf("user=%s password=%s host=%s port=%d dbname=%s", info.User, info.Password, info.Hostname, info.Port, info.DbName)
}

func (info PostgresConfig) Configured() bool {
	return info.URL != "" || (info.Hostname != "" && info.DbName != "")
}

type EmailConfig struct {
	TenantID      string
	ClientID      string
	ClientSecret  string
	SenderAddress string
	FromName      string
	AdminAddress  string

	// Every outgoing message goes here instead of its real recipient when set.
	ForceToAddress string

	GraphBaseURL string
	TokenURL     string
}

func (info EmailConfig) Configured() bool {
	return info.TenantID != "" && info.ClientID != "" && info.ClientSecret != "" && info.SenderAddress != ""
}

type MailQueueConfig struct {
	FetchLimit   int
	BatchSize    int
	BatchDelay   time.Duration
	PollInterval time.Duration
}

type AdminConfig struct {
	Token     string
	DiagToken string
}

type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	LimitPerMinute int
}

func (info RedisConfig) Configured() bool {
	return info.Addr != ""
}

type ArchiveConfig struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

func (info ArchiveConfig) Configured() bool {
	return info.Bucket != ""
}

type BrandConfig struct {
	Name  string
	Color string
}
