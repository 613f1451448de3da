package config

import (
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const configFileName = "template"

type Config struct {
	DbDriver    string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CacheBackend     string
	CacheTTL         time.Duration
	CacheCapacity    int
	CacheCompression string

	InjectableCacheTTL time.Duration

	ValidationMaxDepth    int
	ValidationLanguages   []string
	ValidationPageFormats []string

	SweepPublishSchedule string
	SweepArchiveSchedule string
	SweepTimeout         time.Duration

	KafkaBrokers string
	KafkaTopic   string

	SystemAdmins []string

	LogLevel  string
	LogFormat string
}

func defaults(v *viper.Viper) {
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DATABASE_URL", "template.db")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_BACKEND", "memory")
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("CACHE_CAPACITY", 1024)
	v.SetDefault("CACHE_COMPRESSION", "none")
	v.SetDefault("INJECTABLE_CACHE_TTL", "30s")
	v.SetDefault("VALIDATION_MAX_DEPTH", 3)
	v.SetDefault("VALIDATION_LANGUAGES", "en,es")
	v.SetDefault("VALIDATION_PAGE_FORMATS", "A4,LETTER,LEGAL,CUSTOM")
	v.SetDefault("SWEEP_PUBLISH_SCHEDULE", "@every 1m")
	v.SetDefault("SWEEP_ARCHIVE_SCHEDULE", "@every 1m")
	v.SetDefault("SWEEP_TIMEOUT", "30s")
	v.SetDefault("KAFKA_TOPIC", "template.revisions")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

// LoadConfig reads the environment, .env and an optional template.yml in the
// working directory or ./.tmp. Environment variables win.
func LoadConfig() *Config {
	v := viper.New()
	defaults(v)

	v.SetConfigName(configFileName)
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./.tmp")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logrus.Warnf("error reading config file: %v", err)
		}
	}
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		DbDriver:              strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseURL:           v.GetString("DATABASE_URL"),
		RedisAddr:             v.GetString("REDIS_ADDR"),
		RedisPassword:         v.GetString("REDIS_PASSWORD"),
		RedisDB:               v.GetInt("REDIS_DB"),
		CacheBackend:          strings.ToLower(v.GetString("CACHE_BACKEND")),
		CacheTTL:              v.GetDuration("CACHE_TTL"),
		CacheCapacity:         v.GetInt("CACHE_CAPACITY"),
		CacheCompression:      strings.ToLower(v.GetString("CACHE_COMPRESSION")),
		InjectableCacheTTL:    v.GetDuration("INJECTABLE_CACHE_TTL"),
		ValidationMaxDepth:    v.GetInt("VALIDATION_MAX_DEPTH"),
		ValidationLanguages:   list(v.GetString("VALIDATION_LANGUAGES")),
		ValidationPageFormats: list(v.GetString("VALIDATION_PAGE_FORMATS")),
		SweepPublishSchedule:  v.GetString("SWEEP_PUBLISH_SCHEDULE"),
		SweepArchiveSchedule:  v.GetString("SWEEP_ARCHIVE_SCHEDULE"),
		SweepTimeout:          v.GetDuration("SWEEP_TIMEOUT"),
		KafkaBrokers:          v.GetString("KAFKA_BROKERS"),
		KafkaTopic:            v.GetString("KAFKA_TOPIC"),
		SystemAdmins:          list(v.GetString("SYSTEM_ADMINS")),
		LogLevel:              v.GetString("LOG_LEVEL"),
		LogFormat:             strings.ToLower(v.GetString("LOG_FORMAT")),
	}
}

// list splits a comma separated value, dropping blanks.
func list(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
