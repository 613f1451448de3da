package config

import (
	"fmt"

	"github.com/emrgen/template/internal/cache"
	"github.com/emrgen/template/internal/compress"
	"github.com/emrgen/template/internal/injectable"
	"github.com/emrgen/template/internal/permission"
	"github.com/emrgen/template/internal/queue"
	"github.com/emrgen/template/internal/store"
	"github.com/emrgen/template/internal/validator"
	"github.com/sirupsen/logrus"
)

// NewResolutionCache builds the redis or in-memory resolution cache.
func NewResolutionCache(cfg *Config) (cache.ResolutionCache, error) {
	switch cfg.CacheBackend {
	case "redis":
		encoder, err := compress.New(cfg.CacheCompression)
		if err != nil {
			return nil, err
		}
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		return cache.NewRedisResolutionCache(client, encoder), nil
	case "memory", "":
		return cache.NewMemoryResolutionCache(cfg.CacheCapacity, cfg.CacheTTL), nil
	default:
		return nil, fmt.Errorf("unsupported CACHE_BACKEND %q", cfg.CacheBackend)
	}
}

// NewRevisionQueue publishes to kafka when brokers are configured, otherwise
// events are only logged.
func NewRevisionQueue(cfg *Config) (queue.RevisionQueue, error) {
	if cfg.KafkaBrokers == "" {
		logrus.Infof("KAFKA_BROKERS not set, revision events are logged only")
		return queue.NewLogQueue(), nil
	}

	return queue.NewKafkaQueue(cfg.KafkaBrokers, cfg.KafkaTopic)
}

func NewValidator(cfg *Config, s store.InjectableStore) *validator.Validator {
	fetcher := injectable.NewFetcher(injectable.NewRegistry(s), cfg.CacheCapacity, cfg.InjectableCacheTTL)

	return validator.New(fetcher, validator.Options{
		MaxDepth:    cfg.ValidationMaxDepth,
		Languages:   cfg.ValidationLanguages,
		PageFormats: cfg.ValidationPageFormats,
	})
}

func NewGate(cfg *Config, s store.MembershipStore) *permission.Gate {
	return permission.Default(s, cfg.SystemAdmins...)
}
