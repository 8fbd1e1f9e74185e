package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/Belphemur/zipfetch/internal/cache"
	"github.com/Belphemur/zipfetch/internal/config"
)

// cacheDirName is the directory created under the user cache dir for the disk provider.
const cacheDirName = "zipfetch"

// errMemoryCache rejects an in-process cache, which would start empty on every run.
var errMemoryCache = errors.New(`cache provider "memory" does not outlive a single run, use "disk" or "redis"`)

// zerologCacheLogger forwards cache backend errors to zerolog
type zerologCacheLogger struct {
	logger zerolog.Logger
}

func (l zerologCacheLogger) Error(msg string, err error) {
	l.logger.Error().Err(err).Msg(msg)
}

// newArchiveCache builds the configured cache provider, or returns nil when caching is disabled.
func newArchiveCache(cfg *config.Config) (cache.Cache, error) {
	switch cfg.Cache.Provider {
	case "":
		return nil, nil
	case "memory":
		return nil, errMemoryCache
	}

	dir := cfg.Cache.Dir
	if dir == "" && cfg.Cache.Provider == "disk" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate a cache directory, set cache.dir: %w", err)
		}
		dir = filepath.Join(base, cacheDirName)
	}

	logger := config.GetLogger()
	c, err := cache.New(cfg.Cache.Provider, cache.ProviderConfig{
		Size:          cfg.Cache.Size,
		TTL:           config.ParseDuration("cache.ttl", cfg.Cache.TTL, time.Hour),
		Logger:        zerologCacheLogger{logger: logger},
		Dir:           dir,
		RedisAddress:  cfg.Cache.Redis.Address,
		RedisPassword: cfg.Cache.Redis.Password,
		RedisDB:       cfg.Cache.Redis.DB,
		Group:         cfg.Cache.Group,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s archive cache: %w", cfg.Cache.Provider, err)
	}

	logger.Debug().
		Str("provider", cfg.Cache.Provider).
		Str("dir", dir).
		Int("size", cfg.Cache.Size).
		Msg("Archive cache enabled")
	return c, nil
}
