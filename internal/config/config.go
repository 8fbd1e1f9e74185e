package config

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultUserAgent is the default User-Agent string sent with archive requests.
const DefaultUserAgent = "zipfetch/1.0 (+https://github.com/Belphemur/zipfetch)"

type Config struct {
	ProxyConnectionString string `mapstructure:"proxy_connection_string"`
	ClientTimeout         string `mapstructure:"client_timeout"` // Go duration string, bounds the wait for response headers
	UserAgent             string `mapstructure:"user_agent"`
	LogLevel              string `mapstructure:"log_level"`
	TempDir               string `mapstructure:"temp_dir"`
	MaxArchiveSize        int64  `mapstructure:"max_archive_size"`   // bytes, 0 = unlimited
	MaxExtractedSize      int64  `mapstructure:"max_extracted_size"` // bytes, 0 = unlimited
	MaxEntries            int    `mapstructure:"max_entries"`        // 0 = unlimited
	SentryDSN             string `mapstructure:"sentry_dsn"`
	Cache                 struct {
		Provider      string `mapstructure:"provider"` // "", "disk" or "redis"
		Dir           string `mapstructure:"dir"`      // disk provider, defaults to the user cache dir
		Size          int    `mapstructure:"size"`
		TTL           string `mapstructure:"ttl"`
		MaxEntryBytes int64  `mapstructure:"max_entry_bytes"`
		Group         string `mapstructure:"group"`
		Redis         struct {
			Address  string `mapstructure:"address"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
		} `mapstructure:"redis"`
	} `mapstructure:"cache"`
	Metrics struct {
		Textfile string `mapstructure:"textfile"`
	} `mapstructure:"metrics"`
}

// flagKeys maps CLI flag names to their configuration keys.
var flagKeys = map[string]string{
	"log-level":        "log_level",
	"temp-dir":         "temp_dir",
	"max-archive-size": "max_archive_size",
	"proxy":            "proxy_connection_string",
	"metrics-textfile": "metrics.textfile",
}

var (
	globalConfig *Config
	logger       zerolog.Logger
)

func init() {
	// stdout is reserved for the report line
	logger = zerolog.New(zerolog.ConsoleWriter{
		Out:     os.Stderr,
		NoColor: false,
	}).With().Timestamp().Logger()

	if err := Reload(nil); err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}
}

// Reload reads the configuration again, letting the given flags override file
// and environment values, and reapplies the log level.
func Reload(flags *pflag.FlagSet) error {
	config, err := LoadConfig(flags)
	if err != nil {
		return err
	}

	level := zerolog.InfoLevel
	if config.LogLevel != "" {
		if parsedLevel, err := zerolog.ParseLevel(config.LogLevel); err == nil {
			level = parsedLevel
		} else {
			logger.Warn().Str("invalid_level", config.LogLevel).Msg("Invalid log level, using default 'info'")
		}
	}

	zerolog.SetGlobalLevel(level)
	logger = logger.Level(level)

	logger.Debug().Str("level", level.String()).Msg("Logging configured")
	globalConfig = config
	return nil
}

func LoadConfig(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("log_level", "LOG_LEVEL")

	v.SetDefault("client_timeout", "30s")
	v.SetDefault("log_level", "info")
	v.SetDefault("temp_dir", ".")
	v.SetDefault("max_archive_size", 0)
	v.SetDefault("max_extracted_size", 0)
	v.SetDefault("max_entries", 0)
	v.SetDefault("proxy_connection_string", "")
	v.SetDefault("user_agent", "")
	v.SetDefault("sentry_dsn", "")
	v.SetDefault("cache.provider", "")
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.size", 16)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.max_entry_bytes", 64<<20)
	v.SetDefault("cache.group", "archives")
	v.SetDefault("cache.redis.address", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("metrics.textfile", "")

	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
		}
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.TempDir == "" {
		config.TempDir = "."
	}

	return &config, nil
}

// ParseDuration parses a configured duration, logging and returning fallback when
// the value is empty or invalid.
func ParseDuration(name, value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		logger.Warn().Err(err).Str(name, value).Dur("fallback", fallback).Msg("Invalid duration, using default")
		return fallback
	}
	return d
}

func GetConfig() *Config {
	return globalConfig
}

func GetLogger() zerolog.Logger {
	return logger
}
