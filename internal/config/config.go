// Package config loads promptloom settings with viper.
//
// Precedence, lowest first: defaults, the YAML file (promptloom.yaml in the
// working directory or an explicit path), PROMPTLOOM_* environment
// variables, then command-line flags bound to the same keys.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/aretw0/promptloom/pkg/diff"
	"github.com/aretw0/promptloom/pkg/domain"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreBadger = "badger"
)

// EnvPrefix prefixes every environment variable, e.g. PROMPTLOOM_REDIS_ADDR.
const EnvPrefix = "PROMPTLOOM"

// Config is the full runtime configuration.
type Config struct {
	Addr    string `mapstructure:"addr"`
	DataDir string `mapstructure:"data_dir"`
	Store   string `mapstructure:"store"`

	Redis  RedisConfig  `mapstructure:"redis"`
	Badger BadgerConfig `mapstructure:"badger"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	MaxInputBytes     int64 `mapstructure:"max_input_bytes"`
	MaxMessages       int   `mapstructure:"max_messages"`
	MaxMessagesCap    int   `mapstructure:"max_messages_cap"`
	MaxDiffCells      int   `mapstructure:"max_diff_cells"`
	ReplayConcurrency int   `mapstructure:"replay_concurrency"`

	// EncryptionKey is a base64 AES-256 key for session encryption at rest.
	EncryptionKey string `mapstructure:"encryption_key"`
	// FallbackKeys are older base64 keys still accepted for decryption.
	FallbackKeys []string `mapstructure:"fallback_keys"`
	PIIPatterns  []string `mapstructure:"pii_patterns"`

	// DataSources maps sql://<name> resolver URLs to DSNs. They are served
	// as read-only entries next to the registered data sources.
	DataSources map[string]string `mapstructure:"data_sources"`

	TraceStdout bool `mapstructure:"trace_stdout"`
}

// RedisConfig configures the redis store.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// BadgerConfig configures the badger run store.
type BadgerConfig struct {
	Path string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("data_dir", ".promptloom")
	v.SetDefault("store", StoreMemory)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "promptloom:")
	v.SetDefault("redis.ttl", "0s")

	v.SetDefault("badger.path", "")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("max_input_bytes", 1<<20)
	v.SetDefault("max_messages", 20)
	v.SetDefault("max_messages_cap", domain.MaxMessagesCap)
	v.SetDefault("max_diff_cells", diff.DefaultMaxCells)
	v.SetDefault("replay_concurrency", 4)

	v.SetDefault("encryption_key", "")
	v.SetDefault("fallback_keys", []string{})
	v.SetDefault("pii_patterns", []string{})
	v.SetDefault("data_sources", map[string]string{})
	v.SetDefault("trace_stdout", false)
}

// FlagKeys maps command-line flag names to config keys.
var FlagKeys = map[string]string{
	"addr":        "addr",
	"data-dir":    "data_dir",
	"store":       "store",
	"log-level":   "log_level",
	"log-format":  "log_format",
	"redis-addr":  "redis.addr",
	"badger-path": "badger.path",
	"trace":       "trace_stdout",
}

// Load reads the configuration. An empty path looks for an optional
// promptloom.yaml in the working directory; an explicit path must exist.
// Flags from fs that appear in FlagKeys override everything else when set.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("promptloom")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for flag, key := range FlagKeys {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings that cannot be fixed by defaults.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store {
	case StoreMemory, StoreFile, StoreRedis, StoreBadger:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q (want memory, file, redis or badger)", c.Store))
	}
	if c.Store == StoreBadger && c.Badger.Path == "" && c.DataDir == "" {
		errs = append(errs, errors.New("badger store needs badger.path or data_dir"))
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}

	if c.MaxMessagesCap <= 0 {
		errs = append(errs, errors.New("max_messages_cap must be positive"))
	} else if c.MaxMessagesCap > domain.MaxMessagesCap {
		errs = append(errs, fmt.Errorf("max_messages_cap %d exceeds the limit of %d", c.MaxMessagesCap, domain.MaxMessagesCap))
	} else if c.MaxMessages > c.MaxMessagesCap {
		errs = append(errs, fmt.Errorf("max_messages %d exceeds max_messages_cap %d", c.MaxMessages, c.MaxMessagesCap))
	}
	if c.MaxInputBytes <= 0 {
		errs = append(errs, errors.New("max_input_bytes must be positive"))
	}
	if c.MaxDiffCells < 0 {
		errs = append(errs, errors.New("max_diff_cells must not be negative"))
	}

	if c.EncryptionKey != "" {
		if _, _, err := c.Keys(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range c.PIIPatterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("invalid pii pattern %q: %w", p, err))
		}
	}

	return errors.Join(errs...)
}

// Keys decodes the active and fallback encryption keys. Each must be
// 32 bytes once base64-decoded.
func (c *Config) Keys() ([]byte, [][]byte, error) {
	active, err := decodeKey("encryption_key", c.EncryptionKey)
	if err != nil {
		return nil, nil, err
	}
	fallback := make([][]byte, 0, len(c.FallbackKeys))
	for i, k := range c.FallbackKeys {
		key, err := decodeKey(fmt.Sprintf("fallback_keys[%d]", i), k)
		if err != nil {
			return nil, nil, err
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(name, encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%s is not valid base64: %w", name, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%s must decode to 32 bytes, got %d", name, len(key))
	}
	return key, nil
}

// BadgerPath is the badger directory, defaulting to <data_dir>/badger.
func (c *Config) BadgerPath() string {
	if c.Badger.Path != "" {
		return c.Badger.Path
	}
	return filepath.Join(c.DataDir, "badger")
}
