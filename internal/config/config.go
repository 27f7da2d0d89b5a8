// Package config handles application configuration using Viper.
//
// Precedence, highest first: command-line flags, AGRICONNECT_* environment
// variables (a .env file is loaded into the environment first without
// overriding variables already set), the YAML config file, defaults.
package config

import (
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nyaruka/phonenumbers"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	agerrors "github.com/felixgeelhaar/agriconnect/internal/errors"
)

// Config holds the application configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Store   StoreConfig   `mapstructure:"store"`
	Session SessionConfig `mapstructure:"session"`
	Phone   PhoneConfig   `mapstructure:"phone"`
	Log     LogConfig     `mapstructure:"log"`
	Console ConsoleConfig `mapstructure:"console"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// APIConfig locates the backend.
type APIConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StoreConfig selects where credentials are persisted.
type StoreConfig struct {
	Backend string      `mapstructure:"backend"`
	Path    string      `mapstructure:"path"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds the shared credential store connection.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Profile  string `mapstructure:"profile"`
}

// SessionConfig tunes boot-time confirmation.
type SessionConfig struct {
	ConfirmAttempts int           `mapstructure:"confirm_attempts"`
	ConfirmBackoff  time.Duration `mapstructure:"confirm_backoff"`
}

// PhoneConfig holds the region for numbers without a country prefix.
type PhoneConfig struct {
	DefaultRegion string `mapstructure:"default_region"`
}

// LogConfig holds logging settings. Empty values mean "use the command's default".
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ConsoleConfig holds the local web console settings.
type ConsoleConfig struct {
	Addr string `mapstructure:"addr"`
}

// TracingConfig controls OpenTelemetry span export.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Environment string  `mapstructure:"environment"`
}

// Store backends.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Options controls where Load looks.
type Options struct {
	// ConfigFile overrides ~/.agriconnect/config.yaml.
	ConfigFile string

	// EnvFile defaults to ".env" in the working directory. A missing file is ignored.
	EnvFile string

	// Flags are bound by name, see flagKeys.
	Flags *pflag.FlagSet
}

// flagKeys maps global flag names to config keys.
var flagKeys = map[string]string{
	"api-url":    "api.url",
	"store":      "store.backend",
	"log-level":  "log.level",
	"log-format": "log.format",
	"addr":       "console.addr",
}

// Load reads configuration from flags, environment, file and defaults.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return nil, agerrors.Wrap(agerrors.ErrCodeConfigRead, "failed to load "+envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.AddConfigPath(Dir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("AGRICONNECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, agerrors.Wrap(agerrors.ErrCodeConfigRead, "failed to bind flag --"+name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is OK, we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) && !(opts.ConfigFile == "" && stderrors.Is(err, fs.ErrNotExist)) {
			return nil, agerrors.Wrap(agerrors.ErrCodeConfigRead, "failed to read config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, agerrors.Wrap(agerrors.ErrCodeConfigRead, "failed to decode configuration", err)
	}

	cfg.Store.Path = expandHome(cfg.Store.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Dir is where the config file and the default credential file live.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agriconnect"
	}
	return filepath.Join(home, ".agriconnect")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.url", "http://localhost:5000/api")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("store.backend", StoreFile)
	v.SetDefault("store.path", filepath.Join(Dir(), "credentials.json"))
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.profile", "default")
	v.SetDefault("session.confirm_attempts", 1)
	v.SetDefault("session.confirm_backoff", 500*time.Millisecond)
	v.SetDefault("phone.default_region", "KE")
	v.SetDefault("log.level", "")
	v.SetDefault("log.format", "")
	v.SetDefault("console.addr", "127.0.0.1:3000")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.environment", "development")
}

// Validate rejects values the rest of the program cannot act on.
func (c *Config) Validate() error {
	if c.API.URL == "" {
		return agerrors.NewConfigInvalidError("api.url", c.API.URL, "an http(s) URL")
	}
	switch c.Store.Backend {
	case StoreFile, StoreMemory, StoreRedis:
	default:
		return agerrors.NewConfigInvalidError("store.backend", c.Store.Backend, "file, memory, redis")
	}
	if c.Session.ConfirmAttempts < 1 {
		return agerrors.NewConfigInvalidError("session.confirm_attempts", c.Session.ConfirmAttempts, "an integer >= 1")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		return agerrors.NewConfigInvalidError("log.format", c.Log.Format, "json, text")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return agerrors.NewConfigInvalidError("tracing.sample_rate", c.Tracing.SampleRate, "a fraction between 0 and 1")
	}
	c.Phone.DefaultRegion = strings.ToUpper(c.Phone.DefaultRegion)
	if phonenumbers.GetCountryCodeForRegion(c.Phone.DefaultRegion) == 0 {
		return agerrors.NewConfigInvalidError("phone.default_region", c.Phone.DefaultRegion, "an ISO 3166-1 alpha-2 region such as KE")
	}
	return nil
}

func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
