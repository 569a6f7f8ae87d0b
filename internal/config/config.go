// Package config loads service settings from an optional YAML file, a .env
// file and ORDERHUB_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "ORDERHUB"

type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	AI       AIConfig       `mapstructure:"ai"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Fuzzy    FuzzyConfig    `mapstructure:"fuzzy"`
	Alert    AlertConfig    `mapstructure:"alert"`
	Store    StoreConfig    `mapstructure:"store"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Server   ServerConfig   `mapstructure:"server"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// AIConfig controls the OpenAI-backed rewrite and suggestion steps. They run
// only when Enabled and an API key is set.
type AIConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	RateLimit  float64       `mapstructure:"rate_limit"`
	RateBurst  int           `mapstructure:"rate_burst"`
}

// Active reports whether the AI steps should run.
func (c *Config) AIActive() bool {
	return c.AI.Enabled && c.OpenAI.APIKey != ""
}

type RedisConfig struct {
	Host          string        `mapstructure:"host"`
	Port          string        `mapstructure:"port"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	CatalogKey    string        `mapstructure:"catalog_key"`
	SuggestionTTL time.Duration `mapstructure:"suggestion_ttl"`
}

// Enabled reports whether a Redis host is configured.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, r.Port)
}

// DatabaseConfig accepts either a URL or the separate DB_* parts.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// DSN returns URL, or a URL built from the parts when URL is empty.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" || d.Host == "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	if d.User != "" {
		u.User = url.UserPassword(d.User, d.Password)
	}
	return u.String()
}

type CatalogConfig struct {
	// Source is one of file, postgres or redis.
	Source          string        `mapstructure:"source"`
	File            string        `mapstructure:"file"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

type FuzzyConfig struct {
	Cutoff float64 `mapstructure:"cutoff"`
}

type AlertConfig struct {
	// Sink is one of log, redis or kafka.
	Sink         string   `mapstructure:"sink"`
	RedisChannel string   `mapstructure:"redis_channel"`
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
}

type StoreConfig struct {
	// Sink is one of csv, postgres or none.
	Sink    string `mapstructure:"sink"`
	CSVPath string `mapstructure:"csv_path"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Names used by earlier deployments stay accepted.
	_ = v.BindEnv("openai.api_key", envPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("redis.host", envPrefix+"_REDIS_HOST", "REDIS_HOST")
	_ = v.BindEnv("redis.port", envPrefix+"_REDIS_PORT", "REDIS_PORT")
	_ = v.BindEnv("database.url", envPrefix+"_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("database.host", envPrefix+"_DATABASE_HOST", "DB_HOST")
	_ = v.BindEnv("database.port", envPrefix+"_DATABASE_PORT", "DB_PORT")
	_ = v.BindEnv("database.name", envPrefix+"_DATABASE_NAME", "DB_NAME")
	_ = v.BindEnv("database.user", envPrefix+"_DATABASE_USER", "DB_USER")
	_ = v.BindEnv("database.password", envPrefix+"_DATABASE_PASSWORD", "DB_PASSWORD")
	_ = v.BindEnv("server.port", envPrefix+"_SERVER_PORT", "PORT")
	return v
}

// Load reads the YAML file at path, then applies .env and environment
// overrides. An empty path loads from the environment only.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
	}
	return unmarshal(v)
}

// LoadFromEnv is Load without a config file.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the selected sinks and sources have what they need.
func (c *Config) Validate() error {
	var errs []error

	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be json or console", c.Log.Format))
	}

	if c.AI.Timeout <= 0 {
		errs = append(errs, errors.New("ai.timeout must be positive"))
	}
	if c.Fuzzy.Cutoff < 0 || c.Fuzzy.Cutoff > 100 {
		errs = append(errs, fmt.Errorf("fuzzy.cutoff %v must be between 0 and 100", c.Fuzzy.Cutoff))
	}
	if c.Redis.Enabled() {
		if _, err := strconv.Atoi(c.Redis.Port); err != nil {
			errs = append(errs, fmt.Errorf("redis.port %q is not a number", c.Redis.Port))
		}
	}

	switch c.Catalog.Source {
	case "file":
		if c.Catalog.File == "" {
			errs = append(errs, errors.New("catalog.file is required for the file source"))
		}
	case "postgres":
		if c.Database.DSN() == "" {
			errs = append(errs, errors.New("database.url is required for the postgres catalog"))
		}
	case "redis":
		if !c.Redis.Enabled() {
			errs = append(errs, errors.New("redis.host is required for the redis catalog"))
		}
	default:
		errs = append(errs, fmt.Errorf("catalog.source %q must be file, postgres or redis", c.Catalog.Source))
	}

	switch c.Alert.Sink {
	case "log":
	case "redis":
		if !c.Redis.Enabled() {
			errs = append(errs, errors.New("redis.host is required for the redis alert sink"))
		}
	case "kafka":
		if len(c.Alert.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("alert.kafka_brokers is required for the kafka alert sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("alert.sink %q must be log, redis or kafka", c.Alert.Sink))
	}

	switch c.Store.Sink {
	case "none":
	case "csv":
		if c.Store.CSVPath == "" {
			errs = append(errs, errors.New("store.csv_path is required for the csv store"))
		}
	case "postgres":
		if c.Database.DSN() == "" {
			errs = append(errs, errors.New("database.url is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.sink %q must be csv, postgres or none", c.Store.Sink))
	}

	return errors.Join(errs...)
}
