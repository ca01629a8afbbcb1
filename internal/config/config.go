// Package config loads and validates generator configuration via Viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/zdub15/agent-website-generator/internal/logging"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  logging.Config `mapstructure:"logging"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Images   ImagesConfig   `mapstructure:"images"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	LLM      LLMConfig      `mapstructure:"llm"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int   `mapstructure:"port"`
	RequestTimeoutSeconds int   `mapstructure:"request_timeout_seconds"`
	MaxUploadBytes        int64 `mapstructure:"max_upload_bytes"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// FetchConfig configures the reader endpoint used to turn profile pages into markdown.
type FetchConfig struct {
	ReaderEndpoint string   `mapstructure:"reader_endpoint"`
	APIKey         string   `mapstructure:"api_key"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	UserAgent      string   `mapstructure:"user_agent"`
	AllowedHosts   []string `mapstructure:"allowed_hosts"`
}

// HeadlessConfig configures the browser tiers of the headshot cascade.
type HeadlessConfig struct {
	Enabled                     bool   `mapstructure:"enabled"`
	Serverless                  bool   `mapstructure:"serverless"`
	MaxParallel                 int    `mapstructure:"max_parallel"`
	NavTimeoutSeconds           int    `mapstructure:"nav_timeout_seconds"`
	ServerlessNavTimeoutSeconds int    `mapstructure:"serverless_nav_timeout_seconds"`
	ExecPath                    string `mapstructure:"exec_path"`
	PackURL                     string `mapstructure:"pack_url"`
	PackVersion                 string `mapstructure:"pack_version"`
	CacheDir                    string `mapstructure:"cache_dir"`
	UserAgent                   string `mapstructure:"user_agent"`
}

// ImagesConfig describes the canonical headshot and download limits.
type ImagesConfig struct {
	Width             int     `mapstructure:"width"`
	Height            int     `mapstructure:"height"`
	Quality           int     `mapstructure:"quality"`
	Headroom          float64 `mapstructure:"headroom"`
	Sharpen           float64 `mapstructure:"sharpen"`
	MinBytes          int     `mapstructure:"min_bytes"`
	MaxBytes          int64   `mapstructure:"max_bytes"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	PathPrefix        string  `mapstructure:"path_prefix"`
	NormalizeOnScrape bool    `mapstructure:"normalize_on_scrape"`
}

// StorageConfig selects where normalized headshots are written.
type StorageConfig struct {
	Provider      string      `mapstructure:"provider"`
	Bucket        string      `mapstructure:"bucket"`
	PublicBaseURL string      `mapstructure:"public_base_url"`
	Local         LocalConfig `mapstructure:"local"`
}

// LocalConfig configures the filesystem blob store.
type LocalConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// DBConfig selects the site record store.
type DBConfig struct {
	Provider        string `mapstructure:"provider"`
	DSN             string `mapstructure:"dsn"`
	Table           string `mapstructure:"table"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime_seconds"`
}

// LLMConfig configures the marketing copy generator.
type LLMConfig struct {
	APIKey         string  `mapstructure:"api_key"`
	Endpoint       string  `mapstructure:"endpoint"`
	Model          string  `mapstructure:"model"`
	Temperature    float64 `mapstructure:"temperature"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// PubSubConfig holds metadata for site lifecycle notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SITEGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnvAliases(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 120)
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("fetch.reader_endpoint", "https://r.jina.ai/")
	v.SetDefault("fetch.timeout_seconds", 60)
	v.SetDefault("fetch.user_agent", "agent-website-generator/1.0")
	v.SetDefault("fetch.allowed_hosts", []string{"ushagent.com", "ushealthgroup.com"})
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.serverless", serverlessRuntime())
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 60)
	v.SetDefault("headless.serverless_nav_timeout_seconds", 30)
	v.SetDefault("headless.pack_url",
		"https://github.com/Sparticuz/chromium/releases/download/v{version}/chromium-v{version}-pack.{arch}.tar")
	v.SetDefault("headless.pack_version", "143.0.4")
	v.SetDefault("headless.cache_dir", os.TempDir())
	v.SetDefault("headless.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("images.width", 800)
	v.SetDefault("images.height", 1000)
	v.SetDefault("images.quality", 95)
	v.SetDefault("images.headroom", 1.2)
	v.SetDefault("images.sharpen", 1.0)
	v.SetDefault("images.min_bytes", 5000)
	v.SetDefault("images.max_bytes", 10<<20)
	v.SetDefault("images.timeout_seconds", 30)
	v.SetDefault("images.path_prefix", "uploads")
	v.SetDefault("images.normalize_on_scrape", true)
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.local.base_dir", "public")
	v.SetDefault("db.provider", "memory")
	v.SetDefault("db.table", "sites")
	v.SetDefault("llm.endpoint", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.timeout_seconds", 60)
}

// bindEnvAliases lets the usual provider variables populate the API keys.
func bindEnvAliases(v *viper.Viper) error {
	if err := v.BindEnv("fetch.api_key", "SITEGEN_FETCH_API_KEY", "JINA_API_KEY"); err != nil {
		return fmt.Errorf("bind fetch.api_key: %w", err)
	}
	if err := v.BindEnv("llm.api_key", "SITEGEN_LLM_API_KEY", "OPENAI_API_KEY"); err != nil {
		return fmt.Errorf("bind llm.api_key: %w", err)
	}
	return nil
}

func serverlessRuntime() bool {
	return os.Getenv("VERCEL") == "1" || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Fetch.ReaderEndpoint == "" {
		return fmt.Errorf("fetch.reader_endpoint is required")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Images.Width <= 0 || c.Images.Height <= 0 {
		return fmt.Errorf("images.width and images.height must be > 0")
	}
	if c.Images.Quality < 1 || c.Images.Quality > 100 {
		return fmt.Errorf("images.quality must be between 1 and 100")
	}
	if c.Images.MaxBytes > 0 && c.Images.MaxBytes < int64(c.Images.MinBytes) {
		return fmt.Errorf("images.max_bytes must not be below images.min_bytes")
	}
	switch c.Storage.Provider {
	case "memory", "local":
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}
	switch c.DB.Provider {
	case "memory":
	case "sqlite", "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set for the %s provider", c.DB.Provider)
		}
	default:
		return fmt.Errorf("unknown db.provider %q", c.DB.Provider)
	}
	return nil
}

// FetchTimeout is the wall-clock budget for one reader request.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// NavTimeout returns the navigation budget for the full or serverless browser tier.
func (c Config) NavTimeout(serverless bool) time.Duration {
	if serverless {
		return time.Duration(c.Headless.ServerlessNavTimeoutSeconds) * time.Second
	}
	return time.Duration(c.Headless.NavTimeoutSeconds) * time.Second
}

// ImageTimeout bounds a single image download.
func (c Config) ImageTimeout() time.Duration {
	return time.Duration(c.Images.TimeoutSeconds) * time.Second
}

// RequestTimeout bounds one HTTP request served by the API.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}
