// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
)

// Summarizer services.
const (
	ServiceGroq   = "groq"
	ServiceOpenAI = "openai"
	ServiceGemini = "gemini"
)

// Platform modes select the background hook installed at startup.
const (
	PlatformNone     = "none"
	PlatformInterval = "interval"
	PlatformTrigger  = "trigger"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Sources    SourcesConfig    `mapstructure:"sources"`
	Store      StoreConfig      `mapstructure:"store"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Summarizer SummarizerConfig `mapstructure:"summarizer"`
	Platform   PlatformConfig   `mapstructure:"platform"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CrawlerConfig governs the crawl orchestrator and feed fetcher.
type CrawlerConfig struct {
	Concurrency   int     `mapstructure:"concurrency"`
	BatchSize     int     `mapstructure:"batch_size"`
	MaxHTMLLinks  int     `mapstructure:"max_html_links"`
	UserAgent     string  `mapstructure:"user_agent"`
	RespectRobots bool    `mapstructure:"respect_robots"`
	DomainRPS     float64 `mapstructure:"domain_rps"`
	DomainBurst   int     `mapstructure:"domain_burst"`
}

// HTTPConfig sets outbound timeouts.
type HTTPConfig struct {
	TimeoutSeconds        int `mapstructure:"timeout_seconds"`
	PageTimeoutSeconds    int `mapstructure:"page_timeout_seconds"`
	ExtractTimeoutSeconds int `mapstructure:"extract_timeout_seconds"`
	MaxRetries            int `mapstructure:"max_retries"`
}

// SourcesConfig points at an optional YAML catalog replacing the built-in sources.
type SourcesConfig struct {
	File    string   `mapstructure:"file"`
	Domains []string `mapstructure:"domains"`
}

// StoreConfig selects and configures the record store.
type StoreConfig struct {
	Backend                string `mapstructure:"backend"`
	DSN                    string `mapstructure:"dsn"`
	Table                  string `mapstructure:"table"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeSeconds int    `mapstructure:"max_conn_lifetime_seconds"`
	Migrate                bool   `mapstructure:"migrate"`
}

// QueueConfig selects and configures the summarization queue.
type QueueConfig struct {
	Backend          string `mapstructure:"backend"`
	RedisURL         string `mapstructure:"redis_url"`
	RedisAddr        string `mapstructure:"redis_addr"`
	RedisPassword    string `mapstructure:"redis_password"`
	RedisDB          int    `mapstructure:"redis_db"`
	KeyPrefix        string `mapstructure:"key_prefix"`
	FailedTTLSeconds int    `mapstructure:"failed_ttl_seconds"`
}

// WorkerConfig controls the summarizer worker pool.
type WorkerConfig struct {
	Concurrency        int `mapstructure:"concurrency"`
	MaxAttempts        int `mapstructure:"max_attempts"`
	RetryPenalty       int `mapstructure:"retry_penalty"`
	HousekeepingEvery  int `mapstructure:"housekeeping_every"`
	IdleSleepSeconds   int `mapstructure:"idle_sleep_seconds"`
	RateIntervalMillis int `mapstructure:"rate_interval_ms"`
}

// SummarizerConfig configures the external text generation call.
type SummarizerConfig struct {
	Service        string  `mapstructure:"service"`
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	Endpoint       string  `mapstructure:"endpoint"`
	Prompt         string  `mapstructure:"prompt"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	Temperature    float32 `mapstructure:"temperature"`
	TopP           float32 `mapstructure:"top_p"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// PlatformConfig selects the background hook for the deployment target.
type PlatformConfig struct {
	Mode                 string `mapstructure:"mode"`
	CrawlIntervalSeconds int    `mapstructure:"crawl_interval_seconds"`
	ErrorBackoffSeconds  int    `mapstructure:"error_backoff_seconds"`
	CrawlConcurrency     int    `mapstructure:"crawl_concurrency"`
	Summarize            bool   `mapstructure:"summarize"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEWS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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
	v.SetDefault("server.request_timeout_seconds", 300)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("crawler.concurrency", 3)
	v.SetDefault("crawler.batch_size", 50)
	v.SetDefault("crawler.max_html_links", 25)
	v.SetDefault("crawler.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) "+
			"Chrome/123.0 Safari/537.36 newsdigest/0.1")
	v.SetDefault("crawler.respect_robots", false)
	v.SetDefault("crawler.domain_rps", 4.0)
	v.SetDefault("crawler.domain_burst", 4)
	v.SetDefault("http.timeout_seconds", 20)
	v.SetDefault("http.page_timeout_seconds", 8)
	v.SetDefault("http.extract_timeout_seconds", 15)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("sources.file", "")
	v.SetDefault("sources.domains", []string{})
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.table", "news")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 0)
	v.SetDefault("store.max_conn_lifetime_seconds", 1800)
	v.SetDefault("store.migrate", true)
	v.SetDefault("queue.backend", BackendMemory)
	v.SetDefault("queue.redis_url", "")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_password", "")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.key_prefix", "")
	v.SetDefault("queue.failed_ttl_seconds", 3600)
	v.SetDefault("worker.concurrency", 1)
	v.SetDefault("worker.max_attempts", 3)
	v.SetDefault("worker.retry_penalty", 5)
	v.SetDefault("worker.housekeeping_every", 10)
	v.SetDefault("worker.idle_sleep_seconds", 5)
	v.SetDefault("worker.rate_interval_ms", 2000)
	v.SetDefault("summarizer.service", ServiceGroq)
	v.SetDefault("summarizer.api_key", "")
	v.SetDefault("summarizer.model", "")
	v.SetDefault("summarizer.endpoint", "")
	v.SetDefault("summarizer.prompt", "")
	v.SetDefault("summarizer.max_tokens", 200)
	v.SetDefault("summarizer.temperature", 0.5)
	v.SetDefault("summarizer.top_p", 0.9)
	v.SetDefault("summarizer.timeout_seconds", 30)
	v.SetDefault("platform.mode", PlatformNone)
	v.SetDefault("platform.crawl_interval_seconds", 2400)
	v.SetDefault("platform.error_backoff_seconds", 600)
	v.SetDefault("platform.crawl_concurrency", 3)
	v.SetDefault("platform.summarize", false)
}

// Validate enforces required values and reasonable limits.
//
//nolint:gocyclo // flat list of independent checks
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.BatchSize <= 0 {
		return fmt.Errorf("crawler.batch_size must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres, BackendSQLite:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn must be set for the %s backend", c.Store.Backend)
		}
		if c.Store.Migrate && c.Store.Table != "" && c.Store.Table != "news" {
			return fmt.Errorf("store.migrate only manages the news table; create %q yourself", c.Store.Table)
		}
	default:
		return fmt.Errorf("store.backend %q is not supported", c.Store.Backend)
	}
	switch c.Queue.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("queue.backend %q is not supported", c.Queue.Backend)
	}
	if c.Queue.FailedTTLSeconds <= 0 {
		return fmt.Errorf("queue.failed_ttl_seconds must be > 0")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be > 0")
	}
	if c.Worker.MaxAttempts <= 0 {
		return fmt.Errorf("worker.max_attempts must be > 0")
	}
	if c.Worker.RateIntervalMillis < 0 {
		return fmt.Errorf("worker.rate_interval_ms must be >= 0")
	}
	switch c.Summarizer.Service {
	case ServiceGroq, ServiceOpenAI, ServiceGemini:
	default:
		return fmt.Errorf("summarizer.service %q is not supported", c.Summarizer.Service)
	}
	switch c.Platform.Mode {
	case PlatformNone, PlatformTrigger:
	case PlatformInterval:
		if c.Platform.CrawlIntervalSeconds <= 0 {
			return fmt.Errorf("platform.crawl_interval_seconds must be > 0 in interval mode")
		}
	default:
		return fmt.Errorf("platform.mode %q is not supported", c.Platform.Mode)
	}
	return nil
}

// FetchTimeout bounds a single feed or page GET.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// PageTimeout bounds the title fetch for one HTML fallback candidate.
func (c Config) PageTimeout() time.Duration {
	return seconds(c.HTTP.PageTimeoutSeconds, 8)
}

// ExtractTimeout bounds the article fetch made by the extractor.
func (c Config) ExtractTimeout() time.Duration {
	return seconds(c.HTTP.ExtractTimeoutSeconds, 15)
}

// RateInterval is the minimum spacing between summarizer calls.
func (c Config) RateInterval() time.Duration {
	return time.Duration(c.Worker.RateIntervalMillis) * time.Millisecond
}

// FailedTTL is the lifetime of the failed set after its last write.
func (c Config) FailedTTL() time.Duration {
	return time.Duration(c.Queue.FailedTTLSeconds) * time.Second
}

// IdleSleep is how long the continuous worker waits on an empty queue.
func (c Config) IdleSleep() time.Duration {
	return seconds(c.Worker.IdleSleepSeconds, 5)
}

// SummarizerTimeout bounds one summarizer call.
func (c Config) SummarizerTimeout() time.Duration {
	return seconds(c.Summarizer.TimeoutSeconds, 30)
}

// CrawlInterval is the pause between background crawl cycles.
func (c Config) CrawlInterval() time.Duration {
	return time.Duration(c.Platform.CrawlIntervalSeconds) * time.Second
}

// ErrorBackoff is the pause after a failed background crawl cycle.
func (c Config) ErrorBackoff() time.Duration {
	return seconds(c.Platform.ErrorBackoffSeconds, 600)
}

// RequestTimeout bounds an API request.
func (c Config) RequestTimeout() time.Duration {
	return seconds(c.Server.RequestTimeoutSeconds, 300)
}

func seconds(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}
