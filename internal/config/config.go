package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Cache     CacheConfig
	Store     StoreConfig
	Source    SourceConfig
	Reference ReferenceConfig
	Notify    NotifyConfig
	Market    MarketConfig
	Scheduler SchedulerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"baro-tracker-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"APP_LOG_LEVEL" default:"info"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	APIKeys     string `envconfig:"API_KEYS" default:""` // comma separated admin keys
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix     string `envconfig:"REDIS_KEY_PREFIX" default:"baro"`
}

// StoreConfig holds catalog store settings.
type StoreConfig struct {
	Type       string `envconfig:"STORE_TYPE" default:"sqlite"` // mongodb, sqlite or memory
	SQLitePath string `envconfig:"STORE_SQLITE_PATH" default:"./data/baro.db"`
	// MongoDB settings
	MongoURI      string `envconfig:"MONGODB_URI" default:""`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"wherebaro"`
}

// SourceConfig holds upstream vendor feed settings.
type SourceConfig struct {
	PrimaryURL   string        `envconfig:"SOURCE_PRIMARY_URL" default:"https://api.warframestat.us/pc/voidTraders/"`
	SecondaryURL string        `envconfig:"SOURCE_SECONDARY_URL" default:"https://api.warframe.com/cdn/worldState.php"`
	Timeout      time.Duration `envconfig:"SOURCE_HTTP_TIMEOUT" default:"20s"`
	RetryMax     int           `envconfig:"SOURCE_RETRY_MAX" default:"2"`
}

// ReferenceConfig holds reference dataset settings.
type ReferenceConfig struct {
	Path         string        `envconfig:"REFERENCE_DATASET_PATH" default:""`
	URL          string        `envconfig:"REFERENCE_DATASET_URL" default:"https://raw.githubusercontent.com/WFCD/warframe-items/master/data/json/All.json"`
	CacheTTL     time.Duration `envconfig:"REFERENCE_CACHE_TTL" default:"24h"`
	ImageBaseURL string        `envconfig:"REFERENCE_IMAGE_BASE_URL" default:"https://cdn.warframestat.us/img/"`
	WikiBaseURL  string        `envconfig:"REFERENCE_WIKI_BASE_URL" default:"https://wiki.warframe.com/w/"`
}

// NotifyConfig holds push notification settings.
type NotifyConfig struct {
	Type        string `envconfig:"NOTIFY_TYPE" default:"log"` // expo or log
	ExpoURL     string `envconfig:"EXPO_PUSH_URL" default:"https://exp.host/--/api/v2/push/send"`
	AccessToken string `envconfig:"EXPO_ACCESS_TOKEN" default:""`
	ChannelID   string `envconfig:"EXPO_CHANNEL_ID" default:"baro-alerts"`
}

// MarketConfig holds trade statistics settings.
type MarketConfig struct {
	BaseURL      string        `envconfig:"MARKET_BASE_URL" default:"https://api.warframe.market/v1"`
	RequestDelay time.Duration `envconfig:"MARKET_REQUEST_DELAY" default:"100ms"`
}

// SchedulerConfig holds background job settings.
type SchedulerConfig struct {
	Enabled         bool          `envconfig:"SCHEDULER_ENABLED" default:"false"`
	RefreshInterval time.Duration `envconfig:"SCHEDULER_REFRESH_INTERVAL" default:"30m"`
	CleanupInterval time.Duration `envconfig:"SCHEDULER_CLEANUP_INTERVAL" default:"24h"`
	TokenRetention  time.Duration `envconfig:"PUSH_TOKEN_RETENTION" default:"2160h"`
	MarketInterval  time.Duration `envconfig:"SCHEDULER_MARKET_INTERVAL" default:"0s"` // 0 disables market ingest
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// Keys returns the configured admin API keys.
func (a *AppConfig) Keys() []string {
	if a.APIKeys == "" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(a.APIKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case "mongodb", "mongo":
		if c.Store.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required when STORE_TYPE=%s", c.Store.Type)
		}
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported STORE_TYPE %q", c.Store.Type)
	}
	if c.Reference.Path == "" && c.Reference.URL == "" {
		return fmt.Errorf("one of REFERENCE_DATASET_PATH or REFERENCE_DATASET_URL is required")
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
