package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Data      DataConfig
	Catalog   CatalogConfig
	Extractor ExtractorConfig
	Cache     CacheConfig
	Redis     RedisConfig
	SQLite    SQLiteConfig
	Proxy     ProxyConfig
	RateLimit RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

// DataConfig points at the flat files produced by the evaluation pipeline.
type DataConfig struct {
	ReportsDir       string
	CoverageDir      string
	RagResultsDir    string
	RagDynamicDir    string
	ServerConfigPath string
}

type CatalogConfig struct {
	ParseWorkers     int
	Watch            bool
	WatchDebounceMs  int
	DefaultPageLimit int
}

type ExtractorConfig struct {
	MaxAnswerLength int
}

// CacheConfig selects where parsed reports are memoised: "memory" or "redis".
type CacheConfig struct {
	Backend    string
	TTLSeconds int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type SQLiteConfig struct {
	Path string
}

type ProxyConfig struct {
	Host           string
	Port           int
	TunnelURL      string
	DialTimeoutSec int
	MaxFrameBytes  int
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

type SecurityConfig struct {
	AllowedOrigins []string
	IsDevelopment  bool
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom reads the given config file, or searches the default locations when path is empty.
func LoadFrom(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/rag-dashboard")
	}

	viper.SetEnvPrefix("RAG_DASHBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("server.port", "RAG_DASHBOARD_SERVER_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("failed to bind port env: %w", err)
	}

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid cache backend %q: expected memory or redis", c.Cache.Backend)
	}
	if c.Catalog.ParseWorkers < 1 {
		return fmt.Errorf("catalog.parseWorkers must be positive, got %d", c.Catalog.ParseWorkers)
	}
	if c.Proxy.MaxFrameBytes < 1 {
		return fmt.Errorf("proxy.maxFrameBytes must be positive, got %d", c.Proxy.MaxFrameBytes)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 1048576)

	viper.SetDefault("data.reportsDir", "./reports_html")
	viper.SetDefault("data.coverageDir", "./coverage_data")
	viper.SetDefault("data.ragResultsDir", "./rag_results")
	viper.SetDefault("data.ragDynamicDir", "./rag_results_dinamic")
	viper.SetDefault("data.serverConfigPath", "")

	viper.SetDefault("catalog.parseWorkers", 8)
	viper.SetDefault("catalog.watch", true)
	viper.SetDefault("catalog.watchDebounceMs", 500)
	viper.SetDefault("catalog.defaultPageLimit", 50)

	viper.SetDefault("extractor.maxAnswerLength", 0)

	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.ttlSeconds", 3600)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("sqlite.path", "./data/interactions.db")

	viper.SetDefault("proxy.host", "localhost")
	viper.SetDefault("proxy.port", 1234)
	viper.SetDefault("proxy.tunnelURL", "")
	viper.SetDefault("proxy.dialTimeoutSec", 5)
	viper.SetDefault("proxy.maxFrameBytes", 16777216)

	viper.SetDefault("rateLimit.requestsPerMinute", 600)
	viper.SetDefault("rateLimit.burst", 60)

	viper.SetDefault("security.isDevelopment", false)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
