// Package config loads process-wide configuration from the environment
// (and an optional .env / config file) into an immutable Config record.
// Components receive the pieces they need through their constructors;
// there is no module-level mutable state.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Mongo  Mongo  `mapstructure:"mongo"`
	AI     AI     `mapstructure:"ai"`
	Edge   Edge   `mapstructure:"edge"`
	Redis  Redis  `mapstructure:"redis"`
	Vector Vector `mapstructure:"vector"`
	Server Server `mapstructure:"server"`
}

// Mongo holds primary doc-store proxy configuration.
type Mongo struct {
	ProxyURL    string `mapstructure:"proxy_url"`
	Cluster     string `mapstructure:"cluster"`
	Database    string `mapstructure:"database"`
	ProxySecret string `mapstructure:"proxy_secret"`
}

// AI holds LLM gateway configuration.
type AI struct {
	GatewayID    string `mapstructure:"gateway_id"`
	GatewayURL   string `mapstructure:"gateway_url"`
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max_retries"`
	EmbeddingURL string `mapstructure:"embedding_url"`
}

// Edge holds the SQLite edge-cache location.
type Edge struct {
	Path string `mapstructure:"path"`
}

// Redis holds KV cache connection settings.
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Vector holds the vector-index endpoint.
type Vector struct {
	IndexURL string `mapstructure:"index_url"`
}

// Server holds HTTP listener settings.
type Server struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Load reads configuration from .env, environment variables and an
// optional config file, applying defaults for anything unset.
func Load() (*Config, error) {
	// .env is optional; environment variables win either way
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnv(v)

	v.SetConfigName("baobab")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mongo.proxy_url", "http://localhost:8090")
	v.SetDefault("ai.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("ai.max_retries", 2)
	v.SetDefault("edge.path", "./data")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
}

// bindEnv maps the documented environment variables onto config keys.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("mongo.proxy_url", "MONGO_PROXY_URL")
	_ = v.BindEnv("mongo.cluster", "MONGODB_CLUSTER")
	_ = v.BindEnv("mongo.database", "MONGODB_DATABASE")
	_ = v.BindEnv("mongo.proxy_secret", "PROXY_SECRET")
	_ = v.BindEnv("ai.gateway_id", "AI_GATEWAY_ID")
	_ = v.BindEnv("ai.gateway_url", "AI_GATEWAY_URL")
	_ = v.BindEnv("ai.api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("ai.model", "LLM_MODEL")
	_ = v.BindEnv("ai.max_retries", "LLM_MAX_RETRIES")
	_ = v.BindEnv("ai.embedding_url", "EMBEDDING_URL")
	_ = v.BindEnv("edge.path", "EDGE_CACHE_PATH")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("vector.index_url", "VECTOR_INDEX_URL")
	_ = v.BindEnv("server.host", "SERVER_HOST")
	_ = v.BindEnv("server.port", "SERVER_PORT")
}
