package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Session store backends selectable via SESSION_STORE.
const (
	SessionStoreFile  = "file"
	SessionStoreMongo = "mongo"
	SessionStoreRedis = "redis"
)

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling.
type ServerConfig struct {
	HTTPPort  string `mapstructure:"HTTP_PORT"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	// Session persistence. The file backend rewrites the whole snapshot
	// on every mutation; mongo and redis are for multi-instance setups.
	SessionStore    string `mapstructure:"SESSION_STORE"`
	SessionsFile    string `mapstructure:"SESSIONS_FILE"`
	SessionsSealKey string `mapstructure:"SESSIONS_SEAL_KEY"`

	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	RedisPrefix   string `mapstructure:"REDIS_PREFIX"`

	// Pending login challenges are evicted after this many minutes.
	ChallengeTTLMin int `mapstructure:"CHALLENGE_TTL_MIN"`

	// Messaging provider gateway.
	ProviderBaseURL        string `mapstructure:"PROVIDER_BASE_URL"`
	ProviderAPIID          int    `mapstructure:"PROVIDER_API_ID"`
	ProviderAPIHash        string `mapstructure:"PROVIDER_API_HASH"`
	ProviderConnectRetries int    `mapstructure:"PROVIDER_CONNECT_RETRIES"`
	ProviderTimeoutSec     int    `mapstructure:"PROVIDER_TIMEOUT_SEC"`
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/kerja/")
	v.AddConfigPath("$HOME/.kerja")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("SESSION_STORE", SessionStoreFile)
	v.SetDefault("SESSIONS_FILE", "sessions.json")
	v.SetDefault("SESSIONS_SEAL_KEY", "")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/kerja_dev")
	v.SetDefault("MONGO_DB_NAME", "kerja_dev")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "kerja")
	v.SetDefault("CHALLENGE_TTL_MIN", 5)
	v.SetDefault("PROVIDER_BASE_URL", "https://gateway.example.org")
	v.SetDefault("PROVIDER_API_ID", 0)
	v.SetDefault("PROVIDER_API_HASH", "")
	v.SetDefault("PROVIDER_CONNECT_RETRIES", 5)
	v.SetDefault("PROVIDER_TIMEOUT_SEC", 15)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env vars apply.
		// Anything else (permissions, malformed YAML) is a real error.
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
