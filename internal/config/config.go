// Package config loads application configuration from a .env file and
// prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for all KitchenHub environment variables.
const EnvPrefix = "KITCHENHUB_"

// Config holds the full application configuration.
type Config struct {
	Tenant string       `mapstructure:"tenant"`
	Log    LogConfig    `mapstructure:"log"`
	Server ServerConfig `mapstructure:"server"`
	Client ClientConfig `mapstructure:"client"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig configures the development document server.
type ServerConfig struct {
	ListenAddr   string        `mapstructure:"listen_addr"`
	DataDir      string        `mapstructure:"data_dir"` // "" = in-memory only
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// ClientConfig configures the CLI's connection to the document server.
type ClientConfig struct {
	ServerURL string `mapstructure:"server_url"`
	Token     string `mapstructure:"token"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Tenant: "kitchen-hub",
		Log: LogConfig{
			Level:  "INFO",
			Format: "text",
		},
		Server: ServerConfig{
			ListenAddr:   ":8090",
			DataDir:      "",
			JWTSecret:    "dev-secret-change-me",
			TokenTTL:     24 * time.Hour,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // streaming watch endpoint must not time out
		},
		Client: ClientConfig{
			ServerURL: "http://localhost:8090",
			Token:     "",
		},
	}
}

// Load populates cfg from .env (optional) and KITCHENHUB_* environment
// variables. KITCHENHUB_SERVER_LISTEN_ADDR maps to server.listen_addr.
func Load(cfg *Config) error {
	v := viper.New()

	v.SetConfigFile(".env")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// .env is optional; a missing file is fine, other read errors
			// surface on Unmarshal if the keys matter.
			if !os.IsNotExist(err) {
				return fmt.Errorf("read .env: %w", err)
			}
		}
	}

	for _, envStr := range os.Environ() {
		pair := strings.SplitN(envStr, "=", 2)
		key, value := pair[0], pair[1]
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		// KITCHENHUB_SERVER_JWT_SECRET -> server.jwt_secret
		propKey := strings.TrimPrefix(key, EnvPrefix)
		propKey = strings.ToLower(propKey)
		if idx := strings.Index(propKey, "_"); idx > 0 {
			section := propKey[:idx]
			switch section {
			case "server", "client", "log":
				propKey = section + "." + propKey[idx+1:]
			}
		}
		v.Set(propKey, value)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}
