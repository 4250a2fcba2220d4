// internal/config/config.go
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application. It is loaded once at
// startup and never mutated afterwards.
type Config struct {
	LogLevel         string   `mapstructure:"LOG_LEVEL"`
	ListenAddr       string   `mapstructure:"LISTEN_ADDR"`
	GithubTokens     []string `mapstructure:"GITHUB_TOKENS"`
	GeminiAPIKeys    []string `mapstructure:"GEMINI_API_KEYS"`
	GeminiModel      string   `mapstructure:"GEMINI_MODEL"`
	FrontendOrigin   string   `mapstructure:"FRONTEND_ORIGIN"`
	RequiredStarRepo string   `mapstructure:"REQUIRED_STAR_REPO"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LISTEN_ADDR", ":8080")
	viper.SetDefault("GEMINI_MODEL", "gemini-2.5-flash-lite")
	viper.SetDefault("REQUIRED_STAR_REPO", "0xarchit/github-profile-analyzer")

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate required fields
	if len(cfg.GithubTokens) == 0 {
		return nil, errors.New("GITHUB_TOKENS must contain at least one token")
	}
	if len(cfg.GeminiAPIKeys) == 0 {
		return nil, errors.New("GEMINI_API_KEYS must contain at least one key")
	}
	if cfg.FrontendOrigin == "" {
		return nil, errors.New("FRONTEND_ORIGIN is a required configuration field")
	}
	if !strings.Contains(cfg.RequiredStarRepo, "/") {
		return nil, errors.New("REQUIRED_STAR_REPO must be in 'owner/name' format")
	}

	return &cfg, nil
}
