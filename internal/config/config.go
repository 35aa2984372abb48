// Package config loads relay configuration from an optional YAML file plus
// RELAY_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full relay configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	OAuth   OAuthConfig   `mapstructure:"oauth"`
	Project ProjectConfig `mapstructure:"project"`
	Link    LinkConfig    `mapstructure:"link"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type OAuthConfig struct {
	Google OAuthProviderConfig `mapstructure:"google"`
	Azure  OAuthProviderConfig `mapstructure:"azure"`
}

type OAuthProviderConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// ProjectConfig drives the project resolver. FallbackID is the hard
// identifier used when access control denies the project read; leaving it
// empty disables the fallback entirely.
type ProjectConfig struct {
	Slug                 string        `mapstructure:"slug"`
	FallbackID           string        `mapstructure:"fallback_id"`
	ResolveTimeout       time.Duration `mapstructure:"resolve_timeout"`
	ConflictRetryTimeout time.Duration `mapstructure:"conflict_retry_timeout"`
}

type LinkConfig struct {
	ContextTTL time.Duration `mapstructure:"context_ttl"`
}

// Load reads configPath (optional; missing file is fine) and merges
// environment variables on top. RELAY_SERVER_PORT overrides server.port,
// and so on.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("db.path", "relay.db")
	v.SetDefault("project.slug", "mfa-relay")
	v.SetDefault("project.fallback_id", "550e8400-e29b-41d4-a716-446655440000")
	v.SetDefault("project.resolve_timeout", 8*time.Second)
	v.SetDefault("project.conflict_retry_timeout", 3*time.Second)
	v.SetDefault("link.context_ttl", 600*time.Second)

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("relay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
