// Package config wraps viper so plugins receive a scoped, nil-safe view of
// the server configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// NETWORKNEST_SERVER_ADDR or NETWORKNEST_PLUGINS_DISCOVERY_MAX_CONCURRENCY.
const EnvPrefix = "NETWORKNEST"

// Config is a read-only view over a viper instance. A Config built from a
// nil viper returns zero values for every key.
type Config struct {
	v *viper.Viper
}

// New wraps v. Passing nil yields an empty Config.
func New(v *viper.Viper) *Config {
	return &Config{v: v}
}

// Load reads the optional config file at path, applies defaults, and binds
// environment overrides. An empty path searches the working directory and
// /etc/networknest for networknest.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("networknest")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/networknest")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return New(v), nil
}

// SetDefaults installs the server-wide defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "networknest.db")
	v.SetDefault("auth.issuer", "networknest")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("plugins.discovery.enabled", true)
	v.SetDefault("plugins.monitoring.enabled", true)
	v.SetDefault("plugins.homeassistant.enabled", true)
}

// Viper exposes the wrapped instance, or nil for an empty Config.
func (c *Config) Viper() *viper.Viper {
	if c == nil {
		return nil
	}
	return c.v
}

func (c *Config) GetString(key string) string {
	if c == nil || c.v == nil {
		return ""
	}
	return c.v.GetString(key)
}

func (c *Config) GetInt(key string) int {
	if c == nil || c.v == nil {
		return 0
	}
	return c.v.GetInt(key)
}

func (c *Config) GetBool(key string) bool {
	if c == nil || c.v == nil {
		return false
	}
	return c.v.GetBool(key)
}

func (c *Config) GetDuration(key string) time.Duration {
	if c == nil || c.v == nil {
		return 0
	}
	return c.v.GetDuration(key)
}

func (c *Config) GetStringSlice(key string) []string {
	if c == nil || c.v == nil {
		return nil
	}
	return c.v.GetStringSlice(key)
}

func (c *Config) IsSet(key string) bool {
	if c == nil || c.v == nil {
		return false
	}
	return c.v.IsSet(key)
}

// Sub returns the subtree rooted at key. A missing subtree yields an empty
// Config, never nil.
func (c *Config) Sub(key string) *Config {
	if c == nil || c.v == nil {
		return New(nil)
	}
	return New(c.v.Sub(key))
}

// Unmarshal decodes the whole tree into target using mapstructure tags.
// String durations such as "5s" decode into time.Duration fields.
func (c *Config) Unmarshal(target any) error {
	if c == nil || c.v == nil {
		return nil
	}
	if err := c.v.Unmarshal(target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}
