// Package config loads the dashboard backend configuration from an INI file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/ini.v1"
)

// Config holds all configuration options of the API server.
type Config struct {
	Port        string
	DBPath      string
	LogLevel    string
	LogFile     string
	ProxyDomain string
	Debug       bool
}

// defaultConfig returns a Config with hardcoded defaults.
func defaultConfig() *Config {
	return &Config{
		Port:        "3000",
		DBPath:      "/var/lib/lighthouse/lighthouse.db",
		LogLevel:    "info",
		ProxyDomain: "localhost",
	}
}

// Load reads configuration from path. A missing file is not an error.
// Precedence: environment variables > config file > defaults
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			file, err := ini.Load(path)
			if err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
			applySection(cfg, file.Section(""))
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("cannot access config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// LoadWithDefaults loads the first config file found in the default locations.
func LoadWithDefaults() (*Config, error) {
	for _, path := range []string{"/etc/lighthouse/lighthouse.conf", "./lighthouse.conf"} {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return Load("")
}

func applySection(cfg *Config, section *ini.Section) {
	set := func(key string, dst *string) {
		if section.HasKey(key) {
			*dst = section.Key(key).String()
		}
	}
	set("port", &cfg.Port)
	set("db_path", &cfg.DBPath)
	set("log_level", &cfg.LogLevel)
	set("log_file", &cfg.LogFile)
	set("proxy_domain", &cfg.ProxyDomain)
	if section.HasKey("debug") {
		cfg.Debug = parseBool(section.Key("debug").String())
	}
}

func applyEnv(cfg *Config) {
	set := func(env string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	set("PORT", &cfg.Port)
	set("LIGHTHOUSE_DB_PATH", &cfg.DBPath)
	set("LIGHTHOUSE_LOG_LEVEL", &cfg.LogLevel)
	set("LIGHTHOUSE_LOG_FILE", &cfg.LogFile)
	set("LIGHTHOUSE_PROXY_DOMAIN", &cfg.ProxyDomain)
	if v := os.Getenv("LIGHTHOUSE_DEBUG"); v != "" {
		cfg.Debug = parseBool(v)
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}

// Addr returns the listen address for Port.
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
