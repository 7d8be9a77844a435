// Package config handles Vega configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./vega.yaml, ~/.config/vega/vega.yaml, /etc/vega/vega.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"vega.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "vega", "vega.yaml"))
	}

	paths = append(paths, "/etc/vega/vega.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must
// exist. Otherwise, searches DefaultSearchPaths and returns the first
// that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Vega configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	LogLevel  string          `yaml:"log_level"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
}

// KnowledgeConfig defines external knowledge source settings.
type KnowledgeConfig struct {
	Wikipedia   WikipediaConfig   `yaml:"wikipedia"`
	OpenWeather OpenWeatherConfig `yaml:"openweather"`
	DefaultCity string            `yaml:"default_city"`
}

// WikipediaConfig defines the Wikipedia summary source. The API is free
// and needs no credentials, so it defaults to enabled.
type WikipediaConfig struct {
	Disabled bool `yaml:"disabled"`
}

// OpenWeatherConfig defines the OpenWeatherMap source. Weather lookups
// stay disabled until an API key is provided.
type OpenWeatherConfig struct {
	APIKey string `yaml:"api_key"`
}

// Configured reports whether an OpenWeatherMap API key is set.
func (c OpenWeatherConfig) Configured() bool {
	return c.APIKey != ""
}

// Load reads configuration from a YAML file. Environment variable
// references in the file (e.g. ${OPENWEATHER_API_KEY}) are expanded
// before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		DataDir: "data",
		Knowledge: KnowledgeConfig{
			DefaultCity: "London",
		},
	}
}
