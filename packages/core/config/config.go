package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/perchrh/ackhttp/packages/auth/oauth2"
	"github.com/perchrh/ackhttp/packages/core/env"
	"github.com/perchrh/ackhttp/packages/http"
	"gopkg.in/yaml.v3"
)

// Config represents the ackhttp configuration
type Config struct {
	Timeout         int               `json:"timeout,omitempty" yaml:"timeout,omitempty"` // milliseconds, 0 = wait indefinitely
	FollowRedirects *bool             `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	MaxRedirects    int               `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	Headers         map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"` // Default headers, ${VAR} expanded
	RequestIDHeader string            `json:"requestIdHeader,omitempty" yaml:"requestIdHeader,omitempty"`
	LogLevel        string            `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	Verbose         *bool             `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor         *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty"`
	OAuth2          *oauth2.Config    `json:"oauth2,omitempty" yaml:"oauth2,omitempty"`
	History         string            `json:"history,omitempty" yaml:"history,omitempty"` // e.g. sqlite:.ackhttp-history.db, "" = off
	Variables       map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"` // {{name}} values for request inputs
}

// BoolPtr returns a pointer to b, for setting the tri-state fields.
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// TimeoutDuration converts Timeout to a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// ConfigFilenames contains the possible config file names, in search order
var ConfigFilenames = []string{
	".ackhttp.yaml",
	".ackhttp.yml",
	".ackhttp.json",
	"ackhttp.config.json",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}
	return FindAndLoadConfig(".")
}

// FindConfigFile returns the first config file present in dir.
func FindConfigFile(dir string) (string, bool) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, true
		}
	}
	return "", false
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	if configPath, ok := FindConfigFile(dir); ok {
		return loadConfigFromFile(configPath)
	}
	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.RequestIDHeader != "" {
		result.RequestIDHeader = other.RequestIDHeader
	}
	if other.LogLevel != "" {
		result.LogLevel = other.LogLevel
	}
	if other.History != "" {
		result.History = other.History
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}
	if other.OAuth2 != nil {
		result.OAuth2 = other.OAuth2
	}

	result.Headers = mergeMaps(c.Headers, other.Headers)
	result.Variables = mergeMaps(c.Variables, other.Variables)

	return &result
}

// mergeMaps returns a new map holding base overlaid with over, or nil when
// both are empty.
func mergeMaps(base, over map[string]string) map[string]string {
	if len(base) == 0 && len(over) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// ClientOptions converts the config into options for http.NewClient.
func (c *Config) ClientOptions() []http.ClientOption {
	transportOpts := []http.NetTransportOption{
		http.WithFollowRedirects(c.GetFollowRedirects()),
	}
	if c.MaxRedirects > 0 {
		transportOpts = append(transportOpts, http.WithMaxRedirects(c.MaxRedirects))
	}

	opts := []http.ClientOption{
		http.WithTransport(http.NewNetTransport(transportOpts...)),
	}
	if c.Timeout > 0 {
		opts = append(opts, http.WithTimeout(c.TimeoutDuration()))
	}
	if len(c.Headers) > 0 {
		opts = append(opts, http.WithDefaultHeaders(env.ExpandMap(c.Headers)))
	}
	if c.RequestIDHeader != "" {
		opts = append(opts, http.WithRequestIDHeader(c.RequestIDHeader))
	}
	return opts
}

// OAuth2Config returns the oauth2 settings with ${VAR} references expanded,
// or nil when none are configured.
func (c *Config) OAuth2Config() *oauth2.Config {
	if c.OAuth2 == nil {
		return nil
	}
	o := *c.OAuth2
	o.TokenURL = env.Expand(o.TokenURL)
	o.ClientID = env.Expand(o.ClientID)
	o.ClientSecret = env.Expand(o.ClientSecret)
	o.Username = env.Expand(o.Username)
	o.Password = env.Expand(o.Password)
	return &o
}

// SaveConfig saves the configuration as YAML or JSON, chosen by extension.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
