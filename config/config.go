// Package config loads docxsvc settings: defaults, then an optional YAML
// file, then DOCXSVC_* environment variables (env wins).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all docxsvc configuration.
type Config struct {
	Listen   string       `yaml:"listen"`
	LogLevel string       `yaml:"log_level"`
	Server   ServerConfig `yaml:"server"`
	Fetch    FetchConfig  `yaml:"fetch"`
	Merge    MergeConfig  `yaml:"merge"`
	MCP      MCPConfig    `yaml:"mcp"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// FetchConfig controls outbound downloads of documents and templates.
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxBytes     int64         `yaml:"max_bytes"`
	UserAgent    string        `yaml:"user_agent"`
	BlockPrivate bool          `yaml:"block_private"`
}

// MergeConfig controls template merging.
type MergeConfig struct {
	// DefaultTemplate is a path to a .docx used when a request supplies no
	// template. Empty means the bundled template.
	DefaultTemplate string `yaml:"default_template"`
}

// MCPConfig controls the MCP endpoint.
type MCPConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// On reports whether the MCP endpoint is mounted (default: true).
func (m MCPConfig) On() bool { return m.Enabled == nil || *m.Enabled }

func (c *Config) defaults() {
	if c.Listen == "" {
		c.Listen = ":3000"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = 32 << 20
	}
	if c.Server.ReadHeaderTimeout <= 0 {
		c.Server.ReadHeaderTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 15 * time.Second
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = 50 << 20
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "docxsvc/1.0"
	}
}

// Load reads path (if non-empty), applies env overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.defaults()
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = d
		return nil
	}
	i64 := func(key string, dst *int64) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = n
		return nil
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str("DOCXSVC_LISTEN", &c.Listen)
	str("DOCXSVC_LOG_LEVEL", &c.LogLevel)
	str("DOCXSVC_FETCH_USER_AGENT", &c.Fetch.UserAgent)
	str("DOCXSVC_DEFAULT_TEMPLATE", &c.Merge.DefaultTemplate)

	if err := i64("DOCXSVC_MAX_BODY_BYTES", &c.Server.MaxBodyBytes); err != nil {
		return err
	}
	if err := i64("DOCXSVC_FETCH_MAX_BYTES", &c.Fetch.MaxBytes); err != nil {
		return err
	}
	if err := dur("DOCXSVC_FETCH_TIMEOUT", &c.Fetch.Timeout); err != nil {
		return err
	}
	if err := boolean("DOCXSVC_FETCH_BLOCK_PRIVATE", &c.Fetch.BlockPrivate); err != nil {
		return err
	}
	if v, ok := lookup("DOCXSVC_MCP_ENABLED"); ok && v != "" {
		var on bool
		if err := boolean("DOCXSVC_MCP_ENABLED", &on); err != nil {
			return err
		}
		c.MCP.Enabled = &on
	}
	return nil
}
