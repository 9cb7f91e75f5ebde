package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/lingo/feed"
)

// Config is the top-level lingo configuration.
type Config struct {
	Browser   BrowserConfig   `yaml:"browser"`
	Translate TranslateConfig `yaml:"translate"`
	Engine    EngineConfig    `yaml:"engine"`
	Control   ControlConfig   `yaml:"control"`

	// FlagsDB is the SQLite file holding the engine flag and persisted
	// counters.
	FlagsDB string `yaml:"flags_db"`
}

// BrowserConfig controls the Chrome session.
type BrowserConfig struct {
	// Remote is the WebSocket URL of an external Chrome. Empty = launch.
	Remote   string `yaml:"remote"`
	PageURL  string `yaml:"page_url"`
	Headless bool   `yaml:"headless"`
}

// TranslateConfig controls the translation backend.
type TranslateConfig struct {
	Endpoint           string        `yaml:"endpoint"`
	Target             string        `yaml:"target"`
	MinRequestInterval time.Duration `yaml:"min_request_interval"`
}

// EngineConfig controls discovery.
type EngineConfig struct {
	ScanInterval     time.Duration `yaml:"scan_interval"`
	Auto             bool          `yaml:"auto"`
	MessageSelectors []string      `yaml:"message_selectors"`
	QuoteSelectors   []string      `yaml:"quote_selectors"`
	EmbedSelectors   []string      `yaml:"embed_selectors"`
	CodeSelectors    []string      `yaml:"code_selectors"`
	IDAttr           string        `yaml:"id_attr"`
	MinTextLen       int           `yaml:"min_text_len"`
}

// ControlConfig controls the HTTP and MCP surfaces.
type ControlConfig struct {
	Addr string `yaml:"addr"`
	// AuthUsername + AuthPasswordHash (bcrypt) enable Basic Auth on /api.
	AuthUsername     string `yaml:"auth_username"`
	AuthPasswordHash string `yaml:"auth_password_hash"`
	// MCP selects the MCP transport: "" (disabled) or "stdio".
	MCP string `yaml:"mcp"`
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if cfg.Translate.Endpoint == "" {
		return nil, fmt.Errorf("%s: translate.endpoint is required", path)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Translate.Target == "" {
		c.Translate.Target = "en"
	}
	if c.Control.Addr == "" {
		c.Control.Addr = ":8086"
	}
	if c.FlagsDB == "" {
		c.FlagsDB = "db/lingo.db"
	}
}

// selectors builds feed selectors from the engine config, leaving unset
// fields to the feed defaults.
func (c *Config) selectors() feed.Selectors {
	return feed.Selectors{
		Message:    c.Engine.MessageSelectors,
		Quote:      c.Engine.QuoteSelectors,
		Embed:      c.Engine.EmbedSelectors,
		Code:       c.Engine.CodeSelectors,
		IDAttr:     c.Engine.IDAttr,
		MinTextLen: c.Engine.MinTextLen,
	}
}
