// Package config loads the agentcore configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure for agentcore.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Buffer   BufferConfig   `yaml:"buffer"`
	Engine   EngineConfig   `yaml:"engine"`
	LLM      LLMConfig      `yaml:"llm"`
	CoreAPI  CoreAPIConfig  `yaml:"core_api"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Delivery DeliveryConfig `yaml:"delivery"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`

	// InternalSecret authenticates inbound calls from the platform.
	InternalSecret string `yaml:"internal_secret"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type BufferConfig struct {
	// QuietPeriod is the coalescing window for inbound fragments.
	QuietPeriod   time.Duration `yaml:"quiet_period"`
	Lease         time.Duration `yaml:"lease"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type EngineConfig struct {
	Model         string `yaml:"model"`
	MaxIterations int    `yaml:"max_iterations"`
	HistoryWindow int    `yaml:"history_window"`
	MaxTokens     int    `yaml:"max_tokens"`
}

type LLMConfig struct {
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Advanced AdvancedConfig `yaml:"advanced"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type AdvancedConfig struct {
	BaseURL        string        `yaml:"base_url"`
	InternalSecret string        `yaml:"internal_secret"`
	Timeout        time.Duration `yaml:"timeout"`
}

type CoreAPIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	InternalSecret string        `yaml:"internal_secret"`
	Timeout        time.Duration `yaml:"timeout"`
}

type GatewayConfig struct {
	BaseURL        string        `yaml:"base_url"`
	InternalSecret string        `yaml:"internal_secret"`
	Timeout        time.Duration `yaml:"timeout"`
}

type DeliveryConfig struct {
	// SplitEnabled and DelayJitter are pointers so an explicit false or
	// zero in the file survives defaulting.
	SplitEnabled *bool         `yaml:"split_enabled"`
	ChunkSize    int           `yaml:"chunk_size"`
	MediaBaseURL string        `yaml:"media_base_url"`
	DelayPerChar time.Duration `yaml:"delay_per_char"`
	DelayMin     time.Duration `yaml:"delay_min"`
	DelayMax     time.Duration `yaml:"delay_max"`
	DelayJitter  *float64      `yaml:"delay_jitter"`
	MediaDelay   time.Duration `yaml:"media_delay"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.Database.MaxConnections == 0 {
		cfg.Database.MaxConnections = 25
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.Buffer.QuietPeriod == 0 {
		cfg.Buffer.QuietPeriod = 6 * time.Second
	}
	if cfg.Buffer.Lease == 0 {
		cfg.Buffer.Lease = 2 * time.Minute
	}
	if cfg.Buffer.SweepInterval == 0 {
		cfg.Buffer.SweepInterval = 30 * time.Second
	}
	if cfg.Engine.MaxIterations == 0 {
		cfg.Engine.MaxIterations = 5
	}
	if cfg.Engine.HistoryWindow == 0 {
		cfg.Engine.HistoryWindow = 10
	}
	if cfg.LLM.Advanced.Timeout == 0 {
		cfg.LLM.Advanced.Timeout = 60 * time.Second
	}
	if cfg.CoreAPI.Timeout == 0 {
		cfg.CoreAPI.Timeout = 30 * time.Second
	}
	if cfg.Delivery.SplitEnabled == nil {
		enabled := true
		cfg.Delivery.SplitEnabled = &enabled
	}
	if cfg.Delivery.ChunkSize == 0 {
		cfg.Delivery.ChunkSize = 280
	}
	if cfg.Delivery.DelayPerChar == 0 {
		cfg.Delivery.DelayPerChar = 30 * time.Millisecond
	}
	if cfg.Delivery.DelayMin == 0 {
		cfg.Delivery.DelayMin = 800 * time.Millisecond
	}
	if cfg.Delivery.DelayMax == 0 {
		cfg.Delivery.DelayMax = 3 * time.Second
	}
	if cfg.Delivery.DelayJitter == nil {
		jitter := 0.2
		cfg.Delivery.DelayJitter = &jitter
	}
	if cfg.Delivery.MediaDelay == 0 {
		cfg.Delivery.MediaDelay = 500 * time.Millisecond
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate checks the settings that have no sensible default.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.LLM.OpenAI.APIKey == "" {
		return fmt.Errorf("llm.openai.api_key is required")
	}
	if c.CoreAPI.BaseURL == "" {
		return fmt.Errorf("core_api.base_url is required")
	}
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway.base_url is required")
	}
	return nil
}
