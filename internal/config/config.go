package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"wearlog/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	API        APIConfig        `yaml:"api"`
	Agent      AgentConfig      `yaml:"agent"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Exports    ExportConfig     `yaml:"exports"`
	Items      []models.Item    `yaml:"items"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// AgentConfig configures the device-local sync agent.
type AgentConfig struct {
	ServerURL            string           `yaml:"server_url"`
	APIKey               string           `yaml:"api_key"`
	APIExtra             string           `yaml:"api_extra"`
	QueuePath            string           `yaml:"queue_path"`
	ListenPort           int              `yaml:"listen_port"`
	ProbeIntervalSeconds int              `yaml:"probe_interval_seconds"`
	Retry                AgentRetryConfig `yaml:"retry"`
}

type AgentRetryConfig struct {
	InitialDelaySeconds int     `yaml:"initial_delay_seconds"`
	MaxDelaySeconds     int     `yaml:"max_delay_seconds"`
	BackoffFactor       float64 `yaml:"backoff_factor"`
}

func (c AgentConfig) ProbeInterval() time.Duration {
	if c.ProbeIntervalSeconds <= 0 {
		return time.Duration(models.DefaultProbeInterval) * time.Second
	}
	return time.Duration(c.ProbeIntervalSeconds) * time.Second
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env необязателен, но если есть — переменные попадают в окружение
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.API.Enabled && c.Database.Path == "" {
		return errors.New("database path is required when the API is enabled")
	}
	if c.Agent.ServerURL == "" && !c.API.Enabled {
		return errors.New("agent server_url is required")
	}
	return ValidateItems(c.Items)
}

func ValidateItems(items []models.Item) error {
	names := make(map[string]bool, len(items))
	ids := make(map[string]bool, len(items))
	for _, item := range items {
		if item.Name == "" {
			return errors.New("item with empty name in catalog")
		}
		if names[item.Name] {
			return fmt.Errorf("duplicate item name found: %s", item.Name)
		}
		names[item.Name] = true
		if item.ID != "" {
			if ids[item.ID] {
				return fmt.Errorf("duplicate item ID found: %s", item.ID)
			}
			ids[item.ID] = true
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	// Agent defaults
	if c.Agent.QueuePath == "" {
		c.Agent.QueuePath = "data/queue.db"
	}
	if c.Agent.ListenPort == 0 {
		c.Agent.ListenPort = 8090
	}
	if c.Agent.ProbeIntervalSeconds == 0 {
		c.Agent.ProbeIntervalSeconds = models.DefaultProbeInterval
	}
	if c.Agent.Retry.InitialDelaySeconds == 0 {
		c.Agent.Retry.InitialDelaySeconds = models.DefaultRetryInitialDelay
	}
	if c.Agent.Retry.MaxDelaySeconds == 0 {
		c.Agent.Retry.MaxDelaySeconds = models.DefaultRetryMaxDelay
	}
	if c.Agent.Retry.BackoffFactor == 0 {
		c.Agent.Retry.BackoffFactor = 2
	}
}
