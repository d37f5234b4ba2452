package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"waitline/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Firebase   FirebaseConfig   `yaml:"firebase"`
	Queue      QueueConfig      `yaml:"queue"`
	Exports    ExportConfig     `yaml:"exports"`
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
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
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

type APIConfig struct {
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// FirebaseConfig configures the FCM push sender. ProjectID is optional; when
// empty it is read from the service-account credentials file.
type FirebaseConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	ProjectID       string `yaml:"project_id"`
}

type QueueConfig struct {
	SeatCapacity  int    `yaml:"seat_capacity"`
	NotifyTimeout string `yaml:"notify_timeout"`
	SnapshotTTL   string `yaml:"snapshot_ttl"`
}

// NotifyTimeoutDuration parses NotifyTimeout, falling back to the default on
// malformed input.
func (q QueueConfig) NotifyTimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(q.NotifyTimeout); err == nil && d > 0 {
		return d
	}
	return models.DefaultNotifyTimeoutSeconds * time.Second
}

// SnapshotTTLDuration parses SnapshotTTL, falling back to the default on
// malformed input.
func (q QueueConfig) SnapshotTTLDuration() time.Duration {
	if d, err := time.ParseDuration(q.SnapshotTTL); err == nil && d > 0 {
		return d
	}
	return models.DefaultSnapshotTTL * time.Second
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env не обязателен, но если есть — подхватываем
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
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("invalid api port: %d", c.API.Port)
	}

	if c.Queue.SeatCapacity <= 0 {
		return fmt.Errorf("invalid seat capacity: %d", c.Queue.SeatCapacity)
	}

	if c.API.Auth.Enabled && len(c.API.Auth.APIKeys) == 0 {
		return errors.New("api auth enabled but no api keys configured")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}

	if c.Queue.SeatCapacity == 0 {
		c.Queue.SeatCapacity = models.DefaultSeatCapacity
	}
}
