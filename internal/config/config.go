package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration. Secrets (API
// keys, mail and broker credentials) come from the environment, not from
// this file.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Logging   LoggingConfig   `yaml:"logging"`
	App       AppConfig       `yaml:"app"`
	Upload    UploadConfig    `yaml:"upload"`
	Quota     QuotaConfig     `yaml:"quota"`
	Executor  ExecutorConfig  `yaml:"executor"`
	Providers ProvidersConfig `yaml:"providers"`
	Mail      MailConfig      `yaml:"mail"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds the lifecycle-event publisher configuration.
// The whole block is optional: with Enabled false no broker is contacted.
type RabbitMQConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	User          string        `yaml:"user"`
	Password      string        `yaml:"password"`
	VHost         string        `yaml:"vhost"`
	Exchange      string        `yaml:"exchange"`
	ExchangeType  string        `yaml:"exchange_type"`
	Queue         string        `yaml:"queue"`
	RoutingKey    string        `yaml:"routing_key"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`

	PublishRetries     int           `yaml:"publish_retries"`
	PublishRetryDelay  time.Duration `yaml:"publish_retry_delay"`
	PublishBackoffMult float64       `yaml:"publish_backoff_multiplier"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// UploadConfig holds file intake configuration
type UploadConfig struct {
	Dir               string   `yaml:"dir"`
	MaxBytes          int64    `yaml:"max_bytes"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	FFmpegPath        string   `yaml:"ffmpeg_path"`
}

// QuotaConfig holds quota enforcement configuration
type QuotaConfig struct {
	DailyLimit int           `yaml:"daily_limit"`
	Window     time.Duration `yaml:"window"`
}

// ExecutorConfig holds worker pool configuration
type ExecutorConfig struct {
	Workers int `yaml:"workers"`
}

// ProvidersConfig holds transcription and summarization provider settings.
// API keys come from GROQ_API_KEY and GEMINI_API_KEY.
type ProvidersConfig struct {
	Groq   GroqConfig   `yaml:"groq"`
	Gemini GeminiConfig `yaml:"gemini"`
}

// GroqConfig holds the transcription provider settings
type GroqConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// GeminiConfig holds the summarization provider settings
type GeminiConfig struct {
	Model string `yaml:"model"`
}

// MailConfig holds outgoing mail settings. Credentials come from
// MAIL_USERNAME and MAIL_PASSWORD.
type MailConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Sender string `yaml:"sender"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Upload.Dir == "" {
		return fmt.Errorf("upload dir is required")
	}

	if c.Quota.DailyLimit < 0 {
		return fmt.Errorf("quota daily_limit must not be negative")
	}

	if c.Executor.Workers < 0 {
		return fmt.Errorf("executor workers must not be negative")
	}

	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Host == "" {
			return fmt.Errorf("rabbitmq host is required when enabled")
		}

		if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
		}

		if c.RabbitMQ.Exchange == "" {
			return fmt.Errorf("rabbitmq exchange is required when enabled")
		}

		if c.RabbitMQ.Queue == "" {
			return fmt.Errorf("rabbitmq queue is required when enabled")
		}
	}

	if c.Mail.Host == "" {
		return fmt.Errorf("mail host is required")
	}

	if c.Mail.Port < MinPort || c.Mail.Port > MaxPort {
		return fmt.Errorf("invalid mail port: %d (must be between %d and %d)", c.Mail.Port, MinPort, MaxPort)
	}

	if c.Mail.Sender == "" {
		return fmt.Errorf("mail sender is required")
	}

	return nil
}
