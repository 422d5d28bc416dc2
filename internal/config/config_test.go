package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a config that passes Validate; tests mutate one field
func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "meetscribe",
		},
		Upload: UploadConfig{Dir: "uploads"},
		Quota: QuotaConfig{
			DailyLimit: 5,
			Window:     24 * time.Hour,
		},
		Executor: ExecutorConfig{Workers: 3},
		Mail: MailConfig{
			Host:   "smtp.gmail.com",
			Port:   465,
			Sender: "no-reply@meetscribe.dev",
		},
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, "meetscribe", cfg.Database.Database)
				assert.Equal(t, "meetscribe.jobs", cfg.RabbitMQ.Exchange)
				assert.Equal(t, 5, cfg.Quota.DailyLimit)
				assert.Equal(t, 24*time.Hour, cfg.Quota.Window)
				assert.Equal(t, 3, cfg.Executor.Workers)
				assert.Equal(t, "whisper-large-v3", cfg.Providers.Groq.Model)
				assert.Equal(t, "gemini-2.0-flash", cfg.Providers.Gemini.Model)
				assert.Equal(t, "meetscribe-api", cfg.App.Name)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name:      "empty upload dir",
			mutate:    func(c *Config) { c.Upload.Dir = "" },
			wantErr:   true,
			errString: "upload dir is required",
		},
		{
			name:      "negative quota limit",
			mutate:    func(c *Config) { c.Quota.DailyLimit = -1 },
			wantErr:   true,
			errString: "daily_limit must not be negative",
		},
		{
			name:      "negative worker count",
			mutate:    func(c *Config) { c.Executor.Workers = -1 },
			wantErr:   true,
			errString: "workers must not be negative",
		},
		{
			name:      "rabbitmq enabled without host",
			mutate:    func(c *Config) { c.RabbitMQ.Enabled = true },
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name: "rabbitmq disabled skips broker validation",
			mutate: func(c *Config) {
				c.RabbitMQ.Enabled = false
				c.RabbitMQ.Host = ""
			},
			wantErr: false,
		},
		{
			name:      "empty mail host",
			mutate:    func(c *Config) { c.Mail.Host = "" },
			wantErr:   true,
			errString: "mail host is required",
		},
		{
			name:      "empty mail sender",
			mutate:    func(c *Config) { c.Mail.Sender = "" },
			wantErr:   true,
			errString: "mail sender is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.Validate()
		require.NoError(t, err)
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}
