package services

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/ralverson/vela/internal/lib"
	"github.com/ralverson/vela/internal/models"
)

// LoadConfig loads configuration from file and merges with CLI flags
// Priority order (highest to lowest):
//  1. CLI flags (via viper bindings)
//  2. Environment variables
//  3. Configuration file
//  4. Default values
func LoadConfig(configFile string) (*models.ProjectConfig, error) {
	// Set config file path if provided
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		// Search for config in standard locations
		viper.SetConfigName("vela")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/vela")
		viper.AddConfigPath("/etc/vela")
	}

	// Enable environment variable override with VELA_ prefix
	viper.SetEnvPrefix("VELA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file (optional - don't fail if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but couldn't be read
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Build config manually from viper values
	// (Viper.Unmarshal has issues with nested structs in some versions)
	config := models.ProjectConfig{
		Archive: models.ArchiveConfig{
			Environment:         viper.GetString("archive.environment"),
			Username:            viper.GetString("archive.username"),
			Password:            viper.GetString("archive.password"),
			PasswordFile:        viper.GetString("archive.password_file"),
			PollIntervalSeconds: viper.GetInt("archive.poll_interval_seconds"),
		},
		Retry: models.RetryConfig{
			MaxAttempts:      viper.GetInt("retry.max_attempts"),
			InitialBackoffMs: viper.GetInt64("retry.initial_backoff_ms"),
			MaxBackoffMs:     viper.GetInt64("retry.max_backoff_ms"),
		},
		DestinationDir: viper.GetString("destination_dir"),
	}

	// Apply defaults for missing values
	defaults := models.DefaultConfig()
	if config.Archive.Environment == "" {
		config.Archive.Environment = defaults.Archive.Environment
	}
	if config.Archive.PollIntervalSeconds == 0 {
		config.Archive.PollIntervalSeconds = defaults.Archive.PollIntervalSeconds
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry.MaxAttempts = defaults.Retry.MaxAttempts
	}
	if config.Retry.InitialBackoffMs == 0 {
		config.Retry.InitialBackoffMs = defaults.Retry.InitialBackoffMs
	}
	if config.Retry.MaxBackoffMs == 0 {
		config.Retry.MaxBackoffMs = defaults.Retry.MaxBackoffMs
	}
	if config.DestinationDir == "" {
		config.DestinationDir = defaults.DestinationDir
	}

	return &config, nil
}

// ResolveCredentials produces the basic-auth credentials from the archive
// config, reading the password file when no inline password is set. The
// file's first line is the password, so trailing newlines are harmless.
func ResolveCredentials(config models.ArchiveConfig) (models.Credentials, error) {
	if err := config.Validate(); err != nil {
		return models.Credentials{}, lib.ErrInvalidConfig("archive", err.Error())
	}

	password := config.Password
	if password == "" {
		data, err := os.ReadFile(config.PasswordFile)
		if err != nil {
			return models.Credentials{}, fmt.Errorf("failed to read password file: %w", err)
		}
		password = strings.TrimSpace(strings.SplitN(string(data), "\n", 2)[0])
		if password == "" {
			return models.Credentials{}, fmt.Errorf("password file %s is empty", config.PasswordFile)
		}
	}

	return models.Credentials{Username: config.Username, Password: password}, nil
}

// GetConfigFilePath returns the path of the config file the last LoadConfig
// call read, or "" when only defaults and environment variables applied.
func GetConfigFilePath() string {
	return viper.ConfigFileUsed()
}
