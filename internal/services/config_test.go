package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ralverson/vela/internal/models"
)

func validArchiveConfig() models.ArchiveConfig {
	return models.ArchiveConfig{
		Environment:         "prod",
		Username:            "observer",
		Password:            "inline-secret",
		PollIntervalSeconds: 20,
	}
}

func TestLoadConfig_ExplicitFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "vela.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(
		"archive:\n  environment: at\n  username: observer\n  password: secret\n"), 0o600))

	config, err := LoadConfig(configFile)
	require.NoError(t, err)

	assert.Equal(t, "at", config.Archive.Environment)
	assert.Equal(t, "observer", config.Archive.Username)
	// Defaults fill in everything the file leaves out.
	assert.Equal(t, models.DefaultConfig().Archive.PollIntervalSeconds, config.Archive.PollIntervalSeconds)
	assert.Equal(t, configFile, GetConfigFilePath())
}

func TestResolveCredentials_InlinePassword(t *testing.T) {
	creds, err := ResolveCredentials(validArchiveConfig())
	require.NoError(t, err)
	assert.Equal(t, models.Credentials{Username: "observer", Password: "inline-secret"}, creds)
}

func TestResolveCredentials_PasswordFile(t *testing.T) {
	passwordFile := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(passwordFile, []byte("file-secret\n"), 0o600))

	config := validArchiveConfig()
	config.Password = ""
	config.PasswordFile = passwordFile

	creds, err := ResolveCredentials(config)
	require.NoError(t, err)
	// Trailing newline from the file is stripped.
	assert.Equal(t, "file-secret", creds.Password)
}

func TestResolveCredentials_EmptyPasswordFile(t *testing.T) {
	passwordFile := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(passwordFile, []byte("\n"), 0o600))

	config := validArchiveConfig()
	config.Password = ""
	config.PasswordFile = passwordFile

	_, err := ResolveCredentials(config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestResolveCredentials_MissingPasswordFile(t *testing.T) {
	config := validArchiveConfig()
	config.Password = ""
	config.PasswordFile = filepath.Join(t.TempDir(), "nope")

	_, err := ResolveCredentials(config)
	require.Error(t, err)
}

func TestResolveCredentials_InvalidConfig(t *testing.T) {
	config := validArchiveConfig()
	config.Username = ""

	_, err := ResolveCredentials(config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username")
}
