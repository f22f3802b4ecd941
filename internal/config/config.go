// Package config loads the CLI's configuration through spf13/viper:
// the durable store path, the installation identifier source, the log
// verbosity, and the default session settings applied on first run.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"secvault/internal/cryptoprim"
	"secvault/internal/sessionsettings"
)

// StaticInstallationID implements devicebind.InstallationIDProvider
// over a value resolved once at startup.
type StaticInstallationID string

// InstallationID returns id unconditionally.
func (id StaticInstallationID) InstallationID(_ context.Context) (string, error) {
	return string(id), nil
}

// Config is the fully resolved, defaulted configuration.
type Config struct {
	StorePath       string
	InstallationID  string
	Verbose         bool
	DefaultSettings sessionsettings.Settings
}

// Load reads configuration from (in ascending priority) defaults, a
// config file at configPath (if non-empty and present), environment
// variables prefixed SECVAULT_, and any values already bound to v by
// the caller (e.g. cobra persistent flags via BindPFlag).
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	v.SetDefault("store_path", filepath.Join(home, ".secvault", "vault.db"))
	v.SetDefault("installation_id_path", filepath.Join(home, ".secvault", "installation_id"))
	v.SetDefault("verbose", false)
	v.SetDefault("session_expiry_minutes", sessionsettings.Default().SessionExpiryMinutes)
	v.SetDefault("inactivity_timeout_minutes", sessionsettings.Default().InactivityTimeoutMinutes)
	v.SetDefault("persist_session", sessionsettings.Default().PersistSession)

	v.SetEnvPrefix("SECVAULT")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)

		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, fmt.Errorf("config: failed to read %s: %w", configPath, err)
			}
		}
	}

	installationID, err := loadOrCreateInstallationID(v.GetString("installation_id_path"))
	if err != nil {
		return nil, err
	}

	return &Config{
		StorePath:      v.GetString("store_path"),
		InstallationID: installationID,
		Verbose:        v.GetBool("verbose"),
		DefaultSettings: sessionsettings.Sanitize(sessionsettings.Settings{
			PersistSession:           v.GetBool("persist_session"),
			SessionExpiryMinutes:     v.GetInt("session_expiry_minutes"),
			InactivityTimeoutMinutes: v.GetInt("inactivity_timeout_minutes"),
		}),
	}, nil
}

// loadOrCreateInstallationID reads a stable-per-install UUID-ish
// string from path, generating and persisting one on first run.
func loadOrCreateInstallationID(path string) (string, error) {
	if raw, err := os.ReadFile(path); err == nil {
		return string(raw), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("config: failed to create config directory: %w", err)
	}

	id, err := randomInstallationID()
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, []byte(id), 0o600); err != nil {
		return "", fmt.Errorf("config: failed to persist installation id: %w", err)
	}

	return id, nil
}

func randomInstallationID() (string, error) {
	hexID, err := cryptoprim.RandomHex(16)
	if err != nil {
		return "", fmt.Errorf("config: failed to generate installation id: %w", err)
	}

	return hexID, nil
}
