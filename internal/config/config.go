package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/marcus/cadence/internal/models"
)

const configFile = ".cadence/config.json"

// Load reads the config from disk
func Load(baseDir string) (*models.Config, error) {
	configPath := filepath.Join(baseDir, configFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &models.Config{}, nil
		}
		return nil, err
	}

	var cfg models.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the config to disk
func Save(baseDir string, cfg *models.Config) error {
	configPath := filepath.Join(baseDir, configFile)

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// SetActiveScope sets the scope subsequent commands default to
func SetActiveScope(baseDir string, scopeID string) error {
	cfg, err := Load(baseDir)
	if err != nil {
		return err
	}

	cfg.ActiveScopeID = scopeID
	return Save(baseDir, cfg)
}

// GetActiveScope returns the default scope ID
func GetActiveScope(baseDir string) (string, error) {
	cfg, err := Load(baseDir)
	if err != nil {
		return "", err
	}
	return cfg.ActiveScopeID, nil
}

// SetWebhook configures the audit webhook endpoint
func SetWebhook(baseDir, url, secret string, enabled bool) error {
	cfg, err := Load(baseDir)
	if err != nil {
		return err
	}

	cfg.WebhookURL = url
	cfg.WebhookSecret = secret
	cfg.WebhookEnabled = enabled
	return Save(baseDir, cfg)
}
