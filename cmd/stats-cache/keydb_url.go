package main

import (
	"os"
	"strings"

	"go.uber.org/zap"

	"go-stats-cache/internal/config"
)

const defaultKeyDBURL = "redis://keydb:6379"

// GetKeyDBURL returns KeyDB URL with the following priority:
// 1. KEYDB_URL environment variable
// 2. CACHE_KEYDB_URL_FILE file content
// 3. Default value
func GetKeyDBURL(env config.EnvOverrides, logger *zap.Logger) string {
	// Priority 1: Environment variable
	if env.KeyDBURL != "" {
		logger.Debug("Using KeyDB URL from environment variable")
		return env.KeyDBURL
	}

	// Priority 2: Configurable connection file path
	if content, err := os.ReadFile(env.KeyDBURLFile); err == nil {
		keydbURL := strings.TrimSpace(string(content))
		if len(keydbURL) > 0 {
			logger.Debug("Using KeyDB URL from connection file", zap.String("file", env.KeyDBURLFile))
			return keydbURL
		}
	} else {
		logger.Debug("KeyDB connection file not found or empty", zap.String("file", env.KeyDBURLFile))
	}

	// Priority 3: Default
	logger.Debug("Using default KeyDB URL")
	return defaultKeyDBURL
}
