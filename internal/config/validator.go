package config

import (
	"fmt"
	"os"
	"regexp"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateTelegramToken validates a Telegram bot token
func (v *Validator) ValidateTelegramToken(token string) error {
	if token == "" {
		return fmt.Errorf("telegram bot token cannot be empty")
	}

	// Telegram bot tokens have format: <bot_id>:<token>
	// Example: 123456789:ABCdefGHIjklMNOpqrsTUVwxyz
	pattern := regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)
	if !pattern.MatchString(token) {
		return fmt.Errorf("invalid Telegram bot token format")
	}

	return nil
}

// ValidateCatalogPath checks that the catalog base path exists and is a directory
func (v *Validator) ValidateCatalogPath(path string) error {
	if path == "" {
		return fmt.Errorf("catalog base path cannot be empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("catalog base path does not exist: %s", path)
		}
		return fmt.Errorf("failed to stat catalog base path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("catalog base path is not a directory: %s", path)
	}

	return nil
}

// ValidateLogLevel validates a log level string
func (v *Validator) ValidateLogLevel(level string) error {
	switch level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("invalid log level: %s (must be: debug, info, warn, error)", level)
	}
}
