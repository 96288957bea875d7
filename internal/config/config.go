package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// defaultCategories is the category set threads are sorted into when the
// deployment does not configure its own.
var defaultCategories = []string{
	"Personal",
	"Work-Related",
	"Transactional",
	"Notifications/Promotions",
	"Educational",
	"Legal and Administrative",
	"Health",
	"Travel",
}

type Config struct {
	Environment         string
	EncryptionKeyBase64 string
	GoogleClientID      string
	GoogleClientSecret  string
	DBHost              string
	DBPort              string
	DBUsername          string
	DBPassword          string
	DBName              string
	DBSSLMode           string
	Port                string
	Timezone            string
	Categories          []string
}

func NewConfig() (*Config, error) {
	env := os.Getenv("LOOMMAIL_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	config := &Config{
		Environment:         env,
		EncryptionKeyBase64: os.Getenv("LOOMMAIL_ENCRYPTION_KEY_BASE64"),
		GoogleClientID:      os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:  os.Getenv("GOOGLE_CLIENT_SECRET"),
		DBHost:              getEnvOrDefault("LOOMMAIL_DB_HOST", "localhost"),
		DBPort:              getEnvOrDefault("LOOMMAIL_DB_PORT", "5432"),
		DBUsername:          getEnvOrDefault("LOOMMAIL_DB_USER", "loommail"),
		DBPassword:          os.Getenv("LOOMMAIL_DB_PASSWORD"),
		DBName:              getEnvOrDefault("LOOMMAIL_DB_NAME", "loommail"),
		DBSSLMode:           getEnvOrDefault("LOOMMAIL_DB_SSLMODE", "disable"),
		Port:                getEnvOrDefault("PORT", "8080"),
		Timezone:            getEnvOrDefault("TZ", "UTC"),
		Categories:          parseCategories(os.Getenv("LOOMMAIL_CATEGORIES")),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.EncryptionKeyBase64 == "" {
		return fmt.Errorf("LOOMMAIL_ENCRYPTION_KEY_BASE64 is required")
	}

	if c.GoogleClientID == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID is required")
	}

	if c.GoogleClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_SECRET is required")
	}

	if c.DBPassword == "" {
		return fmt.Errorf("LOOMMAIL_DB_PASSWORD is required")
	}

	return nil
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUsername,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

// parseCategories splits a comma-separated category list, falling back to
// the default set when the variable is unset.
func parseCategories(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return defaultCategories
	}

	var categories []string
	for _, entry := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(entry); trimmed != "" {
			categories = append(categories, trimmed)
		}
	}
	if len(categories) == 0 {
		return defaultCategories
	}
	return categories
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
