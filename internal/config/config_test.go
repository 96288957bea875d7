package config

import (
	"net/url"
	"strings"
	"testing"
)

func setTestEnv(t *testing.T) {
	t.Helper()

	t.Setenv("LOOMMAIL_ENV", "production")
	t.Setenv("LOOMMAIL_ENCRYPTION_KEY_BASE64", "dGVzdC1rZXktMTIzNDU2Nzg5MDEyMzQ1Njc4OTAxMjM=")
	t.Setenv("GOOGLE_CLIENT_ID", "client-id.apps.googleusercontent.com")
	t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")
	t.Setenv("LOOMMAIL_DB_PASSWORD", "test-password")
	t.Setenv("LOOMMAIL_DB_HOST", "localhost")
	t.Setenv("LOOMMAIL_DB_PORT", "5432")
	t.Setenv("LOOMMAIL_DB_USER", "test-user")
	t.Setenv("LOOMMAIL_DB_NAME", "testdb")
	t.Setenv("PORT", "3000")
}

func TestNewConfig(t *testing.T) {
	setTestEnv(t)

	config, err := NewConfig()
	if err != nil {
		t.Fatalf("NewConfig() returned error: %v", err)
	}

	if config.Environment != "production" {
		t.Errorf("expected Environment 'production', got '%s'", config.Environment)
	}

	if config.GoogleClientID != "client-id.apps.googleusercontent.com" {
		t.Errorf("expected GoogleClientID 'client-id.apps.googleusercontent.com', got '%s'", config.GoogleClientID)
	}

	if config.Port != "3000" {
		t.Errorf("expected Port '3000', got '%s'", config.Port)
	}
}

func TestNewConfigMissingRequired(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"missing encryption key", "LOOMMAIL_ENCRYPTION_KEY_BASE64"},
		{"missing Google client id", "GOOGLE_CLIENT_ID"},
		{"missing Google client secret", "GOOGLE_CLIENT_SECRET"},
		{"missing database password", "LOOMMAIL_DB_PASSWORD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setTestEnv(t)
			t.Setenv(tt.key, "")

			if _, err := NewConfig(); err == nil {
				t.Errorf("expected error when %s is unset", tt.key)
			} else if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("expected error to name %s, got: %v", tt.key, err)
			}
		})
	}
}

func TestParseCategories(t *testing.T) {
	t.Run("unset falls back to defaults", func(t *testing.T) {
		categories := parseCategories("")
		if len(categories) != len(defaultCategories) {
			t.Errorf("got %d categories, want %d", len(categories), len(defaultCategories))
		}
	})

	t.Run("comma-separated list is trimmed", func(t *testing.T) {
		categories := parseCategories(" Work , Personal ,, ")
		if len(categories) != 2 || categories[0] != "Work" || categories[1] != "Personal" {
			t.Errorf("categories = %v", categories)
		}
	})

	t.Run("only separators falls back to defaults", func(t *testing.T) {
		categories := parseCategories(" , ,")
		if len(categories) != len(defaultCategories) {
			t.Errorf("got %d categories, want %d", len(categories), len(defaultCategories))
		}
	})
}

func TestGetDatabaseURL(t *testing.T) {
	setTestEnv(t)

	config, err := NewConfig()
	if err != nil {
		t.Fatalf("NewConfig() returned error: %v", err)
	}

	dbURL := config.GetDatabaseURL()

	parsed, err := url.Parse(dbURL)
	if err != nil {
		t.Fatalf("GetDatabaseURL() returned unparseable URL: %v", err)
	}

	if parsed.Scheme != "postgres" {
		t.Errorf("expected scheme 'postgres', got '%s'", parsed.Scheme)
	}

	if parsed.Hostname() != "localhost" {
		t.Errorf("expected host 'localhost', got '%s'", parsed.Hostname())
	}

	if got := strings.TrimPrefix(parsed.Path, "/"); got != "testdb" {
		t.Errorf("expected database 'testdb', got '%s'", got)
	}
}
