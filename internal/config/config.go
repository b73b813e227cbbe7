package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Backends
	APIURL       string
	FamilyAPIURL string
	PageSize     int
	HTTPTimeout  time.Duration
	CacheTTL     time.Duration

	// Local state
	DBPath     string
	SessionKey string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Sync worker
	SyncBatchSize  int
	SyncInterval   time.Duration
	SyncMaxRetries int
	MetricsAddr    string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	LogLevel string
}

func Load() *Config {
	return &Config{
		APIURL:       getEnv("PASSBOOK_API_URL", "http://localhost:8080"),
		FamilyAPIURL: getEnv("PASSBOOK_FAMILY_API_URL", ""),
		PageSize:     getEnvInt("PASSBOOK_PAGE_SIZE", 50),
		HTTPTimeout:  getEnvDuration("PASSBOOK_HTTP_TIMEOUT", 15*time.Second),
		CacheTTL:     getEnvDuration("PASSBOOK_CACHE_TTL", 30*time.Second),

		DBPath:     getEnv("PASSBOOK_DB_PATH", defaultDBPath()),
		SessionKey: getEnv("PASSBOOK_SESSION_KEY", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "passbook"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "passbook_outbox"),

		SyncBatchSize:  getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncInterval:   getEnvDuration("SYNC_INTERVAL", 30*time.Second),
		SyncMaxRetries: getEnvInt("SYNC_MAX_RETRIES", 5),
		MetricsAddr:    getEnv("METRICS_ADDR", ":9090"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate backend URLs
	if c.APIURL == "" {
		errors = append(errors, "API URL cannot be empty")
	} else if err := checkHTTPURL(c.APIURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid API URL '%s': %v", c.APIURL, err))
	}
	if c.FamilyAPIURL != "" {
		if err := checkHTTPURL(c.FamilyAPIURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid family API URL '%s': %v", c.FamilyAPIURL, err))
		}
	}

	if c.PageSize < 1 || c.PageSize > 100 {
		errors = append(errors, fmt.Sprintf("invalid page size %d: must be between 1 and 100", c.PageSize))
	}
	if c.HTTPTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must be positive", c.HTTPTimeout))
	}
	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	}

	// Validate SQLite path
	if c.DBPath == "" {
		errors = append(errors, "database path cannot be empty")
	} else {
		dir := filepath.Dir(c.DBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate worker configuration
	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if c.SyncMaxRetries < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync max retries %d: must be at least 1", c.SyncMaxRetries))
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateExport checks the settings only `passbook export` needs.
func (c *Config) ValidateExport() error {
	var errors []string
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for export")
	}
	if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for export")
	}
	if len(errors) > 0 {
		return fmt.Errorf("export configuration invalid:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// GoogleCredentials returns the service account key, reading the file when
// only a path is configured.
func (c *Config) GoogleCredentials() ([]byte, error) {
	if c.GoogleServiceAccountJSON != "" {
		return []byte(c.GoogleServiceAccountJSON), nil
	}
	if c.GoogleServiceAccountFile == "" {
		return nil, fmt.Errorf("no Google service account configured")
	}
	b, err := os.ReadFile(c.GoogleServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be 'http' or 'https'")
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./data/passbook.db"
	}
	return filepath.Join(dir, "passbook", "passbook.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
