package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP. Empty URL means no broker: mutations trigger analysis inline.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// OpenAI
	OpenAIAPIKey  string
	OpenAIAPIURL  string
	OpenAIModel   string
	OpenAITimeout time.Duration

	// Google Sheets export (optional)
	GoogleSpreadsheetID string
	GoogleSheetName     string
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/finbuddy.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finbuddy"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "analysis_runs"),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIAPIURL:  getEnv("OPENAI_API_URL", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", ""),
		OpenAITimeout: getEnvDuration("OPENAI_TIMEOUT", 30*time.Second),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", ""),
	}

	return cfg
}

// UseAI reports whether AI insights are currently enabled. Read fresh on
// every analysis run, so flipping the environment variable takes effect
// without a restart.
func UseAI() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("USE_AI_INSIGHTS")))
	return v == "1" || v == "true" || v == "yes"
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	}

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

	if c.OpenAITimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid OpenAI timeout %v: must be at least 1 second", c.OpenAITimeout))
	} else if c.OpenAITimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid OpenAI timeout %v: must be at most 5 minutes", c.OpenAITimeout))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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
