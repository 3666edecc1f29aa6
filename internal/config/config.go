// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"

	"github.com/aristath/docpoller/internal/domain"
	"github.com/aristath/docpoller/internal/scheduler"
)

// Defaults applied before the config file and environment are read.
const (
	DefaultEndpoint          = "https://portal.aiforged.com"
	DefaultAppName           = "Skills Sharing Session 1"
	DefaultComment           = "Hello from Skills Sharing Session 1"
	DefaultFieldDefinitionID = 212751
	DefaultTokenPath         = "/Token"
	DefaultClientID          = "aiforged"
)

// Config holds application configuration
type Config struct {
	// Remote service
	Endpoint  string
	APIKey    string // Takes precedence over Username/Password when set
	Username  string
	Password  string
	ProjectID int
	ServiceID int
	AppName   string
	TokenPath string // OAuth2 token endpoint, relative to Endpoint
	ClientID  string

	RequestTimeout    time.Duration
	RequestsPerSecond float64 // 0 disables pacing

	// Polling
	Lookback          time.Duration // Subtracted from now to form the query start date
	Interval          time.Duration // Delay between cycles
	Schedule          string        // Optional cron spec, replaces Interval when set
	SourceStatus      domain.DocumentStatus
	TargetStatus      domain.DocumentStatus
	Comment           string
	FieldDefinitionID int

	// Process
	LogLevel   string
	LogPretty  bool
	StatusPort int // 0 disables the status server
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Endpoint:          DefaultEndpoint,
		AppName:           DefaultAppName,
		TokenPath:         DefaultTokenPath,
		ClientID:          DefaultClientID,
		RequestTimeout:    30 * time.Second,
		RequestsPerSecond: 5,
		Lookback:          24 * time.Hour,
		Interval:          5 * time.Minute,
		SourceStatus:      domain.StatusCustomVerified,
		TargetStatus:      domain.StatusCustomProcessed,
		Comment:           DefaultComment,
		FieldDefinitionID: DefaultFieldDefinitionID,
		LogLevel:          "info",
		LogPretty:         true,
		StatusPort:        8080,
	}
}

// Load reads configuration from defaults, the optional YAML file named by
// AIFORGED_CONFIG_FILE, a .env file and the environment, in that order.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("AIFORGED_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// UsesAPIKey reports whether requests authenticate with the API key header.
func (c *Config) UsesAPIKey() bool {
	return c.APIKey != ""
}

// AuthMode names the credential mode for logs and the status endpoint.
func (c *Config) AuthMode() string {
	if c.UsesAPIKey() {
		return "api_key"
	}
	return "password"
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.Required, is.URL),
		validation.Field(&c.ProjectID, validation.Required, validation.Min(1)),
		validation.Field(&c.ServiceID, validation.Required, validation.Min(1)),
		validation.Field(&c.Username,
			validation.When(!c.UsesAPIKey(), validation.Required.Error("is required when no API key is set")),
		),
		validation.Field(&c.Password,
			validation.When(!c.UsesAPIKey(), validation.Required.Error("is required when no API key is set")),
		),
		validation.Field(&c.TokenPath, validation.When(!c.UsesAPIKey(), validation.Required)),
		validation.Field(&c.RequestTimeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.RequestsPerSecond, validation.Min(0.0)),
		validation.Field(&c.Lookback, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Interval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Schedule, validation.By(validSchedule)),
		validation.Field(&c.SourceStatus, validation.By(knownStatus)),
		validation.Field(&c.TargetStatus, validation.By(knownStatus)),
		validation.Field(&c.FieldDefinitionID, validation.Required, validation.Min(1)),
		validation.Field(&c.StatusPort, validation.Min(0), validation.Max(65535)),
	)
}

// Redacted returns the configuration without credentials, for the status endpoint.
func (c *Config) Redacted() map[string]interface{} {
	return map[string]interface{}{
		"endpoint":            c.Endpoint,
		"auth_mode":           c.AuthMode(),
		"project_id":          c.ProjectID,
		"service_id":          c.ServiceID,
		"lookback":            c.Lookback.String(),
		"interval":            c.Interval.String(),
		"schedule":            c.Schedule,
		"source_status":       c.SourceStatus.String(),
		"target_status":       c.TargetStatus.String(),
		"field_definition_id": c.FieldDefinitionID,
	}
}

func validSchedule(value interface{}) error {
	spec, _ := value.(string)
	if spec == "" {
		return nil
	}
	if _, err := scheduler.ParseSchedule(spec); err != nil {
		return errors.New("must be a valid cron spec")
	}
	return nil
}

func knownStatus(value interface{}) error {
	status, _ := value.(domain.DocumentStatus)
	if _, err := domain.ParseDocumentStatus(status.String()); err != nil {
		return errors.New("must be a known document status")
	}
	return nil
}

// applyEnv overrides fields with any environment variables that are set.
func (c *Config) applyEnv() error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	setString(&c.Endpoint, "AIFORGED_ENDPOINT")
	setString(&c.APIKey, "AIFORGED_API_KEY")
	setString(&c.Username, "AIFORGED_USERNAME")
	setString(&c.Password, "AIFORGED_PASSWORD")
	setString(&c.AppName, "AIFORGED_APP_NAME")
	setString(&c.TokenPath, "AIFORGED_TOKEN_PATH")
	setString(&c.ClientID, "AIFORGED_CLIENT_ID")
	setString(&c.Schedule, "AIFORGED_SCHEDULE")
	setString(&c.Comment, "AIFORGED_COMMENT")
	setString(&c.LogLevel, "LOG_LEVEL")

	collect(setInt(&c.ProjectID, "AIFORGED_PROJECT_ID"))
	collect(setInt(&c.ServiceID, "AIFORGED_SERVICE_ID"))
	collect(setInt(&c.FieldDefinitionID, "AIFORGED_FIELD_DEFINITION_ID"))
	collect(setInt(&c.StatusPort, "STATUS_PORT"))
	collect(setFloat(&c.RequestsPerSecond, "AIFORGED_REQUESTS_PER_SECOND"))
	collect(setBool(&c.LogPretty, "LOG_PRETTY"))
	collect(setDuration(&c.Lookback, "AIFORGED_START_DATE_TIME_SPAN"))
	collect(setDuration(&c.Interval, "AIFORGED_INTERVAL"))
	collect(setDuration(&c.RequestTimeout, "AIFORGED_REQUEST_TIMEOUT"))
	collect(setStatus(&c.SourceStatus, "AIFORGED_SOURCE_STATUS"))
	collect(setStatus(&c.TargetStatus, "AIFORGED_TARGET_STATUS"))

	return errors.Join(errs...)
}

// Helper functions
func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setInt(dst *int, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, value)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("%s: invalid number %q", key, value)
	}
	*dst = f
	return nil
}

func setBool(dst *bool, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s: invalid boolean %q", key, value)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	d, err := ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func setStatus(dst *domain.DocumentStatus, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	status, err := domain.ParseDocumentStatus(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = status
	return nil
}
