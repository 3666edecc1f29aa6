package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aristath/docpoller/internal/domain"
)

// fileConfig mirrors an appsettings-style file with a "config" section.
// Durations and statuses stay strings here and are parsed by apply.
type fileConfig struct {
	Config struct {
		Endpoint          string   `yaml:"endpoint"`
		Username          string   `yaml:"username"`
		Password          string   `yaml:"password"`
		APIKey            string   `yaml:"apiKey"`
		ProjectID         int      `yaml:"projectId"`
		ServiceID         int      `yaml:"serviceId"`
		StartDateTimeSpan string   `yaml:"startDateTimeSpan"`
		Interval          string   `yaml:"interval"`
		Schedule          string   `yaml:"schedule"`
		AppName           string   `yaml:"appName"`
		TokenPath         string   `yaml:"tokenPath"`
		ClientID          string   `yaml:"clientId"`
		RequestTimeout    string   `yaml:"requestTimeout"`
		RequestsPerSecond *float64 `yaml:"requestsPerSecond"`
		SourceStatus      string   `yaml:"sourceStatus"`
		TargetStatus      string   `yaml:"targetStatus"`
		Comment           string   `yaml:"comment"`
		FieldDefinitionID int      `yaml:"fieldDefinitionId"`
	} `yaml:"config"`
}

// loadFile reads a YAML config file onto c. Keys that are absent keep their current value.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return fc.apply(c)
}

func (fc *fileConfig) apply(c *Config) error {
	f := fc.Config

	overrideString(&c.Endpoint, f.Endpoint)
	overrideString(&c.Username, f.Username)
	overrideString(&c.Password, f.Password)
	overrideString(&c.APIKey, f.APIKey)
	overrideString(&c.Schedule, f.Schedule)
	overrideString(&c.AppName, f.AppName)
	overrideString(&c.TokenPath, f.TokenPath)
	overrideString(&c.ClientID, f.ClientID)
	overrideString(&c.Comment, f.Comment)

	if f.ProjectID != 0 {
		c.ProjectID = f.ProjectID
	}
	if f.ServiceID != 0 {
		c.ServiceID = f.ServiceID
	}
	if f.FieldDefinitionID != 0 {
		c.FieldDefinitionID = f.FieldDefinitionID
	}
	if f.RequestsPerSecond != nil {
		c.RequestsPerSecond = *f.RequestsPerSecond
	}

	if err := overrideDuration(&c.Lookback, "startDateTimeSpan", f.StartDateTimeSpan); err != nil {
		return err
	}
	if err := overrideDuration(&c.Interval, "interval", f.Interval); err != nil {
		return err
	}
	if err := overrideDuration(&c.RequestTimeout, "requestTimeout", f.RequestTimeout); err != nil {
		return err
	}
	if err := overrideStatus(&c.SourceStatus, "sourceStatus", f.SourceStatus); err != nil {
		return err
	}
	return overrideStatus(&c.TargetStatus, "targetStatus", f.TargetStatus)
}

func overrideString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func overrideDuration(dst *time.Duration, key, value string) error {
	if value == "" {
		return nil
	}
	d, err := ParseDuration(value)
	if err != nil {
		return fmt.Errorf("config file %s: %w", key, err)
	}
	*dst = d
	return nil
}

func overrideStatus(dst *domain.DocumentStatus, key, value string) error {
	if value == "" {
		return nil
	}
	status, err := domain.ParseDocumentStatus(value)
	if err != nil {
		return fmt.Errorf("config file %s: %w", key, err)
	}
	*dst = status
	return nil
}
