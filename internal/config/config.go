// Package config defines Sparrow's configuration surface. Each concern lives
// in its own file; everything is assembled into AppConfig and loaded from
// environment variables (and optionally a YAML file) by pkg/config.
package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/earlybirdlabs/sparrow/pkg/logger"
)

// AppConfig holds all application configuration.
type AppConfig struct {
	// Service identity
	ServiceName string `env:"SERVICE_NAME" yaml:"service_name" default:"sparrow"`
	Version     string `env:"VERSION" yaml:"version" default:"dev"`
	Environment string `env:"ENVIRONMENT" yaml:"environment" default:"development"`

	Slack     SlackConfig     `yaml:"slack"`
	LLM       LLMConfig       `yaml:"llm"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Groq      GroqConfig      `yaml:"groq"`
	Together  TogetherConfig  `yaml:"together"`
	Database  DatabaseConfig  `yaml:"database"`
	Jira      JiraConfig      `yaml:"jira"`
	Logging   LoggingConfig   `yaml:"logging"`
	Health    HealthConfig    `yaml:"health"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// Validate validates the configuration, accumulating every problem found.
func (c *AppConfig) Validate() error {
	var result error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		result = multierror.Append(result, fmt.Errorf(
			"log_level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		result = multierror.Append(result, fmt.Errorf(
			"log_format must be either 'json' or 'text', got %q", c.Logging.Format))
	}

	if err := c.Slack.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	if !knownProvider(c.LLM.Provider) {
		result = multierror.Append(result, fmt.Errorf(
			"llm provider must be one of [openai, anthropic, groq, together], got %q", c.LLM.Provider))
	}
	if !knownProvider(c.LLM.FallbackProvider) {
		result = multierror.Append(result, fmt.Errorf(
			"llm fallback provider must be one of [openai, anthropic, groq, together], got %q", c.LLM.FallbackProvider))
	}
	if !knownProvider(c.LLM.ClassifierProvider) {
		result = multierror.Append(result, fmt.Errorf(
			"llm classifier provider must be one of [openai, anthropic, groq, together], got %q", c.LLM.ClassifierProvider))
	}

	// a selected provider without its key would otherwise only fail at startup
	for _, sel := range []struct{ role, name string }{
		{"llm_provider", c.LLM.Provider},
		{"llm_fallback_provider", c.LLM.FallbackProvider},
		{"llm_classifier_provider", c.LLM.ClassifierProvider},
	} {
		if key, known := c.providerAPIKey(sel.name); known && key == "" {
			result = multierror.Append(result, fmt.Errorf(
				"%s is %q but no API key is configured for it", sel.role, sel.name))
		}
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf(
			"health port must be between 1 and 65535, got %d", c.Health.Port))
	}

	if c.Database.URL != "" && c.Database.MaxConnections <= 0 {
		result = multierror.Append(result, fmt.Errorf(
			"database_max_connections must be greater than 0 when database is configured"))
	}

	if c.LLM.RetrievalPollInterval <= 0 {
		result = multierror.Append(result, fmt.Errorf("retrieval poll interval must be greater than 0"))
	}
	if c.LLM.RetrievalMaxWait < c.LLM.RetrievalPollInterval {
		result = multierror.Append(result, fmt.Errorf(
			"retrieval max wait must be at least the poll interval"))
	}

	return result
}

// providerAPIKey returns the configured API key for a provider name. The
// second return is false for names no key belongs to.
func (c *AppConfig) providerAPIKey(name string) (string, bool) {
	switch strings.ToLower(name) {
	case ProviderOpenAI:
		return c.OpenAI.APIKey, true
	case ProviderAnthropic:
		return c.Anthropic.APIKey, true
	case ProviderGroq:
		return c.Groq.APIKey, true
	case ProviderTogether:
		return c.Together.APIKey, true
	}
	return "", false
}

func knownProvider(name string) bool {
	switch strings.ToLower(name) {
	case ProviderOpenAI, ProviderAnthropic, ProviderGroq, ProviderTogether:
		return true
	}
	return false
}

// GetLogLevel returns the parsed logger level.
func (c *AppConfig) GetLogLevel() logger.Level {
	return logger.ParseLevel(strings.ToLower(c.Logging.Level))
}

// IsProduction returns true when running in the production environment.
func (c *AppConfig) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

// LogConfig logs the loaded configuration without sensitive values.
func (c *AppConfig) LogConfig(log logger.Logger) {
	log.Info("configuration loaded",
		logger.StringField("service_name", c.ServiceName),
		logger.StringField("version", c.Version),
		logger.StringField("environment", c.Environment),
		logger.StringField("llm_provider", c.LLM.Provider),
		logger.StringField("llm_fallback", c.LLM.FallbackProvider),
		logger.StringField("log_level", c.Logging.Level),
		logger.BoolField("database_configured", c.Database.URL != ""),
		logger.BoolField("jira_configured", c.Jira.Enabled()),
		logger.BoolField("metrics_enabled", c.Metrics.Enabled),
	)
}
