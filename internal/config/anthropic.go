package config

import "time"

// AnthropicConfig holds Anthropic-specific configuration. Claude also serves
// the vision-description calls for image attachments.
type AnthropicConfig struct {
	APIKey  string        `env:"ANTHROPIC_API_KEY" yaml:"api_key"`
	Model   string        `env:"ANTHROPIC_MODEL" yaml:"model" default:"claude-3-haiku-20240307"`
	Timeout time.Duration `env:"ANTHROPIC_TIMEOUT" yaml:"timeout" default:"60s"`
}
