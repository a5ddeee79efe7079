package config

import "time"

// OpenAIConfig holds OpenAI-specific configuration. The OpenAI account also
// hosts the assistants document index, audio transcription and speech
// synthesis, so the API key is required even when another provider serves
// conversations.
type OpenAIConfig struct {
	APIKey     string        `env:"OPENAI_API_KEY" yaml:"api_key" required:"true"`
	Model      string        `env:"OPENAI_MODEL" yaml:"model" default:"gpt-4-turbo"`
	APIBaseURL string        `env:"OPENAI_API_URL" yaml:"api_base_url"`
	// AssistantID is the provider-side assistant used for retrieval runs.
	AssistantID string       `env:"OPENAI_ASSISTANT_ID" yaml:"assistant_id"`
	Timeout     time.Duration `env:"OPENAI_TIMEOUT" yaml:"timeout" default:"60s"`
}
