package config

import "time"

// LLM provider constants.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGroq      = "groq"
	ProviderTogether  = "together"
)

// LLMConfig holds provider selection and dispatch tuning.
type LLMConfig struct {
	// Provider is the primary backend for conversational completions.
	Provider string `env:"LLM_PROVIDER" yaml:"provider" default:"groq"`
	// FallbackProvider is tried exactly once when the primary fails.
	FallbackProvider string `env:"LLM_FALLBACK_PROVIDER" yaml:"fallback_provider" default:"openai"`
	// ClassifierProvider runs the request-type classification call.
	ClassifierProvider string `env:"LLM_CLASSIFIER_PROVIDER" yaml:"classifier_provider" default:"groq"`

	Temperature float64 `env:"LLM_TEMPERATURE" yaml:"temperature" default:"0.7"`

	// Retrieval-mode run polling bounds.
	RetrievalPollInterval time.Duration `env:"LLM_RETRIEVAL_POLL_INTERVAL" yaml:"retrieval_poll_interval" default:"1s"`
	RetrievalMaxWait      time.Duration `env:"LLM_RETRIEVAL_MAX_WAIT" yaml:"retrieval_max_wait" default:"60s"`
}
