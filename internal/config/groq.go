package config

// GroqConfig holds Groq configuration. Groq exposes an OpenAI-compatible
// API, so only the key, model and base URL vary.
type GroqConfig struct {
	APIKey     string `env:"GROQ_API_KEY" yaml:"api_key"`
	Model      string `env:"GROQ_MODEL" yaml:"model" default:"llama3-70b-8192"`
	APIBaseURL string `env:"GROQ_API_URL" yaml:"api_base_url" default:"https://api.groq.com/openai/v1"`
}
