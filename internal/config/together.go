package config

// TogetherConfig holds Together AI configuration (OpenAI-compatible API).
type TogetherConfig struct {
	APIKey     string `env:"TOGETHER_API_KEY" yaml:"api_key"`
	Model      string `env:"TOGETHER_MODEL" yaml:"model" default:"meta-llama/Llama-3-70b-chat-hf"`
	APIBaseURL string `env:"TOGETHER_API_URL" yaml:"api_base_url" default:"https://api.together.xyz/v1"`
}
