package config

// MetricsConfig holds Prometheus exposure configuration. Metrics share the
// health listener.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" yaml:"enabled" default:"true"`
	Path    string `env:"METRICS_PATH" yaml:"path" default:"/metrics"`
}
