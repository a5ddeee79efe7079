package config

// JiraConfig holds Jira Cloud credentials for issue creation.
type JiraConfig struct {
	InstanceURL string `env:"JIRA_INSTANCE_URL" yaml:"instance_url"`
	Username    string `env:"JIRA_USERNAME" yaml:"username"`
	APIToken    string `env:"JIRA_API_TOKEN" yaml:"api_token"`
	ProjectKey  string `env:"JIRA_PROJECT_KEY" yaml:"project_key"`
}

// Enabled returns true when Jira is fully configured.
func (c *JiraConfig) Enabled() bool {
	return c.InstanceURL != "" && c.Username != "" && c.APIToken != "" && c.ProjectKey != ""
}
