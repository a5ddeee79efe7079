package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// SlackConfig holds Slack-specific configuration.
type SlackConfig struct {
	// BotToken is the xoxb-* token used for Web API calls.
	BotToken string `env:"SLACK_BOT_TOKEN" yaml:"bot_token" required:"true"`
	// AppToken is the xapp-* token used for the Socket Mode connection.
	AppToken string `env:"SLACK_APP_TOKEN" yaml:"app_token" required:"true"`
	// UserToken is the xoxp-* token needed for file public-URL grant/revoke.
	UserToken string `env:"SLACK_USER_TOKEN" yaml:"user_token"`
	Debug     bool   `env:"SLACK_DEBUG" yaml:"debug"`
	// TicketReaction is the emoji name that triggers ticket extraction from a
	// thread.
	TicketReaction string `env:"SLACK_TICKET_REACTION" yaml:"ticket_reaction" default:"ebl"`
}

// Validate checks token formats.
func (c *SlackConfig) Validate() error {
	var result error
	if c.BotToken != "" && !strings.HasPrefix(c.BotToken, "xoxb-") {
		result = multierror.Append(result, fmt.Errorf("slack bot token must start with xoxb-"))
	}
	if c.AppToken != "" && !strings.HasPrefix(c.AppToken, "xapp-") {
		result = multierror.Append(result, fmt.Errorf("slack app token must start with xapp-"))
	}
	return result
}
