// Package monitoring assembles the health checks for the bot's downstream
// dependencies.
package monitoring

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/earlybirdlabs/sparrow/internal/config"
	"github.com/earlybirdlabs/sparrow/pkg/health"
	"github.com/earlybirdlabs/sparrow/pkg/health/checkers"
	"github.com/earlybirdlabs/sparrow/pkg/logger"
)

// Pinger is anything with a context-aware ping, which is all the database
// needs to expose here.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SlackAuthAPI is the slice of the Slack client used for the readiness check.
type SlackAuthAPI interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
}

// NewChecker builds the health checker. The process is always live; readiness
// covers the database, the Slack Web API and the Jira instance when one is
// configured. Nil or empty dependencies are skipped so a deployment without
// them still reports ready.
func NewChecker(cfg config.HealthConfig, db Pinger, slackAPI SlackAuthAPI, jiraURL string, log logger.Logger) *health.Checker {
	checker := health.New(
		health.WithTimeout(cfg.Timeout),
		health.WithFailureThreshold(cfg.FailureThreshold),
		health.WithLogger(log),
	)

	checker.AddLivenessCheck(health.NewCheckFunc("process", func(context.Context) error {
		return nil
	}))

	if db != nil {
		checker.AddReadinessCheck(health.NewCheckFunc("database", func(ctx context.Context) error {
			if err := db.Ping(ctx); err != nil {
				return fmt.Errorf("database ping: %w", err)
			}
			return nil
		}))
	}

	if slackAPI != nil {
		checker.AddReadinessCheck(health.NewCheckFunc("slack", func(ctx context.Context) error {
			if _, err := slackAPI.AuthTestContext(ctx); err != nil {
				return fmt.Errorf("slack auth test: %w", err)
			}
			return nil
		}))
	}

	if jiraURL != "" {
		checker.AddReadinessCheck(checkers.NewHTTPChecker(jiraURL, "jira"))
	}

	return checker
}
