// Package jira files issue tickets against a Jira Cloud instance.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/earlybirdlabs/sparrow/internal/config"
	"github.com/earlybirdlabs/sparrow/internal/llm"
	"github.com/earlybirdlabs/sparrow/pkg/logger"
)

// Client issues requests against the Jira REST API v2.
type Client struct {
	baseURL    string
	username   string
	apiToken   string
	projectKey string
	httpClient *http.Client
	log        logger.Logger
}

// NewClient creates a Jira client from configuration.
func NewClient(cfg config.JiraConfig, log logger.Logger) (*Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("jira is not fully configured")
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.InstanceURL, "/"),
		username:   cfg.Username,
		apiToken:   cfg.APIToken,
		projectKey: cfg.ProjectKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.WithFields(logger.StringField("component", "jira")),
	}, nil
}

// issueTypeNames maps extracted ticket types onto Jira issue type names.
var issueTypeNames = map[llm.IssueType]string{
	llm.IssueTypeNewFeature:  "New Feature",
	llm.IssueTypeBug:         "Bug",
	llm.IssueTypeImprovement: "Improvement",
}

type createIssueRequest struct {
	Fields issueFields `json:"fields"`
}

type issueFields struct {
	Project     projectField `json:"project"`
	Summary     string       `json:"summary"`
	Description string       `json:"description"`
	IssueType   nameField    `json:"issuetype"`
}

type projectField struct {
	Key string `json:"key"`
}

type nameField struct {
	Name string `json:"name"`
}

type createIssueResponse struct {
	Key  string `json:"key"`
	Self string `json:"self"`
}

// CreateIssue files a ticket and returns the new issue key (e.g. "SPAR-42").
func (c *Client) CreateIssue(ctx context.Context, ticket *llm.IssueTicket) (string, error) {
	description := ticket.Description
	if len(ticket.ActionItems) > 0 {
		description += "\n\nAction items:\n* " + strings.Join(ticket.ActionItems, "\n* ")
	}

	typeName, ok := issueTypeNames[ticket.Type]
	if !ok {
		typeName = "Task"
	}

	body, err := json.Marshal(createIssueRequest{
		Fields: issueFields{
			Project:     projectField{Key: c.projectKey},
			Summary:     ticket.Summary,
			Description: description,
			IssueType:   nameField{Name: typeName},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal issue: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/rest/api/2/issue", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build issue request: %w", err)
	}
	req.SetBasicAuth(c.username, c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create issue: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create issue: status %d: %s", resp.StatusCode, respBody)
	}

	var created createIssueResponse
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("parse issue response: %w", err)
	}

	c.log.Info("jira issue created",
		logger.StringField("key", created.Key),
		logger.StringField("type", typeName))
	return created.Key, nil
}
