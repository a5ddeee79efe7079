package jira

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earlybirdlabs/sparrow/internal/config"
	"github.com/earlybirdlabs/sparrow/internal/llm"
	"github.com/earlybirdlabs/sparrow/pkg/logger"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(config.JiraConfig{
		InstanceURL: url,
		Username:    "bot@example.com",
		APIToken:    "token",
		ProjectKey:  "SPAR",
	}, logger.NewLogger(logger.Config{Level: logger.ErrorLevel, Format: "text"}))
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresFullConfig(t *testing.T) {
	_, err := NewClient(config.JiraConfig{InstanceURL: "https://example.atlassian.net"},
		logger.NewLogger(logger.Config{Level: logger.ErrorLevel, Format: "text"}))
	assert.Error(t, err)
}

func TestCreateIssue(t *testing.T) {
	var got createIssueRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/api/2/issue", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "bot@example.com", user)
		assert.Equal(t, "token", pass)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(createIssueResponse{Key: "SPAR-42"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	key, err := c.CreateIssue(context.Background(), &llm.IssueTicket{
		Type:        llm.IssueTypeBug,
		Summary:     "Login fails on mobile",
		Description: "Users cannot log in.",
		ActionItems: []string{"Reproduce", "Fix"},
	})

	require.NoError(t, err)
	assert.Equal(t, "SPAR-42", key)
	assert.Equal(t, "SPAR", got.Fields.Project.Key)
	assert.Equal(t, "Bug", got.Fields.IssueType.Name)
	assert.Contains(t, got.Fields.Description, "Action items:")
	assert.Contains(t, got.Fields.Description, "* Reproduce")
}

func TestCreateIssue_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"errorMessages":["project is required"]}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.CreateIssue(context.Background(), &llm.IssueTicket{
		Type:    llm.IssueTypeBug,
		Summary: "x",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
