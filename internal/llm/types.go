// Package llm provides the model-facing layer: chat providers, request
// classification, structured ticket extraction, audio transcription and
// synthesis, and the assistants-based document index.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RequestType is the classification assigned to an inbound message.
type RequestType string

// The closed set of request types the classifier may return.
const (
	RequestTypeFeatureRequest RequestType = "feature_request"
	RequestTypeBugReport      RequestType = "bug_report"
	RequestTypeGeneralRequest RequestType = "general_request"
	RequestTypeAIConversation RequestType = "ai_conversation"
	RequestTypeConversation   RequestType = "conversation"
)

// ParseRequestType maps a raw classifier tag onto the known set. Unknown tags
// return false; callers fall back to plain conversation handling.
func ParseRequestType(s string) (RequestType, bool) {
	switch RequestType(s) {
	case RequestTypeFeatureRequest, RequestTypeBugReport, RequestTypeGeneralRequest,
		RequestTypeAIConversation, RequestTypeConversation:
		return RequestType(s), true
	}
	return "", false
}

// NeedsTicketPrompt reports whether a request type should trigger the
// "create a Jira issue?" prompt instead of a conversational reply.
func (t RequestType) NeedsTicketPrompt() bool {
	return t == RequestTypeFeatureRequest || t == RequestTypeBugReport || t == RequestTypeGeneralRequest
}

// IssueType categorizes an extracted ticket.
type IssueType string

// Issue ticket categories.
const (
	IssueTypeNewFeature  IssueType = "new_feature"
	IssueTypeBug         IssueType = "bug"
	IssueTypeImprovement IssueType = "improvement"
)

// IssueTicket is the structured ticket extracted from a conversation.
type IssueTicket struct {
	Type        IssueType `json:"type"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	ActionItems []string  `json:"action_items"`
}

// Validate checks the fields a ticket must carry before it is filed.
func (t *IssueTicket) Validate() error {
	switch t.Type {
	case IssueTypeNewFeature, IssueTypeBug, IssueTypeImprovement:
	default:
		return fmt.Errorf("unknown issue type %q", t.Type)
	}
	if t.Summary == "" {
		return errors.New("ticket summary is empty")
	}
	return nil
}

// CompletionRequest is a single chat-completion call.
type CompletionRequest struct {
	System      string
	Messages    []Message
	Temperature float64
}

// Provider is a chat-completion backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Sentinel errors surfaced by this package.
var (
	// ErrNoClassification means the classifier call failed or returned a tag
	// outside the known set. Callers treat the message as plain conversation.
	ErrNoClassification = errors.New("no classification")
	// ErrRunTimeout means a retrieval run did not finish before the deadline.
	ErrRunTimeout = errors.New("retrieval run timed out")
	// ErrEmptyCompletion means a provider returned no usable text.
	ErrEmptyCompletion = errors.New("empty completion")
)
