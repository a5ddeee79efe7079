package llm

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/earlybirdlabs/sparrow/pkg/logger"
)

// DocumentIndex wraps the OpenAI assistants API: per-thread conversation
// handles, vector stores holding uploaded documents, and retrieval runs that
// answer questions against the indexed content.
type DocumentIndex struct {
	client       openai.Client
	assistantID  string
	pollInterval time.Duration
	maxWait      time.Duration
	log          logger.Logger
}

// NewDocumentIndex creates a document index client.
func NewDocumentIndex(apiKey, assistantID string, pollInterval, maxWait time.Duration, log logger.Logger) (*DocumentIndex, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("document index: API key is required")
	}
	if assistantID == "" {
		return nil, fmt.Errorf("document index: assistant ID is required")
	}

	return &DocumentIndex{
		client:       openai.NewClient(option.WithAPIKey(apiKey)),
		assistantID:  assistantID,
		pollInterval: pollInterval,
		maxWait:      maxWait,
		log:          log.WithFields(logger.StringField("component", "document_index")),
	}, nil
}

// CreateConversation allocates a provider-side thread and returns its handle.
func (d *DocumentIndex) CreateConversation(ctx context.Context) (string, error) {
	thread, err := d.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", fmt.Errorf("create assistant thread: %w", err)
	}
	return thread.ID, nil
}

// CreateStore allocates a vector store and returns its handle.
func (d *DocumentIndex) CreateStore(ctx context.Context, name string) (string, error) {
	store, err := d.client.VectorStores.New(ctx, openai.VectorStoreNewParams{
		Name: openai.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("create vector store: %w", err)
	}
	return store.ID, nil
}

// IndexFile uploads document bytes and attaches them to a vector store.
func (d *DocumentIndex) IndexFile(ctx context.Context, storeID, filename, mimeType string, data []byte) error {
	file, err := d.client.Files.New(ctx, openai.FileNewParams{
		File:    openai.File(bytes.NewReader(data), filename, mimeType),
		Purpose: openai.FilePurposeAssistants,
	})
	if err != nil {
		return fmt.Errorf("upload file %s: %w", filename, err)
	}

	_, err = d.client.VectorStores.Files.New(ctx, storeID, openai.VectorStoreFileNewParams{
		FileID: file.ID,
	})
	if err != nil {
		return fmt.Errorf("attach file %s to store: %w", filename, err)
	}

	d.log.Info("document indexed",
		logger.StringField("filename", filename),
		logger.StringField("store_id", storeID))
	return nil
}

// Query appends the question to the conversation, runs the assistant against
// the thread's vector store, and returns its answer. The run is polled with
// capped backoff and abandoned once the configured deadline passes.
func (d *DocumentIndex) Query(ctx context.Context, threadID, storeID, question string) (string, error) {
	if storeID != "" {
		_, err := d.client.Beta.Threads.Update(ctx, threadID, openai.BetaThreadUpdateParams{
			ToolResources: openai.BetaThreadUpdateParamsToolResources{
				FileSearch: openai.BetaThreadUpdateParamsToolResourcesFileSearch{
					VectorStoreIDs: []string{storeID},
				},
			},
		})
		if err != nil {
			return "", fmt.Errorf("attach store to thread: %w", err)
		}
	}

	_, err := d.client.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role: openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(question),
		},
	})
	if err != nil {
		return "", fmt.Errorf("append thread message: %w", err)
	}

	run, err := d.client.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: d.assistantID,
	})
	if err != nil {
		return "", fmt.Errorf("start retrieval run: %w", err)
	}

	if err := d.waitForRun(ctx, threadID, run.ID); err != nil {
		return "", err
	}

	return d.latestAssistantReply(ctx, threadID)
}

// waitForRun polls a run until it reaches a terminal state. The interval
// doubles up to eight times the configured base, and the whole wait is bounded
// by the configured deadline.
func (d *DocumentIndex) waitForRun(ctx context.Context, threadID, runID string) error {
	ctx, cancel := context.WithTimeout(ctx, d.maxWait)
	defer cancel()

	interval := d.pollInterval
	maxInterval := d.pollInterval * 8

	for {
		run, err := d.client.Beta.Threads.Runs.Get(ctx, threadID, runID)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w after %s", ErrRunTimeout, d.maxWait)
			}
			return fmt.Errorf("poll retrieval run: %w", err)
		}

		switch run.Status {
		case openai.RunStatusCompleted:
			return nil
		case openai.RunStatusFailed, openai.RunStatusCancelled, openai.RunStatusExpired, openai.RunStatusIncomplete:
			return fmt.Errorf("retrieval run ended with status %s", run.Status)
		case openai.RunStatusRequiresAction:
			return fmt.Errorf("retrieval run requires unsupported tool action")
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w after %s", ErrRunTimeout, d.maxWait)
		case <-time.After(interval):
		}
		if interval < maxInterval {
			interval *= 2
		}
	}
}

func (d *DocumentIndex) latestAssistantReply(ctx context.Context, threadID string) (string, error) {
	page, err := d.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		Order: openai.BetaThreadMessageListParamsOrderDesc,
		Limit: openai.Int(1),
	})
	if err != nil {
		return "", fmt.Errorf("list thread messages: %w", err)
	}

	for _, msg := range page.Data {
		if msg.Role != openai.MessageRoleAssistant {
			continue
		}
		var text string
		for _, block := range msg.Content {
			if block.Type == "text" {
				text += block.Text.Value
			}
		}
		if text != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("retrieval run: %w", ErrEmptyCompletion)
}
