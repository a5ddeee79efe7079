package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earlybirdlabs/sparrow/pkg/logger"
)

func stubDocumentIndex(t *testing.T, baseURL string, pollInterval, maxWait time.Duration) *DocumentIndex {
	t.Helper()
	return &DocumentIndex{
		client: openai.NewClient(
			option.WithAPIKey("test"),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(0),
		),
		assistantID:  "asst_test",
		pollInterval: pollInterval,
		maxWait:      maxWait,
		log:          testLogger(t).WithFields(logger.StringField("component", "document_index")),
	}
}

func runStatusServer(status string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"run_1","object":"thread.run","status":%q}`, status)
	}))
}

func TestWaitForRun_TimesOutOnStuckRun(t *testing.T) {
	srv := runStatusServer("in_progress")
	defer srv.Close()

	d := stubDocumentIndex(t, srv.URL, 2*time.Millisecond, 50*time.Millisecond)

	start := time.Now()
	err := d.waitForRun(context.Background(), "thread_1", "run_1")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunTimeout)
	assert.Less(t, time.Since(start), 5*time.Second, "wait is bounded by the deadline, not open-ended")
}

func TestWaitForRun_CompletedRunReturns(t *testing.T) {
	srv := runStatusServer("completed")
	defer srv.Close()

	d := stubDocumentIndex(t, srv.URL, 2*time.Millisecond, time.Second)
	assert.NoError(t, d.waitForRun(context.Background(), "thread_1", "run_1"))
}

func TestWaitForRun_FailedRunSurfacesStatus(t *testing.T) {
	srv := runStatusServer("failed")
	defer srv.Close()

	d := stubDocumentIndex(t, srv.URL, 2*time.Millisecond, time.Second)
	err := d.waitForRun(context.Background(), "thread_1", "run_1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
}
