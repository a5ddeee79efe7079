package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/earlybirdlabs/sparrow/pkg/logger"
	"github.com/earlybirdlabs/sparrow/pkg/metrics"
)

// Dispatch modes, used as metric labels.
const (
	modeDirect     = "direct"
	modeStructured = "structured"
)

// Dispatcher routes completion requests to a registered provider. A failed
// call is retried exactly once on the fallback provider; a failure there
// surfaces both errors to the caller.
type Dispatcher struct {
	providers  map[string]Provider
	primary    string
	fallback   string
	classifier string

	temperature float64
	log         logger.Logger
	metrics     *metrics.Metrics
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTemperature sets the sampling temperature for conversational calls.
func WithTemperature(t float64) DispatcherOption {
	return func(d *Dispatcher) { d.temperature = t }
}

// WithClassifierProvider routes classification calls to a dedicated provider.
func WithClassifierProvider(name string) DispatcherOption {
	return func(d *Dispatcher) { d.classifier = name }
}

// WithMetrics attaches dispatch metrics.
func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher builds a dispatcher over the given providers. primary and
// fallback must name registered providers.
func NewDispatcher(providers []Provider, primary, fallback string, log logger.Logger, opts ...DispatcherOption) (*Dispatcher, error) {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	if _, ok := byName[primary]; !ok {
		return nil, fmt.Errorf("primary provider %q is not registered", primary)
	}
	if _, ok := byName[fallback]; !ok {
		return nil, fmt.Errorf("fallback provider %q is not registered", fallback)
	}

	d := &Dispatcher{
		providers:  byName,
		primary:    primary,
		fallback:   fallback,
		classifier: primary,
		log:        log.WithFields(logger.StringField("component", "dispatcher")),
	}
	for _, opt := range opts {
		opt(d)
	}
	if _, ok := byName[d.classifier]; !ok {
		return nil, fmt.Errorf("classifier provider %q is not registered", d.classifier)
	}
	return d, nil
}

// Respond produces a conversational reply. The system prompt follows the
// request type: feature requests and bug reports get the project-manager
// persona, everything else the general one.
func (d *Dispatcher) Respond(ctx context.Context, reqType RequestType, messages []Message) (string, error) {
	req := CompletionRequest{
		System:      SystemPromptFor(reqType),
		Messages:    messages,
		Temperature: d.temperature,
	}
	return d.completeWithFallback(ctx, modeDirect, req)
}

// Classify assigns a request type to message text. Any failure, including a
// tag outside the known set, returns ErrNoClassification so callers can fall
// back to plain conversation handling.
func (d *Dispatcher) Classify(ctx context.Context, text string) (RequestType, error) {
	var out struct {
		RequestType string `json:"request_type"`
	}
	schema := `{"request_type": "<one of: feature_request, bug_report, general_request, ai_conversation, conversation>"}`

	err := d.completeStructured(ctx, d.providers[d.classifier], classifyPrompt, text, schema, &out)
	if err != nil {
		d.log.Warn("classification failed, treating as conversation", logger.ErrorField(err))
		return "", fmt.Errorf("%w: %v", ErrNoClassification, err)
	}

	reqType, ok := ParseRequestType(strings.TrimSpace(out.RequestType))
	if !ok {
		d.log.Warn("classifier returned unknown tag",
			logger.StringField("tag", out.RequestType))
		return "", fmt.Errorf("%w: unknown tag %q", ErrNoClassification, out.RequestType)
	}
	return reqType, nil
}

// ExtractTicket distills a conversation transcript into a structured issue
// ticket.
func (d *Dispatcher) ExtractTicket(ctx context.Context, transcript string) (*IssueTicket, error) {
	var ticket IssueTicket
	schema := `{
  "type": "<one of: new_feature, bug, improvement>",
  "summary": "<one-line summary of the issue>",
  "description": "<detailed description for the development team>",
  "action_items": ["<concrete action item>", "..."]
}`

	primary := d.providers[d.primary]
	err := d.completeStructured(ctx, primary, ticketPrompt, transcript, schema, &ticket)
	if err != nil && d.fallback != d.primary {
		d.countFallback()
		ferr := d.completeStructured(ctx, d.providers[d.fallback], ticketPrompt, transcript, schema, &ticket)
		if ferr != nil {
			return nil, multierror.Append(err, ferr)
		}
		err = nil
	}
	if err != nil {
		return nil, err
	}

	if verr := ticket.Validate(); verr != nil {
		return nil, fmt.Errorf("extracted ticket invalid: %w", verr)
	}
	return &ticket, nil
}

// completeWithFallback runs a completion on the primary provider and retries
// exactly once on the fallback when it fails.
func (d *Dispatcher) completeWithFallback(ctx context.Context, mode string, req CompletionRequest) (string, error) {
	start := time.Now()
	defer d.observeDuration(start)

	primary := d.providers[d.primary]
	d.countCall(d.primary, mode)

	text, err := primary.Complete(ctx, req)
	if err == nil {
		return text, nil
	}
	d.countError(d.primary)
	d.log.Warn("primary provider failed",
		logger.StringField("provider", d.primary),
		logger.ErrorField(err))

	if d.fallback == d.primary {
		return "", err
	}

	d.countFallback()
	d.countCall(d.fallback, mode)
	text, ferr := d.providers[d.fallback].Complete(ctx, req)
	if ferr != nil {
		d.countError(d.fallback)
		return "", multierror.Append(err, ferr)
	}
	return text, nil
}

// completeStructured embeds the expected JSON shape in the system prompt and
// parses the reply, tolerating a fenced code block around the JSON.
func (d *Dispatcher) completeStructured(ctx context.Context, p Provider, system, user, schema string, out any) error {
	req := CompletionRequest{
		System: system + "\n\nRespond with a single JSON object of this exact shape and nothing else:\n" + schema,
		Messages: []Message{
			{Role: RoleUser, Content: user},
		},
	}

	d.countCall(p.Name(), modeStructured)
	raw, err := p.Complete(ctx, req)
	if err != nil {
		d.countError(p.Name())
		return err
	}

	if err := json.Unmarshal([]byte(stripCodeFence(raw)), out); err != nil {
		return fmt.Errorf("parse structured completion from %s: %w", p.Name(), err)
	}
	return nil
}

// stripCodeFence removes a surrounding markdown code fence, which some models
// add around JSON output despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func (d *Dispatcher) countCall(provider, mode string) {
	if d.metrics != nil {
		d.metrics.DispatchCalls.WithLabelValues(provider, mode).Inc()
	}
}

func (d *Dispatcher) countError(provider string) {
	if d.metrics != nil {
		d.metrics.ProviderErrors.WithLabelValues(provider).Inc()
	}
}

func (d *Dispatcher) countFallback() {
	if d.metrics != nil {
		d.metrics.FallbackRetries.Inc()
	}
}

func (d *Dispatcher) observeDuration(start time.Time) {
	if d.metrics != nil {
		d.metrics.DispatchSeconds.Observe(time.Since(start).Seconds())
	}
}
