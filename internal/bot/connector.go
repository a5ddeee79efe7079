package bot

import (
	"context"
	"encoding/json"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/earlybirdlabs/sparrow/pkg/logger"
	"github.com/earlybirdlabs/sparrow/pkg/metrics"
)

// Connector runs the Socket Mode connection and feeds envelopes to the
// Handler. Every envelope is acknowledged before its handler runs; Slack
// redelivers unacknowledged events, and handling involves slow provider
// calls.
type Connector struct {
	socket  *socketmode.Client
	handler *Handler
	log     logger.Logger
	metrics *metrics.Metrics
}

// NewConnector creates a connector over an established client.
func NewConnector(client *Client, handler *Handler, log logger.Logger, m *metrics.Metrics) *Connector {
	return &Connector{
		socket:  socketmode.New(client.API()),
		handler: handler,
		log:     log.WithFields(logger.StringField("component", "connector")),
		metrics: m,
	}
}

// Run processes envelopes until the context is cancelled.
func (c *Connector) Run(ctx context.Context) error {
	go func() {
		for envelope := range c.socket.Events {
			c.handleEnvelope(ctx, envelope)
		}
	}()

	c.log.Info("starting socket mode connection")
	return c.socket.RunContext(ctx)
}

func (c *Connector) handleEnvelope(ctx context.Context, envelope socketmode.Event) {
	switch envelope.Type {
	case socketmode.EventTypeConnecting:
		c.log.Info("connecting to slack")

	case socketmode.EventTypeConnectionError:
		c.log.Error("slack connection failed")

	case socketmode.EventTypeConnected:
		c.log.Info("connected to slack")

	case socketmode.EventTypeHello:
		// connection confirmed, nothing to do

	case socketmode.EventTypeEventsAPI:
		event, ok := envelope.Data.(slackevents.EventsAPIEvent)
		if !ok {
			c.log.Warn("ignoring malformed events API envelope")
			return
		}
		c.socket.Ack(*envelope.Request)
		c.dispatchEvent(ctx, event, envelope.Request.Payload)

	case socketmode.EventTypeInteractive:
		callback, ok := envelope.Data.(slack.InteractionCallback)
		if !ok {
			c.log.Warn("ignoring malformed interactive envelope")
			return
		}
		c.socket.Ack(*envelope.Request)
		c.dispatchInteraction(ctx, &callback)

	case socketmode.EventTypeSlashCommand:
		cmd, ok := envelope.Data.(slack.SlashCommand)
		if !ok {
			c.log.Warn("ignoring malformed slash command envelope")
			return
		}
		c.socket.Ack(*envelope.Request)
		c.observe(cmd.Command, c.handler.HandleSlashCommand(ctx, &cmd))

	default:
		c.log.Debug("unsupported envelope type",
			logger.StringField("type", string(envelope.Type)))
	}
}

func (c *Connector) dispatchEvent(ctx context.Context, event slackevents.EventsAPIEvent, payload json.RawMessage) {
	if event.Type != slackevents.CallbackEvent {
		return
	}

	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		c.observe("message", c.handler.HandleMessage(ctx, ev, messageAttachments(payload)))
	case *slackevents.ReactionAddedEvent:
		c.observe("reaction_added", c.handler.HandleReaction(ctx, ev))
	case *slackevents.AppMentionEvent:
		// mentions also arrive as message events; avoid a double reply
		c.log.Debug("app mention received", logger.StringField("channel", ev.Channel))
	default:
		c.log.Debug("unhandled callback event",
			logger.StringField("type", event.InnerEvent.Type))
	}
}

func (c *Connector) dispatchInteraction(ctx context.Context, callback *slack.InteractionCallback) {
	switch callback.Type {
	case slack.InteractionTypeBlockActions:
		c.observe("block_actions", c.handler.HandleBlockAction(ctx, callback))
	case slack.InteractionTypeViewSubmission:
		c.observe("view_submission", c.handler.HandleViewSubmission(ctx, callback))
	default:
		c.log.Debug("unhandled interaction type",
			logger.StringField("type", string(callback.Type)))
	}
}

// messageAttachments recovers the files array from the raw event payload.
// slackevents.MessageEvent drops it during parsing, so the typed event alone
// cannot tell an attachment upload from a plain message.
func messageAttachments(payload json.RawMessage) []slack.File {
	var body struct {
		Event struct {
			Files []slack.File `json:"files"`
		} `json:"event"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil
	}
	return body.Event.Files
}

// observe records event metrics and logs handler failures.
func (c *Connector) observe(eventType string, err error) {
	if c.metrics != nil {
		c.metrics.EventsReceived.WithLabelValues(eventType).Inc()
		if err != nil {
			c.metrics.EventsFailed.WithLabelValues(eventType).Inc()
		}
	}
	if err != nil {
		c.log.Error("event handling failed",
			logger.StringField("event_type", eventType),
			logger.ErrorField(err))
	}
}
