// Package bot contains the Slack-facing layer: the socket-mode connector,
// event routing and the handlers that tie the store, file pipeline, LLM
// dispatcher and issue tracker together.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/earlybirdlabs/sparrow/internal/files"
	"github.com/earlybirdlabs/sparrow/internal/llm"
	"github.com/earlybirdlabs/sparrow/internal/markdown"
	"github.com/earlybirdlabs/sparrow/internal/store"
	"github.com/earlybirdlabs/sparrow/pkg/logger"
)

// How long an unanswered ticket prompt stays resolvable.
const promptContextTTL = time.Hour

// SlackAPI is the slice of the Slack client the handlers use.
type SlackAPI interface {
	BotUserID() string
	PostMessage(ctx context.Context, channel, threadTS, text string) (string, error)
	PostBlocks(ctx context.Context, channel, fallback string, blocks ...slack.Block) (string, error)
	PostEphemeralBlocks(ctx context.Context, channel, userID, fallback string, blocks ...slack.Block) (string, error)
	Respond(responseURL, text string, deleteOriginal bool) error
	FetchThreadMessages(ctx context.Context, channel, threadTS string) ([]slack.Message, error)
	UploadAudio(ctx context.Context, channel, threadTS, title string, data []byte) error
	OpenModal(ctx context.Context, triggerID string, view slack.ModalViewRequest) error
}

// Responder is the dispatcher surface the handlers use.
type Responder interface {
	Respond(ctx context.Context, reqType llm.RequestType, messages []llm.Message) (string, error)
	Classify(ctx context.Context, text string) (llm.RequestType, error)
	ExtractTicket(ctx context.Context, transcript string) (*llm.IssueTicket, error)
}

// FilePipeline processes a message's attachments.
type FilePipeline interface {
	Process(ctx context.Context, attachments []slack.File, message, storeID string) (*files.Result, error)
}

// Retriever answers questions against indexed documents.
type Retriever interface {
	CreateConversation(ctx context.Context) (string, error)
	Query(ctx context.Context, threadID, storeID, question string) (string, error)
}

// Speech synthesizes spoken replies.
type Speech interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ThreadStore is the persistence surface the handlers use.
type ThreadStore interface {
	CreateThread(ctx context.Context, channelID, threadTS string) (*store.Thread, error)
	FindThread(ctx context.Context, channelID, threadTS string) (*store.Thread, error)
	UpdateThread(ctx context.Context, channelID, threadTS string, upd store.ThreadUpdate) (*store.Thread, error)
	SavePromptContext(ctx context.Context, promptID, channelID, originTS, userID string, ttl time.Duration) error
	TakePromptContext(ctx context.Context, promptID string) (*store.PromptContext, error)
	UpsertUser(ctx context.Context, slackUserID, name, email string, metadata map[string]string) (*store.User, error)
}

// IssueTracker files extracted tickets.
type IssueTracker interface {
	CreateIssue(ctx context.Context, ticket *llm.IssueTicket) (string, error)
}

// Handler processes Slack events. tracker, retriever and speech may be nil
// when the matching integration is not configured; the affected features
// degrade gracefully.
type Handler struct {
	slack     SlackAPI
	responder Responder
	pipeline  FilePipeline
	retriever Retriever
	speech    Speech
	store     ThreadStore
	tracker   IssueTracker

	render         func(string) string
	ticketReaction string
	log            logger.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithIssueTracker enables Jira ticket creation.
func WithIssueTracker(t IssueTracker) HandlerOption {
	return func(h *Handler) { h.tracker = t }
}

// WithRetriever enables document retrieval for threads with indexed files.
func WithRetriever(r Retriever) HandlerOption {
	return func(h *Handler) { h.retriever = r }
}

// WithSpeech enables spoken replies to voice notes.
func WithSpeech(s Speech) HandlerOption {
	return func(h *Handler) { h.speech = s }
}

// WithTicketReaction overrides the emoji that triggers ticket extraction.
func WithTicketReaction(name string) HandlerOption {
	return func(h *Handler) { h.ticketReaction = name }
}

// NewHandler wires a Handler.
func NewHandler(api SlackAPI, responder Responder, pipeline FilePipeline, st ThreadStore, log logger.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		slack:          api,
		responder:      responder,
		pipeline:       pipeline,
		store:          st,
		render:         markdown.Render,
		ticketReaction: "ebl",
		log:            log.WithFields(logger.StringField("component", "handler")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Message subtypes that never get a reply.
var ignoredSubtypes = map[string]bool{
	"message_deleted": true,
	"message_changed": true,
	"channel_join":    true,
	"bot_add":         true,
	"bot_message":     true,
}

// HandleMessage routes one inbound message. Mentions get a direct reply,
// replies in threads the bot already participates in continue that
// conversation, and everything else is classified to decide whether to offer
// ticket creation, reply, or stay quiet. Attachments are passed separately
// because the typed message event does not carry the files array; the
// connector recovers it from the raw payload.
func (h *Handler) HandleMessage(ctx context.Context, ev *slackevents.MessageEvent, attachments []slack.File) error {
	if ev.BotID != "" || ignoredSubtypes[ev.SubType] {
		return nil
	}

	switch {
	case strings.Contains(ev.Text, h.slack.BotUserID()):
		return h.handleDirectMessage(ctx, ev, attachments)

	case ev.ThreadTimeStamp != "":
		inThread, err := h.botInThread(ctx, ev.Channel, ev.ThreadTimeStamp)
		if err != nil {
			return err
		}
		if !inThread {
			return nil
		}
		return h.handleThreadMessage(ctx, ev, attachments)

	case ev.Text != "":
		return h.handleUnaddressedMessage(ctx, ev, attachments)
	}
	return nil
}

// handleDirectMessage answers a message addressed to the bot, by mention or
// by an ai_conversation classification. The thread record is created lazily
// so attachments indexed here survive for later retrieval turns.
func (h *Handler) handleDirectMessage(ctx context.Context, ev *slackevents.MessageEvent, attachments []slack.File) error {
	thread, err := h.store.CreateThread(ctx, ev.Channel, replyThreadTS(ev))
	if err != nil {
		return err
	}

	messages, speechMode, err := h.prepareMessages(ctx, ev, attachments, thread)
	if err != nil {
		return err
	}

	if h.retriever != nil && thread.VectorStoreID != "" {
		return h.respondWithRetrieval(ctx, ev, thread, messages, speechMode)
	}
	return h.respondInThread(ctx, ev, llm.RequestTypeAIConversation, messages, speechMode)
}

// handleThreadMessage continues a conversation in a thread the bot is part
// of, feeding the whole thread history back to the model. Threads with
// indexed documents are answered through retrieval instead.
func (h *Handler) handleThreadMessage(ctx context.Context, ev *slackevents.MessageEvent, attachments []slack.File) error {
	thread, err := h.store.CreateThread(ctx, ev.Channel, ev.ThreadTimeStamp)
	if err != nil {
		return err
	}

	messages, speechMode, err := h.prepareMessages(ctx, ev, attachments, thread)
	if err != nil {
		return err
	}

	if h.retriever != nil && thread.VectorStoreID != "" {
		return h.respondWithRetrieval(ctx, ev, thread, messages, speechMode)
	}

	history, err := h.threadHistory(ctx, ev.Channel, ev.ThreadTimeStamp)
	if err != nil {
		return err
	}
	// the inbound message is the last entry of the fetched history
	if n := len(history); n > 0 && history[n-1].Role == llm.RoleUser {
		history = history[:n-1]
	}

	return h.respondInThread(ctx, ev, llm.RequestTypeAIConversation, append(history, messages...), speechMode)
}

// handleUnaddressedMessage classifies a top-level message that does not
// mention the bot. Feature requests, bug reports and general requests get the
// ticket prompt; open-ended AI conversation gets a reply; chatter between
// humans gets nothing.
func (h *Handler) handleUnaddressedMessage(ctx context.Context, ev *slackevents.MessageEvent, attachments []slack.File) error {
	reqType, err := h.responder.Classify(ctx, ev.Text)
	if err != nil {
		if errors.Is(err, llm.ErrNoClassification) {
			return nil
		}
		return err
	}

	h.log.Info("message classified",
		logger.StringField("request_type", string(reqType)),
		logger.StringField("channel", ev.Channel))

	switch {
	case reqType.NeedsTicketPrompt():
		return h.offerTicketPrompt(ctx, ev)
	case reqType == llm.RequestTypeAIConversation:
		// same as a mention; the thread record keeps any store the
		// pipeline creates for the attachments
		return h.handleDirectMessage(ctx, ev, attachments)
	default:
		return nil
	}
}

// offerTicketPrompt posts the ephemeral yes/no prompt and records which
// message triggered it so the button click can find its way back.
func (h *Handler) offerTicketPrompt(ctx context.Context, ev *slackevents.MessageEvent) error {
	promptID, err := h.slack.PostEphemeralBlocks(ctx, ev.Channel, ev.User,
		ticketPromptFallback, ticketPromptBlocks()...)
	if err != nil {
		return err
	}

	return h.store.SavePromptContext(ctx, promptID, ev.Channel, ev.TimeStamp, ev.User, promptContextTTL)
}

// prepareMessages runs the file pipeline when the message has attachments and
// assembles the user-turn messages. It also persists pipeline outcomes on the
// thread record when one exists.
func (h *Handler) prepareMessages(ctx context.Context, ev *slackevents.MessageEvent, attachments []slack.File, thread *store.Thread) ([]llm.Message, bool, error) {
	text := stripMention(ev.Text, h.slack.BotUserID())

	if len(attachments) == 0 {
		return []llm.Message{{Role: llm.RoleUser, Content: text}}, false, nil
	}

	storeID := ""
	if thread != nil {
		storeID = thread.VectorStoreID
	}

	result, perr := h.pipeline.Process(ctx, attachments, text, storeID)
	if perr != nil {
		// failed files are already logged; keep going with what survived
		h.log.Warn("some attachments failed", logger.ErrorField(perr))
	}
	if result == nil {
		return nil, false, perr
	}

	if thread != nil && (result.IndexedCount > 0 || result.StoreID != thread.VectorStoreID) {
		upd := store.ThreadUpdate{AddFiles: result.IndexedCount}
		if result.StoreID != "" && result.StoreID != thread.VectorStoreID {
			upd.VectorStoreID = &result.StoreID
		}
		if _, err := h.store.UpdateThread(ctx, thread.ChannelID, thread.ThreadTS, upd); err != nil {
			return nil, false, err
		}
		thread.VectorStoreID = result.StoreID
		thread.FileCount += result.IndexedCount
	}

	var messages []llm.Message
	for _, artifact := range result.Artifacts {
		switch artifact.Type {
		case files.UploadTypeImage:
			messages = append(messages, llm.Message{
				Role:    llm.RoleUser,
				Content: fmt.Sprintf("[image %s] %s", artifact.Name, artifact.Content),
			})
		case files.UploadTypeAudio:
			messages = append(messages, llm.Message{
				Role:    llm.RoleUser,
				Content: artifact.Content,
			})
		case files.UploadTypeDocument:
			messages = append(messages, llm.Message{
				Role:    llm.RoleUser,
				Content: fmt.Sprintf("[document %s attached and indexed]", artifact.Name),
			})
		}
	}
	if text != "" {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: text})
	}
	if len(messages) == 0 {
		messages = []llm.Message{{Role: llm.RoleUser, Content: "The user sent an attachment."}}
	}

	return messages, result.SpeechMode, nil
}

// respondInThread dispatches the messages, renders the reply and posts it in
// the triggering message's thread. When speech mode is set the reply is also
// uploaded as audio.
func (h *Handler) respondInThread(ctx context.Context, ev *slackevents.MessageEvent, reqType llm.RequestType, messages []llm.Message, speechMode bool) error {
	reply, err := h.responder.Respond(ctx, reqType, messages)
	if err != nil {
		_, _ = h.slack.PostMessage(ctx, ev.Channel, replyThreadTS(ev),
			"Sorry, I ran into a problem answering that. Please try again.")
		return err
	}
	return h.postReply(ctx, ev, reply, speechMode)
}

// respondWithRetrieval answers through the document index, creating the
// provider-side conversation handle on first use.
func (h *Handler) respondWithRetrieval(ctx context.Context, ev *slackevents.MessageEvent, thread *store.Thread, messages []llm.Message, speechMode bool) error {
	if thread.ConversationID == "" {
		conversationID, err := h.retriever.CreateConversation(ctx)
		if err != nil {
			return err
		}
		if _, err := h.store.UpdateThread(ctx, thread.ChannelID, thread.ThreadTS,
			store.ThreadUpdate{ConversationID: &conversationID}); err != nil {
			return err
		}
		thread.ConversationID = conversationID
	}

	var parts []string
	for _, m := range messages {
		parts = append(parts, m.Content)
	}

	reply, err := h.retriever.Query(ctx, thread.ConversationID, thread.VectorStoreID, strings.Join(parts, "\n\n"))
	if err != nil {
		_, _ = h.slack.PostMessage(ctx, ev.Channel, replyThreadTS(ev),
			"Sorry, I couldn't look that up in the attached documents right now.")
		return err
	}
	return h.postReply(ctx, ev, reply, speechMode)
}

func (h *Handler) postReply(ctx context.Context, ev *slackevents.MessageEvent, reply string, speechMode bool) error {
	threadTS := replyThreadTS(ev)
	if _, err := h.slack.PostMessage(ctx, ev.Channel, threadTS, h.render(reply)); err != nil {
		return err
	}

	if speechMode && h.speech != nil {
		audio, err := h.speech.Synthesize(ctx, reply)
		if err != nil {
			h.log.Error("speech synthesis failed", logger.ErrorField(err))
			return nil
		}
		if err := h.slack.UploadAudio(ctx, ev.Channel, threadTS, "sparrow-reply", audio); err != nil {
			h.log.Error("audio upload failed", logger.ErrorField(err))
		}
	}
	return nil
}

// HandleReaction extracts a ticket from a thread when someone reacts with the
// configured emoji, files it when Jira is available, and reports the outcome
// in the thread.
func (h *Handler) HandleReaction(ctx context.Context, ev *slackevents.ReactionAddedEvent) error {
	if ev.Reaction != h.ticketReaction {
		return nil
	}

	channel := ev.Item.Channel
	threadTS := ev.Item.Timestamp

	history, err := h.threadHistory(ctx, channel, threadTS)
	if err != nil {
		return err
	}

	var transcript strings.Builder
	for _, m := range history {
		transcript.WriteString(m.Role)
		transcript.WriteString(": ")
		transcript.WriteString(m.Content)
		transcript.WriteString("\n")
	}

	ticket, err := h.responder.ExtractTicket(ctx, transcript.String())
	if err != nil {
		_, _ = h.slack.PostMessage(ctx, channel, threadTS,
			"I couldn't turn this thread into a ticket, sorry.")
		return err
	}

	if h.tracker != nil {
		key, err := h.tracker.CreateIssue(ctx, ticket)
		if err != nil {
			_, _ = h.slack.PostMessage(ctx, channel, threadTS,
				fmt.Sprintf("I drafted the ticket (*%s*) but filing it in Jira failed.", ticket.Summary))
			return err
		}
		_, err = h.slack.PostMessage(ctx, channel, threadTS,
			fmt.Sprintf("Created *%s* from this thread: %s", key, ticket.Summary))
		return err
	}

	_, err = h.slack.PostMessage(ctx, channel, threadTS, formatTicket(ticket))
	return err
}

// HandleBlockAction resolves interactive button clicks.
func (h *Handler) HandleBlockAction(ctx context.Context, callback *slack.InteractionCallback) error {
	for _, action := range callback.ActionCallback.BlockActions {
		switch action.ActionID {
		case ActionCreateJiraYes:
			return h.handleTicketPromptYes(ctx, callback)
		case ActionCreateJiraNo:
			return h.slack.Respond(callback.ResponseURL,
				fmt.Sprintf("No worries! If you need any help just use <@%s>! :%s:",
					h.slack.BotUserID(), h.ticketReaction),
				true)
		case ActionStartOnboarding:
			return h.slack.OpenModal(ctx, callback.TriggerID, onboardingModal())
		}
	}
	return nil
}

// handleTicketPromptYes resumes the conversation in a thread under the
// triggering message. The prompt context is consumed atomically, so a second
// click of the same prompt does nothing.
func (h *Handler) handleTicketPromptYes(ctx context.Context, callback *slack.InteractionCallback) error {
	promptCtx, err := h.store.TakePromptContext(ctx, callback.Container.MessageTs)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return h.slack.Respond(callback.ResponseURL,
				"This prompt has expired. Mention me in the message's thread instead.", true)
		}
		return err
	}

	if _, err := h.store.CreateThread(ctx, promptCtx.ChannelID, promptCtx.OriginTS); err != nil {
		return err
	}

	if _, err := h.slack.PostMessage(ctx, promptCtx.ChannelID, promptCtx.OriginTS,
		fmt.Sprintf("<@%s>, could you describe the request in more detail?", promptCtx.UserID)); err != nil {
		return err
	}

	return h.slack.Respond(callback.ResponseURL,
		"Great, let's discuss your request in the thread above! :"+h.ticketReaction+":", true)
}

// HandleViewSubmission stores the onboarding form.
func (h *Handler) HandleViewSubmission(ctx context.Context, callback *slack.InteractionCallback) error {
	if callback.View.CallbackID != CallbackOnboarding {
		return nil
	}

	values := callback.View.State.Values
	name := values["customer_name_block"]["customer_name"].Value
	company := values["company_name_block"]["company_name"].Value
	email := values["email_block"]["email"].Value

	_, err := h.store.UpsertUser(ctx, callback.User.ID, name, email,
		map[string]string{"company": company})
	if err != nil {
		return err
	}

	h.log.Info("user onboarded",
		logger.StringField("slack_user_id", callback.User.ID),
		logger.StringField("company", company))
	return nil
}

// threadHistory converts a thread's messages into model turns, oldest first.
func (h *Handler) threadHistory(ctx context.Context, channel, threadTS string) ([]llm.Message, error) {
	msgs, err := h.slack.FetchThreadMessages(ctx, channel, threadTS)
	if err != nil {
		return nil, err
	}

	botUserID := h.slack.BotUserID()
	history := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Text == "" {
			continue
		}
		role := llm.RoleUser
		if m.User == botUserID {
			role = llm.RoleAssistant
		}
		history = append(history, llm.Message{
			Role:    role,
			Content: stripMention(m.Text, botUserID),
		})
	}
	return history, nil
}

// botInThread reports whether the bot has already replied in a thread.
func (h *Handler) botInThread(ctx context.Context, channel, threadTS string) (bool, error) {
	msgs, err := h.slack.FetchThreadMessages(ctx, channel, threadTS)
	if err != nil {
		return false, err
	}
	for _, m := range msgs {
		if m.User == h.slack.BotUserID() {
			return true, nil
		}
	}
	return false, nil
}

// replyThreadTS picks the thread a reply belongs in: the existing thread, or
// a new one rooted at the triggering message.
func replyThreadTS(ev *slackevents.MessageEvent) string {
	if ev.ThreadTimeStamp != "" {
		return ev.ThreadTimeStamp
	}
	return ev.TimeStamp
}

// stripMention removes the bot's <@...> mention from message text.
func stripMention(text, botUserID string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "<@"+botUserID+">", ""))
}

func formatTicket(t *llm.IssueTicket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* (%s)\n%s", t.Summary, t.Type, t.Description)
	if len(t.ActionItems) > 0 {
		b.WriteString("\nAction items:")
		for _, item := range t.ActionItems {
			b.WriteString("\n- ")
			b.WriteString(item)
		}
	}
	return b.String()
}
