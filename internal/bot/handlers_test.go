package bot

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earlybirdlabs/sparrow/internal/files"
	"github.com/earlybirdlabs/sparrow/internal/llm"
	"github.com/earlybirdlabs/sparrow/internal/store"
	"github.com/earlybirdlabs/sparrow/pkg/logger"
)

const testBotUserID = "UBOT"

type postedMessage struct {
	Channel  string
	ThreadTS string
	Text     string
}

type fakeSlack struct {
	posted       []postedMessage
	ephemerals   []postedMessage
	blockPosts   []postedMessage
	responses    []string
	audioUploads int
	modalsOpened int
	threads      map[string][]slack.Message
	ephemeralTS  string
}

func newFakeSlack() *fakeSlack {
	return &fakeSlack{threads: map[string][]slack.Message{}, ephemeralTS: "eph.1"}
}

func (f *fakeSlack) BotUserID() string { return testBotUserID }

func (f *fakeSlack) PostMessage(_ context.Context, channel, threadTS, text string) (string, error) {
	f.posted = append(f.posted, postedMessage{channel, threadTS, text})
	return fmt.Sprintf("%d.000", len(f.posted)), nil
}

func (f *fakeSlack) PostBlocks(_ context.Context, channel, fallback string, _ ...slack.Block) (string, error) {
	f.blockPosts = append(f.blockPosts, postedMessage{Channel: channel, Text: fallback})
	return "blocks.1", nil
}

func (f *fakeSlack) PostEphemeralBlocks(_ context.Context, channel, userID, fallback string, _ ...slack.Block) (string, error) {
	f.ephemerals = append(f.ephemerals, postedMessage{Channel: channel, ThreadTS: userID, Text: fallback})
	return f.ephemeralTS, nil
}

func (f *fakeSlack) Respond(_, text string, _ bool) error {
	f.responses = append(f.responses, text)
	return nil
}

func (f *fakeSlack) FetchThreadMessages(_ context.Context, channel, threadTS string) ([]slack.Message, error) {
	return f.threads[channel+"/"+threadTS], nil
}

func (f *fakeSlack) UploadAudio(context.Context, string, string, string, []byte) error {
	f.audioUploads++
	return nil
}

func (f *fakeSlack) OpenModal(context.Context, string, slack.ModalViewRequest) error {
	f.modalsOpened++
	return nil
}

type fakeResponder struct {
	classification llm.RequestType
	classifyErr    error
	reply          string
	replyErr       error
	ticket         *llm.IssueTicket
	respondCalls   int
	lastReqType    llm.RequestType
	lastMessages   []llm.Message
}

func (f *fakeResponder) Respond(_ context.Context, t llm.RequestType, msgs []llm.Message) (string, error) {
	f.respondCalls++
	f.lastReqType = t
	f.lastMessages = msgs
	return f.reply, f.replyErr
}

func (f *fakeResponder) Classify(context.Context, string) (llm.RequestType, error) {
	if f.classifyErr != nil {
		return "", f.classifyErr
	}
	return f.classification, nil
}

func (f *fakeResponder) ExtractTicket(context.Context, string) (*llm.IssueTicket, error) {
	if f.ticket == nil {
		return nil, errors.New("no ticket")
	}
	return f.ticket, nil
}

type fakePipeline struct {
	result *files.Result
	calls  int
}

func (f *fakePipeline) Process(_ context.Context, _ []slack.File, _, storeID string) (*files.Result, error) {
	f.calls++
	if f.result == nil {
		return &files.Result{StoreID: storeID}, nil
	}
	return f.result, nil
}

type fakeStore struct {
	threads map[string]*store.Thread
	prompts map[string]*store.PromptContext
	users   map[string]*store.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		threads: map[string]*store.Thread{},
		prompts: map[string]*store.PromptContext{},
		users:   map[string]*store.User{},
	}
}

func (f *fakeStore) key(channel, ts string) string { return channel + "/" + ts }

func (f *fakeStore) CreateThread(_ context.Context, channel, ts string) (*store.Thread, error) {
	if t, ok := f.threads[f.key(channel, ts)]; ok {
		return t, nil
	}
	t := &store.Thread{ChannelID: channel, ThreadTS: ts}
	f.threads[f.key(channel, ts)] = t
	return t, nil
}

func (f *fakeStore) FindThread(_ context.Context, channel, ts string) (*store.Thread, error) {
	if t, ok := f.threads[f.key(channel, ts)]; ok {
		return t, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) UpdateThread(_ context.Context, channel, ts string, upd store.ThreadUpdate) (*store.Thread, error) {
	t, ok := f.threads[f.key(channel, ts)]
	if !ok {
		return nil, store.ErrNotFound
	}
	if upd.ConversationID != nil {
		t.ConversationID = *upd.ConversationID
	}
	if upd.VectorStoreID != nil {
		t.VectorStoreID = *upd.VectorStoreID
	}
	t.FileCount += upd.AddFiles
	return t, nil
}

func (f *fakeStore) SavePromptContext(_ context.Context, promptID, channel, originTS, userID string, _ time.Duration) error {
	f.prompts[promptID] = &store.PromptContext{
		PromptID: promptID, ChannelID: channel, OriginTS: originTS, UserID: userID,
	}
	return nil
}

func (f *fakeStore) TakePromptContext(_ context.Context, promptID string) (*store.PromptContext, error) {
	pc, ok := f.prompts[promptID]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(f.prompts, promptID)
	return pc, nil
}

func (f *fakeStore) UpsertUser(_ context.Context, slackUserID, name, email string, metadata map[string]string) (*store.User, error) {
	u := &store.User{SlackUserID: slackUserID, Name: name, Email: email, Metadata: metadata}
	f.users[slackUserID] = u
	return u, nil
}

type fakeTracker struct {
	key     string
	err     error
	tickets []*llm.IssueTicket
}

func (f *fakeTracker) CreateIssue(_ context.Context, t *llm.IssueTicket) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.tickets = append(f.tickets, t)
	return f.key, nil
}

type fakeRetriever struct {
	conversations int
	answer        string
	lastQuestion  string
}

func (f *fakeRetriever) CreateConversation(context.Context) (string, error) {
	f.conversations++
	return fmt.Sprintf("thread_%d", f.conversations), nil
}

func (f *fakeRetriever) Query(_ context.Context, _, _, question string) (string, error) {
	f.lastQuestion = question
	return f.answer, nil
}

type fakeSpeech struct{ calls int }

func (f *fakeSpeech) Synthesize(context.Context, string) ([]byte, error) {
	f.calls++
	return []byte("mp3"), nil
}

type fixture struct {
	slack     *fakeSlack
	responder *fakeResponder
	pipeline  *fakePipeline
	store     *fakeStore
	handler   *Handler
}

func newFixture(t *testing.T, opts ...HandlerOption) *fixture {
	t.Helper()
	f := &fixture{
		slack:     newFakeSlack(),
		responder: &fakeResponder{reply: "model reply"},
		pipeline:  &fakePipeline{},
		store:     newFakeStore(),
	}
	log := logger.NewLogger(logger.Config{Level: logger.ErrorLevel, Format: "text"})
	f.handler = NewHandler(f.slack, f.responder, f.pipeline, f.store, log, opts...)
	return f
}

func messageEvent(text, threadTS string) *slackevents.MessageEvent {
	return &slackevents.MessageEvent{
		Type:            "message",
		User:            "U123",
		Text:            text,
		Channel:         "C1",
		TimeStamp:       "100.000",
		ThreadTimeStamp: threadTS,
	}
}

func TestHandleMessage_IgnoresBots(t *testing.T) {
	f := newFixture(t)

	ev := messageEvent("hello", "")
	ev.BotID = "B999"
	require.NoError(t, f.handler.HandleMessage(context.Background(), ev, nil))

	assert.Empty(t, f.slack.posted)
	assert.Zero(t, f.responder.respondCalls)
}

func TestHandleMessage_MentionGetsDirectReply(t *testing.T) {
	f := newFixture(t)

	ev := messageEvent("<@UBOT> what do you think?", "")
	require.NoError(t, f.handler.HandleMessage(context.Background(), ev, nil))

	require.Len(t, f.slack.posted, 1)
	assert.Equal(t, "model reply", f.slack.posted[0].Text)
	assert.Equal(t, "100.000", f.slack.posted[0].ThreadTS, "reply starts a thread at the message")
	assert.Equal(t, llm.RequestTypeAIConversation, f.responder.lastReqType)
	// mention is stripped before dispatch
	assert.Equal(t, "what do you think?", f.responder.lastMessages[0].Content)
	assert.Empty(t, f.slack.ephemerals)
}

func TestHandleMessage_BugReportGetsTicketPromptOnly(t *testing.T) {
	f := newFixture(t)
	f.responder.classification = llm.RequestTypeBugReport

	ev := messageEvent("the login page is broken", "")
	require.NoError(t, f.handler.HandleMessage(context.Background(), ev, nil))

	require.Len(t, f.slack.ephemerals, 1)
	assert.Equal(t, "Do you want help creating a Jira issue?", f.slack.ephemerals[0].Text)
	assert.Empty(t, f.slack.posted, "no conversational reply in the same pass")
	assert.Zero(t, f.responder.respondCalls)

	pc, ok := f.store.prompts["eph.1"]
	require.True(t, ok, "prompt context is persisted under the ephemeral ts")
	assert.Equal(t, "100.000", pc.OriginTS)
	assert.Equal(t, "U123", pc.UserID)
}

func TestHandleMessage_ConversationStaysQuiet(t *testing.T) {
	f := newFixture(t)
	f.responder.classification = llm.RequestTypeConversation

	require.NoError(t, f.handler.HandleMessage(context.Background(), messageEvent("hey Jane, lunch?", ""), nil))

	assert.Empty(t, f.slack.posted)
	assert.Empty(t, f.slack.ephemerals)
}

func TestHandleMessage_ClassificationFailureStaysQuiet(t *testing.T) {
	f := newFixture(t)
	f.responder.classifyErr = fmt.Errorf("%w: provider down", llm.ErrNoClassification)

	require.NoError(t, f.handler.HandleMessage(context.Background(), messageEvent("something odd", ""), nil))

	assert.Empty(t, f.slack.posted)
	assert.Empty(t, f.slack.ephemerals)
}

func TestHandleMessage_AIConversationGetsReply(t *testing.T) {
	f := newFixture(t)
	f.responder.classification = llm.RequestTypeAIConversation

	require.NoError(t, f.handler.HandleMessage(context.Background(), messageEvent("what is the meaning of life?", ""), nil))

	require.Len(t, f.slack.posted, 1)
	assert.Empty(t, f.slack.ephemerals)
}

func TestHandleMessage_AIConversationWithDocumentKeepsStore(t *testing.T) {
	f := newFixture(t)
	f.responder.classification = llm.RequestTypeAIConversation
	f.pipeline.result = &files.Result{
		Artifacts:    []files.Artifact{{Name: "notes.pdf", Type: files.UploadTypeDocument}},
		StoreID:      "vs_9",
		IndexedCount: 1,
	}

	ev := messageEvent("can someone summarize the attached notes?", "")
	attachments := []slack.File{{ID: "F1", Name: "notes.pdf", Mimetype: "application/pdf"}}

	require.NoError(t, f.handler.HandleMessage(context.Background(), ev, attachments))

	require.Len(t, f.slack.posted, 1)

	// the store created for the attachment lands on a thread record instead
	// of being orphaned
	thread, ok := f.store.threads["C1/100.000"]
	require.True(t, ok)
	assert.Equal(t, "vs_9", thread.VectorStoreID)
	assert.Equal(t, 1, thread.FileCount)
}

func TestHandleMessage_ThreadContinuationOnlyWhenBotPresent(t *testing.T) {
	f := newFixture(t)
	f.slack.threads["C1/50.000"] = []slack.Message{
		{Msg: slack.Msg{User: "U123", Text: "original question"}},
		{Msg: slack.Msg{User: "U456", Text: "some human reply"}},
	}

	// bot never replied in this thread
	require.NoError(t, f.handler.HandleMessage(context.Background(), messageEvent("any update?", "50.000"), nil))
	assert.Empty(t, f.slack.posted)

	// now the bot is in the thread
	f.slack.threads["C1/50.000"] = append(f.slack.threads["C1/50.000"],
		slack.Message{Msg: slack.Msg{User: testBotUserID, Text: "my earlier answer"}})

	require.NoError(t, f.handler.HandleMessage(context.Background(), messageEvent("any update?", "50.000"), nil))
	require.Len(t, f.slack.posted, 1)
	assert.Equal(t, "50.000", f.slack.posted[0].ThreadTS)

	// history was fed back with roles assigned
	var sawAssistant bool
	for _, m := range f.responder.lastMessages {
		if m.Role == llm.RoleAssistant && m.Content == "my earlier answer" {
			sawAssistant = true
		}
	}
	assert.True(t, sawAssistant)
}

func TestHandleMessage_ImageAttachmentScenario(t *testing.T) {
	f := newFixture(t)
	f.pipeline.result = &files.Result{
		Artifacts: []files.Artifact{
			{Name: "shot.png", Type: files.UploadTypeImage, Content: "a login form showing an error"},
		},
	}

	ev := messageEvent("<@UBOT> what's wrong here?", "")
	attachments := []slack.File{{ID: "F1", Name: "shot.png", Mimetype: "image/png"}}

	require.NoError(t, f.handler.HandleMessage(context.Background(), ev, attachments))

	assert.Equal(t, 1, f.pipeline.calls)
	require.Len(t, f.slack.posted, 1, "a single text reply, no ticket prompt")
	assert.Empty(t, f.slack.ephemerals)

	// the vision description reached the dispatcher alongside the user text
	require.Len(t, f.responder.lastMessages, 2)
	assert.Contains(t, f.responder.lastMessages[0].Content, "a login form showing an error")
	assert.Equal(t, "what's wrong here?", f.responder.lastMessages[1].Content)
}

func TestHandleMessage_AudioTriggersSpokenReply(t *testing.T) {
	speech := &fakeSpeech{}
	f := newFixture(t, WithSpeech(speech))
	f.pipeline.result = &files.Result{
		Artifacts:  []files.Artifact{{Name: "note.m4a", Type: files.UploadTypeAudio, Content: "please check the deploy"}},
		SpeechMode: true,
	}

	ev := messageEvent("<@UBOT>", "")
	attachments := []slack.File{{ID: "F1", Name: "note.m4a", Mimetype: "audio/mp4"}}

	require.NoError(t, f.handler.HandleMessage(context.Background(), ev, attachments))

	require.Len(t, f.slack.posted, 1)
	assert.Equal(t, 1, speech.calls)
	assert.Equal(t, 1, f.slack.audioUploads)
}

func TestHandleMessage_IndexedThreadUsesRetrieval(t *testing.T) {
	retriever := &fakeRetriever{answer: "according to the uploaded document, yes"}
	f := newFixture(t, WithRetriever(retriever))

	f.slack.threads["C1/50.000"] = []slack.Message{
		{Msg: slack.Msg{User: testBotUserID, Text: "indexed your document"}},
	}
	f.store.threads["C1/50.000"] = &store.Thread{
		ChannelID: "C1", ThreadTS: "50.000", VectorStoreID: "vs_1", FileCount: 1,
	}

	require.NoError(t, f.handler.HandleMessage(context.Background(), messageEvent("does it support SSO?", "50.000"), nil))

	require.Len(t, f.slack.posted, 1)
	assert.Equal(t, "according to the uploaded document, yes", f.slack.posted[0].Text)
	assert.Contains(t, retriever.lastQuestion, "does it support SSO?")
	assert.Zero(t, f.responder.respondCalls, "retrieval bypasses the chat dispatcher")

	// conversation handle was created once and persisted
	assert.Equal(t, 1, retriever.conversations)
	assert.Equal(t, "thread_1", f.store.threads["C1/50.000"].ConversationID)
}

func TestHandleMessage_DispatchFailurePostsApology(t *testing.T) {
	f := newFixture(t)
	f.responder.replyErr = errors.New("all providers down")

	err := f.handler.HandleMessage(context.Background(), messageEvent("<@UBOT> hi", ""), nil)

	require.Error(t, err)
	require.Len(t, f.slack.posted, 1)
	assert.Contains(t, f.slack.posted[0].Text, "Sorry")
}

func TestHandleReaction_ExtractsAndFilesTicket(t *testing.T) {
	tracker := &fakeTracker{key: "SPAR-7"}
	f := newFixture(t, WithIssueTracker(tracker))
	f.responder.ticket = &llm.IssueTicket{
		Type: llm.IssueTypeBug, Summary: "Login fails", Description: "details",
	}
	f.slack.threads["C1/50.000"] = []slack.Message{
		{Msg: slack.Msg{User: "U123", Text: "login is broken"}},
	}

	ev := &slackevents.ReactionAddedEvent{Reaction: "ebl"}
	ev.Item.Channel = "C1"
	ev.Item.Timestamp = "50.000"

	require.NoError(t, f.handler.HandleReaction(context.Background(), ev))

	require.Len(t, tracker.tickets, 1)
	require.Len(t, f.slack.posted, 1)
	assert.Contains(t, f.slack.posted[0].Text, "SPAR-7")
	assert.Equal(t, "50.000", f.slack.posted[0].ThreadTS)
}

func TestHandleReaction_OtherEmojiIgnored(t *testing.T) {
	f := newFixture(t, WithIssueTracker(&fakeTracker{key: "SPAR-1"}))

	ev := &slackevents.ReactionAddedEvent{Reaction: "thumbsup"}
	require.NoError(t, f.handler.HandleReaction(context.Background(), ev))
	assert.Empty(t, f.slack.posted)
}

func TestHandleReaction_WithoutTrackerPostsTicketText(t *testing.T) {
	f := newFixture(t)
	f.responder.ticket = &llm.IssueTicket{
		Type: llm.IssueTypeImprovement, Summary: "Faster search", Description: "details",
		ActionItems: []string{"profile the query"},
	}

	ev := &slackevents.ReactionAddedEvent{Reaction: "ebl"}
	ev.Item.Channel = "C1"
	ev.Item.Timestamp = "50.000"

	require.NoError(t, f.handler.HandleReaction(context.Background(), ev))

	require.Len(t, f.slack.posted, 1)
	assert.Contains(t, f.slack.posted[0].Text, "Faster search")
	assert.Contains(t, f.slack.posted[0].Text, "profile the query")
}

func blockActionCallback(actionID, promptTS string) *slack.InteractionCallback {
	cb := &slack.InteractionCallback{
		Type:        slack.InteractionTypeBlockActions,
		ResponseURL: "https://hooks.example.com/r1",
		TriggerID:   "trigger.1",
	}
	cb.User.ID = "U123"
	cb.Container.MessageTs = promptTS
	cb.ActionCallback.BlockActions = []*slack.BlockAction{{ActionID: actionID}}
	return cb
}

func TestHandleBlockAction_TicketYes(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.SavePromptContext(context.Background(), "eph.1", "C1", "100.000", "U123", time.Hour))

	require.NoError(t, f.handler.HandleBlockAction(context.Background(), blockActionCallback(ActionCreateJiraYes, "eph.1")))

	// invitation posted into the origin thread
	require.Len(t, f.slack.posted, 1)
	assert.Equal(t, "100.000", f.slack.posted[0].ThreadTS)
	assert.Contains(t, f.slack.posted[0].Text, "<@U123>")

	// thread record created, prompt context consumed, ephemeral replaced
	_, ok := f.store.threads["C1/100.000"]
	assert.True(t, ok)
	assert.Empty(t, f.store.prompts)
	require.Len(t, f.slack.responses, 1)
	assert.Contains(t, f.slack.responses[0], "thread above")
}

func TestHandleBlockAction_TicketYesDoubleClick(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.SavePromptContext(context.Background(), "eph.1", "C1", "100.000", "U123", time.Hour))

	cb := blockActionCallback(ActionCreateJiraYes, "eph.1")
	require.NoError(t, f.handler.HandleBlockAction(context.Background(), cb))
	require.NoError(t, f.handler.HandleBlockAction(context.Background(), cb))

	assert.Len(t, f.slack.posted, 1, "second click of the same prompt posts nothing")
	require.Len(t, f.slack.responses, 2)
	assert.Contains(t, f.slack.responses[1], "expired")
}

func TestHandleBlockAction_TicketNo(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.handler.HandleBlockAction(context.Background(), blockActionCallback(ActionCreateJiraNo, "eph.1")))

	assert.Empty(t, f.slack.posted)
	require.Len(t, f.slack.responses, 1)
	assert.Contains(t, f.slack.responses[0], "No worries")
}

func TestHandleBlockAction_StartOnboardingOpensModal(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.handler.HandleBlockAction(context.Background(), blockActionCallback(ActionStartOnboarding, "")))

	assert.Equal(t, 1, f.slack.modalsOpened)
}

func TestHandleViewSubmission_StoresUser(t *testing.T) {
	f := newFixture(t)

	cb := &slack.InteractionCallback{Type: slack.InteractionTypeViewSubmission}
	cb.User.ID = "U123"
	cb.View.CallbackID = CallbackOnboarding
	cb.View.State = &slack.ViewState{
		Values: map[string]map[string]slack.BlockAction{
			"customer_name_block": {"customer_name": {Value: "Sam Doe"}},
			"company_name_block":  {"company_name": {Value: "Acme"}},
			"email_block":         {"email": {Value: "sam@acme.test"}},
		},
	}

	require.NoError(t, f.handler.HandleViewSubmission(context.Background(), cb))

	u, ok := f.store.users["U123"]
	require.True(t, ok)
	assert.Equal(t, "Sam Doe", u.Name)
	assert.Equal(t, "sam@acme.test", u.Email)
	assert.Equal(t, "Acme", u.Metadata["company"])
}

func TestHandleSlashCommand_Learn(t *testing.T) {
	f := newFixture(t)

	cmd := &slack.SlashCommand{Command: "/learn", ChannelID: "C1", UserID: "U123"}
	require.NoError(t, f.handler.HandleSlashCommand(context.Background(), cmd))

	require.Len(t, f.slack.posted, 2)
	assert.Contains(t, f.slack.posted[0].Text, "started a learning session")
	assert.Equal(t, f.slack.posted[0].ThreadTS, "", "session opener is a top-level message")
	assert.Equal(t, "1.000", f.slack.posted[1].ThreadTS, "follow-up goes into the new thread")

	_, ok := f.store.threads["C1/1.000"]
	assert.True(t, ok, "learning session gets a thread record")
}

func TestHandleSlashCommand_Sparrow(t *testing.T) {
	f := newFixture(t)

	cmd := &slack.SlashCommand{Command: "/sparrow", ChannelID: "C1", Text: "status of the beta?"}
	require.NoError(t, f.handler.HandleSlashCommand(context.Background(), cmd))

	require.Len(t, f.slack.posted, 1)
	assert.Equal(t, llm.RequestTypeGeneralRequest, f.responder.lastReqType)
}

func TestHandleSlashCommand_Onboard(t *testing.T) {
	f := newFixture(t)

	cmd := &slack.SlashCommand{Command: "/onboard", ChannelID: "C1"}
	require.NoError(t, f.handler.HandleSlashCommand(context.Background(), cmd))

	require.Len(t, f.slack.blockPosts, 1)
	assert.Contains(t, f.slack.blockPosts[0].Text, "onboarding")
}

func TestStripMention(t *testing.T) {
	assert.Equal(t, "fix the login bug", stripMention("<@UBOT> fix the login bug", "UBOT"))
	assert.Equal(t, "no mention here", stripMention("no mention here", "UBOT"))
}
