package bot

import (
	"bytes"
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/earlybirdlabs/sparrow/internal/config"
	"github.com/earlybirdlabs/sparrow/pkg/logger"
)

// Client wraps the Slack Web API. File public-URL grant and revoke need a
// user token; when none is configured those calls fall back to the bot token.
type Client struct {
	api       *slack.Client
	userAPI   *slack.Client
	botUserID string
	log       logger.Logger
}

// NewClient creates the Slack client and resolves the bot's own user id.
func NewClient(cfg config.SlackConfig, log logger.Logger) (*Client, error) {
	api := slack.New(
		cfg.BotToken,
		slack.OptionAppLevelToken(cfg.AppToken),
		slack.OptionDebug(cfg.Debug),
	)

	auth, err := api.AuthTest()
	if err != nil {
		return nil, fmt.Errorf("slack auth test: %w", err)
	}

	userAPI := api
	if cfg.UserToken != "" {
		userAPI = slack.New(cfg.UserToken)
	}

	return &Client{
		api:       api,
		userAPI:   userAPI,
		botUserID: auth.UserID,
		log:       log.WithFields(logger.StringField("component", "slack")),
	}, nil
}

// API exposes the underlying client for the socket-mode connector.
func (c *Client) API() *slack.Client {
	return c.api
}

// BotUserID returns the bot's own Slack user id.
func (c *Client) BotUserID() string {
	return c.botUserID
}

// PostMessage posts text to a channel, threaded when threadTS is non-empty.
// It returns the new message's timestamp.
func (c *Client) PostMessage(ctx context.Context, channel, threadTS, text string) (string, error) {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}

	_, ts, err := c.api.PostMessageContext(ctx, channel, opts...)
	if err != nil {
		return "", fmt.Errorf("post message: %w", err)
	}
	return ts, nil
}

// PostBlocks posts a block-kit message to a channel.
func (c *Client) PostBlocks(ctx context.Context, channel, fallback string, blocks ...slack.Block) (string, error) {
	_, ts, err := c.api.PostMessageContext(ctx, channel,
		slack.MsgOptionText(fallback, false),
		slack.MsgOptionBlocks(blocks...))
	if err != nil {
		return "", fmt.Errorf("post blocks: %w", err)
	}
	return ts, nil
}

// PostEphemeralBlocks posts an ephemeral block-kit message visible only to
// one user and returns its timestamp.
func (c *Client) PostEphemeralBlocks(ctx context.Context, channel, userID, fallback string, blocks ...slack.Block) (string, error) {
	ts, err := c.api.PostEphemeralContext(ctx, channel, userID,
		slack.MsgOptionText(fallback, false),
		slack.MsgOptionBlocks(blocks...))
	if err != nil {
		return "", fmt.Errorf("post ephemeral: %w", err)
	}
	return ts, nil
}

// Respond replaces or follows up an interactive message via its response URL.
func (c *Client) Respond(responseURL, text string, deleteOriginal bool) error {
	msg := &slack.WebhookMessage{
		Text:           text,
		DeleteOriginal: deleteOriginal,
	}
	if err := slack.PostWebhook(responseURL, msg); err != nil {
		return fmt.Errorf("respond via webhook: %w", err)
	}
	return nil
}

// FetchThreadMessages returns every message in a thread, oldest first.
func (c *Client) FetchThreadMessages(ctx context.Context, channel, threadTS string) ([]slack.Message, error) {
	var all []slack.Message
	params := &slack.GetConversationRepliesParameters{
		ChannelID: channel,
		Timestamp: threadTS,
		Limit:     200,
	}

	for {
		msgs, hasMore, nextCursor, err := c.api.GetConversationRepliesContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("fetch thread replies: %w", err)
		}
		all = append(all, msgs...)
		if !hasMore {
			return all, nil
		}
		params.Cursor = nextCursor
	}
}

// UploadAudio uploads synthesized speech into a thread.
func (c *Client) UploadAudio(ctx context.Context, channel, threadTS, title string, data []byte) error {
	_, err := c.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Channel:         channel,
		ThreadTimestamp: threadTS,
		Filename:        title + ".mp3",
		Title:           title,
		FileSize:        len(data),
		Reader:          bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("upload audio: %w", err)
	}
	return nil
}

// OpenModal opens a modal view for an interaction's trigger id.
func (c *Client) OpenModal(ctx context.Context, triggerID string, view slack.ModalViewRequest) error {
	if _, err := c.api.OpenViewContext(ctx, triggerID, view); err != nil {
		return fmt.Errorf("open modal: %w", err)
	}
	return nil
}

// SharePublic grants public access to a file and returns its refreshed
// metadata.
func (c *Client) SharePublic(ctx context.Context, fileID string) (*slack.File, error) {
	file, _, _, err := c.userAPI.ShareFilePublicURLContext(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("share file public URL: %w", err)
	}
	return file, nil
}

// RevokePublic revokes public access to a file.
func (c *Client) RevokePublic(ctx context.Context, fileID string) error {
	if _, err := c.userAPI.RevokeFilePublicURLContext(ctx, fileID); err != nil {
		return fmt.Errorf("revoke file public URL: %w", err)
	}
	return nil
}

// Download fetches a file's bytes over the authenticated download URL.
func (c *Client) Download(ctx context.Context, file *slack.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.api.GetFileContext(ctx, file.URLPrivateDownload, &buf); err != nil {
		return nil, fmt.Errorf("download file %s: %w", file.ID, err)
	}
	return buf.Bytes(), nil
}
