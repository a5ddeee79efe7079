package bot

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/earlybirdlabs/sparrow/internal/llm"
	"github.com/earlybirdlabs/sparrow/pkg/logger"
)

// HandleSlashCommand routes slash commands.
func (h *Handler) HandleSlashCommand(ctx context.Context, cmd *slack.SlashCommand) error {
	h.log.Info("slash command received",
		logger.StringField("command", cmd.Command),
		logger.StringField("channel", cmd.ChannelID))

	switch cmd.Command {
	case "/sparrow":
		return h.handleSparrowCommand(ctx, cmd)
	case "/onboard":
		return h.handleOnboardCommand(ctx, cmd)
	case "/opinion":
		return h.handleOpinionCommand(ctx, cmd)
	case "/learn":
		return h.handleLearnCommand(ctx, cmd)
	}
	return nil
}

// handleSparrowCommand answers a one-off question without thread context.
func (h *Handler) handleSparrowCommand(ctx context.Context, cmd *slack.SlashCommand) error {
	if cmd.Text == "" {
		return h.slack.Respond(cmd.ResponseURL,
			"Ask me something, e.g. `/sparrow what's the status of the beta?`", false)
	}

	reply, err := h.responder.Respond(ctx, llm.RequestTypeGeneralRequest, []llm.Message{
		{Role: llm.RoleUser, Content: cmd.Text},
	})
	if err != nil {
		return h.slack.Respond(cmd.ResponseURL,
			"Sorry, I couldn't answer that right now.", false)
	}

	_, err = h.slack.PostMessage(ctx, cmd.ChannelID, "", h.render(reply))
	return err
}

// handleOnboardCommand posts the onboarding invitation with its start button.
func (h *Handler) handleOnboardCommand(ctx context.Context, cmd *slack.SlashCommand) error {
	_, err := h.slack.PostBlocks(ctx, cmd.ChannelID,
		"Welcome to Early Bird Labs! Start onboarding.",
		onboardingMessageBlocks()...)
	return err
}

// handleOpinionCommand asks the model for a direct opinion on the given text.
func (h *Handler) handleOpinionCommand(ctx context.Context, cmd *slack.SlashCommand) error {
	if cmd.Text == "" {
		return h.slack.Respond(cmd.ResponseURL,
			"Give me something to have an opinion on: `/opinion <topic>`", false)
	}

	reply, err := h.responder.Respond(ctx, llm.RequestTypeAIConversation, []llm.Message{
		{Role: llm.RoleUser, Content: "Give me your honest opinion on the following. Take a clear position:\n\n" + cmd.Text},
	})
	if err != nil {
		return h.slack.Respond(cmd.ResponseURL,
			"Sorry, no strong opinions available right now.", false)
	}

	_, err = h.slack.PostMessage(ctx, cmd.ChannelID, "", h.render(reply))
	return err
}

// handleLearnCommand opens a learning-session thread for the user.
func (h *Handler) handleLearnCommand(ctx context.Context, cmd *slack.SlashCommand) error {
	ts, err := h.slack.PostMessage(ctx, cmd.ChannelID, "",
		fmt.Sprintf("<@%s> started a learning session!", cmd.UserID))
	if err != nil {
		return err
	}

	if _, err := h.store.CreateThread(ctx, cmd.ChannelID, ts); err != nil {
		return err
	}

	_, err = h.slack.PostMessage(ctx, cmd.ChannelID, ts,
		"Could you tell me more about your project?")
	return err
}
