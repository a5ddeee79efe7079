package bot

import "github.com/slack-go/slack"

// Interactive component identifiers.
const (
	ActionCreateJiraYes   = "create_jira_yes"
	ActionCreateJiraNo    = "create_jira_no"
	ActionStartOnboarding = "start_onboarding"
	CallbackOnboarding    = "onboarding_modal"
)

const ticketPromptFallback = "Do you want help creating a Jira issue?"

// ticketPromptBlocks builds the ephemeral yes/no prompt shown when a message
// looks like a feature request or bug report.
func ticketPromptBlocks() []slack.Block {
	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, ticketPromptFallback, false, false),
			nil, nil),
		slack.NewActionBlock("ticket_prompt",
			slack.NewButtonBlockElement(ActionCreateJiraYes, "yes",
				slack.NewTextBlockObject(slack.PlainTextType, "Yes", false, false)).
				WithStyle(slack.StylePrimary),
			slack.NewButtonBlockElement(ActionCreateJiraNo, "no",
				slack.NewTextBlockObject(slack.PlainTextType, "No", false, false)).
				WithStyle(slack.StyleDanger),
		),
	}
}

// onboardingMessageBlocks builds the channel message inviting a user to
// onboard.
func onboardingMessageBlocks() []slack.Block {
	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType,
				"*Welcome to Early Bird Labs!* :hatching_chick:\nLearn more about what we do and onboard with us.",
				false, false),
			nil, nil),
		slack.NewActionBlock("onboarding",
			slack.NewButtonBlockElement(ActionStartOnboarding, "start",
				slack.NewTextBlockObject(slack.PlainTextType, "Start Onboarding", false, false)),
		),
	}
}

// onboardingModal builds the intake form opened by the onboarding button.
func onboardingModal() slack.ModalViewRequest {
	nameInput := slack.NewInputBlock("customer_name_block",
		slack.NewTextBlockObject(slack.PlainTextType, "Customer Name", false, false),
		nil,
		slack.NewPlainTextInputBlockElement(nil, "customer_name"))

	companyInput := slack.NewInputBlock("company_name_block",
		slack.NewTextBlockObject(slack.PlainTextType, "Company Name", false, false),
		nil,
		slack.NewPlainTextInputBlockElement(nil, "company_name"))

	emailInput := slack.NewInputBlock("email_block",
		slack.NewTextBlockObject(slack.PlainTextType, "Contact Email", false, false),
		nil,
		slack.NewPlainTextInputBlockElement(nil, "email"))

	return slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: CallbackOnboarding,
		Title:      slack.NewTextBlockObject(slack.PlainTextType, "Start Onboarding", false, false),
		Submit:     slack.NewTextBlockObject(slack.PlainTextType, "Submit", false, false),
		Close:      slack.NewTextBlockObject(slack.PlainTextType, "Cancel", false, false),
		Blocks: slack.Blocks{
			BlockSet: []slack.Block{nameInput, companyInput, emailInput},
		},
	}
}
