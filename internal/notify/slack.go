package notify

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackAdapter posts events to a Slack channel.
type SlackAdapter struct {
	client    slackClient
	channelID string
}

// SlackOpts holds parameters for creating a SlackAdapter.
type SlackOpts struct {
	BotToken  string // xoxb-... bot token
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// NewSlack creates a Slack adapter.
func NewSlack(opts SlackOpts) (*SlackAdapter, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel ID is required")
	}
	client := opts.Client
	if client == nil {
		client = slackapi.New(opts.BotToken)
	}
	return &SlackAdapter{client: client, channelID: opts.ChannelID}, nil
}

// Name implements Adapter.
func (a *SlackAdapter) Name() string { return "slack" }

// Send implements Adapter.
func (a *SlackAdapter) Send(ctx context.Context, ev Event) error {
	attachment := slackapi.Attachment{
		Title: ev.Title,
		Text:  ev.Body,
		Color: eventColor(ev.Kind),
	}
	if ev.IssueKey != "" {
		attachment.Footer = ev.IssueKey
	}
	_, _, err := a.client.PostMessageContext(ctx, a.channelID, slackapi.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// Close implements Adapter. The Slack web API client holds no connection.
func (a *SlackAdapter) Close() error { return nil }

// eventColor picks the sidebar color hint for an event kind.
func eventColor(kind string) string {
	switch kind {
	case "sprint_completed":
		return "#36a64f"
	case "due_digest":
		return "#daa038"
	default:
		return "#439fe0"
	}
}
