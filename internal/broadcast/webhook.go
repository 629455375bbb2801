package broadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type DiscordWebhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type DiscordEmbed struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Color       int                   `json:"color"`
	Fields      []DiscordWebhookField `json:"fields"`
	Footer      *DiscordFooter        `json:"footer,omitempty"`
	Timestamp   string                `json:"timestamp"`
}

type DiscordFooter struct {
	Text string `json:"text"`
}

type DiscordWebhookRequest struct {
	Username string         `json:"username"`
	Embeds   []DiscordEmbed `json:"embeds"`
}

type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type SlackAttachment struct {
	Color     string       `json:"color"`
	Title     string       `json:"title"`
	Text      string       `json:"text"`
	Fields    []SlackField `json:"fields"`
	Footer    string       `json:"footer"`
	Timestamp int64        `json:"ts"`
}

type SlackWebhookRequest struct {
	Username    string            `json:"username"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments"`
}

const (
	ColorRed = 16711680 // #FF0000

	webhookUsername = "SilentSOS"
)

// WebhookPublisher posts alerts to Discord and/or Slack incoming webhooks,
// e.g. a campus security team channel.
type WebhookPublisher struct {
	DiscordURL string
	SlackURL   string
	Client     *http.Client
}

func (p *WebhookPublisher) Name() string {
	return "webhook"
}

func (p *WebhookPublisher) Publish(ctx context.Context, event AlertEvent) error {
	var errs []error

	if p.DiscordURL != "" {
		if err := p.post(ctx, p.DiscordURL, discordAlertPayload(event)); err != nil {
			errs = append(errs, fmt.Errorf("discord: %w", err))
		}
	}

	if p.SlackURL != "" {
		if err := p.post(ctx, p.SlackURL, slackAlertPayload(event)); err != nil {
			errs = append(errs, fmt.Errorf("slack: %w", err))
		}
	}

	return errors.Join(errs...)
}

func locationOrUnknown(link string) string {
	if link == "" {
		return "Not shared"
	}
	return link
}

func audioLabel(hasAudio bool) string {
	if hasAudio {
		return "Attached"
	}
	return "None"
}

func discordAlertPayload(event AlertEvent) DiscordWebhookRequest {
	return DiscordWebhookRequest{
		Username: webhookUsername,
		Embeds: []DiscordEmbed{
			{
				Title:       "🚨 **NEW ALERT**",
				Description: fmt.Sprintf("**%s** raised alert #%d.", event.UserEmail, event.ID),
				Color:       ColorRed,
				Fields: []DiscordWebhookField{
					{Name: "📍 Location", Value: locationOrUnknown(event.LocationLink), Inline: false},
					{Name: "🎙️ Audio", Value: audioLabel(event.HasAudio), Inline: true},
					{Name: "⏰ Raised At", Value: event.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"), Inline: true},
				},
				Footer:    &DiscordFooter{Text: "SilentSOS campus alerts"},
				Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			},
		},
	}
}

func slackAlertPayload(event AlertEvent) SlackWebhookRequest {
	return SlackWebhookRequest{
		Username:  webhookUsername,
		IconEmoji: ":rotating_light:",
		Text:      ":rotating_light: *NEW ALERT*",
		Attachments: []SlackAttachment{
			{
				Color: "danger",
				Title: fmt.Sprintf("Alert #%d from %s", event.ID, event.UserEmail),
				Fields: []SlackField{
					{Title: "Location", Value: locationOrUnknown(event.LocationLink), Short: false},
					{Title: "Audio", Value: audioLabel(event.HasAudio), Short: true},
				},
				Footer:    "SilentSOS campus alerts",
				Timestamp: event.Timestamp.Unix(),
			},
		},
	}
}

func (p *WebhookPublisher) post(ctx context.Context, webhookURL string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
