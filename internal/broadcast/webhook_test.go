package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	discordURL = "https://discord.example.com/api/webhooks/1/abc"
	slackURL   = "https://hooks.slack.example.com/services/T/B/X"
)

func TestWebhookPublisher(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	t.Cleanup(httpmock.DeactivateAndReset)

	var discord DiscordWebhookRequest
	httpmock.RegisterResponder(http.MethodPost, discordURL, func(req *http.Request) (*http.Response, error) {
		if err := json.NewDecoder(req.Body).Decode(&discord); err != nil {
			return nil, err
		}
		return httpmock.NewStringResponse(http.StatusNoContent, ""), nil
	})
	httpmock.RegisterResponder(http.MethodPost, slackURL, httpmock.NewStringResponder(http.StatusOK, "ok"))

	p := &WebhookPublisher{DiscordURL: discordURL, SlackURL: slackURL, Client: client}

	event := AlertEvent{ID: 12, UserEmail: "alice@ictuniversity.edu.cm", Timestamp: time.Now(), HasAudio: true}
	require.NoError(t, p.Publish(context.Background(), event))

	require.Len(t, discord.Embeds, 1)
	assert.Contains(t, discord.Embeds[0].Description, "alice@ictuniversity.edu.cm")
	assert.Equal(t, "Not shared", discord.Embeds[0].Fields[0].Value)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestWebhookPublisher_ReportsFailures(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder(http.MethodPost, slackURL, httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	p := &WebhookPublisher{SlackURL: slackURL, Client: client}

	err := p.Publish(context.Background(), AlertEvent{ID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack")
}
