// Package broadcast fans newly created alerts out to subscribers. Delivery is
// best effort: publishers run detached from the request that created the
// alert and their failures are only logged and counted.
package broadcast

import (
	"context"
	"time"

	"github.com/silentsos/silentsos/internal/models"
)

// AlertsGroup is the hub group every alert subscriber joins.
const AlertsGroup = "alerts"

// MessageTypeSendAlert tags alert notifications sent to websocket clients.
const MessageTypeSendAlert = "send_alert"

// AlertEvent is the payload published for each new alert.
type AlertEvent struct {
	ID           uint      `json:"id"`
	UserEmail    string    `json:"user_email"`
	Timestamp    time.Time `json:"timestamp"`
	LocationLink string    `json:"location_link"`
	HasAudio     bool      `json:"has_audio"`
}

func NewAlertEvent(alert *models.Alert, userEmail string) AlertEvent {
	return AlertEvent{
		ID:           alert.ID,
		UserEmail:    userEmail,
		Timestamp:    alert.Timestamp,
		LocationLink: alert.LocationLink,
		HasAudio:     alert.HasAudio(),
	}
}

// Publisher delivers an event over one transport.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, event AlertEvent) error
}
