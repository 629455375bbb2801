package broadcast

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/silentsos/silentsos/internal/models"
)

type recordingPublisher struct {
	name  string
	delay time.Duration
	err   error

	mu     sync.Mutex
	events []AlertEvent
}

func (p *recordingPublisher) Name() string { return p.name }

func (p *recordingPublisher) Publish(ctx context.Context, event AlertEvent) error {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)

	return p.err
}

func (p *recordingPublisher) received() []AlertEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]AlertEvent(nil), p.events...)
}

func TestNewAlertEvent(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	alert := &models.Alert{ID: 9, Timestamp: ts, LocationLink: "http://x", Audio: "alerts/audio/2025/3/1/a.mp3"}

	event := NewAlertEvent(alert, "alice@ictuniversity.edu.cm")

	assert.Equal(t, AlertEvent{
		ID:           9,
		UserEmail:    "alice@ictuniversity.edu.cm",
		Timestamp:    ts,
		LocationLink: "http://x",
		HasAudio:     true,
	}, event)
}

func TestNotifier_PublishesToEveryTransport(t *testing.T) {
	defer goleak.VerifyNone(t)

	ok := &recordingPublisher{name: "ok"}
	failing := &recordingPublisher{name: "failing", err: errors.New("broker down")}

	n := NewNotifier(time.Second, nil, ok, failing)
	n.PublishAsync(AlertEvent{ID: 1})
	n.Wait()

	require.Len(t, ok.received(), 1)
	assert.Equal(t, uint(1), ok.received()[0].ID)
	assert.Len(t, failing.received(), 1)
}

func TestNotifier_DoesNotBlockOnSlowTransport(t *testing.T) {
	defer goleak.VerifyNone(t)

	slow := &recordingPublisher{name: "slow", delay: time.Hour}

	n := NewNotifier(50*time.Millisecond, nil, slow)

	start := time.Now()
	n.PublishAsync(AlertEvent{ID: 2})
	assert.Less(t, time.Since(start), 20*time.Millisecond, "PublishAsync must return immediately")

	n.Wait()
	assert.Less(t, time.Since(start), time.Second, "publish is bounded by the timeout")
	assert.Empty(t, slow.received())
}

func TestHub_BroadcastsToSubscribers(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(nil)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn, AlertsGroup)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	var welcome map[string]string
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, "connected", welcome["type"])
	assert.Equal(t, 1, hub.Clients(AlertsGroup))

	require.NoError(t, hub.Publish(context.Background(), AlertEvent{ID: 5, UserEmail: "bob@ictuniversity.edu.cm"}))

	var msg struct {
		Type  string     `json:"type"`
		Alert AlertEvent `json:"alert"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeSendAlert, msg.Type)
	assert.Equal(t, uint(5), msg.Alert.ID)
	assert.Equal(t, "bob@ictuniversity.edu.cm", msg.Alert.UserEmail)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return hub.Clients(AlertsGroup) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(nil)

	assert.NoError(t, hub.Publish(context.Background(), AlertEvent{ID: 1}))
	assert.Zero(t, hub.Clients(AlertsGroup))
}

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error, complete bool) *fakeToken {
	tok := &fakeToken{done: make(chan struct{}), err: err}
	if complete {
		close(tok.done)
	}
	return tok
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type fakeMQTTClient struct {
	mqtt.Client

	connected bool
	token     *fakeToken
	published atomic.Int32
	topic     string
	payload   []byte
}

func (c *fakeMQTTClient) IsConnected() bool { return c.connected }

func (c *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.published.Add(1)
	c.topic = topic
	c.payload, _ = payload.([]byte)
	return c.token
}

func TestMQTTPublisher(t *testing.T) {
	client := &fakeMQTTClient{connected: true, token: newFakeToken(nil, true)}
	p := newMQTTPublisher(client, "silentsos/alerts")

	require.NoError(t, p.Publish(context.Background(), AlertEvent{ID: 3, UserEmail: "c@ictuniversity.edu.cm"}))
	assert.Equal(t, "silentsos/alerts", client.topic)
	assert.Contains(t, string(client.payload), `"user_email":"c@ictuniversity.edu.cm"`)
	assert.Equal(t, "mqtt", p.Name())
}

func TestMQTTPublisher_Failures(t *testing.T) {
	disconnected := newMQTTPublisher(&fakeMQTTClient{}, "t")
	assert.Error(t, disconnected.Publish(context.Background(), AlertEvent{ID: 1}))

	rejected := newMQTTPublisher(&fakeMQTTClient{connected: true, token: newFakeToken(errors.New("not authorized"), true)}, "t")
	assert.Error(t, rejected.Publish(context.Background(), AlertEvent{ID: 1}))

	stuck := newMQTTPublisher(&fakeMQTTClient{connected: true, token: newFakeToken(nil, false)}, "t")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, stuck.Publish(ctx, AlertEvent{ID: 1}), context.DeadlineExceeded)
}
