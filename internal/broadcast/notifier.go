package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/silentsos/silentsos/internal/logging"
	"github.com/silentsos/silentsos/internal/metrics"
)

// Notifier publishes events on every configured transport without making
// the caller wait.
type Notifier struct {
	publishers []Publisher
	timeout    time.Duration
	metrics    *metrics.Metrics
	log        *slog.Logger
	wg         sync.WaitGroup
}

func NewNotifier(timeout time.Duration, m *metrics.Metrics, publishers ...Publisher) *Notifier {
	return &Notifier{
		publishers: publishers,
		timeout:    timeout,
		metrics:    m,
		log:        logging.For("broadcast"),
	}
}

// PublishAsync hands event to each publisher in its own goroutine, bounded
// by the notifier timeout. It never blocks and never reports failure.
func (n *Notifier) PublishAsync(event AlertEvent) {
	for _, p := range n.publishers {
		n.wg.Add(1)

		go func(p Publisher) {
			defer n.wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
			defer cancel()

			err := p.Publish(ctx, event)
			n.metrics.BroadcastResult(p.Name(), err)

			if err != nil {
				n.log.Warn("alert notification failed", "transport", p.Name(), "alert_id", event.ID, "error", err)
			}
		}(p)
	}
}

// Wait blocks until in-flight publishes finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
