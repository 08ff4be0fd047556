package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mr1hm/relief-hub/internal/config"
	"github.com/mr1hm/relief-hub/internal/metrics"
	"github.com/mr1hm/relief-hub/internal/models"
	"github.com/mr1hm/relief-hub/internal/worker"
)

// Deliverer receives reports in-process. broadcast.Broadcaster implements it.
type Deliverer interface {
	Deliver(r *models.Report)
}

// EventSink is an out-of-process destination such as Kafka.
type EventSink interface {
	Publish(ctx context.Context, r *models.Report) error
}

const sinkTimeout = 10 * time.Second

// Notifier fans newly stored reports out to subscribers without holding up
// the request that created them.
type Notifier struct {
	cfg       config.NotifyConfig
	deliverer Deliverer
	sink      EventSink
	metrics   *metrics.Metrics
	logger    *slog.Logger
	pool      *worker.Pool[*models.Report]
}

// NewNotifier wires the destinations. sink may be nil.
func NewNotifier(cfg config.NotifyConfig, deliverer Deliverer, sink EventSink, m *metrics.Metrics, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		cfg:       cfg,
		deliverer: deliverer,
		sink:      sink,
		metrics:   m,
		logger:    logger,
	}
}

func (n *Notifier) Start(ctx context.Context) {
	processor := func(ctx context.Context, r *models.Report) error {
		if n.deliverer != nil {
			n.deliverer.Deliver(r)
		}

		if n.sink != nil {
			sctx, cancel := context.WithTimeout(ctx, sinkTimeout)
			defer cancel()
			if err := n.sink.Publish(sctx, r); err != nil {
				n.logger.Error("event sink publish failed", "id", r.ID, "error", err)
				return err
			}
		}

		n.logger.Debug("report dispatched", "id", r.ID, "type", r.Type, "state", r.State)
		return nil
	}

	n.pool = worker.NewPool(n.cfg.Workers, n.cfg.BufferSize, processor)
	n.pool.Start(ctx)
}

// Publish enqueues r and returns immediately. When the queue is full the
// notification is dropped; the report itself is already stored.
func (n *Notifier) Publish(r *models.Report) {
	if n.pool == nil {
		return
	}
	err := n.pool.TrySubmit(r)
	if err == nil {
		return
	}
	if errors.Is(err, worker.ErrQueueFull) && n.metrics != nil {
		n.metrics.NotifyDropped.Inc()
	}
	n.logger.Warn("notification dropped", "id", r.ID, "error", err)
}

// Stop drains queued notifications and waits for workers to exit.
func (n *Notifier) Stop() {
	if n.pool != nil {
		n.pool.Stop()
	}
	n.logger.Info("notifier stopped")
}
