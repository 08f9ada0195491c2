package usage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/agentdesk/agentdesk/internal/store"
)

// Recorder persists usage records off the request path. Events go onto a
// bounded channel; when the channel is full the event is dropped (the
// ledger under-counts rather than blocking or double-billing a chat call).
type Recorder struct {
	ledger   *Ledger
	exporter *Exporter
	events   chan *store.UsageLog
	done     chan struct{}
	stop     sync.Once
}

// NewRecorder starts a recorder draining into ledger. exporter may be nil.
func NewRecorder(ledger *Ledger, exporter *Exporter, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	r := &Recorder{
		ledger:   ledger,
		exporter: exporter,
		events:   make(chan *store.UsageLog, buffer),
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues one usage event. Never blocks.
func (r *Recorder) Record(log *store.UsageLog) {
	select {
	case r.events <- log:
	default:
		slog.Warn("Usage event dropped, recorder buffer full",
			"user", log.UserID, "service", log.Service)
	}
}

// Close stops accepting events and drains the buffer before returning.
func (r *Recorder) Close() {
	r.stop.Do(func() { close(r.events) })
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for log := range r.events {
		if err := r.ledger.Record(log); err != nil {
			slog.Error("Failed to persist usage event",
				"user", log.UserID, "service", log.Service, "error", err)
			continue
		}
		if r.exporter != nil {
			if err := r.exporter.Publish(context.Background(), log); err != nil {
				slog.Warn("Failed to export usage event",
					"user", log.UserID, "service", log.Service, "error", err)
			}
		}
	}
}
