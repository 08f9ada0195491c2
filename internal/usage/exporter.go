package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/agentdesk/agentdesk/internal/store"
)

// Exporter mirrors usage events to a Kafka topic so external billing
// systems can consume them. Export is best-effort: the sqlite ledger stays
// the source of truth.
type Exporter struct {
	writer *kafka.Writer
}

// NewExporter creates an exporter publishing to topic on the given
// comma-separated bootstrap brokers.
func NewExporter(bootstrap, topic string) *Exporter {
	return &Exporter{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(bootstrap, ",")...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 5 * time.Second,
		},
	}
}

// Publish writes one usage record keyed by user so per-user events stay
// ordered within a partition.
func (e *Exporter) Publish(ctx context.Context, log *store.UsageLog) error {
	payload, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("encode usage event: %w", err)
	}
	err = e.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(log.UserID),
		Value: payload,
		Time:  log.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("publish usage event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (e *Exporter) Close() error {
	return e.writer.Close()
}
