package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/gridatlas/facility-accuracy/internal/config"
	"github.com/gridatlas/facility-accuracy/internal/report"
)

// Writer publishes accuracy reports to a Kafka topic.
// It implements pipeline.ReportLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishReport serializes and publishes one accuracy report to the sink
// topic. The run ID keys the message so compacted topics retain each run.
func (w *Writer) PublishReport(ctx context.Context, rep report.Report) error {
	msg, err := serializeToMessage(rep)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Report into a Kafka message.
func serializeToMessage(rep report.Report) (kafkago.Message, error) {
	data, err := json.Marshal(rep)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize report: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rep.RunID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "generated_at", Value: []byte(rep.GeneratedAt.Format(time.RFC3339))},
			{Key: "n_canonical", Value: []byte(strconv.Itoa(rep.CanonicalCount))},
		},
	}, nil
}
