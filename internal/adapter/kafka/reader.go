// Package kafka adapts the segmentio/kafka-go client to the pipeline's
// extractor and loader interfaces.
package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/gridatlas/facility-accuracy/internal/config"
	"github.com/gridatlas/facility-accuracy/internal/domain"
)

// batchWait bounds how long ExtractBatch blocks waiting for a full batch.
const batchWait = 2 * time.Second

// Reader consumes vendor facility records from the source topic.
// It implements pipeline.BatchExtractor.
type Reader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewReader creates a consumer-group reader for the configured source topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaSourceTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return &Reader{reader: r, logger: logger}
}

// ExtractBatch fetches up to batchSize messages, returning early once the
// batch window elapses. Offsets are not committed here; each returned record
// carries a Commit callback the caller invokes after the record is stored.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawRecord, error) {
	batch := make([]domain.RawRecord, 0, batchSize)

	fetchCtx, cancel := context.WithTimeout(ctx, batchWait)
	defer cancel()

	for len(batch) < batchSize {
		msg, err := r.reader.FetchMessage(fetchCtx)
		if err != nil {
			// An elapsed batch window returns whatever was fetched.
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				break
			}
			if len(batch) > 0 {
				return batch, nil
			}
			return nil, err
		}
		batch = append(batch, r.mapMessageToRawRecord(msg))
	}
	return batch, nil
}

func (r *Reader) mapMessageToRawRecord(msg kafkago.Message) domain.RawRecord {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.RawRecord{
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Commit: func(ctx context.Context) error {
			return r.reader.CommitMessages(ctx, msg)
		},
	}
}

func (r *Reader) Close() error {
	return r.reader.Close()
}
