package kafka

import (
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridatlas/facility-accuracy/internal/report"
)

func TestMapMessageToRawRecord(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("sa-1"),
		Value:     []byte(`{"id":"sa-1","source":"Semianalysis"}`),
		Topic:     "vendor-facility-records",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "ingested_by", Value: []byte("vendor-feed")},
		},
	}

	r := &Reader{}
	raw := r.mapMessageToRawRecord(msg)

	assert.Equal(t, []byte("sa-1"), raw.Key)
	assert.JSONEq(t, `{"id":"sa-1","source":"Semianalysis"}`, string(raw.Value))
	assert.Equal(t, "vendor-facility-records", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "vendor-feed", raw.Headers["ingested_by"])
	assert.NotNil(t, raw.Commit)
}

func TestSerializeToMessage(t *testing.T) {
	generated := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rep := report.Report{
		RunID:          "run-1",
		GeneratedAt:    generated,
		CanonicalCount: 96,
	}

	msg, err := serializeToMessage(rep)
	require.NoError(t, err)

	assert.Equal(t, []byte("run-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"run_id":"run-1"`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "generated_at", msg.Headers[0].Key)
	assert.Equal(t, []byte(generated.Format(time.RFC3339)), msg.Headers[0].Value)
	assert.Equal(t, "n_canonical", msg.Headers[1].Key)
	assert.Equal(t, []byte("96"), msg.Headers[1].Value)
}
