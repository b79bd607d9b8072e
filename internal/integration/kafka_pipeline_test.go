//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridatlas/facility-accuracy/internal/adapter/kafka"
	"github.com/gridatlas/facility-accuracy/internal/comparator"
	"github.com/gridatlas/facility-accuracy/internal/config"
	"github.com/gridatlas/facility-accuracy/internal/domain"
	"github.com/gridatlas/facility-accuracy/internal/matcher"
	"github.com/gridatlas/facility-accuracy/internal/observability"
	"github.com/gridatlas/facility-accuracy/internal/pipeline"
	"github.com/gridatlas/facility-accuracy/internal/report"
	"github.com/gridatlas/facility-accuracy/internal/store"
)

const (
	testSourceTopic = "test-vendor-records"
	testSinkTopic   = "test-accuracy-reports"
)

// publishedReport holds a deserialized report read from the sink topic.
type publishedReport struct {
	Report  report.Report
	Key     string
	Headers map[string]string
}

// readReport reads a single message from the sink consumer and deserializes it.
func readReport(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedReport {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var rep report.Report
	require.NoError(t, json.Unmarshal(msg.Value, &rep), "unmarshal sink message")

	return publishedReport{
		Report:  rep,
		Key:     string(msg.Key),
		Headers: headers,
	}
}

// testCanonical returns two reference buildings on different continents,
// far enough apart that a candidate can only ever match one of them.
func testCanonical() []domain.Facility {
	return []domain.Facility{
		{
			Key:         "iad-01",
			Geo:         domain.Geo{Lat: 38.9500, Lon: -77.4500},
			ITLoadMW:    30,
			Region:      domain.RegionAMER,
			BuildStatus: domain.StatusActiveBuild,
		},
		{
			Key:         "fra-01",
			Geo:         domain.Geo{Lat: 50.1000, Lon: 8.6800},
			ITLoadMW:    20,
			Region:      domain.RegionEMEA,
			BuildStatus: domain.StatusCompleteBuild,
		},
	}
}

// vendorRecord builds the flat JSON payload the per-vendor ingestion
// services produce, with a single building-level it_load capacity field.
func vendorRecord(t *testing.T, id, source string, lat, lon float64, field string, mw float64) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":     id,
		"source": source,
		"lat":    lat,
		"lon":    lon,
		"capacities": []map[string]any{
			{
				"name":        field,
				"value_mw":    mw,
				"granularity": "building",
				"definition":  "it_load",
				"horizon":     "current",
			},
		},
	})
	require.NoError(t, err)
	return payload
}

func newBuilder() *report.Builder {
	requests := []comparator.FieldRequest{{Source: "Semianalysis", Field: "mw_2023"}}
	m := matcher.New(matcher.Config{}, discardLogger())
	c := comparator.New(domain.DefaultVarianceThresholds(), nil)
	return report.NewBuilder(m, c, requests, matcher.DefaultRadiusM, discardLogger())
}

// overallSlice finds the per-source overall slice in a report.
func overallSlice(rep report.Report, source string) (matcher.SliceStats, bool) {
	for _, s := range rep.Spatial {
		if s.Source == source && s.Dimension == matcher.DimensionOverall {
			return s, true
		}
	}
	return matcher.SliceStats{}, false
}

// TestKafkaReaderWriter verifies the adapter layer: kafka.Reader (extractor)
// and kafka.Writer (loader) correctly round-trip through Kafka.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)

	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:     []string{broker},
		KafkaSourceTopic: testSourceTopic,
		KafkaSinkTopic:   testSinkTopic,
		KafkaGroupID:     fmt.Sprintf("test-reader-%d", time.Now().UnixNano()),
	}

	// Publish one vendor record roughly 55 m north of iad-01, reporting
	// 36 MW against the building's 30 MW (a +20 percent error).
	payload := vendorRecord(t, "sem-iad-1", "semianalysis", 38.9505, -77.4500, "mw_2023", 36.0)

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte("test-key"),
		Value: payload,
	}))

	// Extract via kafka.Reader.
	// Retry because the consumer group may need time to rebalance before
	// partitions are assigned and messages become available.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawRecord
	for {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if len(batch) > 0 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from source topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("test-key"), raw.Key)
	assert.Equal(t, payload, raw.Value)
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")

	// Commit the offset.
	require.NoError(t, raw.Commit(ctx))

	// Parse the record and run one analysis over it.
	candidate, err := domain.ParseVendorRecord(raw)
	require.NoError(t, err)
	assert.Equal(t, "Semianalysis", candidate.Source, "source spelling should be normalized")
	assert.True(t, candidate.Geo.Valid())

	rep, err := newBuilder().Analyze(ctx, testCanonical(), map[string][]domain.Candidate{
		candidate.Source: {candidate},
	})
	require.NoError(t, err)

	// Load via kafka.Writer.
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	require.NoError(t, writer.PublishReport(ctx, rep))

	// Read from the sink topic and verify key, headers and payload.
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	pr := readReport(ctx, t, consumer)
	assert.Equal(t, rep.RunID, pr.Key)
	assert.Equal(t, "2", pr.Headers["n_canonical"])
	require.Contains(t, pr.Headers, "generated_at")
	_, err = time.Parse(time.RFC3339, pr.Headers["generated_at"])
	assert.NoError(t, err, "generated_at should be valid RFC3339")

	assert.Equal(t, 2, pr.Report.CanonicalCount)
	assert.Equal(t, matcher.DefaultRadiusM, pr.Report.SearchRadiusM)

	overall, ok := overallSlice(pr.Report, "Semianalysis")
	require.True(t, ok, "expected an overall slice for Semianalysis")
	assert.Equal(t, 2, overall.NTotal)
	assert.Equal(t, 1, overall.NMatched)
	assert.InDelta(t, 50.0, overall.RecallPct, 0.001)
	require.NotNil(t, overall.Distance)
	assert.Less(t, overall.Distance.MedianM, 100.0)

	require.Len(t, pr.Report.Capacity, 1)
	records := pr.Report.Capacity[0].Records
	require.Len(t, records, 1)
	assert.Equal(t, "iad-01", records[0].FacilityKey)
	assert.InDelta(t, 20.0, records[0].PercentError, 0.001)
	assert.Equal(t, 2, records[0].Score)
}

// TestPipelineEndToEnd wires the full pipeline (Reader → store → Builder →
// Writer) against real Kafka and waits for a report covering every record.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)

	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:     []string{broker},
		KafkaSourceTopic: testSourceTopic,
		KafkaSinkTopic:   testSinkTopic,
		KafkaGroupID:     fmt.Sprintf("test-pipeline-%d", time.Now().UnixNano()),
	}

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	// One candidate per building plus a third vendor record with no
	// capacity comparison configured for its source.
	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{
			Key:   []byte("sem-iad-1"),
			Value: vendorRecord(t, "sem-iad-1", "semianalysis", 38.9505, -77.4500, "mw_2023", 36.0),
		},
		kafkago.Message{
			Key:   []byte("sem-fra-1"),
			Value: vendorRecord(t, "sem-fra-1", "semianalysis", 50.1002, 8.6800, "mw_2023", 22.0),
		},
		kafkago.Message{
			Key:   []byte("dcm-iad-1"),
			Value: vendorRecord(t, "dcm-iad-1", "dcm", 38.9510, -77.4500, "capacity_mw", 40.0),
		},
	))

	// Wire up the pipeline with real adapters.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	st := store.NewCandidateStore()
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(reader, newBuilder(), writer, testCanonical(), st, discardLogger(), metrics, pipeline.Options{
		BatchSize:         50,
		RecomputeInterval: 500 * time.Millisecond,
	})

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	// The store fills batch by batch, so early reports may be partial.
	// Read until a report covers both Semianalysis candidates.
	var pr publishedReport
	for {
		pr = readReport(ctx, t, consumer)
		overall, ok := overallSlice(pr.Report, "Semianalysis")
		if ok && overall.NMatched == 2 {
			break
		}
	}

	pipelineCancel()
	require.NoError(t, <-errCh)

	assert.Equal(t, 2, pr.Report.CanonicalCount)
	assert.Equal(t, 2, pr.Report.MatchableCount)
	assert.Empty(t, pr.Report.UnmatchableKeys)

	semOverall, ok := overallSlice(pr.Report, "Semianalysis")
	require.True(t, ok)
	assert.InDelta(t, 100.0, semOverall.RecallPct, 0.001)
	require.NotNil(t, semOverall.Distance)
	assert.InDelta(t, 100.0, semOverall.Distance.PctWithin500M, 0.001)

	// The DataCenterMap record matches iad-01 only.
	dcmOverall, ok := overallSlice(pr.Report, "DataCenterMap")
	require.True(t, ok)
	assert.Equal(t, 1, dcmOverall.NMatched)
	assert.Equal(t, map[string]int{"DataCenterMap": 1, "Semianalysis": 0}, pr.Report.MissesBySource)

	// Both Semianalysis candidates score against their buildings:
	// +20 percent at iad-01, +10 percent at fra-01.
	require.Len(t, pr.Report.Capacity, 1)
	cmp := pr.Report.Capacity[0]
	require.Len(t, cmp.Records, 2)
	assert.Equal(t, "fra-01", cmp.Records[0].FacilityKey)
	assert.InDelta(t, 10.0, cmp.Records[0].PercentError, 0.001)
	assert.Equal(t, 1, cmp.Records[0].Score)
	assert.Equal(t, "iad-01", cmp.Records[1].FacilityKey)
	assert.InDelta(t, 20.0, cmp.Records[1].PercentError, 0.001)
	assert.Equal(t, 2, cmp.Records[1].Score)
	require.NotNil(t, cmp.Summary.MAPE)
	assert.InDelta(t, 15.0, *cmp.Summary.MAPE, 0.001)
	require.NotNil(t, cmp.Summary.BiasPct)
	assert.InDelta(t, 15.0, *cmp.Summary.BiasPct, 0.001)
}

// TestPipelineParseError verifies that a malformed record (poison pill) is
// skipped and the pipeline keeps consuming and reporting.
func TestPipelineParseError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)

	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:     []string{broker},
		KafkaSourceTopic: testSourceTopic,
		KafkaSinkTopic:   testSinkTopic,
		KafkaGroupID:     fmt.Sprintf("test-poison-%d", time.Now().UnixNano()),
	}

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	// Publish: invalid JSON, then a valid vendor record.
	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		kafkago.Message{
			Key:   []byte("good"),
			Value: vendorRecord(t, "sem-iad-1", "semianalysis", 38.9505, -77.4500, "mw_2023", 33.0),
		},
	))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	st := store.NewCandidateStore()
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(reader, newBuilder(), writer, testCanonical(), st, discardLogger(), metrics, pipeline.Options{
		BatchSize:         50,
		RecomputeInterval: 500 * time.Millisecond,
	})

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	// A report must still appear, built from the valid record only.
	var pr publishedReport
	for {
		pr = readReport(ctx, t, consumer)
		if overall, ok := overallSlice(pr.Report, "Semianalysis"); ok && overall.NMatched == 1 {
			break
		}
	}

	pipelineCancel()
	require.NoError(t, <-errCh)

	assert.Equal(t, 1, st.Len(), "only the valid record should be stored")
	require.Len(t, pr.Report.Capacity, 1)
	require.Len(t, pr.Report.Capacity[0].Records, 1)
	assert.InDelta(t, 10.0, pr.Report.Capacity[0].Records[0].PercentError, 0.001)
}
