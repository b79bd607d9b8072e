// Package pipeline orchestrates the service loop: consume vendor records
// from the feed, and periodically recompute and publish the accuracy report.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/gridatlas/facility-accuracy/internal/domain"
	"github.com/gridatlas/facility-accuracy/internal/matcher"
	"github.com/gridatlas/facility-accuracy/internal/observability"
	"github.com/gridatlas/facility-accuracy/internal/report"
	"github.com/gridatlas/facility-accuracy/internal/store"
)

// BatchExtractor reads up to batchSize raw vendor records from the feed.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawRecord, error)
}

// Analyzer recomputes the accuracy report over the current working sets.
type Analyzer interface {
	Analyze(ctx context.Context, canonical []domain.Facility, bySource map[string][]domain.Candidate) (report.Report, error)
}

// ReportLoader publishes a completed report to the sink.
type ReportLoader interface {
	PublishReport(ctx context.Context, rep report.Report) error
}

// Options bundle the pipeline's tunables.
type Options struct {
	BatchSize         int
	RecomputeInterval time.Duration
	Clock             clockwork.Clock
}

// Pipeline consumes the vendor feed into the candidate store and triggers
// wholesale analysis runs whenever the store has changed.
type Pipeline struct {
	extractor BatchExtractor
	analyzer  Analyzer
	loader    ReportLoader
	canonical []domain.Facility
	store     *store.CandidateStore
	logger    *slog.Logger
	metrics   *observability.Metrics
	opts      Options

	ready  atomic.Bool
	latest atomic.Pointer[report.Report]
}

// New creates a Pipeline over an immutable canonical set.
func New(e BatchExtractor, a Analyzer, l ReportLoader, canonical []domain.Facility, st *store.CandidateStore, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.RecomputeInterval <= 0 {
		opts.RecomputeInterval = 30 * time.Second
	}
	return &Pipeline{
		extractor: e,
		analyzer:  a,
		loader:    l,
		canonical: canonical,
		store:     st,
		logger:    logger,
		metrics:   metrics,
		opts:      opts,
	}
}

// CheckReadiness returns nil once at least one analysis run has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no accuracy report computed yet")
	}
	return nil
}

// LatestReport returns the most recently computed report, if any.
func (p *Pipeline) LatestReport() (report.Report, bool) {
	rep := p.latest.Load()
	if rep == nil {
		return report.Report{}, false
	}
	return *rep, true
}

// Run executes the consume and analyze loops until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started",
		"canonical", len(p.canonical),
		"batch_size", p.opts.BatchSize,
		"recompute_interval", p.opts.RecomputeInterval,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.consumeLoop(gctx) })
	g.Go(func() error { return p.analyzeLoop(gctx) })

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	p.logger.Info("pipeline stopped")
	return nil
}

// consumeLoop pulls vendor record batches into the candidate store.
// Extract failures back off exponentially; malformed records are skipped
// and tallied, never fatal.
func (p *Pipeline) consumeLoop(ctx context.Context) error {
	// Start at 200ms, double each retry, cap at 5s so a broker outage
	// does not turn into a tight loop.
	backoff := 200 * time.Millisecond
	const maxBackoff = 5 * time.Second

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := p.extractor.ExtractBatch(ctx, p.opts.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error("extract batch failed", "error", err)
			if !p.sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = 200 * time.Millisecond

		for _, raw := range batch {
			p.metrics.RecordsConsumed.Inc()
			candidate, err := domain.ParseVendorRecord(raw)
			if err != nil {
				p.logger.Warn("skipping malformed vendor record",
					"error", err,
					"topic", raw.Topic,
					"partition", raw.Partition,
					"offset", raw.Offset,
				)
				p.metrics.ParseErrors.Inc()
				p.commit(ctx, raw)
				continue
			}
			p.store.Upsert(candidate)
			p.commit(ctx, raw)
		}
	}
}

// analyzeLoop recomputes the report on each tick when the store changed.
func (p *Pipeline) analyzeLoop(ctx context.Context) error {
	ticker := p.opts.Clock.NewTicker(p.opts.RecomputeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}

		if !p.store.Dirty() {
			continue
		}
		if err := p.runAnalysis(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error("analysis run failed", "error", err)
		}
	}
}

// runAnalysis snapshots the store, recomputes matches and comparisons
// wholesale, publishes the report, and refreshes the gauges.
func (p *Pipeline) runAnalysis(ctx context.Context) error {
	start := time.Now()
	p.metrics.AnalysisRunning.Set(1)
	defer p.metrics.AnalysisRunning.Set(0)

	bySource := p.store.Snapshot()

	rep, err := p.analyzer.Analyze(ctx, p.canonical, bySource)
	if err != nil {
		return err
	}

	if err := p.loader.PublishReport(ctx, rep); err != nil {
		return err
	}
	p.metrics.ReportsPublished.Inc()
	p.metrics.AnalysisRuns.Inc()
	p.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())

	p.updateGauges(rep, bySource)
	p.latest.Store(&rep)
	p.ready.Store(true)

	p.logger.Info("report published",
		"run_id", rep.RunID,
		"sources", len(bySource),
		"duration", time.Since(start),
	)
	return nil
}

func (p *Pipeline) updateGauges(rep report.Report, bySource map[string][]domain.Candidate) {
	for source, list := range bySource {
		p.metrics.CandidatesStored.WithLabelValues(source).Set(float64(len(list)))
	}
	p.metrics.ExcludedRecords.WithLabelValues("", "unmatchable").Set(float64(len(rep.UnmatchableKeys)))
	for source, misses := range rep.MissesBySource {
		p.metrics.ExcludedRecords.WithLabelValues(source, "no_match").Set(float64(misses))
	}
	for _, s := range rep.Spatial {
		if s.Dimension != matcher.DimensionOverall {
			continue
		}
		p.metrics.MatchedFacilities.WithLabelValues(s.Source).Set(float64(s.NMatched))
		p.metrics.RecallPct.WithLabelValues(s.Source).Set(s.RecallPct)
		if s.Distance != nil {
			p.metrics.MedianDistanceM.WithLabelValues(s.Source).Set(s.Distance.MedianM)
		}
	}
	for _, cmp := range rep.Capacity {
		sum := cmp.Summary
		p.metrics.ExcludedRecords.WithLabelValues(sum.Source, "zero_denominator").Set(float64(sum.NZeroDenominator))
		p.metrics.ExcludedRecords.WithLabelValues(sum.Source, "missing_field").Set(float64(sum.NMissingField))
		p.metrics.ExcludedRecords.WithLabelValues(sum.Source, "outlier").Set(float64(sum.NOutliersExcluded))
	}
}

// commit acknowledges the record offset if a commit callback is present.
func (p *Pipeline) commit(ctx context.Context, raw domain.RawRecord) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func (p *Pipeline) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
