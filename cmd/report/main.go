// Command report runs one offline accuracy analysis over JSON fixtures:
// canonical facilities plus one or more vendor candidate files. It prints
// per-source recall and distance statistics with capacity comparison
// summaries, and optionally writes the full results as CSVs. With
// -campus-level the canonical buildings are rolled up to campuses first,
// so vendor records are judged against campus centroids and summed loads.
//
// Usage:
//
//	go run ./cmd/report \
//	  -canonical data/canonical_buildings.json \
//	  -candidates data/mock/vendor_records.json \
//	  -comparisons "Semianalysis:mw_2023,DataCenterHawk:commissioned_power_mw:1.3" \
//	  -out-dir out/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gridatlas/facility-accuracy/internal/comparator"
	"github.com/gridatlas/facility-accuracy/internal/config"
	"github.com/gridatlas/facility-accuracy/internal/domain"
	"github.com/gridatlas/facility-accuracy/internal/matcher"
	"github.com/gridatlas/facility-accuracy/internal/report"
	"github.com/gridatlas/facility-accuracy/internal/store"
)

func main() {
	canonicalPath := flag.String("canonical", "", "path to canonical facilities JSON")
	candidatesPath := flag.String("candidates", "", "path to vendor candidate records JSON (comma-separated for multiple files)")
	comparisons := flag.String("comparisons", "", "capacity comparisons as Source:field[:divisor], comma-separated")
	outliers := flag.String("outliers", "", "facility keys to exclude from outlier-adjusted aggregates, comma-separated")
	radiusM := flag.Float64("radius-m", matcher.DefaultRadiusM, "spatial search radius in meters")
	campusLevel := flag.Bool("campus-level", false, "roll canonical buildings up to campuses before analysis")
	outDir := flag.String("out-dir", "", "directory for summary and variance CSVs (optional)")
	flag.Parse()

	if *canonicalPath == "" || *candidatesPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*canonicalPath, *candidatesPath, *comparisons, *outliers, *radiusM, *campusLevel, *outDir); code != 0 {
		os.Exit(code)
	}
}

func run(canonicalPath, candidatesPath, comparisons, outliers string, radiusM float64, campusLevel bool, outDir string) int {
	canonical, err := store.LoadCanonical(canonicalPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load canonical facilities: %v\n", err)
		return 1
	}

	bySource, skipped, err := loadCandidates(strings.Split(candidatesPath, ","))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load candidates: %v\n", err)
		return 1
	}

	var requests config.FieldRequests
	if comparisons != "" {
		if err := requests.Decode(comparisons); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: parse -comparisons: %v\n", err)
			return 1
		}
	}

	var outlierKeys []string
	for _, k := range strings.Split(outliers, ",") {
		if k = strings.TrimSpace(k); k != "" {
			outlierKeys = append(outlierKeys, k)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := matcher.New(matcher.Config{RadiusM: radiusM}, logger)
	c := comparator.New(domain.DefaultVarianceThresholds(), outlierKeys)
	builder := report.NewBuilder(m, c, requests, radiusM, logger)

	analyze := builder.Analyze
	if campusLevel {
		analyze = builder.AnalyzeCampuses
	}
	rep, err := analyze(context.Background(), canonical, bySource)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: analysis: %v\n", err)
		return 1
	}

	printReport(rep, bySource, skipped)

	if outDir != "" {
		if err := writeCSVs(outDir, rep); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: write CSVs: %v\n", err)
			return 1
		}
		fmt.Printf("\nCSVs written to %s\n", outDir)
	}
	return 0
}

// loadCandidates parses vendor record fixtures, grouping candidates by
// source. Malformed records are skipped and counted, matching how the
// service treats bad feed messages.
func loadCandidates(paths []string) (map[string][]domain.Candidate, int, error) {
	bySource := make(map[string][]domain.Candidate)
	skipped := 0
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, 0, err
		}
		var entries []json.RawMessage
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, 0, fmt.Errorf("%s: %w", path, err)
		}
		for i, entry := range entries {
			candidate, err := domain.ParseVendorRecord(domain.RawRecord{Value: entry})
			if err != nil {
				fmt.Fprintf(os.Stderr, "WARN: %s record %d: %v\n", path, i, err)
				skipped++
				continue
			}
			bySource[candidate.Source] = append(bySource[candidate.Source], candidate)
		}
	}
	return bySource, skipped, nil
}

func printReport(rep report.Report, bySource map[string][]domain.Candidate, skipped int) {
	fmt.Println("=== Facility Location & Capacity Accuracy ===")
	fmt.Println()
	fmt.Printf("Canonical facilities: %d (%d matchable, %d without coordinates)\n",
		rep.CanonicalCount, rep.MatchableCount, len(rep.UnmatchableKeys))
	fmt.Printf("Candidate sources:    %d", len(bySource))
	if skipped > 0 {
		fmt.Printf(" (%d malformed records skipped)", skipped)
	}
	fmt.Println()

	fmt.Println("\n--- Spatial accuracy (overall) ---")
	for _, s := range rep.Spatial {
		if s.Dimension != matcher.DimensionOverall {
			continue
		}
		if s.Distance == nil {
			fmt.Printf("  %-18s recall %5.1f%%  (no matches)\n", s.Source, s.RecallPct)
			continue
		}
		d := s.Distance
		fmt.Printf("  %-18s recall %5.1f%%  median %7.0fm  mean %7.0fm  <1km %5.1f%%  matched %d/%d\n",
			s.Source, s.RecallPct, d.MedianM, d.MeanM, d.PctWithin1KM, s.NMatched, s.NTotal)
	}

	if len(rep.Capacity) > 0 {
		fmt.Println("\n--- Capacity accuracy ---")
		for _, cmp := range rep.Capacity {
			sum := cmp.Summary
			fmt.Printf("  %s / %s:\n", sum.Source, sum.Field)
			fmt.Printf("    included %d  zero-denominator %d  missing-field %d\n",
				sum.NIncluded, sum.NZeroDenominator, sum.NMissingField)
			if sum.MAPE != nil {
				fmt.Printf("    MAPE %.1f%%  bias %+.1f%%", *sum.MAPE, *sum.BiasPct)
				if sum.MAPEExcludingOutliers != nil && sum.NOutliersExcluded > 0 {
					fmt.Printf("  MAPE excl. %d outlier(s) %.1f%%", sum.NOutliersExcluded, *sum.MAPEExcludingOutliers)
				}
				fmt.Println()
			}
		}
	}

	if len(rep.UnmatchableKeys) > 0 {
		fmt.Printf("\nUnmatchable facilities (no valid coordinates): %s\n",
			strings.Join(rep.UnmatchableKeys, ", "))
	}
}

func writeCSVs(dir string, rep report.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(dir, "spatial_summary.csv"), func(w io.Writer) error {
		return report.WriteSummaryCSV(w, rep.Spatial)
	}); err != nil {
		return err
	}
	return writeCSV(filepath.Join(dir, "capacity_variance.csv"), func(w io.Writer) error {
		return report.WriteVarianceCSV(w, rep.Capacity)
	})
}

func writeCSV(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
