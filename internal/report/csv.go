package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/gridatlas/facility-accuracy/internal/comparator"
	"github.com/gridatlas/facility-accuracy/internal/matcher"
)

// WriteSummaryCSV writes the per-source, per-slice statistics table.
// Distance columns are empty for slices with no matches.
func WriteSummaryCSV(w io.Writer, stats []matcher.SliceStats) error {
	cw := csv.NewWriter(w)
	header := []string{
		"source", "slice_dimension", "slice_value",
		"recall_pct", "median_m", "mean_m", "std_m", "mad_m",
		"pct_within_100m", "pct_within_500m", "pct_within_1km", "pct_within_5km",
		"n_matched", "n_total",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write summary csv: %w", err)
	}
	for _, s := range stats {
		row := []string{
			s.Source, s.Dimension, s.Value,
			formatFloat(s.RecallPct),
			"", "", "", "", "", "", "", "",
			strconv.Itoa(s.NMatched), strconv.Itoa(s.NTotal),
		}
		if d := s.Distance; d != nil {
			row[4] = formatFloat(d.MedianM)
			row[5] = formatFloat(d.MeanM)
			row[6] = formatFloat(d.StdM)
			row[7] = formatFloat(d.MADM)
			row[8] = formatFloat(d.PctWithin100M)
			row[9] = formatFloat(d.PctWithin500M)
			row[10] = formatFloat(d.PctWithin1KM)
			row[11] = formatFloat(d.PctWithin5KM)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write summary csv: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteVarianceCSV writes every scored record from the capacity comparisons.
func WriteVarianceCSV(w io.Writer, comparisons []comparator.Comparison) error {
	cw := csv.NewWriter(w)
	header := []string{
		"canonical_id", "source", "candidate_id", "field_used",
		"raw_value", "adjusted_value", "canonical_value",
		"percent_error", "variance_score", "zero_denominator", "outlier",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write variance csv: %w", err)
	}
	for _, cmp := range comparisons {
		for _, rec := range cmp.Records {
			row := []string{
				rec.FacilityKey, rec.Source, rec.CandidateID, rec.Field,
				formatFloat(rec.RawValueMW),
				formatFloat(rec.AdjustedValueMW),
				formatFloat(rec.CanonicalMW),
				"",
				strconv.Itoa(rec.Score),
				strconv.FormatBool(rec.ZeroDenominator),
				strconv.FormatBool(rec.Outlier),
			}
			if !rec.ZeroDenominator {
				row[7] = formatFloat(rec.PercentError)
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write variance csv: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
