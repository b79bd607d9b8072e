// Package comparator scores vendor-reported capacity values against
// canonical IT load for matched or directly joined facility pairs.
package comparator

import (
	"sort"

	"github.com/gridatlas/facility-accuracy/internal/domain"
)

// FieldRequest names the candidate capacity field to compare for one source,
// with an optional adjustment divisor (e.g. a PUE factor for facility-power
// fields). A zero Divisor means "not declared"; it defaults to 1.0 for
// it_load fields and is a configuration error for facility_power fields.
type FieldRequest struct {
	Source  string  `json:"source"`
	Field   string  `json:"field"`
	Divisor float64 `json:"divisor,omitempty"`
}

// Pair is one canonical facility joined to one candidate, either spatially
// (DistanceM set) or by a shared location key (DistanceM nil).
type Pair struct {
	Facility  domain.Facility
	Candidate domain.Candidate
	DistanceM *float64

	// CampusITLoadMW is the canonical campus rollup for the facility's
	// campus, used when the compared field has campus granularity.
	CampusITLoadMW float64
}

// Summary aggregates a comparison population for one (source, field).
// MAPE and bias are nil when no record qualifies. Exclusion tallies ride
// along so the aggregate numbers are never silently lossy.
type Summary struct {
	Source string `json:"source"`
	Field  string `json:"field_used"`

	MAPE                  *float64 `json:"mape,omitempty"`
	MAPEExcludingOutliers *float64 `json:"mape_excluding_outliers,omitempty"`
	BiasPct               *float64 `json:"bias_pct,omitempty"`

	NIncluded          int `json:"n_included"`
	NOutliersExcluded  int `json:"n_outliers_excluded"`
	NZeroDenominator   int `json:"n_excluded_zero_denominator"`
	NMissingField      int `json:"n_missing_field"`
}

// Comparison is the full output of one comparison request: every scored
// record plus the aggregate summary.
type Comparison struct {
	Records []domain.VarianceRecord `json:"records"`
	Summary Summary                 `json:"summary"`
}

// Comparator scores capacity pairs. Outlier facility keys are declared
// externally (a manual policy); listed records stay in the per-record
// output but are excluded from the *_excluding_outliers aggregates.
type Comparator struct {
	thresholds domain.VarianceThresholds
	outliers   map[string]bool
}

// New creates a Comparator with the given score thresholds and declared
// outlier facility keys.
func New(thresholds domain.VarianceThresholds, outlierKeys []string) *Comparator {
	if thresholds == (domain.VarianceThresholds{}) {
		thresholds = domain.DefaultVarianceThresholds()
	}
	outliers := make(map[string]bool, len(outlierKeys))
	for _, k := range outlierKeys {
		outliers[k] = true
	}
	return &Comparator{thresholds: thresholds, outliers: outliers}
}

// Compare scores the requested capacity field for every pair from the
// request's source. Pairs missing the field are skipped and tallied; zero
// canonical values are flagged and excluded from aggregates. A field whose
// definition requires an adjustment divisor that was not declared returns a
// *domain.ConfigurationError before any aggregate is produced.
func (c *Comparator) Compare(pairs []Pair, req FieldRequest) (Comparison, error) {
	cmp := Comparison{Summary: Summary{Source: req.Source, Field: req.Field}}

	for _, p := range pairs {
		if p.Candidate.Source != req.Source {
			continue
		}
		field, ok := p.Candidate.Capacity(req.Field)
		if !ok {
			cmp.Summary.NMissingField++
			continue
		}

		divisor, err := c.resolveDivisor(req, field.Descriptor)
		if err != nil {
			return Comparison{}, err
		}

		canonicalMW := p.Facility.ITLoadMW
		if field.Descriptor.Granularity == domain.GranularityCampus && p.CampusITLoadMW > 0 {
			canonicalMW = p.CampusITLoadMW
		}

		rec := domain.NewVarianceRecord(
			p.Facility.Key, req.Source, p.Candidate.ID, req.Field,
			field.ValueMW, field.ValueMW/divisor, canonicalMW,
			c.thresholds,
		)
		rec.Outlier = c.outliers[p.Facility.Key]
		cmp.Records = append(cmp.Records, rec)
	}

	sort.Slice(cmp.Records, func(i, j int) bool {
		return cmp.Records[i].FacilityKey < cmp.Records[j].FacilityKey
	})

	c.summarize(&cmp)
	return cmp, nil
}

// resolveDivisor validates the field definition against the declared
// divisor. Facility-power values are not comparable to IT load without one.
func (c *Comparator) resolveDivisor(req FieldRequest, d domain.FieldDescriptor) (float64, error) {
	switch d.Definition {
	case domain.DefinitionITLoad:
		if req.Divisor > 0 {
			return req.Divisor, nil
		}
		return 1.0, nil
	case domain.DefinitionFacilityPower:
		if req.Divisor > 0 {
			return req.Divisor, nil
		}
		return 0, &domain.ConfigurationError{
			Source: req.Source,
			Field:  req.Field,
			Reason: "facility_power field requires an adjustment divisor (PUE)",
		}
	default:
		return 0, &domain.ConfigurationError{
			Source: req.Source,
			Field:  req.Field,
			Reason: "unknown capacity definition " + string(d.Definition),
		}
	}
}

// summarize fills the aggregate fields from the scored records. Both the
// all-records and excluding-outliers MAPE come from the same population.
func (c *Comparator) summarize(cmp *Comparison) {
	var (
		sumAbs, sumSigned float64
		sumAbsNoOut       float64
		nIncluded, nNoOut int
	)
	for _, rec := range cmp.Records {
		if rec.ZeroDenominator {
			cmp.Summary.NZeroDenominator++
			continue
		}
		nIncluded++
		sumAbs += rec.AbsPercentError
		sumSigned += rec.PercentError
		if rec.Outlier {
			cmp.Summary.NOutliersExcluded++
			continue
		}
		nNoOut++
		sumAbsNoOut += rec.AbsPercentError
	}

	cmp.Summary.NIncluded = nIncluded
	if nIncluded > 0 {
		mape := sumAbs / float64(nIncluded)
		bias := sumSigned / float64(nIncluded)
		cmp.Summary.MAPE = &mape
		cmp.Summary.BiasPct = &bias
	}
	if nNoOut > 0 {
		mapeNoOut := sumAbsNoOut / float64(nNoOut)
		cmp.Summary.MAPEExcludingOutliers = &mapeNoOut
	}
}
