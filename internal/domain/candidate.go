package domain

// Granularity says what physical scope a vendor capacity number covers.
type Granularity string

const (
	GranularityBuilding Granularity = "building"
	GranularityCampus   Granularity = "campus"
)

// Definition says what a vendor capacity number measures.
type Definition string

const (
	DefinitionITLoad        Definition = "it_load"
	DefinitionFacilityPower Definition = "facility_power"
)

// HorizonCurrent marks a capacity field reporting present-day capacity.
// Forecast fields carry the forecast year instead, e.g. "2027".
const HorizonCurrent = "current"

// FieldDescriptor tags a vendor capacity field with enough semantics for a
// generic apples-to-apples comparison. Tagging happens at ingestion; the
// comparator only validates compatibility.
type FieldDescriptor struct {
	Granularity Granularity `json:"granularity"`
	Definition  Definition  `json:"definition"`
	Horizon     string      `json:"horizon"`
}

// CapacityField is one tagged capacity value on a candidate record.
type CapacityField struct {
	Name       string          `json:"name"`
	ValueMW    float64         `json:"value_mw"`
	Descriptor FieldDescriptor `json:"descriptor"`
}

// Candidate is a vendor-reported facility record under evaluation.
type Candidate struct {
	ID          string  `json:"id"`
	Source      string  `json:"source"`
	Geo         Geo     `json:"geo"`
	LocationKey string  `json:"location_key,omitempty"`
	Campus      string  `json:"campus_name,omitempty"`

	// Capacities is keyed by field name, e.g. "commissioned_power_mw".
	Capacities map[string]CapacityField `json:"capacities,omitempty"`
}

// Capacity returns the named capacity field, if present.
func (c Candidate) Capacity(name string) (CapacityField, bool) {
	f, ok := c.Capacities[name]
	return f, ok
}
