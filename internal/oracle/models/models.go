package models

import (
	"time"

	id "proptoken/pkg/domain"
)

// Category is the claim an oracle result speaks to.
type Category string

const (
	CategoryExistence Category = "existence"
	CategoryOwnership Category = "ownership"
	CategoryActivity  Category = "activity"
)

// Evidence source names.
const (
	SourceSatellite = "Satellite Imagery"
	SourceRegistry  = "Property Registry"
	SourceActivity  = "Activity Signals"
)

// Coordinates are WGS84 decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Evidence is one provider observation. Confidence is in [0,1].
type Evidence struct {
	Source        string         `json:"source"`
	RawData       map[string]any `json:"raw_data"`
	DerivedSignal string         `json:"derived_signal"`
	Confidence    float64        `json:"confidence"`
	Explanation   string         `json:"explanation"`
	ImageURL      string         `json:"image_url,omitempty"`
}

// Result is the verdict for one category: the mean confidence of its evidences.
type Result struct {
	Category  Category   `json:"category"`
	Score     float64    `json:"score"`
	Evidences []Evidence `json:"evidences"`
}

// Outcome is the full oracle verification for a submission. Immutable once built.
type Outcome struct {
	SubmissionID id.SubmissionID `json:"submission_id"`
	Existence    Result          `json:"existence"`
	Ownership    Result          `json:"ownership"`
	Activity     Result          `json:"activity"`
	VerifiedAt   time.Time       `json:"verified_at"`
}

// Evidence returns the first evidence from the named source within the outcome.
func (o *Outcome) Evidence(source string) (Evidence, bool) {
	for _, r := range []Result{o.Existence, o.Ownership, o.Activity} {
		for _, ev := range r.Evidences {
			if ev.Source == source {
				return ev, true
			}
		}
	}
	return Evidence{}, false
}

// Claim is what a submission asserts about the asset, as seen by the oracle.
// Zero values mean "not declared"; Normalize fills them from the fallback table.
type Claim struct {
	SubmissionID id.SubmissionID
	OwnerName    string
	OwnerDID     string
	Address      string
	City         string
	Coordinates  *Coordinates
	RegistryIDs  []string
}

// Normalized is a claim with every probe input resolved.
type Normalized struct {
	Coordinates     Coordinates
	City            string
	RegistryID      string
	OwnerName       string
	ActivityAddress string
	// Defaulted lists the fields that were filled from the fallback table.
	Defaulted []string
}

// RegistryQuery is the registry probe input.
type RegistryQuery struct {
	RegistryID string
	OwnerName  string
	City       string
}

// ActivityQuery is the activity probe input.
type ActivityQuery struct {
	Address string
	City    string
}

// LegacyOracleData is the flattened shape the scoring engine reads as oracle_data.
type LegacyOracleData struct {
	Existence LegacyScore       `json:"existence"`
	Ownership LegacyProbability `json:"ownership"`
	Activity  LegacyScore       `json:"activity"`
}

type LegacyScore struct {
	Score float64 `json:"score"`
}

type LegacyProbability struct {
	Probability float64 `json:"probability"`
}

// Legacy projects the outcome onto the flattened legacy view.
func (o *Outcome) Legacy() LegacyOracleData {
	return LegacyOracleData{
		Existence: LegacyScore{Score: o.Existence.Score},
		Ownership: LegacyProbability{Probability: o.Ownership.Score},
		Activity:  LegacyScore{Score: o.Activity.Score},
	}
}
