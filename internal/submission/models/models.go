package models

import (
	"time"

	"github.com/shopspring/decimal"

	"proptoken/internal/consensus"
	oraclemodels "proptoken/internal/oracle/models"
	id "proptoken/pkg/domain"
)

// Category is the asset class being tokenized.
type Category string

const (
	CategoryRealEstate    Category = "real-estate"
	CategoryPrivateCredit Category = "private-credit"
	CategoryCommodity     Category = "commodity"
	CategoryIPRights      Category = "ip-rights"
)

func (c Category) IsValid() bool {
	switch c {
	case CategoryRealEstate, CategoryPrivateCredit, CategoryCommodity, CategoryIPRights:
		return true
	}
	return false
}

// Location is the declared asset location. Coordinates are optional.
type Location struct {
	Address     string                    `json:"address,omitempty"`
	City        string                    `json:"city,omitempty"`
	State       string                    `json:"state,omitempty"`
	Country     string                    `json:"country,omitempty"`
	PostalCode  string                    `json:"postal_code,omitempty"`
	Coordinates *oraclemodels.Coordinates `json:"coordinates,omitempty"`
}

type Specifications struct {
	Size      float64 `json:"size,omitempty"`
	Type      string  `json:"type,omitempty"`
	Age       int     `json:"age,omitempty"`
	Condition string  `json:"condition,omitempty"`
}

// SPV is the legal entity that will hold the asset.
type SPV struct {
	Name               string `json:"name,omitempty"`
	RegistrationNumber string `json:"registration_number,omitempty"`
	Jurisdiction       string `json:"jurisdiction,omitempty"`
}

// Financials are the submitter's declarations. Yield and occupancy are percentages.
type Financials struct {
	ClaimedValue   decimal.Decimal `json:"claimed_value"`
	TargetRaise    decimal.Decimal `json:"target_raise"`
	CurrentRent    decimal.Decimal `json:"current_rent"`
	AnnualExpenses decimal.Decimal `json:"annual_expenses"`
	ExpectedYield  float64         `json:"expected_yield"`
	OccupancyRate  float64         `json:"occupancy_rate,omitempty"`
}

// Submission is one asset's request to enter the eligibility pipeline.
// Owned by the pipeline; immutable once terminal.
type Submission struct {
	ID             id.SubmissionID `json:"id"`
	SubmitterID    string          `json:"submitter_id"`
	WalletAddress  string          `json:"wallet_address,omitempty"`
	AssetName      string          `json:"asset_name"`
	Category       Category        `json:"category"`
	OwnerName      string          `json:"owner_name,omitempty"`
	OwnerDID       string          `json:"owner_did,omitempty"`
	Location       Location        `json:"location"`
	RegistryIDs    []string        `json:"registry_ids,omitempty"`
	Specifications Specifications  `json:"specifications"`
	SPV            *SPV            `json:"spv,omitempty"`
	Financials     Financials      `json:"financials"`
	Status         Status          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Transition moves the submission to the next status or fails with a
// StageOrderViolation. It never rewinds.
func (s *Submission) Transition(next Status, at time.Time) error {
	if !s.Status.CanTransitionTo(next) {
		return &StageOrderViolation{From: s.Status, To: next}
	}
	s.Status = next
	s.UpdatedAt = at
	return nil
}

// Claim projects the submission onto the oracle's view of it.
func (s *Submission) Claim() oraclemodels.Claim {
	claim := oraclemodels.Claim{
		SubmissionID: s.ID,
		OwnerName:    s.OwnerName,
		OwnerDID:     s.OwnerDID,
		Address:      s.Location.Address,
		City:         s.Location.City,
		RegistryIDs:  append([]string(nil), s.RegistryIDs...),
	}
	if s.Location.Coordinates != nil {
		c := *s.Location.Coordinates
		claim.Coordinates = &c
	}
	return claim
}

// DecimalRange is a money range.
type DecimalRange struct {
	Min  decimal.Decimal `json:"min"`
	Max  decimal.Decimal `json:"max"`
	Mean decimal.Decimal `json:"mean"`
}

// YieldRange is a percentage yield band.
type YieldRange struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Expected float64 `json:"expected"`
}

// EligibleAsset is the durable record written once a submission passes
// consensus. Token economics stay zero until a tokenization step sets them.
type EligibleAsset struct {
	SubmissionID         id.SubmissionID `json:"submission_id"`
	Fingerprint          string          `json:"fingerprint"`
	AssetName            string          `json:"asset_name"`
	Category             Category        `json:"category"`
	Location             Location        `json:"location"`
	SPV                  *SPV            `json:"spv,omitempty"`
	OracleAttestation    string          `json:"oracle_attestation"`
	AnalysisOutputHash   string          `json:"analysis_output_hash"`
	ExistenceScore       float64         `json:"existence_score"`
	OwnershipProbability float64         `json:"ownership_probability"`
	RiskScore            float64         `json:"risk_score"`
	FraudLikelihood      float64         `json:"fraud_likelihood"`
	ConsensusConfidence  float64         `json:"consensus_confidence"`
	ExpectedNAV          DecimalRange    `json:"expected_nav"`
	ExpectedYield        YieldRange      `json:"expected_yield"`
	TotalTokenSupply     int64           `json:"total_token_supply"`
	TokenPrice           decimal.Decimal `json:"token_price"`
	AvailableTokens      int64           `json:"available_tokens"`
	EligibleAt           time.Time       `json:"eligible_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// CreateRequest is the domain input for a new submission.
type CreateRequest struct {
	SubmitterID    string
	WalletAddress  string
	AssetName      string
	Category       Category
	OwnerName      string
	OwnerDID       string
	Location       Location
	RegistryIDs    []string
	Specifications Specifications
	SPV            *SPV
	Financials     Financials
}

// Details is everything known about a submission. Consensus and EligibleAsset
// are nil until written.
type Details struct {
	Submission    *Submission           `json:"submission"`
	Progress      *VerificationProgress `json:"progress"`
	Consensus     *consensus.Score      `json:"consensus,omitempty"`
	EligibleAsset *EligibleAsset        `json:"eligible_asset,omitempty"`
}
