package handler

import (
	"strings"

	"github.com/shopspring/decimal"

	oraclemodels "proptoken/internal/oracle/models"
	"proptoken/internal/submission/models"
	dErrors "proptoken/pkg/domain-errors"
	"proptoken/pkg/platform/textutil"
)

const (
	maxNameLength     = 200
	maxRegistryIDs    = 20
	maxRegistryIDSize = 64
)

// CreateSubmissionRequest is the HTTP request body for POST /submissions.
type CreateSubmissionRequest struct {
	AssetName      string                `json:"asset_name"`
	Category       string                `json:"category"`
	WalletAddress  string                `json:"wallet_address"`
	OwnerName      string                `json:"owner_name"`
	OwnerDID       string                `json:"owner_did"`
	Location       LocationRequest       `json:"location"`
	RegistryIDs    []string              `json:"registry_ids"`
	Specifications models.Specifications `json:"specifications"`
	SPV            *models.SPV           `json:"spv"`
	Financials     FinancialsRequest     `json:"financials"`

	// Parsed values (populated by Validate)
	parsedCategory models.Category
}

type LocationRequest struct {
	Address    string   `json:"address"`
	City       string   `json:"city"`
	State      string   `json:"state"`
	Country    string   `json:"country"`
	PostalCode string   `json:"postal_code"`
	Lat        *float64 `json:"lat"`
	Lng        *float64 `json:"lng"`
}

type FinancialsRequest struct {
	ClaimedValue   decimal.Decimal `json:"claimed_value"`
	TargetRaise    decimal.Decimal `json:"target_raise"`
	CurrentRent    decimal.Decimal `json:"current_rent"`
	AnnualExpenses decimal.Decimal `json:"annual_expenses"`
	ExpectedYield  float64         `json:"expected_yield"`
	OccupancyRate  float64         `json:"occupancy_rate"`
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateSubmissionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	// Size validation (fail fast)
	if len(r.AssetName) > maxNameLength || len(r.OwnerName) > maxNameLength {
		return dErrors.New(dErrors.CodeValidation, "names must be at most 200 characters")
	}
	if len(r.RegistryIDs) > maxRegistryIDs {
		return dErrors.New(dErrors.CodeValidation, "at most 20 registry_ids are allowed")
	}

	r.AssetName = strings.TrimSpace(r.AssetName)
	if r.AssetName == "" {
		return dErrors.New(dErrors.CodeValidation, "asset_name is required")
	}

	r.Category = strings.TrimSpace(r.Category)
	category := models.Category(r.Category)
	if !category.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "category must be one of real-estate, private-credit, commodity, ip-rights")
	}
	r.parsedCategory = category

	if (r.Location.Lat == nil) != (r.Location.Lng == nil) {
		return dErrors.New(dErrors.CodeValidation, "location.lat and location.lng must be given together")
	}

	r.RegistryIDs = textutil.DedupeAndTrim(r.RegistryIDs)
	for _, registryID := range r.RegistryIDs {
		if len(registryID) > maxRegistryIDSize {
			return dErrors.New(dErrors.CodeValidation, "registry_ids entries must be at most 64 characters")
		}
	}
	return nil
}

// ToDomain builds the service input for the authenticated submitter.
func (r *CreateSubmissionRequest) ToDomain(submitterID string) models.CreateRequest {
	loc := models.Location{
		Address:    strings.TrimSpace(r.Location.Address),
		City:       strings.TrimSpace(r.Location.City),
		State:      strings.TrimSpace(r.Location.State),
		Country:    strings.TrimSpace(r.Location.Country),
		PostalCode: strings.TrimSpace(r.Location.PostalCode),
	}
	if r.Location.Lat != nil && r.Location.Lng != nil {
		loc.Coordinates = &oraclemodels.Coordinates{Lat: *r.Location.Lat, Lng: *r.Location.Lng}
	}
	return models.CreateRequest{
		SubmitterID:    submitterID,
		WalletAddress:  strings.TrimSpace(r.WalletAddress),
		AssetName:      r.AssetName,
		Category:       r.parsedCategory,
		OwnerName:      r.OwnerName,
		OwnerDID:       r.OwnerDID,
		Location:       loc,
		RegistryIDs:    r.RegistryIDs,
		Specifications: r.Specifications,
		SPV:            r.SPV,
		Financials: models.Financials{
			ClaimedValue:   r.Financials.ClaimedValue,
			TargetRaise:    r.Financials.TargetRaise,
			CurrentRent:    r.Financials.CurrentRent,
			AnnualExpenses: r.Financials.AnnualExpenses,
			ExpectedYield:  r.Financials.ExpectedYield,
			OccupancyRate:  r.Financials.OccupancyRate,
		},
	}
}

// CreateSubmissionResponse is returned with 202 Accepted.
type CreateSubmissionResponse struct {
	SubmissionID string        `json:"submission_id"`
	Status       models.Status `json:"status"`
	CreatedAt    string        `json:"created_at"`
}

// RunResponse acknowledges a started or cancelled run.
type RunResponse struct {
	SubmissionID string        `json:"submission_id"`
	Status       models.Status `json:"status"`
}
