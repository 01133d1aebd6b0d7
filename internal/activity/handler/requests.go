package handler

import (
	"strings"

	"proptoken/internal/activity/models"
	id "proptoken/pkg/domain"
	dErrors "proptoken/pkg/domain-errors"
)

// Minting stages reported by the tokenization step.
const (
	StageInitiated = "initiated"
	StageConfirmed = "confirmed"
)

// RecordMintingRequest is a token mint milestone pushed by the downstream
// tokenization step.
type RecordMintingRequest struct {
	Stage           string `json:"stage"`
	SubmissionID    string `json:"submission_id"`
	AssetName       string `json:"asset_name"`
	TokenName       string `json:"token_name"`
	TokenAddress    string `json:"token_address"`
	TotalSupply     string `json:"total_supply"`
	TransactionHash string `json:"transaction_hash"`
	ExplorerURL     string `json:"explorer_url"`
	BlockNumber     uint64 `json:"block_number"`
	Status          string `json:"status"`
	Fingerprint     string `json:"asset_fingerprint"`

	submissionID id.SubmissionID
}

func (r *RecordMintingRequest) Validate() error {
	r.Stage = strings.ToLower(strings.TrimSpace(r.Stage))
	if r.Stage != StageInitiated && r.Stage != StageConfirmed {
		return dErrors.New(dErrors.CodeValidation, "stage must be initiated or confirmed")
	}
	r.TokenName = strings.TrimSpace(r.TokenName)
	if r.TokenName == "" {
		return dErrors.New(dErrors.CodeValidation, "token_name is required")
	}
	switch models.Status(r.Status) {
	case "", models.StatusPending, models.StatusConfirmed, models.StatusFailed:
	default:
		return dErrors.New(dErrors.CodeValidation, "status must be PENDING, CONFIRMED or FAILED")
	}
	if r.SubmissionID != "" {
		subID, err := id.ParseSubmissionID(r.SubmissionID)
		if err != nil {
			return err
		}
		r.submissionID = subID
	}
	return nil
}

func (r *RecordMintingRequest) ToDomain() models.Minting {
	return models.Minting{
		SubmissionID:    r.submissionID,
		AssetName:       r.AssetName,
		TokenName:       r.TokenName,
		TokenAddress:    r.TokenAddress,
		TotalSupply:     r.TotalSupply,
		TransactionHash: r.TransactionHash,
		ExplorerURL:     r.ExplorerURL,
		BlockNumber:     r.BlockNumber,
		Status:          models.Status(r.Status),
		Fingerprint:     r.Fingerprint,
	}
}
