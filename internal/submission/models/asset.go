package models

import (
	"time"

	"github.com/shopspring/decimal"

	"proptoken/internal/analysis"
	"proptoken/internal/consensus"
	oraclemodels "proptoken/internal/oracle/models"
)

// NewEligibleAsset assembles the asset record for an eligible submission.
// Money values are rounded to cents.
func NewEligibleAsset(sub *Submission, out *oraclemodels.Outcome, res *analysis.Result, score *consensus.Score, at time.Time) *EligibleAsset {
	yield := YieldRange{
		Min:      sub.Financials.ExpectedYield,
		Max:      sub.Financials.ExpectedYield,
		Expected: sub.Financials.ExpectedYield,
	}
	if band := res.Market.YieldBand; band != nil {
		yield.Min = band.Min
		yield.Max = band.Max
	}

	var spv *SPV
	if sub.SPV != nil {
		copied := *sub.SPV
		spv = &copied
	}

	return &EligibleAsset{
		SubmissionID:         sub.ID,
		Fingerprint:          Fingerprint(sub, out),
		AssetName:            sub.AssetName,
		Category:             sub.Category,
		Location:             sub.Location,
		SPV:                  spv,
		OracleAttestation:    Digest(out),
		AnalysisOutputHash:   Digest(res),
		ExistenceScore:       score.ExistenceScore,
		OwnershipProbability: score.OwnershipProbability,
		RiskScore:            score.RiskScore,
		FraudLikelihood:      score.FraudLikelihood,
		ConsensusConfidence:  score.Confidence,
		ExpectedNAV: DecimalRange{
			Min:  money(res.Market.ExpectedNAV.Min),
			Max:  money(res.Market.ExpectedNAV.Max),
			Mean: money(res.Market.ExpectedNAV.Mean),
		},
		ExpectedYield: yield,
		TokenPrice:    decimal.Zero,
		EligibleAt:    at,
		UpdatedAt:     at,
	}
}

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}
