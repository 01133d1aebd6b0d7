package models_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"proptoken/internal/analysis"
	"proptoken/internal/consensus"
	oraclemodels "proptoken/internal/oracle/models"
	"proptoken/internal/submission/models"
	id "proptoken/pkg/domain"
)

type ModelsSuite struct {
	suite.Suite
	now time.Time
}

func TestModelsSuite(t *testing.T) {
	suite.Run(t, new(ModelsSuite))
}

func (s *ModelsSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

var pipeline = []models.Status{
	models.StatusPending,
	models.StatusProcessing,
	models.StatusOracleVerification,
	models.StatusABMAnalysis,
	models.StatusFraudDetection,
	models.StatusConsensusScoring,
	models.StatusEligible,
}

func (s *ModelsSuite) TestTransitions() {
	s.Run("each stage advances only to its successor", func() {
		for i := 0; i < len(pipeline)-1; i++ {
			from := pipeline[i]
			for j, to := range pipeline {
				want := j == i+1
				s.Equal(want, from.CanTransitionTo(to), "%s -> %s", from, to)
			}
		}
	})

	s.Run("any non-terminal stage can reject", func() {
		for _, from := range pipeline[:len(pipeline)-1] {
			s.True(from.CanTransitionTo(models.StatusRejected), from)
		}
	})

	s.Run("terminal stages never change", func() {
		for _, from := range []models.Status{models.StatusEligible, models.StatusRejected} {
			for _, to := range append(pipeline, models.StatusRejected) {
				s.False(from.CanTransitionTo(to), "%s -> %s", from, to)
			}
		}
	})

	s.Run("unknown statuses are refused", func() {
		s.False(models.StatusPending.CanTransitionTo(models.Status("ARCHIVED")))
		s.Equal(-1, models.Status("ARCHIVED").Rank())
	})
}

func (s *ModelsSuite) TestSubmissionTransition() {
	sub := &models.Submission{ID: id.NewSubmissionID(), Status: models.StatusPending, UpdatedAt: s.now}

	s.Run("legal transition updates status and timestamp", func() {
		later := s.now.Add(time.Second)
		s.Require().NoError(sub.Transition(models.StatusProcessing, later))
		s.Equal(models.StatusProcessing, sub.Status)
		s.Equal(later, sub.UpdatedAt)
	})

	s.Run("skipping a stage is a StageOrderViolation", func() {
		err := sub.Transition(models.StatusABMAnalysis, s.now)
		var violation *models.StageOrderViolation
		s.Require().True(errors.As(err, &violation))
		s.Equal(models.StatusProcessing, violation.From)
		s.Equal(models.StatusABMAnalysis, violation.To)
		s.Equal(models.KindStageOrderViolation, violation.Kind())
		s.Equal(models.StatusProcessing, sub.Status)
	})

	s.Run("rejected submissions stay rejected", func() {
		s.Require().NoError(sub.Transition(models.StatusRejected, s.now))
		s.Error(sub.Transition(models.StatusOracleVerification, s.now))
		s.Equal(models.StatusRejected, sub.Status)
	})
}

func (s *ModelsSuite) TestParseStatus() {
	st, err := models.ParseStatus("FRAUD_DETECTION")
	s.Require().NoError(err)
	s.Equal(models.StatusFraudDetection, st)

	_, err = models.ParseStatus("fraud_detection")
	s.Error(err)
}

func (s *ModelsSuite) TestClaimCopiesCoordinates() {
	sub := &models.Submission{
		ID:          id.NewSubmissionID(),
		OwnerName:   "Jane Doe",
		Location:    models.Location{Address: "1 Main St", City: "Pune", Coordinates: &oraclemodels.Coordinates{Lat: 18.5, Lng: 73.8}},
		RegistryIDs: []string{"REG-1"},
	}
	claim := sub.Claim()
	claim.Coordinates.Lat = 0
	claim.RegistryIDs[0] = "changed"

	s.Equal(18.5, sub.Location.Coordinates.Lat)
	s.Equal("REG-1", sub.RegistryIDs[0])
	s.Equal("Pune", claim.City)
	s.Equal(sub.ID, claim.SubmissionID)
}

func (s *ModelsSuite) TestProgress() {
	subID := id.NewSubmissionID()
	p := models.NewProgress(subID, s.now)

	s.Run("starts pending with the submission stage done", func() {
		s.Equal(models.StatusPending, p.CurrentStage)
		s.True(p.Stages.Submission.Completed)
		s.Equal(100, p.Stages.Submission.Progress)
		s.Require().Len(p.Logs, 1)
		s.Equal(models.LevelInfo, p.Logs[0].Level)
	})

	s.Run("log entries carry the current stage", func() {
		p.Enter(models.StatusOracleVerification, s.now)
		p.Log(models.LevelInfo, "probing", s.now)
		last := p.Logs[len(p.Logs)-1]
		s.Equal(models.StatusOracleVerification, last.Stage)
		s.Equal(10, p.Stages.OracleVerification.Progress)
		s.False(p.Stages.OracleVerification.Completed)
	})

	s.Run("oracle completion fills substages except vision", func() {
		out := &oraclemodels.Outcome{
			Existence: oraclemodels.Result{Category: oraclemodels.CategoryExistence, Score: 0.85, Evidences: []oraclemodels.Evidence{
				{Source: oraclemodels.SourceSatellite, Confidence: 0.92},
				{Source: oraclemodels.SourceActivity, Confidence: 0.78},
			}},
			Ownership: oraclemodels.Result{Category: oraclemodels.CategoryOwnership, Score: 0.88, Evidences: []oraclemodels.Evidence{
				{Source: oraclemodels.SourceRegistry, Confidence: 0.88},
			}},
			Activity: oraclemodels.Result{Category: oraclemodels.CategoryActivity, Score: 0.78, Evidences: []oraclemodels.Evidence{
				{Source: oraclemodels.SourceActivity, Confidence: 0.78},
			}},
		}
		p.CompleteOracle(out, s.now)
		st := p.Stages.OracleVerification
		s.True(st.Completed)
		s.Equal(100, st.Progress)
		s.InDelta(0.92, *st.Satellite.Score, 1e-9)
		s.InDelta(0.88, *st.Registry.Score, 1e-9)
		s.InDelta(0.78, *st.Activity.Score, 1e-9)
		s.InDelta(0.88, *st.Ownership.Score, 1e-9)
		s.False(st.Vision.Completed)
	})

	s.Run("fraud completion counts anomalies", func() {
		likelihood := 3.5
		p.CompleteFraud(&analysis.FraudAnalysis{
			FraudLikelihood: &likelihood,
			Anomalies:       []analysis.Anomaly{{Type: "yield_outlier"}, {Type: "owner_mismatch"}},
		}, s.now)
		st := p.Stages.FraudDetection
		s.Equal(2, st.RuleBased.Anomalies)
		s.InDelta(3.5, *st.MLBased.Score, 1e-9)
		s.Equal([]string{"yield_outlier", "owner_mismatch"}, st.Patterns.Flags)
	})

	s.Run("consensus completion records the verdict", func() {
		p.CompleteConsensus(&consensus.Score{Eligible: true, Confidence: 0.9}, s.now)
		st := p.Stages.ConsensusScoring
		s.Require().NotNil(st.Eligible)
		s.True(*st.Eligible)
		s.InDelta(0.9, *st.Confidence, 1e-9)
	})
}

func (s *ModelsSuite) TestFingerprint() {
	sub := &models.Submission{
		ID:        id.NewSubmissionID(),
		AssetName: "Tower A",
		Category:  models.CategoryRealEstate,
		Status:    models.StatusPending,
		CreatedAt: s.now,
	}
	out := &oraclemodels.Outcome{
		Existence: oraclemodels.Result{Category: oraclemodels.CategoryExistence, Evidences: []oraclemodels.Evidence{{Source: oraclemodels.SourceSatellite, Confidence: 0.92}}},
		VerifiedAt: s.now,
	}

	first := models.Fingerprint(sub, out)
	s.Len(first, 64)

	s.Run("ignores identity, status and time", func() {
		other := *sub
		other.ID = id.NewSubmissionID()
		other.Status = models.StatusEligible
		other.CreatedAt = s.now.Add(time.Hour)
		laterOut := *out
		laterOut.VerifiedAt = s.now.Add(time.Hour)
		s.Equal(first, models.Fingerprint(&other, &laterOut))
	})

	s.Run("changes with evidence", func() {
		changed := *out
		changed.Existence.Evidences = []oraclemodels.Evidence{{Source: oraclemodels.SourceSatellite, Confidence: 0.95}}
		s.NotEqual(first, models.Fingerprint(sub, &changed))
	})
}

func (s *ModelsSuite) TestNewEligibleAsset() {
	sub := &models.Submission{
		ID:         id.NewSubmissionID(),
		AssetName:  "Tower A",
		Category:   models.CategoryRealEstate,
		SPV:        &models.SPV{Name: "Tower A SPV"},
		Financials: models.Financials{ExpectedYield: 7.5},
	}
	out := &oraclemodels.Outcome{SubmissionID: sub.ID}
	res := &analysis.Result{Market: analysis.MarketAnalysis{
		ExpectedNAV: analysis.NAVRange{Min: 1000000.004, Max: 1200000, Mean: 1100000.5},
	}}
	score := &consensus.Score{ExistenceScore: 0.95, OwnershipProbability: 0.9, FraudLikelihood: 2, RiskScore: 25, Confidence: 0.94}

	asset := models.NewEligibleAsset(sub, out, res, score, s.now)

	s.Equal(sub.ID, asset.SubmissionID)
	s.True(decimal.RequireFromString("1000000").Equal(asset.ExpectedNAV.Min))
	s.True(decimal.RequireFromString("1100000.5").Equal(asset.ExpectedNAV.Mean))
	s.Equal(models.YieldRange{Min: 7.5, Max: 7.5, Expected: 7.5}, asset.ExpectedYield)
	s.Equal(models.Fingerprint(sub, out), asset.Fingerprint)
	s.NotEmpty(asset.OracleAttestation)
	s.NotEmpty(asset.AnalysisOutputHash)
	s.True(asset.TokenPrice.IsZero())
	s.Zero(asset.TotalTokenSupply)

	sub.SPV.Name = "renamed"
	s.Equal("Tower A SPV", asset.SPV.Name)

	s.Run("market yield band overrides the declared yield", func() {
		res.Market.YieldBand = &analysis.Range{Min: 6, Max: 9}
		asset := models.NewEligibleAsset(sub, out, res, score, s.now)
		s.Equal(models.YieldRange{Min: 6, Max: 9, Expected: 7.5}, asset.ExpectedYield)
	})
}
