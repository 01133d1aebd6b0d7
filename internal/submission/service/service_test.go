package service_test

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Verifier,Analyzer,ActivityRecorder

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	"proptoken/internal/activity"
	activitymodels "proptoken/internal/activity/models"
	"proptoken/internal/analysis"
	"proptoken/internal/consensus"
	"proptoken/internal/oracle"
	oraclemodels "proptoken/internal/oracle/models"
	oracleactivity "proptoken/internal/oracle/providers/activity"
	"proptoken/internal/oracle/providers/registry"
	"proptoken/internal/oracle/providers/satellite"
	"proptoken/internal/submission/lock"
	"proptoken/internal/submission/models"
	"proptoken/internal/submission/service"
	"proptoken/internal/submission/service/mocks"
	"proptoken/internal/submission/store"
	id "proptoken/pkg/domain"
	dErrors "proptoken/pkg/domain-errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type ServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	verifier *mocks.MockVerifier
	analyzer *mocks.MockAnalyzer
	store    *store.InMemoryStore
	locker   *lock.InMemoryLocker
	recorder *activity.Recorder
	service  *service.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.verifier = mocks.NewMockVerifier(s.ctrl)
	s.analyzer = mocks.NewMockAnalyzer(s.ctrl)
	s.store = store.NewInMemory()
	s.locker = lock.NewInMemory()
	s.recorder = activity.NewRecorder()
	s.service = s.newService(s.verifier)
}

func (s *ServiceSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Require().NoError(s.service.Shutdown(ctx))
}

func (s *ServiceSuite) newService(verifier service.Verifier, opts ...service.Option) *service.Service {
	opts = append([]service.Option{service.WithActivity(s.recorder)}, opts...)
	return service.New(s.store, s.locker, verifier, s.analyzer, opts...)
}

func createRequest() models.CreateRequest {
	return models.CreateRequest{
		SubmitterID: gofakeit.UUID(),
		AssetName:   gofakeit.Company() + " Heights",
		Category:    models.CategoryRealEstate,
		OwnerName:   gofakeit.Name(),
		Location: models.Location{
			Address:     gofakeit.Street(),
			City:        "Gurugram",
			Country:     "IN",
			Coordinates: &oraclemodels.Coordinates{Lat: 28.4949, Lng: 77.0887},
		},
		RegistryIDs: []string{"REG-GGM-12345"},
		Financials: models.Financials{
			ClaimedValue:   decimal.RequireFromString("1000000"),
			CurrentRent:    decimal.RequireFromString("90000"),
			AnnualExpenses: decimal.RequireFromString("12000"),
			ExpectedYield:  7.8,
		},
	}
}

func outcomeFor(claim oraclemodels.Claim, existence, ownership, act float64) *oraclemodels.Outcome {
	return &oraclemodels.Outcome{
		SubmissionID: claim.SubmissionID,
		Existence: oraclemodels.Result{Category: oraclemodels.CategoryExistence, Score: existence, Evidences: []oraclemodels.Evidence{
			{Source: oraclemodels.SourceSatellite, Confidence: existence},
		}},
		Ownership: oraclemodels.Result{Category: oraclemodels.CategoryOwnership, Score: ownership, Evidences: []oraclemodels.Evidence{
			{Source: oraclemodels.SourceRegistry, Confidence: ownership},
		}},
		Activity: oraclemodels.Result{Category: oraclemodels.CategoryActivity, Score: act, Evidences: []oraclemodels.Evidence{
			{Source: oraclemodels.SourceActivity, Confidence: act},
		}},
		VerifiedAt: time.Now(),
	}
}

func analysisResult(fraud, risk float64) *analysis.Result {
	return &analysis.Result{
		Market: analysis.MarketAnalysis{
			ExpectedNAV: analysis.NAVRange{Min: 900000, Max: 1100000, Mean: 1000000},
			TailRisk:    "low",
			MarketDepth: "Sufficient",
		},
		Fraud:     analysis.FraudAnalysis{FraudLikelihood: &fraud, Passed: fraud <= consensus.FraudThreshold},
		RiskScore: risk,
	}
}

func (s *ServiceSuite) await(run *service.Run) (models.Status, error) {
	s.T().Helper()
	s.Require().NotNil(run)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := run.Wait(ctx)
	s.Require().NoError(ctx.Err(), "run did not finish")
	return status, err
}

func (s *ServiceSuite) details(subID id.SubmissionID) *models.Details {
	d, err := s.service.Get(context.Background(), subID)
	s.Require().NoError(err)
	return d
}

func lastLog(p *models.VerificationProgress) models.LogEntry {
	return p.Logs[len(p.Logs)-1]
}

func (s *ServiceSuite) TestEligibleRun() {
	ctx := context.Background()
	s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, claim oraclemodels.Claim) (*oraclemodels.Outcome, error) {
			return outcomeFor(claim, 0.95, 0.9, 0.85), nil
		})
	s.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any()).Return(analysisResult(2, 25), nil)

	sub, run, err := s.service.Create(ctx, createRequest())
	s.Require().NoError(err)
	s.Equal(models.StatusPending, sub.Status)

	status, err := s.await(run)
	s.Require().NoError(err)
	s.Equal(models.StatusEligible, status)

	d := s.details(sub.ID)
	s.Equal(models.StatusEligible, d.Submission.Status)
	s.Require().NotNil(d.Consensus)
	s.True(d.Consensus.Eligible)
	s.Nil(d.Consensus.RejectionReason)
	s.Require().NotNil(d.EligibleAsset)
	s.Equal(sub.ID, d.EligibleAsset.SubmissionID)
	s.NotEmpty(d.EligibleAsset.Fingerprint)

	s.Run("every stage is completed in the projection", func() {
		st := d.Progress.Stages
		s.True(st.OracleVerification.Completed)
		s.True(st.ABMAnalysis.Completed)
		s.True(st.FraudDetection.Completed)
		s.True(st.ConsensusScoring.Completed)
		s.Equal(models.StatusEligible, d.Progress.CurrentStage)
		s.Equal(models.LevelSuccess, lastLog(d.Progress).Level)
	})

	s.Run("log stages never regress", func() {
		rank := -1
		for _, entry := range d.Progress.Logs {
			s.GreaterOrEqual(entry.Stage.Rank(), rank, entry.Message)
			rank = entry.Stage.Rank()
		}
	})

	s.Run("activity feed mirrors submission and verdict", func() {
		summary := s.recorder.Summary()
		s.Equal(1, summary.TotalSubmissions)
		s.Equal(1, summary.VerifiedCount)
		s.Equal(0, summary.FailedCount)
	})

	s.Run("a finished run is no longer active", func() {
		_, active := s.service.Active(sub.ID)
		s.False(active)
	})
}

func (s *ServiceSuite) TestDefaultConfidencesAreRejectedOnExistence() {
	coordinator := oracle.NewCoordinator(satellite.New(), registry.New(), oracleactivity.New())
	svc := s.newService(coordinator)
	defer func() { s.NoError(svc.Shutdown(context.Background())) }()

	s.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req analysis.Request) (*analysis.Result, error) {
			s.InDelta(0.85, req.OracleData.Existence.Score, 1e-9)
			s.InDelta(0.88, req.OracleData.Ownership.Probability, 1e-9)
			return analysisResult(1, 20), nil
		})

	sub, run, err := svc.Create(context.Background(), createRequest())
	s.Require().NoError(err)
	status, err := s.await(run)
	s.Require().NoError(err, "a consensus rejection is a verdict, not a run error")
	s.Equal(models.StatusRejected, status)

	d := s.details(sub.ID)
	s.Require().NotNil(d.Consensus)
	s.False(d.Consensus.Eligible)
	s.Require().NotNil(d.Consensus.RejectionReason)
	s.Contains(*d.Consensus.RejectionReason, consensus.RuleExistence)
	s.Nil(d.EligibleAsset)

	ownership := d.Consensus.Rules[1]
	s.Equal(consensus.RuleOwnership, ownership.Rule)
	s.True(ownership.Passed)

	last := lastLog(d.Progress)
	s.Equal(models.LevelWarning, last.Level)
	s.Contains(last.Message, "Rejected by consensus")
	s.Equal(1, s.recorder.Summary().FailedCount)
}

func (s *ServiceSuite) TestStagesArePersistedBeforeTheNextBegins() {
	var subID id.SubmissionID
	s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, claim oraclemodels.Claim) (*oraclemodels.Outcome, error) {
			stored, err := s.store.FindByID(ctx, claim.SubmissionID)
			s.Require().NoError(err)
			s.Equal(models.StatusOracleVerification, stored.Status)
			subID = claim.SubmissionID
			return outcomeFor(claim, 0.95, 0.9, 0.85), nil
		})
	s.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ analysis.Request) (*analysis.Result, error) {
			progress, err := s.store.FindProgress(ctx, subID)
			s.Require().NoError(err)
			s.Equal(models.StatusABMAnalysis, progress.CurrentStage)
			s.True(progress.Stages.OracleVerification.Completed)
			return analysisResult(2, 25), nil
		})

	_, run, err := s.service.Create(context.Background(), createRequest())
	s.Require().NoError(err)
	_, err = s.await(run)
	s.NoError(err)
}

func (s *ServiceSuite) TestOracleFailureRejectsWithoutAnalysis() {
	providerErr := oracle.NewProviderError(oracle.ProbeRegistry, errors.New("registry unreachable"))
	s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(nil, providerErr)

	sub, run, err := s.service.Create(context.Background(), createRequest())
	s.Require().NoError(err)
	status, err := s.await(run)
	s.Equal(models.StatusRejected, status)
	s.ErrorIs(err, providerErr)

	d := s.details(sub.ID)
	s.Nil(d.Consensus)
	s.False(d.Progress.Stages.OracleVerification.Completed)
	last := lastLog(d.Progress)
	s.Equal(models.LevelError, last.Level)
	s.True(strings.HasPrefix(last.Message, "[EvidenceProviderError] "), last.Message)
	s.Equal(models.StatusRejected, last.Stage)
}

func (s *ServiceSuite) TestGatewayFailureIsNeverTreatedAsClean() {
	s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, claim oraclemodels.Claim) (*oraclemodels.Outcome, error) {
			return outcomeFor(claim, 0.95, 0.9, 0.85), nil
		})
	s.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any()).
		Return(nil, &analysis.GatewayError{Operation: "fraud", StatusCode: 502, Message: "bad gateway"})

	sub, run, err := s.service.Create(context.Background(), createRequest())
	s.Require().NoError(err)
	status, err := s.await(run)
	s.Equal(models.StatusRejected, status)
	s.Error(err)

	d := s.details(sub.ID)
	s.Nil(d.Consensus)
	s.Nil(d.EligibleAsset)
	s.True(d.Progress.Stages.OracleVerification.Completed)
	s.False(d.Progress.Stages.FraudDetection.Completed)
	s.True(strings.HasPrefix(lastLog(d.Progress).Message, "[GatewayError] "))
}

func (s *ServiceSuite) TestVerdictIsNotStoredWhenTheAssetWriteFails() {
	s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, claim oraclemodels.Claim) (*oraclemodels.Outcome, error) {
			// An asset row already present for this submission makes the verdict write conflict.
			s.Require().NoError(s.store.SaveEligibleAsset(ctx, &models.EligibleAsset{
				SubmissionID: claim.SubmissionID,
				Fingerprint:  "stale",
			}))
			return outcomeFor(claim, 0.95, 0.9, 0.85), nil
		})
	s.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any()).Return(analysisResult(2, 25), nil)

	sub, run, err := s.service.Create(context.Background(), createRequest())
	s.Require().NoError(err)
	status, err := s.await(run)
	s.Equal(models.StatusRejected, status)
	s.Error(err)

	d := s.details(sub.ID)
	s.Nil(d.Consensus, "no eligible score may outlive a failed asset write")
	s.False(d.Progress.Stages.ConsensusScoring.Completed)
	s.Equal(models.LevelError, lastLog(d.Progress).Level)
	s.Equal(0, s.recorder.Summary().VerifiedCount)
}

func (s *ServiceSuite) TestCancelDiscardsInFlightResults() {
	entered := make(chan struct{})
	s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, claim oraclemodels.Claim) (*oraclemodels.Outcome, error) {
			close(entered)
			<-ctx.Done()
			return outcomeFor(claim, 0.99, 0.99, 0.99), nil
		})

	sub, run, err := s.service.Create(context.Background(), createRequest())
	s.Require().NoError(err)
	<-entered
	s.Equal(models.StatusOracleVerification, run.Status())

	s.Require().NoError(s.service.Cancel(context.Background(), sub.ID))
	status, err := s.await(run)
	s.Equal(models.StatusRejected, status)
	s.ErrorIs(err, service.ErrRunCancelled)

	d := s.details(sub.ID)
	s.Nil(d.Consensus)
	s.False(d.Progress.Stages.OracleVerification.Completed, "late oracle result must be discarded")
	s.Equal("[RunCancelled] run cancelled", lastLog(d.Progress).Message)

	s.Run("cancelling again finds no active run", func() {
		err := s.service.Cancel(context.Background(), sub.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

// gatedLocker holds Acquire until released.
type gatedLocker struct {
	*lock.InMemoryLocker
	entered chan struct{}
	release chan struct{}
}

func (l *gatedLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	close(l.entered)
	<-l.release
	return l.InMemoryLocker.Acquire(ctx, key, ttl)
}

func (s *ServiceSuite) TestCancelWhileTheRunIsStarting() {
	locker := &gatedLocker{InMemoryLocker: lock.NewInMemory(), entered: make(chan struct{}), release: make(chan struct{})}
	svc := service.New(s.store, locker, s.verifier, s.analyzer)
	defer func() { s.NoError(svc.Shutdown(context.Background())) }()

	type created struct {
		sub *models.Submission
		run *service.Run
		err error
	}
	out := make(chan created, 1)
	go func() {
		sub, run, err := svc.Create(context.Background(), createRequest())
		out <- created{sub, run, err}
	}()

	<-locker.entered
	pending, err := s.store.List(context.Background(), 1)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Require().NoError(svc.Cancel(context.Background(), pending[0].ID), "a starting run is already cancellable")
	close(locker.release)

	c := <-out
	s.Require().NoError(c.err)
	status, err := s.await(c.run)
	s.Equal(models.StatusRejected, status)
	s.ErrorIs(err, service.ErrRunCancelled)
	s.Equal("[RunCancelled] run cancelled", lastLog(s.details(c.sub.ID).Progress).Message)
}

func (s *ServiceSuite) TestRunTimeout() {
	svc := s.newService(s.verifier, service.WithRunTimeout(50*time.Millisecond))
	defer func() { s.NoError(svc.Shutdown(context.Background())) }()

	s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ oraclemodels.Claim) (*oraclemodels.Outcome, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	sub, run, err := svc.Create(context.Background(), createRequest())
	s.Require().NoError(err)
	status, err := s.await(run)
	s.Equal(models.StatusRejected, status)
	s.Equal(service.KindRunTimeout, service.KindOf(err))
	s.True(strings.HasPrefix(lastLog(s.details(sub.ID).Progress).Message, "[RunTimeout] "))
}

func (s *ServiceSuite) TestOneActiveRunPerSubmission() {
	ctx := context.Background()
	release := make(chan struct{})
	s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, claim oraclemodels.Claim) (*oraclemodels.Outcome, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return outcomeFor(claim, 0.95, 0.9, 0.85), nil
		})
	s.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any()).Return(analysisResult(2, 25), nil)

	sub, run, err := s.service.Create(ctx, createRequest())
	s.Require().NoError(err)

	_, err = s.service.Verify(ctx, sub.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "active run")

	close(release)
	_, err = s.await(run)
	s.Require().NoError(err)

	_, err = s.service.Verify(ctx, sub.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "terminal submission")
	s.Contains(err.Error(), "resubmit")
}

func (s *ServiceSuite) TestLockHeldElsewhereBlocksStart() {
	ctx := context.Background()
	sub := &models.Submission{
		ID: id.NewSubmissionID(), SubmitterID: "someone", AssetName: "Locked", Category: models.CategoryCommodity,
		Status: models.StatusPending, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	s.Require().NoError(s.store.Create(ctx, sub, models.NewProgress(sub.ID, sub.CreatedAt)))
	_, err := s.locker.Acquire(ctx, sub.ID.String(), time.Minute)
	s.Require().NoError(err)

	_, err = s.service.Verify(ctx, sub.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	_, active := s.service.Active(sub.ID)
	s.False(active)
}

func (s *ServiceSuite) TestCreateValidation() {
	cases := []struct {
		name   string
		mutate func(*models.CreateRequest)
		code   dErrors.Code
	}{
		{"anonymous submitter", func(r *models.CreateRequest) { r.SubmitterID = "" }, dErrors.CodeUnauthorized},
		{"missing asset name", func(r *models.CreateRequest) { r.AssetName = "  " }, dErrors.CodeValidation},
		{"unknown category", func(r *models.CreateRequest) { r.Category = "art" }, dErrors.CodeValidation},
		{"latitude out of range", func(r *models.CreateRequest) {
			r.Location.Coordinates = &oraclemodels.Coordinates{Lat: 91, Lng: 0}
		}, dErrors.CodeValidation},
		{"negative claimed value", func(r *models.CreateRequest) {
			r.Financials.ClaimedValue = decimal.NewFromInt(-1)
		}, dErrors.CodeValidation},
		{"yield above 100", func(r *models.CreateRequest) { r.Financials.ExpectedYield = 101 }, dErrors.CodeValidation},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			req := createRequest()
			tc.mutate(&req)
			_, run, err := s.service.Create(context.Background(), req)
			s.Nil(run)
			s.True(dErrors.HasCode(err, tc.code), "got %v", err)
		})
	}
	subs, err := s.service.List(context.Background(), 0)
	s.Require().NoError(err)
	s.Empty(subs)
}

func (s *ServiceSuite) TestGetUnknownSubmission() {
	_, err := s.service.Get(context.Background(), id.NewSubmissionID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.EligibleAsset(context.Background(), id.NewSubmissionID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestRecover() {
	ctx := context.Background()
	now := time.Now()
	seed := func(path ...models.Status) *models.Submission {
		sub := &models.Submission{
			ID: id.NewSubmissionID(), SubmitterID: "someone", AssetName: gofakeit.Company(), Category: models.CategoryRealEstate,
			Status: models.StatusPending, CreatedAt: now, UpdatedAt: now,
		}
		progress := models.NewProgress(sub.ID, now)
		s.Require().NoError(s.store.Create(ctx, sub, progress))
		for _, next := range path {
			s.Require().NoError(sub.Transition(next, now))
			progress.Enter(next, now)
		}
		s.Require().NoError(s.store.SaveState(ctx, sub, progress))
		return sub
	}
	pending := seed()
	midway := seed(models.StatusProcessing, models.StatusOracleVerification)
	done := seed(models.StatusRejected)

	s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, claim oraclemodels.Claim) (*oraclemodels.Outcome, error) {
			s.Equal(pending.ID, claim.SubmissionID)
			return outcomeFor(claim, 0.95, 0.9, 0.85), nil
		})
	s.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any()).Return(analysisResult(2, 25), nil)

	started, rejected, err := s.service.Recover(ctx)
	s.Require().NoError(err)
	s.Equal(1, started)
	s.Equal(1, rejected)

	d, err := s.service.Await(ctx, pending.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusEligible, d.Submission.Status)

	interrupted := s.details(midway.ID)
	s.Equal(models.StatusRejected, interrupted.Submission.Status)
	s.True(strings.HasPrefix(lastLog(interrupted.Progress).Message, "[RunInterrupted] "))

	s.Equal(models.StatusRejected, s.details(done.ID).Submission.Status)
}

func (s *ServiceSuite) TestShutdownCancelsActiveRuns() {
	entered := make(chan struct{})
	s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ oraclemodels.Claim) (*oraclemodels.Outcome, error) {
			close(entered)
			<-ctx.Done()
			return nil, ctx.Err()
		})

	sub, run, err := s.service.Create(context.Background(), createRequest())
	s.Require().NoError(err)
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Require().NoError(s.service.Shutdown(ctx))

	select {
	case <-run.Done():
	default:
		s.Fail("shutdown returned before the run finished")
	}
	s.Equal("[RunCancelled] service shutting down", lastLog(s.details(sub.ID).Progress).Message)

	s.Run("no new runs start after shutdown", func() {
		created, run, err := s.service.Create(context.Background(), createRequest())
		s.Nil(run)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.Require().NotNil(created)
		s.Equal(models.StatusPending, created.Status)
	})
}

func (s *ServiceSuite) TestActivityRecorderReceivesMilestones() {
	recorder := mocks.NewMockActivityRecorder(s.ctrl)
	svc := service.New(s.store, s.locker, s.verifier, s.analyzer, service.WithActivity(recorder))
	defer func() { s.NoError(svc.Shutdown(context.Background())) }()

	var mu sync.Mutex
	var verdicts []activitymodels.VerificationLogged
	recorder.EXPECT().LogSubmission(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e activitymodels.SubmissionLogged) activitymodels.Event {
			s.Equal(satellite.ImageryURL(oraclemodels.Coordinates{Lat: 28.4949, Lng: 77.0887}), e.ImageURL)
			return activitymodels.Event{}
		})
	recorder.EXPECT().LogVerification(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, v activitymodels.VerificationLogged) activitymodels.Event {
			mu.Lock()
			verdicts = append(verdicts, v)
			mu.Unlock()
			return activitymodels.Event{}
		})
	s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, claim oraclemodels.Claim) (*oraclemodels.Outcome, error) {
			return outcomeFor(claim, 0.95, 0.9, 0.85), nil
		})
	s.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any()).Return(analysisResult(9, 40), nil)

	_, run, err := svc.Create(context.Background(), createRequest())
	s.Require().NoError(err)
	_, err = s.await(run)
	s.Require().NoError(err)

	mu.Lock()
	defer mu.Unlock()
	s.Require().Len(verdicts, 1)
	s.False(verdicts[0].Passed)
	s.Contains(verdicts[0].Reasoning, consensus.RuleFraud)
	s.InDelta(9, verdicts[0].FraudLikelihood, 1e-9)
}
