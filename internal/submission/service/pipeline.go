package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	activitymodels "proptoken/internal/activity/models"
	"proptoken/internal/analysis"
	"proptoken/internal/consensus"
	oraclemodels "proptoken/internal/oracle/models"
	"proptoken/internal/submission/models"
	"proptoken/pkg/platform/sentinel"
)

var tracer = otel.Tracer("proptoken/submission")

// pipeline is the state of one run. Stages execute strictly in order and each
// stage's mutation is persisted before the next stage begins.
type pipeline struct {
	svc      *Service
	sub      *models.Submission
	progress *models.VerificationProgress
	run      *Run

	outcome *oraclemodels.Outcome
	result  *analysis.Result
	score   *consensus.Score
}

// execute drives the submission to a terminal stage. Any error is fatal to the
// run and rejects the submission; a consensus rejection is not an error.
func (p *pipeline) execute(ctx context.Context) (models.Status, error) {
	ctx, span := tracer.Start(ctx, "submission.Run")
	span.SetAttributes(attribute.String("submission_id", p.sub.ID.String()))
	defer span.End()

	err := p.stages(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindOf(err))
		return p.fail(ctx, err), err
	}
	span.SetAttributes(attribute.String("status", string(p.sub.Status)))
	return p.sub.Status, nil
}

func (p *pipeline) stages(ctx context.Context) error {
	if err := p.advance(ctx, models.StatusProcessing, "Verification run started"); err != nil {
		return err
	}
	for _, stage := range []struct {
		status models.Status
		fn     func(context.Context) error
	}{
		{models.StatusOracleVerification, p.verifyOracle},
		{models.StatusABMAnalysis, p.analyze},
		{models.StatusFraudDetection, p.detectFraud},
		{models.StatusConsensusScoring, p.scoreConsensus},
	} {
		if err := interrupted(ctx); err != nil {
			return err
		}
		start := time.Now()
		stageCtx, span := tracer.Start(ctx, "submission.stage."+string(stage.status))
		err := stage.fn(stageCtx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, KindOf(err))
		}
		span.End()
		p.svc.metrics.ObserveStage(string(stage.status), time.Since(start))
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *pipeline) verifyOracle(ctx context.Context) error {
	if err := p.advance(ctx, models.StatusOracleVerification, "Gathering satellite, registry and activity evidence"); err != nil {
		return err
	}
	outcome, err := p.svc.verifier.Verify(ctx, p.sub.Claim())
	if cause := interrupted(ctx); cause != nil {
		return cause
	}
	if err != nil {
		return err
	}
	p.outcome = outcome

	now := p.svc.now()
	p.progress.CompleteOracle(outcome, now)
	p.progress.Log(models.LevelSuccess, fmt.Sprintf(
		"Oracle verification complete: existence %.4f, ownership %.4f, activity %.4f",
		outcome.Existence.Score, outcome.Ownership.Score, outcome.Activity.Score), now)
	return p.persist(ctx)
}

// analyze issues the market and fraud calls together; both results are joined
// before either stage is recorded.
func (p *pipeline) analyze(ctx context.Context) error {
	if err := p.advance(ctx, models.StatusABMAnalysis, "Requesting market and fraud analysis"); err != nil {
		return err
	}
	result, err := p.svc.analyzer.Analyze(ctx, analysisRequest(p.sub, p.outcome))
	if cause := interrupted(ctx); cause != nil {
		return cause
	}
	if err != nil {
		return err
	}
	p.result = result

	now := p.svc.now()
	p.progress.CompleteABM(result, now)
	p.progress.Log(models.LevelSuccess, fmt.Sprintf(
		"Market analysis complete: expected NAV %.2f, tail risk %s, risk score %.1f",
		result.Market.ExpectedNAV.Mean, result.Market.TailRisk, result.RiskScore), now)
	return p.persist(ctx)
}

func (p *pipeline) detectFraud(ctx context.Context) error {
	if err := p.advance(ctx, models.StatusFraudDetection, "Evaluating fraud signals"); err != nil {
		return err
	}
	now := p.svc.now()
	fraud := &p.result.Fraud
	p.progress.CompleteFraud(fraud, now)

	level := models.LevelSuccess
	if fraud.Likelihood() > consensus.FraudThreshold {
		level = models.LevelWarning
	}
	p.progress.Log(level, fmt.Sprintf("Fraud analysis complete: likelihood %.2f, %d anomalies",
		fraud.Likelihood(), len(fraud.Anomalies)), now)
	return p.persist(ctx)
}

func (p *pipeline) scoreConsensus(ctx context.Context) error {
	if err := p.advance(ctx, models.StatusConsensusScoring, "Applying consensus rules"); err != nil {
		return err
	}
	now := p.svc.now()
	score, err := consensus.CalculateScore(p.outcome, p.result, now)
	if err != nil {
		return err
	}
	if cause := interrupted(ctx); cause != nil {
		return cause
	}

	pctx, cancel := p.persistContext(ctx)
	defer cancel()
	var asset *models.EligibleAsset
	if score.Eligible {
		asset = models.NewEligibleAsset(p.sub, p.outcome, p.result, score, now)
		if prior, err := p.svc.store.FindEligibleByFingerprint(pctx, asset.Fingerprint); err == nil && prior.SubmissionID != p.sub.ID {
			p.svc.metrics.IncrementDuplicateFingerprint()
			p.progress.Log(models.LevelWarning, fmt.Sprintf(
				"Fingerprint matches eligible asset from submission %s", prior.SubmissionID), now)
		}
	}
	if err := p.svc.store.SaveVerdict(pctx, score, asset); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return fmt.Errorf("consensus verdict already recorded: %w", err)
		}
		return fmt.Errorf("save consensus verdict: %w", err)
	}
	p.score = score
	p.progress.CompleteConsensus(score, now)

	if !score.Eligible {
		if rule, ok := score.FailedRule(); ok {
			p.svc.metrics.IncrementRejection(rule.Rule)
		}
		reason := ""
		if score.RejectionReason != nil {
			reason = *score.RejectionReason
		}
		if err := p.transition(models.StatusRejected, now); err != nil {
			return err
		}
		p.progress.Log(models.LevelWarning, "Rejected by consensus: "+reason, now)
		if err := p.persist(ctx); err != nil {
			return err
		}
		p.logVerification(ctx, false, reason, "")
		return nil
	}

	if err := p.transition(models.StatusEligible, now); err != nil {
		return err
	}
	reason := fmt.Sprintf("Eligible: all consensus rules passed, confidence %.4f", score.Confidence)
	p.progress.Log(models.LevelSuccess, reason, now)
	if err := p.persist(ctx); err != nil {
		return err
	}
	p.logVerification(ctx, true, reason, asset.Fingerprint)
	return nil
}

// advance moves to the next stage and records the move before any work
// belonging to that stage starts.
func (p *pipeline) advance(ctx context.Context, next models.Status, msg string) error {
	now := p.svc.now()
	if err := p.transition(next, now); err != nil {
		return err
	}
	p.progress.Log(models.LevelInfo, msg, now)
	return p.persist(ctx)
}

func (p *pipeline) transition(next models.Status, at time.Time) error {
	if err := p.sub.Transition(next, at); err != nil {
		return err
	}
	p.progress.Enter(next, at)
	if p.run != nil {
		p.run.observe(next)
	}
	return nil
}

// fail rejects the submission with an error-level log naming the cause. It
// persists even when the run's context is already cancelled.
func (p *pipeline) fail(ctx context.Context, cause error) models.Status {
	log := p.svc.logger
	if p.sub.Status.IsTerminal() {
		log.ErrorContext(ctx, "verification run failed after reaching a verdict",
			"submission_id", p.sub.ID,
			"status", p.sub.Status,
			"error", cause,
		)
		return p.sub.Status
	}

	now := p.svc.now()
	line := logLine(cause)
	_ = p.transition(models.StatusRejected, now)
	p.progress.Log(models.LevelError, line, now)
	if err := p.persist(ctx); err != nil {
		log.ErrorContext(ctx, "failed to record rejected submission",
			"submission_id", p.sub.ID,
			"error", err,
		)
	}
	log.WarnContext(ctx, "verification run rejected submission",
		"submission_id", p.sub.ID,
		"kind", KindOf(cause),
		"error", cause,
	)
	p.logVerification(ctx, false, line, "")
	return models.StatusRejected
}

// persist writes the submission and progress on a context that survives run
// cancellation, so a completed stage is never lost to a late cancel.
func (p *pipeline) persist(ctx context.Context) error {
	pctx, cancel := p.persistContext(ctx)
	defer cancel()
	if err := p.svc.store.SaveState(pctx, p.sub, p.progress); err != nil {
		return fmt.Errorf("persist %s: %w", p.sub.Status, err)
	}
	return nil
}

func (p *pipeline) persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), p.svc.persistTimeout)
}

func (p *pipeline) logVerification(ctx context.Context, passed bool, reasoning, fingerprint string) {
	if p.svc.activity == nil {
		return
	}
	entry := activitymodels.VerificationLogged{
		SubmissionID: p.sub.ID,
		AssetName:    p.sub.AssetName,
		Passed:       passed,
		Reasoning:    reasoning,
		Fingerprint:  fingerprint,
	}
	if p.score != nil {
		entry.ExistenceScore = p.score.ExistenceScore
		entry.OwnershipProbability = p.score.OwnershipProbability
		entry.FraudLikelihood = p.score.FraudLikelihood
		entry.Confidence = p.score.Confidence
	}
	p.svc.activity.LogVerification(ctx, entry)
}

// analysisRequest builds the scoring engine body from the submission and the
// legacy view of its oracle outcome.
func analysisRequest(sub *models.Submission, out *oraclemodels.Outcome) analysis.Request {
	owner := sub.OwnerName
	if owner == "" {
		owner = sub.OwnerDID
	}
	req := analysis.Request{
		AssetData: analysis.AssetData{
			Name:           sub.AssetName,
			Category:       string(sub.Category),
			Owner:          owner,
			RegistryIDs:    sub.RegistryIDs,
			Specifications: analysis.Specifications{Size: sub.Specifications.Size},
		},
		Location: analysis.Location{
			Address: sub.Location.Address,
			City:    sub.Location.City,
			State:   sub.Location.State,
			Country: sub.Location.Country,
		},
		Financials: analysis.Financials{
			DeclaredValue:  sub.Financials.ClaimedValue.InexactFloat64(),
			ExpectedYield:  sub.Financials.ExpectedYield,
			CashFlow:       sub.Financials.CurrentRent.Sub(sub.Financials.AnnualExpenses).InexactFloat64(),
			AnnualExpenses: sub.Financials.AnnualExpenses.InexactFloat64(),
		},
		OracleData: out.Legacy(),
	}
	if c := sub.Location.Coordinates; c != nil {
		lat, lng := c.Lat, c.Lng
		req.Location.Lat, req.Location.Lng = &lat, &lng
	}
	return req
}
