// Package service drives submissions through the verification pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	activitymodels "proptoken/internal/activity/models"
	"proptoken/internal/analysis"
	"proptoken/internal/consensus"
	oraclemodels "proptoken/internal/oracle/models"
	"proptoken/internal/oracle/providers/satellite"
	"proptoken/internal/submission/metrics"
	"proptoken/internal/submission/models"
	id "proptoken/pkg/domain"
	dErrors "proptoken/pkg/domain-errors"
	"proptoken/pkg/platform/sentinel"
	"proptoken/pkg/requestcontext"
)

const (
	defaultRunTimeout     = 2 * time.Minute
	defaultLockTTL        = 5 * time.Minute
	defaultPersistTimeout = 5 * time.Second
	defaultListLimit      = 50
	maxListLimit          = 500
)

// Store persists submissions and everything the pipeline derives from them.
type Store interface {
	Create(ctx context.Context, sub *models.Submission, progress *models.VerificationProgress) error
	SaveState(ctx context.Context, sub *models.Submission, progress *models.VerificationProgress) error
	FindByID(ctx context.Context, subID id.SubmissionID) (*models.Submission, error)
	FindProgress(ctx context.Context, subID id.SubmissionID) (*models.VerificationProgress, error)
	List(ctx context.Context, limit int) ([]*models.Submission, error)
	ListActive(ctx context.Context) ([]*models.Submission, error)
	// SaveVerdict stores the score and, when eligible, the asset atomically.
	SaveVerdict(ctx context.Context, score *consensus.Score, asset *models.EligibleAsset) error
	FindConsensus(ctx context.Context, subID id.SubmissionID) (*consensus.Score, error)
	FindEligibleAsset(ctx context.Context, subID id.SubmissionID) (*models.EligibleAsset, error)
	FindEligibleByFingerprint(ctx context.Context, fingerprint string) (*models.EligibleAsset, error)
}

// Locker grants the single active run per submission.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	Release(ctx context.Context, key, token string) error
}

// Verifier produces the oracle outcome for a claim.
type Verifier interface {
	Verify(ctx context.Context, claim oraclemodels.Claim) (*oraclemodels.Outcome, error)
}

// Analyzer calls the external market and fraud scoring engine.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*analysis.Result, error)
}

// ActivityRecorder mirrors pipeline milestones onto the activity feed.
type ActivityRecorder interface {
	LogSubmission(ctx context.Context, s activitymodels.SubmissionLogged) activitymodels.Event
	LogVerification(ctx context.Context, v activitymodels.VerificationLogged) activitymodels.Event
}

// Service owns submission lifecycles and their verification runs.
type Service struct {
	store    Store
	locker   Locker
	verifier Verifier
	analyzer Analyzer
	activity ActivityRecorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	runTimeout     time.Duration
	lockTTL        time.Duration
	persistTimeout time.Duration

	mu     sync.Mutex
	runs   map[id.SubmissionID]*Run
	closed bool
	wg     sync.WaitGroup
}

// Option configures the submission service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithActivity(a ActivityRecorder) Option {
	return func(s *Service) {
		s.activity = a
	}
}

// WithClock sets the time source for pipeline timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRunTimeout bounds a whole run, all stages included.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.runTimeout = d
		}
	}
}

// WithLockTTL sets how long a run lock survives a crashed holder.
func WithLockTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.lockTTL = d
		}
	}
}

func New(store Store, locker Locker, verifier Verifier, analyzer Analyzer, opts ...Option) *Service {
	s := &Service{
		store:          store,
		locker:         locker,
		verifier:       verifier,
		analyzer:       analyzer,
		now:            time.Now,
		runTimeout:     defaultRunTimeout,
		lockTTL:        defaultLockTTL,
		persistTimeout: defaultPersistTimeout,
		runs:           make(map[id.SubmissionID]*Run),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Create validates and persists a PENDING submission, then starts its run.
// The submission is returned as accepted; the run continues in the background.
func (s *Service) Create(ctx context.Context, req models.CreateRequest) (*models.Submission, *Run, error) {
	if err := validateCreate(req); err != nil {
		return nil, nil, err
	}

	now := s.now()
	sub := &models.Submission{
		ID:             id.NewSubmissionID(),
		SubmitterID:    req.SubmitterID,
		WalletAddress:  req.WalletAddress,
		AssetName:      strings.TrimSpace(req.AssetName),
		Category:       req.Category,
		OwnerName:      strings.TrimSpace(req.OwnerName),
		OwnerDID:       strings.TrimSpace(req.OwnerDID),
		Location:       req.Location,
		RegistryIDs:    req.RegistryIDs,
		Specifications: req.Specifications,
		SPV:            req.SPV,
		Financials:     req.Financials,
		Status:         models.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	progress := models.NewProgress(sub.ID, now)

	if err := s.store.Create(ctx, sub, progress); err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save submission")
	}
	s.metrics.IncrementSubmissions()
	s.logger.InfoContext(ctx, "submission accepted",
		"submission_id", sub.ID,
		"submitter_id", sub.SubmitterID,
		"asset_name", sub.AssetName,
		"category", sub.Category,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.logSubmission(ctx, sub)

	run, err := s.start(ctx, sub, progress)
	if err != nil {
		return sub, nil, err
	}
	return sub, run, nil
}

// Verify starts a run for a PENDING submission that has none. Terminal
// submissions are never re-verified; resubmit instead.
func (s *Service) Verify(ctx context.Context, subID id.SubmissionID) (*Run, error) {
	sub, err := s.findSubmission(ctx, subID)
	if err != nil {
		return nil, err
	}
	if sub.Status.IsTerminal() {
		return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("submission is already %s; resubmit to verify again", sub.Status))
	}
	if sub.Status != models.StatusPending {
		return nil, dErrors.New(dErrors.CodeConflict, "verification run already active")
	}
	progress, err := s.store.FindProgress(ctx, subID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load progress")
	}
	return s.start(ctx, sub, progress)
}

// Get returns the submission with its progress and any verdict records.
func (s *Service) Get(ctx context.Context, subID id.SubmissionID) (*models.Details, error) {
	sub, err := s.findSubmission(ctx, subID)
	if err != nil {
		return nil, err
	}
	progress, err := s.store.FindProgress(ctx, subID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load progress")
	}
	details := &models.Details{Submission: sub, Progress: progress}

	score, err := s.store.FindConsensus(ctx, subID)
	switch {
	case err == nil:
		details.Consensus = score
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load consensus score")
	}

	asset, err := s.store.FindEligibleAsset(ctx, subID)
	switch {
	case err == nil:
		details.EligibleAsset = asset
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load eligible asset")
	}
	return details, nil
}

// List returns submissions newest first.
func (s *Service) List(ctx context.Context, limit int) ([]*models.Submission, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	subs, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list submissions")
	}
	return subs, nil
}

// EligibleAsset returns the asset record for an eligible submission.
func (s *Service) EligibleAsset(ctx context.Context, subID id.SubmissionID) (*models.EligibleAsset, error) {
	asset, err := s.store.FindEligibleAsset(ctx, subID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "eligible asset not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load eligible asset")
	}
	return asset, nil
}

// Cancel aborts the submission's active run. Results still in flight are
// discarded and the run ends REJECTED.
func (s *Service) Cancel(ctx context.Context, subID id.SubmissionID) error {
	s.mu.Lock()
	var cancel context.CancelCauseFunc
	if run, ok := s.runs[subID]; ok {
		cancel = run.cancel
	}
	s.mu.Unlock()
	if cancel == nil {
		return dErrors.New(dErrors.CodeConflict, "no active verification run")
	}
	cancel(ErrRunCancelled)
	s.logger.InfoContext(ctx, "verification run cancelled",
		"submission_id", subID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// Await blocks until the submission has no active run in this process, then
// returns its details.
func (s *Service) Await(ctx context.Context, subID id.SubmissionID) (*models.Details, error) {
	s.mu.Lock()
	run, ok := s.runs[subID]
	s.mu.Unlock()
	if ok {
		if _, err := run.Wait(ctx); err != nil && ctx.Err() != nil {
			return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeUnavailable, "gave up waiting for verification run")
		}
	}
	return s.Get(ctx, subID)
}

// Active reports whether the submission has a run executing in this process.
func (s *Service) Active(subID id.SubmissionID) (*Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[subID]
	return run, ok
}

// Recover handles submissions left mid-pipeline by a previous process. PENDING
// ones are started; any other non-terminal one is rejected, since its
// in-flight results were lost. Submissions locked by another process are skipped.
func (s *Service) Recover(ctx context.Context) (started, rejected int, err error) {
	subs, err := s.store.ListActive(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list active submissions: %w", err)
	}
	for _, sub := range subs {
		if _, ok := s.Active(sub.ID); ok {
			continue
		}
		progress, err := s.store.FindProgress(ctx, sub.ID)
		if err != nil {
			return started, rejected, fmt.Errorf("load progress for %s: %w", sub.ID, err)
		}
		if sub.Status == models.StatusPending {
			if _, err := s.start(ctx, sub, progress); err != nil {
				if dErrors.HasCode(err, dErrors.CodeConflict) {
					continue
				}
				return started, rejected, err
			}
			started++
			continue
		}

		token, err := s.locker.Acquire(ctx, sub.ID.String(), s.lockTTL)
		if errors.Is(err, sentinel.ErrLockHeld) {
			continue
		}
		if err != nil {
			return started, rejected, fmt.Errorf("lock %s: %w", sub.ID, err)
		}
		p := &pipeline{svc: s, sub: sub, progress: progress}
		p.fail(ctx, ErrRunInterrupted)
		s.release(ctx, sub.ID, token)
		rejected++
	}
	if started > 0 || rejected > 0 {
		s.logger.InfoContext(ctx, "recovered interrupted submissions", "started", started, "rejected", rejected)
	}
	return started, rejected, nil
}

// Shutdown cancels every active run and waits for them to record their end.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for _, run := range s.runs {
		if run.cancel != nil {
			run.cancel(ErrShuttingDown)
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for verification runs: %w", ctx.Err())
	}
}

// start reserves the submission in the run registry, takes the run lock and
// launches the pipeline detached from the caller's cancellation.
func (s *Service) start(ctx context.Context, sub *models.Submission, progress *models.VerificationProgress) (*Run, error) {
	base := requestcontext.Detach(ctx)
	runCtx, cancel := context.WithCancelCause(base)
	runCtx, stop := context.WithTimeoutCause(runCtx, s.runTimeout, ErrRunTimeout)
	run := newRun(sub.ID, sub.Status)
	// Cancellable from the moment it is reserved; a cancel while the lock is
	// being taken ends the run before its first stage.
	run.cancel = cancel

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		stop()
		cancel(nil)
		return nil, dErrors.New(dErrors.CodeUnavailable, "service is shutting down")
	}
	if _, ok := s.runs[sub.ID]; ok {
		s.mu.Unlock()
		stop()
		cancel(nil)
		return nil, dErrors.New(dErrors.CodeConflict, "verification run already active")
	}
	s.runs[sub.ID] = run
	s.mu.Unlock()

	token, err := s.locker.Acquire(ctx, sub.ID.String(), s.lockTTL)
	if err != nil {
		s.forget(sub.ID)
		stop()
		cancel(nil)
		if errors.Is(err, sentinel.ErrLockHeld) {
			return nil, dErrors.New(dErrors.CodeConflict, "verification run already active")
		}
		s.logger.ErrorContext(ctx, "failed to acquire run lock", "submission_id", sub.ID, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "submission saved but verification could not start")
	}

	s.mu.Lock()
	s.wg.Add(1)
	s.mu.Unlock()
	s.metrics.RunStarted()

	// The run advances its own copy; the caller keeps the PENDING snapshot.
	owned := *sub
	go func() {
		defer s.wg.Done()
		defer stop()
		defer cancel(nil)

		p := &pipeline{svc: s, sub: &owned, progress: progress, run: run}
		status, runErr := p.execute(runCtx)

		s.release(base, sub.ID, token)
		s.forget(sub.ID)
		s.metrics.RunFinished(outcomeLabel(status, runErr))
		run.finish(status, runErr)
	}()
	return run, nil
}

func (s *Service) forget(subID id.SubmissionID) {
	s.mu.Lock()
	delete(s.runs, subID)
	s.mu.Unlock()
}

func (s *Service) release(ctx context.Context, subID id.SubmissionID, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()
	if err := s.locker.Release(ctx, subID.String(), token); err != nil {
		s.logger.WarnContext(ctx, "failed to release run lock", "submission_id", subID, "error", err)
	}
}

func (s *Service) findSubmission(ctx context.Context, subID id.SubmissionID) (*models.Submission, error) {
	sub, err := s.store.FindByID(ctx, subID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "submission not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load submission")
	}
	return sub, nil
}

func (s *Service) logSubmission(ctx context.Context, sub *models.Submission) {
	if s.activity == nil {
		return
	}
	entry := activitymodels.SubmissionLogged{
		SubmissionID: sub.ID,
		AssetName:    sub.AssetName,
		Address:      sub.Location.Address,
	}
	if c := sub.Location.Coordinates; c != nil {
		entry.Lat, entry.Lng = c.Lat, c.Lng
		entry.ImageURL = satellite.ImageryURL(*c)
	}
	s.activity.LogSubmission(ctx, entry)
}

func outcomeLabel(status models.Status, err error) string {
	switch {
	case err == nil && status == models.StatusEligible:
		return "eligible"
	case err == nil:
		return "rejected"
	case KindOf(err) == KindRunCancelled:
		return "cancelled"
	}
	return "failed"
}

func validateCreate(req models.CreateRequest) error {
	if strings.TrimSpace(req.SubmitterID) == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "submitter identity is required")
	}
	if strings.TrimSpace(req.AssetName) == "" {
		return dErrors.New(dErrors.CodeValidation, "asset_name is required")
	}
	if !req.Category.IsValid() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown asset category %q", req.Category))
	}
	if c := req.Location.Coordinates; c != nil {
		if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
			return dErrors.New(dErrors.CodeValidation, "coordinates are out of range")
		}
	}
	f := req.Financials
	if f.ClaimedValue.IsNegative() || f.TargetRaise.IsNegative() || f.CurrentRent.IsNegative() || f.AnnualExpenses.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "financial amounts must not be negative")
	}
	if f.ExpectedYield < 0 || f.ExpectedYield > 100 || math.IsNaN(f.ExpectedYield) {
		return dErrors.New(dErrors.CodeValidation, "expected_yield must be a percentage between 0 and 100")
	}
	if f.OccupancyRate < 0 || f.OccupancyRate > 100 || math.IsNaN(f.OccupancyRate) {
		return dErrors.New(dErrors.CodeValidation, "occupancy_rate must be a percentage between 0 and 100")
	}
	return nil
}
