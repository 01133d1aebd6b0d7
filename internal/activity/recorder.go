// Package activity is the platform-wide audit feed of pipeline and tokenization
// milestones. Retention is bounded: past capacity the oldest events are evicted.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"proptoken/internal/activity/metrics"
	"proptoken/internal/activity/models"
	id "proptoken/pkg/domain"
)

const (
	DefaultCapacity  = 1000
	DefaultPageLimit = 50
	recentEventCount = 10
)

// Recorder appends milestones to the ring buffer and optionally forwards them
// to an external sink.
type Recorder struct {
	buf     *RingBuffer
	now     func() time.Time
	sink    chan<- models.Event
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithCapacity overrides the retention limit.
func WithCapacity(n int) Option {
	return func(r *Recorder) {
		r.buf = NewRingBuffer(n)
	}
}

// WithSink forwards every recorded event to ch without blocking. Events that
// do not fit are counted and dropped from forwarding only; the feed keeps them.
func WithSink(ch chan<- models.Event) Option {
	return func(r *Recorder) {
		r.sink = ch
	}
}

func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		buf: NewRingBuffer(DefaultCapacity),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LogSubmission records a submission entering verification.
func (r *Recorder) LogSubmission(ctx context.Context, s models.SubmissionLogged) models.Event {
	return r.record(ctx, models.Event{
		Type:      models.EventSPVSubmitted,
		Actor:     models.ActorSystem,
		AssetName: s.AssetName,
		Details: map[string]any{
			"submission_id": s.SubmissionID.String(),
			"address":       s.Address,
			"coordinates":   map[string]float64{"latitude": s.Lat, "longitude": s.Lng},
			"sat_image_url": s.ImageURL,
		},
		Status:  models.StatusConfirmed,
		Message: fmt.Sprintf("SPV %q submitted for verification from (%v, %v)", s.AssetName, s.Lat, s.Lng),
	})
}

// LogVerification records the terminal verdict of a run.
func (r *Recorder) LogVerification(ctx context.Context, v models.VerificationLogged) models.Event {
	eventType, status := models.EventSPVVerified, models.StatusConfirmed
	if !v.Passed {
		eventType, status = models.EventSPVFailed, models.StatusFailed
	}
	return r.record(ctx, models.Event{
		Type:      eventType,
		Actor:     models.ActorScoring,
		AssetName: v.AssetName,
		Details: map[string]any{
			"submission_id":         v.SubmissionID.String(),
			"existence_score":       v.ExistenceScore,
			"ownership_probability": v.OwnershipProbability,
			"fraud_likelihood":      v.FraudLikelihood,
			"confidence":            v.Confidence,
			"asset_fingerprint":     v.Fingerprint,
			"reasoning":             v.Reasoning,
		},
		Status:  status,
		Message: v.Reasoning,
	})
}

// LogMintingInitiated records a token mint submitted by the tokenization step.
func (r *Recorder) LogMintingInitiated(ctx context.Context, m models.Minting) models.Event {
	status := models.StatusPending
	if m.Status == models.StatusFailed {
		status = models.StatusFailed
	}
	ts := m.Timestamp
	if ts.IsZero() {
		ts = r.now()
	}
	return r.record(ctx, models.Event{
		Type:      models.EventTokenMinted,
		Timestamp: ts,
		Actor:     models.ActorTokenFactory,
		AssetName: m.AssetName,
		Details: map[string]any{
			"token_name":        m.TokenName,
			"token_address":     m.TokenAddress,
			"initial_supply":    m.TotalSupply,
			"submission_id":     m.SubmissionID.String(),
			"asset_fingerprint": m.Fingerprint,
		},
		TxHash:      m.TransactionHash,
		ExplorerURL: m.ExplorerURL,
		Status:      status,
		Message:     fmt.Sprintf("Token %q minting initiated. Supply: %s tokens. Status: %s", m.TokenName, m.TotalSupply, m.Status),
	})
}

// LogMintingConfirmed records the mint transaction being mined.
func (r *Recorder) LogMintingConfirmed(ctx context.Context, m models.Minting) models.Event {
	return r.record(ctx, models.Event{
		Type:      models.EventTokenDeployed,
		Actor:     models.ActorBlockchain,
		AssetName: m.TokenName,
		Details: map[string]any{
			"token_address":    m.TokenAddress,
			"transaction_hash": m.TransactionHash,
			"block_number":     m.BlockNumber,
			"total_supply":     m.TotalSupply,
		},
		TxHash:      m.TransactionHash,
		ExplorerURL: m.ExplorerURL,
		Status:      models.StatusConfirmed,
		Message:     fmt.Sprintf("Token %q successfully deployed. Explorer: %s", m.TokenName, m.ExplorerURL),
	})
}

func (r *Recorder) record(ctx context.Context, ev models.Event) models.Event {
	ev.ID = id.NewEventID()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = r.now()
	}

	if r.buf.Enqueue(ev) {
		r.metrics.IncrementEvicted()
	}
	r.metrics.IncrementEvent(string(ev.Type))

	if r.sink != nil {
		select {
		case r.sink <- ev:
		default:
			r.metrics.IncrementSinkDropped()
		}
	}

	if r.logger != nil {
		r.logger.InfoContext(ctx, "activity recorded",
			"event_id", ev.ID,
			"type", ev.Type,
			"asset_name", ev.AssetName,
			"status", ev.Status,
		)
	}
	return ev
}

// Feed returns a newest-first page. limit <= 0 uses the default of 50.
func (r *Recorder) Feed(limit, offset int) models.FeedPage {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}

	events := newestFirst(r.buf.Snapshot())
	total := len(events)

	return models.FeedPage{
		Events:  window(events, offset, limit),
		Total:   total,
		HasMore: offset < total && limit < total-offset,
	}
}

// ByType returns up to limit events of one type, newest first.
func (r *Recorder) ByType(t models.EventType, limit int) []models.Event {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	return window(filter(newestFirst(r.buf.Snapshot()), func(ev models.Event) bool {
		return ev.Type == t
	}), 0, limit)
}

// AssetTimeline returns every retained event for an asset, oldest first.
func (r *Recorder) AssetTimeline(assetName string) []models.Event {
	events := filter(r.buf.Snapshot(), func(ev models.Event) bool {
		return ev.AssetName == assetName
	})
	slices.SortStableFunc(events, func(a, b models.Event) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return events
}

// Summary counts milestones over the whole retained window.
func (r *Recorder) Summary() models.Summary {
	events := newestFirst(r.buf.Snapshot())
	var s models.Summary
	for _, ev := range events {
		switch ev.Type {
		case models.EventSPVSubmitted:
			s.TotalSubmissions++
		case models.EventSPVVerified:
			s.VerifiedCount++
		case models.EventSPVFailed:
			s.FailedCount++
		case models.EventTokenMinted:
			s.TokensMinted++
		}
	}
	s.RecentEvents = window(events, 0, recentEventCount)
	return s
}

// Clear empties the feed.
func (r *Recorder) Clear(ctx context.Context) {
	r.buf.Reset()
	if r.logger != nil {
		r.logger.InfoContext(ctx, "activity feed cleared")
	}
}

// ExportJSON renders the retained events, oldest first, as indented JSON.
func (r *Recorder) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(r.buf.Snapshot(), "", "  ")
}

// newestFirst orders by timestamp descending; equal timestamps keep the most
// recently inserted event first.
func newestFirst(oldestFirst []models.Event) []models.Event {
	slices.Reverse(oldestFirst)
	slices.SortStableFunc(oldestFirst, func(a, b models.Event) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return oldestFirst
}

func filter(events []models.Event, keep func(models.Event) bool) []models.Event {
	out := make([]models.Event, 0, len(events))
	for _, ev := range events {
		if keep(ev) {
			out = append(out, ev)
		}
	}
	return out
}

func window(events []models.Event, offset, limit int) []models.Event {
	if offset >= len(events) {
		return []models.Event{}
	}
	return events[offset : offset+min(limit, len(events)-offset)]
}
