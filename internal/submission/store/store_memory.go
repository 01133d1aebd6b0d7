package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"proptoken/internal/consensus"
	"proptoken/internal/submission/models"
	id "proptoken/pkg/domain"
	"proptoken/pkg/platform/sentinel"
)

// InMemoryStore keeps every record as its JSON document, so callers never
// share memory with the store and reads see exactly what a database would return.
type InMemoryStore struct {
	mu            sync.RWMutex
	submissions   map[id.SubmissionID][]byte
	progress      map[id.SubmissionID][]byte
	scores        map[id.SubmissionID][]byte
	assets        map[id.SubmissionID][]byte
	byFingerprint map[string]id.SubmissionID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		submissions:   make(map[id.SubmissionID][]byte),
		progress:      make(map[id.SubmissionID][]byte),
		scores:        make(map[id.SubmissionID][]byte),
		assets:        make(map[id.SubmissionID][]byte),
		byFingerprint: make(map[string]id.SubmissionID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, sub *models.Submission, progress *models.VerificationProgress) error {
	subDoc, progressDoc, err := encodeState(sub, progress)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.submissions[sub.ID]; ok {
		return sentinel.ErrConflict
	}
	s.submissions[sub.ID] = subDoc
	s.progress[sub.ID] = progressDoc
	return nil
}

func (s *InMemoryStore) SaveState(_ context.Context, sub *models.Submission, progress *models.VerificationProgress) error {
	subDoc, progressDoc, err := encodeState(sub, progress)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.submissions[sub.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	var current models.Submission
	if err := json.Unmarshal(raw, &current); err != nil {
		return fmt.Errorf("decode submission: %w", err)
	}
	if err := checkAdvance(current.Status, sub.Status); err != nil {
		return err
	}
	s.submissions[sub.ID] = subDoc
	s.progress[sub.ID] = progressDoc
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, subID id.SubmissionID) (*models.Submission, error) {
	s.mu.RLock()
	raw, ok := s.submissions[subID]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return decode[models.Submission](raw)
}

func (s *InMemoryStore) FindProgress(_ context.Context, subID id.SubmissionID) (*models.VerificationProgress, error) {
	s.mu.RLock()
	raw, ok := s.progress[subID]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return decode[models.VerificationProgress](raw)
}

// List returns submissions newest first.
func (s *InMemoryStore) List(_ context.Context, limit int) ([]*models.Submission, error) {
	all, err := s.all(func(*models.Submission) bool { return true })
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// ListActive returns every submission that has not reached a terminal stage.
func (s *InMemoryStore) ListActive(_ context.Context) ([]*models.Submission, error) {
	return s.all(func(sub *models.Submission) bool { return !sub.Status.IsTerminal() })
}

func (s *InMemoryStore) all(keep func(*models.Submission) bool) ([]*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Submission, 0, len(s.submissions))
	for _, raw := range s.submissions {
		sub, err := decode[models.Submission](raw)
		if err != nil {
			return nil, err
		}
		if keep(sub) {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) SaveConsensus(ctx context.Context, score *consensus.Score) error {
	return s.SaveVerdict(ctx, score, nil)
}

// SaveVerdict stores the score and the optional eligible asset together, or
// neither when either is already present.
func (s *InMemoryStore) SaveVerdict(_ context.Context, score *consensus.Score, asset *models.EligibleAsset) error {
	scoreDoc, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("encode consensus score: %w", err)
	}
	var assetDoc []byte
	if asset != nil {
		if assetDoc, err = json.Marshal(asset); err != nil {
			return fmt.Errorf("encode eligible asset: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scores[score.SubmissionID]; ok {
		return sentinel.ErrConflict
	}
	if asset != nil {
		if _, ok := s.assets[asset.SubmissionID]; ok {
			return sentinel.ErrConflict
		}
		s.putAsset(asset, assetDoc)
	}
	s.scores[score.SubmissionID] = scoreDoc
	return nil
}

func (s *InMemoryStore) FindConsensus(_ context.Context, subID id.SubmissionID) (*consensus.Score, error) {
	s.mu.RLock()
	raw, ok := s.scores[subID]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return decode[consensus.Score](raw)
}

func (s *InMemoryStore) SaveEligibleAsset(_ context.Context, asset *models.EligibleAsset) error {
	doc, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("encode eligible asset: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[asset.SubmissionID]; ok {
		return sentinel.ErrConflict
	}
	s.putAsset(asset, doc)
	return nil
}

// putAsset requires s.mu held for writing.
func (s *InMemoryStore) putAsset(asset *models.EligibleAsset, doc []byte) {
	s.assets[asset.SubmissionID] = doc
	if _, seen := s.byFingerprint[asset.Fingerprint]; !seen {
		s.byFingerprint[asset.Fingerprint] = asset.SubmissionID
	}
}

func (s *InMemoryStore) FindEligibleAsset(_ context.Context, subID id.SubmissionID) (*models.EligibleAsset, error) {
	s.mu.RLock()
	raw, ok := s.assets[subID]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return decode[models.EligibleAsset](raw)
}

// FindEligibleByFingerprint returns the first asset recorded with the fingerprint.
func (s *InMemoryStore) FindEligibleByFingerprint(ctx context.Context, fingerprint string) (*models.EligibleAsset, error) {
	s.mu.RLock()
	subID, ok := s.byFingerprint[fingerprint]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.FindEligibleAsset(ctx, subID)
}

func encodeState(sub *models.Submission, progress *models.VerificationProgress) ([]byte, []byte, error) {
	subDoc, err := json.Marshal(sub)
	if err != nil {
		return nil, nil, fmt.Errorf("encode submission: %w", err)
	}
	progressDoc, err := json.Marshal(progress)
	if err != nil {
		return nil, nil, fmt.Errorf("encode progress: %w", err)
	}
	return subDoc, progressDoc, nil
}

func decode[T any](raw []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %T: %w", v, err)
	}
	return &v, nil
}

// checkAdvance refuses writes that would rewind a stage or alter a terminal
// submission. Rewriting the same stage is allowed so log appends can land.
func checkAdvance(stored, next models.Status) error {
	if stored.IsTerminal() && next != stored {
		return fmt.Errorf("submission already %s: %w", stored, sentinel.ErrInvalidState)
	}
	if next.Rank() < stored.Rank() {
		return fmt.Errorf("stage %s is behind stored %s: %w", next, stored, sentinel.ErrInvalidState)
	}
	return nil
}
