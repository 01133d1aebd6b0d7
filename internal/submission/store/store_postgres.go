package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"proptoken/internal/consensus"
	"proptoken/internal/submission/models"
	id "proptoken/pkg/domain"
	"proptoken/pkg/platform/sentinel"
	"proptoken/pkg/platform/tx"
)

// PostgresStore persists submissions and their pipeline artifacts as JSONB
// documents keyed by submission id.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed submission store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, sub *models.Submission, progress *models.VerificationProgress) error {
	subDoc, progressDoc, err := encodeState(sub, progress)
	if err != nil {
		return err
	}
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		q := tx.QuerierFor(ctx, s.db)
		res, err := q.ExecContext(ctx, `
			INSERT INTO submissions (id, status, document, created_at, updated_at)
			VALUES ($1, $2, $3::jsonb, $4, $5)
			ON CONFLICT (id) DO NOTHING`,
			uuid.UUID(sub.ID), string(sub.Status), string(subDoc), sub.CreatedAt, sub.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert submission: %w", err)
		}
		if err := requireInserted(res); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO verification_progress (submission_id, current_stage, document, updated_at)
			VALUES ($1, $2, $3::jsonb, $4)`,
			uuid.UUID(sub.ID), string(progress.CurrentStage), string(progressDoc), progress.UpdatedAt); err != nil {
			return fmt.Errorf("insert progress: %w", err)
		}
		return nil
	})
}

// SaveState writes the submission and its progress in one transaction. The
// stored row is locked first so stage regressions are refused under concurrency.
func (s *PostgresStore) SaveState(ctx context.Context, sub *models.Submission, progress *models.VerificationProgress) error {
	subDoc, progressDoc, err := encodeState(sub, progress)
	if err != nil {
		return err
	}
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		q := tx.QuerierFor(ctx, s.db)
		var raw string
		err := q.QueryRowContext(ctx, `SELECT status FROM submissions WHERE id = $1 FOR UPDATE`, uuid.UUID(sub.ID)).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock submission: %w", err)
		}
		stored, err := models.ParseStatus(raw)
		if err != nil {
			return err
		}
		if err := checkAdvance(stored, sub.Status); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `
			UPDATE submissions SET status = $2, document = $3::jsonb, updated_at = $4 WHERE id = $1`,
			uuid.UUID(sub.ID), string(sub.Status), string(subDoc), sub.UpdatedAt); err != nil {
			return fmt.Errorf("update submission: %w", err)
		}
		if _, err := q.ExecContext(ctx, `
			UPDATE verification_progress SET current_stage = $2, document = $3::jsonb, updated_at = $4
			WHERE submission_id = $1`,
			uuid.UUID(sub.ID), string(progress.CurrentStage), string(progressDoc), progress.UpdatedAt); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) FindByID(ctx context.Context, subID id.SubmissionID) (*models.Submission, error) {
	return findDocument[models.Submission](ctx, s.db, `SELECT document FROM submissions WHERE id = $1`, subID)
}

func (s *PostgresStore) FindProgress(ctx context.Context, subID id.SubmissionID) (*models.VerificationProgress, error) {
	return findDocument[models.VerificationProgress](ctx, s.db, `SELECT document FROM verification_progress WHERE submission_id = $1`, subID)
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]*models.Submission, error) {
	if limit <= 0 {
		return s.list(ctx, `SELECT document FROM submissions ORDER BY created_at DESC, id DESC`)
	}
	return s.list(ctx, `SELECT document FROM submissions ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*models.Submission, error) {
	return s.list(ctx, `
		SELECT document FROM submissions WHERE status NOT IN ($1, $2) ORDER BY created_at DESC, id DESC`,
		string(models.StatusEligible), string(models.StatusRejected))
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Submission, error) {
	rows, err := tx.QuerierFor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []*models.Submission
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		sub, err := decode[models.Submission](raw)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SaveConsensus(ctx context.Context, score *consensus.Score) error {
	doc, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("encode consensus score: %w", err)
	}
	res, err := tx.QuerierFor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO consensus_scores (submission_id, eligible, document, calculated_at)
		VALUES ($1, $2, $3::jsonb, $4)
		ON CONFLICT (submission_id) DO NOTHING`,
		uuid.UUID(score.SubmissionID), score.Eligible, string(doc), score.CalculatedAt)
	if err != nil {
		return fmt.Errorf("insert consensus score: %w", err)
	}
	return requireInserted(res)
}

// SaveVerdict records the consensus score and, for an eligible verdict, the
// eligible asset in one transaction. Neither is stored if either insert fails.
func (s *PostgresStore) SaveVerdict(ctx context.Context, score *consensus.Score, asset *models.EligibleAsset) error {
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		if err := s.SaveConsensus(ctx, score); err != nil {
			return err
		}
		if asset == nil {
			return nil
		}
		return s.SaveEligibleAsset(ctx, asset)
	})
}

func (s *PostgresStore) FindConsensus(ctx context.Context, subID id.SubmissionID) (*consensus.Score, error) {
	return findDocument[consensus.Score](ctx, s.db, `SELECT document FROM consensus_scores WHERE submission_id = $1`, subID)
}

func (s *PostgresStore) SaveEligibleAsset(ctx context.Context, asset *models.EligibleAsset) error {
	doc, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("encode eligible asset: %w", err)
	}
	res, err := tx.QuerierFor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO eligible_assets (submission_id, fingerprint, document, eligible_at)
		VALUES ($1, $2, $3::jsonb, $4)
		ON CONFLICT (submission_id) DO NOTHING`,
		uuid.UUID(asset.SubmissionID), asset.Fingerprint, string(doc), asset.EligibleAt)
	if err != nil {
		return fmt.Errorf("insert eligible asset: %w", err)
	}
	return requireInserted(res)
}

func (s *PostgresStore) FindEligibleAsset(ctx context.Context, subID id.SubmissionID) (*models.EligibleAsset, error) {
	return findDocument[models.EligibleAsset](ctx, s.db, `SELECT document FROM eligible_assets WHERE submission_id = $1`, subID)
}

func (s *PostgresStore) FindEligibleByFingerprint(ctx context.Context, fingerprint string) (*models.EligibleAsset, error) {
	var raw []byte
	err := tx.QuerierFor(ctx, s.db).QueryRowContext(ctx, `
		SELECT document FROM eligible_assets WHERE fingerprint = $1 ORDER BY eligible_at ASC LIMIT 1`,
		fingerprint).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find eligible asset by fingerprint: %w", err)
	}
	return decode[models.EligibleAsset](raw)
}

func findDocument[T any](ctx context.Context, db *sql.DB, query string, subID id.SubmissionID) (*T, error) {
	var raw []byte
	err := tx.QuerierFor(ctx, db).QueryRowContext(ctx, query, uuid.UUID(subID)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find document: %w", err)
	}
	return decode[T](raw)
}

func requireInserted(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}
