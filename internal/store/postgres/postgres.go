// Package postgres persists jobs, helpers, feature vectors, decisions and
// retraining requests in PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spigell/helper-matcher/internal/decisions"
	"github.com/spigell/helper-matcher/internal/features"
	"github.com/spigell/helper-matcher/internal/logger"
	"github.com/spigell/helper-matcher/internal/records"
	"github.com/spigell/helper-matcher/internal/store"
)

//go:embed schema.sql
var schema string

// NewPool creates and verifies a pgxpool connection pool.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ParseConfig: %w", err)
	}
	return NewPoolFromConfig(ctx, cfg)
}

// NewPoolFromConfig creates a pool from a parsed config and verifies it.
func NewPoolFromConfig(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}

// Store implements every store collaborator on top of a pool.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

var (
	_ store.JobStore        = (*Store)(nil)
	_ store.HelperStore     = (*Store)(nil)
	_ store.FeatureStore    = (*Store)(nil)
	_ store.DecisionStore   = (*Store)(nil)
	_ store.RetrainingStore = (*Store)(nil)
)

// New wraps pool.
func New(pool *pgxpool.Pool, log *zap.Logger) *Store {
	return &Store{pool: pool, log: logger.WithFields(log, zap.String("component", "postgres"))}
}

// EnsureSchema creates missing tables and indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutJob inserts or replaces a raw job document.
func (s *Store) PutJob(ctx context.Context, doc map[string]any) error {
	job, err := records.DecodeJob(doc)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO jobs (id, employer_id, doc) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET employer_id = EXCLUDED.employer_id, doc = EXCLUDED.doc, updated_at = NOW()`,
		job.ID, job.EmployerID, doc,
	)
	if err != nil {
		return fmt.Errorf("putJob %q: %w", job.ID, err)
	}
	return nil
}

// PutHelper inserts or replaces a raw helper document.
func (s *Store) PutHelper(ctx context.Context, doc map[string]any) error {
	helper, err := records.DecodeHelper(doc)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO helpers (id, is_active, is_registration_complete, doc) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET is_active = EXCLUDED.is_active,
		     is_registration_complete = EXCLUDED.is_registration_complete,
		     doc = EXCLUDED.doc, updated_at = NOW()`,
		helper.ID, helper.IsActive, helper.IsRegistrationComplete, doc,
	)
	if err != nil {
		return fmt.Errorf("putHelper %q: %w", helper.ID, err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (records.JobRecord, error) {
	var doc map[string]any
	err := s.pool.QueryRow(ctx, `SELECT doc FROM jobs WHERE id = $1`, jobID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return records.JobRecord{}, fmt.Errorf("job %q: %w", jobID, store.ErrNotFound)
	}
	if err != nil {
		return records.JobRecord{}, fmt.Errorf("getJob %q: %w", jobID, err)
	}
	return records.DecodeJob(doc)
}

func (s *Store) GetHelper(ctx context.Context, helperID string) (records.HelperRecord, error) {
	var doc map[string]any
	err := s.pool.QueryRow(ctx, `SELECT doc FROM helpers WHERE id = $1`, helperID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return records.HelperRecord{}, fmt.Errorf("helper %q: %w", helperID, store.ErrNotFound)
	}
	if err != nil {
		return records.HelperRecord{}, fmt.Errorf("getHelper %q: %w", helperID, err)
	}
	return records.DecodeHelper(doc)
}

func (s *Store) QueryActiveRegisteredHelpers(ctx context.Context, limit int) ([]records.HelperRecord, error) {
	var (
		rows pgx.Rows
		err  error
	)
	const query = `SELECT doc FROM helpers WHERE is_active AND is_registration_complete ORDER BY id`
	if limit > 0 {
		rows, err = s.pool.Query(ctx, query+` LIMIT $1`, limit)
	} else {
		rows, err = s.pool.Query(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("queryActiveRegisteredHelpers: %w", err)
	}
	defer rows.Close()

	var helpers []records.HelperRecord
	for rows.Next() {
		var doc map[string]any
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("queryActiveRegisteredHelpers scan: %w", err)
		}
		helper, err := records.DecodeHelper(doc)
		if err != nil {
			// One malformed document must not empty every candidate pool.
			s.log.Warn("skipping undecodable helper document", zap.Any("id", doc["id"]), zap.Error(err))
			continue
		}
		helpers = append(helpers, helper)
	}
	return helpers, rows.Err()
}

func (s *Store) GetFeatures(ctx context.Context, helperID string) (*features.Vector, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT vector FROM helper_features WHERE helper_id = $1`, helperID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("features of helper %q: %w", helperID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getFeatures %q: %w", helperID, err)
	}

	var v features.Vector
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decoding features of helper %q: %w", helperID, err)
	}
	return &v, nil
}

func (s *Store) PutFeatures(ctx context.Context, helperID string, v *features.Vector) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding features of helper %q: %w", helperID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO helper_features (helper_id, vector, computed_at) VALUES ($1, $2, $3)
		 ON CONFLICT (helper_id) DO UPDATE SET vector = EXCLUDED.vector, computed_at = EXCLUDED.computed_at`,
		helperID, payload, v.Meta.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("putFeatures %q: %w", helperID, err)
	}
	return nil
}

func (s *Store) CountFeatures(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM helper_features`).Scan(&n); err != nil {
		return 0, fmt.Errorf("countFeatures: %w", err)
	}
	return n, nil
}

// AppendDecision inserts a decision. Decisions are never updated.
func (s *Store) AppendDecision(ctx context.Context, d records.Decision) error {
	snapshot, err := json.Marshal(d.Snapshot)
	if err != nil {
		return fmt.Errorf("encoding snapshot of decision %q: %w", d.ID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO decisions (id, acting_user_id, helper_id, job_id, action, created_at, snapshot)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.ActingUserID, d.HelperID, d.JobID, string(d.Action), d.Timestamp, snapshot,
	)
	if err != nil {
		return fmt.Errorf("appendDecision %q: %w", d.ID, err)
	}
	return nil
}

func (s *Store) RecentByUser(ctx context.Context, userID string, limit int) ([]records.Decision, error) {
	var (
		rows pgx.Rows
		err  error
	)
	const query = `SELECT id, acting_user_id, helper_id, job_id, action, created_at, snapshot
		 FROM decisions WHERE acting_user_id = $1
		 ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		rows, err = s.pool.Query(ctx, query+` LIMIT $2`, userID, limit)
	} else {
		rows, err = s.pool.Query(ctx, query, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("recentByUser %q: %w", userID, err)
	}
	defer rows.Close()

	var result []records.Decision
	for rows.Next() {
		var (
			d        records.Decision
			action   string
			snapshot map[string]any
		)
		if err := rows.Scan(&d.ID, &d.ActingUserID, &d.HelperID, &d.JobID, &action, &d.Timestamp, &snapshot); err != nil {
			return nil, fmt.Errorf("recentByUser scan: %w", err)
		}
		d.Action = records.Action(action)
		if d.Snapshot, err = records.DecodeSnapshot(snapshot); err != nil {
			return nil, fmt.Errorf("decision %q: %w", d.ID, err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *Store) DistinctUsersSince(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT acting_user_id FROM decisions WHERE created_at >= $1 ORDER BY acting_user_id`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("distinctUsersSince: %w", err)
	}

	users, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("distinctUsersSince scan: %w", err)
	}
	return users, nil
}

func (s *Store) GetRetraining(ctx context.Context, userID string) (records.RetrainingRequest, error) {
	var (
		req         records.RetrainingRequest
		status      string
		requestType string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, status, request_type, requested_at, updated_at, training_data_count
		 FROM retraining_requests WHERE user_id = $1`,
		userID,
	).Scan(&req.UserID, &status, &requestType, &req.RequestedAt, &req.UpdatedAt, &req.TrainingDataCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return records.RetrainingRequest{}, fmt.Errorf("retraining request of user %q: %w", userID, store.ErrNotFound)
	}
	if err != nil {
		return records.RetrainingRequest{}, fmt.Errorf("getRetraining %q: %w", userID, err)
	}
	req.Status, err = decisions.ParseStatus(status)
	if err != nil {
		return records.RetrainingRequest{}, fmt.Errorf("getRetraining %q: %w", userID, err)
	}
	req.RequestType = records.RetrainingType(requestType)
	return req, nil
}

// UpsertRetraining keeps exactly one row per user; the newest request wins.
func (s *Store) UpsertRetraining(ctx context.Context, req records.RetrainingRequest) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO retraining_requests (user_id, status, request_type, requested_at, updated_at, training_data_count)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE SET
		     status              = EXCLUDED.status,
		     request_type        = EXCLUDED.request_type,
		     requested_at        = EXCLUDED.requested_at,
		     updated_at          = EXCLUDED.updated_at,
		     training_data_count = EXCLUDED.training_data_count`,
		req.UserID, string(req.Status), string(req.RequestType), req.RequestedAt, req.UpdatedAt, req.TrainingDataCount,
	)
	if err != nil {
		return fmt.Errorf("upsertRetraining %q: %w", req.UserID, err)
	}
	return nil
}

// Import loads raw documents and decisions inside a single transaction.
// Decisions that already exist are skipped.
func (s *Store) Import(ctx context.Context, jobs, helpers []map[string]any, history []records.Decision) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("import begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for i, doc := range jobs {
		job, err := records.DecodeJob(doc)
		if err != nil {
			return fmt.Errorf("job #%d: %w", i, err)
		}
		batch.Queue(
			`INSERT INTO jobs (id, employer_id, doc) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET employer_id = EXCLUDED.employer_id, doc = EXCLUDED.doc, updated_at = NOW()`,
			job.ID, job.EmployerID, doc,
		)
	}
	for i, doc := range helpers {
		helper, err := records.DecodeHelper(doc)
		if err != nil {
			return fmt.Errorf("helper #%d: %w", i, err)
		}
		batch.Queue(
			`INSERT INTO helpers (id, is_active, is_registration_complete, doc) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET is_active = EXCLUDED.is_active,
			     is_registration_complete = EXCLUDED.is_registration_complete,
			     doc = EXCLUDED.doc, updated_at = NOW()`,
			helper.ID, helper.IsActive, helper.IsRegistrationComplete, doc,
		)
	}
	for _, d := range history {
		snapshot, err := json.Marshal(d.Snapshot)
		if err != nil {
			return fmt.Errorf("encoding snapshot of decision %q: %w", d.ID, err)
		}
		batch.Queue(
			`INSERT INTO decisions (id, acting_user_id, helper_id, job_id, action, created_at, snapshot)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING`,
			d.ID, d.ActingUserID, d.HelperID, d.JobID, string(d.Action), d.Timestamp, snapshot,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("import commit: %w", err)
	}
	return nil
}
