package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/convocatoriaspro/convocatorias/internal/db"
	"github.com/convocatoriaspro/convocatorias/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS search_runs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id      TEXT NOT NULL DEFAULT '',
	query        JSONB NOT NULL,
	strategy     TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	result_count INTEGER NOT NULL DEFAULT 0,
	degraded     BOOLEAN NOT NULL DEFAULT false,
	error        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS search_results (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id            TEXT NOT NULL REFERENCES search_runs(id),
	title             TEXT NOT NULL,
	organization      TEXT NOT NULL,
	description       TEXT NOT NULL,
	amount            TEXT NOT NULL,
	deadline          TEXT NOT NULL,
	requirements      TEXT NOT NULL,
	source_url        TEXT NOT NULL,
	category          TEXT NOT NULL,
	tags              TEXT[] NOT NULL DEFAULT '{}',
	reliability_score INTEGER NOT NULL DEFAULT 0 CHECK (reliability_score BETWEEN 0 AND 100),
	status            TEXT NOT NULL,
	is_synthetic      BOOLEAN NOT NULL DEFAULT false,
	review            TEXT NOT NULL DEFAULT 'pending',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS validations (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	result_id  TEXT NOT NULL REFERENCES search_results(id),
	status     TEXT NOT NULL,
	score      INTEGER NOT NULL CHECK (score BETWEEN 0 AND 100),
	outcome    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_search_runs_user ON search_runs(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_search_runs_status ON search_runs(status);
CREATE INDEX IF NOT EXISTS idx_search_results_run_id ON search_results(run_id);
CREATE INDEX IF NOT EXISTS idx_validations_result_id ON validations(result_id);
`

var resultCopyColumns = []string{
	"id", "run_id", "title", "organization", "description", "amount", "deadline", "requirements",
	"source_url", "category", "tags", "reliability_score", "status", "is_synthetic", "review", "created_at",
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) CreateRun(ctx context.Context, run model.SearchRun) (*model.SearchRun, error) {
	run.ID = uuid.New().String()
	run.Status = model.RunStatusPending
	run.CreatedAt = time.Now().UTC()
	run.CompletedAt = nil

	queryJSON, err := json.Marshal(run.Query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal query")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO search_runs (id, user_id, query, strategy, status, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.UserID, queryJSON, string(run.Strategy), string(run.Status), run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &run, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	if status.IsTerminal() {
		return s.CompleteRun(ctx, runID, model.RunCompletion{Status: status})
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE search_runs SET status = $1 WHERE id = $2 AND status NOT IN ('completed', 'failed')`,
		string(status), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	return s.checkRunUpdated(ctx, tag, runID)
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, c model.RunCompletion) error {
	if !c.Status.IsTerminal() {
		return eris.Errorf("postgres: complete run %s: status %s is not terminal", runID, c.Status)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE search_runs SET status = $1, result_count = $2, degraded = $3, error = $4, completed_at = $5
		 WHERE id = $6 AND status NOT IN ('completed', 'failed')`,
		string(c.Status), c.ResultCount, c.Degraded, c.Error, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	return s.checkRunUpdated(ctx, tag, runID)
}

func (s *PostgresStore) checkRunUpdated(ctx context.Context, tag pgconn.CommandTag, runID string) error {
	if tag.RowsAffected() > 0 {
		return nil
	}
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM search_runs WHERE id = $1`, runID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return notUpdated(runID, false)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: lookup run %s", runID)
	}
	return notUpdated(runID, true)
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.SearchRun, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM search_runs WHERE id = $1`, runID)
	return scanPgRun(row)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.SearchRun, error) {
	query := `SELECT ` + runColumns + ` FROM search_runs WHERE ($1::text = '' OR user_id = $1) AND ($2::text = '' OR status = $2)
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := s.pool.Query(ctx, query, filter.UserID, string(filter.Status), listLimit(filter.Limit), offset)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.SearchRun
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveResults(ctx context.Context, runID string, records []model.ResultRecord) ([]model.ResultRecord, error) {
	out := prepareResults(runID, records)

	rows := make([][]any, len(out))
	for i, r := range out {
		rows[i] = []any{
			r.ID, r.RunID, r.Title, r.Organization, r.Description, r.Amount, r.Deadline, r.Requirements,
			r.SourceURL, r.Category, r.Tags, r.ReliabilityScore, r.Status, r.IsSynthetic, string(r.Review), r.CreatedAt,
		}
	}
	if _, err := db.CopyFrom(ctx, s.pool, "search_results", resultCopyColumns, rows); err != nil {
		return nil, eris.Wrapf(err, "postgres: save results for run %s", runID)
	}
	return out, nil
}

func (s *PostgresStore) ListResults(ctx context.Context, runID string) ([]model.ResultRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+resultColumns+` FROM search_results WHERE run_id = $1 ORDER BY created_at, id`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var out []model.ResultRecord
	for rows.Next() {
		r, err := scanPgResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list results iterate")
}

func (s *PostgresStore) GetResult(ctx context.Context, resultID string) (*model.ResultRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+resultColumns+` FROM search_results WHERE id = $1`, resultID)
	return scanPgResult(row)
}

func (s *PostgresStore) SetReview(ctx context.Context, resultID string, review model.ReviewState) (*model.ResultRecord, error) {
	if !review.Valid() {
		return nil, eris.Errorf("postgres: invalid review state %q", review)
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE search_results SET review = $1 WHERE id = $2 RETURNING `+resultColumns,
		string(review), resultID,
	)
	return scanPgResult(row)
}

func (s *PostgresStore) SaveValidation(ctx context.Context, o model.ValidationOutcome) error {
	if o.ResultID == "" {
		return eris.New("postgres: save validation: missing result id")
	}
	data, err := json.Marshal(o)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal validation")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO validations (id, result_id, status, score, outcome, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), o.ResultID, string(o.ValidationStatus), o.ValidationScore, data, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: insert validation for %s", o.ResultID)
}

func (s *PostgresStore) ListValidations(ctx context.Context, resultID string) ([]model.ValidationOutcome, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT outcome FROM validations WHERE result_id = $1 ORDER BY created_at DESC`, resultID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list validations")
	}
	defer rows.Close()

	var out []model.ValidationOutcome
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan validation")
		}
		var o model.ValidationOutcome
		if err := json.Unmarshal(data, &o); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal validation")
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list validations iterate")
}

func scanPgRun(row pgx.Row) (*model.SearchRun, error) {
	var (
		r         model.SearchRun
		queryJSON []byte
		strategy  string
		status    string
	)
	err := row.Scan(&r.ID, &r.UserID, &queryJSON, &strategy, &status, &r.ResultCount, &r.Degraded,
		&r.Error, &r.CreatedAt, &r.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "postgres: get run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}
	if err := json.Unmarshal(queryJSON, &r.Query); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal query")
	}
	r.Strategy = model.Strategy(strategy)
	r.Status = model.RunStatus(status)
	return &r, nil
}

func scanPgResult(row pgx.Row) (*model.ResultRecord, error) {
	var (
		r      model.ResultRecord
		review string
	)
	err := row.Scan(&r.ID, &r.RunID, &r.Title, &r.Organization, &r.Description, &r.Amount, &r.Deadline,
		&r.Requirements, &r.SourceURL, &r.Category, &r.Tags, &r.ReliabilityScore, &r.Status, &r.IsSynthetic,
		&review, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "postgres: get result")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan result")
	}
	r.Review = model.ReviewState(review)
	return &r, nil
}
