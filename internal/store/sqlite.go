package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/convocatoriaspro/convocatorias/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS search_runs (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL DEFAULT '',
	query        TEXT NOT NULL,
	strategy     TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	result_count INTEGER NOT NULL DEFAULT 0,
	degraded     INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS search_results (
	id                TEXT PRIMARY KEY,
	run_id            TEXT NOT NULL REFERENCES search_runs(id),
	title             TEXT NOT NULL,
	organization      TEXT NOT NULL,
	description       TEXT NOT NULL,
	amount            TEXT NOT NULL,
	deadline          TEXT NOT NULL,
	requirements      TEXT NOT NULL,
	source_url        TEXT NOT NULL,
	category          TEXT NOT NULL,
	tags              TEXT NOT NULL DEFAULT '[]',
	reliability_score INTEGER NOT NULL DEFAULT 0,
	status            TEXT NOT NULL,
	is_synthetic      INTEGER NOT NULL DEFAULT 0,
	review            TEXT NOT NULL DEFAULT 'pending',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS validations (
	id         TEXT PRIMARY KEY,
	result_id  TEXT NOT NULL REFERENCES search_results(id),
	status     TEXT NOT NULL,
	score      INTEGER NOT NULL,
	outcome    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_search_runs_user ON search_runs(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_search_runs_status ON search_runs(status);
CREATE INDEX IF NOT EXISTS idx_search_results_run_id ON search_results(run_id);
CREATE INDEX IF NOT EXISTS idx_validations_result_id ON validations(result_id);
`

const resultColumns = `id, run_id, title, organization, description, amount, deadline, requirements,
	source_url, category, tags, reliability_score, status, is_synthetic, review, created_at`

const runColumns = `id, user_id, query, strategy, status, result_count, degraded, error, created_at, completed_at`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run model.SearchRun) (*model.SearchRun, error) {
	run.ID = uuid.New().String()
	run.Status = model.RunStatusPending
	run.CreatedAt = time.Now().UTC()
	run.CompletedAt = nil

	queryJSON, err := json.Marshal(run.Query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal query")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO search_runs (id, user_id, query, strategy, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.UserID, string(queryJSON), string(run.Strategy), string(run.Status), run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &run, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	if status.IsTerminal() {
		return s.CompleteRun(ctx, runID, model.RunCompletion{Status: status})
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE search_runs SET status = ? WHERE id = ? AND status NOT IN ('completed', 'failed')`,
		string(status), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return s.checkRunUpdated(ctx, res, runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, c model.RunCompletion) error {
	if !c.Status.IsTerminal() {
		return eris.Errorf("sqlite: complete run %s: status %s is not terminal", runID, c.Status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE search_runs SET status = ?, result_count = ?, degraded = ?, error = ?, completed_at = ?
		 WHERE id = ? AND status NOT IN ('completed', 'failed')`,
		string(c.Status), c.ResultCount, c.Degraded, c.Error, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return s.checkRunUpdated(ctx, res, runID)
}

func (s *SQLiteStore) checkRunUpdated(ctx context.Context, res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n > 0 {
		return nil
	}
	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM search_runs WHERE id = ?`, runID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return notUpdated(runID, false)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: lookup run %s", runID)
	}
	return notUpdated(runID, true)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.SearchRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM search_runs WHERE id = ?`, runID)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.SearchRun, error) {
	query := `SELECT ` + runColumns + ` FROM search_runs WHERE 1=1`
	var args []any

	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.SearchRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveResults(ctx context.Context, runID string, records []model.ResultRecord) ([]model.ResultRecord, error) {
	out := prepareResults(runID, records)
	if len(out) == 0 {
		return out, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO search_results (`+resultColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare insert result")
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range out {
		tags, err := json.Marshal(r.Tags)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: marshal tags")
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.RunID, r.Title, r.Organization, r.Description, r.Amount, r.Deadline, r.Requirements,
			r.SourceURL, r.Category, string(tags), r.ReliabilityScore, r.Status, r.IsSynthetic, string(r.Review), r.CreatedAt,
		); err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert result for run %s", runID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit results")
	}
	return out, nil
}

func (s *SQLiteStore) ListResults(ctx context.Context, runID string) ([]model.ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+resultColumns+` FROM search_results WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ResultRecord
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list results iterate")
}

func (s *SQLiteStore) GetResult(ctx context.Context, resultID string) (*model.ResultRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM search_results WHERE id = ?`, resultID)
	return scanResult(row)
}

func (s *SQLiteStore) SetReview(ctx context.Context, resultID string, review model.ReviewState) (*model.ResultRecord, error) {
	if !review.Valid() {
		return nil, eris.Errorf("sqlite: invalid review state %q", review)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE search_results SET review = ? WHERE id = ?`, string(review), resultID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: set review %s", resultID)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, eris.Wrap(err, "sqlite: rows affected")
	} else if n == 0 {
		return nil, eris.Wrapf(ErrNotFound, "result %s", resultID)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM search_results WHERE id = ?`, resultID)
	return scanResult(row)
}

func (s *SQLiteStore) SaveValidation(ctx context.Context, o model.ValidationOutcome) error {
	if o.ResultID == "" {
		return eris.New("sqlite: save validation: missing result id")
	}
	data, err := json.Marshal(o)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal validation")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO validations (id, result_id, status, score, outcome, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), o.ResultID, string(o.ValidationStatus), o.ValidationScore, string(data), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert validation for %s", o.ResultID)
}

func (s *SQLiteStore) ListValidations(ctx context.Context, resultID string) ([]model.ValidationOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT outcome FROM validations WHERE result_id = ? ORDER BY created_at DESC, rowid DESC`, resultID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list validations")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ValidationOutcome
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan validation")
		}
		var o model.ValidationOutcome
		if err := json.Unmarshal([]byte(data), &o); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal validation")
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list validations iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.SearchRun, error) {
	var (
		r           model.SearchRun
		queryJSON   string
		strategy    string
		status      string
		completedAt sql.NullTime
	)
	err := row.Scan(&r.ID, &r.UserID, &queryJSON, &strategy, &status, &r.ResultCount, &r.Degraded,
		&r.Error, &r.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "sqlite: get run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if err := json.Unmarshal([]byte(queryJSON), &r.Query); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal query")
	}
	r.Strategy = model.Strategy(strategy)
	r.Status = model.RunStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return &r, nil
}

func scanResult(row scannable) (*model.ResultRecord, error) {
	var (
		r      model.ResultRecord
		tags   string
		review string
	)
	err := row.Scan(&r.ID, &r.RunID, &r.Title, &r.Organization, &r.Description, &r.Amount, &r.Deadline,
		&r.Requirements, &r.SourceURL, &r.Category, &tags, &r.ReliabilityScore, &r.Status, &r.IsSynthetic,
		&review, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "sqlite: get result")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan result")
	}
	if err := json.Unmarshal([]byte(tags), &r.Tags); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal tags")
	}
	r.Review = model.ReviewState(review)
	return &r, nil
}
