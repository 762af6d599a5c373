package store

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/convocatoriaspro/convocatorias/internal/model"
	"github.com/convocatoriaspro/convocatorias/internal/resilience"
)

// RESTStore implements Store over a PostgREST-style hosted database API.
// The schema is owned by the host; Migrate only checks reachability.
type RESTStore struct {
	baseURL string
	key     string
	http    *http.Client
	policy  resilience.Policy
}

// RESTOption configures a RESTStore.
type RESTOption func(*RESTStore)

// WithRESTHTTPClient overrides the default http.Client.
func WithRESTHTTPClient(hc *http.Client) RESTOption {
	return func(s *RESTStore) { s.http = hc }
}

// WithRetryPolicy overrides the retry policy for transient failures.
func WithRetryPolicy(p resilience.Policy) RESTOption {
	return func(s *RESTStore) { s.policy = p }
}

// NewREST creates a RESTStore. baseURL is the REST root (e.g.
// https://<project>.supabase.co/rest/v1) and serviceKey the service-level key.
func NewREST(baseURL, serviceKey string, opts ...RESTOption) *RESTStore {
	s := &RESTStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     serviceKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		policy:  resilience.DefaultPolicy(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type validationRow struct {
	ID        string                  `json:"id"`
	ResultID  string                  `json:"result_id"`
	Status    model.ValidationStatus  `json:"status"`
	Score     int                     `json:"score"`
	Outcome   model.ValidationOutcome `json:"outcome"`
	CreatedAt time.Time               `json:"created_at"`
}

type runPatch struct {
	Status      model.RunStatus `json:"status"`
	ResultCount *int            `json:"result_count,omitempty"`
	Degraded    *bool           `json:"degraded,omitempty"`
	Error       *string         `json:"error,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

const openRunsFilter = "not.in.(completed,failed)"

func (s *RESTStore) Migrate(ctx context.Context) error {
	q := url.Values{"select": {"id"}, "limit": {"1"}}
	if err := s.do(ctx, http.MethodGet, "search_runs", q, nil, "", nil); err != nil {
		return eris.Wrap(err, "rest: migrate: schema check")
	}
	zap.L().Info("rest: schema is managed by the hosted database")
	return nil
}

func (s *RESTStore) Close() error {
	s.http.CloseIdleConnections()
	return nil
}

func (s *RESTStore) CreateRun(ctx context.Context, run model.SearchRun) (*model.SearchRun, error) {
	run.ID = uuid.New().String()
	run.Status = model.RunStatusPending
	run.CreatedAt = time.Now().UTC()
	run.CompletedAt = nil

	if err := s.do(ctx, http.MethodPost, "search_runs", nil, run, preferInsert, nil); err != nil {
		return nil, eris.Wrap(err, "rest: insert run")
	}
	return &run, nil
}

func (s *RESTStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	if status.IsTerminal() {
		return s.CompleteRun(ctx, runID, model.RunCompletion{Status: status})
	}
	return s.patchOpenRun(ctx, runID, runPatch{Status: status})
}

func (s *RESTStore) CompleteRun(ctx context.Context, runID string, c model.RunCompletion) error {
	if !c.Status.IsTerminal() {
		return eris.Errorf("rest: complete run %s: status %s is not terminal", runID, c.Status)
	}
	now := time.Now().UTC()
	return s.patchOpenRun(ctx, runID, runPatch{
		Status:      c.Status,
		ResultCount: &c.ResultCount,
		Degraded:    &c.Degraded,
		Error:       &c.Error,
		CompletedAt: &now,
	})
}

func (s *RESTStore) patchOpenRun(ctx context.Context, runID string, patch runPatch) error {
	q := url.Values{"id": {"eq." + runID}, "status": {openRunsFilter}}
	var updated []model.SearchRun
	if err := s.do(ctx, http.MethodPatch, "search_runs", q, patch, preferRepresentation, &updated); err != nil {
		return eris.Wrapf(err, "rest: update run %s", runID)
	}
	if len(updated) > 0 {
		return nil
	}
	_, err := s.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	return notUpdated(runID, true)
}

func (s *RESTStore) GetRun(ctx context.Context, runID string) (*model.SearchRun, error) {
	q := url.Values{"id": {"eq." + runID}, "select": {"*"}}
	var runs []model.SearchRun
	if err := s.do(ctx, http.MethodGet, "search_runs", q, nil, "", &runs); err != nil {
		return nil, eris.Wrapf(err, "rest: get run %s", runID)
	}
	if len(runs) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "rest: get run %s", runID)
	}
	return &runs[0], nil
}

func (s *RESTStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.SearchRun, error) {
	q := url.Values{
		"select": {"*"},
		"order":  {"created_at.desc"},
		"limit":  {strconv.Itoa(listLimit(filter.Limit))},
	}
	if filter.UserID != "" {
		q.Set("user_id", "eq."+filter.UserID)
	}
	if filter.Status != "" {
		q.Set("status", "eq."+string(filter.Status))
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}

	var runs []model.SearchRun
	if err := s.do(ctx, http.MethodGet, "search_runs", q, nil, "", &runs); err != nil {
		return nil, eris.Wrap(err, "rest: list runs")
	}
	return runs, nil
}

func (s *RESTStore) SaveResults(ctx context.Context, runID string, records []model.ResultRecord) ([]model.ResultRecord, error) {
	out := prepareResults(runID, records)
	if len(out) == 0 {
		return out, nil
	}
	if err := s.do(ctx, http.MethodPost, "search_results", nil, out, preferInsert, nil); err != nil {
		return nil, eris.Wrapf(err, "rest: save results for run %s", runID)
	}
	return out, nil
}

func (s *RESTStore) ListResults(ctx context.Context, runID string) ([]model.ResultRecord, error) {
	q := url.Values{
		"run_id": {"eq." + runID},
		"select": {"*"},
		"order":  {"created_at.asc,id.asc"},
	}
	var out []model.ResultRecord
	if err := s.do(ctx, http.MethodGet, "search_results", q, nil, "", &out); err != nil {
		return nil, eris.Wrapf(err, "rest: list results for run %s", runID)
	}
	return out, nil
}

func (s *RESTStore) GetResult(ctx context.Context, resultID string) (*model.ResultRecord, error) {
	q := url.Values{"id": {"eq." + resultID}, "select": {"*"}}
	var out []model.ResultRecord
	if err := s.do(ctx, http.MethodGet, "search_results", q, nil, "", &out); err != nil {
		return nil, eris.Wrapf(err, "rest: get result %s", resultID)
	}
	if len(out) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "rest: get result %s", resultID)
	}
	return &out[0], nil
}

func (s *RESTStore) SetReview(ctx context.Context, resultID string, review model.ReviewState) (*model.ResultRecord, error) {
	if !review.Valid() {
		return nil, eris.Errorf("rest: invalid review state %q", review)
	}
	q := url.Values{"id": {"eq." + resultID}}
	body := map[string]model.ReviewState{"review": review}
	var updated []model.ResultRecord
	if err := s.do(ctx, http.MethodPatch, "search_results", q, body, preferRepresentation, &updated); err != nil {
		return nil, eris.Wrapf(err, "rest: set review %s", resultID)
	}
	if len(updated) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "rest: result %s", resultID)
	}
	return &updated[0], nil
}

func (s *RESTStore) SaveValidation(ctx context.Context, o model.ValidationOutcome) error {
	if o.ResultID == "" {
		return eris.New("rest: save validation: missing result id")
	}
	row := validationRow{
		ID:        uuid.New().String(),
		ResultID:  o.ResultID,
		Status:    o.ValidationStatus,
		Score:     o.ValidationScore,
		Outcome:   o,
		CreatedAt: time.Now().UTC(),
	}
	return eris.Wrapf(s.do(ctx, http.MethodPost, "validations", nil, row, preferInsert, nil),
		"rest: insert validation for %s", o.ResultID)
}

func (s *RESTStore) ListValidations(ctx context.Context, resultID string) ([]model.ValidationOutcome, error) {
	q := url.Values{
		"result_id": {"eq." + resultID},
		"select":    {"outcome"},
		"order":     {"created_at.desc"},
	}
	var rows []validationRow
	if err := s.do(ctx, http.MethodGet, "validations", q, nil, "", &rows); err != nil {
		return nil, eris.Wrapf(err, "rest: list validations for %s", resultID)
	}
	out := make([]model.ValidationOutcome, len(rows))
	for i, r := range rows {
		out[i] = r.Outcome
	}
	return out, nil
}

const (
	// Inserts carry client-generated ids, so a retried POST that already
	// landed is ignored instead of failing on the primary key.
	preferInsert         = "return=minimal,resolution=ignore-duplicates"
	preferRepresentation = "return=representation"
)

// do sends one request, retrying transient failures, and decodes a 2xx JSON
// body into out when out is non-nil.
func (s *RESTStore) do(ctx context.Context, method, table string, q url.Values, body any, prefer string, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return eris.Wrapf(err, "rest: marshal %s body", table)
		}
	}

	endpoint := s.baseURL + "/" + table
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	op := "rest: " + strings.ToLower(method) + " " + table

	respBody, err := resilience.Retry(ctx, s.policy, op, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, eris.Wrap(err, "rest: create request")
		}
		req.Header.Set("apikey", s.key)
		req.Header.Set("Authorization", "Bearer "+s.key)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if prefer != "" {
			req.Header.Set("Prefer", prefer)
		}

		resp, err := s.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "rest: send request")
		}
		defer resp.Body.Close() //nolint:errcheck

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "rest: read response")
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &resilience.StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(data)}
		}
		return data, nil
	})
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	return eris.Wrapf(json.Unmarshal(respBody, out), "rest: decode %s response", table)
}
