package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convocatoriaspro/convocatorias/internal/model"
	"github.com/convocatoriaspro/convocatorias/internal/resilience"
)

func newTestREST(t *testing.T, h http.HandlerFunc) *RESTStore {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewREST(srv.URL+"/rest/v1/", "service-key", WithRetryPolicy(resilience.Policy{
		Attempts:  3,
		BaseDelay: time.Millisecond,
		MaxDelay:  2 * time.Millisecond,
	}))
}

func TestREST_CreateRun(t *testing.T) {
	st := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/search_runs", r.URL.Path)
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		assert.Contains(t, r.Header.Get("Prefer"), "resolution=ignore-duplicates")

		var body model.SearchRun
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotEmpty(t, body.ID)
		assert.Equal(t, model.RunStatusPending, body.Status)
		assert.Equal(t, "becas", body.Query.Text)
		w.WriteHeader(http.StatusCreated)
	})

	run, err := st.CreateRun(context.Background(), model.SearchRun{
		UserID:   "u1",
		Query:    model.SearchQuery{Text: "becas"},
		Strategy: model.StrategySingle,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusPending, run.Status)
}

func TestREST_CompleteRun(t *testing.T) {
	tests := []struct {
		name    string
		patched string
		lookup  string
		wantErr error
	}{
		{name: "open run", patched: `[{"id":"r1","status":"completed"}]`},
		{name: "already finalized", patched: `[]`, lookup: `[{"id":"r1","status":"failed"}]`, wantErr: ErrRunFinalized},
		{name: "unknown run", patched: `[]`, lookup: `[]`, wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
				switch r.Method {
				case http.MethodPatch:
					assert.Equal(t, "eq.r1", r.URL.Query().Get("id"))
					assert.Equal(t, "not.in.(completed,failed)", r.URL.Query().Get("status"))
					assert.Equal(t, "return=representation", r.Header.Get("Prefer"))

					var patch map[string]any
					require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
					assert.Equal(t, "completed", patch["status"])
					assert.EqualValues(t, 3, patch["result_count"])
					assert.NotEmpty(t, patch["completed_at"])
					_, _ = w.Write([]byte(tt.patched))
				case http.MethodGet:
					_, _ = w.Write([]byte(tt.lookup))
				}
			})

			err := st.CompleteRun(context.Background(), "r1", model.RunCompletion{
				Status:      model.RunStatusCompleted,
				ResultCount: 3,
			})
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), err)
		})
	}
}

func TestREST_CompleteRun_RejectsNonTerminal(t *testing.T) {
	st := newTestREST(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	})
	err := st.CompleteRun(context.Background(), "r1", model.RunCompletion{Status: model.RunStatusProcessing})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not terminal")
}

func TestREST_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	st := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "eq.u1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "created_at.desc", r.URL.Query().Get("order"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[{"id":"r1","user_id":"u1","status":"pending","query":{"query":"becas","filters":{}}}]`))
	})

	runs, err := st.ListRuns(context.Background(), RunFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "becas", runs[0].Query.Text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestREST_PermanentErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	st := newTestREST(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"column does not exist"}`))
	})

	_, err := st.GetRun(context.Background(), "r1")
	require.Error(t, err)
	var se *resilience.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Contains(t, se.Body, "column does not exist")
	assert.Equal(t, int32(1), calls.Load())
}

func TestREST_SaveAndListResults(t *testing.T) {
	var saved []model.ResultRecord
	st := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/search_results", r.URL.Path)
		switch r.Method {
		case http.MethodPost:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&saved))
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			assert.Equal(t, "eq.r1", r.URL.Query().Get("run_id"))
			assert.Equal(t, "created_at.asc,id.asc", r.URL.Query().Get("order"))
			require.NoError(t, json.NewEncoder(w).Encode(saved))
		}
	})

	out, err := st.SaveResults(context.Background(), "r1", []model.ResultRecord{
		{Title: "Capital Semilla"},
		{Title: "Fondo Innova", Tags: []string{"innovación"}},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, model.ReviewPending, out[0].Review)
	assert.NotNil(t, out[0].Tags)
	assert.True(t, out[1].CreatedAt.After(out[0].CreatedAt))

	listed, err := st.ListResults(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "Capital Semilla", listed[0].Title)
	assert.Equal(t, "r1", listed[1].RunID)
}

func TestREST_SaveResults_EmptySkipsRequest(t *testing.T) {
	st := newTestREST(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	})
	out, err := st.SaveResults(context.Background(), "r1", nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestREST_GetResult(t *testing.T) {
	st := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/search_results", r.URL.Path)
		if r.URL.Query().Get("id") == "eq.missing" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"id":"res1","run_id":"run1","title":"Beca"}]`))
	})

	rec, err := st.GetResult(context.Background(), "res1")
	require.NoError(t, err)
	assert.Equal(t, "run1", rec.RunID)

	_, err = st.GetResult(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestREST_SetReview(t *testing.T) {
	st := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		if r.URL.Query().Get("id") == "eq.missing" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"id":"res1","title":"Beca","review":"approved"}]`))
	})

	rec, err := st.SetReview(context.Background(), "res1", model.ReviewApproved)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewApproved, rec.Review)

	_, err = st.SetReview(context.Background(), "missing", model.ReviewRejected)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = st.SetReview(context.Background(), "res1", model.ReviewState("maybe"))
	require.Error(t, err)
}

func TestREST_Validations(t *testing.T) {
	st := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/validations", r.URL.Path)
		switch r.Method {
		case http.MethodPost:
			var row validationRow
			require.NoError(t, json.NewDecoder(r.Body).Decode(&row))
			assert.Equal(t, "res1", row.ResultID)
			assert.Equal(t, model.ValidationPartial, row.Status)
			assert.Equal(t, 55, row.Score)
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			assert.Equal(t, "outcome", r.URL.Query().Get("select"))
			_, _ = w.Write([]byte(`[{"outcome":{"result_id":"res1","validation_score":55,"validation_status":"partial"}}]`))
		}
	})

	require.NoError(t, st.SaveValidation(context.Background(), model.ValidationOutcome{
		ResultID:         "res1",
		ValidationScore:  55,
		ValidationStatus: model.ValidationPartial,
	}))
	require.Error(t, st.SaveValidation(context.Background(), model.ValidationOutcome{}))

	got, err := st.ListValidations(context.Background(), "res1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 55, got[0].ValidationScore)
}
