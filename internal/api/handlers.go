package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/convocatoriaspro/convocatorias/internal/auth"
	"github.com/convocatoriaspro/convocatorias/internal/model"
	"github.com/convocatoriaspro/convocatorias/internal/search"
	"github.com/convocatoriaspro/convocatorias/internal/store"
)

type searchRequest struct {
	Query    string        `json:"query"`
	Filters  model.Filters `json:"filters"`
	Strategy string        `json:"strategy"`
}

type parseRequest struct {
	Text string `json:"text"`
}

type validateRequest struct {
	Records        []model.ResultRecord `json:"records"`
	RunID          string               `json:"run_id"`
	MaxConcurrent  int                  `json:"max_concurrent"`
	TimeoutSeconds int                  `json:"timeout_seconds"`
}

type validateResponse struct {
	Outcomes []model.ValidationOutcome `json:"outcomes"`
	Summary  model.ValidationSummary   `json:"summary"`
}

type reviewRequest struct {
	Review model.ReviewState `json:"review"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) createSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	strategy := model.StrategySingle
	if req.Strategy != "" {
		s, ok := model.ParseStrategy(req.Strategy)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_strategy", "strategy must be single or smart")
			return
		}
		strategy = s
	}

	id := identity(r)
	res, err := h.deps.Search.Search(r.Context(), id.UserID, model.SearchQuery{Text: req.Query, Filters: req.Filters}, strategy)
	switch {
	case errors.Is(err, search.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, "empty_query", "query is required")
		return
	case err != nil:
		zap.L().Error("api: search failed", zap.String("user_id", id.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search_failed", "search could not be completed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) listSearches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		UserID: identity(r).UserID,
		Status: model.RunStatus(q.Get("status")),
		Limit:  atoi(q.Get("limit")),
		Offset: atoi(q.Get("offset")),
	}

	runs, err := h.deps.Search.List(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "could not list searches")
		return
	}
	if runs == nil {
		runs = []model.SearchRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *handlers) getSearch(w http.ResponseWriter, r *http.Request) {
	res, ok := h.ownedRun(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ownedRun loads a run that belongs to the caller, writing the error
// response when it does not exist or belongs to someone else.
func (h *handlers) ownedRun(w http.ResponseWriter, r *http.Request, runID string) (*search.Result, bool) {
	res, err := h.deps.Search.Get(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && res.Run.UserID != identity(r).UserID) {
		writeError(w, http.StatusNotFound, "not_found", "search not found")
		return nil, false
	}
	if err != nil {
		zap.L().Error("api: get run", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "could not load search")
		return nil, false
	}
	return res, true
}

func (h *handlers) parseText(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	rec, err := h.deps.Search.ParseText(r.Context(), req.Text)
	switch {
	case errors.Is(err, search.ErrEmptyText):
		writeError(w, http.StatusBadRequest, "empty_text", "text is required")
		return
	case err != nil:
		zap.L().Error("api: parse text failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "parse_failed", "text could not be parsed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": rec})
}

func (h *handlers) validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	records := req.Records
	if req.RunID != "" {
		res, ok := h.ownedRun(w, r, req.RunID)
		if !ok {
			return
		}
		records = res.Results
	}
	switch {
	case len(records) == 0:
		writeError(w, http.StatusBadRequest, "no_records", "records or run_id is required")
		return
	case len(records) > maxValidationRecords:
		writeError(w, http.StatusBadRequest, "too_many_records",
			"at most "+strconv.Itoa(maxValidationRecords)+" records per request")
		return
	}

	concurrency := req.MaxConcurrent
	if concurrency <= 0 {
		concurrency = h.opts.ValidateConcurrency
	}
	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = h.opts.ValidateTimeout
	}

	outcomes := h.deps.Validator.ValidateBatch(r.Context(), records, concurrency, timeout)
	if req.RunID != "" {
		h.saveOutcomes(r, outcomes)
	}
	writeJSON(w, http.StatusOK, validateResponse{Outcomes: outcomes, Summary: model.Summarize(outcomes)})
}

// saveOutcomes persists outcomes for the results of a run the caller owns.
// Ids on client-supplied records are never trusted. Failures are logged; the
// caller still receives every outcome.
func (h *handlers) saveOutcomes(r *http.Request, outcomes []model.ValidationOutcome) {
	if h.deps.Validations == nil {
		return
	}
	for _, o := range outcomes {
		if o.ResultID == "" {
			continue
		}
		if err := h.deps.Validations.SaveValidation(r.Context(), o); err != nil {
			zap.L().Warn("api: save validation", zap.String("result_id", o.ResultID), zap.Error(err))
		}
	}
}

func (h *handlers) review(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	if !req.Review.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_review", "review must be pending, approved or rejected")
		return
	}

	rec, err := h.deps.Search.Review(r.Context(), identity(r).UserID, chi.URLParam(r, "id"), req.Review)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "result not found")
		return
	case err != nil:
		zap.L().Error("api: review", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "could not update result")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": rec})
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
