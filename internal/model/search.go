package model

import (
	"strings"
	"time"
)

// RunStatus represents the current state of a search run.
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusProcessing RunStatus = "processing"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// IsTerminal reports whether a run in this status can no longer change.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// Strategy selects how the orchestrator talks to the LLM providers.
type Strategy string

const (
	// StrategySingle issues one call that returns fully detailed JSON.
	StrategySingle Strategy = "single"
	// StrategySmart drafts candidate names with a fast model, then asks a
	// stronger model to fill in details for exactly those candidates.
	StrategySmart Strategy = "smart"
)

// ParseStrategy maps free text to a Strategy. Unknown values return ok=false.
func ParseStrategy(s string) (Strategy, bool) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategySingle:
		return StrategySingle, true
	case StrategySmart, "two_step", "two-step":
		return StrategySmart, true
	default:
		return "", false
	}
}

// Filters narrows a search. Every field is optional.
type Filters struct {
	Sector       string `json:"sector,omitempty"`
	Location     string `json:"location,omitempty"`
	MinAmount    string `json:"min_amount,omitempty"`
	MaxAmount    string `json:"max_amount,omitempty"`
	DeadlineFrom string `json:"deadline_from,omitempty"`
	DeadlineTo   string `json:"deadline_to,omitempty"`
	FundType     string `json:"fund_type,omitempty"`
}

// IsEmpty reports whether no filter is set.
func (f Filters) IsEmpty() bool {
	return f == Filters{}
}

// SearchQuery is the user's free-text query plus optional filters.
type SearchQuery struct {
	Text    string  `json:"query"`
	Filters Filters `json:"filters"`
}

// SearchRun records one execution of a search query.
type SearchRun struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id,omitempty"`
	Query       SearchQuery `json:"query"`
	Strategy    Strategy    `json:"strategy"`
	Status      RunStatus   `json:"status"`
	ResultCount int         `json:"result_count"`
	Degraded    bool        `json:"degraded"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// RunCompletion carries the terminal state written to a run.
type RunCompletion struct {
	Status      RunStatus
	ResultCount int
	Degraded    bool
	Error       string
}
