package model

import "time"

// Sentinel values used when the model leaves a field out or marks it unknown.
const (
	NotSpecified     = "No especificado"
	NotAvailable     = "No disponible en la fuente"
	SeeOfficialRules = "Ver bases oficiales"
	VariableAmount   = "Variable"
	DefaultCategory  = "General"
	DefaultStatus    = "open"
)

// ReviewState is the user's approve/reject decision on a result.
type ReviewState string

const (
	ReviewPending  ReviewState = "pending"
	ReviewApproved ReviewState = "approved"
	ReviewRejected ReviewState = "rejected"
)

// Valid reports whether r is a known review state.
func (r ReviewState) Valid() bool {
	switch r {
	case ReviewPending, ReviewApproved, ReviewRejected:
		return true
	}
	return false
}

// ResultRecord is one normalized convocatoria produced by a search.
type ResultRecord struct {
	ID               string      `json:"id,omitempty"`
	RunID            string      `json:"run_id,omitempty"`
	Title            string      `json:"title"`
	Organization     string      `json:"organization"`
	Description      string      `json:"description"`
	Amount           string      `json:"amount"`
	Deadline         string      `json:"deadline"`
	Requirements     string      `json:"requirements"`
	SourceURL        string      `json:"source_url"`
	Category         string      `json:"category"`
	Tags             []string    `json:"tags"`
	ReliabilityScore int         `json:"reliability_score"`
	Status           string      `json:"status"`
	IsSynthetic      bool        `json:"is_synthetic"`
	Review           ReviewState `json:"review,omitempty"`
	CreatedAt        time.Time   `json:"created_at,omitempty"`
}

// ClampScore bounds a score to [0,100].
func ClampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
