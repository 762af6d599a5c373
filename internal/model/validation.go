package model

// ValidationStatus buckets a validation score.
type ValidationStatus string

const (
	ValidationVerified ValidationStatus = "verified"
	ValidationPartial  ValidationStatus = "partial"
	ValidationFailed   ValidationStatus = "failed"
)

// ValidationOutcome is the result of cross-checking a record against the
// page at its source URL. It never mutates the record it was computed for.
type ValidationOutcome struct {
	ResultID          string           `json:"result_id,omitempty"`
	SourceURL         string           `json:"source_url"`
	URLAccessible     bool             `json:"url_accessible"`
	ContentExtracted  bool             `json:"content_extracted"`
	TitleMatch        bool             `json:"title_match"`
	TitleSimilarity   float64          `json:"title_similarity"`
	OrganizationMatch bool             `json:"organization_match"`
	AmountFound       bool             `json:"amount_found"`
	DeadlineFound     bool             `json:"deadline_found"`
	ContentRelevance  int              `json:"content_relevance"`
	ValidationScore   int              `json:"validation_score"`
	ValidationStatus  ValidationStatus `json:"validation_status"`
	RecommendedScore  int              `json:"recommended_score"`
	PageTitle         string           `json:"page_title,omitempty"`
	Organizations     []string         `json:"organizations,omitempty"`
	Amounts           []string         `json:"amounts,omitempty"`
	Dates             []string         `json:"dates,omitempty"`
	Error             string           `json:"error,omitempty"`
	ProcessingTimeMs  int64            `json:"processing_time_ms"`
}

// ValidationSummary tallies outcomes by status.
type ValidationSummary struct {
	Total    int `json:"total"`
	Verified int `json:"verified"`
	Partial  int `json:"partial"`
	Failed   int `json:"failed"`
}

// Summarize counts outcomes per status.
func Summarize(outcomes []ValidationOutcome) ValidationSummary {
	s := ValidationSummary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.ValidationStatus {
		case ValidationVerified:
			s.Verified++
		case ValidationPartial:
			s.Partial++
		default:
			s.Failed++
		}
	}
	return s
}
