package validate

import "github.com/convocatoriaspro/convocatorias/internal/model"

// Score weights. Their sum exceeds 100; totals are clamped.
const (
	weightAccessible   = 20
	weightContent      = 20
	weightTitle        = 25
	weightOrganization = 20
	weightAmount       = 10
	weightDeadline     = 10
	weightRelevanceMax = 15

	// TitleThreshold is the similarity above which titles count as matching.
	TitleThreshold = 0.6

	verifiedMin = 70
	partialMin  = 40
)

// Score computes the weighted validation score of o, clamped to [0,100].
func Score(o model.ValidationOutcome) int {
	s := 0
	if o.URLAccessible {
		s += weightAccessible
	}
	if o.ContentExtracted {
		s += weightContent
	}
	if o.TitleMatch {
		s += weightTitle
	}
	if o.OrganizationMatch {
		s += weightOrganization
	}
	if o.AmountFound {
		s += weightAmount
	}
	if o.DeadlineFound {
		s += weightDeadline
	}
	s += model.ClampScore(o.ContentRelevance) * weightRelevanceMax / 100
	return model.ClampScore(s)
}

// Bucket maps a score to a validation status.
func Bucket(score int) model.ValidationStatus {
	switch {
	case score >= verifiedMin:
		return model.ValidationVerified
	case score >= partialMin:
		return model.ValidationPartial
	default:
		return model.ValidationFailed
	}
}

// RecommendedScore bounds a model-reported reliability score by the
// validation bucket: verified raises it to at least 85, partial keeps it
// within [60,84] and failed caps it at 50.
func RecommendedScore(reported int, status model.ValidationStatus) int {
	reported = model.ClampScore(reported)
	switch status {
	case model.ValidationVerified:
		return max(reported, 85)
	case model.ValidationPartial:
		return min(max(reported, 60), 84)
	default:
		return min(reported, 50)
	}
}
