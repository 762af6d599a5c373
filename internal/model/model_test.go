package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   RunStatus
		want     string
		terminal bool
	}{
		{RunStatusPending, "pending", false},
		{RunStatusProcessing, "processing", false},
		{RunStatusCompleted, "completed", true},
		{RunStatusFailed, "failed", true},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Strategy
		ok   bool
	}{
		{"single", StrategySingle, true},
		{" SMART ", StrategySmart, true},
		{"two-step", StrategySmart, true},
		{"fastest", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseStrategy(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestClampScore(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0, ClampScore(-20))
	assert.Equal(t, 0, ClampScore(0))
	assert.Equal(t, 73, ClampScore(73))
	assert.Equal(t, 100, ClampScore(100))
	assert.Equal(t, 100, ClampScore(250))
}

func TestReviewStateValid(t *testing.T) {
	t.Parallel()
	assert.True(t, ReviewApproved.Valid())
	assert.True(t, ReviewRejected.Valid())
	assert.True(t, ReviewPending.Valid())
	assert.False(t, ReviewState("maybe").Valid())
}

func TestFiltersIsEmpty(t *testing.T) {
	t.Parallel()
	assert.True(t, Filters{}.IsEmpty())
	assert.False(t, Filters{Sector: "agro"}.IsEmpty())
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	s := Summarize([]ValidationOutcome{
		{ValidationStatus: ValidationVerified},
		{ValidationStatus: ValidationPartial},
		{ValidationStatus: ValidationFailed},
		{ValidationStatus: ValidationFailed},
	})
	assert.Equal(t, ValidationSummary{Total: 4, Verified: 1, Partial: 1, Failed: 2}, s)
}
