package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/convocatoriaspro/convocatorias/internal/model"
)

func TestComputeRunStats(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	done := created.Add(4 * time.Second)
	later := created.Add(8 * time.Second)

	runs := []model.SearchRun{
		{Status: model.RunStatusCompleted, ResultCount: 5, CreatedAt: created, CompletedAt: &done},
		{Status: model.RunStatusCompleted, ResultCount: 3, Degraded: true, CreatedAt: created, CompletedAt: &later},
		{Status: model.RunStatusFailed, CreatedAt: created, CompletedAt: &done},
		{Status: model.RunStatusProcessing, CreatedAt: created},
	}

	s := computeRunStats(runs)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Completed)
	assert.Equal(t, 1, s.Degraded)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Open)
	assert.Equal(t, 8, s.Results)
	assert.InDelta(t, 16.0/3.0, s.AvgDurSecs, 0.001)
}

func TestComputeRunStats_Empty(t *testing.T) {
	assert.Equal(t, runStats{}, computeRunStats(nil))
}

func TestFormatRunsList(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	done := created.Add(90 * time.Second)
	runs := []model.SearchRun{
		{
			ID:          "0b7d5c4e-1111-2222-3333-444444444444",
			Query:       model.SearchQuery{Text: "fondos concursables para emprendedores de la región del Biobío"},
			Strategy:    model.StrategySmart,
			Status:      model.RunStatusCompleted,
			ResultCount: 7,
			Degraded:    true,
			CreatedAt:   created,
			CompletedAt: &done,
		},
		{ID: "short", Query: model.SearchQuery{Text: "becas"}, Strategy: model.StrategySingle, Status: model.RunStatusPending, CreatedAt: created},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	out := buf.String()

	assert.Contains(t, out, "0b7d5c4e ")
	assert.NotContains(t, out, "0b7d5c4e-1111")
	assert.Contains(t, out, "fondos concursables para em...")
	assert.Contains(t, out, "completed*")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "2025-03-01 12:00")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 4)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(lines[3]), "-"))
}

func TestFormatRunStats(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, runStats{Total: 3, Completed: 2, Failed: 1, AvgDurSecs: 2.5})
	out := buf.String()
	assert.Contains(t, out, "Total runs:")
	assert.Contains(t, out, "Avg duration:")
	assert.Contains(t, out, "2.5s")

	buf.Reset()
	formatRunStats(&buf, runStats{})
	assert.NotContains(t, buf.String(), "Avg duration")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abcdefgh", truncateID("abcdefghijk"))
	assert.Equal(t, "abc", truncateID("abc"))
}
