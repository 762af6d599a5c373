package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convocatoriaspro/convocatorias/internal/catalog"
	"github.com/convocatoriaspro/convocatorias/internal/model"
	"github.com/convocatoriaspro/convocatorias/internal/textnorm"
)

func TestFallback(t *testing.T) {
	cat := catalog.Default()

	tests := []struct {
		name      string
		query     string
		wantCount int
	}{
		{"single_keyword", "innovación", 1},
		{"multiple_keywords", "fondos culturales regionales", 2},
		{"no_keywords", "TIC", 1},
		{"empty", "", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := newTestNormalizer().Fallback(tt.query)
			require.Len(t, recs, tt.wantCount)

			keywords := textnorm.Keywords(tt.query)
			for _, r := range recs {
				assert.True(t, r.IsSynthetic)
				assert.Contains(t, cat.FallbackOrganizations, r.Organization)
				assert.Equal(t, cat.FallbackSourceURL, r.SourceURL)
				assert.Equal(t, model.SeeOfficialRules, r.Requirements)
				assert.Equal(t, syntheticScore, r.ReliabilityScore)
				require.Len(t, r.Tags, 1)
				if len(keywords) > 0 {
					assert.True(t, textnorm.ContainsAny(r.Title, keywords))
					assert.True(t, textnorm.ContainsAny(r.Description, keywords))
				}

				d, err := time.Parse(dateLayout, r.Deadline)
				require.NoError(t, err)
				days := int(d.Sub(fixedNow.Truncate(24*time.Hour)).Hours() / 24)
				assert.GreaterOrEqual(t, days, 30)
				assert.LessOrEqual(t, days, 120)
			}
		})
	}
}

func TestFallback_DeterministicWithSeed(t *testing.T) {
	a := newTestNormalizer().Fallback("fondos culturales regionales")
	b := newTestNormalizer().Fallback("fondos culturales regionales")
	assert.Equal(t, a, b)
}

func TestFallback_NoFallbackOrganizations(t *testing.T) {
	cat := catalog.Default()
	cat.FallbackOrganizations = nil
	recs := NewNormalizer(cat).Fallback("innovación")
	require.Len(t, recs, 1)
	assert.Equal(t, model.NotSpecified, recs[0].Organization)
}
