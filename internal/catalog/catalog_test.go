package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	c := Default()
	assert.NotEmpty(t, c.Organizations)
	assert.Contains(t, c.RelevanceKeywords, "convocatoria")
	assert.Contains(t, c.Countries, "espana")
	assert.Equal(t, "https://www.chileatiende.gob.cl", c.FallbackSourceURL)

	// Names are folded into their own alias list.
	assert.Contains(t, c.Organizations[0].Aliases, "corfo")
}

func TestMatchOrganization(t *testing.T) {
	t.Parallel()

	c := Default()

	name, ok := c.MatchOrganization("Postula al fondo de la Corporación de Fomento")
	require.True(t, ok)
	assert.Equal(t, "CORFO", name)

	name, ok = c.MatchOrganization("Programa Start-Up Chile 2025")
	require.True(t, ok)
	assert.Equal(t, "Start-Up Chile", name)

	_, ok = c.MatchOrganization("financiamiento para la agricultura")
	assert.False(t, ok, "aliases must match whole words")
}

func TestOrganizationsIn(t *testing.T) {
	t.Parallel()

	got := Default().OrganizationsIn("Convocatoria conjunta ANID y CORFO, con apoyo de Sercotec")
	assert.Equal(t, []string{"CORFO", "ANID", "SERCOTEC"}, got)
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	yaml := `
organizations:
  - name: Fondo Test
    aliases: [fondo test]
relevance_keywords: [Postulación]
fallback_organizations: [Fondo Test]
fallback_source_url: https://example.org
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"postulacion"}, c.RelevanceKeywords)
	assert.Equal(t, "https://example.org", c.FallbackSourceURL)
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	t.Parallel()

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().FallbackSourceURL, c.FallbackSourceURL)
}

func TestParseValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"no organizations", `relevance_keywords: [a]`, "organizations is empty"},
		{"no keywords", "organizations: [{name: X}]", "relevance_keywords is empty"},
		{"no fallback orgs", "organizations: [{name: X}]\nrelevance_keywords: [beca]", "fallback_organizations is empty"},
		{"no fallback url", "organizations: [{name: X}]\nrelevance_keywords: [beca]\nfallback_organizations: [X]", "fallback_source_url is empty"},
		{"bad yaml", "organizations: [", "unmarshal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog: read")
}
