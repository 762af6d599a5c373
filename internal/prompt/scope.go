package prompt

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/convocatoriaspro/convocatorias/internal/catalog"
	"github.com/convocatoriaspro/convocatorias/internal/textnorm"
)

// ScopeKind is the geographic reach a prompt asks the model to cover.
type ScopeKind string

const (
	ScopeNational      ScopeKind = "national"
	ScopeRegional      ScopeKind = "regional"
	ScopeInternational ScopeKind = "international"
	// ScopeDefault covers Chile plus international calls open to Chileans.
	ScopeDefault ScopeKind = "default"
)

// Scope is the outcome of scanning a query for location terms.
type Scope struct {
	Kind    ScopeKind `json:"kind"`
	Country string    `json:"country,omitempty"`
	Region  string    `json:"region,omitempty"`
}

// DetectScope scans query for country names, then Chilean regions, then
// international tokens. The first match wins.
func DetectScope(cat *catalog.Catalog, query string) Scope {
	folded := " " + textnorm.Fold(query) + " "

	for _, c := range cat.Countries {
		if strings.Contains(folded, " "+c+" ") {
			return Scope{Kind: ScopeNational, Country: c}
		}
	}
	for _, r := range cat.Regions {
		for _, a := range r.Aliases {
			if strings.Contains(folded, a) {
				return Scope{Kind: ScopeRegional, Country: "chile", Region: r.Slug}
			}
		}
	}
	for _, tok := range cat.InternationalTokens {
		if strings.Contains(folded, tok) {
			return Scope{Kind: ScopeInternational}
		}
	}
	return Scope{Kind: ScopeDefault, Country: "chile"}
}

// clause renders the geographic instruction appended to a prompt.
func (s Scope) clause() string {
	switch s.Kind {
	case ScopeNational:
		return "ALCANCE: convocatorias nacionales de " + countryName(s.Country) + "."
	case ScopeRegional:
		if s.Region == "" {
			return "ALCANCE: convocatorias regionales y nacionales de Chile."
		}
		return "ALCANCE: convocatorias de la región " + s.Region + " (Chile), incluyendo fondos regionales (GORE) y programas nacionales con foco regional."
	case ScopeInternational:
		return "ALCANCE: convocatorias internacionales abiertas a postulantes chilenos (fundaciones, organismos multilaterales, cooperación internacional)."
	default:
		return "ALCANCE: convocatorias de Chile y convocatorias internacionales abiertas a postulantes chilenos."
	}
}

// countryName capitalizes a folded country name. An empty name means Chile.
func countryName(c string) string {
	c = strings.TrimSpace(c)
	if c == "" {
		return "Chile"
	}
	r, size := utf8.DecodeRuneInString(c)
	return string(unicode.ToUpper(r)) + c[size:]
}
