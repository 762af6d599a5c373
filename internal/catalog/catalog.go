// Package catalog holds the reference data used to scope prompts, normalize
// model output and validate sources. A Catalog is read-only after Load.
package catalog

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/convocatoriaspro/convocatorias/internal/textnorm"
)

//go:embed default.yaml
var defaultYAML []byte

// Organization is a known funding body and the phrases that identify it.
type Organization struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

// Region is a Chilean region keyed by slug.
type Region struct {
	Slug    string   `yaml:"slug"`
	Aliases []string `yaml:"aliases"`
}

// Catalog is the full reference data set.
type Catalog struct {
	Organizations         []Organization `yaml:"organizations"`
	RelevanceKeywords     []string       `yaml:"relevance_keywords"`
	Regions               []Region       `yaml:"regions"`
	Countries             []string       `yaml:"countries"`
	InternationalTokens   []string       `yaml:"international_tokens"`
	FallbackOrganizations []string       `yaml:"fallback_organizations"`
	FallbackSourceURL     string         `yaml:"fallback_source_url"`
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(eris.Wrap(err, "catalog: embedded default is invalid"))
	}
	return c
}

// Load reads a catalog from path, or returns the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML, folds every alias and validates the result.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "catalog: unmarshal")
	}
	c.fold()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects catalogs missing data the pipeline depends on.
func (c *Catalog) Validate() error {
	switch {
	case len(c.Organizations) == 0:
		return eris.New("catalog: organizations is empty")
	case len(c.RelevanceKeywords) == 0:
		return eris.New("catalog: relevance_keywords is empty")
	case len(c.FallbackOrganizations) == 0:
		return eris.New("catalog: fallback_organizations is empty")
	case c.FallbackSourceURL == "":
		return eris.New("catalog: fallback_source_url is empty")
	}
	return nil
}

// fold normalizes every match phrase so lookups compare folded text on both sides.
func (c *Catalog) fold() {
	for i := range c.Organizations {
		c.Organizations[i].Aliases = foldAll(append([]string{c.Organizations[i].Name}, c.Organizations[i].Aliases...))
	}
	for i := range c.Regions {
		c.Regions[i].Aliases = foldAll(c.Regions[i].Aliases)
	}
	c.RelevanceKeywords = foldAll(c.RelevanceKeywords)
	c.Countries = foldAll(c.Countries)
	c.InternationalTokens = foldAll(c.InternationalTokens)
}

func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		f := textnorm.Fold(s)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// MatchOrganization returns the canonical name of the known funding body
// mentioned in text, if any.
func (c *Catalog) MatchOrganization(text string) (string, bool) {
	folded := " " + textnorm.Fold(text) + " "
	for _, o := range c.Organizations {
		for _, a := range o.Aliases {
			if containsWord(folded, a) {
				return o.Name, true
			}
		}
	}
	return "", false
}

// OrganizationsIn returns every known funding body mentioned in text, in
// catalog order.
func (c *Catalog) OrganizationsIn(text string) []string {
	folded := " " + textnorm.Fold(text) + " "
	var out []string
	for _, o := range c.Organizations {
		for _, a := range o.Aliases {
			if containsWord(folded, a) {
				out = append(out, o.Name)
				break
			}
		}
	}
	return out
}

// containsWord expects padded, folded haystack text so word boundaries are spaces.
func containsWord(padded, phrase string) bool {
	return phrase != "" && strings.Contains(padded, " "+phrase+" ")
}
