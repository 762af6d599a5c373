// Package prompt builds the instructions sent to the LLM providers.
package prompt

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/convocatoriaspro/convocatorias/internal/catalog"
	"github.com/convocatoriaspro/convocatorias/internal/model"
)

// Variant selects the prompt template.
type Variant string

const (
	// VariantSingle asks for a fully detailed JSON array in one call.
	VariantSingle Variant = "single"
	// VariantNames asks for a bullet list of "Name – Organization" pairs.
	VariantNames Variant = "names"
	// VariantDetail turns a candidate list into strict JSON.
	VariantDetail Variant = "detail"
)

// Context carries per-call inputs beyond the query itself.
type Context struct {
	Variant Variant
	// CandidateList is the verbatim output of the names step. Required for VariantDetail.
	CandidateList string
	// Scope overrides keyword-based scope detection when non-nil.
	Scope *Scope
}

// Builder renders prompts. Every prompt carries a nonce and a timestamp and
// asks for results that differ per call.
type Builder struct {
	cat   *catalog.Catalog
	nonce func() string
	now   func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithNonce overrides the request nonce source.
func WithNonce(fn func() string) Option {
	return func(b *Builder) { b.nonce = fn }
}

// WithClock overrides the clock used for the request timestamp.
func WithClock(fn func() time.Time) Option {
	return func(b *Builder) { b.now = fn }
}

// NewBuilder creates a Builder over the given catalog.
func NewBuilder(cat *catalog.Catalog, opts ...Option) *Builder {
	b := &Builder{
		cat:   cat,
		nonce: randomNonce,
		now:   time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Scope returns the geographic scope detected for a query.
func (b *Builder) Scope(query string) Scope {
	return DetectScope(b.cat, query)
}

// Build renders the prompt for q according to c.Variant.
func (b *Builder) Build(q model.SearchQuery, c Context) string {
	scope := b.Scope(q.Text)
	if c.Scope != nil {
		scope = *c.Scope
	}
	query := strings.TrimSpace(q.Text)
	filters := filterClause(q.Filters)
	nonce, stamp := b.nonce(), b.now().UTC().Format(time.RFC3339)

	switch c.Variant {
	case VariantNames:
		return fmt.Sprintf(namesPrompt, query, scope.clause(), filters, nonce, stamp)
	case VariantDetail:
		return fmt.Sprintf(detailPrompt, query, strings.TrimSpace(c.CandidateList), scope.clause(), filters,
			recordSchema, model.NotAvailable, model.NotAvailable, nonce, stamp)
	default:
		return fmt.Sprintf(singlePrompt, query, scope.clause(), filters, recordSchema, model.NotAvailable, nonce, stamp)
	}
}

// ParseText renders the prompt that extracts one record from pasted text.
func (b *Builder) ParseText(text string) string {
	return fmt.Sprintf(parseTextPrompt, strings.TrimSpace(text), model.NotAvailable)
}

func filterClause(f model.Filters) string {
	if f.IsEmpty() {
		return ""
	}
	var parts []string
	add := func(label, v string) {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, label+": "+v)
		}
	}
	add("Sector", f.Sector)
	add("Ubicación", f.Location)
	add("Monto mínimo", f.MinAmount)
	add("Monto máximo", f.MaxAmount)
	add("Cierre desde", f.DeadlineFrom)
	add("Cierre hasta", f.DeadlineTo)
	add("Tipo de fondo", f.FundType)
	if len(parts) == 0 {
		return ""
	}
	return "FILTROS: " + strings.Join(parts, "; ") + "."
}

func randomNonce() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf[:])
}
