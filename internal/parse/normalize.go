package parse

import (
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/convocatoriaspro/convocatorias/internal/catalog"
	"github.com/convocatoriaspro/convocatorias/internal/model"
	"github.com/convocatoriaspro/convocatorias/internal/textnorm"
)

const (
	dateLayout      = "2006-01-02"
	defaultDeadline = 30 * 24 * time.Hour
)

// Field aliases accepted from the model, in lookup order.
var (
	titleKeys        = []string{"title", "titulo", "nombre", "name"}
	organizationKeys = []string{"organization", "organizacion", "organismo", "institucion", "entidad", "org"}
	descriptionKeys  = []string{"description", "descripcion", "resumen", "summary"}
	amountKeys       = []string{"amount", "monto", "financiamiento", "funding"}
	deadlineKeys     = []string{"deadline", "fecha_cierre", "fechaCierre", "fecha_limite", "fechaLimite", "closing_date", "closingDate", "plazo"}
	requirementKeys  = []string{"requirements", "requisitos"}
	sourceURLKeys    = []string{"source_url", "sourceUrl", "sourceURL", "url", "link", "enlace", "fuente"}
	categoryKeys     = []string{"category", "categoria", "sector", "tipo"}
	tagKeys          = []string{"tags", "etiquetas", "keywords"}
	reliabilityKeys  = []string{"reliability_score", "reliabilityScore", "confiabilidad", "score"}
	statusKeys       = []string{"status", "estado"}

	// Keys of a wrapping object that hold the record array.
	listKeys = []string{"convocatorias", "results", "resultados", "data"}
)

// Normalizer maps model output onto ResultRecords.
type Normalizer struct {
	cat       *catalog.Catalog
	now       func() time.Time
	relevance bool

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock sets the time source used for default deadlines.
func WithClock(fn func() time.Time) Option {
	return func(n *Normalizer) { n.now = fn }
}

// WithRand sets the random source used by the synthetic fallback.
func WithRand(r *rand.Rand) Option {
	return func(n *Normalizer) { n.rnd = r }
}

// WithRelevanceFilter drops records whose title and description mention no
// keyword of the query.
func WithRelevanceFilter(enabled bool) Option {
	return func(n *Normalizer) { n.relevance = enabled }
}

// NewNormalizer creates a Normalizer backed by cat.
func NewNormalizer(cat *catalog.Catalog, opts ...Option) *Normalizer {
	n := &Normalizer{
		cat: cat,
		now: time.Now,
		rnd: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)), //nolint:gosec
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Parse extracts and normalizes records from raw. It never panics; a
// Failed outcome carries the reason.
func (n *Normalizer) Parse(raw, query string) Outcome {
	if strings.TrimSpace(raw) == "" {
		return Failed{Raw: raw, Reason: "empty response"}
	}

	js, err := ExtractJSON(raw)
	if err != nil {
		return Failed{Raw: raw, Reason: err.Error()}
	}

	elems := recordElements(gjson.Parse(js))
	if len(elems) == 0 {
		return Failed{Raw: raw, Reason: "no records"}
	}

	records := make([]model.ResultRecord, 0, len(elems))
	for _, el := range elems {
		records = append(records, n.normalize(el, query))
	}

	if n.relevance {
		records = n.filterRelevant(records, query)
		if len(records) == 0 {
			return Failed{Raw: raw, Reason: "no relevant records"}
		}
	}

	return Parsed{Records: records}
}

// Records parses raw and falls back to synthetic records when parsing
// yields nothing. The result is never empty.
func (n *Normalizer) Records(raw, query string) []model.ResultRecord {
	switch out := n.Parse(raw, query).(type) {
	case Parsed:
		return out.Records
	case Failed:
		zap.L().Info("parse: using synthetic fallback",
			zap.String("reason", out.Reason),
			zap.Int("raw_len", len(out.Raw)),
		)
	}
	return n.Fallback(query)
}

// recordElements accepts a bare array, an object wrapping an array under a
// known key, or a single record object.
func recordElements(v gjson.Result) []gjson.Result {
	if v.IsArray() {
		return objects(v.Array())
	}
	if !v.IsObject() {
		return nil
	}
	for _, k := range listKeys {
		if list := v.Get(k); list.IsArray() {
			return objects(list.Array())
		}
	}
	if first(v, titleKeys...).Exists() {
		return []gjson.Result{v}
	}
	return nil
}

func objects(in []gjson.Result) []gjson.Result {
	out := make([]gjson.Result, 0, len(in))
	for _, el := range in {
		if el.IsObject() {
			out = append(out, el)
		}
	}
	return out
}

func (n *Normalizer) normalize(el gjson.Result, query string) model.ResultRecord {
	rec := model.ResultRecord{
		Title:        title(first(el, titleKeys...)),
		Organization: str(first(el, organizationKeys...)),
		Description:  str(first(el, descriptionKeys...)),
		Amount:       str(first(el, amountKeys...)),
		Deadline:     str(first(el, deadlineKeys...)),
		Requirements: str(first(el, requirementKeys...)),
		SourceURL:    str(first(el, sourceURLKeys...)),
		Category:     str(first(el, categoryKeys...)),
		Tags:         strList(first(el, tagKeys...)),
		Status:       str(first(el, statusKeys...)),
	}

	score, reported := coerceScore(first(el, reliabilityKeys...))
	if !reported {
		score = n.heuristicScore(rec)
	}
	rec.ReliabilityScore = model.ClampScore(score)

	if strings.TrimSpace(rec.Title) == "" {
		rec.Title = synthesizedTitle(query)
	}
	if rec.Organization == "" {
		rec.Organization = model.NotSpecified
	}
	if rec.Description == "" {
		rec.Description = model.NotAvailable
	}
	if rec.Amount == "" {
		rec.Amount = model.VariableAmount
	}
	if rec.Deadline == "" {
		rec.Deadline = n.now().Add(defaultDeadline).Format(dateLayout)
	}
	if rec.Requirements == "" {
		rec.Requirements = model.SeeOfficialRules
	}
	if rec.SourceURL == "" {
		rec.SourceURL = n.cat.FallbackSourceURL
	}
	if rec.Category == "" {
		rec.Category = model.DefaultCategory
	}
	if len(rec.Tags) == 0 && query != "" {
		rec.Tags = []string{query}
	}
	if rec.Status == "" {
		rec.Status = model.DefaultStatus
	}
	return rec
}

// heuristicScore rates a record the model did not score itself.
func (n *Normalizer) heuristicScore(rec model.ResultRecord) int {
	score := 40
	if rec.SourceURL != "" {
		score += 20
	}
	if _, ok := n.cat.MatchOrganization(rec.Organization); ok {
		score += 20
	}
	if _, err := time.Parse(dateLayout, rec.Deadline); err == nil {
		score += 10
	}
	return score
}

func (n *Normalizer) filterRelevant(records []model.ResultRecord, query string) []model.ResultRecord {
	keywords := textnorm.Keywords(query)
	if len(keywords) == 0 {
		return records
	}
	out := records[:0]
	for _, r := range records {
		if textnorm.ContainsAny(r.Title+" "+r.Description, keywords) {
			out = append(out, r)
		}
	}
	return out
}

func synthesizedTitle(query string) string {
	q := strings.TrimSpace(query)
	if q == "" {
		return "Convocatoria sin título"
	}
	return "Convocatoria: " + q
}

func first(el gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := el.Get(k); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

// title keeps string titles verbatim.
func title(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.String()
	}
	return str(v)
}

// str renders scalars as trimmed strings and arrays as "; "-joined text.
func str(v gjson.Result) string {
	switch {
	case !v.Exists(), v.Type == gjson.Null:
		return ""
	case v.IsArray():
		return strings.Join(strList(v), "; ")
	case v.IsObject():
		return strings.TrimSpace(v.Raw)
	case v.Type == gjson.Number:
		return v.Raw
	default:
		return strings.TrimSpace(v.String())
	}
}

// strList accepts a JSON array or a comma-separated string.
func strList(v gjson.Result) []string {
	var parts []string
	switch {
	case v.IsArray():
		for _, el := range v.Array() {
			parts = append(parts, str(el))
		}
	case v.Type == gjson.String:
		parts = strings.Split(v.String(), ",")
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// coerceScore accepts a number or a numeric string such as "85" or "85%".
func coerceScore(v gjson.Result) (int, bool) {
	switch v.Type {
	case gjson.Number:
		return roundScore(v.Float())
	case gjson.String:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v.String()), "%"))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return roundScore(f)
	}
	return 0, false
}

func roundScore(f float64) (int, bool) {
	if math.IsNaN(f) {
		return 0, false
	}
	switch {
	case f >= 100:
		return 100, true
	case f <= 0:
		return 0, true
	}
	return int(math.Round(f)), true
}
