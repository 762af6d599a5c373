// Package validate cross-checks result records against the pages at their
// source URLs and produces a heuristic confidence score.
package validate

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/agext/levenshtein"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/convocatoriaspro/convocatorias/internal/catalog"
	"github.com/convocatoriaspro/convocatorias/internal/model"
	"github.com/convocatoriaspro/convocatorias/internal/textnorm"
)

const (
	// DefaultConcurrency is the batch size when the caller gives none.
	DefaultConcurrency = 3
	// MaxConcurrency bounds caller-supplied batch sizes.
	MaxConcurrency = 10
	// DefaultTimeout is the per-URL fetch timeout when the caller gives none.
	DefaultTimeout = 10 * time.Second

	defaultUserAgent = "Mozilla/5.0 (compatible; ConvocatoriasProValidator/1.0)"
	defaultPause     = time.Second
	maxBodyBytes     = 2 << 20
	minContentChars  = 100
)

// ErrNonPublicAddress is returned when a source URL resolves to a loopback,
// private, link-local or otherwise non-routable address.
var ErrNonPublicAddress = eris.New("validate: non-public address")

// Validator fetches source pages and scores records against them.
type Validator struct {
	cat          *catalog.Catalog
	client       *http.Client
	userAgent    string
	pause        time.Duration
	allowPrivate bool
}

// Option configures a Validator.
type Option func(*Validator)

// WithHTTPClient overrides the http.Client used for fetches.
func WithHTTPClient(hc *http.Client) Option {
	return func(v *Validator) { v.client = hc }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(v *Validator) { v.userAgent = ua }
}

// WithBatchPause sets the pause between batches.
func WithBatchPause(d time.Duration) Option {
	return func(v *Validator) { v.pause = d }
}

// WithPrivateNetworks lets the default client dial loopback and private
// addresses. It has no effect when WithHTTPClient supplies the client.
func WithPrivateNetworks(allow bool) Option {
	return func(v *Validator) { v.allowPrivate = allow }
}

// New creates a Validator over the given catalog.
func New(cat *catalog.Catalog, opts ...Option) *Validator {
	v := &Validator{
		cat:       cat,
		userAgent: defaultUserAgent,
		pause:     defaultPause,
	}
	for _, o := range opts {
		o(v)
	}
	if v.client == nil {
		dialer := &net.Dialer{Timeout: 10 * time.Second}
		if !v.allowPrivate {
			dialer.Control = publicOnly
		}
		v.client = &http.Client{
			Transport: &http.Transport{
				DialContext:         dialer.DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	return v
}

// publicOnly runs after name resolution, so it also covers redirects and
// hostnames that resolve to internal addresses.
func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return eris.Wrapf(err, "validate: dial address %q", address)
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return eris.Wrapf(err, "validate: dial address %q", address)
	}
	ip = ip.Unmap()
	if !ip.IsGlobalUnicast() || ip.IsPrivate() {
		return eris.Wrapf(ErrNonPublicAddress, "validate: dial %s", ip)
	}
	return nil
}

// ValidateBatch validates records in batches of concurrency, pausing between
// batches. The output has one outcome per record, in input order. A failure
// on one record never affects the others.
func (v *Validator) ValidateBatch(ctx context.Context, records []model.ResultRecord, concurrency int, timeout time.Duration) []model.ValidationOutcome {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	concurrency = min(concurrency, MaxConcurrency)
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	out := make([]model.ValidationOutcome, len(records))
	for start := 0; start < len(records); start += concurrency {
		if start > 0 && !v.wait(ctx) {
			for i := start; i < len(records); i++ {
				out[i] = failed(records[i], ctx.Err(), 0)
			}
			break
		}

		end := min(start+concurrency, len(records))
		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				out[i] = v.Validate(ctx, records[i], timeout)
				return nil
			})
		}
		_ = g.Wait()
	}

	summary := model.Summarize(out)
	zap.L().Info("validate: batch complete",
		zap.Int("total", summary.Total),
		zap.Int("verified", summary.Verified),
		zap.Int("partial", summary.Partial),
		zap.Int("failed", summary.Failed),
	)
	return out
}

func (v *Validator) wait(ctx context.Context) bool {
	if v.pause <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(v.pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Validate checks one record. Errors are reported in the outcome.
func (v *Validator) Validate(ctx context.Context, rec model.ResultRecord, timeout time.Duration) model.ValidationOutcome {
	start := time.Now()
	elapsed := func() int64 { return time.Since(start).Milliseconds() }

	if err := checkURL(rec.SourceURL); err != nil {
		return failed(rec, err, elapsed())
	}

	body, err := v.fetch(ctx, rec.SourceURL, timeout)
	if err != nil {
		zap.L().Debug("validate: fetch failed", zap.String("url", rec.SourceURL), zap.Error(err))
		return failed(rec, err, elapsed())
	}

	o := model.ValidationOutcome{
		ResultID:      rec.ID,
		SourceURL:     rec.SourceURL,
		URLAccessible: true,
	}

	text := stripHTML(body)
	folded := textnorm.Fold(text)
	o.ContentExtracted = len(text) >= minContentChars

	o.PageTitle = pageTitle(body)
	o.TitleSimilarity = titleSimilarity(rec.Title, o.PageTitle)
	o.TitleMatch = o.TitleSimilarity > TitleThreshold

	o.Organizations = v.cat.OrganizationsIn(text)
	o.OrganizationMatch = orgMatches(rec.Organization, folded, o.Organizations)

	o.Amounts = amounts(text)
	o.AmountFound = len(o.Amounts) > 0
	o.Dates = dates(text)
	o.DeadlineFound = len(o.Dates) > 0

	o.ContentRelevance = relevance(v.cat, folded)
	o.ValidationScore = Score(o)
	o.ValidationStatus = Bucket(o.ValidationScore)
	o.RecommendedScore = RecommendedScore(rec.ReliabilityScore, o.ValidationStatus)
	o.ProcessingTimeMs = elapsed()
	return o
}

func (v *Validator) fetch(ctx context.Context, target string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", eris.Wrap(err, "validate: create request")
	}
	req.Header.Set("User-Agent", v.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "es-CL,es;q=0.9,en;q=0.5")

	resp, err := v.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "validate: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", eris.Errorf("validate: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", eris.Wrap(err, "validate: read body")
	}
	return string(data), nil
}

func checkURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return eris.Wrapf(err, "validate: invalid url %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return eris.Errorf("validate: unsupported url scheme in %q", raw)
	}
	if u.Host == "" {
		return eris.Errorf("validate: url %q has no host", raw)
	}
	return nil
}

// titleSimilarity is the normalized Levenshtein similarity of the folded titles.
func titleSimilarity(claimed, page string) float64 {
	a, b := textnorm.Fold(claimed), textnorm.Fold(page)
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.Similarity(a, b, nil)
}

func failed(rec model.ResultRecord, err error, ms int64) model.ValidationOutcome {
	msg := "validation aborted"
	if err != nil {
		msg = err.Error()
	}
	return model.ValidationOutcome{
		ResultID:         rec.ID,
		SourceURL:        rec.SourceURL,
		ValidationStatus: model.ValidationFailed,
		RecommendedScore: RecommendedScore(rec.ReliabilityScore, model.ValidationFailed),
		Error:            msg,
		ProcessingTimeMs: ms,
	}
}
