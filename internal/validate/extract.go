package validate

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/convocatoriaspro/convocatorias/internal/catalog"
	"github.com/convocatoriaspro/convocatorias/internal/model"
	"github.com/convocatoriaspro/convocatorias/internal/textnorm"
)

const maxMatches = 10

var (
	scriptRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
	spaceRe  = regexp.MustCompile(`\s+`)

	amountRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:US\$|\$|CLP\s?|USD\s?|UF\s?)\s?\d{1,3}(?:[.,]\d{3})+(?:,\d+)?`),
		regexp.MustCompile(`(?i)(?:US\$|\$)\s?\d+\s?(?:millones|mil|MM)\b`),
		regexp.MustCompile(`(?i)hasta\s+(?:\$\s?)?\d[\d.,]*(?:\s*(?:millones|mil|UF|UTM|USD|pesos))?`),
		regexp.MustCompile(`(?i)\d[\d.,]*\s*(?:UF|UTM)\b`),
	}

	dateRes = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`),
		regexp.MustCompile(`(?i)\b\d{1,2}\s+de\s+(?:enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|setiembre|octubre|noviembre|diciembre)(?:\s+(?:de|del)\s+\d{4})?`),
		regexp.MustCompile(`(?i)\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4}\b`),
	}
)

// stripHTML drops script and style blocks, then every tag, and returns the
// unescaped text with whitespace collapsed.
func stripHTML(raw string) string {
	s := scriptRe.ReplaceAllString(raw, " ")
	s = styleRe.ReplaceAllString(s, " ")
	s = tagRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(html.UnescapeString(s), "\u00a0", " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// pageTitle returns the first non-empty <title>, <h1> or <h2> text.
func pageTitle(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return ""
	}
	for _, sel := range []string{"title", "h1", "h2"} {
		if t := strings.TrimSpace(spaceRe.ReplaceAllString(doc.Find(sel).First().Text(), " ")); t != "" {
			return t
		}
	}
	return ""
}

func amounts(text string) []string { return matchAll(amountRes, text) }

func dates(text string) []string { return matchAll(dateRes, text) }

func matchAll(res []*regexp.Regexp, text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, re := range res {
		for _, m := range re.FindAllString(text, -1) {
			m = strings.TrimSpace(m)
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
			if len(out) == maxMatches {
				return out
			}
		}
	}
	return out
}

// relevance scores 0-100 by the share of domain keywords present in text.
func relevance(cat *catalog.Catalog, folded string) int {
	if len(cat.RelevanceKeywords) == 0 {
		return 0
	}
	hits := 0
	for _, kw := range cat.RelevanceKeywords {
		if strings.Contains(folded, kw) {
			hits++
		}
	}
	return hits * 100 / len(cat.RelevanceKeywords)
}

// orgMatches reports whether the claimed organization appears in the page,
// either directly or through a catalog organization the page mentions.
func orgMatches(claimed, folded string, found []string) bool {
	c := textnorm.Fold(claimed)
	if c == "" || c == textnorm.Fold(model.NotSpecified) {
		return false
	}
	if strings.Contains(folded, c) {
		return true
	}
	for _, name := range found {
		n := textnorm.Fold(name)
		if strings.Contains(c, n) || strings.Contains(n, c) {
			return true
		}
	}
	return false
}
