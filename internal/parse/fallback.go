package parse

import (
	"fmt"
	"strings"
	"time"

	"github.com/convocatoriaspro/convocatorias/internal/model"
	"github.com/convocatoriaspro/convocatorias/internal/textnorm"
)

const syntheticScore = 20

// Fallback builds one or two placeholder records for query. Every record is
// marked IsSynthetic and mentions the query text in its title and
// description.
func (n *Normalizer) Fallback(query string) []model.ResultRecord {
	q := strings.TrimSpace(query)
	if q == "" {
		q = "financiamiento disponible"
	}
	keywords := textnorm.Keywords(q)
	now := n.now()

	count := 1
	if len(keywords) >= 2 {
		count = 2
	}

	titles := []string{
		fmt.Sprintf("Programa de apoyo: %s", q),
		fmt.Sprintf("Fondo concursable %d: %s", now.Year(), q),
	}
	descriptions := []string{
		fmt.Sprintf("Resultado de referencia para \"%s\". No se obtuvo una respuesta válida del proveedor; verifique la convocatoria en la fuente oficial.", q),
		fmt.Sprintf("Posible línea de financiamiento relacionada con \"%s\". Información no verificada; consulte las bases oficiales.", q),
	}

	out := make([]model.ResultRecord, 0, count)
	for i := 0; i < count; i++ {
		org, days := n.pick()
		out = append(out, model.ResultRecord{
			Title:            titles[i],
			Organization:     org,
			Description:      descriptions[i],
			Amount:           model.VariableAmount,
			Deadline:         now.Add(time.Duration(days) * 24 * time.Hour).Format(dateLayout),
			Requirements:     model.SeeOfficialRules,
			SourceURL:        n.cat.FallbackSourceURL,
			Category:         model.DefaultCategory,
			Tags:             []string{q},
			ReliabilityScore: syntheticScore,
			Status:           model.DefaultStatus,
			IsSynthetic:      true,
		})
	}
	return out
}

// pick draws a fallback organization and a deadline offset of 30..120 days.
func (n *Normalizer) pick() (string, int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	org := model.NotSpecified
	if orgs := n.cat.FallbackOrganizations; len(orgs) > 0 {
		org = orgs[n.rnd.IntN(len(orgs))]
	}
	return org, 30 + n.rnd.IntN(91)
}
