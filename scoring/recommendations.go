package scoring

import (
	"sort"

	"github.com/samber/lo"
)

// SummaryLimit ist die Anzahl Empfehlungen in Übersichten.
const SummaryLimit = 3

type advice struct {
	threshold   int
	critical    string
	improvement string
}

var adviceByCriterion = map[Criterion]advice{
	Completeness: {
		threshold:   80,
		critical:    "Complete la información básica del proyecto: resumen, metodología, fechas, institución y presupuesto están incompletos",
		improvement: "Revise los metadatos del proyecto y diligencie los campos faltantes",
	},
	Collaboration: {
		threshold:   60,
		critical:    "Vincule colaboradores al proyecto y asigne roles y permisos al equipo",
		improvement: "Amplíe el equipo con colaboradores de roles diferentes y distribuya permisos de edición y gestión",
	},
	Productivity: {
		threshold:   60,
		critical:    "Registre los productos generados por el proyecto; no hay suficientes productos para su tiempo de ejecución",
		improvement: "Aumente la generación de productos en relación con la duración del proyecto",
	},
	Impact: {
		threshold:   50,
		critical:    "Publique en revistas indexadas y registre DOI, factor de impacto y citaciones de los productos",
		improvement: "Fortalezca la difusión de los productos para aumentar citaciones e impacto",
	},
	Innovation: {
		threshold:   40,
		critical:    "Explore productos de desarrollo tecnológico: patentes, software o bases de datos",
		improvement: "Complemente las publicaciones con productos de innovación o transferencia tecnológica",
	},
	Timeline: {
		threshold:   70,
		critical:    "Actualice el cronograma: hay hitos vencidos sin completar",
		improvement: "Revise las fechas de los hitos pendientes para cumplir el cronograma",
	},
}

const generalAdvice = "Programe una revisión integral del proyecto con el equipo investigador"

// Recommend erzeugt geordnete Verbesserungsvorschläge. Jedes Kriterium unter
// seiner Schwelle liefert genau einen Vorschlag; unter der halben Schwelle den
// kritischen. Sortiert wird nach Gewicht mal Abstand zur Schwelle.
func Recommend(s Scores, total int, w Weights) []string {
	type item struct {
		text     string
		priority int
	}
	var items []item
	for _, c := range Criteria {
		a := adviceByCriterion[c]
		score := clamp(s.Get(c))
		if score >= a.threshold {
			continue
		}
		text := a.improvement
		if score*2 < a.threshold {
			text = a.critical
		}
		items = append(items, item{text: text, priority: w[c] * (a.threshold - score)})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].priority > items[j].priority
	})

	recs := lo.Map(items, func(it item, _ int) string { return it.text })
	if total < 50 {
		recs = append(recs, generalAdvice)
	}
	if recs == nil {
		recs = []string{}
	}
	return recs
}

// Threshold liefert die Empfehlungsschwelle eines Kriteriums.
func Threshold(c Criterion) int {
	return adviceByCriterion[c].threshold
}

// Top kürzt die Liste für Übersichten.
func Top(recs []string, n int) []string {
	if n < 0 {
		n = 0
	}
	return lo.Subset(recs, 0, uint(n))
}
