package services

import "github.com/prometheus/client_golang/prometheus"

var (
	scoreCalculations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctei_score_calculations_total",
			Help: "Project score calculations by result.",
		},
		[]string{"result"},
	)
	projectTotalScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ctei_project_total_score",
			Help:    "Distribution of calculated project total scores.",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 85, 100},
		},
	)
	alertsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctei_alerts_created_total",
			Help: "Alerts created by category.",
		},
		[]string{"category"},
	)
	productsEnriched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctei_products_enriched_total",
			Help: "Products updated with bibliometric data, by provider.",
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(scoreCalculations, projectTotalScore, alertsCreated, productsEnriched)
}
