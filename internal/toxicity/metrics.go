package toxicity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var externalAPIDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "guardian_external_api_duration_sec",
	Help: "Duration of Gemini API calls (classifier and assistant)",
})

var externalAPICount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_external_api_count",
	Help: "Number of Gemini API calls (classifier and assistant), by HTTP status code",
}, []string{"status"})

var externalVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_external_verdicts_total",
	Help: "External classifier outcomes as seen by the pipeline (toxic, clean, failed, cached)",
}, []string{"outcome"})
