package assistant

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var assistantQuestions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_assistant_questions_total",
	Help: "Questions sent to the assistant, by outcome (ok, failed)",
}, []string{"outcome"})
