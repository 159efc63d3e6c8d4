package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messagesModerated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_messages_moderated_total",
	Help: "Number of messages run through the moderation pipeline, by tier and source",
}, []string{"tier", "source"})

var enforcementActions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_enforcement_actions_total",
	Help: "Number of enforcement decisions, by action and outcome",
}, []string{"action", "outcome"})
