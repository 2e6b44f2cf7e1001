package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chative",
		Subsystem: "orchestrator",
		Name:      "turns_total",
		Help:      "Generation turns by kind and outcome.",
	}, []string{"kind", "outcome"})

	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chative",
		Subsystem: "tools",
		Name:      "calls_total",
		Help:      "Tool invocations by tool name and outcome.",
	}, []string{"tool", "outcome"})

	EscalationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chative",
		Subsystem: "enquiries",
		Name:      "transitions_total",
		Help:      "Enquiry state transitions.",
	}, []string{"transition"})

	StepBudgetExceededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chative",
		Subsystem: "orchestrator",
		Name:      "step_budget_exceeded_total",
		Help:      "Generation passes terminated by the step budget.",
	})

	OutboundSendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chative",
		Subsystem: "dispatcher",
		Name:      "outbound_sends_total",
		Help:      "Outbound channel sends by kind and outcome.",
	}, []string{"kind", "outcome"})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chative",
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Inbound webhook events by type and disposition.",
	}, []string{"type", "disposition"})
)

// Handler exposes the default prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
