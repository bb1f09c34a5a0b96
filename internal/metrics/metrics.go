// Package metrics collects and exposes Prometheus metrics for the bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector counts workflow and gateway events.
type Collector struct {
	eraseRuns            *prometheus.CounterVec
	messagesDeleted      prometheus.Counter
	conversationsSkipped prometheus.Counter
	gatewayErrors        *prometheus.CounterVec
	promptOutcomes       *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		eraseRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telesweep_erase_runs_total",
			Help: "Erase workflow runs by terminal status.",
		}, []string{"status"}),
		messagesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telesweep_messages_deleted_total",
			Help: "Messages the service confirmed deleted.",
		}),
		conversationsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telesweep_conversations_skipped_total",
			Help: "Conversations skipped after a per-conversation failure.",
		}),
		gatewayErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telesweep_gateway_errors_total",
			Help: "Gateway call failures by plane.",
		}, []string{"plane"}),
		promptOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telesweep_prompt_outcomes_total",
			Help: "Interactive prompt resolutions by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(c.eraseRuns, c.messagesDeleted, c.conversationsSkipped, c.gatewayErrors, c.promptOutcomes)
	return c
}

// RecordEraseRun records one finished erase workflow.
func (c *Collector) RecordEraseRun(status string) {
	c.eraseRuns.WithLabelValues(status).Inc()
}

// RecordMessagesDeleted adds confirmed deletions.
func (c *Collector) RecordMessagesDeleted(n int) {
	c.messagesDeleted.Add(float64(n))
}

// RecordConversationSkipped records a conversation left untouched after a
// non-fatal failure.
func (c *Collector) RecordConversationSkipped() {
	c.conversationsSkipped.Inc()
}

// RecordGatewayError records a failed gateway call ("bot" or "session" plane).
func (c *Collector) RecordGatewayError(plane string) {
	c.gatewayErrors.WithLabelValues(plane).Inc()
}

// RecordPromptOutcome records a prompt resolution ("accepted", "timeout", "exhausted").
func (c *Collector) RecordPromptOutcome(outcome string) {
	c.promptOutcomes.WithLabelValues(outcome).Inc()
}
