package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for the booking engine.
type BookingMetrics struct {
	attemptsTotal *prometheus.CounterVec
	slotQueries   prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careline",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking engine operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		slotQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "careline",
			Subsystem: "booking",
			Name:      "slot_queries_total",
			Help:      "Total availability queries",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.attemptsTotal, m.slotQueries)
	return m
}

func (m *BookingMetrics) ObserveAttempt(operation, outcome string) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *BookingMetrics) ObserveSlotQuery() {
	if m == nil {
		return
	}
	m.slotQueries.Inc()
}

// ConversationMetrics exposes counters/histograms for the dialogue workflow.
type ConversationMetrics struct {
	turnsTotal    *prometheus.CounterVec
	stepsPerTurn  prometheus.Histogram
	toolCalls     *prometheus.CounterVec
	reasoningTime prometheus.Histogram
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careline",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Conversation turns by outcome",
		}, []string{"outcome"}),
		stepsPerTurn: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "careline",
			Subsystem: "conversation",
			Name:      "steps_per_turn",
			Help:      "Reasoning/tool iterations consumed per turn",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16},
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careline",
			Subsystem: "conversation",
			Name:      "tool_calls_total",
			Help:      "Tool executions by tool name and outcome",
		}, []string{"tool", "outcome"}),
		reasoningTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "careline",
			Subsystem: "conversation",
			Name:      "reasoning_seconds",
			Help:      "Latency of reasoning service calls",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.stepsPerTurn, m.toolCalls, m.reasoningTime)
	return m
}

func (m *ConversationMetrics) ObserveTurn(outcome string, steps int) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
	m.stepsPerTurn.Observe(float64(steps))
}

func (m *ConversationMetrics) ObserveToolCall(tool, outcome string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
}

func (m *ConversationMetrics) ObserveReasoningLatency(seconds float64) {
	if m == nil {
		return
	}
	m.reasoningTime.Observe(seconds)
}
