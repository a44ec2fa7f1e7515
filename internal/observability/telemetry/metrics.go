package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Métricas de negócio
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hiya_turns_total",
		Help: "Total de turnos de voz processados",
	}, []string{"outcome", "intent"})

	TurnLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hiya_turn_latency_seconds",
		Help:    "Latência total de um turno",
		Buckets: []float64{.1, .25, .5, 1, 2, 4, 8, 16, 32},
	})

	StageLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hiya_stage_latency_seconds",
		Help:    "Latência por estágio do orquestrador",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	ClassificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hiya_classifications_total",
		Help: "Total de classificações de intenção",
	}, []string{"provider", "intent"})

	ClarificationRounds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hiya_clarification_rounds",
		Help:    "Rodada de esclarecimento em que o turno terminou",
		Buckets: []float64{0, 1, 2, 3, 4},
	})

	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hiya_tool_calls_total",
		Help: "Total de chamadas de ferramentas",
	}, []string{"tool", "status"})

	ToolRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hiya_tool_retries_total",
		Help: "Total de novas tentativas de ferramentas",
	}, []string{"tool"})

	// Métricas de infraestrutura
	LedgerAppendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hiya_ledger_append_failures_total",
		Help: "Falhas ao gravar turnos no ledger",
	})

	SynthesisFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hiya_synthesis_failures_total",
		Help: "Falhas de síntese de voz",
	})

	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hiya_active_voice_streams",
		Help: "Conexões WebSocket de voz ativas",
	})

	DatabaseLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hiya_database_latency_seconds",
		Help:    "Latência de queries no banco",
		Buckets: prometheus.DefBuckets,
	})
)
