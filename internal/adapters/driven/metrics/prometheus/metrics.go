// Package prometheus records finsight operational metrics with the
// Prometheus client and serves them over HTTP.
package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
)

// Ensure Metrics implements the interface.
var _ driven.Metrics = (*Metrics)(nil)

const namespace = "finsight"

// Metrics holds the collectors. Each instance owns its registry so tests
// and embedded servers never collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	retrievals      prometheus.Histogram
	retrievedChunks prometheus.Histogram

	generations      *prometheus.CounterVec
	generationTime   *prometheus.HistogramVec
	tokens           *prometheus.CounterVec
	generationCostUS *prometheus.CounterVec

	citations    prometheus.Counter
	uncitedLines prometheus.Counter

	evalUnits    *prometheus.CounterVec
	evalUnitTime *prometheus.HistogramVec

	indexedChunks prometheus.Counter
}

// New creates the collectors and registers them, with the Go runtime
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		retrievals: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Retrieval latency, embedding included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		retrievedChunks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieved_chunks",
			Help:      "Chunks returned per retrieval.",
			Buckets:   prometheus.LinearBuckets(0, 4, 8),
		}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Answer generations by model and status.",
		}, []string{"model", "status"}),
		generationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Generation latency including retries.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"model"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Tokens consumed by model and direction.",
		}, []string{"model", "direction"}),
		generationCostUS: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_cost_usd_total",
			Help:      "Estimated generation spend in USD.",
		}, []string{"model"}),
		citations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "citations_total",
			Help:      "Citations resolved in answers.",
		}),
		uncitedLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uncited_sentences_total",
			Help:      "Answer sentences no chunk supported.",
		}),
		evalUnits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eval_units_total",
			Help:      "Finished evaluation pairs by model and outcome.",
		}, []string{"model", "outcome"}),
		evalUnitTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "eval_unit_duration_seconds",
			Help:      "Evaluation pair latency, judge included.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"model"}),
		indexedChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexed_chunks_total",
			Help:      "Chunks embedded and written to the index.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.retrievals, m.retrievedChunks,
		m.generations, m.generationTime, m.tokens, m.generationCostUS,
		m.citations, m.uncitedLines,
		m.evalUnits, m.evalUnitTime,
		m.indexedChunks,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRetrieval records one retrieval.
func (m *Metrics) ObserveRetrieval(d time.Duration, chunks int) {
	m.retrievals.Observe(d.Seconds())
	m.retrievedChunks.Observe(float64(chunks))
}

// ObserveGeneration records one generation, its tokens and its cost.
func (m *Metrics) ObserveGeneration(model string, d time.Duration, inputTokens, outputTokens int, cost float64, err error) {
	status := "ok"
	if err != nil {
		status = string(domain.KindOf(err))
	}
	m.generations.WithLabelValues(model, status).Inc()
	m.generationTime.WithLabelValues(model).Observe(d.Seconds())
	m.tokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	m.tokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	if cost > 0 {
		m.generationCostUS.WithLabelValues(model).Add(cost)
	}
}

// ObserveCitations records resolved citations and uncited sentences.
func (m *Metrics) ObserveCitations(cited, gaps int) {
	m.citations.Add(float64(cited))
	m.uncitedLines.Add(float64(gaps))
}

// ObserveEvalUnit records one finished evaluation pair.
func (m *Metrics) ObserveEvalUnit(model string, d time.Duration, outcome string) {
	m.evalUnits.WithLabelValues(model, outcome).Inc()
	m.evalUnitTime.WithLabelValues(model).Observe(d.Seconds())
}

// ObserveIndexed records chunks written for one document.
func (m *Metrics) ObserveIndexed(chunks int) {
	m.indexedChunks.Add(float64(chunks))
}
