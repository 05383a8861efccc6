package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "patient_comm_query_duration_seconds",
			Help:    "Question answering duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"simplified"},
	)

	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patient_comm_queries_total",
			Help: "Total questions answered",
		},
		[]string{"status"},
	)

	DocumentsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "patient_comm_documents_ingested_total",
			Help: "Total documents ingested",
		},
	)

	ChunksIndexed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "patient_comm_chunks_indexed",
			Help: "Chunks currently held by the index",
		},
	)

	SimplifyAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "patient_comm_simplify_attempts",
			Help:    "Generation attempts per simplification",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	SimplifyTargetMet = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patient_comm_simplify_target_met_total",
			Help: "Simplifications by whether the readability target was met",
		},
		[]string{"met"},
	)

	AnswerGradeLevel = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "patient_comm_answer_grade_level",
			Help:    "Average grade level of returned answers",
			Buckets: []float64{4, 6, 8, 10, 12, 14, 16},
		},
	)

	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "patient_comm_embedding_cache_hits_total",
			Help: "Embedding cache hits",
		},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "patient_comm_embedding_cache_misses_total",
			Help: "Embedding cache misses",
		},
	)
)

func Init() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(DocumentsIngested)
	prometheus.MustRegister(ChunksIndexed)
	prometheus.MustRegister(SimplifyAttempts)
	prometheus.MustRegister(SimplifyTargetMet)
	prometheus.MustRegister(AnswerGradeLevel)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
