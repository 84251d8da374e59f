// Package metrics exposes Prometheus instrumentation for the scrape and
// analysis pipeline on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/driftwatch/driftwatch/internal/models"
)

// Collector holds every pipeline metric. It implements the observer
// interfaces of the extraction chain, the analysis engine and the scrape
// orchestrator.
type Collector struct {
	registry *prometheus.Registry

	extractionAttempts *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	duplicatesSkipped  prometheus.Counter
	scrapeFailures     prometheus.Counter
	signalsCreated     prometheus.Counter
	momentumUpdates    prometheus.Counter
	modelLatency       *prometheus.HistogramVec
	modelTokens        *prometheus.CounterVec

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

// NewCollector constructs the collector with all metrics registered on a
// fresh private registry.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		extractionAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "driftwatch",
			Subsystem: "extraction",
			Name:      "attempts_total",
			Help:      "Extraction attempts by tier, platform and outcome.",
		}, []string{"tier", "platform", "outcome"}),
		extractionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "driftwatch",
			Subsystem: "extraction",
			Name:      "duration_seconds",
			Help:      "Latency distribution of extraction attempts per tier.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tier"}),
		duplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "driftwatch",
			Subsystem: "ingest",
			Name:      "duplicates_skipped_total",
			Help:      "Scraped content skipped because its hash was already stored.",
		}),
		scrapeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "driftwatch",
			Subsystem: "ingest",
			Name:      "scrape_failures_total",
			Help:      "Source scrapes that ended in a failed log.",
		}),
		signalsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "driftwatch",
			Subsystem: "analysis",
			Name:      "signals_created_total",
			Help:      "Signals created by the detection engine.",
		}),
		momentumUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "driftwatch",
			Subsystem: "analysis",
			Name:      "momentum_updates_total",
			Help:      "Momentum updates applied to signals.",
		}),
		modelLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "driftwatch",
			Subsystem: "model",
			Name:      "call_duration_seconds",
			Help:      "Latency distribution of model invocations per action.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"action", "outcome"}),
		modelTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "driftwatch",
			Subsystem: "model",
			Name:      "tokens_total",
			Help:      "Tokens consumed by model invocations.",
		}, []string{"action", "kind"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "driftwatch",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for inbound HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "driftwatch",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests.",
		}, []string{"method", "path", "status"}),
	}

	collectors := []prometheus.Collector{
		c.extractionAttempts,
		c.extractionDuration,
		c.duplicatesSkipped,
		c.scrapeFailures,
		c.signalsCreated,
		c.momentumUpdates,
		c.modelLatency,
		c.modelTokens,
		c.requestDuration,
		c.requestTotal,
	}
	for _, col := range collectors {
		if err := registry.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Handler returns an HTTP handler exposing the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveAttempt implements extraction.AttemptObserver.
func (c *Collector) ObserveAttempt(domain string, platform models.Platform, method models.ExtractionMethod, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.extractionAttempts.WithLabelValues(string(method), string(platform), outcome).Inc()
	c.extractionDuration.WithLabelValues(string(method)).Observe(duration.Seconds())
}

// ObserveModelCall implements analysis.ModelObserver.
func (c *Collector) ObserveModelCall(action string, duration time.Duration, usage models.TokenUsage, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.modelLatency.WithLabelValues(action, outcome).Observe(duration.Seconds())
	c.modelTokens.WithLabelValues(action, "prompt").Add(float64(usage.PromptTokens))
	c.modelTokens.WithLabelValues(action, "completion").Add(float64(usage.CompletionTokens))
}

// ObserveProjectScrape implements scheduler.RunObserver.
func (c *Collector) ObserveProjectScrape(result models.ProjectScrapeResult) {
	c.duplicatesSkipped.Add(float64(result.Duplicates))
	c.scrapeFailures.Add(float64(result.Failed))
}

// ObserveDetection implements the detection half of analysis.Observer.
func (c *Collector) ObserveDetection(result models.DetectionResult) {
	c.signalsCreated.Add(float64(result.SignalsDetected))
}

// ObserveMomentum implements the momentum half of analysis.Observer.
func (c *Collector) ObserveMomentum(result models.MomentumResult) {
	c.momentumUpdates.Add(float64(result.SignalsUpdated))
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		c.requestTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
