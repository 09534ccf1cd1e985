// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ClassifierDecisions counts relevance decisions by terminal gate
	ClassifierDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travel_classifier_decisions_total",
		Help: "Relevance classifier decisions by gate and result",
	}, []string{"gate", "result"})

	// MergeOutcomes counts itinerary merge results
	MergeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travel_merge_outcomes_total",
		Help: "Itinerary merge outcomes",
	}, []string{"outcome"})

	ExtractionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "travel_extraction_failures_total",
		Help: "Emails accepted by the classifier whose extraction failed",
	})

	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "travel_scan_duration_seconds",
		Help:    "Duration of a full inbox scan",
		Buckets: prometheus.DefBuckets,
	})

	LLMCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "travel_llm_call_duration_seconds",
		Help:    "Duration of LLM calls by provider and operation",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "operation"})
)

// RecordDecision increments the classifier counter
func RecordDecision(gate string, accepted bool) {
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	ClassifierDecisions.WithLabelValues(gate, result).Inc()
}

// RecordMerge increments the merge counter
func RecordMerge(outcome string) {
	MergeOutcomes.WithLabelValues(outcome).Inc()
}
