// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

// Package metrics holds the Prometheus collectors for Crowdwatch. All
// collectors are registered on the default registry through promauto and
// exposed by the /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdwatch_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crowdwatch_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crowdwatch_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	// Result watcher metrics
	ResultFilesIndexed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crowdwatch_result_files_indexed",
			Help: "Result files currently in the watcher index",
		},
		[]string{"type"},
	)

	ResultScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crowdwatch_result_scan_duration_seconds",
			Help:    "Duration of a results directory scan",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	ResultScanErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crowdwatch_result_scan_errors_total",
			Help: "Results directory scans that failed",
		},
	)

	ResultChangeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdwatch_result_change_events_total",
			Help: "Change events emitted by the results watcher",
		},
		[]string{"op", "type"},
	)

	ResultChangeEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crowdwatch_result_change_events_dropped_total",
			Help: "Change events dropped because a subscriber buffer was full",
		},
	)

	// Query layer metrics
	QuerySourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdwatch_query_source_failures_total",
			Help: "Backing source failures absorbed by the result query layer",
		},
		[]string{"source", "operation"},
	)

	QueryMergeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crowdwatch_query_merge_duration_seconds",
			Help:    "Duration of merged result listings, including both source fetches",
			Buckets: prometheus.DefBuckets,
		},
	)

	MirrorItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdwatch_mirror_items_total",
			Help: "Files processed by the results mirroring job",
		},
		[]string{"type", "outcome"}, // outcome: uploaded, skipped, failed
	)

	// Alerting metrics
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdwatch_alerts_created_total",
			Help: "Alerts created",
		},
		[]string{"type", "triggered_by"},
	)

	CrowdSamplesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crowdwatch_crowd_samples_total",
			Help: "Crowd samples accepted",
		},
	)

	// WebSocket metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crowdwatch_websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdwatch_websocket_messages_sent_total",
			Help: "WebSocket messages queued for delivery",
		},
		[]string{"type"},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crowdwatch_websocket_messages_received_total",
			Help: "WebSocket messages received from clients",
		},
	)

	WSRejectedConnections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdwatch_websocket_rejected_total",
			Help: "WebSocket connections rejected before upgrade",
		},
		[]string{"reason"},
	)

	WSClientsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crowdwatch_websocket_clients_dropped_total",
			Help: "Clients disconnected because their send buffer was full",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crowdwatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdwatch_circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker",
		},
		[]string{"name", "result"}, // result: success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdwatch_circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Event bridge metrics
	EventBusPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdwatch_eventbus_published_total",
			Help: "Events republished to the external message bus",
		},
		[]string{"subject", "result"},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordScan records one results directory scan.
func RecordScan(duration time.Duration, err error) {
	ResultScanDuration.Observe(duration.Seconds())
	if err != nil {
		ResultScanErrors.Inc()
	}
}

// SetIndexedFiles updates the per-type index size gauge.
func SetIndexedFiles(resultType string, n int) {
	ResultFilesIndexed.WithLabelValues(resultType).Set(float64(n))
}

// RecordChangeEvent counts one emitted watcher change event.
func RecordChangeEvent(op, resultType string) {
	ResultChangeEvents.WithLabelValues(op, resultType).Inc()
}

// RecordSourceFailure counts a backing source failure absorbed by a merge.
func RecordSourceFailure(source, operation string) {
	QuerySourceFailures.WithLabelValues(source, operation).Inc()
}

// RecordMirrorItem counts one file handled by the mirroring job.
func RecordMirrorItem(resultType, outcome string) {
	MirrorItems.WithLabelValues(resultType, outcome).Inc()
}

// RecordAlertCreated counts a created alert.
func RecordAlertCreated(alertType, triggeredBy string) {
	AlertsCreated.WithLabelValues(alertType, triggeredBy).Inc()
}

// RecordWSMessage counts a message queued for a client.
func RecordWSMessage(messageType string) {
	WSMessagesSent.WithLabelValues(messageType).Inc()
}

// RecordEventPublish counts a message bus publish attempt.
func RecordEventPublish(subject string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	EventBusPublished.WithLabelValues(subject, result).Inc()
}
