// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

/*
Package middleware provides HTTP middleware shared by the REST router.

Every middleware has the chi signature func(http.Handler) http.Handler so it
can be mounted with r.Use:

	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)

	r.Route("/api/results", func(r chi.Router) {
	    r.Use(middleware.Compression)
	})

RequestID propagates or generates an X-Request-ID and stores it in the
logging context so every log line of a request carries request_id.
PrometheusMetrics labels requests with the matched chi route pattern rather
than the raw path to keep label cardinality bounded.
*/
package middleware
