// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package middleware

import (
	"compress/flate"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// compressibleTypes are the content types worth compressing. Result files
// and API envelopes are JSON.
var compressibleTypes = []string{
	"application/json",
	"text/plain",
}

// Compression gzips (or deflates) JSON responses for clients that accept
// it. WebSocket upgrades pass through untouched.
func Compression(next http.Handler) http.Handler {
	compressed := chimw.Compress(flate.DefaultCompression, compressibleTypes...)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})
}
