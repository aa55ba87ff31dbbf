// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tomtom215/crowdwatch/internal/validation"
)

func TestParsePagination(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query     string
		wantPage  int
		wantLimit int
		wantErr   bool
	}{
		{query: "", wantPage: 1, wantLimit: 20},
		{query: "page=3&limit=50", wantPage: 3, wantLimit: 50},
		{query: "limit=100", wantPage: 1, wantLimit: 100},
		{query: "page=0", wantErr: true},
		{query: "limit=0", wantErr: true},
		{query: "limit=101", wantErr: true},
		{query: "page=abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			page, err := parsePagination(r)
			if tt.wantErr {
				var verr *validation.RequestValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("err = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if page.Page != tt.wantPage || page.Limit != tt.wantLimit {
				t.Errorf("page = %+v", page)
			}
		})
	}
}

func TestTimeRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query   string
		wantErr bool
	}{
		{query: ""},
		{query: "from=2026-03-01T00:00:00Z&to=2026-03-02T00:00:00Z"},
		{query: "from=2026-03-02T00:00:00Z&to=2026-03-01T00:00:00Z", wantErr: true},
		{query: "from=yesterday", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			_, _, err := timeRange(r)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"username":"alice","password":"secret"}`},
		{name: "empty body fails required", body: "", wantErr: true},
		{name: "malformed", body: `{"username":`, wantErr: true},
		{name: "too large", body: `{"username":"` + strings.Repeat("a", maxBodyBytes) + `"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var req LoginRequest
			err := decodeJSON(r, &req)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	var cleanup CleanupRequest
	if err := decodeJSON(r, &cleanup); err != nil || cleanup.MaxFiles != nil {
		t.Errorf("empty optional body: err = %v, req = %+v", err, cleanup)
	}
}
