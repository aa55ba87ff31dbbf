// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package models

import "time"

// APIResponse is the envelope of every JSON API response.
type APIResponse struct {
	// Success is false exactly when Error is set.
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError is a machine-readable code plus a human-readable message.
type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIMeta describes how a response was produced.
type APIMeta struct {
	RequestID  string          `json:"request_id,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	DurationMS int64           `json:"duration_ms,omitempty"`
	Source     string          `json:"source,omitempty"`
	Pagination *PaginationInfo `json:"pagination,omitempty"`
}

// PaginationInfo describes one page of a list.
type PaginationInfo struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPaginationInfo computes the page count for total items.
func NewPaginationInfo(page, limit, total int) *PaginationInfo {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return &PaginationInfo{Page: page, Limit: limit, Total: total, TotalPages: pages}
}
