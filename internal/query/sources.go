// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package query

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/tomtom215/crowdwatch/internal/models"
	"github.com/tomtom215/crowdwatch/internal/store"
)

// StoreSource is the persisted side of a query. Missing records are
// reported as store.ErrNotFound.
type StoreSource interface {
	ListResultMeta(ctx context.Context) ([]store.ResultMeta, error)
	GetResult(ctx context.Context, t models.ResultType, filename string) (json.RawMessage, error)
	Latest(ctx context.Context, t models.ResultType) (json.RawMessage, error)
	AllDetectionFrames(ctx context.Context, limit int) ([]models.Frame, error)
}

// FileSource is the filesystem side of a query. *results.Watcher satisfies
// it. Records come back finalized, with their summaries computed.
type FileSource interface {
	ListFiles() ([]models.ResultFile, error)
	LatestFile(t models.ResultType) (models.ResultFile, bool)
	ReadDetections(name string) (*models.DetectionRecord, error)
	ReadForecast(name string) (*models.ForecastRecord, error)
}

// StoreAdapter exposes a *store.Store as a StoreSource, routing every read
// through a circuit breaker.
type StoreAdapter struct {
	store   *store.Store
	breaker *store.Breaker
}

// NewStoreAdapter wraps s. A nil breaker gets a default one.
func NewStoreAdapter(s *store.Store, b *store.Breaker) *StoreAdapter {
	if b == nil {
		b = store.NewBreaker("result-store")
	}
	return &StoreAdapter{store: s, breaker: b}
}

// ListResultMeta implements StoreSource.
func (a *StoreAdapter) ListResultMeta(ctx context.Context) ([]store.ResultMeta, error) {
	return store.Run(a.breaker, func() ([]store.ResultMeta, error) {
		return a.store.ListResultMeta(ctx)
	})
}

// GetResult implements StoreSource.
func (a *StoreAdapter) GetResult(ctx context.Context, t models.ResultType, filename string) (json.RawMessage, error) {
	return store.Run(a.breaker, func() (json.RawMessage, error) {
		return a.store.GetResultRaw(ctx, t, filename)
	})
}

// Latest implements StoreSource.
func (a *StoreAdapter) Latest(ctx context.Context, t models.ResultType) (json.RawMessage, error) {
	return store.Run(a.breaker, func() (json.RawMessage, error) {
		var v interface{}
		var err error
		if t == models.ResultTypeForecast {
			v, err = a.store.LatestForecast(ctx)
		} else {
			v, err = a.store.LatestDetection(ctx)
		}
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
}

// AllDetectionFrames implements StoreSource.
func (a *StoreAdapter) AllDetectionFrames(ctx context.Context, limit int) ([]models.Frame, error) {
	return store.Run(a.breaker, func() ([]models.Frame, error) {
		return a.store.AllDetectionFrames(ctx, limit)
	})
}
