// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/crowdwatch/internal/cache"
)

// ResultCache is the maintenance side of *cache.Cache.
type ResultCache interface {
	Run(ctx context.Context, interval time.Duration) error
	InvalidateOnChange(ctx context.Context, source cache.ChangeSource) error
}

// CacheService expires cache entries every interval and clears the cache
// whenever a result file changes.
type CacheService struct {
	cache    ResultCache
	source   cache.ChangeSource
	interval time.Duration
}

// NewCacheService wraps c. A nil source disables invalidation.
func NewCacheService(c ResultCache, source cache.ChangeSource, interval time.Duration) *CacheService {
	return &CacheService{cache: c, source: source, interval: interval}
}

// Serve implements suture.Service. If either loop fails the other is
// stopped and the error returned.
func (s *CacheService) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.cache.Run(ctx, s.interval) })
	if s.source != nil {
		g.Go(func() error { return s.cache.InvalidateOnChange(ctx, s.source) })
	}
	return g.Wait()
}

// String implements fmt.Stringer.
func (s *CacheService) String() string { return "result-cache" }
