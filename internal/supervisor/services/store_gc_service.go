// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package services

import (
	"context"
	"time"

	"github.com/tomtom215/crowdwatch/internal/logging"
)

// GarbageCollector is the value log GC of *store.Store.
type GarbageCollector interface {
	RunGC() error
}

// StoreGCService runs value log garbage collection every interval.
// A failed pass is logged and retried on the next tick.
type StoreGCService struct {
	gc       GarbageCollector
	interval time.Duration
}

// NewStoreGCService wraps gc. Intervals below one minute are raised to it.
func NewStoreGCService(gc GarbageCollector, interval time.Duration) *StoreGCService {
	if interval < time.Minute {
		interval = time.Minute
	}
	return &StoreGCService{gc: gc, interval: interval}
}

// Serve implements suture.Service.
func (s *StoreGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *StoreGCService) runOnce() {
	start := time.Now()
	if err := s.gc.RunGC(); err != nil {
		logging.Warn().Err(err).Msg("Store garbage collection failed")
		return
	}
	logging.Debug().Dur("duration", time.Since(start)).Msg("Store garbage collection finished")
}

// String implements fmt.Stringer.
func (s *StoreGCService) String() string { return "store-gc" }
