// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package services

import (
	"context"
	"fmt"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/crowdwatch/internal/logging"
	"github.com/tomtom215/crowdwatch/internal/query"
)

// Mirrorer runs a mirroring pass.
type Mirrorer interface {
	Run(ctx context.Context, dryRun bool) (query.MirrorReport, error)
}

// MirrorOnceService mirrors the results directory into the store once.
// Per-file failures are reported in the log; only a failure to list the
// directory makes the supervisor retry.
type MirrorOnceService struct {
	mirror Mirrorer
}

// NewMirrorOnceService wraps m.
func NewMirrorOnceService(m Mirrorer) *MirrorOnceService {
	return &MirrorOnceService{mirror: m}
}

// Serve implements suture.Service.
func (s *MirrorOnceService) Serve(ctx context.Context) error {
	report, err := s.mirror.Run(ctx, false)
	if err != nil {
		return fmt.Errorf("mirror on start: %w", err)
	}
	ev := logging.Info()
	if !report.Success {
		ev = logging.Warn()
	}
	ev.Int("detections_uploaded", report.Detection.Uploaded).
		Int("forecasts_uploaded", report.Forecast.Uploaded).
		Int("failures", len(report.Failures)).
		Int64("duration_ms", report.DurationMS).
		Msg("Startup mirror finished")
	return suture.ErrDoNotRestart
}

// String implements fmt.Stringer.
func (s *MirrorOnceService) String() string { return "mirror-on-start" }
