// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/crowdwatch/internal/logging"
	"github.com/tomtom215/crowdwatch/internal/metrics"
	"github.com/tomtom215/crowdwatch/internal/models"
	"github.com/tomtom215/crowdwatch/internal/store"
)

// MirrorCameraID is the camera recorded on mirrored detection records.
const MirrorCameraID = "main-camera"

// MirrorFiles is the filesystem side of a mirror run.
type MirrorFiles interface {
	ListFiles() ([]models.ResultFile, error)
	ReadDetections(name string) (*models.DetectionRecord, error)
	ReadForecast(name string) (*models.ForecastRecord, error)
}

// MirrorSink receives mirrored records. Existing filenames are reported as
// store.ErrDuplicate.
type MirrorSink interface {
	InsertDetectionIfAbsent(ctx context.Context, rec *models.DetectionRecord) error
	InsertForecastIfAbsent(ctx context.Context, rec *models.ForecastRecord) error
}

// Mirror copies every result file into the store. Running it again only
// skips what is already stored.
type Mirror struct {
	files MirrorFiles
	sink  MirrorSink
}

// NewMirror creates a mirror job.
func NewMirror(files MirrorFiles, sink MirrorSink) *Mirror {
	return &Mirror{files: files, sink: sink}
}

// MirrorCounts tallies one result type.
type MirrorCounts struct {
	Uploaded int `json:"uploaded"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// MirrorFailure names a file that could not be mirrored.
type MirrorFailure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// MirrorReport is the outcome of a mirror run.
type MirrorReport struct {
	Detection  MirrorCounts    `json:"detections"`
	Forecast   MirrorCounts    `json:"forecasts"`
	Failures   []MirrorFailure `json:"failures,omitempty"`
	DryRun     bool            `json:"dryRun"`
	Success    bool            `json:"success"`
	DurationMS int64           `json:"durationMs"`
}

// Run mirrors every listed file. A failure on one file is recorded and the
// run continues. With dryRun set, files are read and validated but nothing is
// written; they are counted as uploaded.
func (m *Mirror) Run(ctx context.Context, dryRun bool) (MirrorReport, error) {
	start := time.Now()
	report := MirrorReport{DryRun: dryRun}

	files, err := m.files.ListFiles()
	if err != nil {
		return report, fmt.Errorf("list result files: %w", err)
	}
	logging.Info().Int("files", len(files)).Bool("dry_run", dryRun).Msg("Mirroring result files into the store")

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		counts := &report.Detection
		if f.Type == models.ResultTypeForecast {
			counts = &report.Forecast
		}

		outcome, err := m.mirrorOne(ctx, f, dryRun)
		metrics.RecordMirrorItem(string(f.Type), outcome)
		switch outcome {
		case "uploaded":
			counts.Uploaded++
		case "skipped":
			counts.Skipped++
		default:
			counts.Failed++
			report.Failures = append(report.Failures, MirrorFailure{Filename: f.Filename, Error: err.Error()})
			logging.Warn().Err(err).Str("file", f.Filename).Msg("Failed to mirror result file")
		}
	}

	report.Success = len(report.Failures) == 0
	took := time.Since(start)
	report.DurationMS = took.Milliseconds()
	logging.Info().
		Int("detections_uploaded", report.Detection.Uploaded).
		Int("forecasts_uploaded", report.Forecast.Uploaded).
		Int("skipped", report.Detection.Skipped+report.Forecast.Skipped).
		Int("failed", len(report.Failures)).
		Dur("took", took).
		Msg("Mirror run complete")
	return report, nil
}

func (m *Mirror) mirrorOne(ctx context.Context, f models.ResultFile, dryRun bool) (string, error) {
	var err error
	switch f.Type {
	case models.ResultTypeDetection:
		var rec *models.DetectionRecord
		rec, err = m.files.ReadDetections(f.Filename)
		if err == nil && !dryRun {
			rec.CameraID = MirrorCameraID
			err = m.sink.InsertDetectionIfAbsent(ctx, rec)
		}
	case models.ResultTypeForecast:
		var rec *models.ForecastRecord
		rec, err = m.files.ReadForecast(f.Filename)
		if err == nil {
			err = rec.Validate()
		}
		if err == nil && !dryRun {
			err = m.sink.InsertForecastIfAbsent(ctx, rec)
		}
	default:
		err = fmt.Errorf("unknown result type %q", f.Type)
	}

	switch {
	case err == nil:
		return "uploaded", nil
	case errors.Is(err, store.ErrDuplicate):
		return "skipped", nil
	default:
		return "failed", err
	}
}
