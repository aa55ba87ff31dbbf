// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

// Package models defines the records served by Crowdwatch: detection and
// forecast result payloads written by the external ML pipeline, and the
// alert, camera, action, crowd sample and user records owned by the store.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// ResultType identifies a result file family.
type ResultType string

const (
	ResultTypeDetection ResultType = "detection"
	ResultTypeForecast  ResultType = "forecast"
)

// Valid reports whether t is a known result type.
func (t ResultType) Valid() bool {
	return t == ResultTypeDetection || t == ResultTypeForecast
}

// ParseResultType accepts "detection"/"detections" and "forecast"/"forecasts".
func ParseResultType(s string) (ResultType, bool) {
	switch strings.ToLower(s) {
	case "detection", "detections":
		return ResultTypeDetection, true
	case "forecast", "forecasts":
		return ResultTypeForecast, true
	default:
		return "", false
	}
}

// ResultFile is one result JSON artifact in the results directory.
type ResultFile struct {
	Filename    string     `json:"filename"`
	Type        ResultType `json:"type"`
	FrameNumber int        `json:"frameNumber"`
	SizeBytes   int64      `json:"size"`
	CreatedAt   time.Time  `json:"created"`
	ModifiedAt  time.Time  `json:"modified"`
}

// timestampLayouts are tried in order when decoding pipeline timestamps,
// which may or may not carry a zone offset.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Timestamp decodes ISO-8601 strings with or without an offset. Values
// without an offset are taken as UTC.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// Epoch milliseconds are also seen from some pipeline versions.
		var ms int64
		if errNum := json.Unmarshal(b, &ms); errNum != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// BoundingBox is one detected head/person region in a frame.
type BoundingBox struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
}

// Frame is one per-frame observation in a detections file.
type Frame struct {
	Timestamp      Timestamp     `json:"timestamp"`
	Frame          int           `json:"frame"`
	Count          int           `json:"count" validate:"gte=0"`
	AverageCount   float64       `json:"average_count" validate:"gte=0"`
	Alert          bool          `json:"alert"`
	BoundingBoxes  []BoundingBox `json:"boundingBoxes,omitempty"`
	ProcessingTime float64       `json:"processingTime,omitempty"`
	ModelVersion   string        `json:"modelVersion,omitempty"`
}

// DetectionSource is where a detection run's frames came from.
type DetectionSource string

const (
	SourceVideo  DetectionSource = "video"
	SourceCamera DetectionSource = "camera"
	SourceFile   DetectionSource = "file"
)

// DetectionRecord is one detections file's payload plus derived summary.
type DetectionRecord struct {
	ID          string           `json:"id"`
	Filename    string           `json:"filename"`
	Source      DetectionSource  `json:"source"`
	CameraID    string           `json:"cameraId,omitempty"`
	Detections  []Frame          `json:"detections"`
	Summary     DetectionSummary `json:"summary"`
	ProcessedAt time.Time        `json:"processedAt"`
	FileSize    int64            `json:"fileSize"`
	FrameCount  int              `json:"frameCount"`
}

// Finalize recomputes the derived fields. It must be called before a
// record is persisted or returned.
func (r *DetectionRecord) Finalize() {
	r.Summary = ComputeDetectionSummary(r.Detections)
	r.FrameCount = len(r.Detections)
	if r.Source == "" {
		r.Source = SourceFile
	}
}

// Default forecast model parameters.
const (
	DefaultWindowSize = 30
	DefaultSteps      = 10

	// PredictionInterval is the spacing between successive forecast steps.
	PredictionInterval = 5 * time.Second
)

// ForecastRecord is one forecast file's payload plus derived summary.
type ForecastRecord struct {
	ID                string          `json:"id"`
	Filename          string          `json:"filename"`
	Timestamp         Timestamp       `json:"timestamp"`
	Frame             int             `json:"frame"`
	LSTMPredictions   []float64       `json:"lstm_predictions"`
	LinearPredictions []float64       `json:"linear_predictions"`
	WindowSize        int             `json:"window_size"`
	Steps             int             `json:"steps"`
	Summary           ForecastSummary `json:"summary"`
	ProcessedAt       time.Time       `json:"processedAt"`
	FileSize          int64           `json:"fileSize"`
}

// Finalize applies parameter defaults and recomputes the summary.
func (r *ForecastRecord) Finalize() {
	if r.WindowSize == 0 {
		r.WindowSize = DefaultWindowSize
	}
	if r.Steps == 0 {
		r.Steps = DefaultSteps
	}
	r.Summary = ComputeForecastSummary(r.LSTMPredictions, r.LinearPredictions)
}

// Validate checks that both prediction sequences have exactly Steps values.
func (r *ForecastRecord) Validate() error {
	if len(r.LSTMPredictions) != r.Steps {
		return fmt.Errorf("lstm_predictions has %d values, want %d", len(r.LSTMPredictions), r.Steps)
	}
	if len(r.LinearPredictions) != r.Steps {
		return fmt.Errorf("linear_predictions has %d values, want %d", len(r.LinearPredictions), r.Steps)
	}
	return nil
}

// PredictionTimeframes returns the instant each step predicts, spaced
// PredictionInterval apart starting one interval after the base timestamp.
func (r *ForecastRecord) PredictionTimeframes() []time.Time {
	n := len(r.LSTMPredictions)
	if len(r.LinearPredictions) > n {
		n = len(r.LinearPredictions)
	}
	out := make([]time.Time, n)
	for i := range out {
		out[i] = r.Timestamp.Add(time.Duration(i+1) * PredictionInterval)
	}
	return out
}

// PredictionPoint is one step of a forecast.
type PredictionPoint struct {
	Step   int       `json:"step"`
	Time   time.Time `json:"time"`
	LSTM   float64   `json:"lstm"`
	Linear float64   `json:"linear"`
}

// PredictionsInRange returns steps start..end inclusive, clamped to the
// sequence bounds. An inverted range yields nothing.
func (r *ForecastRecord) PredictionsInRange(start, end int) []PredictionPoint {
	times := r.PredictionTimeframes()
	if start < 0 {
		start = 0
	}
	if end >= len(times) {
		end = len(times) - 1
	}
	if start > end {
		return nil
	}
	out := make([]PredictionPoint, 0, end-start+1)
	for i := start; i <= end; i++ {
		p := PredictionPoint{Step: i, Time: times[i]}
		if i < len(r.LSTMPredictions) {
			p.LSTM = r.LSTMPredictions[i]
		}
		if i < len(r.LinearPredictions) {
			p.Linear = r.LinearPredictions[i]
		}
		out = append(out, p)
	}
	return out
}

// FramesInRange returns detection frames whose frame index lies in [lo, hi].
func (r *DetectionRecord) FramesInRange(lo, hi int) []Frame {
	var out []Frame
	for _, f := range r.Detections {
		if f.Frame >= lo && f.Frame <= hi {
			out = append(out, f)
		}
	}
	return out
}
