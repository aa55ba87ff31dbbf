// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/crowdwatch/internal/models"
)

// ResultMeta is the listing entry kept alongside each result record so that
// listings never decode full payloads.
type ResultMeta struct {
	Filename    string            `json:"filename"`
	Type        models.ResultType `json:"type"`
	FrameNumber int               `json:"frameNumber"`
	SizeBytes   int64             `json:"size"`
	ProcessedAt time.Time         `json:"processedAt"`
	Summary     json.RawMessage   `json:"summary,omitempty"`
}

func recordKey(t models.ResultType, filename string) string {
	if t == models.ResultTypeForecast {
		return forecastPrefix + filename
	}
	return detectionPrefix + filename
}

func metaKey(t models.ResultType, filename string) string {
	return metaPrefix + string(t) + ":" + filename
}

// insertIfAbsent writes the payload and its listing entry in one transaction,
// failing with ErrDuplicate when the filename is already stored.
func (s *Store) insertIfAbsent(t models.ResultType, filename string, payload interface{}, meta ResultMeta) error {
	key := recordKey(t, filename)
	return s.insert(func(txn *badger.Txn) error {
		found, err := exists(txn, key)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: %s", ErrDuplicate, filename)
		}
		if err := putJSON(txn, key, payload); err != nil {
			return err
		}
		return putJSON(txn, metaKey(t, filename), meta)
	})
}

// InsertDetectionIfAbsent persists a detection record keyed by its filename.
// The summary and frame count are recomputed before writing.
func (s *Store) InsertDetectionIfAbsent(_ context.Context, rec *models.DetectionRecord) error {
	if rec.Filename == "" {
		return fmt.Errorf("store: detection record has no filename")
	}
	rec.Finalize()
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = s.now()
	}
	summary, err := json.Marshal(rec.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	_, frame, _ := parseResultName(rec.Filename)
	return s.insertIfAbsent(models.ResultTypeDetection, rec.Filename, rec, ResultMeta{
		Filename:    rec.Filename,
		Type:        models.ResultTypeDetection,
		FrameNumber: frame,
		SizeBytes:   rec.FileSize,
		ProcessedAt: rec.ProcessedAt,
		Summary:     summary,
	})
}

// InsertForecastIfAbsent persists a forecast record keyed by its filename.
func (s *Store) InsertForecastIfAbsent(_ context.Context, rec *models.ForecastRecord) error {
	if rec.Filename == "" {
		return fmt.Errorf("store: forecast record has no filename")
	}
	rec.Finalize()
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = s.now()
	}
	summary, err := json.Marshal(rec.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	_, frame, _ := parseResultName(rec.Filename)
	if frame == 0 {
		frame = rec.Frame
	}
	return s.insertIfAbsent(models.ResultTypeForecast, rec.Filename, rec, ResultMeta{
		Filename:    rec.Filename,
		Type:        models.ResultTypeForecast,
		FrameNumber: frame,
		SizeBytes:   rec.FileSize,
		ProcessedAt: rec.ProcessedAt,
		Summary:     summary,
	})
}

// GetDetection returns the stored detection record for filename.
func (s *Store) GetDetection(_ context.Context, filename string) (*models.DetectionRecord, error) {
	var rec models.DetectionRecord
	if err := s.view(func(txn *badger.Txn) error {
		return getJSON(txn, detectionPrefix+filename, &rec)
	}); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetForecast returns the stored forecast record for filename.
func (s *Store) GetForecast(_ context.Context, filename string) (*models.ForecastRecord, error) {
	var rec models.ForecastRecord
	if err := s.view(func(txn *badger.Txn) error {
		return getJSON(txn, forecastPrefix+filename, &rec)
	}); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetResultRaw returns the stored JSON payload for a result filename.
func (s *Store) GetResultRaw(_ context.Context, t models.ResultType, filename string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := s.view(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(recordKey(t, filename)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// ListResultMeta returns every stored result's listing entry, newest
// ProcessedAt first.
func (s *Store) ListResultMeta(_ context.Context) ([]ResultMeta, error) {
	var out []ResultMeta
	err := s.view(func(txn *badger.Txn) error {
		return scanPrefix(txn, metaPrefix, false, func(m ResultMeta) error {
			out = append(out, m)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ProcessedAt.Equal(out[j].ProcessedAt) {
			return out[i].ProcessedAt.After(out[j].ProcessedAt)
		}
		return out[i].Filename < out[j].Filename
	})
	return out, nil
}

// latestMeta finds the newest listing entry of type t.
func (s *Store) latestMeta(t models.ResultType) (*ResultMeta, error) {
	var latest *ResultMeta
	err := s.view(func(txn *badger.Txn) error {
		return scanPrefix(txn, metaPrefix+string(t)+":", false, func(m ResultMeta) error {
			if latest == nil || m.ProcessedAt.After(latest.ProcessedAt) {
				m := m
				latest = &m
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

// LatestDetection returns the detection record with the newest ProcessedAt.
func (s *Store) LatestDetection(ctx context.Context) (*models.DetectionRecord, error) {
	m, err := s.latestMeta(models.ResultTypeDetection)
	if err != nil {
		return nil, err
	}
	return s.GetDetection(ctx, m.Filename)
}

// LatestForecast returns the forecast record with the newest ProcessedAt.
func (s *Store) LatestForecast(ctx context.Context) (*models.ForecastRecord, error) {
	m, err := s.latestMeta(models.ResultTypeForecast)
	if err != nil {
		return nil, err
	}
	return s.GetForecast(ctx, m.Filename)
}

// AllDetectionFrames flattens the frames of every stored detection record,
// sorted chronologically, keeping the last limit frames. A non-positive
// limit keeps everything.
func (s *Store) AllDetectionFrames(_ context.Context, limit int) ([]models.Frame, error) {
	var frames []models.Frame
	err := s.view(func(txn *badger.Txn) error {
		return scanPrefix(txn, detectionPrefix, false, func(rec models.DetectionRecord) error {
			frames = append(frames, rec.Detections...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return SortAndTrimFrames(frames, limit), nil
}

// CountResults returns the number of stored detection and forecast records.
func (s *Store) CountResults(_ context.Context) (detections, forecasts int, err error) {
	err = s.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for _, p := range []struct {
			prefix string
			n      *int
		}{{metaKey(models.ResultTypeDetection, ""), &detections}, {metaKey(models.ResultTypeForecast, ""), &forecasts}} {
			prefix := []byte(p.prefix)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				*p.n++
			}
		}
		return nil
	})
	return detections, forecasts, err
}

// SortAndTrimFrames orders frames by timestamp, then frame index, and keeps
// the last limit entries.
func SortAndTrimFrames(frames []models.Frame, limit int) []models.Frame {
	sort.SliceStable(frames, func(i, j int) bool {
		ti, tj := frames[i].Timestamp.Time, frames[j].Timestamp.Time
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return frames[i].Frame < frames[j].Frame
	})
	if limit > 0 && len(frames) > limit {
		frames = frames[len(frames)-limit:]
	}
	return frames
}

// parseResultName extracts the frame number from a result filename without
// importing the watcher package.
func parseResultName(name string) (models.ResultType, int, bool) {
	var n int
	if _, err := fmt.Sscanf(name, "detections_%d.json", &n); err == nil {
		return models.ResultTypeDetection, n, true
	}
	if _, err := fmt.Sscanf(name, "forecast_%d.json", &n); err == nil {
		return models.ResultTypeForecast, n, true
	}
	return "", 0, false
}
