// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package results

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/crowdwatch/internal/config"
	"github.com/tomtom215/crowdwatch/internal/logging"
	"github.com/tomtom215/crowdwatch/internal/models"
)

// readBytes validates name before touching the disk and returns the file
// contents with its size.
func (w *Watcher) readBytes(name string) ([]byte, fs.FileInfo, error) {
	if !IsValidFilename(name) {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	path := filepath.Join(w.dir, name)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrReadError, name, err)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrReadError, name, err)
	}
	return data, info, nil
}

// ReadDetections decodes a detections file (a JSON array of frames) into a
// record with its summary computed.
func (w *Watcher) ReadDetections(name string) (*models.DetectionRecord, error) {
	if t, _, ok := ParseFilename(name); ok && t != models.ResultTypeDetection {
		return nil, fmt.Errorf("%w: %s is not a detections file", ErrInvalidFilename, name)
	}
	data, info, err := w.readBytes(name)
	if err != nil {
		return nil, err
	}
	var frames []models.Frame
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrReadError, name, err)
	}
	rec := &models.DetectionRecord{
		Filename:    name,
		Source:      models.SourceFile,
		Detections:  frames,
		ProcessedAt: info.ModTime().UTC(),
		FileSize:    info.Size(),
	}
	rec.Finalize()
	return rec, nil
}

// ReadForecast decodes a forecast file into a record with defaults applied
// and its summary computed.
func (w *Watcher) ReadForecast(name string) (*models.ForecastRecord, error) {
	if t, _, ok := ParseFilename(name); ok && t != models.ResultTypeForecast {
		return nil, fmt.Errorf("%w: %s is not a forecast file", ErrInvalidFilename, name)
	}
	data, info, err := w.readBytes(name)
	if err != nil {
		return nil, err
	}
	var rec models.ForecastRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrReadError, name, err)
	}
	rec.Filename = name
	rec.FileSize = info.Size()
	rec.ProcessedAt = info.ModTime().UTC()
	rec.Finalize()
	return &rec, nil
}

// Cleanup deletes older result files so that at most maxFiles remain, either
// per type (the default) or across both types, then rescans. It returns the
// number of files remaining.
func (w *Watcher) Cleanup(maxFiles int, policy string) (int, error) {
	if maxFiles < 0 {
		return 0, fmt.Errorf("maxFiles must not be negative")
	}
	if err := w.Scan(); err != nil {
		return 0, err
	}
	files, err := w.ListFiles()
	if err != nil {
		return 0, err
	}

	var doomed []models.ResultFile
	if policy == config.RetentionCombined {
		if len(files) > maxFiles {
			doomed = files[maxFiles:]
		}
	} else {
		kept := map[models.ResultType]int{}
		for _, f := range files {
			if kept[f.Type] < maxFiles {
				kept[f.Type]++
				continue
			}
			doomed = append(doomed, f)
		}
	}

	start := time.Now()
	deleted := 0
	for _, f := range doomed {
		err := os.Remove(filepath.Join(w.dir, f.Filename))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.Warn().Err(err).Str("file", f.Filename).Msg("Failed to delete result file")
			continue
		}
		deleted++
	}

	if err := w.Scan(); err != nil {
		return 0, err
	}
	remaining := w.IndexSize()
	logging.Info().
		Int("deleted", deleted).
		Int("remaining", remaining).
		Str("policy", policyName(policy)).
		Dur("took", time.Since(start)).
		Msg("Result files cleaned up")
	return remaining, nil
}

func policyName(policy string) string {
	if policy == config.RetentionCombined {
		return policy
	}
	return config.RetentionPerType
}
