// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package query

import (
	"context"
	"math"
	"strconv"

	"github.com/tomtom215/crowdwatch/internal/models"
)

// Stats summarizes the merged listing.
type Stats struct {
	Total              int        `json:"total"`
	DetectionFiles     int        `json:"detectionFiles"`
	ForecastFiles      int        `json:"forecastFiles"`
	TotalSize          int64      `json:"totalSize"`
	TotalSizeFormatted string     `json:"totalSizeFormatted"`
	LatestDetection    *FileEntry `json:"latestDetection"`
	LatestForecast     *FileEntry `json:"latestForecast"`
}

// Stats counts the merged listing by type and sums its size.
func (s *Service) Stats(ctx context.Context) Stats {
	listing := s.ListFiles(ctx)
	st := Stats{Total: len(listing.Files)}
	for i := range listing.Files {
		f := &listing.Files[i]
		st.TotalSize += f.SizeBytes
		switch f.Type {
		case models.ResultTypeDetection:
			st.DetectionFiles++
			if st.LatestDetection == nil {
				st.LatestDetection = f
			}
		case models.ResultTypeForecast:
			st.ForecastFiles++
			if st.LatestForecast == nil {
				st.LatestForecast = f
			}
		}
	}
	st.TotalSizeFormatted = FormatFileSize(st.TotalSize)
	return st
}

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatFileSize renders bytes in base-1024 units with at most two decimals
// and no trailing zeros, e.g. "0 B", "1.5 KB", "2 MB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	v := float64(bytes) / math.Pow(1024, float64(i))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}
