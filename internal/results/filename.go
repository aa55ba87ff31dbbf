// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package results

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tomtom215/crowdwatch/internal/models"
)

var filenamePattern = regexp.MustCompile(`^(detections|forecast)_(\d+)\.json$`)

// IsValidFilename reports whether name is a bare result filename. Names that
// carry a path separator or a parent reference never match.
func IsValidFilename(name string) bool {
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return filenamePattern.MatchString(name)
}

// ParseFilename returns the result type and frame number encoded in name.
func ParseFilename(name string) (models.ResultType, int, bool) {
	if !IsValidFilename(name) {
		return "", 0, false
	}
	m := filenamePattern.FindStringSubmatch(name)
	frame, err := strconv.Atoi(m[2])
	if err != nil {
		// Digits beyond int range are still a valid name; the frame number is
		// informational only.
		frame = 0
	}
	if m[1] == "detections" {
		return models.ResultTypeDetection, frame, true
	}
	return models.ResultTypeForecast, frame, true
}

// TypeFromPrefix infers the result type from a filename prefix alone.
func TypeFromPrefix(name string) (models.ResultType, bool) {
	switch {
	case strings.HasPrefix(name, "detections_"):
		return models.ResultTypeDetection, true
	case strings.HasPrefix(name, "forecast_"):
		return models.ResultTypeForecast, true
	default:
		return "", false
	}
}
