// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package models

import "math"

// DetectionSummary is derived from a detection sequence.
// Invariant: TotalFrames == len(detections).
type DetectionSummary struct {
	TotalFrames     int     `json:"totalFrames"`
	MaxCount        int     `json:"maxCount"`
	MinCount        int     `json:"minCount"`
	AverageCount    float64 `json:"averageCount"`
	AlertFrames     int     `json:"alertFrames"`
	AlertPercentage float64 `json:"alertPercentage"`
}

// ComputeDetectionSummary derives the summary of frames. An empty sequence
// yields the zero summary.
func ComputeDetectionSummary(frames []Frame) DetectionSummary {
	if len(frames) == 0 {
		return DetectionSummary{}
	}

	s := DetectionSummary{
		TotalFrames: len(frames),
		MaxCount:    frames[0].Count,
		MinCount:    frames[0].Count,
	}
	total := 0
	for _, f := range frames {
		if f.Count > s.MaxCount {
			s.MaxCount = f.Count
		}
		if f.Count < s.MinCount {
			s.MinCount = f.Count
		}
		if f.Alert {
			s.AlertFrames++
		}
		total += f.Count
	}
	s.AverageCount = float64(total) / float64(len(frames))
	s.AlertPercentage = float64(s.AlertFrames) / float64(len(frames)) * 100
	return s
}

// Trend classifies how a sequence moves from its first to its last value.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// trendThreshold is the relative change below which a sequence is stable.
const trendThreshold = 0.1

// ClassifyTrend compares the last value to the first. Fewer than two
// values, or a relative change under 10%, is stable. A zero first value is
// stable only when the last value is also zero.
func ClassifyTrend(values []float64) Trend {
	if len(values) < 2 {
		return TrendStable
	}
	first, last := values[0], values[len(values)-1]
	if first == 0 {
		switch {
		case last > 0:
			return TrendIncreasing
		case last < 0:
			return TrendDecreasing
		default:
			return TrendStable
		}
	}
	if math.Abs((last-first)/first) < trendThreshold {
		return TrendStable
	}
	if last > first {
		return TrendIncreasing
	}
	return TrendDecreasing
}

// SequenceSummary summarizes one prediction sequence.
type SequenceSummary struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
	Trend   Trend   `json:"trend"`
}

// Comparison relates the LSTM and linear sequences.
type Comparison struct {
	AvgDifference          float64 `json:"avgDifference"`
	CorrelationCoefficient float64 `json:"correlationCoefficient"`
}

// ForecastSummary is derived from both prediction sequences.
type ForecastSummary struct {
	LSTM       SequenceSummary `json:"lstm"`
	Linear     SequenceSummary `json:"linear"`
	Comparison Comparison      `json:"comparison"`
}

// ComputeForecastSummary derives the per-sequence summaries and comparison.
func ComputeForecastSummary(lstm, linear []float64) ForecastSummary {
	return ForecastSummary{
		LSTM:   summarizeSequence(lstm),
		Linear: summarizeSequence(linear),
		Comparison: Comparison{
			AvgDifference:          meanAbsDifference(lstm, linear),
			CorrelationCoefficient: Correlation(lstm, linear),
		},
	}
}

func summarizeSequence(values []float64) SequenceSummary {
	if len(values) == 0 {
		return SequenceSummary{Trend: TrendStable}
	}
	s := SequenceSummary{Min: values[0], Max: values[0], Trend: ClassifyTrend(values)}
	sum := 0.0
	for _, v := range values {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		sum += v
	}
	s.Average = sum / float64(len(values))
	return s
}

// meanAbsDifference averages |a[i]-b[i]| over the shorter length.
func meanAbsDifference(a, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += math.Abs(a[i] - b[i])
	}
	return sum / float64(n)
}

// Correlation returns the Pearson correlation of x and y, or 0 when the
// lengths differ, the input is empty, or either series is constant.
func Correlation(x, y []float64) float64 {
	n := len(x)
	if n == 0 || n != len(y) {
		return 0
	}

	var sumX, sumY, sumXY, sumX2, sumY2 float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumX2 += x[i] * x[i]
		sumY2 += y[i] * y[i]
	}
	fn := float64(n)
	num := fn*sumXY - sumX*sumY
	den := math.Sqrt((fn*sumX2 - sumX*sumX) * (fn*sumY2 - sumY*sumY))
	if den == 0 || math.IsNaN(den) {
		return 0
	}
	return num / den
}
