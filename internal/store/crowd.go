// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/crowdwatch/internal/models"
)

func crowdKey(cameraID, id string) string {
	return crowdPrefix + cameraID + ":" + id
}

// AddCrowdSample persists a crowd sample.
func (s *Store) AddCrowdSample(_ context.Context, sample *models.CrowdSample) error {
	now := s.now()
	sample.ID = newID()
	if sample.Timestamp.IsZero() {
		sample.Timestamp = now
	}
	sample.CreatedAt = now
	return s.insert(func(txn *badger.Txn) error {
		return putJSON(txn, crowdKey(sample.CameraID, sample.ID), sample)
	})
}

// CrowdQuery selects crowd samples for ListCrowdSamples.
type CrowdQuery struct {
	CameraID string
	From     time.Time
	To       time.Time
	Limit    int
}

// ListCrowdSamples returns samples newest first. An empty CameraID scans
// every camera.
func (s *Store) ListCrowdSamples(_ context.Context, q CrowdQuery) ([]models.CrowdSample, error) {
	prefix := crowdPrefix
	if q.CameraID != "" {
		prefix = crowdPrefix + q.CameraID + ":"
	}
	var out []models.CrowdSample
	err := s.view(func(txn *badger.Txn) error {
		return scanPrefix(txn, prefix, true, func(cs models.CrowdSample) error {
			if !q.From.IsZero() && cs.Timestamp.Before(q.From) {
				return nil
			}
			if !q.To.IsZero() && cs.Timestamp.After(q.To) {
				return nil
			}
			out = append(out, cs)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// LatestCrowdPerCamera returns the newest sample of every camera, ordered by
// cameraId.
func (s *Store) LatestCrowdPerCamera(_ context.Context) ([]models.CrowdSample, error) {
	latest := map[string]models.CrowdSample{}
	err := s.view(func(txn *badger.Txn) error {
		return scanPrefix(txn, crowdPrefix, false, func(cs models.CrowdSample) error {
			if cur, ok := latest[cs.CameraID]; !ok || cs.Timestamp.After(cur.Timestamp) {
				latest[cs.CameraID] = cs
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.CrowdSample, 0, len(latest))
	for _, cs := range latest {
		out = append(out, cs)
	}
	sort.Slice(out, func(i, j int) bool { return strings.Compare(out[i].CameraID, out[j].CameraID) < 0 })
	return out, nil
}

// DeleteCrowdSample removes a sample by id.
func (s *Store) DeleteCrowdSample(_ context.Context, id string) error {
	return s.update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		prefix := []byte(crowdPrefix)
		var key []byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := it.Item().Key()
			if strings.HasSuffix(string(k), ":"+id) {
				key = it.Item().KeyCopy(nil)
				break
			}
		}
		it.Close()
		if key == nil {
			return ErrNotFound
		}
		return txn.Delete(key)
	})
}

// CrowdStats summarizes the samples of one camera, or all cameras when
// cameraID is empty.
type CrowdStats struct {
	Samples         int            `json:"samples"`
	AverageCount    float64        `json:"averageCount"`
	MaxCount        int            `json:"maxCount"`
	MinCount        int            `json:"minCount"`
	AlertsTriggered int            `json:"alertsTriggered"`
	ByDensity       map[string]int `json:"byDensity"`
}

// CrowdStats aggregates samples taken at or after since.
func (s *Store) CrowdStats(ctx context.Context, cameraID string, since time.Time) (*CrowdStats, error) {
	samples, err := s.ListCrowdSamples(ctx, CrowdQuery{CameraID: cameraID, From: since})
	if err != nil {
		return nil, err
	}
	stats := &CrowdStats{ByDensity: map[string]int{}}
	total := 0
	for i, cs := range samples {
		if i == 0 || cs.Count > stats.MaxCount {
			stats.MaxCount = cs.Count
		}
		if i == 0 || cs.Count < stats.MinCount {
			stats.MinCount = cs.Count
		}
		if cs.AlertTriggered {
			stats.AlertsTriggered++
		}
		if cs.Density != "" {
			stats.ByDensity[string(cs.Density)]++
		}
		total += cs.Count
	}
	stats.Samples = len(samples)
	if len(samples) > 0 {
		stats.AverageCount = float64(total) / float64(len(samples))
	}
	return stats, nil
}
