// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package store

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/crowdwatch/internal/models"
)

// ActionFilter narrows ListActions. Zero values match everything.
type ActionFilter struct {
	CameraID       string
	Action         string
	PerformedBy    string
	Status         models.ActionStatus
	RelatedAlertID string
	From           time.Time
	To             time.Time
	Page
}

func (f ActionFilter) match(a *models.Action) bool {
	switch {
	case f.CameraID != "" && a.CameraID != f.CameraID:
		return false
	case f.Action != "" && a.Action != f.Action:
		return false
	case f.PerformedBy != "" && a.PerformedBy != f.PerformedBy:
		return false
	case f.Status != "" && a.Status != f.Status:
		return false
	case f.RelatedAlertID != "" && a.RelatedAlertID != f.RelatedAlertID:
		return false
	case !f.From.IsZero() && a.Timestamp.Before(f.From):
		return false
	case !f.To.IsZero() && a.Timestamp.After(f.To):
		return false
	}
	return true
}

// CreateAction persists an operator action. Status defaults to completed.
func (s *Store) CreateAction(_ context.Context, a *models.Action) error {
	now := s.now()
	a.ID = newID()
	if a.Timestamp.IsZero() {
		a.Timestamp = now
	}
	if a.Status == "" {
		a.Status = models.ActionCompleted
	}
	a.CreatedAt, a.UpdatedAt = now, now
	return s.insert(func(txn *badger.Txn) error {
		return putJSON(txn, actionPrefix+a.ID, a)
	})
}

// GetAction returns the action with id.
func (s *Store) GetAction(_ context.Context, id string) (*models.Action, error) {
	var a models.Action
	if err := s.view(func(txn *badger.Txn) error {
		return getJSON(txn, actionPrefix+id, &a)
	}); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListActions returns the page of actions matching f, newest first, and the
// total number of matches.
func (s *Store) ListActions(_ context.Context, f ActionFilter) ([]models.Action, int, error) {
	var matched []models.Action
	err := s.view(func(txn *badger.Txn) error {
		return scanPrefix(txn, actionPrefix, true, func(a models.Action) error {
			if f.match(&a) {
				matched = append(matched, a)
			}
			return nil
		})
	})
	if err != nil {
		return nil, 0, err
	}
	start, end := f.bounds(len(matched))
	return matched[start:end], len(matched), nil
}

// UpdateAction applies mutate to the stored action inside one transaction.
func (s *Store) UpdateAction(_ context.Context, id string, mutate func(*models.Action) error) (*models.Action, error) {
	var a models.Action
	err := s.update(func(txn *badger.Txn) error {
		if err := getJSON(txn, actionPrefix+id, &a); err != nil {
			return err
		}
		if err := mutate(&a); err != nil {
			return err
		}
		a.ID = id
		a.UpdatedAt = s.now()
		return putJSON(txn, actionPrefix+id, &a)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteAction removes an action.
func (s *Store) DeleteAction(_ context.Context, id string) error {
	return s.update(func(txn *badger.Txn) error {
		found, err := exists(txn, actionPrefix+id)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		return txn.Delete([]byte(actionPrefix + id))
	})
}

// ActionStats aggregates operator actions.
type ActionStats struct {
	Total                    int            `json:"total"`
	ByAction                 map[string]int `json:"byAction"`
	ByStatus                 map[string]int `json:"byStatus"`
	ByCamera                 map[string]int `json:"byCamera"`
	AverageEffectiveness     float64        `json:"averageEffectiveness"`
	RatedActions             int            `json:"ratedActions"`
	AverageCrowdCountReduced float64        `json:"averageCrowdCountReduced"`
}

// ActionStats counts actions and averages effectiveness and crowd reduction
// over the actions that carry those values.
func (s *Store) ActionStats(_ context.Context) (*ActionStats, error) {
	stats := &ActionStats{
		ByAction: map[string]int{},
		ByStatus: map[string]int{},
		ByCamera: map[string]int{},
	}
	var ratingSum, reductionSum, reductions int
	err := s.view(func(txn *badger.Txn) error {
		return scanPrefix(txn, actionPrefix, false, func(a models.Action) error {
			stats.Total++
			stats.ByAction[a.Action]++
			stats.ByStatus[string(a.Status)]++
			stats.ByCamera[a.CameraID]++
			if a.EffectivenessRating != nil {
				stats.RatedActions++
				ratingSum += *a.EffectivenessRating
			}
			if a.CrowdCountBefore != nil && a.CrowdCountAfter != nil {
				reductions++
				reductionSum += *a.CrowdCountBefore - *a.CrowdCountAfter
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if stats.RatedActions > 0 {
		stats.AverageEffectiveness = float64(ratingSum) / float64(stats.RatedActions)
	}
	if reductions > 0 {
		stats.AverageCrowdCountReduced = float64(reductionSum) / float64(reductions)
	}
	return stats, nil
}
