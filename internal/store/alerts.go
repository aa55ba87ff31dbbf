// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/crowdwatch/internal/models"
)

// Page selects a window of a filtered listing. Page is 1-based.
type Page struct {
	Page  int
	Limit int
}

func (p Page) bounds(total int) (int, int) {
	page, limit := p.Page, p.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return start, end
}

// AlertFilter narrows ListAlerts. Zero values match everything.
type AlertFilter struct {
	CameraID    string
	Type        models.AlertType
	Status      models.AlertStatus
	TriggeredBy models.TriggerSource
	From        time.Time
	To          time.Time
	Page
}

func (f AlertFilter) match(a *models.Alert) bool {
	switch {
	case f.CameraID != "" && a.CameraID != f.CameraID:
		return false
	case f.Type != "" && a.Type != f.Type:
		return false
	case f.Status != "" && a.Status != f.Status:
		return false
	case f.TriggeredBy != "" && a.TriggeredBy != f.TriggeredBy:
		return false
	case !f.From.IsZero() && a.Timestamp.Before(f.From):
		return false
	case !f.To.IsZero() && a.Timestamp.After(f.To):
		return false
	}
	return true
}

// CreateAlert assigns an id and timestamps and persists the alert with
// status active unless a status was already set.
func (s *Store) CreateAlert(_ context.Context, a *models.Alert) error {
	now := s.now()
	a.ID = newID()
	if a.Timestamp.IsZero() {
		a.Timestamp = now
	}
	if a.Status == "" {
		a.Status = models.AlertActive
	}
	if a.TriggeredBy == "" {
		a.TriggeredBy = models.TriggeredBySystem
	}
	a.CreatedAt, a.UpdatedAt = now, now
	return s.insert(func(txn *badger.Txn) error {
		return putJSON(txn, alertPrefix+a.ID, a)
	})
}

// GetAlert returns the alert with id.
func (s *Store) GetAlert(_ context.Context, id string) (*models.Alert, error) {
	var a models.Alert
	if err := s.view(func(txn *badger.Txn) error {
		return getJSON(txn, alertPrefix+id, &a)
	}); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAlerts returns the page of alerts matching f, newest first, and the
// total number of matches.
func (s *Store) ListAlerts(_ context.Context, f AlertFilter) ([]models.Alert, int, error) {
	var matched []models.Alert
	err := s.view(func(txn *badger.Txn) error {
		return scanPrefix(txn, alertPrefix, true, func(a models.Alert) error {
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

// UpdateAlertStatus moves an alert forward through its lifecycle, stamping
// the actor and time for acknowledged and resolved.
func (s *Store) UpdateAlertStatus(_ context.Context, id string, status models.AlertStatus, by string) (*models.Alert, error) {
	var a models.Alert
	err := s.update(func(txn *badger.Txn) error {
		if err := getJSON(txn, alertPrefix+id, &a); err != nil {
			return err
		}
		if !models.CanTransition(a.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, status)
		}
		now := s.now()
		switch status {
		case models.AlertAcknowledged:
			a.AcknowledgedBy, a.AcknowledgedAt = by, &now
		case models.AlertResolved:
			a.ResolvedBy, a.ResolvedAt = by, &now
		}
		a.Status = status
		a.UpdatedAt = now
		return putJSON(txn, alertPrefix+id, &a)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// AlertStats aggregates alert counts.
type AlertStats struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"byStatus"`
	ByType      map[string]int `json:"byType"`
	ByCamera    map[string]int `json:"byCamera"`
	Last24Hours int            `json:"last24Hours"`
}

// AlertStats counts alerts by status, type and camera.
func (s *Store) AlertStats(_ context.Context) (*AlertStats, error) {
	stats := &AlertStats{
		ByStatus: map[string]int{},
		ByType:   map[string]int{},
		ByCamera: map[string]int{},
	}
	since := s.now().Add(-24 * time.Hour)
	err := s.view(func(txn *badger.Txn) error {
		return scanPrefix(txn, alertPrefix, false, func(a models.Alert) error {
			stats.Total++
			stats.ByStatus[string(a.Status)]++
			stats.ByType[string(a.Type)]++
			stats.ByCamera[a.CameraID]++
			if a.Timestamp.After(since) {
				stats.Last24Hours++
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
