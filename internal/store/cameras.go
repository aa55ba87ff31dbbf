// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/crowdwatch/internal/models"
)

// CreateCamera persists a new camera. The cameraId must be unique.
func (s *Store) CreateCamera(_ context.Context, c *models.Camera) error {
	now := s.now()
	c.ID = newID()
	if c.Status == "" {
		c.Status = models.CameraActive
	}
	if c.MaxCapacity == 0 {
		c.MaxCapacity = models.DefaultMaxCapacity
	}
	if c.AlertThreshold == 0 {
		c.AlertThreshold = models.DefaultAlertThreshold
	}
	c.CreatedAt, c.UpdatedAt = now, now

	return s.insert(func(txn *badger.Txn) error {
		found, err := exists(txn, cameraIDPrefix+c.CameraID)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: camera %s", ErrDuplicate, c.CameraID)
		}
		if err := txn.Set([]byte(cameraIDPrefix+c.CameraID), []byte(c.ID)); err != nil {
			return err
		}
		return putJSON(txn, cameraPrefix+c.ID, c)
	})
}

// GetCamera returns the camera with record id.
func (s *Store) GetCamera(_ context.Context, id string) (*models.Camera, error) {
	var c models.Camera
	if err := s.view(func(txn *badger.Txn) error {
		return getJSON(txn, cameraPrefix+id, &c)
	}); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCameraByCameraID returns the camera registered under cameraID.
func (s *Store) GetCameraByCameraID(_ context.Context, cameraID string) (*models.Camera, error) {
	var c models.Camera
	if err := s.view(func(txn *badger.Txn) error {
		id, err := getString(txn, cameraIDPrefix+cameraID)
		if err != nil {
			return err
		}
		return getJSON(txn, cameraPrefix+id, &c)
	}); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCameras returns every camera in registration order.
func (s *Store) ListCameras(_ context.Context) ([]models.Camera, error) {
	var out []models.Camera
	err := s.view(func(txn *badger.Txn) error {
		return scanPrefix(txn, cameraPrefix, false, func(c models.Camera) error {
			out = append(out, c)
			return nil
		})
	})
	return out, err
}

// UpdateCamera replaces the mutable fields of a camera. Changing the
// cameraId re-checks uniqueness.
func (s *Store) UpdateCamera(_ context.Context, c *models.Camera) error {
	return s.insert(func(txn *badger.Txn) error {
		var existing models.Camera
		if err := getJSON(txn, cameraPrefix+c.ID, &existing); err != nil {
			return err
		}
		if c.CameraID != existing.CameraID {
			found, err := exists(txn, cameraIDPrefix+c.CameraID)
			if err != nil {
				return err
			}
			if found {
				return fmt.Errorf("%w: camera %s", ErrDuplicate, c.CameraID)
			}
			if err := txn.Delete([]byte(cameraIDPrefix + existing.CameraID)); err != nil {
				return err
			}
			if err := txn.Set([]byte(cameraIDPrefix+c.CameraID), []byte(c.ID)); err != nil {
				return err
			}
		}
		c.CreatedAt = existing.CreatedAt
		c.UpdatedAt = s.now()
		return putJSON(txn, cameraPrefix+c.ID, c)
	})
}

// DeleteCamera removes a camera and its cameraId index entry.
func (s *Store) DeleteCamera(_ context.Context, id string) error {
	return s.update(func(txn *badger.Txn) error {
		var c models.Camera
		if err := getJSON(txn, cameraPrefix+id, &c); err != nil {
			return err
		}
		if err := txn.Delete([]byte(cameraIDPrefix + c.CameraID)); err != nil {
			return err
		}
		return txn.Delete([]byte(cameraPrefix + id))
	})
}

// TouchCamera sets lastUpdate for a registered camera. Unknown cameras are
// ignored and reported as ErrNotFound.
func (s *Store) TouchCamera(_ context.Context, cameraID string, at time.Time) error {
	err := s.update(func(txn *badger.Txn) error {
		id, err := getString(txn, cameraIDPrefix+cameraID)
		if err != nil {
			return err
		}
		var c models.Camera
		if err := getJSON(txn, cameraPrefix+id, &c); err != nil {
			return err
		}
		c.LastUpdate = &at
		c.UpdatedAt = s.now()
		return putJSON(txn, cameraPrefix+id, &c)
	})
	if errors.Is(err, badger.ErrConflict) {
		// A concurrent touch already advanced lastUpdate.
		return nil
	}
	return err
}
