// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package store

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/crowdwatch/internal/models"
)

// CreateUser persists a user. Usernames are unique case-insensitively.
func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	now := s.now()
	u.ID = newID()
	u.CreatedAt, u.UpdatedAt = now, now
	name := normalizeUsername(u.Username)

	return s.insert(func(txn *badger.Txn) error {
		found, err := exists(txn, usernamePrefix+name)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: username %s", ErrDuplicate, u.Username)
		}
		if err := txn.Set([]byte(usernamePrefix+name), []byte(u.ID)); err != nil {
			return err
		}
		return putJSON(txn, userPrefix+u.ID, u)
	})
}

// GetUser returns the user with id.
func (s *Store) GetUser(_ context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.view(func(txn *badger.Txn) error {
		return getJSON(txn, userPrefix+id, &u)
	}); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername looks a user up by name, ignoring case.
func (s *Store) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.view(func(txn *badger.Txn) error {
		id, err := getString(txn, usernamePrefix+normalizeUsername(username))
		if err != nil {
			return err
		}
		return getJSON(txn, userPrefix+id, &u)
	}); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns every user in creation order.
func (s *Store) ListUsers(_ context.Context) ([]models.User, error) {
	var out []models.User
	err := s.view(func(txn *badger.Txn) error {
		return scanPrefix(txn, userPrefix, false, func(u models.User) error {
			out = append(out, u)
			return nil
		})
	})
	return out, err
}

// UpdateUser applies mutate to the stored user. A changed username is
// re-indexed and must remain unique.
func (s *Store) UpdateUser(_ context.Context, id string, mutate func(*models.User) error) (*models.User, error) {
	var u models.User
	err := s.insert(func(txn *badger.Txn) error {
		if err := getJSON(txn, userPrefix+id, &u); err != nil {
			return err
		}
		oldName := normalizeUsername(u.Username)
		if err := mutate(&u); err != nil {
			return err
		}
		if newName := normalizeUsername(u.Username); newName != oldName {
			found, err := exists(txn, usernamePrefix+newName)
			if err != nil {
				return err
			}
			if found {
				return fmt.Errorf("%w: username %s", ErrDuplicate, u.Username)
			}
			if err := txn.Delete([]byte(usernamePrefix + oldName)); err != nil {
				return err
			}
			if err := txn.Set([]byte(usernamePrefix+newName), []byte(id)); err != nil {
				return err
			}
		}
		u.ID = id
		u.UpdatedAt = s.now()
		return putJSON(txn, userPrefix+id, &u)
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser removes a user and the username index entry.
func (s *Store) DeleteUser(_ context.Context, id string) error {
	return s.update(func(txn *badger.Txn) error {
		var u models.User
		if err := getJSON(txn, userPrefix+id, &u); err != nil {
			return err
		}
		if err := txn.Delete([]byte(usernamePrefix + normalizeUsername(u.Username))); err != nil {
			return err
		}
		return txn.Delete([]byte(userPrefix + id))
	})
}

// CountUsers returns the number of stored users.
func (s *Store) CountUsers(_ context.Context) (int, error) {
	n := 0
	err := s.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(userPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}
