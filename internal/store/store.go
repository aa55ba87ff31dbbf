// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

// Package store is the persisted record store backed by BadgerDB.
//
// Every entity is stored as a JSON value under a prefixed key:
//
//	det:<filename>       detection record payload
//	fc:<filename>        forecast record payload
//	meta:<type>:<name>   lightweight listing entry for a result record
//	alert:<id>           alert
//	cam:<id>             camera, with camid:<cameraId> -> id
//	act:<id>             operator action
//	crowd:<cameraId>:<id> crowd sample
//	user:<id>            user, with username:<lower(username)> -> id
//
// Record ids are UUIDv7 so that a prefix scan returns entities in creation
// order.
package store

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/crowdwatch/internal/config"
	"github.com/tomtom215/crowdwatch/internal/logging"
)

// Sentinel errors. Callers compare with errors.Is.
var (
	ErrNotFound          = errors.New("store: not found")
	ErrDuplicate         = errors.New("store: duplicate")
	ErrInvalidTransition = errors.New("store: invalid status transition")
	ErrClosed            = errors.New("store: closed")
)

const (
	detectionPrefix = "det:"
	forecastPrefix  = "fc:"
	metaPrefix      = "meta:"
	alertPrefix     = "alert:"
	cameraPrefix    = "cam:"
	cameraIDPrefix  = "camid:"
	actionPrefix    = "act:"
	crowdPrefix     = "crowd:"
	userPrefix      = "user:"
	usernamePrefix  = "username:"
)

// Store is the BadgerDB-backed persisted store. It is safe for concurrent use.
type Store struct {
	db     *badger.DB
	closed atomic.Bool
	now    func() time.Time
}

// Open opens (or creates) the store described by cfg.
func Open(cfg config.StoreConfig) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("store: path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Bool("in_memory", cfg.InMemory).Msg("Persisted store opened")
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close flushes and closes the underlying database. It is idempotent.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

// Ping reports whether the store is usable.
func (s *Store) Ping() error {
	if s.closed.Load() || s.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

// RunGC reclaims value log space until badger reports nothing to rewrite.
func (s *Store) RunGC() error {
	if err := s.Ping(); err != nil {
		return err
	}
	if s.db.Opts().InMemory {
		return nil
	}
	for {
		err := s.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("value log gc: %w", err)
		}
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (s *Store) view(fn func(txn *badger.Txn) error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(txn *badger.Txn) error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.Update(fn)
}

// insert runs fn in an update transaction. A concurrent writer that won the
// race for the same key surfaces as ErrDuplicate.
func (s *Store) insert(fn func(txn *badger.Txn) error) error {
	err := s.update(fn)
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: concurrent insert", ErrDuplicate)
	}
	return err
}

// getJSON decodes the value at key into v, mapping a missing key to ErrNotFound.
func getJSON(txn *badger.Txn, key string, v interface{}) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func putJSON(txn *badger.Txn, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := txn.Set([]byte(key), data); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func exists(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	return true, nil
}

func getString(txn *badger.Txn, key string) (string, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(val), nil
}

// scanPrefix decodes every value under prefix in key order and passes it to
// visit. Returning errStopScan from visit ends the scan early.
func scanPrefix[T any](txn *badger.Txn, prefix string, reverse bool, visit func(T) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Reverse = reverse
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	start := []byte(prefix)
	if reverse {
		// Seek to the last key carrying the prefix.
		start = append([]byte(prefix), 0xFF)
	}
	for it.Seek(start); it.ValidForPrefix([]byte(prefix)); it.Next() {
		var v T
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		}); err != nil {
			return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
		}
		if err := visit(v); err != nil {
			if errors.Is(err, errStopScan) {
				return nil
			}
			return err
		}
	}
	return nil
}

var errStopScan = errors.New("stop scan")

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
