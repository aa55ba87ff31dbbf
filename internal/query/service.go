// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/crowdwatch/internal/logging"
	"github.com/tomtom215/crowdwatch/internal/metrics"
	"github.com/tomtom215/crowdwatch/internal/models"
	"github.com/tomtom215/crowdwatch/internal/results"
	"github.com/tomtom215/crowdwatch/internal/store"
)

// Options tune a Service.
type Options struct {
	// SourceTimeout bounds each source fetch during a merge. Defaults to 5s.
	SourceTimeout time.Duration

	// BulkFallbackMaxFiles caps how many detection files AllDetections reads
	// from disk when the store has nothing. Defaults to 20.
	BulkFallbackMaxFiles int
}

// Service is the result query layer. Either source may be nil, in which
// case it is treated as permanently unavailable.
type Service struct {
	store StoreSource
	files FileSource
	opts  Options
}

// NewService creates a query service over the two sources.
func NewService(st StoreSource, fs FileSource, opts Options) *Service {
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = 5 * time.Second
	}
	if opts.BulkFallbackMaxFiles <= 0 {
		opts.BulkFallbackMaxFiles = 20
	}
	return &Service{store: st, files: fs, opts: opts}
}

// Listing is the merged file listing with per-source availability.
type Listing struct {
	Files               []FileEntry `json:"files"`
	Count               int         `json:"count"`
	StoreAvailable      bool        `json:"storeAvailable"`
	FilesystemAvailable bool        `json:"filesystemAvailable"`
}

// withTimeout runs fn with its own deadline. fn may ignore ctx; the result
// is abandoned once the deadline passes.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrSourceUnavailable, ctx.Err())
	}
}

func (s *Service) sourceFailed(source Source, op string, err error) {
	metrics.RecordSourceFailure(string(source), op)
	logging.Warn().Err(err).Str("source", string(source)).Str("operation", op).Msg("Result source failed, continuing without it")
}

// ListFiles merges the store listing with the directory listing. Both are
// fetched concurrently; a failed or slow source is left out and flagged as
// unavailable. It never fails.
func (s *Service) ListFiles(ctx context.Context) Listing {
	start := time.Now()
	var (
		storeEntries, fsEntries []FileEntry
		listing                 Listing
		g                       errgroup.Group
	)

	if s.store != nil {
		g.Go(func() error {
			metas, err := withTimeout(ctx, s.opts.SourceTimeout, s.store.ListResultMeta)
			if err != nil {
				s.sourceFailed(SourceStore, "list", err)
				return nil
			}
			for _, m := range metas {
				storeEntries = append(storeEntries, entryFromMeta(m))
			}
			listing.StoreAvailable = true
			return nil
		})
	}
	if s.files != nil {
		g.Go(func() error {
			files, err := withTimeout(ctx, s.opts.SourceTimeout, func(context.Context) ([]models.ResultFile, error) {
				return s.files.ListFiles()
			})
			if err != nil {
				s.sourceFailed(SourceFilesystem, "list", err)
				return nil
			}
			for _, f := range files {
				fsEntries = append(fsEntries, entryFromFile(f))
			}
			listing.FilesystemAvailable = true
			return nil
		})
	}
	_ = g.Wait()

	listing.Files = MergeListings(storeEntries, fsEntries)
	listing.Count = len(listing.Files)
	metrics.QueryMergeDuration.Observe(time.Since(start).Seconds())
	return listing
}

// readRecord decodes a result file into its record and encodes it again,
// so a filesystem hit has the same shape as the stored record.
func (s *Service) readRecord(t models.ResultType, name string) (json.RawMessage, error) {
	var (
		rec interface{}
		err error
	)
	if t == models.ResultTypeForecast {
		rec, err = s.files.ReadForecast(name)
	} else {
		rec, err = s.files.ReadDetections(name)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(rec)
}

// GetFileContents returns a result record as JSON, preferring the store.
// The type is inferred from the filename prefix; the full pattern is
// checked before the filesystem is touched.
func (s *Service) GetFileContents(ctx context.Context, name string) (Located[json.RawMessage], error) {
	t, ok := results.TypeFromPrefix(name)
	if !ok {
		return NotFound[json.RawMessage](), fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}

	storeHit := NotFound[json.RawMessage]()
	if s.store != nil {
		raw, err := withTimeout(ctx, s.opts.SourceTimeout, func(ctx context.Context) (json.RawMessage, error) {
			return s.store.GetResult(ctx, t, name)
		})
		switch {
		case err == nil:
			storeHit = FromStore(raw)
		case !errors.Is(err, store.ErrNotFound):
			s.sourceFailed(SourceStore, "get", err)
		}
	}
	if storeHit.Found() {
		return storeHit, nil
	}

	if !results.IsValidFilename(name) {
		return NotFound[json.RawMessage](), fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	if s.files == nil {
		return NotFound[json.RawMessage](), fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	raw, err := s.readRecord(t, name)
	if err != nil {
		return NotFound[json.RawMessage](), err
	}
	return ResolveLookup(storeHit, FromFilesystem(raw)), nil
}

// GetLatest returns the newest record of type t, preferring the store.
func (s *Service) GetLatest(ctx context.Context, t models.ResultType) (Located[json.RawMessage], error) {
	if s.store != nil {
		raw, err := withTimeout(ctx, s.opts.SourceTimeout, func(ctx context.Context) (json.RawMessage, error) {
			return s.store.Latest(ctx, t)
		})
		switch {
		case err == nil:
			return FromStore(raw), nil
		case !errors.Is(err, store.ErrNotFound):
			s.sourceFailed(SourceStore, "latest", err)
		}
	}

	if s.files != nil {
		if f, ok := s.files.LatestFile(t); ok {
			raw, err := s.readRecord(t, f.Filename)
			if err == nil {
				return FromFilesystem(raw), nil
			}
			s.sourceFailed(SourceFilesystem, "latest", err)
		}
	}
	return NotFound[json.RawMessage](), fmt.Errorf("%w: no %s records", ErrNoDataAvailable, t)
}

// AllDetections returns the last limit detection frames in chronological
// order. The store is read first; when it has no frames, at most
// BulkFallbackMaxFiles of the newest detection files are read from disk.
func (s *Service) AllDetections(ctx context.Context, limit int) Located[[]models.Frame] {
	if s.store != nil {
		frames, err := withTimeout(ctx, s.opts.SourceTimeout, func(ctx context.Context) ([]models.Frame, error) {
			return s.store.AllDetectionFrames(ctx, limit)
		})
		if err != nil {
			s.sourceFailed(SourceStore, "detections", err)
		} else if len(frames) > 0 {
			return FromStore(frames)
		}
	}

	if s.files == nil {
		return Located[[]models.Frame]{Value: []models.Frame{}, Source: SourceNone}
	}
	files, err := s.files.ListFiles()
	if err != nil {
		s.sourceFailed(SourceFilesystem, "detections", err)
		return Located[[]models.Frame]{Value: []models.Frame{}, Source: SourceNone}
	}

	var frames []models.Frame
	read := 0
	for _, f := range files {
		if f.Type != models.ResultTypeDetection {
			continue
		}
		if read == s.opts.BulkFallbackMaxFiles {
			break
		}
		read++
		rec, err := s.files.ReadDetections(f.Filename)
		if err != nil {
			logging.Warn().Err(err).Str("file", f.Filename).Msg("Skipping unreadable detections file")
			continue
		}
		frames = append(frames, rec.Detections...)
	}
	if len(frames) == 0 {
		return Located[[]models.Frame]{Value: []models.Frame{}, Source: SourceNone}
	}
	return FromFilesystem(store.SortAndTrimFrames(frames, limit))
}
