// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

// Package query answers result queries by combining the persisted store with
// the results directory. The store is preferred; the filesystem fills gaps.
// A failing source is logged and skipped so that listings degrade instead of
// failing.
package query

import (
	"errors"
	"sort"

	"github.com/tomtom215/crowdwatch/internal/models"
	"github.com/tomtom215/crowdwatch/internal/results"
	"github.com/tomtom215/crowdwatch/internal/store"
)

// Errors returned by the query layer. Filename and not-found errors are the
// results package sentinels so callers map one taxonomy.
var (
	ErrNoDataAvailable   = errors.New("no data available")
	ErrSourceUnavailable = errors.New("source unavailable")

	ErrNotFound        = results.ErrNotFound
	ErrInvalidFilename = results.ErrInvalidFilename
	ErrReadError       = results.ErrReadError
)

// Source names where a value came from.
type Source string

const (
	SourceStore      Source = "store"
	SourceFilesystem Source = "filesystem"
	SourceNone       Source = "none"
)

// Located is a value tagged with the source that produced it.
type Located[T any] struct {
	Value  T      `json:"data"`
	Source Source `json:"source"`
}

// FromStore tags v as coming from the store.
func FromStore[T any](v T) Located[T] {
	return Located[T]{Value: v, Source: SourceStore}
}

// FromFilesystem tags v as coming from the results directory.
func FromFilesystem[T any](v T) Located[T] {
	return Located[T]{Value: v, Source: SourceFilesystem}
}

// NotFound is the empty result.
func NotFound[T any]() Located[T] {
	return Located[T]{Source: SourceNone}
}

// Found reports whether a source produced the value.
func (l Located[T]) Found() bool {
	return l.Source == SourceStore || l.Source == SourceFilesystem
}

// ResolveLookup picks the store hit over the filesystem hit.
func ResolveLookup[T any](storeHit, fsHit Located[T]) Located[T] {
	if storeHit.Found() {
		return storeHit
	}
	if fsHit.Found() {
		return fsHit
	}
	return NotFound[T]()
}

// FileEntry is one merged listing entry.
type FileEntry struct {
	models.ResultFile
	SizeFormatted string `json:"sizeFormatted"`
	Source        Source `json:"source"`
}

// MergeListings combines store and filesystem entries. A filename present in
// both is reported once, from the store. The result is ordered by
// modification time descending, then by filename.
func MergeListings(storeEntries, fsEntries []FileEntry) []FileEntry {
	seen := make(map[string]struct{}, len(storeEntries)+len(fsEntries))
	out := make([]FileEntry, 0, len(storeEntries)+len(fsEntries))
	for _, group := range [][]FileEntry{storeEntries, fsEntries} {
		for _, e := range group {
			if _, dup := seen[e.Filename]; dup {
				continue
			}
			seen[e.Filename] = struct{}{}
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ModifiedAt.Equal(out[j].ModifiedAt) {
			return out[i].ModifiedAt.After(out[j].ModifiedAt)
		}
		return out[i].Filename < out[j].Filename
	})
	return out
}

func entryFromMeta(m store.ResultMeta) FileEntry {
	return FileEntry{
		ResultFile: models.ResultFile{
			Filename:    m.Filename,
			Type:        m.Type,
			FrameNumber: m.FrameNumber,
			SizeBytes:   m.SizeBytes,
			CreatedAt:   m.ProcessedAt,
			ModifiedAt:  m.ProcessedAt,
		},
		SizeFormatted: FormatFileSize(m.SizeBytes),
		Source:        SourceStore,
	}
}

func entryFromFile(f models.ResultFile) FileEntry {
	return FileEntry{ResultFile: f, SizeFormatted: FormatFileSize(f.SizeBytes), Source: SourceFilesystem}
}
