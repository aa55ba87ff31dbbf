// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

// Package results watches the directory the ML pipeline writes result files
// into. It keeps an in-memory index of detections_<n>.json and
// forecast_<n>.json files, emits change events when the index changes, and
// reads, decodes and prunes result files.
package results

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tomtom215/crowdwatch/internal/logging"
	"github.com/tomtom215/crowdwatch/internal/metrics"
	"github.com/tomtom215/crowdwatch/internal/models"
)

// Sentinel errors.
var (
	ErrNotFound           = errors.New("result file not found")
	ErrInvalidFilename    = errors.New("invalid result filename")
	ErrReadError          = errors.New("result file could not be read")
	ErrWatcherUnavailable = errors.New("results directory unavailable")
)

// Op is the kind of change observed for a file.
type Op string

const (
	OpAdd    Op = "add"
	OpModify Op = "modify"
	OpRemove Op = "remove"
)

// ChangeEvent reports one recognized file change.
type ChangeEvent struct {
	Op       Op                `json:"op"`
	Type     models.ResultType `json:"type"`
	Filename string            `json:"filename"`
}

// Options tune a Watcher.
type Options struct {
	// ScanInterval is the periodic rescan interval and therefore the upper
	// bound on notification latency. Defaults to 3s.
	ScanInterval time.Duration

	// DisableFSNotify forces polling only.
	DisableFSNotify bool
}

// snapshot is an immutable view of the directory. Once published it is never
// mutated.
type snapshot struct {
	files  []models.ResultFile
	byName map[string]models.ResultFile
	err    error
}

// Watcher indexes a results directory. Construct with NewWatcher; the zero
// value is not usable.
type Watcher struct {
	dir  string
	opts Options

	index  atomic.Pointer[snapshot]
	scanMu sync.Mutex

	subsMu  sync.RWMutex
	subs    map[uint64]chan ChangeEvent
	nextSub uint64

	kick chan struct{}
}

// NewWatcher creates a watcher for dir. No disk access happens until the
// first Scan or Run.
func NewWatcher(dir string, opts Options) *Watcher {
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = 3 * time.Second
	}
	return &Watcher{
		dir:  dir,
		opts: opts,
		subs: make(map[uint64]chan ChangeEvent),
		kick: make(chan struct{}, 1),
	}
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Run scans once, then rescans on every tick and whenever fsnotify reports
// activity in the directory, until ctx is cancelled. A listing error is
// recorded and retried on the next tick.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Scan(); err != nil {
		logging.Warn().Err(err).Str("dir", w.dir).Msg("Initial results scan failed, will retry")
	}

	var events <-chan fsnotify.Event
	var fsErrors <-chan error
	if !w.opts.DisableFSNotify {
		fw, err := fsnotify.NewWatcher()
		if err == nil {
			err = fw.Add(w.dir)
			if err != nil {
				_ = fw.Close()
			}
		}
		if err != nil {
			logging.Warn().Err(err).Str("dir", w.dir).Msg("Filesystem notifications unavailable, polling only")
		} else {
			defer fw.Close()
			events, fsErrors = fw.Events, fw.Errors
		}
	}

	ticker := time.NewTicker(w.opts.ScanInterval)
	defer ticker.Stop()

	logging.Info().Str("dir", w.dir).Dur("interval", w.opts.ScanInterval).Bool("fsnotify", events != nil).Msg("Results watcher started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Results watcher stopped")
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if IsValidFilename(filepath.Base(ev.Name)) {
				w.requestScan()
			}
		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			logging.Warn().Err(err).Msg("Filesystem watcher error")
		case <-w.kick:
			_ = w.Scan()
		case <-ticker.C:
			_ = w.Scan()
		}
	}
}

// requestScan coalesces bursts of fsnotify events into one rescan.
func (w *Watcher) requestScan() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Scan rebuilds the index, publishes it and emits one event per recognized
// change against the previous snapshot.
func (w *Watcher) Scan() error {
	w.scanMu.Lock()
	defer w.scanMu.Unlock()

	start := time.Now()
	next, err := w.readDir()
	metrics.RecordScan(time.Since(start), err)

	prev := w.index.Load()
	if err != nil {
		// Keep serving the last good listing state but surface the failure.
		failed := &snapshot{err: fmt.Errorf("%w: %v", ErrWatcherUnavailable, err)}
		if prev != nil {
			failed.files, failed.byName = prev.files, prev.byName
		}
		w.index.Store(failed)
		return failed.err
	}

	w.index.Store(next)
	counts := map[models.ResultType]int{}
	for _, f := range next.files {
		counts[f.Type]++
	}
	metrics.SetIndexedFiles(string(models.ResultTypeDetection), counts[models.ResultTypeDetection])
	metrics.SetIndexedFiles(string(models.ResultTypeForecast), counts[models.ResultTypeForecast])

	var before map[string]models.ResultFile
	if prev != nil {
		before = prev.byName
	}
	for _, ev := range diff(before, next.byName) {
		w.publish(ev)
	}
	return nil
}

func (w *Watcher) readDir() (*snapshot, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, err
	}
	snap := &snapshot{byName: make(map[string]models.ResultFile, len(entries))}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		t, frame, ok := ParseFilename(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		// Birth time is not portable; files are written once by the
		// pipeline so the modification time stands in for creation.
		f := models.ResultFile{
			Filename:    e.Name(),
			Type:        t,
			FrameNumber: frame,
			SizeBytes:   info.Size(),
			CreatedAt:   info.ModTime().UTC(),
			ModifiedAt:  info.ModTime().UTC(),
		}
		snap.files = append(snap.files, f)
		snap.byName[f.Filename] = f
	}
	SortFiles(snap.files)
	return snap, nil
}

// diff compares two indexes. Events are ordered by filename for determinism.
func diff(before, after map[string]models.ResultFile) []ChangeEvent {
	var out []ChangeEvent
	for name, f := range after {
		old, ok := before[name]
		switch {
		case !ok:
			out = append(out, ChangeEvent{Op: OpAdd, Type: f.Type, Filename: name})
		case old.SizeBytes != f.SizeBytes || !old.ModifiedAt.Equal(f.ModifiedAt):
			out = append(out, ChangeEvent{Op: OpModify, Type: f.Type, Filename: name})
		}
	}
	for name, f := range before {
		if _, ok := after[name]; !ok {
			out = append(out, ChangeEvent{Op: OpRemove, Type: f.Type, Filename: name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out
}

// SortFiles orders files newest modification first, then by filename.
func SortFiles(files []models.ResultFile) {
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].ModifiedAt.Equal(files[j].ModifiedAt) {
			return files[i].ModifiedAt.After(files[j].ModifiedAt)
		}
		return files[i].Filename < files[j].Filename
	})
}

// current returns the published snapshot, scanning first if none exists.
func (w *Watcher) current() *snapshot {
	if snap := w.index.Load(); snap != nil {
		return snap
	}
	_ = w.Scan()
	return w.index.Load()
}

// ListFiles returns the indexed result files, newest first. It fails with
// ErrWatcherUnavailable while the directory cannot be listed.
func (w *Watcher) ListFiles() ([]models.ResultFile, error) {
	snap := w.current()
	if snap.err != nil {
		return nil, snap.err
	}
	out := make([]models.ResultFile, len(snap.files))
	copy(out, snap.files)
	return out, nil
}

// LatestFile returns the newest file of type t.
func (w *Watcher) LatestFile(t models.ResultType) (models.ResultFile, bool) {
	snap := w.current()
	if snap.err != nil {
		return models.ResultFile{}, false
	}
	for _, f := range snap.files {
		if f.Type == t {
			return f, true
		}
	}
	return models.ResultFile{}, false
}

// IndexSize returns the number of indexed files.
func (w *Watcher) IndexSize() int {
	snap := w.index.Load()
	if snap == nil {
		return 0
	}
	return len(snap.files)
}

// Subscribe registers a change listener with a buffer of the given size.
// Events are delivered in emission order; when the buffer is full the event
// is dropped for that subscriber rather than blocking the scan. The returned
// cancel function unregisters and closes the channel.
func (w *Watcher) Subscribe(buffer int) (<-chan ChangeEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan ChangeEvent, buffer)

	w.subsMu.Lock()
	id := w.nextSub
	w.nextSub++
	w.subs[id] = ch
	w.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.subsMu.Lock()
			delete(w.subs, id)
			w.subsMu.Unlock()
			close(ch)
		})
	}
}

func (w *Watcher) publish(ev ChangeEvent) {
	metrics.RecordChangeEvent(string(ev.Op), string(ev.Type))
	logging.Debug().Str("op", string(ev.Op)).Str("file", ev.Filename).Msg("Result file changed")

	w.subsMu.RLock()
	defer w.subsMu.RUnlock()
	for _, ch := range w.subs {
		select {
		case ch <- ev:
		default:
			metrics.ResultChangeEventsDropped.Inc()
		}
	}
}
