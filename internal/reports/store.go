// Package reports lists report files from a directory and resolves them by position.
package reports

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"ragbot/internal/domain"
	"ragbot/internal/logger"
)

// DirStore exposes the regular files of one directory in lexicographic order.
// The listing is cached and dropped whenever the directory changes, so a
// "get report" followed by "report <n>" sees the same order.
type DirStore struct {
	dir     string
	baseURL string
	log     *logger.Logger

	mu       sync.RWMutex
	snapshot []string
	cached   bool
	gen      uint64
	watching bool

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// NewDirStore creates a store over dir. Media references are built as
// <publicBaseURL>/report/<index>. A missing directory lists as empty and is
// re-read on every call until it appears; it is watched from then on, and
// again after being deleted and recreated.
func NewDirStore(dir, publicBaseURL string, log *logger.Logger) (*DirStore, error) {
	if log == nil {
		log = logger.Nop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	s := &DirStore{
		dir:     dir,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		log:     log.WithComponent("reports"),
		watcher: w,
		done:    make(chan struct{}),
	}
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		s.watching = true
	} else {
		s.log.Warn("reports directory not found", logger.F("dir", dir))
	}
	go s.watch()
	return s, nil
}

func (s *DirStore) watch() {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && filepath.Clean(ev.Name) == filepath.Clean(s.dir) {
				s.log.Debug("reports directory went away", logger.F("event", ev.String()))
				s.unwatch()
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				s.log.Debug("reports changed", logger.F("event", ev.String()))
				s.invalidate()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("watcher error", logger.Err(err))
			s.invalidate()
		}
	}
}

func (s *DirStore) invalidate() {
	s.mu.Lock()
	s.cached = false
	s.snapshot = nil
	s.gen++
	s.mu.Unlock()
}

// unwatch drops a watch whose directory was deleted or moved. Listings stop
// being cached until the path is watched again.
func (s *DirStore) unwatch() {
	// the kernel may already have dropped it
	_ = s.watcher.Remove(s.dir)
	s.mu.Lock()
	s.watching = false
	s.cached = false
	s.snapshot = nil
	s.gen++
	s.mu.Unlock()
}

// ensureWatched attaches the watcher when the directory exists again and
// reports whether it is watched.
func (s *DirStore) ensureWatched() bool {
	s.mu.RLock()
	watching := s.watching
	s.mu.RUnlock()
	if watching {
		return true
	}
	if err := s.watcher.Add(s.dir); err != nil {
		return false
	}
	s.mu.Lock()
	s.watching = true
	s.mu.Unlock()
	s.log.Debug("watching reports directory", logger.F("dir", s.dir))
	return true
}

func (s *DirStore) names() ([]string, error) {
	s.mu.RLock()
	if s.cached {
		names := s.snapshot
		s.mu.RUnlock()
		return names, nil
	}
	gen := s.gen
	s.mu.RUnlock()

	watched := s.ensureWatched()
	names, err := s.scan()
	if err != nil {
		return nil, err
	}
	if watched {
		s.mu.Lock()
		// a change seen during the scan makes this listing stale
		if s.gen == gen && s.watching {
			s.snapshot, s.cached = names, true
		}
		s.mu.Unlock()
	}
	return names, nil
}

func (s *DirStore) scan() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading reports directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// List returns the current reports, 0-based Index in listing order.
func (s *DirStore) List(_ context.Context) ([]domain.Report, error) {
	names, err := s.names()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Report, len(names))
	for i, n := range names {
		out[i] = domain.Report{Index: i, Name: n}
	}
	return out, nil
}

// RefByIndex returns the public URL of the report at a 0-based index.
func (s *DirStore) RefByIndex(index int) (string, error) {
	if _, err := s.Open(index); err != nil {
		return "", err
	}
	return s.baseURL + "/report/" + strconv.Itoa(index), nil
}

// Open returns the filesystem path of the report at a 0-based index.
func (s *DirStore) Open(index int) (string, error) {
	names, err := s.names()
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(names) {
		return "", domain.NewOutOfRangeReport(index+1, len(names))
	}
	return filepath.Join(s.dir, names[index]), nil
}

// Close stops watching the directory.
func (s *DirStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.watcher.Close()
	})
	return err
}
