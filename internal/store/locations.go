package store

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Locations rarer than this in the training dataset are folded into the
// model's catch-all bucket and are never offered as selectable options.
const rareLocationThreshold = 10

const reloadDebounce = 300 * time.Millisecond

type locationsFile struct {
	Locations []Location `json:"locations"`
}

// LocationStore serves the list of locations the price model supports. The
// list lives in a JSON file sorted by popularity; an in-memory copy is kept
// and refreshed whenever the file changes on disk.
type LocationStore struct {
	path         string
	logger       *zap.Logger
	mu           sync.RWMutex
	locations    []Location
	watcher      *fsnotify.Watcher
	suppressSelf atomic.Bool
}

func NewLocationStore(path string, logger *zap.Logger) (*LocationStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	s := &LocationStore{path: path, logger: logger}
	s.locations = s.load()
	return s, nil
}

// load tolerates a missing or corrupt file and serves an empty list.
func (s *LocationStore) load() []Location {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var file locationsFile
	if err := json.Unmarshal(raw, &file); err != nil {
		s.logger.Warn("could not parse locations file", zap.String("path", s.path), zap.Error(err))
		return nil
	}
	return file.Locations
}

// Locations returns a copy of the cached list in popularity order.
func (s *LocationStore) Locations() []Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	locations := make([]Location, len(s.locations))
	copy(locations, s.locations)
	return locations
}

// Names returns the non-empty location names in popularity order.
func (s *LocationStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.locations))
	for _, loc := range s.locations {
		if name := strings.TrimSpace(loc.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Lookup returns a lowercase name to canonical name map for validation.
func (s *LocationStore) Lookup() map[string]string {
	names := s.Names()
	lookup := make(map[string]string, len(names))
	for _, name := range names {
		lookup[strings.ToLower(name)] = name
	}
	return lookup
}

// Canonicalize maps a user supplied location to its canonical name, or ""
// when the location is not in the supported list.
func (s *LocationStore) Canonicalize(location string) string {
	if location == "" {
		return ""
	}
	return s.Lookup()[strings.ToLower(strings.TrimSpace(location))]
}

// Save persists the list sorted by count descending and refreshes the cache.
func (s *LocationStore) Save(locations []Location) error {
	ordered := make([]Location, len(locations))
	copy(ordered, locations)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Count > ordered[j].Count
	})

	s.suppressSelf.Store(true)
	defer time.AfterFunc(reloadDebounce, func() { s.suppressSelf.Store(false) })

	if err := writeJSONFile(s.path, locationsFile{Locations: ordered}); err != nil {
		s.suppressSelf.Store(false)
		return err
	}

	s.mu.Lock()
	s.locations = ordered
	s.mu.Unlock()
	return nil
}

// Watch refreshes the cached list whenever the backing file is rewritten,
// so a retrained location list can be dropped in without a restart.
func (s *LocationStore) Watch(ctx context.Context) error {
	s.mu.Lock()
	if s.watcher != nil {
		s.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.watcher = watcher
	s.mu.Unlock()

	// Watch the directory, not the file: editors and atomic writers replace
	// the file and would otherwise detach the watch.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to watch locations dir: %w", err)
	}

	go s.watchLoop(ctx, watcher)
	return nil
}

func (s *LocationStore) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	var timerMu sync.Mutex
	var timer *time.Timer
	trigger := func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDebounce, s.reload)
		timerMu.Unlock()
	}

	for {
		select {
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !s.isLocationsEvent(evt) {
				continue
			}
			if s.suppressSelf.Load() {
				continue
			}
			trigger()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				s.logger.Warn("locations watcher error", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *LocationStore) isLocationsEvent(evt fsnotify.Event) bool {
	if filepath.Clean(evt.Name) != filepath.Clean(s.path) {
		return false
	}
	return evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (s *LocationStore) reload() {
	locations := s.load()
	s.mu.Lock()
	s.locations = locations
	s.mu.Unlock()
	s.logger.Info("locations reloaded", zap.Int("count", len(locations)))
}

// ImportCSV counts location values in the training dataset and saves the
// frequent ones as the supported list. Returns the number of locations kept.
func (s *LocationStore) ImportCSV(csvPath string) (int, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open dataset %s: %w", csvPath, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read dataset header: %w", err)
	}
	locationCol := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "location") {
			locationCol = i
			break
		}
	}
	if locationCol == -1 {
		return 0, fmt.Errorf("dataset %s has no location column", csvPath)
	}

	counts := map[string]int{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read dataset row: %w", err)
		}
		if locationCol >= len(row) {
			continue
		}
		name := strings.TrimSpace(row[locationCol])
		if name == "" {
			continue
		}
		counts[name]++
	}

	locations := make([]Location, 0, len(counts))
	for name, count := range counts {
		if count > rareLocationThreshold {
			locations = append(locations, Location{Name: name, Count: count})
		}
	}
	sort.Slice(locations, func(i, j int) bool {
		if locations[i].Count != locations[j].Count {
			return locations[i].Count > locations[j].Count
		}
		return locations[i].Name < locations[j].Name
	})

	if err := s.Save(locations); err != nil {
		return 0, err
	}
	return len(locations), nil
}
