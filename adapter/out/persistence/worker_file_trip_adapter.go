package persistence

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"travel_server/core/domain"
	"travel_server/core/port/out"
	"travel_server/pkg/logger"
)

// tripsDocument is the on-disk layout: {"trips": {user_id: [items]}}
type tripsDocument struct {
	Trips map[string][]domain.TravelItem `json:"trips"`
}

// FileTripAdapter keeps every user's trips in one JSON document.
// The document is read once at construction and rewritten after each save.
type FileTripAdapter struct {
	path string

	mu      sync.RWMutex
	trips   map[string][]domain.TravelItem
	loadErr error
}

var _ out.TripRepository = (*FileTripAdapter)(nil)

// NewFileTripAdapter loads path. A missing file starts an empty store. A file
// that cannot be read or decoded leaves the store unusable for reads and
// writes so it is never overwritten.
func NewFileTripAdapter(path string) (*FileTripAdapter, error) {
	if path == "" {
		return nil, fmt.Errorf("file store: empty path")
	}
	a := &FileTripAdapter{path: path, trips: make(map[string][]domain.TravelItem)}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		logger.Info("trip file %s not found, starting empty", path)
	case err != nil:
		a.loadErr = fmt.Errorf("read %s: %w", path, err)
	default:
		if trips, err := decodeTripsDocument(data); err != nil {
			a.loadErr = fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
		} else {
			a.trips = trips
		}
	}
	if a.loadErr != nil {
		logger.WithError(a.loadErr).Error("trip file unusable")
	}
	return a, nil
}

func decodeTripsDocument(data []byte) (map[string][]domain.TravelItem, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return make(map[string][]domain.TravelItem), nil
	}
	var doc tripsDocument
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc.Trips == nil {
		doc.Trips = make(map[string][]domain.TravelItem)
	}
	return doc.Trips, nil
}

// LoadTrips returns a copy of the user's items
func (a *FileTripAdapter) LoadTrips(_ context.Context, userID string) ([]domain.TravelItem, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.loadErr != nil {
		return nil, a.loadErr
	}
	return domain.CloneItems(a.trips[userID]), nil
}

// SaveTrips replaces the user's items and rewrites the whole document.
// The in-memory state only changes once the file is durably replaced.
func (a *FileTripAdapter) SaveTrips(_ context.Context, userID string, items []domain.TravelItem) error {
	if userID == "" {
		return ErrInvalidUser
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loadErr != nil {
		return a.loadErr
	}

	next := make(map[string][]domain.TravelItem, len(a.trips)+1)
	for k, v := range a.trips {
		next[k] = v
	}
	next[userID] = domain.CloneItems(items)

	data, err := json.MarshalIndent(tripsDocument{Trips: next}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode trips: %w", err)
	}
	if err := writeFileAtomic(a.path, data); err != nil {
		return err
	}
	a.trips = next
	return nil
}

// ListUsers returns users with stored items
func (a *FileTripAdapter) ListUsers(context.Context) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.loadErr != nil {
		return nil, a.loadErr
	}
	users := make([]string, 0, len(a.trips))
	for u := range a.trips {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, nil
}

// Ping reports whether the document loaded cleanly
func (a *FileTripAdapter) Ping(context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loadErr
}

func (a *FileTripAdapter) Close() error { return nil }

// writeFileAtomic writes to a sibling temp file, syncs it, then renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
