package store

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/weather-lookup/internal/weather"
)

var (
	// ErrNotFound is returned when no data is available for a given location.
	ErrNotFound = errors.New("no weather data for location")
)

// Snapshot is one current-conditions reading for a featured location.
type Snapshot struct {
	Location  string                 `json:"location"`
	Weather   weather.CurrentWeather `json:"weather"`
	Timestamp time.Time              `json:"timestamp"`
}

// SnapshotHistory holds a time-ordered list of snapshots for a location.
type SnapshotHistory struct {
	Snapshots []Snapshot
}

// MemoryStore is a concurrency-safe in-memory cache of featured-location
// readings.
type MemoryStore struct {
	mu sync.RWMutex

	// key: normalized location, value: history
	data map[string]*SnapshotHistory

	maxHistory int           // max snapshots per location, <= 0 unlimited
	maxAge     time.Duration // max snapshot age, <= 0 unlimited
}

// NewMemoryStore creates a new MemoryStore with optional limits.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*SnapshotHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

// Key normalizes a location for lookups.
func Key(location string) string {
	return strings.ToLower(strings.TrimSpace(location))
}

// Save appends a snapshot and enforces retention.
func (s *MemoryStore) Save(snap Snapshot) {
	key := Key(snap.Location)

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &SnapshotHistory{}
		s.data[key] = history
	}
	history.Snapshots = append(history.Snapshots, snap)

	if s.maxHistory > 0 && len(history.Snapshots) > s.maxHistory {
		over := len(history.Snapshots) - s.maxHistory
		history.Snapshots = history.Snapshots[over:]
	}

	// The newest snapshot is always kept, however old.
	if s.maxAge > 0 {
		cutoff := time.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Snapshots)-1; i++ {
			if !history.Snapshots[i].Timestamp.Before(cutoff) {
				break
			}
		}
		history.Snapshots = history.Snapshots[i:]
	}
}

// Latest returns the most recent snapshot for a location.
func (s *MemoryStore) Latest(location string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[Key(location)]
	if !ok || len(history.Snapshots) == 0 {
		return Snapshot{}, ErrNotFound
	}
	return history.Snapshots[len(history.Snapshots)-1], nil
}

// Range returns the snapshots for a location between from and to inclusive.
func (s *MemoryStore) Range(location string, from, to time.Time) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[Key(location)]
	if !ok || len(history.Snapshots) == 0 {
		return nil, ErrNotFound
	}

	var result []Snapshot
	for _, snap := range history.Snapshots {
		if !snap.Timestamp.Before(from) && !snap.Timestamp.After(to) {
			result = append(result, snap)
		}
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// LatestAll returns the latest snapshot of each location that has one,
// in the given order.
func (s *MemoryStore) LatestAll(locations []string) []Snapshot {
	out := make([]Snapshot, 0, len(locations))
	for _, loc := range locations {
		if snap, err := s.Latest(loc); err == nil {
			out = append(out, snap)
		}
	}
	return out
}
