// Package store holds the currently loaded occupancy dataset.
//
// The dataset lives for the lifetime of the process and is only ever
// replaced as a whole. Readers get a private copy, so a concurrent Replace
// can never expose a half-written dataset.
package store

import (
	"slices"
	"sync"
	"time"

	"planynov/internal/model"
)

// Origin records how the current dataset got into the store.
type Origin string

const (
	// OriginNone is the empty store before any load.
	OriginNone Origin = ""
	// OriginUpload covers uploads and files loaded explicitly at startup.
	OriginUpload Origin = "upload"
	// OriginDefault is the configured default calendar.
	OriginDefault Origin = "default"
)

// Snapshot is a consistent view of the dataset at one point in time.
type Snapshot struct {
	Records  []model.OccupancyRecord
	Source   string    // file the dataset was ingested from
	Origin   Origin    // how it was ingested; Source alone is only a name
	LoadedAt time.Time // zero while nothing has been loaded
}

// Store is the process-wide dataset holder. The zero value is an empty
// store ready for use.
type Store struct {
	mu       sync.RWMutex
	records  []model.OccupancyRecord
	source   string
	origin   Origin
	loadedAt time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// Replace installs recs as the new dataset. The slice is copied.
func (s *Store) Replace(source string, origin Origin, recs []model.OccupancyRecord) {
	s.ReplaceIf(source, origin, recs, nil)
}

// ReplaceIf installs recs only if cond accepts the current dataset, and
// reports whether it did. The check and the swap happen under one lock, so
// a concurrent Replace cannot slip in between. cur.Records is the live
// slice: cond must not modify or retain it. A nil cond always accepts.
func (s *Store) ReplaceIf(source string, origin Origin, recs []model.OccupancyRecord, cond func(cur Snapshot) bool) bool {
	cp := slices.Clone(recs)
	if cp == nil {
		cp = []model.OccupancyRecord{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cond != nil && !cond(s.snapshotLocked(s.records)) {
		return false
	}
	s.records = cp
	s.source = source
	s.origin = origin
	s.loadedAt = time.Now()
	return true
}

// Snapshot returns a copy of the current dataset. Records is never nil.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := slices.Clone(s.records)
	if recs == nil {
		recs = []model.OccupancyRecord{}
	}
	return s.snapshotLocked(recs)
}

func (s *Store) snapshotLocked(recs []model.OccupancyRecord) Snapshot {
	return Snapshot{
		Records:  recs,
		Source:   s.source,
		Origin:   s.origin,
		LoadedAt: s.loadedAt,
	}
}

// Len reports the number of records currently loaded.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Source reports which file the current dataset came from.
func (s *Store) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Origin reports how the current dataset was loaded.
func (s *Store) Origin() Origin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.origin
}

// Stats aggregates the current dataset.
func (s *Store) Stats() model.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ComputeStats(s.records)
}

// ComputeStats counts records, distinct rooms and the sorted distinct
// floors of recs.
func ComputeStats(recs []model.OccupancyRecord) model.Stats {
	rooms := make(map[string]struct{})
	floorSet := make(map[int]struct{})
	for _, r := range recs {
		rooms[r.RoomName] = struct{}{}
		floorSet[r.Floor] = struct{}{}
	}

	floors := make([]int, 0, len(floorSet))
	for f := range floorSet {
		floors = append(floors, f)
	}
	slices.Sort(floors)

	return model.Stats{
		TotalEvents: len(recs),
		UniqueRooms: len(rooms),
		Floors:      floors,
	}
}
