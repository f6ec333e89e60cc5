package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"golang.org/x/sync/singleflight"

	"github.com/jusunglee/railboard/internal/models"
)

const stationCacheSize = 256

// LineResult is what one refresh cycle fetched for a railway. A non-nil Err
// means the fetch failed and the previous snapshot stays in place.
type LineResult struct {
	Railway  string
	Stations []models.Station
	Trains   []models.Train
	Weights  []float64
	Err      error
}

// Update is the complete result of one refresh cycle
type Update struct {
	Lines      []LineResult
	Infos      map[string][]models.OperationInfo
	InfoErrors map[string]error
	At         time.Time
}

// Store manages in-memory railway snapshots and service information
type Store struct {
	mu         sync.RWMutex
	lines      map[string]*models.LineSnapshot
	infos      map[string][]models.OperationInfo
	infoErrors map[string]string
	lastUpdate time.Time
	begun      uint64
	committed  uint64

	stationCache gcache.Cache
	group        singleflight.Group
}

// NewStore creates a new store instance
func NewStore() *Store {
	return &Store{
		lines:        make(map[string]*models.LineSnapshot),
		infos:        make(map[string][]models.OperationInfo),
		infoErrors:   make(map[string]string),
		stationCache: gcache.New(stationCacheSize).Simple().Build(),
	}
}

// BeginCycle starts a refresh cycle and returns its token
func (s *Store) BeginCycle() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begun++
	return s.begun
}

// Commit applies a cycle's results in one step. It returns false without
// writing anything when a newer cycle has begun since token was issued, or
// when the cycle was already committed.
func (s *Store) Commit(token uint64, u Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.begun || token <= s.committed {
		return false
	}

	at := u.At
	if at.IsZero() {
		at = time.Now()
	}

	for _, r := range u.Lines {
		prev, ok := s.lines[r.Railway]
		if r.Err != nil {
			if !ok {
				prev = &models.LineSnapshot{Railway: r.Railway}
				s.lines[r.Railway] = prev
			}
			prev.Error = r.Err.Error()
			continue
		}

		s.lines[r.Railway] = &models.LineSnapshot{
			Railway:   r.Railway,
			Stations:  r.Stations,
			Trains:    r.Trains,
			Weights:   r.Weights,
			Cycle:     token,
			UpdatedAt: at,
		}
	}

	for op, infos := range u.Infos {
		s.infos[op] = infos
		delete(s.infoErrors, op)
	}
	for op, err := range u.InfoErrors {
		s.infoErrors[op] = err.Error()
	}

	s.committed = token
	s.lastUpdate = at
	return true
}

func cloneSnapshot(l *models.LineSnapshot) models.LineSnapshot {
	c := *l
	c.Stations = slices.Clone(l.Stations)
	c.Trains = slices.Clone(l.Trains)
	c.Weights = slices.Clone(l.Weights)
	return c
}

// Line returns the latest snapshot of a railway
func (s *Store) Line(railway string) (models.LineSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lines[railway]
	if !ok {
		return models.LineSnapshot{}, false
	}
	return cloneSnapshot(l), true
}

// Lines returns every snapshot ordered by railway id
func (s *Store) Lines() []models.LineSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.LineSnapshot, 0, len(s.lines))
	for _, l := range s.lines {
		result = append(result, cloneSnapshot(l))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Railway < result[j].Railway
	})
	return result
}

// Infos returns the service information of an operator
func (s *Store) Infos(operator string) []models.OperationInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.infos[operator])
}

// AllInfos returns the service information of every operator
func (s *Store) AllInfos() map[string][]models.OperationInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]models.OperationInfo, len(s.infos))
	for op, infos := range s.infos {
		result[op] = slices.Clone(infos)
	}
	return result
}

// InfoError returns the last fetch error for an operator
func (s *Store) InfoError(operator string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.infoErrors[operator]
}

// LastUpdate returns the time of the last committed cycle
func (s *Store) LastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate
}

// Cycle returns the token of the last committed cycle
func (s *Store) Cycle() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed
}

// Stations returns the station list of a railway from the cache, calling
// fetch on a miss. Concurrent misses for the same railway share one fetch.
// A list is cached once per railway and never replaced; empty lists and
// errors are not cached.
func (s *Store) Stations(ctx context.Context, railway string, fetch func(context.Context) ([]models.Station, error)) ([]models.Station, error) {
	if v, err := s.stationCache.Get(railway); err == nil {
		return v.([]models.Station), nil
	}

	v, err, _ := s.group.Do(railway, func() (any, error) {
		if v, err := s.stationCache.Get(railway); err == nil {
			return v, nil
		}
		stations, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if len(stations) > 0 {
			if err := s.stationCache.Set(railway, stations); err != nil {
				return nil, fmt.Errorf("cache stations for %s: %w", railway, err)
			}
		}
		return stations, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Station), nil
}

// CachedStations returns the cached station list of a railway without
// fetching
func (s *Store) CachedStations(railway string) ([]models.Station, bool) {
	v, err := s.stationCache.Get(railway)
	if err != nil {
		return nil, false
	}
	return v.([]models.Station), true
}
