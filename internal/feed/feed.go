package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jusunglee/railboard/internal/catalog"
	"github.com/jusunglee/railboard/internal/models"
	"github.com/jusunglee/railboard/internal/position"
	"github.com/jusunglee/railboard/internal/store"
)

// Source is where a refresh cycle reads from
type Source interface {
	Trains(ctx context.Context, railway string) ([]models.Train, error)
	Stations(ctx context.Context, railway string) ([]models.Station, error)
	TrainInformation(ctx context.Context, operator string) ([]models.OperationInfo, error)
	Timetables(ctx context.Context, railway string) ([]models.Timetable, error)
}

// Config controls the refresh loop
type Config struct {
	UpdateInterval time.Duration
	// Concurrency bounds the number of railways fetched at once
	Concurrency int
	// TimeWeighted derives segment weights from a timetable per railway
	TimeWeighted bool
	// CycleTimeout bounds a single refresh cycle
	CycleTimeout time.Duration
}

// DefaultConfig returns the settings used by the server
func DefaultConfig() Config {
	return Config{
		UpdateInterval: 30 * time.Second,
		Concurrency:    4,
		CycleTimeout:   25 * time.Second,
	}
}

// Manager handles periodic fetching of every catalog railway
type Manager struct {
	source  Source
	catalog *catalog.Catalog
	store   *store.Store
	cfg     Config
	logger  *slog.Logger

	weightsMu sync.Mutex
	weights   map[string][]float64

	stopCh chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a new feed manager
func NewManager(source Source, cat *catalog.Catalog, st *store.Store, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = DefaultConfig().UpdateInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Manager{
		source:  source,
		catalog: cat,
		store:   st,
		cfg:     cfg,
		logger:  logger,
		weights: make(map[string][]float64),
		stopCh:  make(chan struct{}),
	}
}

// Start begins the feed update loop
func (m *Manager) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go m.updateLoop(ctx)
}

// Stop stops the feed update loop and aborts an in-flight cycle
func (m *Manager) Stop() {
	close(m.stopCh)
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Manager) updateLoop(ctx context.Context) {
	defer m.wg.Done()

	// Initial update
	if err := m.Update(ctx); err != nil {
		m.logger.Error("initial update failed", "error", err)
	}

	ticker := time.NewTicker(m.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.Update(ctx); err != nil {
				m.logger.Error("update failed", "error", err)
			}
		case <-m.stopCh:
			return
		}
	}
}

// Update runs one refresh cycle and commits it. Failures of single railways
// or operators are recorded in the store; an error is returned only when the
// cycle could not be committed at all.
func (m *Manager) Update(ctx context.Context) error {
	if m.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.CycleTimeout)
		defer cancel()
	}

	token := m.store.BeginCycle()
	start := time.Now()

	railways := m.catalog.Railways()
	lines := make([]store.LineResult, len(railways))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Concurrency)
	for i, rw := range railways {
		g.Go(func() error {
			lines[i] = m.fetchLine(gctx, rw.ID)
			return nil
		})
	}

	infos, infoErrors := m.fetchInfos(ctx)

	// fetchLine never fails the group
	_ = g.Wait()

	// lines that hit the cycle deadline carry their own error; only an
	// aborted cycle is dropped
	if err := ctx.Err(); errors.Is(err, context.Canceled) {
		return fmt.Errorf("cycle %d: %w", token, err)
	}

	if !m.store.Commit(token, store.Update{
		Lines:      lines,
		Infos:      infos,
		InfoErrors: infoErrors,
		At:         time.Now(),
	}) {
		return fmt.Errorf("cycle %d superseded", token)
	}

	failed := 0
	for _, l := range lines {
		if l.Err != nil {
			failed++
		}
	}
	m.logger.Info("cycle committed",
		"cycle", token,
		"railways", len(lines),
		"failed", failed,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// fetchLine loads stations and trains of one railway in parallel so the
// snapshot pairs data from the same cycle
func (m *Manager) fetchLine(ctx context.Context, railway string) store.LineResult {
	result := store.LineResult{Railway: railway}

	var (
		stations []models.Station
		trains   []models.Train
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stations, err = m.store.Stations(gctx, railway, func(ctx context.Context) ([]models.Station, error) {
			return m.source.Stations(ctx, railway)
		})
		if err != nil {
			return fmt.Errorf("stations: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		trains, err = m.source.Trains(gctx, railway)
		if err != nil {
			return fmt.Errorf("trains: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		m.logger.Warn("railway fetch failed", "railway", railway, "error", err)
		result.Err = err
		return result
	}

	result.Stations = stations
	result.Trains = trains
	if m.cfg.TimeWeighted {
		result.Weights = m.lineWeights(ctx, railway, stations)
	}
	return result
}

// lineWeights returns timetable weights for a railway, fetched once and
// reused. A railway without timetables keeps nil weights (uniform spacing);
// fetch failures are retried next cycle.
func (m *Manager) lineWeights(ctx context.Context, railway string, stations []models.Station) []float64 {
	m.weightsMu.Lock()
	w, ok := m.weights[railway]
	m.weightsMu.Unlock()
	if ok {
		return w
	}

	if len(stations) < 2 {
		return nil
	}

	timetables, err := m.source.Timetables(ctx, railway)
	if err != nil {
		m.logger.Warn("timetable fetch failed", "railway", railway, "error", err)
		return nil
	}

	if len(timetables) > 0 {
		// the timetable that stops most often covers the most segments
		best := timetables[0]
		for _, tt := range timetables[1:] {
			if len(tt.Stops) > len(best.Stops) {
				best = tt
			}
		}

		ids := make([]string, len(stations))
		for i, st := range stations {
			ids[i] = st.ID
		}
		w = position.WeightsFromTimetable(ids, best)
	}

	m.weightsMu.Lock()
	m.weights[railway] = w
	m.weightsMu.Unlock()
	return w
}

// fetchInfos loads service information once per operator group
func (m *Manager) fetchInfos(ctx context.Context) (map[string][]models.OperationInfo, map[string]error) {
	groups := m.catalog.Groups()

	var mu sync.Mutex
	infos := make(map[string][]models.OperationInfo, len(groups))
	errs := make(map[string]error)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Concurrency)
	for _, grp := range groups {
		g.Go(func() error {
			result, err := m.source.TrainInformation(gctx, grp.Operator)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				m.logger.Warn("train information fetch failed", "operator", grp.Operator, "error", err)
				errs[grp.Operator] = err
				return nil
			}
			infos[grp.Operator] = result
			return nil
		})
	}
	_ = g.Wait()

	return infos, errs
}
