package railboard

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jusunglee/railboard/internal/board"
	"github.com/jusunglee/railboard/internal/catalog"
	"github.com/jusunglee/railboard/internal/feed"
	"github.com/jusunglee/railboard/internal/models"
	"github.com/jusunglee/railboard/internal/render"
	"github.com/jusunglee/railboard/internal/store"
	"github.com/jusunglee/railboard/internal/upstream"
)

// LocalClient implements the Client interface for local usage
// Manages in-memory data store and background feed updates
type LocalClient struct {
	config      Config
	catalog     *catalog.Catalog
	store       *store.Store
	feedManager *feed.Manager
	rotator     *board.Rotator
}

// NewLocal creates a new local client backed by ODPT, or by generated data
// when config.Mock is set. Starts background feed updates.
func NewLocal(config Config, logger *slog.Logger) (*LocalClient, error) {
	cat, err := catalog.Default()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	var source feed.Source
	if config.Mock {
		source = feed.NewMockSource()
	} else {
		if config.ConsumerKey == "" && config.ChallengeConsumerKey == "" {
			return nil, fmt.Errorf("%w: set ODPT_CONSUMER_KEY or USE_MOCK=true", upstream.ErrNoConsumerKey)
		}
		uc := upstream.DefaultConfig()
		if config.BaseURL != "" {
			uc.BaseURL = config.BaseURL
		}
		if config.ChallengeBaseURL != "" {
			uc.ChallengeBaseURL = config.ChallengeBaseURL
		}
		uc.ConsumerKey = config.ConsumerKey
		uc.ChallengeConsumerKey = config.ChallengeConsumerKey
		source = upstream.NewClient(uc, cat, logger)
	}

	return NewLocalWithSource(config, cat, source, logger), nil
}

// NewLocalWithSource creates a local client reading from an arbitrary source
func NewLocalWithSource(config Config, cat *catalog.Catalog, source feed.Source, logger *slog.Logger) *LocalClient {
	if logger == nil {
		logger = slog.Default()
	}
	s := store.NewStore()

	fc := feed.DefaultConfig()
	if config.UpdateInterval > 0 {
		fc.UpdateInterval = config.UpdateInterval
	}
	if config.Concurrency > 0 {
		fc.Concurrency = config.Concurrency
	}
	fc.TimeWeighted = config.TimeWeighted

	fm := feed.NewManager(source, cat, s, fc, logger.With("component", "feed"))
	fm.Start()

	groups := cat.Groups()
	sizes := make([]int, len(groups))
	for i, g := range groups {
		sizes[i] = len(g.Railways)
	}

	return &LocalClient{
		config:      config,
		catalog:     cat,
		store:       s,
		feedManager: fm,
		rotator:     board.NewRotator(sizes, config.RotateInterval),
	}
}

// Close gracefully shuts down the local client
// Must be called to stop background goroutines and prevent leaks
func (c *LocalClient) Close() {
	c.feedManager.Stop()
	c.rotator.Stop()
}

func (c *LocalClient) GetRailways() []catalog.Railway {
	return c.catalog.Railways()
}

func (c *LocalClient) GetLine(railway string) (Line, error) {
	rw, err := c.catalog.Railway(railway)
	if err != nil {
		return Line{}, err
	}
	snap, ok := c.store.Line(rw.ID)
	if !ok {
		return Line{}, fmt.Errorf("%w: %s", ErrNoData, rw.ID)
	}
	return Line{Railway: rw, Snapshot: snap}, nil
}

func (c *LocalClient) GetScene(railway string, opts SceneOptions) (*render.Scene, error) {
	line, err := c.GetLine(railway)
	if err != nil {
		return nil, err
	}

	ro := render.DefaultOptions(c.catalog)
	if opts.Width > 0 {
		ro.Layout.Width = opts.Width
	}
	if opts.MaxStationsPerRow > 0 {
		ro.Layout.MaxStationsPerRow = opts.MaxStationsPerRow
	}

	return render.Build(render.Line{
		Railway:   line.Railway,
		Stations:  line.Snapshot.Stations,
		Trains:    line.Snapshot.Trains,
		Weights:   line.Snapshot.Weights,
		UpdatedAt: line.Snapshot.UpdatedAt,
		Estimated: c.config.Mock,
		Error:     line.Snapshot.Error,
	}, ro)
}

func (c *LocalClient) GetServiceInfo() map[string][]models.OperationInfo {
	return c.store.AllInfos()
}

func (c *LocalClient) GetBoard() Board {
	groups := board.Build(c.catalog, c.store.AllInfos())
	for i := range groups {
		groups[i].Error = c.store.InfoError(groups[i].Operator)
	}
	b := Board{Groups: groups, Selection: c.rotator.Selection()}

	entry, ok := board.Selected(groups, b.Selection)
	if !ok || entry.Info == nil || entry.Info.Text == "" {
		return b
	}
	stations, _ := c.store.CachedStations(entry.RailwayID)
	names := make([]string, len(stations))
	for i, st := range stations {
		names[i] = render.StationName(st, c.catalog)
	}
	b.Notice = board.Highlight(entry.Info.Text, names)
	return b
}

func (c *LocalClient) SelectBoardGroup(index int) (board.Selection, error) {
	return c.rotator.SelectGroup(index)
}

func (c *LocalClient) GetLastUpdate() time.Time {
	return c.store.LastUpdate()
}
