package railboard

import (
	"errors"
	"time"

	"github.com/jusunglee/railboard/internal/board"
	"github.com/jusunglee/railboard/internal/catalog"
	"github.com/jusunglee/railboard/internal/models"
	"github.com/jusunglee/railboard/internal/render"
)

// ErrNoData is returned for a known railway that has not been fetched yet
var ErrNoData = errors.New("no data yet")

// Client defines the interface for accessing railway data
// Abstracts different data sources (local vs remote) behind common interface
type Client interface {
	GetRailways() []catalog.Railway
	GetLine(railway string) (Line, error)
	GetScene(railway string, opts SceneOptions) (*render.Scene, error)

	GetServiceInfo() map[string][]models.OperationInfo

	GetBoard() Board
	SelectBoardGroup(index int) (board.Selection, error)

	GetLastUpdate() time.Time
}

// Line is a catalog railway and its latest snapshot
type Line struct {
	Railway  catalog.Railway
	Snapshot models.LineSnapshot
}

// SceneOptions overrides the canvas; zero values keep the defaults
type SceneOptions struct {
	Width             float64
	MaxStationsPerRow int
}

// Board is the alerts view with the current rotation. Notice is the text of
// the selected railway's notice with its station names highlighted.
type Board struct {
	Groups    []board.Group   `json:"groups"`
	Selection board.Selection `json:"selection"`
	Notice    []board.Part    `json:"notice,omitempty"`
}

// Config holds configuration for the local client
type Config struct {
	BaseURL              string
	ChallengeBaseURL     string
	ConsumerKey          string
	ChallengeConsumerKey string

	// Mock serves generated data and needs no consumer keys
	Mock           bool
	UpdateInterval time.Duration
	RotateInterval time.Duration
	// TimeWeighted spaces trains by scheduled running time
	TimeWeighted bool
	Concurrency  int
}

// DefaultConfig returns default configuration
// 30-second update interval matches how often ODPT refreshes train positions
func DefaultConfig() Config {
	return Config{
		UpdateInterval: 30 * time.Second,
		RotateInterval: board.DefaultRotateInterval,
		Concurrency:    4,
	}
}
