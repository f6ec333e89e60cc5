// Package render turns a railway snapshot into a scene graph of track
// segments, station markers and train badges, and writes it as SVG.
package render

import (
	"fmt"
	"math"
	"time"

	"github.com/jusunglee/railboard/internal/catalog"
	"github.com/jusunglee/railboard/internal/classify"
	"github.com/jusunglee/railboard/internal/collision"
	"github.com/jusunglee/railboard/internal/layout"
	"github.com/jusunglee/railboard/internal/models"
	"github.com/jusunglee/railboard/internal/position"
)

const (
	// StackSpacing is the distance between stacked badges
	StackSpacing = 36.0
	// CollisionThreshold is the badge footprint along the track
	CollisionThreshold = 70.0

	inboundBadgeOffset  = -45.0
	outboundBadgeOffset = 55.0

	stationRadius    = 6.0
	endStationRadius = 10.0

	headerHeight = 72.0
	legendHeight = 48.0

	// MaxStationsPerRow fits long lines on a single Full HD image
	MaxStationsPerRow = 25
)

// JST is the zone update times are shown in
var JST = time.FixedZone("JST", 9*60*60)

// Line is everything needed to draw one railway
type Line struct {
	Railway   catalog.Railway
	Stations  []models.Station
	Trains    []models.Train
	Weights   []float64
	UpdatedAt time.Time
	// Estimated marks positions that do not come from realtime data
	Estimated bool
	Error     string
}

// Options controls the canvas
type Options struct {
	Layout   layout.Config
	Catalog  *catalog.Catalog
	Location *time.Location
}

// DefaultOptions returns the options used for exported images
func DefaultOptions(cat *catalog.Catalog) Options {
	cfg := layout.DefaultConfig()
	cfg.MaxStationsPerRow = MaxStationsPerRow
	return Options{Layout: cfg, Catalog: cat, Location: JST}
}

// StationMarker is a station circle and its label
type StationMarker struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	End    bool    `json:"end"`
}

// Badge is a positioned train marker. X and TrackY are the point on the
// track; Y is the badge center after stacking.
type Badge struct {
	TrainID     string                 `json:"train_id"`
	Number      string                 `json:"number"`
	Type        classify.TrainTypeInfo `json:"type"`
	Direction   models.Direction       `json:"direction"`
	Destination string                 `json:"destination"`
	Delay       int                    `json:"delay_seconds"`
	Scalar      float64                `json:"scalar"`
	Row         int                    `json:"row"`
	X           float64                `json:"x"`
	TrackY      float64                `json:"track_y"`
	Y           float64                `json:"y"`
	Offset      int                    `json:"offset"`
}

// DelayMinutes rounds the delay to whole minutes
func (b Badge) DelayMinutes() int {
	return int(math.Round(float64(b.Delay) / 60))
}

// Scene is the full draw list for one railway. Board coordinates are
// relative to the area below the header.
type Scene struct {
	RailwayID   string                   `json:"railway_id"`
	Title       string                   `json:"title"`
	Color       string                   `json:"color"`
	Width       float64                  `json:"width"`
	BoardHeight float64                  `json:"board_height"`
	LineHeight  float64                  `json:"line_height"`
	UpdatedAt   time.Time                `json:"updated_at"`
	Location    *time.Location           `json:"-"`
	Estimated   bool                     `json:"estimated"`
	Error       string                   `json:"error,omitempty"`
	Inbound     int                      `json:"inbound"`
	Outbound    int                      `json:"outbound"`
	Tracks      []layout.Segment         `json:"tracks"`
	Stations    []StationMarker          `json:"stations"`
	Badges      []Badge                  `json:"badges"`
	Unresolved  []string                 `json:"unresolved,omitempty"`
	Legend      []classify.TrainTypeInfo `json:"legend"`
}

// Height is the total image height including header and legend
func (s *Scene) Height() float64 {
	return headerHeight + s.BoardHeight + legendHeight
}

// Build lays out the stations, places every resolvable train and stacks
// badges that would overlap. Trains whose origin is not on the line are
// listed in Unresolved.
func Build(line Line, opts Options) (*Scene, error) {
	geo, err := layout.Compute(len(line.Stations), opts.Layout)
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", line.Railway.ID, err)
	}

	loc := opts.Location
	if loc == nil {
		loc = JST
	}

	scene := &Scene{
		RailwayID:   line.Railway.ID,
		Title:       line.Railway.Title,
		Color:       line.Railway.Color,
		Width:       opts.Layout.Width,
		BoardHeight: geo.TotalHeight,
		LineHeight:  opts.Layout.LineHeight,
		UpdatedAt:   line.UpdatedAt,
		Location:    loc,
		Estimated:   line.Estimated || len(line.Trains) == 0,
		Error:       line.Error,
		Tracks:      geo.Segments(),
		Stations:    make([]StationMarker, len(line.Stations)),
	}
	if scene.Title == "" {
		scene.Title = line.Railway.Name
	}
	if scene.Color == "" {
		scene.Color = "#3b82f6"
	}

	for i, st := range line.Stations {
		pt := geo.Stations[i]
		r := stationRadius
		if geo.IsEndStation(i) {
			r = endStationRadius
		}
		scene.Stations[i] = StationMarker{
			ID:     st.ID,
			Name:   StationName(st, opts.Catalog),
			X:      pt.X,
			Y:      pt.Y,
			Radius: r,
			End:    geo.IsEndStation(i),
		}
	}

	for _, t := range line.Trains {
		if t.Direction == models.Inbound {
			scene.Inbound++
		} else {
			scene.Outbound++
		}
	}

	ids := make([]string, len(line.Stations))
	for i, st := range line.Stations {
		ids[i] = st.ID
	}
	resolver := position.New(ids, line.Weights)
	resolved, unresolved := resolver.ResolveTrains(line.Trains)
	scene.Unresolved = unresolved

	byID := make(map[string]Badge, len(resolved))
	groups := map[models.Direction][]collision.Entry{}

	for _, r := range resolved {
		if _, dup := byID[r.Train.ID]; dup {
			continue
		}
		pt, ok := geo.Locate(r.StationIndex(), r.FromIndex)
		if !ok {
			scene.Unresolved = append(scene.Unresolved, r.Train.ID)
			continue
		}
		info := classify.TrainType(r.Train.TrainType)
		byID[r.Train.ID] = Badge{
			TrainID:     r.Train.ID,
			Number:      r.Train.Number,
			Type:        info,
			Direction:   r.Train.Direction,
			Destination: DestinationName(r.Train.Destination, line.Stations, opts.Catalog),
			Delay:       r.Train.DelaySeconds,
			Scalar:      r.Scalar,
			Row:         pt.Row,
			X:           pt.X,
			TrackY:      pt.Y,
		}
		groups[r.Train.Direction] = append(groups[r.Train.Direction], collision.Entry{
			TrainID:  r.Train.ID,
			Row:      pt.Row,
			Position: pt.X,
			Priority: info.Priority,
		})
	}

	for _, dir := range []models.Direction{models.Inbound, models.Outbound} {
		for _, a := range collision.Resolve(groups[dir], CollisionThreshold) {
			b := byID[a.TrainID]
			b.Offset = a.Offset
			stack := float64(a.Offset) * StackSpacing
			if dir == models.Inbound {
				b.Y = b.TrackY + inboundBadgeOffset - stack
			} else {
				b.Y = b.TrackY + outboundBadgeOffset + stack
			}
			scene.Badges = append(scene.Badges, b)
		}
	}

	for _, key := range classify.TrainTypeOrder {
		if info, ok := classify.TrainTypeByKey(key); ok {
			scene.Legend = append(scene.Legend, info)
		}
	}

	return scene, nil
}

// Placements converts the badges to the API representation
func (s *Scene) Placements() []models.TrainPlacement {
	out := make([]models.TrainPlacement, len(s.Badges))
	for i, b := range s.Badges {
		out[i] = models.TrainPlacement{
			TrainID:   b.TrainID,
			Number:    b.Number,
			TrainType: b.Type.Key,
			Direction: b.Direction,
			Scalar:    b.Scalar,
			Row:       b.Row,
			X:         b.X,
			Y:         b.Y,
			Offset:    b.Offset,
			Delay:     b.Delay,
		}
	}
	return out
}
