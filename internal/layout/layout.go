package layout

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDimensions is returned for negative sizes or station counts
var ErrInvalidDimensions = errors.New("invalid layout dimensions")

// Padding around the drawable area in pixels
type Padding struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// Config holds canvas size and spacing constants
type Config struct {
	Width             float64 `json:"width"`
	Height            float64 `json:"height"`
	MaxStationsPerRow int     `json:"max_stations_per_row"`
	Padding           Padding `json:"padding"`
	RowSpacing        float64 `json:"row_spacing"`
	// TrailingMargin leaves room under the last row for labels and badges
	TrailingMargin float64 `json:"trailing_margin"`
	MinHeight      float64 `json:"min_height"`
	LineHeight     float64 `json:"line_height"`
}

// DefaultConfig returns a Full HD canvas with ten stations per row
func DefaultConfig() Config {
	return Config{
		Width:             1920,
		Height:            1080,
		MaxStationsPerRow: 10,
		Padding:           Padding{Left: 80, Right: 80, Top: 100, Bottom: 80},
		RowSpacing:        200,
		TrailingMargin:    150,
		MinHeight:         500,
		LineHeight:        8,
	}
}

func (c Config) validate() error {
	values := []float64{
		c.Width, c.Height, c.RowSpacing, c.TrailingMargin, c.MinHeight, c.LineHeight,
		c.Padding.Left, c.Padding.Right, c.Padding.Top, c.Padding.Bottom,
	}
	for _, v := range values {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %v", ErrInvalidDimensions, v)
		}
	}
	return nil
}

// Point is a station's pixel position
type Point struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Row   int     `json:"row"`
	Index int     `json:"index"`
}

// Row describes one wrapped line of stations
type Row struct {
	Index  int     `json:"index"`
	Y      float64 `json:"y"`
	XStart float64 `json:"x_start"`
	XEnd   float64 `json:"x_end"`
	First  int     `json:"first"`
	Last   int     `json:"last"`
}

// Count returns the number of stations in the row
func (r Row) Count() int {
	return r.Last - r.First + 1
}

// Segment is a straight piece of track
type Segment struct {
	Row int     `json:"row"`
	X1  float64 `json:"x1"`
	Y1  float64 `json:"y1"`
	X2  float64 `json:"x2"`
	Y2  float64 `json:"y2"`
}

// Geometry is the pixel layout of a station list
type Geometry struct {
	Config         Config  `json:"config"`
	NumRows        int     `json:"num_rows"`
	StationsPerRow int     `json:"stations_per_row"`
	AvailableWidth float64 `json:"available_width"`
	Rows           []Row   `json:"rows"`
	Stations       []Point `json:"stations"`
	TotalHeight    float64 `json:"total_height"`
}

// Compute lays out n stations. The result depends only on n and cfg.
//
// Rows are filled as evenly as possible: with 25 stations and at most 10 per
// row there are 3 rows of 9, 8 and 8 stations. Stations are evenly spaced
// between the side paddings; a row with one station centers it.
func Compute(n int, cfg Config) (*Geometry, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: station count %d", ErrInvalidDimensions, n)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxStationsPerRow < 1 {
		cfg.MaxStationsPerRow = 1
	}

	available := math.Max(cfg.Width-cfg.Padding.Left-cfg.Padding.Right, 0)

	g := &Geometry{
		Config:         cfg,
		AvailableWidth: available,
		Stations:       make([]Point, 0, n),
	}

	if n > 0 {
		g.NumRows = ceilDiv(n, cfg.MaxStationsPerRow)
		g.StationsPerRow = ceilDiv(n, g.NumRows)
	}

	base, extra := 0, 0
	if g.NumRows > 0 {
		base, extra = n/g.NumRows, n%g.NumRows
	}

	idx := 0
	for row := 0; row < g.NumRows; row++ {
		count := base
		if row < extra {
			count++
		}
		y := cfg.Padding.Top + float64(row)*cfg.RowSpacing

		for pos := 0; pos < count; pos++ {
			x := cfg.Padding.Left + available/2
			if count > 1 {
				x = cfg.Padding.Left + float64(pos)/float64(count-1)*available
			}
			g.Stations = append(g.Stations, Point{X: x, Y: y, Row: row, Index: idx + pos})
		}

		g.Rows = append(g.Rows, Row{
			Index:  row,
			Y:      y,
			XStart: g.Stations[idx].X,
			XEnd:   g.Stations[idx+count-1].X,
			First:  idx,
			Last:   idx + count - 1,
		})
		idx += count
	}

	height := cfg.Padding.Top + float64(max(g.NumRows-1, 0))*cfg.RowSpacing + cfg.TrailingMargin + cfg.Padding.Bottom
	g.TotalHeight = math.Max(height, cfg.MinHeight)

	return g, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// Segments returns one track segment per row
func (g *Geometry) Segments() []Segment {
	segments := make([]Segment, len(g.Rows))
	for i, r := range g.Rows {
		segments[i] = Segment{Row: r.Index, X1: r.XStart, Y1: r.Y, X2: r.XEnd, Y2: r.Y}
	}
	return segments
}

// IsEndStation reports whether i is the first or last station of the line
func (g *Geometry) IsEndStation(i int) bool {
	return i == 0 || i == len(g.Stations)-1
}

// Locate projects a fractional station index onto the canvas. Within a row
// the point is interpolated between the two neighbouring stations. A segment
// that wraps to the next row has no drawn track, so the point stays at from,
// the station the train left. When from is not an end of that segment the
// point snaps to the nearer station, the lower index on a tie.
func (g *Geometry) Locate(frac float64, from int) (Point, bool) {
	n := len(g.Stations)
	if n == 0 || math.IsNaN(frac) {
		return Point{}, false
	}

	frac = math.Min(math.Max(frac, 0), float64(n-1))
	lo := int(math.Floor(frac))
	if lo >= n-1 {
		return g.Stations[n-1], true
	}

	t := frac - float64(lo)
	a, b := g.Stations[lo], g.Stations[lo+1]

	if a.Row != b.Row {
		switch from {
		case lo:
			return a, true
		case lo + 1:
			return b, true
		}
		if t <= 0.5 {
			return a, true
		}
		return b, true
	}

	return Point{
		X:     a.X + (b.X-a.X)*t,
		Y:     a.Y,
		Row:   a.Row,
		Index: lo,
	}, true
}
