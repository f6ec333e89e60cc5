// Package position places trains on a normalized 0..1 scale along a railway.
//
// Upstream data only says which station a train left and, optionally, which
// one it is heading to. A train without a next station sits at its origin; a
// train between two stations sits at the midpoint of the segment starting at
// the lower of the two indices. The result depends only on the station order,
// the segment weights and the station pair, so repeated polls of a train that
// has not advanced a segment always land on the same spot.
package position

import (
	"github.com/jusunglee/railboard/internal/models"
)

// Placement is a resolved position along the line
type Placement struct {
	Scalar    float64 `json:"scalar"`
	FromIndex int     `json:"from_index"`
	// ToIndex is -1 while the train is stopped at FromIndex
	ToIndex int `json:"to_index"`
	// Direction is +1 towards the last station, -1 towards the first, 0 when stopped
	Direction int `json:"direction"`
}

// StationIndex returns the placement in station-index space: the origin
// index while stopped, otherwise the middle of the traversed segment. It is
// exact, unlike FractionalIndex(Scalar), which goes through float sums.
func (p Placement) StationIndex() float64 {
	if p.ToIndex < 0 {
		return float64(p.FromIndex)
	}
	return float64(min(p.FromIndex, p.ToIndex)) + 0.5
}

// Resolver maps station pairs to placements for one station order
type Resolver struct {
	ids     []string
	index   map[string]int
	weights []float64
	cum     []float64
}

// New builds a resolver for the given station order. weights holds one
// relative spacing per segment; when it is nil, has the wrong length or does
// not sum to a positive value every segment gets the same share.
func New(stationIDs []string, weights []float64) *Resolver {
	n := len(stationIDs)
	r := &Resolver{
		ids:   stationIDs,
		index: make(map[string]int, n),
	}

	for i, id := range stationIDs {
		// first occurrence wins
		if _, ok := r.index[id]; !ok {
			r.index[id] = i
		}
	}

	r.weights = normalize(weights, n)
	r.cum = make([]float64, n)
	for i := 1; i < n; i++ {
		r.cum[i] = r.cum[i-1] + r.weights[i-1]
	}

	return r
}

// Uniform returns n-1 equal weights summing to 1
func Uniform(n int) []float64 {
	if n < 2 {
		return nil
	}
	w := make([]float64, n-1)
	for i := range w {
		w[i] = 1 / float64(n-1)
	}
	return w
}

func normalize(weights []float64, n int) []float64 {
	if n < 2 {
		return nil
	}
	if len(weights) != n-1 {
		return Uniform(n)
	}

	var sum float64
	for _, w := range weights {
		if w < 0 {
			return Uniform(n)
		}
		sum += w
	}
	if sum <= 0 {
		return Uniform(n)
	}

	result := make([]float64, len(weights))
	for i, w := range weights {
		result[i] = w / sum
	}
	return result
}

// Len returns the number of stations
func (r *Resolver) Len() int {
	return len(r.ids)
}

// Weights returns the normalized segment weights
func (r *Resolver) Weights() []float64 {
	result := make([]float64, len(r.weights))
	copy(result, r.weights)
	return result
}

// IndexOf returns the index of the first station with the given id
func (r *Resolver) IndexOf(id string) (int, bool) {
	i, ok := r.index[id]
	return i, ok
}

// Resolve places a train that left from and is heading to. to may be empty.
// It returns false when from is not on the line.
func (r *Resolver) Resolve(from, to string) (Placement, bool) {
	fromIndex, ok := r.index[from]
	if !ok {
		return Placement{}, false
	}

	toIndex, ok := r.index[to]
	if to == "" || !ok || toIndex == fromIndex {
		return Placement{
			Scalar:    clamp(r.cum[fromIndex]),
			FromIndex: fromIndex,
			ToIndex:   -1,
		}, true
	}

	low, direction := fromIndex, 1
	if toIndex < fromIndex {
		low, direction = toIndex, -1
	}

	scalar := r.cum[low]
	if low < len(r.weights) {
		scalar += r.weights[low] * 0.5
	}

	return Placement{
		Scalar:    clamp(scalar),
		FromIndex: fromIndex,
		ToIndex:   toIndex,
		Direction: direction,
	}, true
}

// FractionalIndex converts a scalar back to station-index space, so that 2.5
// means halfway between the third and fourth station. Station pixels are
// evenly spaced regardless of the weights, so this is what the layout needs.
func (r *Resolver) FractionalIndex(scalar float64) float64 {
	n := len(r.ids)
	if n < 2 {
		return 0
	}
	scalar = clamp(scalar)

	for i, w := range r.weights {
		if w <= 0 {
			continue
		}
		if scalar <= r.cum[i+1] {
			f := float64(i) + (scalar-r.cum[i])/w
			if f < float64(i) {
				f = float64(i)
			}
			return f
		}
	}
	return float64(n - 1)
}

// Resolved is a train together with its placement
type Resolved struct {
	Train models.Train
	Placement
}

// ResolveTrains places every train it can and returns the ids of the trains
// whose origin station is not on the line.
func (r *Resolver) ResolveTrains(trains []models.Train) ([]Resolved, []string) {
	resolved := make([]Resolved, 0, len(trains))
	var unresolved []string

	for _, t := range trains {
		p, ok := r.Resolve(t.FromStationID, t.ToStationID)
		if !ok {
			unresolved = append(unresolved, t.ID)
			continue
		}
		resolved = append(resolved, Resolved{Train: t, Placement: p})
	}

	return resolved, unresolved
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
