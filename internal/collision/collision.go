// Package collision stacks train markers that would overlap on the board.
//
// Entries are clustered per row: sorted by position, a new cluster starts
// whenever the gap to the previous entry exceeds the threshold. Inside a
// cluster the highest priority train gets offset 0, so faster services stay
// closest to the track.
package collision

import (
	"cmp"
	"slices"
)

// Entry is one train marker in a single direction group
type Entry struct {
	TrainID  string  `json:"train_id"`
	Row      int     `json:"row"`
	Position float64 `json:"position"`
	Priority int     `json:"priority"`
}

// Assignment is the stacking slot given to an entry
type Assignment struct {
	Entry
	Offset  int `json:"offset"`
	Cluster int `json:"cluster"`
}

// Resolve assigns an offset to every entry. The result is ordered by row,
// then cluster, then offset, and does not depend on the order of entries.
// threshold is in the same unit as Position; a negative value counts as 0.
func Resolve(entries []Entry, threshold float64) []Assignment {
	if threshold < 0 {
		threshold = 0
	}

	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b Entry) int {
		return cmp.Or(
			cmp.Compare(a.Row, b.Row),
			cmp.Compare(a.Position, b.Position),
			cmp.Compare(b.Priority, a.Priority),
			cmp.Compare(a.TrainID, b.TrainID),
		)
	})

	result := make([]Assignment, 0, len(sorted))
	cluster := -1

	for start := 0; start < len(sorted); {
		end := start + 1
		for end < len(sorted) &&
			sorted[end].Row == sorted[start].Row &&
			sorted[end].Position-sorted[end-1].Position <= threshold {
			end++
		}

		cluster++
		members := sorted[start:end]
		slices.SortStableFunc(members, byPriority)
		for i, e := range members {
			result = append(result, Assignment{Entry: e, Offset: i, Cluster: cluster})
		}
		start = end
	}

	return result
}

func byPriority(a, b Entry) int {
	return cmp.Or(
		cmp.Compare(b.Priority, a.Priority),
		cmp.Compare(a.Position, b.Position),
		cmp.Compare(a.TrainID, b.TrainID),
	)
}

// Offsets indexes assignments by train id
func Offsets(assignments []Assignment) map[string]int {
	m := make(map[string]int, len(assignments))
	for _, a := range assignments {
		m[a.TrainID] = a.Offset
	}
	return m
}

// Clusters returns the train ids of each cluster, in cluster order
func Clusters(assignments []Assignment) [][]string {
	var out [][]string
	for _, a := range assignments {
		for len(out) <= a.Cluster {
			out = append(out, nil)
		}
		out[a.Cluster] = append(out[a.Cluster], a.TrainID)
	}
	return out
}
