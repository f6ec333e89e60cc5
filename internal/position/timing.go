package position

import (
	"strconv"
	"strings"

	"github.com/jusunglee/railboard/internal/models"
)

const (
	minutesPerDay = 24 * 60
	// raw weight for a segment with no usable times
	defaultSegmentMinutes = 2
	minSegmentMinutes     = 1
)

// StationTiming is the scheduled arrival and departure at one station.
// Times use HH:mm.
type StationTiming struct {
	StationID     string
	ArrivalTime   string
	DepartureTime string
}

// ParseMinutes parses HH:mm into minutes after midnight. Hours up to 47 are
// accepted since timetables write after-midnight runs as 24:xx.
func ParseMinutes(s string) (int, bool) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h >= 48 {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m >= 60 {
		return 0, false
	}
	return h*60 + m, true
}

// TimingWeights derives normalized segment weights from consecutive station
// timings. Each segment weighs its scheduled running time in minutes, at
// least 1; a segment missing either time weighs 2.
func TimingWeights(timings []StationTiming) []float64 {
	if len(timings) < 2 {
		return nil
	}

	raw := make([]float64, len(timings)-1)
	var total float64

	for i := 0; i < len(timings)-1; i++ {
		dep := firstNonEmpty(timings[i].DepartureTime, timings[i].ArrivalTime)
		arr := firstNonEmpty(timings[i+1].ArrivalTime, timings[i+1].DepartureTime)

		d := defaultSegmentMinutes
		depMin, okDep := ParseMinutes(dep)
		arrMin, okArr := ParseMinutes(arr)
		if okDep && okArr {
			d = arrMin - depMin
			if d < 0 {
				d += minutesPerDay
			}
			d = max(d, minSegmentMinutes)
		}

		raw[i] = float64(d)
		total += raw[i]
	}

	for i := range raw {
		raw[i] /= total
	}
	return raw
}

// WeightsFromTimetable lines a train timetable up with the station order and
// returns segment weights. Stations the timetable skips count as missing.
// A timetable running towards the first station is read in reverse.
func WeightsFromTimetable(stationIDs []string, tt models.Timetable) []float64 {
	if len(stationIDs) < 2 {
		return nil
	}

	stops := make(map[string]models.TimetableStop, len(tt.Stops))
	for _, s := range tt.Stops {
		if _, ok := stops[s.StationID]; !ok {
			stops[s.StationID] = s
		}
	}

	first, last := -1, -1
	for _, s := range tt.Stops {
		for i, id := range stationIDs {
			if id != s.StationID {
				continue
			}
			if first < 0 {
				first = i
			}
			last = i
			break
		}
	}
	if first < 0 {
		return Uniform(len(stationIDs))
	}
	reversed := last < first

	timings := make([]StationTiming, len(stationIDs))
	for i := range stationIDs {
		idx := i
		if reversed {
			idx = len(stationIDs) - 1 - i
		}
		id := stationIDs[idx]
		s := stops[id]
		timings[i] = StationTiming{StationID: id, ArrivalTime: s.ArrivalTime, DepartureTime: s.DepartureTime}
	}

	weights := TimingWeights(timings)
	if reversed {
		for i, j := 0, len(weights)-1; i < j; i, j = i+1, j-1 {
			weights[i], weights[j] = weights[j], weights[i]
		}
	}
	return weights
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
