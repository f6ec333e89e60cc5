package models

import (
	"strings"
	"time"
)

// Direction is the coarse travel direction of a train
type Direction int

const (
	Outbound Direction = iota
	Inbound
)

func (d Direction) String() string {
	if d == Inbound {
		return "inbound"
	}
	return "outbound"
}

// MarshalText encodes the direction as its name
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Status classifies a service information notice
type Status string

const (
	StatusNormal  Status = "normal"
	StatusDelay   Status = "delay"
	StatusSuspend Status = "suspend"
	StatusDirect  Status = "direct"
	StatusOther   Status = "other"
)

// LocalizedText is the canonical shape of text that upstream sends either as
// a plain string or as a language-keyed object
type LocalizedText struct {
	Ja string `json:"ja,omitempty"`
	En string `json:"en,omitempty"`
}

// String prefers Japanese, then English
func (t LocalizedText) String() string {
	if t.Ja != "" {
		return t.Ja
	}
	return t.En
}

// IsZero reports whether no language is set
func (t LocalizedText) IsZero() bool {
	return t.Ja == "" && t.En == ""
}

// Station represents one stop on a railway
type Station struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	StationTitle  LocalizedText `json:"station_title"`
	Code          string        `json:"code,omitempty"`
	Railway       string        `json:"railway"`
	SequenceIndex int           `json:"sequence_index"`
}

// Token returns the last dot-separated part of the station id
func (s Station) Token() string {
	return IDToken(s.ID)
}

// IDToken returns the last dot-separated part of an odpt identifier
func IDToken(id string) string {
	if i := strings.LastIndex(id, "."); i >= 0 {
		return id[i+1:]
	}
	if i := strings.LastIndex(id, ":"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// Train represents one in-service train from the latest poll
type Train struct {
	ID            string    `json:"id"`
	Number        string    `json:"number"`
	Railway       string    `json:"railway"`
	Operator      string    `json:"operator"`
	TrainType     string    `json:"train_type"`
	FromStationID string    `json:"from_station"`
	ToStationID   string    `json:"to_station,omitempty"`
	Destination   string    `json:"destination,omitempty"`
	RawDirection  string    `json:"raw_direction"`
	Direction     Direction `json:"direction"`
	DelaySeconds  int       `json:"delay_seconds"`
	Cars          int       `json:"cars,omitempty"`
}

// Stationary reports whether the train has no next station
func (t Train) Stationary() bool {
	return t.ToStationID == ""
}

// OperationInfo is a normalized service information notice
type OperationInfo struct {
	Railway      string    `json:"railway"`
	Operator     string    `json:"operator"`
	RailwayTitle string    `json:"railway_title,omitempty"`
	Status       Status    `json:"status"`
	Text         string    `json:"text"`
	Cause        string    `json:"cause,omitempty"`
	Updated      time.Time `json:"updated,omitempty"`
}

// TimetableStop is one entry of a train timetable
type TimetableStop struct {
	StationID     string `json:"station"`
	ArrivalTime   string `json:"arrival,omitempty"`
	DepartureTime string `json:"departure,omitempty"`
}

// Timetable is a single train's scheduled stops
type Timetable struct {
	ID          string          `json:"id"`
	Railway     string          `json:"railway"`
	TrainNumber string          `json:"train_number"`
	Stops       []TimetableStop `json:"stops"`
}

// LineSnapshot pairs the station list and trains fetched in the same cycle
type LineSnapshot struct {
	Railway   string    `json:"railway"`
	Stations  []Station `json:"stations"`
	Trains    []Train   `json:"trains"`
	Weights   []float64 `json:"weights,omitempty"`
	Cycle     uint64    `json:"cycle"`
	UpdatedAt time.Time `json:"updated_at"`
	Error     string    `json:"error,omitempty"`
}

// StationIDs returns the station ids in track order
func (s *LineSnapshot) StationIDs() []string {
	ids := make([]string, len(s.Stations))
	for i, st := range s.Stations {
		ids[i] = st.ID
	}
	return ids
}

// CountByDirection returns the number of inbound and outbound trains
func (s *LineSnapshot) CountByDirection() (inbound, outbound int) {
	for _, t := range s.Trains {
		if t.Direction == Inbound {
			inbound++
		} else {
			outbound++
		}
	}
	return inbound, outbound
}

// TrainPlacement is the API view of a positioned train
type TrainPlacement struct {
	TrainID   string    `json:"train_id"`
	Number    string    `json:"number"`
	TrainType string    `json:"train_type"`
	Direction Direction `json:"direction"`
	Scalar    float64   `json:"scalar"`
	Row       int       `json:"row"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Offset    int       `json:"offset"`
	Delay     int       `json:"delay_seconds"`
}

// LineResponse is the API response format for a railway
type LineResponse struct {
	Railway    string           `json:"railway"`
	Name       string           `json:"name"`
	Color      string           `json:"color"`
	Stations   []Station        `json:"stations"`
	Placements []TrainPlacement `json:"placements"`
	Unresolved []string         `json:"unresolved,omitempty"`
	LastUpdate time.Time        `json:"last_update"`
	Error      string           `json:"error,omitempty"`
}
