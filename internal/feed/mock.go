package feed

import (
	"context"
	"fmt"

	"github.com/jusunglee/railboard/internal/catalog"
	"github.com/jusunglee/railboard/internal/models"
)

var mockStationNames = []string{
	"Tokyo", "Kanda", "Ochanomizu", "Yotsuya", "Shinjuku", "Nakano",
	"Koenji", "Asagaya", "Ogikubo", "Nishi-Ogikubo", "Kichijoji", "Mitaka",
}

const mockTrainCount = 10

// MockSource serves the same fixed line to every railway so the dashboard
// can run without consumer keys
type MockSource struct{}

// NewMockSource creates a mock source
func NewMockSource() *MockSource {
	return &MockSource{}
}

func mockStationID(i int) string {
	return fmt.Sprintf("mock-station-%d", i)
}

// Stations returns the mock station list
func (MockSource) Stations(_ context.Context, railway string) ([]models.Station, error) {
	stations := make([]models.Station, len(mockStationNames))
	for i, name := range mockStationNames {
		stations[i] = models.Station{
			ID:            mockStationID(i),
			Title:         name,
			StationTitle:  models.LocalizedText{Ja: name, En: name},
			Railway:       railway,
			SequenceIndex: i,
		}
	}
	return stations, nil
}

// Trains returns trains between consecutive stations, alternating direction
func (MockSource) Trains(_ context.Context, railway string) ([]models.Train, error) {
	operator, _ := catalog.OperatorOf(railway)
	trains := make([]models.Train, mockTrainCount)
	for i := range trains {
		dir, raw := models.Outbound, "odpt.RailDirection:Outbound"
		if i%2 == 1 {
			dir, raw = models.Inbound, "odpt.RailDirection:Inbound"
		}
		delay := 0
		if i%5 == 4 {
			delay = 300
		}
		trains[i] = models.Train{
			ID:            fmt.Sprintf("mock-train-%d", i),
			Number:        fmt.Sprintf("%dM", 1000+i),
			Railway:       railway,
			Operator:      operator,
			TrainType:     "odpt.TrainType:JR-East.Rapid",
			FromStationID: mockStationID(i),
			ToStationID:   mockStationID(i + 1),
			Destination:   mockStationID(len(mockStationNames) - 1),
			RawDirection:  raw,
			Direction:     dir,
			DelaySeconds:  delay,
			Cars:          10,
		}
	}
	return trains, nil
}

// TrainInformation reports normal service
func (MockSource) TrainInformation(_ context.Context, operator string) ([]models.OperationInfo, error) {
	return []models.OperationInfo{{
		Operator: operator,
		Status:   models.StatusNormal,
		Text:     "平常どおり運転しています。",
	}}, nil
}

// Timetables has no data in mock mode
func (MockSource) Timetables(context.Context, string) ([]models.Timetable, error) {
	return nil, nil
}
