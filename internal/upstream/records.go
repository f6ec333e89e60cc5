package upstream

import (
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jusunglee/railboard/internal/catalog"
	"github.com/jusunglee/railboard/internal/classify"
	"github.com/jusunglee/railboard/internal/models"
)

func str(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

// strOrFirst reads a field that is either a string or a list of strings
func strOrFirst(s *structpb.Struct, key string) string {
	v := s.GetFields()[key]
	if list := v.GetListValue(); list != nil {
		for _, item := range list.GetValues() {
			if sv := item.GetStringValue(); sv != "" {
				return sv
			}
		}
		return ""
	}
	return v.GetStringValue()
}

// maxDelaySeconds caps reported delays at a day
const maxDelaySeconds = 24 * 60 * 60

// bounded reads a number clamped to [0, hi] so the int conversion cannot
// overflow
func bounded(s *structpb.Struct, key string, hi float64) int {
	return int(math.Min(math.Max(number(s, key), 0), hi))
}

func number(s *structpb.Struct, key string) float64 {
	n := s.GetFields()[key].GetNumberValue()
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return n
}

// localized normalizes text sent either as a plain string or as a
// language-keyed object
func localized(v *structpb.Value) models.LocalizedText {
	if obj := v.GetStructValue(); obj != nil {
		return models.LocalizedText{
			Ja: obj.GetFields()["ja"].GetStringValue(),
			En: obj.GetFields()["en"].GetStringValue(),
		}
	}
	return models.LocalizedText{Ja: v.GetStringValue()}
}

func field(s *structpb.Struct, key string) *structpb.Value {
	return s.GetFields()[key]
}

func identity(s *structpb.Struct) string {
	if id := str(s, "owl:sameAs"); id != "" {
		return id
	}
	return str(s, "@id")
}

func normalizeTrain(s *structpb.Struct) (models.Train, bool) {
	id := identity(s)
	from := str(s, "odpt:fromStation")
	if id == "" || from == "" {
		return models.Train{}, false
	}

	railway := str(s, "odpt:railway")
	operator := str(s, "odpt:operator")
	if operator == "" {
		operator, _ = catalog.OperatorOf(railway)
	}

	raw := str(s, "odpt:railDirection")
	return models.Train{
		ID:            id,
		Number:        str(s, "odpt:trainNumber"),
		Railway:       railway,
		Operator:      operator,
		TrainType:     str(s, "odpt:trainType"),
		FromStationID: from,
		ToStationID:   str(s, "odpt:toStation"),
		Destination:   strOrFirst(s, "odpt:destinationStation"),
		RawDirection:  raw,
		Direction:     classify.Direction(raw),
		DelaySeconds:  bounded(s, "odpt:delay", maxDelaySeconds),
		Cars:          int(number(s, "odpt:carComposition")),
	}, true
}

func normalizeStation(s *structpb.Struct) (models.Station, bool) {
	id := str(s, "owl:sameAs")
	if id == "" {
		return models.Station{}, false
	}
	return models.Station{
		ID:           id,
		Title:        str(s, "dc:title"),
		StationTitle: localized(field(s, "odpt:stationTitle")),
		Code:         str(s, "odpt:stationCode"),
		Railway:      str(s, "odpt:railway"),
	}, true
}

func normalizeInfo(s *structpb.Struct) (models.OperationInfo, bool) {
	operator := str(s, "odpt:operator")
	railway := str(s, "odpt:railway")
	if operator == "" {
		operator, _ = catalog.OperatorOf(railway)
	}
	if operator == "" {
		return models.OperationInfo{}, false
	}

	info := models.OperationInfo{
		Railway:      railway,
		Operator:     operator,
		RailwayTitle: localized(field(s, "odpt:railwayTitle")).String(),
		Status:       classify.Status(localized(field(s, "odpt:trainInformationStatus")).String()),
		Text:         localized(field(s, "odpt:trainInformationText")).String(),
		Cause:        localized(field(s, "odpt:trainInformationCause")).String(),
	}
	if date := str(s, "dc:date"); date != "" {
		if t, err := time.Parse(time.RFC3339, date); err == nil {
			info.Updated = t
		}
	}
	return info, true
}

func normalizeTimetable(s *structpb.Struct) (models.Timetable, bool) {
	id := identity(s)
	if id == "" {
		return models.Timetable{}, false
	}

	tt := models.Timetable{
		ID:          id,
		Railway:     str(s, "odpt:railway"),
		TrainNumber: str(s, "odpt:trainNumber"),
	}
	for _, v := range field(s, "odpt:trainTimetableObject").GetListValue().GetValues() {
		obj := v.GetStructValue()
		if obj == nil {
			continue
		}
		station := str(obj, "odpt:departureStation")
		if station == "" {
			station = str(obj, "odpt:arrivalStation")
		}
		if station == "" {
			continue
		}
		tt.Stops = append(tt.Stops, models.TimetableStop{
			StationID:     station,
			ArrivalTime:   str(obj, "odpt:arrivalTime"),
			DepartureTime: str(obj, "odpt:departureTime"),
		})
	}
	return tt, true
}
