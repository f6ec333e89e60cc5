// Package classify maps raw upstream strings onto the small enumerations the
// dashboard works with. Every mapping is an ordered rule table: the first rule
// whose pattern is a substring of the input wins.
package classify

import (
	"strings"

	"github.com/jusunglee/railboard/internal/models"
)

type rule[T any] struct {
	patterns []string
	value    T
}

func match[T any](raw string, rules []rule[T], fallback T) T {
	for _, r := range rules {
		for _, p := range r.patterns {
			if strings.Contains(raw, p) {
				return r.value
			}
		}
	}
	return fallback
}

var directionRules = []rule[models.Direction]{
	{patterns: []string{"Inbound", "Westbound", "Northbound"}, value: models.Inbound},
}

// Direction buckets an odpt:railDirection value into inbound or outbound
func Direction(raw string) models.Direction {
	return match(raw, directionRules, models.Outbound)
}

// Suspension is checked before delay since suspension notices often
// mention delays as well.
var statusRules = []rule[models.Status]{
	{patterns: []string{"運転見合わせ", "見合わせ", "Suspend", "suspend"}, value: models.StatusSuspend},
	{patterns: []string{"直通"}, value: models.StatusDirect},
	{patterns: []string{"遅延", "Delay", "delay"}, value: models.StatusDelay},
	{patterns: []string{"平常", "Normal", "normal"}, value: models.StatusNormal},
}

// Status classifies an odpt:trainInformationStatus text
func Status(raw string) models.Status {
	return match(raw, statusRules, models.StatusOther)
}

// TrainTypeInfo is display metadata for a service tier
type TrainTypeInfo struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Color    string `json:"color"`
	Priority int    `json:"priority"`
}

const defaultTrainType = "default"

var trainTypes = map[string]TrainTypeInfo{
	"LimitedExpress":       {Key: "LimitedExpress", Label: "特急", Color: "#dc2626", Priority: 100},
	"Express":              {Key: "Express", Label: "急行", Color: "#ea580c", Priority: 90},
	"RapidExpress":         {Key: "RapidExpress", Label: "快速急行", Color: "#d97706", Priority: 85},
	"CommuterRapidExpress": {Key: "CommuterRapidExpress", Label: "通勤快急", Color: "#ca8a04", Priority: 80},
	"Rapid":                {Key: "Rapid", Label: "快速", Color: "#16a34a", Priority: 70},
	"CommuterRapid":        {Key: "CommuterRapid", Label: "通勤快速", Color: "#15803d", Priority: 65},
	"SemiExpress":          {Key: "SemiExpress", Label: "準急", Color: "#2563eb", Priority: 60},
	"Local":                {Key: "Local", Label: "普通", Color: "#475569", Priority: 10},
	defaultTrainType:       {Key: defaultTrainType, Label: "", Color: "#64748b", Priority: 50},
}

// TrainTypeOrder lists the known train types from highest to lowest priority
var TrainTypeOrder = []string{
	"LimitedExpress",
	"Express",
	"RapidExpress",
	"CommuterRapidExpress",
	"Rapid",
	"CommuterRapid",
	"SemiExpress",
	"Local",
}

// TrainType resolves an odpt:trainType value such as
// odpt.TrainType:JR-East.Rapid to its display metadata
func TrainType(raw string) TrainTypeInfo {
	key := models.IDToken(raw)
	if info, ok := trainTypes[key]; ok {
		return info
	}
	return trainTypes[defaultTrainType]
}

// TrainTypeByKey returns the metadata for a bare key like Rapid
func TrainTypeByKey(key string) (TrainTypeInfo, bool) {
	info, ok := trainTypes[key]
	return info, ok
}
