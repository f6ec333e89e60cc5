package render

import (
	"github.com/jusunglee/railboard/internal/catalog"
	"github.com/jusunglee/railboard/internal/models"
)

func hasLatin(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

// StationName picks a display name for a station. Upstream titles are used
// when they are real Japanese names; romanized placeholders are replaced from
// the catalog's name table, keyed by the last token of the id.
func StationName(st models.Station, cat *catalog.Catalog) string {
	return displayName(st.ID, &st, cat)
}

// DestinationName resolves a destination station id against the line's
// stations with the same fallback chain as StationName
func DestinationName(id string, stations []models.Station, cat *catalog.Catalog) string {
	if id == "" {
		return ""
	}
	for i := range stations {
		if stations[i].ID == id {
			return displayName(id, &stations[i], cat)
		}
	}
	return displayName(id, nil, cat)
}

func displayName(id string, st *models.Station, cat *catalog.Catalog) string {
	if st != nil {
		if ja := st.StationTitle.Ja; ja != "" && !hasLatin(ja) {
			return ja
		}
		if st.Title != "" && !hasLatin(st.Title) {
			return st.Title
		}
	}

	token := models.IDToken(id)
	if cat != nil {
		if name, ok := cat.StationName(token); ok {
			return name
		}
	}

	if st != nil {
		if st.StationTitle.Ja != "" {
			return st.StationTitle.Ja
		}
		if st.Title != "" {
			return st.Title
		}
	}
	return token
}
