// Package board builds the operator-grouped service information view and
// the rotating selection shown on the alerts screen.
package board

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/jusunglee/railboard/internal/catalog"
	"github.com/jusunglee/railboard/internal/models"
)

// StatusLabel is the display text of each status
var StatusLabel = map[models.Status]string{
	models.StatusNormal:  "平常運転",
	models.StatusDelay:   "遅延",
	models.StatusSuspend: "運転見合わせ",
	models.StatusDirect:  "直通運転情報",
	models.StatusOther:   "運行情報",
}

// Entry is one railway row of a group
type Entry struct {
	RailwayID string                `json:"railway_id"`
	Name      string                `json:"name"`
	Status    models.Status         `json:"status"`
	Label     string                `json:"label"`
	Info      *models.OperationInfo `json:"info,omitempty"`
}

// Group is an operator and the status of each of its railways
type Group struct {
	Label    string  `json:"label"`
	Operator string  `json:"operator"`
	Color    string  `json:"color"`
	Entries  []Entry `json:"entries"`
	Error    string  `json:"error,omitempty"`
}

// Build groups service information by catalog operator group. The first
// notice per railway wins; normal notices without text are dropped, and a
// railway without a notice is shown as normal.
func Build(cat *catalog.Catalog, infos map[string][]models.OperationInfo) []Group {
	groups := cat.Groups()
	result := make([]Group, len(groups))

	for gi, g := range groups {
		byRailway := make(map[string]models.OperationInfo)
		for _, info := range infos[g.Operator] {
			if info.Railway == "" {
				continue
			}
			if info.Status == models.StatusNormal && info.Text == "" {
				continue
			}
			if _, seen := byRailway[info.Railway]; !seen {
				byRailway[info.Railway] = info
			}
		}

		entries := make([]Entry, len(g.Railways))
		for i, rw := range g.Railways {
			e := Entry{RailwayID: rw.ID, Name: rw.Name, Status: models.StatusNormal}
			if info, ok := byRailway[rw.ID]; ok {
				e.Status = info.Status
				e.Info = &info
			}
			e.Label = StatusLabel[e.Status]
			entries[i] = e
		}

		result[gi] = Group{
			Label:    g.Label,
			Operator: g.Operator,
			Color:    g.Color,
			Entries:  entries,
		}
	}
	return result
}

// Selected returns the entry a selection points at
func Selected(groups []Group, sel Selection) (Entry, bool) {
	if sel.Group < 0 || sel.Group >= len(groups) {
		return Entry{}, false
	}
	entries := groups[sel.Group].Entries
	if sel.Railway < 0 || sel.Railway >= len(entries) {
		return Entry{}, false
	}
	return entries[sel.Railway], true
}

const (
	minHighlightRunes = 2
	maxHighlightNames = 120
)

// Part is a piece of notice text, highlighted when it is a station name
type Part struct {
	Text        string `json:"text"`
	Highlighted bool   `json:"highlighted,omitempty"`
}

// Highlight splits text around station names. Single-character names are
// ignored and longer names win over names they contain.
func Highlight(text string, names []string) []Part {
	var candidates []string
	for _, n := range names {
		if utf8.RuneCountInString(n) < minHighlightRunes || slices.Contains(candidates, n) {
			continue
		}
		candidates = append(candidates, n)
		if len(candidates) == maxHighlightNames {
			break
		}
	}
	if text == "" || len(candidates) == 0 {
		return []Part{{Text: text}}
	}

	slices.SortStableFunc(candidates, func(a, b string) int {
		return len(b) - len(a)
	})
	quoted := make([]string, len(candidates))
	for i, c := range candidates {
		quoted[i] = regexp.QuoteMeta(c)
	}
	re := regexp.MustCompile(strings.Join(quoted, "|"))

	var parts []Part
	last := 0
	for _, m := range re.FindAllStringIndex(text, -1) {
		if m[0] > last {
			parts = append(parts, Part{Text: text[last:m[0]]})
		}
		parts = append(parts, Part{Text: text[m[0]:m[1]], Highlighted: true})
		last = m[1]
	}
	if last < len(text) {
		parts = append(parts, Part{Text: text[last:]})
	}
	return parts
}
