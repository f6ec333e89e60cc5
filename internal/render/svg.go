package render

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"strconv"

	"github.com/jusunglee/railboard/internal/models"
)

const (
	background = "#0f172a"
	labelColor = "#cbd5e1"
	mutedColor = "#94a3b8"
)

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func esc(s string) string {
	return html.EscapeString(s)
}

// WriteSVG writes the scene as a standalone SVG document
func (s *Scene) WriteSVG(w io.Writer) error {
	bw := bufio.NewWriter(w)
	height := s.Height()

	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s" font-family="sans-serif">`+"\n",
		num(s.Width), num(height), num(s.Width), num(height))
	fmt.Fprintf(bw, `<rect width="100%%" height="100%%" fill="%s"/>`+"\n", background)

	s.writeHeader(bw)

	fmt.Fprintf(bw, `<g class="board" transform="translate(0,%s)">`+"\n", num(headerHeight))
	for _, t := range s.Tracks {
		fmt.Fprintf(bw, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="%s" stroke-linecap="round"/>`+"\n",
			num(t.X1), num(t.Y1), num(t.X2), num(t.Y2), esc(s.Color), num(s.LineHeight))
	}
	for _, st := range s.Stations {
		s.writeStation(bw, st)
	}
	for _, b := range s.Badges {
		writeBadge(bw, b)
	}
	bw.WriteString("</g>\n")

	s.writeLegend(bw)
	bw.WriteString("</svg>\n")

	return bw.Flush()
}

func (s *Scene) writeHeader(bw *bufio.Writer) {
	fmt.Fprintf(bw, `<g class="header">`+"\n")
	fmt.Fprintf(bw, `<rect width="%s" height="%s" fill="%s" fill-opacity="0.12"/>`+"\n",
		num(s.Width), num(headerHeight), esc(s.Color))
	fmt.Fprintf(bw, `<circle cx="40" cy="36" r="12" fill="%s"/>`+"\n", esc(s.Color))
	fmt.Fprintf(bw, `<text x="64" y="46" font-size="28" font-weight="bold" fill="#ffffff">%s</text>`+"\n", esc(s.Title))

	right := s.Width - 40
	updated := "--:--:--"
	if !s.UpdatedAt.IsZero() {
		loc := s.Location
		if loc == nil {
			loc = JST
		}
		updated = s.UpdatedAt.In(loc).Format("15:04:05")
	}
	fmt.Fprintf(bw, `<text class="counts" x="%s" y="44" font-size="16" text-anchor="end" fill="#34d399">↑ %d 本 / ↓ %d 本</text>`+"\n",
		num(right), s.Inbound, s.Outbound)
	fmt.Fprintf(bw, `<text class="updated" x="%s" y="44" font-size="16" text-anchor="end" fill="%s">更新: %s</text>`+"\n",
		num(right-180), mutedColor, updated)

	if s.Estimated {
		fmt.Fprintf(bw, `<text class="estimated" x="%s" y="44" font-size="14" text-anchor="end" fill="#facc15">※時刻表ベースの推定位置</text>`+"\n",
			num(right-380))
	}
	if s.Error != "" {
		fmt.Fprintf(bw, `<text class="error" x="64" y="66" font-size="12" fill="#f87171">%s</text>`+"\n", esc(s.Error))
	}
	bw.WriteString("</g>\n")
}

func (s *Scene) writeStation(bw *bufio.Writer, st StationMarker) {
	strokeWidth, fontSize, weight := 2, 9, "normal"
	if st.End {
		strokeWidth, fontSize, weight = 4, 11, "bold"
	}
	fmt.Fprintf(bw, `<g class="station" transform="translate(%s,%s)">`, num(st.X), num(st.Y))
	fmt.Fprintf(bw, `<circle r="%s" fill="#ffffff" stroke="%s" stroke-width="%d"/>`, num(st.Radius), esc(s.Color), strokeWidth)
	fmt.Fprintf(bw, `<text x="0" y="25" transform="rotate(45, 0, 25)" font-size="%d" font-weight="%s" fill="%s">%s</text>`,
		fontSize, weight, labelColor, esc(st.Name))
	bw.WriteString("</g>\n")
}

func writeBadge(bw *bufio.Writer, b Badge) {
	label := b.Type.Label
	if label == "" {
		label = "普通"
	}
	dest := "---"
	if b.Destination != "" {
		dest = b.Destination + "行"
	}
	arrow, arrowX := "▶", 58
	if b.Direction == models.Inbound {
		arrow, arrowX = "◀", -58
	}

	fmt.Fprintf(bw, `<g class="train %s" data-train="%s" transform="translate(%s,%s)">`,
		b.Direction, esc(b.TrainID), num(b.X), num(b.Y))
	fmt.Fprintf(bw, `<rect x="-50" y="-16" width="100" height="32" rx="4" fill="%s"/>`, esc(b.Type.Color))
	fmt.Fprintf(bw, `<text y="-3" font-size="8" font-weight="bold" text-anchor="middle" fill="#ffffff">%s</text>`, esc(label))
	fmt.Fprintf(bw, `<text y="11" font-size="10" font-weight="bold" text-anchor="middle" fill="#ffffff">%s</text>`, esc(dest))
	fmt.Fprintf(bw, `<text x="%d" y="4" font-size="10" text-anchor="middle" fill="%s">%s</text>`, arrowX, mutedColor, arrow)
	if b.Delay > 0 {
		fmt.Fprintf(bw, `<g class="delay" transform="translate(48,-16)"><circle r="8" fill="#ef4444"/><text y="3" font-size="8" text-anchor="middle" fill="#ffffff">+%d</text></g>`, b.DelayMinutes())
	}
	bw.WriteString("</g>\n")
}

func (s *Scene) writeLegend(bw *bufio.Writer) {
	y := headerHeight + s.BoardHeight
	fmt.Fprintf(bw, `<g class="legend" transform="translate(0,%s)">`+"\n", num(y))
	fmt.Fprintf(bw, `<line x1="0" y1="0" x2="%s" y2="0" stroke="#1e293b"/>`+"\n", num(s.Width))
	fmt.Fprintf(bw, `<text x="24" y="29" font-size="13" font-weight="bold" fill="%s">種別:</text>`+"\n", labelColor)

	x := 80
	for _, info := range s.Legend {
		fmt.Fprintf(bw, `<rect x="%d" y="18" width="16" height="12" rx="2" fill="%s"/>`, x, esc(info.Color))
		fmt.Fprintf(bw, `<text x="%d" y="29" font-size="12" fill="%s">%s</text>`+"\n", x+20, mutedColor, esc(info.Label))
		x += 100
	}
	bw.WriteString("</g>\n")
}
