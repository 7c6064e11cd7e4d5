package svg

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/treereplay/pkg/layout"
)

// Metrics estimates how text wraps inside node boxes.
type Metrics struct {
	FontSize     float64 // body text size in px
	CellWidth    float64 // width of one terminal cell in px
	LineHeight   float64
	Padding      float64
	HeaderHeight float64 // kind label band at the top of a node
	EvidenceGap  float64
	MaxLines     int // body lines before truncation; 0 means unlimited
}

// DefaultMetrics matches the styles used by [Render].
func DefaultMetrics() Metrics {
	return Metrics{
		FontSize:     14,
		CellWidth:    7.7,
		LineHeight:   20,
		Padding:      14,
		HeaderHeight: 26,
		EvidenceGap:  8,
		MaxLines:     12,
	}
}

var _ layout.Surface = Metrics{}

// Measure implements [layout.Surface].
func (m Metrics) Measure(nodes []layout.RenderableNode, pos layout.Positions) layout.Measurements {
	out := make(layout.Measurements, len(nodes))
	for _, n := range nodes {
		p, ok := pos[n.ID]
		if !ok {
			continue
		}
		g := m.geometry(n, p)
		out[n.ID] = layout.Box{H: g.height, Evidence: g.slots}
	}
	return out
}

// block is a wrapped run of text positioned inside a node.
type block struct {
	lines []string
	y     float64 // baseline of the first line
}

// evidenceBox is the drawn area of one evidence item.
type evidenceBox struct {
	x, y, w, h float64
	text       block
	source     string
}

// nodeGeometry is the full drawn geometry of a node.
type nodeGeometry struct {
	x, y, w, height float64
	body            block
	answers         []block
	evidences       []evidenceBox
	slots           []layout.Position
}

func (m Metrics) geometry(n layout.RenderableNode, p layout.Position) nodeGeometry {
	g := nodeGeometry{x: p.X, y: p.Y, w: layout.NodeWidth}
	inner := g.w - 2*m.Padding
	y := p.Y + m.HeaderHeight + m.Padding

	g.body = block{lines: m.wrap(n.Node.Text(), inner), y: y + m.FontSize}
	y += float64(len(g.body.lines)) * m.LineHeight

	for _, a := range n.Node.Answers {
		y += m.EvidenceGap
		b := block{lines: m.wrap("→ "+a.Content, inner-m.Padding), y: y + m.FontSize}
		g.answers = append(g.answers, b)
		y += float64(len(b.lines)) * m.LineHeight
	}

	for _, ev := range n.Evidences {
		y += m.EvidenceGap
		ex := p.X + m.Padding
		ew := inner
		text := m.wrap(ev.Text(), ew-2*m.Padding)
		h := m.Padding + float64(len(text))*m.LineHeight + m.Padding/2
		if ev.Source != "" {
			h += m.LineHeight
		}
		g.evidences = append(g.evidences, evidenceBox{
			x: ex, y: y, w: ew, h: h,
			text:   block{lines: text, y: y + m.Padding/2 + m.FontSize},
			source: ev.Source,
		})
		// Counter-arguments attach beside the evidence item.
		g.slots = append(g.slots, layout.Position{X: p.X + g.w, Y: y})
		y += h
	}

	g.height = y + m.Padding - p.Y
	return g
}

// wrap breaks text into lines no wider than width px, honoring explicit
// newlines. Words longer than a line are broken by character.
func (m Metrics) wrap(text string, width float64) []string {
	maxCells := max(1, int(width/m.CellWidth))
	var lines []string
	for _, para := range strings.Split(strings.TrimSpace(text), "\n") {
		lines = append(lines, wrapParagraph(strings.TrimSpace(para), maxCells)...)
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	if m.MaxLines > 0 && len(lines) > m.MaxLines {
		lines = lines[:m.MaxLines]
		lines[m.MaxLines-1] = truncate(lines[m.MaxLines-1], maxCells-1) + "…"
	}
	return lines
}

func wrapParagraph(para string, maxCells int) []string {
	if para == "" {
		return []string{""}
	}
	var lines []string
	var cur strings.Builder
	curW := 0
	flush := func() {
		lines = append(lines, strings.TrimRight(cur.String(), " "))
		cur.Reset()
		curW = 0
	}
	for _, word := range strings.Fields(para) {
		w := lipgloss.Width(word)
		if curW > 0 && curW+1+w > maxCells {
			flush()
		}
		if w > maxCells {
			for _, r := range word {
				rw := lipgloss.Width(string(r))
				if curW+rw > maxCells {
					flush()
				}
				cur.WriteRune(r)
				curW += rw
			}
			continue
		}
		if curW > 0 {
			cur.WriteByte(' ')
			curW++
		}
		cur.WriteString(word)
		curW += w
	}
	if cur.Len() > 0 {
		flush()
	}
	return lines
}

func truncate(s string, maxCells int) string {
	var b strings.Builder
	w := 0
	for _, r := range s {
		rw := lipgloss.Width(string(r))
		if w+rw > maxCells {
			break
		}
		b.WriteRune(r)
		w += rw
	}
	return b.String()
}
