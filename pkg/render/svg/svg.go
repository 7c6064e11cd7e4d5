package svg

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/matzehuels/treereplay/pkg/layout"
	"github.com/matzehuels/treereplay/pkg/replay"
	"github.com/matzehuels/treereplay/pkg/tree"
)

// headerHeight is the band above the canvas holding the title and the
// current step. Canvas coordinates start below it.
const headerHeight = 64.0

type palette struct {
	fill, stroke, label string
}

var palettes = map[layout.Kind]palette{
	layout.KindArgument:        {"#EEF4FF", "#3B6FD8", "Claim"},
	layout.KindCounterargument: {"#FFF0F0", "#D64545", "Counter-argument"},
	layout.KindQuestion:        {"#FFF8E6", "#C98A0B", "Question"},
	layout.KindSubject:         {"#F2F2F4", "#5B5B66", "Subject"},
}

const css = `
    text { font-family: -apple-system, "Noto Sans KR", "Helvetica Neue", Arial, sans-serif; fill: #1F2328; }
    .title { font-size: 20px; font-weight: 600; }
    .step { font-size: 13px; fill: #57606A; }
    .kind { font-size: 12px; font-weight: 600; }
    .body { font-size: 14px; }
    .answer { font-size: 14px; font-style: italic; }
    .evidence { font-size: 13px; }
    .source { font-size: 11px; fill: #57606A; }
    .edge { fill: none; stroke: #8C959F; stroke-width: 1.5; }
    .current > rect.node { stroke-width: 3.5; }`

// Option configures [Render].
type Option func(*renderer)

type renderer struct {
	metrics Metrics
	header  bool
}

// WithMetrics sets the text metrics. They should be the ones the frame was
// settled against.
func WithMetrics(m Metrics) Option { return func(r *renderer) { r.metrics = m } }

// WithoutHeader omits the title band.
func WithoutHeader() Option { return func(r *renderer) { r.header = false } }

// Render draws f as an SVG document.
func Render(f replay.Frame, opts ...Option) []byte {
	r := renderer{metrics: DefaultMetrics(), header: true}
	for _, opt := range opts {
		opt(&r)
	}

	top := 0.0
	if r.header {
		top = headerHeight
	}
	w, h := f.Width, f.Height
	if w == 0 || h == 0 {
		w, h = layout.Bounds(f.Nodes, f.Positions, f.Measurements)
	}
	h += top

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.1f %.1f" width="%.0f" height="%.0f">`+"\n", w, h, w, h)
	fmt.Fprintf(&buf, "  <style>%s\n  </style>\n", css)
	buf.WriteString(`  <rect x="0" y="0" width="100%" height="100%" fill="#FFFFFF"/>` + "\n")

	if r.header {
		r.renderHeader(&buf, f, w)
	}

	fmt.Fprintf(&buf, `  <g transform="translate(0 %.1f)">`+"\n", top)
	r.renderSubject(&buf, f.Title)

	geoms := make(map[tree.NodeID]nodeGeometry, len(f.Nodes))
	for _, n := range f.Nodes {
		if p, ok := f.Positions[n.ID]; ok {
			geoms[n.ID] = r.metrics.geometry(n, p)
		}
	}
	for _, n := range f.Nodes {
		if g, ok := geoms[n.ID]; ok {
			renderEdge(&buf, n, g, geoms)
		}
	}
	var current tree.NodeID = -2
	if f.Activity != nil {
		current = f.Activity.Node.ID
	}
	for _, n := range f.Nodes {
		if g, ok := geoms[n.ID]; ok {
			r.renderNode(&buf, n, g, n.ID == current)
		}
	}
	buf.WriteString("  </g>\n")
	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func (r *renderer) renderHeader(buf *bytes.Buffer, f replay.Frame, width float64) {
	title := f.Title
	if title == "" {
		title = "Argument tree"
	}
	step := "No activity yet"
	if !f.Empty && f.Activity != nil {
		step = strconv.Itoa(f.Cursor+1) + "/" + strconv.Itoa(f.Length) + " · " + f.Activity.Describe() +
			" · " + f.Activity.Timestamp.Format("2006-01-02 15:04")
	}
	fmt.Fprintf(buf, `  <text class="title" x="%.1f" y="28">%s</text>`+"\n", layout.Origin.X, escape(title))
	fmt.Fprintf(buf, `  <text class="step" x="%.1f" y="50">%s</text>`+"\n", layout.Origin.X, escape(step))
	if f.Length > 0 {
		// Progress bar across the full width.
		done := width * float64(f.Cursor+1) / float64(f.Length)
		fmt.Fprintf(buf, `  <rect x="0" y="%.1f" width="%.1f" height="3" fill="#D0D7DE"/>`+"\n", headerHeight-4, width)
		fmt.Fprintf(buf, `  <rect x="0" y="%.1f" width="%.1f" height="3" fill="#3B6FD8"/>`+"\n", headerHeight-4, done)
	}
}

func (r *renderer) renderSubject(buf *bytes.Buffer, title string) {
	p := palettes[layout.KindSubject]
	x, y := layout.Origin.X, layout.Origin.Y
	fmt.Fprintf(buf, `    <g class="subject"><rect class="node" x="%.1f" y="%.1f" width="%.1f" height="%.1f" rx="10" fill="%s" stroke="%s" stroke-width="1.5"/>`,
		x, y, layout.NodeWidth, layout.SubjectHeight, p.fill, p.stroke)
	fmt.Fprintf(buf, `<text class="kind" x="%.1f" y="%.1f" fill="%s">%s</text>`, x+r.metrics.Padding, y+20, p.stroke, p.label)
	lines := r.metrics.wrap(title, layout.NodeWidth-2*r.metrics.Padding)
	if len(lines) > 2 {
		lines = lines[:2]
	}
	for i, l := range lines {
		fmt.Fprintf(buf, `<text class="body" x="%.1f" y="%.1f">%s</text>`, x+r.metrics.Padding, y+42+float64(i)*r.metrics.LineHeight, escape(l))
	}
	buf.WriteString("</g>\n")
}

// renderEdge draws the connector from a node's parent (or the parent's
// evidence slot, or the subject) to the node's left edge.
func renderEdge(buf *bytes.Buffer, n layout.RenderableNode, g nodeGeometry, geoms map[tree.NodeID]nodeGeometry) {
	tx, ty := g.x, g.y+20
	if n.OnSubject() {
		sx := layout.Origin.X + 16
		sy := layout.Origin.Y + layout.SubjectHeight
		fmt.Fprintf(buf, `    <path class="edge" d="M %.1f %.1f V %.1f H %.1f"/>`+"\n", sx-8, sy, ty, tx)
		return
	}
	pg, ok := geoms[n.ParentNodeID]
	if !ok {
		return
	}
	sx, sy := pg.x+pg.w, pg.y+20
	if n.ParentEvidenceIndex != nil && *n.ParentEvidenceIndex < len(pg.evidences) {
		ev := pg.evidences[*n.ParentEvidenceIndex]
		sx, sy = ev.x+ev.w, ev.y+ev.h/2
	}
	mx := (sx + tx) / 2
	fmt.Fprintf(buf, `    <path class="edge" d="M %.1f %.1f C %.1f %.1f, %.1f %.1f, %.1f %.1f"/>`+"\n", sx, sy, mx, sy, mx, ty, tx, ty)
}

func (r *renderer) renderNode(buf *bytes.Buffer, n layout.RenderableNode, g nodeGeometry, current bool) {
	p, ok := palettes[n.Kind]
	if !ok {
		p = palettes[layout.KindArgument]
	}
	m := r.metrics
	class := "node-group"
	if current {
		class += " current"
	}
	fmt.Fprintf(buf, `    <g class="%s" id="node-%d" data-creator="%s">`+"\n", class, n.ID, escape(string(n.Node.CreatedBy)))
	fmt.Fprintf(buf, `      <rect class="node" x="%.1f" y="%.1f" width="%.1f" height="%.1f" rx="10" fill="%s" stroke="%s" stroke-width="1.5"/>`+"\n",
		g.x, g.y, g.w, g.height, p.fill, p.stroke)
	fmt.Fprintf(buf, `      <text class="kind" x="%.1f" y="%.1f" fill="%s">%s · %s</text>`+"\n",
		g.x+m.Padding, g.y+m.HeaderHeight-6, p.stroke, p.label, escape(creatorLabel(n.Node.CreatedBy)))

	writeLines(buf, "body", g.x+m.Padding, g.body, m.LineHeight)
	for _, a := range g.answers {
		writeLines(buf, "answer", g.x+2*m.Padding, a, m.LineHeight)
	}
	for _, ev := range g.evidences {
		fmt.Fprintf(buf, `      <rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" rx="6" fill="#FFFFFF" stroke="%s" stroke-opacity="0.5"/>`+"\n",
			ev.x, ev.y, ev.w, ev.h, p.stroke)
		writeLines(buf, "evidence", ev.x+m.Padding, ev.text, m.LineHeight)
		if ev.source != "" {
			y := ev.text.y + float64(len(ev.text.lines))*m.LineHeight
			fmt.Fprintf(buf, `      <text class="source" x="%.1f" y="%.1f">%s</text>`+"\n", ev.x+m.Padding, y, escape(ev.source))
		}
	}
	buf.WriteString("    </g>\n")
}

func writeLines(buf *bytes.Buffer, class string, x float64, b block, lineHeight float64) {
	for i, l := range b.lines {
		fmt.Fprintf(buf, `      <text class="%s" x="%.1f" y="%.1f">%s</text>`+"\n", class, x, b.y+float64(i)*lineHeight, escape(l))
	}
}

func creatorLabel(c tree.Creator) string {
	switch c {
	case tree.CreatorStudent:
		return "Student"
	case tree.CreatorTeacher:
		return "Teacher"
	case tree.CreatorAI:
		return "AI"
	default:
		return string(c)
	}
}

func escape(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
