package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/treereplay/pkg/layout"
	"github.com/matzehuels/treereplay/pkg/render"
	"github.com/matzehuels/treereplay/pkg/replay"
	"github.com/matzehuels/treereplay/pkg/tree"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed adds the creator and creation time to node labels.
	Detailed bool
	// MaxLabel truncates node text to this many characters. Zero uses 80.
	MaxLabel int
}

const subjectID = "subject"

var fills = map[layout.Kind]string{
	layout.KindArgument:        "#EEF4FF",
	layout.KindCounterargument: "#FFF0F0",
	layout.KindQuestion:        "#FFF8E6",
	layout.KindSubject:         "#F2F2F4",
}

// ToDOT converts a frame to Graphviz DOT source.
func ToDOT(f replay.Frame, opts Options) string {
	if opts.MaxLabel <= 0 {
		opts.MaxLabel = 80
	}
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [color=\"#8C959F\"];\n")
	buf.WriteString("  ranksep=0.6;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	title := f.Title
	if title == "" {
		title = "Subject"
	}
	fmt.Fprintf(&buf, "  %q [label=%q, fillcolor=%q, penwidth=2];\n", subjectID, truncate(title, opts.MaxLabel), fills[layout.KindSubject])

	var current tree.NodeID = layout.SubjectParent - 1
	if f.Activity != nil {
		current = f.Activity.Node.ID
	}
	visible := layout.ByID(f.Nodes)
	for _, n := range f.Nodes {
		attrs := []string{
			fmt.Sprintf("label=%q", fmtLabel(n, opts)),
			fmt.Sprintf("fillcolor=%q", fills[n.Kind]),
		}
		if n.ID == current {
			attrs = append(attrs, "penwidth=3")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", nodeName(n.ID), strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, n := range f.Nodes {
		from := subjectID
		if !n.OnSubject() {
			if _, ok := visible[n.ParentNodeID]; !ok {
				continue
			}
			from = nodeName(n.ParentNodeID)
		}
		if n.ParentEvidenceIndex != nil {
			fmt.Fprintf(&buf, "  %q -> %q [label=%q, style=dashed];\n", from, nodeName(n.ID), "evidence "+strconv.Itoa(*n.ParentEvidenceIndex+1))
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q;\n", from, nodeName(n.ID))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeName(id tree.NodeID) string { return "n" + id.String() }

func fmtLabel(n layout.RenderableNode, opts Options) string {
	parts := []string{truncate(n.Node.Text(), opts.MaxLabel)}
	for _, a := range n.Node.Answers {
		parts = append(parts, "→ "+truncate(a.Content, opts.MaxLabel))
	}
	if len(n.Evidences) > 0 {
		parts = append(parts, fmt.Sprintf("[%d evidence]", len(n.Evidences)))
	}
	if opts.Detailed {
		parts = append(parts, fmt.Sprintf("%s · %s", n.Node.CreatedBy, n.Node.CreatedAt.Format("2006-01-02 15:04")))
	}
	return strings.Join(parts, "\n")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's pt-based svg tag with one sized in
// px from its view box.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}

// RenderPDF renders a DOT graph as PDF via SVG conversion.
func RenderPDF(ctx context.Context, dot string) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(ctx, svg)
}

// RenderPNG renders a DOT graph as PNG via SVG conversion.
func RenderPNG(ctx context.Context, dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(ctx, svg, scale)
}
