// Package nodelink renders replay frames as Graphviz node-link diagrams.
//
// Unlike the SVG renderer, which places nodes with the replay layout, this
// package hands the structure to Graphviz and lets it pick positions. It is
// useful for exporting a tree into other tools or for a compact overview.
//
//	dot := nodelink.ToDOT(frame, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// Counter-arguments attached to an evidence item get an edge labelled with
// the evidence number. The node created by the current step is drawn with
// a heavier outline.
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering. PDF and PNG conversion requires librsvg (rsvg-convert).
package nodelink
