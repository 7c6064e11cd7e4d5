// Package svg draws replay frames as standalone SVG documents.
//
// The same text metrics that lay out a node's box when drawing are exposed
// as a [layout.Surface] through [Metrics], so a frame settled against
// Metrics is drawn without overlap:
//
//	m := svg.DefaultMetrics()
//	f, _ := replay.ComposeAt(ctx, activities, cursor, m, 0)
//	doc := svg.Render(f, svg.WithMetrics(m))
//
// Text widths are estimated in terminal cells, which counts East Asian wide
// characters twice, multiplied by an average glyph width.
package svg
