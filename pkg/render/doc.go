// Package render turns replay frames into files.
//
// # Formats
//
//   - svg: the frame drawn by [svg.Render]
//   - dot: Graphviz source from [nodelink.ToDOT]
//   - png, pdf: the SVG converted with rsvg-convert ([ToPNG], [ToPDF])
//   - json: the frame itself
//
// PNG and PDF conversion shells out to rsvg-convert from librsvg. Install
// it with `brew install librsvg` (macOS) or `apt install librsvg2-bin`
// (Linux).
//
// [svg.Render]: github.com/matzehuels/treereplay/pkg/render/svg
// [nodelink.ToDOT]: github.com/matzehuels/treereplay/pkg/render/nodelink
package render
