package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/treereplay/pkg/errors"
	"github.com/matzehuels/treereplay/pkg/observability"
	"github.com/matzehuels/treereplay/pkg/render"
	"github.com/matzehuels/treereplay/pkg/render/nodelink"
	"github.com/matzehuels/treereplay/pkg/render/svg"
	"github.com/matzehuels/treereplay/pkg/replay"
)

// Render generates artifacts for the frame in every requested format.
// Formats are rendered concurrently; the first failure cancels the rest.
func Render(ctx context.Context, f replay.Frame, opts Options) (map[string][]byte, error) {
	start := time.Now()
	artifacts, err := renderFormats(ctx, f, opts, opts.Formats)
	observability.Replay().OnRender(ctx, opts.Formats, time.Since(start), err)
	return artifacts, err
}

func renderFormats(ctx context.Context, f replay.Frame, opts Options, formats []string) (map[string][]byte, error) {
	var (
		mu        sync.Mutex
		artifacts = make(map[string][]byte, len(formats))
	)

	// The SVG is shared by the converters; render it once up front.
	var base []byte
	needBase := false
	for _, format := range formats {
		switch render.Format(format) {
		case render.FormatSVG, render.FormatPNG, render.FormatPDF:
			needBase = true
		}
	}
	if needBase {
		base = svg.Render(f, svg.WithMetrics(Metrics))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, format := range formats {
		g.Go(func() error {
			data, err := renderOne(gctx, f, opts, render.Format(format), base)
			if err != nil {
				return fmt.Errorf("render %s: %w", format, err)
			}
			mu.Lock()
			artifacts[format] = data
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return artifacts, nil
}

func renderOne(ctx context.Context, f replay.Frame, opts Options, format render.Format, base []byte) ([]byte, error) {
	switch format {
	case render.FormatSVG:
		return base, nil
	case render.FormatPNG:
		return render.ToPNG(ctx, base, opts.Scale)
	case render.FormatPDF:
		return render.ToPDF(ctx, base)
	case render.FormatDOT:
		return []byte(nodelink.ToDOT(f, nodelink.Options{Detailed: opts.Detailed})), nil
	case render.FormatJSON:
		return json.MarshalIndent(f, "", "  ")
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported format: %s", format)
	}
}
