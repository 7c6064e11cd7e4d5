// Package pipeline renders replay frames from tree snapshots.
//
// This package implements the load → extract → frame → render pipeline used
// by the CLI and the dashboard server. Centralizing it keeps caching and
// defaults identical for both entry points.
//
// # Architecture
//
// The pipeline consists of four stages:
//
//  1. Load: read a snapshot from a [Source] (a file or the classroom API)
//  2. Extract: turn the tree into a sorted activity list
//  3. Frame: build and settle the [replay.Frame] at a cursor
//  4. Render: produce artifacts (SVG, PNG, PDF, DOT, JSON) concurrently
//
// Frames and artifacts are cached by content hash, so re-rendering an
// unchanged snapshot is a cache lookup.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.FileSource{Path: "tree.json"}, pipeline.Options{
//	    Cursor:  pipeline.CursorEnd,
//	    Formats: []string{"svg", "png"},
//	})
//	svg := result.Artifacts["svg"]
package pipeline

import (
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/treereplay/pkg/cache"
	"github.com/matzehuels/treereplay/pkg/errors"
	"github.com/matzehuels/treereplay/pkg/layout"
	"github.com/matzehuels/treereplay/pkg/render"
	"github.com/matzehuels/treereplay/pkg/replay"
	"github.com/matzehuels/treereplay/pkg/timeline"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// CursorEnd selects the last activity.
	CursorEnd = -1

	// DefaultScale is the PNG resolution multiplier.
	DefaultScale = 2.0
)

// DefaultFormat is rendered when no format is requested.
const DefaultFormat = render.FormatSVG

// =============================================================================
// Options
// =============================================================================

// Options configures a pipeline run. It supports JSON for API requests.
type Options struct {
	// Frame options
	Cursor    int `json:"cursor"`
	MaxPasses int `json:"max_passes,omitempty"`

	// Render options
	Formats  []string `json:"formats,omitempty"`
	Title    string   `json:"title,omitempty"` // overrides the snapshot title
	Detailed bool     `json:"detailed,omitempty"`
	Scale    float64  `json:"scale,omitempty"`

	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`
}

// ValidateAndSetDefaults checks the options and fills in defaults. It is
// idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Cursor < CursorEnd {
		return errors.New(errors.ErrCodeInvalidCursor, "cursor must be >= 0 or %d for the last step", CursorEnd)
	}
	if o.MaxPasses <= 0 {
		o.MaxPasses = layout.DefaultMaxPasses
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{string(DefaultFormat)}
	}
	seen := make(map[string]bool, len(o.Formats))
	formats := o.Formats[:0:0]
	for _, f := range o.Formats {
		parsed, err := render.ParseFormat(f)
		if err != nil {
			return err
		}
		if !seen[string(parsed)] {
			seen[string(parsed)] = true
			formats = append(formats, string(parsed))
		}
	}
	o.Formats = formats
	if o.Scale <= 0 {
		o.Scale = DefaultScale
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// HasFormat reports whether f was requested.
func (o *Options) HasFormat(f render.Format) bool {
	return slices.Contains(o.Formats, string(f))
}

// FrameKeyOpts returns cache key options for frame computation.
func (o *Options) FrameKeyOpts(cursor int) cache.FrameKeyOpts {
	return cache.FrameKeyOpts{Cursor: cursor, MaxPasses: o.MaxPasses}
}

// ArtifactKeyOpts returns cache key options for artifact rendering.
func (o *Options) ArtifactKeyOpts(format, title string) cache.ArtifactKeyOpts {
	k := cache.ArtifactKeyOpts{Format: format, Title: title}
	switch render.Format(format) {
	case render.FormatDOT:
		k.Detailed = o.Detailed
	case render.FormatPNG:
		k.Scale = o.Scale
	}
	return k
}

// =============================================================================
// Results
// =============================================================================

// Result contains the outputs of a pipeline run.
type Result struct {
	Snapshot     *Snapshot
	SnapshotHash string
	Activities   []timeline.Activity
	Statistics   timeline.Statistics
	Frame        replay.Frame
	FrameHash    string

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains pipeline timing information.
type Stats struct {
	Activities  int
	Nodes       int
	LoadTime    time.Duration
	ExtractTime time.Duration
	FrameTime   time.Duration
	RenderTime  time.Duration
}

// CacheInfo tracks cache hits for each stage.
type CacheInfo struct {
	FrameHit  bool
	RenderHit bool // all artifacts came from cache
}
