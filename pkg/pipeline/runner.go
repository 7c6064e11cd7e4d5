package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/treereplay/pkg/cache"
	"github.com/matzehuels/treereplay/pkg/observability"
	"github.com/matzehuels/treereplay/pkg/replay"
	"github.com/matzehuels/treereplay/pkg/timeline"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and server use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger. Multiple
// goroutines can safely use the same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete load → extract → frame → render pipeline.
func (r *Runner) Execute(ctx context.Context, src Source, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	result := &Result{}

	// Stage 1: Load
	loadStart := time.Now()
	snap, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	if opts.Title != "" {
		snap.Title = opts.Title
	}
	result.Snapshot = snap
	result.SnapshotHash = SnapshotHash(snap)
	result.Stats.LoadTime = time.Since(loadStart)

	// Stage 2: Extract
	extractStart := time.Now()
	acts, stats, err := r.Timeline(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	result.Activities = acts
	result.Statistics = stats
	result.Stats.Activities = len(acts)
	result.Stats.ExtractTime = time.Since(extractStart)

	r.Logger.Info("extracted timeline",
		"activities", len(acts),
		"duration", result.Stats.ExtractTime)

	// Stage 3: Frame
	frameStart := time.Now()
	f, frameHit, err := r.FrameWithCacheInfo(ctx, acts, result.SnapshotHash, opts)
	if err != nil {
		return nil, fmt.Errorf("frame: %w", err)
	}
	f.Title = snap.Title
	result.Frame = f
	result.FrameHash = FrameHash(f)
	result.Stats.Nodes = len(f.Nodes)
	result.Stats.FrameTime = time.Since(frameStart)
	result.CacheInfo.FrameHit = frameHit

	r.Logger.Info("settled frame",
		"cursor", f.Cursor,
		"nodes", len(f.Nodes),
		"passes", f.Passes,
		"stable", f.Stable,
		"duration", result.Stats.FrameTime)

	// Stage 4: Render
	renderStart := time.Now()
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, f, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = renderHit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// Timeline extracts the activity list and statistics from a snapshot.
// Statistics reported by the source take precedence over computed ones.
func (r *Runner) Timeline(ctx context.Context, snap *Snapshot) ([]timeline.Activity, timeline.Statistics, error) {
	start := time.Now()
	acts, err := timeline.Extract(snap.Root)
	observability.Replay().OnExtract(ctx, len(acts), time.Since(start), err)
	if err != nil {
		r.Logger.Warn("malformed tree", "error", err)
		return nil, timeline.Statistics{}, err
	}
	if snap.Statistics != nil {
		return acts, *snap.Statistics, nil
	}
	return acts, timeline.Summarize(acts), nil
}

// Frame is a convenience wrapper that calls FrameWithCacheInfo and discards the cache hit info.
func (r *Runner) Frame(ctx context.Context, activities []timeline.Activity, snapshotHash string, opts Options) (replay.Frame, error) {
	f, _, err := r.FrameWithCacheInfo(ctx, activities, snapshotHash, opts)
	return f, err
}

// RenderWithCacheInfo generates artifacts with caching and returns cache hit info.
// Only formats missing from the cache are rendered.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, f replay.Frame, opts Options) (map[string][]byte, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}

	frameHash := FrameHash(f)
	artifacts := make(map[string][]byte, len(opts.Formats))
	var missing []string

	for _, format := range opts.Formats {
		key := r.Keyer.ArtifactKey(frameHash, opts.ArtifactKeyOpts(format, f.Title))
		if !opts.Refresh {
			if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
				artifacts[format] = data
				continue
			}
		}
		missing = append(missing, format)
	}
	if len(missing) == 0 {
		return artifacts, true, nil // All artifacts from cache
	}

	start := time.Now()
	rendered, err := renderFormats(ctx, f, opts, missing)
	observability.Replay().OnRender(ctx, missing, time.Since(start), err)
	if err != nil {
		return nil, false, err
	}

	for format, data := range rendered {
		key := r.Keyer.ArtifactKey(frameHash, opts.ArtifactKeyOpts(format, f.Title))
		_ = r.Cache.Set(ctx, key, data, cache.TTLArtifact)
		artifacts[format] = data
	}
	return artifacts, false, nil
}

// Render is a convenience wrapper that calls RenderWithCacheInfo and discards the cache hit info.
func (r *Runner) Render(ctx context.Context, f replay.Frame, opts Options) (map[string][]byte, error) {
	artifacts, _, err := r.RenderWithCacheInfo(ctx, f, opts)
	return artifacts, err
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// SnapshotHash returns the content hash of a snapshot's tree. It returns
// an empty string when the tree cannot be encoded, which disables caching.
func SnapshotHash(snap *Snapshot) string {
	if snap == nil || snap.Root == nil {
		return ""
	}
	data, err := json.Marshal(snap.Root)
	if err != nil {
		return ""
	}
	return cache.Hash(data)
}

// FrameHash returns the content hash of a frame, ignoring its version.
func FrameHash(f replay.Frame) string {
	f.Version = 0
	data, err := json.Marshal(f)
	if err != nil {
		return ""
	}
	return cache.Hash(data)
}
