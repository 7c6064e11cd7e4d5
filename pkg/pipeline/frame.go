package pipeline

import (
	"context"
	"encoding/json"

	"github.com/matzehuels/treereplay/pkg/cache"
	"github.com/matzehuels/treereplay/pkg/errors"
	"github.com/matzehuels/treereplay/pkg/render/svg"
	"github.com/matzehuels/treereplay/pkg/replay"
	"github.com/matzehuels/treereplay/pkg/timeline"
)

// Metrics is the text measurement used to settle frames. It must match
// the metrics the SVG renderer draws with.
var Metrics = svg.DefaultMetrics()

// ResolveCursor maps [CursorEnd] to the last index and rejects cursors
// outside a non-empty list.
func ResolveCursor(cursor, length int) (int, error) {
	if cursor == CursorEnd {
		return max(0, length-1), nil
	}
	if length > 0 && cursor >= length {
		return 0, errors.New(errors.ErrCodeInvalidCursor, "cursor %d out of range [0, %d)", cursor, length)
	}
	if cursor < 0 {
		return 0, errors.New(errors.ErrCodeInvalidCursor, "cursor %d is negative", cursor)
	}
	return cursor, nil
}

// BuildFrame composes the settled frame at cursor.
func BuildFrame(ctx context.Context, activities []timeline.Activity, cursor int, opts Options) (replay.Frame, error) {
	cursor, err := ResolveCursor(cursor, len(activities))
	if err != nil {
		return replay.Frame{}, err
	}
	return replay.ComposeAt(ctx, activities, cursor, Metrics, opts.MaxPasses)
}

// FrameWithCacheInfo builds a frame, using the cache keyed by snapshot
// hash and cursor. It reports whether the frame came from the cache.
func (r *Runner) FrameWithCacheInfo(ctx context.Context, activities []timeline.Activity, snapshotHash string, opts Options) (replay.Frame, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return replay.Frame{}, false, err
	}
	cursor, err := ResolveCursor(opts.Cursor, len(activities))
	if err != nil {
		return replay.Frame{}, false, err
	}

	key := r.Keyer.FrameKey(snapshotHash, opts.FrameKeyOpts(cursor))
	if !opts.Refresh && snapshotHash != "" {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			var f replay.Frame
			if err := json.Unmarshal(data, &f); err == nil {
				return f, true, nil
			}
		}
	}

	f, err := BuildFrame(ctx, activities, cursor, opts)
	if err != nil {
		return replay.Frame{}, false, err
	}
	if snapshotHash != "" {
		if data, err := json.Marshal(f); err == nil {
			_ = r.Cache.Set(ctx, key, data, cache.TTLFrame)
		}
	}
	return f, false, nil
}
