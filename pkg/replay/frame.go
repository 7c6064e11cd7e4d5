package replay

import (
	"context"
	"time"

	"github.com/matzehuels/treereplay/pkg/errors"
	"github.com/matzehuels/treereplay/pkg/layout"
	"github.com/matzehuels/treereplay/pkg/observability"
	"github.com/matzehuels/treereplay/pkg/timeline"
	"github.com/matzehuels/treereplay/pkg/tree"
)

// Frame is everything needed to draw one step of a replay.
type Frame struct {
	Version     uint64                  `json:"version"`
	Title       string                  `json:"title,omitempty"`
	Empty       bool                    `json:"empty"`
	Cursor      int                     `json:"cursor"`
	Length      int                     `json:"length"`
	State       string                  `json:"state"`
	Playing     bool                    `json:"playing"`
	Speed       timeline.Speed          `json:"speed"`
	Activity    *timeline.Activity      `json:"activity,omitempty"`
	Description string                  `json:"description,omitempty"`
	Nodes       []layout.RenderableNode `json:"nodes"`
	Positions   layout.Positions        `json:"positions"`
	Width       float64                 `json:"width"`
	Height      float64                 `json:"height"`
	Stable      bool                    `json:"stable"`
	Passes      int                     `json:"passes"`

	Measurements layout.Measurements `json:"-"`
}

// Visible reports whether the node with id is drawn in the frame.
func (f *Frame) Visible(id tree.NodeID) (layout.RenderableNode, bool) {
	for _, n := range f.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return layout.RenderableNode{}, false
}

// Compose builds the frame for status over activities. The cursor is
// clamped to the list; an empty list yields an empty frame. A nil surface
// lays nodes out with fallback heights.
func Compose(ctx context.Context, activities []timeline.Activity, status timeline.Status, surface layout.Surface, maxPasses int) (Frame, error) {
	f := Frame{
		Version:   status.Version,
		Length:    len(activities),
		State:     status.State.String(),
		Playing:   status.Playing(),
		Speed:     status.Speed,
		Positions: layout.Positions{},
	}
	if len(activities) == 0 {
		f.Empty = true
		f.Playing = false
		f.Width, f.Height = layout.Bounds(nil, nil, nil)
		f.Stable = true
		return f, nil
	}

	f.Cursor = max(0, min(status.Cursor, len(activities)-1))
	act := activities[f.Cursor]
	f.Activity = &act
	f.Description = act.Describe()
	f.Nodes = layout.Build(activities, f.Cursor)

	if surface == nil {
		surface = fallbackSurface
	}
	start := time.Now()
	res, err := layout.Settle(ctx, f.Nodes, surface, maxPasses)
	observability.Replay().OnSettle(ctx, len(f.Nodes), res.Passes, res.Stable, time.Since(start))
	if err != nil {
		return f, err
	}
	f.Positions = res.Positions
	f.Measurements = res.Measurements
	f.Stable = res.Stable
	f.Passes = res.Passes
	f.Width, f.Height = layout.Bounds(f.Nodes, f.Positions, f.Measurements)
	return f, nil
}

// ComposeAt is [Compose] for an explicit cursor with the player paused.
// Unlike Compose it rejects cursors outside a non-empty list.
func ComposeAt(ctx context.Context, activities []timeline.Activity, cursor int, surface layout.Surface, maxPasses int) (Frame, error) {
	if len(activities) > 0 && (cursor < 0 || cursor >= len(activities)) {
		return Frame{}, errors.New(errors.ErrCodeInvalidCursor,
			"cursor %d out of range [0, %d)", cursor, len(activities))
	}
	status := timeline.Status{
		Cursor: cursor,
		Length: len(activities),
		State:  timeline.StatePaused,
		Speed:  timeline.DefaultSpeed,
	}
	if len(activities) == 0 {
		status.State = timeline.StateIdle
	}
	return Compose(ctx, activities, status, surface, maxPasses)
}

// fallbackSurface reports no measurements, so every node keeps
// [layout.FallbackHeight].
var fallbackSurface = layout.SurfaceFunc(func([]layout.RenderableNode, layout.Positions) layout.Measurements {
	return nil
})
