package layout

import "context"

// DefaultMaxPasses bounds the number of measure/re-layout rounds.
const DefaultMaxPasses = 3

// Surface renders nodes at the given positions and reports their
// measurements.
type Surface interface {
	Measure(nodes []RenderableNode, pos Positions) Measurements
}

// SurfaceFunc adapts a function to [Surface].
type SurfaceFunc func(nodes []RenderableNode, pos Positions) Measurements

func (f SurfaceFunc) Measure(nodes []RenderableNode, pos Positions) Measurements {
	return f(nodes, pos)
}

// Result is the outcome of [Settle].
type Result struct {
	Positions    Positions
	Measurements Measurements
	Passes       int  // number of measurements taken
	Stable       bool // false if the pass cap was hit before convergence
}

// Settle lays nodes out with fallback heights, then repeatedly measures them
// on surface and lays them out again, until a layout reproduces the
// previous one or maxPasses measurements have been taken. A maxPasses below
// one uses [DefaultMaxPasses].
//
// Settle only returns an error when ctx is done; the positions computed so
// far are returned with it.
func Settle(ctx context.Context, nodes []RenderableNode, surface Surface, maxPasses int) (Result, error) {
	if maxPasses < 1 {
		maxPasses = DefaultMaxPasses
	}
	res := Result{Positions: Compute(nodes, nil)}
	if len(nodes) == 0 {
		res.Stable = true
		return res, nil
	}
	for res.Passes < maxPasses {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Measurements = surface.Measure(nodes, res.Positions)
		res.Passes++
		next := Compute(nodes, res.Measurements)
		if next.Equal(res.Positions) {
			res.Stable = true
			return res, nil
		}
		res.Positions = next
	}
	return res, nil
}
