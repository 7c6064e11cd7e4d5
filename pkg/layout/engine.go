package layout

import (
	"slices"

	"github.com/matzehuels/treereplay/pkg/tree"
)

// Compute assigns a position to every node. Columns are processed in
// ascending depth and nodes within a column in the order given. The result
// holds exactly the ids of nodes.
//
// A node starts at the measured slot of the evidence it responds to, else
// at its parent's y, else at the column's next free y, and is then pushed
// down below the previous node of its column. Unmeasured nodes are assumed
// to be [FallbackHeight] tall.
func Compute(nodes []RenderableNode, m Measurements) Positions {
	pos := make(Positions, len(nodes))
	if len(nodes) == 0 {
		return pos
	}

	columns := make(map[int][]int)
	for i, n := range nodes {
		columns[n.Depth] = append(columns[n.Depth], i)
	}
	depths := make([]int, 0, len(columns))
	for d := range columns {
		depths = append(depths, d)
	}
	slices.Sort(depths)

	for _, d := range depths {
		free := columnStart(d)
		for _, i := range columns[d] {
			n := nodes[i]
			y := free
			if anchor, ok := anchorY(n, pos, m); ok {
				y = max(anchor, free)
			}
			pos[n.ID] = Position{X: nodeX(n), Y: y}
			free = y + m.height(n.ID) + RowGap
		}
	}
	return pos
}

func columnStart(depth int) float64 {
	if depth == 1 {
		return Origin.Y + SubjectHeight + RowGap
	}
	return Origin.Y
}

func nodeX(n RenderableNode) float64 {
	switch {
	case n.OnSubject():
		return Origin.X
	case n.Depth > 1:
		return ColumnX(n.Depth - 1)
	default:
		return ColumnX(n.Depth)
	}
}

// anchorY returns the y a node would like to start at, if it has one.
func anchorY(n RenderableNode, pos Positions, m Measurements) (float64, bool) {
	if n.OnSubject() {
		return 0, false
	}
	if n.ParentEvidenceIndex != nil {
		if slot, ok := m.evidence(n.ParentNodeID, *n.ParentEvidenceIndex); ok {
			return slot.Y, true
		}
	}
	if p, ok := pos[n.ParentNodeID]; ok {
		return p.Y, true
	}
	return 0, false
}

// Bounds returns the size of the canvas needed to draw the subject and all
// positioned nodes.
func Bounds(nodes []RenderableNode, pos Positions, m Measurements) (width, height float64) {
	width = Origin.X + NodeWidth
	height = Origin.Y + SubjectHeight
	for _, n := range nodes {
		p, ok := pos[n.ID]
		if !ok {
			continue
		}
		width = max(width, p.X+NodeWidth)
		height = max(height, p.Y+m.height(n.ID))
	}
	return width + Origin.X, height + RowGap
}

// ByID indexes nodes by id.
func ByID(nodes []RenderableNode) map[tree.NodeID]RenderableNode {
	out := make(map[tree.NodeID]RenderableNode, len(nodes))
	for _, n := range nodes {
		out[n.ID] = n
	}
	return out
}
