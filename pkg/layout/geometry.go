package layout

import "github.com/matzehuels/treereplay/pkg/tree"

// Position is the top-left corner of a node box.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Positions maps node ids to their positions.
type Positions map[tree.NodeID]Position

// Equal reports whether p and o hold the same ids at the same positions.
func (p Positions) Equal(o Positions) bool {
	if len(p) != len(o) {
		return false
	}
	for id, pos := range p {
		if q, ok := o[id]; !ok || q != pos {
			return false
		}
	}
	return true
}

// Grid constants.
const (
	NodeWidth      = 462.0
	ColGap         = 32.0
	ColWidth       = NodeWidth + ColGap
	RowGap         = 12.0
	SubjectHeight  = 72.0
	FallbackHeight = 200.0
)

// Origin is the position of the subject node.
var Origin = Position{X: 8, Y: 90}

// ColumnX returns the x coordinate of a depth column.
func ColumnX(depth int) float64 {
	return Origin.X + ColWidth*float64(depth)
}
