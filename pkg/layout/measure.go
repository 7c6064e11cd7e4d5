package layout

import "github.com/matzehuels/treereplay/pkg/tree"

// NodeMeasure is the rendered geometry of one node.
type NodeMeasure interface {
	// Height returns the current box height, or 0 if the node is not
	// rendered.
	Height() float64
	// EvidencePosition returns the position of the index-th evidence slot
	// in canvas coordinates. It reports false if the node is not rendered
	// or index is out of range.
	EvidencePosition(index int) (Position, bool)
}

// Measurements maps node ids to their measurements. Missing entries mean
// the node has not been rendered yet.
type Measurements map[tree.NodeID]NodeMeasure

// height returns the measured height of id, or FallbackHeight.
func (m Measurements) height(id tree.NodeID) float64 {
	if nm, ok := m[id]; ok && nm != nil {
		if h := nm.Height(); h > 0 {
			return h
		}
	}
	return FallbackHeight
}

func (m Measurements) evidence(id tree.NodeID, index int) (Position, bool) {
	nm, ok := m[id]
	if !ok || nm == nil {
		return Position{}, false
	}
	return nm.EvidencePosition(index)
}

// Box is a static [NodeMeasure].
type Box struct {
	H        float64
	Evidence []Position
}

var _ NodeMeasure = Box{}

func (b Box) Height() float64 { return b.H }

func (b Box) EvidencePosition(index int) (Position, bool) {
	if index < 0 || index >= len(b.Evidence) {
		return Position{}, false
	}
	return b.Evidence[index], true
}
