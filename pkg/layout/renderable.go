package layout

import (
	"github.com/matzehuels/treereplay/pkg/timeline"
	"github.com/matzehuels/treereplay/pkg/tree"
)

// Kind is the presentation category of a node.
type Kind string

const (
	KindArgument        Kind = "argument"
	KindCounterargument Kind = "counterargument"
	KindQuestion        Kind = "question"
	KindSubject         Kind = "subject"
)

// KindOf maps a snapshot node type to its presentation kind. Unknown types
// render as arguments.
func KindOf(t tree.NodeType) Kind {
	switch t {
	case tree.TypeCounter:
		return KindCounterargument
	case tree.TypeQuestion:
		return KindQuestion
	case tree.TypeSubject:
		return KindSubject
	default:
		return KindArgument
	}
}

// SubjectParent is the ParentNodeID of nodes attached to the subject.
const SubjectParent tree.NodeID = -1

// RenderableNode is a node visible at one timeline cursor, with the depth
// and parent it is drawn with.
type RenderableNode struct {
	ID                    tree.NodeID       `json:"id"`
	Depth                 int               `json:"depth"`
	Kind                  Kind              `json:"kind"`
	Node                  timeline.NodeView `json:"node"`
	Evidences             []tree.Evidence   `json:"evidences"`
	ParentNodeID          tree.NodeID       `json:"parentNodeId"`
	ParentEvidenceIndex   *int              `json:"parentEvidenceIndex,omitempty"`
	TriggeredByEvidenceID *tree.EvidenceID  `json:"triggeredByEvidenceId,omitempty"`
}

// OnSubject reports whether the node hangs off the subject.
func (n RenderableNode) OnSubject() bool { return n.ParentNodeID == SubjectParent }
