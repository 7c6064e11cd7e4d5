package tree

import (
	"strconv"
	"time"
)

// =============================================================================
// Identifiers and Enumerations
// =============================================================================

// NodeID identifies a node within one snapshot.
type NodeID int64

func (id NodeID) String() string { return strconv.FormatInt(int64(id), 10) }

// EvidenceID identifies an evidence item within one snapshot.
type EvidenceID int64

func (id EvidenceID) String() string { return strconv.FormatInt(int64(id), 10) }

// NodeType is the argumentative role of a node.
type NodeType string

const (
	TypeSubject  NodeType = "SUBJECT"
	TypeClaim    NodeType = "CLAIM"
	TypeCounter  NodeType = "COUNTER"
	TypeQuestion NodeType = "QUESTION"
	TypeAnswer   NodeType = "ANSWER"
)

// Creator is the author of a node or evidence item.
type Creator string

const (
	CreatorStudent Creator = "STUDENT"
	CreatorAI      Creator = "AI"
	CreatorTeacher Creator = "TEACHER"
)

// =============================================================================
// Snapshot Types
// =============================================================================

// Evidence is a supporting item attached to a CLAIM or COUNTER node.
type Evidence struct {
	ID        EvidenceID `json:"id" yaml:"id"`
	Content   string     `json:"content" yaml:"content"`
	Summary   string     `json:"summary,omitempty" yaml:"summary,omitempty"`
	Source    string     `json:"source,omitempty" yaml:"source,omitempty"`
	URL       string     `json:"url,omitempty" yaml:"url,omitempty"`
	CreatedBy Creator    `json:"createdBy" yaml:"createdBy"`
	CreatedAt time.Time  `json:"createdAt" yaml:"createdAt"`
}

// Text returns the summary when present, otherwise the full content.
func (e Evidence) Text() string {
	if e.Summary != "" {
		return e.Summary
	}
	return e.Content
}

// Node is one node of a snapshot, including its subtree.
type Node struct {
	ID                    NodeID      `json:"id" yaml:"id"`
	Content               string      `json:"content" yaml:"content"`
	Summary               string      `json:"summary,omitempty" yaml:"summary,omitempty"`
	Type                  NodeType    `json:"type" yaml:"type"`
	CreatedBy             Creator     `json:"createdBy" yaml:"createdBy"`
	CreatedAt             time.Time   `json:"createdAt" yaml:"createdAt"`
	UpdatedAt             time.Time   `json:"updatedAt,omitzero" yaml:"updatedAt,omitempty"`
	Evidences             []Evidence  `json:"evidences,omitempty" yaml:"evidences,omitempty"`
	Children              []*Node     `json:"children,omitempty" yaml:"children,omitempty"`
	TriggeredByEvidenceID *EvidenceID `json:"triggeredByEvidenceId,omitempty" yaml:"triggeredByEvidenceId,omitempty"`
	Hidden                bool        `json:"hidden,omitempty" yaml:"hidden,omitempty"`
}

// Text returns the summary when present, otherwise the full content.
func (n *Node) Text() string {
	if n.Summary != "" {
		return n.Summary
	}
	return n.Content
}

// Walk visits n and its descendants depth-first in document order. The
// visit function receives each node with its parent (nil for n itself).
// Returning false from visit skips that node's subtree.
func (n *Node) Walk(visit func(node, parent *Node) bool) {
	if n == nil {
		return
	}
	walk(n, nil, visit)
}

func walk(n, parent *Node, visit func(node, parent *Node) bool) {
	if !visit(n, parent) {
		return
	}
	for _, c := range n.Children {
		walk(c, n, visit)
	}
}

// Count returns the number of nodes in the subtree rooted at n.
func (n *Node) Count() int {
	count := 0
	n.Walk(func(*Node, *Node) bool {
		count++
		return true
	})
	return count
}
