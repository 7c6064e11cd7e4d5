package timeline

import (
	"fmt"
	"slices"
	"time"

	"github.com/matzehuels/treereplay/pkg/tree"
)

// =============================================================================
// Types
// =============================================================================

// Answer is an ANSWER node folded into the QUESTION it responds to.
type Answer struct {
	ID        tree.NodeID  `json:"id"`
	Content   string       `json:"content"`
	CreatedBy tree.Creator `json:"createdBy"`
	CreatedAt time.Time    `json:"createdAt"`
}

// NodeView is the node data carried by an activity: the snapshot fields
// without children, plus the structural parent and any folded answers.
type NodeView struct {
	ID                    tree.NodeID      `json:"id"`
	ParentID              *tree.NodeID     `json:"parentId"` // nil for children of the subject
	Content               string           `json:"content"`
	Summary               string           `json:"summary,omitempty"`
	Type                  tree.NodeType    `json:"type"`
	CreatedBy             tree.Creator     `json:"createdBy"`
	CreatedAt             time.Time        `json:"createdAt"`
	TriggeredByEvidenceID *tree.EvidenceID `json:"triggeredByEvidenceId,omitempty"`
	Answers               []Answer         `json:"answers,omitempty"`
}

// Text returns the summary when present, otherwise the full content.
func (v NodeView) Text() string {
	if v.Summary != "" {
		return v.Summary
	}
	return v.Content
}

// Activity is one step of the timeline: the creation of a single node.
type Activity struct {
	Node      NodeView        `json:"node"`
	Evidences []tree.Evidence `json:"evidences"`
	ActionBy  tree.Creator    `json:"actionBy"`
	Timestamp time.Time       `json:"timestamp"`
}

// Describe returns a one-line human description, e.g.
// "Student added a claim".
func (a Activity) Describe() string {
	return fmt.Sprintf("%s added %s", actorName(a.ActionBy), kindName(a.Node.Type))
}

func actorName(c tree.Creator) string {
	switch c {
	case tree.CreatorStudent:
		return "Student"
	case tree.CreatorTeacher:
		return "Teacher"
	default:
		return "AI"
	}
}

func kindName(t tree.NodeType) string {
	switch t {
	case tree.TypeClaim:
		return "a claim"
	case tree.TypeCounter:
		return "an expected counter-argument"
	case tree.TypeQuestion:
		return "an expected question"
	case tree.TypeAnswer:
		return "an answer"
	default:
		return "a node"
	}
}

// =============================================================================
// Extraction
// =============================================================================

// Extract returns the activities of the snapshot rooted at root, sorted by
// timestamp. Activities with equal timestamps keep depth-first document
// order. The root itself is the assignment subject and produces no activity.
//
// Extract fails with a [*tree.MalformedNodeError] when a node has no
// creation time or reuses the id of another node; it never returns a
// partial list. A nil root yields an empty list.
func Extract(root *tree.Node) ([]Activity, error) {
	if root == nil {
		return nil, nil
	}
	x := extractor{seen: map[tree.NodeID]string{root.ID: tree.RootPath}}
	if err := x.children(root, nil, tree.RootPath); err != nil {
		return nil, err
	}
	slices.SortStableFunc(x.out, func(a, b Activity) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return x.out, nil
}

type extractor struct {
	out  []Activity
	seen map[tree.NodeID]string
}

// children emits activities for the subtree below n. parent is the id the
// children of n report as their ParentID. Hidden nodes and folded answers
// emit nothing, so their children attach to the nearest emitted ancestor.
func (x *extractor) children(n *tree.Node, parent *tree.NodeID, path string) error {
	for i, c := range n.Children {
		cpath := tree.ChildPath(path, i)
		if err := x.check(c, cpath); err != nil {
			return err
		}

		next := parent
		folded := n.Type == tree.TypeQuestion && c.Type == tree.TypeAnswer
		if !folded && !c.Hidden {
			x.out = append(x.out, activityOf(c, parent))
			id := c.ID
			next = &id
		}
		if err := x.children(c, next, cpath); err != nil {
			return err
		}
	}
	return nil
}

func (x *extractor) check(n *tree.Node, path string) error {
	if n == nil {
		return &tree.MalformedNodeError{Path: path, Field: "node", Reason: "is nil"}
	}
	id := n.ID
	if n.CreatedAt.IsZero() {
		return &tree.MalformedNodeError{Path: path, ID: &id, Field: "createdAt", Reason: "is missing"}
	}
	if prev, dup := x.seen[n.ID]; dup {
		return &tree.MalformedNodeError{Path: path, ID: &id, Field: "id", Reason: "duplicates node at " + prev}
	}
	x.seen[n.ID] = path
	return nil
}

func activityOf(n *tree.Node, parent *tree.NodeID) Activity {
	view := NodeView{
		ID:                    n.ID,
		Content:               n.Content,
		Summary:               n.Summary,
		Type:                  n.Type,
		CreatedBy:             n.CreatedBy,
		CreatedAt:             n.CreatedAt,
		TriggeredByEvidenceID: n.TriggeredByEvidenceID,
	}
	if parent != nil {
		p := *parent
		view.ParentID = &p
	}
	if n.Type == tree.TypeQuestion {
		for _, c := range n.Children {
			if c != nil && c.Type == tree.TypeAnswer && !c.Hidden {
				view.Answers = append(view.Answers, Answer{
					ID:        c.ID,
					Content:   c.Content,
					CreatedBy: c.CreatedBy,
					CreatedAt: c.CreatedAt,
				})
			}
		}
	}
	return Activity{
		Node:      view,
		Evidences: slices.Clone(n.Evidences),
		ActionBy:  n.CreatedBy,
		Timestamp: n.CreatedAt,
	}
}
