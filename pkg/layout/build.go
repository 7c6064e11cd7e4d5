package layout

import (
	"github.com/matzehuels/treereplay/pkg/timeline"
	"github.com/matzehuels/treereplay/pkg/tree"
)

type evidenceRef struct {
	owner tree.NodeID
	index int
}

// Build returns the nodes visible after activities[0..cursor], in activity
// order. A cursor past the end shows everything; a negative cursor or an
// empty list shows nothing.
//
// Nodes whose content equals the content of an answer folded into a visible
// question are dropped; the answer is already drawn inside the question.
// Counter-arguments triggered by a visible evidence item are re-parented to
// the node owning that evidence. A trigger that resolves to nothing keeps
// the structural parent.
func Build(activities []timeline.Activity, cursor int) []RenderableNode {
	if len(activities) == 0 || cursor < 0 {
		return nil
	}
	prefix := activities[:min(cursor, len(activities)-1)+1]

	evidences := make(map[tree.EvidenceID]evidenceRef)
	answers := make(map[string]struct{})
	for _, a := range prefix {
		for i, ev := range a.Evidences {
			evidences[ev.ID] = evidenceRef{owner: a.Node.ID, index: i}
		}
		if a.Node.Type == tree.TypeQuestion {
			for _, ans := range a.Node.Answers {
				answers[ans.Content] = struct{}{}
			}
		}
	}

	nodes := make([]RenderableNode, 0, len(prefix))
	for _, a := range prefix {
		if a.Node.Type != tree.TypeQuestion {
			if _, dup := answers[a.Node.Content]; dup {
				continue
			}
		}
		n := RenderableNode{
			ID:                    a.Node.ID,
			Kind:                  KindOf(a.Node.Type),
			Node:                  a.Node,
			Evidences:             a.Evidences,
			ParentNodeID:          SubjectParent,
			TriggeredByEvidenceID: a.Node.TriggeredByEvidenceID,
		}
		if a.Node.ParentID != nil {
			n.ParentNodeID = *a.Node.ParentID
		}
		if a.Node.Type == tree.TypeCounter && a.Node.TriggeredByEvidenceID != nil {
			if ref, ok := evidences[*a.Node.TriggeredByEvidenceID]; ok {
				idx := ref.index
				n.ParentEvidenceIndex = &idx
			}
		}
		nodes = append(nodes, n)
	}

	depths := structuralDepths(nodes)
	for i := range nodes {
		nodes[i].Depth = depths[nodes[i].ID]
	}
	attachCounters(nodes, evidences)
	return nodes
}

// structuralDepths assigns depth 1 to nodes on the subject and parent+1 to
// their descendants. Nodes unreachable from the subject get depth 1.
func structuralDepths(nodes []RenderableNode) map[tree.NodeID]int {
	children := make(map[tree.NodeID][]tree.NodeID, len(nodes))
	depths := make(map[tree.NodeID]int, len(nodes))
	visited := make(map[tree.NodeID]bool, len(nodes))

	var work []tree.NodeID
	for _, n := range nodes {
		if n.OnSubject() {
			if !visited[n.ID] {
				visited[n.ID] = true
				depths[n.ID] = 1
				work = append(work, n.ID)
			}
			continue
		}
		children[n.ParentNodeID] = append(children[n.ParentNodeID], n.ID)
	}

	for len(work) > 0 {
		id := work[0]
		work = work[1:]
		for _, c := range children[id] {
			if visited[c] {
				continue
			}
			visited[c] = true
			depths[c] = depths[id] + 1
			work = append(work, c)
		}
	}

	for _, n := range nodes {
		if !visited[n.ID] {
			depths[n.ID] = 1
		}
	}
	return depths
}

// attachCounters moves evidence-triggered counter-arguments next to the
// node owning the evidence. Only the counter itself moves; its structural
// children keep their depths.
func attachCounters(nodes []RenderableNode, evidences map[tree.EvidenceID]evidenceRef) {
	index := make(map[tree.NodeID]int, len(nodes))
	for i, n := range nodes {
		index[n.ID] = i
	}
	for i := range nodes {
		n := &nodes[i]
		if n.Kind != KindCounterargument || n.TriggeredByEvidenceID == nil {
			continue
		}
		ref, ok := evidences[*n.TriggeredByEvidenceID]
		if !ok {
			continue
		}
		oi, ok := index[ref.owner]
		if !ok || oi == i {
			if ref.owner != n.ParentNodeID {
				n.ParentEvidenceIndex = nil
			}
			continue
		}
		idx := ref.index
		n.Depth = nodes[oi].Depth + 1
		n.ParentNodeID = ref.owner
		n.ParentEvidenceIndex = &idx
	}
}
