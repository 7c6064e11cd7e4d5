package timeline

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/matzehuels/treereplay/pkg/tree"
)

var base = time.Date(2025, 6, 5, 5, 40, 0, 0, time.UTC)

func at(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }

func node(id tree.NodeID, typ tree.NodeType, min int, children ...*tree.Node) *tree.Node {
	return &tree.Node{
		ID:        id,
		Content:   string(typ) + " " + id.String(),
		Type:      typ,
		CreatedBy: tree.CreatorStudent,
		CreatedAt: at(min),
		Children:  children,
	}
}

func subject(children ...*tree.Node) *tree.Node {
	return node(0, tree.TypeSubject, 0, children...)
}

func ids(acts []Activity) []tree.NodeID {
	out := make([]tree.NodeID, len(acts))
	for i, a := range acts {
		out[i] = a.Node.ID
	}
	return out
}

func equalIDs(a, b []tree.NodeID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestExtractOrdersByTimestamp(t *testing.T) {
	root := subject(
		node(1, tree.TypeClaim, 5,
			node(3, tree.TypeCounter, 2),
		),
		node(2, tree.TypeClaim, 1),
	)
	acts, err := Extract(root)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got, want := ids(acts), []tree.NodeID{2, 3, 1}; !equalIDs(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestExtractStableForEqualTimestamps(t *testing.T) {
	root := subject(
		node(1, tree.TypeClaim, 1, node(2, tree.TypeCounter, 1)),
		node(3, tree.TypeClaim, 1),
	)
	acts, err := Extract(root)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := ids(acts), []tree.NodeID{1, 2, 3}; !equalIDs(got, want) {
		t.Errorf("order = %v, want document order %v", got, want)
	}
}

func TestExtractSortedProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		next := tree.NodeID(1)
		var build func(depth int) []*tree.Node
		build = func(depth int) []*tree.Node {
			if depth > 3 {
				return nil
			}
			var out []*tree.Node
			for i := rng.Intn(3); i >= 0; i-- {
				id := next
				next++
				out = append(out, node(id, tree.TypeClaim, rng.Intn(100), build(depth+1)...))
			}
			return out
		}
		acts, err := Extract(subject(build(0)...))
		if err != nil {
			t.Fatal(err)
		}
		for i := 1; i < len(acts); i++ {
			if acts[i].Timestamp.Before(acts[i-1].Timestamp) {
				t.Fatalf("round %d: activity %d at %v precedes %v", round, i, acts[i].Timestamp, acts[i-1].Timestamp)
			}
		}
	}
}

func TestExtractFoldsAnswersIntoQuestion(t *testing.T) {
	root := subject(
		node(1, tree.TypeClaim, 1,
			node(2, tree.TypeQuestion, 2,
				node(5, tree.TypeAnswer, 3),
				node(6, tree.TypeAnswer, 4),
			),
		),
	)
	acts, err := Extract(root)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := ids(acts), []tree.NodeID{1, 2}; !equalIDs(got, want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	q := acts[1].Node
	if len(q.Answers) != 2 || q.Answers[0].ID != 5 || q.Answers[1].ID != 6 {
		t.Errorf("answers = %+v, want ids 5 and 6", q.Answers)
	}
	if q.ParentID == nil || *q.ParentID != 1 {
		t.Errorf("question ParentID = %v, want 1", q.ParentID)
	}
}

func TestExtractKeepsAnswerOutsideQuestion(t *testing.T) {
	root := subject(node(1, tree.TypeClaim, 1, node(2, tree.TypeAnswer, 2)))
	acts, err := Extract(root)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := ids(acts), []tree.NodeID{1, 2}; !equalIDs(got, want) {
		t.Errorf("ids = %v, want %v", got, want)
	}
}

func TestExtractHiddenNodes(t *testing.T) {
	hidden := node(2, tree.TypeClaim, 2,
		node(3, tree.TypeCounter, 3),
	)
	hidden.Hidden = true
	root := subject(node(1, tree.TypeClaim, 1), hidden, node(4, tree.TypeClaim, 4))

	acts, err := Extract(root)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := ids(acts), []tree.NodeID{1, 3, 4}; !equalIDs(got, want) {
		t.Errorf("ids = %v, want %v", got, want)
	}
	if p := acts[1].Node.ParentID; p != nil {
		t.Errorf("child of hidden top-level node ParentID = %v, want nil (subject)", *p)
	}
}

func TestExtractReattachesToVisibleAncestor(t *testing.T) {
	hidden := node(2, tree.TypeCounter, 2, node(3, tree.TypeQuestion, 3))
	hidden.Hidden = true
	question := node(4, tree.TypeQuestion, 4,
		node(5, tree.TypeAnswer, 5, node(6, tree.TypeClaim, 6)),
	)
	root := subject(node(1, tree.TypeClaim, 1, hidden, question))

	acts, err := Extract(root)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := ids(acts), []tree.NodeID{1, 3, 4, 6}; !equalIDs(got, want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	wantParent := map[tree.NodeID]tree.NodeID{3: 1, 4: 1, 6: 4}
	for _, a := range acts[1:] {
		p := a.Node.ParentID
		if p == nil || *p != wantParent[a.Node.ID] {
			t.Errorf("node %d ParentID = %v, want %d", a.Node.ID, p, wantParent[a.Node.ID])
		}
	}
}

func TestExtractParentIDs(t *testing.T) {
	acts, err := Extract(subject(node(1, tree.TypeClaim, 1, node(4, tree.TypeCounter, 2))))
	if err != nil {
		t.Fatal(err)
	}
	if acts[0].Node.ParentID != nil {
		t.Errorf("top-level ParentID = %v, want nil", *acts[0].Node.ParentID)
	}
	if p := acts[1].Node.ParentID; p == nil || *p != 1 {
		t.Errorf("nested ParentID = %v, want 1", p)
	}
}

func TestExtractMalformed(t *testing.T) {
	tests := []struct {
		name      string
		root      *tree.Node
		wantField string
	}{
		{
			name:      "missing timestamp",
			root:      subject(&tree.Node{ID: 1, Type: tree.TypeClaim}),
			wantField: "createdAt",
		},
		{
			name:      "duplicate id",
			root:      subject(node(1, tree.TypeClaim, 1), node(1, tree.TypeClaim, 2)),
			wantField: "id",
		},
		{
			name:      "nil child",
			root:      subject(node(1, tree.TypeClaim, 1, nil)),
			wantField: "node",
		},
		{
			name:      "nil child of question",
			root:      subject(node(1, tree.TypeQuestion, 1, nil)),
			wantField: "node",
		},
		{
			name:      "id reused by hidden node",
			root:      subject(node(1, tree.TypeClaim, 1, &tree.Node{ID: 0, CreatedAt: at(2), Hidden: true})),
			wantField: "id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acts, err := Extract(tt.root)
			var mErr *tree.MalformedNodeError
			if !errors.As(err, &mErr) {
				t.Fatalf("err = %v, want *MalformedNodeError", err)
			}
			if mErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", mErr.Field, tt.wantField)
			}
			if acts != nil {
				t.Errorf("got partial activities %v", ids(acts))
			}
		})
	}
}

func TestExtractEmpty(t *testing.T) {
	acts, err := Extract(nil)
	if err != nil || len(acts) != 0 {
		t.Errorf("Extract(nil) = %v, %v", acts, err)
	}
	acts, err = Extract(subject())
	if err != nil || len(acts) != 0 {
		t.Errorf("Extract(subject only) = %v, %v", acts, err)
	}
}

func TestActivityDescribe(t *testing.T) {
	tests := []struct {
		by   tree.Creator
		typ  tree.NodeType
		want string
	}{
		{tree.CreatorStudent, tree.TypeClaim, "Student added a claim"},
		{tree.CreatorAI, tree.TypeCounter, "AI added an expected counter-argument"},
		{tree.CreatorAI, tree.TypeQuestion, "AI added an expected question"},
		{tree.CreatorTeacher, tree.TypeSubject, "Teacher added a node"},
	}
	for _, tt := range tests {
		a := Activity{ActionBy: tt.by, Node: NodeView{Type: tt.typ}}
		if got := a.Describe(); got != tt.want {
			t.Errorf("Describe() = %q, want %q", got, tt.want)
		}
	}
}
