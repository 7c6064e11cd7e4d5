package nodelink

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/treereplay/pkg/replay"
	"github.com/matzehuels/treereplay/pkg/timeline"
	"github.com/matzehuels/treereplay/pkg/tree"
)

func sampleFrame(t *testing.T, cursor int) replay.Frame {
	t.Helper()
	base := time.Date(2025, 6, 5, 5, 0, 0, 0, time.UTC)
	ev := tree.EvidenceID(10)
	root := &tree.Node{
		ID: 0, Type: tree.TypeSubject, CreatedAt: base,
		Children: []*tree.Node{
			{
				ID: 1, Type: tree.TypeClaim, CreatedBy: tree.CreatorStudent, CreatedAt: base.Add(time.Minute),
				Content:   `People live "longer"`,
				Evidences: []tree.Evidence{{ID: 10, Content: "life expectancy"}},
				Children: []*tree.Node{
					{ID: 2, Type: tree.TypeCounter, CreatedBy: tree.CreatorAI, CreatedAt: base.Add(2 * time.Minute),
						Content: "Not only that", TriggeredByEvidenceID: &ev},
				},
			},
		},
	}
	acts, err := timeline.Extract(root)
	if err != nil {
		t.Fatal(err)
	}
	f, err := replay.ComposeAt(context.Background(), acts, cursor, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	f.Title = "Aging society"
	return f
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(sampleFrame(t, 1), Options{})

	for _, want := range []string{
		"digraph G",
		`"subject" [label="Aging society"`,
		`"n1" [label="People live \"longer\"\n[1 evidence]"`,
		`"subject" -> "n1";`,
		`"n1" -> "n2" [label="evidence 1", style=dashed];`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q\n%s", want, dot)
		}
	}
	if !strings.Contains(dot, `"n2" [label="Not only that", fillcolor="#FFF0F0", penwidth=3]`) {
		t.Errorf("current node not highlighted\n%s", dot)
	}
}

func TestToDOTPrefix(t *testing.T) {
	dot := ToDOT(sampleFrame(t, 0), Options{})
	if strings.Contains(dot, `"n2"`) {
		t.Error("node from a later step is drawn")
	}
}

func TestToDOTDetailed(t *testing.T) {
	dot := ToDOT(sampleFrame(t, 0), Options{Detailed: true})
	if !strings.Contains(dot, "STUDENT · 2025-06-05 05:01") {
		t.Errorf("detailed label missing creator and time\n%s", dot)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("고령화 사회의 원인", 4); got != "고령화…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("  a \n b  ", 10); got != "a b" {
		t.Errorf("truncate = %q", got)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="100pt" height="50pt" viewBox="0.00 0.00 100.00 50.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	out := string(normalizeViewBox(in))
	if !strings.Contains(out, `width="100" height="50"`) {
		t.Errorf("normalizeViewBox = %s", out)
	}
}

func TestRenderSVG(t *testing.T) {
	svg, err := RenderSVG(context.Background(), ToDOT(sampleFrame(t, 1), Options{}))
	if err != nil {
		t.Fatalf("RenderSVG: %v", err)
	}
	if !strings.Contains(string(svg), "<svg") {
		t.Error("output is not SVG")
	}
}
