package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/treereplay/pkg/errors"
	"github.com/matzehuels/treereplay/pkg/timeline"
	"github.com/matzehuels/treereplay/pkg/tree"
)

var base = time.Date(2025, 6, 5, 5, 0, 0, 0, time.UTC)

func at(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }

func sampleTree() *tree.Node {
	trigger := tree.EvidenceID(10)
	return &tree.Node{
		ID: 0, Type: tree.TypeSubject, Content: "Why is society aging?", CreatedBy: tree.CreatorTeacher, CreatedAt: at(0),
		Children: []*tree.Node{
			{
				ID: 1, Type: tree.TypeClaim, Content: "People live longer", CreatedBy: tree.CreatorStudent, CreatedAt: at(1),
				Evidences: []tree.Evidence{{ID: 10, Content: "life expectancy rose", CreatedBy: tree.CreatorStudent}},
				Children: []*tree.Node{
					{ID: 2, Type: tree.TypeCounter, Content: "Births matter more", CreatedBy: tree.CreatorAI, CreatedAt: at(3), TriggeredByEvidenceID: &trigger},
				},
			},
			{ID: 3, Type: tree.TypeQuestion, Content: "What about migration?", CreatedBy: tree.CreatorAI, CreatedAt: at(2)},
		},
	}
}

// memCache is an in-memory cache that counts operations.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
	sets int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[key] = data
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) Close() error { return nil }

func TestOptionsValidateAndSetDefaults(t *testing.T) {
	opts := Options{Cursor: CursorEnd, Formats: []string{"SVG", "dot", "svg"}}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults: %v", err)
	}
	if diff := cmp.Diff([]string{"svg", "dot"}, opts.Formats); diff != "" {
		t.Errorf("formats mismatch (-want +got):\n%s", diff)
	}
	if opts.Scale != DefaultScale {
		t.Errorf("Scale = %v, want %v", opts.Scale, DefaultScale)
	}
	if opts.MaxPasses <= 0 {
		t.Errorf("MaxPasses = %d, want > 0", opts.MaxPasses)
	}
	if opts.Logger == nil {
		t.Error("Logger not set")
	}

	empty := Options{}
	if err := empty.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if !empty.HasFormat(DefaultFormat) {
		t.Errorf("default formats = %v", empty.Formats)
	}
}

func TestOptionsValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		code errors.Code
	}{
		{"bad format", Options{Formats: []string{"gif"}}, errors.ErrCodeInvalidFormat},
		{"bad cursor", Options{Cursor: -2}, errors.ErrCodeInvalidCursor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestArtifactKeyOpts(t *testing.T) {
	opts := Options{Detailed: true, Scale: 3}
	if k := opts.ArtifactKeyOpts("svg", "t"); k.Detailed || k.Scale != 0 {
		t.Errorf("svg key carries irrelevant options: %+v", k)
	}
	if k := opts.ArtifactKeyOpts("dot", "t"); !k.Detailed {
		t.Errorf("dot key lost Detailed: %+v", k)
	}
	if k := opts.ArtifactKeyOpts("png", "t"); k.Scale != 3 {
		t.Errorf("png key lost Scale: %+v", k)
	}
}

func TestResolveCursor(t *testing.T) {
	tests := []struct {
		cursor, length, want int
		wantErr              bool
	}{
		{CursorEnd, 3, 2, false},
		{CursorEnd, 0, 0, false},
		{0, 3, 0, false},
		{2, 3, 2, false},
		{3, 3, 0, true},
		{-5, 3, 0, true},
	}
	for _, tt := range tests {
		got, err := ResolveCursor(tt.cursor, tt.length)
		if (err != nil) != tt.wantErr {
			t.Errorf("ResolveCursor(%d, %d) err = %v, wantErr %v", tt.cursor, tt.length, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveCursor(%d, %d) = %d, want %d", tt.cursor, tt.length, got, tt.want)
		}
	}
}

func TestExecute(t *testing.T) {
	mc := newMemCache()
	r := NewRunner(mc, nil, nil)
	ctx := context.Background()
	src := TreeSource{Root: sampleTree(), Title: "Aging"}

	res, err := r.Execute(ctx, src, Options{Cursor: CursorEnd, Formats: []string{"svg", "dot", "json"}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Stats.Activities != 3 || res.Stats.Nodes != 3 {
		t.Errorf("stats = %+v, want 3 activities and 3 nodes", res.Stats)
	}
	if res.Frame.Cursor != 2 || res.Frame.Title != "Aging" {
		t.Errorf("frame cursor=%d title=%q", res.Frame.Cursor, res.Frame.Title)
	}
	if res.Statistics.TotalNodes != 3 {
		t.Errorf("TotalNodes = %d, want 3", res.Statistics.TotalNodes)
	}
	if res.CacheInfo.FrameHit || res.CacheInfo.RenderHit {
		t.Errorf("first run hit the cache: %+v", res.CacheInfo)
	}
	if !bytes.HasPrefix(res.Artifacts["svg"], []byte("<svg")) {
		t.Errorf("svg artifact = %.40q", res.Artifacts["svg"])
	}
	if !strings.Contains(string(res.Artifacts["dot"]), "digraph") {
		t.Error("dot artifact is not a digraph")
	}
	var decoded map[string]any
	if err := json.Unmarshal(res.Artifacts["json"], &decoded); err != nil {
		t.Errorf("json artifact: %v", err)
	}

	again, err := r.Execute(ctx, src, Options{Cursor: CursorEnd, Formats: []string{"svg", "dot", "json"}})
	if err != nil {
		t.Fatal(err)
	}
	if !again.CacheInfo.FrameHit || !again.CacheInfo.RenderHit {
		t.Errorf("second run missed the cache: %+v", again.CacheInfo)
	}
	if diff := cmp.Diff(res.Artifacts, again.Artifacts); diff != "" {
		t.Errorf("cached artifacts differ (-first +second):\n%s", diff)
	}
	if again.FrameHash != res.FrameHash {
		t.Errorf("frame hash changed: %s vs %s", res.FrameHash, again.FrameHash)
	}

	refreshed, err := r.Execute(ctx, src, Options{Cursor: CursorEnd, Refresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.CacheInfo.FrameHit {
		t.Error("refresh used the cached frame")
	}
}

func TestExecuteCursorOutOfRange(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	_, err := r.Execute(context.Background(), TreeSource{Root: sampleTree()}, Options{Cursor: 9})
	if !errors.Is(err, errors.ErrCodeInvalidCursor) {
		t.Errorf("err = %v, want INVALID_CURSOR", err)
	}
}

func TestExecuteMalformedTree(t *testing.T) {
	root := sampleTree()
	root.Children[1].ID = 1 // duplicate id
	r := NewRunner(nil, nil, nil)
	_, err := r.Execute(context.Background(), TreeSource{Root: root}, Options{})
	if !errors.Is(err, errors.ErrCodeMalformedNode) {
		t.Errorf("err = %v, want MALFORMED_NODE", err)
	}
}

func TestExecuteEmptyTree(t *testing.T) {
	root := &tree.Node{ID: 0, Type: tree.TypeSubject, Content: "Empty", CreatedBy: tree.CreatorTeacher, CreatedAt: at(0)}
	r := NewRunner(nil, nil, nil)
	res, err := r.Execute(context.Background(), TreeSource{Root: root}, Options{Cursor: CursorEnd})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Frame.Empty || len(res.Frame.Nodes) != 0 {
		t.Errorf("frame = %+v, want empty", res.Frame)
	}
	if !strings.Contains(string(res.Artifacts["svg"]), "No activity yet") {
		t.Error("empty svg lacks placeholder")
	}
}

func TestFileSource(t *testing.T) {
	data, err := json.Marshal(sampleTree())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "log.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	snap, err := FileSource{Path: path}.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Title != "Why is society aging?" {
		t.Errorf("Title = %q", snap.Title)
	}
	if got := snap.Root.Count(); got != 4 {
		t.Errorf("Count = %d, want 4", got)
	}

	if _, err := (FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}).Load(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestTimelinePrefersSourceStatistics(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	stats := timeline.Statistics{TotalNodes: 42}
	_, got, err := r.Timeline(context.Background(), &Snapshot{Root: sampleTree(), Statistics: &stats})
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalNodes != 42 {
		t.Errorf("TotalNodes = %d, want 42", got.TotalNodes)
	}
}

func TestSnapshotHash(t *testing.T) {
	a := SnapshotHash(&Snapshot{Root: sampleTree()})
	b := SnapshotHash(&Snapshot{Root: sampleTree()})
	if a == "" || a != b {
		t.Errorf("hash not stable: %q vs %q", a, b)
	}
	changed := sampleTree()
	changed.Children[0].Content = "different"
	if SnapshotHash(&Snapshot{Root: changed}) == a {
		t.Error("hash ignores content")
	}
	if SnapshotHash(nil) != "" {
		t.Error("nil snapshot should hash to empty")
	}
}

func TestRenderStandalone(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	res, err := r.Execute(context.Background(), TreeSource{Root: sampleTree()}, Options{Cursor: 0, Formats: []string{"svg"}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Render(context.Background(), res.Frame, Options{Formats: []string{"svg", "dot"}, Scale: 1}); err != nil {
		t.Errorf("Render: %v", err)
	}
}
