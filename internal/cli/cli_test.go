package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/treereplay/pkg/errors"
	"github.com/matzehuels/treereplay/pkg/pipeline"
	"github.com/matzehuels/treereplay/pkg/replay"
)

const sampleTree = `{
  "id": 0, "content": "Why is society aging?", "type": "SUBJECT", "createdBy": "TEACHER",
  "createdAt": "2025-06-04T03:53:06",
  "children": [
    {"id": 1, "content": "People live longer", "type": "CLAIM", "createdBy": "STUDENT",
     "createdAt": "2025-06-05T05:01:00",
     "evidences": [{"id": 10, "content": "life expectancy rose", "createdBy": "STUDENT", "createdAt": "2025-06-05T05:01:30"}],
     "children": [
       {"id": 2, "content": "Births matter more", "type": "COUNTER", "createdBy": "AI",
        "createdAt": "2025-06-05T05:03:00", "triggeredByEvidenceId": 10}
     ]},
    {"id": 3, "content": "What about migration?", "type": "QUESTION", "createdBy": "AI",
     "createdAt": "2025-06-05T05:02:00"}
  ]
}`

// newTestCLI returns a CLI with config, cache and session directories
// isolated under a temp dir.
func newTestCLI(t *testing.T) *CLI {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	c := New(io.Discard, log.InfoLevel)
	c.SessionDir = filepath.Join(dir, "sessions")
	return c
}

// execute runs the CLI with args and returns what the command wrote to
// its output stream.
func execute(t *testing.T, c *CLI, args ...string) (string, error) {
	t.Helper()
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeTree(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tree.json")
	if err := os.WriteFile(path, []byte(sampleTree), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newTestCLI(t).RootCommand()
	for _, name := range []string{"timeline", "frame", "render", "play", "serve", "login", "logout", "whoami", "cache", "completion"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestParseCursor(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", pipeline.CursorEnd, false},
		{"last", pipeline.CursorEnd, false},
		{"END", pipeline.CursorEnd, false},
		{"0", 0, false},
		{"12", 12, false},
		{"-1", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := parseCursor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseCursor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, errors.ErrCodeInvalidCursor) {
			t.Errorf("parseCursor(%q) error code = %s", tt.in, errors.GetCode(err))
		}
		if got != tt.want {
			t.Errorf("parseCursor(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseFormats(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{"svg"}},
		{"svg", []string{"svg"}},
		{"svg,png", []string{"svg", "png"}},
		{" dot , json ,", []string{"dot", "json"}},
	}
	for _, tt := range tests {
		got := parseFormats(tt.in)
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("parseFormats(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBasePath(t *testing.T) {
	tests := []struct {
		output, stem, want string
	}{
		{"", "data/tree", "data/tree"},
		{"out/step.svg", "tree", "out/step"},
		{"out/step.PNG", "tree", "out/step"},
		{"out/step", "tree", "out/step"},
		{"notes.txt", "tree", "notes.txt"},
	}
	for _, tt := range tests {
		if got := basePath(tt.output, tt.stem); got != tt.want {
			t.Errorf("basePath(%q, %q) = %q, want %q", tt.output, tt.stem, got, tt.want)
		}
	}
}

func TestSinglePath(t *testing.T) {
	path := singlePath("frame.svg", []string{"svg"}, "frame")
	if got := path("svg"); got != "frame.svg" {
		t.Errorf("single format path = %q", got)
	}
	path = singlePath("frame.svg", []string{"svg", "dot"}, "frame")
	if got := path("dot"); got != "frame.dot" {
		t.Errorf("multi format path = %q", got)
	}
}

func TestTimelineCommand(t *testing.T) {
	c := newTestCLI(t)
	out, err := execute(t, c, "timeline", writeTree(t), "--json")
	if err != nil {
		t.Fatal(err)
	}

	var got timelineJSON
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if got.Title != "Why is society aging?" {
		t.Errorf("title = %q", got.Title)
	}
	var ids []int64
	for _, a := range got.Activities {
		ids = append(ids, int64(a.Node.ID))
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 3 || ids[2] != 2 {
		t.Errorf("activity order = %v, want [1 3 2]", ids)
	}
	if got.Statistics.TotalNodes != 3 || got.Statistics.AINodes != 2 {
		t.Errorf("statistics = %+v", got.Statistics)
	}
}

func TestTimelineCommandTable(t *testing.T) {
	c := newTestCLI(t)
	out, err := execute(t, c, "timeline", writeTree(t), "--title", "Aging")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Aging", "People live longer", "What about migration?", "Duration"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTimelineCommandArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no source", []string{"timeline"}},
		{"file and assignment", []string{"timeline", "tree.json", "--assignment", "1", "--student", "2"}},
		{"missing file", []string{"timeline", "does-not-exist.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, newTestCLI(t), tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFrameCommand(t *testing.T) {
	c := newTestCLI(t)
	path := writeTree(t)

	out, err := execute(t, c, "frame", path, "--cursor", "1", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var f replay.Frame
	if err := json.Unmarshal([]byte(out), &f); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if f.Cursor != 1 || f.Length != 3 {
		t.Errorf("cursor/length = %d/%d, want 1/3", f.Cursor, f.Length)
	}
	if len(f.Nodes) != 2 {
		t.Errorf("visible nodes = %d, want 2", len(f.Nodes))
	}

	out, err = execute(t, newTestCLI(t), "frame", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Step 3/3") || !strings.Contains(out, "Births matter more") {
		t.Errorf("outline:\n%s", out)
	}

	if _, err := execute(t, newTestCLI(t), "frame", path, "--cursor", "9"); !errors.Is(err, errors.ErrCodeInvalidCursor) {
		t.Errorf("out of range cursor error = %v", err)
	}
}

func TestRenderCommand(t *testing.T) {
	c := newTestCLI(t)
	path := writeTree(t)
	base := filepath.Join(t.TempDir(), "out", "step")

	if _, err := execute(t, c, "render", path, "--cursor", "0", "--format", "svg,dot,json", "-o", base, "--no-cache"); err != nil {
		t.Fatal(err)
	}

	svg, err := os.ReadFile(base + ".svg")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(svg, []byte("<svg")) {
		t.Errorf("svg output starts with %q", svg[:min(len(svg), 20)])
	}
	dot, err := os.ReadFile(base + ".dot")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(dot, []byte("digraph G {")) {
		t.Errorf("dot output starts with %q", dot[:min(len(dot), 20)])
	}
	var f replay.Frame
	data, err := os.ReadFile(base + ".json")
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &f); err != nil || f.Cursor != 0 {
		t.Errorf("json frame = %+v, err %v", f, err)
	}
}

func TestRenderCommandAll(t *testing.T) {
	c := newTestCLI(t)
	dir := t.TempDir()

	if _, err := execute(t, c, "render", writeTree(t), "--all", "--format", "dot", "-o", filepath.Join(dir, "tree")); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"tree_0.dot", "tree_1.dot", "tree_2.dot"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestRenderCommandInvalidFormat(t *testing.T) {
	if _, err := execute(t, newTestCLI(t), "render", writeTree(t), "--format", "gif"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRemoteSourceRequiresLogin(t *testing.T) {
	_, err := execute(t, newTestCLI(t), "timeline", "--assignment", "1", "--student", "7")
	if err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Errorf("error = %v, want not logged in", err)
	}
}

func TestRemoteSourceInvalidIDs(t *testing.T) {
	_, err := execute(t, newTestCLI(t), "timeline", "--assignment", "1")
	if !errors.Is(err, errors.ErrCodeInvalidID) {
		t.Errorf("error = %v, want INVALID_ID", err)
	}
}

// fakeClassroom serves the classroom endpoints used by the CLI.
func fakeClassroom(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Number string `json:"number"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Number != "0001" {
			w.Write([]byte(`{"status":"error","message":"unknown teacher"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "SESSION", Value: "s3cr3t"})
		w.Write([]byte(`{"status":"success","data":{"id":3,"name":"Ms. Lee"}}`))
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success"}`))
	})
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if ck, err := r.Cookie("SESSION"); err != nil || ck.Value != "s3cr3t" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			h(w, r)
		}
	}
	mux.HandleFunc("GET /teacher/students", authed(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":[{"id":7,"name":"Kim"}]}`))
	}))
	mux.HandleFunc("GET /teacher/assignments/{aid}/students/{sid}/tree-logs", authed(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{
			"assignment": {"id": 1, "subject": "Social studies", "chapter": "Population change"},
			"student": {"id": 7, "name": "Kim"},
			"treeStructure": ` + sampleTree + `}}`))
	}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginFlow(t *testing.T) {
	api := fakeClassroom(t)
	c := newTestCLI(t)
	t.Setenv("TREEREPLAY_CLASSROOM_BASE_URL", api.URL)

	if _, err := execute(t, c, "login", "9999"); !errors.Is(err, errors.ErrCodeUnauthorized) {
		t.Fatalf("bad number error = %v", err)
	}
	if _, err := execute(t, c, "login", "0001"); err != nil {
		t.Fatal(err)
	}

	sess, err := c.loadLogin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sess.Teacher == nil || sess.Teacher.Name != "Ms. Lee" {
		t.Errorf("teacher = %+v", sess.Teacher)
	}
	if !strings.Contains(sess.Cookie, "SESSION=s3cr3t") {
		t.Errorf("cookie = %q", sess.Cookie)
	}

	if _, err := execute(t, c, "whoami"); err != nil {
		t.Errorf("whoami: %v", err)
	}

	out, err := execute(t, c, "timeline", "--assignment", "1", "--student", "7", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var got timelineJSON
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatal(err)
	}
	if got.Title != "Population change" || len(got.Activities) != 3 {
		t.Errorf("remote timeline = %q with %d activities", got.Title, len(got.Activities))
	}

	if _, err := execute(t, c, "logout"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.loadLogin(context.Background()); err == nil {
		t.Error("session should be removed after logout")
	}
}

func TestLoginReadsNumberFromStdin(t *testing.T) {
	api := fakeClassroom(t)
	c := newTestCLI(t)
	t.Setenv("TREEREPLAY_CLASSROOM_BASE_URL", api.URL)

	root := c.RootCommand()
	root.SetOut(io.Discard)
	root.SetIn(strings.NewReader("0001\n"))
	root.SetArgs([]string{"login"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.loadLogin(context.Background()); err != nil {
		t.Error(err)
	}
}

func TestLoginRequiresBaseURL(t *testing.T) {
	t.Setenv("TREEREPLAY_CLASSROOM_BASE_URL", "")
	_, err := execute(t, newTestCLI(t), "login", "0001")
	if err == nil || !strings.Contains(err.Error(), "classroom.base_url") {
		t.Errorf("error = %v", err)
	}
}

func TestCacheCommands(t *testing.T) {
	c := newTestCLI(t)
	if _, err := execute(t, c, "render", writeTree(t), "--format", "dot", "-o", filepath.Join(t.TempDir(), "x")); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, c, "cache", "path")
	if err != nil {
		t.Fatal(err)
	}
	dir := strings.TrimSpace(out)
	if filepath.Base(dir) != appName {
		t.Errorf("cache path = %q", dir)
	}

	fc, err := c.localCache()
	if err != nil {
		t.Fatal(err)
	}
	if n, _, _ := fc.Size(); n == 0 {
		t.Fatal("render should populate the cache")
	}
	if _, err := execute(t, c, "cache", "clear"); err != nil {
		t.Fatal(err)
	}
	if n, _, _ := fc.Size(); n != 0 {
		t.Errorf("entries after clear = %d", n)
	}
}

func TestCacheCommandsRemoteBackend(t *testing.T) {
	c := newTestCLI(t)
	t.Setenv("TREEREPLAY_CACHE_BACKEND", "redis")
	if _, err := execute(t, c, "cache", "clear"); err == nil {
		t.Error("clearing a redis cache should be refused")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{5 << 20, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestServerFromConfig(t *testing.T) {
	api := fakeClassroom(t)
	c := newTestCLI(t)
	t.Setenv("TREEREPLAY_CLASSROOM_BASE_URL", api.URL)
	t.Setenv("TREEREPLAY_SERVER_JWT_SECRET", "test")

	cfg, err := c.config()
	if err != nil {
		t.Fatal(err)
	}
	srv, cleanup, err := c.newServer(context.Background(), cfg, &serveOpts{noCache: true})
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}
}

func TestExampleSnapshots(t *testing.T) {
	for _, name := range []string{"aging.json", "aging.yaml"} {
		t.Run(name, func(t *testing.T) {
			out, err := execute(t, newTestCLI(t), "timeline", filepath.Join("..", "..", "examples", "trees", name), "--json")
			if err != nil {
				t.Fatal(err)
			}
			var got timelineJSON
			if err := json.Unmarshal([]byte(out), &got); err != nil {
				t.Fatal(err)
			}
			if len(got.Activities) < 3 || got.Title != "Why is society aging?" {
				t.Errorf("got %q with %d activities", got.Title, len(got.Activities))
			}
		})
	}
}
