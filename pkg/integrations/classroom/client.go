package classroom

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/matzehuels/treereplay/pkg/cache"
	"github.com/matzehuels/treereplay/pkg/errors"
	"github.com/matzehuels/treereplay/pkg/integrations"
	"github.com/matzehuels/treereplay/pkg/timeline"
	"github.com/matzehuels/treereplay/pkg/tree"
)

const statusSuccess = "success"

// Client talks to the classroom API. The zero session is anonymous; use
// [Client.WithSession] to act as a teacher.
//
// All methods are safe for concurrent use.
type Client struct {
	*integrations.Client
	baseURL string
	keyer   cache.Keyer
	cookie  string
}

// NewClient creates a classroom client for the API rooted at baseURL
// (e.g. "http://classroom.local/api"). Tree logs are cached in backend
// for ttl.
func NewClient(backend cache.Cache, baseURL string, ttl time.Duration) *Client {
	return &Client{
		Client:  integrations.NewClient(backend, "classroom:", ttl, nil),
		baseURL: strings.TrimRight(baseURL, "/"),
		keyer:   cache.NewDefaultKeyer(),
	}
}

// WithSession returns a copy of c that authenticates with the given cookie.
// The copy shares the HTTP client, limiter and cache with c.
func (c *Client) WithSession(cookie string) *Client {
	cp := *c
	cp.cookie = cookie
	return &cp
}

// envelope is the response wrapper used by every endpoint.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *envelope) decode(v any) error {
	if e.Status != "" && e.Status != statusSuccess {
		msg := e.Message
		if msg == "" {
			msg = "request failed with status " + strconv.Quote(e.Status)
		}
		return errors.New(errors.ErrCodeInvalidInput, "%s", msg)
	}
	if v == nil || len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "decode response data")
	}
	return nil
}

func (c *Client) headers() map[string]string {
	if c.cookie == "" {
		return nil
	}
	return map[string]string{"Cookie": c.cookie}
}

func (c *Client) get(ctx context.Context, v any, path ...string) error {
	var env envelope
	if err := c.GetWithHeaders(ctx, integrations.JoinURL(c.baseURL, path...), c.headers(), &env); err != nil {
		return err
	}
	return env.decode(v)
}

// Login authenticates a teacher by number.
func (c *Client) Login(ctx context.Context, number string) (*Session, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "teacher number is required")
	}

	var env envelope
	resp, err := c.Exchange(ctx, http.MethodPost, c.baseURL+"/auth/login",
		map[string]string{"number": number}, nil, &env)
	if err != nil {
		if errors.Is(err, errors.ErrCodeInvalidInput) {
			return nil, errors.Wrap(errors.ErrCodeUnauthorized, err, "invalid teacher number")
		}
		return nil, err
	}
	if env.Status != statusSuccess {
		return nil, errors.New(errors.ErrCodeUnauthorized, "invalid teacher number")
	}

	sess := &Session{Cookie: cookieHeader(resp.Cookies())}
	if err := env.decode(&sess.Teacher); err != nil {
		return nil, err
	}
	if sess.Teacher.Name == "" {
		sess.Teacher = teacherFromCookies(resp.Cookies())
	}
	if sess.Teacher.Number == "" {
		sess.Teacher.Number = number
	}
	return sess, nil
}

// Logout ends the current session on the server.
func (c *Client) Logout(ctx context.Context) error {
	var env envelope
	if err := c.Do(ctx, http.MethodPost, c.baseURL+"/auth/logout", nil, c.headers(), &env); err != nil {
		return err
	}
	return env.decode(nil)
}

// Students returns the teacher's roster.
func (c *Client) Students(ctx context.Context) ([]Student, error) {
	var students []Student
	if err := c.get(ctx, &students, "teacher", "students"); err != nil {
		return nil, err
	}
	return students, nil
}

// Student looks up a single student in the roster.
func (c *Client) Student(ctx context.Context, id int64) (*Student, error) {
	students, err := c.Students(ctx)
	if err != nil {
		return nil, err
	}
	for i := range students {
		if students[i].ID == id {
			return &students[i], nil
		}
	}
	return nil, errors.New(errors.ErrCodeStudentNotFound, "student %d not found", id)
}

// Assignments returns the teacher's assignments.
func (c *Client) Assignments(ctx context.Context) ([]Assignment, error) {
	var assignments []Assignment
	if err := c.get(ctx, &assignments, "teacher", "assignments"); err != nil {
		return nil, err
	}
	return assignments, nil
}

// Assignment looks up a single assignment.
func (c *Client) Assignment(ctx context.Context, id int64) (*Assignment, error) {
	assignments, err := c.Assignments(ctx)
	if err != nil {
		return nil, err
	}
	for i := range assignments {
		if assignments[i].ID == id {
			return &assignments[i], nil
		}
	}
	return nil, errors.New(errors.ErrCodeAssignmentNotFound, "assignment %d not found", id)
}

// CreateAssignment validates req and creates the assignment.
func (c *Client) CreateAssignment(ctx context.Context, req CreateAssignmentRequest) (*Assignment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Phases == nil {
		req.Phases = []string{}
	}
	var env envelope
	if err := c.Do(ctx, http.MethodPost, c.baseURL+"/teacher/assignments", req, c.headers(), &env); err != nil {
		return nil, err
	}
	var a Assignment
	if err := env.decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// TreeLog fetches a student's tree for an assignment. If the API does not
// include statistics they are computed from the tree. When refresh is
// false a cached copy may be returned.
func (c *Client) TreeLog(ctx context.Context, assignmentID, studentID int64, refresh bool) (*TreeLog, error) {
	aid, sid := strconv.FormatInt(assignmentID, 10), strconv.FormatInt(studentID, 10)
	key := c.keyer.SnapshotKey(aid, sid) + ":" + cache.Hash([]byte(c.cookie))[:12]

	var raw rawTreeLog
	err := c.Cached(ctx, key, refresh, &raw, func() error {
		return c.get(ctx, &raw, "teacher", "assignments", aid, "students", sid, "tree-logs")
	})
	if err != nil {
		if errors.Is(err, errors.ErrCodeNotFound) {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "no tree log for student %s in assignment %s", sid, aid)
		}
		return nil, err
	}
	return raw.toTreeLog()
}

type rawTreeLog struct {
	Assignment Assignment      `json:"assignment"`
	Student    Student         `json:"student"`
	Tree       json.RawMessage `json:"treeStructure"`
	Statistics *rawStatistics  `json:"statistics,omitempty"`
}

// rawStatistics is the statistics block as the API reports it.
type rawStatistics struct {
	TotalNodes       int    `json:"totalNodes"`
	StudentNodes     int    `json:"studentNodes"`
	AINodes          int    `json:"aiNodes"`
	TotalEvidences   int    `json:"totalEvidences"`
	StudentEvidences int    `json:"studentEvidences"`
	AIEvidences      int    `json:"aiEvidences"`
	StartedAt        string `json:"startedAt"`
	LastActivityAt   string `json:"lastActivityAt"`
	TotalDuration    string `json:"totalDuration"`
}

func (r *rawTreeLog) toTreeLog() (*TreeLog, error) {
	if len(r.Tree) == 0 || string(r.Tree) == "null" {
		return nil, errors.New(errors.ErrCodeNotFound, "tree log has no tree")
	}
	root, err := tree.Parse(r.Tree, tree.FormatJSON)
	if err != nil {
		return nil, err
	}
	log := &TreeLog{Assignment: r.Assignment, Student: r.Student, Tree: root}
	if r.Statistics != nil {
		log.Statistics = r.Statistics.toStatistics()
		log.ServerStatistics = true
		return log, nil
	}
	activities, err := timeline.Extract(root)
	if err != nil {
		return nil, err
	}
	log.Statistics = timeline.Summarize(activities)
	return log, nil
}

func (s *rawStatistics) toStatistics() timeline.Statistics {
	out := timeline.Statistics{
		TotalNodes:       s.TotalNodes,
		StudentNodes:     s.StudentNodes,
		AINodes:          s.AINodes,
		TotalEvidences:   s.TotalEvidences,
		StudentEvidences: s.StudentEvidences,
		AIEvidences:      s.AIEvidences,
		TotalDuration:    s.TotalDuration,
	}
	if t, err := tree.ParseTime(s.StartedAt); err == nil {
		out.FirstActivity = t
	}
	if t, err := tree.ParseTime(s.LastActivityAt); err == nil {
		out.LastActivity = t
	}
	if !out.FirstActivity.IsZero() && !out.LastActivity.IsZero() {
		out.Duration = out.LastActivity.Sub(out.FirstActivity)
	}
	return out
}

func cookieHeader(cookies []*http.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	return strings.Join(parts, "; ")
}

// teacherFromCookies reads the URL-encoded JSON "user" cookie some
// deployments set instead of returning the teacher in the body.
func teacherFromCookies(cookies []*http.Cookie) Teacher {
	var t Teacher
	for _, ck := range cookies {
		if ck.Name != "user" {
			continue
		}
		raw, err := url.QueryUnescape(ck.Value)
		if err != nil {
			raw = ck.Value
		}
		_ = json.Unmarshal([]byte(raw), &t)
	}
	return t
}
