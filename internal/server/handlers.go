package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/treereplay/pkg/buildinfo"
	"github.com/matzehuels/treereplay/pkg/errors"
	"github.com/matzehuels/treereplay/pkg/integrations/chathistory"
	"github.com/matzehuels/treereplay/pkg/integrations/classroom"
	"github.com/matzehuels/treereplay/pkg/layout"
	"github.com/matzehuels/treereplay/pkg/pipeline"
	"github.com/matzehuels/treereplay/pkg/render"
	"github.com/matzehuels/treereplay/pkg/timeline"
	"github.com/matzehuels/treereplay/pkg/tree"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	b := buildinfo.Get()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": b.Version,
		"commit":  b.Commit,
	})
}

// =============================================================================
// Roster & assignments
// =============================================================================

func (s *Server) handleStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.classroomFor(r).Students(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

func (s *Server) handleAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := s.classroomFor(r).Assignments(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}

func (s *Server) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req classroom.CreateAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.classroomFor(r).CreateAssignment(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

type assignmentResponse struct {
	Assignment *classroom.Assignment `json:"assignment"`
	Students   []classroom.Student   `json:"students"`
}

// handleAssignment returns an assignment with the teacher's roster. Both
// are fetched concurrently.
func (s *Server) handleAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "assignment")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	client := s.classroomFor(r)

	var resp assignmentResponse
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		a, err := client.Assignment(ctx, id)
		resp.Assignment = a
		return err
	})
	g.Go(func() error {
		students, err := client.Students(ctx)
		resp.Students = students
		return err
	})
	if err := g.Wait(); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Replay
// =============================================================================

type replayTarget struct {
	assignmentID int64
	studentID    int64
	refresh      bool
}

func parseReplayTarget(r *http.Request) (replayTarget, error) {
	aid, err := pathID(r, "id", "assignment")
	if err != nil {
		return replayTarget{}, err
	}
	sid, err := pathID(r, "sid", "student")
	if err != nil {
		return replayTarget{}, err
	}
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	return replayTarget{assignmentID: aid, studentID: sid, refresh: refresh}, nil
}

func (s *Server) source(r *http.Request, t replayTarget) pipeline.ClassroomSource {
	return pipeline.ClassroomSource{
		Client:       s.classroomFor(r),
		AssignmentID: t.assignmentID,
		StudentID:    t.studentID,
		Refresh:      t.refresh,
	}
}

type timelineResponse struct {
	Title      string              `json:"title"`
	Length     int                 `json:"length"`
	Activities []activityJSON      `json:"activities"`
	Statistics timeline.Statistics `json:"statistics"`
}

type activityJSON struct {
	Index       int               `json:"index"`
	Description string            `json:"description"`
	Timestamp   time.Time         `json:"timestamp"`
	ActionBy    tree.Creator      `json:"actionBy"`
	Node        timeline.NodeView `json:"node"`
	Evidences   []tree.Evidence   `json:"evidences"`
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	t, err := parseReplayTarget(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.source(r, t).Load(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	acts, stats, err := s.cfg.Runner.Timeline(r.Context(), snap)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := timelineResponse{
		Title:      snap.Title,
		Length:     len(acts),
		Activities: make([]activityJSON, len(acts)),
		Statistics: stats,
	}
	for i, a := range acts {
		resp.Activities[i] = activityJSON{
			Index:       i,
			Description: a.Describe(),
			Timestamp:   a.Timestamp,
			ActionBy:    a.ActionBy,
			Node:        a.Node,
			Evidences:   a.Evidences,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleFrame renders the frame at a cursor. The default format is the
// frame JSON; ?format= selects svg, dot, png or pdf.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	t, err := parseReplayTarget(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cursor, err := parseCursor(chi.URLParam(r, "cursor"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	format := render.FormatJSON
	if f := r.URL.Query().Get("format"); f != "" {
		if format, err = render.ParseFormat(f); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	detailed, _ := strconv.ParseBool(r.URL.Query().Get("detailed"))

	res, err := s.cfg.Runner.Execute(r.Context(), s.source(r, t), pipeline.Options{
		Cursor:    cursor,
		MaxPasses: s.cfg.MaxPasses,
		Formats:   []string{string(format)},
		Detailed:  detailed,
		Refresh:   t.refresh,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	if res.FrameHash != "" {
		w.Header().Set("ETag", strconv.Quote(res.FrameHash))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Artifacts[string(format)])
}

// parseCursor accepts a step index or "last".
func parseCursor(raw string) (int, error) {
	if raw == "last" || raw == "end" {
		return pipeline.CursorEnd, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(errors.ErrCodeInvalidCursor, "cursor must be a step index or \"last\": %q", raw)
	}
	return n, nil
}

type chatResponse struct {
	Node     layout.RenderableNode `json:"node"`
	Messages []chathistory.Message `json:"messages"`
}

// handleChat activates a node: it must be drawn at ?cursor= (default the
// last step), and its chat history is returned.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	t, err := parseReplayTarget(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	nodeID, err := errors.ValidateID("node", chi.URLParam(r, "nodeID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cursor := pipeline.CursorEnd
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		if cursor, err = parseCursor(raw); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	snap, err := s.source(r, t).Load(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	acts, _, err := s.cfg.Runner.Timeline(r.Context(), snap)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.cfg.Runner.Frame(r.Context(), acts, pipeline.SnapshotHash(snap), pipeline.Options{
		Cursor:    cursor,
		MaxPasses: s.cfg.MaxPasses,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	node, ok := f.Visible(tree.NodeID(nodeID))
	if !ok {
		s.writeError(w, r, errors.New(errors.ErrCodeNotFound, "node %d is not visible at step %d", nodeID, f.Cursor))
		return
	}

	resp := chatResponse{Node: node, Messages: []chathistory.Message{}}
	if s.cfg.Chat != nil {
		msgs, err := s.cfg.Chat.Messages(r.Context(), t.assignmentID, tree.NodeID(nodeID).String())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.Messages = msgs
	}
	writeJSON(w, http.StatusOK, resp)
}
