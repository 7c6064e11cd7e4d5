package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/treereplay/pkg/errors"
	"github.com/matzehuels/treereplay/pkg/pipeline"
	"github.com/matzehuels/treereplay/pkg/render/svg"
	"github.com/matzehuels/treereplay/pkg/replay"
	"github.com/matzehuels/treereplay/pkg/timeline"
	"github.com/matzehuels/treereplay/pkg/tree"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

// Socket message types.
const (
	MsgTimeline   = "timeline"
	MsgFrame      = "frame"
	MsgActivation = "activation"
	MsgError      = "error"
)

// CmdActivate opens a visible node and returns its chat history.
const CmdActivate = "activate"

// SocketCommand is a client message on the replay socket. Besides the
// playback commands it accepts "activate" with a node id.
type SocketCommand struct {
	replay.Command
	Node int64 `json:"node,omitempty"`
}

// SocketMessage is a server message on the replay socket.
type SocketMessage struct {
	Type       string               `json:"type"`
	Title      string               `json:"title,omitempty"`
	Length     int                  `json:"length,omitempty"`
	Statistics *timeline.Statistics `json:"statistics,omitempty"`
	Frame      *replay.Frame        `json:"frame,omitempty"`
	SVG        string               `json:"svg,omitempty"`
	Activation *replay.Activation   `json:"activation,omitempty"`
	Error      *ErrorDetail         `json:"error,omitempty"`
}

// handleReplaySocket drives a replay over a websocket:
//
//	GET /ws/replay?assignment=1&student=2[&svg=true]
//
// The snapshot is loaded before the upgrade so lookup failures are plain
// HTTP errors. After the upgrade the server sends a timeline message, then
// a frame message after every playback change.
func (s *Server) handleReplaySocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	aid, err := errors.ValidateID("assignment", q.Get("assignment"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sid, err := errors.ValidateID("student", q.Get("student"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	withSVG, _ := strconv.ParseBool(q.Get("svg"))

	snap, err := pipeline.ClassroomSource{Client: s.classroomFor(r), AssignmentID: aid, StudentID: sid}.Load(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	acts, stats, err := s.cfg.Runner.Timeline(r.Context(), snap)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	logger := s.logger.With("assignment", aid, "student", sid)
	logger.Info("replay socket opened", "activities", len(acts))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(SocketMessage{Type: MsgTimeline, Title: snap.Title, Length: len(acts), Statistics: &stats}); err != nil {
		conn.Close()
		return
	}

	frames := make(chan replay.Frame, 1)
	out := make(chan SocketMessage, 8)

	opts := []replay.Option{
		replay.WithSurface(pipeline.Metrics),
		replay.WithMaxPasses(s.cfg.MaxPasses),
		replay.WithLogger(logger),
		replay.WithTitle(snap.Title),
		replay.WithOnFrame(func(f replay.Frame) { offerFrame(frames, f) }),
		replay.WithPlayerOptions(
			timeline.WithSpeed(s.cfg.Speed),
			timeline.WithAutoplayDelay(s.cfg.AutoplayDelay),
		),
	}
	if s.cfg.Chat != nil {
		opts = append(opts, replay.WithChat(s.cfg.Chat, aid))
	}
	rs := replay.NewSession(opts...)
	defer rs.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writeLoop(ctx, conn, frames, out, withSVG)
		cancel()
	}()

	rs.LoadActivities(acts)
	s.readLoop(ctx, conn, rs, out, logger)
	cancel()
	<-done
	logger.Info("replay socket closed")
}

// offerFrame replaces any unsent frame with f. Only the newest frame is
// worth sending.
func offerFrame(frames chan replay.Frame, f replay.Frame) {
	for {
		select {
		case frames <- f:
			return
		default:
		}
		select {
		case <-frames:
		default:
		}
	}
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, rs *replay.Session, out chan<- SocketMessage, logger *log.Logger) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	send := func(m SocketMessage) bool {
		select {
		case out <- m:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("socket read failed", "error", err)
			}
			return
		}
		var cmd SocketCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			if !send(errorMessage(errors.Wrap(errors.ErrCodeInvalidCommand, err, "malformed command"))) {
				return
			}
			continue
		}

		if cmd.Cmd == CmdActivate {
			act, err := rs.Activate(ctx, tree.NodeID(cmd.Node))
			msg := SocketMessage{Type: MsgActivation, Activation: act}
			if err != nil {
				msg = errorMessage(err)
			}
			if !send(msg) {
				return
			}
			continue
		}
		if err := rs.Apply(cmd.Command); err != nil {
			if !send(errorMessage(err)) {
				return
			}
		}
	}
}

// writeLoop owns all writes to conn. It closes conn when it returns, which
// also ends the read loop.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, frames <-chan replay.Frame, out <-chan SocketMessage, withSVG bool) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	write := func(m SocketMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(m)
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case f := <-frames:
			m := SocketMessage{Type: MsgFrame, Frame: &f}
			if withSVG {
				m.SVG = string(svg.Render(f, svg.WithMetrics(pipeline.Metrics)))
			}
			if err := write(m); err != nil {
				return
			}
		case m := <-out:
			if err := write(m); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func errorMessage(err error) SocketMessage {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	return SocketMessage{Type: MsgError, Error: &ErrorDetail{Code: code, Message: errors.UserMessage(err)}}
}
