package replay

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/treereplay/pkg/errors"
	"github.com/matzehuels/treereplay/pkg/integrations/chathistory"
	"github.com/matzehuels/treereplay/pkg/layout"
	"github.com/matzehuels/treereplay/pkg/observability"
	"github.com/matzehuels/treereplay/pkg/timeline"
	"github.com/matzehuels/treereplay/pkg/tree"
)

// ChatSource looks up the chat history of a node.
type ChatSource interface {
	Messages(ctx context.Context, assignmentID int64, nodeID string) ([]chathistory.Message, error)
}

// Activation is the result of opening a node in the viewer.
type Activation struct {
	Node     layout.RenderableNode `json:"node"`
	Messages []chathistory.Message `json:"messages"`
}

// =============================================================================
// Options
// =============================================================================

// Option configures a [Session].
type Option func(*Session)

// WithSurface sets the measuring surface used to settle layouts.
func WithSurface(s layout.Surface) Option {
	return func(r *Session) { r.surface = s }
}

// WithMaxPasses bounds the settle loop. Values below one use
// [layout.DefaultMaxPasses].
func WithMaxPasses(n int) Option {
	return func(r *Session) { r.maxPasses = n }
}

// WithChat enables [Session.Activate] for nodes of the given assignment.
func WithChat(c ChatSource, assignmentID int64) Option {
	return func(r *Session) {
		r.chat = c
		r.assignmentID = assignmentID
	}
}

// WithLogger sets the session logger. Defaults to log.Default().
func WithLogger(l *log.Logger) Option {
	return func(r *Session) { r.logger = l }
}

// WithOnFrame registers a callback receiving every published frame. It is
// called from whichever goroutine caused the change, one frame at a time,
// and must not call back into the session synchronously.
func WithOnFrame(fn func(Frame)) Option {
	return func(r *Session) { r.onFrame = fn }
}

// WithTitle sets the subject heading carried by frames.
func WithTitle(title string) Option {
	return func(r *Session) { r.title = title }
}

// WithPlayerOptions passes options through to the underlying player.
func WithPlayerOptions(opts ...timeline.Option) Option {
	return func(r *Session) { r.playerOpts = append(r.playerOpts, opts...) }
}

// =============================================================================
// Session
// =============================================================================

// Session is one viewer's replay: a player plus the frames derived from it.
// All methods are safe for concurrent use.
type Session struct {
	player       *timeline.Player
	playerOpts   []timeline.Option
	surface      layout.Surface
	maxPasses    int
	chat         ChatSource
	assignmentID int64
	logger       *log.Logger
	onFrame      func(Frame)
	title        string

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	latest    uint64 // highest player version seen
	published uint64
	frame     Frame

	publishMu sync.Mutex
}

// NewSession creates an idle session. Call [Session.Load] to start a
// replay and [Session.Close] when done.
func NewSession(opts ...Option) *Session {
	s := &Session{maxPasses: layout.DefaultMaxPasses}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.frame = Frame{Empty: true, State: timeline.StateIdle.String(), Speed: timeline.DefaultSpeed, Positions: layout.Positions{}}

	popts := append([]timeline.Option{}, s.playerOpts...)
	popts = append(popts, timeline.WithOnChange(s.onChange))
	s.player = timeline.NewPlayer(popts...)
	return s
}

// Load extracts the activities of root and starts a replay of them.
// A malformed tree leaves the current replay untouched.
func (s *Session) Load(ctx context.Context, root *tree.Node) error {
	start := time.Now()
	activities, err := timeline.Extract(root)
	observability.Replay().OnExtract(ctx, len(activities), time.Since(start), err)
	if err != nil {
		s.logger.Warn("rejected snapshot", "error", err)
		return err
	}
	s.logger.Debug("extracted activities", "count", len(activities))
	s.LoadActivities(activities)
	return nil
}

// LoadActivities starts a replay of an already extracted list.
func (s *Session) LoadActivities(activities []timeline.Activity) {
	s.player.Load(activities)
}

// SetTitle changes the subject heading for subsequent frames.
func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
}

// Frame returns the most recently published frame.
func (s *Session) Frame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Status returns the player status.
func (s *Session) Status() timeline.Status { return s.player.Status() }

// Activities returns the loaded activity list.
func (s *Session) Activities() []timeline.Activity { return s.player.Activities() }

// FrameAt composes the frame at cursor without moving the player.
func (s *Session) FrameAt(ctx context.Context, cursor int) (Frame, error) {
	f, err := ComposeAt(ctx, s.player.Activities(), cursor, s.surface, s.maxPasses)
	if err != nil {
		return f, err
	}
	f.Title = s.currentTitle()
	return f, nil
}

// Activate opens a node drawn in the current frame and returns its chat
// history. It fails with NOT_FOUND if the node is not visible.
func (s *Session) Activate(ctx context.Context, id tree.NodeID) (*Activation, error) {
	f := s.Frame()
	node, ok := f.Visible(id)
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "node %d is not visible at step %d", id, f.Cursor)
	}
	act := &Activation{Node: node, Messages: []chathistory.Message{}}
	if s.chat == nil {
		return act, nil
	}
	msgs, err := s.chat.Messages(ctx, s.assignmentID, id.String())
	if err != nil {
		return nil, err
	}
	act.Messages = msgs
	return act, nil
}

// Next moves one activity forward and pauses.
func (s *Session) Next() { s.player.Next() }

// Prev moves one activity back and pauses.
func (s *Session) Prev() { s.player.Prev() }

// Seek moves to index, clamped, and pauses.
func (s *Session) Seek(index int) { s.player.Seek(index) }

// Play starts autoplay.
func (s *Session) Play() { s.player.Play() }

// Pause stops autoplay.
func (s *Session) Pause() { s.player.Pause() }

// Toggle switches between playing and paused.
func (s *Session) Toggle() { s.player.Toggle() }

// SetSpeed changes the autoplay speed.
func (s *Session) SetSpeed(sp timeline.Speed) error { return s.player.SetSpeed(sp) }

// Close stops playback and abandons any frame being computed.
func (s *Session) Close() {
	s.player.Close()
	s.cancel()
}

func (s *Session) currentTitle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// onChange is the player callback. It records the version as the newest
// known one before composing, so that any slower composition for an older
// version is discarded when it completes. acts is the list st was taken from.
func (s *Session) onChange(st timeline.Status, acts []timeline.Activity) {
	s.mu.Lock()
	if st.Version > s.latest {
		s.latest = st.Version
	}
	s.mu.Unlock()

	f, err := Compose(s.ctx, acts, st, s.surface, s.maxPasses)
	if err != nil {
		s.logger.Debug("frame abandoned", "version", st.Version, "error", err)
		return
	}
	s.publish(f)
}

func (s *Session) publish(f Frame) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	if f.Version < s.latest || f.Version <= s.published {
		latest := s.latest
		s.mu.Unlock()
		observability.Replay().OnFrameDropped(s.ctx, f.Version, latest)
		s.logger.Debug("dropped stale frame", "version", f.Version, "latest", latest)
		return
	}
	f.Title = s.title
	s.published = f.Version
	s.frame = f
	fn := s.onFrame
	s.mu.Unlock()

	if fn != nil {
		fn(f)
	}
}
