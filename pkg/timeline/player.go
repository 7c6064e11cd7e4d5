package timeline

import (
	"sync"
	"time"

	"github.com/matzehuels/treereplay/pkg/errors"
)

// State is the playback state of a [Player].
type State int

const (
	StateIdle    State = iota // nothing loaded, or an empty timeline
	StateReady                // loaded, autoplay pending
	StatePlaying              // a tick timer is armed
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "idle"
	}
}

// DefaultAutoplayDelay is the pause between Load and the start of autoplay,
// leaving time for the first frame to be shown.
const DefaultAutoplayDelay = 500 * time.Millisecond

// Status is a consistent view of a player at one point in time.
type Status struct {
	Cursor  int    `json:"cursor"`
	Length  int    `json:"length"`
	State   State  `json:"-"`
	Speed   Speed  `json:"speed"`
	Version uint64 `json:"version"` // incremented on every change
}

// Playing reports whether autoplay is running.
func (s Status) Playing() bool { return s.State == StatePlaying }

// Empty reports whether there is nothing to replay.
func (s Status) Empty() bool { return s.Length == 0 }

// AtEnd reports whether the cursor is on the last activity.
func (s Status) AtEnd() bool { return s.Length > 0 && s.Cursor == s.Length-1 }

// =============================================================================
// Options
// =============================================================================

// Option configures a [Player].
type Option func(*Player)

// WithScheduler sets the timer source. Defaults to [RealScheduler].
func WithScheduler(s Scheduler) Option {
	return func(p *Player) { p.sched = s }
}

// WithSpeed sets the initial speed. Invalid speeds are ignored.
func WithSpeed(s Speed) Option {
	return func(p *Player) {
		if s.Valid() {
			p.speed = s
		}
	}
}

// WithAutoplayDelay sets the delay between Load and autoplay. A negative
// delay disables autoplay.
func WithAutoplayDelay(d time.Duration) Option {
	return func(p *Player) { p.autoplay = d }
}

// WithOnChange registers a callback invoked after every state change with
// the new status and the activity list that status refers to. It is called
// without the player's lock held, so it may call back into the player.
func WithOnChange(fn func(Status, []Activity)) Option {
	return func(p *Player) { p.onChange = fn }
}

// =============================================================================
// Player
// =============================================================================

type timerKind int

const (
	timerAutoplay timerKind = iota
	timerTick
)

// Player is the playback state machine over an activity list. All methods
// are safe for concurrent use.
type Player struct {
	mu         sync.Mutex
	sched      Scheduler
	autoplay   time.Duration
	onChange   func(Status, []Activity)
	activities []Activity
	cursor     int
	state      State
	speed      Speed
	version    uint64
	reloaded   bool
	closed     bool

	timer    Timer
	timerSeq uint64
}

// NewPlayer returns an idle player.
func NewPlayer(opts ...Option) *Player {
	p := &Player{
		sched:    RealScheduler{},
		autoplay: DefaultAutoplayDelay,
		speed:    DefaultSpeed,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Status returns the current status.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusLocked()
}

// Activities returns the loaded activity list. Callers must not modify it.
func (p *Player) Activities() []Activity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activities
}

// Load replaces the activity list, cancelling any pending timer, and resets
// the cursor to the first activity. Autoplay is armed unless the list is
// empty or autoplay is disabled.
func (p *Player) Load(activities []Activity) {
	p.update(func() {
		p.cancelLocked()
		p.activities = activities
		p.cursor = 0
		p.reloaded = true
		if len(activities) == 0 {
			p.state = StateIdle
			return
		}
		p.state = StateReady
		if p.autoplay >= 0 {
			p.armLocked(p.autoplay, timerAutoplay)
		}
	})
}

// Next moves one activity forward and pauses.
func (p *Player) Next() {
	p.update(func() { p.seekLocked(p.cursor + 1) })
}

// Prev moves one activity back and pauses.
func (p *Player) Prev() {
	p.update(func() { p.seekLocked(p.cursor - 1) })
}

// Seek moves to index, clamped to the loaded range, and pauses.
func (p *Player) Seek(index int) {
	p.update(func() { p.seekLocked(index) })
}

// Play starts autoplay from the current cursor. At the last activity the
// player stays paused.
func (p *Player) Play() {
	p.update(p.playLocked)
}

// Pause stops autoplay.
func (p *Player) Pause() {
	p.update(func() {
		if p.state == StateIdle {
			return
		}
		p.cancelLocked()
		p.state = StatePaused
	})
}

// Toggle pauses a playing player and plays otherwise.
func (p *Player) Toggle() {
	p.update(func() {
		if p.state == StatePlaying {
			p.cancelLocked()
			p.state = StatePaused
			return
		}
		p.playLocked()
	})
}

// SetSpeed changes the autoplay speed. While playing, the pending tick is
// re-armed with the new delay.
func (p *Player) SetSpeed(s Speed) error {
	if !s.Valid() {
		return errors.New(errors.ErrCodeInvalidSpeed, "unknown speed %q", s)
	}
	p.update(func() {
		p.speed = s
		if p.state == StatePlaying {
			p.cancelLocked()
			p.armLocked(s.Delay(), timerTick)
		}
	})
	return nil
}

// Close cancels any pending timer. A closed player ignores further
// commands.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelLocked()
	if p.state == StatePlaying || p.state == StateReady {
		p.state = StatePaused
	}
	p.closed = true
}

// =============================================================================
// Internals
// =============================================================================

// update runs fn under the lock and notifies the change callback if the
// observable status changed or a new list was loaded.
func (p *Player) update(fn func()) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	before := p.statusLocked()
	fn()
	after := p.statusLocked()
	changed := after != before || p.reloaded
	p.reloaded = false
	if changed {
		p.version++
		after.Version = p.version
	}
	notify, acts := p.onChange, p.activities
	p.mu.Unlock()

	if changed && notify != nil {
		notify(after, acts)
	}
}

func (p *Player) statusLocked() Status {
	return Status{
		Cursor:  p.cursor,
		Length:  len(p.activities),
		State:   p.state,
		Speed:   p.speed,
		Version: p.version,
	}
}

func (p *Player) seekLocked(index int) {
	if len(p.activities) == 0 {
		return
	}
	p.cancelLocked()
	p.cursor = clamp(index, 0, len(p.activities)-1)
	p.state = StatePaused
}

func (p *Player) playLocked() {
	if len(p.activities) == 0 {
		return
	}
	p.cancelLocked()
	if p.cursor >= len(p.activities)-1 {
		p.state = StatePaused
		return
	}
	p.state = StatePlaying
	p.armLocked(p.speed.Delay(), timerTick)
}

func (p *Player) armLocked(d time.Duration, kind timerKind) {
	p.timerSeq++
	seq := p.timerSeq
	p.timer = p.sched.AfterFunc(d, func() { p.fire(seq, kind) })
}

func (p *Player) cancelLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.timerSeq++
}

// fire handles a timer callback. Callbacks from timers that were cancelled
// or superseded are dropped.
func (p *Player) fire(seq uint64, kind timerKind) {
	p.update(func() {
		if seq != p.timerSeq || p.timer == nil {
			return
		}
		p.timer = nil
		switch kind {
		case timerAutoplay:
			if p.state == StateReady {
				p.playLocked()
			}
		case timerTick:
			if p.state != StatePlaying {
				return
			}
			if p.cursor < len(p.activities)-1 {
				p.cursor++
				p.armLocked(p.speed.Delay(), timerTick)
				return
			}
			p.state = StatePaused
		}
	})
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
