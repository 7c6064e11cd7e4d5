// Package timeline turns a tree snapshot into an ordered sequence of
// activities and drives playback over that sequence.
//
// # Activities
//
// [Extract] walks a snapshot depth-first and emits one [Activity] per node
// the student (or the AI tutor) added, sorted by creation time. Two kinds of
// nodes never become activities of their own:
//
//   - ANSWER nodes directly under a QUESTION; they are attached to the
//     question as [NodeView.Answers].
//   - hidden nodes; their descendants are still visited.
//
// # Playback
//
// [Player] is a small state machine over an activity list:
//
//	Idle ──Load──▶ Ready ──autoplay/Play──▶ Playing ◀──Play── Paused
//	                 │                        │  ▲               ▲
//	                 └──Next/Prev/Seek────────┴──┼───────────────┘
//	                                             └─ tick (advance, re-arm)
//
// At most one timer is pending at any time. Every timer carries a sequence
// number; a callback whose sequence is no longer current is ignored, so a
// tick can never advance a cursor that was moved or reloaded after the tick
// was armed. Manual navigation always pauses.
//
// Timers come from a [Scheduler]. [RealScheduler] uses [time.AfterFunc];
// [ManualScheduler] advances virtual time explicitly and is meant for tests
// and deterministic tooling.
package timeline
