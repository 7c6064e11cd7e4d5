// Package replay assembles what a viewer shows at each step of a tree
// replay.
//
// A [Frame] is the complete, self-contained picture at one cursor: the
// current activity, the visible [layout.RenderableNode]s and their settled
// positions. [Compose] builds a frame from an activity list; it is pure and
// is what the render pipeline caches.
//
// A [Session] drives a [timeline.Player] and publishes a new frame after
// every player change. Frames are tagged with the player version they were
// computed for; a frame that finishes after a newer change has been seen is
// dropped instead of published, so a slow layout never overwrites a newer
// one.
package replay
