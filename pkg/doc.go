// Package pkg provides the core libraries for treereplay.
//
// # Overview
//
// Treereplay reconstructs the order in which a student built an argument
// tree (claims, counterarguments and questions hanging off a subject, with
// evidence attached) and replays it one activity at a time. The pkg
// directory is organized into four main areas:
//
//  1. Domain logic: [tree], [timeline], [layout], [replay]
//  2. Rendering: [render], [render/svg], [render/nodelink]
//  3. Infrastructure: [cache], [session], [errors], [observability], [httputil]
//  4. Orchestration and clients: [pipeline], [integrations]
//
// # Architecture
//
// The typical data flow:
//
//	Tree snapshot (file or classroom tree log)
//	         ↓
//	    [tree] package (decode, validate)
//	         ↓
//	    [timeline] package (activities in creation order, playback)
//	         ↓
//	    [layout] package (visible nodes, positions, settle passes)
//	         ↓
//	    [replay] package (frames per player state)
//	         ↓
//	    SVG/PNG/PDF/DOT/JSON output
//
// # Quick Start
//
// Render the last step of a snapshot:
//
//	import (
//	    "context"
//	    "github.com/matzehuels/treereplay/pkg/pipeline"
//	)
//
//	runner := pipeline.NewRunner(nil, nil, logger)
//	result, _ := runner.Execute(context.Background(),
//	    pipeline.FileSource{Path: "tree.json"},
//	    pipeline.Options{Cursor: pipeline.CursorEnd, Formats: []string{"svg"}})
//	svg := result.Artifacts["svg"]
//
// Drive an interactive replay:
//
//	sess := replay.NewSession(
//	    replay.WithSurface(pipeline.Metrics),
//	    replay.WithOnFrame(func(f replay.Frame) { draw(f) }),
//	)
//	defer sess.Close()
//	_ = sess.Load(ctx, root)
//	sess.Next()
//
// # Main Packages
//
// [timeline] - Activity extraction (pre-order walk, stable sort by creation
// time) and the playback state machine with SLOW/MEDIUM/FAST speeds and
// autoplay. Timers come from a [timeline.Scheduler] so tests can drive time.
//
// [layout] - Builds the renderable nodes visible at a cursor and positions
// them in depth columns, re-measuring through a [layout.Surface] until the
// positions settle or the pass cap is reached.
//
// [replay] - Owns a player and publishes frames after every change,
// discarding frames computed for superseded states. Node activation pulls
// chat history through a [replay.ChatSource].
//
// [pipeline] - Load → extract → frame → render with frame and artifact
// caching. Used by the CLI and the dashboard API.
//
// [cache] - File, Redis, MongoDB and no-op backends behind one interface.
//
// [session] - Dashboard and CLI login sessions in memory, files or Redis.
//
// [integrations] - Shared HTTP client (retry, rate limit, response cache)
// and the classroom and chat-history clients built on it.
//
// # Testing
//
// Run tests:
//
//	go test ./...                    # All tests
//	go test ./pkg/timeline/...       # Specific package
//	go test -run Example ./pkg/...   # Examples only
//
// [tree]: https://pkg.go.dev/github.com/matzehuels/treereplay/pkg/tree
// [timeline]: https://pkg.go.dev/github.com/matzehuels/treereplay/pkg/timeline
// [layout]: https://pkg.go.dev/github.com/matzehuels/treereplay/pkg/layout
// [replay]: https://pkg.go.dev/github.com/matzehuels/treereplay/pkg/replay
// [render]: https://pkg.go.dev/github.com/matzehuels/treereplay/pkg/render
// [render/svg]: https://pkg.go.dev/github.com/matzehuels/treereplay/pkg/render/svg
// [render/nodelink]: https://pkg.go.dev/github.com/matzehuels/treereplay/pkg/render/nodelink
// [cache]: https://pkg.go.dev/github.com/matzehuels/treereplay/pkg/cache
// [session]: https://pkg.go.dev/github.com/matzehuels/treereplay/pkg/session
// [errors]: https://pkg.go.dev/github.com/matzehuels/treereplay/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/treereplay/pkg/observability
// [httputil]: https://pkg.go.dev/github.com/matzehuels/treereplay/pkg/httputil
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/treereplay/pkg/pipeline
// [integrations]: https://pkg.go.dev/github.com/matzehuels/treereplay/pkg/integrations
package pkg
