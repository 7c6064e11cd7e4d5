// Package observability provides hooks for metrics, tracing, and logging.
//
// Libraries emit events through the registered hooks; by default every hook
// is a no-op. Binaries register their own implementations at startup, which
// keeps backends (Prometheus, OpenTelemetry, plain logging) out of the core
// packages.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetReplayHooks(&myReplayHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	start := time.Now()
//	acts, err := timeline.Extract(root)
//	observability.Replay().OnExtract(ctx, len(acts), time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Replay Hooks
// =============================================================================

// ReplayHooks receives events from the replay engine and render pipeline.
type ReplayHooks interface {
	// OnExtract records activity extraction from a snapshot.
	OnExtract(ctx context.Context, activities int, duration time.Duration, err error)

	// OnSettle records a completed layout settle loop.
	OnSettle(ctx context.Context, nodes, passes int, stable bool, duration time.Duration)

	// OnFrameDropped records a frame discarded because a newer one exists.
	OnFrameDropped(ctx context.Context, version, latest uint64)

	// OnRender records artifact rendering.
	OnRender(ctx context.Context, formats []string, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopReplayHooks is a no-op implementation of ReplayHooks.
type NoopReplayHooks struct{}

func (NoopReplayHooks) OnExtract(context.Context, int, time.Duration, error)     {}
func (NoopReplayHooks) OnSettle(context.Context, int, int, bool, time.Duration)  {}
func (NoopReplayHooks) OnFrameDropped(context.Context, uint64, uint64)           {}
func (NoopReplayHooks) OnRender(context.Context, []string, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	replayHooks ReplayHooks = NoopReplayHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	httpHooks   HTTPHooks   = NoopHTTPHooks{}
	hooksMu     sync.RWMutex
)

// SetReplayHooks registers custom replay hooks. Nil is ignored.
func SetReplayHooks(h ReplayHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		replayHooks = h
	}
}

// SetCacheHooks registers custom cache hooks. Nil is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks. Nil is ignored.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Replay returns the registered replay hooks.
func Replay() ReplayHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return replayHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	replayHooks = NoopReplayHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
