// Package cache provides byte-oriented caching for snapshots, frames and
// rendered artifacts.
//
// # Backends
//
//   - [FileCache]: one file per entry under a directory (CLI default)
//   - [RedisCache]: shared cache for multi-instance dashboard deployments
//   - [MongoCache]: durable artifact storage with a TTL index
//   - [NullCache]: caching disabled
//
// [Open] selects a backend from a [Config].
//
// # Keys
//
// Keys are produced by a [Keyer] so that every component hashes the same
// inputs the same way:
//
//	keyer := cache.NewDefaultKeyer()
//	key := keyer.FrameKey(snapshotHash, cache.FrameKeyOpts{Cursor: 3})
//	data, hit, err := c.Get(ctx, key)
package cache

import (
	"context"
	"strings"
	"time"
)

// Cache stores opaque byte values with an optional time-to-live.
type Cache interface {
	// Get returns the value for key. A miss is reported as hit=false with a
	// nil error.
	Get(ctx context.Context, key string) (data []byte, hit bool, err error)

	// Set stores data under key. A ttl of zero means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Default TTLs per entry kind.
const (
	TTLHTTP     = 10 * time.Minute
	TTLSnapshot = 5 * time.Minute
	TTLFrame    = 24 * time.Hour
	TTLArtifact = 7 * 24 * time.Hour
)

// =============================================================================
// Keyer
// =============================================================================

// FrameKeyOpts are the inputs besides the snapshot that determine a frame.
type FrameKeyOpts struct {
	Cursor    int `json:"cursor"`
	MaxPasses int `json:"max_passes"`
}

// ArtifactKeyOpts are the inputs besides the frame that determine a
// rendered artifact.
type ArtifactKeyOpts struct {
	Format   string  `json:"format"`
	Title    string  `json:"title,omitempty"`
	Detailed bool    `json:"detailed,omitempty"`
	Scale    float64 `json:"scale,omitempty"`
}

// Keyer builds cache keys.
type Keyer interface {
	// HTTPKey keys a raw HTTP response.
	HTTPKey(namespace, key string) string

	// SnapshotKey keys a student's tree log for an assignment.
	SnapshotKey(assignmentID, studentID string) string

	// FrameKey keys a laid out frame of a snapshot.
	FrameKey(snapshotHash string, opts FrameKeyOpts) string

	// ArtifactKey keys a rendered frame.
	ArtifactKey(frameHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer hashes key inputs with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}

func (DefaultKeyer) SnapshotKey(assignmentID, studentID string) string {
	return hashKey("snapshot", assignmentID, studentID)
}

func (DefaultKeyer) FrameKey(snapshotHash string, opts FrameKeyOpts) string {
	return hashKey("frame", snapshotHash, opts)
}

func (DefaultKeyer) ArtifactKey(frameHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", frameHash, opts)
}

// KeyType returns the kind prefix of a key ("frame", "artifact", ...),
// ignoring any scope prefix added by [ScopedKeyer].
func KeyType(key string) string {
	for _, t := range []string{"snapshot", "frame", "artifact", "http"} {
		if strings.HasPrefix(key, t+":") || strings.Contains(key, ":"+t+":") {
			return t
		}
	}
	return "unknown"
}

var _ Keyer = DefaultKeyer{}
