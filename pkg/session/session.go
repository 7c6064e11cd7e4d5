// Package session provides session management for logged-in teachers.
//
// A session binds a dashboard login to the classroom API cookie obtained
// at login, so later requests can act on the teacher's behalf. Backends:
//   - [MemoryStore]: in-process storage for a single server instance
//   - [RedisStore]: shared storage for multi-instance deployments
//   - [FileStore]: JSON files for the CLI
//
// # Usage
//
//	sess := session.New(cookie, teacher, session.DefaultTTL)
//	if err := store.Set(ctx, sess); err != nil {
//	    return err
//	}
//
//	sess, err := store.Get(ctx, id)
//	if err != nil {
//	    return err
//	}
//	if sess == nil {
//	    // not found or expired
//	}
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/treereplay/pkg/integrations/classroom"
)

// Sentinel errors for session operations.
var (
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrExpired is returned when a session has exceeded its TTL.
	ErrExpired = errors.New("expired")
)

// Session stores a teacher's login.
type Session struct {
	ID        string             `json:"id"`
	Cookie    string             `json:"cookie"` // classroom API session cookie
	Teacher   *classroom.Teacher `json:"teacher"`
	ExpiresAt time.Time          `json:"expires_at"`
	CreatedAt time.Time          `json:"created_at"`
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// TTL returns the time left before the session expires.
func (s *Session) TTL() time.Duration {
	return max(0, time.Until(s.ExpiresAt))
}

// UserID returns a storage-compatible user identifier of the form
// "teacher:{id}".
func (s *Session) UserID() string {
	if s == nil || s.Teacher == nil {
		return ""
	}
	return fmt.Sprintf("teacher:%d", s.Teacher.ID)
}

// Store is the interface for session storage backends.
type Store interface {
	// Get retrieves a session by ID.
	// Returns nil, nil if the session doesn't exist or has expired.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Set stores a session.
	Set(ctx context.Context, session *Session) error

	// Delete removes a session.
	Delete(ctx context.Context, sessionID string) error

	// Cleanup removes expired sessions (may be a no-op for Redis).
	Cleanup(ctx context.Context) error

	Close() error
}

// DefaultTTL is the default session duration.
const DefaultTTL = 24 * time.Hour

// GenerateID creates a random session ID.
func GenerateID() string {
	return uuid.NewString()
}

// New creates a session for the teacher holding the classroom cookie.
func New(cookie string, teacher *classroom.Teacher, ttl time.Duration) *Session {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	return &Session{
		ID:        GenerateID(),
		Cookie:    cookie,
		Teacher:   teacher,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// Open returns the store for backend: "memory", "file" or "redis".
func Open(ctx context.Context, backend string, cfg Config) (Store, error) {
	switch backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(cfg.Dir)
	case "redis":
		return NewRedisStore(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown session backend %q", backend)
	}
}

// Config carries backend-specific settings for [Open].
type Config struct {
	Dir   string
	Redis RedisConfig
}
