package server

import (
	"context"
	"crypto/rand"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/matzehuels/treereplay/pkg/errors"
	"github.com/matzehuels/treereplay/pkg/integrations/classroom"
	"github.com/matzehuels/treereplay/pkg/session"
)

// CookieName is the browser cookie holding the signed session token.
const CookieName = "treereplay_session"

const tokenIssuer = "treereplay"

var (
	errInvalidToken = stderrors.New("invalid token")
	errTokenExpired = stderrors.New("token expired")
)

// claims identify a dashboard session.
type claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	TeacherID int64  `json:"tid,omitempty"`
}

type tokenService struct {
	key []byte
	ttl time.Duration
}

func newTokenService(key []byte, ttl time.Duration) (*tokenService, error) {
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
	}
	return &tokenService{key: key, ttl: ttl}, nil
}

func (t *tokenService) issue(sess *session.Session) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   sess.UserID(),
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
		SessionID: sess.ID,
	}
	if sess.Teacher != nil {
		c.TeacherID = sess.Teacher.ID
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.key)
}

func (t *tokenService) parse(token string) (*claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return t.key, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errTokenExpired
		}
		return nil, errInvalidToken
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || c.SessionID == "" {
		return nil, errInvalidToken
	}
	return c, nil
}

// =============================================================================
// Context
// =============================================================================

type ctxKey int

const (
	sessionKey ctxKey = iota
	requestIDKey
)

func sessionFromContext(ctx context.Context) *session.Session {
	if s, ok := ctx.Value(sessionKey).(*session.Session); ok {
		return s
	}
	return nil
}

// classroomFor returns a classroom client acting as the request's teacher.
func (s *Server) classroomFor(r *http.Request) *classroom.Client {
	sess := sessionFromContext(r.Context())
	if sess == nil {
		return s.cfg.Classroom
	}
	return s.cfg.Classroom.WithSession(sess.Cookie)
}

// requireSession resolves the session cookie and rejects anonymous requests.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err != nil || cookie.Value == "" {
			s.writeError(w, r, errors.New(errors.ErrCodeUnauthorized, "login required"))
			return
		}
		c, err := s.tokens.parse(cookie.Value)
		if err != nil {
			code := errors.ErrCodeUnauthorized
			if stderrors.Is(err, errTokenExpired) {
				code = errors.ErrCodeSessionExpired
			}
			s.writeError(w, r, errors.Wrap(code, err, "invalid session"))
			return
		}
		sess, err := s.cfg.Sessions.Get(r.Context(), c.SessionID)
		if err != nil {
			s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "load session"))
			return
		}
		if sess == nil {
			s.writeError(w, r, errors.New(errors.ErrCodeSessionExpired, "session expired"))
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// =============================================================================
// Handlers
// =============================================================================

type loginRequest struct {
	Number string `json:"number"`
}

type meResponse struct {
	Teacher   *classroom.Teacher `json:"teacher"`
	ExpiresAt time.Time          `json:"expiresAt"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid request body"))
		return
	}
	if err := errors.ValidateText("number", req.Number); err != nil {
		s.writeError(w, r, err)
		return
	}

	cs, err := s.cfg.Classroom.Login(r.Context(), req.Number)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	teacher := cs.Teacher
	sess := session.New(cs.Cookie, &teacher, s.cfg.SessionTTL)
	if err := s.cfg.Sessions.Set(r.Context(), sess); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "store session"))
		return
	}
	token, err := s.tokens.issue(sess)
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "sign session"))
		return
	}
	s.setSessionCookie(w, r, token, sess.ExpiresAt)
	s.logger.Info("teacher logged in", "teacher", teacher.ID, "session", sess.ID)
	writeJSON(w, http.StatusOK, meResponse{Teacher: sess.Teacher, ExpiresAt: sess.ExpiresAt})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if err := s.classroomFor(r).Logout(r.Context()); err != nil {
		s.logger.Warn("classroom logout failed", "session", sess.ID, "error", err)
	}
	if err := s.cfg.Sessions.Delete(r.Context(), sess.ID); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "delete session"))
		return
	}
	s.setSessionCookie(w, r, "", time.Unix(0, 0))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, meResponse{Teacher: sess.Teacher, ExpiresAt: sess.ExpiresAt})
}
