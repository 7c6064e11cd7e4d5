package httputil

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/matzehuels/treereplay/pkg/errors"
)

// maxErrorBody bounds how much of an error response is quoted.
const maxErrorBody = 512

// CheckStatus returns nil for 2xx responses and a coded error otherwise.
// It reads (but does not close) up to a small prefix of the body to
// include the server's message.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	msg := readMessage(resp.Body)
	code := resp.StatusCode
	label := requestLabel(resp)

	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return errors.New(errors.ErrCodeUnauthorized, "%s: %d %s", label, code, msg)
	case code == http.StatusNotFound:
		return errors.New(errors.ErrCodeNotFound, "%s: not found", label)
	case code == http.StatusTooManyRequests:
		after := ParseRetryAfter(resp.Header.Get("Retry-After"))
		return &RetryableError{
			Err:   &errors.RateLimitedError{RetryAfter: int(after / time.Second)},
			After: after,
		}
	case code >= 500:
		return &RetryableError{
			Err:   errors.New(errors.ErrCodeNetwork, "%s: %d %s", label, code, msg),
			After: ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return errors.New(errors.ErrCodeInvalidInput, "%s", orDefault(msg, fmt.Sprintf("status %d", code)))
	default:
		return errors.New(errors.ErrCodeNetwork, "%s: unexpected status %d", label, code)
	}
}

// ParseRetryAfter parses a Retry-After header given in seconds or as an
// HTTP date. Unparseable or past values yield zero.
func ParseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func requestLabel(resp *http.Response) string {
	if resp.Request == nil || resp.Request.URL == nil {
		return "request"
	}
	return resp.Request.Method + " " + resp.Request.URL.Path
}

func readMessage(r io.Reader) string {
	if r == nil {
		return ""
	}
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(b))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
