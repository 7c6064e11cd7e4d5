package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/treereplay/pkg/errors"
)

func response(code int, body string, header http.Header) *http.Response {
	rec := httptest.NewRecorder()
	for k, v := range header {
		rec.Header()[k] = v
	}
	rec.WriteHeader(code)
	rec.WriteString(body)
	resp := rec.Result()
	resp.Request = httptest.NewRequest(http.MethodGet, "/teacher/students", nil)
	return resp
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		code      int
		wantCode  errors.Code
		retryable bool
	}{
		{http.StatusOK, "", false},
		{http.StatusCreated, "", false},
		{http.StatusUnauthorized, errors.ErrCodeUnauthorized, false},
		{http.StatusForbidden, errors.ErrCodeUnauthorized, false},
		{http.StatusNotFound, errors.ErrCodeNotFound, false},
		{http.StatusBadRequest, errors.ErrCodeInvalidInput, false},
		{http.StatusTooManyRequests, errors.ErrCodeRateLimited, true},
		{http.StatusBadGateway, errors.ErrCodeNetwork, true},
		{http.StatusTeapot, errors.ErrCodeNetwork, false},
	}
	for _, tt := range tests {
		err := CheckStatus(response(tt.code, "boom", nil))
		if tt.wantCode == "" {
			if err != nil {
				t.Errorf("%d: err = %v, want nil", tt.code, err)
			}
			continue
		}
		if got := errors.GetCode(err); got != tt.wantCode {
			t.Errorf("%d: code = %q, want %q (%v)", tt.code, got, tt.wantCode, err)
		}
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%d: retryable = %v, want %v", tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestCheckStatusQuotesBody(t *testing.T) {
	err := CheckStatus(response(http.StatusBadRequest, "topic is required", nil))
	if !strings.Contains(err.Error(), "topic is required") {
		t.Errorf("error %q does not quote body", err)
	}
}

func TestCheckStatusRetryAfter(t *testing.T) {
	err := CheckStatus(response(http.StatusTooManyRequests, "", http.Header{"Retry-After": {"7"}}))
	re, ok := err.(*RetryableError)
	if !ok || re.After != 7*time.Second {
		t.Errorf("err = %#v, want RetryableError with After=7s", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := ParseRetryAfter("120"); got != 2*time.Minute {
		t.Errorf("seconds form = %v", got)
	}
	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	if got := ParseRetryAfter(future); got < 59*time.Minute {
		t.Errorf("date form = %v", got)
	}
	for _, v := range []string{"", "soon", "-3", "Mon, 01 Jan 2001 00:00:00 GMT"} {
		if got := ParseRetryAfter(v); got != 0 {
			t.Errorf("ParseRetryAfter(%q) = %v, want 0", v, got)
		}
	}
}
