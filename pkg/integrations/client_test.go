package integrations

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matzehuels/treereplay/pkg/cache"
	"github.com/matzehuels/treereplay/pkg/errors"
	"github.com/matzehuels/treereplay/pkg/httputil"
)

func testClient(t *testing.T, server *httptest.Server, headers map[string]string) *Client {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	client := NewClient(c, "test:", time.Hour, headers)
	client.http = server.Client()
	return client
}

func TestNewClient(t *testing.T) {
	c, _ := cache.NewFileCache(t.TempDir())
	defer c.Close()

	headers := map[string]string{"Authorization": "Bearer token"}
	client := NewClient(c, "test:", time.Hour, headers)

	if client.http == nil {
		t.Error("NewClient() http client is nil")
	}
	if client.cache != c {
		t.Error("NewClient() cache not set correctly")
	}
	if client.Header("Authorization") != "Bearer token" {
		t.Error("NewClient() headers not set correctly")
	}
}

func TestNewClientNilCache(t *testing.T) {
	client := NewClient(nil, "test:", time.Hour, nil)
	if client.cache == nil {
		t.Fatal("NewClient(nil) should fall back to a null cache")
	}
	if client.headers != nil {
		t.Error("NewClient() should allow nil headers")
	}
}

func TestClientGet(t *testing.T) {
	type response struct {
		Message string `json:"message"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q", got)
		}
		json.NewEncoder(w).Encode(response{Message: "hello"})
	}))
	defer server.Close()

	client := testClient(t, server, nil)

	var resp response
	if err := client.Get(context.Background(), server.URL, &resp); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if resp.Message != "hello" {
		t.Errorf("Get() message = %q, want %q", resp.Message, "hello")
	}
}

func TestClientGetWithHeaders(t *testing.T) {
	var auth, extra string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		extra = r.Header.Get("X-Extra")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := testClient(t, server, map[string]string{"Authorization": "default", "X-Extra": "a"})

	var v map[string]any
	err := client.GetWithHeaders(context.Background(), server.URL, map[string]string{"Authorization": "override"}, &v)
	if err != nil {
		t.Fatalf("GetWithHeaders() error: %v", err)
	}
	if auth != "override" {
		t.Errorf("Authorization = %q, want override", auth)
	}
	if extra != "a" {
		t.Errorf("X-Extra = %q, want a", extra)
	}
}

func TestClientSetHeader(t *testing.T) {
	client := NewClient(nil, "test:", time.Hour, nil)
	client.SetHeader("apikey", "k")
	if got := client.Header("apikey"); got != "k" {
		t.Fatalf("Header = %q", got)
	}
	client.SetHeader("apikey", "")
	if got := client.Header("apikey"); got != "" {
		t.Fatalf("Header after clear = %q", got)
	}
}

func TestClientGetText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain text"))
	}))
	defer server.Close()

	client := testClient(t, server, nil)
	text, err := client.GetText(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("GetText() error: %v", err)
	}
	if text != "plain text" {
		t.Errorf("GetText() = %q", text)
	}
}

func TestClientPost(t *testing.T) {
	type req struct {
		Number string `json:"number"`
	}
	var got req
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		contentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer server.Close()

	client := testClient(t, server, nil)
	var resp struct {
		Status string `json:"status"`
	}
	if err := client.Post(context.Background(), server.URL, req{Number: "0001"}, &resp); err != nil {
		t.Fatalf("Post() error: %v", err)
	}
	if got.Number != "0001" {
		t.Errorf("server got number %q", got.Number)
	}
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q", contentType)
	}
	if resp.Status != "success" {
		t.Errorf("status = %q", resp.Status)
	}
}

func TestClientExchangeCookies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := testClient(t, server, nil)
	resp, err := client.Exchange(context.Background(), http.MethodPost, server.URL, nil, nil, nil)
	if err != nil {
		t.Fatalf("Exchange() error: %v", err)
	}
	cookies := resp.Cookies()
	if len(cookies) != 1 || cookies[0].Value != "abc" {
		t.Errorf("cookies = %v", cookies)
	}
}

func TestClientNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	client := testClient(t, server, nil)
	var v any
	err := client.Get(context.Background(), server.URL, &v)
	if !stderrors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND code, got %q", errors.GetCode(err))
	}
}

func TestClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := testClient(t, server, nil)
	// Do is not retried, so the test does not wait on backoff.
	err := client.Do(context.Background(), http.MethodGet, server.URL, nil, nil, nil)
	if !httputil.IsRetryable(err) {
		t.Errorf("expected retryable error, got %v", err)
	}
	if !stderrors.Is(err, ErrNetwork) {
		t.Errorf("expected ErrNetwork, got %v", err)
	}
}

func TestClientUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := testClient(t, server, nil)
	err := client.Get(context.Background(), server.URL, nil)
	if !errors.Is(err, errors.ErrCodeUnauthorized) {
		t.Errorf("expected UNAUTHORIZED, got %v", err)
	}
}

func TestClientCached(t *testing.T) {
	type payload struct {
		N int `json:"n"`
	}
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()
	client := testClient(t, server, nil)
	ctx := context.Background()

	calls := 0
	fetch := func(v *payload) func() error {
		return func() error {
			calls++
			v.N = calls
			return nil
		}
	}

	var first payload
	if err := client.Cached(ctx, "key", false, &first, fetch(&first)); err != nil {
		t.Fatalf("Cached() error: %v", err)
	}
	var second payload
	if err := client.Cached(ctx, "key", false, &second, fetch(&second)); err != nil {
		t.Fatalf("Cached() error: %v", err)
	}
	if calls != 1 || second.N != 1 {
		t.Errorf("second call should be served from cache: calls=%d n=%d", calls, second.N)
	}

	var third payload
	if err := client.Cached(ctx, "key", true, &third, fetch(&third)); err != nil {
		t.Fatalf("Cached(refresh) error: %v", err)
	}
	if calls != 2 || third.N != 2 {
		t.Errorf("refresh should bypass cache: calls=%d n=%d", calls, third.N)
	}

	if err := client.Invalidate(ctx, "key"); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	var fourth payload
	client.Cached(ctx, "key", false, &fourth, fetch(&fourth))
	if calls != 3 {
		t.Errorf("invalidated key should refetch: calls=%d", calls)
	}
}

func TestClientCachedError(t *testing.T) {
	client := NewClient(nil, "test:", time.Hour, nil)
	want := stderrors.New("boom")
	var v int
	err := client.Cached(context.Background(), "key", false, &v, func() error { return want })
	if !stderrors.Is(err, want) {
		t.Errorf("Cached() error = %v, want %v", err, want)
	}
}

func TestClientRateLimitCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := testClient(t, server, nil)
	client.SetRateLimit(0.001, 1)

	ctx := context.Background()
	if err := client.Do(ctx, http.MethodGet, server.URL, nil, nil, nil); err != nil {
		t.Fatalf("first request should use the burst: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := client.Do(ctx, http.MethodGet, server.URL, nil, nil, nil); err == nil {
		t.Error("second request should be held by the limiter")
	}
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base string
		segs []string
		want string
	}{
		{"http://x/api", []string{"teacher", "students"}, "http://x/api/teacher/students"},
		{"http://x/api/", []string{"a b"}, "http://x/api/a%20b"},
	}
	for _, tt := range tests {
		if got := JoinURL(tt.base, tt.segs...); got != tt.want {
			t.Errorf("JoinURL(%q, %v) = %q, want %q", tt.base, tt.segs, got, tt.want)
		}
	}
}
