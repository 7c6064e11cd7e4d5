package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/matzehuels/treereplay/pkg/cache"
	"github.com/matzehuels/treereplay/pkg/errors"
	"github.com/matzehuels/treereplay/pkg/httputil"
	"github.com/matzehuels/treereplay/pkg/observability"
)

// Client provides shared HTTP functionality for the service clients.
// It is safe for concurrent use.
type Client struct {
	http    *http.Client
	cache   cache.Cache
	prefix  string
	ttl     time.Duration
	limiter *rate.Limiter

	mu      sync.RWMutex
	headers map[string]string
}

// NewClient creates a Client. Cached responses are stored in c under keys
// starting with prefix and expire after ttl. A nil cache disables caching.
// headers are sent with every request.
func NewClient(c cache.Cache, prefix string, ttl time.Duration, headers map[string]string) *Client {
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Client{
		http:    NewHTTPClient(),
		cache:   c,
		prefix:  prefix,
		ttl:     ttl,
		limiter: rate.NewLimiter(rate.Inf, 0),
		headers: headers,
	}
}

// SetRateLimit limits outgoing requests to rps per second with the given
// burst. A non-positive rps removes the limit. It must be called before the
// client is shared.
func (c *Client) SetRateLimit(rps float64, burst int) {
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(h *http.Client) { c.http = h }

// SetHeader sets a default header; an empty value removes it.
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.headers == nil {
		c.headers = make(map[string]string)
	}
	if value == "" {
		delete(c.headers, key)
		return
	}
	c.headers[key] = value
}

// Header returns a default header value.
func (c *Client) Header(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.headers[key]
}

// Cached loads v from the cache under key, or runs fetch (with retry) to
// populate v and stores the result. If refresh is true the cache is not
// read.
func (c *Client) Cached(ctx context.Context, key string, refresh bool, v any, fetch func() error) error {
	full := c.prefix + key
	kind := cache.KeyType(full)
	if !refresh {
		if data, hit, err := c.cache.Get(ctx, full); err == nil && hit {
			if json.Unmarshal(data, v) == nil {
				observability.Cache().OnCacheHit(ctx, kind)
				return nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, kind)
	}
	if err := httputil.RetryWithBackoff(ctx, fetch); err != nil {
		return err
	}
	if data, err := json.Marshal(v); err == nil {
		if c.cache.Set(ctx, full, data, c.ttl) == nil {
			observability.Cache().OnCacheSet(ctx, kind, len(data))
		}
	}
	return nil
}

// Invalidate removes a cached entry.
func (c *Client) Invalidate(ctx context.Context, key string) error {
	return c.cache.Delete(ctx, c.prefix+key)
}

// Get performs a GET request and JSON-decodes the response into v.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	return c.GetWithHeaders(ctx, url, nil, v)
}

// GetWithHeaders performs a GET with extra headers, which override the
// defaults for the same key. Transient failures are retried.
func (c *Client) GetWithHeaders(ctx context.Context, url string, headers map[string]string, v any) error {
	return httputil.RetryWithBackoff(ctx, func() error {
		return c.Do(ctx, http.MethodGet, url, nil, headers, v)
	})
}

// GetText performs a GET request and returns the body as a string.
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	var text string
	_, err := c.send(ctx, http.MethodGet, url, nil, nil, func(body io.Reader) error {
		data, err := io.ReadAll(body)
		text = string(data)
		return err
	})
	return text, err
}

// Post sends body as JSON and decodes the response into v. Posts are not
// retried.
func (c *Client) Post(ctx context.Context, url string, body, v any) error {
	return c.Do(ctx, http.MethodPost, url, body, nil, v)
}

// Do sends one request. body, if non-nil, is JSON-encoded; v, if non-nil,
// receives the decoded response.
func (c *Client) Do(ctx context.Context, method, url string, body any, headers map[string]string, v any) error {
	_, err := c.Exchange(ctx, method, url, body, headers, v)
	return err
}

// Exchange is [Client.Do] but also returns the response, whose body has
// already been consumed and closed. Callers use it to read headers and
// cookies.
func (c *Client) Exchange(ctx context.Context, method, url string, body any, headers map[string]string, v any) (*http.Response, error) {
	return c.send(ctx, method, url, body, headers, func(r io.Reader) error {
		if v == nil {
			_, err := io.Copy(io.Discard, r)
			return err
		}
		if err := json.NewDecoder(r).Decode(v); err != nil && err != io.EOF {
			return errors.Wrap(errors.ErrCodeNetwork, err, "decode %s response", url)
		}
		return nil
	})
}

func (c *Client) send(ctx context.Context, method, url string, body any, headers map[string]string, read func(io.Reader) error) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	c.mu.RUnlock()
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, method, req.URL.Host, req.URL.Path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, method, req.URL.Host, req.URL.Path, err)
		return nil, &httputil.RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, fmt.Errorf("%w: %v", ErrNetwork, err), "%s %s", method, req.URL.Path)}
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp); err != nil {
		return resp, err
	}
	return resp, read(resp.Body)
}

// checkStatus maps a response status to an error, keeping the sentinel
// errors of this package in the chain.
func checkStatus(resp *http.Response) error {
	err := httputil.CheckStatus(resp)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errors.ErrCodeNotFound):
		return errors.Wrap(errors.ErrCodeNotFound, ErrNotFound, "%s", errors.UserMessage(err))
	case errors.Is(err, errors.ErrCodeNetwork):
		var re *httputil.RetryableError
		if stderrors.As(err, &re) {
			return &httputil.RetryableError{Err: fmt.Errorf("%w: %w", ErrNetwork, re.Err), After: re.After}
		}
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	default:
		return err
	}
}
