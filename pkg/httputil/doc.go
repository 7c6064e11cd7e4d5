// Package httputil provides retry and status handling shared by the
// outbound HTTP clients (classroom API, chat history).
//
// # Retry
//
// [Retry] re-runs an operation while it fails with a [RetryableError],
// doubling the delay after each attempt:
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return &httputil.RetryableError{Err: err}
//	    }
//	    defer resp.Body.Close()
//	    return httputil.CheckStatus(resp)
//	})
//
// A RetryableError may carry a minimum wait, taken from a Retry-After
// header on 429 and 503 responses.
//
// # Status mapping
//
// [CheckStatus] turns non-2xx responses into errors: 5xx and 429 are
// retryable, 401 and 403 map to UNAUTHORIZED, 404 to NOT_FOUND.
package httputil
