package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matzehuels/docsmith/pkg/buildinfo"
)

// MaxBodySize caps how much of a response body [Fetch] reads.
const MaxBodySize = 32 << 20

// DefaultTimeout bounds a single request made with the default client.
const DefaultTimeout = 30 * time.Second

// Sentinel errors for HTTP failures. Use errors.Is to check them.
var (
	ErrNotFound = errors.New("not found")
	ErrNetwork  = errors.New("network error")
	ErrTooLarge = errors.New("response too large")
)

// NewClient returns an http.Client with the given timeout, or
// [DefaultTimeout] when timeout is zero.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// Fetch GETs url and returns the response body. Transport failures, 5xx
// and 429 responses are retried with [DefaultBackoff], honoring a
// Retry-After header given in seconds. A nil client
// uses [NewClient] with the default timeout.
func Fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = NewClient(0)
	}

	var body []byte
	err := RetryWithBackoff(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", buildinfo.UserAgent())
		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
		}
		defer resp.Body.Close()

		if err := CheckStatus(resp.StatusCode); err != nil {
			var re *RetryableError
			if errors.As(err, &re) {
				re.After = retryAfter(resp.Header)
			}
			return err
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
		if err != nil {
			return Retryable(fmt.Errorf("%w: read body: %v", ErrNetwork, err))
		}
		if len(data) > MaxBodySize {
			return fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, url, MaxBodySize)
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// CheckStatus maps an HTTP status code to nil (2xx), [ErrNotFound] (404),
// a retryable [ErrNetwork] (5xx, 429) or a plain [ErrNetwork].
func CheckStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500, code == http.StatusTooManyRequests:
		return Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
