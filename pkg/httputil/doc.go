// Package httputil provides the HTTP plumbing shared by docsmith's network
// clients: remote image fetching for PDF export and the repair client.
//
// # Retry
//
// [Retry] re-runs an operation with exponential backoff, but only for errors
// wrapped in [RetryableError]:
//
//   - Network errors
//   - 5xx server errors
//   - 429 rate limit responses
//
// Everything else (4xx, decode failures) is returned immediately.
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    return doRequest()
//	})
//
// # Fetching
//
// [Fetch] performs a GET with retry and returns the body, capped at
// [MaxBodySize]. [CheckStatus] classifies a status code the same way for
// callers that build their own requests.
package httputil
