package repair

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matzehuels/docsmith/pkg/buildinfo"
	"github.com/matzehuels/docsmith/pkg/errors"
	"github.com/matzehuels/docsmith/pkg/httputil"
	"github.com/matzehuels/docsmith/pkg/observability"
)

// DefaultTimeout bounds one repair request.
const DefaultTimeout = 60 * time.Second

// DefaultEndpoint is the generation service used when none is configured.
const DefaultEndpoint = "http://localhost:8000/api/generate"

// GenerateRequest is the JSON body sent to the generation endpoint.
type GenerateRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"apiKey"`
	Prompt   string `json:"prompt"`
}

// generateResponse lists the fields a generation response may carry text
// in, in order of preference.
type generateResponse struct {
	TextContent   string `json:"text_content"`
	Documentation string `json:"documentation"`
	VisualContent string `json:"visual_content"`
}

func (r generateResponse) text() string {
	for _, s := range []string{r.TextContent, r.Documentation, r.VisualContent} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// Generator sends a prompt to a text generation service.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// HTTPGenerator posts requests to a generation endpoint. Requests are sent
// once and never retried.
type HTTPGenerator struct {
	Endpoint string
	HTTP     *http.Client
}

// NewHTTPGenerator returns a generator for endpoint with the given request
// timeout. Zero values take DefaultEndpoint and DefaultTimeout.
func NewHTTPGenerator(endpoint string, timeout time.Duration) *HTTPGenerator {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPGenerator{Endpoint: endpoint, HTTP: httputil.NewClient(timeout)}
}

// Generate returns the first non-empty text field of the response, or ""
// when the response has none. Transport failures, non-2xx responses and
// undecodable bodies are REPAIR_FAILED errors.
func (g *HTTPGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "encode repair request")
	}

	host, path := g.Endpoint, ""
	if u, err := url.Parse(g.Endpoint); err == nil {
		host, path = u.Host, u.Path
	}
	hooks := observability.HTTP()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "build repair request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", buildinfo.UserAgent())

	hooks.OnRequest(ctx, http.MethodPost, host, path)
	start := time.Now()
	resp, err := g.HTTP.Do(httpReq)
	if err != nil {
		hooks.OnError(ctx, http.MethodPost, host, path, err)
		code := errors.ErrCodeRepairFailed
		var netErr interface{ Timeout() bool }
		if stderrors.As(err, &netErr) && netErr.Timeout() {
			code = errors.ErrCodeTimeout
		}
		return "", errors.Wrap(code, fmt.Errorf("%w: %v", httputil.ErrNetwork, err), "repair request")
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, http.MethodPost, host, path, resp.StatusCode, time.Since(start))

	if err := httputil.CheckStatus(resp.StatusCode); err != nil {
		return "", errors.Wrap(errors.ErrCodeRepairFailed, err, "repair request")
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxBodySize))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeRepairFailed, err, "read repair response")
	}
	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", errors.Wrap(errors.ErrCodeRepairFailed, err, "decode repair response")
	}
	return out.text(), nil
}

var _ Generator = (*HTTPGenerator)(nil)
