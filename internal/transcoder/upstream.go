package transcoder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"preface-cli/internal/config"
)

// Upstream opens one chunked generation stream. A non-success status is
// returned as an error and no body is handed back.
type Upstream interface {
	Open(ctx context.Context, openid, content string) (io.ReadCloser, error)
}

const userAgent = "Mozilla/5.0 (compatible; PrefaceAI/1.0)"

// FormUpstream talks to the botPromptStream endpoint with a form body.
type FormUpstream struct {
	baseURL    string
	httpClient *http.Client
}

func NewFormUpstream(baseURL string, httpClient *http.Client) *FormUpstream {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &FormUpstream{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (u *FormUpstream) Open(ctx context.Context, openid, content string) (io.ReadCloser, error) {
	form := url.Values{}
	form.Set("openid", openid)
	form.Set("content", content)

	req, err := http.NewRequestWithContext(ctx, "POST", u.baseURL+"/botPromptStream", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("User-Agent", userAgent)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w with status %d", ErrUpstreamStatus, resp.StatusCode)
	}
	return resp.Body, nil
}

// NewUpstream picks the provider named in cfg.
func NewUpstream(cfg config.UpstreamConfig) (Upstream, error) {
	switch cfg.Provider {
	case config.ProviderDuyue:
		return NewFormUpstream(cfg.BaseURL, &http.Client{Timeout: cfg.Timeout}), nil
	case config.ProviderOpenAI:
		return NewOpenAIUpstream(cfg), nil
	default:
		return nil, fmt.Errorf("unknown upstream provider %q", cfg.Provider)
	}
}
