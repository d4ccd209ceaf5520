package transcoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"preface-cli/internal/logger"
)

// Collaborator relays the history and favorites endpoints of the
// generation service. Success bodies are returned verbatim.
type Collaborator struct {
	baseURL    string
	httpClient *http.Client
}

func NewCollaborator(baseURL string, httpClient *http.Client) *Collaborator {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Collaborator{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func (c *Collaborator) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Debugf("collaborator: %s %s -> %d: %s", method, path, resp.StatusCode, string(data))
		return nil, fmt.Errorf("%w with status %d", ErrUpstreamStatus, resp.StatusCode)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("upstream returned invalid JSON")
	}
	return data, nil
}

func (c *Collaborator) Favorites(ctx context.Context, openid, page string) ([]byte, error) {
	q := url.Values{}
	q.Set("openid", openid)
	if page != "" {
		q.Set("page", page)
	}
	return c.do(ctx, "GET", "/my_favorites?"+q.Encode(), nil)
}

func (c *Collaborator) History(ctx context.Context, openid, page string) ([]byte, error) {
	if page == "" || page == "0" {
		page = "1"
	}
	q := url.Values{}
	q.Set("openid", openid)
	q.Set("page", page)
	return c.do(ctx, "GET", "/history?"+q.Encode(), nil)
}

// SetFavorite calls favorite or unfavorite for promptID, which may be a JSON
// number or string. Streamed completion ids ("chatcmpl-...") are not known to
// the service, so they are swapped for the newest history record's id.
func (c *Collaborator) SetFavorite(ctx context.Context, openid string, promptID json.RawMessage, action string) ([]byte, error) {
	var endpoint string
	switch action {
	case "add":
		endpoint = "/favorite"
	case "remove":
		endpoint = "/unfavorite"
	default:
		return nil, fmt.Errorf("%w: action must be add or remove", ErrMissingParams)
	}

	promptID = c.resolvePromptID(ctx, openid, promptID)
	body := struct {
		OpenID   string          `json:"openid"`
		PromptID json.RawMessage `json:"prompt_id"`
	}{openid, promptID}
	return c.do(ctx, "POST", endpoint, body)
}

func (c *Collaborator) resolvePromptID(ctx context.Context, openid string, promptID json.RawMessage) json.RawMessage {
	var s string
	if json.Unmarshal(promptID, &s) != nil || !strings.Contains(s, "chatcmpl-") {
		return promptID
	}

	data, err := c.History(ctx, openid, "1")
	if err != nil {
		logger.Warnf("collaborator: resolving %s: %v", s, err)
		return promptID
	}
	var history struct {
		Code int `json:"code"`
		Data []struct {
			PromptID json.RawMessage `json:"prompt_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &history); err != nil || history.Code != 0 || len(history.Data) == 0 {
		return promptID
	}
	if len(history.Data[0].PromptID) == 0 {
		return promptID
	}
	logger.Debugf("collaborator: resolved %s to %s", s, string(history.Data[0].PromptID))
	return history.Data[0].PromptID
}
