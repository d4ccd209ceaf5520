package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"preface-cli/internal/config"
)

// ErrServerStatus wraps every non-2xx response.
var ErrServerStatus = errors.New("server returned an error status")

type Client struct {
	baseURL    string
	httpClient *http.Client
	// streamClient has no overall timeout; generation streams are bounded by
	// their context instead.
	streamClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.Server, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		streamClient: &http.Client{},
	}
}

func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%w: server returned %d: %s", ErrServerStatus, resp.StatusCode, strings.TrimSpace(string(body)))
}

// --- Generation (streaming) ---

type GenerateRequest struct {
	OpenID  string `json:"openid"`
	Content string `json:"content"`
}

// GenerateStream posts a prompt and hands each received chunk to onChunk in
// arrival order. Chunks are raw bytes with no framing guarantees; a non-200
// response fails before any chunk is delivered.
func (c *Client) GenerateStream(ctx context.Context, openid, content string, onChunk func([]byte)) error {
	body, err := json.Marshal(GenerateRequest{OpenID: openid, Content: content})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/stream", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req, true)
	req.Header.Set("Accept", "text/plain, application/json")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			onChunk(buf[:n])
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("reading stream: %w", err)
		}
	}
}

// --- History & favorites ---

// ID accepts both numeric and string identifiers from the backend.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %s", string(data))
	}
	*id = ID(n.String())
	return nil
}

// Envelope is the response shape shared by every collaborator endpoint.
// Code 0 means success.
type Envelope struct {
	Code  int             `json:"code"`
	Msg   string          `json:"msg,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

func (e *Envelope) err() error {
	if e.Code == 0 {
		return nil
	}
	msg := e.Msg
	if msg == "" {
		msg = fmt.Sprintf("code %d", e.Code)
	}
	if e.Error != "" {
		msg += ": " + e.Error
	}
	return fmt.Errorf("server error: %s", msg)
}

// PromptRecord is one history or favorites entry. History rows carry
// prompt_id, favorites rows carry id.
type PromptRecord struct {
	ID        ID     `json:"id,omitempty"`
	PromptID  ID     `json:"prompt_id,omitempty"`
	Content   string `json:"content"`
	Response  string `json:"response"`
	CreatedAt string `json:"created_at"`
	IsFav     int    `json:"is_fav"`
}

// Key is the identifier to favorite or unfavorite this record by.
func (r PromptRecord) Key() string {
	if r.PromptID != "" {
		return string(r.PromptID)
	}
	return string(r.ID)
}

// Date is the calendar part of CreatedAt ("2024-05-01 10:00:00" -> "2024-05-01").
func (r PromptRecord) Date() string {
	date, _, _ := strings.Cut(r.CreatedAt, " ")
	return date
}

type RecordList struct {
	Records []PromptRecord
	Page    int
}

type HistoryRequest struct {
	OpenID string `json:"openid"`
	Page   int    `json:"page"`
}

func (c *Client) History(openid string, page int) (*RecordList, error) {
	var env Envelope
	if err := c.doJSON("POST", "/api/history", HistoryRequest{OpenID: openid, Page: page}, &env); err != nil {
		return nil, err
	}
	return decodeRecords(&env, page)
}

func (c *Client) Favorites(openid string, page int) (*RecordList, error) {
	q := url.Values{}
	q.Set("openid", openid)
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	var env Envelope
	if err := c.doJSON("GET", "/api/favorites?"+q.Encode(), nil, &env); err != nil {
		return nil, err
	}
	return decodeRecords(&env, page)
}

func decodeRecords(env *Envelope, page int) (*RecordList, error) {
	if err := env.err(); err != nil {
		return nil, err
	}
	list := &RecordList{Page: page}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return list, nil
	}
	if err := json.Unmarshal(env.Data, &list.Records); err != nil {
		return nil, fmt.Errorf("parsing records: %w", err)
	}
	return list, nil
}

const (
	FavoriteAdd    = "add"
	FavoriteRemove = "remove"
)

type FavoriteRequest struct {
	OpenID   string `json:"openid"`
	PromptID string `json:"promptId"`
	Action   string `json:"action"`
}

// SetFavorite adds or removes promptID from the user's favorites.
func (c *Client) SetFavorite(openid, promptID, action string) error {
	if action != FavoriteAdd && action != FavoriteRemove {
		return fmt.Errorf("invalid action %q (valid: %s, %s)", action, FavoriteAdd, FavoriteRemove)
	}
	if promptID == "" {
		return fmt.Errorf("prompt id is required")
	}
	var env Envelope
	req := FavoriteRequest{OpenID: openid, PromptID: promptID, Action: action}
	if err := c.doJSON("POST", "/api/favorites", req, &env); err != nil {
		return err
	}
	return env.err()
}

func (c *Client) doJSON(method, path string, reqBody interface{}, result interface{}) error {
	var bodyReader io.Reader
	if reqBody != nil && method != "GET" {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req, bodyReader != nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
	}
	return nil
}
