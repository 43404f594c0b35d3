package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type ChatRequest struct {
	SessionID   string   `json:"session_id"`
	Message     string   `json:"message"`
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Temperature float64  `json:"temperature"`
	Timeout     int      `json:"timeout"`
	MaxTokens   int      `json:"max_tokens"`
	MaxRetries  int      `json:"max_retries"`
	SelectedKBs []string `json:"selected_kbs"`
	SelectedDBs []string `json:"selected_dbs,omitempty"`
	Agent       string   `json:"agent,omitempty"`

	// APIKey is sent as a bearer token, never in the body.
	APIKey string `json:"-"`
}

type ToolCall struct {
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args"`
	Result string         `json:"result,omitempty"`
}

type ChatResponse struct {
	Reply     string     `json:"reply"`
	Provider  string     `json:"provider,omitempty"`
	Model     string     `json:"model,omitempty"`
	AgentUsed string     `json:"agent_used,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Timestamp time.Time  `json:"timestamp,omitempty"`
}

type Agent struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type KnowledgeBaseRequest struct {
	KBName           string   `json:"kb_name"`
	VectorStore      string   `json:"vector_store"`
	AllowedFileTypes []string `json:"allowed_file_types"`
	ParsingLibrary   string   `json:"parsing_library"`
	ChunkingStrategy string   `json:"chunking_strategy"`
	ChunkSize        int      `json:"chunk_size"`
	ChunkOverlap     int      `json:"chunk_overlap"`
	MetadataStrategy string   `json:"metadata_strategy"`
}

type KnowledgeBaseCreated struct {
	Message string `json:"message"`
	KBID    string `json:"kb_id"`
	JobID   string `json:"job_id"`
}

type KnowledgeBase struct {
	ID               string `json:"id"`
	KBName           string `json:"kb_name"`
	VectorStore      string `json:"vector_store"`
	ChunkingStrategy string `json:"chunking_strategy"`
}

type DatabaseConnection struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	DBType string `json:"db_type"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend: %s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("backend: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client talks to the chat backend over plain JSON request/response. It
// never retries and applies no timeout of its own unless one is given.
type Client struct {
	BaseURL string
	Client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.SelectedKBs == nil {
		req.SelectedKBs = []string{}
	}
	var out ChatResponse
	if err := c.do(ctx, http.MethodPost, "/chat", req.APIKey, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateKnowledgeBase(ctx context.Context, req KnowledgeBaseRequest) (*KnowledgeBaseCreated, error) {
	if req.AllowedFileTypes == nil {
		req.AllowedFileTypes = []string{}
	}
	var out KnowledgeBaseCreated
	if err := c.do(ctx, http.MethodPost, "/kb/create", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListKnowledgeBases(ctx context.Context) ([]KnowledgeBase, error) {
	var out []KnowledgeBase
	if err := c.do(ctx, http.MethodGet, "/kb/list", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteKnowledgeBase(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/kb/"+id, "", nil, nil)
}

func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var out struct {
		Agents []Agent `json:"agents"`
	}
	if err := c.do(ctx, http.MethodGet, "/agents", "", nil, &out); err != nil {
		return nil, err
	}
	return out.Agents, nil
}

func (c *Client) ListDatabases(ctx context.Context) ([]DatabaseConnection, error) {
	var out []DatabaseConnection
	if err := c.do(ctx, http.MethodGet, "/databases/list", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteDatabase(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/databases/"+id, "", nil, nil)
}

// FilterKnowledgeBases keeps the entries whose name contains q,
// case-insensitively. An empty query keeps everything.
func FilterKnowledgeBases(kbs []KnowledgeBase, q string) []KnowledgeBase {
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]KnowledgeBase, 0, len(kbs))
	for _, kb := range kbs {
		if strings.Contains(strings.ToLower(kb.KBName), q) {
			out = append(out, kb)
		}
	}
	return out
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	if c.Client == nil {
		return errors.New("backend: http client is nil")
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend: decode %s %s: %w", method, path, err)
	}
	return nil
}
