package ollama

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

// ErrNoEmbedding is returned when the embed endpoint answers successfully but
// carries zero vectors. An empty vector must never be treated as a result.
var ErrNoEmbedding = errors.New("no embedding returned from ollama")

// StatusError reports a non-success status code from the inference service.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ollama %s status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Config holds the connection settings for a Client.
type Config struct {
	BaseURL    string
	EmbedModel string
	ChatModel  string
	Timeout    time.Duration
}

// Client talks to an Ollama-compatible inference endpoint. It performs one
// synchronous request per call: no retries, no caching.
type Client struct {
	baseURL    string
	embedModel string
	chatModel  string
	client     *http.Client
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		embedModel: cfg.EmbedModel,
		chatModel:  cfg.ChatModel,
		client:     &http.Client{Timeout: timeout},
	}
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Embed converts text into a fixed-length vector. The caller validates that
// text is non-empty before reaching this point.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var res embedResponse
	if err := c.post(ctx, "embed", "/api/embed", embedRequest{Model: c.embedModel, Input: text}, &res); err != nil {
		return nil, err
	}
	if len(res.Embeddings) == 0 {
		return nil, ErrNoEmbedding
	}
	return res.Embeddings[0], nil
}

// Generate produces free text for a prompt, non-streaming.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var res generateResponse
	if err := c.post(ctx, "generate", "/api/generate", generateRequest{Model: c.chatModel, Prompt: prompt, Stream: false}, &res); err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Response), nil
}

func (c *Client) post(ctx context.Context, op, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect ollama: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return &StatusError{Op: op, StatusCode: res.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}
