package mlservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tg-notify-bot/internal/infra/metrics"
)

const healthTimeout = 5 * time.Second

// Client выполняет запросы к сервису суммаризации.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient создаёт клиента MLService.
func NewClient(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{http: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

type summarizeRequest struct {
	Notifications []string `json:"notifications"`
	MaxTokens     int      `json:"max_tokens"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

// Summarize вызывает POST /summarize и возвращает краткое содержание.
func (c *Client) Summarize(ctx context.Context, notifications []string, maxTokens int) (string, error) {
	if len(notifications) == 0 {
		return "", fmt.Errorf("mlservice: nothing to summarize")
	}
	body, err := json.Marshal(summarizeRequest{Notifications: notifications, MaxTokens: maxTokens})
	if err != nil {
		return "", fmt.Errorf("mlservice: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/summarize", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("mlservice: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("mlservice", "summarize", c.baseURL, start, err)
		return "", fmt.Errorf("mlservice: do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.ObserveNetworkRequest("mlservice", "summarize", c.baseURL, start, err)
		return "", fmt.Errorf("mlservice: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		err = fmt.Errorf("mlservice: unexpected status %d", resp.StatusCode)
		metrics.ObserveNetworkRequest("mlservice", "summarize", c.baseURL, start, err)
		return "", err
	}
	var parsed summarizeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		metrics.ObserveNetworkRequest("mlservice", "summarize", c.baseURL, start, err)
		return "", fmt.Errorf("mlservice: decode response: %w", err)
	}
	metrics.ObserveNetworkRequest("mlservice", "summarize", c.baseURL, start, nil)
	return parsed.Summary, nil
}

// Health проверяет живость сервиса через GET /health.
func (c *Client) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
