package dbapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tg-notify-bot/internal/domain"
	"tg-notify-bot/internal/infra/metrics"
)

const defaultTimeout = 30 * time.Second

// Client — HTTP-обёртка над CRUD API хранилища пользователей и подписок.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient создаёт клиента DB API.
func NewClient(baseURL string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{http: &http.Client{Timeout: defaultTimeout}, baseURL: baseURL}
}

var _ domain.SubscriptionStore = (*Client)(nil)

// ListByTelegramID возвращает все подписки пользователя.
func (c *Client) ListByTelegramID(ctx context.Context, telegramID int64) ([]domain.Subscription, error) {
	endpoint := c.baseURL + "/actions/telegram/" + strconv.FormatInt(telegramID, 10)
	var subs []domain.Subscription
	if err := c.do(ctx, http.MethodGet, "list_actions", endpoint, nil, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// Subscribe создаёт подписку через умный эндпоинт /actions/subscribe.
func (c *Client) Subscribe(ctx context.Context, telegramID int64, req domain.SubscriptionRequest) (domain.Subscription, error) {
	payload := struct {
		TelegramID int64  `json:"telegramId"`
		Service    string `json:"serviceName"`
		Method     string `json:"methodName"`
		Query      string `json:"query"`
		Describe   string `json:"describe,omitempty"`
	}{telegramID, req.Service, req.Method, req.Query, req.Describe}
	var sub domain.Subscription
	if err := c.do(ctx, http.MethodPost, "subscribe", c.baseURL+"/actions/subscribe", payload, &sub); err != nil {
		return domain.Subscription{}, err
	}
	return sub, nil
}

// DeleteAction удаляет подписку по идентификатору.
func (c *Client) DeleteAction(ctx context.Context, actionID int64) error {
	endpoint := c.baseURL + "/actions/" + strconv.FormatInt(actionID, 10)
	return c.do(ctx, http.MethodDelete, "delete_action", endpoint, nil, nil)
}

func (c *Client) do(ctx context.Context, method, operation, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("dbapi: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("dbapi: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNetworkRequest("dbapi", operation, c.baseURL, start, err)
	if err != nil {
		return fmt.Errorf("dbapi: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("dbapi: %s failed: status %d: %s", operation, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("dbapi: decode response: %w", err)
	}
	return nil
}
