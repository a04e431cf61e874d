package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"rt-keeper/internal/domain"
)

// Client загружает синдикационные ленты по HTTP.
type Client struct {
	http *resty.Client
}

var _ domain.FeedFetcher = (*Client)(nil)

// NewClient создаёт клиент лент с общим таймаутом.
// Отмена отдельного запроса — через контекст вызывающего.
func NewClient(timeout time.Duration) *Client {
	c := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", "rt-keeper/1.0")
	return &Client{http: c}
}

// Fetch возвращает тело ленты. Не-2xx статус — ошибка формата
// с указанием HTTP-статуса.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("загрузка ленты: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: лента вернула HTTP %d", domain.ErrInvalidFormat, resp.StatusCode())
	}
	return resp.Body(), nil
}
