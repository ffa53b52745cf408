package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client ходит во внешний реестр исполнителей. Движок доверяет его флагу
// active как единственному критерию допуска исполнителя к сделкам.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент реестра.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type agentStatus struct {
	Account    string `json:"account"`
	Registered bool   `json:"registered"`
	Active     bool   `json:"active"`
}

// IsRegisteredAndActive проверяет, зарегистрирован и активен ли аккаунт.
// Неизвестный аккаунт — не ошибка, а (false, nil).
func (c *Client) IsRegisteredAndActive(ctx context.Context, account string) (bool, error) {
	url := fmt.Sprintf("%s/agents/%s", c.baseURL, account)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("registry: не удалось создать запрос: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("registry: запрос статуса исполнителя: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("registry: неожиданный статус ответа %d", resp.StatusCode)
	}

	var status agentStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false, fmt.Errorf("registry: не удалось разобрать ответ: %w", err)
	}

	return status.Registered && status.Active, nil
}

// IncrementJobCount увеличивает счётчик завершённых сделок исполнителя.
// Вызывается при завершении сделки (completed или arbitrated с выплатой).
func (c *Client) IncrementJobCount(ctx context.Context, account string) error {
	url := fmt.Sprintf("%s/agents/%s/jobs/increment", c.baseURL, account)

	body, err := json.Marshal(map[string]string{"account": account})
	if err != nil {
		return fmt.Errorf("registry: не удалось сериализовать запрос: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("registry: не удалось создать запрос: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("registry: инкремент счётчика сделок: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("registry: неожиданный статус ответа %d", resp.StatusCode)
	}

	return nil
}
