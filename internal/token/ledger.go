package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Ledger отправляет исходящие переводы во внешний токен-леджер.
// Запись в журнале transfers создаётся до отправки, в одной транзакции БД
// с изменением состояния сделки; здесь только доставка.
type Ledger struct {
	baseURL    string
	authToken  string
	from       string
	httpClient *http.Client
}

// NewLedger создаёт клиент леджера. from — счёт движка, с которого
// уходят все выплаты.
func NewLedger(baseURL, authToken, from string) *Ledger {
	return &Ledger{
		baseURL:   baseURL,
		authToken: authToken,
		from:      from,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type transferRequest struct {
	TxID   uuid.UUID `json:"tx_id"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Amount int64     `json:"amount"`
	Symbol string    `json:"symbol"`
	Memo   string    `json:"memo"`
}

// Transfer переводит amount базовых единиц symbol со счёта движка на счёт to.
// txID передаётся леджеру как ключ идемпотентности: повторная доставка
// одного перевода не задвоит выплату.
func (l *Ledger) Transfer(ctx context.Context, txID uuid.UUID, to string, amount int64, symbol, memo string) error {
	if amount <= 0 {
		return fmt.Errorf("ledger: сумма перевода должна быть положительной")
	}

	body, err := json.Marshal(transferRequest{
		TxID:   txID,
		From:   l.from,
		To:     to,
		Amount: amount,
		Symbol: symbol,
		Memo:   memo,
	})
	if err != nil {
		return fmt.Errorf("ledger: не удалось сериализовать перевод: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/transfers", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ledger: не удалось создать запрос: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.authToken)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ledger: отправка перевода: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("ledger: неожиданный статус ответа %d", resp.StatusCode)
	}

	return nil
}
