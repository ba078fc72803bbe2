package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/model"
)

const defaultTelegramAPIBase = "https://api.telegram.org"

// TelegramNotifier posts alerts to a Telegram chat through the Bot API
// sendMessage method.
type TelegramNotifier struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
}

// NewTelegramNotifier creates a notifier for the given bot token and chat.
func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		apiBase: defaultTelegramAPIBase,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// WithAPIBase overrides the Telegram API origin. Used by tests.
func (t *TelegramNotifier) WithAPIBase(base string) *TelegramNotifier {
	t.apiBase = base
	return t
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// Send posts one Markdown-formatted alert message.
func (t *TelegramNotifier) Send(ctx context.Context, product *model.Product, kind Kind) error {
	payload := sendMessageRequest{
		ChatID:    t.chatID,
		Text:      formatAlert(product, kind),
		ParseMode: "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram api status %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}

// formatAlert renders the alert text. Price falls back to N/A when the page
// never exposed one.
func formatAlert(product *model.Product, kind Kind) string {
	title := "🆕 New Hot Wheels in stock!"
	if kind == KindRestock {
		title = "🔄 Hot Wheels back in stock!"
	}

	price := "N/A"
	if product.Price.Valid {
		price = "₹" + product.Price.Decimal.StringFixed(2)
	}

	return fmt.Sprintf("*%s*\n\n*%s*\nPrice: %s\n[Open product page](%s)\n\n_%s_",
		title,
		product.Name,
		price,
		product.URL,
		time.Now().Format("2006-01-02 15:04:05"),
	)
}
