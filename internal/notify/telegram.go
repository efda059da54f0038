package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// pushTimeout bounds every push attempt.
const pushTimeout = 10 * time.Second

// Pusher delivers a rendered notification to an external channel.
type Pusher interface {
	Push(ctx context.Context, chatID int64, text string) error
}

// TelegramPusher sends messages through the Telegram Bot API.
type TelegramPusher struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewTelegramPusher creates a pusher for the given bot token.
func NewTelegramPusher(token string) *TelegramPusher {
	return &TelegramPusher{
		baseURL:    "https://api.telegram.org",
		token:      token,
		httpClient: &http.Client{Timeout: pushTimeout},
	}
}

// SetBaseURL overrides the Telegram URL, used by tests.
func (t *TelegramPusher) SetBaseURL(u string) { t.baseURL = u }

// Push sends one message to a chat.
func (t *TelegramPusher) Push(ctx context.Context, chatID int64, text string) error {
	payload, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram: sendMessage returned %d: %s", resp.StatusCode, body)
	}
	return nil
}
