package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"
)

// markdownV2Escapes covers every character Telegram's MarkdownV2 parser
// treats as syntax.
var markdownV2Escapes = regexp.MustCompile("([_*\\[\\]()~`>#+\\-=|{}.!\\\\])")

// EscapeMarkdownV2 escapes message text for Telegram's MarkdownV2 parse mode.
func EscapeMarkdownV2(s string) string {
	return markdownV2Escapes.ReplaceAllString(s, `\$1`)
}

// Telegram delivers messages through the bot API's sendMessage call.
type Telegram struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
}

func NewTelegram(token, chatID string, client *http.Client) *Telegram {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Telegram{
		apiBase: "https://api.telegram.org",
		token:   token,
		chatID:  chatID,
		client:  client,
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, message string) error {
	payload, err := json.Marshal(map[string]any{
		"chat_id":                  t.chatID,
		"text":                     EscapeMarkdownV2(message),
		"parse_mode":               "MarkdownV2",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	return sendWithRetry(ctx, 3, func(ctx context.Context) (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return 0, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.client.Do(req)
		if err != nil {
			return 0, fmt.Errorf("send message: %w", err)
		}
		resp.Body.Close()
		return resp.StatusCode, nil
	})
}
