package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSink sends notifications as bot messages to a single chat.
type TelegramSink struct {
	token    string
	chatID   int64
	endpoint string
	client   *http.Client

	mu  sync.Mutex
	api *tgbotapi.BotAPI
}

type TelegramOption func(*TelegramSink)

// WithEndpoint overrides the Bot API endpoint format ("https://host/bot%s/%s")
func WithEndpoint(endpoint string) TelegramOption {
	return func(s *TelegramSink) { s.endpoint = endpoint }
}

func WithHTTPClient(client *http.Client) TelegramOption {
	return func(s *TelegramSink) { s.client = client }
}

func NewTelegramSink(token string, chatID int64, opts ...TelegramOption) (*TelegramSink, error) {
	if token == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}

	s := &TelegramSink{
		token:    token,
		chatID:   chatID,
		endpoint: tgbotapi.APIEndpoint,
		client:   &http.Client{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

// bot connects on first use; NewBotAPIWithClient verifies the token with getMe.
func (s *TelegramSink) bot() (*tgbotapi.BotAPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.api != nil {
		return s.api, nil
	}
	api, err := tgbotapi.NewBotAPIWithClient(s.token, s.endpoint, s.client)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	s.api = api
	return api, nil
}

func (s *TelegramSink) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	api, err := s.bot()
	if err != nil {
		return err
	}

	text := msg.Body
	if msg.Title != "" {
		text = msg.Title + "\n" + msg.Body
	}

	out := tgbotapi.NewMessage(s.chatID, text)
	out.DisableNotification = !msg.Sound
	if _, err := api.Send(out); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

func (s *TelegramSink) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.bot()
	return err
}
