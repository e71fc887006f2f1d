package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"transcripthost/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramConfig configures the Telegram notifier.
type TelegramConfig struct {
	Token       string
	ChatID      int64
	APIEndpoint string // format string with token and method verbs; empty = api.telegram.org
	BaseURL     string
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Telegram posts transcript notices to one chat through the Bot API.
type Telegram struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	baseURL string
	logger  *slog.Logger
}

// NewTelegram builds the client without calling getMe, so construction never
// touches the network.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if cfg.Token == "" || cfg.ChatID == 0 {
		return nil, fmt.Errorf("%w: telegram token and chat id", domain.ErrConfigurationMissing)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	bot := &tgbotapi.BotAPI{
		Token:  cfg.Token,
		Client: cfg.HTTPClient,
		Buffer: 100,
	}
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot.SetAPIEndpoint(endpoint)

	return &Telegram{bot: bot, chatID: cfg.ChatID, baseURL: cfg.BaseURL, logger: cfg.Logger}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) NotifyTranscript(ctx context.Context, rec domain.TranscriptRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, FormatTranscriptNotice(rec, t.baseURL))
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	t.logger.Debug("telegram notice sent", "chat_id", t.chatID, "filename", rec.Filename)
	return nil
}
