package alerts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"
)

// TelegramConfig defines chat bot settings.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token" yaml:"bot_token"`
	ChatID   string `mapstructure:"chat_id" yaml:"chat_id"`
	APIURL   string `mapstructure:"api_url" yaml:"api_url,omitempty"`
}

// Telegram allows about one message per second into a single chat.
const telegramChatRate = rate.Limit(1)

// TelegramSink sends events to a chat through the Telegram Bot API.
type TelegramSink struct {
	bot     *tele.Bot
	chat    chatRecipient
	limiter *rate.Limiter
	loc     *time.Location
}

type chatRecipient string

func (c chatRecipient) Recipient() string { return string(c) }

// NewTelegramSink creates a chat bot sink. The bot is created offline so no
// request is made until the first Send.
func NewTelegramSink(cfg TelegramConfig, loc *time.Location) (*TelegramSink, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, errors.New("telegram bot_token and chat_id are required")
	}
	bot, err := tele.NewBot(tele.Settings{
		URL:     cfg.APIURL,
		Token:   cfg.BotToken,
		Offline: true,
		Client:  &http.Client{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramSink{
		bot:     bot,
		chat:    chatRecipient(cfg.ChatID),
		limiter: rate.NewLimiter(telegramChatRate, 3),
		loc:     loc,
	}, nil
}

func (t *TelegramSink) Kind() ChannelKind { return ChannelTelegram }

func (t *TelegramSink) Send(ctx context.Context, event Event) error {
	msg, ok := Format(event, t.loc)
	if !ok {
		return nil
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit: %w", err)
	}

	// Daily reports arrive silently; warnings and errors ring.
	opts := &tele.SendOptions{DisableNotification: msg.Severity == SeverityInfo}
	if _, err := t.bot.Send(t.chat, msg.Text(), opts); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
