package notificator

import (
	"context"

	"github.com/go-telegram/bot"

	"github.com/geomark-app/geomark/pkg/logger"
)

// TelegramAlerter delivers operator alerts to a Telegram chat. It only
// sends; incoming updates are ignored.
type TelegramAlerter struct {
	logger *logger.Logger
	bot    *bot.Bot
	chatID int64
}

func NewTelegramAlerter(logger *logger.Logger, token string, chatID int64) (*TelegramAlerter, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, err
	}
	return &TelegramAlerter{
		logger: logger,
		bot:    b,
		chatID: chatID,
	}, nil
}

func (t *TelegramAlerter) Alert(message string) {
	params := &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   message,
	}
	_, err := t.bot.SendMessage(context.Background(), params)
	if err != nil {
		t.logger.Error("Failed to send operator alert: ", err)
	}
}
