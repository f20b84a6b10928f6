// Package notificator delivers operator alerts for conditions that need a
// human: failed mints and records stuck in confirmation.
package notificator

import (
	"runtime/debug"

	"github.com/geomark-app/geomark/internal/config"
	"github.com/geomark-app/geomark/internal/models"
	"github.com/geomark-app/geomark/pkg/logger"
)

// Notificator fans an alert out to the configured channels. A delivery
// failure or panic in one channel never reaches the caller.
type Notificator struct {
	logger *logger.Logger

	TelegramAlerter *TelegramAlerter
}

// NewNotificator builds the alert fan-out from configuration. Without a
// Telegram token alerts are logged only.
func NewNotificator(logger *logger.Logger, cfg *config.Config) *Notificator {
	n := &Notificator{logger: logger}
	if cfg.TelegramBotToken != "" && cfg.TelegramOperatorChatID != 0 {
		alerter, err := NewTelegramAlerter(logger, cfg.TelegramBotToken, cfg.TelegramOperatorChatID)
		if err != nil {
			logger.Error("Failed to create telegram alerter, alerts will be log-only: ", err)
		} else {
			n.TelegramAlerter = alerter
		}
	}
	return n
}

// safeCall runs a function with panic recovery (synchronous, no goroutine spawning)
func (n *Notificator) safeCall(fn func(), context string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Function panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Alert implements models.AlertService.
func (n *Notificator) Alert(message string) {
	n.logger.Warn("Operator alert: ", message)
	if n.TelegramAlerter != nil {
		n.safeCall(func() { n.TelegramAlerter.Alert(message) }, "telegramAlert")
	}
}

var _ models.AlertService = (*Notificator)(nil)
