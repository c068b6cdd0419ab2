package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg-notify-bot/internal/domain"
	"tg-notify-bot/internal/infra/metrics"
)

// Notifier доставляет уведомления пользователям через Bot API.
type Notifier struct {
	api *tgbotapi.BotAPI
}

// NewNotifier создаёт нотификатор.
func NewNotifier(api *tgbotapi.BotAPI) *Notifier {
	return &Notifier{api: api}
}

var _ domain.Notifier = (*Notifier)(nil)

// Notify отправляет текст в чат пользователя.
func (n *Notifier) Notify(ctx context.Context, telegramID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(telegramID, text)
	msg.DisableWebPagePreview = true
	if _, err := n.api.Send(msg); err != nil {
		metrics.BotSendErrors.Inc()
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}
