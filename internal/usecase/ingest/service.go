package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"tg-notify-bot/internal/domain"
)

// Service обрабатывает одно событие уведомления: доставляет его пользователю
// и записывает в окно истории. Оба побочных эффекта выполняются независимо —
// сбой одного не отменяет попытку другого.
type Service struct {
	history  domain.HistoryCache
	notifier domain.Notifier
	log      zerolog.Logger
}

// NewService создаёт обработчик событий.
func NewService(history domain.HistoryCache, notifier domain.Notifier, logger zerolog.Logger) *Service {
	return &Service{history: history, notifier: notifier, log: logger}
}

// HandleMessage разбирает тело события из брокера. Некорректное событие —
// это ошибка одной единицы работы: консьюмер её залогирует и продолжит.
func (s *Service) HandleMessage(ctx context.Context, body []byte) error {
	var event domain.NotificationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("декодирование события: %w", err)
	}
	if err := event.Validate(); err != nil {
		return fmt.Errorf("некорректное событие: %w", err)
	}

	text := renderEvent(event)

	var deliverErr error
	if err := s.notifier.Notify(ctx, event.TelegramID, text); err != nil {
		deliverErr = fmt.Errorf("доставка уведомления: %w", err)
		s.log.Warn().Err(err).Int64("telegram_id", event.TelegramID).Msg("ingest: уведомление не доставлено")
	}

	// Запись в историю идёт даже при сбое доставки; сама запись best-effort.
	s.history.Push(ctx, event.TelegramID, text)

	return deliverErr
}

// renderEvent собирает единый текст уведомления из события. Он же
// сохраняется в историю, чтобы дайджест видел то, что видел пользователь.
func renderEvent(event domain.NotificationEvent) string {
	var b strings.Builder
	title := event.Title
	if title == "" {
		title = "Новое уведомление"
	}
	b.WriteString(title)
	b.WriteString("\n\n")
	b.WriteString(event.Text)
	if event.Service != "" {
		b.WriteString("\nСервис: ")
		b.WriteString(event.Service)
	}
	if event.Type != "" {
		b.WriteString("\nТип: ")
		b.WriteString(event.Type)
	}
	if event.URL != "" {
		b.WriteString("\n")
		b.WriteString(event.URL)
	}
	return b.String()
}
