package domain

import (
	"errors"
	"time"
)

// ErrMissingTelegramID возвращается для события без идентификатора пользователя.
var ErrMissingTelegramID = errors.New("в событии нет telegram_id")

// ErrMissingText возвращается для события без текста.
var ErrMissingText = errors.New("в событии нет текста")

// NotificationEvent описывает событие из брокера.
// Обязательны telegram_id и text, остальные поля презентационные.
type NotificationEvent struct {
	TelegramID int64  `json:"telegram_id"`
	Text       string `json:"text"`
	Title      string `json:"title,omitempty"`
	Service    string `json:"service,omitempty"`
	Type       string `json:"type,omitempty"`
	URL        string `json:"url,omitempty"`
}

// Validate проверяет обязательные поля события.
func (e NotificationEvent) Validate() error {
	if e.TelegramID == 0 {
		return ErrMissingTelegramID
	}
	if e.Text == "" {
		return ErrMissingText
	}
	return nil
}

// NotificationRecord — одна строка архива уведомлений, неизменяемая после создания.
type NotificationRecord struct {
	TelegramID int64
	Text       string
	ArchivedAt time.Time
}

// Snapshot описывает один файл архива в хранилище.
type Snapshot struct {
	Path    string
	ModTime time.Time
}

// Subscription описывает подписку пользователя на события внешнего сервиса.
type Subscription struct {
	ID       int64  `json:"id"`
	Service  string `json:"serviceName"`
	Method   string `json:"methodName"`
	Query    string `json:"query"`
	Describe string `json:"describe,omitempty"`
}

// SubscriptionRequest — запрос на создание подписки.
type SubscriptionRequest struct {
	Service  string `json:"serviceName"`
	Method   string `json:"methodName"`
	Query    string `json:"query"`
	Describe string `json:"describe,omitempty"`
}

// DigestResult — готовый дайджест пользователя.
type DigestResult struct {
	TelegramID int64     `json:"telegram_id"`
	Summary    string    `json:"summary"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// BatchOutcome — результат построения дайджеста для одного пользователя.
type BatchOutcome struct {
	TelegramID int64
	Err        error
}

// BatchReport — итог пакетного построения дайджестов.
type BatchReport struct {
	Snapshot string
	Rows     int
	Outcomes []BatchOutcome
}

// Succeeded возвращает количество успешно построенных дайджестов.
func (r BatchReport) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// Failed возвращает количество пользователей с ошибкой.
func (r BatchReport) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}
