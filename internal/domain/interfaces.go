package domain

import (
	"context"
	"errors"
)

// ErrCacheMiss возвращается кэшем, когда записи нет или она истекла.
var ErrCacheMiss = errors.New("записи нет в кэше")

// ErrNoSnapshots возвращается, когда в хранилище нет ни одного снапшота.
var ErrNoSnapshots = errors.New("снапшоты не найдены")

// HistoryCache хранит ограниченное окно последних уведомлений пользователя.
// Кэш best-effort: при недоступности бэкенда запись пропадает молча,
// чтение возвращает пустой результат. Вызывающий код никогда не падает
// из-за кэша.
type HistoryCache interface {
	Push(ctx context.Context, telegramID int64, text string)
	Recent(ctx context.Context, telegramID int64, limit int) []string
	Clear(ctx context.Context, telegramID int64)
	TelegramIDs(ctx context.Context) []int64
}

// SubscriptionCache — cache-aside слой перед хранилищем подписок.
type SubscriptionCache interface {
	Get(ctx context.Context, telegramID int64) ([]Subscription, error)
	Set(ctx context.Context, telegramID int64, subs []Subscription)
	Invalidate(ctx context.Context, telegramID int64) error
}

// DigestCache хранит готовые дайджесты с TTL.
type DigestCache interface {
	Set(ctx context.Context, result DigestResult) error
	Get(ctx context.Context, telegramID int64) (DigestResult, error)
}

// SubscriptionStore — внешний CRUD-сервис записей о подписках.
type SubscriptionStore interface {
	ListByTelegramID(ctx context.Context, telegramID int64) ([]Subscription, error)
	Subscribe(ctx context.Context, telegramID int64, req SubscriptionRequest) (Subscription, error)
	DeleteAction(ctx context.Context, actionID int64) error
}

// Summarizer — внешний сервис суммаризации.
type Summarizer interface {
	Summarize(ctx context.Context, notifications []string, maxTokens int) (string, error)
}

// Notifier доставляет текст уведомления пользователю.
type Notifier interface {
	Notify(ctx context.Context, telegramID int64, text string) error
}

// SnapshotStore управляет неизменяемыми колоночными снапшотами истории.
// Write публикует файл атомарно; существующие файлы никогда не изменяются,
// удаляет их только job очистки через Remove.
type SnapshotStore interface {
	Write(records []NotificationRecord, suffix string) (string, error)
	Read(path string) ([]NotificationRecord, error)
	List() ([]Snapshot, error)
	Latest() (Snapshot, error)
	Remove(path string) error
}
