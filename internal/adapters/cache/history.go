package cache

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-notify-bot/internal/domain"
)

const historyKeyPrefix = "history:"

// History хранит окно последних уведомлений пользователя в Redis-списке.
// Все операции best-effort: сбой бэкенда логируется и глотается, доставка
// уведомления не должна падать из-за кэша.
type History struct {
	client *redis.Client
	limit  int
	ttl    time.Duration
	log    zerolog.Logger
}

// NewHistory создаёт кэш истории с ограничением окна и TTL.
func NewHistory(client *redis.Client, limit int, ttl time.Duration, logger zerolog.Logger) *History {
	return &History{client: client, limit: limit, ttl: ttl, log: logger}
}

var _ domain.HistoryCache = (*History)(nil)

func historyKey(telegramID int64) string {
	return historyKeyPrefix + strconv.FormatInt(telegramID, 10)
}

// Push добавляет текст в начало окна, обрезает его до лимита и сбрасывает TTL.
// Записи за пределами лимита отбрасываются без какой-либо архивации.
func (h *History) Push(ctx context.Context, telegramID int64, text string) {
	key := historyKey(telegramID)
	pipe := h.client.TxPipeline()
	pipe.LPush(ctx, key, text)
	pipe.LTrim(ctx, key, 0, int64(h.limit-1))
	pipe.Expire(ctx, key, h.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		h.log.Debug().Err(err).Int64("telegram_id", telegramID).Msg("cache: push истории не удался")
	}
}

// Recent возвращает до limit последних текстов, свежие первыми.
// Пустой результат — если окна нет, оно истекло или бэкенд недоступен.
func (h *History) Recent(ctx context.Context, telegramID int64, limit int) []string {
	items, err := h.client.LRange(ctx, historyKey(telegramID), 0, int64(limit-1)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			h.log.Debug().Err(err).Int64("telegram_id", telegramID).Msg("cache: чтение истории не удалось")
		}
		return nil
	}
	return items
}

// Clear немедленно удаляет окно пользователя.
func (h *History) Clear(ctx context.Context, telegramID int64) {
	if err := h.client.Del(ctx, historyKey(telegramID)).Err(); err != nil {
		h.log.Debug().Err(err).Int64("telegram_id", telegramID).Msg("cache: очистка истории не удалась")
	}
}

// TelegramIDs перечисляет пользователей с непустой историей полным сканом
// пространства ключей. При недоступности бэкенда возвращает пустой список.
func (h *History) TelegramIDs(ctx context.Context) []int64 {
	var ids []int64
	iter := h.client.Scan(ctx, 0, historyKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw := strings.TrimPrefix(iter.Val(), historyKeyPrefix)
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		h.log.Debug().Err(err).Msg("cache: скан истории не удался")
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
