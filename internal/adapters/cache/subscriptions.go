package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-notify-bot/internal/domain"
)

const subsKeyPrefix = "subs:"

// Subscriptions — cache-aside запись списка подписок пользователя.
// TTL здесь только подстраховка: пути мутации обязаны явно вызывать
// Invalidate до возврата успеха.
type Subscriptions struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewSubscriptions создаёт кэш подписок.
func NewSubscriptions(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Subscriptions {
	return &Subscriptions{client: client, ttl: ttl, log: logger}
}

var _ domain.SubscriptionCache = (*Subscriptions)(nil)

func subsKey(telegramID int64) string {
	return subsKeyPrefix + strconv.FormatInt(telegramID, 10)
}

// Get возвращает закэшированный список или domain.ErrCacheMiss.
func (s *Subscriptions) Get(ctx context.Context, telegramID int64) ([]domain.Subscription, error) {
	data, err := s.client.Get(ctx, subsKey(telegramID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("cache: get subscriptions: %w", err)
	}
	var subs []domain.Subscription
	if err := json.Unmarshal(data, &subs); err != nil {
		return nil, fmt.Errorf("cache: decode subscriptions: %w", err)
	}
	return subs, nil
}

// Set сохраняет список подписок с TTL. Best-effort: сбой не мешает
// вызывающему коду отдать данные из бэкенда.
func (s *Subscriptions) Set(ctx context.Context, telegramID int64, subs []domain.Subscription) {
	data, err := json.Marshal(subs)
	if err != nil {
		s.log.Debug().Err(err).Int64("telegram_id", telegramID).Msg("cache: сериализация подписок не удалась")
		return
	}
	if err := s.client.Set(ctx, subsKey(telegramID), data, s.ttl).Err(); err != nil {
		s.log.Debug().Err(err).Int64("telegram_id", telegramID).Msg("cache: запись подписок не удалась")
	}
}

// Invalidate удаляет запись. Ошибка возвращается вызывающему: мутация не
// должна завершиться успехом, пока в кэше может лежать устаревший список.
func (s *Subscriptions) Invalidate(ctx context.Context, telegramID int64) error {
	if err := s.client.Del(ctx, subsKey(telegramID)).Err(); err != nil {
		return fmt.Errorf("cache: invalidate subscriptions: %w", err)
	}
	return nil
}
