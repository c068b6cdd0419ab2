package subscriptions

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"tg-notify-bot/internal/domain"
)

// Service управляет подписками пользователя поверх внешнего CRUD-хранилища
// с cache-aside кэшем. Любая мутация сбрасывает кэш до возврата успеха —
// TTL остаётся только подстраховкой.
type Service struct {
	store domain.SubscriptionStore
	cache domain.SubscriptionCache
	log   zerolog.Logger
}

// NewService создаёт сервис подписок.
func NewService(store domain.SubscriptionStore, cache domain.SubscriptionCache, logger zerolog.Logger) *Service {
	return &Service{store: store, cache: cache, log: logger}
}

// List возвращает подписки пользователя: из кэша, при промахе — из
// хранилища с последующим заполнением кэша.
func (s *Service) List(ctx context.Context, telegramID int64) ([]domain.Subscription, error) {
	subs, err := s.cache.Get(ctx, telegramID)
	if err == nil {
		return subs, nil
	}
	if !errors.Is(err, domain.ErrCacheMiss) {
		s.log.Debug().Err(err).Int64("telegram_id", telegramID).Msg("subscriptions: кэш недоступен")
	}

	subs, err = s.store.ListByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("получение подписок: %w", err)
	}
	s.cache.Set(ctx, telegramID, subs)
	return subs, nil
}

// Subscribe создаёт подписку и синхронно сбрасывает кэш пользователя.
func (s *Service) Subscribe(ctx context.Context, telegramID int64, req domain.SubscriptionRequest) (domain.Subscription, error) {
	sub, err := s.store.Subscribe(ctx, telegramID, req)
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("создание подписки: %w", err)
	}
	if err := s.cache.Invalidate(ctx, telegramID); err != nil {
		return domain.Subscription{}, fmt.Errorf("сброс кэша подписок: %w", err)
	}
	return sub, nil
}

// Unsubscribe удаляет подписку и синхронно сбрасывает кэш пользователя.
func (s *Service) Unsubscribe(ctx context.Context, telegramID, actionID int64) error {
	if err := s.store.DeleteAction(ctx, actionID); err != nil {
		return fmt.Errorf("удаление подписки: %w", err)
	}
	if err := s.cache.Invalidate(ctx, telegramID); err != nil {
		return fmt.Errorf("сброс кэша подписок: %w", err)
	}
	return nil
}
