package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-notify-bot/internal/domain"
)

const digestKeyPrefix = "digest:"

// DigestResults хранит готовые дайджесты пользователей с TTL.
type DigestResults struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDigestResults создаёт кэш дайджестов.
func NewDigestResults(client *redis.Client, ttl time.Duration) *DigestResults {
	return &DigestResults{client: client, ttl: ttl}
}

var _ domain.DigestCache = (*DigestResults)(nil)

func digestKey(telegramID int64) string {
	return digestKeyPrefix + strconv.FormatInt(telegramID, 10)
}

// Set сохраняет дайджест. Ошибка возвращается: для пакетного job'а
// несохранённый дайджест считается неуспехом пользователя.
func (d *DigestResults) Set(ctx context.Context, result domain.DigestResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("cache: encode digest: %w", err)
	}
	if err := d.client.Set(ctx, digestKey(result.TelegramID), data, d.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set digest: %w", err)
	}
	return nil
}

// Get возвращает сохранённый дайджест или domain.ErrCacheMiss.
func (d *DigestResults) Get(ctx context.Context, telegramID int64) (domain.DigestResult, error) {
	data, err := d.client.Get(ctx, digestKey(telegramID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.DigestResult{}, domain.ErrCacheMiss
		}
		return domain.DigestResult{}, fmt.Errorf("cache: get digest: %w", err)
	}
	var result domain.DigestResult
	if err := json.Unmarshal(data, &result); err != nil {
		return domain.DigestResult{}, fmt.Errorf("cache: decode digest: %w", err)
	}
	return result, nil
}
