package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tg-notify-bot/internal/domain"
	"tg-notify-bot/internal/infra/metrics"
)

// Report — итог одного запуска архивации.
type Report struct {
	Users int
	Rows  int
	Path  string
}

// Service архивирует окна истории всех пользователей в один новый снапшот.
// Существующие снапшоты никогда не изменяются: повторный запуск безопасен,
// он просто создаёт ещё один файл.
type Service struct {
	history domain.HistoryCache
	store   domain.SnapshotStore
	limit   int
	log     zerolog.Logger
}

// NewService создаёт job архивации. limit — сколько последних записей
// читать у каждого пользователя.
func NewService(history domain.HistoryCache, store domain.SnapshotStore, limit int, logger zerolog.Logger) *Service {
	return &Service{history: history, store: store, limit: limit, log: logger}
}

// Run собирает историю и публикует снапшот. Все строки запуска получают
// один общий таймстемп — время старта job'а. Сбой записи — ошибка запуска,
// её ретраит внешний планировщик.
func (s *Service) Run(ctx context.Context) (Report, error) {
	start := time.Now().UTC().Truncate(time.Second)
	defer func() {
		metrics.ArchiveRunSeconds.Observe(time.Since(start).Seconds())
	}()

	ids := s.history.TelegramIDs(ctx)
	var records []domain.NotificationRecord
	for _, id := range ids {
		for _, text := range s.history.Recent(ctx, id, s.limit) {
			records = append(records, domain.NotificationRecord{
				TelegramID: id,
				Text:       text,
				ArchivedAt: start,
			})
		}
	}

	path, err := s.store.Write(records, "")
	if err != nil {
		return Report{}, fmt.Errorf("запись снапшота: %w", err)
	}
	metrics.ArchiveRowsTotal.Add(float64(len(records)))
	s.log.Info().
		Int("users", len(ids)).
		Int("rows", len(records)).
		Str("path", path).
		Msg("archive: снапшот опубликован")
	return Report{Users: len(ids), Rows: len(records), Path: path}, nil
}
