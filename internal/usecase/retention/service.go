package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tg-notify-bot/internal/domain"
	"tg-notify-bot/internal/infra/metrics"
)

// Report — итог одного запуска очистки.
type Report struct {
	Removed  int
	Examined int
}

// Service удаляет снапшоты старше периода хранения. Без блокировок:
// удаляются только файлы строго старше отсечки, поэтому параллельная
// архивация не затрагивается.
type Service struct {
	store  domain.SnapshotStore
	maxAge time.Duration
	log    zerolog.Logger
}

// NewService создаёт job очистки с указанным периодом хранения.
func NewService(store domain.SnapshotStore, maxAge time.Duration, logger zerolog.Logger) *Service {
	return &Service{store: store, maxAge: maxAge, log: logger}
}

// Run удаляет все снапшоты с mtime строго раньше now-maxAge.
func (s *Service) Run(ctx context.Context) (Report, error) {
	snaps, err := s.store.List()
	if err != nil {
		return Report{}, fmt.Errorf("список снапшотов: %w", err)
	}
	cutoff := time.Now().UTC().Add(-s.maxAge)

	removed := 0
	for _, snap := range snaps {
		if err := ctx.Err(); err != nil {
			return Report{Removed: removed, Examined: len(snaps)}, err
		}
		if !snap.ModTime.Before(cutoff) {
			continue
		}
		if err := s.store.Remove(snap.Path); err != nil {
			s.log.Warn().Err(err).Str("path", snap.Path).Msg("retention: файл не удалён")
			continue
		}
		removed++
		s.log.Info().Str("path", snap.Path).Msg("retention: удалён устаревший снапшот")
	}
	metrics.RetentionRemovedTotal.Add(float64(removed))
	s.log.Info().Int("removed", removed).Int("examined", len(snaps)).Msg("retention: очистка завершена")
	return Report{Removed: removed, Examined: len(snaps)}, nil
}
