package digest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tg-notify-bot/internal/domain"
	"tg-notify-bot/internal/infra/metrics"
)

// ErrEmptyHistory возвращается, когда суммировать нечего.
var ErrEmptyHistory = errors.New("нет уведомлений для дайджеста")

// ErrSummaryUnavailable возвращается при любой ошибке сервиса суммаризации.
var ErrSummaryUnavailable = errors.New("сервис суммаризации недоступен")

const (
	// interactiveLimit — сколько последних уведомлений берёт дайджест по запросу.
	interactiveLimit = 20
	// summarizeBatchCap — максимум текстов в одном запросе к суммаризатору.
	summarizeBatchCap = 30
)

// Service строит дайджесты: интерактивно из окна истории и пакетно из
// последнего снапшота. Успешные дайджесты кладутся в кэш с TTL.
type Service struct {
	history    domain.HistoryCache
	snapshots  domain.SnapshotStore
	summarizer domain.Summarizer
	results    domain.DigestCache
	maxTokens  int
	resultTTL  time.Duration
	log        zerolog.Logger
}

// NewService создаёт сервис дайджестов.
func NewService(history domain.HistoryCache, snapshots domain.SnapshotStore, summarizer domain.Summarizer, results domain.DigestCache, maxTokens int, resultTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		history:    history,
		snapshots:  snapshots,
		summarizer: summarizer,
		results:    results,
		maxTokens:  maxTokens,
		resultTTL:  resultTTL,
		log:        logger,
	}
}

// DigestFor строит дайджест по запросу из окна истории пользователя.
func (s *Service) DigestFor(ctx context.Context, telegramID int64) (domain.DigestResult, error) {
	metrics.IncDigestOverall()
	metrics.IncDigestForUser(telegramID)
	start := time.Now()
	defer func() {
		metrics.DigestBuildSeconds.Observe(time.Since(start).Seconds())
	}()

	texts := s.history.Recent(ctx, telegramID, interactiveLimit)
	if len(texts) == 0 {
		return domain.DigestResult{}, ErrEmptyHistory
	}

	result, err := s.buildFor(ctx, telegramID, texts)
	if err != nil {
		return domain.DigestResult{}, err
	}
	if err := s.results.Set(ctx, result); err != nil {
		// По запросу кэш не обязателен: результат уже на руках.
		s.log.Debug().Err(err).Int64("telegram_id", telegramID).Msg("digest: результат не закэширован")
	}
	return result, nil
}

// BatchDigest строит дайджесты для всех пользователей из последнего
// снапшота. Сбой одного пользователя изолирован и не прерывает пакет;
// отсутствие снапшотов — не ошибка, а пустой отчёт.
func (s *Service) BatchDigest(ctx context.Context) (domain.BatchReport, error) {
	snap, err := s.snapshots.Latest()
	if err != nil {
		if errors.Is(err, domain.ErrNoSnapshots) {
			s.log.Info().Msg("digest: снапшотов нет, суммировать нечего")
			return domain.BatchReport{}, nil
		}
		return domain.BatchReport{}, fmt.Errorf("поиск снапшота: %w", err)
	}

	records, err := s.snapshots.Read(snap.Path)
	if err != nil {
		return domain.BatchReport{}, fmt.Errorf("чтение снапшота: %w", err)
	}

	// Группировка по пользователю с сохранением порядка строк.
	grouped := make(map[int64][]string)
	var order []int64
	for _, r := range records {
		if _, ok := grouped[r.TelegramID]; !ok {
			order = append(order, r.TelegramID)
		}
		grouped[r.TelegramID] = append(grouped[r.TelegramID], r.Text)
	}

	report := domain.BatchReport{Snapshot: snap.Path, Rows: len(records)}
	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome := domain.BatchOutcome{TelegramID: id}
		result, err := s.buildFor(ctx, id, grouped[id])
		if err == nil {
			err = s.results.Set(ctx, result)
		}
		if err != nil {
			outcome.Err = err
			s.log.Warn().Err(err).Int64("telegram_id", id).Msg("digest: пользователь пропущен")
		} else {
			s.log.Info().Int64("telegram_id", id).Msg("digest: дайджест сохранён")
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	s.log.Info().
		Str("snapshot", snap.Path).
		Int("users", len(order)).
		Int("failed", report.Failed()).
		Msg("digest: пакет завершён")
	return report, nil
}

// buildFor вызывает суммаризатор для ограниченной пачки текстов. Любая
// ошибка транспорта сворачивается в ErrSummaryUnavailable.
func (s *Service) buildFor(ctx context.Context, telegramID int64, texts []string) (domain.DigestResult, error) {
	if len(texts) > summarizeBatchCap {
		texts = texts[:summarizeBatchCap]
	}
	summary, err := s.summarizer.Summarize(ctx, texts, s.maxTokens)
	if err != nil {
		s.log.Warn().Err(err).Int64("telegram_id", telegramID).Msg("digest: суммаризация не удалась")
		return domain.DigestResult{}, ErrSummaryUnavailable
	}
	return domain.DigestResult{
		TelegramID: telegramID,
		Summary:    summary,
		ExpiresAt:  time.Now().UTC().Add(s.resultTTL),
	}, nil
}
