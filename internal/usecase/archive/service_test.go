package archive

import (
	"context"
	"sort"
	"testing"

	"github.com/rs/zerolog"

	"tg-notify-bot/internal/adapters/snapshot"
	"tg-notify-bot/internal/domain"
)

type stubHistory struct {
	windows map[int64][]string
}

func (s *stubHistory) Push(context.Context, int64, string) {}
func (s *stubHistory) Clear(context.Context, int64)        {}
func (s *stubHistory) TelegramIDs(context.Context) []int64 {
	var ids []int64
	for id := range s.windows {
		ids = append(ids, id)
	}
	// Redis-реализация отдаёт отсортированный список.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
func (s *stubHistory) Recent(_ context.Context, telegramID int64, limit int) []string {
	texts := s.windows[telegramID]
	if len(texts) > limit {
		texts = texts[:limit]
	}
	return texts
}

func TestRun(t *testing.T) {
	history := &stubHistory{windows: map[int64][]string{
		10: {"свежее", "старое"},
		20: {"единственное"},
	}}
	store := snapshot.NewStore(t.TempDir())
	service := NewService(history, store, 50, zerolog.Nop())

	report, err := service.Run(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if report.Users != 2 || report.Rows != 3 {
		t.Fatalf("ожидали 2 пользователей и 3 строки, получили %d/%d", report.Users, report.Rows)
	}

	records, err := store.Read(report.Path)
	if err != nil {
		t.Fatalf("снапшот не читается: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("ожидали 3 записи, получили %d", len(records))
	}
	if records[0].TelegramID != 10 || records[0].Text != "свежее" {
		t.Fatalf("порядок записей нарушен: %+v", records[0])
	}
	// Весь запуск получает один общий таймстемп.
	for _, r := range records {
		if !r.ArchivedAt.Equal(records[0].ArchivedAt) {
			t.Fatalf("ожидали общий таймстемп запуска, получили %v и %v", records[0].ArchivedAt, r.ArchivedAt)
		}
	}
}

func TestRunRespectsLimit(t *testing.T) {
	history := &stubHistory{windows: map[int64][]string{1: {"а", "б", "в", "г"}}}
	store := snapshot.NewStore(t.TempDir())
	service := NewService(history, store, 2, zerolog.Nop())

	report, err := service.Run(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if report.Rows != 2 {
		t.Fatalf("ожидали 2 строки по лимиту, получили %d", report.Rows)
	}
}

func TestRunEmptyHistory(t *testing.T) {
	store := snapshot.NewStore(t.TempDir())
	service := NewService(&stubHistory{}, store, 50, zerolog.Nop())

	report, err := service.Run(context.Background())
	if err != nil {
		t.Fatalf("пустая история не должна быть ошибкой: %v", err)
	}
	if report.Rows != 0 {
		t.Fatalf("ожидали пустой снапшот")
	}
	records, err := store.Read(report.Path)
	if err != nil {
		t.Fatalf("пустой снапшот не читается: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("ожидали 0 записей, получили %d", len(records))
	}
}

func TestRerunsProduceDistinctSnapshots(t *testing.T) {
	history := &stubHistory{windows: map[int64][]string{1: {"текст"}}}
	store := snapshot.NewStore(t.TempDir())
	service := NewService(history, store, 50, zerolog.Nop())

	first, err := service.Run(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	second, err := service.Run(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if first.Path == second.Path {
		t.Fatalf("повторный запуск не должен переиспользовать имя файла: %s", first.Path)
	}
	snaps, err := store.List()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("ожидали 2 снапшота, получили %d", len(snaps))
	}
}

var _ domain.HistoryCache = (*stubHistory)(nil)
