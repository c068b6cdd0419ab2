package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"tg-notify-bot/internal/domain"
)

const (
	filePrefix = "notifications_"
	fileExt    = ".parquet"
	timeLayout = "20060102_150405"
)

// row — фиксированная схема снапшота. У parquet нет секундной точности
// таймстемпа, поэтому колонка хранится в миллисекундах, а значения
// обрезаются до целых секунд.
type row struct {
	TelegramID int64     `parquet:"telegram_id"`
	Text       string    `parquet:"text"`
	ArchivedAt time.Time `parquet:"archived_at,timestamp(millisecond)"`
}

// Store пишет и читает неизменяемые parquet-снапшоты истории уведомлений
// в одной директории. Файлы именуются таймстемпом создания с точностью до
// секунды; повторная запись в ту же секунду получает числовой суффикс.
type Store struct {
	dir string
}

// NewStore создаёт хранилище снапшотов в указанной директории.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

var _ domain.SnapshotStore = (*Store)(nil)

// Write публикует новый снапшот атомарно: сначала временный файл, затем
// rename. Пустой набор записей даёт валидный файл с той же схемой.
func (s *Store) Write(records []domain.NotificationRecord, suffix string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("snapshot: create dir: %w", err)
	}
	path := s.nextPath(time.Now().UTC(), suffix)

	tmp, err := os.CreateTemp(s.dir, ".notifications-*.tmp")
	if err != nil {
		return "", fmt.Errorf("snapshot: create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	rows := make([]row, len(records))
	for i, r := range records {
		rows[i] = row{
			TelegramID: r.TelegramID,
			Text:       r.Text,
			ArchivedAt: r.ArchivedAt.Truncate(time.Second),
		}
	}
	w := parquet.NewGenericWriter[row](tmp, parquet.Compression(&parquet.Snappy))
	if len(rows) > 0 {
		if _, err := w.Write(rows); err != nil {
			return "", fmt.Errorf("snapshot: write rows: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("snapshot: close writer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("snapshot: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("snapshot: publish file: %w", err)
	}
	return path, nil
}

// Read загружает все строки снапшота.
func (s *Store) Read(path string) ([]domain.NotificationRecord, error) {
	rows, err := parquet.ReadFile[row](path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", filepath.Base(path), err)
	}
	records := make([]domain.NotificationRecord, len(rows))
	for i, r := range rows {
		records[i] = domain.NotificationRecord{
			TelegramID: r.TelegramID,
			Text:       r.Text,
			ArchivedAt: r.ArchivedAt.UTC(),
		}
	}
	return records, nil
}

// List возвращает снапшоты, отсортированные по имени файла, то есть по
// времени создания.
func (s *Store) List() ([]domain.Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: list dir: %w", err)
	}
	var snaps []domain.Snapshot
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		snaps = append(snaps, domain.Snapshot{Path: filepath.Join(s.dir, name), ModTime: info.ModTime()})
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Path < snaps[j].Path })
	return snaps, nil
}

// Latest возвращает самый свежий снапшот или domain.ErrNoSnapshots.
func (s *Store) Latest() (domain.Snapshot, error) {
	snaps, err := s.List()
	if err != nil {
		return domain.Snapshot{}, err
	}
	if len(snaps) == 0 {
		return domain.Snapshot{}, domain.ErrNoSnapshots
	}
	return snaps[len(snaps)-1], nil
}

// Remove удаляет файл снапшота.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("snapshot: remove %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *Store) nextPath(now time.Time, suffix string) string {
	base := filePrefix + now.Format(timeLayout) + suffix
	path := filepath.Join(s.dir, base+fileExt)
	for i := 1; ; i++ {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return path
		}
		path = filepath.Join(s.dir, fmt.Sprintf("%s_%d%s", base, i, fileExt))
	}
}
