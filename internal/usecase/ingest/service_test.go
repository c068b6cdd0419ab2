package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"tg-notify-bot/internal/domain"
)

type stubHistory struct {
	pushed map[int64][]string
}

func (s *stubHistory) Push(_ context.Context, telegramID int64, text string) {
	if s.pushed == nil {
		s.pushed = map[int64][]string{}
	}
	s.pushed[telegramID] = append(s.pushed[telegramID], text)
}
func (s *stubHistory) Recent(context.Context, int64, int) []string { return nil }
func (s *stubHistory) Clear(context.Context, int64)                {}
func (s *stubHistory) TelegramIDs(context.Context) []int64         { return nil }

type stubNotifier struct {
	sent map[int64][]string
	err  error
}

func (s *stubNotifier) Notify(_ context.Context, telegramID int64, text string) error {
	if s.err != nil {
		return s.err
	}
	if s.sent == nil {
		s.sent = map[int64][]string{}
	}
	s.sent[telegramID] = append(s.sent[telegramID], text)
	return nil
}

func TestHandleMessage(t *testing.T) {
	history := &stubHistory{}
	notifier := &stubNotifier{}
	service := NewService(history, notifier, zerolog.Nop())

	body := []byte(`{"telegram_id":42,"text":"открыт issue","title":"Новый issue","service":"github","type":"issue","url":"https://github.com/o/r/issues/1"}`)
	if err := service.HandleMessage(context.Background(), body); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	sent := notifier.sent[42]
	if len(sent) != 1 {
		t.Fatalf("ожидали одну доставку, получили %d", len(sent))
	}
	for _, part := range []string{"Новый issue", "открыт issue", "Сервис: github", "Тип: issue", "https://github.com/o/r/issues/1"} {
		if !strings.Contains(sent[0], part) {
			t.Fatalf("в тексте нет %q: %q", part, sent[0])
		}
	}
	if len(history.pushed[42]) != 1 || history.pushed[42][0] != sent[0] {
		t.Fatalf("в историю должен попасть тот же текст, что и в доставку")
	}
}

func TestHandleMessageDefaultTitle(t *testing.T) {
	notifier := &stubNotifier{}
	service := NewService(&stubHistory{}, notifier, zerolog.Nop())

	if err := service.HandleMessage(context.Background(), []byte(`{"telegram_id":1,"text":"текст"}`)); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.HasPrefix(notifier.sent[1][0], "Новое уведомление") {
		t.Fatalf("ожидали заголовок по умолчанию: %q", notifier.sent[1][0])
	}
	if strings.Contains(notifier.sent[1][0], "Сервис:") {
		t.Fatalf("необязательные поля не должны появляться пустыми")
	}
}

func TestHandleMessageMalformed(t *testing.T) {
	history := &stubHistory{}
	notifier := &stubNotifier{}
	service := NewService(history, notifier, zerolog.Nop())

	if err := service.HandleMessage(context.Background(), []byte(`{"telegram_id":`)); err == nil {
		t.Fatalf("ожидали ошибку декодирования")
	}
	if len(notifier.sent) != 0 || len(history.pushed) != 0 {
		t.Fatalf("битое событие не должно давать побочных эффектов")
	}
}

func TestHandleMessageMissingFields(t *testing.T) {
	service := NewService(&stubHistory{}, &stubNotifier{}, zerolog.Nop())

	err := service.HandleMessage(context.Background(), []byte(`{"text":"без адресата"}`))
	if !errors.Is(err, domain.ErrMissingTelegramID) {
		t.Fatalf("ожидали ErrMissingTelegramID, получили %v", err)
	}

	err = service.HandleMessage(context.Background(), []byte(`{"telegram_id":42}`))
	if !errors.Is(err, domain.ErrMissingText) {
		t.Fatalf("ожидали ErrMissingText, получили %v", err)
	}
}

func TestHandleMessagePushesEvenIfDeliveryFails(t *testing.T) {
	history := &stubHistory{}
	notifier := &stubNotifier{err: errors.New("телеграм недоступен")}
	service := NewService(history, notifier, zerolog.Nop())

	err := service.HandleMessage(context.Background(), []byte(`{"telegram_id":42,"text":"текст"}`))
	if err == nil {
		t.Fatalf("ожидали ошибку доставки")
	}
	if len(history.pushed[42]) != 1 {
		t.Fatalf("история должна пополняться и при сбое доставки")
	}
}
