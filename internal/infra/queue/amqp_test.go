package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

func TestRunHandlerErrorDoesNotStopLoop(t *testing.T) {
	deliveries := make(chan amqp.Delivery, 2)
	deliveries <- amqp.Delivery{Body: []byte("битое")}
	deliveries <- amqp.Delivery{Body: []byte("нормальное")}
	close(deliveries)

	var seen []string
	handler := func(_ context.Context, body []byte) error {
		seen = append(seen, string(body))
		if string(body) == "битое" {
			return errors.New("обработка не удалась")
		}
		return nil
	}

	c := NewNotificationConsumer("amqp://localhost", "notifications", zerolog.Nop())
	c.run(context.Background(), deliveries, handler)

	if len(seen) != 2 {
		t.Fatalf("ожидали обработку обоих событий, получили %v", seen)
	}
}

func TestRunStopsOnClosedChannel(t *testing.T) {
	deliveries := make(chan amqp.Delivery)
	close(deliveries)

	c := NewNotificationConsumer("amqp://localhost", "notifications", zerolog.Nop())
	done := make(chan struct{})
	go func() {
		c.run(context.Background(), deliveries, func(context.Context, []byte) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("run не завершился после закрытия канала доставок")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	deliveries := make(chan amqp.Delivery)
	ctx, cancel := context.WithCancel(context.Background())

	c := NewNotificationConsumer("amqp://localhost", "notifications", zerolog.Nop())
	done := make(chan struct{})
	go func() {
		c.run(ctx, deliveries, func(context.Context, []byte) error { return nil })
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("run не завершился после отмены контекста")
	}
}

func TestStartBadURLResetsState(t *testing.T) {
	c := NewNotificationConsumer("не-адрес", "notifications", zerolog.Nop())
	if c.State() != StateStopped {
		t.Fatalf("новый консьюмер должен быть остановлен, состояние %s", c.State())
	}

	err := c.Start(context.Background(), func(context.Context, []byte) error { return nil })
	if err == nil {
		t.Fatalf("ожидали ошибку подключения")
	}
	if c.State() != StateStopped {
		t.Fatalf("после неудачного запуска консьюмер должен вернуться в stopped, состояние %s", c.State())
	}

	// Повторный запуск после сбоя разрешён.
	if err := c.Start(context.Background(), func(context.Context, []byte) error { return nil }); err == nil {
		t.Fatalf("ожидали ошибку подключения")
	}
}

func TestStopOnStoppedIsNoop(t *testing.T) {
	c := NewNotificationConsumer("amqp://localhost", "notifications", zerolog.Nop())
	c.Stop()
	if c.State() != StateStopped {
		t.Fatalf("Stop на остановленном консьюмере не должен менять состояние")
	}
}

func TestStateString(t *testing.T) {
	pairs := map[State]string{
		StateStopped:  "stopped",
		StateStarting: "starting",
		StateRunning:  "running",
		StateStopping: "stopping",
	}
	for state, want := range pairs {
		if got := state.String(); got != want {
			t.Fatalf("State(%d).String() = %q, ожидали %q", state, got, want)
		}
	}
}
