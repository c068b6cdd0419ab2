package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"tg-notify-bot/internal/infra/metrics"
)

// ErrAlreadyRunning возвращается при повторном запуске консьюмера.
var ErrAlreadyRunning = errors.New("консьюмер уже запущен")

// State — состояние консьюмера.
type State int32

const (
	// StateStopped — консьюмер не работает.
	StateStopped State = iota
	// StateStarting — идёт подключение к брокеру.
	StateStarting
	// StateRunning — события обрабатываются.
	StateRunning
	// StateStopping — получен запрос на остановку.
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// Handler обрабатывает тело одного события.
type Handler func(ctx context.Context, body []byte) error

// NotificationConsumer читает события уведомлений из одной очереди AMQP.
// Доставки подтверждаются автоматически при получении, поэтому событие,
// принятое до падения процесса, но не обработанное, теряется (at-most-once).
type NotificationConsumer struct {
	url   string
	queue string
	log   zerolog.Logger

	mu     sync.Mutex
	state  State
	conn   *amqp.Connection
	cancel context.CancelFunc
}

// NewNotificationConsumer создаёт консьюмер очереди уведомлений.
func NewNotificationConsumer(url, queue string, logger zerolog.Logger) *NotificationConsumer {
	return &NotificationConsumer{url: url, queue: queue, log: logger}
}

// State возвращает текущее состояние консьюмера.
func (c *NotificationConsumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start подключается к брокеру и обрабатывает события по одному, пока не
// будет вызван Stop или не оборвётся соединение. Ошибка обработчика
// логируется и не прерывает цикл.
func (c *NotificationConsumer) Start(ctx context.Context, handler Handler) error {
	c.mu.Lock()
	if c.state != StateStopped {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.state = StateStarting
	c.mu.Unlock()
	defer c.reset()

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("amqp: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp: open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("amqp: declare queue: %w", err)
	}
	tag := "notify-bot-" + uuid.NewString()
	deliveries, err := ch.Consume(c.queue, tag, true, false, false, false, nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp: consume: %w", err)
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.state != StateStarting {
		// Stop успели вызвать во время подключения.
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.cancel = cancel
	c.state = StateRunning
	c.mu.Unlock()

	c.log.Info().Str("queue", c.queue).Msg("queue: консьюмер запущен")
	c.run(runCtx, deliveries, handler)

	select {
	case amqpErr := <-closed:
		if amqpErr != nil && c.State() != StateStopping {
			return fmt.Errorf("amqp: connection closed: %w", amqpErr)
		}
	default:
	}
	return nil
}

// run обрабатывает доставки строго по одной до закрытия канала или контекста.
func (c *NotificationConsumer) run(ctx context.Context, deliveries <-chan amqp.Delivery, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			metrics.EventsConsumedTotal.Inc()
			if err := handler(ctx, d.Body); err != nil {
				metrics.EventHandlerErrors.Inc()
				c.log.Error().Err(err).Msg("queue: ошибка обработки события")
			}
		}
	}
}

// Stop останавливает консьюмер. Безопасен из другой горутины: текущая
// доставка дообрабатывается, новые не принимаются, Start возвращается.
func (c *NotificationConsumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateStopped, StateStopping:
		return
	}
	c.state = StateStopping
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.log.Info().Msg("queue: консьюмер останавливается")
}

func (c *NotificationConsumer) reset() {
	c.mu.Lock()
	c.state = StateStopped
	c.conn = nil
	c.cancel = nil
	c.mu.Unlock()
}
