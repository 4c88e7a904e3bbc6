package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"mototaxi-backend/internal/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeName - topic exchange для событий, routing key = имя канала
const ExchangeName = "broadcast"

var errAMQPNotConnected = errors.New("нет соединения с RabbitMQ")

// session - одно соединение с брокером: канал публикации и очереди ретранслятора
type session interface {
	Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error
	Consume() (<-chan amqp.Delivery, error)
	NotifyClose() <-chan *amqp.Error
	Close() error
}

type dialFunc func(url string) (session, error)

// AMQP публикует события в RabbitMQ. После разрыва соединения
// переподключается сам, публикация и ретранслятор продолжают работу.
type AMQP struct {
	url        string
	dial       dialFunc
	log        *logger.Logger
	retryDelay time.Duration
	maxDelay   time.Duration

	mu      sync.RWMutex
	sess    session
	changed chan struct{} // закрывается при смене соединения

	closing   chan struct{}
	closeOnce sync.Once
}

func newAMQP(url string, dial dialFunc, log *logger.Logger) *AMQP {
	return &AMQP{
		url:        url,
		dial:       dial,
		log:        log,
		retryDelay: time.Second,
		maxDelay:   30 * time.Second,
		changed:    make(chan struct{}),
		closing:    make(chan struct{}),
	}
}

// DialAMQP подключается с повторами, объявляет exchange и следит за соединением
func DialAMQP(ctx context.Context, url string, maxAttempts int, log *logger.Logger) (*AMQP, error) {
	a := newAMQP(url, dialSession, log)
	if err := a.connect(ctx, maxAttempts); err != nil {
		return nil, err
	}
	go a.watch(ctx)
	return a, nil
}

// connect повторяет попытки с растущей паузой. maxAttempts <= 0 - без ограничения.
func (a *AMQP) connect(ctx context.Context, maxAttempts int) error {
	delay := a.retryDelay

	for attempt := 1; ; attempt++ {
		select {
		case <-a.closing:
			return errAMQPNotConnected
		default:
		}

		sess, err := a.dial(a.url)
		if err == nil {
			a.setSession(sess)
			a.log.Info(logger.Entry{Action: "rabbitmq_connected", Fields: logger.Fields{"attempt": attempt}})
			return nil
		}

		a.log.Warn(logger.Entry{
			Action:  "rabbitmq_connection_attempt_failed",
			Message: fmt.Sprintf("attempt %d/%d", attempt, maxAttempts),
			Err:     err,
		})
		if maxAttempts > 0 && attempt >= maxAttempts {
			return fmt.Errorf("не удалось подключиться к RabbitMQ после %d попыток: %w", maxAttempts, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.closing:
			return errAMQPNotConnected
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * 1.5)
			if delay > a.maxDelay {
				delay = a.maxDelay
			}
		}
	}
}

func (a *AMQP) setSession(sess session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sess = sess
	close(a.changed)
	a.changed = make(chan struct{})
}

func (a *AMQP) current() (session, <-chan struct{}) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sess, a.changed
}

// watch ждет закрытия соединения и переподключается до отмены ctx
func (a *AMQP) watch(ctx context.Context) {
	for {
		sess, _ := a.current()
		if sess == nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-a.closing:
			return
		case amqpErr := <-sess.NotifyClose():
			var cause error
			if amqpErr != nil {
				cause = amqpErr
			}
			a.log.Warn(logger.Entry{Action: "rabbitmq_connection_lost", Message: "переподключаемся", Err: cause})

			a.mu.Lock()
			if a.sess == sess {
				a.sess = nil
			}
			a.mu.Unlock()
			_ = sess.Close()

			if err := a.connect(ctx, 0); err != nil {
				return
			}
			a.log.Info(logger.Entry{Action: "rabbitmq_reconnected"})
		}
	}
}

func (a *AMQP) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %w", err)
	}

	sess, _ := a.current()
	if sess == nil {
		return errAMQPNotConnected
	}
	return sess.Publish(ctx, ev.Channel, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Transient,
		Timestamp:    ev.Timestamp,
	})
}

func (a *AMQP) Name() string { return "amqp" }

func (a *AMQP) Close() error {
	a.closeOnce.Do(func() { close(a.closing) })

	a.mu.Lock()
	sess := a.sess
	a.sess = nil
	a.mu.Unlock()

	if sess != nil {
		return sess.Close()
	}
	return nil
}

// RunRelay передает события из эксклюзивной очереди в sink до отмены ctx.
// После переподключения очередь объявляется заново.
func (a *AMQP) RunRelay(ctx context.Context, sink Sink) error {
	for {
		sess, changed := a.current()
		if sess != nil {
			msgs, err := sess.Consume()
			if err != nil {
				a.log.Warn(logger.Entry{Action: "broadcast_relay_consume_failed", Err: err, Fields: logger.Fields{"driver": "amqp"}})
			} else {
				a.log.Info(logger.Entry{Action: "broadcast_relay_started", Fields: logger.Fields{"driver": "amqp"}})
				if a.relay(ctx, msgs, sink) {
					return nil
				}
				a.log.Warn(logger.Entry{Action: "broadcast_relay_interrupted", Fields: logger.Fields{"driver": "amqp"}})
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-a.closing:
			return nil
		case <-changed:
		case <-time.After(a.retryDelay):
		}
	}
}

// relay возвращает true, если пора остановиться, и false, если закрылась доставка
func (a *AMQP) relay(ctx context.Context, msgs <-chan amqp.Delivery, sink Sink) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case <-a.closing:
			return true
		case msg, ok := <-msgs:
			if !ok {
				return false
			}
			ev, err := decodeEvent(msg.Body)
			if err != nil {
				a.log.Warn(logger.Entry{Action: "broadcast_relay_bad_message", Err: err})
				continue
			}
			sink.Deliver(ev)
		}
	}
}

// amqpSession - реальное соединение amqp091
type amqpSession struct {
	conn   *amqp.Connection
	pub    *amqp.Channel
	mu     sync.Mutex
	closed <-chan *amqp.Error
}

func dialSession(url string) (session, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareExchange(ch); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &amqpSession{
		conn:   conn,
		pub:    ch,
		closed: conn.NotifyClose(make(chan *amqp.Error, 1)),
	}, nil
}

func declareExchange(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	return nil
}

func (s *amqpSession) Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	// amqp.Channel не потокобезопасен для публикации
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pub.PublishWithContext(
		ctx,
		ExchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		msg,
	)
}

// Consume объявляет эксклюзивную очередь, привязанную ко всем каналам.
// Канал закрывается вместе с соединением.
func (s *amqpSession) Consume() (<-chan amqp.Delivery, error) {
	ch, err := s.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open relay channel: %w", err)
	}

	if err := declareExchange(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}

	q, err := ch.QueueDeclare(
		"",    // имя выдаст брокер
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "#", ExchangeName, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("consume: %w", err)
	}
	return msgs, nil
}

func (s *amqpSession) NotifyClose() <-chan *amqp.Error { return s.closed }

func (s *amqpSession) Close() error {
	if s.conn.IsClosed() {
		return nil
	}
	return s.conn.Close()
}
