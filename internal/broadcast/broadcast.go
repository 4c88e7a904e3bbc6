// Package broadcast публикует события реального времени в именованные каналы.
// Доставка best-effort: без подтверждений, без повторов и без истории.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"mototaxi-backend/internal/logger"
	"mototaxi-backend/internal/middleware"
)

// Каналы
const (
	ChannelDrivers        = "drivers"
	ChannelAvailableTrips = "viajes.disponibles"

	tripChannelPrefix   = "viaje."
	driverChannelPrefix = "motorista."
)

// События
const (
	EventTripRequested     = "trip.requested"
	EventTripTaken         = "trip.taken"
	EventTripAccepted      = "trip.accepted"
	EventTripStatusChanged = "trip.status_changed"
	EventDriverStatus      = "driver.status"
	EventDriverLocation    = "driver.location"

	// EventAccessRevoked - служебное событие: хаб отписывает пользователя
	// от канала и никому его не доставляет
	EventAccessRevoked = "access.revoked"
)

// AccessRevoked - данные EventAccessRevoked
type AccessRevoked struct {
	UserID uint `json:"user_id"`
}

// RevokedUser достает пользователя из EventAccessRevoked. После брокера
// Data приходит как json.RawMessage.
func RevokedUser(ev Event) (uint, bool) {
	if ev.Event != EventAccessRevoked {
		return 0, false
	}
	switch d := ev.Data.(type) {
	case AccessRevoked:
		return d.UserID, d.UserID != 0
	case *AccessRevoked:
		return d.UserID, d != nil && d.UserID != 0
	case json.RawMessage:
		var r AccessRevoked
		if err := json.Unmarshal(d, &r); err != nil {
			return 0, false
		}
		return r.UserID, r.UserID != 0
	}
	return 0, false
}

func TripChannel(tripID uint) string {
	return tripChannelPrefix + strconv.FormatUint(uint64(tripID), 10)
}

func DriverChannel(driverID uint) string {
	return driverChannelPrefix + strconv.FormatUint(uint64(driverID), 10)
}

// ChannelKind - тип канала без идентификатора
type ChannelKind int

const (
	KindUnknown ChannelKind = iota
	KindDrivers
	KindAvailableTrips
	KindTrip
	KindDriver
)

// ParseChannel разбирает имя канала. Для viaje.{id} и motorista.{id}
// возвращает идентификатор.
func ParseChannel(name string) (ChannelKind, uint) {
	switch {
	case name == ChannelDrivers:
		return KindDrivers, 0
	case name == ChannelAvailableTrips:
		return KindAvailableTrips, 0
	case strings.HasPrefix(name, tripChannelPrefix):
		if id, ok := parseID(name[len(tripChannelPrefix):]); ok {
			return KindTrip, id
		}
	case strings.HasPrefix(name, driverChannelPrefix):
		if id, ok := parseID(name[len(driverChannelPrefix):]); ok {
			return KindDriver, id
		}
	}
	return KindUnknown, 0
}

func parseID(s string) (uint, bool) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// Event - сообщение в канале
type Event struct {
	Channel   string      `json:"channel"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// wireEvent - форма события, пришедшего от брокера
type wireEvent struct {
	Channel   string          `json:"channel"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

func decodeEvent(body []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(body, &w); err != nil {
		return Event{}, fmt.Errorf("ошибка разбора события: %w", err)
	}
	if w.Channel == "" || w.Event == "" {
		return Event{}, fmt.Errorf("событие без канала или имени")
	}
	return Event{Channel: w.Channel, Event: w.Event, Data: w.Data, Timestamp: w.Timestamp}, nil
}

// Sink получает события для доставки локальным подписчикам (websocket hub)
type Sink interface {
	Deliver(ev Event)
}

// Publisher отправляет событие всем инстансам
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Name() string
	Close() error
}

// Размер очереди Notifier. При переполнении событие теряется.
const notifyQueueSize = 256

type notifyJob struct {
	ev    Event
	flush chan struct{}
}

// Notifier - то, чем пользуются сервисы. Notify не блокирует запрос:
// событие кладется в очередь, публикует его отдельная горутина.
// Ошибки только логируются и считаются.
type Notifier struct {
	pub       Publisher
	log       *logger.Logger
	queue     chan notifyJob
	closing   chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

func NewNotifier(pub Publisher, log *logger.Logger) *Notifier {
	n := &Notifier{
		pub:     pub,
		log:     log,
		queue:   make(chan notifyJob, notifyQueueSize),
		closing: make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *Notifier) Notify(_ context.Context, channel, event string, data interface{}) {
	if n == nil || n.pub == nil {
		return
	}

	ev := Event{Channel: channel, Event: event, Data: data, Timestamp: time.Now().UTC()}

	select {
	case <-n.closing:
		middleware.TrackBroadcastDropped(n.pub.Name(), event)
		return
	default:
	}

	select {
	case n.queue <- notifyJob{ev: ev}:
	default:
		middleware.TrackBroadcastDropped(n.pub.Name(), event)
		n.log.Warn(logger.Entry{
			Action:  "broadcast_queue_full",
			Message: "очередь событий переполнена, событие отброшено",
			Fields:  logger.Fields{"channel": channel, "event": event},
		})
	}
}

// Revoke просит все хабы отписать пользователя от канала
func (n *Notifier) Revoke(ctx context.Context, channel string, userID uint) {
	if userID == 0 {
		return
	}
	n.Notify(ctx, channel, EventAccessRevoked, AccessRevoked{UserID: userID})
}

// Flush ждет, пока будут отправлены все события, поставленные до вызова
func (n *Notifier) Flush(ctx context.Context) error {
	if n == nil || n.pub == nil {
		return nil
	}

	done := make(chan struct{})
	select {
	case n.queue <- notifyJob{flush: done}:
	case <-n.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-n.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close отправляет то, что уже в очереди, и останавливает горутину
func (n *Notifier) Close() {
	if n == nil || n.pub == nil {
		return
	}
	n.closeOnce.Do(func() { close(n.closing) })
	<-n.stopped
}

func (n *Notifier) run() {
	defer close(n.stopped)
	for {
		select {
		case job := <-n.queue:
			n.handle(job)
		case <-n.closing:
			for {
				select {
				case job := <-n.queue:
					n.handle(job)
				default:
					return
				}
			}
		}
	}
}

func (n *Notifier) handle(job notifyJob) {
	if job.flush != nil {
		close(job.flush)
		return
	}
	n.publish(job.ev)
}

func (n *Notifier) publish(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := n.pub.Publish(ctx, ev)
	middleware.TrackBroadcast(n.pub.Name(), ev.Event, err)
	if err != nil {
		n.log.Warn(logger.Entry{
			Action:  "broadcast_publish_failed",
			Message: "не удалось опубликовать событие",
			Err:     err,
			Fields:  logger.Fields{"channel": ev.Channel, "event": ev.Event, "driver": n.pub.Name()},
		})
	}
}

// Memory доставляет события только в локальный hub
type Memory struct {
	sink Sink
}

func NewMemory(sink Sink) *Memory {
	return &Memory{sink: sink}
}

func (m *Memory) Publish(_ context.Context, ev Event) error {
	m.sink.Deliver(ev)
	return nil
}

func (m *Memory) Name() string { return "memory" }
func (m *Memory) Close() error { return nil }

// Recorder запоминает опубликованные события. Используется в тестах.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Name() string { return "recorder" }
func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Find возвращает события с заданным именем в канале
func (r *Recorder) Find(channel, event string) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Channel == channel && ev.Event == event {
			out = append(out, ev)
		}
	}
	return out
}
