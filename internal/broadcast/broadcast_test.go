package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mototaxi-backend/internal/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

type chanSink chan Event

func (s chanSink) Deliver(ev Event) { s <- ev }

func TestParseChannel(t *testing.T) {
	cases := []struct {
		name string
		kind ChannelKind
		id   uint
	}{
		{"drivers", KindDrivers, 0},
		{"viajes.disponibles", KindAvailableTrips, 0},
		{"viaje.12", KindTrip, 12},
		{"motorista.7", KindDriver, 7},
		{"viaje.", KindUnknown, 0},
		{"viaje.0", KindUnknown, 0},
		{"viaje.abc", KindUnknown, 0},
		{"private", KindUnknown, 0},
	}
	for _, tc := range cases {
		kind, id := ParseChannel(tc.name)
		if kind != tc.kind || id != tc.id {
			t.Errorf("ParseChannel(%q) = (%v, %d), want (%v, %d)", tc.name, kind, id, tc.kind, tc.id)
		}
	}

	if TripChannel(12) != "viaje.12" || DriverChannel(7) != "motorista.7" {
		t.Error("channel helpers must round-trip with ParseChannel")
	}
}

func TestMemoryPublisher(t *testing.T) {
	sink := make(chanSink, 1)
	n := NewNotifier(NewMemory(sink), logger.Nop())

	n.Notify(context.Background(), ChannelDrivers, EventDriverStatus, map[string]any{"status": "available"})
	if err := n.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	select {
	case ev := <-sink:
		if ev.Channel != ChannelDrivers || ev.Event != EventDriverStatus {
			t.Errorf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("event was not delivered")
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, Event) error { return errors.New("broker down") }
func (failingPublisher) Name() string                         { return "failing" }
func (failingPublisher) Close() error                         { return nil }

func TestNotifierSwallowsErrors(t *testing.T) {
	n := NewNotifier(failingPublisher{}, logger.Nop())
	n.Notify(context.Background(), ChannelDrivers, EventDriverStatus, nil)
	n.Close()

	var nilNotifier *Notifier
	nilNotifier.Notify(context.Background(), ChannelDrivers, EventDriverStatus, nil)
}

func TestRedisRelay(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := make(chanSink, 4)
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- RunRedisRelay(ctx, client, sink, logger.Nop(), ready) }()

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("relay exited early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not subscribe")
	}

	pub := NewRedis(client)
	err := pub.Publish(ctx, Event{
		Channel:   TripChannel(3),
		Event:     EventTripAccepted,
		Data:      map[string]any{"trip_id": 3},
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case ev := <-sink:
		if ev.Channel != "viaje.3" || ev.Event != EventTripAccepted {
			t.Errorf("unexpected event: %+v", ev)
		}
		raw, ok := ev.Data.(json.RawMessage)
		if !ok {
			t.Fatalf("relayed data should stay raw JSON, got %T", ev.Data)
		}
		var data map[string]any
		if err := json.Unmarshal(raw, &data); err != nil || data["trip_id"].(float64) != 3 {
			t.Errorf("unexpected data: %s", raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not relayed")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("relay returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop on cancel")
	}
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	n := NewNotifier(r, logger.Nop())
	n.Notify(context.Background(), TripChannel(1), EventTripAccepted, nil)
	n.Notify(context.Background(), ChannelAvailableTrips, EventTripTaken, nil)
	n.Close()

	if got := r.Find(TripChannel(1), EventTripAccepted); len(got) != 1 {
		t.Errorf("expected one accepted event, got %d", len(got))
	}
	if len(r.Events()) != 2 {
		t.Errorf("expected two events, got %d", len(r.Events()))
	}
}

// gatePublisher держит первую публикацию, пока не закрыт release
type gatePublisher struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	count   atomic.Int64
}

func (p *gatePublisher) Publish(context.Context, Event) error {
	p.once.Do(func() { close(p.started) })
	<-p.release
	p.count.Add(1)
	return nil
}

func (p *gatePublisher) Name() string { return "gate" }
func (p *gatePublisher) Close() error { return nil }

func TestNotifyDoesNotBlockOnSlowBroker(t *testing.T) {
	pub := &gatePublisher{started: make(chan struct{}), release: make(chan struct{})}
	n := NewNotifier(pub, logger.Nop())
	defer n.Close()

	n.Notify(context.Background(), ChannelDrivers, EventDriverStatus, nil)
	select {
	case <-pub.started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not pick up the event")
	}

	// очередь заполняется, лишние события отбрасываются без ожидания
	start := time.Now()
	for i := 0; i < notifyQueueSize+10; i++ {
		n.Notify(context.Background(), ChannelDrivers, EventDriverStatus, nil)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Notify blocked for %s", elapsed)
	}

	close(pub.release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := pub.count.Load(); got != notifyQueueSize+1 {
		t.Errorf("expected %d published events, got %d", notifyQueueSize+1, got)
	}
}

func TestNotifierCloseDrainsQueue(t *testing.T) {
	r := &Recorder{}
	n := NewNotifier(r, logger.Nop())
	for i := 0; i < 5; i++ {
		n.Notify(context.Background(), ChannelDrivers, EventDriverStatus, nil)
	}
	n.Close()
	n.Close()

	if len(r.Events()) != 5 {
		t.Errorf("expected 5 events after close, got %d", len(r.Events()))
	}
	n.Notify(context.Background(), ChannelDrivers, EventDriverStatus, nil)
	if err := n.Flush(context.Background()); err != nil {
		t.Errorf("flush after close: %v", err)
	}
	if len(r.Events()) != 5 {
		t.Error("events after close must be dropped")
	}
}

func TestRevokedUser(t *testing.T) {
	r := &Recorder{}
	n := NewNotifier(r, logger.Nop())
	n.Revoke(context.Background(), DriverChannel(4), 11)
	n.Revoke(context.Background(), DriverChannel(4), 0)
	n.Close()

	got := r.Find(DriverChannel(4), EventAccessRevoked)
	if len(got) != 1 {
		t.Fatalf("expected one revoke event, got %d", len(got))
	}
	if id, ok := RevokedUser(got[0]); !ok || id != 11 {
		t.Errorf("local event: got (%d, %v)", id, ok)
	}

	// после брокера данные приходят сырым JSON
	body, _ := json.Marshal(got[0])
	ev, err := decodeEvent(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if id, ok := RevokedUser(ev); !ok || id != 11 {
		t.Errorf("relayed event: got (%d, %v)", id, ok)
	}

	if _, ok := RevokedUser(Event{Event: EventDriverLocation}); ok {
		t.Error("regular events are not revocations")
	}
}
