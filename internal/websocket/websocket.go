package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"mototaxi-backend/internal/broadcast"
	"mototaxi-backend/internal/logger"
	"mototaxi-backend/internal/middleware"
	"mototaxi-backend/internal/models"

	"github.com/gorilla/websocket"
)

// Типы сообщений от сервера
const (
	TypeEvent        = "event"
	TypeSubscribed   = "subscribed"
	TypeUnsubscribed = "unsubscribed"
	TypeError        = "error"
	TypePong         = "pong"
)

// Действия клиента
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMessageSize   = 4096
	sendBufferSize   = 64
	maxSubscriptions = 32
)

// ServerMessage - формат сообщения сервера
type ServerMessage struct {
	Type      string      `json:"type"`
	Channel   string      `json:"channel,omitempty"`
	Event     string      `json:"event,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp *time.Time  `json:"timestamp,omitempty"`
	Time      int64       `json:"time,omitempty"`
}

// ClientMessage - кадр от клиента: подписка, отписка или ping
type ClientMessage struct {
	Type    string `json:"type"`
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// Authorizer проверяет право подписки на канал
type Authorizer interface {
	CanSubscribe(ctx context.Context, userID uint, role models.Role, channel string) (bool, error)
}

// Manager держит соединения и их подписки. Реализует broadcast.Sink.
type Manager struct {
	channels      map[string]map[*Client]bool
	clientsByUser map[uint]map[*Client]bool
	register      chan *Client
	unregister    chan *Client
	done          chan struct{}
	auth          Authorizer
	log           *logger.Logger
	mutex         sync.RWMutex
}

// Client - одно websocket соединение
type Client struct {
	manager *Manager
	conn    *websocket.Conn
	userID  uint
	role    models.Role
	send    chan []byte
	subs    map[string]bool
	closed  bool
}

func NewManager(auth Authorizer, log *logger.Logger) *Manager {
	return &Manager{
		channels:      make(map[string]map[*Client]bool),
		clientsByUser: make(map[uint]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		done:          make(chan struct{}),
		auth:          auth,
		log:           log,
	}
}

// Run обрабатывает регистрацию и отключение клиентов до отмены ctx
func (m *Manager) Run(ctx context.Context) {
	m.log.Info(logger.Entry{Action: "websocket_manager_started"})
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case c := <-m.register:
			m.addClient(c)
		case c := <-m.unregister:
			m.removeClient(c)
		}
	}
}

func newClient(m *Manager, conn *websocket.Conn, userID uint, role models.Role) *Client {
	return &Client{
		manager: m,
		conn:    conn,
		userID:  userID,
		role:    role,
		send:    make(chan []byte, sendBufferSize),
		subs:    make(map[string]bool),
	}
}

func (m *Manager) addClient(c *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.clientsByUser[c.userID]; !ok {
		m.clientsByUser[c.userID] = make(map[*Client]bool)
	}
	m.clientsByUser[c.userID][c] = true
	middleware.WebsocketConnections.Inc()

	m.log.Debug(logger.Entry{Action: "websocket_client_registered", UserID: c.userID})
}

// removeClient снимает все подписки и закрывает очередь отправки.
// Повторный вызов ничего не делает.
func (m *Manager) removeClient(c *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	for ch := range c.subs {
		if subs, ok := m.channels[ch]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(m.channels, ch)
			}
		}
	}
	if conns, ok := m.clientsByUser[c.userID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(m.clientsByUser, c.userID)
		}
	}
	close(c.send)
	middleware.WebsocketConnections.Dec()

	m.log.Debug(logger.Entry{Action: "websocket_client_unregistered", UserID: c.userID})
}

func (m *Manager) closeAll() {
	m.mutex.RLock()
	var all []*Client
	for _, conns := range m.clientsByUser {
		for c := range conns {
			all = append(all, c)
		}
	}
	m.mutex.RUnlock()

	for _, c := range all {
		m.removeClient(c)
	}
}

func (m *Manager) subscribe(c *Client, channel string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if c.closed {
		return false
	}
	if !c.subs[channel] && len(c.subs) >= maxSubscriptions {
		return false
	}
	c.subs[channel] = true
	if _, ok := m.channels[channel]; !ok {
		m.channels[channel] = make(map[*Client]bool)
	}
	m.channels[channel][c] = true
	return true
}

func (m *Manager) unsubscribe(c *Client, channel string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(c.subs, channel)
	if subs, ok := m.channels[channel]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(m.channels, channel)
		}
	}
}

// Deliver рассылает событие подписчикам канала. Клиент с переполненной
// очередью отключается. access.revoked не доставляется, а снимает подписку.
func (m *Manager) Deliver(ev broadcast.Event) {
	if userID, ok := broadcast.RevokedUser(ev); ok {
		m.revoke(ev.Channel, userID)
		return
	}

	ts := ev.Timestamp
	msg, err := json.Marshal(ServerMessage{
		Type:      TypeEvent,
		Channel:   ev.Channel,
		Event:     ev.Event,
		Data:      ev.Data,
		Timestamp: &ts,
	})
	if err != nil {
		m.log.Error(logger.Entry{Action: "websocket_marshal_failed", Err: err, Fields: logger.Fields{"event": ev.Event}})
		return
	}

	var slow []*Client

	m.mutex.RLock()
	for c := range m.channels[ev.Channel] {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	m.mutex.RUnlock()

	for _, c := range slow {
		m.log.Warn(logger.Entry{Action: "websocket_slow_client_dropped", UserID: c.userID})
		m.removeClient(c)
	}
}

// revoke снимает подписку пользователя на канал на всех его соединениях
func (m *Manager) revoke(channel string, userID uint) {
	var affected []*Client

	m.mutex.Lock()
	for c := range m.clientsByUser[userID] {
		if !c.subs[channel] {
			continue
		}
		delete(c.subs, channel)
		if subs, ok := m.channels[channel]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(m.channels, channel)
			}
		}
		affected = append(affected, c)
	}
	m.mutex.Unlock()

	for _, c := range affected {
		m.enqueue(c, ServerMessage{Type: TypeUnsubscribed, Channel: channel, Message: "доступ к каналу отозван"})
	}
	if len(affected) > 0 {
		m.log.Debug(logger.Entry{Action: "websocket_access_revoked", UserID: userID, Fields: logger.Fields{"channel": channel}})
	}
}

// enqueue отправляет ответ клиенту. false - клиент закрыт или не успевает.
func (m *Manager) enqueue(c *Client, msg ServerMessage) bool {
	body, err := json.Marshal(msg)
	if err != nil {
		return false
	}

	m.mutex.RLock()
	if c.closed {
		m.mutex.RUnlock()
		return false
	}
	select {
	case c.send <- body:
		m.mutex.RUnlock()
		return true
	default:
		m.mutex.RUnlock()
		m.removeClient(c)
		return false
	}
}

// Subscribers - количество подписчиков канала
func (m *Manager) Subscribers(channel string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.channels[channel])
}

// Connections - количество соединений пользователя
func (m *Manager) Connections(userID uint) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clientsByUser[userID])
}

// handle обрабатывает один кадр клиента
func (m *Manager) handle(ctx context.Context, c *Client, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		m.enqueue(c, ServerMessage{Type: TypeError, Message: "некорректный JSON"})
		return
	}

	if msg.Type == "ping" {
		m.enqueue(c, ServerMessage{Type: TypePong, Time: time.Now().Unix()})
		return
	}

	switch msg.Action {
	case ActionSubscribe:
		if msg.Channel == "" {
			m.enqueue(c, ServerMessage{Type: TypeError, Message: "не указан канал"})
			return
		}

		authCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		allowed, err := m.auth.CanSubscribe(authCtx, c.userID, c.role, msg.Channel)
		cancel()
		if err != nil {
			m.log.Error(logger.Entry{Action: "websocket_authorize_failed", UserID: c.userID, Err: err,
				Fields: logger.Fields{"channel": msg.Channel}})
			m.enqueue(c, ServerMessage{Type: TypeError, Channel: msg.Channel, Message: "внутренняя ошибка"})
			return
		}
		if !allowed {
			m.enqueue(c, ServerMessage{Type: TypeError, Channel: msg.Channel, Message: "доступ к каналу запрещен"})
			return
		}
		if !m.subscribe(c, msg.Channel) {
			m.enqueue(c, ServerMessage{Type: TypeError, Channel: msg.Channel, Message: "слишком много подписок"})
			return
		}
		m.enqueue(c, ServerMessage{Type: TypeSubscribed, Channel: msg.Channel})

	case ActionUnsubscribe:
		m.unsubscribe(c, msg.Channel)
		m.enqueue(c, ServerMessage{Type: TypeUnsubscribed, Channel: msg.Channel})

	default:
		m.enqueue(c, ServerMessage{Type: TypeError, Message: "неизвестное действие"})
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.manager.log.Debug(logger.Entry{Action: "websocket_read_failed", UserID: c.userID, Err: err})
			}
			return
		}
		c.manager.handle(ctx, c, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
