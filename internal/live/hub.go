// Package live рассылает изменения записей кэша по websocket.
//
// Клиент шлет кадры {"subscribe":"post:1"} и {"unsubscribe":"post:1"}; на каждый
// примененный ответ по ключу сервер отправляет {"key","status","generation"}.
// При закрытии соединения все его подписки снимаются.
package live

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ButyrinIA/forum/internal/cache"
	"github.com/ButyrinIA/forum/internal/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	sendBuffer   = 16
	writeTimeout = 5 * time.Second
)

// Frame - кадр от клиента
type Frame struct {
	Subscribe   string `json:"subscribe,omitempty"`
	Unsubscribe string `json:"unsubscribe,omitempty"`
}

// Event - уведомление об изменении записи
type Event struct {
	Key        string `json:"key"`
	Status     string `json:"status"`
	Generation uint64 `json:"generation"`
	Stale      bool   `json:"stale,omitempty"`
	Error      string `json:"error,omitempty"`
}

type Hub struct {
	cache    *cache.Cache
	upgrader websocket.Upgrader
	logger   logrus.FieldLogger
	metrics  *metrics.Metrics

	mu    sync.RWMutex
	conns map[string]*conn
}

type Option func(*Hub)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(h *Hub) { h.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

func NewHub(c *cache.Cache, opts ...Option) *Hub {
	h := &Hub{
		cache: c,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logrus.StandardLogger(),
		conns:  make(map[string]*conn),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Connections - число открытых соединений
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close закрывает все соединения
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.ws.Close()
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &conn{
		id:     uuid.New().String(),
		hub:    h,
		ws:     ws,
		send:   make(chan Event, sendBuffer),
		subs:   make(map[cache.Key]func()),
		logger: h.logger,
	}
	c.logger = h.logger.WithField("conn", c.id)

	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
	c.logger.Debug("live connection opened")

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writeLoop()
	}()

	c.readLoop()
	c.release()
	<-done
	ws.Close()

	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()
	c.logger.Debug("live connection closed")
}

type conn struct {
	id     string
	hub    *Hub
	ws     *websocket.Conn
	logger logrus.FieldLogger

	// mu защищает subs, closed и отправку в send
	mu     sync.Mutex
	subs   map[cache.Key]func()
	closed bool
	send   chan Event
}

func (c *conn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.WithError(err).Warn("live connection read failed")
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.push(Event{Status: "error", Error: "invalid frame"})
			continue
		}
		if f.Subscribe != "" {
			c.subscribe(f.Subscribe)
		}
		if f.Unsubscribe != "" {
			c.unsubscribe(f.Unsubscribe)
		}
	}
}

func (c *conn) writeLoop() {
	for ev := range c.send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.ws.WriteJSON(ev); err != nil {
			c.logger.WithError(err).Warn("live push failed")
			c.ws.Close()
			// дочитываем канал, чтобы не блокировать слушателей
			for range c.send {
			}
			return
		}
	}
}

func (c *conn) subscribe(raw string) {
	key, err := cache.ParseKey(raw)
	if err != nil {
		c.push(Event{Key: raw, Status: "error", Error: err.Error()})
		return
	}

	c.mu.Lock()
	if _, ok := c.subs[key]; ok || c.closed {
		c.mu.Unlock()
		return
	}
	c.subs[key] = c.hub.cache.Subscribe(key, c.onChange)
	c.mu.Unlock()
	c.hub.metrics.LiveSubscribed(1)

	// Get выпускает запрос, если запись устарела или еще не загружена
	c.push(eventFor(c.hub.cache.Get(key)))
}

func (c *conn) unsubscribe(raw string) {
	key, err := cache.ParseKey(raw)
	if err != nil {
		return
	}

	c.mu.Lock()
	unsubscribe, ok := c.subs[key]
	delete(c.subs, key)
	c.mu.Unlock()

	if ok {
		unsubscribe()
		c.hub.metrics.LiveSubscribed(-1)
	}
}

func (c *conn) onChange(snap cache.Snapshot) {
	c.push(eventFor(snap))
}

func (c *conn) push(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- ev:
	default:
		c.logger.WithField("key", ev.Key).Warn("live client is slow, event dropped")
	}
}

// release снимает все подписки и закрывает очередь отправки
func (c *conn) release() {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[cache.Key]func())
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	for _, unsubscribe := range subs {
		unsubscribe()
	}
	c.hub.metrics.LiveSubscribed(-len(subs))
}

func eventFor(snap cache.Snapshot) Event {
	ev := Event{
		Key:        snap.Key.String(),
		Status:     snap.Status.String(),
		Generation: snap.Generation,
		Stale:      snap.Stale,
	}
	if snap.Err != nil {
		ev.Error = snap.Err.Error()
	}
	return ev
}
