// Package cache - клиентский кэш сущностей с инвалидацией.
//
// На каждый ключ одновременно актуален не более чем один запрос к сервису данных.
// Каждый выпущенный запрос получает номер поколения; ответ применяется, только если
// его поколение совпадает с текущим поколением записи (побеждает последний выпущенный).
// Значение, помеченное устаревшим, остается видимым до прихода свежего ответа.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ButyrinIA/forum/internal/metrics"
	"github.com/sirupsen/logrus"
)

type Status int

const (
	// StatusAbsent - записи нет (NotFound)
	StatusAbsent Status = iota
	StatusPending
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "absent"
	}
}

// Snapshot - состояние записи на момент чтения
type Snapshot struct {
	Key        Key
	Status     Status
	Value      any
	Err        error
	Stale      bool
	Fetching   bool
	Generation uint64
	UpdatedAt  time.Time
}

// Fetcher загружает значение ключа из сервиса данных
type Fetcher func(ctx context.Context, key Key) (any, error)

// Listener вызывается синхронно на пути завершения запроса
type Listener func(Snapshot)

type Cache struct {
	fetch   Fetcher
	logger  logrus.FieldLogger
	metrics *metrics.Metrics
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// gcTime - сколько хранится запись без подписчиков и обращений
	gcTime time.Duration

	mu           sync.Mutex
	entries      map[Key]*entry
	nextListener uint64
	lastSweep    time.Time
}

type entry struct {
	status    Status
	value     any
	err       error
	updatedAt time.Time
	lastUsed  time.Time

	// generation - поколение последнего выпущенного запроса
	generation uint64
	applied    uint64
	stale      bool
	// staleAt - поколение на момент инвалидации; свежим считается ответ с поколением больше
	staleAt  uint64
	inflight *call

	// ready закрывается и пересоздается при каждом применении ответа
	ready     chan struct{}
	listeners map[uint64]Listener
}

type call struct {
	gen     uint64
	refresh bool
}

type Option func(*Cache)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Cache) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithGCTime задает время жизни неиспользуемой записи; 0 отключает вытеснение
func WithGCTime(d time.Duration) Option {
	return func(c *Cache) { c.gcTime = d }
}

const DefaultGCTime = 5 * time.Minute

func New(fetch Fetcher, opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		fetch:   fetch,
		logger:  logrus.StandardLogger(),
		now:     time.Now,
		gcTime:  DefaultGCTime,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[Key]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close отменяет незавершенные запросы и ждет их горутины
func (c *Cache) Close() {
	c.cancel()
	c.wg.Wait()
}

// Get возвращает текущее состояние ключа, не блокируясь. Запрос выпускается,
// если ключ новый, запись в ошибке, или запись устарела и более нового запроса нет.
func (c *Cache) Get(key Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.collectLocked()
	e := c.entryLocked(key)
	e.lastUsed = c.now()
	if e.needsFetch() {
		c.issueLocked(key, e, false)
	}
	return e.snapshot(key)
}

// Peek возвращает состояние без побочных эффектов
func (c *Cache) Peek(key Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Snapshot{Key: key, Status: StatusAbsent}
	}
	return e.snapshot(key)
}

// Load ждет результат самого нового запроса по ключу
func (c *Cache) Load(ctx context.Context, key Key) (any, error) {
	c.Get(key)
	for {
		c.mu.Lock()
		e, ok := c.entries[key]
		if !ok {
			c.mu.Unlock()
			c.Get(key)
			continue
		}
		if e.inflight == nil {
			value, err, status := e.value, e.err, e.status
			c.mu.Unlock()
			if status == StatusError {
				return nil, err
			}
			return value, nil
		}
		ready := e.ready
		c.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Invalidate помечает запись устаревшей. При активных подписчиках сразу выпускается
// один новый запрос; повторная инвалидация до его завершения не выпускает еще один.
// Без подписчиков запрос откладывается до следующего Get, а ответ запроса,
// выпущенного до инвалидации, запись свежей не делает.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return
	}
	c.metrics.Invalidation(string(key.Kind))

	if len(e.listeners) > 0 && e.stale && e.inflight != nil && e.inflight.gen > e.staleAt {
		// уже есть запрос, выпущенный после предыдущей инвалидации
		return
	}
	e.stale = true
	e.staleAt = e.generation
	if len(e.listeners) > 0 {
		c.issueLocked(key, e, true)
	}
}

// Subscribe регистрирует слушателя ключа. Возвращаемая функция снимает подписку;
// повторный вызов безопасен.
func (c *Cache) Subscribe(key Key, l Listener) (unsubscribe func()) {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.lastUsed = c.now()
	c.nextListener++
	id := c.nextListener
	e.listeners[id] = l
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(e.listeners, id)
			e.lastUsed = c.now()
			c.mu.Unlock()
		})
	}
}

// Subscribers - число подписчиков ключа
func (c *Cache) Subscribers(key Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return len(e.listeners)
	}
	return 0
}

func (c *Cache) entryLocked(key Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{
			status:    StatusPending,
			ready:     make(chan struct{}),
			listeners: make(map[uint64]Listener),
		}
		c.entries[key] = e
	}
	return e
}

func (c *Cache) issueLocked(key Key, e *entry, refresh bool) {
	e.generation++
	cl := &call{gen: e.generation, refresh: refresh}
	e.inflight = cl

	c.metrics.CacheFetch(string(key.Kind), "issued")
	c.logger.WithFields(logrus.Fields{"key": key.String(), "generation": cl.gen, "refresh": refresh}).Debug("cache fetch issued")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		value, err := c.fetch(c.ctx, key)
		c.complete(key, cl, value, err)
	}()
}

func (c *Cache) complete(key Key, cl *call, value any, err error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.inflight != cl {
		c.mu.Unlock()
		c.metrics.CacheFetch(string(key.Kind), "discarded")
		c.logger.WithFields(logrus.Fields{"key": key.String(), "generation": cl.gen}).Debug("stale cache response discarded")
		return
	}

	e.inflight = nil
	e.applied = cl.gen
	e.updatedAt = c.now()
	if err != nil {
		e.status = StatusError
		e.err = err
		c.metrics.CacheFetch(string(key.Kind), "failed")
		c.logger.WithError(err).WithField("key", key.String()).Warn("cache fetch failed")
	} else {
		e.status = StatusSuccess
		e.value = value
		e.err = nil
		if cl.gen > e.staleAt {
			e.stale = false
		}
		c.metrics.CacheFetch(string(key.Kind), "applied")
	}

	snap := e.snapshot(key)
	listeners := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		listeners = append(listeners, l)
	}
	close(e.ready)
	e.ready = make(chan struct{})
	c.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

// collectLocked удаляет записи без подписчиков и запросов, к которым не обращались
// дольше gcTime. Проход выполняется не чаще раза в gcTime.
func (c *Cache) collectLocked() {
	if c.gcTime <= 0 {
		return
	}
	now := c.now()
	if now.Sub(c.lastSweep) < c.gcTime {
		return
	}
	c.lastSweep = now

	for key, e := range c.entries {
		if len(e.listeners) == 0 && e.inflight == nil && now.Sub(e.lastUsed) >= c.gcTime {
			delete(c.entries, key)
		}
	}
}

func (e *entry) needsFetch() bool {
	if e.inflight != nil {
		return e.stale && e.inflight.gen <= e.staleAt
	}
	return e.status == StatusPending || e.status == StatusError || e.stale
}

func (e *entry) snapshot(key Key) Snapshot {
	return Snapshot{
		Key:        key,
		Status:     e.status,
		Value:      e.value,
		Err:        e.err,
		Stale:      e.stale,
		Fetching:   e.inflight != nil,
		Generation: e.applied,
		UpdatedAt:  e.updatedAt,
	}
}
