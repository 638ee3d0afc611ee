// Package session хранит состояние клиента в памяти процесса: активного
// пользователя и тему оформления. Оба хранилища создаются явно при старте
// и передаются потребителям через context.Context.
package session

import (
	"context"
	"sync"

	"github.com/ButyrinIA/forum/internal/models"
)

// Store - активные сессии по идентификатору клиента. Выхода нет: сессия живет до перезапуска.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]models.Session)}
}

func (s *Store) Get(clientID string) (*models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[clientID]
	if !ok {
		return nil, false
	}
	return &sess, true
}

func (s *Store) Set(clientID string, sess models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[clientID] = sess
}

type Mode string

const (
	ModeLight Mode = "light"
	ModeDark  Mode = "dark"
)

// ToggleLabel - подпись кнопки переключения темы
func (m Mode) ToggleLabel() string {
	if m == ModeDark {
		return "Light Mode"
	}
	return "Dark Mode"
}

// ThemeStore - предпочтение оформления по идентификатору клиента
type ThemeStore struct {
	mu      sync.RWMutex
	initial Mode
	modes   map[string]Mode
}

func NewThemeStore(initial Mode) *ThemeStore {
	if initial != ModeDark {
		initial = ModeLight
	}
	return &ThemeStore{initial: initial, modes: make(map[string]Mode)}
}

func (t *ThemeStore) Get(clientID string) Mode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if m, ok := t.modes[clientID]; ok {
		return m
	}
	return t.initial
}

func (t *ThemeStore) Toggle(clientID string) Mode {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.modes[clientID]
	if !ok {
		current = t.initial
	}
	next := ModeDark
	if current == ModeDark {
		next = ModeLight
	}
	t.modes[clientID] = next
	return next
}

type ctxKey int

const (
	clientKey ctxKey = iota
	sessionKey
	themeKey
)

func WithClient(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientKey, clientID)
}

func ClientID(ctx context.Context) string {
	id, _ := ctx.Value(clientKey).(string)
	return id
}

func WithSession(ctx context.Context, sess *models.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// FromContext возвращает активную сессию или nil
func FromContext(ctx context.Context) *models.Session {
	sess, _ := ctx.Value(sessionKey).(*models.Session)
	return sess
}

func WithTheme(ctx context.Context, m Mode) context.Context {
	return context.WithValue(ctx, themeKey, m)
}

func ThemeFromContext(ctx context.Context) Mode {
	if m, ok := ctx.Value(themeKey).(Mode); ok {
		return m
	}
	return ModeLight
}
