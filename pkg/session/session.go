// Package session owns conversation-session identity and the time window
// within which a conversation continues the current session.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/mnemo/pkg/logger"
)

const (
	// DefaultWindow is how long after its last activity a session may be
	// continued.
	DefaultWindow = 30 * time.Minute

	// DefaultTopic is used when a session is started without a topic.
	DefaultTopic = "General Conversation"
)

// ErrNotFound is returned by a Store that holds no matching session.
var ErrNotFound = errors.New("session not found")

// Session is one conversation. Sessions are superseded, never destroyed.
type Session struct {
	ID         string    `json:"id"`
	StartTime  time.Time `json:"start_time"`
	Topic      string    `json:"topic"`
	Summary    string    `json:"summary,omitempty"`
	LastActive time.Time `json:"last_active"`
}

// Store persists sessions so the current one survives restarts.
type Store interface {
	// Save writes s and marks it as the current session.
	Save(ctx context.Context, s *Session) error

	// Current returns the session last saved, or ErrNotFound.
	Current(ctx context.Context) (*Session, error)

	// Get returns the session with id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
}

// Config configures a Manager.
type Config struct {
	// Window defaults to DefaultWindow.
	Window time.Duration

	// Clock defaults to time.Now.
	Clock func() time.Time

	// Store is optional.
	Store Store

	Logger *slog.Logger
}

// Manager tracks the current session. Its lock guards only in-memory state;
// persistence happens after the lock is released.
type Manager struct {
	mu      sync.Mutex
	current *Session

	window time.Duration
	clock  func() time.Time
	store  Store
	logger *slog.Logger
}

// NewManager returns a Manager with no current session.
func NewManager(cfg Config) *Manager {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	return &Manager{
		window: cfg.Window,
		clock:  cfg.Clock,
		store:  cfg.Store,
		logger: cfg.Logger,
	}
}

// Restore loads the current session from the store, if any.
func (m *Manager) Restore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	s, err := m.store.Current(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	return nil
}

// StartNew always starts a fresh session and makes it current.
func (m *Manager) StartNew(ctx context.Context, topic string) Session {
	m.mu.Lock()
	s := m.startLocked(topic)
	m.mu.Unlock()

	m.persist(ctx, s)
	return s
}

// GetOrCreate continues the current session when it was active within the
// window, refreshing its last activity; otherwise it starts a new session.
func (m *Manager) GetOrCreate(ctx context.Context, topic string) Session {
	m.mu.Lock()
	now := m.clock()
	var s Session
	if m.current != nil && now.Sub(m.current.LastActive) < m.window {
		m.current.LastActive = now
		s = *m.current
	} else {
		s = m.startLocked(topic)
	}
	m.mu.Unlock()

	m.persist(ctx, s)
	return s
}

// Current returns a copy of the current session.
func (m *Manager) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Session{}, false
	}
	return *m.current, true
}

// CurrentID returns the current session id, or "" without a session.
func (m *Manager) CurrentID() string {
	s, ok := m.Current()
	if !ok {
		return ""
	}
	return s.ID
}

// SetSummary records a summary on the current session. It reports false when
// there is no current session.
func (m *Manager) SetSummary(ctx context.Context, summary string) bool {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return false
	}
	m.current.Summary = summary
	s := *m.current
	m.mu.Unlock()

	m.persist(ctx, s)
	return true
}

// Get returns the session with id: the current one, or one from the store.
func (m *Manager) Get(ctx context.Context, id string) (Session, error) {
	if s, ok := m.Current(); ok && s.ID == id {
		return s, nil
	}
	if m.store == nil {
		return Session{}, ErrNotFound
	}
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	return *s, nil
}

func (m *Manager) startLocked(topic string) Session {
	if topic == "" {
		topic = DefaultTopic
	}
	now := m.clock()
	m.current = &Session{
		ID:         uuid.NewString(),
		StartTime:  now,
		Topic:      topic,
		LastActive: now,
	}
	return *m.current
}

func (m *Manager) persist(ctx context.Context, s Session) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(ctx, &s); err != nil {
		m.logger.Warn("failed to persist session", "session_id", s.ID, "error", err)
	}
}
