package report

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/eleven-am/civic311/internal/chat"
	"github.com/eleven-am/civic311/internal/inference"
	"github.com/eleven-am/civic311/internal/shared"
)

var ErrTooManySessions = errors.New("too many active report sessions")

type Info struct {
	ID        string                   `json:"id"`
	Owner     string                   `json:"owner"`
	Status    inference.PipelineStatus `json:"status"`
	Messages  int                      `json:"messages"`
	CreatedAt time.Time                `json:"created_at"`
}

// Manager owns every live report session.
type Manager struct {
	loader      inference.PipelineLoader
	maxSessions int
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(loader inference.PipelineLoader, maxSessions int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		loader:      loader,
		maxSessions: maxSessions,
		logger:      logger.With("component", "report-manager"),
		sessions:    make(map[string]*Session),
	}
}

// Open creates a session with its own worker and starts loading the
// pipeline. The worker stops when ctx is done or the session is closed.
func (m *Manager) Open(ctx context.Context, owner string) (*Session, error) {
	m.mu.Lock()
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}

	id := shared.NewID("rpt_")
	client := inference.NewClient(inference.NewWorker(m.loader, m.logger), m.logger)
	session := NewSession(id, owner, client, chat.NewLog(), m.logger)
	m.sessions[id] = session
	m.mu.Unlock()

	if err := session.Start(ctx); err != nil {
		m.Close(id)
		return nil, err
	}

	m.logger.Info("report session opened", "session_id", id, "owner", owner)
	return session, nil
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Close(id string) {
	m.mu.Lock()
	session, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		session.Close()
		m.logger.Info("report session closed", "session_id", id)
	}
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) List() []Info {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, Info{
			ID:        s.ID(),
			Owner:     s.Owner(),
			Status:    s.State().Status,
			Messages:  s.log.Len(),
			CreatedAt: s.CreatedAt(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Shutdown closes every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	if len(sessions) > 0 {
		m.logger.Info("closed report sessions", "count", len(sessions))
	}
}
