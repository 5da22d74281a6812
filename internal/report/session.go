package report

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/eleven-am/civic311/internal/chat"
	"github.com/eleven-am/civic311/internal/inference"
)

var ErrEmptyImage = errors.New("image is required")

// Session is one report conversation: an inference client whose answers
// are appended to a chat log.
type Session struct {
	id        string
	owner     string
	createdAt time.Time
	client    *inference.Client
	log       *chat.Log
	logger    *slog.Logger

	submitMu sync.Mutex

	mu           sync.Mutex
	lastResponse *string
	lastError    *string
	unsubscribe  func()

	closeOnce sync.Once
	done      chan struct{}
}

func NewSession(id, owner string, client *inference.Client, log *chat.Log, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		id:        id,
		owner:     owner,
		createdAt: time.Now().UTC(),
		client:    client,
		log:       log,
		logger:    logger.With("component", "report-session", "session_id", id),
		done:      make(chan struct{}),
	}
	s.unsubscribe = client.Subscribe(s.onState)
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Owner() string {
	return s.owner
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Start(ctx context.Context) error {
	return s.client.Start(ctx)
}

// Submit records the user's question and forwards it to the model. Nothing
// is recorded when the model is not ready to take it.
func (s *Session) Submit(ctx context.Context, imageURL, prompt string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return ErrEmptyImage
	}

	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	if status := s.client.State().Status; status != inference.StatusReady {
		s.logger.Warn("report query ignored", "status", status)
		return inference.ErrNotReady
	}

	msg := chat.NewUserMessage(prompt, imageURL)
	s.log.Add(msg)
	if err := s.client.Query(inference.InferenceRequest{Image: imageURL, Prompt: prompt}); err != nil {
		s.log.Remove(msg.ID)
		return err
	}
	return nil
}

func (s *Session) NewReport() {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()
	s.log.Clear()
}

func (s *Session) State() inference.State {
	return s.client.State()
}

func (s *Session) Messages() []chat.Message {
	return s.log.Messages()
}

// WatchState delivers the current state and then every change, in order.
func (s *Session) WatchState(fn func(inference.State)) func() {
	return s.client.Watch(fn)
}

// WatchMessages delivers the current history and then every change.
func (s *Session) WatchMessages(fn func([]chat.Message)) func() {
	return s.log.Watch(fn)
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.unsubscribe()
		s.client.Close()
		close(s.done)
		s.logger.Debug("report session closed")
	})
}

func (s *Session) onState(st inference.State) {
	var msgs []chat.Message

	s.mu.Lock()
	if st.Response != nil && st.Response != s.lastResponse {
		s.lastResponse = st.Response
		msgs = append(msgs, chat.NewSystemMessage(*st.Response))
	}
	if st.Error != nil && st.Error != s.lastError {
		s.lastError = st.Error
		msgs = append(msgs, chat.NewSystemMessage("Error: "+*st.Error))
	}
	s.mu.Unlock()

	for _, m := range msgs {
		s.log.Add(m)
	}
}
