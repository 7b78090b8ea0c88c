package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"meetly/internal/domain"
)

// State is the dialogue position of a session between turns.
type State int

const (
	StateIdle State = iota
	StateAwaitingEmail           // an insert failed for a participant, waiting for a corrected email
	StateAwaitingConflictChoice  // a conflict or past time was reported, waiting for override or new time
	StateAwaitingNewContactEmail // a participant was not in the directory, waiting for their email
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingEmail:
		return "awaiting-email"
	case StateAwaitingConflictChoice:
		return "awaiting-conflict-choice"
	case StateAwaitingNewContactEmail:
		return "awaiting-new-contact-email"
	}
	return "unknown"
}

// Session is the explicit per-chat state machine. At most one draft is
// pending at a time; all mutation happens under mu, one turn at a time.
type Session struct {
	Key     string
	Channel string
	ChatID  string
	ConvID  string

	State          State
	Pending        *domain.MeetingRequest
	NewContactName string
	Current        *domain.ScheduledMeeting
	Scheduled      []*domain.ScheduledMeeting
	ReplySeq       int

	mu sync.Mutex
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// reset clears the dialogue state but keeps the scheduled-meeting list.
func (s *Session) reset() {
	s.State = StateIdle
	s.Pending = nil
	s.NewContactName = ""
	s.Current = nil
}

// Manager owns the session map and backs each session with a persisted
// conversation when a store is configured.
type Manager struct {
	store    domain.Store
	logger   *slog.Logger
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(store domain.Store, logger *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the session for a chat, creating it and its backing
// conversation on first contact.
func (m *Manager) GetOrCreate(ctx context.Context, channel, chatID string) (*Session, error) {
	key := fmt.Sprintf("%s:%s", channel, chatID)

	m.mu.Lock()
	if s, ok := m.sessions[key]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	s := &Session{
		Key:     key,
		Channel: channel,
		ChatID:  chatID,
		State:   StateIdle,
	}

	if m.store != nil {
		conv, err := m.store.FindConversation(ctx, channel, chatID)
		if err != nil {
			return nil, fmt.Errorf("find conversation: %w", err)
		}
		if conv == nil {
			conv = &domain.Conversation{
				ID:      uuid.NewString(),
				Title:   "Chat " + time.Now().Format("Jan 2 15:04"),
				Channel: channel,
				ChatID:  chatID,
			}
			if err := m.store.CreateConversation(ctx, conv); err != nil {
				return nil, fmt.Errorf("create conversation: %w", err)
			}
		}
		s.ConvID = conv.ID

		meetings, err := m.store.MeetingsForChat(ctx, channel, chatID)
		if err != nil {
			m.logger.Warn("cannot restore meetings for session", "key", key, "error", err)
		} else {
			s.Scheduled = meetings
		}
	}

	// Another turn may have created the session while the store was busy.
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[key]; ok {
		return existing, nil
	}
	m.sessions[key] = s
	return s, nil
}

// Clear resets a session's dialogue state and starts a fresh conversation.
func (m *Manager) Clear(ctx context.Context, s *Session) error {
	s.reset()
	s.Scheduled = nil
	s.ReplySeq = 0

	if m.store == nil {
		return nil
	}
	if s.ConvID != "" {
		if err := m.store.DeleteConversation(ctx, s.ConvID); err != nil {
			return fmt.Errorf("delete conversation: %w", err)
		}
	}
	conv := &domain.Conversation{
		ID:      uuid.NewString(),
		Title:   "Chat " + time.Now().Format("Jan 2 15:04"),
		Channel: s.Channel,
		ChatID:  s.ChatID,
	}
	if err := m.store.CreateConversation(ctx, conv); err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	s.ConvID = conv.ID
	return nil
}

// Record appends a turn to the persisted transcript.
func (m *Manager) Record(ctx context.Context, s *Session, role, content string) {
	if m.store == nil || s.ConvID == "" {
		return
	}
	if err := m.store.AppendMessage(ctx, s.ConvID, domain.ChatMessage{Role: role, Content: content}); err != nil {
		m.logger.Warn("cannot persist message", "conv", s.ConvID, "error", err)
	}
}
