package domain

import (
	"context"
	"time"
)

// Conversation groups the messages of one chat session.
type Conversation struct {
	ID        string
	Title     string
	Channel   string
	ChatID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists conversations, transcripts and booked meetings.
type Store interface {
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	FindConversation(ctx context.Context, channel, chatID string) (*Conversation, error)
	ListConversations(ctx context.Context, limit int) ([]*Conversation, error)
	DeleteConversation(ctx context.Context, id string) error

	AppendMessage(ctx context.Context, convID string, msg ChatMessage) error
	GetMessages(ctx context.Context, convID string, limit int) ([]ChatMessage, error)

	SaveMeeting(ctx context.Context, m *ScheduledMeeting) error
	MarkDocRequestSent(ctx context.Context, id string) error
	MeetingsForChat(ctx context.Context, channel, chatID string) ([]*ScheduledMeeting, error)
	MeetingsForDay(ctx context.Context, day time.Time) ([]*ScheduledMeeting, error)

	Close() error
}
