package core

import (
	"time"

	"github.com/vovakirdan/parley/internal/store"
)

// Message is the domain model for a persisted chat message, denormalized with its sender.
type Message struct {
	ID          int64
	Sender      User
	RecipientID *int64
	GroupID     *int64
	Content     string
	IsRead      bool
	CreatedAt   time.Time
}

// NewMessage attaches sender details to a stored message.
func NewMessage(m *store.Message, sender User) Message {
	return Message{
		ID:          m.ID,
		Sender:      sender,
		RecipientID: m.RecipientID,
		GroupID:     m.GroupID,
		Content:     m.Content,
		IsRead:      m.IsRead,
		CreatedAt:   m.CreatedAt,
	}
}
