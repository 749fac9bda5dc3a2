package core

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/parley/internal/store"
)

// Fanout persists messages and delivers them to live clients.
// Persistence always happens before delivery.
type Fanout struct {
	store    store.Store
	presence *Presence
	rooms    *RoomManager
	log      *zerolog.Logger
}

// NewFanout wires the engine to its collaborators.
func NewFanout(st store.Store, presence *Presence, rooms *RoomManager, logger *zerolog.Logger) *Fanout {
	return &Fanout{
		store:    st,
		presence: presence,
		rooms:    rooms,
		log:      logger,
	}
}

// SendPrivate stores a direct message and delivers it to every live client of
// the recipient. origin, when set, receives a messageSent acknowledgement.
func (f *Fanout) SendPrivate(ctx context.Context, sender Identity, origin *Client, recipientID int64, content string) (Message, error) {
	content, err := NormalizeContent(content)
	if err != nil {
		return Message{}, err
	}
	if recipientID <= 0 {
		return Message{}, validationError("recipient is required")
	}
	if _, err := f.store.GetUserByID(ctx, recipientID); err != nil {
		return Message{}, lookupError("recipient not found", "failed to load recipient", err)
	}

	stored := &store.Message{SenderID: sender.ID, RecipientID: &recipientID, Content: content}
	if err := f.store.SaveMessage(ctx, stored); err != nil {
		return Message{}, persistenceError("failed to save message", err)
	}

	msg := NewMessage(stored, sender.User())
	delivered := &Event{Kind: EventPrivateMessage, Message: msg}
	for _, c := range f.presence.Clients(recipientID) {
		c.Send(delivered)
	}
	if origin != nil {
		origin.Send(&Event{Kind: EventMessageSent, Message: msg})
	}

	f.log.Debug().
		Int64("user_id", sender.ID).
		Int64("recipient_id", recipientID).
		Int64("message_id", msg.ID).
		Msg("private message")
	return msg, nil
}

// SendGroup stores a group message from a member and delivers it to every live
// subscriber of the group, the sender included. An origin that is not
// subscribed gets a messageSent acknowledgement instead.
func (f *Fanout) SendGroup(ctx context.Context, sender Identity, origin *Client, groupID int64, content string) (Message, error) {
	content, err := NormalizeContent(content)
	if err != nil {
		return Message{}, err
	}
	if _, err := f.store.GetGroupByID(ctx, groupID); err != nil {
		return Message{}, lookupError("group not found", "failed to load group", err)
	}
	member, err := f.store.IsMember(ctx, groupID, sender.ID)
	if err != nil {
		return Message{}, persistenceError("failed to check membership", err)
	}
	if !member {
		return Message{}, forbiddenError("you are not a member of this group")
	}

	stored := &store.Message{SenderID: sender.ID, GroupID: &groupID, Content: content}
	if err := f.store.SaveMessage(ctx, stored); err != nil {
		return Message{}, persistenceError("failed to save message", err)
	}

	msg := NewMessage(stored, sender.User())
	f.rooms.Broadcast(groupID, &Event{Kind: EventGroupMessage, Message: msg})
	if origin != nil && !f.rooms.IsSubscribed(groupID, origin) {
		origin.Send(&Event{Kind: EventMessageSent, Message: msg})
	}

	f.log.Debug().
		Int64("user_id", sender.ID).
		Int64("group_id", groupID).
		Int64("message_id", msg.ID).
		Msg("group message")
	return msg, nil
}
