package core

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/parley/internal/store"
)

// ErrHubClosed is returned by Connect once the hub has shut down.
var ErrHubClosed = errors.New("hub closed")

// Hub coordinates live clients: presence, room subscriptions and command dispatch.
type Hub struct {
	presence *Presence
	rooms    *RoomManager
	fanout   *Fanout
	log      *zerolog.Logger

	// transitionMu orders presence transitions with their broadcasts so peers
	// observe userOnline and userOffline in registry order.
	transitionMu sync.Mutex
	closed       bool
}

// NewHub creates a chat hub sharing the given presence registry.
func NewHub(st store.Store, presence *Presence, logger *zerolog.Logger) *Hub {
	rooms := NewRoomManager(st, logger)
	return &Hub{
		presence: presence,
		rooms:    rooms,
		fanout:   NewFanout(st, presence, rooms, logger),
		log:      logger,
	}
}

// Presence returns the registry the hub maintains.
func (h *Hub) Presence() *Presence { return h.presence }

// Rooms returns the room membership manager.
func (h *Hub) Rooms() *RoomManager { return h.rooms }

// Fanout returns the message fan-out engine.
func (h *Hub) Fanout() *Fanout { return h.fanout }

// Connect registers c, sends it the presence snapshot and announces its
// identity to everyone else if it just came online. It then starts the
// client's command loop, which runs until ctx ends or Disconnect.
// It fails with ErrHubClosed once Run has started shutting down.
func (h *Hub) Connect(ctx context.Context, c *Client) error {
	h.transitionMu.Lock()
	if h.closed {
		h.transitionMu.Unlock()
		return ErrHubClosed
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	cameOnline := h.presence.Register(c)
	c.Send(&Event{Kind: EventOnlineUsers, Online: h.presence.ListOnline()})
	if cameOnline {
		h.broadcastExcept(c, &Event{Kind: EventUserOnline, UserID: c.Identity.ID})
	}
	h.transitionMu.Unlock()

	h.log.Info().
		Str("client_id", c.ID).
		Int64("user_id", c.Identity.ID).
		Msg("client connected")

	go h.serve(loopCtx, c)
	return nil
}

// Disconnect tears c down: it waits for an in-flight command, drops room
// subscriptions and presence, and announces the identity offline if this was
// its last client. Safe to call more than once.
func (h *Hub) Disconnect(c *Client) {
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
			<-c.done
		}

		h.rooms.UnsubscribeAll(c)

		h.transitionMu.Lock()
		if h.presence.Unregister(c) {
			h.broadcastExcept(c, &Event{Kind: EventUserOffline, UserID: c.Identity.ID})
		}
		h.transitionMu.Unlock()
		c.closeEvents()

		h.log.Info().
			Str("client_id", c.ID).
			Int64("user_id", c.Identity.ID).
			Bool("overflow", c.Overflowed()).
			Msg("client disconnected")
	})
}

// Run blocks until ctx is done, then refuses new clients and disconnects
// every live one.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.transitionMu.Lock()
	h.closed = true
	h.transitionMu.Unlock()

	for _, c := range h.presence.All() {
		h.Disconnect(c)
	}
}

// DisconnectUser drops every live client of the identity and reports how many there were.
func (h *Hub) DisconnectUser(userID int64) int {
	clients := h.presence.Clients(userID)
	for _, c := range clients {
		h.Disconnect(c)
	}
	return len(clients)
}

func (h *Hub) serve(ctx context.Context, c *Client) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-c.Commands:
			if cmd != nil {
				h.dispatch(ctx, c, cmd)
			}
		}
	}
}

type commandHandler func(h *Hub, ctx context.Context, c *Client, cmd *Command) error

var commandHandlers = [numCommandKinds]commandHandler{
	CommandPrivateMessage: (*Hub).handlePrivateMessage,
	CommandJoinGroup:      (*Hub).handleJoinGroup,
	CommandLeaveGroup:     (*Hub).handleLeaveGroup,
	CommandGroupMessage:   (*Hub).handleGroupMessage,
}

func (h *Hub) dispatch(ctx context.Context, c *Client, cmd *Command) {
	if cmd.Kind < 0 || cmd.Kind >= numCommandKinds || commandHandlers[cmd.Kind] == nil {
		c.Send(&Event{Kind: EventError, Error: validationError("unknown command")})
		return
	}
	if err := commandHandlers[cmd.Kind](h, ctx, c, cmd); err != nil {
		h.reportError(ctx, c, cmd, err)
	}
}

func (h *Hub) handlePrivateMessage(ctx context.Context, c *Client, cmd *Command) error {
	_, err := h.fanout.SendPrivate(ctx, c.Identity, c, cmd.RecipientID, cmd.Content)
	return err
}

func (h *Hub) handleJoinGroup(ctx context.Context, c *Client, cmd *Command) error {
	_, err := h.rooms.Join(ctx, c.Identity, c, cmd.GroupID)
	return err
}

func (h *Hub) handleLeaveGroup(ctx context.Context, c *Client, cmd *Command) error {
	_, err := h.rooms.Leave(ctx, c.Identity, c, cmd.GroupID)
	return err
}

func (h *Hub) handleGroupMessage(ctx context.Context, c *Client, cmd *Command) error {
	_, err := h.fanout.SendGroup(ctx, c.Identity, c, cmd.GroupID, cmd.Content)
	return err
}

func (h *Hub) reportError(ctx context.Context, c *Client, cmd *Command, err error) {
	// The client is going away; nobody is left to tell.
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return
	}

	ce := AsCoreError(err)
	entry := h.log.Warn()
	if ce.Code == ErrCodePersistenceFailed {
		entry = h.log.Error().Err(err)
	}
	entry.
		Str("client_id", c.ID).
		Int64("user_id", c.Identity.ID).
		Str("event", cmd.Kind.String()).
		Str("code", ce.Code).
		Msg(ce.Message)

	c.Send(&Event{Kind: EventError, Error: &CoreError{Code: ce.Code, Message: ce.Message}})
}

func (h *Hub) broadcastExcept(except *Client, ev *Event) {
	for _, c := range h.presence.All() {
		if c != except {
			c.Send(ev)
		}
	}
}
