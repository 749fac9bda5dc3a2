package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/parley/internal/store"
)

// Room is the live channel of a group: the clients currently subscribed to it.
// It is distinct from durable membership and guarded by its RoomManager.
type Room struct {
	GroupID int64
	clients map[*Client]struct{}
}

// NewRoom constructs a room with no clients.
func NewRoom(groupID int64) *Room {
	return &Room{
		GroupID: groupID,
		clients: make(map[*Client]struct{}),
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

// Subscribers returns a snapshot of the room's clients.
func (r *Room) Subscribers() []*Client {
	return lo.Keys(r.clients)
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return len(r.clients) == 0
}

// groupLocks serializes membership changes per group. Entries are dropped once unused.
type groupLocks struct {
	mu    sync.Mutex
	locks map[int64]*groupLock
}

type groupLock struct {
	sync.Mutex
	refs int
}

func (g *groupLocks) lock(groupID int64) (unlock func()) {
	g.mu.Lock()
	l, ok := g.locks[groupID]
	if !ok {
		l = &groupLock{}
		g.locks[groupID] = l
	}
	l.refs++
	g.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		g.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(g.locks, groupID)
		}
		g.mu.Unlock()
	}
}

// RoomManager owns live room subscriptions and applies durable membership changes.
// A durable change and the matching live subscription update happen under one
// per-group lock, so a subscriber is always a durable member.
type RoomManager struct {
	groups  store.GroupStore
	log     *zerolog.Logger
	pending groupLocks

	mu       sync.RWMutex
	rooms    map[int64]*Room
	byClient map[*Client]map[int64]struct{}
}

// NewRoomManager creates a manager backed by the given group store.
func NewRoomManager(groups store.GroupStore, logger *zerolog.Logger) *RoomManager {
	return &RoomManager{
		groups:   groups,
		log:      logger,
		pending:  groupLocks{locks: make(map[int64]*groupLock)},
		rooms:    make(map[int64]*Room),
		byClient: make(map[*Client]map[int64]struct{}),
	}
}

// Join enrolls the identity in the group if needed and subscribes c to its live
// channel. c may be nil for callers without a live connection.
func (m *RoomManager) Join(ctx context.Context, identity Identity, c *Client, groupID int64) (*store.Group, error) {
	group, err := m.groups.GetGroupByID(ctx, groupID)
	if err != nil {
		return nil, lookupError("group not found", "failed to load group", err)
	}

	unlock := m.pending.lock(groupID)
	defer unlock()

	member, err := m.groups.IsMember(ctx, groupID, identity.ID)
	if err != nil {
		return nil, persistenceError("failed to check membership", err)
	}
	if !member {
		if err := m.groups.AddMember(ctx, groupID, identity.ID); err != nil {
			return nil, persistenceError("failed to join group", err)
		}
	}

	if c != nil {
		m.subscribe(groupID, c)
	}

	ref := GroupRef{ID: group.ID, Name: group.Name}
	m.Broadcast(groupID, &Event{Kind: EventUserJoinedGroup, Group: ref, User: identity.User()})
	if c != nil {
		c.Send(&Event{Kind: EventJoinedGroup, Group: ref})
	}

	m.log.Info().
		Int64("user_id", identity.ID).
		Int64("group_id", groupID).
		Msg("joined group")
	return group, nil
}

// Leave removes the identity from the group and drops its live subscriptions.
// The group's creator cannot leave.
func (m *RoomManager) Leave(ctx context.Context, identity Identity, c *Client, groupID int64) (*store.Group, error) {
	group, err := m.groups.GetGroupByID(ctx, groupID)
	if err != nil {
		return nil, lookupError("group not found", "failed to load group", err)
	}
	if group.CreatorID == identity.ID {
		return nil, forbiddenError("group creator cannot leave the group")
	}

	unlock := m.pending.lock(groupID)
	defer unlock()

	if err := m.groups.RemoveMember(ctx, groupID, identity.ID); err != nil {
		return nil, persistenceError("failed to leave group", err)
	}

	m.unsubscribeIdentity(groupID, identity.ID)

	ref := GroupRef{ID: group.ID, Name: group.Name}
	m.Broadcast(groupID, &Event{Kind: EventUserLeftGroup, Group: ref, User: identity.User()})
	if c != nil {
		c.Send(&Event{Kind: EventLeftGroup, Group: ref})
	}

	m.log.Info().
		Int64("user_id", identity.ID).
		Int64("group_id", groupID).
		Msg("left group")
	return group, nil
}

// Broadcast delivers an event to every live subscriber of the group.
func (m *RoomManager) Broadcast(groupID int64, ev *Event) {
	for _, c := range m.Subscribers(groupID) {
		c.Send(ev)
	}
}

// Subscribers returns a snapshot of the group's live subscribers.
func (m *RoomManager) Subscribers(groupID int64) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, ok := m.rooms[groupID]
	if !ok {
		return nil
	}
	return room.Subscribers()
}

// IsSubscribed reports whether c is subscribed to the group's live channel.
func (m *RoomManager) IsSubscribed(groupID int64, c *Client) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byClient[c][groupID]
	return ok
}

// RoomsOf returns the groups c is subscribed to.
func (m *RoomManager) RoomsOf(c *Client) []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Keys(m.byClient[c])
}

// UnsubscribeAll drops every subscription of c and returns the affected groups.
func (m *RoomManager) UnsubscribeAll(c *Client) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	groupIDs := lo.Keys(m.byClient[c])
	for _, groupID := range groupIDs {
		m.removeLocked(groupID, c)
	}
	return groupIDs
}

func (m *RoomManager) subscribe(groupID int64, c *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[groupID]
	if !ok {
		room = NewRoom(groupID)
		m.rooms[groupID] = room
	}
	if !room.AddClient(c) {
		return
	}
	joined, ok := m.byClient[c]
	if !ok {
		joined = make(map[int64]struct{})
		m.byClient[c] = joined
	}
	joined[groupID] = struct{}{}
}

// unsubscribeIdentity removes every client of the identity from the group's live channel.
func (m *RoomManager) unsubscribeIdentity(groupID, userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[groupID]
	if !ok {
		return
	}
	for _, c := range room.Subscribers() {
		if c.Identity.ID == userID {
			m.removeLocked(groupID, c)
		}
	}
}

func (m *RoomManager) removeLocked(groupID int64, c *Client) {
	if room, ok := m.rooms[groupID]; ok {
		room.RemoveClient(c)
		if room.Empty() {
			delete(m.rooms, groupID)
		}
	}
	if joined, ok := m.byClient[c]; ok {
		delete(joined, groupID)
		if len(joined) == 0 {
			delete(m.byClient, c)
		}
	}
}
